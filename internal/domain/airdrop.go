package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type AirdropRecipient struct {
	Address string          `json:"address" yaml:"address"`
	Amount  decimal.Decimal `json:"amount" yaml:"amount"`
	Raw     decimal.Decimal `json:"raw" yaml:"-"`
}

type BatchStatus string

const (
	BatchPending BatchStatus = "pending"
	BatchDone    BatchStatus = "done"
	BatchFailed  BatchStatus = "failed"
)

type AirdropBatch struct {
	Index      int                `json:"index"`
	Recipients []AirdropRecipient `json:"recipients"`
	TotalRaw   decimal.Decimal    `json:"totalRaw"`
	Status     BatchStatus        `json:"status"`
	Digest     string             `json:"digest,omitempty"`
	Error      string             `json:"error,omitempty"`
}

// AirdropRun is the persisted progress of one plan; runs are keyed by plan hash
// so a rerun of the same plan resumes instead of paying twice.
type AirdropRun struct {
	ID        string         `json:"id"`
	PlanHash  string         `json:"planHash"`
	CoinType  string         `json:"coinType"`
	Sender    string         `json:"sender"`
	Batches   []AirdropBatch `json:"batches"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// Done reports whether every batch has been paid.
func (r *AirdropRun) Done() bool {
	for _, b := range r.Batches {
		if b.Status != BatchDone {
			return false
		}
	}
	return true
}
