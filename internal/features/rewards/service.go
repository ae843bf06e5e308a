// Package rewards reports creator rewards and vesting positions and runs the
// claim flow that merges a user's reward coins in their memez wallet.
package rewards

import (
	"context"
	"errors"
	"fmt"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/sui"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"
)

var (
	ErrNothingToClaim = errors.New("nothing to claim")
	ErrUnknownWallet  = errors.New("no memez wallet for user")
)

type Source interface {
	CreatorRewards(ctx context.Context, creator string) ([]domain.CreatorReward, error)
	VestingPositions(ctx context.Context, owner string) ([]domain.VestingPosition, error)
}

// VestingStatus is a position with its unlock state evaluated at Summary time.
type VestingStatus struct {
	domain.VestingPosition
	VestedRaw    decimal.Decimal `json:"vestedRaw"`
	ClaimableRaw decimal.Decimal `json:"claimableRaw"`
	Claimable    decimal.Decimal `json:"claimable"`
}

type Summary struct {
	Address        string                 `json:"address"`
	CreatorRewards []domain.CreatorReward `json:"creatorRewards"`
	Vesting        []VestingStatus        `json:"vesting"`
	AsOf           time.Time              `json:"asOf"`
}

type Service struct {
	source Source
	now    func() time.Time
}

func NewService(source Source) *Service {
	return &Service{source: source, now: time.Now}
}

func (s *Service) Summary(ctx context.Context, address string) (*Summary, error) {
	addr, err := sui.NormalizeAddress(address)
	if err != nil {
		return nil, err
	}

	var (
		creator []domain.CreatorReward
		vesting []domain.VestingPosition
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		creator, err = s.source.CreatorRewards(gctx, addr)
		if err != nil {
			return fmt.Errorf("creator rewards: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		vesting, err = s.source.VestingPositions(gctx, addr)
		if err != nil {
			return fmt.Errorf("vesting positions: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	out := &Summary{
		Address:        addr,
		CreatorRewards: creator,
		Vesting:        make([]VestingStatus, 0, len(vesting)),
		AsOf:           now,
	}
	if out.CreatorRewards == nil {
		out.CreatorRewards = []domain.CreatorReward{}
	}
	for _, v := range vesting {
		claimable := v.Claimable(now)
		out.Vesting = append(out.Vesting, VestingStatus{
			VestingPosition: v,
			VestedRaw:       v.Vested(now),
			ClaimableRaw:    claimable,
			Claimable:       domain.ToHuman(claimable, v.Decimals),
		})
	}
	return out, nil
}
