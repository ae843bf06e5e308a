// Package airdrop plans and executes batched token distributions from a
// recipient list.
package airdrop

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/sui"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrInvalidRecipient = errors.New("invalid recipient")

func invalid(line int, format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrInvalidRecipient, line, fmt.Sprintf(format, args...))
}

func recipient(line int, address, amount string) (domain.AirdropRecipient, error) {
	addr, err := sui.NormalizeAddress(address)
	if err != nil {
		return domain.AirdropRecipient{}, invalid(line, "address %q", address)
	}
	amt, err := decimal.NewFromString(strings.TrimSpace(amount))
	if err != nil || !amt.IsPositive() {
		return domain.AirdropRecipient{}, invalid(line, "amount %q", amount)
	}
	return domain.AirdropRecipient{Address: addr, Amount: amt}, nil
}

// ParseCSV reads address,amount rows in whole units. A first row whose first
// column is "address" is treated as a header. Blank lines and # comments are skipped.
func ParseCSV(r io.Reader) ([]domain.AirdropRecipient, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var out []domain.AirdropRecipient
	first := true
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
		}
		line, _ := cr.FieldPos(0)

		if first {
			first = false
			if strings.EqualFold(strings.TrimSpace(record[0]), "address") {
				continue
			}
		}
		if len(record) < 2 {
			return nil, invalid(line, "want address,amount")
		}
		rcpt, err := recipient(line, record[0], record[1])
		if err != nil {
			return nil, err
		}
		out = append(out, rcpt)
	}
	return out, nil
}

// ParseYAML accepts either a top-level list of {address, amount} or a mapping
// with a recipients list.
func ParseYAML(r io.Reader) ([]domain.AirdropRecipient, error) {
	var doc yaml.Node
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRecipient, err)
	}

	list := &doc
	if list.Kind == yaml.DocumentNode && len(list.Content) > 0 {
		list = list.Content[0]
	}
	if list.Kind == yaml.MappingNode {
		var found *yaml.Node
		for i := 0; i+1 < len(list.Content); i += 2 {
			if list.Content[i].Value == "recipients" {
				found = list.Content[i+1]
			}
		}
		if found == nil {
			return nil, invalid(list.Line, "missing recipients list")
		}
		list = found
	}
	if list.Kind != yaml.SequenceNode {
		return nil, invalid(list.Line, "expected a list of recipients")
	}

	out := make([]domain.AirdropRecipient, 0, len(list.Content))
	for _, item := range list.Content {
		var row struct {
			Address string `yaml:"address"`
			Amount  string `yaml:"amount"`
		}
		if err := item.Decode(&row); err != nil {
			return nil, invalid(item.Line, "%v", err)
		}
		rcpt, err := recipient(item.Line, row.Address, row.Amount)
		if err != nil {
			return nil, err
		}
		out = append(out, rcpt)
	}
	return out, nil
}
