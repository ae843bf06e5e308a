package suirpc

import (
	"context"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"
)

// TransactionBytes is the result of the node-side unsafe_* builders.
type TransactionBytes struct {
	TxBytes string `json:"txBytes"` // base64 BCS TransactionData
}

type ExecutionResult struct {
	Digest string `json:"digest"`
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

func (r *ExecutionResult) Success() bool { return r.Status == "success" }

func (c *Client) budget() string {
	return strconv.FormatInt(c.gasBudget, 10)
}

func amountStrings(amounts []decimal.Decimal) []string {
	out := make([]string, len(amounts))
	for i, a := range amounts {
		out[i] = a.Truncate(0).String()
	}
	return out
}

func (c *Client) build(ctx context.Context, method string, params []interface{}) (*TransactionBytes, error) {
	var tx TransactionBytes
	if err := c.Call(ctx, method, params, &tx); err != nil {
		return nil, err
	}
	if tx.TxBytes == "" {
		return nil, fmt.Errorf("%s: empty txBytes", method)
	}
	return &tx, nil
}

// MoveCall builds a call to pkg::module::function. A nil gas lets the node pick
// a SUI coin of the signer.
func (c *Client) MoveCall(ctx context.Context, signer, pkg, module, function string, typeArgs []string, args []interface{}, gas *string) (*TransactionBytes, error) {
	if typeArgs == nil {
		typeArgs = []string{}
	}
	if args == nil {
		args = []interface{}{}
	}
	var gasParam interface{}
	if gas != nil {
		gasParam = *gas
	}
	return c.build(ctx, "unsafe_moveCall", []interface{}{
		signer, pkg, module, function, typeArgs, args, gasParam, c.budget(), nil,
	})
}

// PayAllSui merges every input coin into one and sends the whole balance,
// minus gas, to recipient. The first coin pays for gas.
func (c *Client) PayAllSui(ctx context.Context, signer string, inputCoins []string, recipient string) (*TransactionBytes, error) {
	return c.build(ctx, "unsafe_payAllSui", []interface{}{signer, inputCoins, recipient, c.budget()})
}

func (c *Client) Pay(ctx context.Context, signer string, inputCoins, recipients []string, amounts []decimal.Decimal, gas *string) (*TransactionBytes, error) {
	if len(recipients) != len(amounts) {
		return nil, fmt.Errorf("pay: %d recipients but %d amounts", len(recipients), len(amounts))
	}
	var gasParam interface{}
	if gas != nil {
		gasParam = *gas
	}
	return c.build(ctx, "unsafe_pay", []interface{}{
		signer, inputCoins, recipients, amountStrings(amounts), gasParam, c.budget(),
	})
}

func (c *Client) PaySui(ctx context.Context, signer string, inputCoins, recipients []string, amounts []decimal.Decimal) (*TransactionBytes, error) {
	if len(recipients) != len(amounts) {
		return nil, fmt.Errorf("paySui: %d recipients but %d amounts", len(recipients), len(amounts))
	}
	return c.build(ctx, "unsafe_paySui", []interface{}{
		signer, inputCoins, recipients, amountStrings(amounts), c.budget(),
	})
}

func (c *Client) TransferObject(ctx context.Context, signer, objectID string, gas *string, recipient string) (*TransactionBytes, error) {
	var gasParam interface{}
	if gas != nil {
		gasParam = *gas
	}
	return c.build(ctx, "unsafe_transferObject", []interface{}{signer, objectID, gasParam, c.budget(), recipient})
}

// ExecuteTransactionBlock submits a signed transaction and waits for local execution.
func (c *Client) ExecuteTransactionBlock(ctx context.Context, txBytes string, signatures []string) (*ExecutionResult, error) {
	var resp struct {
		Digest  string `json:"digest"`
		Effects *struct {
			Status struct {
				Status string `json:"status"`
				Error  string `json:"error"`
			} `json:"status"`
		} `json:"effects"`
	}
	options := map[string]bool{"showEffects": true}
	if err := c.Call(ctx, "sui_executeTransactionBlock",
		[]interface{}{txBytes, signatures, options, "WaitForLocalExecution"}, &resp); err != nil {
		return nil, err
	}
	out := &ExecutionResult{Digest: resp.Digest, Status: "unknown"}
	if resp.Effects != nil {
		out.Status = resp.Effects.Status.Status
		out.Error = resp.Effects.Status.Error
	}
	return out, nil
}
