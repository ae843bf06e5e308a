package suirpc

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"memez-terminal/internal/domain"

	"github.com/shopspring/decimal"
)

const maxCoinsPage = 50

type coinJSON struct {
	CoinType     string `json:"coinType"`
	CoinObjectID string `json:"coinObjectId"`
	Version      string `json:"version"`
	Digest       string `json:"digest"`
	Balance      string `json:"balance"`
}

type CoinPage struct {
	Coins       []domain.WalletCoin
	NextCursor  *string
	HasNextPage bool
}

// GetCoins returns one page of coins of coinType owned by owner.
// An empty coinType means SUI.
func (c *Client) GetCoins(ctx context.Context, owner, coinType string, cursor *string, limit int) (*CoinPage, error) {
	if limit <= 0 || limit > maxCoinsPage {
		limit = maxCoinsPage
	}
	var typeParam interface{}
	if coinType != "" {
		typeParam = coinType
	}
	var cursorParam interface{}
	if cursor != nil {
		cursorParam = *cursor
	}

	var resp struct {
		Data        []coinJSON `json:"data"`
		NextCursor  *string    `json:"nextCursor"`
		HasNextPage bool       `json:"hasNextPage"`
	}
	if err := c.Call(ctx, "suix_getCoins", []interface{}{owner, typeParam, cursorParam, limit}, &resp); err != nil {
		return nil, err
	}

	page := &CoinPage{NextCursor: resp.NextCursor, HasNextPage: resp.HasNextPage}
	for _, coin := range resp.Data {
		bal, err := domain.ParseRaw(coin.Balance)
		if err != nil {
			return nil, fmt.Errorf("coin %s: %w", coin.CoinObjectID, err)
		}
		page.Coins = append(page.Coins, domain.WalletCoin{
			CoinObjectID: coin.CoinObjectID,
			CoinType:     coin.CoinType,
			Version:      coin.Version,
			Digest:       coin.Digest,
			Balance:      bal,
		})
	}
	return page, nil
}

// GetAllCoins follows cursors until the node reports no next page.
func (c *Client) GetAllCoins(ctx context.Context, owner, coinType string) ([]domain.WalletCoin, error) {
	var all []domain.WalletCoin
	var cursor *string
	for {
		page, err := c.GetCoins(ctx, owner, coinType, cursor, maxCoinsPage)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Coins...)
		if !page.HasNextPage || page.NextCursor == nil {
			return all, nil
		}
		cursor = page.NextCursor
	}
}

func (c *Client) GetAllBalances(ctx context.Context, owner string) ([]domain.CoinBalance, error) {
	var resp []struct {
		CoinType        string `json:"coinType"`
		CoinObjectCount int    `json:"coinObjectCount"`
		TotalBalance    string `json:"totalBalance"`
	}
	if err := c.Call(ctx, "suix_getAllBalances", []interface{}{owner}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.CoinBalance, 0, len(resp))
	for _, b := range resp {
		total, err := domain.ParseRaw(b.TotalBalance)
		if err != nil {
			return nil, fmt.Errorf("balance %s: %w", b.CoinType, err)
		}
		out = append(out, domain.CoinBalance{
			CoinType:        b.CoinType,
			CoinObjectCount: b.CoinObjectCount,
			TotalBalance:    total,
		})
	}
	return out, nil
}

// GetCoinMetadata returns nil, nil when the coin type has no metadata object.
func (c *Client) GetCoinMetadata(ctx context.Context, coinType string) (*domain.TokenMetadata, error) {
	var resp *struct {
		Decimals    int     `json:"decimals"`
		Name        string  `json:"name"`
		Symbol      string  `json:"symbol"`
		Description string  `json:"description"`
		IconURL     *string `json:"iconUrl"`
	}
	if err := c.Call(ctx, "suix_getCoinMetadata", []interface{}{coinType}, &resp); err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	meta := &domain.TokenMetadata{
		CoinType:    coinType,
		Name:        resp.Name,
		Symbol:      resp.Symbol,
		Description: resp.Description,
		Decimals:    resp.Decimals,

		DecimalsKnown: true,
	}
	if resp.IconURL != nil {
		meta.IconURL = *resp.IconURL
	}
	return meta, nil
}

func (c *Client) GetTotalSupply(ctx context.Context, coinType string) (decimal.Decimal, error) {
	var resp struct {
		Value string `json:"value"`
	}
	if err := c.Call(ctx, "suix_getTotalSupply", []interface{}{coinType}, &resp); err != nil {
		return decimal.Zero, err
	}
	return domain.ParseRaw(resp.Value)
}

func (c *Client) GetReferenceGasPrice(ctx context.Context) (uint64, error) {
	var raw json.RawMessage
	if err := c.Call(ctx, "suix_getReferenceGasPrice", nil, &raw); err != nil {
		return 0, err
	}
	// BigInt<u64> is serialized as a string, older nodes send a number
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	v, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("reference gas price %q: %w", s, err)
	}
	return v, nil
}
