package indexer

import (
	"context"
	"strconv"
	"time"

	"memez-terminal/internal/domain"
)

const poolFields = `
	address coinType name symbol description iconUrl decimals creator socials
	totalSupply quoteBalance coinBalance virtualLiquidity targetQuoteLiquidity
	price volume24h holders migrated createdAt lastTradeAt`

const poolsQuery = `query Pools($sort: String, $limit: Int!, $offset: Int!, $search: String, $includeMigrated: Boolean) {
	pools(sort: $sort, limit: $limit, offset: $offset, search: $search, includeMigrated: $includeMigrated) {
		total
		items {` + poolFields + `}
	}
}`

const poolQuery = `query Pool($address: String!) {
	pool(address: $address) {` + poolFields + `}
}`

const poolsByCoinTypesQuery = `query PoolsByCoinTypes($coinTypes: [String!]!) {
	poolsByCoinTypes(coinTypes: $coinTypes) {` + poolFields + `}
}`

const leaderboardQuery = `query Leaderboard($period: String!, $limit: Int!) {
	leaderboard(period: $period, limit: $limit) { address volume pnl trades }
}`

const creatorRewardsQuery = `query CreatorRewards($creator: String!) {
	creatorRewards(creator: $creator) { poolAddress coinType symbol decimals rewardType amount claimable }
}`

const vestingQuery = `query VestingPositions($owner: String!) {
	vestingPositions(owner: $owner) { id owner coinType symbol decimals total claimed start duration cliff }
}`

const recentTradesQuery = `query RecentTrades($since: String!, $limit: Int!) {
	trades(since: $since, limit: $limit, orderBy: TIMESTAMP_DESC) {
		digest poolAddress coinType symbol sender isBuy quoteAmount coinAmount timestamp
	}
}`

func (c *Client) Pools(ctx context.Context, q PoolQuery) (*PoolPage, error) {
	vars := map[string]interface{}{
		"limit":           q.Limit,
		"offset":          q.Offset,
		"includeMigrated": q.IncludeMigrated,
	}
	if q.Sort != "" {
		vars["sort"] = q.Sort
	}
	if q.Search != "" {
		vars["search"] = q.Search
	}
	var resp struct {
		Pools PoolPage `json:"pools"`
	}
	if err := c.Query(ctx, "Pools", poolsQuery, vars, &resp); err != nil {
		return nil, err
	}
	return &resp.Pools, nil
}

// Pool returns nil, nil when the indexer does not know the address.
func (c *Client) Pool(ctx context.Context, address string) (*Pool, error) {
	var resp struct {
		Pool *Pool `json:"pool"`
	}
	if err := c.Query(ctx, "Pool", poolQuery, map[string]interface{}{"address": address}, &resp); err != nil {
		return nil, err
	}
	return resp.Pool, nil
}

func (c *Client) PoolsByCoinTypes(ctx context.Context, coinTypes []string) ([]Pool, error) {
	if len(coinTypes) == 0 {
		return nil, nil
	}
	var resp struct {
		Pools []Pool `json:"poolsByCoinTypes"`
	}
	if err := c.Query(ctx, "PoolsByCoinTypes", poolsByCoinTypesQuery, map[string]interface{}{"coinTypes": coinTypes}, &resp); err != nil {
		return nil, err
	}
	return resp.Pools, nil
}

func (c *Client) Leaderboard(ctx context.Context, period string, limit int) ([]domain.LeaderboardEntry, error) {
	var resp struct {
		Rows []LeaderboardRow `json:"leaderboard"`
	}
	vars := map[string]interface{}{"period": period, "limit": limit}
	if err := c.Query(ctx, "Leaderboard", leaderboardQuery, vars, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.LeaderboardEntry, len(resp.Rows))
	for i, r := range resp.Rows {
		out[i] = r.Entry()
	}
	return out, nil
}

func (c *Client) CreatorRewards(ctx context.Context, creator string) ([]domain.CreatorReward, error) {
	var resp struct {
		Rows []CreatorRewardRow `json:"creatorRewards"`
	}
	if err := c.Query(ctx, "CreatorRewards", creatorRewardsQuery, map[string]interface{}{"creator": creator}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.CreatorReward, len(resp.Rows))
	for i, r := range resp.Rows {
		out[i] = r.Reward()
	}
	return out, nil
}

func (c *Client) VestingPositions(ctx context.Context, owner string) ([]domain.VestingPosition, error) {
	var resp struct {
		Rows []VestingRow `json:"vestingPositions"`
	}
	if err := c.Query(ctx, "VestingPositions", vestingQuery, map[string]interface{}{"owner": owner}, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.VestingPosition, len(resp.Rows))
	for i, r := range resp.Rows {
		out[i] = r.Position()
	}
	return out, nil
}

// RecentTrades returns trades newer than since, newest first.
func (c *Client) RecentTrades(ctx context.Context, since time.Time, limit int) ([]domain.Trade, error) {
	var resp struct {
		Rows []TradeRow `json:"trades"`
	}
	vars := map[string]interface{}{
		"since": formatMillis(since),
		"limit": limit,
	}
	if err := c.Query(ctx, "RecentTrades", recentTradesQuery, vars, &resp); err != nil {
		return nil, err
	}
	out := make([]domain.Trade, len(resp.Rows))
	for i, r := range resp.Rows {
		out[i] = r.Trade()
	}
	return out, nil
}

func formatMillis(t time.Time) string {
	if t.IsZero() {
		return "0"
	}
	return strconv.FormatInt(t.UnixMilli(), 10)
}
