// Package cache is the cache-aside layer in front of the indexer, the price
// oracle and the chain. Redis in production, an in-process map otherwise.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"memez-terminal/internal/infra/metrics"
)

// ErrMiss is returned when a key is absent or expired.
var ErrMiss = errors.New("cache miss")

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	HGetAll(ctx context.Context, key string) (map[string]string, error)
	HSet(ctx context.Context, key string, fields map[string]string, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	Close() error
}

// TTLs are fixed per key family.
const (
	TokenListTTL      = 15 * time.Second
	StaleTokenListTTL = 10 * time.Minute
	SUIPriceTTL       = 60 * time.Second
	StaleSUIPriceTTL  = time.Hour
	MetadataTTL       = 24 * time.Hour
	LeaderboardTTL    = 60 * time.Second
	PoolTTL           = 15 * time.Second
)

const (
	KeySUIPrice      = "price:sui_usd"
	KeySUIPriceStale = "price:sui_usd:stale"
	KeyMetadata      = "tokens:metadata"
)

func TokenListKey(parts ...string) string {
	return "tokens:list:" + strings.Join(parts, ":")
}

func StaleKey(key string) string {
	return key + ":stale"
}

func PoolKey(address string) string {
	return "tokens:pool:" + address
}

func LeaderboardKey(period, metric string, limit int) string {
	return fmt.Sprintf("leaderboard:%s:%s:%d", period, metric, limit)
}

// keyClass is the metrics label for a key: its first segment.
func keyClass(key string) string {
	if i := strings.IndexByte(key, ':'); i > 0 {
		class := key[:i]
		if strings.HasSuffix(key, ":stale") {
			class += "_stale"
		}
		return class
	}
	return key
}

// GetJSON decodes a cached value into v. Decoding failures count as a miss.
func GetJSON(ctx context.Context, s Store, key string, v interface{}) error {
	data, err := s.Get(ctx, key)
	if err != nil {
		if errors.Is(err, ErrMiss) {
			metrics.CacheLookups.WithLabelValues(keyClass(key), "miss").Inc()
		} else {
			metrics.CacheLookups.WithLabelValues(keyClass(key), "error").Inc()
		}
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		metrics.CacheLookups.WithLabelValues(keyClass(key), "error").Inc()
		return fmt.Errorf("%w: decode %s: %v", ErrMiss, key, err)
	}
	metrics.CacheLookups.WithLabelValues(keyClass(key), "hit").Inc()
	return nil
}

func SetJSON(ctx context.Context, s Store, key string, v interface{}, ttl time.Duration) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data, ttl)
}
