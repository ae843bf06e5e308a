//go:build integration

package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"memez-terminal/internal/domain"
	"memez-terminal/internal/storage"
	chstore "memez-terminal/internal/storage/clickhouse"
	"memez-terminal/internal/storage/migrations"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

func setupTestDB(t *testing.T) *chstore.Conn {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "clickhouse/clickhouse-server:24.1-alpine",
			ExposedPorts: []string{"9000/tcp"},
			WaitingFor: wait.ForAll(
				wait.ForLog("Application: Ready for connections").WithStartupTimeout(60*time.Second),
				wait.ForListeningPort("9000/tcp"),
			),
			Env: map[string]string{"CLICKHOUSE_DB": "test", "CLICKHOUSE_USER": "default"},
		},
		Started: true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	conn, err := chstore.NewConn(ctx, fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port()))
	require.NoError(t, err)
	require.NoError(t, migrations.RunClickhouseMigrations(ctx, conn))

	t.Cleanup(func() {
		conn.Close()
		_ = container.Terminate(ctx)
	})
	return conn
}

func TestSnapshotStore_History(t *testing.T) {
	store := chstore.NewSnapshotStore(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)

	var snaps []domain.PoolSnapshot
	for i := 0; i < 5; i++ {
		snaps = append(snaps, domain.PoolSnapshot{
			PoolAddress:  "0xp",
			Timestamp:    base.Add(time.Duration(i) * time.Minute),
			PriceSUI:     decimal.RequireFromString("0.000001234").Mul(decimal.NewFromInt(int64(i + 1))),
			PriceUSD:     decimal.NewFromInt(int64(i)),
			MarketCapUSD: decimal.NewFromInt(1000),
			QuoteBalance: decimal.NewFromInt(5_000_000_000),
		})
	}
	require.NoError(t, store.InsertBulk(ctx, snaps))
	assert.ErrorIs(t, store.InsertBulk(ctx, []domain.PoolSnapshot{{PoolAddress: "0xp"}}), storage.ErrInvalidInput)

	latest, err := store.History(ctx, "0xp", time.Time{}, 2)
	require.NoError(t, err)
	require.Len(t, latest, 2)
	assert.Equal(t, base.Add(3*time.Minute), latest[0].Timestamp)
	assert.Equal(t, base.Add(4*time.Minute), latest[1].Timestamp)
	assert.True(t, latest[1].PriceSUI.Equal(decimal.RequireFromString("0.00000617")))

	since, err := store.History(ctx, "0xp", base.Add(2*time.Minute), 0)
	require.NoError(t, err)
	assert.Len(t, since, 3)

	none, err := store.History(ctx, "0xother", time.Time{}, 10)
	require.NoError(t, err)
	assert.Empty(t, none)
}
