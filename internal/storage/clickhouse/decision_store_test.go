package clickhouse_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"marketbond/internal/domain"
	chstore "marketbond/internal/storage/clickhouse"
	"marketbond/internal/storage/migrations"
)

// setupTestDB creates a ClickHouse container, applies the embedded
// migrations, and returns a connection plus a cleanup function.
func setupTestDB(t *testing.T) (*chstore.Conn, func()) {
	t.Helper()

	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "clickhouse/clickhouse-server:24.1-alpine",
		ExposedPorts: []string{"9000/tcp", "8123/tcp"},
		WaitingFor: wait.ForAll(
			wait.ForLog("Application: Ready for connections").
				WithStartupTimeout(60*time.Second),
			wait.ForListeningPort("9000/tcp"),
		),
		Env: map[string]string{
			"CLICKHOUSE_DB":       "test",
			"CLICKHOUSE_USER":     "default",
			"CLICKHOUSE_PASSWORD": "",
		},
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "9000")
	require.NoError(t, err)

	dsn := fmt.Sprintf("clickhouse://%s:%s/test", host, port.Port())

	conn, err := chstore.NewConn(ctx, dsn)
	require.NoError(t, err)

	require.NoError(t, migrations.ApplyClickhouse(ctx, conn))

	cleanup := func() {
		conn.Close()
		_ = container.Terminate(ctx)
	}
	return conn, cleanup
}

func TestDecisionStore_AppendAndRecent(t *testing.T) {
	conn, cleanup := setupTestDB(t)
	defer cleanup()

	s := chstore.NewDecisionStore(conn)
	ctx := context.Background()

	base := time.Date(2025, 7, 1, 12, 0, 0, 0, time.UTC)
	err := s.Append(ctx, []*domain.Decision{
		{
			KalshiID:     "KX-1",
			PolymarketID: "0xabc",
			Accepted:     true,
			Tier:         1,
			Similarity:   0.85,
			PMatch:       0.97,
			Features: domain.FeatureBreakdown{
				Text: 0.92, Entity: 0.8, Time: 1.0, Outcome: 1.0, Resolution: 1.0,
			},
			At: base,
		},
		{
			KalshiID:     "KX-2",
			PolymarketID: "0xdef",
			Accepted:     false,
			Reason:       "sport_type_mismatch",
			At:           base.Add(time.Second),
		},
	})
	require.NoError(t, err)

	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)

	// Newest first.
	assert.Equal(t, "KX-2", got[0].KalshiID)
	assert.False(t, got[0].Accepted)
	assert.Equal(t, "sport_type_mismatch", got[0].Reason)

	assert.Equal(t, "KX-1", got[1].KalshiID)
	assert.True(t, got[1].Accepted)
	assert.Equal(t, 1, got[1].Tier)
	assert.Equal(t, 0.92, got[1].Features.Text)
	assert.Equal(t, base, got[1].At)
}

func TestDecisionStore_AppendEmpty(t *testing.T) {
	s := chstore.NewDecisionStore(nil)
	require.NoError(t, s.Append(context.Background(), nil))
}
