package integration

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ymaeda2106/Stall-Order-System/internal/menu/application"
	"github.com/ymaeda2106/Stall-Order-System/internal/menu/domain"
	menupg "github.com/ymaeda2106/Stall-Order-System/internal/menu/infrastructure/postgres"
	menuredis "github.com/ymaeda2106/Stall-Order-System/internal/menu/infrastructure/redis"
)

func TestMenuOverridesThroughPostgresAndRedis(t *testing.T) {
	if os.Getenv("STALL_INTEGRATION") != "1" {
		t.Skip("set STALL_INTEGRATION=1 to run container tests")
	}

	ctx := t.Context()
	env, err := Setup(ctx)
	require.NoError(t, err)
	t.Cleanup(func() { env.Teardown(context.Background()) })

	pool, err := pgxpool.New(ctx, env.PGURL)
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, menupg.Migrate(ctx, pool))

	rdb := redis.NewClient(&redis.Options{Addr: env.RedisAddr})
	t.Cleanup(func() { rdb.Close() })

	log := slog.New(slog.DiscardHandler)
	svc, err := application.NewService(log, domain.VariantA, menupg.NewRepository(log, pool),
		menuredis.NewCache(rdb, time.Minute))
	require.NoError(t, err)

	price := int64(300)
	require.NoError(t, svc.SaveOverrides(ctx, domain.Overrides{"plain": {Price: &price}}))

	items, err := svc.Resolved(ctx)
	require.NoError(t, err)
	var found bool
	for _, it := range items {
		if it.Key == "plain" {
			found = true
			assert.Equal(t, int64(300), it.Price)
		}
	}
	require.True(t, found)

	// A second service instance sees the persisted override too.
	svc2, err := application.NewService(log, domain.VariantA, menupg.NewRepository(log, pool),
		menuredis.NewCache(rdb, time.Minute))
	require.NoError(t, err)
	snap, err := svc2.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(300), snap["plain"].Price)
}
