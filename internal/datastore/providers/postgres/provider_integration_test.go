package postgres_test

import (
	"context"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chatrelay/chatrelay/internal/datastore"
	"github.com/chatrelay/chatrelay/internal/datastore/datastoretest"
	"github.com/chatrelay/chatrelay/internal/datastore/providers/postgres"
)

func TestProviderIntegration(t *testing.T) {
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("skip integration test: TEST_POSTGRES_DSN is not set")
	}
	ctx := context.Background()
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Skipf("skip integration test: cannot connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Skipf("skip integration test: database ping failed: %v", err)
	}
	t.Cleanup(pool.Close)

	datastoretest.RunBackendTests(t, func(t *testing.T) datastore.Backend {
		p := postgres.NewWithPool(pool)
		if err := p.Initialize(ctx); err != nil {
			t.Fatalf("Initialize() error = %v", err)
		}
		if _, err := pool.Exec(ctx, `TRUNCATE datastore_files`); err != nil {
			t.Fatalf("truncate: %v", err)
		}
		return p
	})
}

func TestNew_RequiresDSN(t *testing.T) {
	t.Parallel()
	if _, err := postgres.New(postgres.Config{}); err == nil {
		t.Fatal("New(empty) error = nil, want error")
	}
}
