package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cory-johannsen/k6mud/internal/config"
	"github.com/cory-johannsen/k6mud/internal/storage/postgres"
	"github.com/cory-johannsen/k6mud/internal/testutil"
)

func TestPool_HealthAndStats(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}
	pc := testutil.NewPostgresContainer(t)

	require.NoError(t, pc.Pool.Health(context.Background(), time.Second))
	acquired, idle := pc.Pool.Stats()
	assert.Equal(t, int32(0), acquired)
	assert.GreaterOrEqual(t, idle, int32(0))
}

func TestNewPool_GivesUpWhenCancelled(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	cfg := config.DatabaseConfig{
		Host:     "127.0.0.1",
		Port:     1,
		User:     "nobody",
		Password: "nothing",
		Name:     "none",
		SSLMode:  "disable",
		MaxConns: 1,
	}
	_, err := postgres.NewPool(ctx, cfg)
	assert.Error(t, err)
}
