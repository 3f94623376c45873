package main

import (
	"context"
	"testing"
	"time"

	"todolist/internal/domain/models"
	"todolist/internal/server"
	storage "todolist/repository/inmemory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun(t *testing.T) {
	tests := []struct {
		name  string
		reset bool
		want  struct {
			created bool
			users   int
		}
	}{
		{
			name: "existing data is kept",
			want: struct {
				created bool
				users   int
			}{created: true, users: 2},
		},
		{
			name:  "reset wipes existing data first",
			reset: true,
			want: struct {
				created bool
				users   int
			}{created: true, users: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := storage.NewStorage()
			other := &models.User{Username: "bob", Email: "bob@example.com", PasswordHash: "x", CreatedAt: time.Now()}
			require.NoError(t, store.CreateUser(ctx, other))

			cfg := server.DefaultConfig()
			cfg.BcryptCost = 4
			cfg.SeedReset = tt.reset

			created, err := run(ctx, store, cfg)
			require.NoError(t, err)
			assert.Equal(t, tt.want.created, created)

			users, err := store.ListUsers(ctx)
			require.NoError(t, err)
			assert.Len(t, users, tt.want.users)
		})
	}
}

func TestRunResetReseeds(t *testing.T) {
	ctx := context.Background()
	store := storage.NewStorage()
	cfg := server.DefaultConfig()
	cfg.BcryptCost = 4

	created, err := run(ctx, store, cfg)
	require.NoError(t, err)
	require.True(t, created)

	created, err = run(ctx, store, cfg)
	require.NoError(t, err)
	assert.False(t, created)

	cfg.SeedReset = true
	created, err = run(ctx, store, cfg)
	require.NoError(t, err)
	assert.True(t, created)

	stats, err := store.TodoStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), stats.Total)
}
