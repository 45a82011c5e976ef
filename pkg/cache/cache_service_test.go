package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type cachedUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCache(time.Minute, time.Minute)

	t.Run("Miss", func(t *testing.T) {
		var u cachedUser
		assert.ErrorIs(t, c.Get(ctx, "user:missing", &u), ErrCacheMiss)
	})

	t.Run("Set then get copies value", func(t *testing.T) {
		in := cachedUser{ID: "u1", Email: "a@example.com"}
		require.NoError(t, c.Set(ctx, "user:u1", in, time.Minute))
		in.Email = "changed@example.com"

		var out cachedUser
		require.NoError(t, c.Get(ctx, "user:u1", &out))
		assert.Equal(t, "a@example.com", out.Email)
	})

	t.Run("Invalidate pattern", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, "user_list:1:10", []cachedUser{{ID: "u1"}}, time.Minute))
		require.NoError(t, c.Set(ctx, "user_list:2:10", []cachedUser{{ID: "u2"}}, time.Minute))

		require.NoError(t, c.InvalidatePattern(ctx, "user_list:*"))

		var out []cachedUser
		assert.ErrorIs(t, c.Get(ctx, "user_list:1:10", &out), ErrCacheMiss)
		assert.ErrorIs(t, c.Get(ctx, "user_list:2:10", &out), ErrCacheMiss)

		var u cachedUser
		assert.NoError(t, c.Get(ctx, "user:u1", &u))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, "user:u1"))
		var u cachedUser
		assert.ErrorIs(t, c.Get(ctx, "user:u1", &u), ErrCacheMiss)
	})
}
