package context

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestContextValues(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTenantID(ctx))

	ctx = SetTenantID(ctx, "tenant-1")
	ctx = SetUserID(ctx, "user-1")
	ctx = SetRequestID(ctx, "req-1")

	assert.Equal(t, "tenant-1", GetTenantID(ctx))
	assert.Equal(t, "user-1", GetUserID(ctx))
	assert.Equal(t, "req-1", GetRequestID(ctx))

	t.Run("values survive cancellation detachment", func(t *testing.T) {
		parent, cancel := context.WithCancel(ctx)
		cancel()
		detached := context.WithoutCancel(parent)
		assert.NoError(t, detached.Err())
		assert.Equal(t, "tenant-1", GetTenantID(detached))
	})
}
