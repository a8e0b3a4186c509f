package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNilClientAlwaysMisses(t *testing.T) {
	c := NewService(nil)
	ctx := context.Background()
	assert.False(t, c.IsAvailable())

	assert.NoError(t, c.SetProfile(ctx, "u1", map[string]string{"display_name": "Alice"}))
	var got map[string]string
	assert.ErrorIs(t, c.GetProfile(ctx, "u1", &got), ErrMiss)
	assert.Nil(t, got)

	assert.NoError(t, c.InvalidateProfile(ctx, "u1"))
	assert.NoError(t, c.SetMembers(ctx, "c1", []string{"u1"}))
	assert.ErrorIs(t, c.GetMembers(ctx, "c1", &got), ErrMiss)
	assert.NoError(t, c.InvalidateMembers(ctx, "c1"))
}
