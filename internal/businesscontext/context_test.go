package businesscontext

import (
	"context"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
)

func TestBusinessIDFromContext(t *testing.T) {
	_, ok := BusinessIDFromContext(context.Background())
	assert.False(t, ok)

	ctx := WithBusinessID(context.Background(), snowflake.ID(42))
	id, ok := BusinessIDFromContext(ctx)
	assert.True(t, ok)
	assert.Equal(t, snowflake.ID(42), id)

	_, ok = BusinessIDFromContext(WithBusinessID(context.Background(), 0))
	assert.False(t, ok)
}
