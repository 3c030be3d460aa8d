package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOffsetPageInfo(t *testing.T) {
	assert.True(t, NewOffsetPageInfo(1, 20, 21).HasMore)
	assert.False(t, NewOffsetPageInfo(2, 20, 40).HasMore)
	assert.False(t, NewOffsetPageInfo(1, 20, 0).HasMore)
}

func TestCursorRoundTrip(t *testing.T) {
	token, err := EncodeCursor(Cursor{ID: "42", CreatedAt: "2024-01-01T00:00:00Z"})
	require.NoError(t, err)

	cursor, err := DecodeCursor(token)
	require.NoError(t, err)
	assert.Equal(t, "42", cursor.ID)

	_, err = DecodeCursor("%%%")
	assert.Error(t, err)
}
