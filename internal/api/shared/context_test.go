package shared

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTraceID(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, GetTraceID(ctx))

	generated := GetTraceID(SetTraceID(ctx, ""))
	assert.Len(t, generated, 2*TraceIDLength)
	assert.NotEqual(t, generated, GetTraceID(SetTraceID(ctx, "")))

	assert.Equal(t, "given", GetTraceID(SetTraceID(ctx, "given")))
}

func TestUserID(t *testing.T) {
	ctx := context.Background()

	_, ok := GetUserID(ctx)
	assert.False(t, ok)

	userID, ok := GetUserID(SetUserID(ctx, 42))
	assert.True(t, ok)
	assert.Equal(t, int64(42), userID)

	_, ok = GetUserID(SetUserID(ctx, 0))
	assert.False(t, ok)
}

func TestParseID(t *testing.T) {
	id, err := ParseID(" 7 ")
	assert.NoError(t, err)
	assert.Equal(t, int64(7), id)

	id, err = ParseID("")
	assert.NoError(t, err)
	assert.Zero(t, id)

	_, err = ParseID("7a")
	assert.Error(t, err)
}
