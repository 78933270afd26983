package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestInitRejectsBadLevel(t *testing.T) {
	err := Init(Config{Level: "loud"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid log level")
}

func TestWithContextAddsFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	Set(zap.New(core))
	t.Cleanup(func() { Set(nil) })

	ctx := context.WithValue(context.Background(), TableKey, "orders")
	WithContext(ctx).Info("inserted")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "inserted", entry.Message)
	assert.Equal(t, "orders", entry.ContextMap()["table"])
}

func TestGetDefaultsToNop(t *testing.T) {
	Set(nil)
	assert.NotNil(t, Get())
	assert.NoError(t, Sync())
}

func TestContextFields(t *testing.T) {
	ctx := ContextWithStatement(ContextWithTable(context.Background(), "orders"), "INSERT INTO orders (id) VALUES (?)")
	fields := ContextFields(ctx)
	require.Len(t, fields, 2)
	assert.Equal(t, "statement", fields[0].Key)
	assert.Equal(t, "table", fields[1].Key)
	assert.Equal(t, "orders", fields[1].String)

	assert.Empty(t, ContextFields(context.Background()))
}
