package pool

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPoolResetAndStats(t *testing.T) {
	p := New(
		func() *strings.Builder { return &strings.Builder{} },
		func(b *strings.Builder) { b.Reset() },
	)

	b := p.Get()
	b.WriteString("abc")
	assert.Equal(t, int64(1), p.Stats().InUse)
	p.Put(b)
	assert.Equal(t, 0, b.Len())

	s := p.Stats()
	assert.Equal(t, int64(0), s.InUse)
	assert.Equal(t, int64(1), s.Allocated)
	assert.Equal(t, s.Hits+s.Misses, int64(1))
}

func TestBufferPoolBuckets(t *testing.T) {
	p := NewBufferPool(16, 64)

	buf := p.Get(10)
	require.Len(t, buf, 0)
	assert.GreaterOrEqual(t, cap(buf), 16)

	buf = p.Get(40)
	assert.GreaterOrEqual(t, cap(buf), 64)
	buf = append(buf, "payload"...)
	p.Put(buf)

	big := p.Get(1000)
	assert.GreaterOrEqual(t, cap(big), 1000)
	p.Put(big)

	// tiny foreign buffers are dropped
	p.Put(make([]byte, 0, 4))
}

func ExampleBufferPool() {
	buf := Bytes.Get(128)
	defer Bytes.Put(buf)
	buf = append(buf, "scratch"...)
	_ = buf
}
