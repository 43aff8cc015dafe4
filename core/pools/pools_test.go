package pools

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBytePoolSizeClasses(t *testing.T) {
	bp := NewBytePool()

	buf := bp.Get(100)
	assert.Len(t, buf, 100)
	assert.Equal(t, 512, cap(buf))
	bp.Put(buf)

	big := bp.Get(64 << 10)
	assert.Len(t, big, 64<<10)
	bp.Put(big)

	assert.Equal(t, 32768, bp.MaxSize())
	stats := bp.Stats()
	assert.Equal(t, uint64(2), stats.Gets)
	assert.Equal(t, uint64(1), stats.Puts)
	assert.Equal(t, uint64(1), stats.Large)
}

type counter struct{ n int }

func (c *counter) Reset() { c.n = 0 }

func TestObjectPoolResetsOnPut(t *testing.T) {
	p := NewObjectPool(func() *counter { return &counter{} })

	c := p.Get()
	c.n = 5
	p.Put(c)

	got := p.Get()
	assert.Zero(t, got.n)

	stats := p.Stats()
	assert.Equal(t, uint64(2), stats.Gets)
	assert.Equal(t, uint64(1), stats.Puts)
	assert.GreaterOrEqual(t, stats.News, uint64(1))
}

func TestApplyGCConfig(t *testing.T) {
	prev := ApplyGCConfig(GCConfig{Percent: 250})
	defer ApplyGCConfig(GCConfig{Percent: prev})
	assert.Positive(t, prev)

	stats := ReadGCStats()
	assert.Positive(t, stats.NumGoroutine)
}
