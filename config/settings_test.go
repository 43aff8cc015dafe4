package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettingsDelegatesToParent(t *testing.T) {
	t.Parallel()

	parent := NewSettings(map[string]any{"env": "production", "strict routing": true})
	child := NewSettings(nil)
	child.SetParent(parent)

	assert.Equal(t, "production", child.GetString("env"))
	assert.True(t, child.Enabled("strict routing"))

	child.Disable("strict routing")
	assert.True(t, child.Disabled("strict routing"))
	assert.True(t, parent.Enabled("strict routing"), "child writes must not leak upward")

	child.Unset("strict routing")
	assert.True(t, child.Enabled("strict routing"))
}

func TestSettingsLookupThroughSeveralLevels(t *testing.T) {
	t.Parallel()

	root := NewSettings(map[string]any{"timeout": "2s"})
	mid := NewSettings(nil)
	leaf := NewSettings(nil)
	mid.SetParent(root)
	leaf.SetParent(mid)

	assert.Equal(t, 2*time.Second, leaf.GetDuration("timeout"))

	mid.Set("timeout", 5*time.Second)
	assert.Equal(t, 5*time.Second, leaf.GetDuration("timeout"))

	_, ok := leaf.Local("timeout")
	assert.False(t, ok)
}

func TestSettingsTypedDefaults(t *testing.T) {
	t.Parallel()

	s := NewSettings(map[string]any{"workers": "8", "flag": "yes"})

	assert.Equal(t, 8, s.GetInt("workers"))
	assert.Equal(t, 3, s.GetInt("missing", 3))
	assert.True(t, s.GetBool("flag"))
	assert.Equal(t, "fallback", s.GetString("missing", "fallback"))
	assert.False(t, s.Enabled("missing"))
}

func TestSettingsAllShadowsInherited(t *testing.T) {
	t.Parallel()

	parent := NewSettings(map[string]any{"a": 1, "b": 2})
	child := NewSettings(map[string]any{"b": 3})
	child.SetParent(parent)

	all := child.All()
	require.Len(t, all, 2)
	assert.Equal(t, 1, all["a"])
	assert.Equal(t, 3, all["b"])
}
