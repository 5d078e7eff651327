package configutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPrefixed(t *testing.T) {
	got := map[string]any{}
	i := SetDefaultFunc(func(key string, value any) { got[key] = value })

	Prefixed(i, "chat").SetDefault("ignorelimit", 64)
	assert.Equal(t, map[string]any{"chat.ignorelimit": 64}, got)
}

func TestSetDefaultFuncNil(t *testing.T) {
	var f SetDefaultFunc
	assert.NotPanics(t, func() { f.SetDefault("key", 1) })
}
