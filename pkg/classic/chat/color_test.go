package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsColorCode(t *testing.T) {
	for _, r := range "0123456789abcdefABCDEF" {
		assert.True(t, IsColorCode(r), "%q", r)
	}
	for _, r := range "g&z %-" {
		assert.False(t, IsColorCode(r), "%q", r)
	}
}

func TestStrip(t *testing.T) {
	for _, tt := range []struct {
		in, want string
	}{
		{"", ""},
		{"hello", "hello"},
		{"&ehello", "hello"},
		{"&ehe&fllo&c", "hello"},
		{"tail &", "tail &"},
		{"5 & 6", "5 & 6"},
		{"&g not a code", "&g not a code"},
		{"&&f doubled", "& doubled"},
	} {
		assert.Equal(t, tt.want, Strip(tt.in), "%q", tt.in)
	}
}

func TestEscape(t *testing.T) {
	assert.Equal(t, "no codes", Escape("no codes"))
	assert.Equal(t, "&&chello", Escape("&chello"))
	assert.Equal(t, "a &&&& b", Escape("a && b"))
}
