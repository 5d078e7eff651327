package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig
	warns, errs := cfg.Validate()
	assert.Empty(t, errs)
	assert.Empty(t, warns)
}

func TestValidateNil(t *testing.T) {
	var c *Config
	_, errs := c.Validate()
	require.Len(t, errs, 1)
}

func TestValidateRankErrors(t *testing.T) {
	cfg := DefaultConfig
	cfg.Ranks = []Rank{
		{Name: "owner", Permissions: []string{"chat"}},
		{Name: "owner", Permissions: []string{"fly"}},
		{Name: ""},
	}
	cfg.DefaultRank = "nosuch"
	_, errs := cfg.Validate()

	var msgs []string
	for _, e := range errs {
		msgs = append(msgs, e.Error())
	}
	assert.Contains(t, msgs, `duplicate rank name "owner"`)
	assert.Contains(t, msgs, `rank "owner": unknown permission "fly"`)
	assert.Contains(t, msgs, `rank at position 2 has no name`)
	assert.Contains(t, msgs, `DefaultRank "nosuch" is not a defined rank`)
}

func TestValidateNoRanks(t *testing.T) {
	cfg := DefaultConfig
	cfg.Ranks = nil
	_, errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "at least one rank")
}

func TestValidateNetBurst(t *testing.T) {
	cfg := DefaultConfig
	cfg.Net.ConnectionsBurst = 0
	_, errs := cfg.Validate()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Error(), "ConnectionsBurst")
}
