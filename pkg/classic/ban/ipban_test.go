package ban

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIPBanList_AddRemove(t *testing.T) {
	l := NewIPBanList(testr.New(t))
	addr := net.ParseIP("198.51.100.1")

	assert.True(t, l.Add(IPBanEntry{Address: addr, BannedBy: "Admin", Reason: "r", At: time.Now()}))
	assert.False(t, l.Add(IPBanEntry{Address: addr, BannedBy: "Other", Reason: "dup", At: time.Now()}))
	assert.Equal(t, 1, l.Count())
	assert.Equal(t, "Admin", l.Get(addr).BannedBy)

	assert.True(t, l.Remove(addr))
	assert.False(t, l.Remove(addr))
	assert.False(t, l.Contains(addr))
}

func TestIPBanList_SaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ipbans.txt")
	at := time.Unix(1700000000, 0).UTC()

	l := NewIPBanList(testr.New(t))
	l.Add(IPBanEntry{
		Address:    net.ParseIP("198.51.100.1"),
		PlayerName: "Griefer",
		BannedBy:   "Admin",
		Reason:     "tnt, lava, the works",
		At:         at,
	})
	require.NoError(t, l.Save(path))

	l2 := NewIPBanList(testr.New(t))
	skipped, err := l2.Load(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	e := l2.Get(net.ParseIP("198.51.100.1"))
	require.NotNil(t, e)
	assert.Equal(t, "Griefer", e.PlayerName)
	assert.Equal(t, "tnt, lava, the works", e.Reason)
	assert.Equal(t, at, e.At)
}
