package player

import (
	"net"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr/testr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDirectory(t *testing.T) *Directory {
	t.Helper()
	return NewDirectory(testr.New(t), testRegistry())
}

func TestDirectory_FindOrCreate(t *testing.T) {
	d := testDirectory(t)

	p, created := d.FindOrCreate("Notch")
	require.True(t, created)
	assert.Equal(t, ReservedIDs, p.ID())
	assert.Equal(t, "guest", p.Rank().Name)

	// Case-insensitive: same record.
	again, created := d.FindOrCreate("nOtCh")
	assert.False(t, created)
	assert.Same(t, p, again)

	q, created := d.FindOrCreate("Herobrine")
	require.True(t, created)
	assert.Equal(t, ReservedIDs+1, q.ID())
	assert.Equal(t, 2, d.Count())
}

func TestDirectory_Lookups(t *testing.T) {
	d := testDirectory(t)
	d.FindOrCreate("Alpha")
	d.FindOrCreate("Alphonse")
	d.FindOrCreate("Beta")

	assert.Len(t, d.FindPrefix("alp"), 2)
	assert.Len(t, d.FindPrefix("beta"), 1)
	assert.Empty(t, d.FindPrefix("gamma"))

	got, err := d.FindRegex("Al.*")
	require.NoError(t, err)
	assert.Len(t, got, 2)

	_, err = d.FindRegex("[") // invalid pattern
	assert.Error(t, err)
}

func TestDirectory_ByIP(t *testing.T) {
	d := testDirectory(t)
	ip := net.ParseIP("192.0.2.4")
	a, _ := d.FindOrCreate("A")
	b, _ := d.FindOrCreate("B")
	c, _ := d.FindOrCreate("C")
	a.ProcessLogin(ip, time.Now())
	b.ProcessLogin(ip, time.Now())
	c.ProcessLogin(net.ParseIP("192.0.2.9"), time.Now())

	assert.Len(t, d.ByIP(ip), 2)
}

func TestDirectory_SnapshotIsStable(t *testing.T) {
	d := testDirectory(t)
	d.FindOrCreate("One")
	snap := d.Snapshot()
	d.FindOrCreate("Two")
	// Old snapshot unchanged, new snapshot published.
	assert.Len(t, snap, 1)
	assert.Len(t, d.Snapshot(), 2)
}

func TestDirectory_MassRankChange(t *testing.T) {
	d := testDirectory(t)
	ranks := d.ranks
	a, _ := d.FindOrCreate("A")
	b, _ := d.FindOrCreate("B")
	c, _ := d.FindOrCreate("C")
	c.SetRank(ranks.ByName("builder"), "console", "", RankChangePromoted)

	n := d.MassRankChange(ranks.ByName("guest"), ranks.ByName("builder"), "console", "cleanup")
	assert.Equal(t, 2, n)
	assert.Equal(t, "builder", a.Rank().Name)
	assert.Equal(t, "builder", b.Rank().Name)
	assert.Equal(t, RankChangePromoted, a.RankInfo().Type)
}

func TestDirectory_Swap(t *testing.T) {
	d := testDirectory(t)
	a, _ := d.FindOrCreate("A")
	b, _ := d.FindOrCreate("B")
	a.IncBlocks(100, 0, 0)
	b.IncMessagesWritten()

	require.NoError(t, d.Swap(a, b))
	assert.Equal(t, int64(100), b.Stats().BlocksBuilt)
	assert.Equal(t, int64(1), a.Stats().MessagesWritten)
	// Identity stays put.
	assert.Equal(t, "A", a.Name())
	assert.Error(t, d.Swap(a, a))
}

func TestDirectory_Prune(t *testing.T) {
	d := testDirectory(t)
	never, _ := d.FindOrCreate("NeverSeen")
	old, _ := d.FindOrCreate("OldTimer")
	old.ProcessLogin(net.ParseIP("10.0.0.1"), time.Now().Add(-100*24*time.Hour))
	fresh, _ := d.FindOrCreate("Fresh")
	fresh.ProcessLogin(net.ParseIP("10.0.0.2"), time.Now())
	bannedNever, _ := d.FindOrCreate("BannedNever")
	bannedNever.ApplyBan("console", "kept for the record", time.Now())

	n := d.Prune(time.Now().Add(-30 * 24 * time.Hour))
	assert.Equal(t, 2, n)
	assert.Nil(t, d.Get(never.Name()))
	assert.Nil(t, d.Get(old.Name()))
	assert.NotNil(t, d.Get("Fresh"))
	assert.NotNil(t, d.Get("BannedNever"))
}

func TestDirectory_SaveLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.txt")

	d := testDirectory(t)
	a, _ := d.FindOrCreate("Alice")
	a.ProcessLogin(net.ParseIP("10.1.1.1"), time.Now())
	a.IncBlocks(5, 2, 0)
	b, _ := d.FindOrCreate("Bob")
	b.ApplyBan("Alice", "reasons", time.Now())

	require.NoError(t, d.Save(path))

	d2 := testDirectory(t)
	skipped, err := d2.Load(path)
	require.NoError(t, err)
	assert.Zero(t, skipped)
	assert.Equal(t, 2, d2.Count())
	assert.Equal(t, int64(5), d2.Get("alice").Stats().BlocksBuilt)
	assert.Equal(t, Banned, d2.Get("bob").BanStatus())
	// IDs survive and new assignments continue past them.
	assert.Equal(t, a.ID(), d2.Get("Alice").ID())
	next, _ := d2.FindOrCreate("Carol")
	assert.Greater(t, next.ID(), b.ID())
}

func TestDirectory_LoadSkipsBadLines(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "players.txt")

	d := testDirectory(t)
	d.FindOrCreate("Good")
	require.NoError(t, d.Save(path))

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	require.NoError(t, err)
	_, err = f.WriteString("garbage line\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	d2 := testDirectory(t)
	skipped, err := d2.Load(path)
	require.NoError(t, err)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, d2.Count())
}
