package world

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockhaven/classicd/pkg/classic/rank"
)

func testRanks(t *testing.T) *rank.Registry {
	t.Helper()
	owner := rank.New("owner", 0)
	builder := rank.New("builder", 1)
	guest := rank.New("guest", 2)
	return rank.NewRegistry(owner, builder, guest)
}

func TestBoundsContains(t *testing.T) {
	b := Bounds{MinX: 0, MinY: 0, MinZ: 0, MaxX: 10, MaxY: 10, MaxZ: 10}
	assert.True(t, b.Contains(0, 0, 0))
	assert.True(t, b.Contains(10, 10, 10))
	assert.True(t, b.Contains(5, 3, 7))
	assert.False(t, b.Contains(-1, 5, 5))
	assert.False(t, b.Contains(5, 11, 5))
}

func TestZoneCollectionAddRemoveFind(t *testing.T) {
	c := NewZoneCollection()
	z := NewZone("spawn", Bounds{MaxX: 5, MaxY: 5, MaxZ: 5})
	require.True(t, c.Add(z))
	assert.False(t, c.Add(NewZone("Spawn", Bounds{})), "names are case-insensitive")

	assert.Same(t, z, c.Find("SPAWN"))
	assert.Nil(t, c.Find("other"))

	assert.True(t, c.Remove("spawn"))
	assert.False(t, c.Remove("spawn"))
	assert.Nil(t, c.Find("spawn"))
}

func TestZoneCheck(t *testing.T) {
	reg := testRanks(t)
	owner := reg.ByName("owner")
	guest := reg.ByName("guest")

	c := NewZoneCollection()

	// No zone covers the coordinate.
	assert.Equal(t, OverrideNone, c.Check(50, 50, 50, guest, "alice"))

	protected := NewZone("protected", Bounds{MaxX: 10, MaxY: 10, MaxZ: 10})
	protected.Controller.SetMinRank(owner)
	require.True(t, c.Add(protected))

	assert.Equal(t, OverrideDeny, c.Check(5, 5, 5, guest, "alice"))
	assert.Equal(t, OverrideAllow, c.Check(5, 5, 5, owner, "admin"))
	assert.Equal(t, OverrideNone, c.Check(11, 5, 5, guest, "alice"))
}

func TestZoneCheckDenyWinsOverlap(t *testing.T) {
	reg := testRanks(t)
	owner := reg.ByName("owner")
	guest := reg.ByName("guest")

	open := NewZone("open", Bounds{MaxX: 20, MaxY: 20, MaxZ: 20})
	closed := NewZone("closed", Bounds{MinX: 5, MinY: 5, MinZ: 5, MaxX: 10, MaxY: 10, MaxZ: 10})
	closed.Controller.SetMinRank(owner)

	c := NewZoneCollection()
	require.True(t, c.Add(open))
	require.True(t, c.Add(closed))

	// Overlap: the denying zone wins regardless of the permissive one.
	assert.Equal(t, OverrideDeny, c.Check(7, 7, 7, guest, "alice"))
	// Outside the denying zone the permissive one allows.
	assert.Equal(t, OverrideAllow, c.Check(2, 2, 2, guest, "alice"))
}

func TestZoneCheckIncludedName(t *testing.T) {
	reg := testRanks(t)
	owner := reg.ByName("owner")
	guest := reg.ByName("guest")

	z := NewZone("vip", Bounds{MaxX: 10, MaxY: 10, MaxZ: 10})
	z.Controller.SetMinRank(owner)
	z.Controller.Include("alice")

	c := NewZoneCollection()
	require.True(t, c.Add(z))

	assert.Equal(t, OverrideAllow, c.Check(1, 1, 1, guest, "Alice"))
	assert.Equal(t, OverrideDeny, c.Check(1, 1, 1, guest, "bob"))
	assert.Same(t, z, c.FindDenied(1, 1, 1, guest, "bob"))
	assert.Nil(t, c.FindDenied(1, 1, 1, guest, "Alice"))
}
