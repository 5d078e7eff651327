package server

import (
	"net"
	"testing"
	"time"

	"github.com/robinbraemer/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blockhaven/classicd/pkg/classic/block"
	"github.com/blockhaven/classicd/pkg/classic/player"
	"github.com/blockhaven/classicd/pkg/classic/proto"
	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/classic/world"
)

func TestPlaceBlockAccepted(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)

	res := alice.PlaceBlock(5, 5, 5, ClickBuild, block.Stone)
	assert.Equal(t, PlaceAccepted, res)

	updates := f.world.m.queued()
	require.Len(t, updates, 1)
	assert.Equal(t, world.BlockUpdate{X: 5, Y: 5, Z: 5, Block: block.Stone, Origin: "Alice"}, updates[0])
	assert.Empty(t, aw.setBlocks(), "client prediction already matches")
	assert.Equal(t, int64(1), alice.Record().Stats().BlocksBuilt)
	assert.Equal(t, block.Stone, alice.LastUsedBlock())
}

func TestPlaceBlockDelete(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.join(t, "Alice", f.member)
	f.world.m.set(5, 5, 5, block.Stone)

	res := alice.PlaceBlock(5, 5, 5, ClickDelete, block.Stone)
	assert.Equal(t, PlaceAccepted, res)

	updates := f.world.m.queued()
	require.Len(t, updates, 1)
	assert.Equal(t, block.Air, updates[0].Block)
	assert.Equal(t, int64(1), alice.Record().Stats().BlocksDeleted)
}

func TestPlaceBlockBindingSubstitution(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)
	alice.Bind(block.Stone, block.Glass)

	res := alice.PlaceBlock(5, 5, 5, ClickBuild, block.Stone)
	assert.Equal(t, PlaceAccepted, res)

	updates := f.world.m.queued()
	require.Len(t, updates, 1)
	assert.Equal(t, block.Glass, updates[0].Block)
	// The client predicted stone, correct it.
	require.Len(t, aw.setBlocks(), 1)
	assert.Equal(t, block.Glass, aw.setBlocks()[0].Block)
}

func TestPlaceBlockPaintMode(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.join(t, "Alice", f.member)
	f.world.m.set(5, 5, 5, block.Dirt)
	alice.SetPaint(true)

	res := alice.PlaceBlock(5, 5, 5, ClickDelete, block.Stone)
	assert.Equal(t, PlaceAccepted, res)

	updates := f.world.m.queued()
	require.Len(t, updates, 1)
	assert.Equal(t, block.Stone, updates[0].Block, "paint mode replaces instead of deleting")
}

func TestPlaceBlockFrozenSilentRevert(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)
	alice.Record().Freeze("console", time.Now())

	res := alice.PlaceBlock(5, 5, 5, ClickBuild, block.Stone)
	assert.Equal(t, PlaceRejected, res)
	assert.Empty(t, f.world.m.queued())
	require.Len(t, aw.setBlocks(), 1)
	assert.Equal(t, block.Air, aw.setBlocks()[0].Block)
	assert.Empty(t, aw.messages(), "hack-suspect revert carries no message")
}

func TestPlaceBlockOutOfReach(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)

	res := alice.PlaceBlock(120, 120, 120, ClickBuild, block.Stone)
	assert.Equal(t, PlaceRejected, res)
	assert.Empty(t, f.world.m.queued())
	assert.Empty(t, aw.messages())
}

func TestPlaceBlockReachZeroDisablesCheck(t *testing.T) {
	f := newFixture(t)
	f.srv.cfg.MaxReachDistance = 0
	alice, _ := f.join(t, "Alice", f.member)

	res := alice.PlaceBlock(120, 120, 120, ClickBuild, block.Stone)
	assert.Equal(t, PlaceAccepted, res)
	require.Len(t, f.world.m.queued(), 1)
}

func TestPlaceBlockSpectatingRevert(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)
	bob, _ := f.join(t, "Bob", f.member)
	require.NoError(t, alice.Spectate(bob))
	aw.reset()

	res := alice.PlaceBlock(5, 5, 5, ClickBuild, block.Stone)
	assert.Equal(t, PlaceRejected, res)
	require.NotEmpty(t, aw.messages())
	assert.Contains(t, aw.messages()[0], "spectating")
}

func TestPlaceBlockLockedWorld(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)
	f.world.locked = true

	res := alice.PlaceBlock(5, 5, 5, ClickBuild, block.Stone)
	assert.Equal(t, PlaceRejected, res)
	require.NotEmpty(t, aw.messages())
	assert.Contains(t, aw.messages()[0], "locked")
}

func TestPlaceBlockGriefKick(t *testing.T) {
	f := newFixture(t)
	grief := rank.New("grieftest", 1, rank.Chat, rank.Build, rank.Delete)
	grief.AntiGrief = rank.AntiGrief{Blocks: 2, Seconds: 10}
	alice, aw := f.join(t, "Alice", grief)

	assert.Equal(t, PlaceAccepted, alice.PlaceBlock(1, 1, 1, ClickBuild, block.Stone))
	assert.Equal(t, PlaceAccepted, alice.PlaceBlock(2, 1, 1, ClickBuild, block.Stone))
	res := alice.PlaceBlock(3, 1, 1, ClickBuild, block.Stone)
	assert.Equal(t, PlaceKick, res)
	assert.True(t, aw.disconnected())
	assert.Len(t, f.world.m.queued(), 2, "the tripping click edits nothing")
}

func TestPlaceBlockSelectionInterception(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)

	var got []Mark
	alice.StartSelection(2, func(s *Session, marks []Mark) { got = marks })
	aw.reset()

	assert.Equal(t, PlaceRejected, alice.PlaceBlock(1, 2, 3, ClickBuild, block.Stone))
	assert.Equal(t, PlaceRejected, alice.PlaceBlock(4, 5, 6, ClickBuild, block.Stone))

	assert.Empty(t, f.world.m.queued(), "selection clicks never edit the map")
	assert.Equal(t, []Mark{{1, 2, 3}, {4, 5, 6}}, got)
	assert.False(t, alice.IsMakingSelection())

	// Both clicks were reverted.
	assert.Len(t, aw.setBlocks(), 2)
}

func TestPlaceBlockStairStacking(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)
	f.world.m.set(5, 5, 4, block.Stair)

	res := alice.PlaceBlock(5, 5, 5, ClickBuild, block.Stair)
	assert.Equal(t, PlaceAccepted, res)

	updates := f.world.m.queued()
	require.Len(t, updates, 1, "exactly one queued update")
	assert.Equal(t, world.BlockUpdate{X: 5, Y: 5, Z: 4, Block: block.DoubleStair, Origin: "Alice"}, updates[0])

	// The click coordinate is reverted and the shifted coordinate
	// updated.
	blocks := aw.setBlocks()
	require.Len(t, blocks, 2)
	assert.Equal(t, 5, blocks[0].Z)
	assert.Equal(t, block.Air, blocks[0].Block)
	assert.Equal(t, 4, blocks[1].Z)
	assert.Equal(t, block.DoubleStair, blocks[1].Block)
}

func TestCanPlaceBlockTypePermissions(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.join(t, "Alice", f.member)
	admin, _ := f.join(t, "Root", f.owner)

	assert.Equal(t, DeniedBlockType, alice.CanPlace(f.world, 1, 1, 1, block.Admincrete))
	assert.Equal(t, DeniedBlockType, alice.CanPlace(f.world, 1, 1, 1, block.Water))
	assert.Equal(t, DeniedBlockType, alice.CanPlace(f.world, 1, 1, 1, block.Lava))
	assert.Equal(t, PlaceAllowed, admin.CanPlace(f.world, 1, 1, 1, block.Admincrete))

	f.world.m.set(2, 2, 2, block.Admincrete)
	assert.Equal(t, DeniedBlockType, alice.CanPlace(f.world, 2, 2, 2, block.Air),
		"deleting admincrete needs its own permission")
	assert.Equal(t, PlaceAllowed, admin.CanPlace(f.world, 2, 2, 2, block.Air))
}

func TestCanPlaceZoneOverrides(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.join(t, "Alice", f.member)

	z := world.NewZone("vault", world.Bounds{MinX: 0, MinY: 0, MinZ: 0, MaxX: 10, MaxY: 10, MaxZ: 10})
	z.Controller.SetMinRank(f.owner)
	require.True(t, f.world.zones.Add(z))

	assert.Equal(t, DeniedZone, alice.CanPlace(f.world, 5, 5, 5, block.Stone))
	assert.Equal(t, PlaceAllowed, alice.CanPlace(f.world, 20, 20, 20, block.Stone))

	// An explicit zone inclusion overrides the world-level deny.
	z.Controller.Include("Alice")
	f.world.build.SetMinRank(f.owner)
	assert.Equal(t, PlaceAllowed, alice.CanPlace(f.world, 5, 5, 5, block.Stone))
	assert.Equal(t, DeniedRankTooLow, alice.CanPlace(f.world, 20, 20, 20, block.Stone))
}

func TestCanPlaceWorldSecurity(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.join(t, "Alice", f.member)

	f.world.build.Exclude("Alice")
	assert.Equal(t, DeniedBlacklisted, alice.CanPlace(f.world, 1, 1, 1, block.Stone))

	f.world.build.Remove("Alice")
	f.world.build.SetMinRank(f.owner)
	assert.Equal(t, DeniedRankTooLow, alice.CanPlace(f.world, 1, 1, 1, block.Stone))
}

func TestCanPlaceAsymmetricBuildDelete(t *testing.T) {
	f := newFixture(t)
	buildOnly := rank.New("buildonly", 1, rank.Chat, rank.Build)
	deleteOnly := rank.New("deleteonly", 1, rank.Chat, rank.Delete)
	builder, _ := f.join(t, "Builder", buildOnly)
	deleter, _ := f.join(t, "Deleter", deleteOnly)

	// Build-only may place on air and delete nothing else.
	assert.Equal(t, PlaceAllowed, builder.CanPlace(f.world, 1, 1, 1, block.Stone))
	f.world.m.set(2, 2, 2, block.Stone)
	assert.Equal(t, DeniedRankTooLow, builder.CanPlace(f.world, 2, 2, 2, block.Air))
	assert.Equal(t, DeniedRankTooLow, builder.CanPlace(f.world, 2, 2, 2, block.Dirt),
		"replacing requires delete permission too")

	// Delete-only may clear blocks and fill nothing.
	assert.Equal(t, PlaceAllowed, deleter.CanPlace(f.world, 2, 2, 2, block.Air))
	assert.Equal(t, DeniedRankTooLow, deleter.CanPlace(f.world, 3, 3, 3, block.Stone))
}

func TestCanPlaceEventOverride(t *testing.T) {
	f := newFixture(t)
	alice, _ := f.join(t, "Alice", f.member)

	event.Subscribe(f.srv.Event(), 0, func(e *BlockPlaceEvent) {
		e.SetResult(DeniedZone)
	})
	assert.Equal(t, DeniedZone, alice.CanPlace(f.world, 1, 1, 1, block.Stone))

	res := alice.PlaceBlock(1, 1, 1, ClickBuild, block.Stone)
	assert.Equal(t, PlaceRejected, res)
	assert.Empty(t, f.world.m.queued())
}

func TestSpectateFollow(t *testing.T) {
	f := newFixture(t)
	alice, aw := f.join(t, "Alice", f.member)
	bob, _ := f.join(t, "Bob", f.member)

	require.NoError(t, alice.Spectate(bob))
	assert.Error(t, alice.Spectate(alice))
	aw.reset()

	bob.UpdatePosition(world.Position{X: 10, Y: 20, Z: 30})
	var teleports int
	for _, p := range aw.all() {
		if _, ok := p.(*proto.Teleport); ok {
			teleports++
		}
	}
	assert.Equal(t, 1, teleports)

	assert.True(t, alice.StopSpectating())
	assert.False(t, alice.StopSpectating())
	assert.Same(t, bob, alice.LastSpectated(), "last target is sticky")
}

func TestHiddenNotAnnounced(t *testing.T) {
	f := newFixture(t)
	_, aw := f.join(t, "Alice", f.member)

	rec, _ := f.srv.Directory().FindOrCreate("Ghost")
	rec.SetRank(f.owner, "test", "", player.RankChangeDefault)
	rec.SetHidden(true)
	_, err := f.srv.RegisterSession("Ghost", &fakeWriter{}, f.world, net.ParseIP("10.9.9.9"))
	require.NoError(t, err)

	assert.Empty(t, aw.messages(), "hidden joins are silent")
}
