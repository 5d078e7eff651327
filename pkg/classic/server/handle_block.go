package server

import (
	"fmt"
	"time"

	"github.com/blockhaven/classicd/pkg/classic/block"
	"github.com/blockhaven/classicd/pkg/classic/chat"
	"github.com/blockhaven/classicd/pkg/classic/proto"
	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/classic/security"
	"github.com/blockhaven/classicd/pkg/classic/world"
)

// ClickMode is the client's stated intent for a block click.
type ClickMode uint8

const (
	ClickDelete ClickMode = iota
	ClickBuild
)

// PlaceResult is the outcome of one block click.
type PlaceResult uint8

const (
	// PlaceAccepted means the update was queued against the map.
	PlaceAccepted PlaceResult = iota
	// PlaceRejected means the client's speculative edit was reverted.
	PlaceRejected
	// PlaceKick means the block-spam threshold was exceeded and the
	// session must be disconnected.
	PlaceKick
)

// CanPlaceResult is the verdict of the placement permission pipeline.
type CanPlaceResult uint8

const (
	PlaceAllowed CanPlaceResult = iota
	// DeniedBlockType means the block type needs a permission the
	// player's rank lacks.
	DeniedBlockType
	// DeniedZone means a zone covering the coordinate excludes the
	// player.
	DeniedZone
	// DeniedRankTooLow means the world's build policy requires a
	// higher rank.
	DeniedRankTooLow
	// DeniedBlacklisted means the player is explicitly excluded from
	// building in the world.
	DeniedBlacklisted
)

// Allowed reports whether the verdict permits the placement.
func (r CanPlaceResult) Allowed() bool { return r == PlaceAllowed }

func (r CanPlaceResult) message() string {
	switch r {
	case DeniedBlockType:
		return "You are not allowed to place or delete this block type."
	case DeniedZone:
		return "You are not allowed to build in this zone."
	case DeniedRankTooLow:
		return "Your rank is not allowed to build in this world."
	case DeniedBlacklisted:
		return "You are blacklisted from building in this world."
	}
	return ""
}

// PlaceBlock runs one client block click through the placement
// pipeline: ordered pre-checks, binding substitution, selection
// interception, the stair-stacking rule, the permission pipeline and
// finally the map mutation. The client has already speculatively
// applied its edit, so every rejection sends the authoritative block
// back.
func (s *Session) PlaceBlock(x, y, z int, mode ClickMode, raw block.Type) PlaceResult {
	now := time.Now()
	w := s.World()
	m := w.Map()
	if !m.InBounds(x, y, z) {
		return PlaceRejected
	}

	// Frozen players and clicks beyond reach are likely hack
	// attempts; revert without comment.
	reach := s.server.cfg.MaxReachDistance
	if s.record.IsFrozen() || (reach > 0 && s.Position().DistanceTo(x, y, z) > reach) {
		s.revert(m, x, y, z)
		return PlaceRejected
	}
	if s.SpectateTarget() != nil {
		s.revert(m, x, y, z)
		s.SendMessage(chat.Warning + "You cannot build while spectating.")
		return PlaceRejected
	}
	if w.IsLocked() {
		s.revert(m, x, y, z)
		s.SendMessage(chat.Warning + "This world is locked (no building).")
		return PlaceRejected
	}
	if s.blockWindow.Trip(now) {
		s.server.kickForGrief(s)
		return PlaceKick
	}

	effective := s.Bound(raw)
	if mode == ClickDelete && !s.Paint() {
		effective = block.Air
	}

	if s.addMark(Mark{X: x, Y: y, Z: z}) {
		s.revert(m, x, y, z)
		return PlaceRejected
	}

	// Stacking a stair on a stair forms a double stair one level
	// below the click instead of two single slabs.
	tx, ty, tz := x, y, z
	shifted := false
	if effective == block.Stair && z > 0 && m.Block(x, y, z-1) == block.Stair {
		tz = z - 1
		effective = block.DoubleStair
		shifted = true
	}
	old := m.Block(tx, ty, tz)

	verdict := s.CanPlace(w, tx, ty, tz, effective)
	if !verdict.Allowed() {
		s.revert(m, x, y, z)
		if msg := verdict.message(); msg != "" {
			s.SendMessage(chat.Warning + msg)
		}
		return PlaceRejected
	}

	m.QueueUpdate(world.BlockUpdate{X: tx, Y: ty, Z: tz, Block: effective, Origin: s.Name()})
	if effective == block.Air && old != block.Air {
		s.record.IncBlocks(0, 1, 0)
	} else {
		s.record.IncBlocks(1, 0, 0)
	}
	if effective != block.Air {
		s.mu.Lock()
		s.lastUsedBlock = effective
		s.mu.Unlock()
	}

	// Reconcile the client's prediction with the authoritative
	// outcome.
	if shifted {
		s.revert(m, x, y, z)
		s.writer.Send(&proto.SetBlock{X: tx, Y: ty, Z: tz, Block: effective})
	} else {
		predicted := raw
		if mode == ClickDelete {
			predicted = block.Air
		}
		if effective != predicted {
			s.writer.Send(&proto.SetBlock{X: x, Y: y, Z: z, Block: effective})
		}
	}
	return PlaceAccepted
}

// revert overwrites the client's speculative edit with the true block.
func (s *Session) revert(m world.Map, x, y, z int) {
	s.writer.SendNow(&proto.SetBlock{X: x, Y: y, Z: z, Block: m.Block(x, y, z)})
}

// CanPlace resolves placement permission for putting t at the
// coordinate, in strict precedence order: block-type permissions,
// zone overrides (terminal either way), then the world's build policy
// combined with the rank's build/delete permissions. The verdict may
// be overridden by a BlockPlaceEvent subscriber.
func (s *Session) CanPlace(w world.World, x, y, z int, t block.Type) CanPlaceResult {
	old := w.Map().Block(x, y, z)
	verdict := s.canPlace(w, x, y, z, t, old)
	evt := &BlockPlaceEvent{session: s, x: x, y: y, z: z, old: old, block: t, result: verdict}
	s.server.events.Fire(evt)
	return evt.Result()
}

func (s *Session) canPlace(w world.World, x, y, z int, t block.Type, old block.Type) CanPlaceResult {
	r := s.Rank()

	switch {
	case t == block.Admincrete && !r.Can(rank.PlaceAdmincrete):
		return DeniedBlockType
	case block.IsWater(t) && !r.Can(rank.PlaceWater):
		return DeniedBlockType
	case block.IsLava(t) && !r.Can(rank.PlaceLava):
		return DeniedBlockType
	case block.IsWater(old) && t == block.Air && !r.Can(rank.PlaceWater):
		return DeniedBlockType
	case block.IsLava(old) && t == block.Air && !r.Can(rank.PlaceLava):
		return DeniedBlockType
	case old == block.Admincrete && !r.Can(rank.DeleteAdmincrete):
		return DeniedBlockType
	}

	// Zones override world and rank checks in both directions.
	switch w.Zones().Check(x, y, z, r, s.Name()) {
	case world.OverrideDeny:
		return DeniedZone
	case world.OverrideAllow:
		return PlaceAllowed
	}

	check := w.BuildSecurity().CheckDetailed(r, s.Name())
	if check.Passed() {
		// A build-only rank may still clear its own misplaced air and
		// a delete-only rank may fill holes, hence the asymmetry.
		canBuild := r.Can(rank.Build) || t == block.Air
		canDelete := r.Can(rank.Delete) || old == block.Air
		if canBuild && canDelete {
			return PlaceAllowed
		}
		return DeniedRankTooLow
	}
	if check == security.DeniedExcluded {
		return DeniedBlacklisted
	}
	return DeniedRankTooLow
}

// kickForGrief handles a tripped block window: announce and
// disconnect.
func (s *Server) kickForGrief(sess *Session) {
	rec := sess.Record()
	rec.IncTimesKicked()
	s.log.Info("kicked for block spam", "player", rec.Name())
	s.chat.BroadcastSys(fmt.Sprintf(chat.Warning+"%s was kicked for suspected griefing.", rec.Name()))
	sess.Kick("You were kicked for suspected griefing.")
	s.events.Fire(&KickedEvent{Target: rec, Actor: "(console)", Reason: "suspected griefing"})
}
