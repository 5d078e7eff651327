// Package world defines the collaborator interfaces the session core
// uses to read and mutate the authoritative map, plus the zone model
// layered on top of it. Map storage, generation and file formats live
// behind these interfaces.
package world

import (
	"math"

	"github.com/blockhaven/classicd/pkg/classic/block"
	"github.com/blockhaven/classicd/pkg/classic/security"
)

// Position is a player position in block units.
type Position struct {
	X, Y, Z    float64
	Yaw, Pitch byte
}

// DistanceTo returns the euclidean distance to a block coordinate.
func (p Position) DistanceTo(x, y, z int) float64 {
	dx := p.X - float64(x)
	dy := p.Y - float64(y)
	dz := p.Z - float64(z)
	return math.Sqrt(dx*dx + dy*dy + dz*dz)
}

// BlockUpdate is one queued mutation against the authoritative map.
type BlockUpdate struct {
	X, Y, Z int
	Block   block.Type
	// Origin is the name of the player causing the update, empty for
	// physics or system updates.
	Origin string
}

// Map is the authoritative block store of one world. QueueUpdate is
// asynchronous: the update is flushed to storage and broadcast to
// clients by the map's own machinery.
type Map interface {
	Block(x, y, z int) block.Type
	QueueUpdate(u BlockUpdate)
	InBounds(x, y, z int) bool
}

// World is one loaded world.
type World interface {
	Name() string
	// IsLocked reports whether the world is read-only.
	IsLocked() bool
	// AccessSecurity gates who may join the world.
	AccessSecurity() *security.Controller
	// BuildSecurity gates who may build in the world.
	BuildSecurity() *security.Controller
	Zones() *ZoneCollection
	Map() Map
}
