package world

import (
	"strings"
	"sync"

	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/classic/security"
)

// Bounds is an inclusive axis-aligned box of block coordinates.
type Bounds struct {
	MinX, MinY, MinZ int
	MaxX, MaxY, MaxZ int
}

// Contains reports whether the coordinate lies inside the bounds.
func (b Bounds) Contains(x, y, z int) bool {
	return x >= b.MinX && x <= b.MaxX &&
		y >= b.MinY && y <= b.MaxY &&
		z >= b.MinZ && z <= b.MaxZ
}

// Zone is a sub-region of a world with its own security override.
type Zone struct {
	Name       string
	Bounds     Bounds
	Controller *security.Controller
}

// NewZone returns a zone with an unrestricted controller.
func NewZone(name string, bounds Bounds) *Zone {
	return &Zone{Name: name, Bounds: bounds, Controller: security.NewController()}
}

// Override is the terminal verdict of the zone layer for a coordinate.
type Override uint8

const (
	// OverrideNone means no zone covers the coordinate; world-level
	// checks decide.
	OverrideNone Override = iota
	OverrideAllow
	OverrideDeny
)

// ZoneCollection is the set of zones of one world.
type ZoneCollection struct {
	mu    sync.RWMutex
	zones []*Zone
}

func NewZoneCollection() *ZoneCollection {
	return &ZoneCollection{}
}

// Add inserts a zone and reports whether the name was free.
func (c *ZoneCollection) Add(z *Zone) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.zones {
		if strings.EqualFold(existing.Name, z.Name) {
			return false
		}
	}
	c.zones = append(c.zones, z)
	return true
}

// Remove deletes the named zone and reports whether it existed.
func (c *ZoneCollection) Remove(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, z := range c.zones {
		if strings.EqualFold(z.Name, name) {
			c.zones = append(c.zones[:i], c.zones[i+1:]...)
			return true
		}
	}
	return false
}

// Find returns the named zone, nil if absent.
func (c *ZoneCollection) Find(name string) *Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, z := range c.zones {
		if strings.EqualFold(z.Name, name) {
			return z
		}
	}
	return nil
}

// All returns a copy of the zone list.
func (c *ZoneCollection) All() []*Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*Zone, len(c.zones))
	copy(out, c.zones)
	return out
}

// Check resolves the zone layer's verdict for a player at a
// coordinate. Any denying zone wins; otherwise a covering zone that
// admits the player yields an explicit allow that overrides world and
// rank checks.
func (c *ZoneCollection) Check(x, y, z int, r *rank.Rank, name string) Override {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := OverrideNone
	for _, zone := range c.zones {
		if !zone.Bounds.Contains(x, y, z) {
			continue
		}
		if !zone.Controller.Check(r, name) {
			return OverrideDeny
		}
		result = OverrideAllow
	}
	return result
}

// FindDenied returns the first zone denying the player at the
// coordinate, nil if none does. Used for messaging.
func (c *ZoneCollection) FindDenied(x, y, z int, r *rank.Rank, name string) *Zone {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, zone := range c.zones {
		if zone.Bounds.Contains(x, y, z) && !zone.Controller.Check(r, name) {
			return zone
		}
	}
	return nil
}
