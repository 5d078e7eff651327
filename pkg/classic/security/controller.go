// Package security implements the layered access policy attached to
// worlds ("can join", "can build") and zones.
//
// A Controller combines a minimum rank threshold with explicit
// include/exclude player lists. Exclusion always wins, then the rank
// threshold, then inclusion.
package security

import (
	"strings"
	"sync"

	"github.com/blockhaven/classicd/pkg/classic/rank"
	"github.com/blockhaven/classicd/pkg/util/sets"
)

// CheckResult is the detailed outcome of a Controller check.
type CheckResult uint8

const (
	// Allowed via the rank threshold.
	Allowed CheckResult = iota
	// AllowedIncluded via the explicit include list despite failing the
	// rank threshold.
	AllowedIncluded
	// DeniedExcluded by the explicit exclude list.
	DeniedExcluded
	// DeniedRankTooLow by the rank threshold.
	DeniedRankTooLow
)

// Passed reports whether the result grants access.
func (r CheckResult) Passed() bool {
	return r == Allowed || r == AllowedIncluded
}

func (r CheckResult) String() string {
	switch r {
	case Allowed:
		return "allowed"
	case AllowedIncluded:
		return "allowed (white-listed)"
	case DeniedExcluded:
		return "denied (black-listed)"
	case DeniedRankTooLow:
		return "denied (rank too low)"
	}
	return "unknown"
}

// OverrideState is a player's standing on a Controller's explicit lists.
type OverrideState uint8

const (
	OverrideNone OverrideState = iota
	OverrideIncluded
	OverrideExcluded
)

// Controller is a reusable per-resource access policy.
// The zero value of MinRank (nil) means no rank restriction.
type Controller struct {
	mu       sync.RWMutex
	minRank  *rank.Rank
	included sets.String // canonical (lowered) player names
	excluded sets.String
}

// NewController returns a Controller with no restriction.
func NewController() *Controller {
	return &Controller{
		included: sets.NewString(),
		excluded: sets.NewString(),
	}
}

// MinRank returns the configured minimum rank, nil if unrestricted.
func (c *Controller) MinRank() *rank.Rank {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minRank
}

// SetMinRank sets the minimum rank threshold. Nil clears the restriction.
func (c *Controller) SetMinRank(r *rank.Rank) {
	c.mu.Lock()
	c.minRank = r
	c.mu.Unlock()
}

// Check reports whether a player of the given name and rank passes.
func (c *Controller) Check(r *rank.Rank, name string) bool {
	return c.CheckDetailed(r, name).Passed()
}

// CheckDetailed evaluates the policy in its fixed order:
// exclusion, rank threshold, inclusion, deny.
func (c *Controller) CheckDetailed(r *rank.Rank, name string) CheckResult {
	key := canonical(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.excluded.Has(key) {
		return DeniedExcluded
	}
	if r.AtLeast(c.minRank) {
		return Allowed
	}
	if c.included.Has(key) {
		return AllowedIncluded
	}
	return DeniedRankTooLow
}

// Override returns the player's current standing on the explicit lists.
func (c *Controller) Override(name string) OverrideState {
	key := canonical(name)
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.overrideLocked(key)
}

func (c *Controller) overrideLocked(key string) OverrideState {
	switch {
	case c.included.Has(key):
		return OverrideIncluded
	case c.excluded.Has(key):
		return OverrideExcluded
	}
	return OverrideNone
}

// Include white-lists the player and returns their previous standing.
// Including a previously excluded player removes the exclusion; the two
// lists never hold the same player at once.
func (c *Controller) Include(name string) OverrideState {
	key := canonical(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.overrideLocked(key)
	c.excluded.Delete(key)
	c.included.Insert(key)
	return prev
}

// Exclude black-lists the player and returns their previous standing.
func (c *Controller) Exclude(name string) OverrideState {
	key := canonical(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.overrideLocked(key)
	c.included.Delete(key)
	c.excluded.Insert(key)
	return prev
}

// Remove clears the player from both lists and returns their previous
// standing.
func (c *Controller) Remove(name string) OverrideState {
	key := canonical(name)
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.overrideLocked(key)
	c.included.Delete(key)
	c.excluded.Delete(key)
	return prev
}

// Included returns the white-listed names in no particular order.
func (c *Controller) Included() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.included.UnsortedList()
}

// Excluded returns the black-listed names in no particular order.
func (c *Controller) Excluded() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.excluded.UnsortedList()
}

// HasRestrictions reports whether the policy restricts anyone at all.
func (c *Controller) HasRestrictions() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.minRank != nil || c.excluded.Len() != 0
}

func canonical(name string) string { return strings.ToLower(name) }
