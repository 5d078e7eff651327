// Package rank models the totally ordered permission tiers of the server.
//
// Ranks are ordered by Index where a lower index means higher authority,
// matching the classic rank-file convention.
package rank

import "strings"

// Permission is a named boolean capability granted to a rank.
type Permission string

const (
	Chat             Permission = "chat"
	Build            Permission = "build"
	Delete           Permission = "delete"
	PlaceAdmincrete  Permission = "place-admincrete"
	DeleteAdmincrete Permission = "delete-admincrete"
	PlaceWater       Permission = "place-water"
	PlaceLava        Permission = "place-lava"
	Ban              Permission = "ban"
	BanIP            Permission = "ban-ip"
	BanAll           Permission = "ban-all"
	Kick             Permission = "kick"
	Mute             Permission = "mute"
	Freeze           Permission = "freeze"
	Hide             Permission = "hide"
	ViewPlayerIPs    Permission = "view-player-ips"
	ReadStaffChat    Permission = "read-staff-chat"
	UseColorCodes    Permission = "use-color-codes"
	Draw             Permission = "draw"
)

var allPermissions = []Permission{
	Chat, Build, Delete, PlaceAdmincrete, DeleteAdmincrete, PlaceWater,
	PlaceLava, Ban, BanIP, BanAll, Kick, Mute, Freeze, Hide, ViewPlayerIPs,
	ReadStaffChat, UseColorCodes, Draw,
}

// Permissions returns every known permission name.
func Permissions() []Permission {
	out := make([]Permission, len(allPermissions))
	copy(out, allPermissions)
	return out
}

// ParsePermission resolves a permission by its config name.
func ParsePermission(s string) (Permission, bool) {
	for _, p := range allPermissions {
		if strings.EqualFold(s, string(p)) {
			return p, true
		}
	}
	return "", false
}

// AntiGrief is the per-rank block-edit sliding window: more than Blocks
// edits within Seconds is treated as grief.
type AntiGrief struct {
	Blocks  int
	Seconds int
}

// Rank is one permission tier.
type Rank struct {
	Name   string
	Index  int    // lower index = higher authority
	Color  string // legacy color code, e.g. "&e"
	Prefix string

	AntiGrief AntiGrief

	permissions map[Permission]bool
	// limits maps a permission to the lowest-authority rank the holder may
	// target with it. A nil entry means the holder's own rank is the limit.
	limits map[Permission]*Rank
}

// New returns a rank granting the given permissions.
func New(name string, index int, perms ...Permission) *Rank {
	r := &Rank{
		Name:        name,
		Index:       index,
		permissions: make(map[Permission]bool, len(perms)),
		limits:      make(map[Permission]*Rank),
	}
	for _, p := range perms {
		r.permissions[p] = true
	}
	return r
}

// Can reports whether the rank holds the permission.
func (r *Rank) Can(p Permission) bool {
	if r == nil {
		return false
	}
	return r.permissions[p]
}

// Grant adds permissions to the rank.
func (r *Rank) Grant(perms ...Permission) *Rank {
	for _, p := range perms {
		r.permissions[p] = true
	}
	return r
}

// SetLimit restricts p to targets at or below the authority of limit.
func (r *Rank) SetLimit(p Permission, limit *Rank) *Rank {
	r.limits[p] = limit
	return r
}

// Limit returns the lowest-authority rank r may target with p.
// Defaults to r itself: a rank may always act on its own tier and below.
func (r *Rank) Limit(p Permission) *Rank {
	if l, ok := r.limits[p]; ok && l != nil {
		return l
	}
	return r
}

// CanTarget reports whether r may apply p to a player of rank target.
func (r *Rank) CanTarget(p Permission, target *Rank) bool {
	if !r.Can(p) {
		return false
	}
	return !target.HigherThan(r.Limit(p))
}

// AtLeast reports whether r has authority greater than or equal to min.
func (r *Rank) AtLeast(min *Rank) bool {
	if min == nil {
		return true
	}
	if r == nil {
		return false
	}
	return r.Index <= min.Index
}

// HigherThan reports whether r strictly outranks other.
func (r *Rank) HigherThan(other *Rank) bool {
	if r == nil || other == nil {
		return false
	}
	return r.Index < other.Index
}

// Registry holds the ordered set of ranks configured on the server.
type Registry struct {
	ranks   []*Rank // sorted by Index ascending (highest authority first)
	byName  map[string]*Rank
	Default *Rank // rank assigned to new players
}

// NewRegistry builds a registry from ranks already sorted by authority,
// highest first. The last rank becomes the default unless overridden.
func NewRegistry(ranks ...*Rank) *Registry {
	reg := &Registry{byName: make(map[string]*Rank, len(ranks))}
	for _, r := range ranks {
		reg.ranks = append(reg.ranks, r)
		reg.byName[strings.ToLower(r.Name)] = r
	}
	if len(ranks) != 0 {
		reg.Default = ranks[len(ranks)-1]
	}
	return reg
}

// ByName looks a rank up case-insensitively. Returns nil if unknown.
func (reg *Registry) ByName(name string) *Rank {
	return reg.byName[strings.ToLower(name)]
}

// Lowest returns the rank with the least authority.
func (reg *Registry) Lowest() *Rank {
	if len(reg.ranks) == 0 {
		return nil
	}
	return reg.ranks[len(reg.ranks)-1]
}

// Highest returns the rank with the most authority.
func (reg *Registry) Highest() *Rank {
	if len(reg.ranks) == 0 {
		return nil
	}
	return reg.ranks[0]
}

// All returns the ranks ordered by authority, highest first.
func (reg *Registry) All() []*Rank {
	out := make([]*Rank, len(reg.ranks))
	copy(out, reg.ranks)
	return out
}

// MinRankWith returns the lowest-authority rank holding all given
// permissions, or nil if no rank holds them.
func (reg *Registry) MinRankWith(perms ...Permission) *Rank {
	for i := len(reg.ranks) - 1; i >= 0; i-- {
		r := reg.ranks[i]
		ok := true
		for _, p := range perms {
			if !r.Can(p) {
				ok = false
				break
			}
		}
		if ok {
			return r
		}
	}
	return nil
}
