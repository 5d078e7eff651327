// Package block defines the Classic protocol block types and the
// predicates the placement pipeline evaluates on them.
package block

// Type is a Classic block type id.
type Type byte

const (
	Air Type = iota
	Stone
	Grass
	Dirt
	Cobblestone
	Planks
	Sapling
	Admincrete
	Water
	StillWater
	Lava
	StillLava
	Sand
	Gravel
	GoldOre
	IronOre
	Coal
	Log
	Leaves
	Sponge
	Glass
	Red
	Orange
	Yellow
	Lime
	Green
	Teal
	Aqua
	Cyan
	Blue
	Indigo
	Violet
	Magenta
	Pink
	Black
	Gray
	White
	YellowFlower
	RedFlower
	BrownMushroom
	RedMushroom
	Gold
	Iron
	DoubleStair
	Stair
	Brick
	TNT
	Books
	MossyRocks
	Obsidian
)

// Count is the size of a per-type binding table.
const Count = 256

// Undefined marks a block type outside the vanilla Classic range.
const Undefined Type = 255

// IsWater reports whether t is flowing or still water.
func IsWater(t Type) bool { return t == Water || t == StillWater }

// IsLava reports whether t is flowing or still lava.
func IsLava(t Type) bool { return t == Lava || t == StillLava }

// IsLiquid reports whether placing or removing t requires a
// liquid permission.
func IsLiquid(t Type) bool { return IsWater(t) || IsLava(t) }
