package player

import (
	"strings"

	"github.com/blockhaven/classicd/pkg/classic/rank"
)

// DisplayNameOptions control decorated-name rendering.
type DisplayNameOptions struct {
	RankPrefixes bool
	RankColors   bool
}

// RenderDisplayName renders the decorated chat name for a player.
// It is the single place that knows how rank prefix, rank color and
// ban state combine.
func RenderDisplayName(r *rank.Rank, name string, banned bool, opts DisplayNameOptions) string {
	var b strings.Builder
	if banned {
		// Banned players render gray with a leading dash, regardless
		// of rank decoration.
		b.WriteString("&8-")
		b.WriteString(name)
		return b.String()
	}
	if opts.RankPrefixes && r != nil && r.Prefix != "" {
		b.WriteString(r.Prefix)
	}
	if opts.RankColors && r != nil && r.Color != "" {
		b.WriteString(r.Color)
	}
	b.WriteString(name)
	return b.String()
}

// DisplayName renders the record's decorated name.
func (p *Record) DisplayName(opts DisplayNameOptions) string {
	return RenderDisplayName(p.Rank(), p.Name(), p.IsBanned(), opts)
}
