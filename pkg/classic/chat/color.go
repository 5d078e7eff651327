// Package chat holds the flat &-code color model of Classic chat and
// shared message formatting helpers.
package chat

import "strings"

// ColorChar introduces a color code in chat text.
const ColorChar = '&'

// Common color codes by role, so call sites name intent, not hue.
const (
	Black     = "&0"
	Navy      = "&1"
	Green     = "&2"
	Teal      = "&3"
	Maroon    = "&4"
	Purple    = "&5"
	Olive     = "&6"
	Silver    = "&7"
	Gray      = "&8"
	Blue      = "&9"
	Lime      = "&a"
	Aqua      = "&b"
	Red       = "&c"
	Magenta   = "&d"
	Yellow    = "&e"
	White     = "&f"
	Sys       = Yellow // system notices
	Help      = Lime
	Warning   = Red
	Announce  = Green
	PM        = Aqua
	IRCBridge = Purple
)

// IsColorCode reports whether r is a valid code following ColorChar.
func IsColorCode(r rune) bool {
	return (r >= '0' && r <= '9') || (r >= 'a' && r <= 'f') || (r >= 'A' && r <= 'F')
}

// Strip removes all color codes, returning the plain text.
func Strip(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		if runes[i] == ColorChar && i+1 < len(runes) && IsColorCode(runes[i+1]) {
			i++
			continue
		}
		b.WriteRune(runes[i])
	}
	return b.String()
}

// Escape doubles stray color chars so player-provided text cannot
// inject color codes.
func Escape(s string) string {
	return strings.ReplaceAll(s, string(ColorChar), string(ColorChar)+string(ColorChar))
}
