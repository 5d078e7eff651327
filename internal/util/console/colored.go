// Package console renders legacy '&' color coded chat text as ANSI
// colored terminal output.
package console

import (
	"strings"

	"github.com/gookit/color"

	"github.com/blockhaven/classicd/pkg/classic/chat"
)

// AnsiFromLegacy converts '&' color codes in s to ANSI escapes.
func AnsiFromLegacy(s string) string {
	b := new(strings.Builder)
	var x bool
	c := func(s string) string { return s }
	for _, r := range s {
		if r == chat.ColorChar && !x {
			x = true
			continue
		}
		if x {
			x = false
			if r == 'r' {
				c = func(s string) string { return s }
				continue
			}
			wrap := c
			conv := convert(r)
			c = func(s string) string { return wrap(conv.Sprint(s)) }
			continue
		}
		b.WriteString(c(string(r)))
	}
	return b.String()
}

func convert(r rune) color.Color {
	switch r {
	case 'a':
		return color.LightGreen
	case 'b':
		return color.LightBlue
	case 'c':
		return color.LightRed
	case 'd':
		return color.LightMagenta
	case 'e':
		return color.LightYellow
	case 'f':
		return color.LightWhite
	case '0':
		return color.Black
	case '1':
		return color.Blue
	case '2':
		return color.Green
	case '3':
		return color.Cyan
	case '4':
		return color.Red
	case '5':
		return color.Magenta
	case '6':
		return color.Yellow
	case '7':
		return color.White
	case '8':
		return color.Gray
	case '9':
		return color.LightCyan
	default:
		return color.OpReset
	}
}
