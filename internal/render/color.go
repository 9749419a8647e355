package render

import (
	"fmt"
	"image/color"
	"strings"
)

// namedColors are the CSS names the chart uses
var namedColors = map[string]color.RGBA{
	"white":  {0xff, 0xff, 0xff, 0xff},
	"black":  {0x00, 0x00, 0x00, 0xff},
	"grey":   {0x80, 0x80, 0x80, 0xff},
	"gray":   {0x80, 0x80, 0x80, 0xff},
	"red":    {0xff, 0x00, 0x00, 0xff},
	"orange": {0xff, 0xa5, 0x00, 0xff},
	"violet": {0xee, 0x82, 0xee, 0xff},
	"salmon": {0xfa, 0x80, 0x72, 0xff},
	"yellow": {0xff, 0xff, 0x00, 0xff},
	"blue":   {0x00, 0x00, 0xff, 0xff},
	"cyan":   {0x00, 0xff, 0xff, 0xff},
}

// parseColor resolves a CSS color name or a #rgb/#rrggbb hex string. It
// reports false for "none", "transparent" and anything it cannot parse, in
// which case nothing should be painted.
func parseColor(s string) (color.RGBA, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, true
	}

	var r, g, b uint8
	switch {
	case len(s) == 7 && s[0] == '#':
		if _, err := fmt.Sscanf(s, "#%02x%02x%02x", &r, &g, &b); err != nil {
			return color.RGBA{}, false
		}
	case len(s) == 4 && s[0] == '#':
		if _, err := fmt.Sscanf(s, "#%1x%1x%1x", &r, &g, &b); err != nil {
			return color.RGBA{}, false
		}
		r, g, b = r*0x11, g*0x11, b*0x11
	default:
		return color.RGBA{}, false
	}
	return color.RGBA{R: r, G: g, B: b, A: 0xff}, true
}
