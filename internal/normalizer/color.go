package normalizer

import (
	"math"
	"strconv"
	"strings"

	"github.com/edaccess/coursecheck/internal/model"
)

// namedColors covers the CSS colors that show up in course content in
// practice. Anything else falls back to "unresolved".
var namedColors = map[string]model.RGB{
	"black":     {R: 0, G: 0, B: 0},
	"white":     {R: 255, G: 255, B: 255},
	"red":       {R: 255, G: 0, B: 0},
	"green":     {R: 0, G: 128, B: 0},
	"blue":      {R: 0, G: 0, B: 255},
	"yellow":    {R: 255, G: 255, B: 0},
	"gray":      {R: 128, G: 128, B: 128},
	"grey":      {R: 128, G: 128, B: 128},
	"silver":    {R: 192, G: 192, B: 192},
	"maroon":    {R: 128, G: 0, B: 0},
	"navy":      {R: 0, G: 0, B: 128},
	"teal":      {R: 0, G: 128, B: 128},
	"purple":    {R: 128, G: 0, B: 128},
	"orange":    {R: 255, G: 165, B: 0},
	"lightgray": {R: 211, G: 211, B: 211},
	"darkgray":  {R: 169, G: 169, B: 169},
}

// ParseColor parses a CSS color value: #rgb, #rrggbb, rgb()/rgba() and a
// set of common named colors. Returns ok=false for anything it cannot
// resolve (gradients, var(), hsl(), transparency, ...).
func ParseColor(val string) (model.RGB, bool) {
	val = strings.ToLower(strings.TrimSpace(val))
	switch {
	case strings.HasPrefix(val, "#"):
		return parseHex(val[1:])
	case strings.HasPrefix(val, "rgb(") || strings.HasPrefix(val, "rgba("):
		return parseRGBFunc(val)
	}
	if c, ok := namedColors[val]; ok {
		return c, true
	}
	return model.RGB{}, false
}

func parseHex(hex string) (model.RGB, bool) {
	switch len(hex) {
	case 3:
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	case 6:
	default:
		return model.RGB{}, false
	}
	v, err := strconv.ParseUint(hex, 16, 32)
	if err != nil {
		return model.RGB{}, false
	}
	return model.RGB{
		R: uint8(v >> 16),
		G: uint8(v >> 8),
		B: uint8(v),
	}, true
}

func parseRGBFunc(val string) (model.RGB, bool) {
	open := strings.IndexByte(val, '(')
	end := strings.IndexByte(val, ')')
	if open < 0 || end < open {
		return model.RGB{}, false
	}
	parts := strings.Split(val[open+1:end], ",")
	if len(parts) < 3 {
		return model.RGB{}, false
	}
	var ch [3]uint8
	for i := 0; i < 3; i++ {
		n, err := strconv.Atoi(strings.TrimSpace(parts[i]))
		if err != nil || n < 0 || n > 255 {
			return model.RGB{}, false
		}
		ch[i] = uint8(n)
	}
	if len(parts) == 4 {
		// A translucent color depends on what is underneath; treat it as
		// unresolved unless fully opaque.
		a, err := strconv.ParseFloat(strings.TrimSpace(parts[3]), 64)
		if err != nil || a < 1 {
			return model.RGB{}, false
		}
	}
	return model.RGB{R: ch[0], G: ch[1], B: ch[2]}, true
}

// ContrastRatio computes the WCAG contrast ratio between two colors,
// in the range [1, 21].
func ContrastRatio(a, b model.RGB) float64 {
	la := relativeLuminance(a)
	lb := relativeLuminance(b)
	if la < lb {
		la, lb = lb, la
	}
	return (la + 0.05) / (lb + 0.05)
}

// relativeLuminance implements the WCAG 2.x formula.
func relativeLuminance(c model.RGB) float64 {
	lin := func(ch uint8) float64 {
		v := float64(ch) / 255
		if v <= 0.04045 {
			return v / 12.92
		}
		return math.Pow((v+0.055)/1.055, 2.4)
	}
	return 0.2126*lin(c.R) + 0.7152*lin(c.G) + 0.0722*lin(c.B)
}
