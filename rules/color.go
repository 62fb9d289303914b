package rules

import (
	"fmt"
	"image/color"
	"strconv"
	"strings"

	"golang.org/x/image/colornames"
)

var paletteNames = []string{
	"tomato",
	"gold",
	"limegreen",
	"dodgerblue",
	"mediumorchid",
	"darkorange",
	"deeppink",
	"turquoise",
}

var palette = func() []string {
	out := make([]string, len(paletteNames))
	for i, name := range paletteNames {
		out[i] = hexColor(colornames.Map[name])
	}
	return out
}()

// Palette lists the colors random_color picks from.
func Palette() []string {
	out := make([]string, len(palette))
	copy(out, palette)
	return out
}

// NormalizeColor accepts #rgb, #rrggbb or a CSS color name and returns
// the lowercase #rrggbb form.
func NormalizeColor(s string) (string, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("%w: empty color", errBadOperand)
	}
	if c, ok := colornames.Map[s]; ok {
		return hexColor(c), nil
	}

	hex := strings.TrimPrefix(s, "#")
	if len(hex) == 3 {
		hex = string([]byte{hex[0], hex[0], hex[1], hex[1], hex[2], hex[2]})
	}
	if len(hex) != 6 {
		return "", fmt.Errorf("%w: color %q", errBadOperand, s)
	}
	if _, err := strconv.ParseUint(hex, 16, 32); err != nil {
		return "", fmt.Errorf("%w: color %q", errBadOperand, s)
	}
	return "#" + hex, nil
}

func hexColor(c color.RGBA) string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}
