package render

import (
	_ "embed"
	"slices"

	"github.com/charmbracelet/glamour"
)

//go:embed themes/ultron.json
var ultronStyle []byte

// Markdown style names. StyleUltron is embedded, the others ship with glamour.
const (
	StyleUltron  = "ultron"
	StyleDark    = "dark"
	StyleLight   = "light"
	StyleDracula = "dracula"
	StyleNoTTY   = "notty"
	StyleASCII   = "ascii"
)

var styleNames = []string{StyleUltron, StyleDark, StyleLight, StyleDracula, "tokyo-night", StyleNoTTY, StyleASCII}

// Styles lists the named markdown styles, default first
func Styles() []string {
	return slices.Clone(styleNames)
}

// IsNamedStyle reports whether style is a name rather than a JSON path
func IsNamedStyle(style string) bool {
	return slices.Contains(styleNames, style)
}

func styleOption(style string) glamour.TermRendererOption {
	switch {
	case style == StyleUltron:
		return glamour.WithStylesFromJSONBytes(ultronStyle)
	case style == "":
		return glamour.WithStandardStyle(StyleDark)
	case IsNamedStyle(style):
		return glamour.WithStandardStyle(style)
	default:
		return glamour.WithStylePath(style)
	}
}
