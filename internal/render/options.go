// Package render turns assistant replies into styled terminal output and
// holds the chat screen palettes.
package render

import (
	"os"

	"github.com/ultronhq/ultron/internal/config"
)

// StyleEnv overrides the configured markdown style
const StyleEnv = "GLAMOUR_STYLE"

const defaultWidth = 80

// Options selects a markdown renderer. It is comparable and doubles as the
// renderer pool key.
type Options struct {
	Width int
	// Style is a name from Styles() or a path to a glamour JSON style
	Style            string
	EnableEmoji      bool
	PreserveNewLines bool
	TableWrap        bool
	InlineTableLinks bool
}

// LoadOptions builds options from the markdown section of cfg. A
// non-positive width keeps the default of 80 columns; GLAMOUR_STYLE wins
// over the configured style.
func LoadOptions(cfg config.Config, width int) Options {
	md := cfg.Markdown
	opts := Options{
		Width:            defaultWidth,
		Style:            md.Style,
		EnableEmoji:      md.EnableEmoji,
		PreserveNewLines: md.PreserveNewLines,
		TableWrap:        md.TableWrap,
		InlineTableLinks: md.InlineTableLinks,
	}
	if opts.Style == "" {
		opts.Style = StyleUltron
	}
	if width > 0 {
		opts.Width = width
	}
	if style := os.Getenv(StyleEnv); style != "" {
		opts.Style = style
	}
	return opts
}
