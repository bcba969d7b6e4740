package render

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TUITheme is a palette for the chat screen and the CLI output
type TUITheme struct {
	Name string

	Surface lipgloss.Color
	Border  lipgloss.Color

	Primary   lipgloss.Color
	Secondary lipgloss.Color // confirmations
	Accent    lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color

	User      lipgloss.Color
	Assistant lipgloss.Color

	Text     lipgloss.Color
	TextDim  lipgloss.Color
	TextMute lipgloss.Color
}

var (
	// UltronTheme is the default: red on a dark navy surface
	UltronTheme = TUITheme{
		Name:      "ultron",
		Surface:   "#24283b",
		Border:    "#414868",
		Primary:   "#f7768e",
		Secondary: "#9ece6a",
		Accent:    "#ff9e64",
		Warning:   "#e0af68",
		Error:     "#db4b4b",
		User:      "#7aa2f7",
		Assistant: "#f7768e",
		Text:      "#c0caf5",
		TextDim:   "#565f89",
		TextMute:  "#3b4261",
	}

	// VisionTheme trades the red for gold and green
	VisionTheme = TUITheme{
		Name:      "vision",
		Surface:   "#2b2a24",
		Border:    "#5c5845",
		Primary:   "#e5c07b",
		Secondary: "#98c379",
		Accent:    "#56b6c2",
		Warning:   "#d19a66",
		Error:     "#e06c75",
		User:      "#98c379",
		Assistant: "#e5c07b",
		Text:      "#dcdfe4",
		TextDim:   "#7f848e",
		TextMute:  "#4b4f57",
	}

	DraculaTheme = TUITheme{
		Name:      "dracula",
		Surface:   "#44475a",
		Border:    "#6272a4",
		Primary:   "#8be9fd",
		Secondary: "#50fa7b",
		Accent:    "#ff79c6",
		Warning:   "#f1fa8c",
		Error:     "#ff5555",
		User:      "#50fa7b",
		Assistant: "#ff79c6",
		Text:      "#f8f8f2",
		TextDim:   "#6272a4",
		TextMute:  "#44475a",
	}
)

var tuiThemes = []TUITheme{UltronTheme, VisionTheme, DraculaTheme}

// TUIThemeNames lists the palettes, default first
func TUIThemeNames() []string {
	names := make([]string, len(tuiThemes))
	for i, t := range tuiThemes {
		names[i] = t.Name
	}
	return names
}

// ResolveTUITheme looks a palette up case-insensitively. Unknown names get
// UltronTheme and ok=false.
func ResolveTUITheme(name string) (theme TUITheme, ok bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	for _, t := range tuiThemes {
		if t.Name == name {
			return t, true
		}
	}
	return UltronTheme, false
}
