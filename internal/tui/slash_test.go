package tui

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseSlash(t *testing.T) {
	tests := []struct {
		input string
		ok    bool
		name  string
		arg   string
	}{
		{"/attach ~/notes.pdf", true, "attach", "~/notes.pdf"},
		{"  /EXPORT   out.md  ", true, "export", "out.md"},
		{"/new", true, "new", ""},
		{"/", false, "", ""},
		{"hello /new", false, "", ""},
		{"plan my week", false, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			cmd, ok := parseSlash(tt.input)
			if ok != tt.ok {
				t.Fatalf("ok = %v, want %v", ok, tt.ok)
			}
			if cmd.name != tt.name || cmd.arg != tt.arg {
				t.Errorf("got {%q %q}, want {%q %q}", cmd.name, cmd.arg, tt.name, tt.arg)
			}
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("no home directory")
	}

	if got := expandHome("~/a/b.txt"); got != filepath.Join(home, "a/b.txt") {
		t.Errorf("expandHome = %q", got)
	}
	if got := expandHome("/abs/path"); got != "/abs/path" {
		t.Errorf("absolute path changed: %q", got)
	}
	if got := expandHome("~user/x"); got != "~user/x" {
		t.Errorf("~user form should be left alone: %q", got)
	}
}
