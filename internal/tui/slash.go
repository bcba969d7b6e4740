package tui

import (
	"os"
	"path/filepath"
	"strings"
)

// slashCommand is a "/name arg" line typed into the input
type slashCommand struct {
	name string
	arg  string
}

// parseSlash splits a slash command. Lines not starting with "/" and a bare
// "/" are not commands.
func parseSlash(input string) (slashCommand, bool) {
	input = strings.TrimSpace(input)
	if !strings.HasPrefix(input, "/") || len(input) == 1 {
		return slashCommand{}, false
	}

	name, arg, _ := strings.Cut(input[1:], " ")
	return slashCommand{
		name: strings.ToLower(name),
		arg:  strings.TrimSpace(arg),
	}, true
}

var slashHelp = []struct {
	usage string
	desc  string
}{
	{"/attach <path>", "upload a file and add its marker to the draft"},
	{"/export [path]", "write this session to markdown or json"},
	{"/clear-all", "delete every stored session"},
	{"/new", "start a new session"},
	{"/help", "show all key bindings"},
	{"/quit", "leave"},
}

// expandHome replaces a leading "~/" with the user's home directory
func expandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~"))
}
