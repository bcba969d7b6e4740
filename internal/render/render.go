package render

import "strings"

// Markdown renders content for the terminal
func Markdown(content string, opts Options) (string, error) {
	r, err := renderers.get(opts)
	if err != nil {
		return "", err
	}
	defer renderers.put(opts, r)

	return r.Render(content)
}

// MarkdownOrPlain renders content, falling back to the raw text when the
// renderer fails. Half-streamed replies often hold unbalanced markup, which
// glamour renders as-is. Surrounding blank lines are trimmed.
func MarkdownOrPlain(content string, opts Options) string {
	out, err := Markdown(content, opts)
	if err != nil {
		return content
	}
	return strings.Trim(out, "\n")
}
