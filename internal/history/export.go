// Package history turns server-side sessions into portable transcripts and
// resolves user-friendly session references.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ultronhq/ultron/internal/models"
)

// ExportFormat represents the format for exporting transcripts
type ExportFormat string

const (
	ExportFormatMarkdown ExportFormat = "markdown"
	ExportFormatJSON     ExportFormat = "json"
)

// ParseExportFormat accepts "markdown", "md" and "json"
func ParseExportFormat(s string) (ExportFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "markdown", "md":
		return ExportFormatMarkdown, nil
	case "json":
		return ExportFormatJSON, nil
	default:
		return "", fmt.Errorf("unknown export format %q (use markdown or json)", s)
	}
}

// Extension returns the file extension for the format, with the dot
func (f ExportFormat) Extension() string {
	if f == ExportFormatJSON {
		return ".json"
	}
	return ".md"
}

// Transcript is one session and its messages. A nil Session is the
// unsaved ephemeral session.
type Transcript struct {
	Session  *models.Session
	Messages []models.Message
	// BaseURL resolves relative attachment URLs; optional
	BaseURL string
}

// Title returns the session title, or a placeholder for the ephemeral session
func (t Transcript) Title() string {
	if t.Session == nil {
		return "Unsaved session"
	}
	if t.Session.Title == "" {
		return fmt.Sprintf("Session %d", t.Session.ID)
	}
	return t.Session.Title
}

// visible drops empty assistant placeholders
func (t Transcript) visible() []models.Message {
	out := make([]models.Message, 0, len(t.Messages))
	for _, m := range t.Messages {
		if m.Content == "" && !m.IsUser() {
			continue
		}
		out = append(out, m)
	}
	return out
}

// AttachmentLink resolves a message's attachment URL against BaseURL
func (t Transcript) AttachmentLink(m models.Message) string {
	if m.AttachmentURL == "" || t.BaseURL == "" || strings.Contains(m.AttachmentURL, "://") {
		return m.AttachmentURL
	}
	return strings.TrimRight(t.BaseURL, "/") + "/" + strings.TrimLeft(m.AttachmentURL, "/")
}

// Export renders t in the given format
func Export(t Transcript, format ExportFormat) ([]byte, error) {
	switch format {
	case ExportFormatJSON:
		return ExportJSON(t)
	case ExportFormatMarkdown, "":
		return []byte(ExportMarkdown(t)), nil
	default:
		return nil, fmt.Errorf("unknown export format %q", format)
	}
}

// ExportMarkdown renders t as Markdown
func ExportMarkdown(t Transcript) string {
	msgs := t.visible()
	var sb strings.Builder

	sb.WriteString("# ")
	sb.WriteString(t.Title())
	sb.WriteString("\n\n")

	if t.Session != nil {
		sb.WriteString(fmt.Sprintf("**Session:** %d\n", t.Session.ID))
		if !t.Session.UpdatedAt.IsZero() {
			sb.WriteString("**Updated:** ")
			sb.WriteString(t.Session.UpdatedAt.Format("2006-01-02 15:04:05"))
			sb.WriteString("\n")
		}
	}
	sb.WriteString(fmt.Sprintf("**Messages:** %d\n\n---\n\n", len(msgs)))

	for i, msg := range msgs {
		role := "User"
		if !msg.IsUser() {
			role = "Ultron"
		}

		sb.WriteString("## ")
		sb.WriteString(role)
		if msg.Timestamp != "" {
			sb.WriteString(" (")
			sb.WriteString(msg.Timestamp)
			sb.WriteString(")")
		}
		sb.WriteString("\n\n")

		sb.WriteString(msg.Content)
		sb.WriteString("\n")

		if url := t.AttachmentLink(msg); url != "" {
			sb.WriteString("\n📎 [attachment](")
			sb.WriteString(url)
			sb.WriteString(")\n")
		}

		if i < len(msgs)-1 {
			sb.WriteString("\n---\n\n")
		}
	}

	return sb.String()
}

type exportMessage struct {
	ID            int       `json:"id,omitempty"`
	Role          string    `json:"role"`
	Content       string    `json:"content"`
	Timestamp     string    `json:"timestamp,omitempty"`
	SentAt        time.Time `json:"sent_at,omitempty"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
}

type exportTranscript struct {
	SessionID  *int            `json:"session_id"`
	Title      string          `json:"title"`
	UpdatedAt  *time.Time      `json:"updated_at,omitempty"`
	ExportedAt time.Time       `json:"exported_at"`
	Messages   []exportMessage `json:"messages"`
}

// ExportJSON renders t as indented JSON
func ExportJSON(t Transcript) ([]byte, error) {
	msgs := t.visible()
	export := exportTranscript{
		Title:      t.Title(),
		ExportedAt: time.Now().UTC().Truncate(time.Second),
		Messages:   make([]exportMessage, len(msgs)),
	}
	if t.Session != nil {
		id := t.Session.ID
		export.SessionID = &id
		if !t.Session.UpdatedAt.IsZero() {
			updated := t.Session.UpdatedAt
			export.UpdatedAt = &updated
		}
	}

	for i, msg := range msgs {
		export.Messages[i] = exportMessage{
			ID:            msg.ID,
			Role:          string(msg.Role),
			Content:       msg.Content,
			Timestamp:     msg.Timestamp,
			SentAt:        msg.SentAt,
			AttachmentURL: t.AttachmentLink(msg),
		}
	}

	return json.MarshalIndent(export, "", "  ")
}

// DefaultFilename suggests a file name such as "session-12.md"
func DefaultFilename(t Transcript, format ExportFormat) string {
	if t.Session == nil {
		return "session-unsaved" + format.Extension()
	}
	return fmt.Sprintf("session-%d%s", t.Session.ID, format.Extension())
}

// WriteFile exports t to path. The format is taken from the extension when
// it is .json or .md, otherwise format is used. It returns the format
// actually written.
func WriteFile(path string, t Transcript, format ExportFormat) (ExportFormat, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		format = ExportFormatJSON
	case ".md", ".markdown":
		format = ExportFormatMarkdown
	}

	data, err := Export(t, format)
	if err != nil {
		return format, err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return format, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return format, fmt.Errorf("failed to write %s: %w", path, err)
	}
	return format, nil
}

// FormatRelativeTime formats a time as "2h ago", "yesterday" and so on
func FormatRelativeTime(t time.Time) string {
	return formatRelative(t, time.Now())
}

func formatRelative(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	diff := now.Sub(t)

	switch {
	case diff < time.Minute:
		return "just now"
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 48*time.Hour:
		return "yesterday"
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%d days ago", int(diff.Hours()/24))
	default:
		return t.Format("2006-01-02")
	}
}
