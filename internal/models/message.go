package models

import (
	"fmt"
	"strings"
	"time"
)

// Role identifies the author of a message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ParseRole converts a wire role into a Role. Unknown roles are treated as
// assistant output.
func ParseRole(s string) Role {
	if strings.EqualFold(s, string(RoleUser)) {
		return RoleUser
	}
	return RoleAssistant
}

// DisplayTimeLayout is the wall-clock format shown next to messages.
const DisplayTimeLayout = "15:04"

// Message represents one entry of a conversation.
//
// ID is zero for messages that have not been persisted yet. Timestamp holds
// the display text; SentAt keeps the parsed instant when one is known.
type Message struct {
	ID            int       `json:"id,omitempty"`
	Role          Role      `json:"role"`
	Content       string    `json:"content"`
	Timestamp     string    `json:"timestamp,omitempty"`
	SentAt        time.Time `json:"sent_at,omitempty"`
	AttachmentURL string    `json:"attachment_url,omitempty"`
}

// NewMessage creates an unsaved message stamped with now.
func NewMessage(role Role, content string, now time.Time) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: now.Format(DisplayTimeLayout),
		SentAt:    now,
	}
}

// IsUser reports whether the message was authored by the user
func (m Message) IsUser() bool {
	return m.Role == RoleUser
}

// Session is a persisted conversation as listed by the backend
type Session struct {
	ID        int       `json:"id"`
	Title     string    `json:"title"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Upload is the result of a successful attachment upload
type Upload struct {
	URL      string `json:"url"`
	Filename string `json:"filename"`
}

// Marker returns the inline attachment marker for this upload
func (u Upload) Marker() string {
	return AttachmentMarker(u.Filename)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
}

// ParseTimestamp parses the backend's ISO-8601 timestamps. Naive timestamps
// (no zone) are interpreted in local time.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, fmt.Errorf("empty timestamp")
	}
	for i, layout := range timestampLayouts {
		var (
			t   time.Time
			err error
		)
		if i == 0 {
			t, err = time.Parse(layout, s)
		} else {
			t, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

// FormatDisplayTime returns the HH:MM display form of a wire timestamp, or
// the raw text if it cannot be parsed.
func FormatDisplayTime(s string) string {
	t, err := ParseTimestamp(s)
	if err != nil {
		return s
	}
	return t.Format(DisplayTimeLayout)
}
