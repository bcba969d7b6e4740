// Package chat implements the conversation session controller: message logs,
// the session registry, stream assembly, the follow-scroll policy and the
// orchestrator that ties them together.
package chat

import (
	"errors"
	"sync"

	"github.com/ultronhq/ultron/internal/models"
)

var (
	ErrEmptyLog     = errors.New("message log is empty")
	ErrNotAssistant = errors.New("last message is not an assistant message")
)

// MessageLog is the ordered message list of one session. All mutations go
// through ReplaceAll, Append and MutateLast.
type MessageLog struct {
	mu       sync.RWMutex
	messages []models.Message
}

// NewMessageLog creates a log holding a copy of msgs
func NewMessageLog(msgs ...models.Message) *MessageLog {
	return &MessageLog{messages: append([]models.Message(nil), msgs...)}
}

// ReplaceAll overwrites the whole log
func (l *MessageLog) ReplaceAll(msgs []models.Message) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append([]models.Message(nil), msgs...)
}

// Append adds msg to the end of the log and returns the new length
func (l *MessageLog) Append(msg models.Message) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, msg)
	return len(l.messages)
}

// MutateLast replaces the content of the final message. Only assistant
// messages may be mutated; user messages are never touched.
func (l *MessageLog) MutateLast(content string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.messages) == 0 {
		return ErrEmptyLog
	}
	last := &l.messages[len(l.messages)-1]
	if last.Role != models.RoleAssistant {
		return ErrNotAssistant
	}
	last.Content = content
	return nil
}

// Len returns the number of messages, hidden ones included
func (l *MessageLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.messages)
}

// Last returns the final message, if any
func (l *MessageLog) Last() (models.Message, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if len(l.messages) == 0 {
		return models.Message{}, false
	}
	return l.messages[len(l.messages)-1], true
}

// Messages returns a copy of every message
func (l *MessageLog) Messages() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return append([]models.Message(nil), l.messages...)
}

// Visible returns the messages to render: empty assistant messages are
// hidden until their first fragment arrives.
func (l *MessageLog) Visible() []models.Message {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]models.Message, 0, len(l.messages))
	for _, m := range l.messages {
		if IsVisible(m) {
			out = append(out, m)
		}
	}
	return out
}

// IsVisible reports whether m should be rendered
func IsVisible(m models.Message) bool {
	return m.Content != "" || m.Role == models.RoleUser
}
