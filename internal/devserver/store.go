package devserver

import (
	"sort"
	"sync"
	"time"
)

// maxListed matches the backend's session list limit
const maxListed = 50

type sessionJSON struct {
	ID        int    `json:"id"`
	Title     string `json:"title"`
	UpdatedAt string `json:"updated_at"`
}

type messageJSON struct {
	ID            int     `json:"id"`
	Role          string  `json:"role"`
	Content       string  `json:"content"`
	Timestamp     string  `json:"timestamp"`
	AttachmentURL *string `json:"attachment_url"`
}

type sessionRecord struct {
	id       int
	title    string
	updated  time.Time
	messages []messageJSON
}

// store keeps sessions and messages in memory. Ids are assigned in
// increasing order and never reused.
type store struct {
	mu          sync.Mutex
	now         func() time.Time
	nextSession int
	nextMessage int
	sessions    map[int]*sessionRecord
}

func newStore(now func() time.Time) *store {
	if now == nil {
		now = time.Now
	}
	return &store{
		now:      now,
		sessions: make(map[int]*sessionRecord),
	}
}

func (s *store) createSession(title string) sessionJSON {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextSession++
	rec := &sessionRecord{id: s.nextSession, title: title, updated: s.now()}
	s.sessions[rec.id] = rec
	return rec.json()
}

func (s *store) exists(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.sessions[id]
	return ok
}

// list returns sessions, most recently updated first
func (s *store) list() []sessionJSON {
	s.mu.Lock()
	defer s.mu.Unlock()

	recs := make([]*sessionRecord, 0, len(s.sessions))
	for _, rec := range s.sessions {
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].updated.Equal(recs[j].updated) {
			return recs[i].updated.After(recs[j].updated)
		}
		return recs[i].id > recs[j].id
	})
	if len(recs) > maxListed {
		recs = recs[:maxListed]
	}

	out := make([]sessionJSON, len(recs))
	for i, rec := range recs {
		out[i] = rec.json()
	}
	return out
}

// messages returns the session's messages in order; unknown ids have none
func (s *store) messages(id int) []messageJSON {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return []messageJSON{}
	}
	return append([]messageJSON{}, rec.messages...)
}

func (s *store) addMessage(id int, role, content string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.sessions[id]
	if !ok {
		return false
	}
	now := s.now()
	s.nextMessage++
	rec.messages = append(rec.messages, messageJSON{
		ID:        s.nextMessage,
		Role:      role,
		Content:   content,
		Timestamp: isoformat(now),
	})
	rec.updated = now
	return true
}

// clear deletes every session and returns how many there were
func (s *store) clear() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := len(s.sessions)
	s.sessions = make(map[int]*sessionRecord)
	return n
}

func (r *sessionRecord) json() sessionJSON {
	return sessionJSON{ID: r.id, Title: r.title, UpdatedAt: isoformat(r.updated)}
}

// isoformat renders a naive timestamp the way the backend does: no zone,
// microseconds only when non-zero.
func isoformat(t time.Time) string {
	if t.Nanosecond()/1000 == 0 {
		return t.Format("2006-01-02T15:04:05")
	}
	return t.Format("2006-01-02T15:04:05.000000")
}
