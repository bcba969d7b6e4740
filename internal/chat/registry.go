package chat

import (
	"context"
	"fmt"
	"sync"

	"github.com/ultronhq/ultron/internal/api"
	"github.com/ultronhq/ultron/internal/models"
)

// Registry holds the server's session list and the active session id.
// A nil active id means the ephemeral, unsaved session.
type Registry struct {
	client api.ClientInterface

	mu       sync.RWMutex
	sessions []models.Session
	active   *int
}

// NewRegistry creates an empty registry
func NewRegistry(client api.ClientInterface) *Registry {
	return &Registry{client: client}
}

// Refresh replaces the session list with the server's. On failure the
// previous list is kept.
func (r *Registry) Refresh(ctx context.Context) ([]models.Session, error) {
	sessions, err := r.client.ListSessions(ctx)
	if err != nil {
		return r.Sessions(), fmt.Errorf("failed to refresh sessions: %w", err)
	}

	r.mu.Lock()
	r.sessions = append([]models.Session(nil), sessions...)
	r.mu.Unlock()
	return sessions, nil
}

// Select sets the active session id; nil selects the ephemeral session
func (r *Registry) Select(id *int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.active = copyID(id)
}

// Active returns a copy of the active session id
func (r *Registry) Active() *int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return copyID(r.active)
}

// IsActive reports whether id is the active session; nil asks about the
// ephemeral session
func (r *Registry) IsActive(id *int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sameID(r.active, id)
}

// Sessions returns a copy of the session list in server order
func (r *Registry) Sessions() []models.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]models.Session(nil), r.sessions...)
}

// Lookup returns the session with id, if listed
func (r *Registry) Lookup(id int) (models.Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sessions {
		if s.ID == id {
			return s, true
		}
	}
	return models.Session{}, false
}

func copyID(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

func sameID(a, b *int) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
