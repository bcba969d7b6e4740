package history

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/ultronhq/ultron/internal/models"
)

// SessionLister is the part of the API client the resolver needs
type SessionLister interface {
	ListSessions(ctx context.Context) ([]models.Session, error)
}

// Resolver resolves user-friendly references to sessions
type Resolver struct {
	lister SessionLister
}

// NewResolver creates a new reference resolver
func NewResolver(lister SessionLister) *Resolver {
	return &Resolver{lister: lister}
}

// Resolve fetches the session list and resolves ref against it
func (r *Resolver) Resolve(ctx context.Context, ref string) (models.Session, error) {
	if strings.TrimSpace(ref) == "" {
		return models.Session{}, fmt.Errorf("empty reference")
	}

	sessions, err := r.lister.ListSessions(ctx)
	if err != nil {
		return models.Session{}, fmt.Errorf("failed to list sessions: %w", err)
	}
	return ResolveIn(sessions, ref)
}

// ResolveIn resolves ref against sessions, which are in server order (most
// recently updated first).
//
// Supported references:
//   - "@last" - most recently updated session
//   - "@first" - oldest session
//   - "1", "2", "3" - by position (1-based)
//   - "#12" - by server id
//   - "substring" - case-insensitive title match (error if ambiguous)
func ResolveIn(sessions []models.Session, ref string) (models.Session, error) {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return models.Session{}, fmt.Errorf("empty reference")
	}
	if len(sessions) == 0 {
		return models.Session{}, fmt.Errorf("no sessions found")
	}

	switch strings.ToLower(ref) {
	case "@last":
		return sessions[0], nil
	case "@first":
		return sessions[len(sessions)-1], nil
	}

	if strings.HasPrefix(ref, "#") {
		id, err := strconv.Atoi(ref[1:])
		if err != nil {
			return models.Session{}, fmt.Errorf("invalid session id %q", ref)
		}
		for _, s := range sessions {
			if s.ID == id {
				return s, nil
			}
		}
		return models.Session{}, fmt.Errorf("session not found: %s", ref)
	}

	if index, err := strconv.Atoi(ref); err == nil {
		if index < 1 || index > len(sessions) {
			return models.Session{}, fmt.Errorf("index %d out of range (1-%d)", index, len(sessions))
		}
		return sessions[index-1], nil
	}

	refLower := strings.ToLower(ref)
	var matches []models.Session
	for _, s := range sessions {
		if strings.Contains(strings.ToLower(s.Title), refLower) {
			matches = append(matches, s)
		}
	}

	switch len(matches) {
	case 0:
		return models.Session{}, fmt.Errorf("no session matching '%s'", ref)
	case 1:
		return matches[0], nil
	default:
		var titles []string
		for _, m := range matches {
			titles = append(titles, fmt.Sprintf("#%d '%s'", m.ID, m.Title))
		}
		return models.Session{}, fmt.Errorf("multiple sessions match '%s': %s. Use #id or be more specific",
			ref, strings.Join(titles, ", "))
	}
}

// ListAliases returns information about supported references
func ListAliases() string {
	return `Supported references:
  @last          Most recently updated session
  @first         Oldest session
  1, 2, 3        By position (1-based, from most recent)
  #12            By session id
  "text"         Search by title substring`
}
