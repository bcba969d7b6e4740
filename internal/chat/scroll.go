package chat

import "github.com/ultronhq/ultron/internal/models"

// DefaultFollowThreshold is the distance from the bottom, in viewport units,
// within which streaming output keeps the view pinned.
const DefaultFollowThreshold = 200

// Viewport describes the scroll geometry of the message view
type Viewport struct {
	ScrollHeight int
	ScrollTop    int
	ClientHeight int
}

// DistanceToBottom returns how far the view is scrolled up from the end
func (v Viewport) DistanceToBottom() int {
	return v.ScrollHeight - v.ScrollTop - v.ClientHeight
}

// ScrollPolicy decides whether a log change should pull the view to the bottom
type ScrollPolicy struct {
	Threshold int
}

// NewScrollPolicy creates a policy; a non-positive threshold uses the default
func NewScrollPolicy(threshold int) ScrollPolicy {
	if threshold <= 0 {
		threshold = DefaultFollowThreshold
	}
	return ScrollPolicy{Threshold: threshold}
}

// ShouldFollow reports whether to scroll to the bottom after a change to a
// message authored by role, with the log now logLen long.
func (p ScrollPolicy) ShouldFollow(role models.Role, logLen int, vp Viewport) bool {
	if role == models.RoleUser || logLen <= 1 {
		return true
	}
	return vp.DistanceToBottom() < p.Threshold
}
