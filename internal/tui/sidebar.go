package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/ultronhq/ultron/internal/history"
	"github.com/ultronhq/ultron/internal/models"
)

const (
	sidebarWidth   = 30
	newSessionItem = "+ New session"
)

// sidebar is the session list. Row 0 is "New session"; row i+1 is
// sessions[i].
type sidebar struct {
	cursor int
}

// move shifts the cursor by delta, wrapping around n sessions plus the
// "New session" row
func (s *sidebar) move(delta, n int) {
	rows := n + 1
	s.cursor = ((s.cursor+delta)%rows + rows) % rows
}

// clamp keeps the cursor inside the list after a refresh
func (s *sidebar) clamp(n int) {
	if s.cursor > n {
		s.cursor = n
	}
	if s.cursor < 0 {
		s.cursor = 0
	}
}

// selection returns the session under the cursor; nil for "New session"
func (s sidebar) selection(sessions []models.Session) *int {
	if s.cursor == 0 || s.cursor > len(sessions) {
		return nil
	}
	id := sessions[s.cursor-1].ID
	return &id
}

// follow points the cursor at the active session
func (s *sidebar) follow(sessions []models.Session, active *int) {
	if active == nil {
		s.cursor = 0
		return
	}
	for i, sess := range sessions {
		if sess.ID == *active {
			s.cursor = i + 1
			return
		}
	}
}

// view renders the sidebar within width x height cells
func (s sidebar) view(sessions []models.Session, active *int, focused bool, width, height int) string {
	inner := width - 4
	if inner < 8 {
		inner = 8
	}

	rows := []string{s.renderItem(0, newSessionItem, "", active == nil, inner)}
	for i, sess := range sessions {
		title := sess.Title
		if title == "" {
			title = fmt.Sprintf("Session %d", sess.ID)
		}
		isActive := active != nil && *active == sess.ID
		rows = append(rows, s.renderItem(i+1, title, history.FormatRelativeTime(sess.UpdatedAt), isActive, inner))
	}
	if len(sessions) == 0 {
		rows = append(rows, hintStyle.Render("No archives yet"))
	}

	// keep the cursor row on screen
	visible := height - 5
	if visible < 1 {
		visible = 1
	}
	start := 0
	if s.cursor >= visible {
		start = s.cursor - visible + 1
	}
	end := start + visible
	if end > len(rows) {
		end = len(rows)
	}
	if start > end {
		start = end
	}

	content := sidebarTitleStyle.Render("Memory archives") + "\n" + strings.Join(rows[start:end], "\n")

	style := sidebarStyle
	if focused {
		style = sidebarFocusedStyle
	}
	return style.Width(width - 2).Height(height - 2).Render(content)
}

func (s sidebar) renderItem(index int, title, when string, isActive bool, width int) string {
	cursor := "  "
	style := sidebarItemStyle
	if isActive {
		style = sidebarActiveStyle
	}
	if index == s.cursor {
		cursor = sidebarCursorStyle.Render("▸ ")
		style = sidebarSelectedStyle
	}

	title = truncate.StringWithTail(title, uint(width-2), "…")
	line := cursor + style.Render(title)
	if when != "" && lipgloss.Width(line)+len(when)+1 <= width {
		pad := width - lipgloss.Width(line) - len(when)
		line += strings.Repeat(" ", pad) + sidebarTimeStyle.Render(when)
	}
	return line
}
