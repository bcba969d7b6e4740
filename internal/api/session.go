package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	http "github.com/bogdanfinn/fhttp"
	"github.com/tidwall/gjson"

	apierrors "github.com/ultronhq/ultron/internal/errors"
	"github.com/ultronhq/ultron/internal/models"
)

// ListSessions fetches the persisted sessions in server order
func (c *Client) ListSessions(ctx context.Context) ([]models.Session, error) {
	body, err := c.doJSON(ctx, "list sessions", http.MethodGet, models.PathSessions, nil, "")
	if err != nil {
		return nil, err
	}

	result, err := parseArray(body, models.PathSessions)
	if err != nil {
		return nil, err
	}

	sessions := make([]models.Session, 0, len(result))
	for _, item := range result {
		sessions = append(sessions, parseSession(item))
	}
	return sessions, nil
}

// ListMessages fetches the full ordered history of a session
func (c *Client) ListMessages(ctx context.Context, sessionID int) ([]models.Message, error) {
	path := fmt.Sprintf(models.PathSessionMessages, sessionID)
	body, err := c.doJSON(ctx, "list messages", http.MethodGet, path, nil, "")
	if err != nil {
		return nil, err
	}

	result, err := parseArray(body, path)
	if err != nil {
		return nil, err
	}

	messages := make([]models.Message, 0, len(result))
	for _, item := range result {
		messages = append(messages, parseMessage(item))
	}
	return messages, nil
}

// CreateSession creates an empty session with the given title
func (c *Client) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	payload, err := json.Marshal(map[string]string{"title": title})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.doJSON(ctx, "create session", http.MethodPost, models.PathSessions, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s", apierrors.ErrInvalidResponse, models.PathSessions)
	}
	session := parseSession(gjson.ParseBytes(body))
	return &session, nil
}

// ClearAllHistory deletes every session and returns how many were removed
func (c *Client) ClearAllHistory(ctx context.Context) (int, error) {
	body, err := c.doJSON(ctx, "clear history", http.MethodDelete, models.PathSessionsAll, nil, "")
	if err != nil {
		return 0, err
	}
	return int(gjson.GetBytes(body, PathSessionsDeleted).Int()), nil
}

func parseArray(body []byte, path string) ([]gjson.Result, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s", apierrors.ErrInvalidResponse, path)
	}
	result := gjson.ParseBytes(body)
	if !result.IsArray() {
		return nil, fmt.Errorf("%w: %s: expected array", apierrors.ErrInvalidResponse, path)
	}
	return result.Array(), nil
}

func parseSession(v gjson.Result) models.Session {
	s := models.Session{
		ID:    int(v.Get(PathSessionID).Int()),
		Title: v.Get(PathSessionTitle).String(),
	}
	if t, err := models.ParseTimestamp(v.Get(PathSessionUpdatedAt).String()); err == nil {
		s.UpdatedAt = t
	}
	return s
}

func parseMessage(v gjson.Result) models.Message {
	raw := v.Get(PathMessageTimestamp).String()
	m := models.Message{
		ID:            int(v.Get(PathMessageID).Int()),
		Role:          models.ParseRole(v.Get(PathMessageRole).String()),
		Content:       v.Get(PathMessageContent).String(),
		Timestamp:     models.FormatDisplayTime(raw),
		AttachmentURL: v.Get(PathMessageAttachment).String(),
	}
	if t, err := models.ParseTimestamp(raw); err == nil {
		m.SentAt = t
	}
	return m
}
