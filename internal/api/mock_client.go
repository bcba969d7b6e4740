package api

import (
	"context"
	"io"
	"sync"

	"github.com/ultronhq/ultron/internal/models"
)

// SentRequest records one OpenStream or SendMessage call on MockClient
type SentRequest struct {
	Text      string
	SessionID *int
}

// MockClient is a mock implementation of ClientInterface for testing
type MockClient struct {
	mu sync.Mutex

	// Mock return values
	Sessions       []models.Session
	SessionsErr    error
	Messages       map[int][]models.Message
	MessagesErr    error
	OpenErr        error
	Fragments      []string
	StreamErr      error
	SendResult     *SendResult
	SendErr        error
	CreatedSession *models.Session
	CreateErr      error
	ClearedCount   int
	ClearErr       error
	UploadVal      *models.Upload
	UploadErr      error
	BaseURLVal     string

	// OpenStreamFunc overrides the canned stream when set
	OpenStreamFunc func(ctx context.Context, text string, sessionID *int) (FragmentStream, error)
	// ListMessagesFunc overrides Messages/MessagesErr when set
	ListMessagesFunc func(ctx context.Context, sessionID int) ([]models.Message, error)

	// Call counters/recorders
	ListSessionsCalls int
	ListMessagesCalls []int
	Streams           []SentRequest
	Sends             []SentRequest
	Uploads           []string
	CloseCalled       bool
}

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)

func (m *MockClient) ListSessions(ctx context.Context) ([]models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ListSessionsCalls++
	if m.SessionsErr != nil {
		return nil, m.SessionsErr
	}
	return append([]models.Session(nil), m.Sessions...), nil
}

func (m *MockClient) ListMessages(ctx context.Context, sessionID int) ([]models.Message, error) {
	m.mu.Lock()
	m.ListMessagesCalls = append(m.ListMessagesCalls, sessionID)
	fn := m.ListMessagesFunc
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, sessionID)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MessagesErr != nil {
		return nil, m.MessagesErr
	}
	return append([]models.Message(nil), m.Messages[sessionID]...), nil
}

func (m *MockClient) OpenStream(ctx context.Context, text string, sessionID *int) (FragmentStream, error) {
	m.mu.Lock()
	m.Streams = append(m.Streams, SentRequest{Text: text, SessionID: copyID(sessionID)})
	fn := m.OpenStreamFunc
	openErr, fragments, streamErr := m.OpenErr, m.Fragments, m.StreamErr
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, text, sessionID)
	}
	if openErr != nil {
		return nil, openErr
	}
	return NewMockStream(ctx, fragments, streamErr), nil
}

func (m *MockClient) SendMessage(ctx context.Context, text string, sessionID *int) (*SendResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sends = append(m.Sends, SentRequest{Text: text, SessionID: copyID(sessionID)})
	return m.SendResult, m.SendErr
}

func (m *MockClient) CreateSession(ctx context.Context, title string) (*models.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CreatedSession, m.CreateErr
}

func (m *MockClient) ClearAllHistory(ctx context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ClearedCount, m.ClearErr
}

func (m *MockClient) UploadFile(ctx context.Context, filePath string) (*models.Upload, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Uploads = append(m.Uploads, filePath)
	return m.UploadVal, m.UploadErr
}

func (m *MockClient) BaseURL() string {
	if m.BaseURLVal == "" {
		return models.DefaultBaseURL
	}
	return m.BaseURLVal
}

func (m *MockClient) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CloseCalled = true
}

// StreamRequests returns a copy of the recorded OpenStream calls
func (m *MockClient) StreamRequests() []SentRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentRequest(nil), m.Streams...)
}

func copyID(id *int) *int {
	if id == nil {
		return nil
	}
	v := *id
	return &v
}

// MockStream is a FragmentStream over canned fragments. It honors context
// cancellation between fragments. When Gate is set, each fragment waits for
// a value on Gate before being returned.
type MockStream struct {
	ctx       context.Context
	fragments []string
	err       error
	pos       int
	Gate      chan struct{}

	mu     sync.Mutex
	closed bool
}

// NewMockStream creates a stream yielding fragments, then err (or io.EOF)
func NewMockStream(ctx context.Context, fragments []string, err error) *MockStream {
	return &MockStream{ctx: ctx, fragments: fragments, err: err}
}

func (s *MockStream) Next() (string, error) {
	if s.pos >= len(s.fragments) {
		if s.err != nil {
			return "", s.err
		}
		return "", io.EOF
	}
	if s.Gate != nil {
		select {
		case <-s.Gate:
		case <-s.ctx.Done():
			return "", s.ctx.Err()
		}
	}
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	frag := s.fragments[s.pos]
	s.pos++
	return frag, nil
}

func (s *MockStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Closed reports whether Close was called
func (s *MockStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}
