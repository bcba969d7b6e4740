package api

import (
	"io"
	"sync"

	fhttp "github.com/bogdanfinn/fhttp"
)

// MockResponseBody is a ReadCloser that simulates reading response data
type MockResponseBody struct {
	data []byte
	pos  int
}

// NewMockResponseBody creates a new MockResponseBody with the given data
func NewMockResponseBody(data []byte) *MockResponseBody {
	return &MockResponseBody{data: data, pos: 0}
}

// Read implements the io.Reader interface
func (m *MockResponseBody) Read(p []byte) (n int, err error) {
	if m.pos >= len(m.data) {
		return 0, io.EOF
	}
	n = copy(p, m.data[m.pos:])
	m.pos += n
	return n, nil
}

// Close implements the io.Closer interface
func (m *MockResponseBody) Close() error {
	return nil
}

// ChunkedBody delivers one chunk per Read, in order, as a network stream
// would. After the chunks it returns Err (io.EOF when nil). When Hold is set,
// a Read past the chunks blocks until Close is called.
type ChunkedBody struct {
	chunks [][]byte
	Err    error
	Hold   bool

	mu     sync.Mutex
	closed chan struct{}
	once   sync.Once
}

// NewChunkedBody creates a ChunkedBody from string chunks
func NewChunkedBody(chunks ...string) *ChunkedBody {
	b := &ChunkedBody{closed: make(chan struct{})}
	for _, c := range chunks {
		b.chunks = append(b.chunks, []byte(c))
	}
	return b
}

// NewChunkedBytes creates a ChunkedBody from raw byte chunks
func NewChunkedBytes(chunks ...[]byte) *ChunkedBody {
	return &ChunkedBody{chunks: chunks, closed: make(chan struct{})}
}

// Read implements the io.Reader interface
func (b *ChunkedBody) Read(p []byte) (int, error) {
	b.mu.Lock()
	if len(b.chunks) > 0 {
		n := copy(p, b.chunks[0])
		b.chunks[0] = b.chunks[0][n:]
		if len(b.chunks[0]) == 0 {
			b.chunks = b.chunks[1:]
		}
		b.mu.Unlock()
		return n, nil
	}
	hold, err := b.Hold, b.Err
	b.mu.Unlock()

	if hold {
		<-b.closed
		return 0, io.ErrClosedPipe
	}
	if err != nil {
		return 0, err
	}
	return 0, io.EOF
}

// Close implements the io.Closer interface
func (b *ChunkedBody) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}

// IsClosed reports whether Close was called
func (b *ChunkedBody) IsClosed() bool {
	select {
	case <-b.closed:
		return true
	default:
		return false
	}
}

// MockHttpClient is a mock implementation of the client's HTTP doer. It
// records every request and replies with Response/Err, or with Handler when
// set.
type MockHttpClient struct {
	Response *fhttp.Response
	Err      error
	Handler  func(req *fhttp.Request) (*fhttp.Response, error)

	mu        sync.Mutex
	Requests  []*fhttp.Request
	Bodies    [][]byte
	IdleClose int
}

// CloseIdleConnections implements the httpDoer interface
func (m *MockHttpClient) CloseIdleConnections() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.IdleClose++
}

// Do implements the httpDoer interface
func (m *MockHttpClient) Do(req *fhttp.Request) (*fhttp.Response, error) {
	var body []byte
	if req.Body != nil {
		body, _ = io.ReadAll(req.Body)
	}

	m.mu.Lock()
	m.Requests = append(m.Requests, req)
	m.Bodies = append(m.Bodies, body)
	handler := m.Handler
	m.mu.Unlock()

	if handler != nil {
		return handler(req)
	}
	return m.Response, m.Err
}

// LastRequest returns the most recent request and its body
func (m *MockHttpClient) LastRequest() (*fhttp.Request, []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.Requests) == 0 {
		return nil, nil
	}
	return m.Requests[len(m.Requests)-1], m.Bodies[len(m.Bodies)-1]
}

// NewMockHttpClient creates a new MockHttpClient with a successful response
func NewMockHttpClient(body []byte, statusCode int) *MockHttpClient {
	return &MockHttpClient{
		Response: &fhttp.Response{
			StatusCode: statusCode,
			Body:       NewMockResponseBody(body),
			Header:     make(fhttp.Header),
		},
	}
}

// NewMockStreamHttpClient creates a MockHttpClient replying with body as an
// event stream
func NewMockStreamHttpClient(body io.ReadCloser, contentType string) *MockHttpClient {
	header := make(fhttp.Header)
	header.Set("Content-Type", contentType)
	return &MockHttpClient{
		Response: &fhttp.Response{
			StatusCode: 200,
			Body:       body,
			Header:     header,
		},
	}
}

// NewMockHttpClientWithError creates a new MockHttpClient that returns an error
func NewMockHttpClientWithError(err error) *MockHttpClient {
	return &MockHttpClient{
		Response: nil,
		Err:      err,
	}
}

func newTestClient(t interface{ Fatalf(string, ...any) }, doer httpDoer, opts ...ClientOption) *Client {
	opts = append([]ClientOption{WithHTTPClient(doer), WithBaseURL("http://backend.test")}, opts...)
	c, err := NewClient(opts...)
	if err != nil {
		t.Fatalf("NewClient() error = %v", err)
	}
	return c
}
