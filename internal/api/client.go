package api

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	http "github.com/bogdanfinn/fhttp"
	tls_client "github.com/bogdanfinn/tls-client"
	"github.com/bogdanfinn/tls-client/profiles"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apierrors "github.com/ultronhq/ultron/internal/errors"
	"github.com/ultronhq/ultron/internal/models"
)

// maxErrorBody caps how much of a failed response is kept for diagnostics
const maxErrorBody = 4096

// FragmentStream yields decoded text fragments of a streamed reply.
// Next returns io.EOF once the reply is complete.
type FragmentStream interface {
	Next() (string, error)
	Close() error
}

// ClientInterface is the transport surface used by the controller, the TUI
// and the commands.
type ClientInterface interface {
	ListSessions(ctx context.Context) ([]models.Session, error)
	ListMessages(ctx context.Context, sessionID int) ([]models.Message, error)
	OpenStream(ctx context.Context, text string, sessionID *int) (FragmentStream, error)
	SendMessage(ctx context.Context, text string, sessionID *int) (*SendResult, error)
	CreateSession(ctx context.Context, title string) (*models.Session, error)
	ClearAllHistory(ctx context.Context) (int, error)
	UploadFile(ctx context.Context, filePath string) (*models.Upload, error)
	BaseURL() string
	Close()
}

// httpDoer is the subset of tls_client.HttpClient the client relies on
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
	CloseIdleConnections()
}

// Client talks to the assistant backend over HTTP
type Client struct {
	httpClient  httpDoer
	baseURL     string
	prefix      string
	timeout     time.Duration
	idleTimeout time.Duration
	logger      zerolog.Logger
	mu          sync.RWMutex
	closed      bool
}

var _ ClientInterface = (*Client)(nil)

// ClientOption is a function that configures the client
type ClientOption func(*Client)

// WithBaseURL sets the backend scheme and host
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(baseURL, "/")
	}
}

// WithAPIPrefix sets the path the chat endpoints are mounted under
func WithAPIPrefix(prefix string) ClientOption {
	return func(c *Client) {
		c.prefix = "/" + strings.Trim(prefix, "/")
		if c.prefix == "/" {
			c.prefix = ""
		}
	}
}

// WithTimeout bounds each non-streaming request. Zero disables the bound.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithIdleTimeout aborts a stream that receives no bytes for d. Zero
// disables it.
func WithIdleTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		c.idleTimeout = d
	}
}

// WithLogger sets the logger used for request diagnostics
func WithLogger(logger zerolog.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(doer httpDoer) ClientOption {
	return func(c *Client) {
		c.httpClient = doer
	}
}

// NewClient creates a new Client
func NewClient(opts ...ClientOption) (*Client, error) {
	client := &Client{
		baseURL:     models.DefaultBaseURL,
		prefix:      models.DefaultAPIPrefix,
		timeout:     60 * time.Second,
		idleTimeout: 2 * time.Minute,
		logger:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(client)
	}

	if client.httpClient == nil {
		// Streams may legitimately run for minutes; they are bounded by the
		// idle timer and request contexts instead of a client-wide timeout.
		options := []tls_client.HttpClientOption{
			tls_client.WithTimeoutSeconds(0),
			tls_client.WithClientProfile(profiles.Chrome_120),
			tls_client.WithNotFollowRedirects(),
		}

		httpClient, err := tls_client.NewHttpClient(tls_client.NewNoopLogger(), options...)
		if err != nil {
			return nil, fmt.Errorf("failed to create HTTP client: %w", err)
		}
		client.httpClient = httpClient
	}

	return client, nil
}

// BaseURL returns the backend scheme and host
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Close releases idle connections. Further calls fail with ErrClientClosed.
func (c *Client) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	c.httpClient.CloseIdleConnections()
}

// IsClosed returns whether the client is closed
func (c *Client) IsClosed() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.closed
}

// endpoint joins the base URL, API prefix and path
func (c *Client) endpoint(path string) string {
	return c.baseURL + c.prefix + path
}

// requestContext applies the per-request timeout to ctx
func (c *Client) requestContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}

func (c *Client) newRequest(ctx context.Context, method, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	return req, nil
}

// doJSON performs a non-streaming request and returns the body of a 2xx
// response. Failures are reported as NetworkError.
func (c *Client) doJSON(ctx context.Context, operation, method, path string, body io.Reader, contentType string) ([]byte, error) {
	if c.IsClosed() {
		return nil, apierrors.ErrClientClosed
	}

	ctx, cancel := c.requestContext(ctx)
	defer cancel()

	url := c.endpoint(path)
	req, err := c.newRequest(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportError(ctx, operation, path, err)
	}
	defer func() {
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
	}()

	c.logger.Debug().
		Str("op", operation).
		Str("method", method).
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("latency", time.Since(start)).
		Str("request_id", req.Header.Get("X-Request-ID")).
		Msg("request completed")

	if resp.Body == nil {
		return nil, apierrors.NewNetworkError(operation, path, apierrors.ErrNoBody)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, apierrors.NewNetworkStatusError(operation, path, resp.StatusCode, errorDetail(readErrorBody(resp.Body)))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.transportError(ctx, operation, path, err)
	}
	return data, nil
}

// transportError classifies a failed round trip
func (c *Client) transportError(ctx context.Context, operation, path string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return apierrors.NewNetworkError(operation, path, apierrors.NewTimeoutError(fmt.Sprintf("%s exceeded %s", operation, c.timeout)))
	}
	return apierrors.NewNetworkError(operation, path, err)
}

// readErrorBody reads at most maxErrorBody bytes of a failed response
func readErrorBody(body io.Reader) []byte {
	if body == nil {
		return nil
	}
	data, _ := io.ReadAll(io.LimitReader(body, maxErrorBody))
	return data
}

// errorDetail extracts the backend's {"detail": ...} message when present
func errorDetail(body []byte) string {
	if len(body) == 0 {
		return ""
	}
	if gjson.ValidBytes(body) {
		detail := gjson.GetBytes(body, PathDetail)
		if detail.Exists() {
			if detail.Type == gjson.String {
				return detail.String()
			}
			return detail.Raw
		}
	}
	return strings.TrimSpace(string(body))
}
