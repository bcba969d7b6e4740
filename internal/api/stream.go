package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	http "github.com/bogdanfinn/fhttp"
	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"

	apierrors "github.com/ultronhq/ultron/internal/errors"
	"github.com/ultronhq/ultron/internal/models"
)

// streamReadSize is the buffer used for each body read
const streamReadSize = 4096

// chatRequest is the body of POST /stream and POST /
type chatRequest struct {
	Message   string `json:"message"`
	SessionID *int   `json:"session_id,omitempty"`
}

// SendResult is the reply of a non-streaming send
type SendResult struct {
	Response  string
	SessionID int
}

// Stream is an open streaming reply. Fragments are pulled with Next.
type Stream struct {
	ctx       context.Context
	cancel    context.CancelFunc
	body      io.ReadCloser
	dec       *fragmentDecoder
	buf       []byte
	received  int
	requestID string
	logger    zerolog.Logger

	idle     time.Duration
	timer    *time.Timer
	timedOut atomic.Bool

	eof       bool
	err       error
	closeOnce sync.Once
	stopWatch func() bool
}

var _ FragmentStream = (*Stream)(nil)

// OpenStream posts text (optionally continuing sessionID) and returns the
// streamed reply. A non-2xx status or a missing body is a StreamOpenError.
// Cancelling ctx abandons the stream; Next then returns ctx.Err().
func (c *Client) OpenStream(ctx context.Context, text string, sessionID *int) (FragmentStream, error) {
	if c.IsClosed() {
		return nil, apierrors.ErrClientClosed
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	payload, err := json.Marshal(chatRequest{Message: text, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	streamCtx, cancel := context.WithCancel(ctx)

	req, err := c.newRequest(streamCtx, http.MethodPost, c.endpoint(models.PathStream), bytes.NewReader(payload))
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")
	requestID := req.Header.Get("X-Request-ID")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		cancel()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, apierrors.NewStreamOpenError(0, models.PathStream, "", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail := errorDetail(readErrorBody(resp.Body))
		if resp.Body != nil {
			_ = resp.Body.Close()
		}
		cancel()
		return nil, apierrors.NewStreamOpenError(resp.StatusCode, models.PathStream, detail, nil)
	}
	if resp.Body == nil || resp.Body == http.NoBody {
		cancel()
		return nil, apierrors.NewStreamOpenError(resp.StatusCode, models.PathStream, "", apierrors.ErrNoBody)
	}

	dec, unknown := newFragmentDecoder(resp.Header.Get("Content-Type"))
	if unknown {
		c.logger.Warn().
			Str("content_type", resp.Header.Get("Content-Type")).
			Msg("unknown stream charset, decoding as utf-8")
	}

	s := &Stream{
		ctx:       streamCtx,
		cancel:    cancel,
		body:      resp.Body,
		dec:       dec,
		buf:       make([]byte, streamReadSize),
		requestID: requestID,
		logger:    c.logger,
		idle:      c.idleTimeout,
	}
	// Closing the body unblocks a pending Read once the context ends.
	s.stopWatch = context.AfterFunc(streamCtx, func() {
		_ = s.body.Close()
	})
	if s.idle > 0 {
		s.timer = time.AfterFunc(s.idle, s.onIdle)
		s.timer.Stop()
	}

	c.logger.Debug().
		Str("request_id", requestID).
		Str("charset", dec.Charset()).
		Bool("continuing", sessionID != nil).
		Msg("stream opened")

	return s, nil
}

func (s *Stream) onIdle() {
	s.timedOut.Store(true)
	s.cancel()
}

// RequestID returns the X-Request-ID sent with the stream request
func (s *Stream) RequestID() string {
	return s.requestID
}

// Received returns the number of body bytes read so far
func (s *Stream) Received() int {
	return s.received
}

// Next returns the next non-empty text fragment. It returns io.EOF after the
// last fragment, ctx.Err() if the stream was cancelled, and a
// StreamReadError if the body failed or went idle.
// Next must not be called concurrently.
func (s *Stream) Next() (string, error) {
	for {
		if s.err != nil {
			return "", s.err
		}
		if s.eof {
			tail, err := s.dec.Decode(nil, true)
			if err != nil {
				return "", s.finish(apierrors.NewStreamReadError(s.received, err))
			}
			s.finish(io.EOF)
			if tail != "" {
				return tail, nil
			}
			return "", io.EOF
		}
		if s.ctx.Err() != nil {
			return "", s.finish(s.abortError())
		}

		if s.timer != nil {
			s.timer.Reset(s.idle)
		}
		n, readErr := s.body.Read(s.buf)
		if s.timer != nil {
			s.timer.Stop()
		}

		if s.ctx.Err() != nil {
			// nothing read after cancellation is delivered
			return "", s.finish(s.abortError())
		}

		if n > 0 {
			s.received += n
			text, err := s.dec.Decode(s.buf[:n], false)
			if err != nil {
				return "", s.finish(apierrors.NewStreamReadError(s.received, err))
			}
			if errors.Is(readErr, io.EOF) {
				s.eof = true
			} else if readErr != nil {
				_ = s.finish(apierrors.NewStreamReadError(s.received, readErr))
			}
			if text != "" {
				return text, nil
			}
			continue
		}

		switch {
		case errors.Is(readErr, io.EOF):
			s.eof = true
		case readErr != nil:
			return "", s.finish(apierrors.NewStreamReadError(s.received, readErr))
		}
	}
}

func (s *Stream) abortError() error {
	if s.timedOut.Load() {
		return apierrors.NewStreamReadError(s.received,
			apierrors.NewTimeoutError(fmt.Sprintf("no data received for %s", s.idle)))
	}
	if err := context.Cause(s.ctx); err != nil {
		return err
	}
	return context.Canceled
}

// finish records the terminal result and releases the connection
func (s *Stream) finish(err error) error {
	s.err = err
	_ = s.Close()
	if err != io.EOF {
		s.logger.Debug().
			Str("request_id", s.requestID).
			Int("received", s.received).
			Err(err).
			Msg("stream ended")
	}
	return err
}

// Close releases the stream. It is safe to call more than once and from
// another goroutine than the one calling Next.
func (s *Stream) Close() error {
	var err error
	s.closeOnce.Do(func() {
		if s.timer != nil {
			s.timer.Stop()
		}
		s.stopWatch()
		s.cancel()
		err = s.body.Close()
	})
	return err
}

// SendMessage posts text without streaming and returns the whole reply.
// When sessionID is nil the backend creates a session.
func (c *Client) SendMessage(ctx context.Context, text string, sessionID *int) (*SendResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("message cannot be empty")
	}

	payload, err := json.Marshal(chatRequest{Message: text, SessionID: sessionID})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	body, err := c.doJSON(ctx, "send message", http.MethodPost, models.PathSend, bytes.NewReader(payload), "application/json")
	if err != nil {
		return nil, err
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("%w: %s", apierrors.ErrInvalidResponse, models.PathSend)
	}
	return &SendResult{
		Response:  gjson.GetBytes(body, PathSendResponse).String(),
		SessionID: int(gjson.GetBytes(body, PathSendSessionID).Int()),
	}, nil
}
