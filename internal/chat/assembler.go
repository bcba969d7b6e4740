package chat

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"

	"github.com/ultronhq/ultron/internal/api"
)

// ErrSuperseded is returned when a cursor was replaced by a newer send or a
// session switch. It is never shown to the user.
var ErrSuperseded = errors.New("stream superseded")

// Cursor tracks one in-flight reply: the log it writes to, the accumulated
// text and whether it was cancelled.
type Cursor struct {
	ID        string
	SessionID *int

	ctx        context.Context
	cancel     context.CancelFunc
	target     *MessageLog
	mu         sync.Mutex
	acc        strings.Builder
	superseded atomic.Bool
	aborted    atomic.Bool
}

func newCursor(parent context.Context, target *MessageLog, sessionID *int) *Cursor {
	ctx, cancel := context.WithCancel(parent)
	return &Cursor{
		ID:        uuid.NewString(),
		SessionID: copyID(sessionID),
		ctx:       ctx,
		cancel:    cancel,
		target:    target,
	}
}

// Context is cancelled once the cursor stops being live
func (c *Cursor) Context() context.Context {
	return c.ctx
}

// Supersede cancels the cursor silently; nothing more is written to its log
func (c *Cursor) Supersede() {
	c.superseded.Store(true)
	c.cancel()
}

// Abort cancels the cursor on user request; the failure notice is still
// appended.
func (c *Cursor) Abort() {
	c.aborted.Store(true)
	c.cancel()
}

// Superseded reports whether Supersede was called
func (c *Cursor) Superseded() bool {
	return c.superseded.Load()
}

// Aborted reports whether Abort was called
func (c *Cursor) Aborted() bool {
	return c.aborted.Load()
}

// Live reports whether fragments may still be applied
func (c *Cursor) Live() bool {
	return !c.Superseded() && !c.Aborted()
}

// Text returns the accumulated reply so far
func (c *Cursor) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.acc.String()
}

func (c *Cursor) add(frag string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.acc.WriteString(frag)
	return c.acc.String()
}

// Assembler pulls fragments from a stream into a cursor. Apply is called
// with the full accumulated text after every fragment.
type Assembler struct {
	Stream api.FragmentStream
	Cursor *Cursor
	Apply  func(c *Cursor, text string) error
}

// Run pulls until the end of the stream. It returns nil at end of stream,
// ErrSuperseded if the cursor was replaced, and the stream or apply error
// otherwise.
func (a *Assembler) Run() error {
	for {
		frag, err := a.Stream.Next()
		if a.Cursor.Superseded() {
			return ErrSuperseded
		}
		if a.Cursor.Aborted() {
			return context.Canceled
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if frag == "" {
			continue
		}

		if err := a.Apply(a.Cursor, a.Cursor.add(frag)); err != nil {
			return err
		}
	}
}
