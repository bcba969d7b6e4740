package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/ultronhq/ultron/internal/api"
	"github.com/ultronhq/ultron/internal/models"
)

var (
	ErrBusy         = errors.New("a reply is still in progress")
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrClosed       = errors.New("controller is closed")
	// ErrNotLoaded is returned while the displayed log still belongs to the
	// previously shown session, i.e. the active session's history has not
	// been loaded.
	ErrNotLoaded = errors.New("session history is not loaded")
)

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger for background failures
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock replaces time.Now, for tests
func WithClock(now func() time.Time) Option {
	return func(c *Controller) {
		c.now = now
	}
}

// Controller owns the displayed session: its log, the registry, the loading
// flag and the single live stream cursor. All state is guarded by mu; the
// background work it starts never blocks on the UI.
type Controller struct {
	client   api.ClientInterface
	registry *Registry
	logger   zerolog.Logger
	now      func() time.Time

	// ctx is cancelled by Close and bounds all background work
	ctx    context.Context
	cancel context.CancelFunc

	mu   sync.Mutex
	log  *MessageLog
	logs map[int]*MessageLog
	// stale is set while log is not the active session's own log
	stale   bool
	state   State
	loading bool
	cursor  *Cursor
	epoch   uint64
	closed  bool

	events []Event
	signal chan struct{}
	wg     sync.WaitGroup
}

// NewController creates a controller showing the initial greeting
func NewController(client api.ClientInterface, opts ...Option) *Controller {
	c := &Controller{
		client:   client,
		registry: NewRegistry(client),
		logger:   zerolog.Nop(),
		now:      time.Now,
		logs:     make(map[int]*MessageLog),
		state:    StateIdle,
		signal:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.log = NewMessageLog(models.NewMessage(models.RoleAssistant, models.GreetingInitial, c.now()))
	return c
}

// Registry returns the session registry
func (c *Controller) Registry() *Registry {
	return c.registry
}

// Start loads the session list
func (c *Controller) Start(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

// Refresh reloads the session list. On failure the previous list is kept.
func (c *Controller) Refresh(ctx context.Context) error {
	_, err := c.refresh(ctx)
	return err
}

func (c *Controller) refresh(ctx context.Context) ([]models.Session, error) {
	sessions, err := c.registry.Refresh(ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		c.logger.Error().Err(err).Msg("session refresh failed")
		c.emitLocked(Event{Kind: EventError, Err: err, State: c.state})
		return sessions, err
	}
	c.emitLocked(Event{Kind: EventSessionsChanged, State: c.state})
	return sessions, nil
}

// NewSession discards the displayed conversation and starts an ephemeral
// one holding only the greeting.
func (c *Controller) NewSession() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.resetLocked(models.GreetingNewSession)
	return nil
}

func (c *Controller) resetLocked(greeting string) {
	c.supersedeLocked()
	c.epoch++
	c.registry.Select(nil)
	c.log = NewMessageLog(models.NewMessage(models.RoleAssistant, greeting, c.now()))
	c.stale = false
	c.state = StateIdle
	c.loading = false

	c.emitLocked(Event{Kind: EventActiveChanged, State: c.state})
	c.emitLocked(Event{Kind: EventLogReplaced, Role: models.RoleAssistant, LogLen: 1, State: c.state})
	c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
}

// Select makes id the active session and loads its history in the
// background. A nil id is NewSession. Any live stream is superseded.
func (c *Controller) Select(ctx context.Context, id *int) error {
	if id == nil {
		return c.NewSession()
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}

	c.selectLocked(ctx, *id)
	return nil
}

func (c *Controller) selectLocked(ctx context.Context, id int) {
	c.supersedeLocked()
	c.epoch++
	epoch := c.epoch

	// The displayed log stays on screen until the history arrives; it is
	// not registered under id, so a failed load leaves the view unchanged
	// without handing the previous transcript to this session.
	c.stale = true
	c.registry.Select(&id)
	c.state = StateLoading
	c.loading = true

	c.emitLocked(Event{Kind: EventActiveChanged, State: c.state})
	c.emitLocked(Event{Kind: EventStateChanged, State: c.state})

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.loadHistory(ctx, id, epoch)
	}()
}

func (c *Controller) loadHistory(ctx context.Context, id int, epoch uint64) {
	ctx, cancel := c.bind(ctx)
	defer cancel()
	msgs, err := c.client.ListMessages(ctx, id)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.closed {
		return
	}

	c.loading = false
	if err != nil {
		c.logger.Error().Err(err).Int("session_id", id).Msg("history load failed")
		c.state = StateIdle
		c.emitLocked(Event{Kind: EventError, Err: fmt.Errorf("failed to load session %d: %w", id, err), State: c.state})
		c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
		return
	}

	log := NewMessageLog(msgs...)
	c.logs[id] = log
	c.log = log
	c.stale = false
	c.state = StateIdleWithHistory
	c.emitLocked(Event{Kind: EventLogReplaced, Role: lastRole(msgs), LogLen: len(msgs), State: c.state})
	c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
}

// Send appends the user message and streams the reply in the background.
// It fails with ErrBusy while the active session is loading or replying.
func (c *Controller) Send(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	if c.loading {
		return ErrBusy
	}
	if c.stale {
		return ErrNotLoaded
	}

	c.supersedeLocked()
	sessionID := c.registry.Active()
	n := c.log.Append(models.NewMessage(models.RoleUser, text, c.now()))
	c.loading = true
	c.emitLocked(Event{Kind: EventMessageAppended, Role: models.RoleUser, LogLen: n, State: c.state})
	c.emitLocked(Event{Kind: EventStateChanged, State: c.state})

	cursor := newCursor(ctx, c.log, sessionID)
	c.cursor = cursor

	c.logger.Debug().
		Str("cursor", cursor.ID).
		Bool("ephemeral", sessionID == nil).
		Msg("send started")

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.runSend(cursor, text)
	}()
	return nil
}

func (c *Controller) runSend(cursor *Cursor, text string) {
	stream, err := c.client.OpenStream(cursor.Context(), text, cursor.SessionID)
	if err != nil {
		c.finishFailed(cursor, err)
		return
	}
	defer func() {
		_ = stream.Close()
	}()

	c.mu.Lock()
	if !cursor.Live() {
		c.mu.Unlock()
		if cursor.Aborted() {
			c.finishFailed(cursor, context.Canceled)
		}
		return
	}
	n := cursor.target.Append(models.NewMessage(models.RoleAssistant, "", c.now()))
	c.state = StateStreaming
	c.emitLocked(Event{Kind: EventMessageAppended, Role: models.RoleAssistant, LogLen: n, State: c.state})
	c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
	c.mu.Unlock()

	asm := &Assembler{Stream: stream, Cursor: cursor, Apply: c.applyFragment}
	switch err := asm.Run(); {
	case err == nil:
		c.finishOK(cursor)
	case errors.Is(err, ErrSuperseded):
		c.logger.Debug().Str("cursor", cursor.ID).Msg("stream superseded")
	default:
		c.finishFailed(cursor, err)
	}
}

func (c *Controller) applyFragment(cursor *Cursor, text string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if cursor.Superseded() {
		return ErrSuperseded
	}
	if cursor.Aborted() {
		return context.Canceled
	}
	if err := cursor.target.MutateLast(text); err != nil {
		return err
	}
	c.emitLocked(Event{Kind: EventMessageUpdated, Role: models.RoleAssistant, LogLen: cursor.target.Len(), State: c.state})
	return nil
}

func (c *Controller) finishOK(cursor *Cursor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cursor.Superseded() || c.cursor != cursor {
		return
	}

	c.cursor = nil
	c.state = StateIdleWithHistory
	if cursor.SessionID != nil || c.closed {
		c.loading = false
		c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
		return
	}

	// The backend created a session for this conversation; pick it up.
	// Sending stays blocked until then, or a second message would start
	// yet another session.
	c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
	epoch := c.epoch
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.adoptNewest(epoch)
	}()
}

func (c *Controller) adoptNewest(epoch uint64) {
	sessions, err := c.refresh(c.ctx)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.epoch != epoch || c.closed {
		// Select or NewSession took over, and reset loading themselves
		return
	}
	if err != nil || len(sessions) == 0 {
		c.loading = false
		c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
		return
	}
	c.selectLocked(c.ctx, sessions[0].ID)
}

func (c *Controller) finishFailed(cursor *Cursor, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cursor.Superseded() || c.cursor != cursor {
		return
	}

	if cursor.Aborted() {
		c.logger.Info().Str("cursor", cursor.ID).Msg("stream aborted")
	} else {
		c.logger.Error().Err(err).Str("cursor", cursor.ID).Msg("stream failed")
	}

	c.cursor = nil
	n := cursor.target.Append(models.NewMessage(models.RoleAssistant, models.FailureText, c.now()))
	c.loading = false
	c.state = StateIdleWithHistory
	c.emitLocked(Event{Kind: EventMessageAppended, Role: models.RoleAssistant, LogLen: n, State: c.state})
	c.emitLocked(Event{Kind: EventStateChanged, State: c.state})
	if !cursor.Aborted() {
		c.emitLocked(Event{Kind: EventError, Err: err, State: c.state})
	}
}

// Cancel aborts the live reply, if any. The failure notice is appended as
// for any interrupted stream. It reports whether a reply was aborted.
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cursor == nil || !c.cursor.Live() {
		return false
	}
	c.cursor.Abort()
	return true
}

// supersedeLocked silently cancels the live cursor
func (c *Controller) supersedeLocked() {
	if c.cursor == nil {
		return
	}
	c.logger.Debug().Str("cursor", c.cursor.ID).Msg("superseding cursor")
	c.cursor.Supersede()
	c.cursor = nil
}

// ClearAll deletes every persisted session and starts over
func (c *Controller) ClearAll(ctx context.Context) (int, error) {
	n, err := c.client.ClearAllHistory(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	c.logs = make(map[int]*MessageLog)
	if !c.closed {
		c.resetLocked(models.GreetingNewSession)
	}
	c.mu.Unlock()

	_, err = c.refresh(ctx)
	return n, err
}

// Attach uploads a file and returns the marker to insert into the draft
func (c *Controller) Attach(ctx context.Context, path string) (*models.Upload, error) {
	up, err := c.client.UploadFile(ctx, path)
	if err != nil {
		c.logger.Warn().Err(err).Str("path", path).Msg("upload failed")
		return nil, err
	}
	return up, nil
}

// ActiveMessages returns the active session id with its full log. It fails
// with ErrNotLoaded while the displayed log belongs to another session.
func (c *Controller) ActiveMessages() (*int, []models.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.stale {
		return nil, nil, ErrNotLoaded
	}
	return c.registry.Active(), c.log.Messages(), nil
}

// Snapshot returns a consistent copy of the displayed state
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{
		Sessions: c.registry.Sessions(),
		ActiveID: c.registry.Active(),
		Messages: c.log.Visible(),
		State:    c.state,
		Loading:  c.loading,
		Stale:    c.stale,
	}
	if c.state == StateStreaming {
		if last, ok := c.log.Last(); ok && last.Role == models.RoleAssistant && last.Content == "" {
			snap.Typing = true
		}
	}
	return snap
}

// Messages returns every message of the displayed log, hidden ones included
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.log.Messages()
}

// SessionLog returns the stored log of a persisted session
func (c *Controller) SessionLog(id int) ([]models.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	log, ok := c.logs[id]
	if !ok {
		return nil, false
	}
	return log.Messages(), true
}

// State returns the current state and loading flag
func (c *Controller) State() (State, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state, c.loading
}

// ActiveID returns the active session id, nil for the ephemeral session
func (c *Controller) ActiveID() *int {
	return c.registry.Active()
}

func (c *Controller) emitLocked(ev Event) {
	c.events = append(c.events, ev)
	select {
	case c.signal <- struct{}{}:
	default:
	}
}

// WaitEvents blocks until at least one event is queued and returns all
// queued events in order. It returns ErrClosed once the controller is closed
// and drained.
func (c *Controller) WaitEvents(ctx context.Context) ([]Event, error) {
	for {
		c.mu.Lock()
		if len(c.events) > 0 {
			evs := c.events
			c.events = nil
			c.mu.Unlock()
			return evs, nil
		}
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return nil, ErrClosed
		}

		select {
		case <-c.signal:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// Wait blocks until all background work has finished
func (c *Controller) Wait() {
	c.wg.Wait()
}

// Close cancels any live stream and waits for background work
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.cancel()
	c.supersedeLocked()
	c.epoch++
	select {
	case c.signal <- struct{}{}:
	default:
	}
	c.mu.Unlock()

	c.wg.Wait()
}

// bind derives a context from ctx that Close also cancels
func (c *Controller) bind(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(c.ctx, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func lastRole(msgs []models.Message) models.Role {
	if len(msgs) == 0 {
		return models.RoleAssistant
	}
	return msgs[len(msgs)-1].Role
}
