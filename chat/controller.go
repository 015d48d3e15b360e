// Package chat implements the conversational response controller: a
// single-owner conversation thread of user and assistant turns, two reply
// delivery modes (incremental streaming and one-shot with a character
// reveal), cancellation, and best-effort persistence of finished exchanges.
package chat

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

// Observer is invoked after every turn mutation with a snapshot of the
// thread. It is called synchronously on the mutating flow and must not
// call back into the controller.
type Observer func(turns []Turn)

// pendingDelivery is the at-most-one-per-thread handle for an in-flight
// assistant reply. It is registered by Submit and released when the reply
// reaches a terminal state or is cancelled.
type pendingDelivery struct {
	turnID int64
	mode   DeliveryMode
	cancel context.CancelFunc
}

// Controller owns one conversation thread for its whole lifetime and
// guarantees at most one outstanding delivery at a time. All mutation goes
// through the controller mutex; Submit never blocks on the network.
type Controller struct {
	mu      sync.Mutex
	backend Backend
	reveal  *RevealScheduler

	turns    []*Turn
	nextID   int64
	pending  *pendingDelivery
	observer Observer
	closed   bool

	logTimeout time.Duration
	now        func() time.Time
}

// Option configures a Controller.
type Option func(*Controller)

// WithObserver registers the thread observer.
func WithObserver(o Observer) Option {
	return func(c *Controller) { c.observer = o }
}

// WithRevealInterval overrides the reveal tick interval.
func WithRevealInterval(d time.Duration) Option {
	return func(c *Controller) { c.reveal = NewRevealScheduler(d) }
}

// WithLogTimeout bounds the fire-and-forget history write.
func WithLogTimeout(d time.Duration) Option {
	return func(c *Controller) { c.logTimeout = d }
}

// NewController creates a controller over the given backend.
func NewController(backend Backend, opts ...Option) *Controller {
	c := &Controller{
		backend:    backend,
		reveal:     NewRevealScheduler(DefaultRevealInterval),
		nextID:     1,
		logTimeout: 10 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Turns returns a snapshot of the thread in display order.
func (c *Controller) Turns() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Submit appends the user message and starts delivering the assistant
// reply. It returns immediately; progress is observed through turn state
// changes. Rejected with ErrEmptyMessage, ErrBusy, or ErrClosed before any
// turn is created.
func (c *Controller) Submit(ctx context.Context, message string, rc RequestContext) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrClosed
	}
	if c.pending != nil {
		c.mu.Unlock()
		return ErrBusy
	}

	c.appendTurnLocked(&Turn{
		Author: AuthorUser,
		Text:   message,
		State:  DeliveryComplete,
	})
	assistant := c.appendTurnLocked(&Turn{
		Author: AuthorAssistant,
		State:  DeliveryPending,
	})

	mode := SelectDeliveryMode(rc.ModelID)
	// Delivery outlives the caller's request scope but keeps its values.
	dctx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c.pending = &pendingDelivery{turnID: assistant.ID, mode: mode, cancel: cancel}
	c.mu.Unlock()

	slog.Info("chat.submit",
		"turn_id", assistant.ID,
		"model", rc.ModelID,
		"mode", mode,
		"operation_type", rc.OperationType,
		"document_count", len(rc.DocumentIDs),
	)

	switch mode {
	case ModeOneShot:
		go c.runOneShot(dctx, message, rc, assistant.ID)
	default:
		go c.runStream(dctx, message, rc, assistant.ID)
	}
	return nil
}

// Cancel aborts the in-flight delivery, if any. The assistant turn keeps
// whatever text it has accumulated and is marked failed with reason
// "cancelled". Idempotent: a no-op when nothing is active.
func (c *Controller) Cancel() {
	c.mu.Lock()
	p := c.pending
	if p == nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	c.failTurnLocked(p.turnID, "cancelled")
	c.mu.Unlock()

	p.cancel()
	c.reveal.CancelActive()
	slog.Info("chat.cancel", "turn_id", p.turnID)
}

// Close tears the controller down: the active delivery is cancelled, the
// reveal queue is dropped, and further Submit calls fail with ErrClosed.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	p := c.pending
	c.pending = nil
	if p != nil {
		c.failTurnLocked(p.turnID, "cancelled")
	}
	c.mu.Unlock()

	if p != nil {
		p.cancel()
	}
	c.reveal.Close()
}

// runStream drives the streaming path: fragments are appended to the turn
// in arrival order until the backend reports completion or failure.
func (c *Controller) runStream(ctx context.Context, message string, rc RequestContext, turnID int64) {
	err := c.backend.StreamReply(ctx, message, rc, func(fragment string) {
		c.appendFragment(turnID, fragment)
	})
	if ctx.Err() != nil {
		// Cancelled; Cancel/Close already settled the turn state.
		return
	}
	if err != nil {
		c.failDelivery(turnID, err)
		return
	}
	c.completeDelivery(turnID, message, rc)
}

// runOneShot drives the one-shot path: the full reply is fetched, then
// handed to the reveal scheduler for incremental playback.
func (c *Controller) runOneShot(ctx context.Context, message string, rc RequestContext, turnID int64) {
	reply, err := c.backend.GetReply(ctx, message, rc)
	if ctx.Err() != nil {
		return
	}
	if err != nil {
		c.failDelivery(turnID, err)
		return
	}

	c.mu.Lock()
	turn := c.turnLocked(turnID)
	if turn == nil || turn.State.Terminal() {
		c.mu.Unlock()
		return
	}
	turn.State = DeliveryRevealing
	c.notifyLocked()
	c.mu.Unlock()

	c.reveal.Schedule(turnID, reply,
		func(prefix string) { c.applyRevealPrefix(turnID, prefix) },
		func() { c.completeDelivery(turnID, message, rc) },
	)
}

// appendFragment applies one streamed fragment. Fragments arriving after
// the turn reached a terminal state are dropped.
func (c *Controller) appendFragment(turnID int64, fragment string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	turn := c.turnLocked(turnID)
	if turn == nil || turn.State.Terminal() {
		return
	}
	if turn.State == DeliveryPending {
		turn.State = DeliveryStreaming
	}
	turn.Text += fragment
	c.notifyLocked()
}

// applyRevealPrefix sets the turn text to the revealed prefix. Ticks
// arriving after cancellation find a terminal turn and are dropped.
func (c *Controller) applyRevealPrefix(turnID int64, prefix string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	turn := c.turnLocked(turnID)
	if turn == nil || turn.State != DeliveryRevealing {
		return
	}
	turn.Text = prefix
	c.notifyLocked()
}

// completeDelivery finalizes the turn and kicks off the best-effort
// history write.
func (c *Controller) completeDelivery(turnID int64, userMessage string, rc RequestContext) {
	c.mu.Lock()
	turn := c.turnLocked(turnID)
	if turn == nil || turn.State.Terminal() {
		c.mu.Unlock()
		return
	}
	turn.State = DeliveryComplete
	reply := turn.Text
	if c.pending != nil && c.pending.turnID == turnID {
		c.pending = nil
	}
	c.notifyLocked()
	c.mu.Unlock()

	slog.Info("chat.delivery_complete", "turn_id", turnID, "reply_length", len(reply))
	go c.logExchange(userMessage, reply, rc)
}

// failDelivery settles the turn as failed and surfaces the error text in
// place of a reply.
func (c *Controller) failDelivery(turnID int64, err error) {
	slog.Warn("chat.delivery_failed", "turn_id", turnID, "error", err)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.pending != nil && c.pending.turnID == turnID {
		c.pending = nil
	}
	turn := c.turnLocked(turnID)
	if turn == nil || turn.State.Terminal() {
		return
	}
	// The error text replaces any partial reply; the presentation layer
	// renders it in place of the answer.
	turn.State = DeliveryFailed
	turn.Reason = err.Error()
	turn.Text = err.Error()
	c.notifyLocked()
}

// logExchange is the detached best-effort history write. Failure is
// logged and swallowed; it never changes the displayed turn state and is
// never retried.
func (c *Controller) logExchange(userMessage, assistantReply string, rc RequestContext) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("chat.log_exchange panic", "panic", r)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), c.logTimeout)
	defer cancel()
	if err := c.backend.LogExchange(ctx, userMessage, assistantReply, rc); err != nil {
		slog.Warn("chat.log_exchange failed", "error", err)
	}
}

func (c *Controller) appendTurnLocked(turn *Turn) *Turn {
	turn.ID = c.nextID
	c.nextID++
	turn.CreatedTs = c.now().Unix()
	c.turns = append(c.turns, turn)
	c.notifyLocked()
	return turn
}

func (c *Controller) failTurnLocked(turnID int64, reason string) {
	turn := c.turnLocked(turnID)
	if turn == nil || turn.State.Terminal() {
		return
	}
	turn.State = DeliveryFailed
	turn.Reason = reason
	if turn.Text == "" {
		turn.Text = reason
	}
	c.notifyLocked()
}

func (c *Controller) turnLocked(id int64) *Turn {
	for _, t := range c.turns {
		if t.ID == id {
			return t
		}
	}
	return nil
}

func (c *Controller) snapshotLocked() []Turn {
	out := make([]Turn, len(c.turns))
	for i, t := range c.turns {
		out[i] = *t
	}
	return out
}

func (c *Controller) notifyLocked() {
	if c.observer != nil {
		c.observer(c.snapshotLocked())
	}
}
