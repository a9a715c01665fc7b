// Package session drives the lifecycle of one open chat view: resolve the
// item, derive the conversation identity, ensure the conversation record, and
// hold the live message subscription until the view is closed.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/aryanjadon13-code/Technest/internal/domain/catalog"
	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
	"github.com/aryanjadon13-code/Technest/internal/domain/identity"
)

// State names the controller's position in the bootstrap state machine.
type State string

const (
	StateIdle                 State = "IDLE"
	StateResolvingItem        State = "RESOLVING_ITEM"
	StateDerivingIdentity     State = "DERIVING_IDENTITY"
	StateEnsuringConversation State = "ENSURING_CONVERSATION"
	StateSubscribed           State = "SUBSCRIBED"
	StateError                State = "ERROR"
	StateClosed               State = "CLOSED"
)

// Config carries the collaborators and retry policy of a controller.
type Config struct {
	Catalog  catalog.Repository
	Store    chat.ConversationStore
	Log      chat.MessageLog
	Sends    chat.SendTxFactory
	Notifier chat.Notifier
	Logger   *slog.Logger

	// EnsureRetries bounds additional attempts for item resolution and
	// conversation ensure on transient store errors.
	EnsureRetries int
	RetryBackoff  []time.Duration
}

// Controller owns one active conversation view for one signed-in user.
// Open drives Idle through Subscribed; Close is the only way out of
// Subscribed. Error states require a fresh controller.
type Controller struct {
	cfg  Config
	user identity.Identity
	item string

	mu         sync.Mutex
	state      State
	err        error
	conv       chat.Conversation
	msgs       []chat.Message
	sub        chat.Subscription
	onMessages func([]chat.Message)
}

// NewController builds an idle controller for the given user and item. The
// identity is passed in explicitly so the core stays testable without a live
// auth backend.
func NewController(cfg Config, user identity.Identity, itemID string) *Controller {
	if cfg.Notifier == nil {
		cfg.Notifier = chat.NopNotifier{}
	}
	if cfg.EnsureRetries < 0 {
		cfg.EnsureRetries = 0
	}
	return &Controller{cfg: cfg, user: user, item: itemID, state: StateIdle}
}

// Open bootstraps the session. On success the controller is Subscribed and
// live snapshots start flowing to the OnMessages callback.
func (c *Controller) Open(ctx context.Context) error {
	if !c.user.Valid() {
		return c.fail(identity.ErrUnauthenticated)
	}

	if err := c.transition(StateIdle, StateResolvingItem); err != nil {
		return err
	}
	var item catalog.Item
	err := c.withRetry(ctx, "resolve item", func(ctx context.Context) error {
		var err error
		item, err = c.cfg.Catalog.ByID(ctx, c.item)
		return err
	}, catalog.ErrItemNotFound)
	if err != nil {
		return c.fail(err)
	}
	if item.SellerID == c.user.ID {
		return c.fail(chat.ErrSelfChat)
	}

	if err := c.transition(StateResolvingItem, StateDerivingIdentity); err != nil {
		return err
	}
	conversationID, err := chat.DeriveConversationID(item.ID, item.SellerID, c.user.ID)
	if err != nil {
		return c.fail(err)
	}

	if err := c.transition(StateDerivingIdentity, StateEnsuringConversation); err != nil {
		return err
	}
	meta, err := chat.NewConversation(conversationID, item.ID, item.Title, c.user.ID, c.user.Contact, item.SellerID, item.SellerContact)
	if err != nil {
		return c.fail(err)
	}
	var (
		conv    chat.Conversation
		created bool
	)
	err = c.withRetry(ctx, "ensure conversation", func(ctx context.Context) error {
		var err error
		conv, created, err = c.cfg.Store.Ensure(ctx, meta)
		return err
	})
	if err != nil {
		return c.fail(err)
	}
	if created {
		c.cfg.Notifier.ConversationCreated(ctx, conv)
		if c.cfg.Logger != nil {
			c.cfg.Logger.Info("conversation created", "conversation_id", conv.ID, "item_id", conv.ItemID)
		}
	}

	sub, err := c.cfg.Log.Subscribe(ctx, conv.ID, c.deliver)
	if err != nil {
		return c.fail(err)
	}

	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		sub.Cancel()
		return errors.New("session: closed during open")
	}
	c.conv = conv
	c.sub = sub
	c.state = StateSubscribed
	c.mu.Unlock()
	return nil
}

// Send appends a message to the subscribed conversation and updates its
// preview. Only valid in Subscribed; any other state fails with ErrNotReady
// before any I/O. A send already in flight when Close is called may still
// succeed against the store; its snapshot is simply no longer delivered.
func (c *Controller) Send(ctx context.Context, body string) (chat.Message, error) {
	c.mu.Lock()
	if c.state != StateSubscribed {
		c.mu.Unlock()
		return chat.Message{}, chat.ErrNotReady
	}
	conversationID := c.conv.ID
	c.mu.Unlock()

	return chat.Send(ctx, c.cfg.Sends, c.cfg.Notifier, c.cfg.Logger, conversationID, c.user.ID, c.user.Contact, body)
}

// Close disposes the session and synchronously cancels the live
// subscription. Safe to call more than once and from any state.
func (c *Controller) Close() {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	sub := c.sub
	c.sub = nil
	c.state = StateClosed
	c.mu.Unlock()
	if sub != nil {
		sub.Cancel()
	}
}

// OnMessages registers the snapshot callback. When a snapshot has already
// been delivered the callback fires immediately with the current state.
func (c *Controller) OnMessages(fn func([]chat.Message)) {
	c.mu.Lock()
	c.onMessages = fn
	var current []chat.Message
	if c.msgs != nil {
		current = append([]chat.Message(nil), c.msgs...)
	}
	c.mu.Unlock()
	if fn != nil && current != nil {
		fn(current)
	}
}

// State returns the current state-machine position for UI feedback.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Err returns the error that moved the controller into StateError, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Conversation returns the subscribed conversation's metadata.
func (c *Controller) Conversation() chat.Conversation {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conv
}

// Messages returns the latest delivered snapshot.
func (c *Controller) Messages() []chat.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]chat.Message(nil), c.msgs...)
}

func (c *Controller) deliver(msgs []chat.Message) {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return
	}
	c.msgs = append(c.msgs[:0], msgs...)
	fn := c.onMessages
	snapshot := append([]chat.Message(nil), c.msgs...)
	c.mu.Unlock()
	if fn != nil {
		fn(snapshot)
	}
}

func (c *Controller) transition(from, to State) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != from {
		return fmt.Errorf("session: cannot move to %s from %s", to, c.state)
	}
	c.state = to
	return nil
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	c.state = StateError
	c.err = err
	c.mu.Unlock()
	if c.cfg.Logger != nil {
		c.cfg.Logger.Debug("session bootstrap failed", "item_id", c.item, "error", err)
	}
	return err
}

// withRetry runs fn, retrying on transient failures with the configured
// backoff. Errors matching one of the terminal sentinels are surfaced
// immediately; exhausting the budget surfaces ErrStoreUnavailable.
func (c *Controller) withRetry(ctx context.Context, op string, fn func(context.Context) error, terminal ...error) error {
	var lastErr error
	for attempt := 0; attempt <= c.cfg.EnsureRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(ctx)
		if err == nil {
			return nil
		}
		for _, t := range terminal {
			if errors.Is(err, t) {
				return err
			}
		}
		lastErr = err
		if attempt == c.cfg.EnsureRetries {
			break
		}
		if c.cfg.Logger != nil {
			c.cfg.Logger.Warn("transient store error, retrying", "op", op, "attempt", attempt+1, "error", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff(attempt)):
		}
	}
	return fmt.Errorf("%s: %w: %v", op, chat.ErrStoreUnavailable, lastErr)
}

func (c *Controller) backoff(attempt int) time.Duration {
	if len(c.cfg.RetryBackoff) == 0 {
		return 100 * time.Millisecond
	}
	if attempt >= len(c.cfg.RetryBackoff) {
		return c.cfg.RetryBackoff[len(c.cfg.RetryBackoff)-1]
	}
	return c.cfg.RetryBackoff[attempt]
}
