package chat

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Message is one immutable entry in a conversation's log.
type Message struct {
	ID             string
	ConversationID string
	SenderID       string
	SenderContact  string
	Body           string
	CreatedAt      time.Time
}

// Less orders messages by (CreatedAt, ID). The id tie-break keeps the order
// total when two messages share a timestamp.
func Less(a, b Message) bool {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.Before(b.CreatedAt)
	}
	return a.ID < b.ID
}

// SortMessages sorts a snapshot in delivery order.
func SortMessages(msgs []Message) {
	sort.Slice(msgs, func(i, j int) bool {
		return Less(msgs[i], msgs[j])
	})
}

// ValidateBody normalizes a message body, failing with ErrEmptyBody when
// nothing is left after trimming.
func ValidateBody(body string) (string, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return "", ErrEmptyBody
	}
	return body, nil
}

// SnapshotFunc receives the full ordered message sequence of a conversation.
// Implementations must not block for long-running work.
type SnapshotFunc func(msgs []Message)

// Subscription is the cancellation handle of a live message feed. Cancel is
// idempotent and stops further snapshot deliveries.
type Subscription interface {
	Cancel()
}

// MessageLog is the append-only, time-ordered message sequence of a
// conversation. Messages are never reordered or mutated after append.
type MessageLog interface {
	// Append validates the body, assigns the message id and server timestamp,
	// and stores the message. Fails with ErrEmptyBody or ErrNotFound.
	Append(ctx context.Context, conversationID, senderID, senderContact, body string) (Message, error)
	// Messages returns the full ordered log of a conversation.
	Messages(ctx context.Context, conversationID string) ([]Message, error)
	// Subscribe registers fn as a live listener. fn is invoked once with the
	// current snapshot and again after every append, always in ascending
	// (CreatedAt, ID) order; successive snapshots never regress.
	Subscribe(ctx context.Context, conversationID string, fn SnapshotFunc) (Subscription, error)
}

// Notifier publishes chat activity to interested outside systems. Failures
// must not affect the send path.
type Notifier interface {
	ConversationCreated(ctx context.Context, conv Conversation)
	MessageSent(ctx context.Context, msg Message)
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

func (NopNotifier) ConversationCreated(context.Context, Conversation) {}
func (NopNotifier) MessageSent(context.Context, Message)              {}

// SendTx is the logical "send" transaction: one message append plus the
// companion conversation preview update. Concrete backends may only offer
// best-effort multi-write; the seam exists so the inconsistency window lives
// in one place.
type SendTx interface {
	// Append stores the message. Call at most once per transaction.
	Append(ctx context.Context, senderID, senderContact, body string) (Message, error)
	// Commit performs the preview update for the appended message.
	Commit(ctx context.Context) error
	// Rollback abandons the preview update. The append itself is durable and
	// cannot be undone.
	Rollback(ctx context.Context) error
}

// SendTxFactory opens send transactions against one conversation.
type SendTxFactory interface {
	BeginSend(ctx context.Context, conversationID string) (SendTx, error)
}

type sendPipeline struct {
	store      ConversationStore
	log        MessageLog
	previewMax int
}

// NewSendPipeline builds the default best-effort SendTxFactory over a
// conversation store and message log. previewMax bounds the stored preview
// snippet length in runes.
func NewSendPipeline(store ConversationStore, log MessageLog, previewMax int) SendTxFactory {
	if previewMax <= 0 {
		previewMax = 500
	}
	return &sendPipeline{store: store, log: log, previewMax: previewMax}
}

func (p *sendPipeline) BeginSend(ctx context.Context, conversationID string) (SendTx, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, fmt.Errorf("%w: conversation id is required", ErrNotFound)
	}
	return &sendTx{pipeline: p, conversationID: conversationID}, nil
}

type sendTx struct {
	pipeline       *sendPipeline
	conversationID string
	appended       *Message
	done           bool
}

func (t *sendTx) Append(ctx context.Context, senderID, senderContact, body string) (Message, error) {
	if t.done {
		return Message{}, fmt.Errorf("chat: send transaction already finished")
	}
	if t.appended != nil {
		return Message{}, fmt.Errorf("chat: message already appended in this transaction")
	}
	msg, err := t.pipeline.log.Append(ctx, t.conversationID, senderID, senderContact, body)
	if err != nil {
		return Message{}, err
	}
	t.appended = &msg
	return msg, nil
}

func (t *sendTx) Commit(ctx context.Context) error {
	if t.done {
		return nil
	}
	t.done = true
	if t.appended == nil {
		return nil
	}
	preview := PreviewSnippet(t.appended.Body, t.pipeline.previewMax)
	return t.pipeline.store.UpdatePreview(ctx, t.conversationID, preview, t.appended.CreatedAt)
}

func (t *sendTx) Rollback(ctx context.Context) error {
	t.done = true
	return nil
}
