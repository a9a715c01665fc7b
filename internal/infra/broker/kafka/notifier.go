package kafka

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
)

// eventPublisher is the subset of Producer the notifier needs.
type eventPublisher interface {
	Publish(ctx context.Context, topic string, key string, payload []byte, headers map[string]string) error
}

// Notifier publishes chat activity as CloudEvents-style JSON records.
// Publishing is best-effort: a broker failure is logged and never surfaces
// into the send path.
type Notifier struct {
	Producer    eventPublisher
	TopicPrefix string
	Source      string
	Logger      *slog.Logger
}

const eventsTopic = "chat.events.v1"

// ConversationCreated publishes a chat.conversation.created.v1 event.
func (n *Notifier) ConversationCreated(ctx context.Context, conv chat.Conversation) {
	n.publish(ctx, "chat.conversation.created.v1", conv.ID, map[string]any{
		"conversation_id": conv.ID,
		"item_id":         conv.ItemID,
		"buyer_id":        conv.BuyerID,
		"seller_id":       conv.SellerID,
		"created_at":      conv.CreatedAt,
	})
}

// MessageSent publishes a chat.message.sent.v1 event.
func (n *Notifier) MessageSent(ctx context.Context, msg chat.Message) {
	n.publish(ctx, "chat.message.sent.v1", msg.ConversationID, map[string]any{
		"conversation_id": msg.ConversationID,
		"message_id":      msg.ID,
		"sender_id":       msg.SenderID,
		"created_at":      msg.CreatedAt,
	})
}

func (n *Notifier) publish(ctx context.Context, eventType, key string, data map[string]any) {
	if n.Producer == nil {
		return
	}
	evt := map[string]any{
		"specversion":     "1.0",
		"id":              uuid.NewString(),
		"type":            eventType,
		"source":          n.source(),
		"time":            time.Now().UTC(),
		"datacontenttype": "application/json",
		"data":            data,
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		if n.Logger != nil {
			n.Logger.Warn("chat event encode failed", "type", eventType, "error", err)
		}
		return
	}
	topic := eventsTopic
	if n.TopicPrefix != "" {
		topic = n.TopicPrefix + topic
	}
	headers := map[string]string{"content-type": "application/cloudevents+json"}
	if err := n.Producer.Publish(ctx, topic, key, payload, headers); err != nil && n.Logger != nil {
		n.Logger.Warn("chat event publish failed", "type", eventType, "topic", topic, "error", err)
	}
}

func (n *Notifier) source() string {
	if n.Source != "" {
		return n.Source
	}
	return "app://technest"
}

var _ chat.Notifier = (*Notifier)(nil)
