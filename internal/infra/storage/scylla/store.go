package scylla

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
	"github.com/aryanjadon13-code/Technest/internal/infra/livesync"
)

// Store persists conversations and messages in Scylla. Conversations are
// keyed by the derived text id; messages cluster ascending by
// (created_at, message_id), matching the delivery order.
type Store struct {
	session *gocql.Session
	logger  *slog.Logger
	hub     *livesync.Hub
}

// NewStore builds a Store over a connected session.
func NewStore(session *gocql.Session, logger *slog.Logger) *Store {
	s := &Store{session: session, logger: logger}
	s.hub = livesync.NewHub(s.Messages, logger)
	return s
}

// Ensure creates the conversation with a lightweight transaction, so
// concurrent ensures for the same triple leave exactly one record.
func (s *Store) Ensure(ctx context.Context, conv chat.Conversation) (chat.Conversation, bool, error) {
	if s.session == nil {
		return chat.Conversation{}, false, errors.New("scylla session not initialized")
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	prev := map[string]interface{}{}
	applied, err := s.session.
		Query(`INSERT INTO conversations (id, item_id, item_title, buyer_id, buyer_contact, seller_id, seller_contact, created_at, last_message_preview) VALUES (?, ?, ?, ?, ?, ?, ?, ?, '') IF NOT EXISTS`,
			conv.ID, conv.ItemID, conv.ItemTitle, conv.BuyerID, conv.BuyerContact, conv.SellerID, conv.SellerContact, conv.CreatedAt).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		MapScanCAS(prev)
	if err != nil {
		return chat.Conversation{}, false, fmt.Errorf("ensure conversation: %w", err)
	}
	if applied {
		return conv, true, nil
	}
	existing, err := s.Get(ctx, conv.ID)
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return existing, false, nil
}

// Get returns a conversation by its derived identifier.
func (s *Store) Get(ctx context.Context, id string) (chat.Conversation, error) {
	if s.session == nil {
		return chat.Conversation{}, errors.New("scylla session not initialized")
	}
	var row chat.Conversation
	err := s.session.
		Query(`SELECT id, item_id, item_title, buyer_id, buyer_contact, seller_id, seller_contact, created_at, last_message_preview, last_message_at FROM conversations WHERE id = ? LIMIT 1`, strings.TrimSpace(id)).
		WithContext(ctx).
		Consistency(gocql.One).
		Scan(&row.ID, &row.ItemID, &row.ItemTitle, &row.BuyerID, &row.BuyerContact, &row.SellerID, &row.SellerContact, &row.CreatedAt, &row.LastMessagePreview, &row.LastMessageAt)
	if errors.Is(err, gocql.ErrNotFound) {
		return chat.Conversation{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	return row, nil
}

// UpdatePreview sets the preview fields of an existing conversation.
func (s *Store) UpdatePreview(ctx context.Context, id, preview string, at time.Time) error {
	if s.session == nil {
		return errors.New("scylla session not initialized")
	}
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	if err := s.session.
		Query(`UPDATE conversations SET last_message_preview = ?, last_message_at = ? WHERE id = ?`,
			preview, at.UTC(), id).
		WithContext(ctx).
		Consistency(gocql.One).
		Exec(); err != nil {
		return fmt.Errorf("update preview: %w", err)
	}
	return nil
}

// ListByParticipant returns the user's conversations sorted by last
// activity descending.
func (s *Store) ListByParticipant(ctx context.Context, userID string) ([]chat.Conversation, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	userID = strings.TrimSpace(userID)
	seen := make(map[string]struct{})
	conversations := make([]chat.Conversation, 0)
	for _, column := range []string{"buyer_id", "seller_id"} {
		iter := s.session.
			Query(`SELECT id, item_id, item_title, buyer_id, buyer_contact, seller_id, seller_contact, created_at, last_message_preview, last_message_at FROM conversations WHERE `+column+` = ? ALLOW FILTERING`, userID).
			WithContext(ctx).
			Consistency(gocql.One).
			Iter()
		var row chat.Conversation
		for iter.Scan(&row.ID, &row.ItemID, &row.ItemTitle, &row.BuyerID, &row.BuyerContact, &row.SellerID, &row.SellerContact, &row.CreatedAt, &row.LastMessagePreview, &row.LastMessageAt) {
			if _, ok := seen[row.ID]; ok {
				continue
			}
			seen[row.ID] = struct{}{}
			conversations = append(conversations, row)
		}
		if err := iter.Close(); err != nil {
			return nil, fmt.Errorf("list conversations: %w", err)
		}
	}
	sort.Slice(conversations, func(i, j int) bool {
		a, b := conversations[i].LastActivity(), conversations[j].LastActivity()
		if a.Equal(b) {
			return conversations[i].ID < conversations[j].ID
		}
		return a.After(b)
	})
	return conversations, nil
}

// Append stores a message and wakes the conversation's subscribers.
func (s *Store) Append(ctx context.Context, conversationID, senderID, senderContact, body string) (chat.Message, error) {
	if s.session == nil {
		return chat.Message{}, errors.New("scylla session not initialized")
	}
	body, err := chat.ValidateBody(body)
	if err != nil {
		return chat.Message{}, err
	}
	if _, err := s.Get(ctx, conversationID); err != nil {
		return chat.Message{}, err
	}
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderContact:  senderContact,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.session.
		Query(`INSERT INTO messages (conversation_id, created_at, message_id, sender_id, sender_contact, body) VALUES (?, ?, ?, ?, ?, ?)`,
			msg.ConversationID, msg.CreatedAt, msg.ID, msg.SenderID, msg.SenderContact, msg.Body).
		WithContext(ctx).
		Consistency(gocql.Quorum).
		Exec(); err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	s.hub.Notify(conversationID)
	return msg, nil
}

// Messages returns the ordered log of a conversation.
func (s *Store) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	if s.session == nil {
		return nil, errors.New("scylla session not initialized")
	}
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	iter := s.session.
		Query(`SELECT conversation_id, created_at, message_id, sender_id, sender_contact, body FROM messages WHERE conversation_id = ?`, conversationID).
		WithContext(ctx).
		Consistency(gocql.One).
		Iter()

	msgs := make([]chat.Message, 0)
	var row chat.Message
	for iter.Scan(&row.ConversationID, &row.CreatedAt, &row.ID, &row.SenderID, &row.SenderContact, &row.Body) {
		msgs = append(msgs, row)
	}
	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	chat.SortMessages(msgs)
	return msgs, nil
}

// Subscribe registers a live snapshot listener for the conversation.
func (s *Store) Subscribe(ctx context.Context, conversationID string, fn chat.SnapshotFunc) (chat.Subscription, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, conversationID, fn)
}

// Close cancels all live subscriptions.
func (s *Store) Close() {
	s.hub.Close()
}

var (
	_ chat.ConversationStore = (*Store)(nil)
	_ chat.MessageLog        = (*Store)(nil)
)
