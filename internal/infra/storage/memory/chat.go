package memory

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
	"github.com/aryanjadon13-code/Technest/internal/infra/livesync"
)

// ChatStore is an in-memory conversation store and message log. It backs
// tests and single-process deployments without external storage.
type ChatStore struct {
	mu            sync.RWMutex
	conversations map[string]chat.Conversation
	messages      map[string][]chat.Message

	hub *livesync.Hub
	now func() time.Time
}

// NewChatStore builds an empty store with its own live sync hub.
func NewChatStore(logger *slog.Logger) *ChatStore {
	s := &ChatStore{
		conversations: make(map[string]chat.Conversation),
		messages:      make(map[string][]chat.Message),
		now:           time.Now,
	}
	s.hub = livesync.NewHub(s.Messages, logger)
	return s
}

// Ensure creates the conversation when absent and returns the stored record.
// Creation and the existence check run under one lock, so two concurrent
// calls for the same id yield exactly one record.
func (s *ChatStore) Ensure(ctx context.Context, conv chat.Conversation) (chat.Conversation, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.conversations[conv.ID]; ok {
		return existing, false, nil
	}
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = s.now().UTC()
	}
	s.conversations[conv.ID] = conv
	return conv, true, nil
}

// Get returns a conversation or chat.ErrNotFound.
func (s *ChatStore) Get(ctx context.Context, id string) (chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.Conversation{}, chat.ErrNotFound
	}
	return conv, nil
}

// UpdatePreview merges the preview fields of an existing conversation.
func (s *ChatStore) UpdatePreview(ctx context.Context, id, preview string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	conv, ok := s.conversations[id]
	if !ok {
		return chat.ErrNotFound
	}
	conv.LastMessagePreview = preview
	conv.LastMessageAt = at
	s.conversations[id] = conv
	return nil
}

// ListByParticipant returns the user's conversations, most recently active
// first.
func (s *ChatStore) ListByParticipant(ctx context.Context, userID string) ([]chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	userID = strings.TrimSpace(userID)
	matches := make([]chat.Conversation, 0)
	for _, conv := range s.conversations {
		if conv.Participant(userID) {
			matches = append(matches, conv)
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i].LastActivity(), matches[j].LastActivity()
		if a.Equal(b) {
			return matches[i].ID < matches[j].ID
		}
		return a.After(b)
	})
	return matches, nil
}

// Append stores a message and wakes the conversation's subscribers.
func (s *ChatStore) Append(ctx context.Context, conversationID, senderID, senderContact, body string) (chat.Message, error) {
	body, err := chat.ValidateBody(body)
	if err != nil {
		return chat.Message{}, err
	}
	s.mu.Lock()
	if _, ok := s.conversations[conversationID]; !ok {
		s.mu.Unlock()
		return chat.Message{}, chat.ErrNotFound
	}
	msg := chat.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		SenderID:       senderID,
		SenderContact:  senderContact,
		Body:           body,
		CreatedAt:      s.now().UTC(),
	}
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	s.mu.Unlock()

	s.hub.Notify(conversationID)
	return msg, nil
}

// Messages returns the ordered log of a conversation.
func (s *ChatStore) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	if _, ok := s.conversations[conversationID]; !ok {
		s.mu.RUnlock()
		return nil, chat.ErrNotFound
	}
	msgs := append([]chat.Message(nil), s.messages[conversationID]...)
	s.mu.RUnlock()
	chat.SortMessages(msgs)
	return msgs, nil
}

// Subscribe registers a live snapshot listener for the conversation.
func (s *ChatStore) Subscribe(ctx context.Context, conversationID string, fn chat.SnapshotFunc) (chat.Subscription, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.hub.Subscribe(ctx, conversationID, fn)
}

// Close cancels all live subscriptions.
func (s *ChatStore) Close() {
	s.hub.Close()
}

var (
	_ chat.ConversationStore = (*ChatStore)(nil)
	_ chat.MessageLog        = (*ChatStore)(nil)
)
