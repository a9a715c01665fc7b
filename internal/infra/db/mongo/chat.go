package mongo

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
	"github.com/aryanjadon13-code/Technest/internal/infra/livesync"
)

// ChatStore persists conversations and messages in MongoDB. The derived
// conversation id doubles as the document primary key, so the unique index
// on _id enforces the one-conversation-per-triple invariant.
type ChatStore struct {
	conversations *mongo.Collection
	messages      *mongo.Collection
	hub           *livesync.Hub
	logger        *slog.Logger
}

// NewChatStore wires the collections and live sync hub.
func NewChatStore(db *mongo.Database, logger *slog.Logger) *ChatStore {
	s := &ChatStore{
		conversations: db.Collection("conversations"),
		messages:      db.Collection("messages"),
		logger:        logger,
	}
	s.hub = livesync.NewHub(s.Messages, logger)
	return s
}

// EnsureIndexes creates the message ordering index. Call once at startup.
func (s *ChatStore) EnsureIndexes(ctx context.Context) error {
	_, err := s.messages.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "conversation_id", Value: 1}, {Key: "created_at", Value: 1}, {Key: "_id", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("create messages index: %w", err)
	}
	return nil
}

type conversationDoc struct {
	ID                 string    `bson:"_id"`
	ItemID             string    `bson:"item_id"`
	ItemTitle          string    `bson:"item_title"`
	BuyerID            string    `bson:"buyer_id"`
	BuyerContact       string    `bson:"buyer_contact"`
	SellerID           string    `bson:"seller_id"`
	SellerContact      string    `bson:"seller_contact"`
	CreatedAt          time.Time `bson:"created_at"`
	LastMessagePreview string    `bson:"last_message_preview,omitempty"`
	LastMessageAt      time.Time `bson:"last_message_at,omitempty"`
}

type messageDoc struct {
	ID             string    `bson:"_id"`
	ConversationID string    `bson:"conversation_id"`
	SenderID       string    `bson:"sender_id"`
	SenderContact  string    `bson:"sender_contact"`
	Body           string    `bson:"body"`
	CreatedAt      time.Time `bson:"created_at"`
}

// Ensure inserts the conversation and falls back to the existing document on
// a duplicate key, so concurrent ensures for one triple converge on a single
// record.
func (s *ChatStore) Ensure(ctx context.Context, conv chat.Conversation) (chat.Conversation, bool, error) {
	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	_, err := s.conversations.InsertOne(ctx, toConversationDoc(conv))
	if err == nil {
		return conv, true, nil
	}
	if !mongo.IsDuplicateKeyError(err) {
		return chat.Conversation{}, false, fmt.Errorf("insert conversation: %w", err)
	}
	existing, err := s.Get(ctx, conv.ID)
	if err != nil {
		return chat.Conversation{}, false, err
	}
	return existing, false, nil
}

// Get loads a conversation by its derived id.
func (s *ChatStore) Get(ctx context.Context, id string) (chat.Conversation, error) {
	var doc conversationDoc
	err := s.conversations.FindOne(ctx, bson.M{"_id": id}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return chat.Conversation{}, chat.ErrNotFound
	}
	if err != nil {
		return chat.Conversation{}, fmt.Errorf("load conversation: %w", err)
	}
	return fromConversationDoc(doc), nil
}

// UpdatePreview sets only the preview fields of an existing conversation.
func (s *ChatStore) UpdatePreview(ctx context.Context, id, preview string, at time.Time) error {
	res, err := s.conversations.UpdateByID(ctx, id, bson.M{"$set": bson.M{
		"last_message_preview": preview,
		"last_message_at":      at.UTC(),
	}})
	if err != nil {
		return fmt.Errorf("update preview: %w", err)
	}
	if res.MatchedCount == 0 {
		return chat.ErrNotFound
	}
	return nil
}

// ListByParticipant returns the user's conversations sorted by last
// activity, newest first.
func (s *ChatStore) ListByParticipant(ctx context.Context, userID string) ([]chat.Conversation, error) {
	cursor, err := s.conversations.Find(ctx, bson.M{"$or": bson.A{
		bson.M{"buyer_id": userID},
		bson.M{"seller_id": userID},
	}})
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer cursor.Close(ctx)

	conversations := make([]chat.Conversation, 0)
	for cursor.Next(ctx) {
		var doc conversationDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode conversation: %w", err)
		}
		conversations = append(conversations, fromConversationDoc(doc))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
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
func (s *ChatStore) Append(ctx context.Context, conversationID, senderID, senderContact, body string) (chat.Message, error) {
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
	if _, err := s.messages.InsertOne(ctx, messageDoc{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderContact:  msg.SenderContact,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
	}); err != nil {
		return chat.Message{}, fmt.Errorf("insert message: %w", err)
	}
	s.hub.Notify(conversationID)
	return msg, nil
}

// Messages returns the ordered log of a conversation.
func (s *ChatStore) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	if _, err := s.Get(ctx, conversationID); err != nil {
		return nil, err
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := s.messages.Find(ctx, bson.M{"conversation_id": conversationID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer cursor.Close(ctx)

	msgs := make([]chat.Message, 0)
	for cursor.Next(ctx) {
		var doc messageDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("decode message: %w", err)
		}
		msgs = append(msgs, chat.Message{
			ID:             doc.ID,
			ConversationID: doc.ConversationID,
			SenderID:       doc.SenderID,
			SenderContact:  doc.SenderContact,
			Body:           doc.Body,
			CreatedAt:      doc.CreatedAt,
		})
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
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

func toConversationDoc(conv chat.Conversation) conversationDoc {
	return conversationDoc{
		ID:                 conv.ID,
		ItemID:             conv.ItemID,
		ItemTitle:          conv.ItemTitle,
		BuyerID:            conv.BuyerID,
		BuyerContact:       conv.BuyerContact,
		SellerID:           conv.SellerID,
		SellerContact:      conv.SellerContact,
		CreatedAt:          conv.CreatedAt,
		LastMessagePreview: conv.LastMessagePreview,
		LastMessageAt:      conv.LastMessageAt,
	}
}

func fromConversationDoc(doc conversationDoc) chat.Conversation {
	return chat.Conversation{
		ID:                 doc.ID,
		ItemID:             doc.ItemID,
		ItemTitle:          doc.ItemTitle,
		BuyerID:            doc.BuyerID,
		BuyerContact:       doc.BuyerContact,
		SellerID:           doc.SellerID,
		SellerContact:      doc.SellerContact,
		CreatedAt:          doc.CreatedAt,
		LastMessagePreview: doc.LastMessagePreview,
		LastMessageAt:      doc.LastMessageAt,
	}
}

var (
	_ chat.ConversationStore = (*ChatStore)(nil)
	_ chat.MessageLog        = (*ChatStore)(nil)
)
