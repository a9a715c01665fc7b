package chat

import (
	"context"
	"errors"
	"strings"
	"time"
)

// Conversation is the durable record of one buyer-seller negotiation over an
// item. Participant fields and the item snapshot are fixed at creation; only
// the preview fields change afterwards.
type Conversation struct {
	ID                 string
	ItemID             string
	ItemTitle          string
	BuyerID            string
	BuyerContact       string
	SellerID           string
	SellerContact      string
	CreatedAt          time.Time
	LastMessagePreview string
	LastMessageAt      time.Time
}

// Participant reports whether the given user takes part in the conversation.
func (c Conversation) Participant(userID string) bool {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return false
	}
	return c.BuyerID == userID || c.SellerID == userID
}

// LastActivity returns the timestamp used to sort conversation inboxes.
func (c Conversation) LastActivity() time.Time {
	if !c.LastMessageAt.IsZero() {
		return c.LastMessageAt
	}
	return c.CreatedAt
}

// NewConversation validates and assembles the creation-time metadata for a
// conversation. The id must come from DeriveConversationID with the same
// triple.
func NewConversation(id string, itemID, itemTitle, buyerID, buyerContact, sellerID, sellerContact string) (Conversation, error) {
	if strings.TrimSpace(id) == "" {
		return Conversation{}, errors.New("chat: conversation id is required")
	}
	if strings.TrimSpace(buyerID) == "" || strings.TrimSpace(sellerID) == "" {
		return Conversation{}, errors.New("chat: buyer and seller are required")
	}
	if buyerID == sellerID {
		return Conversation{}, ErrSelfChat
	}
	return Conversation{
		ID:            id,
		ItemID:        itemID,
		ItemTitle:     strings.TrimSpace(itemTitle),
		BuyerID:       buyerID,
		BuyerContact:  strings.TrimSpace(buyerContact),
		SellerID:      sellerID,
		SellerContact: strings.TrimSpace(sellerContact),
	}, nil
}

// ConversationStore persists conversation records keyed by their derived id.
type ConversationStore interface {
	// Ensure returns the stored conversation for conv.ID, creating it from
	// conv when absent. An existing record is returned unchanged: metadata is
	// fixed at creation even if conv carries different values. Safe to call
	// concurrently for the same id; exactly one logical record results. The
	// bool reports whether this call created the record.
	Ensure(ctx context.Context, conv Conversation) (Conversation, bool, error)
	// Get loads a conversation or fails with ErrNotFound.
	Get(ctx context.Context, id string) (Conversation, error)
	// UpdatePreview merges the last-message preview fields, leaving every
	// other field untouched. Fails with ErrNotFound when the conversation
	// does not exist.
	UpdatePreview(ctx context.Context, id, preview string, at time.Time) error
	// ListByParticipant returns the user's conversations sorted by last
	// activity, newest first.
	ListByParticipant(ctx context.Context, userID string) ([]Conversation, error)
}

// PreviewSnippet trims text to at most max runes for conversation previews.
func PreviewSnippet(text string, max int) string {
	if max <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(text))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max])
}
