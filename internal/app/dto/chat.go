package dto

import "time"

// Conversation describes chat thread metadata.
type Conversation struct {
	ID                 string    `json:"id"`
	ItemID             string    `json:"item_id"`
	ItemTitle          string    `json:"item_title,omitempty"`
	BuyerID            string    `json:"buyer_id"`
	BuyerContact       string    `json:"buyer_contact,omitempty"`
	SellerID           string    `json:"seller_id"`
	SellerContact      string    `json:"seller_contact,omitempty"`
	CreatedAt          time.Time `json:"created_at"`
	LastMessagePreview string    `json:"last_message_preview,omitempty"`
	LastMessageAt      time.Time `json:"last_message_at,omitempty"`
}

// ConversationList is a collection of conversations.
type ConversationList struct {
	Items []Conversation `json:"items"`
}

// ChatMessage contains a single message payload.
type ChatMessage struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversation_id"`
	SenderID       string    `json:"sender_id"`
	SenderContact  string    `json:"sender_contact,omitempty"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// ChatMessageList is an ordered message list.
type ChatMessageList struct {
	Items []ChatMessage `json:"items"`
}
