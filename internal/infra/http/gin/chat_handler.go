package ginserver

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	gin "github.com/gin-gonic/gin"

	"github.com/aryanjadon13-code/Technest/internal/app/dto"
	"github.com/aryanjadon13-code/Technest/internal/app/session"
	"github.com/aryanjadon13-code/Technest/internal/domain/catalog"
	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
	"github.com/aryanjadon13-code/Technest/internal/domain/identity"
)

// ChatHTTP exposes chat endpoints.
type ChatHTTP interface {
	OpenItemChat(c *gin.Context)
	StreamItemChat(c *gin.Context)
	ListMyConversations(c *gin.Context)
	ListMessages(c *gin.Context)
	SendMessage(c *gin.Context)
}

// ChatHandler bridges HTTP with the chat core. Bootstrap and live streaming
// run through a session controller; direct conversation access performs the
// participant check itself.
type ChatHandler struct {
	Catalog  catalog.Repository
	Store    chat.ConversationStore
	Log      chat.MessageLog
	Sends    chat.SendTxFactory
	Notifier chat.Notifier
	Logger   *slog.Logger

	EnsureRetries int
	RetryBackoff  []time.Duration
}

func (h ChatHandler) sessionConfig() session.Config {
	return session.Config{
		Catalog:       h.Catalog,
		Store:         h.Store,
		Log:           h.Log,
		Sends:         h.Sends,
		Notifier:      h.Notifier,
		Logger:        h.Logger,
		EnsureRetries: h.EnsureRetries,
		RetryBackoff:  h.RetryBackoff,
	}
}

// OpenItemChat bootstraps (or finds) the current user's conversation about
// an item and returns its metadata.
func (h ChatHandler) OpenItemChat(c *gin.Context) {
	user, ok := requireIdentity(c)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(c.Param("id"))
	if itemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id is required"})
		return
	}
	ctrl := session.NewController(h.sessionConfig(), user, itemID)
	defer ctrl.Close()
	if err := ctrl.Open(c.Request.Context()); err != nil {
		h.respondChatError(c, err, "open chat", "item_id", itemID, "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, toConversationDTO(ctrl.Conversation()))
}

// StreamItemChat opens a chat session for an item and streams ordered
// message snapshots as server-sent events until the client disconnects.
func (h ChatHandler) StreamItemChat(c *gin.Context) {
	user, ok := requireIdentity(c)
	if !ok {
		return
	}
	itemID := strings.TrimSpace(c.Param("id"))
	if itemID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "item id is required"})
		return
	}
	ctrl := session.NewController(h.sessionConfig(), user, itemID)
	defer ctrl.Close()

	// latest-wins buffer: a burst of appends collapses into the newest
	// snapshot, which is a superset of the dropped ones
	updates := make(chan []chat.Message, 1)
	ctrl.OnMessages(func(msgs []chat.Message) {
		for {
			select {
			case updates <- msgs:
				return
			default:
				select {
				case <-updates:
				default:
				}
			}
		}
	})
	if err := ctrl.Open(c.Request.Context()); err != nil {
		h.respondChatError(c, err, "stream chat", "item_id", itemID, "user_id", user.ID)
		return
	}

	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")
	c.SSEvent("conversation", toConversationDTO(ctrl.Conversation()))
	c.Writer.Flush()

	c.Stream(func(w io.Writer) bool {
		select {
		case <-c.Request.Context().Done():
			return false
		case msgs := <-updates:
			c.SSEvent("messages", toMessageListDTO(msgs))
			return true
		}
	})
}

// ListMyConversations returns the current user's inbox, newest activity
// first.
func (h ChatHandler) ListMyConversations(c *gin.Context) {
	user, ok := requireIdentity(c)
	if !ok {
		return
	}
	conversations, err := h.Store.ListByParticipant(c.Request.Context(), user.ID)
	if err != nil {
		h.respondChatError(c, err, "list conversations", "user_id", user.ID)
		return
	}
	collection := dto.ConversationList{Items: make([]dto.Conversation, 0, len(conversations))}
	for _, conv := range conversations {
		collection.Items = append(collection.Items, toConversationDTO(conv))
	}
	c.JSON(http.StatusOK, collection)
}

// ListMessages returns the ordered message log of a conversation the user
// participates in.
func (h ChatHandler) ListMessages(c *gin.Context) {
	user, conv, ok := h.loadParticipantConversation(c)
	if !ok {
		return
	}
	messages, err := h.Log.Messages(c.Request.Context(), conv.ID)
	if err != nil {
		h.respondChatError(c, err, "list messages", "conversation_id", conv.ID, "user_id", user.ID)
		return
	}
	c.JSON(http.StatusOK, toMessageListDTO(messages))
}

// SendMessage appends a message to a conversation the user participates in.
func (h ChatHandler) SendMessage(c *gin.Context) {
	user, conv, ok := h.loadParticipantConversation(c)
	if !ok {
		return
	}
	var req struct {
		Body string `json:"body"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}
	message, err := chat.Send(c.Request.Context(), h.Sends, h.Notifier, h.Logger, conv.ID, user.ID, user.Contact, req.Body)
	if err != nil {
		h.respondChatError(c, err, "send message", "conversation_id", conv.ID, "user_id", user.ID)
		return
	}
	c.JSON(http.StatusCreated, toMessageDTO(message))
}

func (h ChatHandler) loadParticipantConversation(c *gin.Context) (identity.Identity, chat.Conversation, bool) {
	user, ok := requireIdentity(c)
	if !ok {
		return identity.Identity{}, chat.Conversation{}, false
	}
	conversationID := strings.TrimSpace(c.Param("id"))
	if conversationID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "conversation id is required"})
		return identity.Identity{}, chat.Conversation{}, false
	}
	conv, err := h.Store.Get(c.Request.Context(), conversationID)
	if err != nil {
		h.respondChatError(c, err, "load conversation", "conversation_id", conversationID, "user_id", user.ID)
		return identity.Identity{}, chat.Conversation{}, false
	}
	if !conv.Participant(user.ID) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
		return identity.Identity{}, chat.Conversation{}, false
	}
	return user, conv, true
}

func (h ChatHandler) respondChatError(c *gin.Context, err error, action string, attrs ...any) {
	if h.Logger != nil {
		h.Logger.Error("chat call failed", append([]any{"action", action, "error", err}, attrs...)...)
	}
	switch {
	case errors.Is(err, catalog.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "item not found"})
	case errors.Is(err, chat.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "conversation not found"})
	case errors.Is(err, identity.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "auth required"})
	case errors.Is(err, chat.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "not a chat participant"})
	case errors.Is(err, chat.ErrInvalidIdentifier), errors.Is(err, chat.ErrEmptyBody), errors.Is(err, chat.ErrSelfChat):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, chat.ErrNotReady):
		c.JSON(http.StatusConflict, gin.H{"error": "chat session not ready"})
	case errors.Is(err, chat.ErrStoreUnavailable):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "chat temporarily unavailable"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "chat unavailable"})
	}
}

func toConversationDTO(conv chat.Conversation) dto.Conversation {
	return dto.Conversation{
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

func toMessageDTO(msg chat.Message) dto.ChatMessage {
	return dto.ChatMessage{
		ID:             msg.ID,
		ConversationID: msg.ConversationID,
		SenderID:       msg.SenderID,
		SenderContact:  msg.SenderContact,
		Body:           msg.Body,
		CreatedAt:      msg.CreatedAt,
	}
}

func toMessageListDTO(msgs []chat.Message) dto.ChatMessageList {
	collection := dto.ChatMessageList{Items: make([]dto.ChatMessage, 0, len(msgs))}
	for _, msg := range msgs {
		collection.Items = append(collection.Items, toMessageDTO(msg))
	}
	return collection
}

var _ ChatHTTP = (*ChatHandler)(nil)
