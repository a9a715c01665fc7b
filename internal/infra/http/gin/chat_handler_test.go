package ginserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gin "github.com/gin-gonic/gin"

	"github.com/aryanjadon13-code/Technest/internal/app/dto"
	"github.com/aryanjadon13-code/Technest/internal/domain/catalog"
	"github.com/aryanjadon13-code/Technest/internal/domain/chat"
	"github.com/aryanjadon13-code/Technest/internal/domain/identity"
	"github.com/aryanjadon13-code/Technest/internal/infra/storage/memory"
)

type chatTestEnv struct {
	router *gin.Engine
	store  *memory.ChatStore
}

func newChatTestEnv(t *testing.T) chatTestEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store := memory.NewChatStore(nil)
	t.Cleanup(store.Close)

	items := memory.NewItemRepository()
	if err := items.Save(context.Background(), catalog.Item{ID: "itm-1", Title: "Cordless Drill", SellerID: "seller-1", SellerContact: "seller@example.com"}); err != nil {
		t.Fatalf("save item: %v", err)
	}

	users := memory.NewTokenResolver()
	users.Register("buyer-token", identity.Identity{ID: "buyer-1", Contact: "buyer@example.com"})
	users.Register("seller-token", identity.Identity{ID: "seller-1", Contact: "seller@example.com"})
	users.Register("stranger-token", identity.Identity{ID: "stranger-1", Contact: "stranger@example.com"})

	handler := ChatHandler{
		Catalog:      items,
		Store:        store,
		Log:          store,
		Sends:        chat.NewSendPipeline(store, store, 500),
		Notifier:     chat.NopNotifier{},
		RetryBackoff: []time.Duration{time.Millisecond},
	}

	router := gin.New()
	router.Use(AuthMiddleware{Resolver: users}.Handle)
	api := router.Group("/api/v1")
	api.POST("/items/:id/chat", handler.OpenItemChat)
	api.GET("/conversations", handler.ListMyConversations)
	api.GET("/conversations/:id/messages", handler.ListMessages)
	api.POST("/conversations/:id/messages", handler.SendMessage)

	return chatTestEnv{router: router, store: store}
}

func (env chatTestEnv) do(t *testing.T, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	return rec
}

func TestOpenItemChatRequiresAuth(t *testing.T) {
	env := newChatTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/items/itm-1/chat", "", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/items/itm-1/chat", "wrong-token", "")
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unknown token, got %d", rec.Code)
	}
}

func TestOpenItemChatCreatesConversation(t *testing.T) {
	env := newChatTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/items/itm-1/chat", "buyer-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var conv dto.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	wantID, _ := chat.DeriveConversationID("itm-1", "seller-1", "buyer-1")
	if conv.ID != wantID {
		t.Fatalf("expected conversation id %s, got %s", wantID, conv.ID)
	}
	if conv.BuyerID != "buyer-1" || conv.SellerID != "seller-1" || conv.ItemTitle != "Cordless Drill" {
		t.Fatalf("unexpected conversation: %+v", conv)
	}

	// Repeating the call returns the same conversation.
	rec = env.do(t, http.MethodPost, "/api/v1/items/itm-1/chat", "buyer-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat, got %d", rec.Code)
	}
	var again dto.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &again); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if again.ID != conv.ID {
		t.Fatalf("expected same conversation on repeat open, got %s", again.ID)
	}
}

func TestOpenItemChatUnknownItem(t *testing.T) {
	env := newChatTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/items/itm-missing/chat", "buyer-token", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestOpenItemChatOwnItem(t *testing.T) {
	env := newChatTestEnv(t)

	rec := env.do(t, http.MethodPost, "/api/v1/items/itm-1/chat", "seller-token", "")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for own item, got %d: %s", rec.Code, rec.Body.String())
	}
}

func openConversation(t *testing.T, env chatTestEnv) dto.Conversation {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/api/v1/items/itm-1/chat", "buyer-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("open: expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var conv dto.Conversation
	if err := json.Unmarshal(rec.Body.Bytes(), &conv); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return conv
}

func TestSendMessageAndListMessages(t *testing.T) {
	env := newChatTestEnv(t)
	conv := openConversation(t, env)

	rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "buyer-token", `{"body":"is this available?"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rec.Code, rec.Body.String())
	}
	var msg dto.ChatMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.SenderID != "buyer-1" || msg.Body != "is this available?" {
		t.Fatalf("unexpected message: %+v", msg)
	}

	// The other participant reads the same log.
	rec = env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "seller-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list dto.ChatMessageList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != msg.ID {
		t.Fatalf("expected the sent message in the log, got %+v", list.Items)
	}

	// The preview follows the send.
	stored, err := env.store.Get(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.LastMessagePreview != "is this available?" {
		t.Fatalf("expected preview update, got %q", stored.LastMessagePreview)
	}
}

func TestSendMessageEmptyBody(t *testing.T) {
	env := newChatTestEnv(t)
	conv := openConversation(t, env)

	rec := env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "buyer-token", `{"body":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d: %s", rec.Code, rec.Body.String())
	}
	msgs, err := env.store.Messages(context.Background(), conv.ID)
	if err != nil {
		t.Fatalf("messages: %v", err)
	}
	if len(msgs) != 0 {
		t.Fatalf("expected no stored messages, got %d", len(msgs))
	}
}

func TestConversationAccessForbiddenForOutsiders(t *testing.T) {
	env := newChatTestEnv(t)
	conv := openConversation(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/conversations/"+conv.ID+"/messages", "stranger-token", "")
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
	rec = env.do(t, http.MethodPost, "/api/v1/conversations/"+conv.ID+"/messages", "stranger-token", `{"body":"hi"}`)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListMessagesUnknownConversation(t *testing.T) {
	env := newChatTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/v1/conversations/nope/messages", "buyer-token", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestListMyConversations(t *testing.T) {
	env := newChatTestEnv(t)
	conv := openConversation(t, env)

	rec := env.do(t, http.MethodGet, "/api/v1/conversations", "buyer-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var list dto.ConversationList
	if err := json.Unmarshal(rec.Body.Bytes(), &list); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(list.Items) != 1 || list.Items[0].ID != conv.ID {
		t.Fatalf("expected the opened conversation, got %+v", list.Items)
	}

	rec = env.do(t, http.MethodGet, "/api/v1/conversations", "stranger-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var empty dto.ConversationList
	if err := json.Unmarshal(rec.Body.Bytes(), &empty); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(empty.Items) != 0 {
		t.Fatalf("expected empty inbox for stranger, got %+v", empty.Items)
	}
}

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer  abc ", "abc"},
		{"Bearer", ""},
	}
	for _, tc := range cases {
		if got := extractBearerToken(tc.header); got != tc.want {
			t.Fatalf("extractBearerToken(%q) = %q, want %q", tc.header, got, tc.want)
		}
	}
}
