package chat

import (
	"context"
	"errors"
	"testing"
	"time"
)

type mockSendTx struct {
	appended   *Message
	appendErr  error
	commitErr  error
	committed  bool
	rolledBack bool
}

func (m *mockSendTx) Append(_ context.Context, senderID, senderContact, body string) (Message, error) {
	if m.appendErr != nil {
		return Message{}, m.appendErr
	}
	msg := Message{
		ID:             "m1",
		ConversationID: "c1",
		SenderID:       senderID,
		SenderContact:  senderContact,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	m.appended = &msg
	return msg, nil
}

func (m *mockSendTx) Commit(context.Context) error {
	m.committed = true
	return m.commitErr
}

func (m *mockSendTx) Rollback(context.Context) error {
	m.rolledBack = true
	return nil
}

type mockSendFactory struct {
	tx       *mockSendTx
	beginErr error
	begun    int
}

func (m *mockSendFactory) BeginSend(context.Context, string) (SendTx, error) {
	m.begun++
	if m.beginErr != nil {
		return nil, m.beginErr
	}
	return m.tx, nil
}

type recordingNotifier struct {
	created []Conversation
	sent    []Message
}

func (n *recordingNotifier) ConversationCreated(_ context.Context, conv Conversation) {
	n.created = append(n.created, conv)
}

func (n *recordingNotifier) MessageSent(_ context.Context, msg Message) {
	n.sent = append(n.sent, msg)
}

func TestSendEmptyBodyPerformsNoIO(t *testing.T) {
	factory := &mockSendFactory{tx: &mockSendTx{}}
	_, err := Send(context.Background(), factory, nil, nil, "c1", "u1", "u1@example.com", "   ")
	if !errors.Is(err, ErrEmptyBody) {
		t.Fatalf("expected ErrEmptyBody, got %v", err)
	}
	if factory.begun != 0 {
		t.Fatalf("expected no transaction for empty body, got %d", factory.begun)
	}
}

func TestSendAppendsCommitsAndNotifies(t *testing.T) {
	tx := &mockSendTx{}
	factory := &mockSendFactory{tx: tx}
	notifier := &recordingNotifier{}

	msg, err := Send(context.Background(), factory, notifier, nil, "c1", "u1", "u1@example.com", "  hi there ")
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if msg.Body != "hi there" {
		t.Fatalf("expected trimmed body, got %q", msg.Body)
	}
	if !tx.committed {
		t.Fatalf("expected preview commit")
	}
	if len(notifier.sent) != 1 || notifier.sent[0].ID != msg.ID {
		t.Fatalf("expected one sent notification for %q, got %+v", msg.ID, notifier.sent)
	}
}

func TestSendKeepsMessageWhenPreviewCommitFails(t *testing.T) {
	tx := &mockSendTx{commitErr: errors.New("store hiccup")}
	factory := &mockSendFactory{tx: tx}

	msg, err := Send(context.Background(), factory, nil, nil, "c1", "u1", "u1@example.com", "hello")
	if err != nil {
		t.Fatalf("expected the send to succeed despite preview failure, got %v", err)
	}
	if msg.ID == "" {
		t.Fatalf("expected appended message")
	}
}

func TestSendRollsBackOnAppendFailure(t *testing.T) {
	tx := &mockSendTx{appendErr: ErrNotFound}
	factory := &mockSendFactory{tx: tx}

	_, err := Send(context.Background(), factory, nil, nil, "c1", "u1", "u1@example.com", "hello")
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if !tx.rolledBack {
		t.Fatalf("expected rollback after failed append")
	}
	if tx.committed {
		t.Fatalf("expected no commit after failed append")
	}
}
