package chat

import "errors"

var (
	// ErrInvalidIdentifier is returned when an item or participant identifier
	// cannot take part in conversation id derivation.
	ErrInvalidIdentifier = errors.New("chat: invalid identifier")
	// ErrNotFound is returned when a conversation does not exist.
	ErrNotFound = errors.New("chat: conversation not found")
	// ErrEmptyBody is returned when a message body trims to nothing.
	ErrEmptyBody = errors.New("chat: message body is empty")
	// ErrNotReady is returned when send is attempted before the session is subscribed.
	ErrNotReady = errors.New("chat: session not ready")
	// ErrStoreUnavailable is returned after bounded retries against the store failed.
	ErrStoreUnavailable = errors.New("chat: store unavailable")
	// ErrSelfChat is returned when a user opens a chat about their own item.
	ErrSelfChat = errors.New("chat: cannot start chat with yourself")
	// ErrForbidden is returned when a user is not a participant of the conversation.
	ErrForbidden = errors.New("chat: not a conversation participant")
)
