package identity

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthenticated is returned when no signed-in user is available for an
// operation that requires one.
var ErrUnauthenticated = errors.New("identity: authentication required")

// Identity is the current user as supplied by the auth subsystem. The chat
// core receives it as an explicit value, never as ambient process state.
type Identity struct {
	ID      string
	Contact string
}

// Valid reports whether the identity can act in a conversation.
func (id Identity) Valid() bool {
	return strings.TrimSpace(id.ID) != ""
}

// Resolver maps an opaque bearer token to an identity. Implementations fail
// with ErrUnauthenticated for unknown tokens.
type Resolver interface {
	Resolve(ctx context.Context, token string) (Identity, error)
}
