package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/aryanjadon13-code/Technest/internal/domain/identity"
)

// TokenResolver maps opaque bearer tokens to identities in memory. Not
// suitable for production; the real auth subsystem owns this mapping.
type TokenResolver struct {
	mu     sync.RWMutex
	tokens map[string]identity.Identity
}

// NewTokenResolver builds an empty resolver.
func NewTokenResolver() *TokenResolver {
	return &TokenResolver{tokens: make(map[string]identity.Identity)}
}

// Register associates a token with an identity.
func (r *TokenResolver) Register(token string, id identity.Identity) {
	token = strings.TrimSpace(token)
	if token == "" || !id.Valid() {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[token] = id
}

// Resolve returns the identity behind a token or identity.ErrUnauthenticated.
func (r *TokenResolver) Resolve(ctx context.Context, token string) (identity.Identity, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.tokens[strings.TrimSpace(token)]
	if !ok {
		return identity.Identity{}, identity.ErrUnauthenticated
	}
	return id, nil
}

var _ identity.Resolver = (*TokenResolver)(nil)
