package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/aryanjadon13-code/Technest/internal/domain/catalog"
)

// ItemRepository stores catalog items in memory. It stands in for the real
// catalog subsystem, which owns item data.
type ItemRepository struct {
	mu    sync.RWMutex
	items map[string]catalog.Item
}

// NewItemRepository builds an empty repository.
func NewItemRepository() *ItemRepository {
	return &ItemRepository{items: make(map[string]catalog.Item)}
}

// ByID returns an item or catalog.ErrItemNotFound.
func (r *ItemRepository) ByID(ctx context.Context, id string) (catalog.Item, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	item, ok := r.items[strings.TrimSpace(id)]
	if !ok {
		return catalog.Item{}, catalog.ErrItemNotFound
	}
	return item, nil
}

// Save stores or replaces an item entry.
func (r *ItemRepository) Save(ctx context.Context, item catalog.Item) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items[item.ID] = item
	return nil
}

var _ catalog.Repository = (*ItemRepository)(nil)
