package catalog

import (
	"context"
	"errors"
	"strings"
)

// ErrItemNotFound is returned when an item does not exist in the catalog.
var ErrItemNotFound = errors.New("catalog: item not found")

// Item is the catalog's view of a listed product. The chat core only reads
// it; ownership stays with the catalog subsystem.
type Item struct {
	ID            string
	Title         string
	SellerID      string
	SellerContact string
}

// Valid reports whether the item carries everything the chat core needs.
func (i Item) Valid() bool {
	return strings.TrimSpace(i.ID) != "" && strings.TrimSpace(i.SellerID) != ""
}

// Repository resolves items by id.
type Repository interface {
	ByID(ctx context.Context, id string) (Item, error)
}
