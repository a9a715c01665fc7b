package chat

import (
	"fmt"
	"strings"
)

// idSeparator joins the three identifiers forming a conversation id. It must
// never appear inside an identifier, otherwise distinct triples could collide.
const idSeparator = "__"

// DeriveConversationID computes the stable conversation key for an item and
// its two participants. The same triple always yields the same id, so both
// sides of a negotiation land in one thread. Buyer and seller are asymmetric:
// swapping them produces a different conversation.
func DeriveConversationID(itemID, sellerID, buyerID string) (string, error) {
	for _, part := range []struct {
		name, value string
	}{
		{"item id", itemID},
		{"seller id", sellerID},
		{"buyer id", buyerID},
	} {
		if strings.TrimSpace(part.value) == "" {
			return "", fmt.Errorf("%w: %s is required", ErrInvalidIdentifier, part.name)
		}
		if strings.Contains(part.value, idSeparator) {
			return "", fmt.Errorf("%w: %s contains reserved separator %q", ErrInvalidIdentifier, part.name, idSeparator)
		}
	}
	return itemID + idSeparator + sellerID + idSeparator + buyerID, nil
}
