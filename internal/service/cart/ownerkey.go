package cart

import (
	"net/url"
	"strings"

	"dronefood-storefront/internal/domain"
)

const GuestKey = "cart_guest"

// uriUnescaped are the characters encodeURIComponent leaves alone but QueryEscape encodes.
var uriUnescaped = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// OwnerKey returns the storage key for id's cart. Guests and identities without an
// owner id share GuestKey.
func OwnerKey(id *domain.Identity) string {
	if id == nil || id.OwnerID() == "" {
		return GuestKey
	}
	return "cart_" + encodeURIComponent(id.OwnerID())
}

func encodeURIComponent(s string) string {
	return uriUnescaped.Replace(url.QueryEscape(s))
}
