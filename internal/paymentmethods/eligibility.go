package paymentmethods

import (
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/cart"
	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
)

// Eligible returns the active methods every resolvable cart item accepts.
// Items with no allow-list accept everything; unresolvable items are ignored
// because the cart prunes them. Active order is preserved.
func Eligible(items []cart.Item, snap *catalog.Snapshot, now time.Time, active []Method) []Method {
	out := make([]Method, 0, len(active))
	for _, m := range active {
		if acceptedByAll(items, snap, now, m.ID) {
			out = append(out, m)
		}
	}
	return out
}

func acceptedByAll(items []cart.Item, snap *catalog.Snapshot, now time.Time, methodID string) bool {
	for _, it := range items {
		p, ok := snap.Lookup(it.ProductID, now)
		if !ok {
			continue
		}
		if !p.AllowsPaymentMethod(methodID) {
			return false
		}
	}
	return true
}
