package cart

import (
	"fmt"
	"time"

	"github.com/angelmondragon/packfinderz-storefront/internal/catalog"
	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
)

func indexOf(items []Item, productID string) int {
	for i, it := range items {
		if it.ProductID == productID {
			return i
		}
	}
	return -1
}

func itemsEqual(a, b []Item) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func applyAdd(items []Item, snap *catalog.Snapshot, now time.Time, productID string, qty int, silent bool) ([]Item, Outcome) {
	out := Outcome{ProductID: productID}
	idx := indexOf(items, productID)
	if idx >= 0 {
		out.Quantity = items[idx].Quantity
	}

	if qty < 1 {
		out.Status = enums.CartOutcomeInvalidQuantity
		out.Notice = notice(pkgerrors.CodeValidation, "quantity must be at least 1", silent)
		return items, out
	}
	product, ok := snap.Lookup(productID, now)
	if !ok {
		out.Status = enums.CartOutcomeUnavailable
		out.Notice = notice(pkgerrors.CodeProductUnavailable, "this product is no longer available", silent)
		return items, out
	}

	next := qty
	if idx >= 0 {
		next += items[idx].Quantity
	}
	if next > product.PurchaseLimitPerBuyer {
		out.Status = enums.CartOutcomeLimitExceeded
		out.Notice = notice(pkgerrors.CodeLimitExceeded,
			fmt.Sprintf("you can buy at most %d of this product", product.PurchaseLimitPerBuyer), silent)
		return items, out
	}
	if !product.HasStockFor(next) {
		out.Status = enums.CartOutcomeInsufficientStock
		out.Notice = notice(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("only %d left in stock", *product.StockAvailable), silent)
		return items, out
	}

	if idx >= 0 {
		items[idx].Quantity = next
	} else {
		items = append(items, Item{ProductID: productID, Quantity: next})
	}
	out.Status = enums.CartOutcomeApplied
	out.Quantity = next
	return items, out
}

func applyDecrease(items []Item, productID string) ([]Item, Outcome) {
	out := Outcome{ProductID: productID}
	idx := indexOf(items, productID)
	if idx < 0 {
		out.Status = enums.CartOutcomeNotInCart
		return items, out
	}
	out.Status = enums.CartOutcomeApplied
	if items[idx].Quantity <= 1 {
		return append(items[:idx], items[idx+1:]...), out
	}
	items[idx].Quantity--
	out.Quantity = items[idx].Quantity
	return items, out
}

func applySetQuantity(items []Item, snap *catalog.Snapshot, now time.Time, productID string, delta int) ([]Item, Outcome) {
	out := Outcome{ProductID: productID}
	idx := indexOf(items, productID)
	if idx < 0 {
		out.Status = enums.CartOutcomeNotInCart
		return items, out
	}
	current := items[idx].Quantity
	out.Quantity = current

	product, ok := snap.Lookup(productID, now)
	if !ok {
		out.Status = enums.CartOutcomeUnavailable
		out.Notice = notice(pkgerrors.CodeProductUnavailable, "this product is no longer available", false)
		return items, out
	}

	next := clamp(current+delta, 1, product.PurchaseLimitPerBuyer)
	if next > current && !product.HasStockFor(next) {
		out.Status = enums.CartOutcomeInsufficientStock
		out.Notice = notice(pkgerrors.CodeInsufficientStock,
			fmt.Sprintf("only %d left in stock", *product.StockAvailable), false)
		return items, out
	}

	items[idx].Quantity = next
	out.Status = enums.CartOutcomeApplied
	out.Quantity = next
	switch {
	case next < current+delta:
		out.Notice = &Notice{
			Code:    pkgerrors.CodeLimitExceeded,
			Message: fmt.Sprintf("quantity adjusted to %d, the most you can buy", next),
		}
	case next > current+delta:
		out.Notice = &Notice{
			Code:    pkgerrors.CodeValidation,
			Message: fmt.Sprintf("quantity adjusted to %d, the least you can keep", next),
		}
	}
	return items, out
}

func applyRemove(items []Item, productID string) ([]Item, Outcome) {
	out := Outcome{ProductID: productID}
	idx := indexOf(items, productID)
	if idx < 0 {
		out.Status = enums.CartOutcomeNotInCart
		return items, out
	}
	out.Status = enums.CartOutcomeApplied
	return append(items[:idx], items[idx+1:]...), out
}

// reconcile merges duplicate rows, drops unresolvable products and clamps
// quantities into [1, limit]. Input order is kept.
func reconcile(stored []Item, snap *catalog.Snapshot, now time.Time) ([]Item, Reconciliation) {
	var rec Reconciliation
	merged := make([]Item, 0, len(stored))
	for _, it := range stored {
		if idx := indexOf(merged, it.ProductID); idx >= 0 {
			merged[idx].Quantity += it.Quantity
			rec.Merged++
			continue
		}
		merged = append(merged, it)
	}

	next := make([]Item, 0, len(merged))
	for _, it := range merged {
		product, ok := snap.Lookup(it.ProductID, now)
		if !ok {
			rec.Dropped = append(rec.Dropped, it.ProductID)
			continue
		}
		qty := clamp(it.Quantity, 1, product.PurchaseLimitPerBuyer)
		if qty != it.Quantity {
			rec.Adjusted = append(rec.Adjusted, Adjustment{ProductID: it.ProductID, From: it.Quantity, To: qty})
		}
		next = append(next, Item{ProductID: it.ProductID, Quantity: qty})
	}
	return next, rec
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
