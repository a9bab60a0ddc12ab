package catalog

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func intPtr(v int) *int { return &v }

func TestSnapshotLookupRespectsExpiry(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)
	snap := NewSnapshot([]Product{
		{ID: "fresh", Price: decimal.NewFromInt(10), PurchaseLimitPerBuyer: 2, ExpiresAt: &future},
		{ID: "stale", Price: decimal.NewFromInt(5), PurchaseLimitPerBuyer: 2, ExpiresAt: &past},
		{ID: "forever", Price: decimal.NewFromInt(1), PurchaseLimitPerBuyer: 1},
	}, now)

	if _, ok := snap.Lookup("fresh", now); !ok {
		t.Fatal("expected fresh product to resolve")
	}
	if _, ok := snap.Lookup("forever", now); !ok {
		t.Fatal("expected product without expiry to resolve")
	}
	if _, ok := snap.Lookup("stale", now); ok {
		t.Fatal("expired product must not resolve")
	}
	if _, ok := snap.Get("stale"); !ok {
		t.Fatal("Get should still return expired products")
	}
	if _, ok := snap.Lookup("missing", now); ok {
		t.Fatal("missing product must not resolve")
	}
}

func TestSnapshotDropsInvalidRecords(t *testing.T) {
	t.Parallel()

	snap := NewSnapshot([]Product{
		{ID: "", Price: decimal.NewFromInt(1), PurchaseLimitPerBuyer: 1},
		{ID: "neg", Price: decimal.NewFromInt(-1), PurchaseLimitPerBuyer: 1},
		{ID: "nolimit", Price: decimal.NewFromInt(1), PurchaseLimitPerBuyer: 0},
		{ID: "negstock", Price: decimal.NewFromInt(1), PurchaseLimitPerBuyer: 1, StockAvailable: intPtr(-2)},
		{ID: "ok", Price: decimal.Zero, PurchaseLimitPerBuyer: 1, StockAvailable: intPtr(0)},
	}, time.Now())

	if snap.Len() != 1 || snap.Rejected() != 4 {
		t.Fatalf("expected 1 product and 4 rejected, got %d/%d", snap.Len(), snap.Rejected())
	}
}

func TestSnapshotIsIsolatedFromCallerMutation(t *testing.T) {
	t.Parallel()

	stock := 5
	products := []Product{{ID: "a", Price: decimal.NewFromInt(1), PurchaseLimitPerBuyer: 3, StockAvailable: &stock, AllowedPaymentMethodIDs: []string{"cod"}}}
	snap := NewSnapshot(products, time.Now())

	stock = 0
	products[0].AllowedPaymentMethodIDs[0] = "card"

	got, _ := snap.Get("a")
	if *got.StockAvailable != 5 || got.AllowedPaymentMethodIDs[0] != "cod" {
		t.Fatalf("snapshot observed caller mutation: %+v", got)
	}
	*got.StockAvailable = 1
	again, _ := snap.Get("a")
	if *again.StockAvailable != 5 {
		t.Fatal("snapshot observed mutation of a returned copy")
	}
}

func TestProductHelpers(t *testing.T) {
	t.Parallel()

	open := Product{ID: "a"}
	if !open.AllowsPaymentMethod("anything") {
		t.Fatal("empty allow-list should accept every method")
	}
	restricted := Product{ID: "b", AllowedPaymentMethodIDs: []string{"m1"}}
	if restricted.AllowsPaymentMethod("m2") || !restricted.AllowsPaymentMethod("m1") {
		t.Fatal("unexpected allow-list evaluation")
	}
	if !open.HasStockFor(1000) {
		t.Fatal("nil stock is unconstrained")
	}
	limited := Product{ID: "c", StockAvailable: intPtr(2)}
	if limited.HasStockFor(3) || !limited.HasStockFor(2) {
		t.Fatal("unexpected stock evaluation")
	}
}

func TestNilSnapshotIsEmpty(t *testing.T) {
	t.Parallel()

	var snap *Snapshot
	if snap.Len() != 0 || snap.Products() != nil {
		t.Fatal("nil snapshot should behave as empty")
	}
	if _, ok := snap.Lookup("a", time.Now()); ok {
		t.Fatal("nil snapshot resolves nothing")
	}
}
