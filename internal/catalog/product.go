package catalog

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Product is one catalog record as seen by the storefront.
type Product struct {
	ID                      string          `json:"id"`
	Name                    string          `json:"name"`
	Price                   decimal.Decimal `json:"price"`
	PurchaseLimitPerBuyer   int             `json:"purchase_limit_per_buyer"`
	AllowedPaymentMethodIDs []string        `json:"allowed_payment_method_ids,omitempty"`
	ExpiresAt               *time.Time      `json:"expires_at,omitempty"`
	StockAvailable          *int            `json:"stock_available,omitempty"`
}

// Expired reports whether the product is past its purchasable window at now.
func (p Product) Expired(now time.Time) bool {
	return p.ExpiresAt != nil && !now.Before(*p.ExpiresAt)
}

// AllowsPaymentMethod reports whether id is accepted; an empty allow-list accepts everything.
func (p Product) AllowsPaymentMethod(id string) bool {
	if len(p.AllowedPaymentMethodIDs) == 0 {
		return true
	}
	return slices.Contains(p.AllowedPaymentMethodIDs, id)
}

// HasStockFor reports whether qty units can be bought; nil stock is unconstrained.
func (p Product) HasStockFor(qty int) bool {
	return p.StockAvailable == nil || *p.StockAvailable >= qty
}

func (p Product) valid() bool {
	return strings.TrimSpace(p.ID) != "" &&
		!p.Price.IsNegative() &&
		p.PurchaseLimitPerBuyer >= 1 &&
		(p.StockAvailable == nil || *p.StockAvailable >= 0)
}

func (p Product) clone() Product {
	out := p
	if p.AllowedPaymentMethodIDs != nil {
		out.AllowedPaymentMethodIDs = slices.Clone(p.AllowedPaymentMethodIDs)
	}
	if p.ExpiresAt != nil {
		expires := *p.ExpiresAt
		out.ExpiresAt = &expires
	}
	if p.StockAvailable != nil {
		stock := *p.StockAvailable
		out.StockAvailable = &stock
	}
	return out
}

// Snapshot is an immutable view of the catalog at FetchedAt.
type Snapshot struct {
	products  map[string]Product
	fetchedAt time.Time
	rejected  int
}

// NewSnapshot copies products into a new snapshot. Records with an empty id, a
// negative price or stock, or a purchase limit below one are left out, which makes
// them unresolvable. A later record with a duplicate id replaces the earlier one.
func NewSnapshot(products []Product, fetchedAt time.Time) *Snapshot {
	snap := &Snapshot{
		products:  make(map[string]Product, len(products)),
		fetchedAt: fetchedAt,
	}
	for _, p := range products {
		if !p.valid() {
			snap.rejected++
			continue
		}
		snap.products[p.ID] = p.clone()
	}
	return snap
}

// Lookup returns the product when it is present and not expired at now.
func (s *Snapshot) Lookup(id string, now time.Time) (Product, bool) {
	p, ok := s.Get(id)
	if !ok || p.Expired(now) {
		return Product{}, false
	}
	return p, true
}

// Get returns the product regardless of expiry.
func (s *Snapshot) Get(id string) (Product, bool) {
	if s == nil {
		return Product{}, false
	}
	p, ok := s.products[id]
	if !ok {
		return Product{}, false
	}
	return p.clone(), true
}

// Products lists every record ordered by id.
func (s *Snapshot) Products() []Product {
	if s == nil {
		return nil
	}
	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		out = append(out, p.clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.products)
}

func (s *Snapshot) FetchedAt() time.Time {
	if s == nil {
		return time.Time{}
	}
	return s.fetchedAt
}

// Rejected counts records dropped by NewSnapshot validation.
func (s *Snapshot) Rejected() int {
	if s == nil {
		return 0
	}
	return s.rejected
}
