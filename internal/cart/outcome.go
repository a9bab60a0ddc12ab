package cart

import (
	"fmt"

	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	pkgerrors "github.com/angelmondragon/packfinderz-storefront/pkg/errors"
	"github.com/shopspring/decimal"
)

// Notice is a user-facing message attached to a rejected or adjusted mutation.
type Notice struct {
	Code    pkgerrors.Code `json:"code"`
	Message string         `json:"message"`
}

// Outcome reports how a mutation was resolved. Business rule violations are
// outcomes, not errors.
type Outcome struct {
	Status    enums.CartOutcomeStatus `json:"status"`
	ProductID string                  `json:"product_id"`
	Quantity  int                     `json:"quantity"`
	Notice    *Notice                 `json:"notice,omitempty"`
}

// Applied reports whether the cart changed or already matched the request.
func (o Outcome) Applied() bool {
	return o.Status == enums.CartOutcomeApplied
}

// Adjustment records a quantity clamped during reconciliation.
type Adjustment struct {
	ProductID string `json:"product_id"`
	From      int    `json:"from"`
	To        int    `json:"to"`
}

// Reconciliation is the result of checking the cart against the catalog.
type Reconciliation struct {
	Dropped  []string     `json:"dropped,omitempty"`
	Adjusted []Adjustment `json:"adjusted,omitempty"`
	Merged   int          `json:"merged,omitempty"`
	// Persisted is false when the pruned cart could not be written back.
	Persisted bool `json:"persisted"`
	// Deferred is set when no catalog had been fetched yet; the stored lines
	// were kept as they are.
	Deferred bool `json:"deferred,omitempty"`
}

// Changed reports whether reconciliation altered the cart.
func (r Reconciliation) Changed() bool {
	return len(r.Dropped) > 0 || len(r.Adjusted) > 0 || r.Merged > 0
}

// Merge folds a later reconciliation into r. Dropped ids are kept once, the
// latest adjustment per product wins.
func (r Reconciliation) Merge(next Reconciliation) Reconciliation {
	out := Reconciliation{
		Merged:    r.Merged + next.Merged,
		Persisted: r.Persisted && next.Persisted,
		Deferred:  next.Deferred,
	}
	if next.Changed() {
		// a changed reconciliation writes the whole cart
		out.Persisted = next.Persisted
	}
	seen := make(map[string]bool, len(r.Dropped)+len(next.Dropped))
	for _, id := range append(append([]string(nil), r.Dropped...), next.Dropped...) {
		if !seen[id] {
			seen[id] = true
			out.Dropped = append(out.Dropped, id)
		}
	}
	for _, adj := range append(append([]Adjustment(nil), r.Adjusted...), next.Adjusted...) {
		if seen[adj.ProductID] {
			continue
		}
		replaced := false
		for i := range out.Adjusted {
			if out.Adjusted[i].ProductID == adj.ProductID {
				out.Adjusted[i].To = adj.To
				replaced = true
			}
		}
		if !replaced {
			out.Adjusted = append(out.Adjusted, adj)
		}
	}
	return out
}

// Notices turns r into messages for the buyer.
func (r Reconciliation) Notices() []Notice {
	var out []Notice
	switch n := len(r.Dropped); {
	case n == 1:
		out = append(out, Notice{Code: pkgerrors.CodeProductUnavailable, Message: "1 item was removed because it is no longer available"})
	case n > 1:
		out = append(out, Notice{Code: pkgerrors.CodeProductUnavailable, Message: fmt.Sprintf("%d items were removed because they are no longer available", n)})
	}
	for _, adj := range r.Adjusted {
		out = append(out, Notice{
			Code:    pkgerrors.CodeLimitExceeded,
			Message: fmt.Sprintf("quantity of %s changed from %d to %d", adj.ProductID, adj.From, adj.To),
		})
	}
	if r.Changed() && !r.Persisted {
		out = append(out, Notice{Code: pkgerrors.CodePersistence, Message: "your updated cart could not be saved yet"})
	}
	if r.Deferred {
		out = append(out, Notice{Code: pkgerrors.CodeDependency, Message: "product availability could not be checked right now"})
	}
	return out
}

// Line is one cart item joined with its catalog data for display.
type Line struct {
	ProductID  string          `json:"product_id"`
	Name       string          `json:"name,omitempty"`
	Quantity   int             `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	LineTotal  decimal.Decimal `json:"line_total"`
	Resolvable bool            `json:"resolvable"`
}

// Summary is the cart as shown to the buyer.
type Summary struct {
	Items     []Line          `json:"items"`
	ItemCount int             `json:"item_count"`
	Total     decimal.Decimal `json:"total"`
}

// View is the summary plus the reconciliation notices the buyer has not yet
// acted on.
type View struct {
	Summary
	Notices []Notice `json:"notices,omitempty"`
}

func notice(code pkgerrors.Code, message string, silent bool) *Notice {
	if silent {
		return nil
	}
	return &Notice{Code: code, Message: message}
}
