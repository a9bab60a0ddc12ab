package paymentmethods

import (
	"context"
	"fmt"
	"strings"
)

// Method is a payment option the storefront accepts. CashOnDelivery methods
// need no payment proof at confirmation.
type Method struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	CashOnDelivery bool   `json:"cash_on_delivery"`
}

// ActiveSource lists the globally active payment methods.
type ActiveSource interface {
	Active(ctx context.Context) ([]Method, error)
}

// StaticSource serves a fixed method list parsed from configuration.
type StaticSource struct {
	methods []Method
}

// ParseStatic reads comma separated `id:name[:cod]` entries.
func ParseStatic(raw string) (*StaticSource, error) {
	var methods []Method
	seen := map[string]struct{}{}
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("payment method %q: want id:name[:cod]", entry)
		}
		m := Method{ID: strings.TrimSpace(parts[0]), Name: strings.TrimSpace(parts[1])}
		if m.ID == "" || m.Name == "" {
			return nil, fmt.Errorf("payment method %q: id and name required", entry)
		}
		if len(parts) == 3 {
			if !strings.EqualFold(strings.TrimSpace(parts[2]), "cod") {
				return nil, fmt.Errorf("payment method %q: unknown flag %q", entry, parts[2])
			}
			m.CashOnDelivery = true
		}
		if _, dup := seen[m.ID]; dup {
			return nil, fmt.Errorf("payment method %q listed twice", m.ID)
		}
		seen[m.ID] = struct{}{}
		methods = append(methods, m)
	}
	if len(methods) == 0 {
		return nil, fmt.Errorf("no payment methods configured")
	}
	return &StaticSource{methods: methods}, nil
}

func NewStaticSource(methods ...Method) *StaticSource {
	out := make([]Method, len(methods))
	copy(out, methods)
	return &StaticSource{methods: out}
}

func (s *StaticSource) Active(context.Context) ([]Method, error) {
	out := make([]Method, len(s.methods))
	copy(out, s.methods)
	return out, nil
}

// Find returns the method with id from methods.
func Find(methods []Method, id string) (Method, bool) {
	for _, m := range methods {
		if m.ID == id {
			return m, true
		}
	}
	return Method{}, false
}
