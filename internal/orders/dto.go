package orders

import (
	"time"

	"github.com/angelmondragon/packfinderz-storefront/pkg/enums"
	"github.com/shopspring/decimal"
)

// OrderLine is one product line sent with an order. UnitPrice is the live
// catalog price the buyer saw at confirmation.
type OrderLine struct {
	ProductID string          `json:"product_id"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// CreateOrderRequest is the payload for placing an order.
type CreateOrderRequest struct {
	BuyerIdentity     string               `json:"buyer_identity"`
	Items             []OrderLine          `json:"items"`
	DeliveryMethod    enums.DeliveryMethod `json:"delivery_method"`
	DestinationCity   string               `json:"destination_city,omitempty"`
	ShippingAddress   string               `json:"shipping_address,omitempty"`
	ContactPhone      string               `json:"contact_phone,omitempty"`
	PaymentMethodID   string               `json:"payment_method_id"`
	PaymentMethodName string               `json:"payment_method_name"`
	CashOnDelivery    bool                 `json:"cash_on_delivery"`
	PaymentProof      string               `json:"payment_proof,omitempty"`
	ShippingCost      decimal.Decimal      `json:"shipping_cost"`
	Subtotal          decimal.Decimal      `json:"subtotal"`
	Total             decimal.Decimal      `json:"total"`
}

// Order is an order as reported by the order service.
type Order struct {
	ID             string               `json:"id"`
	Status         string               `json:"status"`
	Items          []OrderLine          `json:"items,omitempty"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method,omitempty"`
	Total          decimal.Decimal      `json:"total"`
	Cancellable    bool                 `json:"cancellable"`
	CreatedAt      time.Time            `json:"created_at"`
}

// Receipt confirms a placed order.
type Receipt struct {
	OrderID  string          `json:"order_id"`
	Status   string          `json:"status"`
	Total    decimal.Decimal `json:"total"`
	PlacedAt time.Time       `json:"placed_at"`
	// CartCleared is false when the order went through but the cart record could not be deleted.
	CartCleared bool `json:"cart_cleared"`
}

// CancelResult reports a cancellation and any refund owed.
type CancelResult struct {
	OrderID string           `json:"order_id"`
	Status  string           `json:"status"`
	Refund  *decimal.Decimal `json:"refund,omitempty"`
}

// OrderPlaced is published after a successful submission.
type OrderPlaced struct {
	OrderID        string               `json:"order_id"`
	BuyerIdentity  string               `json:"buyer_identity"`
	Total          decimal.Decimal      `json:"total"`
	DeliveryMethod enums.DeliveryMethod `json:"delivery_method"`
	ItemCount      int                  `json:"item_count"`
	PlacedAt       time.Time            `json:"placed_at"`
}
