package cart

import cartsvc "github.com/angelmondragon/packfinderz-storefront/internal/cart"

type AddItemRequest struct {
	ProductID string `json:"product_id" validate:"required,max=128,identifier"`
	Quantity  int    `json:"quantity"`
	Silent    bool   `json:"silent"`
}

type UpdateItemRequest struct {
	Delta int `json:"delta" validate:"ne=0"`
}

// MutationResponse pairs a mutation outcome with the cart it left behind.
type MutationResponse struct {
	Outcome cartsvc.Outcome `json:"outcome"`
	Cart    cartsvc.Summary `json:"cart"`
}
