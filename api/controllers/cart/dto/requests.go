package cartdto

import "github.com/google/uuid"

// AddItemRequest adds quantity of a product to the cart.
type AddItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemRequest sets the quantity of a line. Zero removes it.
type UpdateItemRequest struct {
	ProductID uuid.UUID `json:"productId" validate:"required"`
	Quantity  int       `json:"quantity" validate:"gte=0"`
}

type CountResponse struct {
	Count int `json:"count"`
}
