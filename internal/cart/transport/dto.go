package transport

import (
	"github.com/google/uuid"

	"github.com/Skotchmaster/ebee_shop/internal/models"
)

type AddToCartRequest struct {
	ProductID uuid.UUID `json:"productId"`
}

type StatusResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
}

type DataResponse[T any] struct {
	Status bool `json:"status"`
	Data   T    `json:"data"`
}

type LineResponse struct {
	Status  bool             `json:"status"`
	Message string           `json:"message"`
	Cart    *models.CartItem `json:"cart,omitempty"`
}
