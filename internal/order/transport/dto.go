package transport

import (
	"encoding/json"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/ebee_shop/internal/models"
)

type CreateOrderItem struct {
	ProductID uuid.UUID        `json:"productId"`
	Quantity  int              `json:"quantity"`
	UnitPrice *decimal.Decimal `json:"unitPrice"`
}

type CreateOrderRequest struct {
	TotalPrice    *decimal.Decimal  `json:"totalPrice"`
	OrderItems    []CreateOrderItem `json:"orderItems"`
	PaymentMethod string            `json:"paymentMethod"`
	UserAddressID uuid.UUID         `json:"userAddressId"`
}

type CheckoutRequest struct {
	PaymentMethod string    `json:"paymentMethod"`
	UserAddressID uuid.UUID `json:"userAddressId"`
}

// UpdateOrderRequest is a partial update. TotalPrice and OrderItems are only
// decoded so that attempts to change them can be rejected.
type UpdateOrderRequest struct {
	Status        *string         `json:"status"`
	PaymentMethod *string         `json:"paymentMethod"`
	UserAddressID *uuid.UUID      `json:"userAddressId"`
	TotalPrice    json.RawMessage `json:"totalPrice,omitempty"`
	OrderItems    json.RawMessage `json:"orderItems,omitempty"`
}

type CreateOrderResponse struct {
	Status       int           `json:"status"`
	Errors       []string      `json:"errors,omitempty"`
	OrderCreated bool          `json:"orderCreated,omitempty"`
	Data         *models.Order `json:"data,omitempty"`
}

type OrderResponse struct {
	Status  bool   `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Data    any    `json:"data,omitempty"`
}
