package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Amounts go over the wire as JSON numbers.
func init() {
	decimal.MarshalJSONWithoutQuotes = true
}

type Product struct {
	ID          uuid.UUID       `gorm:"type:uuid;primaryKey"          json:"id"`
	Name        string          `gorm:"not null"                      json:"name"`
	Description string          `json:"description"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null"   json:"price"`
	Count       uint            `json:"count"`
}

func (p *Product) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}

// CartItem is one product held in one user's cart. TotalPrice is the
// Quantity x Price value written on the last mutation of the line.
type CartItem struct {
	ID         uuid.UUID       `gorm:"type:uuid;primaryKey"                        json:"id"`
	UserID     uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_user_product;not null" json:"userId"`
	ProductID  uuid.UUID       `gorm:"type:uuid;uniqueIndex:idx_user_product;not null" json:"productId"`
	Quantity   int             `gorm:"not null;default:1;check:quantity > 0"       json:"quantity"`
	TotalPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"                 json:"totalPrice"`
	Version    uint            `gorm:"not null;default:1"                          json:"-"`
	Product    *Product        `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE" json:"product,omitempty"`
	CreatedAt  time.Time       `json:"createdAt"`
	UpdatedAt  time.Time       `json:"updatedAt"`
}

func (c *CartItem) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.Version == 0 {
		c.Version = 1
	}
	return nil
}

func (CartItem) TableName() string {
	return "cart_items"
}

const (
	OrderStatusNew       = "new"
	OrderStatusPaid      = "paid"
	OrderStatusShipped   = "shipped"
	OrderStatusDelivered = "delivered"
	OrderStatusCancelled = "cancelled"
)

func ValidOrderStatus(s string) bool {
	switch s {
	case OrderStatusNew, OrderStatusPaid, OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

type Order struct {
	ID            uuid.UUID       `gorm:"type:uuid;primaryKey"         json:"id"`
	UserID        uuid.UUID       `gorm:"type:uuid;index;not null"     json:"userId"`
	UserAddressID uuid.UUID       `gorm:"type:uuid;not null"           json:"userAddressId"`
	PaymentMethod string          `gorm:"not null"                     json:"paymentMethod"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"totalPrice"`
	Status        string          `gorm:"not null;default:new"         json:"status"`
	Items         []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"orderItems"`
	CreatedAt     time.Time       `json:"createdAt"`
	UpdatedAt     time.Time       `json:"updatedAt"`
}

func (o *Order) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Status == "" {
		o.Status = OrderStatusNew
	}
	return nil
}

// OrderItem is an immutable snapshot of one ordered product.
type OrderItem struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey"         json:"-"`
	OrderID   uuid.UUID       `gorm:"type:uuid;index;not null"     json:"-"`
	Position  int             `gorm:"not null"                     json:"-"`
	ProductID uuid.UUID       `gorm:"type:uuid;not null"           json:"productId"`
	Quantity  int             `gorm:"not null;check:quantity > 0"  json:"quantity"`
	UnitPrice decimal.Decimal `gorm:"type:numeric(12,2);not null"  json:"unitPrice"`
}

func (i *OrderItem) BeforeCreate(tx *gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}

const (
	NotificationOrder        = "order"
	NotificationOrderDeleted = "order_deleted"
	NotificationOrderUpdated = "order_updated"
)

type Notification struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey"        json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;index;not null"    json:"userId"`
	Type      string    `gorm:"not null"                    json:"type"`
	Content   string    `gorm:"not null"                    json:"content"`
	IsRead    bool      `gorm:"not null;default:false"      json:"isRead"`
	CreatedAt time.Time `json:"createdAt"`
}

func (n *Notification) BeforeCreate(tx *gorm.DB) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	return nil
}
