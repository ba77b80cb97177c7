// Package catalog is the read-only product lookup used by cart and order code.
package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/Skotchmaster/ebee_shop/internal/models"
)

var ErrProductNotFound = errors.New("product not found")

type Lookup interface {
	UnitPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error)
	Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error)
}

type GormCatalog struct {
	DB *gorm.DB
}

func (r *GormCatalog) GetProduct(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, id)
		}
		return nil, err
	}
	return &product, nil
}

func (r *GormCatalog) UnitPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	p, err := r.GetProduct(ctx, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.Price, nil
}

// Products loads the listed products in one query. Missing ids are absent
// from the result.
func (r *GormCatalog) Products(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Product, error) {
	out := make(map[uuid.UUID]models.Product, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var items []models.Product
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&items).Error; err != nil {
		return nil, err
	}
	for _, p := range items {
		out[p.ID] = p
	}
	return out, nil
}
