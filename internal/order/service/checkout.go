package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	cartrepo "github.com/Skotchmaster/ebee_shop/internal/cart/repo"
	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/internal/order/transport"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
)

const checkoutAttempts = 5

var errEmptyCart = errors.New("cart is empty")

// Checkout turns the caller's cart into an order priced at current catalog
// prices. The order insert and the cart clear commit together; a cart line
// changed in between restarts the attempt.
func (s *OrderService) Checkout(ctx context.Context, actor Actor, req transport.CheckoutRequest, idemKey string) (*models.Order, error) {
	if actor.UserID == uuid.Nil || strings.TrimSpace(req.PaymentMethod) == "" || req.UserAddressID == uuid.Nil {
		return nil, invalid(MsgMissingFields)
	}

	key, replay, err := s.reserve(ctx, actor, idemKey)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	var order *models.Order
	for attempt := 0; attempt < checkoutAttempts; attempt++ {
		order, err = s.checkoutOnce(ctx, actor, req)
		if !errors.Is(err, cartrepo.ErrStale) {
			break
		}
	}
	switch {
	case errors.Is(err, errEmptyCart):
		s.release(ctx, key)
		return nil, invalid("cart is empty")
	case errors.Is(err, cartrepo.ErrStale):
		s.release(ctx, key)
		logging.FromContext(ctx).Warn("checkout_retries_exhausted", "user_id", actor.UserID)
		return nil, fmt.Errorf("%w: cart kept changing during checkout", ErrConflict)
	case err != nil:
		s.release(ctx, key)
		return nil, s.persistErr("checkout", err)
	}

	return order, s.created(ctx, actor, key, order)
}

func (s *OrderService) checkoutOnce(ctx context.Context, actor Actor, req transport.CheckoutRequest) (*models.Order, error) {
	var order *models.Order
	err := s.Repo.Transaction(ctx, func(tx *gorm.DB) error {
		cart := &cartrepo.GormRepo{DB: tx}

		lines, err := cart.ListLines(ctx, actor.UserID)
		if err != nil {
			return err
		}
		if len(lines) == 0 {
			return errEmptyCart
		}

		o := &models.Order{
			UserID:        actor.UserID,
			UserAddressID: req.UserAddressID,
			PaymentMethod: strings.TrimSpace(req.PaymentMethod),
			Status:        models.OrderStatusNew,
		}
		total := decimal.Zero
		for i, line := range lines {
			if line.Product == nil {
				return fmt.Errorf("cart line %s has no product", line.ID)
			}
			o.Items = append(o.Items, models.OrderItem{
				Position:  i,
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				UnitPrice: line.Product.Price,
			})
			total = total.Add(line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity))))
		}
		o.TotalPrice = total

		if err := tx.Create(o).Error; err != nil {
			return err
		}
		for i := range lines {
			if err := cart.DeleteLine(ctx, &lines[i]); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}
