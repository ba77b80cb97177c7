package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/ebee_shop/internal/cart/repo"
	"github.com/Skotchmaster/ebee_shop/internal/catalog"
	"github.com/Skotchmaster/ebee_shop/internal/events"
	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
)

var (
	ErrValidation  = errors.New("validation")
	ErrNotFound    = errors.New("not found")
	ErrConflict    = errors.New("conflict")
	ErrPersistence = errors.New("persistence")

	ErrProductNotFound  = fmt.Errorf("product %w", ErrNotFound)
	ErrCartLineNotFound = fmt.Errorf("cart line %w", ErrNotFound)
	ErrEmptyCart        = errors.New("cart is empty")
)

const DefaultMaxRetries = 8

type CartService struct {
	Repo    *repo.GormRepo
	Catalog catalog.Lookup
	Events  events.Publisher
	// MaxRetries bounds the read-modify-write attempts on a contended line.
	MaxRetries int
}

// Summary is the read-only projection of a user's cart. Line totals and the
// aggregate come from current catalog prices.
type Summary struct {
	Total      int               `json:"total"`
	TotalPrice decimal.Decimal   `json:"totalPrice"`
	Items      []models.CartItem `json:"cartItems"`
}

func (s *CartService) retries() int {
	if s.MaxRetries > 0 {
		return s.MaxRetries
	}
	return DefaultMaxRetries
}

func (s *CartService) unitPrice(ctx context.Context, productID uuid.UUID) (decimal.Decimal, error) {
	price, err := s.Catalog.UnitPrice(ctx, productID)
	if errors.Is(err, catalog.ErrProductNotFound) {
		return decimal.Zero, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: product price: %v", ErrPersistence, err)
	}
	return price, nil
}

func (s *CartService) getLine(ctx context.Context, userID, lineID uuid.UUID) (*models.CartItem, error) {
	line, err := s.Repo.GetLine(ctx, userID, lineID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrCartLineNotFound, lineID)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get cart line: %v", ErrPersistence, err)
	}
	return line, nil
}

func (s *CartService) emit(ctx context.Context, typ string, line *models.CartItem) {
	events.Emit(ctx, s.Events, events.TopicCart, events.Event{
		Type:   typ,
		ID:     line.ID,
		UserID: line.UserID,
		Payload: map[string]any{
			"productId":  line.ProductID,
			"quantity":   line.Quantity,
			"totalPrice": line.TotalPrice,
		},
	})
}

// AddOrIncrement puts one more unit of productID into the user's cart,
// creating the line on first add.
func (s *CartService) AddOrIncrement(ctx context.Context, userID, productID uuid.UUID) (*models.CartItem, error) {
	if productID == uuid.Nil {
		return nil, fmt.Errorf("%w: productId required", ErrValidation)
	}

	for attempt := 0; attempt < s.retries(); attempt++ {
		price, err := s.unitPrice(ctx, productID)
		if err != nil {
			return nil, err
		}

		line, err := s.Repo.FindLine(ctx, userID, productID)
		switch {
		case errors.Is(err, repo.ErrNotFound):
			item := &models.CartItem{
				UserID:     userID,
				ProductID:  productID,
				Quantity:   1,
				TotalPrice: price,
			}
			if err := s.Repo.CreateLine(ctx, item); err != nil {
				// a concurrent add may have created the line first
				if _, ferr := s.Repo.FindLine(ctx, userID, productID); ferr == nil {
					continue
				}
				return nil, fmt.Errorf("%w: create cart line: %v", ErrPersistence, err)
			}
			s.emit(ctx, events.CartItemAdded, item)
			return item, nil
		case err != nil:
			return nil, fmt.Errorf("%w: find cart line: %v", ErrPersistence, err)
		}

		q := line.Quantity + 1
		err = s.Repo.UpdateLine(ctx, line, q, price.Mul(decimal.NewFromInt(int64(q))))
		if errors.Is(err, repo.ErrStale) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: update cart line: %v", ErrPersistence, err)
		}
		s.emit(ctx, events.CartItemIncreased, line)
		return line, nil
	}

	logging.FromContext(ctx).Warn("cart_retries_exhausted", "op", "add", "product_id", productID)
	return nil, fmt.Errorf("%w: cart line for product %s kept changing", ErrConflict, productID)
}

func (s *CartService) Increment(ctx context.Context, userID, lineID uuid.UUID) (*models.CartItem, error) {
	for attempt := 0; attempt < s.retries(); attempt++ {
		line, err := s.getLine(ctx, userID, lineID)
		if err != nil {
			return nil, err
		}
		price, err := s.unitPrice(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}

		q := line.Quantity + 1
		err = s.Repo.UpdateLine(ctx, line, q, price.Mul(decimal.NewFromInt(int64(q))))
		if errors.Is(err, repo.ErrStale) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: update cart line: %v", ErrPersistence, err)
		}
		s.emit(ctx, events.CartItemIncreased, line)
		return line, nil
	}

	logging.FromContext(ctx).Warn("cart_retries_exhausted", "op", "increase", "line_id", lineID)
	return nil, fmt.Errorf("%w: cart line %s kept changing", ErrConflict, lineID)
}

// Decrement takes one unit off the line. At quantity 1 the line is deleted
// and deleted is true; the returned line is then its last state.
func (s *CartService) Decrement(ctx context.Context, userID, lineID uuid.UUID) (bool, *models.CartItem, error) {
	for attempt := 0; attempt < s.retries(); attempt++ {
		line, err := s.getLine(ctx, userID, lineID)
		if err != nil {
			return false, nil, err
		}

		if line.Quantity <= 1 {
			err := s.Repo.DeleteLine(ctx, line)
			if errors.Is(err, repo.ErrStale) {
				continue
			}
			if err != nil {
				return false, nil, fmt.Errorf("%w: delete cart line: %v", ErrPersistence, err)
			}
			s.emit(ctx, events.CartItemRemoved, line)
			return true, line, nil
		}

		price, err := s.unitPrice(ctx, line.ProductID)
		if err != nil {
			return false, nil, err
		}
		q := line.Quantity - 1
		err = s.Repo.UpdateLine(ctx, line, q, price.Mul(decimal.NewFromInt(int64(q))))
		if errors.Is(err, repo.ErrStale) {
			continue
		}
		if err != nil {
			return false, nil, fmt.Errorf("%w: update cart line: %v", ErrPersistence, err)
		}
		s.emit(ctx, events.CartItemDecreased, line)
		return false, line, nil
	}

	logging.FromContext(ctx).Warn("cart_retries_exhausted", "op", "decrease", "line_id", lineID)
	return false, nil, fmt.Errorf("%w: cart line %s kept changing", ErrConflict, lineID)
}

func (s *CartService) Remove(ctx context.Context, userID, lineID uuid.UUID) error {
	err := s.Repo.RemoveLine(ctx, userID, lineID)
	if errors.Is(err, repo.ErrNotFound) {
		return fmt.Errorf("%w: %s", ErrCartLineNotFound, lineID)
	}
	if err != nil {
		return fmt.Errorf("%w: remove cart line: %v", ErrPersistence, err)
	}
	events.Emit(ctx, s.Events, events.TopicCart, events.Event{
		Type:   events.CartItemRemoved,
		ID:     lineID,
		UserID: userID,
	})
	return nil
}

func (s *CartService) Count(ctx context.Context, userID uuid.UUID) (int64, error) {
	n, err := s.Repo.Count(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%w: count cart: %v", ErrPersistence, err)
	}
	return n, nil
}

func (s *CartService) Summarize(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	lines, err := s.Repo.ListLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: list cart: %v", ErrPersistence, err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	sum := decimal.Zero
	for i := range lines {
		if lines[i].Product != nil {
			lines[i].TotalPrice = lines[i].Product.Price.Mul(decimal.NewFromInt(int64(lines[i].Quantity)))
		}
		sum = sum.Add(lines[i].TotalPrice)
	}

	return &Summary{
		Total:      len(lines),
		TotalPrice: sum,
		Items:      lines,
	}, nil
}

func (s *CartService) Clear(ctx context.Context, userID uuid.UUID) error {
	if err := s.Repo.Clear(ctx, userID); err != nil {
		return fmt.Errorf("%w: clear cart: %v", ErrPersistence, err)
	}
	return nil
}
