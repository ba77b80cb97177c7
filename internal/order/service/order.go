package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Skotchmaster/ebee_shop/internal/catalog"
	"github.com/Skotchmaster/ebee_shop/internal/events"
	"github.com/Skotchmaster/ebee_shop/internal/idempotency"
	"github.com/Skotchmaster/ebee_shop/internal/mail"
	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/internal/notification"
	"github.com/Skotchmaster/ebee_shop/internal/order/repo"
	"github.com/Skotchmaster/ebee_shop/internal/order/transport"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
)

var (
	ErrValidation   = errors.New("validation")
	ErrNotFound     = errors.New("not found")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrConflict     = errors.New("conflict")
	ErrPersistence  = errors.New("persistence")

	// ErrSideEffect means the primary write is committed but at least one
	// post-commit effect failed.
	ErrSideEffect = errors.New("side effect failed")
)

const MsgMissingFields = "Missing or invalid required fields"

type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "validation: " + strings.Join(e.Problems, "; ")
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func invalid(problems ...string) error {
	return &ValidationError{Problems: problems}
}

// Actor is the authenticated caller.
type Actor struct {
	UserID uuid.UUID
	Email  string
	Admin  bool
}

func (a Actor) owns(o *models.Order) bool {
	return a.Admin || a.UserID == o.UserID
}

type OrderService struct {
	Repo        *repo.GormRepo
	Catalog     catalog.Lookup
	Notifier    notification.Notifier
	Mail        mail.Sender
	Events      events.Publisher
	Idempotency idempotency.Store
	Saga        Saga
}

func (s *OrderService) persistErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrPersistence, op, err)
}

func (s *OrderService) notifyEffect(userID uuid.UUID, kind, content string) Effect {
	return Effect{Name: "notification." + kind, Run: func(ctx context.Context) error {
		_, err := s.Notifier.Notify(ctx, userID, kind, content)
		return err
	}}
}

func (s *OrderService) emit(ctx context.Context, typ string, o *models.Order) {
	ev := events.Event{Type: typ, ID: o.ID, UserID: o.UserID}
	if typ != events.OrderDeleted {
		ev.Payload = o
	}
	events.Emit(ctx, s.Events, events.TopicOrders, ev)
}

func buildOrder(actor Actor, req transport.CreateOrderRequest) (*models.Order, error) {
	if req.TotalPrice == nil || len(req.OrderItems) == 0 ||
		strings.TrimSpace(req.PaymentMethod) == "" ||
		actor.UserID == uuid.Nil || req.UserAddressID == uuid.Nil {
		return nil, invalid(MsgMissingFields)
	}

	var problems []string
	items := make([]models.OrderItem, 0, len(req.OrderItems))
	sum := decimal.Zero
	for i, it := range req.OrderItems {
		switch {
		case it.ProductID == uuid.Nil:
			problems = append(problems, fmt.Sprintf("orderItems[%d].productId is required", i))
		case it.Quantity < 1:
			problems = append(problems, fmt.Sprintf("orderItems[%d].quantity must be at least 1", i))
		case it.UnitPrice == nil || it.UnitPrice.IsNegative():
			problems = append(problems, fmt.Sprintf("orderItems[%d].unitPrice must be a non-negative number", i))
		default:
			items = append(items, models.OrderItem{
				Position:  i,
				ProductID: it.ProductID,
				Quantity:  it.Quantity,
				UnitPrice: *it.UnitPrice,
			})
			sum = sum.Add(it.UnitPrice.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	if len(problems) > 0 {
		return nil, invalid(problems...)
	}
	if !req.TotalPrice.Round(2).Equal(sum.Round(2)) {
		return nil, invalid(fmt.Sprintf("totalPrice %s does not match order items total %s",
			req.TotalPrice.StringFixed(2), sum.StringFixed(2)))
	}

	return &models.Order{
		UserID:        actor.UserID,
		UserAddressID: req.UserAddressID,
		PaymentMethod: strings.TrimSpace(req.PaymentMethod),
		TotalPrice:    *req.TotalPrice,
		Status:        models.OrderStatusNew,
		Items:         items,
	}, nil
}

// checkCatalog holds every item to the current catalog: the product must exist
// and the submitted unit price must be its price today.
func (s *OrderService) checkCatalog(ctx context.Context, order *models.Order) error {
	ids := make([]uuid.UUID, 0, len(order.Items))
	for _, it := range order.Items {
		ids = append(ids, it.ProductID)
	}
	products, err := s.Catalog.Products(ctx, ids)
	if err != nil {
		return s.persistErr("load products", err)
	}

	var problems []string
	for _, it := range order.Items {
		p, ok := products[it.ProductID]
		switch {
		case !ok:
			problems = append(problems, fmt.Sprintf("orderItems[%d].productId %s does not exist", it.Position, it.ProductID))
		case !it.UnitPrice.Round(2).Equal(p.Price.Round(2)):
			problems = append(problems, fmt.Sprintf("orderItems[%d].unitPrice %s does not match current price %s",
				it.Position, it.UnitPrice.StringFixed(2), p.Price.StringFixed(2)))
		}
	}
	if len(problems) > 0 {
		return invalid(problems...)
	}
	return nil
}

// reserve claims an idempotency key for the caller. A non-nil order means an
// earlier request with the same key already created it.
func (s *OrderService) reserve(ctx context.Context, actor Actor, key string) (string, *models.Order, error) {
	if key == "" || s.Idempotency == nil {
		return "", nil, nil
	}
	scoped := actor.UserID.String() + ":" + key

	id, err := s.Idempotency.Reserve(ctx, scoped)
	if errors.Is(err, idempotency.ErrInFlight) {
		return "", nil, fmt.Errorf("%w: request with this Idempotency-Key is in progress", ErrConflict)
	}
	if err != nil {
		return "", nil, fmt.Errorf("%w: idempotency: %v", ErrPersistence, err)
	}
	if id == uuid.Nil {
		return scoped, nil, nil
	}

	order, err := s.Repo.GetOrder(ctx, id)
	if err != nil {
		return "", nil, s.persistErr("replay order", err)
	}
	return "", order, nil
}

func (s *OrderService) release(ctx context.Context, key string) {
	if key == "" {
		return
	}
	if err := s.Idempotency.Release(ctx, key); err != nil {
		logging.FromContext(ctx).Warn("idempotency_release_error", "error", err)
	}
}

// created runs everything that follows a committed order.
func (s *OrderService) created(ctx context.Context, actor Actor, key string, order *models.Order) error {
	l := logging.FromContext(ctx)
	if key != "" {
		if err := s.Idempotency.Complete(ctx, key, order.ID); err != nil {
			l.Warn("idempotency_complete_error", "order_id", order.ID, "error", err)
		}
	}

	s.emit(ctx, events.OrderCreated, order)

	content := fmt.Sprintf("New order placed (#%s)", order.ID)
	effects := []Effect{s.notifyEffect(order.UserID, models.NotificationOrder, content)}
	if actor.Email != "" && s.Mail != nil {
		msg := mail.OrderConfirmation(actor.Email, order)
		effects = append(effects, Effect{Name: "email.order_confirmation", Run: func(ctx context.Context) error {
			return s.Mail.Send(ctx, msg)
		}})
	} else {
		l.Info("order_email_skipped", "order_id", order.ID, "reason", "no recipient")
	}

	return s.Saga.Run(ctx, effects...)
}

// CreateOrder validates and stores an order, then raises the "order"
// notification and the confirmation email. When an effect fails the order is
// still returned together with an error matching ErrSideEffect.
func (s *OrderService) CreateOrder(ctx context.Context, actor Actor, req transport.CreateOrderRequest, idemKey string) (*models.Order, error) {
	order, err := buildOrder(actor, req)
	if err != nil {
		return nil, err
	}
	if err := s.checkCatalog(ctx, order); err != nil {
		return nil, err
	}

	key, replay, err := s.reserve(ctx, actor, idemKey)
	if err != nil {
		return nil, err
	}
	if replay != nil {
		return replay, nil
	}

	if _, err := s.Repo.CreateOrder(ctx, order); err != nil {
		s.release(ctx, key)
		return nil, s.persistErr("create order", err)
	}

	return order, s.created(ctx, actor, key, order)
}

func (s *OrderService) GetOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	order, err := s.Repo.GetOrder(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, s.persistErr("get order", err)
	}
	if !actor.owns(order) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	return order, nil
}

// ListOrders returns the caller's orders, or every order for an admin.
func (s *OrderService) ListOrders(ctx context.Context, actor Actor) ([]models.Order, error) {
	userID := actor.UserID
	if actor.Admin {
		userID = uuid.Nil
	}
	orders, err := s.Repo.ListOrders(ctx, userID)
	if err != nil {
		return nil, s.persistErr("list orders", err)
	}
	return orders, nil
}

func updateFields(req transport.UpdateOrderRequest) (map[string]any, error) {
	if len(req.TotalPrice) > 0 || len(req.OrderItems) > 0 {
		return nil, invalid("totalPrice and orderItems cannot be changed")
	}

	fields := map[string]any{}
	if req.Status != nil {
		if !models.ValidOrderStatus(*req.Status) {
			return nil, invalid(fmt.Sprintf("unknown status %q", *req.Status))
		}
		fields["status"] = *req.Status
	}
	if req.PaymentMethod != nil {
		pm := strings.TrimSpace(*req.PaymentMethod)
		if pm == "" {
			return nil, invalid("paymentMethod must not be empty")
		}
		fields["payment_method"] = pm
	}
	if req.UserAddressID != nil {
		if *req.UserAddressID == uuid.Nil {
			return nil, invalid("userAddressId must not be empty")
		}
		fields["user_address_id"] = *req.UserAddressID
	}
	if len(fields) == 0 {
		return nil, invalid("nothing to update")
	}
	return fields, nil
}

// UpdateOrder patches an order owned by the caller (any order for an admin)
// and notifies the owner.
func (s *OrderService) UpdateOrder(ctx context.Context, actor Actor, id uuid.UUID, req transport.UpdateOrderRequest) (*models.Order, error) {
	if actor.UserID == uuid.Nil {
		return nil, ErrUnauthorized
	}

	current, err := s.Repo.GetOrder(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, s.persistErr("get order", err)
	}
	if !actor.owns(current) {
		return nil, fmt.Errorf("%w: order %s belongs to another user", ErrForbidden, id)
	}

	fields, err := updateFields(req)
	if err != nil {
		return nil, err
	}

	order, err := s.Repo.UpdateOrder(ctx, id, fields)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, s.persistErr("update order", err)
	}

	s.emit(ctx, events.OrderUpdated, order)

	content := fmt.Sprintf("Order updated (#%s)", order.ID)
	return order, s.Saga.Run(ctx, s.notifyEffect(order.UserID, models.NotificationOrderUpdated, content))
}

// DeleteOrder is an administrative operation. The owner of the deleted order
// receives an "order_deleted" notification.
func (s *OrderService) DeleteOrder(ctx context.Context, actor Actor, id uuid.UUID) (*models.Order, error) {
	if !actor.Admin {
		return nil, fmt.Errorf("%w: admin access required", ErrForbidden)
	}

	order, err := s.Repo.DeleteOrder(ctx, id)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, s.persistErr("delete order", err)
	}

	s.emit(ctx, events.OrderDeleted, order)

	content := fmt.Sprintf("Order deleted (#%s)", id)
	return order, s.Saga.Run(ctx, s.notifyEffect(order.UserID, models.NotificationOrderDeleted, content))
}
