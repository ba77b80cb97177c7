package service_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	cartrepo "github.com/Skotchmaster/ebee_shop/internal/cart/repo"
	cartservice "github.com/Skotchmaster/ebee_shop/internal/cart/service"
	"github.com/Skotchmaster/ebee_shop/internal/catalog"
	"github.com/Skotchmaster/ebee_shop/internal/dbtest"
	"github.com/Skotchmaster/ebee_shop/internal/events"
	"github.com/Skotchmaster/ebee_shop/internal/idempotency"
	"github.com/Skotchmaster/ebee_shop/internal/mail"
	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/internal/notification"
	"github.com/Skotchmaster/ebee_shop/internal/order/repo"
	"github.com/Skotchmaster/ebee_shop/internal/order/service"
	"github.com/Skotchmaster/ebee_shop/internal/order/transport"
)

type fakeMail struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMail) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, msg)
	return f.err
}

type failingNotifier struct{ err error }

func (f failingNotifier) Notify(context.Context, uuid.UUID, string, string) (*models.Notification, error) {
	return nil, f.err
}

type env struct {
	db    *gorm.DB
	svc   *service.OrderService
	mail  *fakeMail
	idem  *idempotency.MemoryStore
	buyer service.Actor
	admin service.Actor

	lamp  models.Product
	cable models.Product
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.Open(t)
	m := &fakeMail{}
	idem := idempotency.NewMemoryStore()

	lamp := models.Product{Name: "Lamp", Price: decimal.RequireFromString("10.00")}
	cable := models.Product{Name: "Cable", Price: decimal.RequireFromString("5.00")}
	require.NoError(t, gdb.Create(&lamp).Error)
	require.NoError(t, gdb.Create(&cable).Error)

	return &env{
		db:    gdb,
		lamp:  lamp,
		cable: cable,
		mail:  m,
		idem:  idem,
		svc: &service.OrderService{
			Repo:        &repo.GormRepo{DB: gdb},
			Catalog:     &catalog.GormCatalog{DB: gdb},
			Notifier:    &notification.Dispatcher{DB: gdb},
			Mail:        m,
			Events:      events.Nop{},
			Idempotency: idem,
			Saga:        service.Saga{Attempts: 2},
		},
		buyer: service.Actor{UserID: uuid.New(), Email: "buyer@example.com"},
		admin: service.Actor{UserID: uuid.New(), Email: "admin@example.com", Admin: true},
	}
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func (e *env) validRequest() transport.CreateOrderRequest {
	return transport.CreateOrderRequest{
		TotalPrice: dec("25.00"),
		OrderItems: []transport.CreateOrderItem{
			{ProductID: e.lamp.ID, Quantity: 2, UnitPrice: dec("10.00")},
			{ProductID: e.cable.ID, Quantity: 1, UnitPrice: dec("5.00")},
		},
		PaymentMethod: "card",
		UserAddressID: uuid.New(),
	}
}

func (e *env) count(t *testing.T, model any) int64 {
	t.Helper()
	var n int64
	require.NoError(t, e.db.Model(model).Count(&n).Error)
	return n
}

func (e *env) notifications(t *testing.T) []models.Notification {
	t.Helper()
	var out []models.Notification
	require.NoError(t, e.db.Order("created_at ASC").Find(&out).Error)
	return out
}

func TestCreateOrder_EmptyItemsIsValidationFailureWithoutEffects(t *testing.T) {
	e := newEnv(t)
	req := e.validRequest()
	req.OrderItems = nil

	order, err := e.svc.CreateOrder(context.Background(), e.buyer, req, "")
	require.ErrorIs(t, err, service.ErrValidation)
	assert.Nil(t, order)

	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{service.MsgMissingFields}, ve.Problems)

	assert.Zero(t, e.count(t, &models.Order{}))
	assert.Zero(t, e.count(t, &models.Notification{}))
	assert.Empty(t, e.mail.sent)
}

func TestCreateOrder_RejectsInvalidSubmissions(t *testing.T) {
	e := newEnv(t)

	cases := map[string]func(r *transport.CreateOrderRequest){
		"missing total":   func(r *transport.CreateOrderRequest) { r.TotalPrice = nil },
		"missing payment": func(r *transport.CreateOrderRequest) { r.PaymentMethod = " " },
		"missing address": func(r *transport.CreateOrderRequest) { r.UserAddressID = uuid.Nil },
		"total mismatch":  func(r *transport.CreateOrderRequest) { r.TotalPrice = dec("24.99") },
		"zero quantity":   func(r *transport.CreateOrderRequest) { r.OrderItems[0].Quantity = 0 },
		"negative price":  func(r *transport.CreateOrderRequest) { r.OrderItems[1].UnitPrice = dec("-1") },
		"no product":      func(r *transport.CreateOrderRequest) { r.OrderItems[0].ProductID = uuid.Nil },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			req := e.validRequest()
			mutate(&req)
			_, err := e.svc.CreateOrder(context.Background(), e.buyer, req, "")
			require.ErrorIs(t, err, service.ErrValidation)
		})
	}
	assert.Zero(t, e.count(t, &models.Order{}))
}

func TestCreateOrder_HoldsItemsToCatalog(t *testing.T) {
	e := newEnv(t)

	underpriced := transport.CreateOrderRequest{
		TotalPrice:    dec("0.02"),
		OrderItems:    []transport.CreateOrderItem{{ProductID: e.lamp.ID, Quantity: 2, UnitPrice: dec("0.01")}},
		PaymentMethod: "card",
		UserAddressID: uuid.New(),
	}
	_, err := e.svc.CreateOrder(context.Background(), e.buyer, underpriced, "")
	var ve *service.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"orderItems[0].unitPrice 0.01 does not match current price 10.00"}, ve.Problems)

	unknown := e.validRequest()
	ghost := uuid.New()
	unknown.OrderItems[1].ProductID = ghost
	_, err = e.svc.CreateOrder(context.Background(), e.buyer, unknown, "")
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"orderItems[1].productId " + ghost.String() + " does not exist"}, ve.Problems)

	assert.Zero(t, e.count(t, &models.Order{}))
	assert.Zero(t, e.count(t, &models.Notification{}))
	assert.Empty(t, e.mail.sent)
}

func TestCreateOrder_PersistsAndRaisesNotificationAndEmail(t *testing.T) {
	e := newEnv(t)

	order, err := e.svc.CreateOrder(context.Background(), e.buyer, e.validRequest(), "")
	require.NoError(t, err)
	require.NotNil(t, order)
	assert.Equal(t, models.OrderStatusNew, order.Status)

	assert.EqualValues(t, 1, e.count(t, &models.Order{}))
	notes := e.notifications(t)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationOrder, notes[0].Type)
	assert.Equal(t, e.buyer.UserID, notes[0].UserID)
	assert.Equal(t, "New order placed (#"+order.ID.String()+")", notes[0].Content)
	assert.False(t, notes[0].IsRead)

	require.Len(t, e.mail.sent, 1)
	assert.Equal(t, "Order Confirmation", e.mail.sent[0].Subject)
	assert.Equal(t, "buyer@example.com", e.mail.sent[0].To)
}

func TestCreateOrder_EmailFailureKeepsOrderAndNotification(t *testing.T) {
	e := newEnv(t)
	e.mail.err = errors.New("smtp unavailable")

	order, err := e.svc.CreateOrder(context.Background(), e.buyer, e.validRequest(), "")
	require.ErrorIs(t, err, service.ErrSideEffect)
	require.NotNil(t, order)

	assert.EqualValues(t, 1, e.count(t, &models.Order{}))
	assert.EqualValues(t, 1, e.count(t, &models.Notification{}))
	assert.Len(t, e.mail.sent, 2, "email is retried")

	stored, err := e.svc.GetOrder(context.Background(), e.buyer, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.ID, stored.ID)
}

func TestCreateOrder_NotificationFailureStillSendsEmail(t *testing.T) {
	e := newEnv(t)
	e.svc.Notifier = failingNotifier{err: errors.New("db down")}

	order, err := e.svc.CreateOrder(context.Background(), e.buyer, e.validRequest(), "")
	require.ErrorIs(t, err, service.ErrSideEffect)
	require.NotNil(t, order)
	assert.Len(t, e.mail.sent, 1)
}

func TestCreateOrder_WithoutEmailSkipsConfirmation(t *testing.T) {
	e := newEnv(t)
	e.buyer.Email = ""

	_, err := e.svc.CreateOrder(context.Background(), e.buyer, e.validRequest(), "")
	require.NoError(t, err)
	assert.Empty(t, e.mail.sent)
	assert.EqualValues(t, 1, e.count(t, &models.Notification{}))
}

func TestGetOrder_RoundTripsItemsAndTotal(t *testing.T) {
	e := newEnv(t)
	req := e.validRequest()

	created, err := e.svc.CreateOrder(context.Background(), e.buyer, req, "")
	require.NoError(t, err)

	got, err := e.svc.GetOrder(context.Background(), e.buyer, created.ID)
	require.NoError(t, err)
	assert.True(t, got.TotalPrice.Equal(*req.TotalPrice))
	require.Len(t, got.Items, len(req.OrderItems))
	for i, it := range req.OrderItems {
		assert.Equal(t, it.ProductID, got.Items[i].ProductID)
		assert.Equal(t, it.Quantity, got.Items[i].Quantity)
		assert.True(t, it.UnitPrice.Equal(got.Items[i].UnitPrice))
	}

	_, err = e.svc.GetOrder(context.Background(), e.buyer, uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)

	stranger := service.Actor{UserID: uuid.New()}
	_, err = e.svc.GetOrder(context.Background(), stranger, created.ID)
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = e.svc.GetOrder(context.Background(), e.admin, created.ID)
	require.NoError(t, err)
}

func TestListOrders(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	mine, err := e.svc.ListOrders(ctx, e.buyer)
	require.NoError(t, err)
	assert.NotNil(t, mine)
	assert.Empty(t, mine)

	_, err = e.svc.CreateOrder(ctx, e.buyer, e.validRequest(), "")
	require.NoError(t, err)
	other := service.Actor{UserID: uuid.New()}
	_, err = e.svc.CreateOrder(ctx, other, e.validRequest(), "")
	require.NoError(t, err)

	mine, err = e.svc.ListOrders(ctx, e.buyer)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	all, err := e.svc.ListOrders(ctx, e.admin)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestDeleteOrder_MissingOrderRaisesNothing(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.DeleteOrder(context.Background(), e.admin, uuid.New())
	require.ErrorIs(t, err, service.ErrNotFound)
	assert.Zero(t, e.count(t, &models.Notification{}))
}

func TestDeleteOrder_NotifiesOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order, err := e.svc.CreateOrder(ctx, e.buyer, e.validRequest(), "")
	require.NoError(t, err)

	_, err = e.svc.DeleteOrder(ctx, e.buyer, order.ID)
	require.ErrorIs(t, err, service.ErrForbidden)

	deleted, err := e.svc.DeleteOrder(ctx, e.admin, order.ID)
	require.NoError(t, err)
	assert.Equal(t, e.buyer.UserID, deleted.UserID)

	assert.Zero(t, e.count(t, &models.Order{}))
	assert.Zero(t, e.count(t, &models.OrderItem{}))

	notes := e.notifications(t)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotificationOrderDeleted, notes[1].Type)
	assert.Equal(t, e.buyer.UserID, notes[1].UserID)
	assert.Equal(t, "Order deleted (#"+order.ID.String()+")", notes[1].Content)
}

func TestUpdateOrder(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	order, err := e.svc.CreateOrder(ctx, e.buyer, e.validRequest(), "")
	require.NoError(t, err)

	paid := models.OrderStatusPaid
	updated, err := e.svc.UpdateOrder(ctx, e.buyer, order.ID, transport.UpdateOrderRequest{Status: &paid})
	require.NoError(t, err)
	assert.Equal(t, models.OrderStatusPaid, updated.Status)
	assert.Len(t, updated.Items, 2)

	notes := e.notifications(t)
	require.Len(t, notes, 2)
	assert.Equal(t, models.NotificationOrderUpdated, notes[1].Type)
	assert.Equal(t, "Order updated (#"+order.ID.String()+")", notes[1].Content)

	shipped := models.OrderStatusShipped
	_, err = e.svc.UpdateOrder(ctx, service.Actor{UserID: uuid.New()}, order.ID, transport.UpdateOrderRequest{Status: &shipped})
	require.ErrorIs(t, err, service.ErrForbidden)

	_, err = e.svc.UpdateOrder(ctx, e.admin, order.ID, transport.UpdateOrderRequest{Status: &shipped})
	require.NoError(t, err)
	notes = e.notifications(t)
	assert.Equal(t, e.buyer.UserID, notes[len(notes)-1].UserID)

	bogus := "teleported"
	_, err = e.svc.UpdateOrder(ctx, e.buyer, order.ID, transport.UpdateOrderRequest{Status: &bogus})
	require.ErrorIs(t, err, service.ErrValidation)

	_, err = e.svc.UpdateOrder(ctx, e.buyer, order.ID, transport.UpdateOrderRequest{TotalPrice: []byte(`1`)})
	require.ErrorIs(t, err, service.ErrValidation)

	_, err = e.svc.UpdateOrder(ctx, e.buyer, uuid.New(), transport.UpdateOrderRequest{Status: &paid})
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = e.svc.UpdateOrder(ctx, service.Actor{}, order.ID, transport.UpdateOrderRequest{Status: &paid})
	require.ErrorIs(t, err, service.ErrUnauthorized)
}

func TestCreateOrder_IdempotencyKey(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	first, err := e.svc.CreateOrder(ctx, e.buyer, e.validRequest(), "key-1")
	require.NoError(t, err)
	again, err := e.svc.CreateOrder(ctx, e.buyer, e.validRequest(), "key-1")
	require.NoError(t, err)

	assert.Equal(t, first.ID, again.ID)
	assert.EqualValues(t, 1, e.count(t, &models.Order{}))
	assert.EqualValues(t, 1, e.count(t, &models.Notification{}))

	_, err = e.idem.Reserve(ctx, e.buyer.UserID.String()+":key-2")
	require.NoError(t, err)
	_, err = e.svc.CreateOrder(ctx, e.buyer, e.validRequest(), "key-2")
	require.ErrorIs(t, err, service.ErrConflict)
}

func TestCheckout_ComposesFromCartAndClearsIt(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()

	cart := &cartservice.CartService{
		Repo:    &cartrepo.GormRepo{DB: e.db},
		Catalog: &catalog.GormCatalog{DB: e.db},
		Events:  events.Nop{},
	}
	kettle := models.Product{Name: "Kettle", Price: decimal.RequireFromString("20.00")}
	mug := models.Product{Name: "Mug", Price: decimal.RequireFromString("2.50")}
	require.NoError(t, e.db.Create(&kettle).Error)
	require.NoError(t, e.db.Create(&mug).Error)

	_, err := e.svc.Checkout(ctx, e.buyer, transport.CheckoutRequest{PaymentMethod: "card", UserAddressID: uuid.New()}, "")
	require.ErrorIs(t, err, service.ErrValidation)

	for _, id := range []uuid.UUID{kettle.ID, mug.ID, mug.ID} {
		_, err := cart.AddOrIncrement(ctx, e.buyer.UserID, id)
		require.NoError(t, err)
	}

	order, err := e.svc.Checkout(ctx, e.buyer, transport.CheckoutRequest{PaymentMethod: "card", UserAddressID: uuid.New()}, "")
	require.NoError(t, err)
	assert.Equal(t, "25.00", order.TotalPrice.StringFixed(2))
	require.Len(t, order.Items, 2)

	n, err := cart.Count(ctx, e.buyer.UserID)
	require.NoError(t, err)
	assert.Zero(t, n)

	notes := e.notifications(t)
	require.Len(t, notes, 1)
	assert.Equal(t, models.NotificationOrder, notes[0].Type)
}
