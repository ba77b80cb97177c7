package service_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"

	"github.com/Skotchmaster/ebee_shop/internal/cart/repo"
	"github.com/Skotchmaster/ebee_shop/internal/cart/service"
	"github.com/Skotchmaster/ebee_shop/internal/catalog"
	"github.com/Skotchmaster/ebee_shop/internal/dbtest"
	"github.com/Skotchmaster/ebee_shop/internal/events"
	"github.com/Skotchmaster/ebee_shop/internal/models"
)

type recorder struct {
	types []string
}

func (r *recorder) PublishEvent(_ context.Context, _ string, ev events.Event) error {
	r.types = append(r.types, ev.Type)
	return nil
}

type env struct {
	db  *gorm.DB
	svc *service.CartService
	ev  *recorder
}

func newEnv(t *testing.T) *env {
	t.Helper()
	gdb := dbtest.Open(t)
	ev := &recorder{}
	return &env{
		db: gdb,
		ev: ev,
		svc: &service.CartService{
			Repo:       &repo.GormRepo{DB: gdb},
			Catalog:    &catalog.GormCatalog{DB: gdb},
			Events:     ev,
			MaxRetries: 50,
		},
	}
}

func (e *env) product(t *testing.T, price string) models.Product {
	t.Helper()
	p := models.Product{Name: "p-" + price, Price: decimal.RequireFromString(price)}
	require.NoError(t, e.db.Create(&p).Error)
	return p
}

func (e *env) setPrice(t *testing.T, p models.Product, price string) {
	t.Helper()
	require.NoError(t, e.db.Model(&models.Product{}).Where("id = ?", p.ID).
		Update("price", decimal.RequireFromString(price)).Error)
}

func TestAddOrIncrement_QuantityCountsCallsAndTotalUsesLastPrice(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := uuid.New()
	p := e.product(t, "10.00")

	line, err := e.svc.AddOrIncrement(ctx, user, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, "10.00", line.TotalPrice.StringFixed(2))

	_, err = e.svc.Increment(ctx, user, line.ID)
	require.NoError(t, err)

	e.setPrice(t, p, "12.50")

	line, err = e.svc.AddOrIncrement(ctx, user, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, line.Quantity)
	assert.Equal(t, "37.50", line.TotalPrice.StringFixed(2))

	stored, err := e.svc.Repo.GetLine(ctx, user, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.Quantity)
	assert.True(t, stored.TotalPrice.Equal(decimal.RequireFromString("37.50")))

	assert.Equal(t, []string{events.CartItemAdded, events.CartItemIncreased, events.CartItemIncreased}, e.ev.types)
}

func TestAddOrIncrement_UnknownProduct(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.AddOrIncrement(context.Background(), uuid.New(), uuid.New())
	require.ErrorIs(t, err, service.ErrProductNotFound)
	require.ErrorIs(t, err, service.ErrNotFound)

	_, err = e.svc.AddOrIncrement(context.Background(), uuid.New(), uuid.Nil)
	require.ErrorIs(t, err, service.ErrValidation)
}

func TestDecrement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := uuid.New()
	p := e.product(t, "3.00")

	line, err := e.svc.AddOrIncrement(ctx, user, p.ID)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err = e.svc.Increment(ctx, user, line.ID)
		require.NoError(t, err)
	}

	for want := 3; want >= 1; want-- {
		deleted, got, err := e.svc.Decrement(ctx, user, line.ID)
		require.NoError(t, err)
		require.False(t, deleted)
		assert.Equal(t, want, got.Quantity)
		assert.True(t, got.TotalPrice.Equal(decimal.NewFromInt(int64(3*want))))
	}

	deleted, _, err := e.svc.Decrement(ctx, user, line.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	_, _, err = e.svc.Decrement(ctx, user, line.ID)
	require.ErrorIs(t, err, service.ErrCartLineNotFound)
}

func TestScenario_AddAddDecrementDecrement(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := uuid.New()
	p := e.product(t, "10.00")

	line, err := e.svc.AddOrIncrement(ctx, user, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, "10.00", line.TotalPrice.StringFixed(2))

	line, err = e.svc.AddOrIncrement(ctx, user, p.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, line.Quantity)
	assert.Equal(t, "20.00", line.TotalPrice.StringFixed(2))

	deleted, line, err := e.svc.Decrement(ctx, user, line.ID)
	require.NoError(t, err)
	require.False(t, deleted)
	assert.Equal(t, 1, line.Quantity)
	assert.Equal(t, "10.00", line.TotalPrice.StringFixed(2))

	deleted, _, err = e.svc.Decrement(ctx, user, line.ID)
	require.NoError(t, err)
	assert.True(t, deleted)

	n, err := e.svc.Count(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSummarize_AggregateIsSumOfLiveLineTotals(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := uuid.New()
	a := e.product(t, "10.00")
	b := e.product(t, "2.25")

	_, err := e.svc.AddOrIncrement(ctx, user, a.ID)
	require.NoError(t, err)
	_, err = e.svc.AddOrIncrement(ctx, user, b.ID)
	require.NoError(t, err)
	_, err = e.svc.AddOrIncrement(ctx, user, b.ID)
	require.NoError(t, err)

	e.setPrice(t, a, "11.00")

	sum, err := e.svc.Summarize(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 2, sum.Total)

	total := decimal.Zero
	for _, it := range sum.Items {
		require.NotNil(t, it.Product)
		total = total.Add(it.TotalPrice)
	}
	assert.True(t, total.Equal(sum.TotalPrice))
	assert.Equal(t, "15.50", sum.TotalPrice.StringFixed(2))
}

func TestSummarize_EmptyCart(t *testing.T) {
	e := newEnv(t)

	_, err := e.svc.Summarize(context.Background(), uuid.New())
	require.ErrorIs(t, err, service.ErrEmptyCart)
}

func TestLinesAreScopedToOwner(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()
	p := e.product(t, "1.00")

	line, err := e.svc.AddOrIncrement(ctx, owner, p.ID)
	require.NoError(t, err)

	_, err = e.svc.Increment(ctx, other, line.ID)
	require.ErrorIs(t, err, service.ErrCartLineNotFound)
	require.ErrorIs(t, e.svc.Remove(ctx, other, line.ID), service.ErrCartLineNotFound)

	require.NoError(t, e.svc.Remove(ctx, owner, line.ID))
	require.ErrorIs(t, e.svc.Remove(ctx, owner, line.ID), service.ErrCartLineNotFound)
}

func TestClear(t *testing.T) {
	e := newEnv(t)
	ctx := context.Background()
	user := uuid.New()

	_, err := e.svc.AddOrIncrement(ctx, user, e.product(t, "1.00").ID)
	require.NoError(t, err)
	_, err = e.svc.AddOrIncrement(ctx, user, e.product(t, "2.00").ID)
	require.NoError(t, err)

	require.NoError(t, e.svc.Clear(ctx, user))
	n, err := e.svc.Count(ctx, user)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestAddOrIncrement_ConcurrentCallsDoNotLoseUpdates(t *testing.T) {
	e := newEnv(t)
	e.svc.Events = events.Nop{}
	user := uuid.New()
	p := e.product(t, "4.00")

	const workers = 10
	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			_, err := e.svc.AddOrIncrement(ctx, user, p.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	line, err := e.svc.Repo.FindLine(context.Background(), user, p.ID)
	require.NoError(t, err)
	assert.Equal(t, workers, line.Quantity)
	assert.Equal(t, "40.00", line.TotalPrice.StringFixed(2))
}

func TestIncrementDecrement_ConcurrentCallsBalance(t *testing.T) {
	e := newEnv(t)
	e.svc.Events = events.Nop{}
	ctx := context.Background()
	user := uuid.New()
	p := e.product(t, "1.00")

	line, err := e.svc.AddOrIncrement(ctx, user, p.ID)
	require.NoError(t, err)
	for i := 0; i < 5; i++ {
		_, err = e.svc.Increment(ctx, user, line.ID)
		require.NoError(t, err)
	}

	var g errgroup.Group
	for i := 0; i < 5; i++ {
		g.Go(func() error {
			_, err := e.svc.Increment(ctx, user, line.ID)
			return err
		})
		g.Go(func() error {
			_, _, err := e.svc.Decrement(ctx, user, line.ID)
			return err
		})
	}
	require.NoError(t, g.Wait())

	got, err := e.svc.Repo.GetLine(ctx, user, line.ID)
	require.NoError(t, err)
	assert.Equal(t, 6, got.Quantity)
	assert.Equal(t, "6.00", got.TotalPrice.StringFixed(2))
}
