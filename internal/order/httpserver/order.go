package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/internal/order/service"
	"github.com/Skotchmaster/ebee_shop/internal/order/transport"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
	middleware "github.com/Skotchmaster/ebee_shop/pkg/middleware/auth"
)

const (
	HeaderIdempotencyKey = "Idempotency-Key"

	msgCreateFailed   = "Order creation failed, please try again later."
	msgCreateDegraded = "Order was created, but sending the order notifications failed."
)

type OrderHTTP struct {
	Svc *service.OrderService
}

func (h *OrderHTTP) actor(c echo.Context) (service.Actor, error) {
	id, err := middleware.IdentityFrom(c)
	if err != nil {
		return service.Actor{}, err
	}
	return service.Actor{UserID: id.UserID, Email: id.Email, Admin: id.IsAdmin()}, nil
}

func createFailure(c echo.Context, status int, msgs ...string) error {
	return c.JSON(status, transport.CreateOrderResponse{Status: status, Errors: msgs})
}

func problems(err error) []string {
	var ve *service.ValidationError
	if errors.As(err, &ve) {
		return ve.Problems
	}
	return []string{service.MsgMissingFields}
}

// respondCreated writes the outcome of CreateOrder and Checkout, which share
// their response shape.
func (h *OrderHTTP) respondCreated(c echo.Context, l *slog.Logger, order *models.Order, err error) error {
	switch {
	case err == nil:
		l.Info("create_order_success", "order_id", order.ID)
		return c.JSON(http.StatusOK, transport.CreateOrderResponse{Status: http.StatusOK, Data: order})
	case errors.Is(err, service.ErrSideEffect) && order != nil:
		l.Error("create_order_degraded", "status", 500, "order_id", order.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.CreateOrderResponse{
			Status:       http.StatusInternalServerError,
			Errors:       []string{msgCreateDegraded},
			OrderCreated: true,
			Data:         order,
		})
	case errors.Is(err, service.ErrValidation):
		l.Warn("create_order_error", "status", 400, "error", err)
		return createFailure(c, http.StatusBadRequest, problems(err)...)
	case errors.Is(err, service.ErrConflict):
		l.Warn("create_order_error", "status", 409, "error", err)
		return createFailure(c, http.StatusConflict, err.Error())
	default:
		l.Error("create_order_error", "status", 500, "error", err)
		return createFailure(c, http.StatusInternalServerError, msgCreateFailed)
	}
}

func (h *OrderHTTP) CreateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.create")

	actor, err := h.actor(c)
	if err != nil {
		l.Warn("create_order_error", "status", 401, "error", err)
		return createFailure(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req transport.CreateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("create_order_error", "status", 400, "reason", "invalid body", "error", err)
		return createFailure(c, http.StatusBadRequest, service.MsgMissingFields)
	}

	order, err := h.Svc.CreateOrder(ctx, actor, req, c.Request().Header.Get(HeaderIdempotencyKey))
	return h.respondCreated(c, l, order, err)
}

func (h *OrderHTTP) Checkout(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.checkout")

	actor, err := h.actor(c)
	if err != nil {
		l.Warn("checkout_error", "status", 401, "error", err)
		return createFailure(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req transport.CheckoutRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("checkout_error", "status", 400, "reason", "invalid body", "error", err)
		return createFailure(c, http.StatusBadRequest, service.MsgMissingFields)
	}

	order, err := h.Svc.Checkout(ctx, actor, req, c.Request().Header.Get(HeaderIdempotencyKey))
	return h.respondCreated(c, l, order, err)
}

func orderID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

func notFound(c echo.Context) error {
	return c.JSON(http.StatusNotFound, transport.OrderResponse{
		Status: false,
		Error:  fmt.Sprintf("Order with ID %s not found", c.Param("id")),
	})
}

func (h *OrderHTTP) GetOrders(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.list")

	actor, err := h.actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, transport.OrderResponse{Error: "Unauthorized"})
	}

	orders, err := h.Svc.ListOrders(ctx, actor)
	if err != nil {
		l.Error("list_orders_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.OrderResponse{Error: "internal error"})
	}
	return c.JSON(http.StatusOK, transport.OrderResponse{Status: true, Data: orders})
}

func (h *OrderHTTP) GetOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.get")

	actor, err := h.actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, transport.OrderResponse{Error: "Unauthorized"})
	}
	id, err := orderID(c)
	if err != nil {
		return notFound(c)
	}

	order, err := h.Svc.GetOrder(ctx, actor, id)
	if errors.Is(err, service.ErrNotFound) {
		return notFound(c)
	}
	if err != nil {
		l.Error("get_order_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.OrderResponse{Error: "internal error"})
	}
	return c.JSON(http.StatusOK, transport.OrderResponse{Status: true, Data: order})
}

func (h *OrderHTTP) UpdateOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.update")

	actor, err := h.actor(c)
	if err != nil {
		l.Warn("update_order_error", "status", 401, "error", err)
		return c.JSON(http.StatusUnauthorized, transport.OrderResponse{Error: "Unauthorized"})
	}
	id, err := orderID(c)
	if err != nil {
		return notFound(c)
	}

	var req transport.UpdateOrderRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("update_order_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, transport.OrderResponse{Error: "invalid body"})
	}

	order, err := h.Svc.UpdateOrder(ctx, actor, id, req)
	switch {
	case err == nil:
		l.Info("update_order_success", "order_id", order.ID)
		return c.JSON(http.StatusOK, transport.OrderResponse{
			Status:  true,
			Message: "Order updated successfully",
			Data:    order,
		})
	case errors.Is(err, service.ErrSideEffect) && order != nil:
		l.Error("update_order_degraded", "status", 500, "order_id", order.ID, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.OrderResponse{
			Error: "Order updated, but notifying the owner failed",
			Data:  order,
		})
	case errors.Is(err, service.ErrUnauthorized):
		return c.JSON(http.StatusUnauthorized, transport.OrderResponse{Error: "Unauthorized"})
	case errors.Is(err, service.ErrNotFound):
		return notFound(c)
	case errors.Is(err, service.ErrForbidden):
		l.Warn("update_order_error", "status", 403, "error", err)
		return c.JSON(http.StatusForbidden, transport.OrderResponse{Error: "Forbidden"})
	case errors.Is(err, service.ErrValidation):
		l.Warn("update_order_error", "status", 400, "error", err)
		return c.JSON(http.StatusBadRequest, transport.OrderResponse{Error: err.Error()})
	default:
		l.Error("update_order_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.OrderResponse{Error: "internal error"})
	}
}

func (h *OrderHTTP) DeleteOrder(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "order.delete")

	actor, err := h.actor(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, transport.OrderResponse{Error: "Unauthorized"})
	}
	id, err := orderID(c)
	if err != nil {
		return notFound(c)
	}

	order, err := h.Svc.DeleteOrder(ctx, actor, id)
	switch {
	case err == nil:
		l.Info("delete_order_success", "order_id", id)
		return c.JSON(http.StatusCreated, "Order deleted")
	case errors.Is(err, service.ErrSideEffect) && order != nil:
		l.Error("delete_order_degraded", "status", 500, "order_id", id, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.OrderResponse{
			Error: "Order deleted, but notifying the owner failed",
		})
	case errors.Is(err, service.ErrNotFound):
		l.Warn("delete_order_error", "status", 404, "order_id", id)
		return notFound(c)
	case errors.Is(err, service.ErrForbidden):
		return c.JSON(http.StatusForbidden, transport.OrderResponse{Error: "Forbidden"})
	default:
		l.Error("delete_order_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, transport.OrderResponse{Error: "internal error"})
	}
}
