package httpserver

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/ebee_shop/internal/cart/service"
	"github.com/Skotchmaster/ebee_shop/internal/cart/transport"
	"github.com/Skotchmaster/ebee_shop/internal/models"
	"github.com/Skotchmaster/ebee_shop/pkg/logging"
	middleware "github.com/Skotchmaster/ebee_shop/pkg/middleware/auth"
)

type CartHTTP struct {
	Svc *service.CartService
}

func fail(c echo.Context, status int, msg string) error {
	return c.JSON(status, transport.StatusResponse{Status: false, Message: msg})
}

func (h *CartHTTP) GetID(c echo.Context) (uuid.UUID, error) {
	id, err := middleware.IdentityFrom(c)
	if err != nil {
		return uuid.Nil, err
	}
	return id.UserID, nil
}

func lineID(c echo.Context) (uuid.UUID, error) {
	return uuid.Parse(c.Param("id"))
}

// status maps service errors that are common to all cart endpoints.
func status(err error) (int, string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, service.ErrProductNotFound):
		return http.StatusNotFound, "Product not found"
	case errors.Is(err, service.ErrCartLineNotFound):
		return http.StatusNotFound, "Cart item not found"
	case errors.Is(err, service.ErrConflict):
		return http.StatusConflict, "Cart item is being modified, please retry"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}

func (h *CartHTTP) AddToCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "add.cart")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("add_to_cart_error", "status", 401, "error", err)
		return fail(c, http.StatusUnauthorized, "Unauthorized")
	}

	var req transport.AddToCartRequest
	if err := c.Bind(&req); err != nil {
		l.Warn("add_to_cart_error", "status", 400, "error", err)
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.ProductID == uuid.Nil {
		l.Warn("add_to_cart_error", "status", 400, "reason", "empty product id")
		return fail(c, http.StatusBadRequest, "productId required")
	}

	item, err := h.Svc.AddOrIncrement(ctx, userID, req.ProductID)
	if err != nil {
		code, msg := status(err)
		l.Warn("add_to_cart_error", "status", code, "error", err)
		return fail(c, code, msg)
	}

	l.Info("item added to cart", "line_id", item.ID, "quantity", item.Quantity)
	return c.JSON(http.StatusOK, transport.DataResponse[*models.CartItem]{Status: true, Data: item})
}

func (h *CartHTTP) GetCartCount(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "count.cart")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("get_cart_count_error", "status", 401, "error", err)
		return fail(c, http.StatusUnauthorized, "Unauthorized")
	}

	n, err := h.Svc.Count(ctx, userID)
	if err != nil {
		l.Error("get_cart_count_error", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, transport.DataResponse[int64]{Status: true, Data: n})
}

func (h *CartHTTP) RemoveItem(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "remove.cart.item")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("remove_cart_item_error", "status", 401, "error", err)
		return fail(c, http.StatusUnauthorized, "Unauthorized")
	}
	id, err := lineID(c)
	if err != nil {
		l.Warn("remove_cart_item_error", "status", 404, "error", err)
		return fail(c, http.StatusNotFound, "Cart item not found")
	}

	if err := h.Svc.Remove(ctx, userID, id); err != nil {
		code, msg := status(err)
		l.Warn("remove_cart_item_error", "status", code, "error", err)
		return fail(c, code, msg)
	}

	l.Info("cart item removed", "line_id", id)
	return c.JSON(http.StatusOK, transport.StatusResponse{
		Status:  true,
		Message: fmt.Sprintf("Cart id %s removed successfully", id),
	})
}

func (h *CartHTTP) DecreaseQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "decrease.cart.item")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("decrease_cart_item_error", "status", 401, "error", err)
		return fail(c, http.StatusUnauthorized, "Unauthorized")
	}
	id, err := lineID(c)
	if err != nil {
		l.Warn("decrease_cart_item_error", "status", 404, "error", err)
		return fail(c, http.StatusNotFound, "Cart item not found")
	}

	deleted, item, err := h.Svc.Decrement(ctx, userID, id)
	if err != nil {
		code, msg := status(err)
		l.Warn("decrease_cart_item_error", "status", code, "error", err)
		return fail(c, code, msg)
	}

	if deleted {
		l.Info("cart item removed on decrease", "line_id", id)
		return c.JSON(http.StatusOK, transport.LineResponse{Status: true, Message: "Product removed from cart"})
	}
	return c.JSON(http.StatusOK, transport.LineResponse{
		Status:  true,
		Message: "Product quantity decreased in cart",
		Cart:    item,
	})
}

func (h *CartHTTP) IncreaseQuantity(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "increase.cart.item")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("increase_cart_item_error", "status", 401, "error", err)
		return fail(c, http.StatusUnauthorized, "Unauthorized")
	}
	id, err := lineID(c)
	if err != nil {
		l.Warn("increase_cart_item_error", "status", 404, "error", err)
		return fail(c, http.StatusNotFound, "Cart item not found")
	}

	item, err := h.Svc.Increment(ctx, userID, id)
	if err != nil {
		code, msg := status(err)
		l.Warn("increase_cart_item_error", "status", code, "error", err)
		return fail(c, code, msg)
	}

	return c.JSON(http.StatusOK, transport.LineResponse{
		Status:  true,
		Message: "Product quantity increased in cart",
		Cart:    item,
	})
}

func (h *CartHTTP) GetCart(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "get.cart")

	userID, err := h.GetID(c)
	if err != nil {
		l.Warn("get_cart_error", "status", 401, "error", err)
		return fail(c, http.StatusUnauthorized, "Unauthorized")
	}

	sum, err := h.Svc.Summarize(ctx, userID)
	if errors.Is(err, service.ErrEmptyCart) {
		return fail(c, http.StatusNotFound, "Cart not found")
	}
	if err != nil {
		l.Error("get_cart_error", "status", 500, "error", err)
		return fail(c, http.StatusInternalServerError, "internal error")
	}

	return c.JSON(http.StatusOK, sum)
}
