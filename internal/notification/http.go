package notification

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/ebee_shop/pkg/logging"
	middleware "github.com/Skotchmaster/ebee_shop/pkg/middleware/auth"
)

type HTTP struct {
	Dispatcher *Dispatcher
}

func (h *HTTP) List(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "list.notifications")

	id, err := middleware.IdentityFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"status": false, "error": "Unauthorized"})
	}

	items, err := h.Dispatcher.ListForUser(ctx, id.UserID, c.QueryParam("unread") == "true")
	if err != nil {
		l.Error("list_notifications_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": false, "error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": true, "data": items})
}

func (h *HTTP) MarkRead(c echo.Context) error {
	ctx := c.Request().Context()
	l := logging.FromContext(ctx).With("handler", "read.notification")

	id, err := middleware.IdentityFrom(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"status": false, "error": "Unauthorized"})
	}
	nid, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, echo.Map{"status": false, "error": "Notification not found"})
	}

	n, err := h.Dispatcher.MarkRead(ctx, id.UserID, nid)
	if errors.Is(err, ErrNotFound) {
		return c.JSON(http.StatusNotFound, echo.Map{"status": false, "error": "Notification not found"})
	}
	if err != nil {
		l.Error("read_notification_error", "status", 500, "error", err)
		return c.JSON(http.StatusInternalServerError, echo.Map{"status": false, "error": "internal error"})
	}
	return c.JSON(http.StatusOK, echo.Map{"status": true, "data": n})
}

func Register(g *echo.Group, h *HTTP) {
	g.GET("", h.List)
	g.PATCH("/:id/read", h.MarkRead)
}
