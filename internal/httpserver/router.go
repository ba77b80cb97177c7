package httpserver

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	ecM "github.com/labstack/echo/v4/middleware"

	carthttp "github.com/Skotchmaster/ebee_shop/internal/cart/httpserver"
	"github.com/Skotchmaster/ebee_shop/internal/notification"
	orderhttp "github.com/Skotchmaster/ebee_shop/internal/order/httpserver"
	"github.com/Skotchmaster/ebee_shop/pkg/authclient"
	middleware "github.com/Skotchmaster/ebee_shop/pkg/middleware/auth"
	"github.com/Skotchmaster/ebee_shop/pkg/middleware/csrf"
	loggingmw "github.com/Skotchmaster/ebee_shop/pkg/middleware/logging"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Logger *slog.Logger

	CartHandler         *carthttp.CartHTTP
	OrderHandler        *orderhttp.OrderHTTP
	NotificationHandler *notification.HTTP

	JWTSecret  []byte
	AuthClient *authclient.Client

	// CSRF is nil when the check is disabled.
	CSRF *csrf.Config
	DB   Pinger
}

func Common(logger *slog.Logger) []echo.MiddlewareFunc {
	return []echo.MiddlewareFunc{
		ecM.Recover(),
		ecM.RequestID(),
		loggingmw.RequestLogger(logger, loggingmw.Options{QuietPrefixes: []string{"/health"}}),
		ecM.Secure(),
	}
}

func Register(e *echo.Echo, d *Deps) {
	e.Pre(ecM.RemoveTrailingSlash())
	for _, m := range Common(d.Logger) {
		e.Use(m)
	}
	if d.CSRF != nil {
		e.Use(csrf.Middleware(*d.CSRF))
	}

	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	e.GET("/health/ready", func(c echo.Context) error {
		if d.DB == nil {
			return c.NoContent(http.StatusOK)
		}
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := d.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": false, "error": "database unavailable"})
		}
		return c.NoContent(http.StatusOK)
	})

	authMW := middleware.NewAutoRefreshMiddleware(d.JWTSecret, d.AuthClient)

	carthttp.Register(e.Group("/cart", authMW.RequireAuth), d.CartHandler)
	orderhttp.Register(e.Group("/orders", authMW.RequireAuth), d.OrderHandler, middleware.AdminOnly)
	notification.Register(e.Group("/notifications", authMW.RequireAuth), d.NotificationHandler)
}
