package httpserver

import "github.com/labstack/echo/v4"

// Register mounts the order endpoints on g, which must already require auth.
// adminOnly guards deletion.
func Register(g *echo.Group, h *OrderHTTP, adminOnly echo.MiddlewareFunc) {
	g.POST("", h.CreateOrder)
	g.POST("/checkout", h.Checkout)
	g.GET("", h.GetOrders)
	g.GET("/:id", h.GetOrder)
	g.PUT("/:id", h.UpdateOrder)
	g.DELETE("/:id", h.DeleteOrder, adminOnly)
}
