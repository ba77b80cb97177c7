package httpserver

import "github.com/labstack/echo/v4"

// Register mounts the cart endpoints on g, which must already require auth.
func Register(g *echo.Group, h *CartHTTP) {
	g.GET("", h.GetCart)
	g.POST("", h.AddToCart)
	g.GET("/count", h.GetCartCount)
	g.DELETE("/:id", h.RemoveItem)
	g.PATCH("/:id/decrease", h.DecreaseQuantity)
	g.PATCH("/:id/increase", h.IncreaseQuantity)
}
