package httpapi

import (
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// NewRouter builds the echo instance with all routes mounted. The browse
// feed and the health probe are public; everything else sits behind JWT
// bearer auth.
func NewRouter(h *Handler, jwtSecret string) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	e.GET("/healthz", h.Health)
	e.GET("/api/browse/:category", h.Browse)

	api := e.Group("/api", JWTAuth(jwtSecret))
	api.DELETE("/users/me", h.DeleteAccount)
	api.POST("/:category", h.CreateListing)
	api.GET("/:category/me", h.MyListings)
	api.PUT("/:category/:listing_id", h.UpdateListing)
	api.DELETE("/:category/:listing_id", h.DeleteListing)

	return e
}
