package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/jmoiron/sqlx"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/library-lending/internal/config"
	"github.com/iliyamo/library-lending/internal/handler"
	"github.com/iliyamo/library-lending/internal/middleware"
	"github.com/iliyamo/library-lending/internal/model"
)

// Middleware is attached per route rather than with Group.Use so that
// groups sharing the /v1 prefix do not claim each other's 404s.

// RegisterRoutes registers the unauthenticated probes.
func RegisterRoutes(e *echo.Echo, db *sqlx.DB) {
	e.GET("/healthz", handler.Health)
	e.GET("/readyz", handler.Ready(db))
}

// RegisterAuth registers the session endpoints under /v1/auth and the
// profile endpoint /v1/me.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)              // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps the refresh token
	g.POST("/logout", a.Logout)

	e.GET("/v1/me", a.Me,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleMember, model.RoleAdmin))
	e.POST("/v1/logout", a.Logout)
}

// RegisterCatalog registers the book catalog.  Reads are public and served
// through the Redis cache; admin writes purge it.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, jwtSecret string, cacheCfg config.CacheConfig, rdb *redis.Client) {
	cache := middleware.NewRedisCache(cacheCfg, rdb)
	g := e.Group("/v1/books")
	g.GET("", h.List, cache)
	g.GET("/search", h.Search, cache)
	g.GET("/filter", h.Filter, cache)
	g.GET("/:id", h.Get, cache)

	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
		middleware.PurgeOnWrite(cacheCfg, rdb),
	}
	g.POST("", h.Add, admin...)
	g.PATCH("/:id", h.Patch, admin...)
	g.DELETE("/:id", h.Delete, admin...)
	g.POST("/:id/stock", h.AdjustStock, admin...)
}

// RegisterLending registers borrow and return.  Both move stock, so both
// purge the catalog cache on success.
func RegisterLending(e *echo.Echo, h *handler.LendingHandler, jwtSecret string, cacheCfg config.CacheConfig, rdb *redis.Client) {
	auth := middleware.JWTAuth(jwtSecret)
	purge := middleware.PurgeOnWrite(cacheCfg, rdb)
	g := e.Group("/v1/books")
	g.POST("/:id/borrow", h.Borrow, auth, middleware.RequireRole(model.RoleMember), purge)
	g.POST("/:id/return", h.Return, auth, middleware.RequireRole(model.RoleMember, model.RoleAdmin), purge)
}

// RegisterHistory registers history reads.  Members may read their own
// history; the engine enforces the ownership check.
func RegisterHistory(e *echo.Echo, h *handler.HistoryHandler, jwtSecret string) {
	auth := middleware.JWTAuth(jwtSecret)
	g := e.Group("/v1/history")
	g.GET("/users/:id", h.User, auth, middleware.RequireRole(model.RoleMember, model.RoleAdmin))
	g.GET("/books/:id", h.Book, auth, middleware.RequireRole(model.RoleAdmin))
}

// RegisterAdmin registers CSV exports and user administration.
func RegisterAdmin(e *echo.Echo, x *handler.ExportHandler, u *handler.UsersHandler, jwtSecret string) {
	admin := []echo.MiddlewareFunc{
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	}
	e.GET("/v1/export/books", x.Books, admin...)
	e.GET("/v1/export/history", x.History, admin...)

	e.GET("/v1/users", u.List, admin...)
	e.PATCH("/v1/users/:id/active", u.SetActive, admin...)
	e.DELETE("/v1/users/:id", u.Delete, admin...)
}
