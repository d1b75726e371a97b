package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/minesa-dev/linked-roles/internal/config"     // rate limit configuration
	"github.com/minesa-dev/linked-roles/internal/handler"    // import the handlers that implement business logic
	"github.com/minesa-dev/linked-roles/internal/middleware" // import middleware for bot authentication and rate limiting
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// Map the GET request at path "/healthz" to the Health handler.  This
	// endpoint can be used by load balancers or monitoring systems to verify
	// that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterLink registers the browser-facing OAuth linking flow.  These two
// routes are public: the visitor arrives from a Discord prompt with no
// credentials of their own, and the state cookie carries the CSRF check.
func RegisterLink(e *echo.Echo, l *handler.LinkHandler, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	// The link endpoints are the only unauthenticated surface that does
	// real work, so they get the token bucket limiter directly.
	rl := middleware.NewTokenBucket(rlCfg, rdb)
	e.GET("/linked-role", l.BeginLink, rl)
	e.GET("/discord-oauth-callback", l.CompleteLink, rl)
}

// RegisterInternal registers the bot-facing API under /v1.  Every route in
// the group requires a valid bot bearer token and shares the rate limiter.
func RegisterInternal(e *echo.Echo, r *handler.ResolutionHandler, apiSecret string, rlCfg config.RateLimitConfig, rdb *redis.Client) {
	g := e.Group("/v1")
	g.Use(middleware.BotAuth(apiSecret))
	g.Use(middleware.NewTokenBucket(rlCfg, rdb))

	// Resolution events and forced resyncs.
	g.POST("/resolutions", r.RecordResolution)
	g.POST("/update-metadata", r.UpdateMetadata)
	g.POST("/counters/:name", r.IncrementCounter)
	g.PUT("/counters/:name", r.SetCounter)

	// Read-side endpoints for the bot and moderator tooling.
	g.GET("/users/:id/resolved-count", r.ResolvedCount)
	g.GET("/users/:id/state", r.LedgerState)
	g.GET("/users/:id/resolutions", r.History)
}
