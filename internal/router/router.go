package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/festival-platform/program-scheduler/internal/handler" // handlers that implement the endpoints
)

// RegisterRoutes registers routes that sit outside the versioned API.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler) {
	e.GET("/healthz", h.Health)
}

// Public bundles the handlers and middleware of the unauthenticated API.
type Public struct {
	Catalog *handler.CatalogHandler
	Program *handler.ProgramHandler
	Lineup  *handler.LineupHandler

	// RateLimit wraps every public route.
	RateLimit echo.MiddlewareFunc
	// FestivalCache wraps routes scoped by the :id festival parameter.
	FestivalCache echo.MiddlewareFunc
}

// RegisterPublic registers read-only endpoints under /v1.  They apply no JWT
// or role middleware and are intended for festival visitors.
func RegisterPublic(e *echo.Echo, p Public) {
	g := e.Group("/v1")
	if p.RateLimit != nil {
		g.Use(p.RateLimit)
	}

	g.GET("/festivals", p.Catalog.ListFestivals)

	// Festival-scoped reads are cached per festival and dropped on every
	// program or stage change of that festival.
	var cached []echo.MiddlewareFunc
	if p.FestivalCache != nil {
		cached = append(cached, p.FestivalCache)
	}
	g.GET("/festivals/:id", p.Catalog.GetFestival, cached...)
	g.GET("/festivals/:id/stages", p.Catalog.ListStages, cached...)
	g.GET("/festivals/:id/lineup", p.Lineup.GetLineup, cached...)

	g.GET("/stages/:id/performances", p.Catalog.ListStagePerformances)

	g.GET("/artists", p.Catalog.ListArtists)
	g.GET("/artists/:id", p.Catalog.GetArtist)
	g.GET("/artists/:id/performances", p.Catalog.ListArtistPerformances)
	g.GET("/performances/:id", p.Program.GetPerformance)
}
