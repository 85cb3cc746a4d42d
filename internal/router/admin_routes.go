package router // router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4"

	"github.com/festival-platform/program-scheduler/internal/handler"    // catalog and program handlers
	"github.com/festival-platform/program-scheduler/internal/middleware" // JWT + role middlewares
	"github.com/festival-platform/program-scheduler/internal/utils"      // role names
)

// RegisterAdmin registers program-management endpoints under /v1/admin.
// All routes require a valid JWT with the ADMIN or ORGANIZER role.
func RegisterAdmin(e *echo.Echo, catalog *handler.CatalogHandler, program *handler.ProgramHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(utils.RoleAdmin, utils.RoleOrganizer),
	)

	// ---- Festivals & stages ----
	g.POST("/festivals", catalog.CreateFestival)
	g.POST("/festivals/:id/stages", catalog.CreateStage)
	g.DELETE("/stages/:id", catalog.DeleteStage)

	// ---- Artists ----
	g.POST("/artists", catalog.CreateArtist)
	g.DELETE("/artists/:id", catalog.DeleteArtist)

	// ---- Performances ----
	g.POST("/festivals/:id/performances", program.CreatePerformance)
	g.PATCH("/performances/:id", program.UpdatePerformance)
	g.POST("/performances/:id/cancel", program.CancelPerformance)
	g.DELETE("/performances/:id", program.DeletePerformance)
}
