package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/festival-platform/program-scheduler/internal/scheduler"
)

// LineupHandler serves the public festival lineup.
type LineupHandler struct {
	Lineups *scheduler.LineupService
}

// NewLineupHandler constructs a LineupHandler and panics if the service is nil.
func NewLineupHandler(s *scheduler.LineupService) *LineupHandler {
	if s == nil {
		panic("nil lineup service passed to NewLineupHandler")
	}
	return &LineupHandler{Lineups: s}
}

// GetLineup handles GET /v1/festivals/:id/lineup.  Query parameters:
// stageId, date (YYYY-MM-DD), includeCancelled, page and limit.
func (h *LineupHandler) GetLineup(c echo.Context) error {
	festivalID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid festival id")
	}
	opts, msg := parseLineupQuery(c)
	if msg != "" {
		return badRequest(c, msg)
	}
	out, err := h.Lineups.GetLineup(c.Request().Context(), festivalID, opts)
	if err != nil {
		return schedulerError(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// parseLineupQuery reads the lineup filters.  A non-empty msg describes the
// first invalid parameter.
func parseLineupQuery(c echo.Context) (opts scheduler.LineupOptions, msg string) {
	if raw := strings.TrimSpace(c.QueryParam("stageId")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil || id == 0 {
			return opts, "invalid stageId"
		}
		opts.StageID = &id
	}
	opts.Date = strings.TrimSpace(c.QueryParam("date"))
	if raw := strings.TrimSpace(c.QueryParam("includeCancelled")); raw != "" {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return opts, "includeCancelled must be true or false"
		}
		opts.IncludeCancelled = v
	}
	if raw := strings.TrimSpace(c.QueryParam("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return opts, "page must be a positive integer"
		}
		opts.Page = n
	}
	if raw := strings.TrimSpace(c.QueryParam("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return opts, "limit must be a positive integer"
		}
		opts.Limit = n
	}
	return opts, ""
}
