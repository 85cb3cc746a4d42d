package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/festival-platform/program-scheduler/internal/scheduler"
)

// ProgramHandler exposes performance scheduling over HTTP.
type ProgramHandler struct {
	Scheduler *scheduler.Service
}

// NewProgramHandler constructs a ProgramHandler and panics if the service is nil.
func NewProgramHandler(s *scheduler.Service) *ProgramHandler {
	if s == nil {
		panic("nil scheduler passed to NewProgramHandler")
	}
	return &ProgramHandler{Scheduler: s}
}

type createPerformanceRequest struct {
	ArtistID    uint64  `json:"artistId"`
	StageID     uint64  `json:"stageId"`
	StartsAt    string  `json:"startsAt"`
	EndsAt      string  `json:"endsAt"`
	Description *string `json:"description"`
}

// updatePerformanceRequest holds a partial update; absent fields stay as
// they are.
type updatePerformanceRequest struct {
	ArtistID    *uint64 `json:"artistId"`
	StageID     *uint64 `json:"stageId"`
	StartsAt    *string `json:"startsAt"`
	EndsAt      *string `json:"endsAt"`
	Description *string `json:"description"`
	IsCancelled *bool   `json:"isCancelled"`
}

// CreatePerformance handles POST /v1/admin/festivals/:id/performances.
func (h *ProgramHandler) CreatePerformance(c echo.Context) error {
	festivalID, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid festival id")
	}
	var body createPerformanceRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	if body.ArtistID == 0 || body.StageID == 0 {
		return badRequest(c, "artistId and stageId are required")
	}
	start, err := parseTimestamp("startsAt", body.StartsAt)
	if err != nil {
		return badRequest(c, err.Error())
	}
	end, err := parseTimestamp("endsAt", body.EndsAt)
	if err != nil {
		return badRequest(c, err.Error())
	}

	p, err := h.Scheduler.CreatePerformance(c.Request().Context(), scheduler.CreateInput{
		FestivalID:  festivalID,
		ArtistID:    body.ArtistID,
		StageID:     body.StageID,
		StartsAt:    start,
		EndsAt:      end,
		Description: body.Description,
	})
	if err != nil {
		return schedulerError(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

// UpdatePerformance handles PATCH /v1/admin/performances/:id.
func (h *ProgramHandler) UpdatePerformance(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid performance id")
	}
	var body updatePerformanceRequest
	if err := c.Bind(&body); err != nil {
		return badRequest(c, "invalid request body")
	}
	changes := scheduler.Changes{
		ArtistID:    body.ArtistID,
		StageID:     body.StageID,
		Description: body.Description,
		IsCancelled: body.IsCancelled,
	}
	if body.StartsAt != nil {
		t, err := parseTimestamp("startsAt", *body.StartsAt)
		if err != nil {
			return badRequest(c, err.Error())
		}
		changes.StartsAt = &t
	}
	if body.EndsAt != nil {
		t, err := parseTimestamp("endsAt", *body.EndsAt)
		if err != nil {
			return badRequest(c, err.Error())
		}
		changes.EndsAt = &t
	}
	if (changes.ArtistID != nil && *changes.ArtistID == 0) || (changes.StageID != nil && *changes.StageID == 0) {
		return badRequest(c, "artistId and stageId must be positive")
	}

	p, err := h.Scheduler.UpdatePerformance(c.Request().Context(), id, changes)
	if err != nil {
		return schedulerError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// CancelPerformance handles POST /v1/admin/performances/:id/cancel.
// Cancelling an already cancelled performance succeeds.
func (h *ProgramHandler) CancelPerformance(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid performance id")
	}
	p, err := h.Scheduler.CancelPerformance(c.Request().Context(), id)
	if err != nil {
		return schedulerError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// DeletePerformance handles DELETE /v1/admin/performances/:id.
func (h *ProgramHandler) DeletePerformance(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid performance id")
	}
	if err := h.Scheduler.DeletePerformance(c.Request().Context(), id); err != nil {
		return schedulerError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// GetPerformance handles GET /v1/performances/:id.
func (h *ProgramHandler) GetPerformance(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return badRequest(c, "invalid performance id")
	}
	p, err := h.Scheduler.GetPerformance(c.Request().Context(), id)
	if err != nil {
		return schedulerError(c, err)
	}
	return c.JSON(http.StatusOK, p)
}
