package handler // handler defines http handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/festival-platform/program-scheduler/internal/logging"
	"github.com/festival-platform/program-scheduler/internal/scheduler"
)

// Error codes returned in the "error" field of failed responses.
const (
	codeBadRequest       = "bad_request"
	codeNotFound         = "not_found"
	codeInvalidTimeRange = "invalid_time_range"
	codeInvalidReference = "invalid_reference"
	codeStageConflict    = "stage_conflict"
	codeArtistConflict   = "artist_conflict"
	codeConflict         = "conflict"
	codeInternal         = "internal_error"
)

func fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, echo.Map{"error": code, "message": message})
}

func badRequest(c echo.Context, message string) error {
	return fail(c, http.StatusBadRequest, codeBadRequest, message)
}

// schedulerError maps a scheduler error to its HTTP response.  Unknown errors
// are logged and answered with a generic 500.
func schedulerError(c echo.Context, err error) error {
	var conflict *scheduler.ConflictError
	switch {
	case errors.As(err, &conflict):
		code := codeStageConflict
		if conflict.Scope == scheduler.ScopeArtist {
			code = codeArtistConflict
		}
		ids := conflict.PerformanceIDs
		if ids == nil {
			ids = []uint64{}
		}
		return c.JSON(http.StatusConflict, echo.Map{"error": code, "message": err.Error(), "conflicts": ids})
	case errors.Is(err, scheduler.ErrNotFound):
		return fail(c, http.StatusNotFound, codeNotFound, err.Error())
	case errors.Is(err, scheduler.ErrInvalidTimeRange):
		return fail(c, http.StatusBadRequest, codeInvalidTimeRange, "startsAt must be before endsAt")
	case errors.Is(err, scheduler.ErrInvalidReference):
		return fail(c, http.StatusBadRequest, codeInvalidReference, "stage does not belong to festival")
	case errors.Is(err, scheduler.ErrInvalidQuery):
		return badRequest(c, err.Error())
	}
	return internalError(c, err)
}

func internalError(c echo.Context, err error) error {
	logging.FromContext(c.Request().Context()).Error("request failed",
		"method", c.Request().Method, "path", c.Path(), "error", err)
	return fail(c, http.StatusInternalServerError, codeInternal, "internal error")
}

// pathID parses a positive numeric path parameter.
func pathID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// parseTimestamp parses an RFC 3339 timestamp and normalises it to UTC at
// storage precision.
func parseTimestamp(field, raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New(field + " is required")
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, errors.New("invalid " + field + " format, expected RFC 3339")
	}
	return scheduler.StorageTime(t), nil
}

// optionalString trims s and returns nil when nothing is left.
func optionalString(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}
