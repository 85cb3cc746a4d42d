package scheduler

import (
	"errors"
	"fmt"
	"strings"

	"github.com/festival-platform/program-scheduler/internal/repository"
)

var (
	// ErrNotFound is matched by every *NotFoundError.
	ErrNotFound = errors.New("scheduler: not found")
	// ErrInvalidTimeRange is returned when a start is not strictly before its end.
	ErrInvalidTimeRange = errors.New("scheduler: start must be before end")
	// ErrInvalidReference is returned when a stage does not belong to the festival in context.
	ErrInvalidReference = errors.New("scheduler: stage does not belong to festival")
	// ErrStageConflict is returned when the stage is already booked for an overlapping range.
	ErrStageConflict = errors.New("scheduler: stage already booked")
	// ErrArtistConflict is returned when the artist already performs in an overlapping range.
	ErrArtistConflict = errors.New("scheduler: artist already booked")
	// ErrInvalidQuery is returned for malformed lineup filters or pagination.
	ErrInvalidQuery = errors.New("scheduler: invalid lineup query")
)

// Entity names the kind of record a NotFoundError refers to.
type Entity string

const (
	EntityFestival    Entity = "festival"
	EntityArtist      Entity = "artist"
	EntityStage       Entity = "stage"
	EntityPerformance Entity = "performance"
)

// NotFoundError reports that a referenced record does not exist.
type NotFoundError struct {
	Entity Entity
	ID     uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %d not found", e.Entity, e.ID)
}

// Is makes errors.Is(err, ErrNotFound) hold for every entity.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrNotFound
}

// ConflictError reports a double booking.  PerformanceIDs lists the clashing
// performances; it is empty when the conflict was inferred from a write that
// lost a race twice in a row.
type ConflictError struct {
	Scope          Scope
	ScopeID        uint64
	PerformanceIDs []uint64
	cause          error
}

func (e *ConflictError) Error() string {
	if len(e.PerformanceIDs) == 0 {
		msg := fmt.Sprintf("%s %d is being booked concurrently", e.Scope, e.ScopeID)
		if e.cause != nil {
			msg += ": " + e.cause.Error()
		}
		return msg
	}
	ids := make([]string, len(e.PerformanceIDs))
	for i, id := range e.PerformanceIDs {
		ids[i] = fmt.Sprint(id)
	}
	return fmt.Sprintf("%s %d already booked by performance %s", e.Scope, e.ScopeID, strings.Join(ids, ", "))
}

// Unwrap exposes the sentinel of the conflicting scope so callers can use
// errors.Is(err, ErrStageConflict) or errors.Is(err, ErrArtistConflict).
func (e *ConflictError) Unwrap() error {
	if e.Scope == ScopeArtist {
		return ErrArtistConflict
	}
	return ErrStageConflict
}

// translate turns repository not-found sentinels into NotFoundErrors for id.
// Any other error is returned unchanged.
func translate(err error, id uint64) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrFestivalNotFound):
		return &NotFoundError{Entity: EntityFestival, ID: id}
	case errors.Is(err, repository.ErrArtistNotFound):
		return &NotFoundError{Entity: EntityArtist, ID: id}
	case errors.Is(err, repository.ErrStageNotFound):
		return &NotFoundError{Entity: EntityStage, ID: id}
	case errors.Is(err, repository.ErrPerformanceNotFound):
		return &NotFoundError{Entity: EntityPerformance, ID: id}
	}
	return err
}

// ErrorKind maps scheduler errors to a stable logging label.
func ErrorKind(err error) string {
	if err == nil {
		return ""
	}
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidTimeRange):
		return "invalid_time_range"
	case errors.Is(err, ErrInvalidReference):
		return "invalid_reference"
	case errors.Is(err, ErrStageConflict):
		return "stage_conflict"
	case errors.Is(err, ErrArtistConflict):
		return "artist_conflict"
	case errors.Is(err, ErrInvalidQuery):
		return "invalid_query"
	}
	return "unexpected"
}
