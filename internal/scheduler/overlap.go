package scheduler

import (
	"context"
	"database/sql"
	"time"

	"github.com/festival-platform/program-scheduler/internal/model"
)

// Scope is the dimension a performance may not be double-booked in.
type Scope string

const (
	ScopeStage  Scope = "stage"
	ScopeArtist Scope = "artist"
)

// OverlapFinder narrows the performances that may clash with a range.
// Implementations must return at least every non-cancelled performance in
// the scope that overlaps [start, end).
type OverlapFinder interface {
	FindOverlappingByStageTx(ctx context.Context, tx *sql.Tx, stageID, excludeID uint64, start, end time.Time) ([]model.Performance, error)
	FindOverlappingByArtistTx(ctx context.Context, tx *sql.Tx, artistID, excludeID uint64, start, end time.Time) ([]model.Performance, error)
}

// Candidate is the proposed state of a performance.  ExcludeID is the id of
// the performance being updated, or zero for a new one.
type Candidate struct {
	StageID   uint64
	ArtistID  uint64
	ExcludeID uint64
	Range     TimeRange
}

// Detector checks candidates against the stored program.
type Detector struct {
	finder OverlapFinder
}

// NewDetector constructs a Detector backed by finder.
func NewDetector(finder OverlapFinder) *Detector {
	return &Detector{finder: finder}
}

// Check runs the stage scan and then the artist scan, returning a
// *ConflictError for the first scope that is already booked.
func (d *Detector) Check(ctx context.Context, tx *sql.Tx, c Candidate) error {
	for _, scope := range []Scope{ScopeStage, ScopeArtist} {
		ids, err := d.Conflicts(ctx, tx, scope, c)
		if err != nil {
			return err
		}
		if len(ids) > 0 {
			scopeID := c.StageID
			if scope == ScopeArtist {
				scopeID = c.ArtistID
			}
			return &ConflictError{Scope: scope, ScopeID: scopeID, PerformanceIDs: ids}
		}
	}
	return nil
}

// Conflicts returns the ids of the non-cancelled performances in scope that
// overlap the candidate range, ignoring the candidate itself.
func (d *Detector) Conflicts(ctx context.Context, tx *sql.Tx, scope Scope, c Candidate) ([]uint64, error) {
	var (
		found []model.Performance
		err   error
	)
	switch scope {
	case ScopeArtist:
		found, err = d.finder.FindOverlappingByArtistTx(ctx, tx, c.ArtistID, c.ExcludeID, c.Range.Start, c.Range.End)
	default:
		found, err = d.finder.FindOverlappingByStageTx(ctx, tx, c.StageID, c.ExcludeID, c.Range.Start, c.Range.End)
	}
	if err != nil {
		return nil, err
	}
	var ids []uint64
	for _, p := range found {
		if p.IsCancelled || (c.ExcludeID != 0 && p.ID == c.ExcludeID) {
			continue
		}
		if c.Range.Overlaps(TimeRange{Start: p.StartsAt, End: p.EndsAt}) {
			ids = append(ids, p.ID)
		}
	}
	return ids, nil
}
