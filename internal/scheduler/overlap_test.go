package scheduler

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/festival-platform/program-scheduler/internal/model"
)

type stubFinder struct {
	byStage  []model.Performance
	byArtist []model.Performance
	err      error
	calls    []Scope
}

func (s *stubFinder) FindOverlappingByStageTx(_ context.Context, _ *sql.Tx, _, _ uint64, _, _ time.Time) ([]model.Performance, error) {
	s.calls = append(s.calls, ScopeStage)
	return s.byStage, s.err
}

func (s *stubFinder) FindOverlappingByArtistTx(_ context.Context, _ *sql.Tx, _, _ uint64, _, _ time.Time) ([]model.Performance, error) {
	s.calls = append(s.calls, ScopeArtist)
	return s.byArtist, s.err
}

func perf(id uint64, start, end time.Time, cancelled bool) model.Performance {
	return model.Performance{ID: id, StartsAt: start, EndsAt: end, IsCancelled: cancelled}
}

func TestDetectorFiltersCandidates(t *testing.T) {
	finder := &stubFinder{byStage: []model.Performance{
		perf(1, clock(19, 0), clock(20, 0), false), // touches
		perf(2, clock(20, 30), clock(21, 0), true), // cancelled
		perf(3, clock(20, 0), clock(22, 0), false), // excluded self
		perf(4, clock(21, 0), clock(23, 0), false), // clash
	}}
	d := NewDetector(finder)
	ids, err := d.Conflicts(context.Background(), nil, ScopeStage, Candidate{
		StageID:   1,
		ExcludeID: 3,
		Range:     TimeRange{Start: clock(20, 0), End: clock(22, 0)},
	})
	if err != nil {
		t.Fatalf("Conflicts: %v", err)
	}
	if len(ids) != 1 || ids[0] != 4 {
		t.Fatalf("expected only performance 4 to clash, got %v", ids)
	}
}

func TestDetectorCheckReportsStageBeforeArtist(t *testing.T) {
	clash := []model.Performance{perf(9, clock(20, 0), clock(22, 0), false)}
	cand := Candidate{StageID: 5, ArtistID: 7, Range: TimeRange{Start: clock(21, 0), End: clock(23, 0)}}

	finder := &stubFinder{byStage: clash, byArtist: clash}
	err := NewDetector(finder).Check(context.Background(), nil, cand)
	var ce *ConflictError
	if !errors.As(err, &ce) || !errors.Is(err, ErrStageConflict) {
		t.Fatalf("expected stage conflict, got %v", err)
	}
	if ce.ScopeID != 5 || len(ce.PerformanceIDs) != 1 || ce.PerformanceIDs[0] != 9 {
		t.Fatalf("unexpected conflict details: %+v", ce)
	}
	if len(finder.calls) != 1 {
		t.Fatalf("expected the artist scan to be skipped, calls=%v", finder.calls)
	}

	finder = &stubFinder{byArtist: clash}
	err = NewDetector(finder).Check(context.Background(), nil, cand)
	if !errors.Is(err, ErrArtistConflict) || errors.Is(err, ErrStageConflict) {
		t.Fatalf("expected artist conflict only, got %v", err)
	}
	if !errors.As(err, &ce) || ce.ScopeID != 7 {
		t.Fatalf("expected artist scope id 7, got %+v", ce)
	}

	finder = &stubFinder{}
	if err := NewDetector(finder).Check(context.Background(), nil, cand); err != nil {
		t.Fatalf("expected no conflict, got %v", err)
	}
	if len(finder.calls) != 2 {
		t.Fatalf("expected both scans, calls=%v", finder.calls)
	}
}

func TestDetectorPropagatesStoreErrors(t *testing.T) {
	boom := errors.New("boom")
	err := NewDetector(&stubFinder{err: boom}).Check(context.Background(), nil, Candidate{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected store error, got %v", err)
	}
}

func TestErrorKind(t *testing.T) {
	cases := map[string]error{
		"not_found":          &NotFoundError{Entity: EntityStage, ID: 1},
		"invalid_time_range": ValidateTimeRange(clock(1, 0), clock(1, 0)),
		"invalid_reference":  ErrInvalidReference,
		"stage_conflict":     &ConflictError{Scope: ScopeStage},
		"artist_conflict":    &ConflictError{Scope: ScopeArtist},
		"invalid_query":      ErrInvalidQuery,
		"unexpected":         errors.New("disk on fire"),
	}
	for want, err := range cases {
		if got := ErrorKind(err); got != want {
			t.Fatalf("ErrorKind(%v) = %q, want %q", err, got, want)
		}
	}
	if ErrorKind(nil) != "" {
		t.Fatal("expected empty kind for nil")
	}
}
