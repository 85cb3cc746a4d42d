package testfixtures

import (
	"context"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/festival-platform/program-scheduler/internal/model"
)

var festivalCounter uint64

var referenceDay = time.Date(2025, time.July, 12, 0, 0, 0, 0, time.UTC)

// ReferenceDay returns midnight UTC of the canonical festival day.
func ReferenceDay() time.Time {
	return referenceDay
}

// At returns the reference day at the given wall clock time in UTC.  Hours
// of 24 or more roll over into the following day.
func At(hour, minute int) time.Time {
	return referenceDay.Add(time.Duration(hour)*time.Hour + time.Duration(minute)*time.Minute)
}

// Festival inserts a festival spanning three days from the reference day.
func (h *SQLiteHarness) Festival(tb testing.TB, name string) model.Festival {
	tb.Helper()
	idx := atomic.AddUint64(&festivalCounter, 1)
	f := model.Festival{
		Name:     name,
		Slug:     fmt.Sprintf("%s-%d", strings.ToLower(strings.ReplaceAll(name, " ", "-")), idx),
		StartsAt: referenceDay,
		EndsAt:   referenceDay.Add(72 * time.Hour),
	}
	if err := h.Festivals.Create(context.Background(), &f); err != nil {
		tb.Fatalf("create festival %q: %v", name, err)
	}
	return f
}

// Stage inserts a stage into the given festival.
func (h *SQLiteHarness) Stage(tb testing.TB, festivalID uint64, name string) model.Stage {
	tb.Helper()
	s := model.Stage{FestivalID: festivalID, Name: name}
	if err := h.Stages.Create(context.Background(), &s); err != nil {
		tb.Fatalf("create stage %q: %v", name, err)
	}
	return s
}

// Artist inserts an artist with the given name and genre.
func (h *SQLiteHarness) Artist(tb testing.TB, name, genre string) model.Artist {
	tb.Helper()
	a := model.Artist{Name: name}
	if genre != "" {
		a.Genre = &genre
	}
	if err := h.Artists.Create(context.Background(), &a); err != nil {
		tb.Fatalf("create artist %q: %v", name, err)
	}
	return a
}

// Performance inserts a performance directly, bypassing scheduling checks.
func (h *SQLiteHarness) Performance(tb testing.TB, artistID, stageID uint64, start, end time.Time, cancelled bool) model.Performance {
	tb.Helper()
	p := model.Performance{ArtistID: artistID, StageID: stageID, StartsAt: start, EndsAt: end, IsCancelled: cancelled}
	ctx := context.Background()
	tx, err := h.DB.BeginTx(ctx, nil)
	if err != nil {
		tb.Fatalf("begin: %v", err)
	}
	if err := h.Performances.InsertTx(ctx, tx, &p); err != nil {
		_ = tx.Rollback()
		tb.Fatalf("insert performance: %v", err)
	}
	if err := tx.Commit(); err != nil {
		tb.Fatalf("commit: %v", err)
	}
	return p
}

// CountPerformances returns the number of rows in the performances table.
func (h *SQLiteHarness) CountPerformances(tb testing.TB) int {
	tb.Helper()
	var n int
	if err := h.DB.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM performances`).Scan(&n); err != nil {
		tb.Fatalf("count performances: %v", err)
	}
	return n
}
