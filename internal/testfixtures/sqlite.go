package testfixtures

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/festival-platform/program-scheduler/internal/database"
	"github.com/festival-platform/program-scheduler/internal/repository"
)

// SQLiteHarness provides repository access backed by a temporary SQLite
// database for integration-style tests.
type SQLiteHarness struct {
	DB           *sql.DB
	Festivals    *repository.FestivalRepo
	Stages       *repository.StageRepo
	Artists      *repository.ArtistRepo
	Performances *repository.PerformanceRepo
}

// NewSQLiteHarness opens a migrated database file under tb.TempDir and
// registers its cleanup with tb.
func NewSQLiteHarness(tb testing.TB) *SQLiteHarness {
	tb.Helper()

	path := filepath.Join(tb.TempDir(), "program.db")
	db, err := database.OpenSQLite(path)
	if err != nil {
		tb.Fatalf("failed to open sqlite: %v", err)
	}
	tb.Cleanup(func() { _ = db.Close() })

	if err := database.Migrate(context.Background(), db, database.SQLite); err != nil {
		tb.Fatalf("failed to migrate sqlite: %v", err)
	}

	return &SQLiteHarness{
		DB:           db,
		Festivals:    repository.NewFestivalRepo(db),
		Stages:       repository.NewStageRepo(db, database.SQLite),
		Artists:      repository.NewArtistRepo(db, database.SQLite),
		Performances: repository.NewPerformanceRepo(db, database.SQLite),
	}
}
