package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/festival-platform/program-scheduler/internal/database"
	"github.com/festival-platform/program-scheduler/internal/model"
)

// StageRepo manages persistence for stages.  Stages belong to exactly one
// festival and their names are unique per festival.
type StageRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewStageRepo constructs a StageRepo.  The dialect selects the row locking
// clause used by LockTx.
func NewStageRepo(db *sql.DB, dialect database.Dialect) *StageRepo {
	return &StageRepo{db: db, dialect: dialect}
}

const stageColumns = `id, festival_id, name, description, capacity, location, created_at`

func scanStage(row interface{ Scan(...any) error }) (model.Stage, error) {
	var (
		s           model.Stage
		description sql.NullString
		capacity    sql.NullInt64
		location    sql.NullString
		created     database.Time
	)
	if err := row.Scan(&s.ID, &s.FestivalID, &s.Name, &description, &capacity, &location, &created); err != nil {
		return model.Stage{}, err
	}
	if description.Valid {
		s.Description = &description.String
	}
	if capacity.Valid {
		c := uint32(capacity.Int64)
		s.Capacity = &c
	}
	if location.Valid {
		s.Location = &location.String
	}
	s.CreatedAt = created.Time
	return s, nil
}

// Create inserts a new stage and assigns the generated ID back to s.  A
// second stage with the same name in the same festival yields ErrDuplicate.
func (r *StageRepo) Create(ctx context.Context, s *model.Stage) error {
	s.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO stages (festival_id, name, description, capacity, location, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, s.FestivalID, s.Name, s.Description, s.Capacity, s.Location, database.FormatTime(s.CreatedAt))
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// GetByID retrieves a stage by its ID.  It returns ErrStageNotFound if there
// is no matching row.
func (r *StageRepo) GetByID(ctx context.Context, id uint64) (*model.Stage, error) {
	return getStage(ctx, r.db, id)
}

// GetByIDTx is GetByID within the caller's transaction.
func (r *StageRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Stage, error) {
	return getStage(ctx, tx, id)
}

func getStage(ctx context.Context, q dbtx, id uint64) (*model.Stage, error) {
	s, err := scanStage(q.QueryRowContext(ctx, `SELECT `+stageColumns+` FROM stages WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStageNotFound
		}
		return nil, err
	}
	return &s, nil
}

// ListByFestival returns the stages of a festival ordered by name.
func (r *StageRepo) ListByFestival(ctx context.Context, festivalID uint64) ([]model.Stage, error) {
	const q = `SELECT ` + stageColumns + ` FROM stages WHERE festival_id = ? ORDER BY name ASC, id ASC`
	rows, err := r.db.QueryContext(ctx, q, festivalID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Stage{}
	for rows.Next() {
		s, err := scanStage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LockTx row-locks the given stages for the rest of the transaction.
func (r *StageRepo) LockTx(ctx context.Context, tx *sql.Tx, ids ...uint64) error {
	return lockRows(ctx, tx, "stages", r.dialect.LockClause(), ids)
}

// Delete removes a stage.  The deletion is refused with ErrConflict while any
// performance, cancelled or not, still references the stage.  The festival
// the stage belonged to is returned so callers can invalidate derived data.
func (r *StageRepo) Delete(ctx context.Context, id uint64) (festivalID uint64, err error) {
	err = WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.LockTx(ctx, tx, id); err != nil {
			return err
		}
		s, err := getStage(ctx, tx, id)
		if err != nil {
			return err
		}
		festivalID = s.FestivalID
		var refs int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM performances WHERE stage_id = ?`, id).Scan(&refs); err != nil {
			return err
		}
		if refs > 0 {
			return ErrConflict
		}
		_, err = tx.ExecContext(ctx, `DELETE FROM stages WHERE id = ?`, id)
		return err
	})
	return festivalID, err
}
