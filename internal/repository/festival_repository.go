package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/festival-platform/program-scheduler/internal/database"
	"github.com/festival-platform/program-scheduler/internal/model"
)

// FestivalRepo manages persistence for festivals.
type FestivalRepo struct {
	db *sql.DB
}

// NewFestivalRepo constructs a FestivalRepo with the given DB handle.
func NewFestivalRepo(db *sql.DB) *FestivalRepo {
	return &FestivalRepo{db: db}
}

const festivalColumns = `id, name, slug, starts_at, ends_at, created_at`

func scanFestival(row interface{ Scan(...any) error }) (model.Festival, error) {
	var (
		f                         model.Festival
		startsAt, endsAt, created database.Time
	)
	if err := row.Scan(&f.ID, &f.Name, &f.Slug, &startsAt, &endsAt, &created); err != nil {
		return model.Festival{}, err
	}
	f.StartsAt, f.EndsAt, f.CreatedAt = startsAt.Time, endsAt.Time, created.Time
	return f, nil
}

// Create inserts a festival and assigns the generated ID back to f.  A slug
// that is already taken yields ErrDuplicate.
func (r *FestivalRepo) Create(ctx context.Context, f *model.Festival) error {
	f.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO festivals (name, slug, starts_at, ends_at, created_at) VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, f.Name, f.Slug,
		database.FormatTime(f.StartsAt), database.FormatTime(f.EndsAt), database.FormatTime(f.CreatedAt))
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
	f.ID = uint64(id)
	return nil
}

// GetByID retrieves a festival by its ID.  It returns ErrFestivalNotFound if
// there is no matching row.
func (r *FestivalRepo) GetByID(ctx context.Context, id uint64) (*model.Festival, error) {
	return getFestival(ctx, r.db, id)
}

// GetByIDTx is GetByID within the caller's transaction.
func (r *FestivalRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Festival, error) {
	return getFestival(ctx, tx, id)
}

func getFestival(ctx context.Context, q dbtx, id uint64) (*model.Festival, error) {
	f, err := scanFestival(q.QueryRowContext(ctx, `SELECT `+festivalColumns+` FROM festivals WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrFestivalNotFound
		}
		return nil, err
	}
	return &f, nil
}

// List returns every festival ordered by start of its scheduling window.
func (r *FestivalRepo) List(ctx context.Context) ([]model.Festival, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+festivalColumns+` FROM festivals ORDER BY starts_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Festival{}
	for rows.Next() {
		f, err := scanFestival(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}
