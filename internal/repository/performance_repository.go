package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/festival-platform/program-scheduler/internal/database"
	"github.com/festival-platform/program-scheduler/internal/model"
)

// PerformanceRepo manages persistence for performances.  It is pure data
// access: time range validation and overlap policy live in the scheduler,
// which calls the Tx variants inside a single transaction per write.
//
// Timestamps are written with database.FormatTime so range predicates
// compare correctly on both MySQL DATETIME(3) and SQLite text columns.
type PerformanceRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewPerformanceRepo constructs a PerformanceRepo with the given DB handle.
func NewPerformanceRepo(db *sql.DB, dialect database.Dialect) *PerformanceRepo {
	return &PerformanceRepo{db: db, dialect: dialect}
}

const performanceColumns = `p.id, p.artist_id, p.stage_id, p.starts_at, p.ends_at, p.description, p.is_cancelled, p.created_at, p.updated_at`

// detailSelect joins the artist and stage summaries onto each performance.
const detailSelect = `SELECT ` + performanceColumns + `,
		a.id, a.name, a.genre, a.image_url,
		s.id, s.name, s.festival_id
	FROM performances p
	JOIN artists a ON a.id = p.artist_id
	JOIN stages s  ON s.id = p.stage_id`

type scanner interface{ Scan(...any) error }

func performanceDest(p *model.Performance, description *sql.NullString, startsAt, endsAt, created, updated *database.Time) []any {
	return []any{&p.ID, &p.ArtistID, &p.StageID, startsAt, endsAt, description, &p.IsCancelled, created, updated}
}

func scanPerformance(row scanner) (model.Performance, error) {
	var (
		p                                  model.Performance
		description                        sql.NullString
		startsAt, endsAt, created, updated database.Time
	)
	if err := row.Scan(performanceDest(&p, &description, &startsAt, &endsAt, &created, &updated)...); err != nil {
		return model.Performance{}, err
	}
	fillPerformance(&p, description, startsAt, endsAt, created, updated)
	return p, nil
}

func scanDetail(row scanner) (model.PerformanceDetail, error) {
	var (
		d                                  model.PerformanceDetail
		description, genre, image          sql.NullString
		startsAt, endsAt, created, updated database.Time
	)
	dest := performanceDest(&d.Performance, &description, &startsAt, &endsAt, &created, &updated)
	dest = append(dest, &d.Artist.ID, &d.Artist.Name, &genre, &image, &d.Stage.ID, &d.Stage.Name, &d.Stage.FestivalID)
	if err := row.Scan(dest...); err != nil {
		return model.PerformanceDetail{}, err
	}
	fillPerformance(&d.Performance, description, startsAt, endsAt, created, updated)
	if genre.Valid {
		d.Artist.Genre = &genre.String
	}
	if image.Valid {
		d.Artist.Image = &image.String
	}
	return d, nil
}

func fillPerformance(p *model.Performance, description sql.NullString, startsAt, endsAt, created, updated database.Time) {
	if description.Valid {
		p.Description = &description.String
	}
	p.StartsAt, p.EndsAt = startsAt.Time, endsAt.Time
	p.CreatedAt, p.UpdatedAt = created.Time, updated.Time
}

func collectDetails(rows *sql.Rows) ([]model.PerformanceDetail, error) {
	defer rows.Close()
	out := []model.PerformanceDetail{}
	for rows.Next() {
		d, err := scanDetail(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDTx loads a performance inside the caller's transaction.  On MySQL
// the row is locked until the transaction ends.  It returns
// ErrPerformanceNotFound if there is no matching row.
func (r *PerformanceRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Performance, error) {
	q := `SELECT ` + performanceColumns + ` FROM performances p WHERE p.id = ?` + r.dialect.LockClause()
	p, err := scanPerformance(tx.QueryRowContext(ctx, q, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPerformanceNotFound
		}
		return nil, err
	}
	return &p, nil
}

// GetDetail retrieves a performance with its artist and stage summaries.
func (r *PerformanceRepo) GetDetail(ctx context.Context, id uint64) (*model.PerformanceDetail, error) {
	return getDetail(ctx, r.db, id, "")
}

// GetDetailTx is GetDetail within the caller's transaction.
func (r *PerformanceRepo) GetDetailTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.PerformanceDetail, error) {
	return getDetail(ctx, tx, id, "")
}

// GetDetailForUpdateTx is GetDetailTx that also locks the performance row on
// MySQL.  The joined artist and stage rows are not locked.
func (r *PerformanceRepo) GetDetailForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.PerformanceDetail, error) {
	return getDetail(ctx, tx, id, r.dialect.LockClauseOf("p"))
}

func getDetail(ctx context.Context, q dbtx, id uint64, lock string) (*model.PerformanceDetail, error) {
	d, err := scanDetail(q.QueryRowContext(ctx, detailSelect+` WHERE p.id = ?`+lock, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPerformanceNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListByStage returns the performances on a stage ordered by start time.
// Cancelled performances are included only when includeCancelled is set.
func (r *PerformanceRepo) ListByStage(ctx context.Context, stageID uint64, includeCancelled bool) ([]model.PerformanceDetail, error) {
	return r.list(ctx, `p.stage_id = ?`, stageID, includeCancelled)
}

// ListByArtist returns the performances of an artist across all festivals
// ordered by start time.
func (r *PerformanceRepo) ListByArtist(ctx context.Context, artistID uint64, includeCancelled bool) ([]model.PerformanceDetail, error) {
	return r.list(ctx, `p.artist_id = ?`, artistID, includeCancelled)
}

// ListByFestival returns the performances on any stage of a festival.
func (r *PerformanceRepo) ListByFestival(ctx context.Context, festivalID uint64, includeCancelled bool) ([]model.PerformanceDetail, error) {
	return r.list(ctx, `s.festival_id = ?`, festivalID, includeCancelled)
}

func (r *PerformanceRepo) list(ctx context.Context, cond string, id uint64, includeCancelled bool) ([]model.PerformanceDetail, error) {
	q := detailSelect + ` WHERE ` + cond
	if !includeCancelled {
		q += ` AND p.is_cancelled = 0`
	}
	q += ` ORDER BY p.starts_at ASC, s.name ASC, p.id ASC`
	rows, err := r.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, err
	}
	return collectDetails(rows)
}

// FindOverlappingByStageTx finds the non-cancelled performances on a stage
// whose range overlaps [start, end).  A performance overlaps when it starts
// before the proposed end and ends after the proposed start, so back-to-back
// slots do not match.  excludeID (0 for none) is skipped, which lets an
// update ignore the record being updated.
func (r *PerformanceRepo) FindOverlappingByStageTx(ctx context.Context, tx *sql.Tx, stageID, excludeID uint64, start, end time.Time) ([]model.Performance, error) {
	return findOverlapping(ctx, tx, "stage_id", stageID, excludeID, start, end)
}

// FindOverlappingByArtistTx is FindOverlappingByStageTx scoped to an artist.
func (r *PerformanceRepo) FindOverlappingByArtistTx(ctx context.Context, tx *sql.Tx, artistID, excludeID uint64, start, end time.Time) ([]model.Performance, error) {
	return findOverlapping(ctx, tx, "artist_id", artistID, excludeID, start, end)
}

func findOverlapping(ctx context.Context, tx *sql.Tx, column string, scopeID, excludeID uint64, start, end time.Time) ([]model.Performance, error) {
	q := `SELECT ` + performanceColumns + `
		FROM performances p
		WHERE p.` + column + ` = ? AND p.id <> ? AND p.is_cancelled = 0
		  AND NOT (p.ends_at <= ? OR p.starts_at >= ?)
		ORDER BY p.starts_at ASC, p.id ASC`
	rows, err := tx.QueryContext(ctx, q, scopeID, excludeID, database.FormatTime(start), database.FormatTime(end))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var overlaps []model.Performance
	for rows.Next() {
		p, err := scanPerformance(rows)
		if err != nil {
			return nil, err
		}
		overlaps = append(overlaps, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return overlaps, nil
}

// InsertTx inserts p using the provided transaction and assigns the
// generated ID and timestamps back to it.
func (r *PerformanceRepo) InsertTx(ctx context.Context, tx *sql.Tx, p *model.Performance) error {
	now := time.Now().UTC()
	const q = `INSERT INTO performances (artist_id, stage_id, starts_at, ends_at, description, is_cancelled, created_at, updated_at)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := tx.ExecContext(ctx, q, p.ArtistID, p.StageID,
		database.FormatTime(p.StartsAt), database.FormatTime(p.EndsAt), p.Description, p.IsCancelled,
		database.FormatTime(now), database.FormatTime(now))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	p.ID = uint64(id)
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// UpdateTx overwrites every mutable column of p.  It returns
// ErrPerformanceNotFound when no row has p.ID.
func (r *PerformanceRepo) UpdateTx(ctx context.Context, tx *sql.Tx, p *model.Performance) error {
	now := time.Now().UTC()
	const q = `UPDATE performances
	           SET artist_id = ?, stage_id = ?, starts_at = ?, ends_at = ?, description = ?, is_cancelled = ?, updated_at = ?
	           WHERE id = ?`
	res, err := tx.ExecContext(ctx, q, p.ArtistID, p.StageID,
		database.FormatTime(p.StartsAt), database.FormatTime(p.EndsAt), p.Description, p.IsCancelled,
		database.FormatTime(now), p.ID)
	if err != nil {
		return err
	}
	if err := requireAffected(res); err != nil {
		return err
	}
	p.UpdatedAt = now
	return nil
}

// SetCancelledTx flips the cancellation flag of a performance.
func (r *PerformanceRepo) SetCancelledTx(ctx context.Context, tx *sql.Tx, id uint64, cancelled bool) error {
	res, err := tx.ExecContext(ctx, `UPDATE performances SET is_cancelled = ?, updated_at = ? WHERE id = ?`,
		cancelled, database.FormatTime(time.Now()), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// DeleteTx removes a performance.  It returns ErrPerformanceNotFound when the
// row does not exist.
func (r *PerformanceRepo) DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error {
	res, err := tx.ExecContext(ctx, `DELETE FROM performances WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPerformanceNotFound
	}
	return nil
}
