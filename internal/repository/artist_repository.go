package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/festival-platform/program-scheduler/internal/database"
	"github.com/festival-platform/program-scheduler/internal/model"
)

// ArtistRepo manages persistence for artists.  Profile links are stored as a
// JSON object in a text column.
type ArtistRepo struct {
	db      *sql.DB
	dialect database.Dialect
}

// NewArtistRepo constructs an ArtistRepo.
func NewArtistRepo(db *sql.DB, dialect database.Dialect) *ArtistRepo {
	return &ArtistRepo{db: db, dialect: dialect}
}

const artistColumns = `id, name, genre, bio, image_url, links, created_at`

func scanArtist(row interface{ Scan(...any) error }) (model.Artist, error) {
	var (
		a                      model.Artist
		genre, bio, image, lnk sql.NullString
		created                database.Time
	)
	if err := row.Scan(&a.ID, &a.Name, &genre, &bio, &image, &lnk, &created); err != nil {
		return model.Artist{}, err
	}
	if genre.Valid {
		a.Genre = &genre.String
	}
	if bio.Valid {
		a.Bio = &bio.String
	}
	if image.Valid {
		a.ImageURL = &image.String
	}
	if lnk.Valid && lnk.String != "" {
		if err := json.Unmarshal([]byte(lnk.String), &a.Links); err != nil {
			return model.Artist{}, fmt.Errorf("decode links of artist %d: %w", a.ID, err)
		}
	}
	a.CreatedAt = created.Time
	return a, nil
}

// Create inserts a new artist and assigns the generated ID back to a.
func (r *ArtistRepo) Create(ctx context.Context, a *model.Artist) error {
	var links *string
	if len(a.Links) > 0 {
		bs, err := json.Marshal(a.Links)
		if err != nil {
			return err
		}
		s := string(bs)
		links = &s
	}
	a.CreatedAt = time.Now().UTC()
	const q = `INSERT INTO artists (name, genre, bio, image_url, links, created_at) VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, a.Name, a.Genre, a.Bio, a.ImageURL, links, database.FormatTime(a.CreatedAt))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// GetByID retrieves an artist by its ID.  It returns ErrArtistNotFound if
// there is no matching row.
func (r *ArtistRepo) GetByID(ctx context.Context, id uint64) (*model.Artist, error) {
	return getArtist(ctx, r.db, id)
}

// GetByIDTx is GetByID within the caller's transaction.
func (r *ArtistRepo) GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Artist, error) {
	return getArtist(ctx, tx, id)
}

func getArtist(ctx context.Context, q dbtx, id uint64) (*model.Artist, error) {
	a, err := scanArtist(q.QueryRowContext(ctx, `SELECT `+artistColumns+` FROM artists WHERE id = ?`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrArtistNotFound
		}
		return nil, err
	}
	return &a, nil
}

// List returns all artists ordered by name.
func (r *ArtistRepo) List(ctx context.Context) ([]model.Artist, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+artistColumns+` FROM artists ORDER BY name ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []model.Artist{}
	for rows.Next() {
		a, err := scanArtist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// LockTx row-locks the given artists for the rest of the transaction.
func (r *ArtistRepo) LockTx(ctx context.Context, tx *sql.Tx, ids ...uint64) error {
	return lockRows(ctx, tx, "artists", r.dialect.LockClause(), ids)
}

// Delete removes an artist.  It returns ErrArtistNotFound for an unknown id
// and ErrConflict while any performance still references the artist.
func (r *ArtistRepo) Delete(ctx context.Context, id uint64) error {
	return WithTx(ctx, r.db, func(tx *sql.Tx) error {
		if err := r.LockTx(ctx, tx, id); err != nil {
			return err
		}
		if _, err := getArtist(ctx, tx, id); err != nil {
			return err
		}
		var refs int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM performances WHERE artist_id = ?`, id).Scan(&refs); err != nil {
			return err
		}
		if refs > 0 {
			return ErrConflict
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM artists WHERE id = ?`, id)
		return err
	})
}
