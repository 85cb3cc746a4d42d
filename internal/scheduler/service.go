package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/festival-platform/program-scheduler/internal/model"
	"github.com/festival-platform/program-scheduler/internal/queue"
	"github.com/festival-platform/program-scheduler/internal/repository"
)

const serviceName = "program"

// FestivalReader resolves festivals inside a write transaction.
type FestivalReader interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Festival, error)
}

// StageReader resolves and locks stages inside a write transaction.
type StageReader interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Stage, error)
	LockTx(ctx context.Context, tx *sql.Tx, ids ...uint64) error
}

// ArtistReader resolves and locks artists inside a write transaction.
type ArtistReader interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Artist, error)
	LockTx(ctx context.Context, tx *sql.Tx, ids ...uint64) error
}

// PerformanceStore captures the persistence interactions needed by the
// service.
type PerformanceStore interface {
	OverlapFinder
	GetByIDTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.Performance, error)
	GetDetail(ctx context.Context, id uint64) (*model.PerformanceDetail, error)
	GetDetailTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.PerformanceDetail, error)
	GetDetailForUpdateTx(ctx context.Context, tx *sql.Tx, id uint64) (*model.PerformanceDetail, error)
	InsertTx(ctx context.Context, tx *sql.Tx, p *model.Performance) error
	UpdateTx(ctx context.Context, tx *sql.Tx, p *model.Performance) error
	SetCancelledTx(ctx context.Context, tx *sql.Tx, id uint64, cancelled bool) error
	DeleteTx(ctx context.Context, tx *sql.Tx, id uint64) error
}

// Observer is told about every committed program change.  Errors are
// logged and never fail the write that produced the event.
type Observer interface {
	PerformanceChanged(ctx context.Context, ev queue.PerformanceEvent) error
}

// Deps wires a Service.
type Deps struct {
	DB           *sql.DB
	Festivals    FestivalReader
	Stages       StageReader
	Artists      ArtistReader
	Performances PerformanceStore
	Observers    []Observer
	Logger       *slog.Logger
	Now          func() time.Time
}

// Service schedules performances.  Every write validates and commits inside
// one transaction: the touched stage and artist rows are locked first (the
// database write lock on SQLite), so two writers targeting the same stage or
// artist cannot both pass the overlap scan.
type Service struct {
	db           *sql.DB
	festivals    FestivalReader
	stages       StageReader
	artists      ArtistReader
	performances PerformanceStore
	detector     *Detector
	observers    []Observer
	logger       *slog.Logger
	now          func() time.Time
}

// NewService wires dependencies for program operations.
func NewService(d Deps) *Service {
	now := d.Now
	if now == nil {
		now = time.Now
	}
	return &Service{
		db:           d.DB,
		festivals:    d.Festivals,
		stages:       d.Stages,
		artists:      d.Artists,
		performances: d.Performances,
		detector:     NewDetector(d.Performances),
		observers:    d.Observers,
		logger:       d.Logger,
		now:          now,
	}
}

// CreateInput describes a new performance.
type CreateInput struct {
	FestivalID  uint64
	ArtistID    uint64
	StageID     uint64
	StartsAt    time.Time
	EndsAt      time.Time
	Description *string
}

// Changes is a partial update.  Nil fields keep their current value; a
// Description pointing at an empty string clears the description.
type Changes struct {
	ArtistID    *uint64
	StageID     *uint64
	StartsAt    *time.Time
	EndsAt      *time.Time
	Description *string
	IsCancelled *bool
}

// CreatePerformance books an artist on a stage of a festival.  Checks run in
// order: festival, artist and stage existence, stage ownership, time range,
// stage overlap, artist overlap.  Times are cut to storage precision before
// any check.
func (s *Service) CreatePerformance(ctx context.Context, in CreateInput) (*model.PerformanceDetail, error) {
	in.StartsAt = StorageTime(in.StartsAt)
	in.EndsAt = StorageTime(in.EndsAt)
	logger := serviceLogger(ctx, s.logger, serviceName, "create_performance",
		"festival_id", in.FestivalID, "stage_id", in.StageID, "artist_id", in.ArtistID)

	var out *model.PerformanceDetail
	stageID := in.StageID
	err := s.write(ctx, logger, &stageID, func(tx *sql.Tx) error {
		if err := s.lock(ctx, tx, []uint64{in.StageID}, []uint64{in.ArtistID}); err != nil {
			return err
		}
		if _, err := s.festivals.GetByIDTx(ctx, tx, in.FestivalID); err != nil {
			return translate(err, in.FestivalID)
		}
		if _, err := s.artists.GetByIDTx(ctx, tx, in.ArtistID); err != nil {
			return translate(err, in.ArtistID)
		}
		stage, err := s.stages.GetByIDTx(ctx, tx, in.StageID)
		if err != nil {
			return translate(err, in.StageID)
		}
		if stage.FestivalID != in.FestivalID {
			return fmt.Errorf("%w: stage %d belongs to festival %d, not %d",
				ErrInvalidReference, stage.ID, stage.FestivalID, in.FestivalID)
		}
		if err := ValidateTimeRange(in.StartsAt, in.EndsAt); err != nil {
			return err
		}
		if err := s.detector.Check(ctx, tx, Candidate{
			StageID:  in.StageID,
			ArtistID: in.ArtistID,
			Range:    TimeRange{Start: in.StartsAt, End: in.EndsAt},
		}); err != nil {
			return err
		}

		p := model.Performance{
			ArtistID:    in.ArtistID,
			StageID:     in.StageID,
			StartsAt:    in.StartsAt,
			EndsAt:      in.EndsAt,
			Description: normalizeDescription(in.Description),
		}
		if err := s.performances.InsertTx(ctx, tx, &p); err != nil {
			return err
		}
		out, err = s.performances.GetDetailTx(ctx, tx, p.ID)
		return err
	})
	if err != nil {
		logFailure(logger, "create performance failed", err)
		return nil, err
	}

	logger.Info("performance created", "performance_id", out.ID)
	s.notify(ctx, logger, queue.PerformanceCreated, out)
	return out, nil
}

// UpdatePerformance merges changes over the stored performance and re-runs
// every check against the effective state.  The performance never conflicts
// with itself, and a performance that ends up cancelled skips the overlap
// scans.  A new stage must belong to the festival of the current one.
func (s *Service) UpdatePerformance(ctx context.Context, id uint64, changes Changes) (*model.PerformanceDetail, error) {
	logger := serviceLogger(ctx, s.logger, serviceName, "update_performance", "performance_id", id)

	var out *model.PerformanceDetail
	var stageID uint64
	err := s.write(ctx, logger, &stageID, func(tx *sql.Tx) error {
		cur, err := s.performances.GetByIDTx(ctx, tx, id)
		if err != nil {
			return translate(err, id)
		}
		next := applyChanges(*cur, changes)
		stageID = next.StageID

		if err := s.lock(ctx, tx, []uint64{cur.StageID, next.StageID}, []uint64{cur.ArtistID, next.ArtistID}); err != nil {
			return err
		}
		if next.ArtistID != cur.ArtistID {
			if _, err := s.artists.GetByIDTx(ctx, tx, next.ArtistID); err != nil {
				return translate(err, next.ArtistID)
			}
		}
		if next.StageID != cur.StageID {
			stage, err := s.stages.GetByIDTx(ctx, tx, next.StageID)
			if err != nil {
				return translate(err, next.StageID)
			}
			old, err := s.stages.GetByIDTx(ctx, tx, cur.StageID)
			if err != nil {
				return translate(err, cur.StageID)
			}
			if stage.FestivalID != old.FestivalID {
				return fmt.Errorf("%w: stage %d belongs to festival %d, not %d",
					ErrInvalidReference, stage.ID, stage.FestivalID, old.FestivalID)
			}
		}
		if err := ValidateTimeRange(next.StartsAt, next.EndsAt); err != nil {
			return err
		}
		if !next.IsCancelled {
			if err := s.detector.Check(ctx, tx, Candidate{
				StageID:   next.StageID,
				ArtistID:  next.ArtistID,
				ExcludeID: id,
				Range:     TimeRange{Start: next.StartsAt, End: next.EndsAt},
			}); err != nil {
				return err
			}
		}

		if err := s.performances.UpdateTx(ctx, tx, &next); err != nil {
			return translate(err, id)
		}
		out, err = s.performances.GetDetailTx(ctx, tx, id)
		return err
	})
	if err != nil {
		logFailure(logger, "update performance failed", err)
		return nil, err
	}

	logger.Info("performance updated", "stage_id", out.StageID, "artist_id", out.ArtistID, "is_cancelled", out.IsCancelled)
	s.notify(ctx, logger, queue.PerformanceUpdated, out)
	return out, nil
}

// CancelPerformance marks a performance cancelled.  Cancelling an already
// cancelled performance succeeds and leaves it unchanged.
func (s *Service) CancelPerformance(ctx context.Context, id uint64) (*model.PerformanceDetail, error) {
	logger := serviceLogger(ctx, s.logger, serviceName, "cancel_performance", "performance_id", id)

	var (
		out     *model.PerformanceDetail
		changed bool
		stageID uint64
	)
	err := s.write(ctx, logger, &stageID, func(tx *sql.Tx) error {
		cur, err := s.performances.GetByIDTx(ctx, tx, id)
		if err != nil {
			return translate(err, id)
		}
		stageID = cur.StageID
		changed = !cur.IsCancelled
		if changed {
			if err := s.performances.SetCancelledTx(ctx, tx, id, true); err != nil {
				return translate(err, id)
			}
		}
		out, err = s.performances.GetDetailTx(ctx, tx, id)
		return err
	})
	if err != nil {
		logFailure(logger, "cancel performance failed", err)
		return nil, err
	}

	if !changed {
		logger.Debug("performance already cancelled")
		return out, nil
	}
	logger.Info("performance cancelled")
	s.notify(ctx, logger, queue.PerformanceCancelled, out)
	return out, nil
}

// DeletePerformance removes a performance record entirely.
func (s *Service) DeletePerformance(ctx context.Context, id uint64) error {
	logger := serviceLogger(ctx, s.logger, serviceName, "delete_performance", "performance_id", id)

	var (
		gone    *model.PerformanceDetail
		stageID uint64
	)
	err := s.write(ctx, logger, &stageID, func(tx *sql.Tx) error {
		d, err := s.performances.GetDetailForUpdateTx(ctx, tx, id)
		if err != nil {
			return translate(err, id)
		}
		stageID = d.StageID
		if err := s.performances.DeleteTx(ctx, tx, id); err != nil {
			return translate(err, id)
		}
		gone = d
		return nil
	})
	if err != nil {
		logFailure(logger, "delete performance failed", err)
		return err
	}

	logger.Info("performance deleted")
	s.notify(ctx, logger, queue.PerformanceDeleted, gone)
	return nil
}

// GetPerformance returns a performance with its artist and stage summaries.
func (s *Service) GetPerformance(ctx context.Context, id uint64) (*model.PerformanceDetail, error) {
	d, err := s.performances.GetDetail(ctx, id)
	if err != nil {
		return nil, translate(err, id)
	}
	return d, nil
}

// write runs fn in a transaction.  A transient concurrency failure (deadlock,
// lock wait timeout, busy database) re-runs the whole validate-then-write
// sequence once; a second failure is reported as a stage conflict.
func (s *Service) write(ctx context.Context, logger *slog.Logger, stageID *uint64, fn func(tx *sql.Tx) error) error {
	err := repository.WithTx(ctx, s.db, fn)
	if !repository.IsRetryable(err) {
		return err
	}
	logger.Warn("transaction aborted by concurrent write; retrying", "error", err)
	err = repository.WithTx(ctx, s.db, fn)
	if repository.IsRetryable(err) {
		return &ConflictError{Scope: ScopeStage, ScopeID: *stageID, cause: err}
	}
	return err
}

// lock takes the stage row locks before the artist row locks, each set in
// ascending id order, so concurrent writers always acquire them in the same
// sequence.
func (s *Service) lock(ctx context.Context, tx *sql.Tx, stageIDs, artistIDs []uint64) error {
	if err := s.stages.LockTx(ctx, tx, stageIDs...); err != nil {
		return err
	}
	return s.artists.LockTx(ctx, tx, artistIDs...)
}

func (s *Service) notify(ctx context.Context, logger *slog.Logger, typ queue.PerformanceEventType, d *model.PerformanceDetail) {
	if len(s.observers) == 0 || d == nil {
		return
	}
	ev := queue.PerformanceEvent{
		Type:          typ,
		PerformanceID: d.ID,
		FestivalID:    d.Stage.FestivalID,
		StageID:       d.StageID,
		StageName:     d.Stage.Name,
		ArtistID:      d.ArtistID,
		ArtistName:    d.Artist.Name,
		StartsAt:      queue.FormatTime(d.StartsAt),
		EndsAt:        queue.FormatTime(d.EndsAt),
		IsCancelled:   d.IsCancelled,
		OccurredAt:    queue.FormatTime(s.now()),
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	for _, o := range s.observers {
		if err := o.PerformanceChanged(ctx, ev); err != nil {
			logger.Warn("program event not delivered", "type", typ, "error", err)
		}
	}
}

func applyChanges(p model.Performance, c Changes) model.Performance {
	if c.ArtistID != nil {
		p.ArtistID = *c.ArtistID
	}
	if c.StageID != nil {
		p.StageID = *c.StageID
	}
	if c.StartsAt != nil {
		p.StartsAt = StorageTime(*c.StartsAt)
	}
	if c.EndsAt != nil {
		p.EndsAt = StorageTime(*c.EndsAt)
	}
	if c.Description != nil {
		p.Description = normalizeDescription(c.Description)
	}
	if c.IsCancelled != nil {
		p.IsCancelled = *c.IsCancelled
	}
	return p
}

func normalizeDescription(d *string) *string {
	if d == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*d)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
