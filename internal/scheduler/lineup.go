package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/festival-platform/program-scheduler/internal/model"
	"github.com/festival-platform/program-scheduler/internal/repository"
)

// DateLayout is the calendar date format accepted by the lineup day filter.
const DateLayout = "2006-01-02"

// FestivalLookup resolves a festival outside of any transaction.
type FestivalLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Festival, error)
}

// StageLookup resolves a stage outside of any transaction.
type StageLookup interface {
	GetByID(ctx context.Context, id uint64) (*model.Stage, error)
}

// LineupReader pages through a festival's performances.
type LineupReader interface {
	Lineup(ctx context.Context, q repository.LineupQuery) ([]model.PerformanceDetail, int64, error)
}

// LineupOptions filter and paginate a lineup.  Page 0 means the first page
// and Limit 0 the configured default.
type LineupOptions struct {
	StageID          *uint64
	Date             string // YYYY-MM-DD, empty for all days
	IncludeCancelled bool
	Page             int
	Limit            int
}

// Lineup is one page of a festival's program.
type Lineup struct {
	Data       []model.PerformanceDetail `json:"data"`
	Total      int64                     `json:"total"`
	Page       int                       `json:"page"`
	Limit      int                       `json:"limit"`
	TotalPages int                       `json:"totalPages"`
	FestivalID uint64                    `json:"festivalId"`
}

// LineupConfig holds the reference timezone and page size bounds.
type LineupConfig struct {
	Location     *time.Location
	DefaultLimit int
	MaxLimit     int
}

// LineupService builds filtered, paginated views of a festival's schedule.
type LineupService struct {
	festivals    FestivalLookup
	stages       StageLookup
	performances LineupReader
	cfg          LineupConfig
	logger       *slog.Logger
}

// NewLineupService wires a LineupService.  Zero config values fall back to
// UTC, a default page size of 50 and a maximum of 200.
func NewLineupService(festivals FestivalLookup, stages StageLookup, performances LineupReader, cfg LineupConfig, logger *slog.Logger) *LineupService {
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.DefaultLimit <= 0 {
		cfg.DefaultLimit = 50
	}
	if cfg.MaxLimit < cfg.DefaultLimit {
		cfg.MaxLimit = max(200, cfg.DefaultLimit)
	}
	return &LineupService{festivals: festivals, stages: stages, performances: performances, cfg: cfg, logger: logger}
}

// GetLineup returns one page of the festival's performances ordered by start
// time with stage name as tie-break.  Cancelled performances are left out
// unless opts.IncludeCancelled is set.
func (s *LineupService) GetLineup(ctx context.Context, festivalID uint64, opts LineupOptions) (*Lineup, error) {
	logger := serviceLogger(ctx, s.logger, "lineup", "get_lineup", "festival_id", festivalID)

	out, err := s.getLineup(ctx, festivalID, opts)
	if err != nil {
		logFailure(logger, "get lineup failed", err)
		return nil, err
	}
	logger.Debug("lineup served", "total", out.Total, "page", out.Page)
	return out, nil
}

func (s *LineupService) getLineup(ctx context.Context, festivalID uint64, opts LineupOptions) (*Lineup, error) {
	page := opts.Page
	if page == 0 {
		page = 1
	}
	if page < 1 {
		return nil, fmt.Errorf("%w: page must be at least 1", ErrInvalidQuery)
	}
	limit := opts.Limit
	switch {
	case limit == 0:
		limit = s.cfg.DefaultLimit
	case limit < 0:
		return nil, fmt.Errorf("%w: limit must be at least 1", ErrInvalidQuery)
	case limit > s.cfg.MaxLimit:
		limit = s.cfg.MaxLimit
	}

	if _, err := s.festivals.GetByID(ctx, festivalID); err != nil {
		return nil, translate(err, festivalID)
	}

	q := repository.LineupQuery{
		FestivalID:       festivalID,
		IncludeCancelled: opts.IncludeCancelled,
		Page:             page,
		Limit:            limit,
	}
	if opts.StageID != nil {
		stage, err := s.stages.GetByID(ctx, *opts.StageID)
		if err != nil {
			return nil, translate(err, *opts.StageID)
		}
		if stage.FestivalID != festivalID {
			return nil, fmt.Errorf("%w: stage %d belongs to festival %d, not %d",
				ErrInvalidReference, stage.ID, stage.FestivalID, festivalID)
		}
		q.StageID = &stage.ID
	}
	if opts.Date != "" {
		from, to, err := DayBounds(opts.Date, s.cfg.Location)
		if err != nil {
			return nil, err
		}
		q.From, q.To = &from, &to
	}

	rows, total, err := s.performances.Lineup(ctx, q)
	if err != nil {
		return nil, err
	}
	return &Lineup{
		Data:       rows,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: TotalPages(total, limit),
		FestivalID: festivalID,
	}, nil
}

// DayBounds returns the first and last millisecond of the calendar day date
// in loc: 00:00:00.000 through 23:59:59.999.
func DayBounds(date string, loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	day, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("%w: date %q is not YYYY-MM-DD", ErrInvalidQuery, date)
	}
	return day, day.AddDate(0, 0, 1).Add(-time.Millisecond), nil
}

// TotalPages is ceil(total/limit), zero for an empty result.
func TotalPages(total int64, limit int) int {
	if total <= 0 || limit <= 0 {
		return 0
	}
	return int((total + int64(limit) - 1) / int64(limit))
}
