package repository

import (
	"context"
	"strings"
	"time"

	"github.com/festival-platform/program-scheduler/internal/database"
	"github.com/festival-platform/program-scheduler/internal/model"
)

// LineupQuery defines filters & pagination for a festival lineup.  From and
// To bound the performance start time inclusively; either may be nil.
type LineupQuery struct {
	FestivalID       uint64
	StageID          *uint64
	From             *time.Time
	To               *time.Time
	IncludeCancelled bool
	Page             int // 1-based
	Limit            int
}

// Lineup returns one page of a festival's performances ordered by start
// time, then stage name, then id, together with the total number of
// matching rows.
func (r *PerformanceRepo) Lineup(ctx context.Context, q LineupQuery) ([]model.PerformanceDetail, int64, error) {
	where := []string{"s.festival_id = ?"}
	args := []any{q.FestivalID}

	if q.StageID != nil {
		where = append(where, "p.stage_id = ?")
		args = append(args, *q.StageID)
	}
	if q.From != nil {
		where = append(where, "p.starts_at >= ?")
		args = append(args, database.FormatTime(*q.From))
	}
	if q.To != nil {
		where = append(where, "p.starts_at <= ?")
		args = append(args, database.FormatTime(*q.To))
	}
	if !q.IncludeCancelled {
		where = append(where, "p.is_cancelled = 0")
	}
	cond := strings.Join(where, " AND ")

	var total int64
	countSQL := `SELECT COUNT(*)
		FROM performances p
		JOIN stages s ON s.id = p.stage_id
		WHERE ` + cond
	if err := r.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.PerformanceDetail{}, 0, nil
	}

	limit := q.Limit
	offset := (q.Page - 1) * q.Limit

	dataSQL := detailSelect + `
		WHERE ` + cond + `
		ORDER BY p.starts_at ASC, s.name ASC, p.id ASC
		LIMIT ? OFFSET ?`
	argsData := append(append([]any{}, args...), limit, offset)

	rows, err := r.db.QueryContext(ctx, dataSQL, argsData...)
	if err != nil {
		return nil, 0, err
	}
	out, err := collectDetails(rows)
	if err != nil {
		return nil, 0, err
	}
	return out, total, nil
}
