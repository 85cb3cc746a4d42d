package scheduler

import (
	"fmt"
	"time"
)

// TimeRange is the half-open interval [Start, End).
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// StorageTime returns t in UTC at the millisecond precision timestamps are
// persisted with.  Ranges must be validated on these values.
func StorageTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Millisecond)
}

// ValidateTimeRange fails with ErrInvalidTimeRange unless start < end.
func ValidateTimeRange(start, end time.Time) error {
	if !start.Before(end) {
		return fmt.Errorf("%w: %s is not before %s", ErrInvalidTimeRange,
			start.UTC().Format(time.RFC3339Nano), end.UTC().Format(time.RFC3339Nano))
	}
	return nil
}

// Overlaps reports whether r and o share any instant.  Ranges that merely
// touch, one ending exactly when the other starts, do not overlap.
func (r TimeRange) Overlaps(o TimeRange) bool {
	return r.Start.Before(o.End) && r.End.After(o.Start)
}
