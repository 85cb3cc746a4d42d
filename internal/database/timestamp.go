package database

import (
	"database/sql/driver"
	"fmt"
	"time"
)

// TimeLayout is the storage form of every timestamp column.  The fixed width
// keeps lexical and chronological order identical in SQLite, and MySQL
// DATETIME(3) accepts it verbatim.
const TimeLayout = "2006-01-02 15:04:05.000"

// FormatTime renders t in UTC using TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

// Time scans a timestamp column regardless of whether the driver hands back
// a time.Time (MySQL with parseTime) or text (SQLite).
type Time struct {
	time.Time
}

func (t *Time) Scan(src any) error {
	switch v := src.(type) {
	case time.Time:
		t.Time = v.UTC()
		return nil
	case string:
		return t.parse(v)
	case []byte:
		return t.parse(string(v))
	case nil:
		t.Time = time.Time{}
		return nil
	default:
		return fmt.Errorf("database: cannot scan %T into Time", src)
	}
}

func (t *Time) parse(s string) error {
	for _, layout := range []string{TimeLayout, "2006-01-02 15:04:05", time.RFC3339Nano} {
		if parsed, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t.Time = parsed.UTC()
			return nil
		}
	}
	return fmt.Errorf("database: unparseable timestamp %q", s)
}

func (t Time) Value() (driver.Value, error) {
	return FormatTime(t.Time), nil
}
