// Package repository defines error types that are reused across multiple
// repositories. These sentinel values allow higher layers such as the
// scheduler and the handlers to distinguish between different failure
// scenarios. ErrConflict signals that an operation cannot proceed due to
// existing dependent records (e.g. deleting a stage that still has
// performances) and ErrDuplicate that a unique key is already taken.
package repository

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"modernc.org/sqlite"
)

var (
	ErrFestivalNotFound    = errors.New("festival not found")
	ErrStageNotFound       = errors.New("stage not found")
	ErrArtistNotFound      = errors.New("artist not found")
	ErrPerformanceNotFound = errors.New("performance not found")
)

// ErrConflict is returned when a delete cannot be performed because other
// records still reference the row. Handlers should translate this into an
// HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrDuplicate is returned when an insert violates a unique key, such as a
// second stage with the same name in one festival.
var ErrDuplicate = errors.New("duplicate")

// MySQL server error numbers.
const (
	mysqlDuplicateEntry  = 1062
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// SQLite primary result codes.
const (
	sqliteBusy       = 5
	sqliteLocked     = 6
	sqliteConstraint = 19
)

// IsRetryable reports whether err is a transient concurrency failure after
// which the whole transaction may be re-run: a MySQL deadlock or lock wait
// timeout, or a SQLite busy/locked database.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		code := se.Code() & 0xff
		return code == sqliteBusy || code == sqliteLocked
	}
	return false
}

// isDuplicate reports whether err is a unique key violation.
func isDuplicate(err error) bool {
	var me *mysql.MySQLError
	if errors.As(err, &me) {
		return me.Number == mysqlDuplicateEntry
	}
	var se *sqlite.Error
	if errors.As(err, &se) {
		return se.Code()&0xff == sqliteConstraint && strings.Contains(se.Error(), "UNIQUE")
	}
	return false
}
