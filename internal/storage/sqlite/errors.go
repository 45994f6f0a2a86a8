package sqlite

import (
	"errors"
	"strings"

	sqlitedrv "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite names the violated column, not the constraint.
const nameColumn = "characters.name"

// isNameConflict reports a violation of the unique name column only; a
// primary key collision is a plain storage error.
func isNameConflict(err error) bool {
	if err == nil || !strings.Contains(err.Error(), nameColumn) {
		return false
	}
	var sqErr *sqlitedrv.Error
	if errors.As(err, &sqErr) {
		return sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func isForeignKeyViolation(err error) bool {
	var sqErr *sqlitedrv.Error
	if errors.As(err, &sqErr) && sqErr.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY {
		return true
	}
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
