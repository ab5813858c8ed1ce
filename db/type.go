package db

import (
	"strings"

	"github.com/go-sql-driver/mysql"
)

var ErrDuplicateEntryCode = 1062

func MysqlErrCode(err error) int {
	mysqlErr, ok := err.(*mysql.MySQLError)
	if !ok {
		return 0
	}
	return int(mysqlErr.Number)
}

// IsDuplicateEntryErr reports whether err is a unique-constraint violation.
// Re-inserting an already-committed event after a partial re-scan hits this
// path and is not an error to the caller.
func IsDuplicateEntryErr(err error) bool {
	if err == nil {
		return false
	}
	if MysqlErrCode(err) == ErrDuplicateEntryCode {
		return true
	}
	return strings.Contains(err.Error(), "Duplicate entry") ||
		strings.Contains(err.Error(), "UNIQUE constraint failed")
}
