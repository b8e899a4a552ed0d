package sqlutil

import (
	"database/sql"
	"time"
)

// Helper functions for converting between Go types and sql.Null* types

// ToSqlString converts a Go string to sql.NullString, treating "" as NULL
func ToSqlString(val string) sql.NullString {
	if val == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: val, Valid: true}
}

// ToSqlTime converts a Go time to sql.NullTime, treating the zero time as NULL
func ToSqlTime(val time.Time) sql.NullTime {
	if val.IsZero() {
		return sql.NullTime{Valid: false}
	}
	return sql.NullTime{Time: val, Valid: true}
}
