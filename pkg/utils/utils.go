package utils

import "database/sql"

func ToNullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{
			String: str,
			Valid:  false,
		}
	}
	return sql.NullString{
		String: str,
		Valid:  true,
	}
}

func ToNullInt64(n int64, valid bool) sql.NullInt64 {
	return sql.NullInt64{
		Int64: n,
		Valid: valid,
	}
}

func FromNullString(ns sql.NullString) string {
	if !ns.Valid {
		return ""
	}
	return ns.String
}
