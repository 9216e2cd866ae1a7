package postgres

import (
	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeCheckViolation      = "23514"
	codeInvalidText         = "22P02"
)

func pgCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsUniqueViolation reports a duplicate key error.
func IsUniqueViolation(err error) bool { return pgCode(err) == codeUniqueViolation }

// IsForeignKeyViolation reports a reference to a missing row.
func IsForeignKeyViolation(err error) bool { return pgCode(err) == codeForeignKeyViolation }

// IsCheckViolation reports a failed CHECK constraint, e.g. negative stock.
func IsCheckViolation(err error) bool { return pgCode(err) == codeCheckViolation }

// IsInvalidInput reports malformed input such as a non-UUID id.
func IsInvalidInput(err error) bool { return pgCode(err) == codeInvalidText }

// IsNoRows reports an empty single-row result.
func IsNoRows(err error) bool { return errors.Is(err, pgx.ErrNoRows) }

// IsMissing reports a lookup that matched nothing, counting malformed ids as
// misses so a bad path parameter reads as 404.
func IsMissing(err error) bool { return IsNoRows(err) || IsInvalidInput(err) }
