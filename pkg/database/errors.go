package database

import (
	"errors"

	"github.com/lib/pq"
)

// Postgres error codes the services react to
const (
	CodeInvalidText         = "22P02"
	CodeForeignKeyViolation = "23503"
	CodeUniqueViolation     = "23505"
)

// ErrorCode returns the Postgres SQLSTATE carried by err, or "" when err did not come from Postgres.
func ErrorCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

// IsInvalidInput reports whether Postgres rejected a parameter, such as a malformed uuid.
func IsInvalidInput(err error) bool {
	return ErrorCode(err) == CodeInvalidText
}
