package database

import (
	"errors"

	"github.com/lib/pq"
)

const (
	uniqueViolation     = "23505"
	foreignKeyViolation = "23503"
)

// UniqueViolation reports whether err is a unique-constraint violation and
// returns the driver error so callers can surface the conflicting detail.
func UniqueViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return pqErr, true
	}
	return nil, false
}

// ForeignKeyViolation reports whether err is a foreign-key violation,
// meaning a referenced row does not exist.
func ForeignKeyViolation(err error) (*pq.Error, bool) {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == foreignKeyViolation {
		return pqErr, true
	}
	return nil, false
}

// ConflictDetail extracts the most specific description the driver offers
// for a constraint violation, e.g. "Key (nickname)=(alice) already exists.".
func ConflictDetail(pqErr *pq.Error) string {
	if pqErr.Detail != "" {
		return pqErr.Detail
	}
	return pqErr.Message
}
