package common

import (
	"errors"
	"net/http"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound       = errors.New("requested resource not found")
	ErrUnauthorized   = errors.New("not authorized")
	ErrForbidden      = errors.New("forbidden access")
	ErrBadCredentials = errors.New("invalid email or password")
	ErrConflict       = errors.New("resource conflict") // e.g., email already registered
	ErrValidation     = errors.New("validation failed")
	ErrUpstream       = errors.New("identity provider unavailable")
	ErrInternalServer = errors.New("internal server error")
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgInvalidTextRepr     = "22P02" // malformed uuid in a path parameter
)

// HTTPStatusFromError maps domain errors to HTTP status codes.
func HTTPStatusFromError(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, ErrValidation),
		errors.Is(err, ErrBadCredentials),
		errors.Is(err, ErrConflict),
		errors.Is(err, ErrUpstream):
		return http.StatusBadRequest
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return http.StatusBadRequest
		case pgForeignKeyViolation, pgInvalidTextRepr:
			return http.StatusNotFound
		}
	}

	return http.StatusInternalServerError
}

// IsUniqueViolation reports whether err carries a Postgres unique-constraint failure.
func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

// IsForeignKeyViolation reports whether err carries a Postgres foreign-key failure.
func IsForeignKeyViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgForeignKeyViolation
}

// IsInvalidID reports whether Postgres rejected an identifier as malformed.
func IsInvalidID(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgInvalidTextRepr
}
