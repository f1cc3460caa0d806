package db

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Sentinel errors callers match with errors.Is after WrapError.
var (
	ErrNotFound       = errors.New("record not found")
	ErrDuplicateKey   = errors.New("duplicate key violation")
	ErrCheckViolation = errors.New("check constraint violation")
)

// SQLSTATE codes the fetch log can raise.
var constraintErrors = map[string]error{
	"23505": ErrDuplicateKey,
	"23514": ErrCheckViolation,
}

// WrapError prefixes err with op and translates pgx/Postgres failures into the
// package sentinels. The driver error stays out of the chain for constraint
// violations so callers only see the sentinel and the constraint name.
func WrapError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return fmt.Errorf("%s: %w", op, err)
	}
	if sentinel, ok := constraintErrors[pgErr.Code]; ok {
		return fmt.Errorf("%s: %w on %q", op, sentinel, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: postgres %s: %w", op, pgErr.Code, err)
}

func IsNotFound(err error) bool { return errors.Is(err, ErrNotFound) }

func IsDuplicateKey(err error) bool { return errors.Is(err, ErrDuplicateKey) }

func IsCheckViolation(err error) bool { return errors.Is(err, ErrCheckViolation) }
