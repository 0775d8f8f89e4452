package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/joao-fontenele/storefront-api/internal/apperr"
)

const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
)

// Translate maps storage signals onto the application error taxonomy.
// Errors it does not recognise are returned unchanged.
func Translate(err error, entity string) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, sql.ErrNoRows) {
		return apperr.Wrap(apperr.KindNotFound, err, entity+" not found")
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code {
		case codeUniqueViolation:
			return apperr.Wrap(apperr.KindConflict, err, entity+" already exists")
		case codeForeignKeyViolation:
			return apperr.Wrap(apperr.KindConflict, err, entity+" is referenced by other records")
		}
	}

	return err
}

func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == codeUniqueViolation
}

// WithTx runs fn inside a transaction, committing only when fn returns nil.
func WithTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(tx); err != nil {
		return err
	}

	return tx.Commit()
}
