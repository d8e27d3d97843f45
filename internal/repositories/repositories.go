package repositories

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/desertthunder/djx/internal/shared"
)

// scanner is satisfied by both [sql.Row] and [sql.Rows].
type scanner interface {
	Scan(dest ...any) error
}

// expectRows turns a zero-row update into [shared.ErrNotFound].
func expectRows(result sql.Result, what, key string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, key)
	}
	return nil
}

func notFound(err error, what, key string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", shared.ErrNotFound, what, key)
	}
	return fmt.Errorf("failed to scan %s: %w", what, err)
}
