// Package storeerr translates db errors into domain errors for the repositories.
package storeerr

import (
	"context"
	"errors"
	"fmt"

	"github.com/kailas-cloud/pastq/internal/db"
	"github.com/kailas-cloud/pastq/internal/domain"
)

// Map wraps err with the matching domain sentinel, keeping the cause in the chain.
// op names the repository operation for TimeoutError.
func Map(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, db.ErrInvalidCollectionName):
		return fmt.Errorf("%w: %w", domain.ErrInvalidArgument, err)
	case errors.Is(err, db.ErrCollectionNotFound):
		return fmt.Errorf("%w: %w", domain.ErrCollectionNotFound, err)
	case errors.Is(err, context.DeadlineExceeded):
		return &domain.TimeoutError{Op: op, Err: err}
	case errors.Is(err, db.ErrConnection):
		return fmt.Errorf("%w: %w", domain.ErrStoreConnection, err)
	default:
		return err
	}
}
