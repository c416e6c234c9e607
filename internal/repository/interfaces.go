package repository

import (
	"context"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

// RunRepository stores the history of download runs.
type RunRepository interface {
	// Save inserts or replaces a run together with its outcomes.
	Save(ctx context.Context, run *domain.Run) error

	// Get retrieves a run by ID.
	Get(ctx context.Context, id domain.RunID) (*domain.Run, error)

	// List returns runs newest first.
	List(ctx context.Context, limit, offset int) ([]*domain.Run, error)

	// Count returns the total number of runs.
	Count(ctx context.Context) (int, error)

	// Close releases any underlying resources.
	Close() error
}
