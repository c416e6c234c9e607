package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/iconidentify/sheetgrab/internal/domain"
)

// InMemoryRunRepository implements RunRepository using in-memory storage.
type InMemoryRunRepository struct {
	mu   sync.RWMutex
	runs map[domain.RunID]*domain.Run
}

// NewInMemoryRunRepository creates a new in-memory run repository.
func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{
		runs: make(map[domain.RunID]*domain.Run),
	}
}

// Save stores a copy of the run.
func (r *InMemoryRunRepository) Save(ctx context.Context, run *domain.Run) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.runs[run.ID] = run.Clone()
	return nil
}

// Get retrieves a run by ID.
func (r *InMemoryRunRepository) Get(ctx context.Context, id domain.RunID) (*domain.Run, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, domain.ErrRunNotFound
	}
	return run.Clone(), nil
}

// List returns runs newest first.
func (r *InMemoryRunRepository) List(ctx context.Context, limit, offset int) ([]*domain.Run, error) {
	r.mu.RLock()
	all := make([]*domain.Run, 0, len(r.runs))
	for _, run := range r.runs {
		all = append(all, run.Clone())
	}
	r.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool {
		if all[i].StartedAt.Equal(all[j].StartedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].StartedAt.After(all[j].StartedAt)
	})

	return paginate(all, limit, offset), nil
}

// Count returns the total number of runs.
func (r *InMemoryRunRepository) Count(ctx context.Context) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.runs), nil
}

// Close is a no-op.
func (r *InMemoryRunRepository) Close() error {
	return nil
}

// Clear removes all runs (useful for testing).
func (r *InMemoryRunRepository) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs = make(map[domain.RunID]*domain.Run)
}

func paginate(runs []*domain.Run, limit, offset int) []*domain.Run {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(runs) {
		return []*domain.Run{}
	}
	runs = runs[offset:]
	if limit > 0 && limit < len(runs) {
		runs = runs[:limit]
	}
	return runs
}
