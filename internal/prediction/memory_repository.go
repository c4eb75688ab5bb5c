package prediction

import (
	"context"
	"sort"
	"sync"
)

// InMemoryRepository is an in-memory implementation of Repository.
// It is used when no database is configured and in tests.
type InMemoryRepository struct {
	mu          sync.RWMutex
	predictions map[string]*Record
}

// NewInMemoryRepository creates a new in-memory prediction repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		predictions: make(map[string]*Record),
	}
}

// Get retrieves a prediction by ID.
func (r *InMemoryRepository) Get(_ context.Context, id string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.predictions[id]
	if !ok {
		return nil, ErrPredictionNotFound
	}

	cpy := *rec
	return &cpy, nil
}

// Put stores a prediction.
func (r *InMemoryRepository) Put(_ context.Context, rec *Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cpy := *rec
	r.predictions[rec.ID] = &cpy
	return nil
}

// List retrieves a user's predictions, newest first.
func (r *InMemoryRepository) List(_ context.Context, userID string, opts ListOptions) (*ListResult, error) {
	r.mu.RLock()
	var recs []*Record
	for _, rec := range r.predictions {
		if rec.UserID == userID {
			cpy := *rec
			recs = append(recs, &cpy)
		}
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		if !recs[i].CreatedAt.Equal(recs[j].CreatedAt) {
			return recs[i].CreatedAt.After(recs[j].CreatedAt)
		}
		return recs[i].ID > recs[j].ID
	})

	if opts.Cursor != "" {
		for i, rec := range recs {
			if rec.ID == opts.Cursor {
				recs = recs[i+1:]
				break
			}
		}
	}

	limit := listLimit(opts)
	result := &ListResult{Items: recs}
	if len(recs) > limit {
		result.Items = recs[:limit]
		result.NextCursor = recs[limit-1].ID
	}

	return result, nil
}

// Delete deletes a prediction by ID.
func (r *InMemoryRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.predictions, id)
	return nil
}

// Ensure InMemoryRepository implements Repository interface.
var _ Repository = (*InMemoryRepository)(nil)
