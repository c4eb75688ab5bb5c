package prediction

import "context"

// DefaultListLimit is the page size used when none is given.
const DefaultListLimit = 50

// ListOptions contains options for listing predictions.
type ListOptions struct {
	Limit  int
	Cursor string // ID of the last item of the previous page
}

// ListResult contains the results of listing predictions.
type ListResult struct {
	Items      []*Record
	NextCursor string
}

// Repository defines the interface for prediction persistence. Records are
// treated as opaque once stored.
type Repository interface {
	// Get retrieves a prediction by ID.
	Get(ctx context.Context, id string) (*Record, error)

	// Put stores a prediction under its ID, replacing any previous value.
	Put(ctx context.Context, rec *Record) error

	// List retrieves a user's predictions, newest first.
	List(ctx context.Context, userID string, opts ListOptions) (*ListResult, error)

	// Delete deletes a prediction by ID. Deleting a missing ID is not an error.
	Delete(ctx context.Context, id string) error
}

func listLimit(opts ListOptions) int {
	if opts.Limit <= 0 {
		return DefaultListLimit
	}
	return opts.Limit
}
