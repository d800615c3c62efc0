package history

import "context"

// ListOptions contains options for listing records.
type ListOptions struct {
	// Limit caps the number of records; zero returns all of them.
	Limit int
}

// Repository defines the interface for history persistence.
type Repository interface {
	// Create stores a new record.
	Create(ctx context.Context, r *Record) error

	// List returns a user's records, newest first.
	List(ctx context.Context, userID string, opts ListOptions) ([]*Record, error)
}
