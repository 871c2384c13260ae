package waitlist

import (
	"context"
)

// Repository stores signups keyed by email.
type Repository interface {
	// Create inserts s unless the email already exists. It reports whether a
	// row was written; on a duplicate s is left with the stored ID and time.
	Create(ctx context.Context, s *Signup) (bool, error)
	Count(ctx context.Context) (int, error)
}
