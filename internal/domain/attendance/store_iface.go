package attendance

import "context"

// StoreAPI persists attendance records. Create must reject a second record
// for the same staff member and day with ErrAlreadyCheckedIn. CheckOut writes
// only while the stored record has no check-out time and reports
// ErrAlreadyCheckedOut otherwise, so concurrent check-outs cannot overwrite
// each other.
type StoreAPI interface {
	Get(ctx context.Context, id string) (Record, error)
	ListForDay(ctx context.Context, day string) ([]Record, error)
	ListForStaff(ctx context.Context, staffID, from, to string) ([]Record, error)
	ListRange(ctx context.Context, from, to string) ([]Record, error)
	Create(ctx context.Context, rec Record) error
	CheckOut(ctx context.Context, rec Record) error
}
