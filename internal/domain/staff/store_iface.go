package staff

import "context"

type StoreAPI interface {
	Get(ctx context.Context, id string) (Profile, error)
	GetByUserID(ctx context.Context, userID string) (Profile, error)
	List(ctx context.Context, activeOnly bool) ([]Profile, error)
	Upsert(ctx context.Context, p Profile) error
}
