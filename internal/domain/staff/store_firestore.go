package staff

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const staffCollection = "staff"

type FirestoreStore struct {
	Client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{Client: client}
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (Profile, error) {
	doc, err := s.Client.Collection(staffCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return Profile{}, ErrStaffNotFound
	}
	if err != nil {
		return Profile{}, err
	}
	var p Profile
	if err := doc.DataTo(&p); err != nil {
		return Profile{}, err
	}
	p.ID = doc.Ref.ID
	return p, nil
}

func (s *FirestoreStore) GetByUserID(ctx context.Context, userID string) (Profile, error) {
	out, err := s.query(ctx, s.Client.Collection(staffCollection).Where("userId", "==", userID).Limit(1))
	if err != nil {
		return Profile{}, err
	}
	if len(out) == 0 {
		return Profile{}, ErrStaffNotFound
	}
	return out[0], nil
}

func (s *FirestoreStore) List(ctx context.Context, activeOnly bool) ([]Profile, error) {
	q := s.Client.Collection(staffCollection).OrderBy("name", firestore.Asc)
	if activeOnly {
		q = s.Client.Collection(staffCollection).Where("active", "==", true).OrderBy("name", firestore.Asc)
	}
	return s.query(ctx, q)
}

func (s *FirestoreStore) Upsert(ctx context.Context, p Profile) error {
	_, err := s.Client.Collection(staffCollection).Doc(p.ID).Set(ctx, p)
	return err
}

func (s *FirestoreStore) query(ctx context.Context, q firestore.Query) ([]Profile, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []Profile
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var p Profile
		if err := doc.DataTo(&p); err != nil {
			return nil, err
		}
		p.ID = doc.Ref.ID
		out = append(out, p)
	}
	return out, nil
}
