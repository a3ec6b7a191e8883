package attendance

import (
	"context"
	"errors"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const attendanceCollection = "attendance"

// FirestoreStore keys documents by staff and day so the document store itself
// enforces one record per staff member per day.
type FirestoreStore struct {
	Client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{Client: client}
}

func dayKey(staffID, day string) string {
	return staffID + "_" + day
}

func (s *FirestoreStore) Get(ctx context.Context, id string) (Record, error) {
	recs, err := s.query(ctx, s.Client.Collection(attendanceCollection).Where("id", "==", id).Limit(1))
	if err != nil {
		return Record{}, err
	}
	if len(recs) == 0 {
		return Record{}, ErrRecordNotFound
	}
	return recs[0], nil
}

func (s *FirestoreStore) ListForDay(ctx context.Context, day string) ([]Record, error) {
	return s.query(ctx, s.Client.Collection(attendanceCollection).Where("date", "==", day))
}

func (s *FirestoreStore) ListForStaff(ctx context.Context, staffID, from, to string) ([]Record, error) {
	return s.query(ctx, s.Client.Collection(attendanceCollection).
		Where("staffId", "==", staffID).
		Where("date", ">=", from).
		Where("date", "<=", to).
		OrderBy("date", firestore.Asc))
}

func (s *FirestoreStore) ListRange(ctx context.Context, from, to string) ([]Record, error) {
	return s.query(ctx, s.Client.Collection(attendanceCollection).
		Where("date", ">=", from).
		Where("date", "<=", to).
		OrderBy("date", firestore.Asc))
}

func (s *FirestoreStore) Create(ctx context.Context, rec Record) error {
	_, err := s.Client.Collection(attendanceCollection).Doc(dayKey(rec.StaffID, rec.Date)).Create(ctx, rec)
	if status.Code(err) == codes.AlreadyExists {
		return ErrAlreadyCheckedIn
	}
	return err
}

// CheckOut re-reads the document inside a transaction; Firestore retries the
// transaction when another writer commits first.
func (s *FirestoreStore) CheckOut(ctx context.Context, rec Record) error {
	ref := s.Client.Collection(attendanceCollection).Doc(dayKey(rec.StaffID, rec.Date))
	return s.Client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(ref)
		if status.Code(err) == codes.NotFound {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		var stored Record
		if err := doc.DataTo(&stored); err != nil {
			return err
		}
		if stored.ID != rec.ID {
			return ErrRecordNotFound
		}
		if stored.CheckedOut() {
			return ErrAlreadyCheckedOut
		}
		return tx.Set(ref, rec)
	})
}

func (s *FirestoreStore) query(ctx context.Context, q firestore.Query) ([]Record, error) {
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []Record
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		var rec Record
		if err := doc.DataTo(&rec); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, nil
}
