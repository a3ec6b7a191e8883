package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/shopspring/decimal"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const (
	expensesCollection = "expenses"
	advancesCollection = "advances"
)

// Amounts are stored as decimal strings so no float rounding happens in the
// document store.
type expenseDoc struct {
	StaffID   string    `firestore:"staffId"`
	Amount    string    `firestore:"amount"`
	Reason    string    `firestore:"reason"`
	Status    string    `firestore:"status"`
	IsDeleted bool      `firestore:"isDeleted"`
	DecidedBy string    `firestore:"decidedBy"`
	CreatedAt time.Time `firestore:"createdAt"`
	UpdatedAt time.Time `firestore:"updatedAt"`
}

type advanceDoc struct {
	StaffID   string    `firestore:"staffId"`
	Amount    string    `firestore:"amount"`
	Note      string    `firestore:"note"`
	Date      time.Time `firestore:"date"`
	GivenBy   string    `firestore:"givenBy"`
	Type      string    `firestore:"type"`
	IsDeleted bool      `firestore:"isDeleted"`
	CreatedAt time.Time `firestore:"createdAt"`
}

type FirestoreStore struct {
	Client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{Client: client}
}

func (s *FirestoreStore) ListExpenses(ctx context.Context, staffID string) ([]ExpenseRecord, error) {
	q := s.Client.Collection(expensesCollection).Query
	if staffID != "" {
		q = q.Where("staffId", "==", staffID)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []ExpenseRecord
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		rec, err := expenseFromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *FirestoreStore) GetExpense(ctx context.Context, id string) (ExpenseRecord, error) {
	doc, err := s.Client.Collection(expensesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return ExpenseRecord{}, ErrExpenseNotFound
	}
	if err != nil {
		return ExpenseRecord{}, err
	}
	return expenseFromDoc(doc)
}

func (s *FirestoreStore) SaveExpense(ctx context.Context, rec ExpenseRecord) error {
	_, err := s.Client.Collection(expensesCollection).Doc(rec.ID).Set(ctx, expenseDoc{
		StaffID:   rec.StaffID,
		Amount:    rec.Amount.String(),
		Reason:    rec.Reason,
		Status:    rec.Status,
		IsDeleted: rec.IsDeleted,
		DecidedBy: rec.DecidedBy,
		CreatedAt: rec.CreatedAt,
		UpdatedAt: rec.UpdatedAt,
	})
	return err
}

func (s *FirestoreStore) ListAdvances(ctx context.Context, staffID string) ([]AdvanceLogEntry, error) {
	q := s.Client.Collection(advancesCollection).Query
	if staffID != "" {
		q = q.Where("staffId", "==", staffID)
	}
	iter := q.Documents(ctx)
	defer iter.Stop()

	var out []AdvanceLogEntry
	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, err
		}
		entry, err := advanceFromDoc(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

func (s *FirestoreStore) GetAdvance(ctx context.Context, id string) (AdvanceLogEntry, error) {
	doc, err := s.Client.Collection(advancesCollection).Doc(id).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return AdvanceLogEntry{}, ErrAdvanceNotFound
	}
	if err != nil {
		return AdvanceLogEntry{}, err
	}
	return advanceFromDoc(doc)
}

func (s *FirestoreStore) SaveAdvance(ctx context.Context, entry AdvanceLogEntry) error {
	_, err := s.Client.Collection(advancesCollection).Doc(entry.ID).Set(ctx, advanceDoc{
		StaffID:   entry.StaffID,
		Amount:    entry.Amount.String(),
		Note:      entry.Note,
		Date:      entry.Date,
		GivenBy:   entry.GivenBy,
		Type:      entry.Type,
		IsDeleted: entry.IsDeleted,
		CreatedAt: entry.CreatedAt,
	})
	return err
}

func expenseFromDoc(doc *firestore.DocumentSnapshot) (ExpenseRecord, error) {
	var d expenseDoc
	if err := doc.DataTo(&d); err != nil {
		return ExpenseRecord{}, err
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return ExpenseRecord{}, fmt.Errorf("expense %s amount: %w", doc.Ref.ID, err)
	}
	return ExpenseRecord{
		ID:        doc.Ref.ID,
		StaffID:   d.StaffID,
		Amount:    amount,
		Reason:    d.Reason,
		Status:    d.Status,
		IsDeleted: d.IsDeleted,
		DecidedBy: d.DecidedBy,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}, nil
}

func advanceFromDoc(doc *firestore.DocumentSnapshot) (AdvanceLogEntry, error) {
	var d advanceDoc
	if err := doc.DataTo(&d); err != nil {
		return AdvanceLogEntry{}, err
	}
	amount, err := decimal.NewFromString(d.Amount)
	if err != nil {
		return AdvanceLogEntry{}, fmt.Errorf("advance %s amount: %w", doc.Ref.ID, err)
	}
	return AdvanceLogEntry{
		ID:        doc.Ref.ID,
		StaffID:   d.StaffID,
		Amount:    amount,
		Note:      d.Note,
		Date:      d.Date,
		GivenBy:   d.GivenBy,
		Type:      d.Type,
		IsDeleted: d.IsDeleted,
		CreatedAt: d.CreatedAt,
	}, nil
}
