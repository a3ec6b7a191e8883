package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

const usersCollection = "users"

type FirestoreStore struct {
	Client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{Client: client}
}

func (s *FirestoreStore) FindUserByEmail(ctx context.Context, email string) (User, error) {
	iter := s.Client.Collection(usersCollection).
		Where("email", "==", strings.ToLower(strings.TrimSpace(email))).
		Limit(1).
		Documents(ctx)
	defer iter.Stop()

	doc, err := iter.Next()
	if errors.Is(err, iterator.Done) {
		return User{}, ErrUserNotFound
	}
	if err != nil {
		return User{}, err
	}
	var out User
	if err := doc.DataTo(&out); err != nil {
		return User{}, err
	}
	out.ID = doc.Ref.ID
	return out, nil
}

func (s *FirestoreStore) CreateUser(ctx context.Context, user User) (string, error) {
	if _, err := s.FindUserByEmail(ctx, user.Email); err == nil {
		return "", ErrUserExists
	} else if !errors.Is(err, ErrUserNotFound) {
		return "", err
	}

	user.ID = uuid.NewString()
	user.Email = strings.ToLower(strings.TrimSpace(user.Email))
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if _, err := s.Client.Collection(usersCollection).Doc(user.ID).Set(ctx, user); err != nil {
		return "", err
	}
	return user.ID, nil
}
