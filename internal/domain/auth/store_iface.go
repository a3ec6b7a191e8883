package auth

import "context"

type StoreAPI interface {
	FindUserByEmail(ctx context.Context, email string) (User, error)
	CreateUser(ctx context.Context, user User) (string, error)
}
