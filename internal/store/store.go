package store

import (
	"context"

	"github.com/ghaggin/classroom/internal/model"
)

const (
	keyToken = "token"
	keyUser  = "user"
)

// Store is the durable home of the client session. Implementations persist
// synchronously on every mutation and never touch the network.
type Store interface {
	Get(ctx context.Context) (model.Session, error)
	Set(ctx context.Context, user *model.User, token string) error
	SetUser(ctx context.Context, user *model.User) error
	Clear(ctx context.Context) error
}

func cloneUser(u *model.User) *model.User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
