package store

import (
	"context"
	"encoding/gob"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/ghaggin/classroom/internal/config"
	"github.com/ghaggin/classroom/internal/model"
)

// SessionStore keeps the session inside the browser session managed by scs.
// The context must come from a request wrapped by Manager().LoadAndSave.
type SessionStore struct {
	impl *scs.SessionManager
}

func NewSessionStore(cfg *config.Config) (*SessionStore, error) {
	gob.Register(&model.User{})

	s := &SessionStore{}
	s.impl = scs.New()
	s.impl.Lifetime = cfg.Portal.SessionLifetime
	if s.impl.Lifetime <= 0 {
		s.impl.Lifetime = 24 * time.Hour
	}
	s.impl.Cookie.Name = "classroom_session"
	s.impl.Cookie.HttpOnly = true
	s.impl.Cookie.Secure = cfg.Portal.Secure()

	return s, nil
}

func (s *SessionStore) Manager() *scs.SessionManager {
	return s.impl
}

func (s *SessionStore) Get(ctx context.Context) (model.Session, error) {
	user, _ := s.impl.Get(ctx, keyUser).(*model.User)
	return model.Session{
		User:  cloneUser(user),
		Token: s.impl.GetString(ctx, keyToken),
	}, nil
}

func (s *SessionStore) Set(ctx context.Context, user *model.User, token string) error {
	// new login, new session id
	if err := s.impl.RenewToken(ctx); err != nil {
		return err
	}
	s.impl.Put(ctx, keyToken, token)
	s.impl.Put(ctx, keyUser, cloneUser(user))
	return nil
}

func (s *SessionStore) SetUser(ctx context.Context, user *model.User) error {
	s.impl.Put(ctx, keyUser, cloneUser(user))
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	s.impl.Remove(ctx, keyToken)
	s.impl.Remove(ctx, keyUser)
	return nil
}
