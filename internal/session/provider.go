package session

import (
	"context"
	"sync"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/auth"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/store"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

// State is a snapshot of the auth state exposed to views and the route guard.
type State struct {
	Loading bool
	User    *model.User
	Err     error
}

// Provider owns the auth state of one page load: the user rehydrated from
// the store, the bootstrap revalidation, and every session mutation.
type Provider struct {
	svc   *auth.Service
	store store.Store
	log   *zap.Logger

	bootstrap sync.Once

	mu      sync.Mutex
	state   State
	nextSub int
	subs    map[int]func(State)
}

// NewProvider rehydrates the user from st synchronously. The provider starts
// in the loading state until Bootstrap completes.
func NewProvider(ctx context.Context, svc *auth.Service, st store.Store, log *zap.Logger) *Provider {
	p := &Provider{
		svc:   svc,
		store: st,
		log:   log,
		state: State{Loading: true},
		subs:  map[int]func(State){},
	}

	sess, err := st.Get(ctx)
	if err != nil {
		log.Warn("failed rehydrating session", zap.Error(err))
	}
	p.state.User = sess.User

	return p
}

// Bootstrap revalidates the rehydrated session with the backend. It runs at
// most once per provider; later calls return immediately.
func (p *Provider) Bootstrap(ctx context.Context) {
	p.bootstrap.Do(func() {
		p.checkAuth(ctx)
	})
}

func (p *Provider) checkAuth(ctx context.Context) {
	sess, err := p.store.Get(ctx)
	if err != nil || sess.Token == "" {
		p.update(func(s *State) { s.Loading = false })
		return
	}

	user, err := p.svc.CurrentUser(ctx)
	switch {
	case err == nil:
		p.update(func(s *State) {
			s.Loading = false
			s.User = user
			s.Err = nil
		})
	case api.IsUnauthorized(err):
		p.log.Info("session rejected by backend")
		p.logout(ctx, func(s *State) { s.Loading = false })
	default:
		p.log.Warn("failed revalidating session", zap.Error(err))
		p.update(func(s *State) {
			s.Loading = false
			s.Err = err
		})
	}
}

func (p *Provider) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snapshotLocked()
}

func (p *Provider) snapshotLocked() State {
	s := p.state
	if s.User != nil {
		u := *s.User
		s.User = &u
	}
	return s
}

func (p *Provider) User() *model.User {
	return p.State().User
}

// IsAuthenticated is derived on every call from the in-memory user and the
// token currently held by the store.
func (p *Provider) IsAuthenticated(ctx context.Context) bool {
	if p.User() == nil {
		return false
	}
	sess, err := p.store.Get(ctx)
	return err == nil && sess.Token != ""
}

// Subscribe registers fn to receive every state change. The returned func
// removes the subscription.
func (p *Provider) Subscribe(fn func(State)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := p.nextSub
	p.nextSub++
	p.subs[id] = fn

	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.subs, id)
	}
}

// update applies fn under the lock and notifies subscribers outside it.
func (p *Provider) update(fn func(*State)) {
	p.mu.Lock()
	fn(&p.state)
	snap := p.snapshotLocked()
	subs := make([]func(State), 0, len(p.subs))
	for _, s := range p.subs {
		subs = append(subs, s)
	}
	p.mu.Unlock()

	for _, s := range subs {
		s(snap)
	}
}

func (p *Provider) Login(ctx context.Context, c auth.Credentials) (auth.Result, error) {
	p.update(func(s *State) { s.Err = nil })

	res, err := p.svc.Login(ctx, c)
	if err != nil {
		p.update(func(s *State) { s.Err = err })
		return auth.Result{}, err
	}

	p.update(func(s *State) { s.User = res.User })
	return res, nil
}

func (p *Provider) Register(ctx context.Context, r auth.Registration) (auth.Result, error) {
	p.update(func(s *State) { s.Err = nil })

	res, err := p.svc.Register(ctx, r)
	if err != nil {
		p.update(func(s *State) { s.Err = err })
		return auth.Result{}, err
	}

	p.update(func(s *State) { s.User = res.User })
	return res, nil
}

func (p *Provider) UpdateProfile(ctx context.Context, u auth.ProfileUpdate) (*model.User, error) {
	p.update(func(s *State) { s.Err = nil })

	user, err := p.svc.UpdateProfile(ctx, u)
	if err != nil {
		p.update(func(s *State) { s.Err = err })
		return nil, err
	}

	p.update(func(s *State) { s.User = user })
	return user, nil
}

// UpdateUser overwrites the user locally without a round trip.
func (p *Provider) UpdateUser(ctx context.Context, u *model.User) error {
	if u == nil {
		return errors.New("user is required")
	}
	if err := p.store.SetUser(ctx, u); err != nil {
		return errors.Wrap(err, "persist user")
	}
	c := *u
	p.update(func(s *State) { s.User = &c })
	return nil
}

func (p *Provider) Logout(ctx context.Context) {
	p.logout(ctx, nil)
}

func (p *Provider) logout(ctx context.Context, also func(*State)) {
	if err := p.svc.Logout(ctx); err != nil {
		p.log.Error("failed clearing session", zap.Error(err))
	}
	p.update(func(s *State) {
		s.User = nil
		if also != nil {
			also(s)
		}
	})
}

// HandleUnauthorized is the reaction to a 401 from any backend call.
func (p *Provider) HandleUnauthorized(ctx context.Context) {
	p.log.Info("backend returned 401, ending session")
	p.Logout(ctx)
}
