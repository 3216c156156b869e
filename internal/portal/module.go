package portal

import (
	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/store"
	"go.uber.org/fx"
)

// Module backs the session with the browser cookie store.
var Module = fx.Options(
	fx.Provide(
		store.NewSessionStore,
		func(s *store.SessionStore) store.Store { return s },
		func(s *store.SessionStore) api.SessionReader { return s },
		New,
	),
	fx.Invoke(RegisterHooks),
)
