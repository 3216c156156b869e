package shell

import (
	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// Module backs the session with the on-disk store.
var Module = fx.Options(
	fx.Provide(
		store.NewFile,
		func(s *store.FileStore) store.Store { return s },
		func(s *store.FileStore) api.SessionReader { return s },
		New,
	),
	// Keep debug logs from interleaving with the prompt.
	fx.Decorate(func(l *zap.Logger) *zap.Logger {
		return l.WithOptions(zap.IncreaseLevel(zap.WarnLevel))
	}),
	fx.Invoke(RegisterHooks),
)
