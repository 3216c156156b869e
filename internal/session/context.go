package session

import (
	"context"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/store"
	"go.uber.org/zap"
)

type providerKey struct{}

func WithProvider(ctx context.Context, p *Provider) context.Context {
	return context.WithValue(ctx, providerKey{}, p)
}

func FromContext(ctx context.Context) (*Provider, bool) {
	p, ok := ctx.Value(providerKey{}).(*Provider)
	return p, ok
}

// RegisterUnauthorizedHandler subscribes the session owner to the client's
// 401 signal. Call it once at startup.
//
// The provider bound to the rejected request's context reacts when present;
// otherwise fallback does, or the store is cleared directly.
func RegisterUnauthorizedHandler(c *api.Client, st store.Store, fallback *Provider, log *zap.Logger) {
	c.Subscribe(func(ctx context.Context) {
		if p, ok := FromContext(ctx); ok {
			p.HandleUnauthorized(ctx)
			return
		}
		if fallback != nil {
			fallback.HandleUnauthorized(ctx)
			return
		}
		if err := st.Clear(ctx); err != nil {
			log.Error("failed clearing session after 401", zap.Error(err))
		}
	})
}
