package guard

import (
	"context"
	"sync"

	"github.com/ghaggin/classroom/internal/session"
	"go.uber.org/zap"
)

// Target is a resolved location. A nil Policy marks a public route.
type Target struct {
	Request Request
	Policy  *Policy
}

type Resolver interface {
	Resolve(path string) (Target, error)
}

// Provider is the auth owner the navigator follows for changes.
type Provider interface {
	Auth
	Subscribe(fn func(session.State)) func()
}

// Navigator sequences navigations for one process. Every navigation, and
// every re-evaluation triggered by an auth change, gets a new sequence
// number; permission results computed for an older number are dropped.
type Navigator struct {
	ctx      context.Context
	auth     Provider
	resolver Resolver
	log      *zap.Logger

	unsubscribe func()
	inflight    sync.WaitGroup

	mu       sync.Mutex
	seq      uint64
	target   *Target
	decision Decision
	listener func(Decision)
}

func NewNavigator(ctx context.Context, a Provider, r Resolver, log *zap.Logger) *Navigator {
	n := &Navigator{
		ctx:      ctx,
		auth:     a,
		resolver: r,
		log:      log,
	}
	n.unsubscribe = a.Subscribe(func(session.State) { n.Refresh() })
	return n
}

func (n *Navigator) Close() {
	n.unsubscribe()
}

// OnDecision registers the single listener that receives every current
// decision, including those arriving asynchronously.
func (n *Navigator) OnDecision(fn func(Decision)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.listener = fn
}

func (n *Navigator) Current() Decision {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.decision
}

// Wait blocks until every permission check started so far has returned.
func (n *Navigator) Wait() {
	n.inflight.Wait()
}

// Navigate resolves path and evaluates its policy. When a permission check
// is configured the returned decision is pending and the final one is
// delivered to the listener.
func (n *Navigator) Navigate(path string) (Decision, error) {
	t, err := n.resolver.Resolve(path)
	if err != nil {
		d := Decision{Kind: NotFound, Stage: Decided, Request: Request{Path: path}}
		n.mu.Lock()
		n.seq++
		seq := n.seq
		n.target = nil
		n.mu.Unlock()
		n.publish(seq, d)
		return d, err
	}

	n.mu.Lock()
	n.seq++
	seq := n.seq
	n.target = &t
	n.mu.Unlock()

	return n.run(seq, t), nil
}

// Refresh re-evaluates the current location, e.g. after the auth state changed.
func (n *Navigator) Refresh() {
	n.mu.Lock()
	if n.target == nil {
		n.mu.Unlock()
		return
	}
	n.seq++
	seq, t := n.seq, *n.target
	n.mu.Unlock()

	n.run(seq, t)
}

func (n *Navigator) run(seq uint64, t Target) Decision {
	if t.Policy == nil {
		d := Decision{Kind: Render, Stage: Decided, Request: t.Request}
		n.publish(seq, d)
		return d
	}

	d, pending := Precheck(n.ctx, n.auth, *t.Policy, t.Request)
	n.publish(seq, d)
	if !pending {
		return d
	}

	n.inflight.Add(1)
	go func(p Policy, req Request) {
		defer n.inflight.Done()

		final, err := Permit(n.ctx, p, req)
		if err != nil {
			n.log.Warn("permission check failed", zap.String("path", req.Path), zap.Error(err))
		}
		if !n.publish(seq, final) {
			n.log.Debug("discarding stale permission result",
				zap.String("path", req.Path),
				zap.Uint64("seq", seq),
			)
		}
	}(*t.Policy, t.Request)

	return d
}

// publish installs d when seq is still current and reports whether it did.
func (n *Navigator) publish(seq uint64, d Decision) bool {
	n.mu.Lock()
	if seq != n.seq {
		n.mu.Unlock()
		return false
	}
	n.decision = d
	listener := n.listener
	n.mu.Unlock()

	if listener != nil {
		listener(d)
	}
	return true
}
