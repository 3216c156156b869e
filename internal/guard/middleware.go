package guard

import (
	"net/http"
	"net/url"

	"github.com/ghaggin/classroom/internal/session"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// RedirectURL renders a redirect decision as a location, carrying From and
// Email in the query.
func RedirectURL(d Decision) string {
	q := url.Values{}
	if d.From != "" {
		q.Set("from", d.From)
	}
	if d.Email != "" {
		q.Set("email", d.Email)
	}
	if len(q) == 0 {
		return d.Target
	}
	return d.Target + "?" + q.Encode()
}

// Middleware enforces p on every request. The request context must carry a
// bootstrapped session.Provider.
func Middleware(p Policy, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provider, ok := session.FromContext(r.Context())
			if !ok {
				log.Error("guarded route without session provider", zap.String("path", r.URL.Path))
				http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
				return
			}

			req := Request{
				Path:   r.URL.RequestURI(),
				Params: urlParams(r),
			}
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				req.Pattern = rctx.RoutePattern()
			}

			d := Evaluate(r.Context(), provider, p, req)
			switch d.Kind {
			case Render:
				next.ServeHTTP(w, r)
			case Redirect:
				log.Debug("guard redirect",
					zap.String("path", req.Path),
					zap.String("target", d.Target),
					zap.String("reason", string(d.Reason)),
				)
				http.Redirect(w, r, RedirectURL(d), http.StatusSeeOther)
			default:
				w.Header().Set("Retry-After", "1")
				http.Error(w, "loading", http.StatusServiceUnavailable)
			}
		})
	}
}

func urlParams(r *http.Request) Params {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return Params{}
	}
	params := make(Params, len(rctx.URLParams.Keys))
	for i, k := range rctx.URLParams.Keys {
		if k == "*" {
			continue
		}
		params[k] = rctx.URLParams.Values[i]
	}
	return params
}
