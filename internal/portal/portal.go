package portal

import (
	"context"
	"net/http"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/auth"
	"github.com/ghaggin/classroom/internal/catalog"
	"github.com/ghaggin/classroom/internal/config"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/routes"
	"github.com/ghaggin/classroom/internal/session"
	"github.com/ghaggin/classroom/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var adminPolicy = guard.Policy{RequireVerification: true, AllowedRoles: []model.Role{model.RoleAdmin}}

// Portal is the server-rendered front end. Each request is a page load: the
// browser session is rehydrated, revalidated with the backend, and the
// route's policy decides between rendering and redirecting.
type Portal struct {
	log     *zap.Logger
	handler http.Handler
	server  *http.Server
}

type Params struct {
	fx.In

	Log      *zap.Logger
	Config   *config.Config
	Sessions *store.SessionStore
	Client   *api.Client
	Auth     *auth.Service
	Catalog  *catalog.Client
	Routes   *routes.Table
}

func New(p Params) (*Portal, error) {
	session.RegisterUnauthorizedHandler(p.Client, p.Sessions, nil, p.Log)

	h := &handlers{
		log:     p.Log,
		auth:    p.Auth,
		catalog: p.Catalog,
	}

	root := chi.NewRouter()
	root.Use(middleware.RequestID, middleware.Recoverer)
	root.Use(p.Sessions.Manager().LoadAndSave)
	root.Use(pageLoad(p.Auth, p.Sessions, p.Log))

	views := h.views()
	for _, rt := range p.Routes.Routes() {
		v, ok := views[rt.Name]
		if !ok {
			return nil, errors.Errorf("no view for route %q", rt.Name)
		}

		r := chi.Router(root)
		if rt.Policy != nil {
			r = root.With(guard.Middleware(*rt.Policy, p.Log))
		}
		r.Get(rt.Pattern, v.get)
		if v.post != nil {
			r.Post(rt.Pattern, v.post)
		}
	}

	course, ok := p.Routes.Lookup("course")
	if !ok || course.Policy == nil {
		return nil, errors.New("course route must be guarded")
	}
	member := root.With(guard.Middleware(*course.Policy, p.Log))
	member.Post("/courses/{id}/enroll", h.enroll)
	member.Post("/courses/{id}/comments", h.addComment)

	edit, ok := p.Routes.Lookup("course-edit")
	if !ok || edit.Policy == nil {
		return nil, errors.New("course-edit route must be guarded")
	}
	owner := root.With(guard.Middleware(*edit.Policy, p.Log))
	owner.Post("/courses/{id}/edit/delete", h.deleteCourse)
	owner.Post("/courses/{id}/edit/lessons", h.addLesson)
	owner.Post("/courses/{id}/edit/lessons/move", h.moveLesson)
	owner.Post("/courses/{id}/edit/lessons/{lessonId}", h.updateLesson)
	owner.Post("/courses/{id}/edit/lessons/{lessonId}/delete", h.deleteLesson)

	admin := root.With(guard.Middleware(adminPolicy, p.Log))
	admin.Post("/dashboard/categories", h.saveCategory)
	admin.Post("/dashboard/categories/{id}", h.saveCategory)

	root.Post("/logout", h.logout)

	return &Portal{
		log:     p.Log,
		handler: root,
		server: &http.Server{
			Addr:    p.Config.Portal.Addr(),
			Handler: root,
		},
	}, nil
}

func (s *Portal) Handler() http.Handler {
	return s.handler
}

func RegisterHooks(lc fx.Lifecycle, s *Portal) {
	lc.Append(fx.Hook{
		OnStart: s.Start,
		OnStop:  s.server.Shutdown,
	})
}

func (s *Portal) Start(_ context.Context) error {
	s.log.Info("portal listening", zap.String("addr", s.server.Addr))
	go func() {
		err := s.server.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			s.log.Error("error running portal server", zap.Error(err))
		}
	}()
	return nil
}

// pageLoad binds a fresh provider to the request and revalidates the
// browser's session before any view runs.
func pageLoad(svc *auth.Service, st store.Store, log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			p := session.NewProvider(ctx, svc, st, log)
			ctx = session.WithProvider(ctx, p)
			p.Bootstrap(ctx)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
