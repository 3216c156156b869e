// Package backendtest runs an in-process fake of the course platform REST
// backend for tests.
package backendtest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/ghaggin/classroom/internal/config"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/go-chi/chi/v5"
)

type account struct {
	user     model.User
	password string
}

type Backend struct {
	*httptest.Server

	mu         sync.Mutex
	accounts   map[string]*account // by email
	tokens     map[string]string   // token -> user id
	courses    map[string]*model.Course
	categories map[string]*model.Category
	enrolled   map[string]map[string]bool // user id -> course ids
	progress   map[string]map[string][]string
	ratings    map[string][]model.Rating
	comments   map[string][]model.Comment
	verifyTok  map[string]string // verification token -> email
	failures   map[string]int    // path -> forced status
	calls      map[string]int
	seq        int
}

func New() *Backend {
	b := &Backend{
		accounts:   map[string]*account{},
		tokens:     map[string]string{},
		courses:    map[string]*model.Course{},
		categories: map[string]*model.Category{},
		enrolled:   map[string]map[string]bool{},
		progress:   map[string]map[string][]string{},
		ratings:    map[string][]model.Rating{},
		comments:   map[string][]model.Comment{},
		verifyTok:  map[string]string{},
		failures:   map[string]int{},
		calls:      map[string]int{},
	}
	b.Server = httptest.NewServer(b.router())
	return b
}

func (b *Backend) router() http.Handler {
	r := chi.NewRouter()
	r.Use(b.count, b.fail)

	r.Post("/api/auth/login", b.login)
	r.Post("/api/auth/register", b.register)
	r.Get("/api/auth/verify-email/{token}", b.verifyEmail)
	r.Post("/api/auth/resend-verification", b.resend)
	r.With(b.optionalToken).Get("/api/courses", b.listCourses)

	r.Group(func(r chi.Router) {
		r.Use(b.requireToken)
		r.Get("/api/auth/me", b.me)
		r.Put("/api/users/profile", b.updateProfile)

		r.Post("/api/courses", b.createCourse)
		r.Get("/api/courses/{id}", b.getCourse)
		r.Put("/api/courses/{id}", b.updateCourse)
		r.Delete("/api/courses/{id}", b.deleteCourse)
		r.Post("/api/courses/{id}/enroll", b.enroll)
		r.Post("/api/courses/{id}/lessons/{lessonId}/complete", b.completeLesson)
		r.Get("/api/courses/{id}/progress", b.courseProgress)
		r.Post("/api/courses/{id}/rate", b.rate)
		r.Get("/api/courses/{id}/ratings", b.listRatings)
		r.Get("/api/courses/{id}/lessons", b.listLessons)
		r.Post("/api/courses/{id}/lessons", b.createLesson)
		r.Put("/api/courses/{id}/lessons/{lessonId}", b.updateLesson)
		r.Delete("/api/courses/{id}/lessons/{lessonId}", b.deleteLesson)
		r.Get("/api/courses/{id}/comments", b.listComments)
		r.Post("/api/courses/{id}/comments", b.addComment)

		r.Get("/api/categories", b.listCategories)
		r.Get("/api/categories/{id}", b.getCategory)
		r.Post("/api/categories", b.createCategory)
		r.Put("/api/categories/{id}", b.updateCategory)
	})
	return r
}

// Config points a client configuration at the fake backend.
func (b *Backend) Config(storePath string) *config.Config {
	return &config.Config{
		Backend: config.Backend{URL: b.URL, Timeout: 5 * time.Second},
		Portal:  config.Portal{Host: "localhost", Port: 8123, SessionLifetime: time.Hour},
		Store:   config.Store{Path: storePath},
	}
}

// AddUser registers an account and returns a valid bearer token for it.
func (b *Backend) AddUser(u model.User, password string) string {
	b.mu.Lock()
	defer b.mu.Unlock()

	if u.ID == "" {
		u.ID = b.nextID("u")
	}
	b.accounts[u.Email] = &account{user: u, password: password}
	tok := b.nextID("tok")
	b.tokens[tok] = u.ID
	return tok
}

func (b *Backend) AddCourse(c model.Course) model.Course {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.ID == "" {
		c.ID = b.nextID("c")
	}
	c.Lessons = append([]model.Lesson(nil), c.Lessons...)
	b.courses[c.ID] = &c
	return c
}

func (b *Backend) AddCategory(c model.Category) model.Category {
	b.mu.Lock()
	defer b.mu.Unlock()

	if c.ID == "" {
		c.ID = b.nextID("cat")
	}
	b.categories[c.ID] = &c
	return c
}

// AddVerificationToken makes token verify the account registered under email.
func (b *Backend) AddVerificationToken(token, email string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.verifyTok[token] = email
}

// Revoke invalidates every token issued for the user id.
func (b *Backend) Revoke(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for tok, id := range b.tokens {
		if id == userID {
			delete(b.tokens, tok)
		}
	}
}

// FailWith forces every request to path to answer with status.
func (b *Backend) FailWith(path string, status int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if status == 0 {
		delete(b.failures, path)
		return
	}
	b.failures[path] = status
}

// Calls reports how many requests reached path.
func (b *Backend) Calls(path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[path]
}

func (b *Backend) nextID(prefix string) string {
	b.seq++
	return fmt.Sprintf("%s%d", prefix, b.seq)
}

type ctxKey struct{}

func (b *Backend) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		b.calls[r.URL.Path]++
		b.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) fail(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b.mu.Lock()
		status, ok := b.failures[r.URL.Path]
		b.mu.Unlock()
		if ok {
			writeJSON(w, status, map[string]any{"success": false, "message": http.StatusText(status)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (b *Backend) lookupToken(r *http.Request) (string, bool) {
	tok := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	if tok == "" {
		return "", false
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	id, ok := b.tokens[tok]
	return id, ok
}

// optionalToken lets anonymous callers through but still rejects a stale
// bearer token.
func (b *Backend) optionalToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			next.ServeHTTP(w, r)
			return
		}
		b.requireToken(next).ServeHTTP(w, r)
	})
}

func (b *Backend) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := b.lookupToken(r)
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "invalid token"})
			return
		}
		next.ServeHTTP(w, r.WithContext(withUserID(r, id)))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func ok(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": data})
}

func notFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, map[string]any{"success": false, "message": what + " not found"})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{"success": false, "message": msg})
}
