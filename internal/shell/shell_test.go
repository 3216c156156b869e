package shell

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/auth"
	"github.com/ghaggin/classroom/internal/backendtest"
	"github.com/ghaggin/classroom/internal/catalog"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/permissions"
	"github.com/ghaggin/classroom/internal/routes"
	"github.com/ghaggin/classroom/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	teacher = model.User{ID: "u-teacher", Name: "Tess", Email: "tess@example.com", Role: model.RoleTeacher, IsVerified: true}
	other   = model.User{ID: "u-other", Name: "Otto", Email: "otto@example.com", Role: model.RoleTeacher, IsVerified: true}
)

type fixture struct {
	backend   *backendtest.Backend
	storePath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	b := backendtest.New()
	t.Cleanup(b.Close)
	return &fixture{backend: b, storePath: filepath.Join(t.TempDir(), "session.json")}
}

// run executes script in a fresh shell process and returns its output.
func (f *fixture) run(t *testing.T, script ...string) string {
	t.Helper()
	log := zap.NewNop()
	cfg := f.backend.Config(f.storePath)

	st := store.OpenFile(cfg.Store.Path, log)
	client, err := api.New(api.Params{Config: cfg, Log: log, Session: st})
	require.NoError(t, err)
	cat := catalog.New(client)
	table, err := routes.New(routes.Declarations, map[string]guard.PermissionCheck{
		routes.CheckCourseOwner: permissions.NewCourseOwner(cat, st, log),
	})
	require.NoError(t, err)

	out := &bytes.Buffer{}
	ctx := context.Background()
	s := NewWithIO(ctx, Params{
		Log:     log,
		Store:   st,
		Client:  client,
		Auth:    auth.New(auth.Params{Client: client, Store: st, Log: log}),
		Catalog: cat,
		Routes:  table,
	}, strings.NewReader(strings.Join(script, "\n")+"\n"), out)
	defer s.nav.Close()

	require.NoError(t, s.Run(ctx))
	s.nav.Wait()

	s.outMu.Lock()
	defer s.outMu.Unlock()
	return out.String()
}

func TestLoginResumesInterruptedPage(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.backend.AddCourse(model.Course{Title: "Operating Systems", CreatorID: teacher.ID})

	out := f.run(t,
		"go /dashboard",
		"login "+teacher.Email,
		"secret1",
		"q",
	)

	assert.Contains(out, "redirect /dashboard -> /login (unauthenticated)")
	assert.Contains(out, "sign in with")
	assert.Contains(out, "signed in as tess@example.com (teacher)")
	assert.Contains(out, "Courses you teach")
	assert.Contains(out, "Operating Systems")
	assert.Contains(out, "exiting")
}

func TestSessionSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")

	f.run(t, "login "+teacher.Email, "secret1", "q")
	out := f.run(t, "whoami", "q")

	assert.Contains(t, out, "signed in as tess@example.com")
	assert.Contains(t, out, "Tess <tess@example.com> teacher, verified")
}

func TestLogoutForgetsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")

	f.run(t, "login "+teacher.Email, "secret1", "logout", "q")
	out := f.run(t, "whoami", "q")
	assert.Contains(t, out, "not signed in")
}

func TestWrongPasswordReportsError(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")

	out := f.run(t, "login "+teacher.Email, "nope", "whoami", "q")
	assert.Contains(t, out, "error: ")
	assert.Contains(t, out, "not signed in")
}

func TestReorderRequiresOwnership(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.backend.AddUser(other, "secret1")
	c := f.backend.AddCourse(model.Course{
		Title:       "Databases",
		Description: "Storage engines",
		CreatorID:   teacher.ID,
		Lessons: []model.Lesson{
			{ID: "l1", Title: "B-trees", OrderIndex: 0},
			{ID: "l2", Title: "LSM trees", OrderIndex: 1},
			{ID: "l3", Title: "WAL", OrderIndex: 2},
		},
	})

	out := f.run(t, "login "+other.Email, "secret1", "reorder "+c.ID+" 1 3", "q")
	assert.Contains(out, "permission denied")

	out = f.run(t, "logout", "login "+teacher.Email, "secret1", "reorder "+c.ID+" 1 3", "q")
	assert.Contains(out, "1. LSM trees\n  2. WAL\n  3. B-trees")
}

func TestRevokedTokenRedirectsCurrentPage(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.run(t, "login "+teacher.Email, "secret1", "q")

	f.backend.Revoke(teacher.ID)
	out := f.run(t, "go /dashboard", "whoami", "q")
	assert.Contains(t, out, "redirect /dashboard -> /login (unauthenticated)")
	assert.Contains(t, out, "not signed in")
}

func TestUnknownCommandAndUsage(t *testing.T) {
	f := newFixture(t)
	out := f.run(t, "frobnicate", "rate c1", "go /nowhere", "q")

	assert.Contains(t, out, `unknown command "frobnicate"`)
	assert.Contains(t, out, "usage: rate <course> <1-5> [comment...]")
	assert.Contains(t, out, "no page at /nowhere")
}

func TestCommentShowsOnCourseView(t *testing.T) {
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	c := f.backend.AddCourse(model.Course{
		Title:       "Databases",
		Description: "Storage engines",
		CreatorID:   teacher.ID,
		Lessons: []model.Lesson{
			{ID: "l2", Title: "LSM trees", OrderIndex: 1},
			{ID: "l1", Title: "B-trees", OrderIndex: 0},
		},
	})

	out := f.run(t, "login "+teacher.Email, "secret1", "comment "+c.ID+" nice pacing", "go /courses/"+c.ID, "q")
	assert.Contains(out, "comment posted")
	assert.Contains(out, "1. B-trees\n  2. LSM trees")
	assert.Contains(out, "comments:\n  Tess: nice pacing")
}
