package portal

import (
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
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
	pending = model.User{ID: "u-pending", Name: "Pat", Email: "pat@example.com", Role: model.RoleStudent}
)

type fixture struct {
	backend *backendtest.Backend
	server  *httptest.Server
	browser *http.Client
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	log := zap.NewNop()

	b := backendtest.New()
	t.Cleanup(b.Close)
	cfg := b.Config("")

	sessions, err := store.NewSessionStore(cfg)
	require.NoError(t, err)
	client, err := api.New(api.Params{Config: cfg, Log: log, Session: sessions})
	require.NoError(t, err)
	cat := catalog.New(client)

	table, err := routes.New(routes.Declarations, map[string]guard.PermissionCheck{
		routes.CheckCourseOwner: permissions.NewCourseOwner(cat, sessions, log),
	})
	require.NoError(t, err)

	p, err := New(Params{
		Log:      log,
		Config:   cfg,
		Sessions: sessions,
		Client:   client,
		Auth:     auth.New(auth.Params{Client: client, Store: sessions, Log: log}),
		Catalog:  cat,
		Routes:   table,
	})
	require.NoError(t, err)

	srv := httptest.NewServer(p.Handler())
	t.Cleanup(srv.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &fixture{
		backend: b,
		server:  srv,
		browser: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, string) {
	t.Helper()
	res, err := f.browser.Get(f.server.URL + path)
	require.NoError(t, err)
	return res, readBody(t, res)
}

func (f *fixture) post(t *testing.T, path string, form url.Values) (*http.Response, string) {
	t.Helper()
	res, err := f.browser.PostForm(f.server.URL+path, form)
	require.NoError(t, err)
	return res, readBody(t, res)
}

func (f *fixture) login(t *testing.T, u model.User) {
	t.Helper()
	res, _ := f.post(t, "/login", url.Values{"email": {u.Email}, "password": {"secret1"}})
	require.Equal(t, http.StatusSeeOther, res.StatusCode)
}

func readBody(t *testing.T, res *http.Response) string {
	t.Helper()
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	require.NoError(t, err)
	return string(b)
}

func TestAnonymousGuardedPageRedirectsToLogin(t *testing.T) {
	f := newFixture(t)

	res, _ := f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/login?from=%2Fdashboard", res.Header.Get("Location"))
}

func TestPublicPagesRenderAnonymously(t *testing.T) {
	f := newFixture(t)
	f.backend.AddCourse(model.Course{Title: "Intro to Go", Level: "beginner"})

	for _, path := range []string{"/", "/login", "/signup", "/verify-email-notice"} {
		res, _ := f.get(t, path)
		assert.Equal(t, http.StatusOK, res.StatusCode, path)
	}

	res, body := f.get(t, "/courses")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Intro to Go")
	assert.NotContains(t, body, "New course")
}

func TestLoginReturnsToRequestedPage(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.backend.AddCourse(model.Course{Title: "Distributed Systems", CreatorID: teacher.ID})

	res, _ := f.post(t, "/login", url.Values{
		"email":    {teacher.Email},
		"password": {"secret1"},
		"from":     {"/categories"},
	})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Equal("/categories", res.Header.Get("Location"))

	res, body := f.get(t, "/dashboard")
	require.Equal(http.StatusOK, res.StatusCode)
	assert.Contains(body, "Courses you teach")
	assert.Contains(body, "Distributed Systems")
	assert.Contains(body, teacher.Name)
}

func TestLoginRejectsOffsiteReturn(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")

	res, _ := f.post(t, "/login", url.Values{
		"email":    {teacher.Email},
		"password": {"secret1"},
		"from":     {"//evil.example.com/"},
	})
	assert.Equal(t, "/dashboard", res.Header.Get("Location"))
}

func TestLoginWithWrongPasswordRerendersForm(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")

	res, body := f.post(t, "/login", url.Values{"email": {teacher.Email}, "password": {"nope"}})
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)
	assert.Contains(t, body, teacher.Email)

	res, _ = f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
}

func TestUnverifiedUserIsSentToNotice(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(pending, "secret1")
	f.login(t, pending)

	res, _ := f.get(t, "/profile")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, guard.PathVerifyNotice+"?email="+url.QueryEscape(pending.Email), res.Header.Get("Location"))
}

func TestCourseEditRequiresOwnership(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.backend.AddUser(other, "secret1")
	c := f.backend.AddCourse(model.Course{Title: "Compilers", Description: "Parsing", CreatorID: teacher.ID})

	f.login(t, other)
	res, _ := f.get(t, "/courses/"+c.ID+"/edit")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, guard.PathHome, res.Header.Get("Location"))

	f.post(t, "/logout", nil)
	f.login(t, teacher)
	res, body := f.get(t, "/courses/"+c.ID+"/edit")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Compilers")
}

func TestCreateCourseThenEnrollFlash(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.login(t, teacher)

	res, body := f.get(t, "/courses")
	require.Equal(http.StatusOK, res.StatusCode)
	assert.Contains(body, "New course")

	res, _ = f.get(t, "/courses/create")
	require.Equal(http.StatusOK, res.StatusCode)

	res, body = f.post(t, "/courses/create", url.Values{"title": {"x"}, "description": {"d"}})
	assert.Equal(http.StatusUnprocessableEntity, res.StatusCode)
	assert.Contains(body, "title")

	res, _ = f.post(t, "/courses/create", url.Values{"title": {"Networking"}, "description": {"TCP/IP"}, "level": {"advanced"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	loc := res.Header.Get("Location")
	require.True(strings.HasPrefix(loc, "/courses/"), loc)

	res, body = f.get(t, loc)
	require.Equal(http.StatusOK, res.StatusCode)
	assert.Contains(body, "Networking")
	assert.Contains(body, "Course created")
}

func TestStudentCannotCreateCourse(t *testing.T) {
	f := newFixture(t)
	student := model.User{ID: "u-student", Name: "Sam", Email: "sam@example.com", Role: model.RoleStudent, IsVerified: true}
	f.backend.AddUser(student, "secret1")
	f.login(t, student)

	res, _ := f.get(t, "/courses/create")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, guard.PathHome, res.Header.Get("Location"))
}

func TestRevokedTokenEndsBrowserSession(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.login(t, teacher)

	res, _ := f.get(t, "/dashboard")
	require.Equal(t, http.StatusOK, res.StatusCode)

	f.backend.Revoke(teacher.ID)
	res, _ = f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.True(t, strings.HasPrefix(res.Header.Get("Location"), guard.PathLogin))

	res, body := f.get(t, "/")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.NotContains(t, body, teacher.Name)
}

func TestLogoutClearsSession(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.login(t, teacher)

	res, _ := f.post(t, "/logout", nil)
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)

	res, _ = f.get(t, "/dashboard")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
}

func TestVerifyEmailLink(t *testing.T) {
	f := newFixture(t)
	f.backend.AddUser(pending, "secret1")
	f.backend.AddVerificationToken("tok-1", pending.Email)

	res, _ := f.get(t, "/verify-email/tok-1")
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, _ = f.get(t, "/verify-email/bogus")
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestOwnerDeletesCourse(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	f.backend.AddUser(other, "secret1")
	c := f.backend.AddCourse(model.Course{Title: "Compilers", Description: "Parsing", CreatorID: teacher.ID})

	f.login(t, other)
	res, _ := f.post(t, "/courses/"+c.ID+"/edit/delete", nil)
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Equal(guard.PathHome, res.Header.Get("Location"))

	f.post(t, "/logout", nil)
	f.login(t, teacher)
	res, body := f.get(t, "/courses/"+c.ID+"/edit")
	require.Equal(http.StatusOK, res.StatusCode)
	assert.Contains(body, "Delete course")

	res, _ = f.post(t, "/courses/"+c.ID+"/edit/delete", nil)
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Equal("/dashboard?flash=Course+deleted", res.Header.Get("Location"))

	res, _ = f.get(t, "/courses/"+c.ID)
	assert.Equal(http.StatusNotFound, res.StatusCode)
}

func TestOwnerAddsAndMovesLessons(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	c := f.backend.AddCourse(model.Course{Title: "Storage engines", CreatorID: teacher.ID})
	f.login(t, teacher)

	edit := "/courses/" + c.ID + "/edit"
	for _, title := range []string{"WAL", "B-trees"} {
		res, _ := f.post(t, edit+"/lessons", url.Values{"title": {title}, "duration": {"20"}})
		require.Equal(http.StatusSeeOther, res.StatusCode)
		assert.Equal(edit+"?flash=Lesson+added", res.Header.Get("Location"))
	}

	res, _ := f.post(t, edit+"/lessons", url.Values{"title": {"Bad"}, "duration": {"ten"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Contains(res.Header.Get("Location"), "whole+number")

	_, body := f.get(t, "/courses/"+c.ID)
	assert.Less(strings.Index(body, "<li>WAL</li>"), strings.Index(body, "<li>B-trees</li>"))
	assert.NotContains(body, "<li>Bad</li>")

	res, _ = f.post(t, edit+"/lessons/move", url.Values{"from": {"2"}, "to": {"1"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Equal(edit+"?flash=Lesson+moved", res.Header.Get("Location"))

	_, body = f.get(t, "/courses/"+c.ID)
	assert.Less(strings.Index(body, "<li>B-trees</li>"), strings.Index(body, "<li>WAL</li>"))

	res, _ = f.post(t, edit+"/lessons/move", url.Values{"from": {"1"}, "to": {"5"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Contains(res.Header.Get("Location"), "cannot+be+moved")
}

func TestCommentOnCourse(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	f := newFixture(t)
	f.backend.AddUser(teacher, "secret1")
	c := f.backend.AddCourse(model.Course{Title: "Compilers", CreatorID: teacher.ID})
	f.login(t, teacher)

	res, _ := f.post(t, "/courses/"+c.ID+"/comments", url.Values{"content": {"  "}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.NotContains(res.Header.Get("Location"), "Comment+added")

	res, _ = f.post(t, "/courses/"+c.ID+"/comments", url.Values{"content": {"Great pacing"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)

	res, body := f.get(t, res.Header.Get("Location"))
	require.Equal(http.StatusOK, res.StatusCode)
	assert.Contains(body, "Comment added")
	assert.Contains(body, "Tess: Great pacing")
}

func TestOnlyAdminsManageCategories(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	f := newFixture(t)
	admin := model.User{ID: "u-admin", Name: "Ada", Email: "ada@example.com", Role: model.RoleAdmin, IsVerified: true}
	f.backend.AddUser(admin, "secret1")
	f.backend.AddUser(teacher, "secret1")

	f.login(t, teacher)
	res, _ := f.post(t, "/dashboard/categories", url.Values{"name": {"Databases"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Equal(guard.PathHome, res.Header.Get("Location"))
	assert.Zero(f.backend.Calls("/api/categories"))

	f.post(t, "/logout", nil)
	f.login(t, admin)
	res, _ = f.post(t, "/dashboard/categories", url.Values{"name": {"Databases"}, "level": {"1"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Equal("/dashboard?flash=Category+created", res.Header.Get("Location"))

	cat := f.backend.AddCategory(model.Category{Name: "Networks"})
	res, _ = f.post(t, "/dashboard/categories/"+cat.ID, url.Values{"name": {"Networking"}, "level": {"2"}})
	require.Equal(http.StatusSeeOther, res.StatusCode)
	assert.Equal("/dashboard?flash=Category+saved", res.Header.Get("Location"))

	res, body := f.get(t, "/dashboard")
	require.Equal(http.StatusOK, res.StatusCode)
	assert.Contains(body, "Databases")
	assert.Contains(body, "Networking")
	assert.Contains(body, "Add category")
}
