package portal

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/auth"
	"github.com/ghaggin/classroom/internal/catalog"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/session"
	"github.com/ghaggin/classroom/internal/template"
	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"
)

const (
	pathAfterLogin = "/dashboard"
)

type handlers struct {
	log     *zap.Logger
	auth    *auth.Service
	catalog *catalog.Client
}

type view struct {
	get  http.HandlerFunc
	post http.HandlerFunc
}

// views maps route names to their handlers.
func (h *handlers) views() map[string]view {
	return map[string]view{
		"home":                {get: h.home},
		"login":               {get: h.loginForm, post: h.login},
		"signup":              {get: h.signupForm, post: h.signup},
		"courses":             {get: h.courses},
		"verify-email":        {get: h.verifyEmail},
		"verify-email-notice": {get: h.verifyNotice, post: h.resendVerification},
		"profile":             {get: h.profile, post: h.updateProfile},
		"dashboard":           {get: h.dashboard},
		"course":              {get: h.course},
		"course-create":       {get: h.courseForm, post: h.createCourse},
		"course-edit":         {get: h.editCourseForm, post: h.updateCourse},
		"categories":          {get: h.categories},
		"category":            {get: h.category},
	}
}

func provider(r *http.Request) *session.Provider {
	p, _ := session.FromContext(r.Context())
	return p
}

func (h *handlers) render(w http.ResponseWriter, r *http.Request, status int, tmpl string, td *template.Data) {
	if td.User == nil && provider(r).IsAuthenticated(r.Context()) {
		td.User = provider(r).User()
	}
	if td.Flash == "" {
		td.Flash = r.URL.Query().Get("flash")
	}
	if err := template.Render(w, status, tmpl, td); err != nil {
		h.log.Error("failed rendering template", zap.String("template", tmpl), zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

// fail turns a backend error into a redirect or an error page.
func (h *handlers) fail(w http.ResponseWriter, r *http.Request, err error) {
	if api.IsUnauthorized(err) {
		http.Redirect(w, r, guard.RedirectURL(guard.Decision{Target: guard.PathLogin, From: r.URL.RequestURI()}), http.StatusSeeOther)
		return
	}

	status := http.StatusBadGateway
	var se *api.StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		status = http.StatusNotFound
	}
	h.log.Warn("backend call failed", zap.String("path", r.URL.Path), zap.Error(err))
	h.render(w, r, status, "error.html", &template.Data{PageTitle: "Something went wrong", Error: api.Message(err)})
}

func redirectWithFlash(w http.ResponseWriter, r *http.Request, target, flash string) {
	if flash != "" {
		sep := "?"
		if strings.Contains(target, "?") {
			sep = "&"
		}
		target += sep + "flash=" + url.QueryEscape(flash)
	}
	http.Redirect(w, r, target, http.StatusSeeOther)
}

// safeReturn keeps post-login redirects on this site.
func safeReturn(from string) string {
	if !strings.HasPrefix(from, "/") || strings.HasPrefix(from, "//") || strings.HasPrefix(from, "/\\") {
		return pathAfterLogin
	}
	if strings.HasPrefix(from, guard.PathLogin) {
		return pathAfterLogin
	}
	return from
}

func (h *handlers) home(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "home.html", &template.Data{PageTitle: "Home"})
}

type loginPage struct {
	From  string
	Email string
}

func (h *handlers) loginForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "login.html", &template.Data{
		PageTitle: "Log in",
		Page:      loginPage{From: r.URL.Query().Get("from")},
	})
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	creds := auth.Credentials{Email: r.PostForm.Get("email"), Password: r.PostForm.Get("password")}
	from := r.PostForm.Get("from")

	if _, err := provider(r).Login(r.Context(), creds); err != nil {
		status := http.StatusUnprocessableEntity
		if api.IsInvalidCredentials(err) {
			status = http.StatusUnauthorized
		}
		h.render(w, r, status, "login.html", &template.Data{
			PageTitle: "Log in",
			Error:     api.Message(err),
			Page:      loginPage{From: from, Email: creds.Email},
		})
		return
	}

	http.Redirect(w, r, safeReturn(from), http.StatusSeeOther)
}

type signupPage struct {
	Name  string
	Email string
}

func (h *handlers) signupForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "signup.html", &template.Data{PageTitle: "Sign up", Page: signupPage{}})
}

func (h *handlers) signup(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reg := auth.Registration{
		Name:     r.PostForm.Get("name"),
		Email:    r.PostForm.Get("email"),
		Password: r.PostForm.Get("password"),
		Role:     model.Role(r.PostForm.Get("role")),
	}

	res, err := provider(r).Register(r.Context(), reg)
	if err != nil {
		h.render(w, r, http.StatusUnprocessableEntity, "signup.html", &template.Data{
			PageTitle: "Sign up",
			Error:     api.Message(err),
			Page:      signupPage{Name: reg.Name, Email: reg.Email},
		})
		return
	}

	if !res.User.IsVerified {
		http.Redirect(w, r, guard.RedirectURL(guard.Decision{Target: guard.PathVerifyNotice, Email: res.User.Email}), http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, pathAfterLogin, http.StatusSeeOther)
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	provider(r).Logout(r.Context())
	http.Redirect(w, r, guard.PathHome, http.StatusSeeOther)
}

type noticePage struct {
	Email string
}

func (h *handlers) verifyEmail(w http.ResponseWriter, r *http.Request) {
	msg, err := h.auth.VerifyEmail(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.render(w, r, http.StatusBadRequest, "notice.html", &template.Data{
			PageTitle: "Verification failed",
			Error:     api.Message(err),
			Page:      noticePage{},
		})
		return
	}
	if msg == "" {
		msg = "Your email has been verified"
	}
	h.render(w, r, http.StatusOK, "notice.html", &template.Data{PageTitle: "Email verified", Flash: msg, Page: noticePage{}})
}

func (h *handlers) verifyNotice(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "notice.html", &template.Data{
		PageTitle: "Verify your email",
		Page:      noticePage{Email: r.URL.Query().Get("email")},
	})
}

func (h *handlers) resendVerification(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	email := r.PostForm.Get("email")

	msg, err := h.auth.ResendVerification(r.Context(), email)
	td := &template.Data{PageTitle: "Verify your email", Flash: msg, Page: noticePage{Email: email}}
	status := http.StatusOK
	if err != nil {
		td.Flash, td.Error = "", api.Message(err)
		status = http.StatusUnprocessableEntity
	}
	h.render(w, r, status, "notice.html", td)
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "profile.html", &template.Data{PageTitle: "Profile"})
}

func (h *handlers) updateProfile(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	_, err := provider(r).UpdateProfile(r.Context(), auth.ProfileUpdate{
		Name:         r.PostForm.Get("name"),
		Bio:          r.PostForm.Get("bio"),
		ProfileImage: r.PostForm.Get("profileImage"),
	})
	if err != nil {
		if api.IsUnauthorized(err) {
			h.fail(w, r, err)
			return
		}
		h.render(w, r, http.StatusUnprocessableEntity, "profile.html", &template.Data{PageTitle: "Profile", Error: api.Message(err)})
		return
	}
	redirectWithFlash(w, r, "/profile", "Profile updated")
}

type coursesPage struct {
	Search    string
	Level     string
	CanCreate bool
	Courses   []model.Course
}

func (h *handlers) courses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page := coursesPage{Search: q.Get("search"), Level: q.Get("level")}

	all, err := h.catalog.ListCourses(r.Context(), catalog.CourseFilter{CategoryID: q.Get("categoryId")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page.Courses = catalog.FilterCourses(all, page.Search, page.Level)

	if u := provider(r).User(); u != nil && provider(r).IsAuthenticated(r.Context()) {
		page.CanCreate = u.Role == model.RoleTeacher || u.Role == model.RoleAdmin
	}

	h.render(w, r, http.StatusOK, "courses.html", &template.Data{PageTitle: "Courses", Page: page})
}

type dashboardPage struct {
	Heading    string
	Courses    []model.Course
	Admin      bool
	Categories []model.Category
}

func (h *handlers) dashboard(w http.ResponseWriter, r *http.Request) {
	u := provider(r).User()
	if u == nil {
		h.fail(w, r, &api.AuthError{Reason: api.Unauthorized})
		return
	}

	var (
		page dashboardPage
		err  error
	)
	switch u.Role {
	case model.RoleTeacher:
		page.Heading = "Courses you teach"
		page.Courses, err = h.catalog.ListCourses(r.Context(), catalog.CourseFilter{Type: catalog.TypeTeaching})
	case model.RoleAdmin:
		page.Heading = "All courses"
		page.Admin = true
		page.Courses, err = h.catalog.ListCourses(r.Context(), catalog.CourseFilter{})
		if err == nil {
			page.Categories, err = h.catalog.ListCategories(r.Context(), catalog.CategoryFilter{})
		}
	default:
		page.Heading = "Your courses"
		page.Courses, err = h.catalog.ListCourses(r.Context(), catalog.CourseFilter{Type: catalog.TypeEnrolled})
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	h.render(w, r, http.StatusOK, "dashboard.html", &template.Data{PageTitle: "Dashboard", User: u, Page: page})
}

type coursePage struct {
	Course   *model.Course
	Lessons  []model.Lesson
	Progress *model.Progress
	Ratings  []model.Rating
	Comments []model.Comment
}

func (h *handlers) course(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.catalog.GetCourse(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	page := coursePage{Course: c}

	if page.Lessons, err = h.catalog.ListLessons(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	// Progress only exists for enrolled students.
	if p, err := h.catalog.CourseProgress(r.Context(), id); err == nil {
		page.Progress = p
	} else if api.IsUnauthorized(err) {
		h.fail(w, r, err)
		return
	}
	if rs, err := h.catalog.CourseRatings(r.Context(), id); err == nil {
		page.Ratings = rs
	} else {
		h.log.Debug("ratings unavailable", zap.String("course", id), zap.Error(err))
	}
	if cs, err := h.catalog.ListComments(r.Context(), id); err == nil {
		page.Comments = cs
	} else {
		h.log.Debug("comments unavailable", zap.String("course", id), zap.Error(err))
	}

	h.render(w, r, http.StatusOK, "course.html", &template.Data{PageTitle: c.Title, Page: page})
}

func (h *handlers) enroll(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	msg, err := h.catalog.Enroll(r.Context(), id)
	if err != nil {
		if api.IsValidation(err) {
			redirectWithFlash(w, r, "/courses/"+url.PathEscape(id), api.Message(err))
			return
		}
		h.fail(w, r, err)
		return
	}
	if msg == "" {
		msg = "Enrolled"
	}
	redirectWithFlash(w, r, "/courses/"+url.PathEscape(id), msg)
}

func courseInput(r *http.Request) catalog.CourseInput {
	return catalog.CourseInput{
		Title:       strings.TrimSpace(r.PostForm.Get("title")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
		CategoryID:  r.PostForm.Get("categoryId"),
		Level:       r.PostForm.Get("level"),
	}
}

// courseFormPage backs both the create and the edit form. ID is only set
// when editing.
type courseFormPage struct {
	catalog.CourseInput
	ID      string
	Lessons []lessonRow
}

// lessonRow carries 1-based positions for the move buttons; Up and Down are
// 0 at the ends of the list.
type lessonRow struct {
	model.Lesson
	Pos, Up, Down int
}

func lessonRows(lessons []model.Lesson) []lessonRow {
	rows := make([]lessonRow, len(lessons))
	for i, l := range lessons {
		rows[i] = lessonRow{Lesson: l, Pos: i + 1}
		if i > 0 {
			rows[i].Up = i
		}
		if i < len(lessons)-1 {
			rows[i].Down = i + 2
		}
	}
	return rows
}

func (h *handlers) courseForm(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "course_form.html", &template.Data{PageTitle: "New course", Page: courseFormPage{}})
}

func (h *handlers) createCourse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in := courseInput(r)

	c, err := h.catalog.CreateCourse(r.Context(), in)
	if err != nil {
		if api.IsValidation(err) {
			h.render(w, r, http.StatusUnprocessableEntity, "course_form.html", &template.Data{PageTitle: "New course", Error: api.Message(err), Page: courseFormPage{CourseInput: in}})
			return
		}
		h.fail(w, r, err)
		return
	}
	redirectWithFlash(w, r, "/courses/"+url.PathEscape(c.ID), "Course created")
}

func (h *handlers) editCourseForm(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	c, err := h.catalog.GetCourse(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	lessons, err := h.catalog.ListLessons(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "course_form.html", &template.Data{
		PageTitle: "Edit course",
		Page: courseFormPage{
			CourseInput: catalog.CourseInput{Title: c.Title, Description: c.Description, CategoryID: c.CategoryID, Level: c.Level},
			ID:          c.ID,
			Lessons:     lessonRows(lessons),
		},
	})
}

func (h *handlers) updateCourse(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	in := courseInput(r)

	if _, err := h.catalog.UpdateCourse(r.Context(), id, in); err != nil {
		if api.IsValidation(err) {
			h.render(w, r, http.StatusUnprocessableEntity, "course_form.html", &template.Data{PageTitle: "Edit course", Error: api.Message(err), Page: courseFormPage{CourseInput: in, ID: id}})
			return
		}
		h.fail(w, r, err)
		return
	}
	redirectWithFlash(w, r, "/courses/"+url.PathEscape(id), "Course updated")
}

func (h *handlers) deleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.catalog.DeleteCourse(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	redirectWithFlash(w, r, pathAfterLogin, "Course deleted")
}

func editPath(courseID string) string {
	return "/courses/" + url.PathEscape(courseID) + "/edit"
}

// formInt reads an optional integer field; blank is 0.
func formInt(r *http.Request, field string) (int, error) {
	v := strings.TrimSpace(r.PostForm.Get(field))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, &api.ValidationError{Message: field + " must be a whole number"}
	}
	return n, nil
}

func lessonInput(r *http.Request) (catalog.LessonInput, error) {
	in := catalog.LessonInput{
		Title:    strings.TrimSpace(r.PostForm.Get("title")),
		Content:  strings.TrimSpace(r.PostForm.Get("content")),
		VideoURL: strings.TrimSpace(r.PostForm.Get("videoUrl")),
	}
	var err error
	if in.Duration, err = formInt(r, "duration"); err != nil {
		return in, err
	}
	in.OrderIndex, err = formInt(r, "orderIndex")
	return in, err
}

// lessonResult sends the editor back to the course form, reporting
// validation problems as a flash and anything else as an error page.
func (h *handlers) lessonResult(w http.ResponseWriter, r *http.Request, err error, done string) {
	id := chi.URLParam(r, "id")
	switch {
	case err == nil:
		redirectWithFlash(w, r, editPath(id), done)
	case api.IsValidation(err):
		redirectWithFlash(w, r, editPath(id), api.Message(err))
	default:
		h.fail(w, r, err)
	}
}

func (h *handlers) addLesson(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	in, err := lessonInput(r)
	if err != nil {
		h.lessonResult(w, r, err, "")
		return
	}

	// New lessons go to the end.
	lessons, err := h.catalog.ListLessons(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	in.OrderIndex = len(lessons)
	_, err = h.catalog.CreateLesson(r.Context(), id, in)
	h.lessonResult(w, r, err, "Lesson added")
}

func (h *handlers) updateLesson(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in, err := lessonInput(r)
	if err == nil {
		_, err = h.catalog.UpdateLesson(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lessonId"), in)
	}
	h.lessonResult(w, r, err, "Lesson updated")
}

func (h *handlers) deleteLesson(w http.ResponseWriter, r *http.Request) {
	err := h.catalog.DeleteLesson(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "lessonId"))
	h.lessonResult(w, r, err, "Lesson removed")
}

// moveLesson takes 1-based from and to positions.
func (h *handlers) moveLesson(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	from, err := formInt(r, "from")
	if err != nil {
		h.lessonResult(w, r, err, "")
		return
	}
	to, err := formInt(r, "to")
	if err != nil {
		h.lessonResult(w, r, err, "")
		return
	}
	_, err = h.catalog.MoveLesson(r.Context(), chi.URLParam(r, "id"), from-1, to-1)
	if errors.Is(err, catalog.ErrLessonPosition) {
		redirectWithFlash(w, r, editPath(chi.URLParam(r, "id")), "That lesson cannot be moved there")
		return
	}
	h.lessonResult(w, r, err, "Lesson moved")
}

func (h *handlers) addComment(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	id := chi.URLParam(r, "id")
	_, err := h.catalog.AddComment(r.Context(), id, catalog.CommentInput{Content: strings.TrimSpace(r.PostForm.Get("content"))})
	switch {
	case err == nil:
		redirectWithFlash(w, r, "/courses/"+url.PathEscape(id), "Comment added")
	case api.IsValidation(err):
		redirectWithFlash(w, r, "/courses/"+url.PathEscape(id), api.Message(err))
	default:
		h.fail(w, r, err)
	}
}

func categoryInput(r *http.Request) (catalog.CategoryInput, error) {
	in := catalog.CategoryInput{
		Name:        strings.TrimSpace(r.PostForm.Get("name")),
		Description: strings.TrimSpace(r.PostForm.Get("description")),
	}
	var err error
	in.Level, err = formInt(r, "level")
	return in, err
}

func (h *handlers) saveCategory(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	in, err := categoryInput(r)
	flash := "Category saved"
	if err == nil {
		if id := chi.URLParam(r, "id"); id != "" {
			_, err = h.catalog.UpdateCategory(r.Context(), id, in)
		} else {
			_, err = h.catalog.CreateCategory(r.Context(), in)
			flash = "Category created"
		}
	}
	switch {
	case err == nil:
		redirectWithFlash(w, r, pathAfterLogin, flash)
	case api.IsValidation(err):
		redirectWithFlash(w, r, pathAfterLogin, api.Message(err))
	default:
		h.fail(w, r, err)
	}
}

type categoriesPage struct {
	Categories []model.Category
}

func (h *handlers) categories(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cats, err := h.catalog.ListCategories(r.Context(), catalog.CategoryFilter{Search: q.Get("search")})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	catalog.SortCategories(cats, q.Get("orderBy"), q.Get("orderDir"))
	h.render(w, r, http.StatusOK, "categories.html", &template.Data{PageTitle: "Categories", Page: categoriesPage{Categories: cats}})
}

type categoryPage struct {
	Category *model.Category
	Courses  []model.Course
}

func (h *handlers) category(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	cat, err := h.catalog.GetCategory(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	courses, err := h.catalog.ListCourses(r.Context(), catalog.CourseFilter{CategoryID: id})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "category.html", &template.Data{PageTitle: cat.Name, Page: categoryPage{Category: cat, Courses: courses}})
}
