package backendtest

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"strings"

	"github.com/ghaggin/classroom/internal/model"
	"github.com/go-chi/chi/v5"
)

func withUserID(r *http.Request, id string) context.Context {
	return context.WithValue(r.Context(), ctxKey{}, id)
}

func userID(r *http.Request) string {
	id, _ := r.Context().Value(ctxKey{}).(string)
	return id
}

// accountByIDLocked expects b.mu held.
func (b *Backend) accountByIDLocked(id string) *account {
	for _, a := range b.accounts {
		if a.user.ID == id {
			return a
		}
	}
	return nil
}

func (b *Backend) login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a, found := b.accounts[in.Email]
	if !found || a.password != in.Password {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "Invalid credentials"})
		return
	}
	tok := b.nextID("tok")
	b.tokens[tok] = a.user.ID
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": tok, "user": a.user})
}

func (b *Backend) register(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name     string     `json:"name"`
		Email    string     `json:"email"`
		Password string     `json:"password"`
		Role     model.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[in.Email]; exists {
		badRequest(w, "Email already registered")
		return
	}
	if in.Role == "" {
		in.Role = model.RoleStudent
	}
	u := model.User{ID: b.nextID("u"), Name: in.Name, Email: in.Email, Role: in.Role}
	b.accounts[in.Email] = &account{user: u, password: in.Password}
	tok := b.nextID("tok")
	b.tokens[tok] = u.ID
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "token": tok, "user": u})
}

func (b *Backend) me(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	a := b.accountByIDLocked(userID(r))
	if a == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"success": false, "message": "user gone"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "user": a.user})
}

func (b *Backend) updateProfile(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name         string `json:"name"`
		Bio          string `json:"bio"`
		ProfileImage string `json:"profileImage"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	a := b.accountByIDLocked(userID(r))
	if a == nil {
		notFound(w, "user")
		return
	}
	if in.Name != "" {
		a.user.Name = in.Name
	}
	if in.Bio != "" {
		a.user.Bio = in.Bio
	}
	if in.ProfileImage != "" {
		a.user.ProfileImage = in.ProfileImage
	}
	ok(w, a.user)
}

func (b *Backend) verifyEmail(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	email, found := b.verifyTok[chi.URLParam(r, "token")]
	if !found {
		badRequest(w, "Invalid or expired verification token")
		return
	}
	delete(b.verifyTok, chi.URLParam(r, "token"))
	if a, exists := b.accounts[email]; exists {
		a.user.IsVerified = true
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Email verified"})
}

func (b *Backend) resend(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Email string `json:"email"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.accounts[in.Email]; !exists {
		notFound(w, "user")
		return
	}
	b.verifyTok[b.nextID("verify")] = in.Email
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Verification email sent"})
}

func (b *Backend) listCourses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	uid := userID(r)

	b.mu.Lock()
	defer b.mu.Unlock()

	out := []model.Course{}
	for _, c := range b.courses {
		switch q.Get("type") {
		case "teaching":
			if c.CreatorID != uid {
				continue
			}
		case "enrolled":
			if !b.enrolled[uid][c.ID] {
				continue
			}
		}
		if cat := q.Get("categoryId"); cat != "" && c.CategoryID != cat {
			continue
		}
		if s := q.Get("search"); s != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(s)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	ok(w, out)
}

func (b *Backend) getCourse(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, found := b.courses[chi.URLParam(r, "id")]
	if !found {
		notFound(w, "course")
		return
	}
	ok(w, c)
}

func (b *Backend) createCourse(w http.ResponseWriter, r *http.Request) {
	var c model.Course
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c.ID = b.nextID("c")
	c.CreatorID = userID(r)
	c.Lessons = nil
	b.courses[c.ID] = &c
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": c})
}

func (b *Backend) updateCourse(w http.ResponseWriter, r *http.Request) {
	var in model.Course
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, found := b.courses[chi.URLParam(r, "id")]
	if !found {
		notFound(w, "course")
		return
	}
	in.ID = c.ID
	in.CreatorID = c.CreatorID
	in.Lessons = c.Lessons
	*c = in
	ok(w, c)
}

func (b *Backend) deleteCourse(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, found := b.courses[id]; !found {
		notFound(w, "course")
		return
	}
	delete(b.courses, id)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Course deleted"})
}

func (b *Backend) enroll(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, uid := chi.URLParam(r, "id"), userID(r)
	if _, found := b.courses[id]; !found {
		notFound(w, "course")
		return
	}
	if b.enrolled[uid] == nil {
		b.enrolled[uid] = map[string]bool{}
	}
	if b.enrolled[uid][id] {
		badRequest(w, "Already enrolled")
		return
	}
	b.enrolled[uid][id] = true
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Enrolled"})
}

func (b *Backend) completeLesson(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	id, lesson, uid := chi.URLParam(r, "id"), chi.URLParam(r, "lessonId"), userID(r)
	if b.progress[uid] == nil {
		b.progress[uid] = map[string][]string{}
	}
	b.progress[uid][id] = append(b.progress[uid][id], lesson)
	ok(w, b.progressLocked(uid, id))
}

func (b *Backend) courseProgress(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok(w, b.progressLocked(userID(r), chi.URLParam(r, "id")))
}

func (b *Backend) progressLocked(uid, courseID string) model.Progress {
	done := b.progress[uid][courseID]
	p := model.Progress{CourseID: courseID, CompletedLessons: append([]string{}, done...)}
	if c, found := b.courses[courseID]; found && len(c.Lessons) > 0 {
		p.Percentage = float64(len(done)) * 100 / float64(len(c.Lessons))
	}
	return p
}

func (b *Backend) rate(w http.ResponseWriter, r *http.Request) {
	var in model.Rating
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	in.UserID = userID(r)
	id := chi.URLParam(r, "id")
	b.ratings[id] = append(b.ratings[id], in)
	ok(w, in)
}

func (b *Backend) listRatings(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok(w, append([]model.Rating{}, b.ratings[chi.URLParam(r, "id")]...))
}

func (b *Backend) listCategories(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := []model.Category{}
	for _, c := range b.categories {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	ok(w, out)
}

func (b *Backend) getCategory(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, found := b.categories[chi.URLParam(r, "id")]
	if !found {
		notFound(w, "category")
		return
	}
	ok(w, c)
}

func (b *Backend) listLessons(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, found := b.courses[chi.URLParam(r, "id")]
	if !found {
		notFound(w, "course")
		return
	}
	out := append([]model.Lesson{}, c.Lessons...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	ok(w, out)
}

func (b *Backend) createLesson(w http.ResponseWriter, r *http.Request) {
	var in model.Lesson
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	c, found := b.courses[chi.URLParam(r, "id")]
	if !found {
		notFound(w, "course")
		return
	}
	if in.Title == "" {
		badRequest(w, "title is required")
		return
	}
	in.ID = b.nextID("l")
	in.CourseID = c.ID
	c.Lessons = append(c.Lessons, in)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": in})
}

// updateLesson applies only the fields present in the body.
func (b *Backend) updateLesson(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Title      *string `json:"title"`
		Content    *string `json:"content"`
		VideoURL   *string `json:"videoUrl"`
		Duration   *int    `json:"duration"`
		OrderIndex *int    `json:"orderIndex"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		badRequest(w, "invalid body")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	l := b.lessonLocked(chi.URLParam(r, "id"), chi.URLParam(r, "lessonId"))
	if l == nil {
		notFound(w, "lesson")
		return
	}
	if in.Title != nil {
		l.Title = *in.Title
	}
	if in.Content != nil {
		l.Content = *in.Content
	}
	if in.VideoURL != nil {
		l.VideoURL = *in.VideoURL
	}
	if in.Duration != nil {
		l.Duration = *in.Duration
	}
	if in.OrderIndex != nil {
		l.OrderIndex = *in.OrderIndex
	}
	ok(w, l)
}

func (b *Backend) deleteLesson(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()

	c, found := b.courses[chi.URLParam(r, "id")]
	if !found {
		notFound(w, "course")
		return
	}
	id := chi.URLParam(r, "lessonId")
	for i, l := range c.Lessons {
		if l.ID == id {
			c.Lessons = append(c.Lessons[:i], c.Lessons[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Lesson deleted"})
			return
		}
	}
	notFound(w, "lesson")
}

// lessonLocked expects b.mu held.
func (b *Backend) lessonLocked(courseID, lessonID string) *model.Lesson {
	c, found := b.courses[courseID]
	if !found {
		return nil
	}
	for i := range c.Lessons {
		if c.Lessons[i].ID == lessonID {
			return &c.Lessons[i]
		}
	}
	return nil
}

func (b *Backend) listComments(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ok(w, append([]model.Comment{}, b.comments[chi.URLParam(r, "id")]...))
}

func (b *Backend) addComment(w http.ResponseWriter, r *http.Request) {
	var in model.Comment
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || strings.TrimSpace(in.Content) == "" {
		badRequest(w, "content is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	id := chi.URLParam(r, "id")
	if _, found := b.courses[id]; !found {
		notFound(w, "course")
		return
	}
	in.ID = b.nextID("cm")
	in.UserID = userID(r)
	if a := b.accountByIDLocked(in.UserID); a != nil {
		u := a.user
		in.User = &u
	}
	// newest first
	b.comments[id] = append([]model.Comment{in}, b.comments[id]...)
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": in})
}

// isAdminLocked expects b.mu held.
func (b *Backend) isAdminLocked(r *http.Request) bool {
	a := b.accountByIDLocked(userID(r))
	return a != nil && a.user.Role == model.RoleAdmin
}

func (b *Backend) createCategory(w http.ResponseWriter, r *http.Request) {
	var in model.Category
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		badRequest(w, "name is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isAdminLocked(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "Admins only"})
		return
	}
	in.ID = b.nextID("cat")
	b.categories[in.ID] = &in
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "data": in})
}

func (b *Backend) updateCategory(w http.ResponseWriter, r *http.Request) {
	var in model.Category
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.Name == "" {
		badRequest(w, "name is required")
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.isAdminLocked(r) {
		writeJSON(w, http.StatusForbidden, map[string]any{"success": false, "message": "Admins only"})
		return
	}
	c, found := b.categories[chi.URLParam(r, "id")]
	if !found {
		notFound(w, "category")
		return
	}
	in.ID = c.ID
	*c = in
	ok(w, c)
}
