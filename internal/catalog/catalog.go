package catalog

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/validation"
	"github.com/pkg/errors"
)

const (
	pathCourses    = "/api/courses"
	pathCategories = "/api/categories"

	TypeTeaching = "teaching"
	TypeEnrolled = "enrolled"
)

var (
	ErrMissingID = errors.New("id is required")

	ErrLessonPosition = errors.New("lesson position out of range")
)

type CourseFilter struct {
	Search     string
	CategoryID string
	Level      string
	// Type is TypeTeaching or TypeEnrolled; empty lists the whole catalog.
	Type string
}

func (f CourseFilter) query() url.Values {
	q := url.Values{}
	for k, v := range map[string]string{
		"search":     f.Search,
		"categoryId": f.CategoryID,
		"level":      f.Level,
		"type":       f.Type,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}
	return q
}

type CategoryFilter struct {
	Level    int
	Search   string
	OrderBy  string
	OrderDir string
}

func (f CategoryFilter) query() url.Values {
	q := url.Values{}
	if f.Level > 0 {
		q.Set("level", strconv.Itoa(f.Level))
	}
	if f.Search != "" {
		q.Set("search", f.Search)
	}
	if f.OrderBy != "" {
		q.Set("orderBy", f.OrderBy)
	}
	if f.OrderDir != "" {
		q.Set("orderDir", f.OrderDir)
	}
	return q
}

// CourseInput carries the course's own fields. Lessons are written through
// the lesson operations.
type CourseInput struct {
	Title       string `json:"title" validate:"required,min=3,max=120"`
	Description string `json:"description" validate:"required"`
	CategoryID  string `json:"categoryId,omitempty"`
	Level       string `json:"level,omitempty" validate:"omitempty,oneof=beginner intermediate advanced"`
}

type CategoryInput struct {
	Name        string `json:"name" validate:"required,min=2,max=80"`
	Description string `json:"description,omitempty" validate:"max=500"`
	Level       int    `json:"level" validate:"min=0"`
}

type RatingInput struct {
	Rating  int    `json:"rating" validate:"min=1,max=5"`
	Comment string `json:"comment,omitempty" validate:"max=1000"`
}

// Client wraps the course, category, progress and rating endpoints.
type Client struct {
	api *api.Client
}

func New(c *api.Client) *Client {
	return &Client{api: c}
}

func coursePath(id string, rest ...string) string {
	p := pathCourses + "/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

func (c *Client) ListCourses(ctx context.Context, f CourseFilter) ([]model.Course, error) {
	var out []model.Course
	_, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: pathCourses, Query: f.query()}, &out)
	return out, err
}

func (c *Client) GetCourse(ctx context.Context, id string) (*model.Course, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var out model.Course
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: coursePath(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateCourse(ctx context.Context, in CourseInput) (*model.Course, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Course
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPost, Path: pathCourses, Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCourse(ctx context.Context, id string, in CourseInput) (*model.Course, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Course
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPut, Path: coursePath(id), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteCourse(ctx context.Context, id string) error {
	if id == "" {
		return ErrMissingID
	}
	_, err := c.api.Envelope(ctx, api.Request{Method: http.MethodDelete, Path: coursePath(id)}, nil)
	return err
}

func (c *Client) Enroll(ctx context.Context, courseID string) (string, error) {
	if courseID == "" {
		return "", ErrMissingID
	}
	return c.api.Envelope(ctx, api.Request{Method: http.MethodPost, Path: coursePath(courseID, "enroll")}, nil)
}

func (c *Client) ListCategories(ctx context.Context, f CategoryFilter) ([]model.Category, error) {
	var out []model.Category
	_, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: pathCategories, Query: f.query()}, &out)
	return out, err
}

func (c *Client) GetCategory(ctx context.Context, id string) (*model.Category, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	var out model.Category
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: categoryPath(id)}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func categoryPath(id string) string {
	return pathCategories + "/" + url.PathEscape(id)
}

// CreateCategory is admin only on the backend.
func (c *Client) CreateCategory(ctx context.Context, in CategoryInput) (*model.Category, error) {
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Category
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPost, Path: pathCategories, Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateCategory(ctx context.Context, id string, in CategoryInput) (*model.Category, error) {
	if id == "" {
		return nil, ErrMissingID
	}
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Category
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPut, Path: categoryPath(id), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CompleteLesson(ctx context.Context, courseID, lessonID string) (*model.Progress, error) {
	if courseID == "" || lessonID == "" {
		return nil, ErrMissingID
	}
	var out model.Progress
	path := coursePath(courseID, "lessons", url.PathEscape(lessonID), "complete")
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPost, Path: path}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CourseProgress(ctx context.Context, courseID string) (*model.Progress, error) {
	if courseID == "" {
		return nil, ErrMissingID
	}
	var out model.Progress
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: coursePath(courseID, "progress")}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) RateCourse(ctx context.Context, courseID string, in RatingInput) (*model.Rating, error) {
	if courseID == "" {
		return nil, ErrMissingID
	}
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Rating
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPost, Path: coursePath(courseID, "rate"), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CourseRatings(ctx context.Context, courseID string) ([]model.Rating, error) {
	if courseID == "" {
		return nil, ErrMissingID
	}
	var out []model.Rating
	_, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: coursePath(courseID, "ratings")}, &out)
	return out, err
}
