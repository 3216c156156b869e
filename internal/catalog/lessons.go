package catalog

import (
	"context"
	"net/http"
	"net/url"
	"sort"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/validation"
	"github.com/pkg/errors"
)

type LessonInput struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content,omitempty"`
	VideoURL string `json:"videoUrl,omitempty" validate:"omitempty,url"`
	Duration int    `json:"duration,omitempty" validate:"min=0"`
	// OrderIndex is the lesson's position in the course, numbered from 0.
	OrderIndex int `json:"orderIndex" validate:"min=0"`
}

// lessonOrder is the partial update that moves a lesson.
type lessonOrder struct {
	OrderIndex int `json:"orderIndex"`
}

func lessonPath(courseID, lessonID string) string {
	return coursePath(courseID, "lessons", url.PathEscape(lessonID))
}

// ListLessons returns the course's lessons sorted by OrderIndex.
func (c *Client) ListLessons(ctx context.Context, courseID string) ([]model.Lesson, error) {
	if courseID == "" {
		return nil, ErrMissingID
	}
	var out []model.Lesson
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: coursePath(courseID, "lessons")}, &out); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].OrderIndex < out[j].OrderIndex })
	return out, nil
}

func (c *Client) CreateLesson(ctx context.Context, courseID string, in LessonInput) (*model.Lesson, error) {
	if courseID == "" {
		return nil, ErrMissingID
	}
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Lesson
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPost, Path: coursePath(courseID, "lessons"), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateLesson(ctx context.Context, courseID, lessonID string, in LessonInput) (*model.Lesson, error) {
	if courseID == "" || lessonID == "" {
		return nil, ErrMissingID
	}
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Lesson
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPut, Path: lessonPath(courseID, lessonID), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DeleteLesson(ctx context.Context, courseID, lessonID string) error {
	if courseID == "" || lessonID == "" {
		return ErrMissingID
	}
	_, err := c.api.Envelope(ctx, api.Request{Method: http.MethodDelete, Path: lessonPath(courseID, lessonID)}, nil)
	return err
}

// SaveLessonOrder stores each lesson's OrderIndex with one update per
// lesson. It stops at the first failure; lessons already saved keep their
// new position.
func (c *Client) SaveLessonOrder(ctx context.Context, courseID string, lessons []model.Lesson) error {
	if courseID == "" {
		return ErrMissingID
	}
	for _, l := range lessons {
		if l.ID == "" {
			return ErrMissingID
		}
		req := api.Request{Method: http.MethodPut, Path: lessonPath(courseID, l.ID), Body: lessonOrder{OrderIndex: l.OrderIndex}}
		if _, err := c.api.Envelope(ctx, req, nil); err != nil {
			return errors.Wrapf(err, "move lesson %s", l.ID)
		}
	}
	return nil
}

// MoveLesson reloads the course's lessons, moves the one at from to
// position to and saves the new order.
func (c *Client) MoveLesson(ctx context.Context, courseID string, from, to int) ([]model.Lesson, error) {
	lessons, err := c.ListLessons(ctx, courseID)
	if err != nil {
		return nil, err
	}
	moved, err := ReorderLessons(lessons, from, to)
	if err != nil {
		return nil, err
	}
	if err := c.SaveLessonOrder(ctx, courseID, moved); err != nil {
		return nil, err
	}
	return moved, nil
}
