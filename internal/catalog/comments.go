package catalog

import (
	"context"
	"net/http"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/validation"
)

type CommentInput struct {
	Content string `json:"content" validate:"required,max=2000"`
}

func (c *Client) ListComments(ctx context.Context, courseID string) ([]model.Comment, error) {
	if courseID == "" {
		return nil, ErrMissingID
	}
	var out []model.Comment
	_, err := c.api.Envelope(ctx, api.Request{Method: http.MethodGet, Path: coursePath(courseID, "comments")}, &out)
	return out, err
}

func (c *Client) AddComment(ctx context.Context, courseID string, in CommentInput) (*model.Comment, error) {
	if courseID == "" {
		return nil, ErrMissingID
	}
	if err := validation.Check(in); err != nil {
		return nil, err
	}
	var out model.Comment
	if _, err := c.api.Envelope(ctx, api.Request{Method: http.MethodPost, Path: coursePath(courseID, "comments"), Body: in}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
