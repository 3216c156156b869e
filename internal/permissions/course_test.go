package permissions

import (
	"context"
	"testing"

	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type courses map[string]model.Course

func (c courses) GetCourse(_ context.Context, id string) (*model.Course, error) {
	course, ok := c[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return &course, nil
}

type sessionOf struct {
	user *model.User
}

func (s sessionOf) Get(context.Context) (model.Session, error) {
	return model.Session{User: s.user, Token: "tok"}, nil
}

func TestCourseOwner(t *testing.T) {
	catalog := courses{
		"c1": {ID: "c1", CreatorID: "t1"},
		"c2": {ID: "c2", CreatorID: "t2"},
	}
	owner := &model.User{ID: "t1", Role: model.RoleTeacher}
	admin := &model.User{ID: "a1", Role: model.RoleAdmin}

	tests := []struct {
		name   string
		user   *model.User
		params guard.Params
		want   bool
	}{
		{"creator", owner, guard.Params{"id": "c1"}, true},
		{"other teacher", owner, guard.Params{"id": "c2"}, false},
		{"admin", admin, guard.Params{"id": "c2"}, true},
		{"missing course fails closed", admin, guard.Params{"id": "nope"}, false},
		{"missing param", admin, guard.Params{}, false},
		{"no session", nil, guard.Params{"id": "c1"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			check := NewCourseOwner(catalog, sessionOf{user: tt.user}, zap.NewNop())
			ok, err := check.Allowed(context.Background(), tt.params)
			require.NoError(t, err)
			assert.Equal(t, tt.want, ok)
		})
	}
}
