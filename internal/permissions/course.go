package permissions

import (
	"context"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
	"go.uber.org/zap"
)

type CourseGetter interface {
	GetCourse(ctx context.Context, id string) (*model.Course, error)
}

// CourseOwner allows the course's creator and admins. It fails closed: a
// course that cannot be fetched is not editable.
type CourseOwner struct {
	courses CourseGetter
	session api.SessionReader
	log     *zap.Logger
}

var _ guard.PermissionCheck = (*CourseOwner)(nil)

func NewCourseOwner(courses CourseGetter, session api.SessionReader, log *zap.Logger) *CourseOwner {
	return &CourseOwner{courses: courses, session: session, log: log}
}

func (c *CourseOwner) Allowed(ctx context.Context, params guard.Params) (bool, error) {
	id := params["id"]
	if id == "" {
		return false, nil
	}

	sess, err := c.session.Get(ctx)
	if err != nil || sess.User == nil {
		return false, err
	}

	course, err := c.courses.GetCourse(ctx, id)
	if err != nil {
		c.log.Debug("course permission fetch failed", zap.String("course_id", id), zap.Error(err))
		return false, nil
	}

	return course.CreatorID == sess.User.ID || sess.User.Role == model.RoleAdmin, nil
}
