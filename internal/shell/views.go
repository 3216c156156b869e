package shell

import (
	"context"
	"net/url"

	"github.com/ghaggin/classroom/internal/catalog"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
)

// show prints the view a render decision granted.
func (s *Shell) show(ctx context.Context, req guard.Request) error {
	route, params, ok := s.routes.Match(req.Path)
	if !ok {
		s.printf("no page at %s\n", req.Path)
		return nil
	}

	switch route.Name {
	case "home":
		s.printf("Welcome to the course platform.\n")
	case "login":
		s.printf("sign in with: login <email>\n")
	case "signup":
		s.printf("create an account with: register <email> <student|teacher> <name>\n")
	case "verify-email-notice":
		if email := queryValue(req.Path, "email"); email != "" {
			s.printf("a verification link was sent to %s; use verify <token> or resend\n", email)
		} else {
			s.printf("check your inbox for a verification link; use verify <token> or resend\n")
		}
	case "verify-email":
		return verify(ctx, s, []string{params["token"]})
	case "profile":
		return whoami(ctx, s, nil)
	case "courses":
		courses, err := s.catalog.ListCourses(ctx, catalog.CourseFilter{})
		if err != nil {
			return err
		}
		printCourses(s, courses)
	case "dashboard":
		return s.dashboard(ctx)
	case "course", "course-edit":
		return s.course(ctx, params["id"])
	case "course-create":
		s.printf("new courses are created from the web portal\n")
	case "categories":
		cats, err := s.catalog.ListCategories(ctx, catalog.CategoryFilter{})
		if err != nil {
			return err
		}
		catalog.SortCategories(cats, "name", "asc")
		for _, c := range cats {
			s.printf("  %-8s %s (level %d)\n", c.ID, c.Name, c.Level)
		}
	case "category":
		cat, err := s.catalog.GetCategory(ctx, params["id"])
		if err != nil {
			return err
		}
		s.printf("%s\n", cat.Name)
		courses, err := s.catalog.ListCourses(ctx, catalog.CourseFilter{CategoryID: cat.ID})
		if err != nil {
			return err
		}
		printCourses(s, courses)
	default:
		s.printf("%s\n", route.Name)
	}
	return nil
}

func (s *Shell) dashboard(ctx context.Context) error {
	u := s.provider.User()
	if u == nil {
		return nil
	}

	f := catalog.CourseFilter{Type: catalog.TypeEnrolled}
	heading := "Your courses"
	switch u.Role {
	case model.RoleTeacher:
		f.Type, heading = catalog.TypeTeaching, "Courses you teach"
	case model.RoleAdmin:
		f.Type, heading = "", "All courses"
	}

	courses, err := s.catalog.ListCourses(ctx, f)
	if err != nil {
		return err
	}
	s.printf("%s\n", heading)
	printCourses(s, courses)
	return nil
}

func (s *Shell) course(ctx context.Context, id string) error {
	c, err := s.catalog.GetCourse(ctx, id)
	if err != nil {
		return err
	}
	s.printf("%s\n%s\n", c.Title, c.Description)
	lessons, err := s.catalog.ListLessons(ctx, id)
	if err != nil {
		return err
	}
	printLessons(s, lessons)
	if p, err := s.catalog.CourseProgress(ctx, id); err == nil {
		s.printf("progress: %.0f%%\n", p.Percentage)
	}
	if comments, err := s.catalog.ListComments(ctx, id); err == nil && len(comments) > 0 {
		s.printf("comments:\n")
		for _, cm := range comments {
			author := cm.UserID
			if cm.User != nil {
				author = cm.User.Name
			}
			s.printf("  %s: %s\n", author, cm.Content)
		}
	}
	return nil
}

func printCourses(s *Shell, courses []model.Course) {
	if len(courses) == 0 {
		s.printf("  no courses\n")
		return
	}
	for _, c := range courses {
		s.printf("  %-8s %s\n", c.ID, c.Title)
	}
}

func printLessons(s *Shell, lessons []model.Lesson) {
	for i, l := range lessons {
		s.printf("  %d. %s\n", i+1, l.Title)
	}
}

func queryValue(location, key string) string {
	u, err := url.Parse(location)
	if err != nil {
		return ""
	}
	return u.Query().Get(key)
}
