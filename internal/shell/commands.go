package shell

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/ghaggin/classroom/internal/auth"
	"github.com/ghaggin/classroom/internal/catalog"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/pkg/errors"
)

type command struct {
	usage string
	args  int
	run   func(ctx context.Context, s *Shell, args []string) error
}

var commands map[string]command

func init() {
	commands = map[string]command{
		"help":     {usage: "help", run: help},
		"go":       {usage: "go <path>", args: 1, run: goTo},
		"login":    {usage: "login <email>", args: 1, run: login},
		"register": {usage: "register <email> <role> <name...>", args: 3, run: register},
		"logout":   {usage: "logout", run: logout},
		"whoami":   {usage: "whoami", run: whoami},
		"verify":   {usage: "verify <token>", args: 1, run: verify},
		"resend":   {usage: "resend [email]", run: resend},
		"profile":  {usage: "profile <name|bio|image> <value...>", args: 2, run: profile},
		"search":   {usage: "search <query...>", args: 1, run: search},
		"enroll":   {usage: "enroll <course>", args: 1, run: enroll},
		"complete": {usage: "complete <course> <lesson>", args: 2, run: complete},
		"rate":     {usage: "rate <course> <1-5> [comment...]", args: 2, run: rate},
		"reorder":  {usage: "reorder <course> <from> <to>", args: 3, run: reorder},
		"comment":  {usage: "comment <course> <text...>", args: 2, run: comment},
	}
}

func help(_ context.Context, s *Shell, _ []string) error {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		s.printf("  %s\n", commands[name].usage)
	}
	s.printf("  q\n")
	return nil
}

func goTo(ctx context.Context, s *Shell, args []string) error {
	return s.navigate(ctx, args[0])
}

func login(ctx context.Context, s *Shell, args []string) error {
	pw, err := s.password("password")
	if err != nil {
		return err
	}

	res, err := s.provider.Login(ctx, auth.Credentials{Email: args[0], Password: pw})
	if err != nil {
		return err
	}
	s.printf("signed in as %s (%s)\n", res.User.Email, res.User.Role)
	return s.afterLogin(ctx)
}

func register(ctx context.Context, s *Shell, args []string) error {
	pw, err := s.password("choose a password")
	if err != nil {
		return err
	}

	res, err := s.provider.Register(ctx, auth.Registration{
		Email:    args[0],
		Role:     model.Role(args[1]),
		Name:     strings.Join(args[2:], " "),
		Password: pw,
	})
	if err != nil {
		return err
	}
	s.printf("account created for %s\n", res.User.Email)
	if !res.User.IsVerified {
		return s.navigate(ctx, guard.RedirectURL(guard.Decision{Target: guard.PathVerifyNotice, Email: res.User.Email}))
	}
	return s.afterLogin(ctx)
}

func logout(ctx context.Context, s *Shell, _ []string) error {
	s.provider.Logout(ctx)
	s.printf("signed out\n")
	return nil
}

func whoami(ctx context.Context, s *Shell, _ []string) error {
	u := s.provider.User()
	if u == nil || !s.provider.IsAuthenticated(ctx) {
		s.printf("not signed in\n")
		return nil
	}
	verified := "verified"
	if !u.IsVerified {
		verified = "unverified"
	}
	s.printf("%s <%s> %s, %s\n", u.Name, u.Email, u.Role, verified)
	return nil
}

func verify(ctx context.Context, s *Shell, args []string) error {
	msg, err := s.auth.VerifyEmail(ctx, args[0])
	if err != nil {
		return err
	}
	s.printf("%s\n", orDefault(msg, "email verified"))

	// Pick up the new verification flag.
	if s.provider.IsAuthenticated(ctx) {
		u, err := s.auth.CurrentUser(ctx)
		if err != nil {
			return err
		}
		return s.provider.UpdateUser(ctx, u)
	}
	return nil
}

func resend(ctx context.Context, s *Shell, args []string) error {
	var email string
	if len(args) > 0 {
		email = args[0]
	} else if u := s.provider.User(); u != nil {
		email = u.Email
	}
	if email == "" {
		return errors.New("no email to send to")
	}

	msg, err := s.auth.ResendVerification(ctx, email)
	if err != nil {
		return err
	}
	s.printf("%s\n", orDefault(msg, "verification email sent"))
	return nil
}

func profile(ctx context.Context, s *Shell, args []string) error {
	u := s.provider.User()
	if u == nil {
		return errors.New("not signed in")
	}

	upd := auth.ProfileUpdate{Name: u.Name, Bio: u.Bio, ProfileImage: u.ProfileImage}
	value := strings.Join(args[1:], " ")
	switch args[0] {
	case "name":
		upd.Name = value
	case "bio":
		upd.Bio = value
	case "image":
		upd.ProfileImage = value
	default:
		return errors.Errorf("unknown profile field %q", args[0])
	}

	updated, err := s.provider.UpdateProfile(ctx, upd)
	if err != nil {
		return err
	}
	s.printf("profile updated: %s\n", updated.Name)
	return nil
}

func search(ctx context.Context, s *Shell, args []string) error {
	all, err := s.catalog.ListCourses(ctx, catalog.CourseFilter{})
	if err != nil {
		return err
	}
	printCourses(s, catalog.FilterCourses(all, strings.Join(args, " "), ""))
	return nil
}

func enroll(ctx context.Context, s *Shell, args []string) error {
	msg, err := s.catalog.Enroll(ctx, args[0])
	if err != nil {
		return err
	}
	s.printf("%s\n", orDefault(msg, "enrolled"))
	return nil
}

func complete(ctx context.Context, s *Shell, args []string) error {
	p, err := s.catalog.CompleteLesson(ctx, args[0], args[1])
	if err != nil {
		return err
	}
	s.printf("progress: %.0f%%\n", p.Percentage)
	return nil
}

func rate(ctx context.Context, s *Shell, args []string) error {
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return errors.Errorf("rating must be a number, got %q", args[1])
	}
	if _, err := s.catalog.RateCourse(ctx, args[0], catalog.RatingInput{Rating: n, Comment: strings.Join(args[2:], " ")}); err != nil {
		return err
	}
	s.printf("thanks for rating\n")
	return nil
}

// reorder moves a lesson within a course the caller may edit. Positions are
// 1-based as printed by the course view.
func reorder(ctx context.Context, s *Shell, args []string) error {
	id := args[0]
	from, err1 := strconv.Atoi(args[1])
	to, err2 := strconv.Atoi(args[2])
	if err1 != nil || err2 != nil {
		return errors.New("positions must be numbers")
	}

	edit := "/courses/" + id + "/edit"
	t, err := s.routes.Resolve(edit)
	if err != nil {
		return err
	}
	if t.Policy != nil {
		if d := guard.Evaluate(ctx, s.provider, *t.Policy, t.Request); d.Kind != guard.Render {
			s.printf("%s\n", d)
			return nil
		}
	}

	lessons, err := s.catalog.MoveLesson(ctx, id, from-1, to-1)
	if err != nil {
		return err
	}
	printLessons(s, lessons)
	return nil
}

func comment(ctx context.Context, s *Shell, args []string) error {
	if _, err := s.catalog.AddComment(ctx, args[0], catalog.CommentInput{Content: strings.Join(args[1:], " ")}); err != nil {
		return err
	}
	s.printf("comment posted\n")
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
