// Package shell is the interactive terminal client. It keeps one session
// provider for the life of the process and drives the route guard through a
// navigator, so permission checks resolve asynchronously.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/auth"
	"github.com/ghaggin/classroom/internal/catalog"
	"github.com/ghaggin/classroom/internal/guard"
	"github.com/ghaggin/classroom/internal/routes"
	"github.com/ghaggin/classroom/internal/session"
	"github.com/ghaggin/classroom/internal/store"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"golang.org/x/term"
)

const (
	prompt       = "> "
	maxRedirects = 5
)

type Shell struct {
	log      *zap.Logger
	auth     *auth.Service
	catalog  *catalog.Client
	routes   *routes.Table
	provider *session.Provider
	nav      *guard.Navigator

	in  *bufio.Scanner
	out io.Writer
	// readPassword is nil when input is not a terminal; passwords are then
	// read as the next input line.
	readPassword func() (string, error)

	outMu sync.Mutex
	// from is the location a login redirect interrupted.
	from string
}

type Params struct {
	fx.In

	Log     *zap.Logger
	Store   *store.FileStore
	Client  *api.Client
	Auth    *auth.Service
	Catalog *catalog.Client
	Routes  *routes.Table
}

func New(p Params) *Shell {
	return NewWithIO(context.Background(), p, os.Stdin, os.Stdout)
}

// NewWithIO builds a shell reading commands from in and writing to out.
func NewWithIO(ctx context.Context, p Params, in io.Reader, out io.Writer) *Shell {
	s := &Shell{
		log:     p.Log,
		auth:    p.Auth,
		catalog: p.Catalog,
		routes:  p.Routes,
		in:      bufio.NewScanner(in),
		out:     out,
	}
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fd := int(f.Fd())
		s.readPassword = func() (string, error) {
			b, err := term.ReadPassword(fd)
			fmt.Fprintln(out)
			return string(b), err
		}
	}

	s.provider = session.NewProvider(ctx, p.Auth, p.Store, p.Log)
	session.RegisterUnauthorizedHandler(p.Client, p.Store, s.provider, p.Log)

	s.nav = guard.NewNavigator(ctx, s.provider, p.Routes, p.Log)
	s.nav.OnDecision(s.printDecision)
	return s
}

func RegisterHooks(lc fx.Lifecycle, s *Shell, sd fx.Shutdowner) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := s.Run(context.Background()); err != nil {
					s.log.Error("shell stopped", zap.Error(err))
				}
				_ = sd.Shutdown()
			}()
			return nil
		},
		OnStop: func(context.Context) error {
			s.nav.Close()
			return nil
		},
	})
}

// Run bootstraps the session and reads commands until "q" or end of input.
func (s *Shell) Run(ctx context.Context) error {
	s.provider.Bootstrap(ctx)
	if u := s.provider.User(); u != nil && s.provider.IsAuthenticated(ctx) {
		s.printf("signed in as %s (%s)\n", u.Email, u.Role)
	}
	s.printf("type help for commands, q to exit\n")

	for {
		s.printf(prompt)
		if !s.in.Scan() {
			return s.in.Err()
		}
		line := strings.TrimSpace(s.in.Text())
		if line == "" {
			continue
		}
		if line == "q" || line == "quit" {
			s.printf("exiting\n")
			return nil
		}

		args := strings.Fields(line)
		cmd, ok := commands[args[0]]
		if !ok {
			s.printf("unknown command %q, type help\n", args[0])
			continue
		}
		if len(args)-1 < cmd.args {
			s.printf("usage: %s\n", cmd.usage)
			continue
		}
		if err := cmd.run(ctx, s, args[1:]); err != nil {
			s.printf("error: %s\n", api.Message(err))
		}
	}
}

func (s *Shell) printf(format string, a ...any) {
	s.outMu.Lock()
	defer s.outMu.Unlock()
	fmt.Fprintf(s.out, format, a...)
}

func (s *Shell) printDecision(d guard.Decision) {
	switch {
	case d.Kind == guard.Loading:
		s.printf("checking session...\n")
	case d.Stage == guard.PendingPermission:
		s.printf("checking access to %s...\n", d.Request.Path)
	case d.Kind == guard.Redirect:
		s.printf("%s\n", d)
	}
}

func (s *Shell) password(label string) (string, error) {
	s.printf("%s: ", label)
	if s.readPassword != nil {
		return s.readPassword()
	}
	if !s.in.Scan() {
		if err := s.in.Err(); err != nil {
			return "", err
		}
		return "", io.ErrUnexpectedEOF
	}
	return strings.TrimSpace(s.in.Text()), nil
}

// navigate follows redirects until a view renders or is not found, then
// shows it.
func (s *Shell) navigate(ctx context.Context, location string) error {
	for i := 0; i < maxRedirects; i++ {
		if _, err := s.nav.Navigate(location); err != nil {
			s.printf("no page at %s\n", location)
			return nil
		}
		s.nav.Wait()

		d := s.nav.Current()
		switch d.Kind {
		case guard.Render:
			return s.show(ctx, d.Request)
		case guard.Redirect:
			if d.Reason == guard.ReasonUnauthenticated {
				s.from = d.From
			}
			location = guard.RedirectURL(d)
		default:
			s.printf("%s\n", d)
			return nil
		}
	}
	s.printf("too many redirects\n")
	return nil
}

// afterLogin resumes the location a login redirect interrupted.
func (s *Shell) afterLogin(ctx context.Context) error {
	target := s.from
	s.from = ""
	if target == "" || strings.HasPrefix(target, guard.PathLogin) {
		target = "/dashboard"
	}
	return s.navigate(ctx, target)
}
