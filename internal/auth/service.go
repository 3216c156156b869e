package auth

import (
	"context"
	"net/http"
	"net/url"

	"github.com/ghaggin/classroom/internal/api"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/ghaggin/classroom/internal/store"
	"github.com/ghaggin/classroom/internal/validation"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	pathLogin              = "/api/auth/login"
	pathRegister           = "/api/auth/register"
	pathMe                 = "/api/auth/me"
	pathVerifyEmail        = "/api/auth/verify-email"
	pathResendVerification = "/api/auth/resend-verification"
	pathProfile            = "/api/users/profile"
)

var (
	errMissingUser = errors.New("current user missing from response")
)

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type Registration struct {
	Name     string     `json:"name" validate:"required,min=2,max=80"`
	Email    string     `json:"email" validate:"required,email"`
	Password string     `json:"password" validate:"required,min=6"`
	Role     model.Role `json:"role,omitempty" validate:"omitempty,oneof=student teacher"`
}

type ProfileUpdate struct {
	Name         string `json:"name,omitempty" validate:"omitempty,min=2,max=80"`
	Bio          string `json:"bio,omitempty" validate:"max=500"`
	ProfileImage string `json:"profileImage,omitempty" validate:"omitempty,url"`
}

type Result struct {
	User  *model.User
	Token string
}

// Service performs the auth round trips and keeps the session store in step
// with their outcome. Every call is a single attempt.
type Service struct {
	client *api.Client
	store  store.Store
	log    *zap.Logger
}

type Params struct {
	fx.In

	Client *api.Client
	Store  store.Store
	Log    *zap.Logger
}

func New(p Params) *Service {
	return &Service{
		client: p.Client,
		store:  p.Store,
		log:    p.Log,
	}
}

func (s *Service) Login(ctx context.Context, c Credentials) (Result, error) {
	if err := validation.Check(c); err != nil {
		return Result{}, err
	}

	var p model.AuthPayload
	err := s.client.Do(ctx, api.Request{
		Method:      http.MethodPost,
		Path:        pathLogin,
		Body:        c,
		Credentials: true,
	}, &p)
	if err != nil {
		return Result{}, err
	}
	if p.Token == "" || p.User == nil {
		return Result{}, &api.AuthError{Reason: api.InvalidCredentials, Message: p.Message}
	}

	if err := s.store.Set(ctx, p.User, p.Token); err != nil {
		return Result{}, errors.Wrap(err, "persist session")
	}
	s.log.Info("logged in", zap.String("user_id", p.User.ID), zap.String("role", string(p.User.Role)))
	return Result{User: p.User, Token: p.Token}, nil
}

func (s *Service) Register(ctx context.Context, r Registration) (Result, error) {
	if err := validation.Check(r); err != nil {
		return Result{}, err
	}

	var p model.AuthPayload
	err := s.client.Do(ctx, api.Request{
		Method: http.MethodPost,
		Path:   pathRegister,
		Body:   r,
	}, &p)
	if err != nil {
		return Result{}, err
	}
	if p.Token == "" || p.User == nil {
		return Result{}, &api.ValidationError{Message: p.Message}
	}

	if err := s.store.Set(ctx, p.User, p.Token); err != nil {
		return Result{}, errors.Wrap(err, "persist session")
	}
	s.log.Info("registered", zap.String("user_id", p.User.ID))
	return Result{User: p.User, Token: p.Token}, nil
}

// CurrentUser fetches the session's user. On any failure the store is
// cleared: a cached user must not outlive a rejected token.
func (s *Service) CurrentUser(ctx context.Context) (*model.User, error) {
	var p model.AuthPayload
	err := s.client.Do(ctx, api.Request{Method: http.MethodGet, Path: pathMe}, &p)
	if err == nil && p.User == nil {
		err = errMissingUser
	}
	if err != nil {
		if cerr := s.store.Clear(ctx); cerr != nil {
			s.log.Error("failed clearing session", zap.Error(cerr))
		}
		return nil, err
	}

	if err := s.store.SetUser(ctx, p.User); err != nil {
		return nil, errors.Wrap(err, "persist user")
	}
	return p.User, nil
}

func (s *Service) UpdateProfile(ctx context.Context, u ProfileUpdate) (*model.User, error) {
	if err := validation.Check(u); err != nil {
		return nil, err
	}

	var user model.User
	_, err := s.client.Envelope(ctx, api.Request{
		Method: http.MethodPut,
		Path:   pathProfile,
		Body:   u,
	}, &user)
	if err != nil {
		return nil, err
	}

	if err := s.store.SetUser(ctx, &user); err != nil {
		return nil, errors.Wrap(err, "persist user")
	}
	return &user, nil
}

// VerifyEmail redeems a verification token and returns the server's message.
func (s *Service) VerifyEmail(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", &api.ValidationError{Message: "verification token is required"}
	}
	return s.client.Envelope(ctx, api.Request{
		Method: http.MethodGet,
		Path:   pathVerifyEmail + "/" + url.PathEscape(token),
	}, nil)
}

func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	req := struct {
		Email string `json:"email" validate:"required,email"`
	}{Email: email}
	if err := validation.Check(req); err != nil {
		return "", err
	}
	return s.client.Envelope(ctx, api.Request{
		Method: http.MethodPost,
		Path:   pathResendVerification,
		Body:   req,
	}, nil)
}

// Logout forgets the session locally. The backend keeps no logout endpoint.
func (s *Service) Logout(ctx context.Context) error {
	return s.store.Clear(ctx)
}
