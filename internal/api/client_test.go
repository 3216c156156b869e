package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ghaggin/classroom/internal/config"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type staticSession struct {
	token string
}

func (s staticSession) Get(_ context.Context) (model.Session, error) {
	if s.token == "" {
		return model.Session{}, nil
	}
	return model.Session{User: &model.User{ID: "u1"}, Token: s.token}, nil
}

func newTestClient(t *testing.T, url, token string) *Client {
	t.Helper()
	c, err := New(Params{
		Config:  &config.Config{Backend: config.Backend{URL: url, Timeout: time.Second}},
		Log:     zap.NewNop(),
		Session: staticSession{token: token},
	})
	require.NoError(t, err)
	return c
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func TestClientSendsBearerAndRequestID(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	var got *http.Request
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "data": map[string]string{"id": "c1", "title": "Go"}})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "tok")
	var course model.Course
	_, err := c.Envelope(context.Background(), Request{Method: http.MethodGet, Path: "/api/courses/c1"}, &course)
	require.NoError(err)

	assert.Equal("Bearer tok", got.Header.Get("Authorization"))
	assert.NotEmpty(got.Header.Get(headerRequestID))
	assert.Equal("/api/courses/c1", got.URL.Path)
	assert.Equal("Go", course.Title)
}

func TestClientOmitsBearerWithoutToken(t *testing.T) {
	var auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		writeJSON(w, http.StatusOK, map[string]any{"success": true})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	_, err := c.Envelope(context.Background(), Request{Method: http.MethodGet, Path: "/api/courses"}, nil)
	require.NoError(t, err)
	assert.Empty(t, auth)
}

func TestClientUnauthorizedNotifiesSubscribers(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "token expired"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "tok")
	calls := 0
	c.Subscribe(func(context.Context) { calls++ })

	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/auth/me"}, nil)
	require.Error(err)
	assert.True(IsUnauthorized(err))
	assert.Equal(1, calls)
	assert.Equal("token expired", Message(err))
}

func TestClientCredentialRejection(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusUnauthorized, map[string]any{"message": "bad password"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	calls := 0
	c.Subscribe(func(context.Context) { calls++ })

	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/auth/login", Credentials: true}, nil)
	require.Error(err)
	assert.True(IsInvalidCredentials(err))
	assert.False(IsUnauthorized(err))
	assert.Zero(calls)
}

func TestClientValidationError(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{
			"message": "Email already registered",
			"errors":  []map[string]string{{"param": "email", "msg": "taken"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "")
	err := c.Do(context.Background(), Request{Method: http.MethodPost, Path: "/api/auth/register"}, nil)
	require.Error(err)

	var ve *ValidationError
	require.ErrorAs(err, &ve)
	assert.Equal("Email already registered", ve.Message)
	assert.Equal([]FieldError{{Field: "email", Error: "taken"}}, ve.Fields)
}

func TestClientEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "nope"})
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "tok")
	msg, err := c.Envelope(context.Background(), Request{Method: http.MethodPut, Path: "/api/users/profile"}, nil)
	require.Error(t, err)
	assert.True(t, IsValidation(err))
	assert.Equal(t, "nope", msg)
}

func TestClientServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := newTestClient(t, srv.URL, "tok")
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/auth/me"}, nil)

	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Code)
	assert.False(t, IsUnauthorized(err))
}

func TestClientNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := newTestClient(t, url, "tok")
	err := c.Do(context.Background(), Request{Method: http.MethodGet, Path: "/api/auth/me"}, nil)
	require.Error(t, err)
	assert.True(t, IsNetwork(err))
	assert.Equal(t, "Could not reach the server", Message(err))
}
