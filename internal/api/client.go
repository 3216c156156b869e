package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/ghaggin/classroom/internal/config"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const (
	headerRequestID = "X-Request-ID"

	maxBodyBytes = 4 << 20
)

// SessionReader supplies the bearer token for outgoing requests.
type SessionReader interface {
	Get(ctx context.Context) (model.Session, error)
}

// UnauthorizedHandler reacts to a 401 from the backend. ctx is the context of
// the request that was rejected.
type UnauthorizedHandler func(ctx context.Context)

type Client struct {
	base    *url.URL
	http    *http.Client
	session SessionReader
	log     *zap.Logger

	mu       sync.RWMutex
	handlers []UnauthorizedHandler
}

type Params struct {
	fx.In

	Config  *config.Config
	Log     *zap.Logger
	Session SessionReader
}

func New(p Params) (*Client, error) {
	base, err := url.Parse(p.Config.Backend.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parse backend url")
	}

	return &Client{
		base:    base,
		http:    &http.Client{Timeout: p.Config.Backend.Timeout},
		session: p.Session,
		log:     p.Log,
	}, nil
}

// Subscribe registers h to run on every 401 response.
func (c *Client) Subscribe(h UnauthorizedHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handlers = append(c.handlers, h)
}

func (c *Client) notifyUnauthorized(ctx context.Context) {
	c.mu.RLock()
	handlers := make([]UnauthorizedHandler, len(c.handlers))
	copy(handlers, c.handlers)
	c.mu.RUnlock()

	for _, h := range handlers {
		h(ctx)
	}
}

type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any

	// Credentials marks a credential exchange (login): a rejection means bad
	// credentials, not an expired session.
	Credentials bool
}

// Do sends req and decodes the JSON response body into out (when non-nil).
func (c *Client) Do(ctx context.Context, req Request, out any) error {
	u := c.base.JoinPath(req.Path)
	if len(req.Query) > 0 {
		u.RawQuery = req.Query.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return errors.Wrap(err, "encode request body")
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return errors.Wrap(err, "build request")
	}

	requestID := uuid.NewString()
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set(headerRequestID, requestID)

	sess, err := c.session.Get(ctx)
	if err != nil {
		return errors.Wrap(err, "read session")
	}
	if sess.Token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+sess.Token)
	}

	log := c.log.With(
		zap.String("request_id", requestID),
		zap.String("method", req.Method),
		zap.String("path", req.Path),
	)
	log.Debug("backend request", zap.Bool("bearer", sess.Token != ""))

	resp, err := c.http.Do(httpReq)
	if err != nil {
		log.Warn("backend unreachable", zap.Error(err))
		return &NetworkError{Op: req.Method + " " + req.Path, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &NetworkError{Op: "read " + req.Path, Err: err}
	}
	log.Debug("backend response", zap.Int("status", resp.StatusCode), zap.Int("bytes", len(raw)))

	if resp.StatusCode >= 300 {
		apiErr := c.statusError(req, resp.StatusCode, raw)
		if resp.StatusCode == http.StatusUnauthorized && !req.Credentials {
			log.Info("backend rejected session token")
			c.notifyUnauthorized(ctx)
		}
		return apiErr
	}

	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	return errors.Wrap(json.Unmarshal(raw, out), "decode response")
}

// Envelope sends req, expects the {success, data, message} shape and decodes
// data into out (when non-nil). success=false is a ValidationError.
func (c *Client) Envelope(ctx context.Context, req Request, out any) (string, error) {
	var env model.Envelope
	if err := c.Do(ctx, req, &env); err != nil {
		return "", err
	}
	if !env.Success {
		return env.Message, &ValidationError{Message: env.Message}
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return env.Message, errors.Wrap(err, "decode response data")
		}
	}
	return env.Message, nil
}

type errorBody struct {
	Message string `json:"message"`
	Error   string `json:"error"`
	Errors  []struct {
		Field   string `json:"field"`
		Param   string `json:"param"`
		Path    string `json:"path"`
		Message string `json:"message"`
		Msg     string `json:"msg"`
	} `json:"errors"`
}

func (c *Client) statusError(req Request, code int, raw []byte) error {
	var eb errorBody
	_ = json.Unmarshal(raw, &eb)

	msg := eb.Message
	if msg == "" {
		msg = eb.Error
	}
	if msg == "" && len(eb.Errors) == 0 {
		msg = strings.TrimSpace(string(raw))
		if strings.HasPrefix(msg, "<") || len(msg) > 200 {
			msg = ""
		}
	}

	switch {
	case req.Credentials && (code == http.StatusUnauthorized || code == http.StatusBadRequest):
		return &AuthError{Reason: InvalidCredentials, Message: msg}
	case code == http.StatusUnauthorized:
		return &AuthError{Reason: Unauthorized, Message: msg}
	case code == http.StatusBadRequest || code == http.StatusConflict || code == http.StatusUnprocessableEntity:
		ve := &ValidationError{Message: msg}
		for _, e := range eb.Errors {
			field := firstNonEmpty(e.Field, e.Param, e.Path)
			text := firstNonEmpty(e.Message, e.Msg)
			ve.Fields = append(ve.Fields, FieldError{Field: field, Error: text})
		}
		return ve
	default:
		return &StatusError{Code: code, Message: msg}
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
