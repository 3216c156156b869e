package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadDefaultsWhenFileMissing(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(err)
	assert.Equal("http://localhost:5000", cfg.Backend.URL)
	assert.Equal(10*time.Second, cfg.Backend.Timeout)
	assert.Equal(8123, cfg.Portal.Port)
	assert.Equal("localhost:8123", cfg.Portal.Addr())
	assert.False(cfg.Portal.Secure())
	assert.NotEmpty(cfg.Store.Path)
}

func TestLoadYAML(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	path := writeFile(t, `
backend:
  url: https://api.example.com/
  timeout: 3s
portal:
  port: 9000
store:
  path: /tmp/session.json
`)

	cfg, err := Load(path)
	require.NoError(err)
	assert.Equal("https://api.example.com", cfg.Backend.URL)
	assert.Equal(3*time.Second, cfg.Backend.Timeout)
	assert.Equal(9000, cfg.Portal.Port)
	assert.Equal("/tmp/session.json", cfg.Store.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	require := require.New(t)
	assert := assert.New(t)

	path := writeFile(t, "backend:\n  url: https://file.example.com\n")
	t.Setenv("CLASSROOM_BACKEND_URL", "https://env.example.com")
	t.Setenv("CLASSROOM_PORT", "8500")

	cfg, err := Load(path)
	require.NoError(err)
	assert.Equal("https://env.example.com", cfg.Backend.URL)
	assert.Equal(8500, cfg.Portal.Port)
}

func TestLoadRejectsInvalid(t *testing.T) {
	t.Setenv("CLASSROOM_PORT", "not-a-port")
	_, err := Load("")
	require.Error(t, err)

	t.Setenv("CLASSROOM_PORT", "70000")
	_, err = Load("")
	require.Error(t, err)
}

func TestLoadRejectsMalformedYAML(t *testing.T) {
	_, err := Load(writeFile(t, "backend: [unterminated"))
	require.Error(t, err)
}

func TestSecureCookie(t *testing.T) {
	assert := assert.New(t)

	off, on := false, true
	for _, tt := range []struct {
		portal Portal
		secure bool
	}{
		{Portal{Host: "localhost"}, false},
		{Portal{Host: "127.0.0.1"}, false},
		{Portal{Host: "::1"}, false},
		{Portal{Host: ""}, true},
		{Portal{Host: "classroom.example.com"}, true},
		{Portal{Host: "0.0.0.0"}, true},
		{Portal{Host: "classroom.example.com", SecureCookie: &off}, false},
		{Portal{Host: "localhost", SecureCookie: &on}, true},
	} {
		assert.Equal(tt.secure, tt.portal.Secure(), "host %q", tt.portal.Host)
	}
}

func TestSecureCookieFromYAMLAndEnv(t *testing.T) {
	require := require.New(t)

	path := writeFile(t, "portal:\n  host: 0.0.0.0\n  secure_cookie: false\n")
	cfg, err := Load(path)
	require.NoError(err)
	require.False(cfg.Portal.Secure())

	t.Setenv("CLASSROOM_SECURE_COOKIE", "true")
	cfg, err = Load(path)
	require.NoError(err)
	require.True(cfg.Portal.Secure())

	t.Setenv("CLASSROOM_SECURE_COOKIE", "maybe")
	_, err = Load(path)
	require.Error(err)
}
