package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/ghaggin/classroom/internal/config"
	"github.com/ghaggin/classroom/internal/model"
	"github.com/pkg/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var (
	errStoreFileIsDir = errors.New("store file is dir")
)

type fileData struct {
	Token string      `json:"token,omitempty"`
	User  *model.User `json:"user,omitempty"`
}

// FileStore keeps the session in a JSON file with the keys "token" and "user".
type FileStore struct {
	path string
	log  *zap.Logger

	mu   sync.RWMutex
	data fileData
}

type FileParams struct {
	fx.In

	LC     fx.Lifecycle
	Config *config.Config
	Log    *zap.Logger
}

func NewFile(p FileParams) (*FileStore, error) {
	s := OpenFile(p.Config.Store.Path, p.Log)

	p.LC.Append(fx.Hook{
		OnStop: s.stop,
	})

	return s, nil
}

// OpenFile loads the session file at path. A missing or unreadable file
// yields an empty session.
func OpenFile(path string, log *zap.Logger) *FileStore {
	s := &FileStore{
		path: path,
		log:  log,
	}

	err := s.readfile()
	if err != nil && !os.IsNotExist(err) {
		// only log, the file is rewritten on the next mutation
		s.log.Warn("failed reading session file", zap.String("path", path), zap.Error(err))
		s.data = fileData{}
	}

	return s
}

func (s *FileStore) stop(_ context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.writefile(s.data)
}

func (s *FileStore) readfile() error {
	finfo, err := os.Stat(s.path)
	if err != nil {
		return err
	}

	if finfo.IsDir() {
		return errStoreFileIsDir
	}

	b, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}
	if len(b) == 0 {
		return nil
	}

	return json.Unmarshal(b, &s.data)
}

// writefile replaces the session file with d through a temp file and a
// rename, so a failed write leaves the previous file intact.
func (s *FileStore) writefile(d fileData) error {
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode session file")
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return errors.Wrap(err, "mkdir session dir")
	}

	f, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp session file")
	}
	tmp := f.Name()

	_, err = f.Write(b)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Chmod(tmp, 0o600)
	}
	if err == nil {
		err = os.Rename(tmp, s.path)
	}
	if err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "write session file")
	}
	return nil
}

// commit persists d and only then makes it the in-memory session.
// Expects s.mu held for writing.
func (s *FileStore) commit(d fileData) error {
	if err := s.writefile(d); err != nil {
		return err
	}
	s.data = d
	return nil
}

func (s *FileStore) Get(_ context.Context) (model.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return model.Session{
		User:  cloneUser(s.data.User),
		Token: s.data.Token,
	}, nil
}

func (s *FileStore) Set(_ context.Context, user *model.User, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(fileData{Token: token, User: cloneUser(user)})
}

func (s *FileStore) SetUser(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(fileData{Token: s.data.Token, User: cloneUser(user)})
}

func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.commit(fileData{})
}
