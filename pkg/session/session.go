package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/google/uuid"
)

const (
	appName         = "blogsearch"
	sessionMetaFile = "session.toml"
)

type sessionMeta struct {
	SessionID  string    `toml:"session_id"`
	Timestamp  time.Time `toml:"timestamp"`
	WorkingDir string    `toml:"path"`
}

type logHandler struct {
	f *os.File
	h slog.Handler
}

func newLogHandler(p string, opts *slog.HandlerOptions) (*logHandler, error) {
	f, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	return &logHandler{
		f: f,
		h: slog.NewJSONHandler(f, opts),
	}, nil
}

func (h *logHandler) Close() error {
	return h.f.Close()
}

// Session holds the log files of one process run. Nothing in it outlives the
// process except the logs themselves.
type Session struct {
	meta        sessionMeta
	sessionPath string
	level       slog.Leveler

	mu       sync.Mutex
	handlers map[string]*logHandler
	files    map[string]*os.File
}

func (s *Session) ID() string {
	return s.meta.SessionID
}

func (s *Session) Timestamp() time.Time {
	return s.meta.Timestamp
}

// Path returns the directory holding the session files.
func (s *Session) Path() string {
	return s.sessionPath
}

func (s *Session) init() error {
	if err := os.MkdirAll(s.sessionPath, 0755); err != nil {
		return err
	}
	metaFile := filepath.Join(s.sessionPath, sessionMetaFile)
	encodedMeta, err := toml.Marshal(s.meta)
	if err != nil {
		return err
	}
	return os.WriteFile(metaFile, encodedMeta, 0644)
}

func (s *Session) logPath() string {
	return filepath.Join(s.sessionPath, "logs")
}

func (s *Session) NewLogHandler(name string) (slog.Handler, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handlers[name]
	if ok {
		return h.h, nil
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("malformed log name %s", name)
	}
	var pathName string = name
	if !strings.Contains(name, ".") {
		pathName = name + ".jsonl"
	}
	if err := os.MkdirAll(s.logPath(), 0755); err != nil {
		return nil, err
	}
	h, err := newLogHandler(filepath.Join(s.logPath(), pathName), &slog.HandlerOptions{
		AddSource: true,
		Level:     s.level,
	})
	if err != nil {
		return nil, err
	}
	s.handlers[name] = h
	return h.h, nil
}

// GetLogFile opens a plain log file of the session for raw traces.
func (s *Session) GetLogFile(name string) (io.Writer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok := s.files[name]; ok {
		return f, nil
	}
	if strings.Contains(name, "/") {
		return nil, fmt.Errorf("malformed log name %s", name)
	}
	if err := os.MkdirAll(s.logPath(), 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(s.logPath(), name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return nil, err
	}
	s.files[name] = f
	return f, nil
}

// GetLogger returns the logger writing into the named log file of the session.
func (s *Session) GetLogger(name string) (*slog.Logger, error) {
	h, err := s.NewLogHandler(name)
	if err != nil {
		return nil, err
	}
	return slog.New(h), nil
}

func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var allerr error
	for name, h := range s.handlers {
		err := h.Close()
		if err != nil {
			allerr = errors.Join(allerr, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	for name, f := range s.files {
		if err := f.Close(); err != nil {
			allerr = errors.Join(allerr, fmt.Errorf("failed to close %s: %w", name, err))
		}
	}
	s.handlers = map[string]*logHandler{}
	s.files = map[string]*os.File{}
	return allerr
}

// New creates a session under the user cache directory. When the cache
// directory is unavailable it falls back to a temporary directory.
func New(cwd string, level slog.Leveler) (*Session, error) {
	cacheDir, err := os.UserCacheDir()
	if err != nil {
		log.Printf("Failed to obtain the user cache dir: %v", err)
		log.Printf("Falls back to the temporary directory...")
		cacheDir, err = os.MkdirTemp("", appName)
		if err != nil {
			return nil, err
		}
	}
	return NewInDir(filepath.Join(cacheDir, appName), cwd, level)
}

// NewInDir creates a session whose files live in baseDir/sessions/<id>.
func NewInDir(baseDir, cwd string, level slog.Leveler) (*Session, error) {
	sessionUUID, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	if level == nil {
		level = slog.LevelInfo
	}
	s := &Session{
		meta: sessionMeta{
			SessionID:  sessionUUID.String(),
			Timestamp:  time.Now(),
			WorkingDir: cwd,
		},
		sessionPath: filepath.Join(baseDir, "sessions", sessionUUID.String()),
		level:       level,
		handlers:    map[string]*logHandler{},
		files:       map[string]*os.File{},
	}
	if err := s.init(); err != nil {
		return nil, err
	}
	return s, nil
}
