package profile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/helmcode/labellens/pkg/model"
)

// LoadFile reads a YAML profile. A missing file yields the default profile.
func LoadFile(path string) (model.UserProfile, error) {
	p := model.DefaultProfile()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return p, nil
		}
		return p, fmt.Errorf("read profile: %w", err)
	}
	if err := yaml.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse profile %s: %w", path, err)
	}
	if p.Flags == nil {
		p.Flags = []string{}
	}
	if err := p.Validate(); err != nil {
		return p, fmt.Errorf("profile %s: %w", path, err)
	}
	return p, nil
}

// SaveFile writes p as YAML, creating parent directories as needed.
func SaveFile(path string, p model.UserProfile) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal profile: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// FileStore is a MemoryStore seeded from a YAML file that can pick up edits
// made to that file while the process runs.
type FileStore struct {
	*MemoryStore
	path   string
	logger *zap.Logger
}

func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	p, err := LoadFile(path)
	if err != nil {
		return nil, err
	}
	return &FileStore{MemoryStore: NewMemoryStore(p), path: path, logger: logger}, nil
}

func (s *FileStore) Path() string { return s.path }

// Reload re-reads the file. An invalid file leaves the current profile untouched.
func (s *FileStore) Reload() error {
	p, err := LoadFile(s.path)
	if err != nil {
		return err
	}
	return s.Replace(p)
}

// Watch reloads the profile whenever its file is written or replaced, until ctx is done.
// The parent directory is watched since editors usually save by rename.
func (s *FileStore) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create profile watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(s.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}
	target := filepath.Clean(s.path)

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if err := s.Reload(); err != nil {
				s.logger.Warn("Profile reload failed", zap.String("path", s.path), zap.Error(err))
				continue
			}
			s.logger.Info("Profile reloaded", zap.String("path", s.path))
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Warn("Profile watcher error", zap.Error(err))
		}
	}
}
