package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/borzov/photo-validation-service/pkg/schema"
)

// FileStore persists the configuration document as JSON on disk. Every save
// snapshots the previous document into a timestamped backup, keeping the
// most recent maxBackups.
type FileStore struct {
	path       string
	backupDir  string
	maxBackups int
}

const defaultMaxBackups = 10

// NewFileStore creates a store for the given path. Backups live in a
// "backups" directory next to the configuration file.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path:       path,
		backupDir:  filepath.Join(filepath.Dir(path), "backups"),
		maxBackups: defaultMaxBackups,
	}
}

// Load reads and parses the configuration file.
func (s *FileStore) Load() (*schema.Configuration, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, schema.NewErrorf(schema.ErrCodeNotFound,
				"configuration file %s does not exist", s.path).WithCause(err)
		}
		return nil, schema.NewError(schema.ErrCodeStore, "failed to read configuration file").WithCause(err)
	}
	return Load(data)
}

// Save backs up the existing document, stamps LastModified, and writes the
// new document atomically via a rename.
func (s *FileStore) Save(cfg *schema.Configuration) error {
	if err := s.backup(); err != nil {
		return err
	}

	stamped := cfg.Clone()
	stamped.LastModified = time.Now().UTC()

	data, err := Export(stamped)
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return schema.NewError(schema.ErrCodeStore, "failed to create configuration directory").WithCause(err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return schema.NewError(schema.ErrCodeStore, "failed to write configuration file").WithCause(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return schema.NewError(schema.ErrCodeStore, "failed to replace configuration file").WithCause(err)
	}
	return nil
}

// backup copies the current document into the backup directory. Missing
// current document is not an error; first save has nothing to back up.
func (s *FileStore) backup() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return schema.NewError(schema.ErrCodeStore, "failed to read configuration for backup").WithCause(err)
	}

	if err := os.MkdirAll(s.backupDir, 0o755); err != nil {
		return schema.NewError(schema.ErrCodeStore, "failed to create backup directory").WithCause(err)
	}

	name := fmt.Sprintf("config_%s.json", time.Now().UTC().Format("20060102T150405.000000000"))
	backupPath := filepath.Join(s.backupDir, name)
	if err := os.WriteFile(backupPath, data, 0o644); err != nil {
		return schema.NewError(schema.ErrCodeStore, "failed to write backup").WithCause(err)
	}
	return s.TrimBackups()
}

// Backups lists backup file paths, newest first.
func (s *FileStore) Backups() ([]string, error) {
	entries, err := os.ReadDir(s.backupDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, schema.NewError(schema.ErrCodeStore, "failed to list backups").WithCause(err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || !strings.HasPrefix(e.Name(), "config_") {
			continue
		}
		paths = append(paths, filepath.Join(s.backupDir, e.Name()))
	}
	// Timestamped names sort chronologically; reverse for newest first.
	sort.Sort(sort.Reverse(sort.StringSlice(paths)))
	return paths, nil
}

// TrimBackups deletes all but the newest maxBackups backup files.
func (s *FileStore) TrimBackups() error {
	paths, err := s.Backups()
	if err != nil {
		return err
	}
	for _, p := range paths[min(len(paths), s.maxBackups):] {
		if err := os.Remove(p); err != nil {
			return schema.NewError(schema.ErrCodeStore, "failed to remove old backup").WithCause(err)
		}
	}
	return nil
}

// Restore loads the newest backup and writes it as the active document.
func (s *FileStore) Restore() (*schema.Configuration, error) {
	paths, err := s.Backups()
	if err != nil {
		return nil, err
	}
	if len(paths) == 0 {
		return nil, schema.NewError(schema.ErrCodeNotFound, "no backups available")
	}

	data, err := os.ReadFile(paths[0])
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeStore, "failed to read backup").WithCause(err)
	}
	cfg, err := Load(data)
	if err != nil {
		return nil, err
	}
	if err := s.Save(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
