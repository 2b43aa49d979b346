// Package store holds the host-side homes of configuration documents:
// a directory tree, a Redis keyspace, or several of them at once.
package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"

	"garage-layout/internal/dispatch"
)

// Default file names under the output directory.
const (
	DefaultCameraHubFile     = "CameraHubConfig.xml"
	DefaultDevicesConfigFile = "DevicesConfig.xml"
	DefaultFLIDir            = "fli"
)

// FileLayout names the files of an install.
type FileLayout struct {
	Dir               string
	CameraHubFile     string
	DevicesConfigFile string
	FLIDir            string
}

func (l FileLayout) withDefaults() FileLayout {
	if l.CameraHubFile == "" {
		l.CameraHubFile = DefaultCameraHubFile
	}
	if l.DevicesConfigFile == "" {
		l.DevicesConfigFile = DefaultDevicesConfigFile
	}
	if l.FLIDir == "" {
		l.FLIDir = DefaultFLIDir
	}
	return l
}

// FileStore writes documents into a directory tree.
type FileStore struct {
	layout FileLayout
}

// NewFileStore creates a store rooted at layout.Dir.
func NewFileStore(layout FileLayout) *FileStore {
	return &FileStore{layout: layout.withDefaults()}
}

var unsafeFileChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

// OSPath maps a logical path to a file under the store directory.
func (s *FileStore) OSPath(logicalPath string) (string, error) {
	kind, name, err := dispatch.ParseLogicalPath(logicalPath)
	if err != nil {
		return "", err
	}
	switch kind {
	case dispatch.KindCameraHub:
		return filepath.Join(s.layout.Dir, s.layout.CameraHubFile), nil
	case dispatch.KindDevicesConfig:
		return filepath.Join(s.layout.Dir, s.layout.DevicesConfigFile), nil
	default:
		file := unsafeFileChars.ReplaceAllString(name, "_")
		if file == "." || file == ".." {
			file = "_"
		}
		return filepath.Join(s.layout.Dir, s.layout.FLIDir, file+".xml"), nil
	}
}

// Write replaces the file atomically: temp file in the same directory,
// then rename.
func (s *FileStore) Write(_ context.Context, logicalPath string, content []byte) error {
	path, err := s.OSPath(logicalPath)
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmp.Name(), err)
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}
	return nil
}

// ReadBytes implements dispatch.Reader.
func (s *FileStore) ReadBytes(_ context.Context, logicalPath string) ([]byte, error) {
	path, err := s.OSPath(logicalPath)
	if err != nil {
		return nil, err
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%s: %w", path, dispatch.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return b, nil
}
