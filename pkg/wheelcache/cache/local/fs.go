package local

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/renameio"
	log "github.com/sirupsen/logrus"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

// FilesystemCache implements a folder-per-package cache
type FilesystemCache struct {
	Origin string
}

var _ cache.Backend = &FilesystemCache{}

// NewFilesystemCache creates a new filesystem cache
func NewFilesystemCache(location string) (*FilesystemCache, error) {
	err := os.MkdirAll(location, 0755)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	return &FilesystemCache{location}, nil
}

// Location returns the directory holding the artifacts of name.
// Returns exists == true if that directory actually exists.
func (fsc *FilesystemCache) Location(name string) (path string, exists bool) {
	path = filepath.Join(fsc.Origin, name)
	stat, err := os.Stat(path)
	if err != nil {
		return path, false
	}
	return path, stat.IsDir()
}

// Get implements cache.Store
func (fsc *FilesystemCache) Get(ctx context.Context, name string) (*cache.ArtifactSet, error) {
	if err := cache.ValidateName(name); err != nil {
		return nil, err
	}

	loc, exists := fsc.Location(name)
	if !exists {
		return nil, nil
	}
	return cache.NewArtifactSet(loc, true)
}

// Put implements cache.Store
func (fsc *FilesystemCache) Put(ctx context.Context, name string, artifacts *cache.ArtifactSet) error {
	if err := cache.ValidateName(name); err != nil {
		return err
	}
	if artifacts.Empty() {
		return nil
	}

	loc, _ := fsc.Location(name)
	_, err := artifacts.CopyTo(loc)
	if err != nil {
		return fmt.Errorf("failed to store %s: %w", name, err)
	}

	log.WithFields(log.Fields{
		"name":  name,
		"files": len(artifacts.Files),
	}).Debug("stored artifacts in local cache")
	return nil
}

// Reset implements cache.Backend
func (fsc *FilesystemCache) Reset(ctx context.Context) error {
	err := os.RemoveAll(fsc.Origin)
	if err != nil {
		return fmt.Errorf("failed to clear cache directory: %w", err)
	}
	err = os.MkdirAll(fsc.Origin, 0755)
	if err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}
	return nil
}

// ReadManifest implements cache.Backend
func (fsc *FilesystemCache) ReadManifest(ctx context.Context) ([]byte, error) {
	fc, err := os.ReadFile(filepath.Join(fsc.Origin, cache.ManifestName))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return fc, nil
}

// WriteManifest implements cache.Backend
func (fsc *FilesystemCache) WriteManifest(ctx context.Context, content []byte) error {
	err := os.MkdirAll(fsc.Origin, 0755)
	if err != nil {
		return err
	}
	return renameio.WriteFile(filepath.Join(fsc.Origin, cache.ManifestName), content, 0644)
}
