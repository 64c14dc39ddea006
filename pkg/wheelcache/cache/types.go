// Package cache provides the storage layer for previously built package artifacts.
//
// A cache generation holds one artifact slot per package, one slot for the shared
// tree (SharedTreeName) and a manifest recording the fingerprints the artifacts were
// built with. The fingerprinting and restore decisions never touch the storage medium
// directly; they only go through Store/Backend, so the local directory can be swapped
// for object storage.
//
// A cache miss never constitutes an error: Get returns (nil, nil) and the caller builds
// the package instead.
package cache

import (
	"context"
	"strings"

	"golang.org/x/xerrors"
)

const (
	// SharedTreeName is the slot name of the auxiliary artifact tree shared by multiple packages
	SharedTreeName = ".libs"

	// ManifestName is the file/object name of the cache manifest
	ManifestName = "manifest.json"
)

// ArtifactSet is a set of regular files rooted at a directory
type ArtifactSet struct {
	// Root is the absolute directory the files are relative to
	Root string
	// Files are slash separated paths relative to Root, sorted lexicographically
	Files []string
}

// Empty returns true if the set contains no files
func (a *ArtifactSet) Empty() bool {
	return a == nil || len(a.Files) == 0
}

// Store gets and puts artifact sets by package name
type Store interface {
	// Get returns the artifacts stored for name. A missing or empty slot returns (nil, nil).
	Get(ctx context.Context, name string) (*ArtifactSet, error)

	// Put stores a copy of the artifacts under name
	Put(ctx context.Context, name string, artifacts *ArtifactSet) error
}

// Backend is a Store which also manages the cache generation as a whole
type Backend interface {
	Store

	// Reset removes everything from the cache so that a new generation can be written
	Reset(ctx context.Context) error

	// ReadManifest returns the raw manifest of the current generation, or (nil, nil) if there is none
	ReadManifest(ctx context.Context) ([]byte, error)

	// WriteManifest replaces the manifest of the current generation
	WriteManifest(ctx context.Context, content []byte) error
}

// ObjectStorage represents a generic object storage interface
// This allows us to abstract S3, GCS, or other storage backends
type ObjectStorage interface {
	// HasObject checks if an object exists
	HasObject(ctx context.Context, key string) (bool, error)

	// GetObject downloads an object to a local file
	GetObject(ctx context.Context, key string, dest string) (int64, error)

	// UploadObject uploads a local file to remote storage
	UploadObject(ctx context.Context, key string, src string) error

	// ListObjects lists objects with the given prefix
	ListObjects(ctx context.Context, prefix string) ([]string, error)

	// DeleteObjects removes the given objects. Missing objects are not an error.
	DeleteObjects(ctx context.Context, keys []string) error
}

// RemoteConfig holds configuration for remote cache implementations
type RemoteConfig struct {
	// BucketName for object storage
	BucketName string

	// Prefix is prepended to every object key, e.g. "wheel-cache/"
	Prefix string

	// Region for services that require it (e.g. S3)
	Region string
}

// ValidateName checks that name can be used as a slot name
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." {
		return xerrors.Errorf("invalid cache slot name %q", name)
	}
	if strings.ContainsAny(name, `/\`) {
		return xerrors.Errorf("invalid cache slot name %q: must be a single path element", name)
	}
	if name == ManifestName {
		return xerrors.Errorf("invalid cache slot name %q: reserved for the manifest", name)
	}
	return nil
}
