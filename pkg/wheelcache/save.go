package wheelcache

import (
	"context"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

// SaveReport tallies the outcome of a save run
type SaveReport struct {
	// Cached counts the packages whose artifacts were stored
	Cached int
	// SkippedNoArtifacts counts the packages without any artifacts in their dist directory
	SkippedNoArtifacts int
	// Libraries counts the library packages, which are captured through the shared tree only
	Libraries int
	// SharedFiles counts the files of the shared tree
	SharedFiles int
	// TotalBytes is the accumulated size of everything stored
	TotalBytes int64
}

// Saver replaces the cache content with the artifacts of the current build
type Saver struct {
	cfg     *Config
	backend cache.Backend
}

// NewSaver creates a new saver
func NewSaver(cfg *Config, backend cache.Backend) *Saver {
	return &Saver{cfg: cfg, backend: backend}
}

// Save resets the cache and stores the artifacts of every package of the plan, the shared tree
// and finally the plan itself as manifest. Any store failure aborts the save.
func (s *Saver) Save(ctx context.Context, plan *BuildPlan) (*SaveReport, error) {
	err := s.backend.Reset(ctx)
	if err != nil {
		return nil, xerrors.Errorf("cannot reset cache: %w", err)
	}

	report := &SaveReport{}
	for _, name := range plan.Packages() {
		if plan.IsLibrary(name) {
			report.Libraries++
			continue
		}

		artifacts, err := cache.NewArtifactSet(s.cfg.DistDir(name), false)
		if err != nil {
			return nil, xerrors.Errorf("cannot list artifacts of %s: %w", name, err)
		}
		if artifacts.Empty() {
			report.SkippedNoArtifacts++
			continue
		}

		size, err := s.put(ctx, name, artifacts)
		if err != nil {
			return nil, err
		}
		report.Cached++
		report.TotalBytes += size
	}

	shared, err := cache.NewArtifactSet(s.cfg.SharedTreeDir(), true)
	if err != nil {
		return nil, xerrors.Errorf("cannot list shared tree: %w", err)
	}
	if !shared.Empty() {
		size, err := s.put(ctx, cache.SharedTreeName, shared)
		if err != nil {
			return nil, err
		}
		report.SharedFiles = len(shared.Files)
		report.TotalBytes += size
	}

	manifest, err := plan.Marshal()
	if err != nil {
		return nil, err
	}
	err = s.backend.WriteManifest(ctx, manifest)
	if err != nil {
		return nil, xerrors.Errorf("cannot write cache manifest: %w", err)
	}

	return report, nil
}

func (s *Saver) put(ctx context.Context, name string, artifacts *cache.ArtifactSet) (int64, error) {
	size, err := artifacts.Size()
	if err != nil {
		return 0, xerrors.Errorf("cannot determine artifact size of %s: %w", name, err)
	}
	err = s.backend.Put(ctx, name, artifacts)
	if err != nil {
		return 0, xerrors.Errorf("cannot cache %s: %w", name, err)
	}
	log.WithField("package", name).WithField("files", len(artifacts.Files)).Debug("cached artifacts")
	return size, nil
}
