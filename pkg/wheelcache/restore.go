package wheelcache

import (
	"context"
	"os"
	"path/filepath"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

// FutureMTime is stamped onto every restored file (2100-01-01T00:00:00Z).
// The rebuild check of the build system compares output against input modification
// times and skips every package whose outputs carry this stamp.
var FutureMTime = time.Unix(4102444800, 0)

// Outcome is the result of restoring a single package
type Outcome string

const (
	// OutcomeRestored means the package artifacts or library marker are in place
	OutcomeRestored Outcome = "restored"
	// OutcomeAlwaysRebuild means the package is never restored
	OutcomeAlwaysRebuild Outcome = "always-rebuild"
	// OutcomeNoFingerprint means the previous run did not know the package
	OutcomeNoFingerprint Outcome = "no-prior-fingerprint"
	// OutcomeStale means the package changed since the previous run
	OutcomeStale Outcome = "stale"
	// OutcomeMissing means the fingerprint matched but the store holds no artifacts
	OutcomeMissing Outcome = "missing"
	// OutcomeFailed means restoring the package failed and it will be rebuilt
	OutcomeFailed Outcome = "failed"
)

// RestoreReport tallies the outcomes of a restore run
type RestoreReport struct {
	Total                int
	Restored             int
	SkippedAlwaysRebuild int
	SkippedNoFingerprint int
	SkippedStale         int
	SkippedMissing       int
	Failed               int

	// FilesRestored counts the package artifacts copied into the working tree
	FilesRestored int
	// SharedFilesRestored counts the files of the shared tree copied into the working tree
	SharedFilesRestored int
	// ColdStart is true if there was no previous cache generation
	ColdStart bool

	Outcomes map[string]Outcome
}

// WillBuild returns the number of packages the build has to produce
func (r *RestoreReport) WillBuild() int {
	return r.Total - r.Restored
}

func (r *RestoreReport) record(name string, o Outcome) {
	r.Outcomes[name] = o
	switch o {
	case OutcomeRestored:
		r.Restored++
	case OutcomeAlwaysRebuild:
		r.SkippedAlwaysRebuild++
	case OutcomeNoFingerprint:
		r.SkippedNoFingerprint++
	case OutcomeStale:
		r.SkippedStale++
	case OutcomeMissing:
		r.SkippedMissing++
	case OutcomeFailed:
		r.Failed++
	}
}

// Restorer copies cached artifacts back into the packages tree
type Restorer struct {
	cfg     *Config
	backend cache.Backend
}

// NewRestorer creates a new restorer
func NewRestorer(cfg *Config, backend cache.Backend) *Restorer {
	return &Restorer{cfg: cfg, backend: backend}
}

// Restore restores every package of the plan whose fingerprint matches the cache manifest.
// Individual packages which cannot be restored are reported, but never fail the run.
func (r *Restorer) Restore(ctx context.Context, plan *BuildPlan) (*RestoreReport, error) {
	rawManifest, err := r.backend.ReadManifest(ctx)
	if err != nil {
		return nil, xerrors.Errorf("cannot read cache manifest: %w", err)
	}

	var manifest *BuildPlan
	if rawManifest != nil {
		manifest, err = ParseBuildPlan(rawManifest)
		if err != nil {
			log.WithError(err).Warn("ignoring unreadable cache manifest")
			manifest = nil
		}
	}

	report := &RestoreReport{
		Total:     len(plan.Fingerprints),
		ColdStart: manifest == nil,
		Outcomes:  make(map[string]Outcome, len(plan.Fingerprints)),
	}
	if manifest == nil {
		manifest = &BuildPlan{}
		manifest.index()
	}

	for _, name := range plan.Packages() {
		report.record(name, r.restorePackage(ctx, plan, manifest, name, report))
	}

	if !report.ColdStart {
		n, err := r.restoreSharedTree(ctx)
		if err != nil {
			log.WithError(err).Warn("cannot restore shared tree")
		}
		report.SharedFilesRestored = n
	}

	return report, nil
}

func (r *Restorer) restorePackage(ctx context.Context, plan, manifest *BuildPlan, name string, report *RestoreReport) Outcome {
	if plan.IsAlwaysRebuild(name) {
		return OutcomeAlwaysRebuild
	}

	cachedFP, ok := manifest.Fingerprints[name]
	if !ok {
		return OutcomeNoFingerprint
	}
	if cachedFP != plan.Fingerprints[name] {
		return OutcomeStale
	}

	log := log.WithField("package", name)
	if plan.IsLibrary(name) {
		err := touchMarker(r.cfg.MarkerPath(name))
		if err != nil {
			log.WithError(err).Warn("cannot restore library marker")
			return OutcomeFailed
		}
		return OutcomeRestored
	}

	artifacts, err := r.backend.Get(ctx, name)
	if err != nil {
		log.WithError(err).Warn("cannot read cached artifacts")
		return OutcomeFailed
	}
	if artifacts.Empty() {
		return OutcomeMissing
	}

	n, err := copyStamped(artifacts, r.cfg.DistDir(name))
	report.FilesRestored += n
	if err != nil {
		log.WithError(err).Warn("cannot restore cached artifacts")
		return OutcomeFailed
	}
	log.WithField("files", n).Debug("restored from cache")
	return OutcomeRestored
}

func (r *Restorer) restoreSharedTree(ctx context.Context) (int, error) {
	artifacts, err := r.backend.Get(ctx, cache.SharedTreeName)
	if err != nil {
		return 0, err
	}
	if artifacts.Empty() {
		return 0, nil
	}
	return copyStamped(artifacts, r.cfg.SharedTreeDir())
}

// copyStamped copies the artifacts below dst and stamps every copy with FutureMTime
func copyStamped(artifacts *cache.ArtifactSet, dst string) (int, error) {
	files, err := artifacts.CopyTo(dst)
	if err != nil {
		return 0, err
	}
	for i, fn := range files {
		err = os.Chtimes(fn, FutureMTime, FutureMTime)
		if err != nil {
			return i, err
		}
	}
	return len(files), nil
}

// touchMarker creates the presence marker of a library package if needed and stamps it with FutureMTime
func touchMarker(fn string) error {
	err := os.MkdirAll(filepath.Dir(fn), 0755)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(fn, os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	err = f.Close()
	if err != nil {
		return err
	}
	return os.Chtimes(fn, FutureMTime, FutureMTime)
}
