package local

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

func TestNewFilesystemCache(t *testing.T) {
	t.Parallel()

	type Expectation struct {
		Error string
	}

	tests := []struct {
		Name        string
		Location    string
		Expectation Expectation
	}{
		{
			Name:     "valid location",
			Location: filepath.Join(t.TempDir(), "cache"),
			Expectation: Expectation{
				Error: "",
			},
		},
		{
			Name:     "invalid location",
			Location: "/proc/invalid/location",
			Expectation: Expectation{
				Error: "failed to create cache directory:",
			},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()
			var act Expectation

			_, err := NewFilesystemCache(test.Location)
			if err != nil {
				act.Error = err.Error()[:len(test.Expectation.Error)]
			}

			if diff := cmp.Diff(test.Expectation, act); diff != "" {
				t.Errorf("NewFilesystemCache() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func writeFiles(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		fn := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(fn), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(fn, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestGet(t *testing.T) {
	t.Parallel()

	type Expectation struct {
		Files []string
		Nil   bool
		Error bool
	}

	tmpDir := t.TempDir()
	writeFiles(t, tmpDir, map[string]string{
		"numpy/numpy-2.0.0-cp313-cp313-pyodide_2025_0_wasm32.whl": "wheel",
		".libs/lib/libopenblas.so":                                "so",
		".libs/include/cblas.h":                                   "h",
	})
	if err := os.MkdirAll(filepath.Join(tmpDir, "empty"), 0755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		Name        string
		Slot        string
		Expectation Expectation
	}{
		{
			Name:        "package slot",
			Slot:        "numpy",
			Expectation: Expectation{Files: []string{"numpy-2.0.0-cp313-cp313-pyodide_2025_0_wasm32.whl"}},
		},
		{
			Name:        "shared tree keeps relative paths",
			Slot:        cache.SharedTreeName,
			Expectation: Expectation{Files: []string{"include/cblas.h", "lib/libopenblas.so"}},
		},
		{
			Name:        "missing slot",
			Slot:        "scipy",
			Expectation: Expectation{Nil: true},
		},
		{
			Name:        "empty slot",
			Slot:        "empty",
			Expectation: Expectation{Nil: true},
		},
		{
			Name:        "invalid name",
			Slot:        "../numpy",
			Expectation: Expectation{Nil: true, Error: true},
		},
	}

	for _, test := range tests {
		test := test
		t.Run(test.Name, func(t *testing.T) {
			t.Parallel()

			fsc := &FilesystemCache{Origin: tmpDir}
			set, err := fsc.Get(context.Background(), test.Slot)

			var act Expectation
			act.Error = err != nil
			act.Nil = set == nil
			if set != nil {
				act.Files = set.Files
			}

			if diff := cmp.Diff(test.Expectation, act); diff != "" {
				t.Errorf("Get() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPutPreservesContentAndMTime(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	writeFiles(t, src, map[string]string{"a.whl": "A", "b.whl": "B"})
	mtime := time.Date(2020, 1, 2, 3, 4, 5, 0, time.UTC)
	if err := os.Chtimes(filepath.Join(src, "a.whl"), mtime, mtime); err != nil {
		t.Fatal(err)
	}

	fsc, err := NewFilesystemCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	set, err := cache.NewArtifactSet(src, false)
	if err != nil {
		t.Fatal(err)
	}
	err = fsc.Put(context.Background(), "pkg", set)
	if err != nil {
		t.Fatal(err)
	}

	fc, err := os.ReadFile(filepath.Join(fsc.Origin, "pkg", "a.whl"))
	if err != nil {
		t.Fatal(err)
	}
	if string(fc) != "A" {
		t.Errorf("unexpected content %q", string(fc))
	}
	stat, err := os.Stat(filepath.Join(fsc.Origin, "pkg", "a.whl"))
	if err != nil {
		t.Fatal(err)
	}
	if !stat.ModTime().Equal(mtime) {
		t.Errorf("mtime not preserved: got %v, want %v", stat.ModTime(), mtime)
	}
}

func TestResetAndManifest(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	fsc, err := NewFilesystemCache(filepath.Join(t.TempDir(), "cache"))
	if err != nil {
		t.Fatal(err)
	}

	mf, err := fsc.ReadManifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mf != nil {
		t.Errorf("expected no manifest in a fresh cache, got %q", string(mf))
	}

	writeFiles(t, fsc.Origin, map[string]string{"old/old.whl": "old"})
	err = fsc.WriteManifest(ctx, []byte(`{"fingerprints":{}}`))
	if err != nil {
		t.Fatal(err)
	}

	err = fsc.Reset(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if _, exists := fsc.Location("old"); exists {
		t.Error("Reset() kept an old slot")
	}
	mf, err = fsc.ReadManifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if mf != nil {
		t.Error("Reset() kept the old manifest")
	}

	err = fsc.WriteManifest(ctx, []byte("new"))
	if err != nil {
		t.Fatal(err)
	}
	mf, err = fsc.ReadManifest(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff("new", string(mf)); diff != "" {
		t.Errorf("ReadManifest() mismatch (-want +got):\n%s", diff)
	}
}
