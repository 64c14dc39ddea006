package wheelcache

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/minio/highwayhash"
	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

const (
	// contentHashKey is the key we use to hash in-tree source files listed in content manifests
	contentHashKey = "0340f3c8947cad7875140f4c4af7c62b43131dc2a8c7fc4628f0685e369a3b0b"
)

// ComputeRecipeHash derives the hash of a package's own build inputs.
//
// Fold order:
//  1. the raw recipe descriptor
//  2. every patch, sorted by name: its content or "missing-patch:<name>"
//  3. every extra, sorted by source: its content or "missing-extra:<src>"
//  4. url:<source url>, if declared
//  5. sha256:<source checksum>, if declared
//  6. the in-tree source path, if declared: the content of every regular file below it in path order,
//     or the content of the path itself if it is a file
//
// Patches, extras and in-tree paths are relative to the recipe directory.
func ComputeRecipeHash(recipe *Recipe, cfg *Config) (string, error) {
	d := NewDigest()
	_, _ = d.Write(recipe.Definition)

	patches := append([]string(nil), recipe.Source.Patches...)
	sort.Strings(patches)
	for _, p := range patches {
		err := foldFileOrSentinel(d, recipe, cfg, p, "missing-patch")
		if err != nil {
			return "", err
		}
	}

	extras := append([]Extra(nil), recipe.Source.Extras...)
	sort.SliceStable(extras, func(i, j int) bool { return extras[i].Src < extras[j].Src })
	for _, e := range extras {
		err := foldFileOrSentinel(d, recipe, cfg, e.Src, "missing-extra")
		if err != nil {
			return "", err
		}
	}

	if recipe.Source.URL != "" {
		d.Tagged("url", recipe.Source.URL)
	}
	if recipe.Source.SHA256 != "" {
		d.Tagged("sha256", recipe.Source.SHA256)
	}

	if recipe.Source.Path != "" {
		src := recipePath(recipe, recipe.Source.Path)
		stat, err := os.Stat(src)
		switch {
		case os.IsNotExist(err):
			log.WithField("package", recipe.Name).WithField("path", recipe.Source.Path).Debug("in-tree source does not exist")
		case err != nil:
			return "", xerrors.Errorf("cannot stat in-tree source of %s: %w", recipe.Name, err)
		case stat.IsDir():
			err = foldTree(d, src)
			if err != nil {
				return "", xerrors.Errorf("cannot hash in-tree source of %s: %w", recipe.Name, err)
			}
		default:
			fc, err := os.ReadFile(src)
			if err != nil {
				return "", xerrors.Errorf("cannot read in-tree source of %s: %w", recipe.Name, err)
			}
			_, _ = d.Write(fc)
		}
	}

	return d.Hex(), nil
}

func foldFileOrSentinel(d *Digest, recipe *Recipe, cfg *Config, name, sentinel string) error {
	fc, err := os.ReadFile(recipePath(recipe, name))
	if err == nil {
		_, _ = d.Write(fc)
		return nil
	}
	if !os.IsNotExist(err) {
		return xerrors.Errorf("cannot read %s of %s: %w", name, recipe.Name, err)
	}

	if cfg.Strict {
		return xerrors.Errorf("%s references %s which does not exist", recipe.Name, name)
	}
	log.WithField("package", recipe.Name).WithField("file", name).Warn("recipe references a file which does not exist")
	d.Tagged(sentinel, name)
	return nil
}

// foldTree writes the content of every regular file below dir to d. Files are ordered
// component-wise by their relative path, so "a/x" precedes "a-b/x".
func foldTree(d *Digest, dir string) error {
	files, err := cache.ListFiles(dir, true)
	if err != nil {
		return err
	}
	sortPaths(files)

	for _, fn := range files {
		fc, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(fn)))
		if err != nil {
			return err
		}
		_, _ = d.Write(fc)
	}
	return nil
}

func sortPaths(paths []string) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := strings.Split(paths[i], "/"), strings.Split(paths[j], "/")
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}

func recipePath(recipe *Recipe, name string) string {
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(recipe.Dir, filepath.FromSlash(name))
}

// ContentManifest produces an entry for every regular file below dir, sorted by path.
// Each entry has the form <relpath>:<hex highwayhash of the content>. It identifies
// individual in-tree source files and does not contribute to the recipe hash.
func ContentManifest(dir string) ([]string, error) {
	key, err := hex.DecodeString(contentHashKey)
	if err != nil {
		return nil, err
	}

	files, err := cache.ListFiles(dir, true)
	if err != nil {
		return nil, err
	}

	res := make([]string, len(files))
	for i, fn := range files {
		file, err := os.Open(filepath.Join(dir, filepath.FromSlash(fn)))
		if err != nil {
			return nil, err
		}

		hash, err := highwayhash.New(key)
		if err != nil {
			file.Close()
			return nil, err
		}

		_, err = io.Copy(hash, file)
		if err != nil {
			file.Close()
			return nil, err
		}

		err = file.Close()
		if err != nil {
			return nil, err
		}

		res[i] = fmt.Sprintf("%s:%s", fn, hex.EncodeToString(hash.Sum(nil)))
	}

	return res, nil
}

// SourceManifest returns the content manifest of the recipe's in-tree source directory.
// It returns nil if the recipe declares no in-tree path or the path is not a directory.
func (r *Recipe) SourceManifest() ([]string, error) {
	if r.Source.Path == "" {
		return nil, nil
	}
	src := recipePath(r, r.Source.Path)
	stat, err := os.Stat(src)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !stat.IsDir() {
		return nil, nil
	}
	return ContentManifest(src)
}
