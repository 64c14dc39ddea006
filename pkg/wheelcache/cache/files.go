package cache

import (
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/karrick/godirwalk"
	"golang.org/x/xerrors"
)

// ListFiles returns the regular files below root as sorted, slash separated relative paths.
// Symlinks pointing to regular files are listed, too. A missing root yields an empty list.
// Unless recursive is set only the direct children of root are considered.
func ListFiles(root string, recursive bool) ([]string, error) {
	stat, err := os.Stat(root)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !stat.IsDir() {
		return nil, xerrors.Errorf("%s is not a directory", root)
	}

	var res []string
	if !recursive {
		ents, err := godirwalk.ReadDirents(root, nil)
		if err != nil {
			return nil, err
		}
		for _, de := range ents {
			ok, err := isRegularFile(filepath.Join(root, de.Name()), de)
			if err != nil {
				return nil, err
			}
			if ok {
				res = append(res, de.Name())
			}
		}
		sort.Strings(res)
		return res, nil
	}

	err = godirwalk.Walk(root, &godirwalk.Options{
		Callback: func(osPathname string, de *godirwalk.Dirent) error {
			if osPathname == root {
				return nil
			}
			ok, err := isRegularFile(osPathname, de)
			if err != nil {
				return err
			}
			if !ok {
				return nil
			}
			rel, err := filepath.Rel(root, osPathname)
			if err != nil {
				return err
			}
			res = append(res, filepath.ToSlash(rel))
			return nil
		},
		FollowSymbolicLinks: true,
		Unsorted:            true,
	})
	if err != nil {
		return nil, xerrors.Errorf("cannot list %s: %w", root, err)
	}

	sort.Strings(res)
	return res, nil
}

func isRegularFile(path string, de *godirwalk.Dirent) (bool, error) {
	if de.IsRegular() {
		return true, nil
	}
	if !de.IsSymlink() {
		return false, nil
	}
	stat, err := os.Stat(path)
	if os.IsNotExist(err) {
		// dangling symlink
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return stat.Mode().IsRegular(), nil
}

// NewArtifactSet lists the files below root and returns them as artifact set.
// Returns nil if root holds no files.
func NewArtifactSet(root string, recursive bool) (*ArtifactSet, error) {
	files, err := ListFiles(root, recursive)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, nil
	}
	return &ArtifactSet{Root: root, Files: files}, nil
}

// Path returns the absolute location of a file of the set
func (a *ArtifactSet) Path(file string) string {
	return filepath.Join(a.Root, filepath.FromSlash(file))
}

// Size returns the accumulated size of all files in the set
func (a *ArtifactSet) Size() (int64, error) {
	if a == nil {
		return 0, nil
	}
	var total int64
	for _, f := range a.Files {
		stat, err := os.Stat(a.Path(f))
		if err != nil {
			return 0, err
		}
		total += stat.Size()
	}
	return total, nil
}

// CopyTo copies every file of the set below dst, creating directories as needed.
// It returns the absolute paths of the copies in the order of Files.
func (a *ArtifactSet) CopyTo(dst string) ([]string, error) {
	res := make([]string, 0, len(a.Files))
	for _, f := range a.Files {
		if strings.HasPrefix(f, "../") || filepath.IsAbs(f) {
			return nil, xerrors.Errorf("artifact path %q escapes its root", f)
		}
		target := filepath.Join(dst, filepath.FromSlash(f))
		err := CopyFile(a.Path(f), target)
		if err != nil {
			return nil, err
		}
		res = append(res, target)
	}
	return res, nil
}

// CopyFile copies src to dst, preserving the file mode and modification time
func CopyFile(src, dst string) (err error) {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	stat, err := in.Stat()
	if err != nil {
		return err
	}

	err = os.MkdirAll(filepath.Dir(dst), 0755)
	if err != nil {
		return err
	}

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, stat.Mode().Perm())
	if err != nil {
		return err
	}
	defer func() {
		cerr := out.Close()
		if err == nil {
			err = cerr
		}
		if err == nil {
			err = os.Chtimes(dst, stat.ModTime(), stat.ModTime())
		}
	}()

	_, err = io.Copy(out, in)
	if err != nil {
		return xerrors.Errorf("cannot copy %s to %s: %w", src, dst, err)
	}
	return nil
}
