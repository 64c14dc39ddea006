package remote

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

// GSUtilStorage uses the gsutil command to implement object storage on GCP buckets.
// gsutil must be in the path, configured and authenticated.
type GSUtilStorage struct {
	BucketName string

	// run executes gsutil with the given stdin and returns its stdout
	run func(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error)
}

var _ cache.ObjectStorage = &GSUtilStorage{}

// NewGSUtilStorage creates a new gsutil-backed object storage
func NewGSUtilStorage(bucketName string) *GSUtilStorage {
	return &GSUtilStorage{
		BucketName: bucketName,
		run:        runGSUtil,
	}
}

// NewGSUtilCache creates a cache backed by a GCP bucket
func NewGSUtilCache(cfg *cache.RemoteConfig, stagingDir string) *ObjectStorageCache {
	return NewObjectStorageCache(NewGSUtilStorage(cfg.BucketName), cfg.Prefix, stagingDir)
}

func (gs *GSUtilStorage) url(key string) string {
	return fmt.Sprintf("gs://%s/%s", gs.BucketName, key)
}

// HasObject implements cache.ObjectStorage
func (gs *GSUtilStorage) HasObject(ctx context.Context, key string) (bool, error) {
	out, err := gs.run(ctx, nil, "stat", gs.url(key))
	if err != nil {
		if strings.Contains(err.Error(), "No URLs matched") {
			return false, nil
		}
		return false, err
	}
	_, exists := parseGSUtilStatOutput(bytes.NewReader(out))[gs.url(key)]
	return exists, nil
}

// GetObject implements cache.ObjectStorage
func (gs *GSUtilStorage) GetObject(ctx context.Context, key string, dest string) (int64, error) {
	err := os.MkdirAll(filepath.Dir(dest), 0755)
	if err != nil {
		return 0, err
	}
	_, err = gs.run(ctx, nil, "cp", gs.url(key), dest)
	if err != nil {
		return 0, xerrors.Errorf("failed to download %s: %w", key, err)
	}
	stat, err := os.Stat(dest)
	if err != nil {
		return 0, err
	}
	return stat.Size(), nil
}

// UploadObject implements cache.ObjectStorage
func (gs *GSUtilStorage) UploadObject(ctx context.Context, key string, src string) error {
	_, err := gs.run(ctx, nil, "cp", src, gs.url(key))
	if err != nil {
		return xerrors.Errorf("failed to upload %s: %w", key, err)
	}
	return nil
}

// ListObjects implements cache.ObjectStorage
func (gs *GSUtilStorage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	out, err := gs.run(ctx, nil, "ls", "-r", gs.url(prefix)+"**")
	if err != nil {
		if strings.Contains(err.Error(), "matched no objects") || strings.Contains(err.Error(), "No URLs matched") {
			return nil, nil
		}
		return nil, err
	}
	return parseGSUtilListOutput(bytes.NewReader(out), gs.BucketName), nil
}

// DeleteObjects implements cache.ObjectStorage
func (gs *GSUtilStorage) DeleteObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	var stdin bytes.Buffer
	for _, k := range keys {
		fmt.Fprintln(&stdin, gs.url(k))
	}
	_, err := gs.run(ctx, &stdin, "-m", "rm", "-I")
	if err != nil && !strings.Contains(err.Error(), "No URLs matched") {
		return xerrors.Errorf("failed to delete objects: %w", err)
	}
	return nil
}

// parseGSUtilStatOutput returns the URLs gsutil stat reported as existing
func parseGSUtilStatOutput(reader io.Reader) map[string]struct{} {
	exists := make(map[string]struct{})
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "gs://") {
			url := strings.TrimSuffix(line, ":")
			exists[url] = struct{}{}
			continue
		}
	}
	return exists
}

// parseGSUtilListOutput returns the object keys of a recursive gsutil ls, sorted
func parseGSUtilListOutput(reader io.Reader, bucket string) []string {
	var (
		res     []string
		bprefix = fmt.Sprintf("gs://%s/", bucket)
	)
	scanner := bufio.NewScanner(reader)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if !strings.HasPrefix(line, bprefix) || strings.HasSuffix(line, ":") || strings.HasSuffix(line, "/") {
			continue
		}
		res = append(res, strings.TrimPrefix(line, bprefix))
	}
	sort.Strings(res)
	return res
}

func runGSUtil(ctx context.Context, stdin io.Reader, args ...string) ([]byte, error) {
	log.WithField("args", args).Debug("running gsutil")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "gsutil", args...)
	cmd.Stdin = stdin
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	if err != nil {
		return nil, xerrors.Errorf("gsutil %s: %w: %s", strings.Join(args, " "), err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}
