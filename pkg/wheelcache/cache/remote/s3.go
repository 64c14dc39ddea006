package remote

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
)

const (
	// defaultS3PartSize is the default part size for S3 multipart operations
	defaultS3PartSize = 5 * 1024 * 1024
	// defaultWorkerCount is the default number of concurrent uploads/downloads
	defaultWorkerCount = 10
	// defaultRateLimit is the default rate limit for S3 API calls (requests per second)
	defaultRateLimit = 100
	// defaultBurstLimit is the default burst limit for S3 API calls
	defaultBurstLimit = 200
	// maxDeleteBatch is the maximum number of keys S3 accepts per DeleteObjects call
	maxDeleteBatch = 1000
)

// ObjectStorageCache implements cache.Backend on top of object storage.
// Objects are laid out as <prefix><name>/<relpath> plus <prefix>manifest.json.
// Downloaded artifacts are staged below a local directory.
type ObjectStorageCache struct {
	storage     cache.ObjectStorage
	prefix      string
	staging     string
	workerCount int
	rateLimiter *rate.Limiter
}

var _ cache.Backend = &ObjectStorageCache{}

// NewS3Cache creates a new S3 cache implementation which stages downloads in stagingDir
func NewS3Cache(ctx context.Context, cfg *cache.RemoteConfig, stagingDir string) (*ObjectStorageCache, error) {
	if cfg.BucketName == "" {
		return nil, fmt.Errorf("bucket name is required")
	}

	awsCfg, err := config.LoadDefaultConfig(ctx)
	if err != nil {
		return nil, fmt.Errorf("cannot load AWS config: %w", err)
	}

	if cfg.Region != "" {
		awsCfg.Region = cfg.Region
	}

	return NewObjectStorageCache(NewS3Storage(cfg.BucketName, &awsCfg), cfg.Prefix, stagingDir), nil
}

// NewObjectStorageCache creates a cache backend on arbitrary object storage
func NewObjectStorageCache(storage cache.ObjectStorage, prefix, stagingDir string) *ObjectStorageCache {
	if prefix != "" && !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	return &ObjectStorageCache{
		storage:     storage,
		prefix:      prefix,
		staging:     stagingDir,
		workerCount: defaultWorkerCount,
		rateLimiter: rate.NewLimiter(rate.Limit(defaultRateLimit), defaultBurstLimit),
	}
}

func (s *ObjectStorageCache) slotPrefix(name string) string {
	return s.prefix + name + "/"
}

// Get implements cache.Store
func (s *ObjectStorageCache) Get(ctx context.Context, name string) (*cache.ArtifactSet, error) {
	if err := cache.ValidateName(name); err != nil {
		return nil, err
	}

	if err := s.rateLimiter.Wait(ctx); err != nil {
		return nil, err
	}
	keys, err := s.storage.ListObjects(ctx, s.slotPrefix(name))
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	root := filepath.Join(s.staging, name)
	err = os.RemoveAll(root)
	if err != nil {
		return nil, fmt.Errorf("failed to clear staging directory: %w", err)
	}

	files := make([]string, 0, len(keys))
	for _, key := range keys {
		rel := strings.TrimPrefix(key, s.slotPrefix(name))
		if rel == "" || strings.HasSuffix(rel, "/") {
			continue
		}
		if rel != path.Clean(rel) || strings.HasPrefix(rel, "../") {
			log.WithField("key", key).Warn("ignoring object with unexpected key")
			continue
		}
		files = append(files, rel)
	}
	sort.Strings(files)

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workerCount)
	for _, rel := range files {
		rel := rel
		eg.Go(func() error {
			if err := s.rateLimiter.Wait(ctx); err != nil {
				return err
			}
			_, err := s.storage.GetObject(ctx, s.slotPrefix(name)+rel, filepath.Join(root, filepath.FromSlash(rel)))
			return err
		})
	}
	err = eg.Wait()
	if err != nil {
		return nil, fmt.Errorf("failed to download %s: %w", name, err)
	}
	if len(files) == 0 {
		return nil, nil
	}

	log.WithFields(log.Fields{
		"name":  name,
		"files": len(files),
	}).Debug("downloaded artifacts from remote cache")
	return &cache.ArtifactSet{Root: root, Files: files}, nil
}

// Put implements cache.Store
func (s *ObjectStorageCache) Put(ctx context.Context, name string, artifacts *cache.ArtifactSet) error {
	if err := cache.ValidateName(name); err != nil {
		return err
	}
	if artifacts.Empty() {
		return nil
	}

	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(s.workerCount)
	for _, f := range artifacts.Files {
		f := f
		eg.Go(func() error {
			if err := s.rateLimiter.Wait(ctx); err != nil {
				return err
			}
			return s.storage.UploadObject(ctx, s.slotPrefix(name)+f, artifacts.Path(f))
		})
	}
	err := eg.Wait()
	if err != nil {
		return fmt.Errorf("failed to upload %s: %w", name, err)
	}
	return nil
}

// Reset implements cache.Backend
func (s *ObjectStorageCache) Reset(ctx context.Context) error {
	if err := s.rateLimiter.Wait(ctx); err != nil {
		return err
	}
	keys, err := s.storage.ListObjects(ctx, s.prefix)
	if err != nil {
		return err
	}
	for len(keys) > 0 {
		n := len(keys)
		if n > maxDeleteBatch {
			n = maxDeleteBatch
		}
		if err := s.rateLimiter.Wait(ctx); err != nil {
			return err
		}
		err = s.storage.DeleteObjects(ctx, keys[:n])
		if err != nil {
			return fmt.Errorf("failed to clear remote cache: %w", err)
		}
		keys = keys[n:]
	}
	return os.RemoveAll(s.staging)
}

// ReadManifest implements cache.Backend
func (s *ObjectStorageCache) ReadManifest(ctx context.Context) ([]byte, error) {
	key := s.prefix + cache.ManifestName
	exists, err := s.storage.HasObject(ctx, key)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, nil
	}

	dest := filepath.Join(s.staging, cache.ManifestName)
	_, err = s.storage.GetObject(ctx, key, dest)
	if err != nil {
		return nil, err
	}
	return os.ReadFile(dest)
}

// WriteManifest implements cache.Backend
func (s *ObjectStorageCache) WriteManifest(ctx context.Context, content []byte) error {
	err := os.MkdirAll(s.staging, 0755)
	if err != nil {
		return err
	}
	src := filepath.Join(s.staging, cache.ManifestName)
	err = os.WriteFile(src, content, 0644)
	if err != nil {
		return err
	}
	return s.storage.UploadObject(ctx, s.prefix+cache.ManifestName, src)
}

// s3ClientAPI is a subset of the S3 client interface we need
type s3ClientAPI interface {
	HeadObject(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	DeleteObjects(ctx context.Context, params *s3.DeleteObjectsInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectsOutput, error)
	AbortMultipartUpload(ctx context.Context, params *s3.AbortMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.AbortMultipartUploadOutput, error)
	CompleteMultipartUpload(ctx context.Context, params *s3.CompleteMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CompleteMultipartUploadOutput, error)
	CreateMultipartUpload(ctx context.Context, params *s3.CreateMultipartUploadInput, optFns ...func(*s3.Options)) (*s3.CreateMultipartUploadOutput, error)
	UploadPart(ctx context.Context, params *s3.UploadPartInput, optFns ...func(*s3.Options)) (*s3.UploadPartOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// S3Storage implements ObjectStorage using AWS S3
type S3Storage struct {
	client     s3ClientAPI
	bucketName string
}

// NewS3Storage creates a new S3 storage implementation
func NewS3Storage(bucketName string, cfg *aws.Config) *S3Storage {
	client := s3.NewFromConfig(*cfg, func(o *s3.Options) {
		o.DisableLogOutputChecksumValidationSkipped = true
	})
	return &S3Storage{
		client:     client,
		bucketName: bucketName,
	}
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "NotFound" || apiErr.ErrorCode() == "NoSuchKey"
	}
	return false
}

// HasObject implements ObjectStorage
func (s *S3Storage) HasObject(ctx context.Context, key string) (bool, error) {
	_, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetObject implements ObjectStorage
func (s *S3Storage) GetObject(ctx context.Context, key string, dest string) (n int64, err error) {
	downloader := manager.NewDownloader(s.client, func(d *manager.Downloader) {
		d.PartSize = defaultS3PartSize
	})

	// Ensure parent directory exists
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return 0, fmt.Errorf("failed to create parent directory: %w", err)
	}

	file, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return 0, fmt.Errorf("failed to create destination file: %w", err)
	}
	defer func() {
		_ = file.Close()
		if err != nil {
			_ = os.Remove(dest)
		}
	}()

	n, err = downloader.Download(ctx, file, &s3.GetObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
	})
	if isNotFound(err) {
		return 0, fmt.Errorf("object not found: %w", err)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to download object: %w", err)
	}
	return n, nil
}

// UploadObject implements ObjectStorage
func (s *S3Storage) UploadObject(ctx context.Context, key string, src string) error {
	file, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer func() { _ = file.Close() }()

	uploader := manager.NewUploader(s.client, func(u *manager.Uploader) {
		u.PartSize = defaultS3PartSize
	})

	_, err = uploader.Upload(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.bucketName),
		Key:    aws.String(key),
		Body:   file,
	})
	if err != nil {
		var apiErr smithy.APIError
		if errors.As(err, &apiErr) {
			log.WithError(err).WithFields(log.Fields{
				"key":       key,
				"errorCode": apiErr.ErrorCode(),
			}).Warn("S3 API error while uploading object")
			return fmt.Errorf("S3 API error: %w", err)
		}
		return fmt.Errorf("failed to upload object: %w", err)
	}
	return nil
}

// ListObjects implements ObjectStorage
func (s *S3Storage) ListObjects(ctx context.Context, prefix string) ([]string, error) {
	var result []string
	paginator := s3.NewListObjectsV2Paginator(s.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(s.bucketName),
		Prefix: aws.String(prefix),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to list objects: %w", err)
		}

		for _, obj := range page.Contents {
			result = append(result, *obj.Key)
		}
	}

	return result, nil
}

// DeleteObjects implements ObjectStorage
func (s *S3Storage) DeleteObjects(ctx context.Context, keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	objs := make([]types.ObjectIdentifier, 0, len(keys))
	for _, k := range keys {
		objs = append(objs, types.ObjectIdentifier{Key: aws.String(k)})
	}
	out, err := s.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
		Bucket: aws.String(s.bucketName),
		Delete: &types.Delete{
			Objects: objs,
			Quiet:   aws.Bool(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete objects: %w", err)
	}
	if len(out.Errors) > 0 {
		e := out.Errors[0]
		return fmt.Errorf("failed to delete %d objects, first: %s: %s", len(out.Errors), aws.ToString(e.Key), aws.ToString(e.Message))
	}
	return nil
}
