package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/gookit/color"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	"github.com/gitpod-io/wheelcache/pkg/wheelcache"
	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache"
	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache/local"
	"github.com/gitpod-io/wheelcache/pkg/wheelcache/cache/remote"
)

const (
	// EnvvarBaseDir names the environment variable we check for the repository root
	EnvvarBaseDir = "WHEELCACHE_BASE_DIR"

	// EnvvarRemoteCacheBucket configures a bucket name. This enables the use of remote storage.
	EnvvarRemoteCacheBucket = "WHEELCACHE_REMOTE_CACHE_BUCKET"

	// EnvvarRemoteCachePrefix configures the object key prefix of the remote cache
	EnvvarRemoteCachePrefix = "WHEELCACHE_REMOTE_CACHE_PREFIX"

	// EnvvarRemoteCacheRegion configures the region of the remote cache bucket
	EnvvarRemoteCacheRegion = "WHEELCACHE_REMOTE_CACHE_REGION"

	// EnvvarRemoteCacheStorage selects the remote storage: AWS (default) or GCP
	EnvvarRemoteCacheStorage = "WHEELCACHE_REMOTE_CACHE_STORAGE"
)

var (
	// version is set during the build using ldflags
	version string = "unknown"

	baseDir string
	verbose bool
	strict  bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "wheelcache",
	Short: "Fingerprint based build cache for package recipe trees",
	Long: color.Render(`<light_yellow>wheelcache decides which packages of a recipe tree must be rebuilt</> and restores all others from a cache.
Every package gets a fingerprint derived from its recipe, the toolchain and the fingerprints of its host dependencies.
A build pipeline runs three stages, each a separate invocation:
  plan:    computes the fingerprints and writes the build plan.
  restore: copies the artifacts of every package whose fingerprint is unchanged back into the packages tree
           and stamps them with a far-future modification time, so that the build skips them.
  save:    replaces the cache content with the artifacts of the current build.

<white>Configuration</>
wheelcache is configured through flags and the following environment variables:
      <light_blue>WHEELCACHE_BASE_DIR</>  Root of the repository. Can also be set using --base-dir.
<light_blue>WHEELCACHE_REMOTE_CACHE_BUCKET</>  Enables a remote cache. Set this variable to the bucket name used for caching.
                               The cache directory is then only used as staging area.
<light_blue>WHEELCACHE_REMOTE_CACHE_PREFIX</>  Prefix of all cache objects in the bucket. Defaults to "wheel-cache/".
<light_blue>WHEELCACHE_REMOTE_CACHE_REGION</>  Region of the bucket. Defaults to the AWS SDK configuration.
<light_blue>WHEELCACHE_REMOTE_CACHE_STORAGE</>  AWS (default) for S3 or GCP for Google Cloud Storage. GCP expects "gsutil" in the path,
                               configured and authenticated so that it can work with the bucket.
`),
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetLevel(log.DebugLevel)
		}
	},
	SilenceUsage: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	root := os.Getenv(EnvvarBaseDir)
	if root == "" {
		root = "."
	}

	rootCmd.PersistentFlags().StringVarP(&baseDir, "base-dir", "b", root, "Repository root")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enables verbose logging")
	rootCmd.PersistentFlags().BoolVar(&strict, "strict", false, "fail instead of substituting placeholders for unavailable toolchain information or missing recipe files")
}

// getConfig produces the configuration of all stages. An empty packagesDir uses the default location.
func getConfig(packagesDir string) (*wheelcache.Config, error) {
	cfg := &wheelcache.Config{
		BaseDir: baseDir,
		Strict:  strict,
	}
	if packagesDir != "" {
		abs, err := filepath.Abs(packagesDir)
		if err != nil {
			return nil, err
		}
		cfg.PackagesDir = abs
	}
	err := cfg.Complete()
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// getBackend returns the cache store. Without remote cache configuration cacheDir holds the cache itself,
// otherwise it is the staging area of the remote cache.
func getBackend(ctx context.Context, cacheDir string) (cache.Backend, string, error) {
	if cacheDir == "" {
		return nil, "", xerrors.Errorf("cache directory is required")
	}

	bucket := os.Getenv(EnvvarRemoteCacheBucket)
	if bucket == "" {
		store, err := local.NewFilesystemCache(cacheDir)
		if err != nil {
			return nil, "", err
		}
		return store, cacheDir, nil
	}

	rcfg := &cache.RemoteConfig{
		BucketName: bucket,
		Prefix:     os.Getenv(EnvvarRemoteCachePrefix),
		Region:     os.Getenv(EnvvarRemoteCacheRegion),
	}
	if rcfg.Prefix == "" {
		rcfg.Prefix = "wheel-cache/"
	}

	switch storage := strings.ToUpper(os.Getenv(EnvvarRemoteCacheStorage)); storage {
	case "GCP":
		return remote.NewGSUtilCache(rcfg, cacheDir), fmt.Sprintf("gs://%s/%s", bucket, rcfg.Prefix), nil
	case "", "AWS":
		store, err := remote.NewS3Cache(ctx, rcfg, cacheDir)
		if err != nil {
			return nil, "", err
		}
		return store, fmt.Sprintf("s3://%s/%s", bucket, rcfg.Prefix), nil
	default:
		return nil, "", xerrors.Errorf("unsupported remote cache storage %q: must be AWS or GCP", storage)
	}
}
