package wheelcache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// newTestConfig returns a completed configuration rooted in a temporary directory.
// The toolchain lookups are set up to fail, so the toolchain hash is stable.
func newTestConfig(t *testing.T) *Config {
	t.Helper()

	base := t.TempDir()
	cfg := &Config{
		BaseDir:                base,
		PlatformVersionCommand: []string{filepath.Join(base, "no-such-command")},
	}
	require.NoError(t, cfg.Complete())
	require.NoError(t, os.MkdirAll(cfg.PackagesDir, 0755))
	return cfg
}

// writeRecipes writes a meta.yaml for each package
func writeRecipes(t *testing.T, cfg *Config, recipes map[string]string) {
	t.Helper()
	for name, content := range recipes {
		writeFile(t, filepath.Join(cfg.RecipeDir(name), RecipeFilename), content)
	}
}

func writeFile(t *testing.T, fn, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(fn), 0755))
	require.NoError(t, os.WriteFile(fn, []byte(content), 0644))
}
