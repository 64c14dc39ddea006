package wheelcache

import (
	"bufio"
	"bytes"
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	log "github.com/sirupsen/logrus"
	"golang.org/x/xerrors"
)

const (
	// unknownValue is folded into the toolchain digest when a toolchain lookup fails
	unknownValue = "unknown"

	platformVersionVariable = "PYODIDE_EMSCRIPTEN_VERSION"
)

// projectConfigLines are the prefixes of project configuration lines which affect builds.
// Nothing else in that file is hashed.
var projectConfigLines = []struct {
	Prefix string
	Tag    string
}{
	{Prefix: "default_cross_build_env_url", Tag: "xbuildenv"},
	{Prefix: "rust_toolchain", Tag: "rust"},
}

// ComputeToolchainDigest derives the hash of all environment-wide build inputs.
//
// Fold order:
//  1. pyodide-build-commit:<revision of cfg.ToolchainDir>
//  2. emscripten:<target platform version>
//  3. xbuildenv:<line> / rust:<line> for matching project configuration lines, in file order
//  4. environment.yml:<content of cfg.EnvironmentFile>
//  5. constraints:<content of cfg.ConstraintsFile>
//
// Failed lookups fold "unknown" instead and are logged, unless cfg.Strict is set.
func ComputeToolchainDigest(ctx context.Context, cfg *Config) (string, error) {
	d := NewDigest()

	rev, err := GetHeadCommit(ctx, cfg.ToolchainDir)
	if err != nil {
		if cfg.Strict {
			return "", xerrors.Errorf("cannot determine toolchain revision: %w", err)
		}
		log.WithError(err).WithField("dir", cfg.ToolchainDir).Warn("cannot determine toolchain revision - assuming unknown")
		rev = unknownValue
	}
	d.Tagged("pyodide-build-commit", rev)

	version := platformVersion(ctx, cfg)
	if version == unknownValue && cfg.Strict {
		return "", xerrors.Errorf("cannot determine target platform version")
	}
	d.Tagged("emscripten", version)

	if fc, err := readOptional(cfg.ProjectConfigFile); err != nil {
		return "", err
	} else if fc != nil {
		for _, line := range strings.Split(string(fc), "\n") {
			line = strings.TrimSpace(line)
			for _, l := range projectConfigLines {
				if strings.HasPrefix(line, l.Prefix) {
					d.Tagged(l.Tag, line)
					break
				}
			}
		}
	}

	if fc, err := readOptional(cfg.EnvironmentFile); err != nil {
		return "", err
	} else if fc != nil {
		d.Tagged("environment.yml", string(fc))
	}

	if fc, err := readOptional(cfg.ConstraintsFile); err != nil {
		return "", err
	} else if fc != nil {
		d.Tagged("constraints", string(fc))
	}

	return d.Hex(), nil
}

// platformVersion asks the toolchain for the target platform version and falls back
// to the toolchain's own configuration module.
func platformVersion(ctx context.Context, cfg *Config) string {
	if len(cfg.PlatformVersionCommand) > 0 {
		cmd := exec.CommandContext(ctx, cfg.PlatformVersionCommand[0], cfg.PlatformVersionCommand[1:]...)
		cmd.Dir = cfg.BaseDir
		out, err := cmd.Output()
		if err == nil {
			return strings.TrimSpace(string(out))
		}
		log.WithError(err).WithField("command", strings.Join(cfg.PlatformVersionCommand, " ")).Debug("cannot query target platform version")
	}

	fn := filepath.Join(cfg.ToolchainDir, "pyodide_build", "config.py")
	fc, err := os.ReadFile(fn)
	if err == nil {
		scanner := bufio.NewScanner(bytes.NewReader(fc))
		for scanner.Scan() {
			line := scanner.Text()
			if !strings.Contains(line, platformVersionVariable) || !strings.Contains(line, "=") {
				continue
			}
			val := line[strings.LastIndex(line, "=")+1:]
			val = strings.TrimSpace(val)
			val = strings.Trim(val, `"'`)
			return val
		}
	}

	log.WithField("config", fn).Warn("cannot determine target platform version - assuming unknown")
	return unknownValue
}

// readOptional reads a file, returning nil content if it does not exist
func readOptional(fn string) ([]byte, error) {
	if fn == "" {
		return nil, nil
	}
	fc, err := os.ReadFile(fn)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, xerrors.Errorf("cannot read %s: %w", fn, err)
	}
	return fc, nil
}
