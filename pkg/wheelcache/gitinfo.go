package wheelcache

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// GitError represents an error that occurred during a Git operation
type GitError struct {
	Op  string
	Err error
}

func (e *GitError) Error() string {
	return fmt.Sprintf("git operation %s failed: %v", e.Op, e.Err)
}

func (e *GitError) Unwrap() error {
	return e.Err
}

// executeGitCommand is a helper function to execute Git commands and handle their output.
// Only stdout is returned; stderr ends up in the error if the command fails.
func executeGitCommand(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		var eerr *exec.ExitError
		if errors.As(err, &eerr) && len(eerr.Stderr) > 0 {
			err = fmt.Errorf("%w: %s", err, strings.TrimSpace(string(eerr.Stderr)))
		}
		return "", &GitError{
			Op:  strings.Join(args, " "),
			Err: err,
		}
	}
	return strings.TrimSpace(string(out)), nil
}

// GetHeadCommit returns the commit checked out in the working copy at loc.
// loc may also be a submodule checkout.
func GetHeadCommit(ctx context.Context, loc string) (string, error) {
	stat, err := os.Stat(loc)
	if err != nil {
		return "", &GitError{Op: "rev-parse HEAD", Err: err}
	}
	if !stat.IsDir() {
		return "", &GitError{Op: "rev-parse HEAD", Err: fmt.Errorf("%s is not a directory", loc)}
	}

	commit, err := executeGitCommand(ctx, loc, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	if commit == "" {
		return "", &GitError{Op: "rev-parse HEAD", Err: fmt.Errorf("empty output")}
	}
	return commit, nil
}
