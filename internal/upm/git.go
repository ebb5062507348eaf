package upm

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Git is the subset of git the local client needs.
type Git interface {
	// Clone clones url into dir and checks out ref when it is not empty.
	Clone(ctx context.Context, url, ref, dir string) error
	// HeadCommit returns the full commit hash checked out in dir.
	HeadCommit(ctx context.Context, dir string) (string, error)
}

// ExecGit runs the git command line tool.
type ExecGit struct {
	// Binary defaults to "git".
	Binary string
}

func (g ExecGit) binary() string {
	if g.Binary == "" {
		return "git"
	}
	return g.Binary
}

func (g ExecGit) run(ctx context.Context, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, g.binary(), args...)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("git %s failed: %w (output: %s)", strings.Join(args, " "), err, strings.TrimSpace(string(output)))
	}
	return string(output), nil
}

// Clone implements Git.
func (g ExecGit) Clone(ctx context.Context, url, ref, dir string) error {
	if _, err := g.run(ctx, "clone", "--quiet", url, dir); err != nil {
		return err
	}
	if ref == "" {
		return nil
	}
	if _, err := g.run(ctx, "-C", dir, "checkout", "--quiet", ref); err != nil {
		return fmt.Errorf("checking out %s: %w", ref, err)
	}
	return nil
}

// HeadCommit implements Git.
func (g ExecGit) HeadCommit(ctx context.Context, dir string) (string, error) {
	out, err := g.run(ctx, "-C", dir, "rev-parse", "HEAD")
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(out), nil
}

// cloneURL turns a scheme-less host reference such as "github.com/org/repo"
// into an https URL git can clone.
func cloneURL(url string) string {
	if strings.Contains(url, "://") || strings.HasPrefix(url, "git@") || strings.HasPrefix(url, "/") {
		return url
	}
	for _, host := range []string{"github.com/", "gitlab.com/", "bitbucket.org/"} {
		if strings.HasPrefix(url, host) {
			return "https://" + url
		}
	}
	return url
}
