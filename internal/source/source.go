// Package source parses package references: git URLs with an optional
// "#ref" suffix, registry "name@version" pairs and local paths.
package source

import (
	"path/filepath"
	"strings"
)

// Kind classifies a package reference.
type Kind int

const (
	KindRegistry Kind = iota
	KindGit
	KindLocal
)

// String returns the human-readable name of the kind.
func (k Kind) String() string {
	switch k {
	case KindRegistry:
		return "registry"
	case KindGit:
		return "git"
	case KindLocal:
		return "local"
	default:
		return "unknown"
	}
}

// Spec is a parsed package reference.
type Spec struct {
	Raw  string // original input, trimmed
	Kind Kind
	Name string // registry: package name, git: repository name, local: dir name
	URL  string // git: clone URL without the #ref suffix, local: path
	Ref  string // git: branch/tag/commit after '#', registry: version after '@'
}

// ExtractGitSourceFromID derives a reinstallable source reference from a
// resolved git package id of the form <name>@<sourceRef>[#<hash>]. The
// resolved hash is dropped so a reinstall tracks the ref instead of the
// previously resolved commit.
func ExtractGitSourceFromID(packageID string) (string, bool) {
	if strings.TrimSpace(packageID) == "" {
		return "", false
	}

	_, src, ok := strings.Cut(packageID, "@")
	if !ok {
		return "", false
	}

	if idx := strings.IndexByte(src, '#'); idx >= 0 {
		src = src[:idx]
	}

	return src, true
}

// Parse classifies raw and splits it into name, URL and ref.
// Supported formats:
//   - Registry: "name", "name@version"
//   - Git:      "https://host/org/repo.git#v1", "git@host:org/repo.git", "github.com/org/repo"
//   - Local:    "./path", "../path", "/absolute/path", "file:..."
func Parse(raw string) Spec {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "file:") {
		path := strings.TrimPrefix(raw, "file:")
		return Spec{Raw: raw, Kind: KindLocal, Name: filepath.Base(path), URL: path}
	}

	if strings.HasPrefix(raw, ".") || strings.HasPrefix(raw, "/") {
		return Spec{Raw: raw, Kind: KindLocal, Name: filepath.Base(raw), URL: raw}
	}

	if IsGit(raw) {
		url, ref, _ := strings.Cut(raw, "#")
		return Spec{Raw: raw, Kind: KindGit, Name: repoName(url), URL: url, Ref: ref}
	}

	name, version, _ := strings.Cut(raw, "@")
	return Spec{Raw: raw, Kind: KindRegistry, Name: name, Ref: version}
}

// IsGit reports whether raw looks like a git repository reference.
func IsGit(raw string) bool {
	url, _, _ := strings.Cut(raw, "#")
	if strings.Contains(url, "://") || strings.HasPrefix(url, "git@") {
		return true
	}
	if strings.HasSuffix(url, ".git") {
		return true
	}
	for _, host := range []string{"github.com/", "gitlab.com/", "bitbucket.org/"} {
		if strings.HasPrefix(url, host) {
			return true
		}
	}
	return false
}

// repoName extracts the repository name from a clone URL.
func repoName(url string) string {
	url = strings.TrimSuffix(strings.TrimRight(url, "/"), ".git")

	// "git@host:org/repo"
	if strings.HasPrefix(url, "git@") {
		if idx := strings.LastIndex(url, ":"); idx > 0 {
			url = url[idx+1:]
		}
	}

	if idx := strings.LastIndex(url, "/"); idx >= 0 {
		return url[idx+1:]
	}
	return url
}
