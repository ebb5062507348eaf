package upm

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a remove target matches no installed package.
var ErrNotFound = errors.New("package not found")

// Origin identifies where an installed package came from.
type Origin int

const (
	OriginRegistry Origin = iota
	OriginGit
	OriginOther
)

// String returns the human-readable name of the origin.
func (o Origin) String() string {
	switch o {
	case OriginRegistry:
		return "registry"
	case OriginGit:
		return "git"
	default:
		return "other"
	}
}

// ParseOrigin converts a stored origin name back to an Origin.
// Unknown names map to OriginOther.
func ParseOrigin(s string) Origin {
	switch s {
	case "registry":
		return OriginRegistry
	case "git":
		return OriginGit
	default:
		return OriginOther
	}
}

// Versions describes the versions a registry advertises for a package.
type Versions struct {
	Latest           string
	LatestCompatible string
	All              []string
}

// Package is an immutable snapshot of a package as reported by the service.
type Package struct {
	Name         string
	Version      string
	Origin       Origin
	PackageID    string // <name>@<sourceRef>[#<resolvedHash>] for git packages
	ResolvedPath string // directory holding the installed contents
	Versions     Versions
	InstalledAt  time.Time
}
