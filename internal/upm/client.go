// Package upm defines the boundary to the package service that actually
// installs, removes, lists and searches packages, and provides a local
// implementation backed by git clones, a sqlite index and a registry index.
//
// Every operation returns immediately with a Request handle. Operations run
// independently of each other; serializing them is the caller's job.
package upm

// Client is the asynchronous package service.
type Client interface {
	// List reports the installed packages. With refresh set, the service
	// re-synchronizes its index with the filesystem first.
	List(refresh bool) *Request[[]Package]

	// Add installs ref, a git source reference or a registry "name@version".
	Add(ref string) *Request[Package]

	// Remove uninstalls the package with the given id or name and completes
	// with the same string.
	Remove(idOrName string) *Request[string]

	// Search looks name up in the registry.
	Search(name string) *Request[[]Package]
}
