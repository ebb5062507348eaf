package orchestrator

import (
	"fmt"
	"strings"

	"github.com/blackwell-systems/gitpm/internal/ledger"
	"github.com/blackwell-systems/gitpm/internal/log"
	"github.com/blackwell-systems/gitpm/internal/source"
	"github.com/blackwell-systems/gitpm/internal/upm"
)

// operation is the single in-flight service call. Only one value can occupy
// the orchestrator slot, so two concurrent operations are unrepresentable.
type operation interface {
	state() State
	kind() string
	target() string
	completed() bool
	// finish consumes the result and applies its side effects.
	// It returns the error to record, if any.
	finish(o *Orchestrator) error
}

type listOp struct {
	refresh bool
	req     *upm.Request[[]upm.Package]
}

func (op *listOp) state() State { return StateListing }
func (op *listOp) kind() string { return "list" }
func (op *listOp) target() string { return "" }
func (op *listOp) completed() bool { return op.req.IsCompleted() }

func (op *listOp) finish(o *Orchestrator) error {
	if op.req.Status() != upm.StatusSuccess {
		err := op.req.Err()
		o.status = "Package list failed: " + errMessage(err)
		return err
	}

	result := op.req.Result()
	o.installed = append([]upm.Package(nil), result...)
	o.status = fmt.Sprintf("Loaded %d installed package(s).", len(o.installed))
	return nil
}

type searchOp struct {
	name string
	req  *upm.Request[[]upm.Package]
}

func (op *searchOp) state() State { return StateSearching }
func (op *searchOp) kind() string { return "search" }
func (op *searchOp) target() string { return op.name }
func (op *searchOp) completed() bool { return op.req.IsCompleted() }

func (op *searchOp) finish(o *Orchestrator) error {
	name, have := o.updateCheckName, o.updateCheckVersion
	o.updateCheckName, o.updateCheckVersion = "", ""

	if op.req.Status() != upm.StatusSuccess {
		err := op.req.Err()
		o.status = "Search failed: " + errMessage(err)
		return err
	}

	latest := ""
	for _, pkg := range op.req.Result() {
		if strings.EqualFold(pkg.Name, name) {
			latest = pkg.Versions.LatestCompatible
			if latest == "" {
				latest = pkg.Versions.Latest
			}
			break
		}
	}

	if latest == "" || strings.EqualFold(latest, have) {
		o.status = "No update found."
		return nil
	}

	if o.prompter.ConfirmUpdate(name, have, latest) {
		o.enqueueAdd(name+"@"+latest, false, 0)
		o.status = fmt.Sprintf("Queued update: %s %s -> %s", name, have, latest)
	} else {
		o.status = "Update canceled."
	}
	return nil
}

type addOp struct {
	link  string
	depth int
	req   *upm.Request[upm.Package]
}

func (op *addOp) state() State { return StateAdding }
func (op *addOp) kind() string { return "add" }
func (op *addOp) target() string { return op.link }
func (op *addOp) completed() bool { return op.req.IsCompleted() }

func (op *addOp) finish(o *Orchestrator) error {
	if op.req.Status() != upm.StatusSuccess {
		err := op.req.Err()
		o.status = "Add failed: " + errMessage(err)
		return err
	}

	pkg := op.req.Result()
	o.status = fmt.Sprintf("Installed: %s %s", pkg.Name, pkg.Version)

	// Dependencies of a git package are re-added even when seen before, so
	// updating a package also refreshes everything it declares.
	if pkg.Origin == upm.OriginGit {
		o.discoverDependencies(pkg, op.depth)
	}

	o.requestList(true)
	return nil
}

type removeOp struct {
	idOrName string
	req      *upm.Request[string]
}

func (op *removeOp) state() State { return StateRemoving }
func (op *removeOp) kind() string { return "remove" }
func (op *removeOp) target() string { return op.idOrName }
func (op *removeOp) completed() bool { return op.req.IsCompleted() }

func (op *removeOp) finish(o *Orchestrator) error {
	if op.req.Status() != upm.StatusSuccess {
		err := op.req.Err()
		o.status = "Remove failed: " + errMessage(err)
		return err
	}

	removed := op.req.Result()
	if removed == "" {
		removed = op.idOrName
	}
	o.status = "Removed: " + removed
	o.requestList(true)
	return nil
}

// discoverDependencies force-enqueues the git dependencies declared by pkg.
func (o *Orchestrator) discoverDependencies(pkg upm.Package, depth int) {
	deps, ok := o.readDependencies(pkg.ResolvedPath)
	if !ok || len(deps) == 0 {
		return
	}

	if o.maxDepth > 0 && depth+1 > o.maxDepth {
		log.Warn("skipping %d gitdependencies of %s: discovery depth %d exceeds limit %d",
			len(deps), pkg.Name, depth+1, o.maxDepth)
		return
	}

	queued := 0
	for _, dep := range deps {
		if url := source.Parse(dep).URL; o.pinned[ledger.Key(url)] {
			log.Debug("keeping pinned %s, skipping gitdependency %s of %s", url, dep, pkg.Name)
			continue
		}
		if o.enqueueAdd(dep, true, depth+1) {
			queued++
		}
	}

	o.metrics.dependenciesDiscovered(len(deps))
	log.Info("discovered %d gitdependencies in %s (%d queued)", len(deps), pkg.Name, queued)
}

// enqueueAdd queues link and remembers the discovery depth it was found at.
func (o *Orchestrator) enqueueAdd(link string, force bool, depth int) bool {
	if !o.queue.EnqueueAdd(link, force) {
		return false
	}
	o.depths[ledger.Key(strings.TrimSpace(link))] = depth
	return true
}

func errMessage(err error) string {
	if err == nil {
		return "unknown error"
	}
	return err.Error()
}
