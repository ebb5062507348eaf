// Package orchestrator serializes package operations against a upm.Client.
//
// The Orchestrator is a polled state machine. Each call to Tick either
// observes the completion of the one in-flight operation or dispatches the
// next pending one, never both:
//
//	list > search > add > remove
//
// Completing an add of a git package scans its descriptor for
// "gitdependencies" and force-enqueues every entry, then schedules a list
// refresh. Completing a remove also schedules a list refresh.
//
// Example usage:
//
//	o := orchestrator.New(client, orchestrator.Options{Prompter: prompter})
//	defer o.Close()
//
//	o.RequestList(true)
//	o.EnqueueAdd("https://example.com/org/tools.git#main", false)
//	if err := o.RunUntilIdle(ctx, 50*time.Millisecond); err != nil {
//		return err
//	}
//	fmt.Println(o.Status())
package orchestrator

import (
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blackwell-systems/gitpm/internal/ledger"
	"github.com/blackwell-systems/gitpm/internal/log"
	"github.com/blackwell-systems/gitpm/internal/manifest"
	"github.com/blackwell-systems/gitpm/internal/source"
	"github.com/blackwell-systems/gitpm/internal/upm"
)

// DefaultMaxDependencyDepth bounds how many levels of gitdependencies a single
// user request may cascade through.
const DefaultMaxDependencyDepth = 16

// ErrBusy is returned when an update check is requested while another one is
// still pending.
var ErrBusy = errors.New("an update check is already in progress")

// State is the externally visible phase of the orchestrator.
type State int

const (
	StateIdle State = iota
	StateListing
	StateSearching
	StateAdding
	StateRemoving
)

// String returns the human-readable name of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateListing:
		return "listing"
	case StateSearching:
		return "searching"
	case StateAdding:
		return "adding"
	case StateRemoving:
		return "removing"
	default:
		return "unknown"
	}
}

// Prompter asks the user to confirm actions and shows notices. Its methods
// run with the orchestrator locked and must not call back into it.
type Prompter interface {
	// ConfirmUpdate offers to update a registry package from installed to latest.
	ConfirmUpdate(name, installed, latest string) bool
	// ConfirmReinstall offers to reinstall a git package from source.
	ConfirmReinstall(name, source string) bool
	// Notify shows a message that needs no answer.
	Notify(title, message string)
}

// Progress displays the operation currently in flight.
type Progress interface {
	Show(title, message string, fraction float64)
	Clear()
}

// Recorder receives every completed operation.
type Recorder interface {
	RecordOperation(op Operation)
}

// Operation describes one completed service call.
type Operation struct {
	Kind     string // list, search, add or remove
	Target   string
	Success  bool
	Message  string
	Started  time.Time
	Finished time.Time
}

// Options configures an Orchestrator. Zero values select defaults.
type Options struct {
	Prompter Prompter
	Progress Progress
	Recorder Recorder
	Metrics  *Metrics

	// ReadDependencies returns the gitdependencies of an installed package
	// directory. Defaults to manifest.ReadGitDependencies.
	ReadDependencies func(resolvedPath string) ([]string, bool)

	// MaxDependencyDepth limits cascading dependency discovery. Zero selects
	// DefaultMaxDependencyDepth; a negative value disables the limit.
	MaxDependencyDepth int

	// Pinned lists references installed at an exact ref, such as the url#commit
	// entries of a snapshot. Discovered gitdependencies that clone from the same
	// URL are skipped so they cannot replace the pinned install.
	Pinned []string
}

// Orchestrator owns the request queues and the single in-flight operation.
// All methods are safe for concurrent use; Tick is normally driven by Run or
// RunUntilIdle.
type Orchestrator struct {
	mu sync.Mutex

	client           upm.Client
	prompter         Prompter
	progress         Progress
	recorder         Recorder
	metrics          *Metrics
	readDependencies func(string) ([]string, bool)
	maxDepth         int

	queue  *ledger.Queue
	depths map[string]int
	pinned map[string]bool

	slot    operation
	started time.Time

	listPending   bool
	listRefresh   bool
	searchPending string

	updateCheckName    string
	updateCheckVersion string

	installed []upm.Package
	status    string
}

// New creates an Orchestrator that dispatches to client.
func New(client upm.Client, opts Options) *Orchestrator {
	o := &Orchestrator{
		client:           client,
		prompter:         opts.Prompter,
		progress:         opts.Progress,
		recorder:         opts.Recorder,
		metrics:          opts.Metrics,
		readDependencies: opts.ReadDependencies,
		maxDepth:         opts.MaxDependencyDepth,
		queue:            ledger.NewQueue(),
		depths:           make(map[string]int),
		pinned:           make(map[string]bool),
	}

	for _, ref := range opts.Pinned {
		if url := source.Parse(ref).URL; url != "" {
			o.pinned[ledger.Key(url)] = true
		}
	}

	if o.prompter == nil {
		o.prompter = DeclinePrompter{}
	}
	if o.readDependencies == nil {
		o.readDependencies = manifest.ReadGitDependencies
	}
	if o.maxDepth == 0 {
		o.maxDepth = DefaultMaxDependencyDepth
	}

	return o
}

// EnqueueAdd requests installation of link. Unless force is set, a link that
// was already requested this session is ignored; a link that is already
// queued is always ignored. It reports whether the link was queued.
func (o *Orchestrator) EnqueueAdd(link string, force bool) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	ok := o.enqueueAdd(link, force, 0)
	o.metrics.setQueueDepth(o.queue)
	return ok
}

// EnqueueRemove requests removal of the package with the given id or name.
func (o *Orchestrator) EnqueueRemove(idOrName string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()

	ok := o.queue.EnqueueRemove(idOrName)
	o.metrics.setQueueDepth(o.queue)
	return ok
}

// EnqueueUpdateAllGit force-reinstalls every installed git package from its
// source reference. Dependencies are refreshed as each reinstall completes.
// It returns the number of packages queued.
func (o *Orchestrator) EnqueueUpdateAllGit() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	count := 0
	for _, pkg := range o.installed {
		if pkg.Origin != upm.OriginGit {
			continue
		}

		src, ok := source.ExtractGitSourceFromID(pkg.PackageID)
		if !ok || src == "" {
			continue
		}

		if o.enqueueAdd(src, true, 0) {
			count++
		}
	}

	if count > 0 {
		o.status = "Queued Update All (Git)."
	} else {
		o.status = "No Git packages to update."
	}
	o.metrics.setQueueDepth(o.queue)
	return count
}

// CheckUpdates looks for a newer version of pkg. Registry packages are
// searched in the registry and the user is offered the update once the search
// completes. Git packages are offered a forced reinstall from their source.
func (o *Orchestrator) CheckUpdates(pkg upm.Package) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	switch pkg.Origin {
	case upm.OriginRegistry:
		if o.searchPending != "" || o.updateCheckName != "" {
			return ErrBusy
		}
		o.updateCheckName = pkg.Name
		o.updateCheckVersion = pkg.Version
		o.searchPending = pkg.Name
		return nil

	case upm.OriginGit:
		src, ok := source.ExtractGitSourceFromID(pkg.PackageID)
		if !ok || src == "" {
			o.prompter.Notify("Update", fmt.Sprintf("No git source could be derived for %s.", pkg.Name))
			return nil
		}
		if o.prompter.ConfirmReinstall(pkg.Name, src) {
			o.enqueueAdd(src, true, 0)
			o.metrics.setQueueDepth(o.queue)
		} else {
			o.status = "Update canceled."
		}
		return nil

	default:
		o.prompter.Notify("Update", fmt.Sprintf("Update check not supported for source: %s", pkg.Origin))
		return nil
	}
}

// RequestList schedules a refresh of the installed package snapshot.
func (o *Orchestrator) RequestList(refresh bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.requestList(refresh)
}

func (o *Orchestrator) requestList(refresh bool) {
	o.listPending = true
	o.listRefresh = o.listRefresh || refresh
}

// Tick advances the state machine by one step.
func (o *Orchestrator) Tick() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.slot != nil {
		if !o.slot.completed() {
			return
		}
		o.complete()
		return
	}

	o.dispatch()
}

// complete consumes the finished operation in the slot.
func (o *Orchestrator) complete() {
	op := o.slot
	o.slot = nil

	err := op.finish(o)
	finished := time.Now()

	o.metrics.observe(op.kind(), err, finished.Sub(o.started))
	if err != nil {
		log.Warn("%s %s failed: %v", op.kind(), op.target(), err)
	} else {
		log.Debug("%s %s completed", op.kind(), op.target())
	}

	if o.recorder != nil {
		o.recorder.RecordOperation(Operation{
			Kind:     op.kind(),
			Target:   op.target(),
			Success:  err == nil,
			Message:  o.status,
			Started:  o.started,
			Finished: finished,
		})
	}

	o.metrics.setQueueDepth(o.queue)
	o.clearProgress()
}

// dispatch starts the highest-priority pending operation, if any.
func (o *Orchestrator) dispatch() {
	switch {
	case o.listPending:
		refresh := o.listRefresh
		o.listPending, o.listRefresh = false, false
		o.status = "Refreshing installed packages…"
		o.start(&listOp{refresh: refresh, req: o.client.List(refresh)}, 0.1)

	case o.searchPending != "":
		name := o.searchPending
		o.searchPending = ""
		o.status = fmt.Sprintf("Checking updates for %s…", name)
		o.start(&searchOp{name: name, req: o.client.Search(name)}, 0.2)

	case o.queue.PendingAdds() > 0:
		link, _ := o.queue.NextAdd()
		k := ledger.Key(link)
		depth := o.depths[k]
		delete(o.depths, k)
		o.status = "Adding " + link
		o.start(&addOp{link: link, depth: depth, req: o.client.Add(link)}, 0.3)

	case o.queue.PendingRemoves() > 0:
		id, _ := o.queue.NextRemove()
		o.status = "Removing " + id
		o.start(&removeOp{idOrName: id, req: o.client.Remove(id)}, 0.3)
	}
}

func (o *Orchestrator) start(op operation, fraction float64) {
	o.slot = op
	o.started = time.Now()
	o.metrics.dispatched(op.kind())
	o.metrics.setQueueDepth(o.queue)
	log.Debug("dispatching %s %s", op.kind(), op.target())

	if o.progress != nil {
		o.progress.Show("gitpm", o.status, fraction)
	}
}

// clearProgress releases the progress indicator, tolerating a failing
// implementation.
func (o *Orchestrator) clearProgress() {
	if o.progress == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Debug("clearing progress: %v", r)
		}
	}()
	o.progress.Clear()
}

// Close releases the progress indicator. An operation that is still in flight
// keeps running in the service; its result is discarded.
func (o *Orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.clearProgress()
}

// Installed returns a copy of the current installed package snapshot.
func (o *Orchestrator) Installed() []upm.Package {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]upm.Package(nil), o.installed...)
}

// Find returns the installed package whose name or id matches nameOrID,
// compared case-insensitively.
func (o *Orchestrator) Find(nameOrID string) (upm.Package, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, pkg := range o.installed {
		if strings.EqualFold(pkg.Name, nameOrID) || strings.EqualFold(pkg.PackageID, nameOrID) {
			return pkg, true
		}
	}
	return upm.Package{}, false
}

// Status returns the latest human-readable status line.
func (o *Orchestrator) Status() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// State returns the phase of the in-flight operation, or StateIdle.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.slot == nil {
		return StateIdle
	}
	return o.slot.state()
}

// Busy reports whether an operation is in flight or about to be dispatched.
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.slot != nil || o.listPending || o.searchPending != "" || !o.queue.Empty()
}

// Pending returns the number of queued adds and removes.
func (o *Orchestrator) Pending() (adds, removes int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.queue.PendingAdds(), o.queue.PendingRemoves()
}
