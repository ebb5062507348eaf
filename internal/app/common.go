package app

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/blackwell-systems/gitpm/internal/config"
	"github.com/blackwell-systems/gitpm/internal/orchestrator"
	"github.com/blackwell-systems/gitpm/internal/output"
	"github.com/blackwell-systems/gitpm/internal/registry"
	"github.com/blackwell-systems/gitpm/internal/snapshots"
	"github.com/blackwell-systems/gitpm/internal/store"
	"github.com/blackwell-systems/gitpm/internal/upm"
)

// env holds the components a command works with. Open it with openEnv and
// release it with Close.
type env struct {
	cfg      *config.Config
	store    *store.Store
	client   *upm.LocalClient
	snaps    *snapshots.Manager
	recorder *historyRecorder
}

func openEnv() (*env, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	if cfg.DBPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}
	st, err := store.Open(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	idx, err := registry.Load(cfg.RegistryIndex)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to load registry index: %w", err)
	}

	client := upm.NewLocalClient(upm.LocalOptions{
		PackagesDir:   cfg.PackagesDir,
		Store:         st,
		Registry:      idx,
		EngineVersion: cfg.EngineVersion,
	})

	return &env{
		cfg:      cfg,
		store:    st,
		client:   client,
		snaps:    snapshots.New(st, cfg.SnapshotDir, cfg.EngineVersion),
		recorder: newHistoryRecorder(st),
	}, nil
}

func (e *env) Close() error {
	return e.store.Close()
}

// options returns orchestrator options that report progress on stderr and
// record every operation in the history.
func (e *env) options(prompter orchestrator.Prompter, metrics *orchestrator.Metrics) orchestrator.Options {
	return orchestrator.Options{
		Prompter:           prompter,
		Progress:           output.NewIndicator(os.Stderr),
		Recorder:           e.recorder,
		Metrics:            metrics,
		MaxDependencyDepth: e.cfg.MaxDependencyDepth,
	}
}

// orchestrator returns an Orchestrator over the local client.
func (e *env) orchestrator(prompter orchestrator.Prompter, metrics *orchestrator.Metrics) *orchestrator.Orchestrator {
	return orchestrator.New(e.client, e.options(prompter, metrics))
}

// drain runs o until it has nothing left to do and reports the operations
// that failed while it ran.
func (e *env) drain(ctx context.Context, o *orchestrator.Orchestrator) error {
	before := len(e.recorder.Failed())
	if err := o.RunUntilIdle(ctx, e.cfg.TickInterval); err != nil {
		return err
	}

	failed := e.recorder.Failed()[before:]
	if len(failed) == 0 {
		return nil
	}
	for _, op := range failed {
		fmt.Fprintf(os.Stderr, "✗ %s\n", op.Message)
	}
	return fmt.Errorf("%d operation(s) failed (see 'gitpm history')", len(failed))
}

// gitPackageNames returns the names of indexed git packages.
func gitPackageNames(st *store.Store) ([]string, error) {
	pkgs, err := st.ListPackages()
	if err != nil {
		return nil, err
	}
	var names []string
	for _, p := range pkgs {
		if upm.ParseOrigin(p.Origin) == upm.OriginGit {
			names = append(names, p.Name)
		}
	}
	return names, nil
}
