package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/blackwell-systems/gitpm/internal/config"
	"github.com/blackwell-systems/gitpm/internal/log"
	"github.com/blackwell-systems/gitpm/internal/orchestrator"
	"github.com/blackwell-systems/gitpm/internal/watcher"
)

var (
	serveStop        bool
	servePIDFile     string
	serveLogFile     string
	serveMetricsAddr string
	serveAcceptAll   bool

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Keep installed packages in step with the links file",
		Long: `Run gitpm continuously.

The serve command installs every link listed in the links file (one
reference per line, '#' starts a comment) and watches the file for changes.
Links added to the file are installed together with their gitdependencies;
saving the file again never reinstalls a link that was already requested.

Prometheus metrics about dispatched and failed operations, queue depth and
discovered gitdependencies are served on /metrics.

Only one serve process may run per database; its PID is recorded next to
the database and 'gitpm serve --stop' terminates it.`,
		Example: `  # Run in foreground (Ctrl+C to stop)
  gitpm serve

  # Serve metrics on another address and log to a file
  gitpm serve --metrics-addr :9100 --log-file /tmp/gitpm.log

  # Stop a running serve process
  gitpm serve --stop`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}
)

func init() {
	serveCmd.Flags().BoolVar(&serveStop, "stop", false, "stop a running serve process")
	serveCmd.Flags().StringVar(&servePIDFile, "pid-file", "", "PID file path (default: next to the database)")
	serveCmd.Flags().StringVar(&serveLogFile, "log-file", "", "write logs to this file instead of stderr")
	serveCmd.Flags().StringVar(&serveMetricsAddr, "metrics-addr", "", "metrics listen address, empty string from config disables (default: config metrics_addr)")
	serveCmd.Flags().BoolVar(&serveAcceptAll, "yes", false, "accept update offers instead of declining them")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	pidFile := resolvePIDFile(cfg)

	if serveStop {
		if err := watcher.Stop(pidFile); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Sent stop signal to gitpm serve")
		return nil
	}

	if serveLogFile != "" {
		logF, err := os.OpenFile(serveLogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		defer logF.Close()
		log.SetOutput(logF)
		defer log.SetOutput(os.Stderr)
	}

	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	if err := watcher.WritePIDFile(pidFile); err != nil {
		return err
	}
	defer watcher.RemovePIDFile(pidFile)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	var prompter orchestrator.Prompter = orchestrator.DeclinePrompter{}
	if serveAcceptAll {
		prompter = orchestrator.AcceptPrompter{}
	}
	o := e.orchestrator(prompter, orchestrator.NewMetrics(reg))

	if err := os.MkdirAll(filepath.Dir(e.cfg.LinksFile), 0755); err != nil {
		return fmt.Errorf("failed to create links directory: %w", err)
	}
	w, err := watcher.New(e.cfg.LinksFile, func(links []string) {
		for _, link := range links {
			if o.EnqueueAdd(link, false) {
				log.Info("queued %s", link)
			}
		}
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := e.cfg.MetricsAddr
	if cmd.Flags().Changed("metrics-addr") {
		addr = serveMetricsAddr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl+C to stop)\n", e.cfg.LinksFile)
	err = serve(ctx, e.cfg.TickInterval, o, w, reg, addr)
	if errors.Is(err, context.Canceled) {
		err = nil
	}
	return err
}

// serve runs the orchestrator loop, the links watcher and the metrics server
// until ctx is done or one of them fails.
func serve(ctx context.Context, interval time.Duration, o *orchestrator.Orchestrator, w *watcher.Watcher, reg *prometheus.Registry, addr string) error {
	o.RequestList(true)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return o.Run(gctx, interval)
	})

	g.Go(func() error {
		if err := w.Start(); err != nil {
			return err
		}
		<-gctx.Done()
		return w.Stop()
	})

	if addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			log.Info("serving metrics on %s", addr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	return g.Wait()
}

func resolvePIDFile(cfg *config.Config) string {
	if servePIDFile != "" {
		return servePIDFile
	}
	if cfg.DBPath == ":memory:" {
		return filepath.Join(os.TempDir(), "gitpm-serve.pid")
	}
	return filepath.Join(filepath.Dir(cfg.DBPath), "serve.pid")
}
