package app

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/log"
	"github.com/blackwell-systems/gitpm/internal/orchestrator"
	"github.com/blackwell-systems/gitpm/internal/output"
	"github.com/blackwell-systems/gitpm/internal/store"
)

var (
	historyFlagLimit   int
	historyFlagSession string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded package operations",
	Long: `Show the package operations gitpm has run, newest first.

Every list, search, add and remove that completes is recorded together with
the session that ran it, whether it succeeded and its status message.`,
	Example: `  gitpm history                  # Last 20 operations
  gitpm history --limit 0        # Everything
  gitpm history --session <id>   # Operations of one session`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVar(&historyFlagLimit, "limit", 20, "maximum number of operations to show (0 for all)")
	historyCmd.Flags().StringVar(&historyFlagSession, "session", "", "only show operations of this session")
}

func runHistory(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	ops, err := e.store.ListOperations(historyFlagSession, historyFlagLimit)
	if err != nil {
		return fmt.Errorf("failed to list operations: %w", err)
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderHistoryTable(ops))
	return nil
}

// historyRecorder stores completed orchestrator operations under one session
// id and remembers the failures of this process.
type historyRecorder struct {
	store     *store.Store
	sessionID string

	mu     sync.Mutex
	failed []orchestrator.Operation
}

func newHistoryRecorder(st *store.Store) *historyRecorder {
	return &historyRecorder{
		store:     st,
		sessionID: uuid.NewString(),
	}
}

// RecordOperation implements orchestrator.Recorder.
func (r *historyRecorder) RecordOperation(op orchestrator.Operation) {
	row := &store.Operation{
		SessionID:  r.sessionID,
		Kind:       op.Kind,
		Target:     op.Target,
		Success:    op.Success,
		Message:    op.Message,
		StartedAt:  op.Started,
		FinishedAt: op.Finished,
	}
	if _, err := r.store.InsertOperation(row); err != nil {
		log.Warn("recording %s %s: %v", op.Kind, op.Target, err)
	}

	if !op.Success {
		r.mu.Lock()
		r.failed = append(r.failed, op)
		r.mu.Unlock()
	}
}

// Failed returns the failed operations recorded so far.
func (r *historyRecorder) Failed() []orchestrator.Operation {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]orchestrator.Operation(nil), r.failed...)
}
