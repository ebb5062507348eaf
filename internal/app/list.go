package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/output"
)

var listFlagRefresh bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed packages",
	Long: `List installed packages with their version, source and install time.

Registry packages with a newer engine-compatible version are marked in the
Update column. With --refresh, index entries whose directory has been deleted
are pruned first.`,
	Example: `  gitpm list
  gitpm list --refresh`,
	Args: cobra.NoArgs,
	RunE: runList,
}

func init() {
	listCmd.Flags().BoolVar(&listFlagRefresh, "refresh", false, "re-synchronize the index with the packages directory")
}

func runList(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	o := e.orchestrator(nil, nil)
	o.RequestList(listFlagRefresh)
	if err := e.drain(cmd.Context(), o); err != nil {
		return err
	}

	fmt.Fprint(cmd.OutOrStdout(), output.RenderPackageTable(o.Installed()))
	return nil
}
