package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/output"
)

var searchCmd = &cobra.Command{
	Use:   "search [name]",
	Short: "Search the registry index",
	Long: `Search the registry index by package name.

An exact name match is listed first, followed by fuzzy matches. Without a
name every registry package is listed.`,
	Example: `  gitpm search com.example.tools
  gitpm search tools`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSearch,
}

func runSearch(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var name string
	if len(args) > 0 {
		name = args[0]
	}

	spinner := output.NewSpinner("Searching registry")
	spinner.SetWriter(cmd.ErrOrStderr())
	spinner.Start()

	req := e.client.Search(name)
	select {
	case <-req.Done():
	case <-cmd.Context().Done():
		spinner.Stop()
		return cmd.Context().Err()
	}
	if err := req.Err(); err != nil {
		spinner.Stop()
		return fmt.Errorf("search failed: %w", err)
	}
	spinner.StopWithMessage(fmt.Sprintf("✓ %d package(s) found", len(req.Result())))

	fmt.Fprint(cmd.OutOrStdout(), output.RenderSearchTable(req.Result()))
	return nil
}
