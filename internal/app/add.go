package app

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/blackwell-systems/gitpm/internal/output"
)

var addFlagForce bool

var addCmd = &cobra.Command{
	Use:   "add <reference>...",
	Short: "Install packages and their gitdependencies",
	Long: `Install one or more packages.

A reference is a git link (https://host/org/repo.git, optionally followed by
#<branch|tag|commit>), a registry package (name@version) or a local path
(file:../path). After a git package is installed its package.json is scanned
for "gitdependencies" and each listed link is installed too.

A link that was already requested earlier in the same run is skipped unless
--force is given.`,
	Example: `  gitpm add https://example.com/org/tools.git
  gitpm add https://example.com/org/tools.git#v2.0.0
  gitpm add com.example.tools@2.1.0
  gitpm add file:../my-package`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAdd,
}

func init() {
	addCmd.Flags().BoolVar(&addFlagForce, "force", false, "install even if the link was already requested")
}

func runAdd(cmd *cobra.Command, args []string) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	o := e.orchestrator(newLinePrompter(cmd.InOrStdin(), cmd.ErrOrStderr()), nil)
	for _, ref := range args {
		if !o.EnqueueAdd(ref, addFlagForce) {
			fmt.Fprintf(cmd.ErrOrStderr(), "Skipping %s: already requested\n", ref)
		}
	}

	runErr := e.drain(cmd.Context(), o)

	out := cmd.OutOrStdout()
	fmt.Fprint(out, output.RenderPackageTable(o.Installed()))
	return runErr
}
