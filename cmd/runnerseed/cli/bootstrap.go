package cli

import (
	"github.com/spf13/cobra"

	"github.com/hoistci/runnerseed/internal/bootstrap"
	"github.com/hoistci/runnerseed/internal/config"
)

var bootstrapCmd = &cobra.Command{
	Use:   "bootstrap",
	Short: "Consume the handoff file and start the actions runner",
	Long: `Bootstrap reads the handoff directory written by 'mint' and starts the
long-running actions runner.

A JIT config file starts run.sh directly; a registration token file runs
the one-time config.sh registration first. If neither file exists the
command fails immediately.

Environment: RUNNER_HANDOFF_DIR, RUNNER_DIR (the actions runner
installation), GITHUB_SERVER_URL, RUNNER_ORG, RUNNER_REPO, RUNNER_NAME,
RUNNER_LABELS, RUNNER_GROUP.`,
	Args: cobra.NoArgs,
	RunE: runBootstrap,
}

func init() {
	rootCmd.AddCommand(bootstrapCmd)
}

func runBootstrap(cmd *cobra.Command, args []string) error {
	return bootstrap.Run(cmd.Context(), config.LoadBootstrap())
}
