// Package cli implements the runnerseed command-line interface using
// Cobra: mint (the credential minter), bootstrap (the worker
// bootstrapper), doctor, and version.
package cli

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/hoistci/runnerseed/internal/log"
)

var (
	verbose bool
	jsonOut bool
)

var rootCmd = &cobra.Command{
	Use:   "runnerseed",
	Short: "Runnerseed - GitHub Actions runner credentials for container jobs",
	Long: `Runnerseed mints GitHub Actions runner credentials and hands them to a
sibling container through a shared volume.

The two subcommands are designed to run as separate single-shot
containers sharing one mounted directory: 'mint' authenticates to the
GitHub API and writes exactly one credential file; 'bootstrap' reads it
and starts the actions runner. Success and failure are communicated
purely via exit status and the presence of the handoff file.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Piped stderr gets JSON so platform log collectors can parse it.
		jsonFormat := jsonOut
		if !jsonFormat && !isatty.IsTerminal(os.Stderr.Fd()) {
			jsonFormat = true
		}
		log.Init(log.Options{
			Verbose:    verbose,
			JSONFormat: jsonFormat,
		})
		return nil
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "log in JSON format")
}
