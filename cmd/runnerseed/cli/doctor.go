package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/hoistci/runnerseed/internal/auth"
	"github.com/hoistci/runnerseed/internal/config"
	"github.com/hoistci/runnerseed/internal/discover"
	"github.com/hoistci/runnerseed/internal/github"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Validate configuration and API access without issuing anything",
	Long: `Doctor runs the minter's preflight checks and stops before issuance:
it validates the configuration, performs the token exchange for the
selected auth mode, and reports the remaining API quota. Nothing is
written and no credential is minted.`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("fail configuration: %v\n", err)
		return err
	}
	mode := "pat"
	if cfg.Auth.Mode == config.AuthApp {
		mode = "app"
	}
	scope := "org"
	if cfg.Scope == config.ScopeRepo {
		scope = "repo"
	}
	fmt.Printf("ok   configuration: auth=%s scope=%s strategy=%s handoff=%s\n",
		mode, scope, cfg.Strategy.String(), cfg.HandoffDir)

	ts, err := auth.TokenSource(ctx, cfg.Auth, cfg.APIBaseURL, cfg.APIVersion, nil)
	if err != nil {
		fmt.Printf("fail authentication: %v\n", err)
		return err
	}
	fmt.Printf("ok   authentication: bearer token acquired\n")

	client := github.NewClient(oauth2.NewClient(ctx, ts), cfg.APIBaseURL, cfg.APIVersion)
	rl, err := client.RateLimit(ctx)
	if err != nil {
		fmt.Printf("fail quota: %v\n", err)
		return err
	}
	status := "ok  "
	if rl.Remaining < discover.QuotaThreshold {
		status = "warn"
	}
	fmt.Printf("%s quota: %d remaining, resets %s\n", status, rl.Remaining, rl.Reset.Format(time.RFC3339))

	return nil
}
