package cli

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/oauth2"

	"github.com/hoistci/runnerseed/internal/auth"
	"github.com/hoistci/runnerseed/internal/config"
	"github.com/hoistci/runnerseed/internal/discover"
	"github.com/hoistci/runnerseed/internal/github"
	"github.com/hoistci/runnerseed/internal/issuer"
	"github.com/hoistci/runnerseed/internal/log"
)

var mintCmd = &cobra.Command{
	Use:   "mint",
	Short: "Mint a runner credential and write the handoff file",
	Long: `Mint authenticates to the GitHub API, resolves the registration target,
requests a runner credential, and writes it to the handoff directory.

Configuration comes from the environment (optionally seeded from a YAML
file named by RUNNERSEED_CONFIG):

  GITHUB_PAT                  static token auth
  GITHUB_APP_ID               GitHub App auth (with installation id and
  GITHUB_APP_INSTALLATION_ID  a private key, inline or via _FILE)
  GITHUB_APP_PRIVATE_KEY[_FILE]
  RUNNER_SCOPE                org or repo (inferred when unset)
  RUNNER_ORG                  organization (required)
  RUNNER_REPO                 pinned repository for repo scope
  RUNNER_REPOS                candidate allow-list for discovery
  RUNNER_DISCOVERY_LABEL      label to match against queued jobs
  RUNNER_LABELS               labels for the minted runner
  RUNNER_GROUP[_ID]           runner group by name or id
  RUNNER_ISSUANCE             jit (default) or jit-fallback
  RUNNER_HANDOFF_DIR          shared volume path

The run is fire-and-forget: exit 0 means exactly one credential file
exists; any failure exits non-zero with nothing written.`,
	Args: cobra.NoArgs,
	RunE: runMint,
}

func init() {
	rootCmd.AddCommand(mintCmd)
}

func runMint(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	ts, err := auth.TokenSource(ctx, cfg.Auth, cfg.APIBaseURL, cfg.APIVersion, nil)
	if err != nil {
		return err
	}
	client := github.NewClient(oauth2.NewClient(ctx, ts), cfg.APIBaseURL, cfg.APIVersion)

	target := github.Target{Org: cfg.Org, Repo: cfg.Repo}
	if cfg.Scope == config.ScopeRepo && target.Repo == "" {
		resolver := &discover.Resolver{Client: client}
		repo, err := resolver.Resolve(ctx, cfg.Org, cfg.Candidates, cfg.DiscoveryLabel)
		if err != nil {
			return err
		}
		target.Repo = repo
	}
	log.Debug("resolved registration target", "target", target.String(), "strategy", cfg.Strategy.String())

	iss := &issuer.Issuer{Client: client}
	res, err := iss.Issue(ctx, issuer.Request{
		Target:     target,
		Name:       cfg.RunnerName,
		Labels:     cfg.Labels,
		Group:      cfg.Group,
		Strategy:   cfg.Strategy,
		HandoffDir: cfg.HandoffDir,
	})
	if err != nil {
		return err
	}

	fmt.Printf("wrote %s for %s (runner %s)\n", res.Variant, target, res.RunnerName)
	return nil
}
