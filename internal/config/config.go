// Package config loads and validates runnerseed configuration.
//
// Configuration is plain key/value environment input, optionally seeded
// from a YAML file named by RUNNERSEED_CONFIG. Environment values always
// win over file values. All validation happens here, before any network
// or filesystem I/O, and produces typed *ValidationError values.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// AuthMode selects how the minter authenticates to the GitHub API.
type AuthMode int

const (
	// AuthPAT uses a static personal access token as the bearer secret.
	AuthPAT AuthMode = iota
	// AuthApp signs a short-lived GitHub App assertion and exchanges it
	// for an installation access token.
	AuthApp
)

// Scope is the registration scope of the minted credential.
type Scope int

const (
	// ScopeOrg registers the runner at the organization level.
	ScopeOrg Scope = iota
	// ScopeRepo registers the runner on a single repository, either
	// pinned by RUNNER_REPO or discovered by label scan.
	ScopeRepo
)

// IssuanceStrategy selects which credential endpoint(s) the minter uses.
type IssuanceStrategy int

const (
	// IssueJIT requests a single-use JIT runner config; any failure is
	// terminal.
	IssueJIT IssuanceStrategy = iota
	// IssueJITWithFallback attempts the JIT config first and falls back
	// to a classic registration token on any JIT failure.
	IssueJITWithFallback
)

// String returns the configuration spelling of the strategy.
func (s IssuanceStrategy) String() string {
	if s == IssueJITWithFallback {
		return "jit-fallback"
	}
	return "jit"
}

// AuthConfig holds the credentials for the selected auth mode.
type AuthConfig struct {
	Mode AuthMode

	// PAT mode
	PAT string

	// App mode
	AppID                int64
	InstallationID       int64
	PrivateKey           string // inline PEM text
	PrivateKeyFile       string // path to a PEM file
	PrivateKeyPassphrase string
}

// GroupConfig identifies the runner group the credential is scoped to.
// A zero value means the well-known default group.
type GroupConfig struct {
	ID   int64  // explicit numeric id
	Name string // resolved by exact-match lookup
}

// Config is the fully validated minter configuration.
type Config struct {
	Auth AuthConfig

	Scope      Scope
	Org        string
	Repo       string
	Candidates []string // explicit repo allow-list for discovery

	// DiscoveryLabel is the job label the repository scan matches on.
	DiscoveryLabel string

	RunnerName string
	Labels     []string
	Group      GroupConfig

	HandoffDir string
	Strategy   IssuanceStrategy

	APIBaseURL string
	APIVersion string
}

// ValidationError reports a missing or conflicting configuration value.
// It is always produced before any I/O happens.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid configuration: %s: %s", e.Field, e.Reason)
}

// Defaults applied when neither the environment nor the file sets a value.
const (
	DefaultHandoffDir = "/runner-handoff"
	DefaultAPIBaseURL = "https://api.github.com"
	DefaultAPIVersion = "2022-11-28"
	DefaultLabel      = "self-hosted"
)

// Load builds the minter configuration from the environment, seeded from
// the optional RUNNERSEED_CONFIG YAML file, and validates it.
func Load() (*Config, error) {
	raw, err := loadFile(os.Getenv("RUNNERSEED_CONFIG"))
	if err != nil {
		return nil, err
	}
	raw.applyEnv()
	return raw.parse()
}

// parse converts the merged raw values into a typed Config and validates.
func (r *rawConfig) parse() (*Config, error) {
	cfg := &Config{
		Org:            r.Org,
		Repo:           r.Repo,
		Candidates:     r.Repos,
		DiscoveryLabel: r.DiscoveryLabel,
		RunnerName:     r.Name,
		Labels:         r.Labels,
		HandoffDir:     r.HandoffDir,
		APIBaseURL:     strings.TrimRight(r.APIURL, "/"),
		APIVersion:     r.APIVersion,
		Auth: AuthConfig{
			PAT:                  r.Auth.PAT,
			PrivateKey:           r.Auth.PrivateKey,
			PrivateKeyFile:       r.Auth.PrivateKeyFile,
			PrivateKeyPassphrase: r.Auth.PrivateKeyPassphrase,
		},
	}

	if cfg.HandoffDir == "" {
		cfg.HandoffDir = DefaultHandoffDir
	}
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = []string{DefaultLabel}
	}

	if r.Auth.AppID != "" {
		id, err := strconv.ParseInt(r.Auth.AppID, 10, 64)
		if err != nil {
			return nil, &ValidationError{Field: "GITHUB_APP_ID", Reason: "not a number: " + r.Auth.AppID}
		}
		cfg.Auth.AppID = id
	}
	if r.Auth.InstallationID != "" {
		id, err := strconv.ParseInt(r.Auth.InstallationID, 10, 64)
		if err != nil {
			return nil, &ValidationError{Field: "GITHUB_APP_INSTALLATION_ID", Reason: "not a number: " + r.Auth.InstallationID}
		}
		cfg.Auth.InstallationID = id
	}
	if r.GroupID != "" {
		id, err := strconv.ParseInt(r.GroupID, 10, 64)
		if err != nil {
			return nil, &ValidationError{Field: "RUNNER_GROUP_ID", Reason: "not a number: " + r.GroupID}
		}
		cfg.Group.ID = id
	}
	cfg.Group.Name = r.Group

	mode, err := resolveAuthMode(&cfg.Auth)
	if err != nil {
		return nil, err
	}
	cfg.Auth.Mode = mode

	scope, err := resolveScope(r.Scope, cfg)
	if err != nil {
		return nil, err
	}
	cfg.Scope = scope

	switch r.Issuance {
	case "", "jit":
		cfg.Strategy = IssueJIT
	case "jit-fallback":
		cfg.Strategy = IssueJITWithFallback
	default:
		return nil, &ValidationError{Field: "RUNNER_ISSUANCE", Reason: fmt.Sprintf("unknown strategy %q (want jit or jit-fallback)", r.Issuance)}
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// resolveAuthMode picks PAT or App auth and rejects ambiguous input.
func resolveAuthMode(a *AuthConfig) (AuthMode, error) {
	appConfigured := a.AppID != 0 || a.InstallationID != 0 || a.PrivateKey != "" || a.PrivateKeyFile != ""
	switch {
	case a.PAT != "" && appConfigured:
		return 0, &ValidationError{Field: "GITHUB_PAT", Reason: "both PAT and GitHub App credentials are set; configure exactly one"}
	case a.PAT != "":
		return AuthPAT, nil
	case appConfigured:
		return AuthApp, nil
	default:
		return 0, &ValidationError{Field: "GITHUB_PAT", Reason: "no credentials: set GITHUB_PAT or the GITHUB_APP_* variables"}
	}
}

// resolveScope applies the documented precedence: an explicit RUNNER_SCOPE
// wins; otherwise repository scope is implied by a pinned repo, a candidate
// list, or a discovery label.
func resolveScope(explicit string, cfg *Config) (Scope, error) {
	switch explicit {
	case "org", "organization":
		return ScopeOrg, nil
	case "repo", "repository":
		return ScopeRepo, nil
	case "":
		if cfg.Repo != "" || len(cfg.Candidates) > 0 || cfg.DiscoveryLabel != "" {
			return ScopeRepo, nil
		}
		return ScopeOrg, nil
	default:
		return 0, &ValidationError{Field: "RUNNER_SCOPE", Reason: fmt.Sprintf("unknown scope %q (want org or repo)", explicit)}
	}
}

func (c *Config) validate() error {
	if c.Org == "" {
		return &ValidationError{Field: "RUNNER_ORG", Reason: "organization is required"}
	}
	if c.Scope == ScopeOrg && c.Repo != "" {
		return &ValidationError{Field: "RUNNER_REPO", Reason: "repository set but scope is org"}
	}
	if c.Scope == ScopeRepo && c.Repo == "" && c.DiscoveryLabel == "" {
		return &ValidationError{Field: "RUNNER_DISCOVERY_LABEL", Reason: "repo scope needs a pinned RUNNER_REPO or a discovery label"}
	}
	if c.Group.ID != 0 && c.Group.Name != "" {
		return &ValidationError{Field: "RUNNER_GROUP", Reason: "set RUNNER_GROUP_ID or RUNNER_GROUP, not both"}
	}

	if c.Auth.Mode == AuthApp {
		if c.Auth.AppID == 0 {
			return &ValidationError{Field: "GITHUB_APP_ID", Reason: "required for GitHub App auth"}
		}
		if c.Auth.InstallationID == 0 {
			return &ValidationError{Field: "GITHUB_APP_INSTALLATION_ID", Reason: "required for GitHub App auth"}
		}
		switch {
		case c.Auth.PrivateKey == "" && c.Auth.PrivateKeyFile == "":
			return &ValidationError{Field: "GITHUB_APP_PRIVATE_KEY", Reason: "set GITHUB_APP_PRIVATE_KEY or GITHUB_APP_PRIVATE_KEY_FILE"}
		case c.Auth.PrivateKey != "" && c.Auth.PrivateKeyFile != "":
			return &ValidationError{Field: "GITHUB_APP_PRIVATE_KEY", Reason: "inline key and key file are both set; configure exactly one"}
		}
	}
	return nil
}

// splitList splits a comma-separated value, trimming whitespace and
// dropping empty entries.
func splitList(s string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
