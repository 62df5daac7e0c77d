package config

import "os"

// BootstrapConfig configures the worker bootstrapper. The bootstrapper
// shares the handoff directory and scope variables with the minter but
// needs none of the API credentials.
type BootstrapConfig struct {
	HandoffDir string
	// RunnerDir is the actions runner installation directory containing
	// config.sh and run.sh.
	RunnerDir string
	// ServerURL is the base URL registration targets are derived from.
	ServerURL string

	Org  string
	Repo string

	RunnerName string
	Labels     []string
	Group      string // group name passed to config.sh, if any
}

// Defaults for the bootstrapper.
const (
	DefaultRunnerDir = "/actions-runner"
	DefaultServerURL = "https://github.com"
)

// LoadBootstrap reads the bootstrapper configuration from the environment.
func LoadBootstrap() *BootstrapConfig {
	cfg := &BootstrapConfig{
		HandoffDir: os.Getenv("RUNNER_HANDOFF_DIR"),
		RunnerDir:  os.Getenv("RUNNER_DIR"),
		ServerURL:  os.Getenv("GITHUB_SERVER_URL"),
		Org:        os.Getenv("RUNNER_ORG"),
		Repo:       os.Getenv("RUNNER_REPO"),
		RunnerName: os.Getenv("RUNNER_NAME"),
		Labels:     splitList(os.Getenv("RUNNER_LABELS")),
		Group:      os.Getenv("RUNNER_GROUP"),
	}
	if cfg.HandoffDir == "" {
		cfg.HandoffDir = DefaultHandoffDir
	}
	if cfg.RunnerDir == "" {
		cfg.RunnerDir = DefaultRunnerDir
	}
	if cfg.ServerURL == "" {
		cfg.ServerURL = DefaultServerURL
	}
	return cfg
}
