// Package bootstrap consumes the handoff file written by the minter and
// starts the long-running actions runner. It performs no API calls of its
// own: everything is a dispatch on which credential file is present.
package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"github.com/hoistci/runnerseed/internal/config"
	"github.com/hoistci/runnerseed/internal/handoff"
	"github.com/hoistci/runnerseed/internal/log"
)

// Run dispatches on the handoff variant: a JIT config is passed straight
// to run.sh; a registration token goes through a one-time config.sh step
// first. A missing handoff file is an immediate failure.
func Run(ctx context.Context, cfg *config.BootstrapConfig) error {
	switch variant := handoff.Detect(cfg.HandoffDir); variant {
	case handoff.VariantJITConfig:
		blob, err := handoff.Read(cfg.HandoffDir, variant)
		if err != nil {
			return err
		}
		log.Info("starting runner with JIT config", "runner_dir", cfg.RunnerDir)
		return runScript(ctx, cfg.RunnerDir, "run.sh", "--jitconfig", strings.TrimSpace(blob))

	case handoff.VariantRegistrationToken:
		token, err := handoff.Read(cfg.HandoffDir, variant)
		if err != nil {
			return err
		}
		url, err := registrationURL(cfg)
		if err != nil {
			return err
		}
		args := configureArgs(cfg, url, strings.TrimSpace(token))
		log.Info("registering runner", "url", url, "runner_dir", cfg.RunnerDir)
		if err := runScript(ctx, cfg.RunnerDir, "config.sh", args...); err != nil {
			return fmt.Errorf("configuring runner: %w", err)
		}
		return runScript(ctx, cfg.RunnerDir, "run.sh")

	default:
		return fmt.Errorf("no handoff credential in %s: neither %s nor %s exists",
			cfg.HandoffDir, handoff.JITConfigFile, handoff.RegistrationTokenFile)
	}
}

// registrationURL derives the registration target from the scope
// variables: the repository when pinned, the organization otherwise.
func registrationURL(cfg *config.BootstrapConfig) (string, error) {
	if cfg.Org == "" {
		return "", fmt.Errorf("RUNNER_ORG is required to register with a token")
	}
	url := strings.TrimRight(cfg.ServerURL, "/") + "/" + cfg.Org
	if cfg.Repo != "" {
		url += "/" + cfg.Repo
	}
	return url, nil
}

// configureArgs builds the one-time config.sh invocation. Runners are
// always ephemeral: one job, then gone.
func configureArgs(cfg *config.BootstrapConfig, url, token string) []string {
	args := []string{"--url", url, "--token", token, "--unattended", "--ephemeral"}
	if cfg.RunnerName != "" {
		args = append(args, "--name", cfg.RunnerName)
	}
	if len(cfg.Labels) > 0 {
		args = append(args, "--labels", strings.Join(cfg.Labels, ","))
	}
	if cfg.Group != "" {
		args = append(args, "--runnergroup", cfg.Group)
	}
	return args
}

func runScript(ctx context.Context, dir, script string, args ...string) error {
	cmd := exec.CommandContext(ctx, "./"+script, args...)
	cmd.Dir = dir
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("running %s: %w", script, err)
	}
	return nil
}
