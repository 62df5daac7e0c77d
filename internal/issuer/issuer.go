// Package issuer requests a runner credential for a resolved target and
// persists exactly one handoff file.
package issuer

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"

	"github.com/hoistci/runnerseed/internal/config"
	"github.com/hoistci/runnerseed/internal/github"
	"github.com/hoistci/runnerseed/internal/handoff"
	"github.com/hoistci/runnerseed/internal/log"
)

// defaultGroupID is the well-known id of the "Default" runner group.
const defaultGroupID = 1

// GroupNotFoundError is returned when an explicit group name matches no
// runner group in the organization listing.
type GroupNotFoundError struct {
	Name string
}

func (e *GroupNotFoundError) Error() string {
	return fmt.Sprintf("runner group %q not found", e.Name)
}

// Issuer mints runner credentials via the GitHub API.
type Issuer struct {
	Client *github.Client
}

// Request describes one issuance.
type Request struct {
	Target     github.Target
	Name       string // generated from host identity when empty
	Labels     []string
	Group      config.GroupConfig
	Strategy   config.IssuanceStrategy
	HandoffDir string
}

// Result reports what was written.
type Result struct {
	Variant    handoff.Variant
	Path       string
	RunnerName string
}

// Issue requests a credential per the configured strategy and writes the
// handoff file. Failures are terminal: no retry, and no file is written
// unless the credential is usable.
func (i *Issuer) Issue(ctx context.Context, req Request) (*Result, error) {
	name := req.Name
	if name == "" {
		name = generateRunnerName()
	}

	groupID, err := i.resolveGroup(ctx, req.Target.Org, req.Group)
	if err != nil {
		return nil, err
	}

	jit, jitErr := i.issueJIT(ctx, req.Target, name, groupID, req.Labels)
	if jitErr == nil {
		path, err := handoff.Write(req.HandoffDir, handoff.VariantJITConfig, jit)
		if err != nil {
			return nil, err
		}
		log.Info("wrote JIT runner config", "target", req.Target.String(), "runner", name, "path", path)
		return &Result{Variant: handoff.VariantJITConfig, Path: path, RunnerName: name}, nil
	}

	if req.Strategy != config.IssueJITWithFallback {
		return nil, jitErr
	}

	log.Warn("JIT issuance failed, falling back to registration token", "error", jitErr)
	tok, err := i.Client.CreateRegistrationToken(ctx, req.Target)
	if err != nil {
		return nil, fmt.Errorf("fallback registration token: %w", err)
	}
	if tok.Token == "" {
		return nil, fmt.Errorf("registration token response has no token")
	}
	path, err := handoff.Write(req.HandoffDir, handoff.VariantRegistrationToken, tok.Token)
	if err != nil {
		return nil, err
	}
	log.Info("wrote registration token", "target", req.Target.String(), "runner", name, "path", path, "expires_at", tok.ExpiresAt)
	return &Result{Variant: handoff.VariantRegistrationToken, Path: path, RunnerName: name}, nil
}

// issueJIT performs the JIT call and validates the credential field. A
// 2xx response with an empty encoded config is still a failure: nothing
// usable must ever reach the handoff file.
func (i *Issuer) issueJIT(ctx context.Context, target github.Target, name string, groupID int64, labels []string) (string, error) {
	jc, err := i.Client.CreateJITConfig(ctx, target, github.JITConfigRequest{
		Name:          name,
		RunnerGroupID: groupID,
		Labels:        labels,
	})
	if err != nil {
		return "", err
	}
	if jc.EncodedJITConfig == "" {
		return "", fmt.Errorf("JIT config response has no encoded credential")
	}
	return jc.EncodedJITConfig, nil
}

// resolveGroup maps the group configuration to a numeric id: explicit id,
// exact-match name lookup, or the well-known default.
func (i *Issuer) resolveGroup(ctx context.Context, org string, group config.GroupConfig) (int64, error) {
	if group.ID != 0 {
		return group.ID, nil
	}
	if group.Name == "" {
		return defaultGroupID, nil
	}

	groups, err := i.Client.ListRunnerGroups(ctx, org)
	if err != nil {
		return 0, fmt.Errorf("listing runner groups: %w", err)
	}
	for _, g := range groups {
		if g.Name == group.Name {
			return g.ID, nil
		}
	}
	return 0, &GroupNotFoundError{Name: group.Name}
}

// generateRunnerName builds a display name from the host identity plus a
// random suffix so parallel jobs on the same image stay distinguishable.
func generateRunnerName() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "runner"
	}
	return host + "-" + uuid.NewString()[:8]
}
