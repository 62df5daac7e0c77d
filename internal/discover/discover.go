// Package discover finds which candidate repository currently has queued
// workflow jobs matching a target runner label. It is the quota-hungry
// part of the minting flow: worst case O(candidates × queued runs) API
// calls, which is why a rate-limit guard runs before any scan.
package discover

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/hoistci/runnerseed/internal/github"
	"github.com/hoistci/runnerseed/internal/log"
)

const (
	// QuotaThreshold is the minimum remaining core quota required before
	// a scan is attempted.
	QuotaThreshold = 50

	// repoPageSize is the page size for the org repository listing. A
	// page shorter than this terminates the pagination loop.
	repoPageSize = 100

	// queuedRunsPage bounds how many queued runs are inspected per
	// candidate repository.
	queuedRunsPage = 30
)

// ErrNoQueuedMatch is returned when every candidate was scanned and none
// had a queued job requesting the target label. It is distinct from
// network or API failures.
var ErrNoQueuedMatch = errors.New("no candidate repository has queued jobs matching the target label")

// QuotaError aborts the scan before it starts when the remaining API
// quota is below the safety threshold.
type QuotaError struct {
	Remaining int
	ResetAt   time.Time
}

func (e *QuotaError) Error() string {
	return fmt.Sprintf("api quota too low for discovery: %d remaining (need %d), resets at %s",
		e.Remaining, QuotaThreshold, e.ResetAt.Format(time.RFC3339))
}

// Resolver scans candidate repositories for queued work.
type Resolver struct {
	Client *github.Client
}

// Resolve returns the first candidate repository, in listing order, with
// any queued job whose label set contains label. With no explicit
// candidates, every repository visible under org is scanned. The result
// is deterministic for a fixed API state: first match wins, no other
// tie-break.
func (r *Resolver) Resolve(ctx context.Context, org string, candidates []string, label string) (string, error) {
	rl, err := r.Client.RateLimit(ctx)
	if err != nil {
		return "", fmt.Errorf("checking rate limit: %w", err)
	}
	if rl.Remaining < QuotaThreshold {
		return "", &QuotaError{Remaining: rl.Remaining, ResetAt: rl.Reset}
	}

	if len(candidates) == 0 {
		candidates, err = r.listAllRepos(ctx, org)
		if err != nil {
			return "", err
		}
	}
	log.Debug("scanning candidates for queued jobs", "org", org, "label", label, "candidates", len(candidates))

	for _, repo := range candidates {
		match, err := r.repoHasQueuedLabel(ctx, org, repo, label)
		if err != nil {
			return "", err
		}
		if match {
			log.Info("discovered target repository", "repo", org+"/"+repo, "label", label)
			return repo, nil
		}
	}
	return "", ErrNoQueuedMatch
}

// listAllRepos pages through the org repository listing until a short
// page signals the end.
func (r *Resolver) listAllRepos(ctx context.Context, org string) ([]string, error) {
	var names []string
	for page := 1; ; page++ {
		repos, err := r.Client.ListOrgRepos(ctx, org, page, repoPageSize)
		if err != nil {
			return nil, fmt.Errorf("listing repositories: %w", err)
		}
		for _, repo := range repos {
			names = append(names, repo.Name)
		}
		if len(repos) < repoPageSize {
			return names, nil
		}
	}
}

func (r *Resolver) repoHasQueuedLabel(ctx context.Context, org, repo, label string) (bool, error) {
	runs, err := r.Client.ListQueuedRuns(ctx, org, repo, queuedRunsPage)
	if err != nil {
		return false, fmt.Errorf("listing queued runs for %s/%s: %w", org, repo, err)
	}
	for _, run := range runs {
		jobs, err := r.Client.ListRunJobs(ctx, org, repo, run.ID)
		if err != nil {
			return false, fmt.Errorf("listing jobs for run %d in %s/%s: %w", run.ID, org, repo, err)
		}
		for _, job := range jobs {
			if slices.Contains(job.Labels, label) {
				return true, nil
			}
		}
	}
	return false, nil
}
