// Package github is a minimal typed client for the handful of GitHub REST
// endpoints runnerseed needs: quota, repository and workflow listings,
// runner groups, and the two credential issuance calls.
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const acceptHeader = "application/vnd.github+json"

// Client calls the GitHub REST API. The HTTP client is expected to carry
// bearer authorization (an oauth2 transport); BaseURL is overridable for
// tests.
type Client struct {
	BaseURL    string
	APIVersion string
	HTTPClient *http.Client
}

// NewClient returns a client rooted at baseURL with a pinned API version.
func NewClient(httpClient *http.Client, baseURL, apiVersion string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		BaseURL:    baseURL,
		APIVersion: apiVersion,
		HTTPClient: httpClient,
	}
}

// Target is the scope a credential is issued for. An empty Repo means
// organization scope.
type Target struct {
	Org  string
	Repo string
}

func (t Target) String() string {
	if t.Repo != "" {
		return t.Org + "/" + t.Repo
	}
	return t.Org
}

// apiPath returns the REST path prefix for the target scope.
func (t Target) apiPath() string {
	if t.Repo != "" {
		return "/repos/" + t.Org + "/" + t.Repo
	}
	return "/orgs/" + t.Org
}

// RateLimit reports the remaining core API quota and its reset time.
func (c *Client) RateLimit(ctx context.Context) (*RateLimit, error) {
	var resp rateLimitResponse
	if err := c.do(ctx, http.MethodGet, "/rate_limit", nil, &resp); err != nil {
		return nil, err
	}
	return &RateLimit{
		Remaining: resp.Resources.Core.Remaining,
		Reset:     time.Unix(resp.Resources.Core.Reset, 0),
	}, nil
}

// ListOrgRepos returns one page of the organization's repositories in
// listing order.
func (c *Client) ListOrgRepos(ctx context.Context, org string, page, perPage int) ([]Repository, error) {
	path := fmt.Sprintf("/orgs/%s/repos?per_page=%d&page=%d", org, perPage, page)
	var repos []Repository
	if err := c.do(ctx, http.MethodGet, path, nil, &repos); err != nil {
		return nil, err
	}
	return repos, nil
}

// ListQueuedRuns returns one bounded page of currently queued workflow
// runs for a repository.
func (c *Client) ListQueuedRuns(ctx context.Context, org, repo string, perPage int) ([]WorkflowRun, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/runs?status=queued&per_page=%d", org, repo, perPage)
	var resp workflowRunsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.WorkflowRuns, nil
}

// ListRunJobs returns the jobs of a workflow run, including their labels.
func (c *Client) ListRunJobs(ctx context.Context, org, repo string, runID int64) ([]WorkflowJob, error) {
	path := fmt.Sprintf("/repos/%s/%s/actions/runs/%d/jobs", org, repo, runID)
	var resp workflowJobsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Jobs, nil
}

// ListRunnerGroups returns the organization's runner groups.
func (c *Client) ListRunnerGroups(ctx context.Context, org string) ([]RunnerGroup, error) {
	path := fmt.Sprintf("/orgs/%s/actions/runner-groups?per_page=100", org)
	var resp runnerGroupsResponse
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.RunnerGroups, nil
}

// JITConfigRequest is the issuance request for a just-in-time runner.
type JITConfigRequest struct {
	Name          string   `json:"name"`
	RunnerGroupID int64    `json:"runner_group_id"`
	Labels        []string `json:"labels"`
	WorkFolder    string   `json:"work_folder,omitempty"`
}

// CreateJITConfig requests a single-use JIT runner configuration for the
// target scope.
func (c *Client) CreateJITConfig(ctx context.Context, target Target, req JITConfigRequest) (*JITConfig, error) {
	path := target.apiPath() + "/actions/runners/generate-jitconfig"
	var resp JITConfig
	if err := c.do(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateRegistrationToken requests a classic multi-use registration token
// for the target scope.
func (c *Client) CreateRegistrationToken(ctx context.Context, target Target) (*RegistrationToken, error) {
	path := target.apiPath() + "/actions/runners/registration-token"
	var resp RegistrationToken
	if err := c.do(ctx, http.MethodPost, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do performs one API call: marshal the optional body, set the standard
// headers, check the status, decode into out.
func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", acceptHeader)
	if c.APIVersion != "" {
		req.Header.Set("X-GitHub-Api-Version", c.APIVersion)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody+1))
		return &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       truncate(string(data), maxErrorBody),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s %s: decoding response: %w", method, path, err)
	}
	return nil
}
