package github

import "time"

// RateLimit is the core API quota at the time of the call.
type RateLimit struct {
	Remaining int
	Reset     time.Time
}

type rateLimitResponse struct {
	Resources struct {
		Core struct {
			Remaining int   `json:"remaining"`
			Reset     int64 `json:"reset"`
		} `json:"core"`
	} `json:"resources"`
}

// Repository is a repository in an organization listing.
type Repository struct {
	Name     string `json:"name"`
	FullName string `json:"full_name"`
}

// WorkflowRun is a queued workflow run.
type WorkflowRun struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Status string `json:"status"`
}

type workflowRunsResponse struct {
	TotalCount   int           `json:"total_count"`
	WorkflowRuns []WorkflowRun `json:"workflow_runs"`
}

// WorkflowJob is a job within a workflow run. Labels are the runner
// labels the job requests.
type WorkflowJob struct {
	ID     int64    `json:"id"`
	Name   string   `json:"name"`
	Status string   `json:"status"`
	Labels []string `json:"labels"`
}

type workflowJobsResponse struct {
	TotalCount int           `json:"total_count"`
	Jobs       []WorkflowJob `json:"jobs"`
}

// RunnerGroup is an organization runner group.
type RunnerGroup struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type runnerGroupsResponse struct {
	TotalCount   int           `json:"total_count"`
	RunnerGroups []RunnerGroup `json:"runner_groups"`
}

// JITConfig is the response of the generate-jitconfig endpoint. The
// encoded config is the opaque single-use blob consumed by run.sh.
type JITConfig struct {
	Runner struct {
		ID   int64  `json:"id"`
		Name string `json:"name"`
	} `json:"runner"`
	EncodedJITConfig string `json:"encoded_jit_config"`
}

// RegistrationToken is the response of the registration-token endpoint.
type RegistrationToken struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}
