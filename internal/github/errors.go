package github

import "fmt"

// maxErrorBody bounds how much of a rejected response body is carried in
// an APIError. Enough for GitHub's JSON error messages, small enough for
// a log line.
const maxErrorBody = 512

// APIError is a non-2xx response from the GitHub API. The body is
// truncated and surfaced verbatim for diagnosis.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: unexpected status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: unexpected status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
