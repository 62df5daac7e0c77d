package issuer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hoistci/runnerseed/internal/config"
	"github.com/hoistci/runnerseed/internal/github"
	"github.com/hoistci/runnerseed/internal/handoff"
)

// fakeIssuanceAPI drives the issuance endpoints with canned behavior.
type fakeIssuanceAPI struct {
	jitStatus  int
	jitBody    string
	regStatus  int
	regBody    string
	groups     []github.RunnerGroup
	lastJITReq github.JITConfigRequest
}

func (f *fakeIssuanceAPI) newIssuer(t *testing.T) *Issuer {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/orgs/octo/actions/runner-groups", func(w http.ResponseWriter, r *http.Request) {
		resp := map[string]any{"total_count": len(f.groups), "runner_groups": f.groups}
		json.NewEncoder(w).Encode(resp)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && filepath.Base(r.URL.Path) == "generate-jitconfig":
			json.NewDecoder(r.Body).Decode(&f.lastJITReq)
			w.WriteHeader(f.jitStatus)
			fmt.Fprint(w, f.jitBody)
		case r.Method == http.MethodPost && filepath.Base(r.URL.Path) == "registration-token":
			w.WriteHeader(f.regStatus)
			fmt.Fprint(w, f.regBody)
		default:
			t.Errorf("unexpected call %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return &Issuer{Client: github.NewClient(srv.Client(), srv.URL, "2022-11-28")}
}

func TestIssueJITOrgScope(t *testing.T) {
	api := &fakeIssuanceAPI{
		jitStatus: http.StatusCreated,
		jitBody:   `{"runner":{"id":1,"name":"r"},"encoded_jit_config":"b64blob"}`,
	}
	iss := api.newIssuer(t)
	dir := t.TempDir()

	res, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo"},
		Name:       "runner-1",
		Labels:     []string{"self-hosted"},
		Strategy:   config.IssueJIT,
		HandoffDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, handoff.VariantJITConfig, res.Variant)

	// Exactly one handoff file, owner-only permissions.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, handoff.JITConfigFile, entries[0].Name())

	if runtime.GOOS != "windows" {
		info, err := os.Stat(res.Path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	}

	content, err := handoff.Read(dir, handoff.VariantJITConfig)
	require.NoError(t, err)
	assert.Equal(t, "b64blob", content)

	// Default runner group id applies when no group is configured.
	assert.Equal(t, int64(defaultGroupID), api.lastJITReq.RunnerGroupID)
}

func TestIssueJITEmptyCredential(t *testing.T) {
	api := &fakeIssuanceAPI{
		jitStatus: http.StatusCreated,
		jitBody:   `{"runner":{"id":1,"name":"r"},"encoded_jit_config":""}`,
	}
	iss := api.newIssuer(t)
	dir := t.TempDir()

	_, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo"},
		Name:       "runner-1",
		Labels:     []string{"self-hosted"},
		Strategy:   config.IssueJIT,
		HandoffDir: dir,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no encoded credential")

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries, "no file may be written for an unusable credential")
}

func TestIssueJITFailureNoFallback(t *testing.T) {
	api := &fakeIssuanceAPI{
		jitStatus: http.StatusForbidden,
		jitBody:   `{"message":"forbidden"}`,
	}
	iss := api.newIssuer(t)
	dir := t.TempDir()

	_, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo"},
		Name:       "runner-1",
		Labels:     []string{"self-hosted"},
		Strategy:   config.IssueJIT,
		HandoffDir: dir,
	})
	require.Error(t, err)

	entries, readErr := os.ReadDir(dir)
	require.NoError(t, readErr)
	assert.Empty(t, entries)
}

func TestIssueFallbackWritesRegistrationToken(t *testing.T) {
	api := &fakeIssuanceAPI{
		jitStatus: http.StatusInternalServerError,
		jitBody:   `{"message":"boom"}`,
		regStatus: http.StatusCreated,
		regBody:   `{"token":"AREG123","expires_at":"2026-03-01T13:00:00Z"}`,
	}
	iss := api.newIssuer(t)
	dir := t.TempDir()

	res, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo", Repo: "hello"},
		Name:       "runner-1",
		Labels:     []string{"self-hosted"},
		Strategy:   config.IssueJITWithFallback,
		HandoffDir: dir,
	})
	require.NoError(t, err)
	assert.Equal(t, handoff.VariantRegistrationToken, res.Variant)

	// The registration-secret file is written, not the blob file.
	assert.Equal(t, handoff.VariantRegistrationToken, handoff.Detect(dir))
	content, err := handoff.Read(dir, handoff.VariantRegistrationToken)
	require.NoError(t, err)
	assert.Equal(t, "AREG123", content)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestIssueFallbackAlsoFails(t *testing.T) {
	api := &fakeIssuanceAPI{
		jitStatus: http.StatusInternalServerError,
		jitBody:   `{"message":"boom"}`,
		regStatus: http.StatusForbidden,
		regBody:   `{"message":"nope"}`,
	}
	iss := api.newIssuer(t)
	dir := t.TempDir()

	_, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo"},
		Name:       "runner-1",
		Labels:     []string{"self-hosted"},
		Strategy:   config.IssueJITWithFallback,
		HandoffDir: dir,
	})
	require.Error(t, err)
	assert.Equal(t, handoff.VariantNone, handoff.Detect(dir))
}

func TestResolveGroupByName(t *testing.T) {
	api := &fakeIssuanceAPI{
		jitStatus: http.StatusCreated,
		jitBody:   `{"encoded_jit_config":"b64blob"}`,
		groups: []github.RunnerGroup{
			{ID: 1, Name: "Default"},
			{ID: 7, Name: "builders"},
		},
	}
	iss := api.newIssuer(t)

	_, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo"},
		Name:       "runner-1",
		Labels:     []string{"self-hosted"},
		Group:      config.GroupConfig{Name: "builders"},
		Strategy:   config.IssueJIT,
		HandoffDir: t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), api.lastJITReq.RunnerGroupID)
}

func TestResolveGroupNotFound(t *testing.T) {
	api := &fakeIssuanceAPI{
		groups: []github.RunnerGroup{{ID: 1, Name: "Default"}},
	}
	iss := api.newIssuer(t)

	_, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo"},
		Name:       "runner-1",
		Labels:     []string{"self-hosted"},
		Group:      config.GroupConfig{Name: "ghosts"},
		Strategy:   config.IssueJIT,
		HandoffDir: t.TempDir(),
	})
	var gerr *GroupNotFoundError
	require.ErrorAs(t, err, &gerr)
	assert.Equal(t, "ghosts", gerr.Name)
}

func TestGeneratedRunnerName(t *testing.T) {
	api := &fakeIssuanceAPI{
		jitStatus: http.StatusCreated,
		jitBody:   `{"encoded_jit_config":"b64blob"}`,
	}
	iss := api.newIssuer(t)

	res, err := iss.Issue(context.Background(), Request{
		Target:     github.Target{Org: "octo"},
		Labels:     []string{"self-hosted"},
		Strategy:   config.IssueJIT,
		HandoffDir: t.TempDir(),
	})
	require.NoError(t, err)
	require.NotEmpty(t, res.RunnerName)
	assert.Equal(t, res.RunnerName, api.lastJITReq.Name)

	host, _ := os.Hostname()
	if host != "" {
		assert.Contains(t, res.RunnerName, host)
	}
}
