package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// rawConfig holds configuration before type conversion. File values are
// loaded first; applyEnv then overrides any field whose environment
// variable is set, so the environment always wins.
type rawConfig struct {
	Auth struct {
		PAT                  string `yaml:"pat"`
		AppID                string `yaml:"app_id"`
		InstallationID       string `yaml:"installation_id"`
		PrivateKey           string `yaml:"private_key"`
		PrivateKeyFile       string `yaml:"private_key_file"`
		PrivateKeyPassphrase string `yaml:"private_key_passphrase"`
	} `yaml:"auth"`

	Scope          string   `yaml:"scope"`
	Org            string   `yaml:"org"`
	Repo           string   `yaml:"repo"`
	Repos          []string `yaml:"repos"`
	DiscoveryLabel string   `yaml:"discovery_label"`

	Name    string   `yaml:"name"`
	Labels  []string `yaml:"labels"`
	Group   string   `yaml:"group"`
	GroupID string   `yaml:"group_id"`

	HandoffDir string `yaml:"handoff_dir"`
	Issuance   string `yaml:"issuance"`
	APIURL     string `yaml:"api_url"`
	APIVersion string `yaml:"api_version"`
}

// loadFile reads the optional YAML config file. A missing path is fine;
// a named file that cannot be read or parsed is a configuration error.
func loadFile(path string) (*rawConfig, error) {
	raw := &rawConfig{}
	if path == "" {
		return raw, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ValidationError{Field: "RUNNERSEED_CONFIG", Reason: fmt.Sprintf("reading %s: %v", path, err)}
	}
	if err := yaml.Unmarshal(data, raw); err != nil {
		return nil, &ValidationError{Field: "RUNNERSEED_CONFIG", Reason: fmt.Sprintf("parsing %s: %v", path, err)}
	}
	return raw, nil
}

// applyEnv overrides file values with any environment variables that are set.
func (r *rawConfig) applyEnv() {
	setString(&r.Auth.PAT, "GITHUB_PAT")
	setString(&r.Auth.AppID, "GITHUB_APP_ID")
	setString(&r.Auth.InstallationID, "GITHUB_APP_INSTALLATION_ID")
	setString(&r.Auth.PrivateKey, "GITHUB_APP_PRIVATE_KEY")
	setString(&r.Auth.PrivateKeyFile, "GITHUB_APP_PRIVATE_KEY_FILE")
	setString(&r.Auth.PrivateKeyPassphrase, "GITHUB_APP_PRIVATE_KEY_PASSPHRASE")

	setString(&r.Scope, "RUNNER_SCOPE")
	setString(&r.Org, "RUNNER_ORG")
	setString(&r.Repo, "RUNNER_REPO")
	setList(&r.Repos, "RUNNER_REPOS")
	setString(&r.DiscoveryLabel, "RUNNER_DISCOVERY_LABEL")

	setString(&r.Name, "RUNNER_NAME")
	setList(&r.Labels, "RUNNER_LABELS")
	setString(&r.Group, "RUNNER_GROUP")
	setString(&r.GroupID, "RUNNER_GROUP_ID")

	setString(&r.HandoffDir, "RUNNER_HANDOFF_DIR")
	setString(&r.Issuance, "RUNNER_ISSUANCE")
	setString(&r.APIURL, "GITHUB_API_URL")
	setString(&r.APIVersion, "GITHUB_API_VERSION")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setList(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = splitList(v)
	}
}
