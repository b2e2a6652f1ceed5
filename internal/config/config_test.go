package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kyleking/gh-runwarden/internal/config"
	"github.com/kyleking/gh-runwarden/internal/github"
	"github.com/kyleking/gh-runwarden/internal/policy"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "runwarden.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	v := config.New()
	v.Set("repo", "apache/pulsar")

	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, []github.RunStatus{github.StatusQueued, github.StatusInProgress}, cfg.Governance.Statuses)
	assert.Equal(t, 100, cfg.Governance.PerPage)
	assert.Equal(t, 5, cfg.Governance.MaxPages)
	assert.Equal(t, 60*time.Second, cfg.Governance.Interval)

	assert.Equal(t, github.StatusFailure, cfg.Aggregation.Status)
	assert.Equal(t, 15, cfg.Aggregation.PerPage)
	assert.Equal(t, 100, cfg.Aggregation.MaxPages)
	assert.Equal(t, 2*time.Second, cfg.Aggregation.PageDelay)
	assert.Equal(t, "tests.json", cfg.Aggregation.Output)

	assert.Equal(t, github.DefaultRetryConfig(), cfg.HTTP.Retry)
	assert.ErrorIs(t, cfg.ValidateGovernance(), config.ErrNoRules)
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
repo: apache/pulsar
log-level: debug
governance:
  interval: 90s
  max-pages: 3
  rules:
    - message_contains: "[branch-2"
    - rerun_on_failure
    - kind: actor_not_in
      actors: [lhotari, merlimat]
aggregation:
  workflow: pulsar-ci.yaml
  page-delay: 500ms
`)

	v := config.New()
	require.NoError(t, config.ReadFile(v, path))
	cfg, err := config.Load(v)
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, 90*time.Second, cfg.Governance.Interval)
	assert.Equal(t, 3, cfg.Governance.MaxPages)
	assert.Equal(t, "pulsar-ci.yaml", cfg.Aggregation.Workflow)
	assert.Equal(t, 500*time.Millisecond, cfg.Aggregation.PageDelay)

	require.Len(t, cfg.Governance.Rules, 3)
	assert.Equal(t, policy.MessageContains("[branch-2"), cfg.Governance.Rules[0])
	assert.Equal(t, policy.RerunOnFailure(), cfg.Governance.Rules[1])
	assert.Equal(t, []string{"lhotari", "merlimat"}, cfg.Governance.Rules[2].Actors)
	require.NoError(t, cfg.ValidateGovernance())
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("RUNWARDEN_REPO", "apache/bookkeeper")
	t.Setenv("RUNWARDEN_GOVERNANCE_MAX_PAGES", "2")
	t.Setenv("RUNWARDEN_TOKEN", "from-env")

	cfg, err := config.Load(config.New())
	require.NoError(t, err)

	assert.Equal(t, "apache/bookkeeper", cfg.Repo)
	assert.Equal(t, 2, cfg.Governance.MaxPages)
	assert.Equal(t, "from-env", cfg.Token)
}

func TestConfig_RequireRepo(t *testing.T) {
	cfg := &config.Config{}
	require.ErrorIs(t, cfg.RequireRepo(), config.ErrInvalidRepo)

	cfg.Repo = "apache/pulsar"
	require.NoError(t, cfg.RequireRepo())
}

func TestReadFile_MissingSearchedFileIsFine(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	require.NoError(t, config.ReadFile(config.New(), ""))
}

func TestReadFile_ExplicitMissingFile(t *testing.T) {
	err := config.ReadFile(config.New(), filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
		wantMsg string
	}{
		{
			name:    "bad repo",
			body:    "repo: not-a-repo\n",
			wantErr: config.ErrInvalidRepo,
		},
		{
			name:    "bad log level",
			body:    "repo: a/b\nlog-level: loud\n",
			wantMsg: "log-level",
		},
		{
			name:    "bad log format",
			body:    "repo: a/b\nlog-format: xml\n",
			wantMsg: "log-format",
		},
		{
			name:    "per page too large",
			body:    "repo: a/b\naggregation:\n  per-page: 500\n",
			wantMsg: "aggregation.per-page",
		},
		{
			name:    "rule missing parameter",
			body:    "repo: a/b\ngovernance:\n  rules:\n    - kind: message_contains\n",
			wantErr: policy.ErrInvalidRule,
		},
		{
			name:    "unknown preset",
			body:    "repo: a/b\ngovernance:\n  rules:\n    - cancel_everything\n",
			wantMsg: "governance.rules",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := config.New()
			require.NoError(t, config.ReadFile(v, writeConfig(t, tt.body)))

			_, err := config.Load(v)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestConfig_Options(t *testing.T) {
	v := config.New()
	v.Set("repo", "apache/pulsar")
	v.Set("token", "t0k")
	v.Set("aggregation.concurrency", 4)

	cfg, err := config.Load(v)
	require.NoError(t, err)

	client := cfg.ClientOptions(nil)
	assert.Equal(t, "apache/pulsar", client.Repo)
	assert.Equal(t, "t0k", client.AuthToken)
	assert.Equal(t, 30*time.Second, client.Timeout)

	gov := cfg.GovernanceOptions()
	assert.Equal(t, 5, gov.MaxPages)

	agg := cfg.AggregationOptions()
	assert.Equal(t, 4, agg.Concurrency)
	assert.Equal(t, github.StatusFailure, agg.Status)
}

func TestNewLogger(t *testing.T) {
	var buf strings.Builder

	logger, err := config.NewLogger(&buf, "warn", "json")
	require.NoError(t, err)
	logger.Info("hidden")
	logger.Warn("shown", "run_id", 7)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, `"msg":"shown"`)
	assert.Contains(t, out, `"run_id":7`)

	_, err = config.NewLogger(&buf, "chatty", "text")
	require.Error(t, err)
}
