package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/domain"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestAgentsCommand(t *testing.T) {
	out, err := execute(t, "agents")

	require.NoError(t, err)
	for _, e := range agents.Catalog() {
		assert.Contains(t, out, string(e.ID))
	}
}

func TestConfigCommand(t *testing.T) {
	// Given a config file overriding the cache backend and a secret
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("cache:\n  backend: memory\n  prefix: test-\nmaps:\n  api_key: secret-key\n"), 0o600))

	// When printing the effective configuration
	out, err := execute(t, "config", "--config", path, "--env-file", filepath.Join(dir, "missing.env"))

	// Then overrides show and secrets do not
	require.NoError(t, err)
	assert.Contains(t, out, "prefix: test-")
	assert.Contains(t, out, "backend: memory")
	assert.NotContains(t, out, "secret-key")
}

func TestAgentIDs(t *testing.T) {
	tests := []struct {
		name    string
		arg     string
		want    []domain.TaskID
		wantErr error
	}{
		{name: "single", arg: "praiser", want: []domain.TaskID{domain.TaskPraiser}},
		{name: "list", arg: "sake, red_flag", want: []domain.TaskID{domain.TaskSake, domain.TaskRedFlag}},
		{name: "unknown", arg: "praiser,oracle", wantErr: domain.ErrUnknownTask},
		{name: "pipeline task", arg: "guide", wantErr: domain.ErrUnknownTask},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := agentIDs(tt.arg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	all, err := agentIDs("all")
	require.NoError(t, err)
	assert.Len(t, all, len(agents.AgentTasks()))
}

func TestSearchRejectsInvalidMode(t *testing.T) {
	_, err := execute(t, "search", "浅草駅", "--mode", "chaos")

	assert.ErrorIs(t, err, domain.ErrInvalidMode)
}
