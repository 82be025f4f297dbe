package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func gitlabConfig(t *testing.T, raw string) Config {
	t.Helper()
	cfg, err := ParseConfig("GitLab", []byte(raw))
	require.NoError(t, err)
	return cfg
}

func TestGitLabToken(t *testing.T) {
	cfg := gitlabConfig(t, `{"secret": "token123"}`)

	outcome := cfg.Validate(&Request{
		Headers: map[string]string{
			GitLabTokenHeader: "token123",
			GitLabEventHeader: "Push Hook",
		},
	})
	require.Equal(t, OutcomeAccept, outcome.Kind, outcome.Reason)
	assert.Equal(t, "push", outcome.Env["EVENT"])

	outcome = cfg.Validate(&Request{
		Headers: map[string]string{
			GitLabTokenHeader: "wrong",
			GitLabEventHeader: "Push Hook",
		},
	})
	assert.Equal(t, OutcomeReject, outcome.Kind)

	outcome = cfg.Validate(&Request{
		Headers: map[string]string{GitLabEventHeader: "Push Hook"},
	})
	assert.Equal(t, OutcomeReject, outcome.Kind, "missing token must reject")
}

func TestGitLabEventNormalization(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"Push Hook", "push"},
		{"Tag Push Hook", "tag_push"},
		{"Merge Request Hook", "merge_request"},
		{"Note Hook", "note"},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeGitLabEvent(tt.header))
		})
	}
}

func TestGitLabEventWhitelist(t *testing.T) {
	cfg := gitlabConfig(t, `{"secret": "token123", "events": ["push"]}`)

	outcome := cfg.Validate(&Request{
		Headers: map[string]string{
			GitLabTokenHeader: "token123",
			GitLabEventHeader: "Merge Request Hook",
		},
	})
	assert.Equal(t, OutcomeIgnore, outcome.Kind)

	outcome = cfg.Validate(&Request{
		Headers: map[string]string{
			GitLabTokenHeader: "token123",
			GitLabEventHeader: "Push Hook",
		},
	})
	assert.Equal(t, OutcomeAccept, outcome.Kind)
}

func TestGitLabMissingEventHeader(t *testing.T) {
	cfg := gitlabConfig(t, `{"secret": "token123"}`)

	outcome := cfg.Validate(&Request{
		Headers: map[string]string{GitLabTokenHeader: "token123"},
	})
	assert.Equal(t, OutcomeReject, outcome.Kind)
}
