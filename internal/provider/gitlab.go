package provider

import (
	"crypto/hmac"
	"fmt"
	"strings"

	"github.com/gobwas/glob"
)

// GitLab webhook headers.
const (
	GitLabTokenHeader = "X-Gitlab-Token"
	GitLabEventHeader = "X-Gitlab-Event"
)

// GitLabConfig validates GitLab webhook deliveries by comparing the static
// secret token header. GitLab does not sign payloads.
type GitLabConfig struct {
	// Secret is the secret token configured on GitLab.
	Secret string `json:"secret"`
	// Events, when non-empty, whitelists which event types run the hook.
	// Entries are glob patterns over the normalized event name
	// ("push", "merge_request", "tag_push").
	Events []string `json:"events,omitempty"`

	eventGlobs []glob.Glob
}

func (c *GitLabConfig) compile() error {
	for _, pattern := range c.Events {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compiling event pattern %q: %w", pattern, err)
		}
		c.eventGlobs = append(c.eventGlobs, g)
	}
	return nil
}

func (c *GitLabConfig) validate(req *Request) Outcome {
	token := req.Header(GitLabTokenHeader)
	if !hmac.Equal([]byte(token), []byte(c.Secret)) {
		return Reject("invalid token")
	}

	event := normalizeGitLabEvent(req.Header(GitLabEventHeader))
	if event == "" {
		return Reject("missing " + GitLabEventHeader + " header")
	}

	if !matchEvent(c.eventGlobs, event) {
		return Ignore()
	}

	return Accept(map[string]string{
		"EVENT": event,
	})
}

// normalizeGitLabEvent turns header values like "Push Hook" or
// "Merge Request Hook" into "push" and "merge_request".
func normalizeGitLabEvent(event string) string {
	event = strings.ToLower(strings.TrimSpace(event))
	event = strings.TrimSuffix(event, " hook")
	return strings.ReplaceAll(event, " ", "_")
}
