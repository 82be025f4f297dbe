// Package provider implements the webhook validation protocols understood by
// fisher: standalone token auth, GitHub HMAC-signed payloads and GitLab
// secret tokens. A provider inspects a request and decides whether the hook
// it guards should run.
package provider

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrUnknownProvider is returned when a hook declares a provider fisher does
// not know about.
var ErrUnknownProvider = errors.New("provider not found")

// Kind identifies a validation protocol.
type Kind string

const (
	KindStandalone Kind = "standalone"
	KindGitHub     Kind = "github"
	KindGitLab     Kind = "gitlab"
)

// OutcomeKind is the verdict of a validation.
type OutcomeKind int

const (
	// OutcomeAccept means the request is authentic and the hook should run.
	OutcomeAccept OutcomeKind = iota
	// OutcomeReject means the request failed authentication.
	OutcomeReject
	// OutcomeIgnore means the request is authentic but should be
	// acknowledged without running the hook (ping events, filtered events).
	OutcomeIgnore
)

// Outcome is the result of validating a request against a provider.
// Validation never mutates shared state; a failed secret check is a normal
// Reject outcome, not an error.
type Outcome struct {
	Kind   OutcomeKind
	Env    map[string]string
	Reason string
}

// Accept builds an accepting outcome carrying provider environment variables.
func Accept(env map[string]string) Outcome {
	return Outcome{Kind: OutcomeAccept, Env: env}
}

// Reject builds a rejecting outcome with a human-readable reason.
func Reject(reason string) Outcome {
	return Outcome{Kind: OutcomeReject, Reason: reason}
}

// Ignore builds an ignoring outcome.
func Ignore() Outcome {
	return Outcome{Kind: OutcomeIgnore}
}

// Config is a tagged variant over the supported providers. Exactly one of
// the variant pointers is set, matching Kind. Adding a provider means adding
// a variant here plus its arm in Validate.
type Config struct {
	Kind Kind

	Standalone *StandaloneConfig
	GitHub     *GitHubConfig
	GitLab     *GitLabConfig
}

// ParseConfig decodes a provider declaration from a hook header. The name is
// the provider part of the `## Fisher-<Name>: <json>` header.
func ParseConfig(name string, raw []byte) (Config, error) {
	switch name {
	case "Standalone":
		cfg := &StandaloneConfig{}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return Config{}, fmt.Errorf("parsing Standalone config: %w", err)
		}
		return Config{Kind: KindStandalone, Standalone: cfg}, nil

	case "GitHub":
		cfg := &GitHubConfig{}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return Config{}, fmt.Errorf("parsing GitHub config: %w", err)
		}
		if err := cfg.compile(); err != nil {
			return Config{}, err
		}
		return Config{Kind: KindGitHub, GitHub: cfg}, nil

	case "GitLab":
		cfg := &GitLabConfig{}
		if err := json.Unmarshal(raw, cfg); err != nil {
			return Config{}, fmt.Errorf("parsing GitLab config: %w", err)
		}
		if err := cfg.compile(); err != nil {
			return Config{}, err
		}
		return Config{Kind: KindGitLab, GitLab: cfg}, nil

	default:
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownProvider, name)
	}
}

// Validate checks the request against the configured provider.
func (c Config) Validate(req *Request) Outcome {
	switch c.Kind {
	case KindStandalone:
		return c.Standalone.validate(req)
	case KindGitHub:
		return c.GitHub.validate(req)
	case KindGitLab:
		return c.GitLab.validate(req)
	default:
		return Reject(fmt.Sprintf("unknown provider kind: %s", c.Kind))
	}
}
