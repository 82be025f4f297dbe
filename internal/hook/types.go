// Package hook loads hook scripts from disk and serves them through an
// atomically swappable registry snapshot.
package hook

import (
	"github.com/piaoger/fisher/internal/provider"
)

// Hook is one configured hook script. Hooks are immutable once loaded; a
// reload produces fresh Hook values instead of mutating existing ones, so a
// job admitted before a reload keeps the definition it was validated
// against.
type Hook struct {
	// Name is the trigger path, the script's path relative to its collect
	// directory including the extension ("deploy.sh", "ci/build.sh").
	Name string
	// Exec is the absolute path of the script to spawn.
	Exec string
	// Priority orders queued jobs; higher runs first.
	Priority int
	// Parallel allows multiple jobs for this hook to run concurrently.
	Parallel bool
	// Providers are tried in declaration order; the first one that does not
	// reject the request decides the outcome.
	Providers []provider.Config
}

// Validate runs the request through the hook's providers. The first provider
// returning Accept or Ignore wins; if all of them reject, the first
// rejection is returned.
func (h *Hook) Validate(req *provider.Request) (provider.Outcome, provider.Kind) {
	var (
		firstReject     provider.Outcome
		firstRejectKind provider.Kind
		rejected        bool
	)

	for _, cfg := range h.Providers {
		outcome := cfg.Validate(req)
		if outcome.Kind != provider.OutcomeReject {
			return outcome, cfg.Kind
		}
		if !rejected {
			firstReject = outcome
			firstRejectKind = cfg.Kind
			rejected = true
		}
	}

	if rejected {
		return firstReject, firstRejectKind
	}
	return provider.Reject("no provider configured"), ""
}
