package provider

import (
	"crypto/hmac"
	"crypto/sha1" // #nosec G505 - SHA1 kept for X-Hub-Signature compatibility
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"github.com/gobwas/glob"
)

// GitHub webhook headers.
const (
	GitHubSignatureHeader256 = "X-Hub-Signature-256"
	GitHubSignatureHeader    = "X-Hub-Signature"
	GitHubEventHeader        = "X-GitHub-Event"
	GitHubDeliveryHeader     = "X-GitHub-Delivery"
)

// GitHubConfig validates GitHub webhook deliveries by checking the HMAC
// signature of the raw body against the shared secret.
type GitHubConfig struct {
	// Secret is the webhook secret configured on GitHub.
	Secret string `json:"secret"`
	// Events, when non-empty, whitelists which event types run the hook.
	// Entries are glob patterns ("push", "issue_*").
	Events []string `json:"events,omitempty"`

	eventGlobs []glob.Glob
}

func (c *GitHubConfig) compile() error {
	for _, pattern := range c.Events {
		g, err := glob.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compiling event pattern %q: %w", pattern, err)
		}
		c.eventGlobs = append(c.eventGlobs, g)
	}
	return nil
}

func (c *GitHubConfig) validate(req *Request) Outcome {
	signature := req.Header(GitHubSignatureHeader256)
	var h hash.Hash
	switch {
	case signature != "":
		h = hmac.New(sha256.New, []byte(c.Secret))
	default:
		signature = req.Header(GitHubSignatureHeader)
		if signature == "" {
			return Reject("missing signature header")
		}
		h = hmac.New(sha1.New, []byte(c.Secret))
	}

	// Signatures come as "sha256=<hex>" or "sha1=<hex>"; raw hex is
	// accepted too.
	actualHex := signature
	if idx := strings.IndexByte(signature, '='); idx >= 0 {
		actualHex = signature[idx+1:]
	}
	actualMAC, err := hex.DecodeString(actualHex)
	if err != nil {
		return Reject("malformed signature: " + err.Error())
	}

	h.Write(req.Body)
	if !hmac.Equal(h.Sum(nil), actualMAC) {
		return Reject("signature mismatch")
	}

	event := req.Header(GitHubEventHeader)
	if event == "" {
		return Reject("missing " + GitHubEventHeader + " header")
	}

	// Ping deliveries are authenticated but never run the hook.
	if event == "ping" {
		return Ignore()
	}

	if !matchEvent(c.eventGlobs, event) {
		return Ignore()
	}

	env := map[string]string{
		"EVENT": event,
	}
	if delivery := req.Header(GitHubDeliveryHeader); delivery != "" {
		env["DELIVERY"] = delivery
	}
	flattenPayload(env, req.Body)

	return Accept(env)
}

// matchEvent reports whether the event matches the whitelist. An empty
// whitelist matches everything.
func matchEvent(globs []glob.Glob, event string) bool {
	if len(globs) == 0 {
		return true
	}
	for _, g := range globs {
		if g.Match(event) {
			return true
		}
	}
	return false
}

// flattenPayload adds the top-level scalar fields of a JSON payload to the
// environment, with keys upper-cased and non-alphanumeric runes replaced by
// underscores. Nested objects and arrays are skipped.
func flattenPayload(env map[string]string, body []byte) {
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return
	}

	for key, value := range payload {
		var str string
		switch v := value.(type) {
		case string:
			str = v
		case float64:
			str = strconv.FormatFloat(v, 'f', -1, 64)
		case bool:
			str = strconv.FormatBool(v)
		default:
			continue
		}
		env[envKey(key)] = str
	}
}

func envKey(key string) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(key) {
		if (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		} else {
			b.WriteByte('_')
		}
	}
	return b.String()
}
