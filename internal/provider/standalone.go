package provider

import (
	"crypto/hmac"
)

// SecretHeader is the header carrying the shared secret for standalone hooks.
const SecretHeader = "X-Fisher-Secret"

// StandaloneConfig validates requests with an optional shared secret and an
// optional client address whitelist.
type StandaloneConfig struct {
	// Secret, when set, must match the X-Fisher-Secret header or the
	// `secret` query parameter.
	Secret string `json:"secret,omitempty"`
	// IPWhitelist, when non-empty, restricts which client addresses may
	// trigger the hook.
	IPWhitelist []string `json:"ip_whitelist,omitempty"`
}

func (c *StandaloneConfig) validate(req *Request) Outcome {
	if len(c.IPWhitelist) > 0 {
		allowed := false
		for _, ip := range c.IPWhitelist {
			if ip == req.Address {
				allowed = true
				break
			}
		}
		if !allowed {
			return Reject("address not in whitelist: " + req.Address)
		}
	}

	if c.Secret != "" {
		provided := req.Header(SecretHeader)
		if provided == "" {
			provided = req.Query["secret"]
		}
		if !hmac.Equal([]byte(provided), []byte(c.Secret)) {
			return Reject("invalid secret")
		}
	}

	return Accept(map[string]string{
		"IP": req.Address,
	})
}
