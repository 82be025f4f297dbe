package provider

import "strings"

// Request is the parsed view of an incoming webhook request that providers
// validate against. It is built once by the HTTP layer and never mutated.
type Request struct {
	// Method is the HTTP method of the request.
	Method string
	// Headers maps header names to their first value.
	Headers map[string]string
	// Query maps query parameter names to their first value.
	Query map[string]string
	// Body is the raw request body.
	Body []byte
	// Address is the client address, with any proxy hops already resolved.
	Address string
}

// Header returns the value of the named header, matching case-insensitively
// the way HTTP headers are meant to be looked up.
func (r *Request) Header(name string) string {
	if v := r.Headers[name]; v != "" {
		return v
	}

	lower := strings.ToLower(name)
	for k, v := range r.Headers {
		if strings.ToLower(k) == lower {
			return v
		}
	}

	return ""
}
