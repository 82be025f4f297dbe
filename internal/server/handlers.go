package server

import (
	"io"
	"net"
	"net/http"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/piaoger/fisher/internal/dispatch"
	"github.com/piaoger/fisher/internal/provider"
)

// handleHealth serves the scheduler counters as a point-in-time snapshot.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	JSON(w, http.StatusOK, s.stats.Stats())
}

// handleHook runs the dispatch protocol for one webhook request and maps
// the terminal state onto a status code. The response never waits for the
// hook script.
func (s *Server) handleHook(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Server.MaxBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		BadRequest(w, "failed to read request body")
		return
	}

	req := &provider.Request{
		Method:  r.Method,
		Headers: extractHeaders(r),
		Query:   extractQuery(r),
		Body:    body,
		Address: clientAddress(r, s.cfg.Server.BehindProxies),
	}

	result := s.dispatcher.Dispatch(name, req)
	switch result.Kind {
	case dispatch.Admitted:
		JSON(w, http.StatusOK, map[string]string{
			"status": "queued",
			"job":    result.JobID,
		})
	case dispatch.Ignored:
		JSON(w, http.StatusOK, map[string]string{
			"status": "ignored",
		})
	case dispatch.NotFound:
		NotFound(w, "hook not found")
	case dispatch.InvalidRequest:
		Forbidden(w, "request validation failed")
	case dispatch.RateLimited:
		Error(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many invalid requests")
	case dispatch.ShuttingDown:
		w.Header().Set("Retry-After", "5")
		Error(w, http.StatusServiceUnavailable, "SHUTTING_DOWN", "shutting down, retry later")
	default:
		InternalError(w, "unexpected dispatch result")
	}
}

// extractHeaders keeps the first value of every request header.
func extractHeaders(r *http.Request) map[string]string {
	headers := make(map[string]string, len(r.Header))
	for name, values := range r.Header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	return headers
}

// extractQuery keeps the first value of every query parameter.
func extractQuery(r *http.Request) map[string]string {
	query := make(map[string]string)
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			query[name] = values[0]
		}
	}
	return query
}

// clientAddress resolves the client address, walking behindProxies hops
// back through X-Forwarded-For when fisher sits behind reverse proxies.
func clientAddress(r *http.Request, behindProxies int) string {
	if behindProxies > 0 {
		forwarded := r.Header.Get("X-Forwarded-For")
		if forwarded != "" {
			hops := strings.Split(forwarded, ",")
			idx := len(hops) - behindProxies
			if idx < 0 {
				idx = 0
			}
			if addr := strings.TrimSpace(hops[idx]); addr != "" {
				return addr
			}
		}
		log.Debug().
			Str("remote", r.RemoteAddr).
			Msg("Missing X-Forwarded-For behind proxies, using remote address")
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
