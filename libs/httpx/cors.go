package httpx

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// CORSPolicy defines the CORS headers to emit for matching origins.
type CORSPolicy struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	ExposedHeaders   []string
	AllowCredentials bool
	MaxAge           time.Duration
}

type compiledCORS struct {
	origins     []string
	methods     string
	headers     string
	exposed     string
	maxAge      string
	credentials bool
}

func (p CORSPolicy) compile() compiledCORS {
	c := compiledCORS{
		origins:     trimAll(p.AllowedOrigins),
		methods:     strings.Join(trimAll(p.AllowedMethods), ", "),
		headers:     strings.Join(trimAll(p.AllowedHeaders), ", "),
		exposed:     strings.Join(trimAll(p.ExposedHeaders), ", "),
		credentials: p.AllowCredentials,
	}
	if secs := int(p.MaxAge.Seconds()); secs > 0 {
		c.maxAge = strconv.Itoa(secs)
	}
	return c
}

// WithCORS answers preflights and decorates responses for allowed origins.
// An empty AllowedOrigins disables it. Requests from other origins pass
// through without CORS headers so the browser blocks them.
func WithCORS(policy CORSPolicy) Middleware {
	c := policy.compile()
	if len(c.origins) == 0 {
		return func(next http.Handler) http.Handler { return next }
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allow, ok := c.match(origin)
			if origin == "" || !ok {
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("Access-Control-Allow-Origin", allow)
			h.Add("Vary", "Origin")
			if c.credentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				c.preflight(h)
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if c.exposed != "" {
				h.Set("Access-Control-Expose-Headers", c.exposed)
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c compiledCORS) preflight(h http.Header) {
	setIf(h, "Access-Control-Allow-Methods", c.methods)
	setIf(h, "Access-Control-Allow-Headers", c.headers)
	setIf(h, "Access-Control-Max-Age", c.maxAge)
	h.Add("Vary", "Access-Control-Request-Method")
	h.Add("Vary", "Access-Control-Request-Headers")
}

// match echoes the origin unless the policy is a credential-less wildcard.
func (c compiledCORS) match(origin string) (string, bool) {
	for _, candidate := range c.origins {
		switch {
		case candidate == "*" && c.credentials:
			return origin, true
		case candidate == "*":
			return "*", true
		case strings.EqualFold(candidate, origin):
			return origin, true
		}
	}
	return "", false
}

func setIf(h http.Header, key, value string) {
	if value != "" {
		h.Set(key, value)
	}
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
