package httpmiddleware

import (
	"net/http"
	"strconv"
	"strings"
)

// CORSConfig lists the shell origins allowed to call the facade.
type CORSConfig struct {
	// Origins is matched case-insensitively. Empty disables CORS handling.
	// "*" allows any origin.
	Origins []string
	// MaxAge caches preflight results, in seconds. Zero omits the header.
	MaxAge int
}

// Enabled reports whether any origin is configured.
func (c CORSConfig) Enabled() bool { return len(c.Origins) > 0 }

const (
	corsMethods = "GET, POST, PUT, PATCH, DELETE, OPTIONS"
	corsHeaders = "Authorization, Content-Type, X-Request-ID"
)

// CORS answers preflights and tags responses for allowed origins. Requests
// from other origins pass through untagged and the browser blocks them.
func CORS(cfg CORSConfig) Middleware {
	wildcard := false
	allowed := make(map[string]struct{}, len(cfg.Origins))
	for _, o := range cfg.Origins {
		if o == "*" {
			wildcard = true
		}
		allowed[strings.ToLower(strings.TrimSpace(o))] = struct{}{}
	}
	maxAge := ""
	if cfg.MaxAge > 0 {
		maxAge = strconv.Itoa(cfg.MaxAge)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			h := w.Header()
			h.Add("Vary", "Origin")
			origin := r.Header.Get("Origin")
			_, ok := allowed[strings.ToLower(origin)]
			ok = origin != "" && (ok || wildcard)

			if r.Method == http.MethodOptions && r.Header.Get("Access-Control-Request-Method") != "" {
				if ok {
					h.Set("Access-Control-Allow-Origin", origin)
					h.Set("Access-Control-Allow-Methods", corsMethods)
					h.Set("Access-Control-Allow-Headers", corsHeaders)
					if maxAge != "" {
						h.Set("Access-Control-Max-Age", maxAge)
					}
				}
				w.WriteHeader(http.StatusNoContent)
				return
			}
			if ok {
				h.Set("Access-Control-Allow-Origin", origin)
				h.Set("Access-Control-Expose-Headers", HeaderRequestID)
			}
			next.ServeHTTP(w, r)
		})
	}
}
