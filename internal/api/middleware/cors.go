package middleware

import (
	"net/http"

	"widget-chat-backend/utils"
)

type CORSConfig struct {
	AllowedOrigins   []string
	AllowedMethods   []string
	AllowedHeaders   []string
	AllowCredentials bool
}

// CORS handles a fixed allow-list, used by the operator server where the
// dashboard origins are known at startup.
func CORS(config CORSConfig) Middleware {
	return func(f http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			allowedOrigin := ""

			for _, o := range config.AllowedOrigins {
				if o == "*" {
					if config.AllowCredentials {
						allowedOrigin = origin
					} else {
						allowedOrigin = "*"
					}
					break
				} else if o == origin {
					allowedOrigin = o
					break
				}
			}

			if allowedOrigin != "" {
				writeCORSHeaders(w, allowedOrigin, config)
			}

			if r.Method == http.MethodOptions {
				if allowedOrigin != "" {
					w.WriteHeader(http.StatusOK)
				} else {
					w.WriteHeader(http.StatusForbidden)
				}
				return
			}

			f(w, r)
		}
	}
}

// OriginResolver maps a request to the concrete origin to echo back, or
// reports that the origin is not allowed.
type OriginResolver func(r *http.Request) (string, bool)

// DynamicCORS handles widget routes, where the allow-list is per site and
// lives in the site registry. The resolver runs on every request, not just
// preflights: an embedding page on a disallowed origin is cut off with 403
// before any handler work, so a valid capability token alone is not enough
// to reach a handler from a foreign origin.
func DynamicCORS(resolve OriginResolver, config CORSConfig) Middleware {
	return func(f http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			allowedOrigin, ok := resolve(r)
			if ok && allowedOrigin != "" {
				writeCORSHeaders(w, allowedOrigin, config)
			}

			if !ok {
				w.WriteHeader(http.StatusForbidden)
				return
			}

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			f(w, r)
		}
	}
}

func writeCORSHeaders(w http.ResponseWriter, allowedOrigin string, config CORSConfig) {
	w.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
	if allowedOrigin != "*" {
		w.Header().Add("Vary", "Origin")
	}
	if config.AllowCredentials {
		w.Header().Set("Access-Control-Allow-Credentials", "true")
	}
	w.Header().Set("Access-Control-Allow-Methods", utils.StringJoin(config.AllowedMethods, ", "))
	w.Header().Set("Access-Control-Allow-Headers", utils.StringJoin(config.AllowedHeaders, ", "))
}
