package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"widget-chat-backend/internal/api/middleware"
	"widget-chat-backend/internal/env"
	"widget-chat-backend/internal/queue"
	"widget-chat-backend/internal/service/site"
)

type apiFunc func(http.ResponseWriter, *http.Request) error

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(v)
}

func operatorCORSConfig() middleware.CORSConfig {
	origins := []string{"http://localhost:3000"}
	if dashboard := env.Get(env.DashboardURL); dashboard != "" {
		origins = append(origins, dashboard)
	}
	return middleware.CORSConfig{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "PUT", "OPTIONS", "DELETE"},
		AllowedHeaders:   []string{"Content-Type", "X-Requested-With", "Authorization"},
		AllowCredentials: true,
	}
}

func widgetCORSConfig() middleware.CORSConfig {
	return middleware.CORSConfig{
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	}
}

// queuedHandler pushes the request through the worker pool and renders any
// returned error as JSON.
func (s *APIServer) queuedHandler(f apiFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		errc := make(chan error, 1)

		job := queue.Job{
			Fn: func() error {
				return f(w, r)
			},
			Errc: errc,
		}

		s.requestQueueManager.EnqueueJob(job)

		err := <-errc
		if err != nil {
			var httpErr *HTTPError
			if errors.As(err, &httpErr) {
				fmt.Println(httpErr.ErrorLog)
				WriteJSON(w, httpErr.StatusCode, ApiError{Error: httpErr.Message})
			} else {
				WriteJSON(w, http.StatusInternalServerError, ApiError{Error: "Internal server error"})
			}
		}
	}
}

// MakeHTTPHandleFunc wraps an operator-facing handler with the fixed
// dashboard CORS allow-list, logging and any auth middleware.
func (s *APIServer) MakeHTTPHandleFunc(f apiFunc, authMiddleware ...middleware.Middleware) http.HandlerFunc {
	baseHandler := s.queuedHandler(f)

	middlewares := []middleware.Middleware{
		middleware.CORS(operatorCORSConfig()),
		middleware.Logging(),
	}

	finalHandler := func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		if len(authMiddleware) > 0 {
			authHandler := baseHandler
			for _, m := range authMiddleware {
				authHandler = m(authHandler)
			}
			authHandler(w, r)
		} else {
			baseHandler(w, r)
		}
	}

	return middleware.Chain(finalHandler, middlewares...)
}

// MakeWidgetHandleFunc wraps a widget-facing handler with the per-site
// origin gate: the embedding page's origin is checked against the site's
// allow-list on every request and method, preflights included, and a
// disallowed origin gets 403 before any handler work. The site key comes
// from the query string because preflight requests carry no body; callers
// without an Origin header are still gated through the page_url hint.
func (s *APIServer) MakeWidgetHandleFunc(f apiFunc, sites *site.Service) http.HandlerFunc {
	baseHandler := s.queuedHandler(f)

	resolve := func(r *http.Request) (string, bool) {
		query := r.URL.Query()
		siteKey := query.Get("site_key")
		originHeader := r.Header.Get("Origin")
		if originHeader == "" {
			_, err := sites.Gate(r.Context(), siteKey, "", query.Get("page_url"))
			return "", err == nil
		}
		return sites.AllowOrigin(r.Context(), siteKey, originHeader)
	}

	middlewares := []middleware.Middleware{
		middleware.DynamicCORS(resolve, widgetCORSConfig()),
		middleware.Logging(),
	}

	return middleware.Chain(baseHandler, middlewares...)
}
