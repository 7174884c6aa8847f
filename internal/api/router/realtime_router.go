package router

import (
	"net/http"
	"strings"

	"widget-chat-backend/internal/api"
	"widget-chat-backend/internal/api/endpoints"
)

func RealtimeRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		svcs := buildServices(s)
		threadsPrefix := strings.TrimRight(prefix, "/") + "/threads/"
		realtimeEndpoints := endpoints.NewRealtimeEndpoints(s.RealtimeHandler(), svcs.messages, threadsPrefix)

		mux.HandleFunc(threadsPrefix, s.MakeHTTPHandleFunc(realtimeEndpoints.ThreadSocket))
	}
}
