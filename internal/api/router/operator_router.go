package router

import (
	"net/http"
	"strings"

	"widget-chat-backend/internal/api"
	"widget-chat-backend/internal/api/endpoints"
	"widget-chat-backend/internal/api/middleware"
)

func OperatorRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		svcs := buildServices(s)
		paths := endpoints.OperatorPaths{
			ThreadsPath:   strings.TrimRight(prefix, "/") + "/threads",
			ThreadsPrefix: strings.TrimRight(prefix, "/") + "/threads/",
		}
		operatorEndpoints := endpoints.NewOperatorEndpoints(svcs.threads, svcs.messages, paths)

		mux.HandleFunc(prefix+"/threads", s.MakeHTTPHandleFunc(operatorEndpoints.Threads, middleware.ValidateOperatorJWT))
		mux.HandleFunc(prefix+"/threads/", s.MakeHTTPHandleFunc(operatorEndpoints.ThreadSubresource, middleware.ValidateOperatorJWT))
	}
}
