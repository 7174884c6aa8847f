package router

import (
	"net/http"

	"widget-chat-backend/internal/api"
	"widget-chat-backend/internal/api/endpoints"
)

func WidgetRoutes(prefix string) api.RouteRegistrar {
	return func(mux *http.ServeMux, s *api.APIServer) {
		svcs := buildServices(s)
		widgetEndpoints := endpoints.NewWidgetEndpoints(svcs.sessions, svcs.messages)

		mux.HandleFunc(prefix+"/handshake", s.MakeWidgetHandleFunc(widgetEndpoints.Handshake, svcs.sites))
		mux.HandleFunc(prefix+"/messages", s.MakeWidgetHandleFunc(widgetEndpoints.Messages, svcs.sites))
		mux.HandleFunc(prefix+"/ack", s.MakeWidgetHandleFunc(widgetEndpoints.Ack, svcs.sites))
	}
}
