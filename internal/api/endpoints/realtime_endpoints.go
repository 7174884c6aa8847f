package endpoints

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	iternal_jwt "widget-chat-backend/internal/jwt"
	"widget-chat-backend/internal/realtime"
	messagesvc "widget-chat-backend/internal/service/message"
)

type RealtimeEndpoints interface {
	ThreadSocket(http.ResponseWriter, *http.Request) error
}

type realtimeEndpoints struct {
	handler  *realtime.Handler
	messages *messagesvc.Service
	prefix   string
}

func NewRealtimeEndpoints(handler *realtime.Handler, messages *messagesvc.Service, prefix string) RealtimeEndpoints {
	return &realtimeEndpoints{
		handler:  handler,
		messages: messages,
		prefix:   prefix,
	}
}

// ThreadSocket subscribes a widget or operator console to a thread's
// channel. Browsers cannot set headers on websocket requests, so the
// credential travels in the query string: the visitor's capability token
// or the operator's dashboard JWT.
func (h *realtimeEndpoints) ThreadSocket(w http.ResponseWriter, r *http.Request) error {
	threadID := strings.Trim(strings.TrimPrefix(r.URL.Path, h.prefix), "/")
	if threadID == "" || strings.Contains(threadID, "/") {
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found.",
			ErrorLog:   fmt.Errorf("invalid websocket path: %s", r.URL.Path),
		}
	}

	query := r.URL.Query()
	role := query.Get("role")
	if role == "" {
		role = "visitor"
	}

	var subscriberID string
	switch role {
	case "visitor":
		access, err := h.messages.VerifyAccess(query.Get("token"), query.Get("site_key"), threadID)
		if err != nil {
			return mapServiceError(err)
		}
		subscriberID = access.VisitorID

	case "operator":
		claims, err := iternal_jwt.ParseToken(query.Get("token"))
		if err != nil {
			return &HTTPError{
				StatusCode: http.StatusForbidden,
				Message:    "Invalid token.",
				ErrorLog:   fmt.Errorf("operator websocket auth: %w", err),
			}
		}
		expires, ok := claims["exp"].(float64)
		if !ok || time.Now().Unix() > int64(expires) {
			return &HTTPError{
				StatusCode: http.StatusForbidden,
				Message:    "Token expired.",
				ErrorLog:   fmt.Errorf("operator websocket token expired"),
			}
		}
		op, err := iternal_jwt.OperatorFromClaims(claims)
		if err != nil {
			return &HTTPError{
				StatusCode: http.StatusForbidden,
				Message:    "Invalid token.",
				ErrorLog:   fmt.Errorf("operator websocket claims: %w", err),
			}
		}
		if _, err := h.messages.GetThread(r.Context(), op.SiteKey, threadID); err != nil {
			return mapServiceError(err)
		}
		subscriberID = "op:" + op.ID

	default:
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid role.",
			ErrorLog:   fmt.Errorf("unknown websocket role %q", role),
		}
	}

	h.handler.JoinThread(w, r, threadID, subscriberID)
	return nil
}
