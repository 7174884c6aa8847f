package endpoints

import (
	"errors"
	"fmt"
	"net/http"

	"widget-chat-backend/internal/api"
	messagesvc "widget-chat-backend/internal/service/message"
	sessionsvc "widget-chat-backend/internal/service/session"
)

type HTTPError = api.HTTPError

type ApiMessageResponse struct {
	Message string `json:"message"`
}

func WriteJSON(w http.ResponseWriter, status int, v any) error {
	return api.WriteJSON(w, status, v)
}

func MethodHandler(
	w http.ResponseWriter,
	r *http.Request,
	allowed map[string]func(http.ResponseWriter, *http.Request) error,
) error {
	if handler, ok := allowed[r.Method]; ok {
		return handler(w, r)
	}
	return &HTTPError{
		StatusCode: http.StatusMethodNotAllowed,
		Message:    "Method not allowed.",
		ErrorLog:   fmt.Errorf("method not allowed"),
	}
}

// statusForCode maps the shared service error taxonomy onto HTTP statuses:
// bad input 400, rejected site key / origin / token 403, missing thread or
// message 404, unprovisioned registry or storage 503.
func statusForCode(code string) int {
	switch code {
	case "validation_error":
		return http.StatusBadRequest
	case "auth_error":
		return http.StatusForbidden
	case "not_found":
		return http.StatusNotFound
	case "unavailable":
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func mapServiceError(err error) error {
	if err == nil {
		return nil
	}

	var msgErr *messagesvc.Error
	if errors.As(err, &msgErr) {
		status := statusForCode(string(msgErr.Code))
		return &HTTPError{StatusCode: status, Message: publicMessage(status, msgErr.Message), ErrorLog: err}
	}

	var sessErr *sessionsvc.Error
	if errors.As(err, &sessErr) {
		status := statusForCode(string(sessErr.Code))
		return &HTTPError{StatusCode: status, Message: publicMessage(status, sessErr.Message), ErrorLog: err}
	}

	return &HTTPError{
		StatusCode: http.StatusInternalServerError,
		Message:    "Internal server error",
		ErrorLog:   err,
	}
}

func publicMessage(status int, message string) string {
	if status == http.StatusInternalServerError {
		return "Internal server error"
	}
	return message
}
