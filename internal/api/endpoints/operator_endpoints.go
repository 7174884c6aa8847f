package endpoints

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"widget-chat-backend/internal/api/middleware"
	"widget-chat-backend/internal/dto"
	iternal_jwt "widget-chat-backend/internal/jwt"
	"widget-chat-backend/internal/model"
	messagesvc "widget-chat-backend/internal/service/message"
	threadsvc "widget-chat-backend/internal/service/thread"
)

// OperatorPaths carries the routing prefixes so path parsing stays in sync
// with the registered routes.
type OperatorPaths struct {
	ThreadsPath   string
	ThreadsPrefix string
}

type OperatorEndpoints interface {
	Threads(http.ResponseWriter, *http.Request) error
	ThreadSubresource(http.ResponseWriter, *http.Request) error
}

type operatorEndpoints struct {
	threads  *threadsvc.Manager
	messages *messagesvc.Service
	paths    OperatorPaths
}

func NewOperatorEndpoints(threads *threadsvc.Manager, messages *messagesvc.Service, paths OperatorPaths) OperatorEndpoints {
	return &operatorEndpoints{
		threads:  threads,
		messages: messages,
		paths:    paths,
	}
}

func (h *operatorEndpoints) Threads(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet: h.handleListThreads,
	})
}

// ThreadSubresource dispatches /threads/{id}/messages and
// /threads/{id}/close.
func (h *operatorEndpoints) ThreadSubresource(w http.ResponseWriter, r *http.Request) error {
	threadID, action, err := h.parseThreadPath(r.URL.Path)
	if err != nil {
		return err
	}

	switch action {
	case "messages":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodGet: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleListThreadMessages(w, r, threadID)
			},
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handlePostThreadMessage(w, r, threadID)
			},
		})
	case "close":
		return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
			http.MethodPost: func(w http.ResponseWriter, r *http.Request) error {
				return h.handleCloseThread(w, r, threadID)
			},
		})
	default:
		return &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found.",
			ErrorLog:   fmt.Errorf("unknown thread action %q", action),
		}
	}
}

func (h *operatorEndpoints) parseThreadPath(path string) (string, string, error) {
	rest := strings.TrimPrefix(path, h.paths.ThreadsPrefix)
	if rest == path {
		return "", "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found.",
			ErrorLog:   fmt.Errorf("thread path mismatch: %s", path),
		}
	}

	parts := strings.Split(strings.Trim(rest, "/"), "/")
	if len(parts) != 2 || parts[0] == "" {
		return "", "", &HTTPError{
			StatusCode: http.StatusNotFound,
			Message:    "Not found.",
			ErrorLog:   fmt.Errorf("invalid thread path: %s", path),
		}
	}
	return parts[0], parts[1], nil
}

func (h *operatorEndpoints) handleListThreads(w http.ResponseWriter, r *http.Request) error {
	operator, err := requireOperator(r)
	if err != nil {
		return err
	}

	limit := 0
	if rawLimit := r.URL.Query().Get("limit"); rawLimit != "" {
		parsed, convErr := strconv.Atoi(rawLimit)
		if convErr != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid limit.",
				ErrorLog:   fmt.Errorf("parse limit %q: %w", rawLimit, convErr),
			}
		}
		limit = parsed
	}

	threads, err := h.threads.List(r.Context(), operator.SiteKey, limit)
	if err != nil {
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("list threads for %s: %w", operator.SiteKey, err),
		}
	}

	resp := dto.ThreadsListResponse{Threads: make([]dto.ThreadResponse, 0, len(threads))}
	for _, item := range threads {
		resp.Threads = append(resp.Threads, toThreadResponse(item))
	}
	return WriteJSON(w, http.StatusOK, resp)
}

func (h *operatorEndpoints) handleListThreadMessages(w http.ResponseWriter, r *http.Request, threadID string) error {
	operator, err := requireOperator(r)
	if err != nil {
		return err
	}

	query := r.URL.Query()
	limit := 0
	if rawLimit := query.Get("limit"); rawLimit != "" {
		parsed, convErr := strconv.Atoi(rawLimit)
		if convErr != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid limit.",
				ErrorLog:   fmt.Errorf("parse limit %q: %w", rawLimit, convErr),
			}
		}
		limit = parsed
	}

	messages, err := h.messages.ListMessages(r.Context(), messagesvc.ListParams{
		SiteKey:  operator.SiteKey,
		ThreadID: threadID,
		BeforeID: query.Get("before_id"),
		SinceID:  query.Get("since"),
		Limit:    limit,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.MessagesListResponse{Messages: toMessageResponses(messages)})
}

func (h *operatorEndpoints) handlePostThreadMessage(w http.ResponseWriter, r *http.Request, threadID string) error {
	operator, err := requireOperator(r)
	if err != nil {
		return err
	}

	var req dto.OperatorMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request body.",
			ErrorLog:   fmt.Errorf("decode operator message: %w", err),
		}
	}

	msg, _, err := h.messages.CreateOutbound(r.Context(), operator.SiteKey, threadID, req.Text)
	if err != nil {
		return mapServiceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.MessageResponse{
		ID:          msg.MessageID,
		Direction:   string(msg.Direction),
		Text:        msg.Text,
		CreatedAt:   msg.CreatedAt,
		DeliveredAt: msg.DeliveredAt,
	})
}

func (h *operatorEndpoints) handleCloseThread(w http.ResponseWriter, r *http.Request, threadID string) error {
	operator, err := requireOperator(r)
	if err != nil {
		return err
	}

	closed, err := h.threads.Close(r.Context(), operator.SiteKey, threadID)
	if err != nil {
		if errors.Is(err, threadsvc.ErrNotFound) {
			return &HTTPError{
				StatusCode: http.StatusNotFound,
				Message:    "Thread not found.",
				ErrorLog:   fmt.Errorf("close thread %s: %w", threadID, err),
			}
		}
		return &HTTPError{
			StatusCode: http.StatusInternalServerError,
			Message:    "Internal server error",
			ErrorLog:   fmt.Errorf("close thread %s: %w", threadID, err),
		}
	}

	return WriteJSON(w, http.StatusOK, dto.ThreadCloseResponse{
		OK:     true,
		Thread: toThreadResponse(closed),
	})
}

func requireOperator(r *http.Request) (iternal_jwt.Operator, error) {
	op, ok := middleware.OperatorFromRequest(r)
	if !ok {
		return iternal_jwt.Operator{}, &HTTPError{
			StatusCode: http.StatusUnauthorized,
			Message:    "Unauthorized",
			ErrorLog:   fmt.Errorf("request missing operator identity"),
		}
	}
	return op, nil
}

func toThreadResponse(item model.ThreadItem) dto.ThreadResponse {
	return dto.ThreadResponse{
		ThreadID:      item.ThreadID,
		VisitorID:     item.VisitorID,
		Open:          item.Open,
		ClosedAt:      item.ClosedAt,
		ReopenedCount: item.ReopenedCount,
		CreatedAt:     item.CreatedAt,
		UpdatedAt:     item.UpdatedAt,
		LastMessageAt: item.LastMessageAt,
	}
}
