package endpoints

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"widget-chat-backend/internal/dto"
	"widget-chat-backend/internal/model"
	messagesvc "widget-chat-backend/internal/service/message"
	sessionsvc "widget-chat-backend/internal/service/session"
	"widget-chat-backend/utils"

	"github.com/google/uuid"
)

const (
	visitorCookieName = "wc_visitor"
	sessionCookieName = "wc_session"
	cookieMaxAge      = 365 * 24 * 60 * 60
)

type WidgetEndpoints interface {
	Handshake(http.ResponseWriter, *http.Request) error
	Messages(http.ResponseWriter, *http.Request) error
	Ack(http.ResponseWriter, *http.Request) error
}

type widgetEndpoints struct {
	sessions *sessionsvc.Service
	messages *messagesvc.Service
}

func NewWidgetEndpoints(sessions *sessionsvc.Service, messages *messagesvc.Service) WidgetEndpoints {
	return &widgetEndpoints{
		sessions: sessions,
		messages: messages,
	}
}

func (h *widgetEndpoints) Handshake(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleHandshake,
	})
}

func (h *widgetEndpoints) Messages(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodGet:  h.handleListMessages,
		http.MethodPost: h.handleCreateMessage,
	})
}

func (h *widgetEndpoints) Ack(w http.ResponseWriter, r *http.Request) error {
	return MethodHandler(w, r, map[string]func(http.ResponseWriter, *http.Request) error{
		http.MethodPost: h.handleAck,
	})
}

func (h *widgetEndpoints) handleHandshake(w http.ResponseWriter, r *http.Request) error {
	var req dto.HandshakeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request body.",
			ErrorLog:   fmt.Errorf("decode handshake request: %w", err),
		}
	}

	siteKey := firstNonEmpty(req.SiteKey, r.URL.Query().Get("site_key"))
	visitorID := firstNonEmpty(req.VisitorID, cookieValue(r, visitorCookieName))
	sessionID := firstNonEmpty(req.SessionID, cookieValue(r, sessionCookieName))
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	descriptor, err := h.sessions.Handshake(r.Context(), sessionsvc.HandshakeParams{
		SiteKey:      siteKey,
		VisitorID:    visitorID,
		SessionID:    sessionID,
		OriginHeader: r.Header.Get("Origin"),
		Meta: sessionsvc.Meta{
			IP:        utils.RealClientIP(r),
			UserAgent: r.UserAgent(),
			PageURL:   req.PageURL,
		},
	})
	if err != nil {
		return mapServiceError(err)
	}

	setWidgetCookie(w, visitorCookieName, descriptor.VisitorID)
	setWidgetCookie(w, sessionCookieName, descriptor.SessionID)

	resp := dto.HandshakeResponse{
		VisitorID: descriptor.VisitorID,
		SessionID: descriptor.SessionID,
		ExpiresIn: descriptor.TTLSeconds,
	}
	if descriptor.ThreadID != "" {
		resp.ThreadID = &descriptor.ThreadID
		resp.Token = &descriptor.Token
	}

	return WriteJSON(w, http.StatusOK, resp)
}

func (h *widgetEndpoints) handleListMessages(w http.ResponseWriter, r *http.Request) error {
	query := r.URL.Query()
	siteKey := query.Get("site_key")
	threadID := query.Get("thread_id")

	if _, err := h.verifyBearer(r, siteKey, threadID); err != nil {
		return err
	}

	limit := 0
	if rawLimit := query.Get("limit"); rawLimit != "" {
		parsed, err := strconv.Atoi(rawLimit)
		if err != nil {
			return &HTTPError{
				StatusCode: http.StatusBadRequest,
				Message:    "Invalid limit.",
				ErrorLog:   fmt.Errorf("parse limit %q: %w", rawLimit, err),
			}
		}
		limit = parsed
	}

	messages, err := h.messages.ListMessages(r.Context(), messagesvc.ListParams{
		SiteKey:  siteKey,
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

func (h *widgetEndpoints) handleCreateMessage(w http.ResponseWriter, r *http.Request) error {
	var req dto.MessageCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request body.",
			ErrorLog:   fmt.Errorf("decode message request: %w", err),
		}
	}

	siteKey := firstNonEmpty(req.SiteKey, r.URL.Query().Get("site_key"))
	visitorID := firstNonEmpty(req.VisitorID, cookieValue(r, visitorCookieName))

	params := messagesvc.CreateInboundParams{
		SiteKey:      siteKey,
		ThreadID:     req.ThreadID,
		VisitorID:    visitorID,
		Text:         req.Text,
		DedupeKey:    req.DedupeKey,
		TmpID:        req.TmpID,
		OriginHeader: r.Header.Get("Origin"),
		Meta: sessionsvc.Meta{
			IP:        utils.RealClientIP(r),
			UserAgent: r.UserAgent(),
			PageURL:   req.PageURL,
		},
	}

	// With a thread id the caller must hold a matching capability token;
	// without one this is the first-message bootstrap and origin gating
	// happens inside the service.
	if req.ThreadID != "" {
		access, err := h.verifyBearer(r, siteKey, req.ThreadID)
		if err != nil {
			return err
		}
		params.VisitorID = access.VisitorID
	}

	result, err := h.messages.CreateInbound(r.Context(), params)
	if err != nil {
		return mapServiceError(err)
	}

	status := "created"
	if result.Duplicate {
		status = "duplicate"
	}

	resp := dto.MessageCreateResponse{
		MessageID: result.Message.MessageID,
		CreatedAt: result.Message.CreatedAt,
		Status:    status,
	}
	if result.Token != "" {
		resp.ThreadID = result.Thread.ThreadID
		resp.Token = result.Token
		resp.ExpiresIn = result.TTLSeconds
		resp.ClientID = result.ClientID
	}

	return WriteJSON(w, http.StatusOK, resp)
}

func (h *widgetEndpoints) handleAck(w http.ResponseWriter, r *http.Request) error {
	var req dto.AckRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &HTTPError{
			StatusCode: http.StatusBadRequest,
			Message:    "Invalid request body.",
			ErrorLog:   fmt.Errorf("decode ack request: %w", err),
		}
	}

	siteKey := firstNonEmpty(req.SiteKey, r.URL.Query().Get("site_key"))

	if _, err := h.verifyBearer(r, siteKey, req.ThreadID); err != nil {
		return err
	}

	result, err := h.messages.Ack(r.Context(), messagesvc.AckParams{
		SiteKey:      siteKey,
		ThreadID:     req.ThreadID,
		DeliveredIDs: req.Delivered,
		ReadIDs:      req.Read,
	})
	if err != nil {
		return mapServiceError(err)
	}

	return WriteJSON(w, http.StatusOK, dto.AckResponse{
		OK: true,
		Updated: dto.AckUpdated{
			Delivered: nonNil(result.Delivered),
			Read:      nonNil(result.Read),
		},
	})
}

func (h *widgetEndpoints) verifyBearer(r *http.Request, siteKey, threadID string) (messagesvc.Access, error) {
	raw := bearerToken(r)
	if raw == "" {
		return messagesvc.Access{}, &HTTPError{
			StatusCode: http.StatusForbidden,
			Message:    "Missing token.",
			ErrorLog:   fmt.Errorf("missing bearer token for thread %s", threadID),
		}
	}

	access, err := h.messages.VerifyAccess(raw, siteKey, threadID)
	if err != nil {
		return messagesvc.Access{}, mapServiceError(err)
	}
	return access, nil
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	return ""
}

func cookieValue(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

// setWidgetCookie writes the non-HTTP-only identity cookies the embed
// script reads back on subsequent loads. SameSite=None because the widget
// runs inside third-party pages.
func setWidgetCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   cookieMaxAge,
		Secure:   true,
		HttpOnly: false,
		SameSite: http.SameSiteNoneMode,
	})
}

func toMessageResponses(messages []model.MessageItem) []dto.MessageResponse {
	out := make([]dto.MessageResponse, 0, len(messages))
	for _, msg := range messages {
		out = append(out, dto.MessageResponse{
			ID:          msg.MessageID,
			Direction:   string(msg.Direction),
			Text:        msg.Text,
			Payload:     msg.Payload,
			CreatedAt:   msg.CreatedAt,
			DeliveredAt: msg.DeliveredAt,
			ReadAt:      msg.ReadAt,
		})
	}
	return out
}

func nonNil(ids []string) []string {
	if ids == nil {
		return []string{}
	}
	return ids
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
