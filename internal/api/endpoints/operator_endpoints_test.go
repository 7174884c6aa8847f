package endpoints

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"widget-chat-backend/internal/api"
	"widget-chat-backend/internal/api/middleware"
	"widget-chat-backend/internal/dto"
	iternal_jwt "widget-chat-backend/internal/jwt"
	"widget-chat-backend/internal/model"
	"widget-chat-backend/internal/queue"
	messagesvc "widget-chat-backend/internal/service/message"
	sessionsvc "widget-chat-backend/internal/service/session"
	sitesvc "widget-chat-backend/internal/service/site"
	threadsvc "widget-chat-backend/internal/service/thread"
	"widget-chat-backend/internal/token"

	"github.com/google/uuid"
)

func setupOperatorServer(t *testing.T, store *testStore) http.Handler {
	t.Helper()

	iternal_jwt.SetSecret("operator-test-secret")
	t.Cleanup(func() { iternal_jwt.SetSecret("") })

	now := widgetFixedTime
	tokens := token.NewWithClock([]byte("test-secret"), time.Hour, now)
	sites := sitesvc.New(store)
	threads := threadsvc.NewManager(store, 0, now)
	sessions := sessionsvc.New(store, sites, threads, tokens, now)
	messages := messagesvc.New(store, sites, sessions, threads, tokens, nopPublisher{}, now)

	operatorEndpoints := NewOperatorEndpoints(threads, messages, OperatorPaths{
		ThreadsPath:   "/api/operator/v1/threads",
		ThreadsPrefix: "/api/operator/v1/threads/",
	})

	queueManager := queue.NewRequestQueueManager(10, 1)
	server := api.NewAPIServer(":0", queueManager, nil, nil, nil)
	t.Cleanup(queueManager.Shutdown)

	mux := http.NewServeMux()
	mux.HandleFunc("/api/operator/v1/threads",
		server.MakeHTTPHandleFunc(operatorEndpoints.Threads, middleware.ValidateOperatorJWT))
	mux.HandleFunc("/api/operator/v1/threads/",
		server.MakeHTTPHandleFunc(operatorEndpoints.ThreadSubresource, middleware.ValidateOperatorJWT))

	return mux
}

func operatorToken(t *testing.T, siteKey string) string {
	t.Helper()
	raw, err := iternal_jwt.CreateToken(iternal_jwt.Operator{
		ID:      "op-1",
		Email:   "op@example.com",
		SiteKey: siteKey,
	}, 0)
	if err != nil {
		t.Fatalf("create operator token: %v", err)
	}
	return raw
}

func TestOperatorListThreadsScopedToSite(t *testing.T) {
	store := newTestStore()
	store.seedSite("wc_site", "shop.example.com")
	store.seedSite("wc_other", "other.example.com")
	store.seedThread("wc_site", uuid.NewString(), "thread-1")
	store.seedThread("wc_other", uuid.NewString(), "thread-2")
	handler := setupOperatorServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/operator/v1/threads", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "wc_site"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp dto.ThreadsListResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Threads) != 1 || resp.Threads[0].ThreadID != "thread-1" {
		t.Fatalf("expected only the site's own thread, got %+v", resp.Threads)
	}
}

func TestOperatorRoutesRejectMissingToken(t *testing.T) {
	store := newTestStore()
	handler := setupOperatorServer(t, store)

	req := httptest.NewRequest(http.MethodGet, "/api/operator/v1/threads", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", res.Code)
	}
}

func TestOperatorReplyIsDeliveredImmediately(t *testing.T) {
	store := newTestStore()
	store.seedSite("wc_site", "shop.example.com")
	thread := store.seedThread("wc_site", uuid.NewString(), "thread-1")
	handler := setupOperatorServer(t, store)

	body, _ := json.Marshal(dto.OperatorMessageRequest{Text: "how can I help?"})
	req := httptest.NewRequest(http.MethodPost,
		"/api/operator/v1/threads/"+thread.ThreadID+"/messages", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "wc_site"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp dto.MessageResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Direction != string(model.DirectionOutbound) {
		t.Fatalf("expected outbound message, got %s", resp.Direction)
	}
	if resp.DeliveredAt == "" {
		t.Fatal("outbound message must carry a delivery stamp at creation")
	}
	if resp.ReadAt != "" {
		t.Fatal("outbound message must not start read")
	}

	stored, ok := store.messages[model.MessagePK(thread.ThreadID, resp.ID)]
	if !ok {
		t.Fatal("reply not persisted")
	}
	if stored.Text != "how can I help?" {
		t.Fatalf("unexpected stored text: %s", stored.Text)
	}
}

func TestOperatorCannotReplyAcrossSites(t *testing.T) {
	store := newTestStore()
	store.seedSite("wc_site", "shop.example.com")
	store.seedSite("wc_other", "other.example.com")
	thread := store.seedThread("wc_site", uuid.NewString(), "thread-1")
	handler := setupOperatorServer(t, store)

	body, _ := json.Marshal(dto.OperatorMessageRequest{Text: "hello"})
	req := httptest.NewRequest(http.MethodPost,
		"/api/operator/v1/threads/"+thread.ThreadID+"/messages", bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "wc_other"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for cross-site thread, got %d: %s", res.Code, res.Body.String())
	}
}

func TestOperatorCloseThread(t *testing.T) {
	store := newTestStore()
	store.seedSite("wc_site", "shop.example.com")
	thread := store.seedThread("wc_site", uuid.NewString(), "thread-1")
	handler := setupOperatorServer(t, store)

	req := httptest.NewRequest(http.MethodPost,
		"/api/operator/v1/threads/"+thread.ThreadID+"/close", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "wc_site"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp dto.ThreadCloseResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.OK || resp.Thread.Open {
		t.Fatalf("thread not closed: %+v", resp)
	}
	if resp.Thread.ClosedAt == "" {
		t.Fatal("closed thread must carry closedAt")
	}

	if store.threads[thread.PK].Open {
		t.Fatal("close not persisted")
	}

	req = httptest.NewRequest(http.MethodPost,
		"/api/operator/v1/threads/unknown/close", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "wc_site"))
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown thread, got %d", res.Code)
	}
}

func TestOperatorListThreadMessages(t *testing.T) {
	store := newTestStore()
	store.seedSite("wc_site", "shop.example.com")
	thread := store.seedThread("wc_site", uuid.NewString(), "thread-1")
	for i, text := range []string{"first", "second"} {
		id := uuid.NewString()
		store.messages[model.MessagePK(thread.ThreadID, id)] = model.MessageItem{
			PK:        model.MessagePK(thread.ThreadID, id),
			MessageID: id,
			ThreadID:  thread.ThreadID,
			SiteKey:   "wc_site",
			Direction: model.DirectionInbound,
			Text:      text,
			CreatedAt: time.Date(2024, 5, 1, 11, 30+i, 0, 0, time.UTC).Format(time.RFC3339),
		}
	}
	handler := setupOperatorServer(t, store)

	req := httptest.NewRequest(http.MethodGet,
		"/api/operator/v1/threads/"+thread.ThreadID+"/messages", nil)
	req.Header.Set("Authorization", "Bearer "+operatorToken(t, "wc_site"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}

	var resp dto.MessagesListResponse
	if err := json.Unmarshal(res.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(resp.Messages))
	}
	if resp.Messages[0].Text != "first" || resp.Messages[1].Text != "second" {
		t.Fatalf("messages out of order: %+v", resp.Messages)
	}
}
