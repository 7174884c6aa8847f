package message

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"widget-chat-backend/internal/model"
	"widget-chat-backend/internal/service/session"
	"widget-chat-backend/internal/service/site"
	"widget-chat-backend/internal/service/thread"
	"widget-chat-backend/internal/token"
)

// memoryStore backs every repository the message service touches so tests
// observe a single consistent world.
type memoryStore struct {
	mu       sync.Mutex
	sites    map[string]model.SiteItem
	clients  map[string]model.ClientItem
	threads  map[string]model.ThreadItem
	messages map[string]model.MessageItem
	claims   map[string]model.DedupeItem

	beforeClaim func()
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		sites:    make(map[string]model.SiteItem),
		clients:  make(map[string]model.ClientItem),
		threads:  make(map[string]model.ThreadItem),
		messages: make(map[string]model.MessageItem),
		claims:   make(map[string]model.DedupeItem),
	}
}

func (s *memoryStore) GetSiteByKey(_ context.Context, siteKey string) (model.SiteItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.sites[siteKey]
	if !ok {
		return model.SiteItem{}, site.ErrNotFound
	}
	return item, nil
}

func (s *memoryStore) GetClient(_ context.Context, siteKey, visitorID string) (model.ClientItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.clients[model.ClientPK(siteKey, visitorID)]
	if !ok {
		return model.ClientItem{}, session.ErrNotFound
	}
	return item, nil
}

func (s *memoryStore) PutClient(_ context.Context, client model.ClientItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[client.PK] = client
	return nil
}

func (s *memoryStore) GetThread(_ context.Context, siteKey, threadID string) (model.ThreadItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.threads[model.ThreadPK(siteKey, threadID)]
	if !ok {
		return model.ThreadItem{}, ErrNotFound
	}
	return item, nil
}

func (s *memoryStore) GetOpenThread(_ context.Context, siteKey, visitorID string) (model.ThreadItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, item := range s.threads {
		if item.SiteKey == siteKey && item.VisitorID == visitorID && item.Open {
			return item, nil
		}
	}
	return model.ThreadItem{}, thread.ErrNotFound
}

func (s *memoryStore) GetLatestThread(_ context.Context, siteKey, visitorID string) (model.ThreadItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest model.ThreadItem
	found := false
	for _, item := range s.threads {
		if item.SiteKey != siteKey || item.VisitorID != visitorID {
			continue
		}
		if !found || item.UpdatedAt > latest.UpdatedAt {
			latest = item
			found = true
		}
	}
	if !found {
		return model.ThreadItem{}, thread.ErrNotFound
	}
	return latest, nil
}

func (s *memoryStore) CreateThread(_ context.Context, item model.ThreadItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[item.PK] = item
	return nil
}

func (s *memoryStore) ReopenThread(_ context.Context, siteKey, threadID, nowStr string) (model.ThreadItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.threads[model.ThreadPK(siteKey, threadID)]
	if !ok {
		return model.ThreadItem{}, thread.ErrNotFound
	}
	item.Open = true
	item.ClosedAt = ""
	item.ReopenedCount++
	item.UpdatedAt = nowStr
	s.threads[item.PK] = item
	return item, nil
}

func (s *memoryStore) CloseThread(_ context.Context, siteKey, threadID, nowStr string) (model.ThreadItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.threads[model.ThreadPK(siteKey, threadID)]
	if !ok {
		return model.ThreadItem{}, thread.ErrNotFound
	}
	item.Open = false
	item.ClosedAt = nowStr
	item.UpdatedAt = nowStr
	s.threads[item.PK] = item
	return item, nil
}

func (s *memoryStore) TouchThread(_ context.Context, siteKey, threadID, nowStr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.threads[model.ThreadPK(siteKey, threadID)]
	if !ok {
		return thread.ErrNotFound
	}
	item.LastMessageAt = nowStr
	item.UpdatedAt = nowStr
	s.threads[item.PK] = item
	return nil
}

func (s *memoryStore) ListThreads(_ context.Context, siteKey string, limit int) ([]model.ThreadItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.ThreadItem
	for _, item := range s.threads {
		if item.SiteKey == siteKey {
			out = append(out, item)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memoryStore) CreateMessage(_ context.Context, item model.MessageItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[item.PK] = item
	return nil
}

func (s *memoryStore) GetMessage(_ context.Context, threadID, messageID string) (model.MessageItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.messages[model.MessagePK(threadID, messageID)]
	if !ok {
		return model.MessageItem{}, ErrNotFound
	}
	return item, nil
}

func (s *memoryStore) GetMessageByDedupeKey(_ context.Context, threadID, dedupeKey string) (model.MessageItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claim, ok := s.claims[model.DedupePK(threadID, dedupeKey)]
	if !ok {
		return model.MessageItem{}, ErrNotFound
	}
	item, ok := s.messages[model.MessagePK(threadID, claim.MessageID)]
	if !ok {
		return model.MessageItem{}, ErrNotFound
	}
	return item, nil
}

func (s *memoryStore) ClaimDedupeKey(_ context.Context, claim model.DedupeItem) error {
	if s.beforeClaim != nil {
		hook := s.beforeClaim
		s.beforeClaim = nil
		hook()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.claims[claim.PK]; ok {
		return ErrDuplicateKey
	}
	s.claims[claim.PK] = claim
	return nil
}

func (s *memoryStore) ListThreadMessages(_ context.Context, threadID string) ([]model.MessageItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.MessageItem
	for _, item := range s.messages {
		if item.ThreadID == threadID {
			out = append(out, item)
		}
	}
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].CreatedAt < out[i].CreatedAt ||
				(out[j].CreatedAt == out[i].CreatedAt && out[j].MessageID < out[i].MessageID) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	return out, nil
}

func (s *memoryStore) StampMessage(_ context.Context, threadID, messageID, status, stamp string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.messages[model.MessagePK(threadID, messageID)]
	if !ok {
		return ErrNotFound
	}
	if status == StatusRead {
		item.ReadAt = stamp
	} else {
		item.DeliveredAt = stamp
	}
	s.messages[item.PK] = item
	return nil
}

type publishedStatus struct {
	ids    []string
	status string
}

type recordingPublisher struct {
	mu       sync.Mutex
	messages []model.MessageItem
	statuses []publishedStatus
}

func (p *recordingPublisher) PublishMessage(_ model.ThreadItem, message model.MessageItem) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
}

func (p *recordingPublisher) PublishStatus(_ model.ThreadItem, messageIDs []string, status string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.statuses = append(p.statuses, publishedStatus{ids: messageIDs, status: status})
}

func newTestService(t *testing.T, store *memoryStore) (*Service, *recordingPublisher) {
	t.Helper()
	now := func() time.Time {
		return time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	}
	tokens := token.NewWithClock([]byte("test-secret"), time.Hour, now)
	sites := site.New(store)
	threads := thread.NewManager(store, 0, now)
	sessions := session.New(store, sites, threads, tokens, now)
	pub := &recordingPublisher{}
	svc := New(store, sites, sessions, threads, tokens, pub, now)
	return svc, pub
}

func seedThread(store *memoryStore, siteKey, visitorID, threadID string) model.ThreadItem {
	item := model.ThreadItem{
		PK:        model.ThreadPK(siteKey, threadID),
		VisitorPK: model.ClientPK(siteKey, visitorID),
		ThreadID:  threadID,
		SiteKey:   siteKey,
		VisitorID: visitorID,
		Open:      true,
		CreatedAt: "2024-05-01T11:00:00Z",
		UpdatedAt: "2024-05-01T11:00:00Z",
	}
	store.threads[item.PK] = item
	return item
}

func TestCreateInboundValidation(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	svc, _ := newTestService(t, store)

	cases := []struct {
		name string
		text string
	}{
		{"empty", ""},
		{"whitespace only", "   \n\t "},
		{"too long", strings.Repeat("a", MaxTextLength+1)},
		{"too long multibyte", strings.Repeat("ő", MaxTextLength+1)},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.CreateInbound(context.Background(), CreateInboundParams{
				SiteKey:  "wc_site",
				ThreadID: "thread-1",
				Text:     tc.text,
			})
			var msgErr *Error
			if !errors.As(err, &msgErr) || msgErr.Code != ErrorCodeValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

// The text bound counts characters, so multibyte text at the limit is
// accepted even though it spans more bytes.
func TestTextLengthCountsRunes(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	svc, _ := newTestService(t, store)

	text := strings.Repeat("ő", MaxTextLength)
	if len(text) <= MaxTextLength {
		t.Fatal("fixture must exceed the limit in bytes")
	}

	result, err := svc.CreateInbound(context.Background(), CreateInboundParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
		Text:     text,
	})
	if err != nil {
		t.Fatalf("inbound at the character limit: %v", err)
	}
	if result.Message.Text != text {
		t.Fatal("text mangled on store")
	}

	if _, _, err := svc.CreateOutbound(context.Background(), "wc_site", "thread-1", text); err != nil {
		t.Fatalf("outbound at the character limit: %v", err)
	}
	if _, _, err := svc.CreateOutbound(context.Background(), "wc_site", "thread-1", text+"x"); err == nil {
		t.Fatal("outbound above the character limit must be rejected")
	}
}

func TestCreateInboundDedupeReturnsFirstMessage(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	svc, pub := newTestService(t, store)

	params := CreateInboundParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
		Text:     "hello there",
		TmpID:    "tmp-1",
	}

	first, err := svc.CreateInbound(context.Background(), params)
	if err != nil {
		t.Fatalf("first create: %v", err)
	}
	if first.Duplicate {
		t.Fatal("first create reported as duplicate")
	}

	second, err := svc.CreateInbound(context.Background(), params)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if !second.Duplicate {
		t.Fatal("second create not reported as duplicate")
	}
	if second.Message.MessageID != first.Message.MessageID {
		t.Fatalf("duplicate returned a different message: %s vs %s", second.Message.MessageID, first.Message.MessageID)
	}
	if len(store.messages) != 1 {
		t.Fatalf("expected exactly one stored message, got %d", len(store.messages))
	}
	if len(pub.messages) != 1 {
		t.Fatalf("duplicate must not re-publish, got %d publishes", len(pub.messages))
	}
}

func TestCreateInboundDedupeRaceReturnsFirstCommitted(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	svc, pub := newTestService(t, store)

	key := DeriveDedupeKey("thread-1", "tmp-1", "racer")

	// A competing writer lands between our dedupe lookup and our claim.
	store.beforeClaim = func() {
		winner := model.MessageItem{
			PK:        model.MessagePK("thread-1", "winner"),
			MessageID: "winner",
			ThreadID:  "thread-1",
			SiteKey:   "wc_site",
			Direction: model.DirectionInbound,
			Text:      "racer",
			DedupeKey: key,
			CreatedAt: "2024-05-01T11:59:59Z",
		}
		store.mu.Lock()
		store.messages[winner.PK] = winner
		store.claims[model.DedupePK("thread-1", key)] = model.DedupeItem{
			PK:        model.DedupePK("thread-1", key),
			ThreadID:  "thread-1",
			DedupeKey: key,
			MessageID: "winner",
			CreatedAt: winner.CreatedAt,
		}
		store.mu.Unlock()
	}

	result, err := svc.CreateInbound(context.Background(), CreateInboundParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
		Text:     "racer",
		TmpID:    "tmp-1",
	})
	if err != nil {
		t.Fatalf("create after lost race: %v", err)
	}
	if !result.Duplicate {
		t.Fatal("lost race not reported as duplicate")
	}
	if result.Message.MessageID != "winner" {
		t.Fatalf("expected first-committed message, got %s", result.Message.MessageID)
	}
	if len(store.messages) != 1 {
		t.Fatalf("lost race produced a second row, %d messages stored", len(store.messages))
	}
	if len(pub.messages) != 0 {
		t.Fatal("lost race must not publish")
	}
}

func TestCreateInboundBootstrapsThreadAndToken(t *testing.T) {
	store := newMemoryStore()
	store.sites["wc_site"] = model.SiteItem{
		SiteKey:        "wc_site",
		Name:           "Example",
		AllowedOrigins: []string{"example.com"},
		Active:         true,
	}
	svc, pub := newTestService(t, store)

	result, err := svc.CreateInbound(context.Background(), CreateInboundParams{
		SiteKey:      "wc_site",
		Text:         "hi",
		TmpID:        "t1",
		OriginHeader: "https://example.com",
	})
	if err != nil {
		t.Fatalf("bootstrap create: %v", err)
	}

	if result.Thread.ThreadID == "" {
		t.Fatal("bootstrap did not create a thread")
	}
	if result.Token == "" {
		t.Fatal("bootstrap did not issue a token")
	}
	if result.ClientID == "" {
		t.Fatal("bootstrap did not return a client id")
	}
	if result.TTLSeconds != 3600 {
		t.Fatalf("expected 3600s token ttl, got %d", result.TTLSeconds)
	}

	access, err := svc.VerifyAccess(result.Token, "wc_site", result.Thread.ThreadID)
	if err != nil {
		t.Fatalf("issued token does not verify: %v", err)
	}
	if access.ThreadID != result.Thread.ThreadID {
		t.Fatalf("token bound to wrong thread: %s", access.ThreadID)
	}

	if len(store.messages) != 1 {
		t.Fatalf("expected one stored message, got %d", len(store.messages))
	}
	stored := store.threads[result.Thread.PK]
	if stored.LastMessageAt == "" {
		t.Fatal("thread activity not touched")
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.messages))
	}
}

func TestCreateInboundBootstrapRejectsDisallowedOrigin(t *testing.T) {
	store := newMemoryStore()
	store.sites["wc_site"] = model.SiteItem{
		SiteKey:        "wc_site",
		AllowedOrigins: []string{"example.com"},
		Active:         true,
	}
	svc, _ := newTestService(t, store)

	_, err := svc.CreateInbound(context.Background(), CreateInboundParams{
		SiteKey:      "wc_site",
		Text:         "hi",
		OriginHeader: "https://evil.test",
	})
	var msgErr *Error
	if !errors.As(err, &msgErr) || msgErr.Code != ErrorCodeAuth {
		t.Fatalf("expected auth error, got %v", err)
	}
}

func TestCreateOutboundMarksDelivered(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	svc, pub := newTestService(t, store)

	msg, _, err := svc.CreateOutbound(context.Background(), "wc_site", "thread-1", "how can I help?")
	if err != nil {
		t.Fatalf("create outbound: %v", err)
	}
	if msg.Direction != model.DirectionOutbound {
		t.Fatalf("wrong direction %s", msg.Direction)
	}
	if msg.DeliveredAt == "" {
		t.Fatal("outbound message missing deliveredAt")
	}
	if msg.ReadAt != "" {
		t.Fatal("outbound message must not start read")
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.messages))
	}
}

func TestCreateOutboundUnknownThread(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(t, store)

	_, _, err := svc.CreateOutbound(context.Background(), "wc_site", "missing", "hello")
	var msgErr *Error
	if !errors.As(err, &msgErr) || msgErr.Code != ErrorCodeNotFound {
		t.Fatalf("expected not_found error, got %v", err)
	}
}

func seedOutbound(store *memoryStore, threadID, messageID string) {
	item := model.MessageItem{
		PK:        model.MessagePK(threadID, messageID),
		MessageID: messageID,
		ThreadID:  threadID,
		SiteKey:   "wc_site",
		Direction: model.DirectionOutbound,
		Text:      "op says hi",
		CreatedAt: "2024-05-01T11:30:00Z",
	}
	store.messages[item.PK] = item
}

func TestAckStampsOutboundOnce(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	seedOutbound(store, "thread-1", "m1")
	svc, pub := newTestService(t, store)

	first, err := svc.Ack(context.Background(), AckParams{
		SiteKey:      "wc_site",
		ThreadID:     "thread-1",
		DeliveredIDs: []string{"m1"},
		ReadIDs:      []string{"m1"},
	})
	if err != nil {
		t.Fatalf("first ack: %v", err)
	}
	if len(first.Delivered) != 1 || first.Delivered[0] != "m1" {
		t.Fatalf("expected delivered [m1], got %v", first.Delivered)
	}
	if len(first.Read) != 1 || first.Read[0] != "m1" {
		t.Fatalf("expected read [m1], got %v", first.Read)
	}
	if len(pub.statuses) != 2 {
		t.Fatalf("expected one status publish per list, got %d", len(pub.statuses))
	}

	second, err := svc.Ack(context.Background(), AckParams{
		SiteKey:      "wc_site",
		ThreadID:     "thread-1",
		DeliveredIDs: []string{"m1"},
		ReadIDs:      []string{"m1"},
	})
	if err != nil {
		t.Fatalf("second ack: %v", err)
	}
	if len(second.Delivered) != 0 || len(second.Read) != 0 {
		t.Fatalf("replayed ack must return empty lists, got %v / %v", second.Delivered, second.Read)
	}
	if len(pub.statuses) != 2 {
		t.Fatalf("replayed ack must not publish, got %d status events", len(pub.statuses))
	}
}

func TestAckIgnoresInboundMessages(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	inbound := model.MessageItem{
		PK:        model.MessagePK("thread-1", "in1"),
		MessageID: "in1",
		ThreadID:  "thread-1",
		SiteKey:   "wc_site",
		Direction: model.DirectionInbound,
		Text:      "visitor says hi",
		CreatedAt: "2024-05-01T11:30:00Z",
	}
	store.messages[inbound.PK] = inbound
	svc, pub := newTestService(t, store)

	result, err := svc.Ack(context.Background(), AckParams{
		SiteKey:      "wc_site",
		ThreadID:     "thread-1",
		DeliveredIDs: []string{"in1"},
	})
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if len(result.Delivered) != 0 {
		t.Fatalf("inbound message is not ack-eligible, got %v", result.Delivered)
	}
	if store.messages[inbound.PK].DeliveredAt != "" {
		t.Fatal("inbound deliveredAt must stay unset")
	}
	if len(pub.statuses) != 0 {
		t.Fatal("empty result must not publish")
	}
}

func TestAckSkipsUnknownIDs(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	svc, _ := newTestService(t, store)

	result, err := svc.Ack(context.Background(), AckParams{
		SiteKey:      "wc_site",
		ThreadID:     "thread-1",
		DeliveredIDs: []string{"nope"},
	})
	if err != nil {
		t.Fatalf("ack: %v", err)
	}
	if len(result.Delivered) != 0 {
		t.Fatalf("unknown ids must be skipped, got %v", result.Delivered)
	}
}

func seedHistory(store *memoryStore, threadID string, count int) []string {
	ids := make([]string, 0, count)
	base := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < count; i++ {
		id := fmt.Sprintf("m%03d", i)
		item := model.MessageItem{
			PK:        model.MessagePK(threadID, id),
			MessageID: id,
			ThreadID:  threadID,
			SiteKey:   "wc_site",
			Direction: model.DirectionInbound,
			Text:      fmt.Sprintf("message %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute).Format(time.RFC3339),
		}
		store.messages[item.PK] = item
		ids = append(ids, id)
	}
	return ids
}

func messageIDs(messages []model.MessageItem) []string {
	out := make([]string, 0, len(messages))
	for _, msg := range messages {
		out = append(out, msg.MessageID)
	}
	return out
}

func TestListMessagesDefaultsToNewestPage(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	ids := seedHistory(store, "thread-1", 60)
	svc, _ := newTestService(t, store)

	page, err := svc.ListMessages(context.Background(), ListParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 50 {
		t.Fatalf("expected default limit of 50, got %d", len(page))
	}
	if page[0].MessageID != ids[10] || page[len(page)-1].MessageID != ids[59] {
		t.Fatalf("expected newest 50 messages, got %s..%s", page[0].MessageID, page[len(page)-1].MessageID)
	}
}

func TestListMessagesBeforeCursor(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	ids := seedHistory(store, "thread-1", 10)
	svc, _ := newTestService(t, store)

	page, err := svc.ListMessages(context.Background(), ListParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
		BeforeID: ids[5],
		Limit:    3,
	})
	if err != nil {
		t.Fatalf("list before: %v", err)
	}
	got := messageIDs(page)
	want := []string{ids[2], ids[3], ids[4]}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestListMessagesSinceCursor(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	ids := seedHistory(store, "thread-1", 10)
	svc, _ := newTestService(t, store)

	page, err := svc.ListMessages(context.Background(), ListParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
		SinceID:  ids[6],
		Limit:    10,
	})
	if err != nil {
		t.Fatalf("list since: %v", err)
	}
	got := messageIDs(page)
	want := []string{ids[7], ids[8], ids[9]}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestListMessagesUnknownCursorReturnsEmpty(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	seedHistory(store, "thread-1", 5)
	svc, _ := newTestService(t, store)

	page, err := svc.ListMessages(context.Background(), ListParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
		BeforeID: "does-not-exist",
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 0 {
		t.Fatalf("unknown cursor should yield empty page, got %d", len(page))
	}
}

func TestListMessagesCapsLimit(t *testing.T) {
	store := newMemoryStore()
	seedThread(store, "wc_site", "visitor", "thread-1")
	seedHistory(store, "thread-1", 250)
	svc, _ := newTestService(t, store)

	page, err := svc.ListMessages(context.Background(), ListParams{
		SiteKey:  "wc_site",
		ThreadID: "thread-1",
		Limit:    1000,
	})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page) != 200 {
		t.Fatalf("expected hard cap of 200, got %d", len(page))
	}
}

func TestVerifyAccessChecksBinding(t *testing.T) {
	store := newMemoryStore()
	svc, _ := newTestService(t, store)

	raw, _, err := svc.tokens.Issue("wc_site", "visitor", "thread-1", 0)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	if _, err := svc.VerifyAccess(raw, "wc_site", "thread-1"); err != nil {
		t.Fatalf("matching binding rejected: %v", err)
	}

	var msgErr *Error
	_, err = svc.VerifyAccess(raw, "wc_other", "thread-1")
	if !errors.As(err, &msgErr) || msgErr.Code != ErrorCodeAuth {
		t.Fatalf("expected auth error for wrong audience, got %v", err)
	}
	_, err = svc.VerifyAccess(raw, "wc_site", "thread-2")
	if !errors.As(err, &msgErr) || msgErr.Code != ErrorCodeAuth {
		t.Fatalf("expected auth error for wrong thread, got %v", err)
	}
	_, err = svc.VerifyAccess("not.a.token", "wc_site", "thread-1")
	if !errors.As(err, &msgErr) || msgErr.Code != ErrorCodeAuth {
		t.Fatalf("expected auth error for malformed token, got %v", err)
	}
}
