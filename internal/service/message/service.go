// Package message creates, lists and acknowledges chat messages. Inbound
// creation is idempotent per (thread, dedupe key); publish failures never
// fail the originating request.
package message

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"widget-chat-backend/internal/model"
	"widget-chat-backend/internal/service/session"
	"widget-chat-backend/internal/service/site"
	"widget-chat-backend/internal/service/thread"
	"widget-chat-backend/internal/token"

	"github.com/google/uuid"
)

// MaxTextLength bounds message text in characters, not bytes.
const MaxTextLength = 2000

type ErrorCode string

const (
	ErrorCodeValidation  ErrorCode = "validation_error"
	ErrorCodeAuth        ErrorCode = "auth_error"
	ErrorCodeNotFound    ErrorCode = "not_found"
	ErrorCodeUnavailable ErrorCode = "unavailable"
	ErrorCodeInternal    ErrorCode = "internal_error"
)

type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(code ErrorCode, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Publisher fans out message and status events. Implementations are
// best-effort: they log failures instead of returning them.
type Publisher interface {
	PublishMessage(thread model.ThreadItem, message model.MessageItem)
	PublishStatus(thread model.ThreadItem, messageIDs []string, status string)
}

// Access is the verified capability of a widget request: the token's
// audience, subject and thread binding after signature checks.
type Access struct {
	SiteKey   string
	VisitorID string
	ThreadID  string
}

type CreateInboundParams struct {
	SiteKey      string
	ThreadID     string
	VisitorID    string
	Text         string
	DedupeKey    string
	TmpID        string
	OriginHeader string
	Meta         session.Meta
}

// InboundResult carries the bootstrap fields (thread, token, client) filled
// on the unauthenticated first-message variant.
type InboundResult struct {
	Message    model.MessageItem
	Thread     model.ThreadItem
	Duplicate  bool
	Token      string
	TTLSeconds int64
	ClientID   string
}

type Service struct {
	repo     Repository
	sites    *site.Service
	sessions *session.Service
	threads  *thread.Manager
	tokens   *token.Service
	pub      Publisher
	now      func() time.Time
}

func New(repo Repository, sites *site.Service, sessions *session.Service, threads *thread.Manager, tokens *token.Service, pub Publisher, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:     repo,
		sites:    sites,
		sessions: sessions,
		threads:  threads,
		tokens:   tokens,
		pub:      pub,
		now:      now,
	}
}

// VerifyAccess parses a capability token and checks its binding against the
// request's site and thread. The three failure modes stay distinguishable
// in logs without leaking key material to the caller.
func (s *Service) VerifyAccess(raw, siteKey, threadID string) (Access, error) {
	claims, err := s.tokens.Parse(raw)
	if err != nil {
		return Access{}, newError(ErrorCodeAuth, "invalid token", err)
	}
	if err := claims.CheckAudience(siteKey); err != nil {
		return Access{}, newError(ErrorCodeAuth, "invalid audience", err)
	}
	if err := claims.CheckThread(threadID); err != nil {
		return Access{}, newError(ErrorCodeAuth, "thread mismatch", err)
	}
	return Access{
		SiteKey:   claims.Audience,
		VisitorID: claims.Subject,
		ThreadID:  claims.Thread,
	}, nil
}

// CreateInbound persists a visitor message. With a ThreadID the caller has
// already been token-checked; without one this is the first-message
// bootstrap: origin is validated, the client upserted, the thread ensured
// and a fresh capability token returned alongside the message.
func (s *Service) CreateInbound(ctx context.Context, params CreateInboundParams) (InboundResult, error) {
	text := strings.TrimSpace(params.Text)
	if text == "" {
		return InboundResult{}, newError(ErrorCodeValidation, "message text is required", nil)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return InboundResult{}, newError(ErrorCodeValidation, "message text too long", nil)
	}

	var result InboundResult

	if params.ThreadID == "" {
		bootstrapped, err := s.bootstrapThread(ctx, &params)
		if err != nil {
			return InboundResult{}, err
		}
		result = bootstrapped
	} else {
		threadItem, err := s.loadThread(ctx, params.SiteKey, params.ThreadID)
		if err != nil {
			return InboundResult{}, err
		}
		result.Thread = threadItem
	}

	dedupeKey := strings.TrimSpace(params.DedupeKey)
	if dedupeKey == "" && strings.TrimSpace(params.TmpID) != "" {
		dedupeKey = DeriveDedupeKey(result.Thread.ThreadID, params.TmpID, text)
	}

	msg, duplicate, err := s.createDeduped(ctx, result.Thread, text, dedupeKey, params.TmpID)
	if err != nil {
		return InboundResult{}, err
	}
	result.Message = msg
	result.Duplicate = duplicate

	if !duplicate {
		if err := s.threads.TouchActivity(ctx, result.Thread.SiteKey, result.Thread.ThreadID); err != nil {
			return InboundResult{}, newError(ErrorCodeInternal, "failed to update thread", err)
		}
		if s.pub != nil {
			s.pub.PublishMessage(result.Thread, msg)
		}
	}

	return result, nil
}

// bootstrapThread handles the unauthenticated first-message variant.
func (s *Service) bootstrapThread(ctx context.Context, params *CreateInboundParams) (InboundResult, error) {
	siteItem, err := s.sites.Gate(ctx, params.SiteKey, params.OriginHeader, params.Meta.PageURL)
	if err != nil {
		return InboundResult{}, mapSiteError(err)
	}

	visitorID := strings.TrimSpace(params.VisitorID)
	if _, parseErr := uuid.Parse(visitorID); parseErr != nil {
		visitorID = uuid.NewString()
	}

	if err := s.sessions.UpsertClient(ctx, siteItem.SiteKey, visitorID, params.Meta); err != nil {
		return InboundResult{}, newError(ErrorCodeInternal, "failed to persist visitor", err)
	}

	threadItem, err := s.threads.EnsureActiveThread(ctx, siteItem.SiteKey, visitorID)
	if err != nil {
		return InboundResult{}, newError(ErrorCodeInternal, "failed to ensure thread", err)
	}

	raw, claims, err := s.tokens.Issue(siteItem.SiteKey, visitorID, threadItem.ThreadID, 0)
	if err != nil {
		return InboundResult{}, newError(ErrorCodeInternal, "failed to issue token", err)
	}

	return InboundResult{
		Thread:     threadItem,
		Token:      raw,
		TTLSeconds: claims.ExpiresAt - claims.IssuedAt,
		ClientID:   model.ClientPK(siteItem.SiteKey, visitorID),
	}, nil
}

// createDeduped is the one correctness-critical sequence: the lookup must
// happen before the insert, and a conditional put on the dedupe table
// backstops the race so a lost write returns the first-committed message
// instead of producing a second row.
func (s *Service) createDeduped(ctx context.Context, threadItem model.ThreadItem, text, dedupeKey, sourceID string) (model.MessageItem, bool, error) {
	if dedupeKey != "" {
		existing, err := s.repo.GetMessageByDedupeKey(ctx, threadItem.ThreadID, dedupeKey)
		if err == nil {
			return existing, true, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return model.MessageItem{}, false, newError(ErrorCodeInternal, "failed to check dedupe key", err)
		}
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	messageID := uuid.NewString()
	msg := model.MessageItem{
		PK:        model.MessagePK(threadItem.ThreadID, messageID),
		MessageID: messageID,
		ThreadID:  threadItem.ThreadID,
		SiteKey:   threadItem.SiteKey,
		Direction: model.DirectionInbound,
		Text:      text,
		DedupeKey: dedupeKey,
		SourceID:  strings.TrimSpace(sourceID),
		CreatedAt: nowStr,
	}

	if dedupeKey != "" {
		err := s.repo.ClaimDedupeKey(ctx, model.DedupeItem{
			PK:        model.DedupePK(threadItem.ThreadID, dedupeKey),
			ThreadID:  threadItem.ThreadID,
			DedupeKey: dedupeKey,
			MessageID: msg.MessageID,
			CreatedAt: nowStr,
		})
		if err != nil {
			if errors.Is(err, ErrDuplicateKey) {
				existing, lookupErr := s.repo.GetMessageByDedupeKey(ctx, threadItem.ThreadID, dedupeKey)
				if lookupErr != nil {
					return model.MessageItem{}, false, newError(ErrorCodeInternal, "failed to resolve dedupe race", lookupErr)
				}
				return existing, true, nil
			}
			return model.MessageItem{}, false, newError(ErrorCodeInternal, "failed to claim dedupe key", err)
		}
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return model.MessageItem{}, false, newError(ErrorCodeInternal, "failed to store message", err)
	}

	return msg, false, nil
}

// CreateOutbound persists an operator-authored message. Delivery to the
// record is instantaneous for outbound; client-side delivery and read are
// tracked separately through Ack.
func (s *Service) CreateOutbound(ctx context.Context, siteKey, threadID, text string) (model.MessageItem, model.ThreadItem, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.MessageItem{}, model.ThreadItem{}, newError(ErrorCodeValidation, "message text is required", nil)
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return model.MessageItem{}, model.ThreadItem{}, newError(ErrorCodeValidation, "message text too long", nil)
	}

	threadItem, err := s.loadThread(ctx, siteKey, threadID)
	if err != nil {
		return model.MessageItem{}, model.ThreadItem{}, err
	}

	nowStr := s.now().UTC().Format(time.RFC3339)
	messageID := uuid.NewString()
	msg := model.MessageItem{
		PK:          model.MessagePK(threadItem.ThreadID, messageID),
		MessageID:   messageID,
		ThreadID:    threadItem.ThreadID,
		SiteKey:     threadItem.SiteKey,
		Direction:   model.DirectionOutbound,
		Text:        text,
		DeliveredAt: nowStr,
		CreatedAt:   nowStr,
	}

	if err := s.repo.CreateMessage(ctx, msg); err != nil {
		return model.MessageItem{}, model.ThreadItem{}, newError(ErrorCodeInternal, "failed to store message", err)
	}
	if err := s.threads.TouchActivity(ctx, threadItem.SiteKey, threadItem.ThreadID); err != nil {
		return model.MessageItem{}, model.ThreadItem{}, newError(ErrorCodeInternal, "failed to update thread", err)
	}

	if s.pub != nil {
		s.pub.PublishMessage(threadItem, msg)
	}

	return msg, threadItem, nil
}

type ListParams struct {
	SiteKey  string
	ThreadID string
	BeforeID string
	SinceID  string
	Limit    int
}

// ListMessages returns a page of the thread's messages ordered by creation
// time. BeforeID pages backwards (older), SinceID forwards (newer); both
// cursors are exclusive.
func (s *Service) ListMessages(ctx context.Context, params ListParams) ([]model.MessageItem, error) {
	if params.Limit <= 0 {
		params.Limit = 50
	} else if params.Limit > 200 {
		params.Limit = 200
	}

	if _, err := s.loadThread(ctx, params.SiteKey, params.ThreadID); err != nil {
		return nil, err
	}

	all, err := s.repo.ListThreadMessages(ctx, params.ThreadID)
	if err != nil {
		return nil, newError(ErrorCodeInternal, "failed to list messages", err)
	}

	return pageMessages(all, params.BeforeID, params.SinceID, params.Limit), nil
}

// pageMessages cuts the ascending-ordered history at the requested cursor.
func pageMessages(all []model.MessageItem, beforeID, sinceID string, limit int) []model.MessageItem {
	if beforeID != "" {
		idx := indexOfMessage(all, beforeID)
		if idx < 0 {
			return []model.MessageItem{}
		}
		older := all[:idx]
		if len(older) > limit {
			older = older[len(older)-limit:]
		}
		return append([]model.MessageItem(nil), older...)
	}

	if sinceID != "" {
		idx := indexOfMessage(all, sinceID)
		if idx < 0 {
			return []model.MessageItem{}
		}
		newer := all[idx+1:]
		if len(newer) > limit {
			newer = newer[:limit]
		}
		return append([]model.MessageItem(nil), newer...)
	}

	if len(all) > limit {
		all = all[len(all)-limit:]
	}
	return append([]model.MessageItem(nil), all...)
}

func indexOfMessage(all []model.MessageItem, messageID string) int {
	for i, msg := range all {
		if msg.MessageID == messageID {
			return i
		}
	}
	return -1
}

// GetThread fetches a thread scoped to a site. Threads owned by another
// site surface as not found.
func (s *Service) GetThread(ctx context.Context, siteKey, threadID string) (model.ThreadItem, error) {
	return s.loadThread(ctx, siteKey, threadID)
}

func (s *Service) loadThread(ctx context.Context, siteKey, threadID string) (model.ThreadItem, error) {
	threadID = strings.TrimSpace(threadID)
	if threadID == "" {
		return model.ThreadItem{}, newError(ErrorCodeValidation, "threadId is required", nil)
	}

	threadItem, err := s.repo.GetThread(ctx, siteKey, threadID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ThreadItem{}, newError(ErrorCodeNotFound, "thread not found", err)
		}
		return model.ThreadItem{}, newError(ErrorCodeInternal, "failed to fetch thread", err)
	}
	if threadItem.SiteKey != siteKey {
		return model.ThreadItem{}, newError(ErrorCodeNotFound, "thread not found", nil)
	}
	return threadItem, nil
}

// DeriveDedupeKey gives resubmitted first-attempt messages a stable key so
// retry-on-timeout from flaky client networks cannot duplicate rows.
func DeriveDedupeKey(threadID, tmpID, text string) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s", threadID, tmpID, text)))
	return hex.EncodeToString(sum[:])
}

func mapSiteError(err error) error {
	var siteErr *site.Error
	if !errors.As(err, &siteErr) {
		return newError(ErrorCodeInternal, "site lookup failed", err)
	}
	switch siteErr.Code {
	case site.ErrorCodeValidation:
		return newError(ErrorCodeValidation, siteErr.Message, siteErr.Err)
	case site.ErrorCodeAuth:
		return newError(ErrorCodeAuth, siteErr.Message, siteErr.Err)
	case site.ErrorCodeNotFound:
		return newError(ErrorCodeNotFound, siteErr.Message, siteErr.Err)
	case site.ErrorCodeUnavailable:
		return newError(ErrorCodeUnavailable, siteErr.Message, siteErr.Err)
	default:
		return newError(ErrorCodeInternal, siteErr.Message, siteErr.Err)
	}
}
