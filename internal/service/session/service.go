// Package session drives the widget handshake: it upserts the visitor
// identity, finds the active thread and issues a capability token.
package session

import (
	"context"
	"errors"
	"strings"
	"time"

	"widget-chat-backend/internal/model"
	"widget-chat-backend/internal/service/site"
	"widget-chat-backend/internal/service/thread"
	"widget-chat-backend/internal/token"

	"github.com/google/uuid"
)

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

type Meta struct {
	IP        string
	UserAgent string
	PageURL   string
}

type HandshakeParams struct {
	SiteKey      string
	VisitorID    string
	SessionID    string
	OriginHeader string
	Meta         Meta
}

// SessionDescriptor is the handshake result. ThreadID and Token stay empty
// until the visitor's first message creates the thread; a returning visitor
// with an active thread gets both immediately.
type SessionDescriptor struct {
	VisitorID  string
	SessionID  string
	ThreadID   string
	Token      string
	TTLSeconds int64
}

type Service struct {
	repo    Repository
	sites   *site.Service
	threads *thread.Manager
	tokens  *token.Service
	now     func() time.Time
}

func New(repo Repository, sites *site.Service, threads *thread.Manager, tokens *token.Service, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		repo:    repo,
		sites:   sites,
		threads: threads,
		tokens:  tokens,
		now:     now,
	}
}

func (s *Service) Handshake(ctx context.Context, params HandshakeParams) (SessionDescriptor, error) {
	siteItem, err := s.sites.Gate(ctx, params.SiteKey, params.OriginHeader, params.Meta.PageURL)
	if err != nil {
		return SessionDescriptor{}, mapSiteError(err)
	}

	visitorID := normalizeVisitorID(params.VisitorID)
	if visitorID == "" {
		visitorID = uuid.NewString()
	}

	sessionID := strings.TrimSpace(params.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if err := s.UpsertClient(ctx, siteItem.SiteKey, visitorID, params.Meta); err != nil {
		return SessionDescriptor{}, newError(ErrorCodeInternal, "failed to persist visitor", err)
	}

	descriptor := SessionDescriptor{
		VisitorID:  visitorID,
		SessionID:  sessionID,
		TTLSeconds: int64(s.tokens.TTL() / time.Second),
	}

	// Thread creation is deferred to the first message; a pure handshake
	// only resumes an existing active thread.
	active, ok, err := s.threads.FindActive(ctx, siteItem.SiteKey, visitorID)
	if err != nil {
		return SessionDescriptor{}, newError(ErrorCodeInternal, "failed to look up thread", err)
	}
	if ok {
		raw, claims, err := s.tokens.Issue(siteItem.SiteKey, visitorID, active.ThreadID, 0)
		if err != nil {
			return SessionDescriptor{}, newError(ErrorCodeInternal, "failed to issue token", err)
		}
		descriptor.ThreadID = active.ThreadID
		descriptor.Token = raw
		descriptor.TTLSeconds = claims.ExpiresAt - claims.IssuedAt
	}

	return descriptor, nil
}

// UpsertClient finds or creates the client for (site, visitor), merges the
// request metadata and bumps lastSeenAt.
func (s *Service) UpsertClient(ctx context.Context, siteKey, visitorID string, meta Meta) error {
	nowStr := s.now().UTC().Format(time.RFC3339)

	client, err := s.repo.GetClient(ctx, siteKey, visitorID)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			return err
		}
		client = model.ClientItem{
			PK:        model.ClientPK(siteKey, visitorID),
			SiteKey:   siteKey,
			VisitorID: visitorID,
			CreatedAt: nowStr,
		}
	}

	if client.Metadata == nil {
		client.Metadata = make(map[string]string)
	}
	if meta.IP != "" {
		client.Metadata["ip"] = meta.IP
	}
	if meta.UserAgent != "" {
		client.Metadata["user_agent"] = meta.UserAgent
	}
	if meta.PageURL != "" {
		client.Metadata["page_url"] = meta.PageURL
	}
	client.LastSeenAt = nowStr

	return s.repo.PutClient(ctx, client)
}

// normalizeVisitorID keeps only well-formed UUIDs so a corrupted cookie or
// forged parameter cannot pick an arbitrary identity namespace.
func normalizeVisitorID(visitorID string) string {
	visitorID = strings.TrimSpace(visitorID)
	if visitorID == "" {
		return ""
	}
	parsed, err := uuid.Parse(visitorID)
	if err != nil {
		return ""
	}
	return parsed.String()
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
