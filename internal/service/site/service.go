// Package site resolves the tenant-scoped chat surface behind a public
// site key and gates requests on the per-site origin allow-list.
package site

import (
	"context"
	"errors"
	"strings"

	"widget-chat-backend/internal/model"
	"widget-chat-backend/internal/origin"
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

type Service struct {
	repo Repository
}

func New(repo Repository) *Service {
	return &Service{repo: repo}
}

// Resolve loads the site behind siteKey and rejects disabled sites.
func (s *Service) Resolve(ctx context.Context, siteKey string) (model.SiteItem, error) {
	siteKey = strings.TrimSpace(siteKey)
	if siteKey == "" {
		return model.SiteItem{}, newError(ErrorCodeAuth, "site key is required", nil)
	}

	site, err := s.repo.GetSiteByKey(ctx, siteKey)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.SiteItem{}, newError(ErrorCodeAuth, "unknown site key", err)
		}
		return model.SiteItem{}, newError(ErrorCodeUnavailable, "site registry unavailable", err)
	}

	if !site.Active {
		return model.SiteItem{}, newError(ErrorCodeAuth, "site is disabled", nil)
	}

	return site, nil
}

// Gate resolves the site and validates the request origin against its
// allow-list. The host comes from the Origin header or, failing that, the
// page_url parameter.
func (s *Service) Gate(ctx context.Context, siteKey, originHeader, pageURL string) (model.SiteItem, error) {
	site, err := s.Resolve(ctx, siteKey)
	if err != nil {
		return model.SiteItem{}, err
	}

	host := origin.HostFromRequest(originHeader, pageURL)
	if !origin.HostAllowed(host, site.AllowedOrigins) {
		return model.SiteItem{}, newError(ErrorCodeAuth, "origin not allowed", nil)
	}

	return site, nil
}

// AllowOrigin resolves the concrete Access-Control-Allow-Origin value for
// a request or preflight against the site's allow-list.
func (s *Service) AllowOrigin(ctx context.Context, siteKey, originHeader string) (string, bool) {
	site, err := s.Resolve(ctx, siteKey)
	if err != nil {
		return "", false
	}
	return origin.AllowOrigin(originHeader, site.AllowedOrigins)
}
