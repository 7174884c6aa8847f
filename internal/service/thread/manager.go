// Package thread owns the conversation lifeline between one visitor and
// one site. At most one open, non-stale thread exists per (site, visitor);
// threads are never deleted, only closed and reopened.
package thread

import (
	"context"
	"errors"
	"time"

	"widget-chat-backend/internal/model"

	"github.com/google/uuid"
)

// DefaultStaleAfter is how long a thread can sit without activity before a
// returning visitor starts a fresh conversation instead of continuing it.
const DefaultStaleAfter = 30 * 24 * time.Hour

type Manager struct {
	repo       Repository
	staleAfter time.Duration
	now        func() time.Time
}

func NewManager(repo Repository, staleAfter time.Duration, now func() time.Time) *Manager {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if now == nil {
		now = time.Now
	}
	return &Manager{
		repo:       repo,
		staleAfter: staleAfter,
		now:        now,
	}
}

// FindActive returns the visitor's open, non-stale thread if one exists.
func (m *Manager) FindActive(ctx context.Context, siteKey, visitorID string) (model.ThreadItem, bool, error) {
	thread, err := m.repo.GetOpenThread(ctx, siteKey, visitorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ThreadItem{}, false, nil
		}
		return model.ThreadItem{}, false, err
	}
	if m.isStale(thread) {
		return model.ThreadItem{}, false, nil
	}
	return thread, true, nil
}

// EnsureActiveThread returns the thread a new message for (site, visitor)
// belongs to: the current open thread when fresh, the most recent thread
// reopened when it went cold but not stale, or a brand-new thread.
//
// Two concurrent callers can both observe "no open thread" and both create
// one; we re-query immediately before creating to shrink the window and
// otherwise accept the harmless duplicate rather than take a distributed
// lock.
func (m *Manager) EnsureActiveThread(ctx context.Context, siteKey, visitorID string) (model.ThreadItem, error) {
	if thread, ok, err := m.findReusable(ctx, siteKey, visitorID); err != nil || ok {
		return thread, err
	}

	// Re-query closes most of the creation race window.
	if thread, ok, err := m.findReusable(ctx, siteKey, visitorID); err != nil || ok {
		return thread, err
	}

	now := m.now().UTC()
	nowStr := now.Format(time.RFC3339)
	threadID := uuid.NewString()

	thread := model.ThreadItem{
		PK:            model.ThreadPK(siteKey, threadID),
		VisitorPK:     model.ClientPK(siteKey, visitorID),
		ThreadID:      threadID,
		SiteKey:       siteKey,
		VisitorID:     visitorID,
		Open:          true,
		ReopenedCount: 0,
		CreatedAt:     nowStr,
		UpdatedAt:     nowStr,
	}
	if err := m.repo.CreateThread(ctx, thread); err != nil {
		return model.ThreadItem{}, err
	}
	return thread, nil
}

func (m *Manager) findReusable(ctx context.Context, siteKey, visitorID string) (model.ThreadItem, bool, error) {
	open, err := m.repo.GetOpenThread(ctx, siteKey, visitorID)
	if err == nil && !m.isStale(open) {
		return open, true, nil
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return model.ThreadItem{}, false, err
	}

	latest, err := m.repo.GetLatestThread(ctx, siteKey, visitorID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return model.ThreadItem{}, false, nil
		}
		return model.ThreadItem{}, false, err
	}
	if m.isStale(latest) {
		return model.ThreadItem{}, false, nil
	}

	if !latest.Open {
		reopened, err := m.reopen(ctx, latest)
		if err != nil {
			return model.ThreadItem{}, false, err
		}
		return reopened, true, nil
	}

	return latest, true, nil
}

// reopen makes a closed thread the active one again. The reopen is counted
// so operators can tell a continued conversation from a new one.
func (m *Manager) reopen(ctx context.Context, thread model.ThreadItem) (model.ThreadItem, error) {
	nowStr := m.now().UTC().Format(time.RFC3339)
	updated, err := m.repo.ReopenThread(ctx, thread.SiteKey, thread.ThreadID, nowStr)
	if err != nil {
		return model.ThreadItem{}, err
	}
	return updated, nil
}

// Close marks a thread closed. Closing is idempotent.
func (m *Manager) Close(ctx context.Context, siteKey, threadID string) (model.ThreadItem, error) {
	nowStr := m.now().UTC().Format(time.RFC3339)
	return m.repo.CloseThread(ctx, siteKey, threadID, nowStr)
}

// List returns a site's threads sorted by most recent activity, for the
// operator console.
func (m *Manager) List(ctx context.Context, siteKey string, limit int) ([]model.ThreadItem, error) {
	return m.repo.ListThreads(ctx, siteKey, limit)
}

// TouchActivity bumps lastMessageAt/updatedAt after a message lands.
func (m *Manager) TouchActivity(ctx context.Context, siteKey, threadID string) error {
	nowStr := m.now().UTC().Format(time.RFC3339)
	return m.repo.TouchThread(ctx, siteKey, threadID, nowStr)
}

func (m *Manager) isStale(thread model.ThreadItem) bool {
	last := parseTime(thread.LastMessageAt)
	if last.IsZero() {
		last = parseTime(thread.UpdatedAt)
	}
	if last.IsZero() {
		last = parseTime(thread.CreatedAt)
	}
	if last.IsZero() {
		return false
	}
	return m.now().UTC().Sub(last) >= m.staleAfter
}

func parseTime(ts string) time.Time {
	if ts == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339, ts)
	if err != nil {
		return time.Time{}
	}
	return t
}
