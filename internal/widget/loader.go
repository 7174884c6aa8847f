package widget

import (
	"context"
	"sync"

	"widget-chat-backend/internal/dto"
)

const DefaultPageSize = 50

// Fetcher pulls message pages from the server. Implementations wrap the
// widget's HTTP client; errors are reported to the caller and never
// retried automatically.
type Fetcher interface {
	FetchLatest(ctx context.Context, limit int) ([]dto.MessageResponse, error)
	FetchBefore(ctx context.Context, beforeID string, limit int) ([]dto.MessageResponse, error)
	FetchAfter(ctx context.Context, sinceID string, limit int) ([]dto.MessageResponse, error)
}

// ScrollAction tells the caller where to put the viewport after a load.
type ScrollAction int

const (
	ScrollNone ScrollAction = iota
	ScrollToBottom
	ScrollToFirstUnread
)

// Loader drives the timeline of one widget instance. The loading flags are
// plain booleans, not mutexes: they serialize scroll- and poll-triggered
// fetches of the same direction, while the epoch counter cancels in-flight
// continuations when the user switches threads.
type Loader struct {
	mu       sync.Mutex
	fetcher  Fetcher
	timeline *Timeline
	pageSize int

	loadingBefore bool
	loadingAfter  bool
	epoch         int

	onSeen func()
}

func NewLoader(fetcher Fetcher, onSeen func()) *Loader {
	if onSeen == nil {
		onSeen = func() {}
	}
	return &Loader{
		fetcher:  fetcher,
		timeline: NewTimeline(),
		pageSize: DefaultPageSize,
		onSeen:   onSeen,
	}
}

func (l *Loader) Timeline() *Timeline {
	return l.timeline
}

// SwitchThread abandons the current conversation: the timeline resets and
// any in-flight fetch becomes a no-op when it lands.
func (l *Loader) SwitchThread() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.epoch++
	l.loadingBefore = false
	l.loadingAfter = false
	l.timeline.reset()
}

// InitialLoad fetches the newest page. When a first-unread marker exists
// and is missing from that page, older pages are prepended until the
// marker itself is on the timeline, so the unread boundary can be put on
// screen and the history between it and the newest page has no hole.
func (l *Loader) InitialLoad(ctx context.Context, firstUnreadID string) (ScrollAction, error) {
	l.mu.Lock()
	epoch := l.epoch
	l.mu.Unlock()

	page, err := l.fetcher.FetchLatest(ctx, l.pageSize)
	if err != nil {
		return ScrollNone, err
	}

	l.mu.Lock()
	if epoch != l.epoch {
		l.mu.Unlock()
		return ScrollNone, nil
	}
	l.timeline.Apply(page, Append)
	l.timeline.HasMoreTop = len(page) == l.pageSize
	l.mu.Unlock()

	if firstUnreadID == "" {
		l.onSeen()
		return ScrollToBottom, nil
	}

	// Walk back page by page until the marker enters the timeline. Each
	// page is contiguous with the current oldest message, so the history
	// between the marker and the newest page stays gap-free and the page
	// containing the marker also brings the context above it.
	for {
		l.mu.Lock()
		if epoch != l.epoch {
			l.mu.Unlock()
			return ScrollNone, nil
		}
		done := l.timeline.Contains(firstUnreadID) || !l.timeline.HasMoreTop
		cursor := l.timeline.OldestSeenID
		l.mu.Unlock()
		if done {
			break
		}

		older, err := l.fetcher.FetchBefore(ctx, cursor, l.pageSize)
		if err != nil {
			return ScrollNone, err
		}

		l.mu.Lock()
		if epoch != l.epoch {
			l.mu.Unlock()
			return ScrollNone, nil
		}
		l.timeline.Apply(older, Prepend)
		l.timeline.HasMoreTop = len(older) == l.pageSize
		l.mu.Unlock()
	}

	l.mu.Lock()
	found := l.timeline.Contains(firstUnreadID)
	l.mu.Unlock()

	// A marker that no longer exists in the history behaves like no marker.
	if !found {
		l.onSeen()
		return ScrollToBottom, nil
	}
	return ScrollToFirstUnread, nil
}

// LoadBefore fetches the page older than the current oldest message. The
// re-entry guard makes concurrent triggers collapse to one fetch.
func (l *Loader) LoadBefore(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.loadingBefore || !l.timeline.HasMoreTop || l.timeline.OldestSeenID == "" {
		l.mu.Unlock()
		return false, nil
	}
	l.loadingBefore = true
	epoch := l.epoch
	cursor := l.timeline.OldestSeenID
	l.mu.Unlock()

	page, err := l.fetcher.FetchBefore(ctx, cursor, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadingBefore = false

	if err != nil {
		return false, err
	}
	if epoch != l.epoch {
		return false, nil
	}

	changed := l.timeline.Apply(page, Prepend)
	l.timeline.HasMoreTop = len(page) == l.pageSize
	return changed, nil
}

// LoadAfter fetches the page newer than the current newest message and
// marks the viewport caught up.
func (l *Loader) LoadAfter(ctx context.Context) (bool, error) {
	l.mu.Lock()
	if l.loadingAfter || l.timeline.NewestSeenID == "" {
		l.mu.Unlock()
		return false, nil
	}
	l.loadingAfter = true
	epoch := l.epoch
	cursor := l.timeline.NewestSeenID
	l.mu.Unlock()

	page, err := l.fetcher.FetchAfter(ctx, cursor, l.pageSize)

	l.mu.Lock()
	defer l.mu.Unlock()
	l.loadingAfter = false

	if err != nil {
		return false, err
	}
	if epoch != l.epoch {
		return false, nil
	}

	changed := l.timeline.Apply(page, Append)
	l.timeline.HasMoreBottom = len(page) == l.pageSize
	l.timeline.PendingNewCount = 0
	l.timeline.IsAtBottom = true
	return changed, nil
}

// LivePush handles a realtime message.new event. Near the bottom the
// viewport follows the conversation; otherwise the message counts toward
// the "N new messages" affordance.
func (l *Loader) LivePush(msg dto.MessageResponse, distanceFromBottom float64) ScrollAction {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.timeline.Apply([]dto.MessageResponse{msg}, Append) {
		return ScrollNone
	}

	if IsNearBottom(distanceFromBottom) {
		l.timeline.IsAtBottom = true
		l.onSeen()
		return ScrollToBottom
	}

	l.timeline.PendingNewCount++
	l.timeline.IsAtBottom = false
	return ScrollNone
}

// JumpToLatest is the "N new messages" click: clear the counter and scroll
// down.
func (l *Loader) JumpToLatest() ScrollAction {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.timeline.PendingNewCount = 0
	l.timeline.IsAtBottom = true
	l.onSeen()
	return ScrollToBottom
}
