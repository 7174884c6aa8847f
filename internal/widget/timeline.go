// Package widget is the client-side engine behind the embedded chat
// window: cursor-based pagination, dedupe-on-merge, scroll bookkeeping and
// debounced read-receipt reporting. It holds no DOM; callers translate its
// state transitions into rendering.
package widget

import "widget-chat-backend/internal/dto"

type Placement int

const (
	Prepend Placement = iota
	Append
)

// Merge splices incoming messages into existing, skipping ids already
// present. When nothing new arrives the existing slice is returned
// untouched, same backing array, so callers can use identity comparison to
// skip re-renders.
func Merge(existing, incoming []dto.MessageResponse, placement Placement) []dto.MessageResponse {
	if len(incoming) == 0 {
		return existing
	}

	seen := make(map[string]struct{}, len(existing))
	for _, msg := range existing {
		seen[msg.ID] = struct{}{}
	}

	fresh := make([]dto.MessageResponse, 0, len(incoming))
	for _, msg := range incoming {
		if _, ok := seen[msg.ID]; ok {
			continue
		}
		seen[msg.ID] = struct{}{}
		fresh = append(fresh, msg)
	}

	if len(fresh) == 0 {
		return existing
	}

	merged := make([]dto.MessageResponse, 0, len(existing)+len(fresh))
	if placement == Prepend {
		merged = append(merged, fresh...)
		merged = append(merged, existing...)
	} else {
		merged = append(merged, existing...)
		merged = append(merged, fresh...)
	}
	return merged
}

// Timeline is the ordered message state of one open conversation view.
type Timeline struct {
	Messages        []dto.MessageResponse
	OldestSeenID    string
	NewestSeenID    string
	HasMoreTop      bool
	HasMoreBottom   bool
	PendingNewCount int
	IsAtBottom      bool
}

func NewTimeline() *Timeline {
	return &Timeline{IsAtBottom: true}
}

// Apply merges a page into the timeline and refreshes the cursors.
// It reports whether the merge changed anything.
func (t *Timeline) Apply(incoming []dto.MessageResponse, placement Placement) bool {
	before := t.Messages
	t.Messages = Merge(t.Messages, incoming, placement)
	changed := len(t.Messages) != len(before)
	if changed {
		t.refreshCursors()
	}
	return changed
}

func (t *Timeline) refreshCursors() {
	if len(t.Messages) == 0 {
		t.OldestSeenID = ""
		t.NewestSeenID = ""
		return
	}
	t.OldestSeenID = t.Messages[0].ID
	t.NewestSeenID = t.Messages[len(t.Messages)-1].ID
}

// Contains reports whether a message id is already in the timeline.
func (t *Timeline) Contains(id string) bool {
	for _, msg := range t.Messages {
		if msg.ID == id {
			return true
		}
	}
	return false
}

// MarkStatus applies a status event to the timeline, stamping deliveredAt
// or readAt on the listed messages.
func (t *Timeline) MarkStatus(messageIDs []string, status, stamp string) {
	ids := make(map[string]struct{}, len(messageIDs))
	for _, id := range messageIDs {
		ids[id] = struct{}{}
	}
	for i := range t.Messages {
		if _, ok := ids[t.Messages[i].ID]; !ok {
			continue
		}
		switch status {
		case "delivered":
			if t.Messages[i].DeliveredAt == "" {
				t.Messages[i].DeliveredAt = stamp
			}
		case "read":
			if t.Messages[i].ReadAt == "" {
				t.Messages[i].ReadAt = stamp
			}
		}
	}
}

func (t *Timeline) reset() {
	t.Messages = nil
	t.OldestSeenID = ""
	t.NewestSeenID = ""
	t.HasMoreTop = false
	t.HasMoreBottom = false
	t.PendingNewCount = 0
	t.IsAtBottom = true
}
