package message

import (
	"context"
	"errors"
	"time"

	"widget-chat-backend/internal/model"
)

const (
	StatusDelivered = "delivered"
	StatusRead      = "read"
)

type AckParams struct {
	SiteKey      string
	ThreadID     string
	DeliveredIDs []string
	ReadIDs      []string
}

type AckResult struct {
	Delivered []string
	Read      []string
}

// Ack records delivery and read receipts reported by the widget. Only
// outbound messages are eligible; stamps are set once and never moved, so a
// replayed ack is a no-op. One status event is published per non-empty
// newly-updated list.
func (s *Service) Ack(ctx context.Context, params AckParams) (AckResult, error) {
	threadItem, err := s.loadThread(ctx, params.SiteKey, params.ThreadID)
	if err != nil {
		return AckResult{}, err
	}

	nowStr := s.now().UTC().Format(time.RFC3339)

	delivered, err := s.stampMessages(ctx, threadItem, params.DeliveredIDs, StatusDelivered, nowStr)
	if err != nil {
		return AckResult{}, err
	}
	read, err := s.stampMessages(ctx, threadItem, params.ReadIDs, StatusRead, nowStr)
	if err != nil {
		return AckResult{}, err
	}

	if s.pub != nil {
		if len(delivered) > 0 {
			s.pub.PublishStatus(threadItem, delivered, StatusDelivered)
		}
		if len(read) > 0 {
			s.pub.PublishStatus(threadItem, read, StatusRead)
		}
	}

	return AckResult{Delivered: delivered, Read: read}, nil
}

// stampMessages applies a set-once status stamp and returns the ids that
// actually changed. Unknown ids, inbound messages and already-stamped
// messages are skipped silently.
func (s *Service) stampMessages(ctx context.Context, threadItem model.ThreadItem, messageIDs []string, status, stamp string) ([]string, error) {
	var updated []string
	for _, id := range messageIDs {
		msg, err := s.repo.GetMessage(ctx, threadItem.ThreadID, id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, newError(ErrorCodeInternal, "failed to fetch message", err)
		}
		if msg.Direction != model.DirectionOutbound {
			continue
		}

		switch status {
		case StatusDelivered:
			if msg.DeliveredAt != "" {
				continue
			}
		case StatusRead:
			if msg.ReadAt != "" {
				continue
			}
		default:
			continue
		}

		if err := s.repo.StampMessage(ctx, threadItem.ThreadID, id, status, stamp); err != nil {
			return nil, newError(ErrorCodeInternal, "failed to stamp message", err)
		}
		updated = append(updated, id)
	}
	return updated, nil
}
