package market

import (
	"coinmarket/internal/database"
	"coinmarket/internal/model"
	"context"
)

// Cursor remembers the newest pending request an admin has been notified about.
type Cursor interface {
	LastSeen(ctx context.Context) (string, error)
	MarkSeen(ctx context.Context, requestID string) error
}

type PendingSnapshot struct {
	Requests []model.PurchaseRequest `json:"requests"`
	// Notify is the newest pending request, set only the first time it is seen through the cursor.
	Notify *model.PurchaseRequest `json:"notify,omitempty"`
}

// nextNotification returns the newest pending request unless it is the one last seen.
// pending must be ordered newest first.
func nextNotification(pending []model.PurchaseRequest, lastSeen string) *model.PurchaseRequest {
	if len(pending) == 0 {
		return nil
	}
	newest := pending[0]
	if newest.ID.Hex() == lastSeen {
		return nil
	}
	return &newest
}

// PendingRequestsFeed delivers the pending requests, newest first, and flags a request
// for notification the first time it shows up at the top of the list.
func (s Service) PendingRequestsFeed(ctx context.Context, cursor Cursor) (<-chan PendingSnapshot, error) {
	lastSeen, err := cursor.LastSeen(ctx)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithCancel(ctx)
	lists, err := watch(ctx, s, "PendingRequestsFeed", s.PendingRequests, database.CollectionPurchaseRequests)
	if err != nil {
		cancel()
		return nil, err
	}

	out := make(chan PendingSnapshot)
	go func() {
		defer close(out)
		defer cancel()
		for rs := range lists {
			snap := PendingSnapshot{Requests: rs}
			if n := nextNotification(rs, lastSeen); n != nil {
				lastSeen = n.ID.Hex()
				if err := cursor.MarkSeen(ctx, lastSeen); err != nil {
					s.Logger.Errorf("PendingRequestsFeed: Error saving read cursor, RequestID: %s, err: %v", lastSeen, err)
				}
				snap.Notify = n
				s.Logger.Debugf("PendingRequestsFeed: Notifying about RequestID: %s", lastSeen)
			}
			if !send(ctx, out, snap) {
				return
			}
		}
	}()
	return out, nil
}
