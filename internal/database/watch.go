package database

import (
	"context"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/mongo"
	"time"
)

const defaultPollInterval = 2 * time.Second

// Watch signals on the returned channel whenever collection may have changed.
// Signals are coalesced, a reader only learns that something changed since its last receive.
// The channel is closed once ctx is done or the change stream fails.
func (db Database) Watch(ctx context.Context, collection string) (<-chan struct{}, error) {
	changes := make(chan struct{}, 1)

	if db.ChangeStreams {
		cs, err := db.Collection(collection).Watch(ctx, mongo.Pipeline{})
		if err != nil {
			return nil, errors.Wrapf(err, "error opening change stream on collection: %s", collection)
		}
		go func() {
			defer close(changes)
			defer cs.Close(context.Background())
			for cs.Next(ctx) {
				signal(changes)
			}
		}()
		return changes, nil
	}

	interval := db.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	go func() {
		defer close(changes)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				signal(changes)
			}
		}
	}()
	return changes, nil
}

func signal(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}
