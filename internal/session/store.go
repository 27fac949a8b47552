package session

import (
	"context"
	"github.com/pkg/errors"
	"time"
)

var ErrSessionNotFound = errors.New("session not found")

//go:generate mockgen -source=$GOFILE -destination=mock/mock.go -package=mock_session
type Store interface {
	// Save keeps s until ttl passes or it is deleted.
	Save(ctx context.Context, s Session, ttl time.Duration) error
	Find(ctx context.Context, id string) (Session, error)
	Delete(ctx context.Context, id string) error
	LastSeenRequest(ctx context.Context, email string) (string, error)
	SetLastSeenRequest(ctx context.Context, email string, requestID string) error
}
