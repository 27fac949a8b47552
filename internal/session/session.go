package session

import (
	"coinmarket/internal/model"
	"context"
	"crypto/sha256"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"time"
)

const (
	DefaultTTL = 24 * time.Hour
	roleClaim  = "role"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Session is the login state of one member, created on login and gone after logout or expiry.
type Session struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Role      model.Role `json:"role"`
	TokenHash []byte     `json:"token_hash"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
}

func (s Session) Admin() bool {
	return s.Role == model.RoleAdmin
}

func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type sessionContextKey struct{}

func NewContext(ctx context.Context, s Session) context.Context {
	return context.WithValue(ctx, sessionContextKey{}, s)
}

func FromContext(ctx context.Context) (Session, error) {
	s, ok := ctx.Value(sessionContextKey{}).(Session)
	if !ok {
		return s, errors.New("failed to get Session from context")
	}
	return s, nil
}

type logger interface {
	Debugf(format string, v ...any)
	Infof(format string, v ...any)
	Errorf(format string, v ...any)
}

// Manager issues login tokens and resolves them back to sessions.
// The token is a signed JWT whose ID is the session ID, the store only keeps a bcrypt hash of it.
type Manager struct {
	Store  Store
	Key    jwk.Key
	TTL    time.Duration
	Logger logger
	Clock  func() time.Time
}

func (m Manager) now() time.Time {
	if m.Clock != nil {
		return m.Clock()
	}
	return time.Now()
}

func (m Manager) ttl() time.Duration {
	if m.TTL <= 0 {
		return DefaultTTL
	}
	return m.TTL
}

func (m Manager) Create(ctx context.Context, member model.Member) (string, Session, error) {
	now := m.now()
	s := Session{
		ID:        uuid.NewString(),
		Email:     member.Email,
		Role:      member.Role.Normalize(),
		CreatedAt: now,
		ExpiresAt: now.Add(m.ttl()),
	}
	lt, tokenHash, err := m.createLoginTokenAndHash(s)
	if err != nil {
		return "", Session{}, err
	}
	s.TokenHash = tokenHash
	if err = m.Store.Save(ctx, s, m.ttl()); err != nil {
		return "", Session{}, errors.Wrapf(err, "error saving Session for email: %s", s.Email)
	}
	m.Logger.Debugf("Create: Session created, ID: %s, email: %s", s.ID, s.Email)
	return lt, s, nil
}

func (m Manager) createLoginTokenAndHash(s Session) (string, []byte, error) {
	token, err := jwt.NewBuilder().
		JwtID(s.ID).
		Subject(s.Email).
		IssuedAt(s.CreatedAt).
		Expiration(s.ExpiresAt).
		Claim(roleClaim, string(s.Role)).
		Build()
	if err != nil {
		return "", nil, errors.Wrap(err, "error building login token")
	}
	signed, err := jwt.Sign(token, jwt.WithKey(jwa.HS256, m.Key))
	if err != nil {
		return "", nil, errors.Wrap(err, "error signing login token")
	}
	tokenHash := sha256.Sum256(signed)
	hashed, err := bcrypt.GenerateFromPassword(tokenHash[:], bcrypt.DefaultCost-3)
	if err != nil {
		return "", nil, errors.Wrap(err, "error hashing login token")
	}
	return string(signed), hashed, nil
}

// Authenticate returns the live session the login token belongs to.
func (m Manager) Authenticate(ctx context.Context, lt string) (Session, error) {
	token, err := jwt.Parse(
		[]byte(lt),
		jwt.WithKey(jwa.HS256, m.Key),
		jwt.WithValidate(true),
		jwt.WithClock(jwt.ClockFunc(m.now)),
	)
	if err != nil {
		return Session{}, errors.Wrapf(ErrUnauthenticated, "invalid login token: %v", err)
	}

	s, err := m.Store.Find(ctx, token.JwtID())
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return Session{}, errors.Wrapf(ErrUnauthenticated, "no Session with ID: %s", token.JwtID())
		}
		return Session{}, err
	}
	if s.Email != token.Subject() || s.Expired(m.now()) {
		return Session{}, errors.Wrapf(ErrUnauthenticated, "Session does not match token, ID: %s", s.ID)
	}

	tokenHash := sha256.Sum256([]byte(lt))
	if err = bcrypt.CompareHashAndPassword(s.TokenHash, tokenHash[:]); err != nil {
		return Session{}, errors.Wrapf(ErrUnauthenticated, "token hash mismatch for Session ID: %s", s.ID)
	}
	return s, nil
}

func (m Manager) Destroy(ctx context.Context, s Session) error {
	if err := m.Store.Delete(ctx, s.ID); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return errors.Wrapf(err, "error deleting Session ID: %s", s.ID)
	}
	m.Logger.Debugf("Destroy: Session destroyed, ID: %s, email: %s", s.ID, s.Email)
	return nil
}

// AdminCursor is the pending request read cursor of one admin, kept across sessions.
type AdminCursor struct {
	Store Store
	Email string
}

func (c AdminCursor) LastSeen(ctx context.Context) (string, error) {
	return c.Store.LastSeenRequest(ctx, c.Email)
}

func (c AdminCursor) MarkSeen(ctx context.Context, requestID string) error {
	return c.Store.SetLastSeenRequest(ctx, c.Email, requestID)
}
