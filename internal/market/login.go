package market

import (
	"coinmarket/internal/model"
	"context"
	"github.com/pkg/errors"
)

// Login looks a member up by email. There is no credential check.
func (s Service) Login(ctx context.Context, email string) (model.Member, error) {
	email = model.NormalizeEmail(email)
	if email == "" {
		return model.Member{}, ErrInvalidEmail
	}
	m, err := s.findMember(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.Logger.Debugf("Login: Email not found: %s", email)
			return m, errors.Wrap(ErrNotFound, "email not found")
		}
		return m, err
	}
	m.Role = m.Role.Normalize()
	s.Logger.Infof("Login: Member logged in, email: %s, role: %s", m.Email, m.Role)
	return m, nil
}
