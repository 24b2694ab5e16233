package account

import (
	"context"
	"fmt"
	"time"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/model"

	"github.com/google/uuid"
)

// EmailChange is a pending change as shown on the confirmation page.
type EmailChange struct {
	Code      string    `json:"-"`
	OldEmail  string    `json:"old_email"`
	NewEmail  string    `json:"new_email"`
	ExpiresAt time.Time `json:"expires_at"`
	// Sent is false when the confirmation email could not be delivered.
	Sent bool `json:"sent"`
}

// RequestEmailChange validates the new address and mails a confirmation
// link to it. A user has at most one pending change.
func (s *Service) RequestEmailChange(ctx context.Context, userID int64, rawEmail string) (*EmailChange, error) {
	user, err := s.Profile(userID)
	if err != nil {
		return nil, err
	}
	newEmail, err := NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	if newEmail == user.Email {
		return nil, apperr.Invalid("email", "this is already your email address")
	}
	if err := s.checkAvailable(newEmail); err != nil {
		return nil, err
	}

	s.emailChanges.DeleteFunc(func(_ string, p pendingEmailChange) bool { return p.UserID == userID })
	code := uuid.NewString()
	expires := s.emailChanges.Put(code, pendingEmailChange{
		UserID:   userID,
		OldEmail: user.Email,
		NewEmail: newEmail,
	})

	change := &EmailChange{Code: code, OldEmail: user.Email, NewEmail: newEmail, ExpiresAt: expires, Sent: true}
	if err := s.mailer.SendEmailChangeLink(ctx, newEmail, user.UserName, code); err != nil {
		s.logger.Error("send email change link", "user_id", userID, "error", err)
		change.Sent = false
	}
	return change, nil
}

// PendingEmailChange looks up a change by code. Unknown and expired codes
// are Gone.
func (s *Service) PendingEmailChange(code string) (*EmailChange, error) {
	p, ok := s.emailChanges.Get(code)
	if !ok {
		return nil, apperr.ErrGone
	}
	return &EmailChange{Code: code, OldEmail: p.OldEmail, NewEmail: p.NewEmail}, nil
}

// ConfirmEmailChange applies the change. The ban list and uniqueness are
// checked again since either may have changed while the link was pending.
func (s *Service) ConfirmEmailChange(code string) (*model.User, error) {
	p, ok := s.emailChanges.Take(code)
	if !ok {
		return nil, apperr.ErrGone
	}
	if err := s.checkAvailable(p.NewEmail); err != nil {
		return nil, err
	}
	user, err := s.users.UpdateEmail(p.UserID, p.NewEmail)
	if err != nil {
		return nil, fmt.Errorf("update email: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	s.logger.Info("email changed", "user_id", user.ID)
	return user, nil
}
