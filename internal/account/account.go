// Package account covers everything about a user's own record: registration,
// sign-in codes, profile edits, email changes and LINE linking.
package account

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/expiring"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/store"
)

const (
	EmailChangeTTL = 30 * time.Minute
	LinkCodeTTL    = 10 * time.Minute

	maxCodeAttempts   = 5
	maxNameLength     = 50
	maxDescriptionLen = 500
)

// Mailer sends the account emails.
type Mailer interface {
	SendLoginCode(ctx context.Context, to, code string) error
	SendEmailChangeLink(ctx context.Context, to, userName, code string) error
}

// Replier answers a LINE webhook event.
type Replier interface {
	ReplyText(ctx context.Context, replyToken, text string) error
}

type pendingEmailChange struct {
	UserID   int64
	OldEmail string
	NewEmail string
}

type Service struct {
	users    *store.UserStore
	bans     *store.BanStore
	sessions *store.SessionStore
	codes    *store.LoginCodeStore
	mailer   Mailer
	replier  Replier
	lineURL  string
	logger   *slog.Logger
	now      func() time.Time

	emailChanges *expiring.Map[pendingEmailChange]
	linkCodes    *expiring.Map[int64]
}

type Option func(*Service)

// WithClock replaces the clock used for code expiry.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLINEAddFriendURL sets the URL shown next to a link code so the user
// can open a chat with the bot.
func WithLINEAddFriendURL(u string) Option {
	return func(s *Service) { s.lineURL = u }
}

func NewService(
	users *store.UserStore,
	bans *store.BanStore,
	sessions *store.SessionStore,
	codes *store.LoginCodeStore,
	mailer Mailer,
	replier Replier,
	logger *slog.Logger,
	opts ...Option,
) *Service {
	s := &Service{
		users:    users,
		bans:     bans,
		sessions: sessions,
		codes:    codes,
		mailer:   mailer,
		replier:  replier,
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	s.emailChanges = expiring.New[pendingEmailChange](EmailChangeTTL, expiring.WithClock(s.now))
	s.linkCodes = expiring.New[int64](LinkCodeTTL, expiring.WithClock(s.now))
	return s
}

// NormalizeEmail trims and lowercases an address and rejects anything that
// is not a bare address.
func NormalizeEmail(raw string) (string, error) {
	e := strings.ToLower(strings.TrimSpace(raw))
	if e == "" {
		return "", apperr.Invalid("email", "email is required")
	}
	addr, err := mail.ParseAddress(e)
	if err != nil || addr.Address != e || !strings.Contains(e[strings.LastIndex(e, "@")+1:], ".") {
		return "", apperr.Invalid("email", "email address is not valid")
	}
	return e, nil
}

// checkAvailable rejects banned and taken addresses.
func (s *Service) checkAvailable(email string) error {
	banned, err := s.bans.IsBanned(email)
	if err != nil {
		return fmt.Errorf("check ban list: %w", err)
	}
	if banned {
		s.logger.Warn("banned email rejected", "email", email)
		return apperr.Invalid("email", "this email address cannot be used")
	}
	existing, err := s.users.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("check email: %w", err)
	}
	if existing != nil {
		return apperr.Invalid("email", "this email address is already registered")
	}
	return nil
}

func cleanProfile(name, description string) (string, string, error) {
	name = strings.TrimSpace(name)
	description = strings.TrimSpace(description)
	if name == "" {
		return "", "", apperr.Invalid("user_name", "user_name is required")
	}
	if len([]rune(name)) > maxNameLength {
		return "", "", apperr.Invalid("user_name", "user_name must be at most %d characters", maxNameLength)
	}
	if len([]rune(description)) > maxDescriptionLen {
		return "", "", apperr.Invalid("user_description", "user_description must be at most %d characters", maxDescriptionLen)
	}
	return name, description, nil
}

type Registration struct {
	UserName        string `json:"user_name"`
	Email           string `json:"email"`
	UserDescription string `json:"user_description"`
}

// Register creates the user and signs them in.
func (s *Service) Register(reg Registration) (*model.User, *model.Session, error) {
	name, description, err := cleanProfile(reg.UserName, reg.UserDescription)
	if err != nil {
		return nil, nil, err
	}
	if description == "" {
		return nil, nil, apperr.Invalid("user_description", "user_description is required")
	}
	email, err := NormalizeEmail(reg.Email)
	if err != nil {
		return nil, nil, err
	}
	if err := s.checkAvailable(email); err != nil {
		return nil, nil, err
	}

	user, err := s.users.Create(email, name, description)
	if err != nil {
		return nil, nil, fmt.Errorf("create user: %w", err)
	}
	sess, err := s.startSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user registered", "user_id", user.ID)
	return user, sess, nil
}

func (s *Service) startSession(userID int64) (*model.Session, error) {
	sess, err := s.sessions.Create(userID)
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	if err := s.users.TouchLogin(userID, s.now().UTC()); err != nil {
		return nil, fmt.Errorf("touch login: %w", err)
	}
	return sess, nil
}

// RequestLoginCode emails a sign-in code when the address belongs to a
// user. Unknown and banned addresses get the same silent success.
func (s *Service) RequestLoginCode(ctx context.Context, rawEmail string) error {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return err
	}
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return fmt.Errorf("login lookup: %w", err)
	}
	if user == nil {
		return nil
	}
	banned, err := s.bans.IsBanned(email)
	if err != nil {
		return fmt.Errorf("check ban list: %w", err)
	}
	if banned {
		s.logger.Warn("login for banned email", "user_id", user.ID)
		return nil
	}

	lc, err := s.codes.Create(email)
	if err != nil {
		return fmt.Errorf("create login code: %w", err)
	}
	if err := s.mailer.SendLoginCode(ctx, email, lc.Code); err != nil {
		s.logger.Error("send login code", "user_id", user.ID, "error", err)
	}
	return nil
}

// VerifyLoginCode checks a sign-in code and starts a session. A code
// allows a limited number of wrong guesses before it is burned.
func (s *Service) VerifyLoginCode(rawEmail, code string) (*model.User, *model.Session, error) {
	email, err := NormalizeEmail(rawEmail)
	if err != nil {
		return nil, nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, nil, apperr.Invalid("code", "code is required")
	}

	latest, err := s.codes.GetLatestByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("load login code: %w", err)
	}
	if latest == nil {
		return nil, nil, apperr.Invalid("code", "code has expired or already been used, request a new one")
	}
	if latest.Attempts >= maxCodeAttempts {
		if err := s.codes.MarkUsed(latest.ID); err != nil {
			return nil, nil, fmt.Errorf("burn login code: %w", err)
		}
		return nil, nil, apperr.Invalid("code", "too many incorrect attempts, request a new code")
	}
	if latest.Code != code {
		attempts, err := s.codes.IncrementAttempts(latest.ID)
		if err != nil {
			return nil, nil, fmt.Errorf("count attempt: %w", err)
		}
		if attempts >= maxCodeAttempts {
			if err := s.codes.MarkUsed(latest.ID); err != nil {
				return nil, nil, fmt.Errorf("burn login code: %w", err)
			}
			return nil, nil, apperr.Invalid("code", "too many incorrect attempts, request a new code")
		}
		return nil, nil, apperr.Invalid("code", "incorrect code")
	}
	if err := s.codes.MarkUsed(latest.ID); err != nil {
		return nil, nil, fmt.Errorf("mark login code used: %w", err)
	}

	user, err := s.users.GetByEmail(email)
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, nil, apperr.NotFound("user")
	}
	sess, err := s.startSession(user.ID)
	if err != nil {
		return nil, nil, err
	}
	s.logger.Info("user signed in", "user_id", user.ID)
	return user, sess, nil
}

func (s *Service) Logout(token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.Delete(token); err != nil {
		return fmt.Errorf("logout: %w", err)
	}
	return nil
}

// Dashboard resolves the user a /user/{id} page is for. A visitor without a
// session is signed in as that user when the id exists; a signed-in user
// may only open their own dashboard. session is non-nil only when a new
// one was started.
func (s *Service) Dashboard(sessionUserID, pathUserID int64) (user *model.User, session *model.Session, err error) {
	if sessionUserID != 0 && sessionUserID != pathUserID {
		s.logger.Warn("access denied", "user_id", sessionUserID, "resource", "dashboard", "resource_id", pathUserID, "reason", "not the owner")
		return nil, nil, apperr.Forbidden("this is another user's dashboard")
	}
	user, err = s.users.GetByID(pathUserID)
	if err != nil {
		return nil, nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, nil, apperr.NotFound("user")
	}
	if sessionUserID == 0 {
		if session, err = s.startSession(user.ID); err != nil {
			return nil, nil, err
		}
	}
	return user, session, nil
}

func (s *Service) Profile(userID int64) (*model.User, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return nil, apperr.NotFound("user")
	}
	return user, nil
}

func (s *Service) UpdateProfile(userID int64, name, description string) (*model.User, error) {
	if _, err := s.Profile(userID); err != nil {
		return nil, err
	}
	name, description, err := cleanProfile(name, description)
	if err != nil {
		return nil, err
	}
	user, err := s.users.UpdateProfile(userID, name, description)
	if err != nil {
		return nil, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

// PurgeExpired drops expired pending email changes and link codes.
func (s *Service) PurgeExpired() int {
	return s.emailChanges.Purge() + s.linkCodes.Purge()
}
