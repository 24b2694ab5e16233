// Package purchase handles ad-hoc purchase requests between users who
// share a location. Only the requester edits or deletes a request; the
// requester or its target may complete it.
package purchase

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/notify"
	"github.com/dukerupert/zaikon/internal/store"
)

const (
	maxItemName       = 100
	maxDescription    = 500
	maxExpiresInHours = 24 * 30
)

// Notifier delivers a message in the background.
type Notifier interface {
	Notify(to *model.User, msg notify.Message)
}

type Service struct {
	purchases *store.PurchaseStore
	users     *store.UserStore
	locations *store.LocationStore
	notifier  Notifier
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(purchases *store.PurchaseStore, users *store.UserStore, locations *store.LocationStore, notifier Notifier, logger *slog.Logger) *Service {
	return &Service{
		purchases: purchases,
		users:     users,
		locations: locations,
		notifier:  notifier,
		logger:    logger,
		now:       time.Now,
	}
}

// Request is the editable part of a purchase. RequestedFor 0 means the
// requester. ExpiresInHours 0 means no expiry.
type Request struct {
	ItemName       string         `json:"item_name"`
	Description    string         `json:"description"`
	Priority       model.Priority `json:"priority"`
	RequestedFor   int64          `json:"requested_for"`
	ExpiresInHours int            `json:"expires_in_hours"`
}

type cleaned struct {
	name        string
	description string
	priority    model.Priority
	expiresAt   *time.Time
}

func (s *Service) clean(req Request) (cleaned, error) {
	var c cleaned
	c.name = strings.TrimSpace(req.ItemName)
	if c.name == "" {
		return c, apperr.Invalid("item_name", "item_name is required")
	}
	if len([]rune(c.name)) > maxItemName {
		return c, apperr.Invalid("item_name", "item_name must be at most %d characters", maxItemName)
	}
	c.description = strings.TrimSpace(req.Description)
	if len([]rune(c.description)) > maxDescription {
		return c, apperr.Invalid("description", "description must be at most %d characters", maxDescription)
	}

	switch p := model.Priority(strings.ToLower(strings.TrimSpace(string(req.Priority)))); p {
	case "":
		c.priority = model.PriorityMedium
	case model.PriorityLow, model.PriorityMedium, model.PriorityHigh:
		c.priority = p
	default:
		return c, apperr.Invalid("priority", "priority must be low, medium or high")
	}

	if req.ExpiresInHours < 0 || req.ExpiresInHours > maxExpiresInHours {
		return c, apperr.Invalid("expires_in_hours", "expires_in_hours must be between 0 and %d", maxExpiresInHours)
	}
	if req.ExpiresInHours > 0 {
		t := s.now().UTC().Add(time.Duration(req.ExpiresInHours) * time.Hour)
		c.expiresAt = &t
	}
	return c, nil
}

// Create records a request. Asking someone else requires sharing a
// location with them, and notifies them.
func (s *Service) Create(userID int64, req Request) (*model.TemporaryPurchase, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	c, err := s.clean(req)
	if err != nil {
		return nil, err
	}

	target := req.RequestedFor
	if target == 0 {
		target = userID
	}
	var targetUser *model.User
	if target != userID {
		targetUser, err = s.users.GetByID(target)
		if err != nil {
			return nil, fmt.Errorf("load target user: %w", err)
		}
		if targetUser == nil {
			return nil, apperr.NotFound("user")
		}
		shared, err := s.locations.SharesLocation(userID, target)
		if err != nil {
			return nil, err
		}
		if !shared {
			s.logger.Warn("access denied", "user_id", userID, "resource", "user", "resource_id", target, "reason", "no shared location")
			return nil, apperr.Forbidden("you can only ask people who share a location with you")
		}
	}

	p, err := s.purchases.Create(userID, target, c.name, c.description, c.priority, c.expiresAt)
	if err != nil {
		return nil, fmt.Errorf("create purchase: %w", err)
	}
	if targetUser != nil && s.notifier != nil {
		s.notifier.Notify(targetUser, notify.PurchaseRequestMessage(p.RequesterName, p))
	}
	return p, nil
}

func (s *Service) List(userID int64) ([]model.TemporaryPurchase, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	ps, err := s.purchases.ListForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list purchases: %w", err)
	}
	if ps == nil {
		ps = []model.TemporaryPurchase{}
	}
	return ps, nil
}

// Active lists pending, unexpired requests, most urgent first.
func (s *Service) Active(userID int64) ([]model.TemporaryPurchase, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	ps, err := s.purchases.ListActive(userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("list active purchases: %w", err)
	}
	if ps == nil {
		ps = []model.TemporaryPurchase{}
	}
	return ps, nil
}

// load returns the purchase when the user is its requester or target.
// Anyone else sees NotFound.
func (s *Service) load(userID, id int64) (*model.TemporaryPurchase, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	p, err := s.purchases.GetByID(id)
	if err != nil {
		return nil, fmt.Errorf("load purchase: %w", err)
	}
	if p == nil || (p.RequestedBy != userID && p.RequestedFor != userID) {
		return nil, apperr.NotFound("purchase")
	}
	return p, nil
}

func (s *Service) Get(userID, id int64) (*model.TemporaryPurchase, error) {
	return s.load(userID, id)
}

func (s *Service) requireRequester(userID int64, p *model.TemporaryPurchase, action string) error {
	if p.RequestedBy == userID {
		return nil
	}
	s.logger.Warn("access denied", "user_id", userID, "resource", "purchase", "resource_id", p.ID, "reason", "not the requester")
	return apperr.Forbidden("only the requester may " + action + " this request")
}

// Update edits a pending request. The target cannot be changed.
func (s *Service) Update(userID, id int64, req Request) (*model.TemporaryPurchase, error) {
	p, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireRequester(userID, p, "edit"); err != nil {
		return nil, err
	}
	if p.Status != model.PurchasePending {
		return nil, apperr.Invalid("status", "only pending requests can be edited")
	}
	c, err := s.clean(req)
	if err != nil {
		return nil, err
	}
	if req.ExpiresInHours == 0 {
		c.expiresAt = p.ExpiresAt
	}
	updated, err := s.purchases.Update(id, c.name, c.description, c.priority, c.expiresAt)
	if err != nil {
		return nil, fmt.Errorf("update purchase: %w", err)
	}
	return updated, nil
}

// Complete marks the request bought. The requester is told when someone
// else completed it. An expired request answers ErrGone.
func (s *Service) Complete(userID, id int64) (*model.TemporaryPurchase, error) {
	p, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PurchasePending {
		return nil, apperr.Invalid("status", "this request is already %s", p.Status)
	}
	if p.Expired(s.now()) {
		return nil, fmt.Errorf("purchase %d expired: %w", id, apperr.ErrGone)
	}
	done, err := s.purchases.Complete(id, userID, s.now())
	if err != nil {
		return nil, fmt.Errorf("complete purchase: %w", err)
	}

	if userID != p.RequestedBy && s.notifier != nil {
		requester, err := s.users.GetByID(p.RequestedBy)
		if err != nil {
			s.logger.Error("load requester", "purchase_id", id, "error", err)
		} else if requester != nil {
			s.notifier.Notify(requester, notify.PurchaseCompletedMessage(done.TargetName, done))
		}
	}
	return done, nil
}

func (s *Service) Cancel(userID, id int64) (*model.TemporaryPurchase, error) {
	p, err := s.load(userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.requireRequester(userID, p, "cancel"); err != nil {
		return nil, err
	}
	if p.Status != model.PurchasePending {
		return nil, apperr.Invalid("status", "this request is already %s", p.Status)
	}
	cancelled, err := s.purchases.Cancel(id)
	if err != nil {
		return nil, fmt.Errorf("cancel purchase: %w", err)
	}
	return cancelled, nil
}

func (s *Service) Delete(userID, id int64) error {
	p, err := s.load(userID, id)
	if err != nil {
		return err
	}
	if err := s.requireRequester(userID, p, "delete"); err != nil {
		return err
	}
	if err := s.purchases.Delete(id); err != nil {
		return fmt.Errorf("delete purchase: %w", err)
	}
	return nil
}
