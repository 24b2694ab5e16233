// Package inventory implements location, membership and item operations.
// Every operation runs the membership check before touching the store and
// publishes item changes to the location's live update topic.
package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/dukerupert/zaikon/internal/access"
	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/notify"
	"github.com/dukerupert/zaikon/internal/stock"
	"github.com/dukerupert/zaikon/internal/store"
	"github.com/dukerupert/zaikon/internal/websocket"
)

const maxNameLength = 100

// Broadcaster publishes changes to the clients watching a location.
type Broadcaster interface {
	Broadcast(msg websocket.Message)
	Evict(locationID, userID int64) int
}

// Deliverer sends a message over one named notification channel.
type Deliverer interface {
	Deliver(ctx context.Context, channel string, to *model.User, msg notify.Message) error
}

type Service struct {
	locations *store.LocationStore
	items     *store.ItemStore
	users     *store.UserStore
	access    *access.Checker
	hub       Broadcaster
	notifier  Deliverer
	logger    *slog.Logger
}

func NewService(
	locations *store.LocationStore,
	items *store.ItemStore,
	users *store.UserStore,
	checker *access.Checker,
	hub Broadcaster,
	notifier Deliverer,
	logger *slog.Logger,
) *Service {
	return &Service{
		locations: locations,
		items:     items,
		users:     users,
		access:    checker,
		hub:       hub,
		notifier:  notifier,
		logger:    logger,
	}
}

func cleanName(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Invalid(field, "%s is required", field)
	}
	if len([]rune(name)) > maxNameLength {
		return "", apperr.Invalid(field, "%s must be at most %d characters", field, maxNameLength)
	}
	return name, nil
}

func (s *Service) publish(entity, action string, locationID, id int64, extra map[string]any) {
	if s.hub == nil {
		return
	}
	s.hub.Broadcast(websocket.NewMessage(entity, action, locationID, id, extra))
}

func itemExtra(item *model.Item) map[string]any {
	return map[string]any{
		"amount": item.Amount,
		"status": item.Status,
		"inuse":  item.InUse,
	}
}

// Locations

func (s *Service) CreateLocation(userID int64, name string) (*model.Location, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	name, err := cleanName("location_name", name)
	if err != nil {
		return nil, err
	}
	loc, err := s.locations.Create(name, userID)
	if err != nil {
		return nil, fmt.Errorf("create location: %w", err)
	}
	s.logger.Info("location created", "location_id", loc.ID, "user_id", userID)
	return loc, nil
}

func (s *Service) ListLocations(userID int64) ([]model.Location, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	locs, err := s.locations.ListForUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list locations: %w", err)
	}
	if locs == nil {
		locs = []model.Location{}
	}
	return locs, nil
}

// Location returns the location with its items and members.
func (s *Service) Location(userID, locationID int64) (*model.LocationDetail, error) {
	loc, err := s.access.Location(userID, locationID)
	if err != nil {
		return nil, err
	}
	return s.detail(loc)
}

func (s *Service) detail(loc *model.Location) (*model.LocationDetail, error) {
	items, err := s.items.ListByLocation(loc.ID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	members, err := s.locations.ListMembers(loc.ID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	if items == nil {
		items = []model.Item{}
	}
	return &model.LocationDetail{Location: *loc, Items: items, Members: members}, nil
}

// Overview returns every location the user belongs to in full, as shown on
// the dashboard.
func (s *Service) Overview(userID int64) ([]model.LocationDetail, error) {
	locs, err := s.ListLocations(userID)
	if err != nil {
		return nil, err
	}
	out := make([]model.LocationDetail, 0, len(locs))
	for i := range locs {
		d, err := s.detail(&locs[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *d)
	}
	return out, nil
}

func (s *Service) RenameLocation(userID, locationID int64, name string) (*model.Location, error) {
	if _, err := s.access.Location(userID, locationID); err != nil {
		return nil, err
	}
	name, err := cleanName("location_name", name)
	if err != nil {
		return nil, err
	}
	loc, err := s.locations.Rename(locationID, name)
	if err != nil {
		return nil, fmt.Errorf("rename location: %w", err)
	}
	s.publish("location", "updated", locationID, locationID, map[string]any{"location_name": loc.Name})
	return loc, nil
}

// DeleteLocation removes the location with its items and memberships.
// Only the creator may do this.
func (s *Service) DeleteLocation(userID, locationID int64) error {
	if _, err := s.access.Owned(userID, locationID); err != nil {
		return err
	}
	if err := s.locations.Delete(locationID); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	s.locationGone(locationID)
	s.logger.Info("location deleted", "location_id", locationID, "user_id", userID)
	return nil
}

func (s *Service) locationGone(locationID int64) {
	s.publish("location", "deleted", locationID, locationID, nil)
	if s.hub != nil {
		s.hub.Evict(locationID, 0)
	}
}

// Members

// AddMember adds the user found by email or user name. Adding an existing
// member is a no-op.
func (s *Service) AddMember(userID, locationID int64, lookup MemberLookup) (*model.Member, error) {
	if _, err := s.access.Location(userID, locationID); err != nil {
		return nil, err
	}
	target, err := s.findUser(lookup)
	if err != nil {
		return nil, err
	}
	m, err := s.locations.AddMember(locationID, target.ID)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	s.publish("member", "added", locationID, target.ID, map[string]any{"user_name": target.UserName})
	return m, nil
}

func (s *Service) findUser(lookup MemberLookup) (*model.User, error) {
	if email := strings.TrimSpace(lookup.Email); email != "" {
		u, err := s.users.GetByEmail(strings.ToLower(email))
		if err != nil {
			return nil, fmt.Errorf("find user: %w", err)
		}
		if u == nil {
			return nil, apperr.NotFound("user")
		}
		return u, nil
	}

	name := strings.TrimSpace(lookup.UserName)
	if name == "" {
		return nil, apperr.Invalid("user_name", "user_name or email is required")
	}
	users, err := s.users.ListByName(name)
	if err != nil {
		return nil, fmt.Errorf("find user: %w", err)
	}
	switch len(users) {
	case 0:
		return nil, apperr.NotFound("user")
	case 1:
		return &users[0], nil
	default:
		return nil, apperr.Invalid("user_name", "several users are called %q, add them by email", name)
	}
}

// RemoveMember removes targetID from the location. Members may remove
// themselves; removing anyone else requires being the creator. The creator
// can only leave as the last member. Removing the last member deletes the
// location; locationDeleted reports when that happened.
func (s *Service) RemoveMember(userID, locationID, targetID int64) (locationDeleted bool, err error) {
	loc, err := s.access.Location(userID, locationID)
	if err != nil {
		return false, err
	}
	member, err := s.locations.GetMember(locationID, targetID)
	if err != nil {
		return false, fmt.Errorf("load member: %w", err)
	}
	if member == nil {
		return false, apperr.NotFound("member")
	}

	if targetID != userID && loc.CreatedBy != userID {
		s.logger.Warn("access denied", "user_id", userID, "resource", "member", "resource_id", targetID, "reason", "not the creator")
		return false, apperr.Forbidden("only the creator may remove other members")
	}
	if targetID == loc.CreatedBy {
		members, err := s.locations.ListMembers(locationID)
		if err != nil {
			return false, fmt.Errorf("list members: %w", err)
		}
		if len(members) > 1 {
			return false, apperr.Invalid("user_id", "the creator cannot leave while other members remain; delete the location instead")
		}
	}

	deleted, err := s.locations.RemoveMember(locationID, targetID)
	if err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}
	if deleted {
		s.locationGone(locationID)
		s.logger.Info("location deleted with its last member", "location_id", locationID, "user_id", targetID)
		return true, nil
	}
	s.publish("member", "removed", locationID, targetID, nil)
	if s.hub != nil {
		s.hub.Evict(locationID, targetID)
	}
	return false, nil
}

func (s *Service) ListMembers(userID, locationID int64) ([]model.MemberProfile, error) {
	if _, err := s.access.Location(userID, locationID); err != nil {
		return nil, err
	}
	members, err := s.locations.ListMembers(locationID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	return members, nil
}

// Items

func (s *Service) ListItems(userID, locationID int64) ([]model.Item, error) {
	if _, err := s.access.Location(userID, locationID); err != nil {
		return nil, err
	}
	items, err := s.items.ListByLocation(locationID)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	if items == nil {
		items = []model.Item{}
	}
	return items, nil
}

func (s *Service) Item(userID, locationID, itemID int64) (*model.Item, error) {
	item, _, err := s.access.ItemIn(userID, locationID, itemID)
	return item, err
}

// CreateItem adds an item. Missing thresholds default to 1/3/6 and a
// missing amount to 0.
func (s *Service) CreateItem(userID, locationID int64, in ItemInput) (*model.Item, error) {
	if _, err := s.access.Location(userID, locationID); err != nil {
		return nil, err
	}
	name, err := cleanName("item_name", in.Name)
	if err != nil {
		return nil, err
	}
	level, err := in.level(stock.DefaultLevel())
	if err != nil {
		return nil, err
	}
	consumable := in.IsConsumable != nil && *in.IsConsumable

	item, err := s.items.Create(locationID, name, level, consumable)
	if err != nil {
		return nil, fmt.Errorf("create item: %w", err)
	}
	s.publish("item", "created", locationID, item.ID, itemExtra(item))
	return item, nil
}

func (s *Service) UpdateItem(userID, locationID, itemID int64, in ItemInput) (*model.Item, error) {
	existing, _, err := s.access.ItemIn(userID, locationID, itemID)
	if err != nil {
		return nil, err
	}
	name := existing.Name
	if strings.TrimSpace(in.Name) != "" {
		if name, err = cleanName("item_name", in.Name); err != nil {
			return nil, err
		}
	}
	level, err := in.level(existing.Level())
	if err != nil {
		return nil, err
	}
	consumable := existing.IsConsumable
	if in.IsConsumable != nil {
		consumable = *in.IsConsumable
	}

	item, err := s.items.Update(itemID, name, level, consumable)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item")
	}
	s.publish("item", "updated", locationID, item.ID, itemExtra(item))
	return item, nil
}

// ApplyAmount runs an increment, decrement or set action. value is only
// read by set and is required there.
func (s *Service) ApplyAmount(userID, locationID, itemID int64, action string, value Number) (*model.Item, error) {
	if _, _, err := s.access.ItemIn(userID, locationID, itemID); err != nil {
		return nil, err
	}
	act, err := stock.ParseAction(action)
	if err != nil {
		return nil, apperr.Invalid("action", "action must be increment, decrement or set")
	}
	var n int
	if act == stock.ActionSet {
		if value.Blank() {
			return nil, apperr.Invalid("value", "value is required for set")
		}
		if n, err = value.Int("value", 0); err != nil {
			return nil, err
		}
	}

	item, err := s.items.ApplyAmount(itemID, act, n)
	if err != nil {
		return nil, fmt.Errorf("apply amount: %w", err)
	}
	if item == nil {
		return nil, apperr.NotFound("item")
	}
	s.publish("item", "updated", locationID, item.ID, itemExtra(item))
	return item, nil
}

// AdvanceInUse moves the item one step on the in-use ring. Consumable items
// are returned unchanged with changed set to false.
func (s *Service) AdvanceInUse(userID, locationID, itemID int64) (item *model.Item, changed bool, err error) {
	if _, _, err := s.access.ItemIn(userID, locationID, itemID); err != nil {
		return nil, false, err
	}
	item, changed, err = s.items.AdvanceInUse(itemID)
	if err != nil {
		return nil, false, fmt.Errorf("advance in-use: %w", err)
	}
	if item == nil {
		return nil, false, apperr.NotFound("item")
	}
	if changed {
		s.publish("item", "updated", locationID, item.ID, itemExtra(item))
	}
	return item, changed, nil
}

// MoveItem reassigns an item the user can reach to another location. The
// user must be a member of the destination.
func (s *Service) MoveItem(userID, locationID, itemID, toLocationID int64) (*model.Item, error) {
	item, _, err := s.access.ItemIn(userID, locationID, itemID)
	if err != nil {
		return nil, err
	}
	if toLocationID == 0 {
		return nil, apperr.Invalid("to_location_id", "to_location_id is required")
	}
	if _, err := s.access.Location(userID, toLocationID); err != nil {
		return nil, err
	}
	if toLocationID == locationID {
		return item, nil
	}

	moved, err := s.items.Move(itemID, toLocationID)
	if err != nil {
		return nil, fmt.Errorf("move item: %w", err)
	}
	if moved == nil {
		return nil, apperr.NotFound("item")
	}
	s.publish("item", "deleted", locationID, itemID, map[string]any{"moved_to": toLocationID})
	s.publish("item", "created", toLocationID, itemID, itemExtra(moved))
	return moved, nil
}

func (s *Service) DeleteItem(userID, locationID, itemID int64) error {
	if _, _, err := s.access.ItemIn(userID, locationID, itemID); err != nil {
		return err
	}
	if err := s.items.Delete(itemID); err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	s.publish("item", "deleted", locationID, itemID, nil)
	return nil
}

// Lists

type ListKind string

const (
	ListReplenish ListKind = "replenish"
	ListShopping  ListKind = "shopping"
)

// List returns the replenish list (items at the last in-use stage) or the
// shopping list (Red items) across every location the user belongs to.
func (s *Service) List(userID int64, kind ListKind) ([]model.LocatedItem, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	var (
		items []model.LocatedItem
		err   error
	)
	switch kind {
	case ListReplenish:
		items, err = s.items.ListReplenish(userID)
	case ListShopping:
		items, err = s.items.ListShopping(userID)
	default:
		return nil, apperr.Invalid("list", "unknown list %q", kind)
	}
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	if items == nil {
		items = []model.LocatedItem{}
	}
	return items, nil
}

// SendList pushes one of the lists to the user's linked LINE account. A
// failed send is reported and changes nothing.
func (s *Service) SendList(ctx context.Context, userID int64, kind ListKind) (int, error) {
	items, err := s.List(userID, kind)
	if err != nil {
		return 0, err
	}
	user, err := s.users.GetByID(userID)
	if err != nil {
		return 0, fmt.Errorf("load user: %w", err)
	}
	if user == nil {
		return 0, apperr.ErrUnauthenticated
	}
	if !user.LineLinked() {
		return 0, apperr.Invalid("line", "link a LINE account first")
	}

	msg := notify.ShoppingMessage(user.UserName, items)
	if kind == ListReplenish {
		msg = notify.ReplenishMessage(user.UserName, items)
	}
	if err := s.notifier.Deliver(ctx, notify.ChannelLINE, user, msg); err != nil {
		if errors.Is(err, notify.ErrUnreachable) {
			return 0, apperr.Invalid("line", "LINE messaging is not available")
		}
		s.logger.Error("send list", "user_id", userID, "list", kind, "error", err)
		return 0, fmt.Errorf("send %s list: %w", kind, apperr.ErrDelivery)
	}
	return len(items), nil
}
