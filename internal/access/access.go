// Package access decides whether a user may touch a location or the items
// in it. Existence is checked before membership, so a missing location is
// NotFound for everyone and an existing one is Forbidden to non-members.
package access

import (
	"fmt"
	"log/slog"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/model"
)

type LocationLookup interface {
	GetByID(id int64) (*model.Location, error)
	IsMember(locationID, userID int64) (bool, error)
}

type ItemLookup interface {
	GetByID(id int64) (*model.Item, error)
}

type Checker struct {
	locations LocationLookup
	items     ItemLookup
	logger    *slog.Logger
}

func NewChecker(locations LocationLookup, items ItemLookup, logger *slog.Logger) *Checker {
	return &Checker{locations: locations, items: items, logger: logger}
}

// Location loads a location the user is a member of.
func (c *Checker) Location(userID, locationID int64) (*model.Location, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	loc, err := c.locations.GetByID(locationID)
	if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}
	if loc == nil {
		return nil, apperr.NotFound("location")
	}
	ok, err := c.locations.IsMember(locationID, userID)
	if err != nil {
		return nil, fmt.Errorf("load membership: %w", err)
	}
	if !ok {
		c.deny(userID, "location", locationID, "not a member")
		return nil, apperr.Forbidden("not a member of this location")
	}
	return loc, nil
}

// Owned loads a location the user created. Creators are always members.
func (c *Checker) Owned(userID, locationID int64) (*model.Location, error) {
	if userID == 0 {
		return nil, apperr.ErrUnauthenticated
	}
	loc, err := c.locations.GetByID(locationID)
	if err != nil {
		return nil, fmt.Errorf("load location: %w", err)
	}
	if loc == nil {
		return nil, apperr.NotFound("location")
	}
	if loc.CreatedBy != userID {
		c.deny(userID, "location", locationID, "not the creator")
		return nil, apperr.Forbidden("only the creator may do this")
	}
	return loc, nil
}

// Item loads an item in a location the user is a member of.
func (c *Checker) Item(userID, itemID int64) (*model.Item, *model.Location, error) {
	if userID == 0 {
		return nil, nil, apperr.ErrUnauthenticated
	}
	item, err := c.items.GetByID(itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("load item: %w", err)
	}
	if item == nil {
		return nil, nil, apperr.NotFound("item")
	}
	loc, err := c.Location(userID, item.LocationID)
	if err != nil {
		return nil, nil, err
	}
	return item, loc, nil
}

// ItemIn is Item with the extra requirement that the item sits in
// locationID; an item reached through the wrong location is NotFound.
func (c *Checker) ItemIn(userID, locationID, itemID int64) (*model.Item, *model.Location, error) {
	loc, err := c.Location(userID, locationID)
	if err != nil {
		return nil, nil, err
	}
	item, err := c.items.GetByID(itemID)
	if err != nil {
		return nil, nil, fmt.Errorf("load item: %w", err)
	}
	if item == nil || item.LocationID != locationID {
		return nil, nil, apperr.NotFound("item")
	}
	return item, loc, nil
}

func (c *Checker) deny(userID int64, kind string, id int64, reason string) {
	c.logger.Warn("access denied", "user_id", userID, "resource", kind, "resource_id", id, "reason", reason)
}
