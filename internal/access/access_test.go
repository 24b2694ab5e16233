package access

import (
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/model"
)

type fakeLocations struct {
	locations map[int64]*model.Location
	members   map[[2]int64]bool
	err       error
}

func (f *fakeLocations) GetByID(id int64) (*model.Location, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.locations[id], nil
}

func (f *fakeLocations) IsMember(locationID, userID int64) (bool, error) {
	return f.members[[2]int64{locationID, userID}], nil
}

type fakeItems map[int64]*model.Item

func (f fakeItems) GetByID(id int64) (*model.Item, error) { return f[id], nil }

const (
	creator  int64 = 1
	member   int64 = 2
	stranger int64 = 3
)

func newTestChecker() *Checker {
	locs := &fakeLocations{
		locations: map[int64]*model.Location{10: {ID: 10, Name: "Kitchen", CreatedBy: creator}},
		members: map[[2]int64]bool{
			{10, creator}: true,
			{10, member}:  true,
		},
	}
	items := fakeItems{100: {ID: 100, LocationID: 10, Name: "Rice"}}
	return NewChecker(locs, items, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestLocation(t *testing.T) {
	c := newTestChecker()

	tests := []struct {
		name       string
		user, loc  int64
		wantErr    error
		wantLocNil bool
	}{
		{"member", member, 10, nil, false},
		{"creator", creator, 10, nil, false},
		{"stranger existing", stranger, 10, apperr.ErrForbidden, true},
		{"stranger missing", stranger, 99, apperr.ErrNotFound, true},
		{"member missing", member, 99, apperr.ErrNotFound, true},
		{"anonymous", 0, 10, apperr.ErrUnauthenticated, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := c.Location(tt.user, tt.loc)
			if !errors.Is(err, tt.wantErr) || (tt.wantErr == nil && err != nil) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if (loc == nil) != tt.wantLocNil {
				t.Errorf("loc = %+v", loc)
			}
		})
	}
}

func TestOwned(t *testing.T) {
	c := newTestChecker()

	if _, err := c.Owned(creator, 10); err != nil {
		t.Errorf("creator: %v", err)
	}
	if _, err := c.Owned(member, 10); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("member: err = %v, want forbidden", err)
	}
	if _, err := c.Owned(stranger, 10); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("stranger: err = %v, want forbidden", err)
	}
	if _, err := c.Owned(creator, 99); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v, want not found", err)
	}
}

func TestItem(t *testing.T) {
	c := newTestChecker()

	item, loc, err := c.Item(member, 100)
	if err != nil {
		t.Fatalf("member: %v", err)
	}
	if item.Name != "Rice" || loc.ID != 10 {
		t.Errorf("item %+v loc %+v", item, loc)
	}
	if _, _, err := c.Item(stranger, 100); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("stranger: err = %v, want forbidden", err)
	}
	if _, _, err := c.Item(member, 101); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("missing: err = %v, want not found", err)
	}
}

func TestItemIn(t *testing.T) {
	c := newTestChecker()

	if _, _, err := c.ItemIn(member, 10, 100); err != nil {
		t.Errorf("matching location: %v", err)
	}
	c.locations.(*fakeLocations).locations[11] = &model.Location{ID: 11, CreatedBy: member}
	c.locations.(*fakeLocations).members[[2]int64{11, member}] = true
	if _, _, err := c.ItemIn(member, 11, 100); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("wrong location: err = %v, want not found", err)
	}
}

func TestLookupFailureIsInternal(t *testing.T) {
	locs := &fakeLocations{err: errors.New("db down")}
	c := NewChecker(locs, fakeItems{}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	_, err := c.Location(member, 10)
	if !apperr.IsInternal(err) {
		t.Errorf("err = %v, want internal", err)
	}
}
