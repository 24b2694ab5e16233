package store

import (
	"testing"

	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/stock"
)

func TestAdminClearAllKeepsBans(t *testing.T) {
	f := setupLocationTestDB(t)
	db := f.users.db
	as := NewAdminStore(db)
	bans := NewBanStore(db)

	loc, _ := f.locations.Create("Kitchen", f.alice.ID)
	f.locations.AddMember(loc.ID, f.bob.ID)
	f.items.Create(loc.ID, "Rice", stock.DefaultLevel(), false)
	NewPurchaseStore(db).Create(f.alice.ID, f.bob.ID, "Milk", "", model.PriorityMedium, nil)
	bans.Add("spam@example.com", "spam")

	cleared, err := as.ClearAll()
	if err != nil {
		t.Fatalf("clear all: %v", err)
	}
	if cleared.Users != 2 || cleared.Locations != 1 || cleared.Members != 2 || cleared.Items != 1 || cleared.Purchases != 1 {
		t.Errorf("cleared = %+v", cleared)
	}

	after, err := as.Counts()
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if after.Users != 0 || after.Locations != 0 || after.Items != 0 {
		t.Errorf("after = %+v", after)
	}
	if after.Bans != 1 {
		t.Errorf("bans = %d, want 1", after.Bans)
	}
}
