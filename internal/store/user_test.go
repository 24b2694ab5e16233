package store

import (
	"database/sql"
	"testing"
	"time"

	"github.com/dukerupert/zaikon/internal/database"
	"github.com/dukerupert/zaikon/internal/stock"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		t.Fatalf("enable foreign keys: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func setupUserTestDB(t *testing.T) *UserStore {
	t.Helper()
	return NewUserStore(openTestDB(t))
}

func TestUserCreate(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.Create("alice@example.com", "Alice", "likes tea")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	if u.ID == 0 {
		t.Error("expected non-zero ID")
	}
	if u.Email != "alice@example.com" {
		t.Errorf("email = %q, want %q", u.Email, "alice@example.com")
	}
	if u.UserName != "Alice" {
		t.Errorf("user_name = %q, want %q", u.UserName, "Alice")
	}
	if u.UserDescription != "likes tea" {
		t.Errorf("user_description = %q, want %q", u.UserDescription, "likes tea")
	}
	if u.LineUserID != nil {
		t.Error("expected no line id")
	}
}

func TestUserCreateDuplicateEmail(t *testing.T) {
	us := setupUserTestDB(t)

	if _, err := us.Create("alice@example.com", "Alice", ""); err != nil {
		t.Fatalf("create user: %v", err)
	}
	if _, err := us.Create("alice@example.com", "Alice2", ""); err == nil {
		t.Fatal("expected error for duplicate email, got nil")
	}
}

func TestUserGetByIDNotFound(t *testing.T) {
	us := setupUserTestDB(t)

	u, err := us.GetByID(999)
	if err != nil {
		t.Fatalf("get by id: %v", err)
	}
	if u != nil {
		t.Error("expected nil for nonexistent user")
	}
}

func TestUserGetByEmailAndName(t *testing.T) {
	us := setupUserTestDB(t)

	created, _ := us.Create("alice@example.com", "Alice", "")
	us.Create("bob@example.com", "Bob", "")

	u, err := us.GetByEmail("alice@example.com")
	if err != nil {
		t.Fatalf("get by email: %v", err)
	}
	if u == nil || u.ID != created.ID {
		t.Fatalf("get by email returned %+v", u)
	}

	named, err := us.ListByName("Bob")
	if err != nil {
		t.Fatalf("list by name: %v", err)
	}
	if len(named) != 1 || named[0].Email != "bob@example.com" {
		t.Errorf("list by name = %+v", named)
	}
}

func TestUserUpdateProfileAndEmail(t *testing.T) {
	us := setupUserTestDB(t)
	u, _ := us.Create("alice@example.com", "Alice", "")

	updated, err := us.UpdateProfile(u.ID, "Alicia", "new bio")
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.UserName != "Alicia" || updated.UserDescription != "new bio" {
		t.Errorf("profile = %q/%q", updated.UserName, updated.UserDescription)
	}

	updated, err = us.UpdateEmail(u.ID, "alicia@example.com")
	if err != nil {
		t.Fatalf("update email: %v", err)
	}
	if updated.Email != "alicia@example.com" {
		t.Errorf("email = %q", updated.Email)
	}
}

func TestUserLineLink(t *testing.T) {
	us := setupUserTestDB(t)
	u, _ := us.Create("alice@example.com", "Alice", "")

	lineID := "U1234567890"
	if err := us.SetLineUserID(u.ID, &lineID); err != nil {
		t.Fatalf("set line id: %v", err)
	}
	got, err := us.GetByLineUserID(lineID)
	if err != nil {
		t.Fatalf("get by line id: %v", err)
	}
	if got == nil || got.ID != u.ID || !got.LineLinked() {
		t.Fatalf("get by line id = %+v", got)
	}

	if err := us.SetLineUserID(u.ID, nil); err != nil {
		t.Fatalf("unlink: %v", err)
	}
	got, _ = us.GetByID(u.ID)
	if got.LineLinked() {
		t.Error("expected line id cleared")
	}
}

func TestUserListInactive(t *testing.T) {
	us := setupUserTestDB(t)
	old, _ := us.Create("old@example.com", "Old", "")
	fresh, _ := us.Create("fresh@example.com", "Fresh", "")

	now := time.Now().UTC()
	if err := us.TouchActivity(old.ID, now.AddDate(0, 0, -60)); err != nil {
		t.Fatalf("touch old: %v", err)
	}
	if err := us.TouchLogin(fresh.ID, now); err != nil {
		t.Fatalf("touch fresh: %v", err)
	}

	inactive, err := us.ListInactive(now.AddDate(0, 0, -30))
	if err != nil {
		t.Fatalf("list inactive: %v", err)
	}
	if len(inactive) != 1 || inactive[0].ID != old.ID {
		t.Errorf("inactive = %+v, want only %d", inactive, old.ID)
	}

	got, _ := us.GetByID(fresh.ID)
	if got.LastLoginAt == nil || got.LastActivityAt == nil {
		t.Error("expected login and activity timestamps")
	}
}

func TestUserListOrphaned(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	ls := NewLocationStore(db)

	member, _ := us.Create("member@example.com", "Member", "")
	loner, _ := us.Create("loner@example.com", "Loner", "")
	if _, err := ls.Create("Kitchen", member.ID); err != nil {
		t.Fatalf("create location: %v", err)
	}

	orphans, err := us.ListOrphaned()
	if err != nil {
		t.Fatalf("list orphaned: %v", err)
	}
	if len(orphans) != 1 || orphans[0].ID != loner.ID {
		t.Errorf("orphans = %+v, want only %d", orphans, loner.ID)
	}
}

func TestUserDeleteCascade(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	ls := NewLocationStore(db)
	is := NewItemStore(db)
	ps := NewPurchaseStore(db)
	ss := NewSessionStore(db, time.Hour)

	alice, _ := us.Create("alice@example.com", "Alice", "")
	bob, _ := us.Create("bob@example.com", "Bob", "")

	owned, _ := ls.Create("Alice Kitchen", alice.ID)
	ls.AddMember(owned.ID, bob.ID)
	is.Create(owned.ID, "Rice", stock.DefaultLevel(), false)

	// Bob's location that Alice joined: survives because Bob stays.
	shared, _ := ls.Create("Bob Garage", bob.ID)
	ls.AddMember(shared.ID, alice.ID)

	ps.Create(alice.ID, bob.ID, "Milk", "", "medium", nil)
	ss.Create(alice.ID)

	res, err := us.DeleteCascade(alice.ID)
	if err != nil {
		t.Fatalf("delete cascade: %v", err)
	}
	if res.OwnedLocations != 1 {
		t.Errorf("owned locations = %d, want 1", res.OwnedLocations)
	}
	if res.Purchases != 1 {
		t.Errorf("purchases = %d, want 1", res.Purchases)
	}

	if u, _ := us.GetByID(alice.ID); u != nil {
		t.Error("expected user deleted")
	}
	if l, _ := ls.GetByID(owned.ID); l != nil {
		t.Error("expected owned location deleted")
	}
	if items, _ := is.ListByLocation(owned.ID); len(items) != 0 {
		t.Errorf("expected items deleted, got %d", len(items))
	}
	if l, _ := ls.GetByID(shared.ID); l == nil {
		t.Error("expected shared location to survive")
	}
	if ok, _ := ls.IsMember(shared.ID, alice.ID); ok {
		t.Error("expected membership removed")
	}
}

func TestUserDeleteCascadeOrphansJoinedLocation(t *testing.T) {
	db := openTestDB(t)
	us := NewUserStore(db)
	ls := NewLocationStore(db)

	alice, _ := us.Create("alice@example.com", "Alice", "")
	bob, _ := us.Create("bob@example.com", "Bob", "")

	// Bob created it and left; Alice is the only member.
	loc, _ := ls.Create("Cellar", bob.ID)
	ls.AddMember(loc.ID, alice.ID)
	if _, err := db.Exec(`DELETE FROM members WHERE location_id = ? AND user_id = ?`, loc.ID, bob.ID); err != nil {
		t.Fatalf("remove bob: %v", err)
	}

	res, err := us.DeleteCascade(alice.ID)
	if err != nil {
		t.Fatalf("delete cascade: %v", err)
	}
	if res.OrphanedLocations != 1 {
		t.Errorf("orphaned locations = %d, want 1", res.OrphanedLocations)
	}
	if l, _ := ls.GetByID(loc.ID); l != nil {
		t.Error("expected location without members to be deleted")
	}
}
