package admin

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/backup"
	"github.com/dukerupert/zaikon/internal/cleanup"
	"github.com/dukerupert/zaikon/internal/database"
	"github.com/dukerupert/zaikon/internal/store"
)

type fixture struct {
	svc       *Service
	users     *store.UserStore
	sessions  *store.SessionStore
	locations *store.LocationStore
	bans      *store.BanStore
}

func setup(t *testing.T) *fixture {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		users:     store.NewUserStore(db),
		sessions:  store.NewSessionStore(db, store.DefaultSessionTTL),
		locations: store.NewLocationStore(db),
		bans:      store.NewBanStore(db),
	}
	purchases := store.NewPurchaseStore(db)
	sweeper := cleanup.NewSweeper(f.users, purchases, f.sessions, store.NewLoginCodeStore(db), logger)
	manager := backup.NewManager(backup.Config{}, db, store.NewBackupStore(db), logger)
	f.svc = NewService(f.users, f.bans, f.sessions, store.NewAdminStore(db), sweeper, manager, logger)
	return f
}

func TestBanSignsOutExistingUser(t *testing.T) {
	f := setup(t)
	u, err := f.users.Create("spam@example.com", "spam", "")
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	sess, err := f.sessions.Create(u.ID)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	entry, err := f.svc.Ban("  SPAM@Example.com ", "abuse")
	if err != nil {
		t.Fatalf("Ban: %v", err)
	}
	if entry.Email != "spam@example.com" {
		t.Errorf("email = %q, want normalized", entry.Email)
	}
	got, err := f.sessions.GetByToken(sess.Token)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got != nil {
		t.Error("expected session to be revoked")
	}

	bans, err := f.svc.ListBans()
	if err != nil {
		t.Fatalf("ListBans: %v", err)
	}
	if len(bans) != 1 {
		t.Fatalf("len = %d, want 1", len(bans))
	}
	if err := f.svc.Unban(bans[0].ID); err != nil {
		t.Fatalf("Unban: %v", err)
	}
	if err := f.svc.Unban(bans[0].ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("second Unban err = %v, want not found", err)
	}
}

func TestBanRejectsInvalidEmail(t *testing.T) {
	f := setup(t)
	if _, err := f.svc.Ban("not-an-email", ""); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
}

func TestDeleteUserRequiresConfirmation(t *testing.T) {
	f := setup(t)
	u, _ := f.users.Create("a@example.com", "a", "")

	if _, err := f.svc.DeleteUser(u.ID, "delete"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if got, _ := f.users.GetByID(u.ID); got == nil {
		t.Fatal("user deleted without confirmation")
	}

	if _, err := f.svc.DeleteUser(u.ID, ConfirmDeleteUser); err != nil {
		t.Fatalf("DeleteUser: %v", err)
	}
	if got, _ := f.users.GetByID(u.ID); got != nil {
		t.Error("user still present")
	}
	if _, err := f.svc.DeleteUser(u.ID, ConfirmDeleteUser); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("err = %v, want not found", err)
	}
}

func TestClearAllKeepsBans(t *testing.T) {
	f := setup(t)
	u, _ := f.users.Create("a@example.com", "a", "")
	if _, err := f.locations.Create("Pantry", u.ID); err != nil {
		t.Fatalf("create location: %v", err)
	}
	if _, err := f.bans.Add("b@example.com", ""); err != nil {
		t.Fatalf("add ban: %v", err)
	}

	if _, err := f.svc.ClearAll("CLEAR"); !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("err = %v, want validation", err)
	}
	if _, err := f.svc.ClearAll(ConfirmClearAll); err != nil {
		t.Fatalf("ClearAll: %v", err)
	}
	counts, err := f.svc.Stats()
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if counts.Users != 0 || counts.Locations != 0 {
		t.Errorf("counts = %+v, want no users or locations", counts)
	}
	if counts.Bans != 1 {
		t.Errorf("bans = %d, want 1", counts.Bans)
	}
}

func TestCleanupRejectsNegativeDays(t *testing.T) {
	f := setup(t)
	if _, err := f.svc.Cleanup(cleanup.Options{InactiveDays: -1}); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
	if _, err := f.svc.Cleanup(cleanup.Options{Orphaned: true, DryRun: true}); err != nil {
		t.Errorf("dry run: %v", err)
	}
}

func TestBackupWithoutConfig(t *testing.T) {
	f := setup(t)
	if _, err := f.svc.Backup(t.Context()); !errors.Is(err, apperr.ErrValidation) {
		t.Errorf("err = %v, want validation", err)
	}
	list, status, err := f.svc.Backups()
	if err != nil {
		t.Fatalf("Backups: %v", err)
	}
	if len(list) != 0 || status.State != backup.StateDisabled {
		t.Errorf("list = %v status = %+v, want empty and disabled", list, status)
	}
}

func TestIssuer(t *testing.T) {
	hash, err := HashPassword("hunter2")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	iss := NewIssuer("signing-key", hash, time.Minute)
	iss.now = func() time.Time { return now }

	if _, _, err := iss.Issue("wrong"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Fatalf("wrong password err = %v", err)
	}

	token, expires, err := iss.Issue("hunter2")
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !expires.Equal(now.Add(time.Minute)) {
		t.Errorf("expires = %v", expires)
	}
	claims, err := iss.Verify(token)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if claims.Role != RoleAdmin || claims.ID == "" {
		t.Errorf("claims = %+v", claims)
	}

	other := NewIssuer("other-key", hash, time.Minute)
	other.now = iss.now
	if _, err := other.Verify(token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("foreign key err = %v", err)
	}

	now = now.Add(2 * time.Minute)
	if _, err := iss.Verify(token); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("expired err = %v", err)
	}
}

func TestIssuerNotConfigured(t *testing.T) {
	iss := NewIssuer("", "", 0)
	if iss.Configured() {
		t.Fatal("expected unconfigured")
	}
	if _, _, err := iss.Issue("x"); !errors.Is(err, apperr.ErrForbidden) {
		t.Errorf("err = %v, want forbidden", err)
	}
	if _, err := iss.Verify("x"); !errors.Is(err, apperr.ErrUnauthenticated) {
		t.Errorf("err = %v, want unauthenticated", err)
	}
}
