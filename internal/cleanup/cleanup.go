// Package cleanup removes stale data: users inactive for too long or with
// no locations, expired purchase requests, sessions and sign-in codes, and
// lapsed in-memory codes.
package cleanup

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/store"
)

// Purger drops expired in-memory entries.
type Purger interface {
	PurgeExpired() int
}

type Options struct {
	// InactiveDays selects users with no activity for this many days.
	// Zero disables the inactivity rule.
	InactiveDays int  `json:"days"`
	Orphaned     bool `json:"orphaned"`
	DryRun       bool `json:"dry_run"`
}

type Candidate struct {
	ID         int64     `json:"id"`
	Email      string    `json:"email"`
	UserName   string    `json:"user_name"`
	LastActive time.Time `json:"last_active"`
	Reason     string    `json:"reason"`
}

type Report struct {
	RanAt             time.Time   `json:"ran_at"`
	DryRun            bool        `json:"dry_run"`
	Users             []Candidate `json:"users"`
	DeletedUsers      int         `json:"deleted_users"`
	DeletedLocations  int         `json:"deleted_locations"`
	ExpiredPurchases  int64       `json:"expired_purchases"`
	ExpiredSessions   int64       `json:"expired_sessions"`
	ExpiredLoginCodes int64       `json:"expired_login_codes"`
	PurgedCodes       int         `json:"purged_codes"`
}

type Sweeper struct {
	users     *store.UserStore
	purchases *store.PurchaseStore
	sessions  *store.SessionStore
	codes     *store.LoginCodeStore
	purgers   []Purger
	logger    *slog.Logger
	now       func() time.Time
}

func NewSweeper(
	users *store.UserStore,
	purchases *store.PurchaseStore,
	sessions *store.SessionStore,
	codes *store.LoginCodeStore,
	logger *slog.Logger,
	purgers ...Purger,
) *Sweeper {
	return &Sweeper{
		users:     users,
		purchases: purchases,
		sessions:  sessions,
		codes:     codes,
		purgers:   purgers,
		logger:    logger,
		now:       time.Now,
	}
}

func lastActive(u *model.User) time.Time {
	switch {
	case u.LastActivityAt != nil:
		return *u.LastActivityAt
	case u.LastLoginAt != nil:
		return *u.LastLoginAt
	default:
		return u.CreatedAt
	}
}

// Candidates lists the users a run with opts would delete.
func (s *Sweeper) Candidates(opts Options) ([]Candidate, error) {
	if opts.InactiveDays < 0 {
		return nil, fmt.Errorf("inactive days must not be negative")
	}
	seen := make(map[int64]bool)
	out := []Candidate{}
	add := func(users []model.User, reason string) {
		for i := range users {
			u := &users[i]
			if seen[u.ID] {
				continue
			}
			seen[u.ID] = true
			out = append(out, Candidate{
				ID:         u.ID,
				Email:      u.Email,
				UserName:   u.UserName,
				LastActive: lastActive(u),
				Reason:     reason,
			})
		}
	}

	if opts.InactiveDays > 0 {
		cutoff := s.now().UTC().AddDate(0, 0, -opts.InactiveDays)
		users, err := s.users.ListInactive(cutoff)
		if err != nil {
			return nil, fmt.Errorf("list inactive users: %w", err)
		}
		add(users, fmt.Sprintf("inactive for %d days", opts.InactiveDays))
	}
	if opts.Orphaned {
		users, err := s.users.ListOrphaned()
		if err != nil {
			return nil, fmt.Errorf("list orphaned users: %w", err)
		}
		add(users, "no locations")
	}
	return out, nil
}

// Run performs one sweep. A dry run reports what would go and changes
// nothing. A failure deleting one user is logged and the sweep goes on.
func (s *Sweeper) Run(opts Options) (*Report, error) {
	now := s.now().UTC()
	report := &Report{RanAt: now, DryRun: opts.DryRun}

	users, err := s.Candidates(opts)
	if err != nil {
		return nil, err
	}
	report.Users = users

	if opts.DryRun {
		if report.ExpiredPurchases, err = s.purchases.CountExpired(now); err != nil {
			return nil, err
		}
		return report, nil
	}

	for _, c := range users {
		res, err := s.users.DeleteCascade(c.ID)
		if err != nil {
			s.logger.Error("cleanup delete user", "user_id", c.ID, "error", err)
			continue
		}
		report.DeletedUsers++
		report.DeletedLocations += res.OwnedLocations + res.OrphanedLocations
	}

	if report.ExpiredPurchases, err = s.purchases.DeleteExpired(now); err != nil {
		return nil, err
	}
	if report.ExpiredSessions, err = s.sessions.DeleteExpired(now); err != nil {
		return nil, err
	}
	if report.ExpiredLoginCodes, err = s.codes.DeleteExpired(now); err != nil {
		return nil, err
	}
	for _, p := range s.purgers {
		report.PurgedCodes += p.PurgeExpired()
	}

	s.logger.Info("cleanup complete",
		"deleted_users", report.DeletedUsers,
		"deleted_locations", report.DeletedLocations,
		"expired_purchases", report.ExpiredPurchases,
		"expired_sessions", report.ExpiredSessions,
	)
	return report, nil
}
