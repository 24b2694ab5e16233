// Package admin holds the destructive and global operations reserved for
// the administrator. Bulk deletes require a typed confirmation phrase.
package admin

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/dukerupert/zaikon/internal/account"
	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/backup"
	"github.com/dukerupert/zaikon/internal/cleanup"
	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/store"
)

const (
	ConfirmDeleteUser = "DELETE"
	ConfirmClearAll   = "CLEAR ALL"
	backupListLimit   = 50
)

type Service struct {
	users    *store.UserStore
	bans     *store.BanStore
	sessions *store.SessionStore
	data     *store.AdminStore
	sweeper  *cleanup.Sweeper
	backups  *backup.Manager
	logger   *slog.Logger
}

func NewService(
	users *store.UserStore,
	bans *store.BanStore,
	sessions *store.SessionStore,
	data *store.AdminStore,
	sweeper *cleanup.Sweeper,
	backups *backup.Manager,
	logger *slog.Logger,
) *Service {
	return &Service{
		users:    users,
		bans:     bans,
		sessions: sessions,
		data:     data,
		sweeper:  sweeper,
		backups:  backups,
		logger:   logger,
	}
}

func confirm(got, want string) error {
	if strings.TrimSpace(got) != want {
		return apperr.Invalid("confirm", "type %q to confirm", want)
	}
	return nil
}

func (s *Service) Stats() (*store.Counts, error) {
	return s.data.Counts()
}

func (s *Service) ListBans() ([]model.BanEntry, error) {
	bans, err := s.bans.List()
	if err != nil {
		return nil, err
	}
	if bans == nil {
		bans = []model.BanEntry{}
	}
	return bans, nil
}

// Ban adds an address to the ban list. A user already registered with it
// is signed out everywhere but not deleted.
func (s *Service) Ban(rawEmail, reason string) (*model.BanEntry, error) {
	email, err := account.NormalizeEmail(rawEmail)
	if err != nil {
		return nil, err
	}
	entry, err := s.bans.Add(email, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	if u, err := s.users.GetByEmail(email); err != nil {
		return nil, err
	} else if u != nil {
		if err := s.sessions.DeleteByUserID(u.ID); err != nil {
			return nil, err
		}
	}
	s.logger.Info("email banned", "email", email)
	return entry, nil
}

func (s *Service) Unban(id int64) error {
	ok, err := s.bans.Remove(id)
	if err != nil {
		return err
	}
	if !ok {
		return apperr.NotFound("ban")
	}
	return nil
}

func (s *Service) ListUsers() ([]model.User, error) {
	users, err := s.users.List()
	if err != nil {
		return nil, err
	}
	if users == nil {
		users = []model.User{}
	}
	return users, nil
}

// DeleteUser removes a user with everything they own.
func (s *Service) DeleteUser(id int64, confirmation string) (*store.DeleteResult, error) {
	if err := confirm(confirmation, ConfirmDeleteUser); err != nil {
		return nil, err
	}
	u, err := s.users.GetByID(id)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, apperr.NotFound("user")
	}
	res, err := s.users.DeleteCascade(id)
	if err != nil {
		return nil, fmt.Errorf("delete user: %w", err)
	}
	s.logger.Warn("user deleted by admin", "user_id", id, "owned_locations", res.OwnedLocations)
	return res, nil
}

// ClearAll wipes every user and all inventory data. The ban list stays.
func (s *Service) ClearAll(confirmation string) (*store.Counts, error) {
	if err := confirm(confirmation, ConfirmClearAll); err != nil {
		return nil, err
	}
	counts, err := s.data.ClearAll()
	if err != nil {
		return nil, fmt.Errorf("clear all: %w", err)
	}
	s.logger.Warn("all data cleared by admin", "users", counts.Users, "locations", counts.Locations)
	return counts, nil
}

func (s *Service) Cleanup(opts cleanup.Options) (*cleanup.Report, error) {
	if opts.InactiveDays < 0 {
		return nil, apperr.Invalid("days", "days must not be negative")
	}
	return s.sweeper.Run(opts)
}

func backupError(err error) error {
	switch {
	case errors.Is(err, backup.ErrNotConfigured):
		return apperr.Invalid("backup", "backups are not configured")
	case errors.Is(err, backup.ErrInProgress):
		return apperr.Invalid("backup", "a backup is already running")
	}
	return err
}

func (s *Service) Backup(ctx context.Context) (*model.Backup, error) {
	b, err := s.backups.RunNow(ctx)
	if err != nil {
		return nil, backupError(err)
	}
	return b, nil
}

func (s *Service) Backups() ([]model.Backup, backup.Status, error) {
	list, err := s.backups.List(backupListLimit)
	if err != nil {
		return nil, backup.Status{}, err
	}
	return list, s.backups.Status(), nil
}

func (s *Service) DownloadBackup(ctx context.Context, id int64) (io.ReadCloser, *model.Backup, error) {
	body, b, err := s.backups.Download(ctx, id)
	if err != nil {
		return nil, nil, backupError(err)
	}
	if b == nil {
		return nil, nil, apperr.NotFound("backup")
	}
	return body, b, nil
}
