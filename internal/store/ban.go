package store

import (
	"database/sql"
	"fmt"

	"github.com/dukerupert/zaikon/internal/model"
)

type BanStore struct {
	db *sql.DB
}

func NewBanStore(db *sql.DB) *BanStore {
	return &BanStore{db: db}
}

const banCols = `id, email, reason, created_at`

func scanBan(scanner interface{ Scan(...any) error }) (*model.BanEntry, error) {
	var b model.BanEntry
	if err := scanner.Scan(&b.ID, &b.Email, &b.Reason, &b.CreatedAt); err != nil {
		return nil, err
	}
	return &b, nil
}

// Add bans an email. Banning an address twice updates the reason.
func (s *BanStore) Add(email, reason string) (*model.BanEntry, error) {
	_, err := s.db.Exec(
		`INSERT INTO ban_emails (email, reason) VALUES (?, ?)
		 ON CONFLICT(email) DO UPDATE SET reason = excluded.reason`,
		email, reason,
	)
	if err != nil {
		return nil, fmt.Errorf("insert ban: %w", err)
	}
	return s.GetByEmail(email)
}

func (s *BanStore) GetByEmail(email string) (*model.BanEntry, error) {
	row := s.db.QueryRow(`SELECT `+banCols+` FROM ban_emails WHERE email = ?`, email)
	b, err := scanBan(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get ban: %w", err)
	}
	return b, nil
}

func (s *BanStore) IsBanned(email string) (bool, error) {
	var banned bool
	err := s.db.QueryRow(`SELECT EXISTS (SELECT 1 FROM ban_emails WHERE email = ?)`, email).Scan(&banned)
	if err != nil {
		return false, fmt.Errorf("check ban: %w", err)
	}
	return banned, nil
}

func (s *BanStore) List() ([]model.BanEntry, error) {
	rows, err := s.db.Query(`SELECT ` + banCols + ` FROM ban_emails ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list bans: %w", err)
	}
	defer rows.Close()

	var bans []model.BanEntry
	for rows.Next() {
		b, err := scanBan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ban: %w", err)
		}
		bans = append(bans, *b)
	}
	return bans, rows.Err()
}

// Remove deletes a ban by id and reports whether one existed.
func (s *BanStore) Remove(id int64) (bool, error) {
	result, err := s.db.Exec(`DELETE FROM ban_emails WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete ban: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}
