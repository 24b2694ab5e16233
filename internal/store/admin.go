package store

import (
	"database/sql"
	"fmt"
)

// AdminStore holds whole-database operations reserved for administrators.
type AdminStore struct {
	db *sql.DB
}

func NewAdminStore(db *sql.DB) *AdminStore {
	return &AdminStore{db: db}
}

type Counts struct {
	Users     int `json:"users"`
	Locations int `json:"locations"`
	Members   int `json:"members"`
	Items     int `json:"items"`
	Purchases int `json:"purchases"`
	Bans      int `json:"bans"`
}

func (s *AdminStore) Counts() (*Counts, error) {
	var c Counts
	err := s.db.QueryRow(
		`SELECT
		   (SELECT COUNT(*) FROM users),
		   (SELECT COUNT(*) FROM locations),
		   (SELECT COUNT(*) FROM members),
		   (SELECT COUNT(*) FROM items),
		   (SELECT COUNT(*) FROM temporary_purchases),
		   (SELECT COUNT(*) FROM ban_emails)`,
	).Scan(&c.Users, &c.Locations, &c.Members, &c.Items, &c.Purchases, &c.Bans)
	if err != nil {
		return nil, fmt.Errorf("count rows: %w", err)
	}
	return &c, nil
}

// ClearAll deletes every user and all inventory data in one transaction.
// The ban list and backup history are kept.
func (s *AdminStore) ClearAll() (*Counts, error) {
	before, err := s.Counts()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{
		"items", "members", "locations", "temporary_purchases",
		"sessions", "login_codes", "push_subscriptions", "users",
	} {
		if _, err := tx.Exec(`DELETE FROM ` + table); err != nil {
			return nil, fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	before.Bans = 0
	return before, nil
}
