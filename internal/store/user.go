package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zaikon/internal/model"
)

type UserStore struct {
	db *sql.DB
}

func NewUserStore(db *sql.DB) *UserStore {
	return &UserStore{db: db}
}

func scanUser(scanner interface{ Scan(...any) error }) (*model.User, error) {
	var u model.User
	var lineID sql.NullString
	var lastLogin, lastActivity sql.NullTime
	err := scanner.Scan(
		&u.ID, &u.Email, &u.UserName, &u.UserDescription, &lineID,
		&lastLogin, &lastActivity, &u.CreatedAt, &u.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if lineID.Valid {
		u.LineUserID = &lineID.String
	}
	if lastLogin.Valid {
		u.LastLoginAt = &lastLogin.Time
	}
	if lastActivity.Valid {
		u.LastActivityAt = &lastActivity.Time
	}
	return &u, nil
}

const userCols = `id, email, user_name, user_description, line_user_id, last_login_at, last_activity_at, created_at, updated_at`

func (s *UserStore) Create(email, name, description string) (*model.User, error) {
	result, err := s.db.Exec(
		`INSERT INTO users (email, user_name, user_description) VALUES (?, ?, ?)`,
		email, name, description,
	)
	if err != nil {
		return nil, fmt.Errorf("insert user: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) GetByID(id int64) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByEmail(email string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE email = ?`, email)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

func (s *UserStore) GetByLineUserID(lineUserID string) (*model.User, error) {
	row := s.db.QueryRow(`SELECT `+userCols+` FROM users WHERE line_user_id = ?`, lineUserID)
	u, err := scanUser(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get user by line id: %w", err)
	}
	return u, nil
}

// ListByName returns every user with exactly this display name.
func (s *UserStore) ListByName(name string) ([]model.User, error) {
	return s.list(`SELECT `+userCols+` FROM users WHERE user_name = ? ORDER BY id ASC`, name)
}

func (s *UserStore) List() ([]model.User, error) {
	return s.list(`SELECT ` + userCols + ` FROM users ORDER BY created_at DESC, id DESC`)
}

// ListInactive returns users whose most recent activity (or login, or
// registration) is before cutoff.
func (s *UserStore) ListInactive(cutoff time.Time) ([]model.User, error) {
	return s.list(
		`SELECT `+userCols+` FROM users
		 WHERE COALESCE(last_activity_at, last_login_at, created_at) < ?
		 ORDER BY id ASC`,
		cutoff.UTC(),
	)
}

// ListOrphaned returns users that belong to no location.
func (s *UserStore) ListOrphaned() ([]model.User, error) {
	return s.list(
		`SELECT ` + userCols + ` FROM users u
		 WHERE NOT EXISTS (SELECT 1 FROM members m WHERE m.user_id = u.id)
		 ORDER BY id ASC`,
	)
}

func (s *UserStore) list(query string, args ...any) ([]model.User, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	var users []model.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

func (s *UserStore) UpdateProfile(id int64, name, description string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET user_name = ?, user_description = ?, updated_at = ? WHERE id = ?`,
		name, description, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user profile: %w", err)
	}
	return s.GetByID(id)
}

func (s *UserStore) UpdateEmail(id int64, email string) (*model.User, error) {
	_, err := s.db.Exec(
		`UPDATE users SET email = ?, updated_at = ? WHERE id = ?`,
		email, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update user email: %w", err)
	}
	return s.GetByID(id)
}

// SetLineUserID links (or with nil, unlinks) a chat account.
func (s *UserStore) SetLineUserID(id int64, lineUserID *string) error {
	var v sql.NullString
	if lineUserID != nil {
		v = sql.NullString{String: *lineUserID, Valid: true}
	}
	_, err := s.db.Exec(
		`UPDATE users SET line_user_id = ?, updated_at = ? WHERE id = ?`,
		v, time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set line user id: %w", err)
	}
	return nil
}

func (s *UserStore) TouchLogin(id int64, at time.Time) error {
	at = at.UTC()
	_, err := s.db.Exec(
		`UPDATE users SET last_login_at = ?, last_activity_at = ? WHERE id = ?`,
		at, at, id,
	)
	if err != nil {
		return fmt.Errorf("touch login: %w", err)
	}
	return nil
}

func (s *UserStore) TouchActivity(id int64, at time.Time) error {
	_, err := s.db.Exec(`UPDATE users SET last_activity_at = ? WHERE id = ?`, at.UTC(), id)
	if err != nil {
		return fmt.Errorf("touch activity: %w", err)
	}
	return nil
}

// DeleteResult summarizes a cascading user deletion.
type DeleteResult struct {
	OwnedLocations    int `json:"owned_locations"`
	OrphanedLocations int `json:"orphaned_locations"`
	Purchases         int `json:"purchases"`
}

// DeleteCascade removes a user and everything hanging off them in one
// transaction: locations they created (with items and members), their
// memberships, any location left without members, their purchase requests,
// sessions and push subscriptions.
func (s *UserStore) DeleteCascade(id int64) (*DeleteResult, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var res DeleteResult

	owned, err := queryIDsTx(tx, `SELECT id FROM locations WHERE created_by = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("list owned locations: %w", err)
	}
	for _, locID := range owned {
		if err := deleteLocationTx(tx, locID); err != nil {
			return nil, err
		}
	}
	res.OwnedLocations = len(owned)

	joined, err := queryIDsTx(tx, `SELECT location_id FROM members WHERE user_id = ?`, id)
	if err != nil {
		return nil, fmt.Errorf("list memberships: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE user_id = ?`, id); err != nil {
		return nil, fmt.Errorf("delete memberships: %w", err)
	}
	for _, locID := range joined {
		n, err := memberCountTx(tx, locID)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			if err := deleteLocationTx(tx, locID); err != nil {
				return nil, err
			}
			res.OrphanedLocations++
		}
	}

	result, err := tx.Exec(
		`DELETE FROM temporary_purchases WHERE requested_by = ? OR requested_for = ?`, id, id,
	)
	if err != nil {
		return nil, fmt.Errorf("delete temporary purchases: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		res.Purchases = int(n)
	}
	if _, err := tx.Exec(
		`UPDATE temporary_purchases SET completed_by = NULL WHERE completed_by = ?`, id,
	); err != nil {
		return nil, fmt.Errorf("clear purchase completer: %w", err)
	}

	for _, q := range []string{
		`DELETE FROM sessions WHERE user_id = ?`,
		`DELETE FROM push_subscriptions WHERE user_id = ?`,
		`DELETE FROM users WHERE id = ?`,
	} {
		if _, err := tx.Exec(q, id); err != nil {
			return nil, fmt.Errorf("delete user: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return &res, nil
}

func queryIDsTx(tx *sql.Tx, query string, args ...any) ([]int64, error) {
	rows, err := tx.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
