package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zaikon/internal/model"
)

type LocationStore struct {
	db *sql.DB
}

func NewLocationStore(db *sql.DB) *LocationStore {
	return &LocationStore{db: db}
}

func scanLocation(scanner interface{ Scan(...any) error }) (*model.Location, error) {
	var l model.Location
	err := scanner.Scan(&l.ID, &l.Name, &l.CreatedBy, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func scanMember(scanner interface{ Scan(...any) error }) (*model.Member, error) {
	var m model.Member
	err := scanner.Scan(&m.ID, &m.LocationID, &m.UserID, &m.JoinedAt)
	if err != nil {
		return nil, err
	}
	return &m, nil
}

const locationCols = `id, location_name, created_by, created_at, updated_at`
const memberCols = `id, location_id, user_id, created_at`

// Create inserts the location and its creator's membership together.
func (s *LocationStore) Create(name string, createdBy int64) (*model.Location, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(
		`INSERT INTO locations (location_name, created_by) VALUES (?, ?)`,
		name, createdBy,
	)
	if err != nil {
		return nil, fmt.Errorf("insert location: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	if _, err := tx.Exec(
		`INSERT INTO members (location_id, user_id) VALUES (?, ?)`,
		id, createdBy,
	); err != nil {
		return nil, fmt.Errorf("insert creator membership: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

func (s *LocationStore) GetByID(id int64) (*model.Location, error) {
	row := s.db.QueryRow(`SELECT `+locationCols+` FROM locations WHERE id = ?`, id)
	l, err := scanLocation(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get location: %w", err)
	}
	return l, nil
}

func (s *LocationStore) Rename(id int64, name string) (*model.Location, error) {
	_, err := s.db.Exec(
		`UPDATE locations SET location_name = ?, updated_at = ? WHERE id = ?`,
		name, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("rename location: %w", err)
	}
	return s.GetByID(id)
}

func (s *LocationStore) ListForUser(userID int64) ([]model.Location, error) {
	rows, err := s.db.Query(
		`SELECT l.id, l.location_name, l.created_by, l.created_at, l.updated_at
		 FROM locations l
		 JOIN members m ON l.id = m.location_id
		 WHERE m.user_id = ?
		 ORDER BY l.location_name ASC, l.id ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list locations for user: %w", err)
	}
	defer rows.Close()

	var locations []model.Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan location: %w", err)
		}
		locations = append(locations, *l)
	}
	return locations, rows.Err()
}

func (s *LocationStore) Count() (int, error) {
	var n int
	if err := s.db.QueryRow(`SELECT COUNT(*) FROM locations`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count locations: %w", err)
	}
	return n, nil
}

// Delete removes the location with its items and memberships in one
// transaction. Nothing is removed if any step fails.
func (s *LocationStore) Delete(id int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := deleteLocationTx(tx, id); err != nil {
		return err
	}
	return tx.Commit()
}

func deleteLocationTx(tx *sql.Tx, id int64) error {
	if _, err := tx.Exec(`DELETE FROM items WHERE location_id = ?`, id); err != nil {
		return fmt.Errorf("delete location items: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM members WHERE location_id = ?`, id); err != nil {
		return fmt.Errorf("delete location members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM locations WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete location: %w", err)
	}
	return nil
}

func memberCountTx(tx *sql.Tx, locationID int64) (int, error) {
	var n int
	err := tx.QueryRow(`SELECT COUNT(*) FROM members WHERE location_id = ?`, locationID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count members: %w", err)
	}
	return n, nil
}

// AddMember adds userID to the location. Adding an existing member is a
// no-op that returns the existing row.
func (s *LocationStore) AddMember(locationID, userID int64) (*model.Member, error) {
	_, err := s.db.Exec(
		`INSERT INTO members (location_id, user_id) VALUES (?, ?)
		 ON CONFLICT(location_id, user_id) DO NOTHING`,
		locationID, userID,
	)
	if err != nil {
		return nil, fmt.Errorf("add member: %w", err)
	}
	return s.GetMember(locationID, userID)
}

func (s *LocationStore) GetMember(locationID, userID int64) (*model.Member, error) {
	row := s.db.QueryRow(
		`SELECT `+memberCols+` FROM members WHERE location_id = ? AND user_id = ?`,
		locationID, userID,
	)
	m, err := scanMember(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get member: %w", err)
	}
	return m, nil
}

func (s *LocationStore) IsMember(locationID, userID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS (SELECT 1 FROM members WHERE location_id = ? AND user_id = ?)`,
		locationID, userID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return exists, nil
}

// SharesLocation reports whether both users belong to at least one common
// location.
func (s *LocationStore) SharesLocation(userID, otherID int64) (bool, error) {
	var exists bool
	err := s.db.QueryRow(
		`SELECT EXISTS (
			SELECT 1 FROM members a JOIN members b ON a.location_id = b.location_id
			WHERE a.user_id = ? AND b.user_id = ?)`,
		userID, otherID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check shared location: %w", err)
	}
	return exists, nil
}

func (s *LocationStore) ListMembers(locationID int64) ([]model.MemberProfile, error) {
	rows, err := s.db.Query(
		`SELECT m.id, m.location_id, m.user_id, m.created_at, u.user_name, u.email, l.created_by = u.id
		 FROM members m
		 JOIN users u ON u.id = m.user_id
		 JOIN locations l ON l.id = m.location_id
		 WHERE m.location_id = ?
		 ORDER BY m.created_at ASC, m.id ASC`,
		locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []model.MemberProfile
	for rows.Next() {
		var mp model.MemberProfile
		if err := rows.Scan(
			&mp.ID, &mp.LocationID, &mp.UserID, &mp.JoinedAt,
			&mp.UserName, &mp.Email, &mp.IsCreator,
		); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, mp)
	}
	return members, rows.Err()
}

// RemoveMember deletes one membership. When it was the last one the
// location is deleted with its items in the same transaction, and
// locationDeleted is true.
func (s *LocationStore) RemoveMember(locationID, userID int64) (locationDeleted bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM members WHERE location_id = ? AND user_id = ?`,
		locationID, userID,
	); err != nil {
		return false, fmt.Errorf("remove member: %w", err)
	}

	remaining, err := memberCountTx(tx, locationID)
	if err != nil {
		return false, err
	}
	if remaining == 0 {
		if err := deleteLocationTx(tx, locationID); err != nil {
			return false, err
		}
		locationDeleted = true
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return locationDeleted, nil
}
