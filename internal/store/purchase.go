package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zaikon/internal/model"
)

type PurchaseStore struct {
	db *sql.DB
}

func NewPurchaseStore(db *sql.DB) *PurchaseStore {
	return &PurchaseStore{db: db}
}

const purchaseSelect = `SELECT p.id, p.requested_by, p.requested_for, p.item_name, p.description, p.priority, p.status,
	p.expires_at, p.completed_at, p.completed_by, p.created_at, p.updated_at,
	COALESCE(rb.user_name, ''), COALESCE(rf.user_name, '')
	FROM temporary_purchases p
	LEFT JOIN users rb ON rb.id = p.requested_by
	LEFT JOIN users rf ON rf.id = p.requested_for`

func scanPurchase(scanner interface{ Scan(...any) error }) (*model.TemporaryPurchase, error) {
	var p model.TemporaryPurchase
	var expiresAt, completedAt sql.NullTime
	var completedBy sql.NullInt64
	err := scanner.Scan(
		&p.ID, &p.RequestedBy, &p.RequestedFor, &p.ItemName, &p.Description, &p.Priority, &p.Status,
		&expiresAt, &completedAt, &completedBy, &p.CreatedAt, &p.UpdatedAt,
		&p.RequesterName, &p.TargetName,
	)
	if err != nil {
		return nil, err
	}
	if expiresAt.Valid {
		p.ExpiresAt = &expiresAt.Time
	}
	if completedAt.Valid {
		p.CompletedAt = &completedAt.Time
	}
	if completedBy.Valid {
		p.CompletedBy = &completedBy.Int64
	}
	return &p, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func (s *PurchaseStore) Create(requestedBy, requestedFor int64, itemName, description string, priority model.Priority, expiresAt *time.Time) (*model.TemporaryPurchase, error) {
	result, err := s.db.Exec(
		`INSERT INTO temporary_purchases (requested_by, requested_for, item_name, description, priority, expires_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		requestedBy, requestedFor, itemName, description, priority, nullTime(expiresAt),
	)
	if err != nil {
		return nil, fmt.Errorf("insert temporary purchase: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *PurchaseStore) GetByID(id int64) (*model.TemporaryPurchase, error) {
	row := s.db.QueryRow(purchaseSelect+` WHERE p.id = ?`, id)
	p, err := scanPurchase(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get temporary purchase: %w", err)
	}
	return p, nil
}

// ListForUser returns purchases the user requested or is the target of.
func (s *PurchaseStore) ListForUser(userID int64) ([]model.TemporaryPurchase, error) {
	return s.list(
		purchaseSelect+` WHERE p.requested_by = ? OR p.requested_for = ?
		 ORDER BY p.created_at DESC, p.id DESC`,
		userID, userID,
	)
}

// ListActive returns pending, unexpired purchases involving the user, most
// urgent first.
func (s *PurchaseStore) ListActive(userID int64, now time.Time) ([]model.TemporaryPurchase, error) {
	return s.list(
		purchaseSelect+` WHERE (p.requested_by = ? OR p.requested_for = ?)
		   AND p.status = 'pending'
		   AND (p.expires_at IS NULL OR p.expires_at > ?)
		 ORDER BY CASE p.priority WHEN 'high' THEN 0 WHEN 'medium' THEN 1 ELSE 2 END, p.created_at ASC, p.id ASC`,
		userID, userID, now.UTC(),
	)
}

func (s *PurchaseStore) list(query string, args ...any) ([]model.TemporaryPurchase, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list temporary purchases: %w", err)
	}
	defer rows.Close()

	var purchases []model.TemporaryPurchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan temporary purchase: %w", err)
		}
		purchases = append(purchases, *p)
	}
	return purchases, rows.Err()
}

func (s *PurchaseStore) Update(id int64, itemName, description string, priority model.Priority, expiresAt *time.Time) (*model.TemporaryPurchase, error) {
	_, err := s.db.Exec(
		`UPDATE temporary_purchases
		 SET item_name = ?, description = ?, priority = ?, expires_at = ?, updated_at = ?
		 WHERE id = ?`,
		itemName, description, priority, nullTime(expiresAt), time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update temporary purchase: %w", err)
	}
	return s.GetByID(id)
}

func (s *PurchaseStore) Complete(id, completedBy int64, at time.Time) (*model.TemporaryPurchase, error) {
	at = at.UTC()
	_, err := s.db.Exec(
		`UPDATE temporary_purchases
		 SET status = 'completed', completed_at = ?, completed_by = ?, updated_at = ?
		 WHERE id = ?`,
		at, completedBy, at, id,
	)
	if err != nil {
		return nil, fmt.Errorf("complete temporary purchase: %w", err)
	}
	return s.GetByID(id)
}

func (s *PurchaseStore) Cancel(id int64) (*model.TemporaryPurchase, error) {
	_, err := s.db.Exec(
		`UPDATE temporary_purchases SET status = 'cancelled', updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("cancel temporary purchase: %w", err)
	}
	return s.GetByID(id)
}

func (s *PurchaseStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM temporary_purchases WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete temporary purchase: %w", err)
	}
	return nil
}

// DeleteExpired removes pending purchases whose expiry has passed.
func (s *PurchaseStore) DeleteExpired(now time.Time) (int64, error) {
	result, err := s.db.Exec(
		`DELETE FROM temporary_purchases WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC(),
	)
	if err != nil {
		return 0, fmt.Errorf("delete expired temporary purchases: %w", err)
	}
	count, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return count, nil
}

// CountExpired is the dry-run counterpart of DeleteExpired.
func (s *PurchaseStore) CountExpired(now time.Time) (int64, error) {
	var n int64
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM temporary_purchases WHERE status = 'pending' AND expires_at IS NOT NULL AND expires_at <= ?`,
		now.UTC(),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count expired temporary purchases: %w", err)
	}
	return n, nil
}
