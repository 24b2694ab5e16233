package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/dukerupert/zaikon/internal/model"
	"github.com/dukerupert/zaikon/internal/stock"
)

type ItemStore struct {
	db *sql.DB
}

func NewItemStore(db *sql.DB) *ItemStore {
	return &ItemStore{db: db}
}

func scanItem(scanner interface{ Scan(...any) error }) (*model.Item, error) {
	var i model.Item
	err := scanner.Scan(
		&i.ID, &i.Name, &i.LocationID, &i.Yellow, &i.Green, &i.Purple,
		&i.Amount, &i.Status, &i.InUse, &i.IsConsumable, &i.CreatedAt, &i.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &i, nil
}

const itemCols = `id, item_name, location_id, yellow, green, purple, amount, status, inuse, is_consumable, created_at, updated_at`

// Every statement that writes amount or thresholds also writes status from
// the same stock.Level.

func (s *ItemStore) Create(locationID int64, name string, level stock.Level, consumable bool) (*model.Item, error) {
	result, err := s.db.Exec(
		`INSERT INTO items (item_name, location_id, yellow, green, purple, amount, status, is_consumable)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		name, locationID, level.Yellow, level.Green, level.Purple, level.Amount, level.Status(), consumable,
	)
	if err != nil {
		return nil, fmt.Errorf("insert item: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *ItemStore) GetByID(id int64) (*model.Item, error) {
	row := s.db.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	i, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return i, nil
}

func getItemTx(tx *sql.Tx, id int64) (*model.Item, error) {
	row := tx.QueryRow(`SELECT `+itemCols+` FROM items WHERE id = ?`, id)
	i, err := scanItem(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return i, nil
}

func (s *ItemStore) ListByLocation(locationID int64) ([]model.Item, error) {
	rows, err := s.db.Query(
		`SELECT `+itemCols+` FROM items WHERE location_id = ? ORDER BY item_name ASC, id ASC`,
		locationID,
	)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []model.Item
	for rows.Next() {
		i, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *i)
	}
	return items, rows.Err()
}

// ListReplenish returns non-consumable items at the last in-use position
// across every location the user belongs to.
func (s *ItemStore) ListReplenish(userID int64) ([]model.LocatedItem, error) {
	return s.listForUser(userID, `i.is_consumable = 0 AND i.inuse = ?`, stock.InUseLow)
}

// ListShopping returns Red items across every location the user belongs to.
func (s *ItemStore) ListShopping(userID int64) ([]model.LocatedItem, error) {
	return s.listForUser(userID, `i.status = ?`, stock.StatusRed)
}

func (s *ItemStore) listForUser(userID int64, cond string, arg any) ([]model.LocatedItem, error) {
	rows, err := s.db.Query(
		`SELECT i.id, i.item_name, i.location_id, i.yellow, i.green, i.purple, i.amount, i.status,
		        i.inuse, i.is_consumable, i.created_at, i.updated_at, l.location_name
		 FROM items i
		 JOIN locations l ON l.id = i.location_id
		 JOIN members m ON m.location_id = i.location_id
		 WHERE m.user_id = ? AND `+cond+`
		 ORDER BY l.location_name ASC, i.item_name ASC, i.id ASC`,
		userID, arg,
	)
	if err != nil {
		return nil, fmt.Errorf("list items for user: %w", err)
	}
	defer rows.Close()

	var items []model.LocatedItem
	for rows.Next() {
		var li model.LocatedItem
		if err := rows.Scan(
			&li.ID, &li.Name, &li.LocationID, &li.Yellow, &li.Green, &li.Purple,
			&li.Amount, &li.Status, &li.InUse, &li.IsConsumable, &li.CreatedAt, &li.UpdatedAt,
			&li.LocationName,
		); err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// Update replaces the editable fields of an item and re-derives its status.
// A consumable item has no in-use position, so the ring resets to idle.
func (s *ItemStore) Update(id int64, name string, level stock.Level, consumable bool) (*model.Item, error) {
	_, err := s.db.Exec(
		`UPDATE items
		 SET item_name = ?, yellow = ?, green = ?, purple = ?, amount = ?, status = ?, is_consumable = ?,
		     inuse = CASE WHEN ? THEN ? ELSE inuse END, updated_at = ?
		 WHERE id = ?`,
		name, level.Yellow, level.Green, level.Purple, level.Amount, level.Status(), consumable,
		consumable, stock.InUseIdle, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("update item: %w", err)
	}
	return s.GetByID(id)
}

// ApplyAmount applies an amount action to the stored amount and writes the
// new amount and status together. Returns nil if the item does not exist.
func (s *ItemStore) ApplyAmount(id int64, action stock.Action, value int) (*model.Item, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	item, err := getItemTx(tx, id)
	if err != nil || item == nil {
		return nil, err
	}

	amount, err := stock.ApplyAction(item.Amount, action, value)
	if err != nil {
		return nil, err
	}
	level := item.Level()
	level.Amount = amount
	if err := setAmountTx(tx, id, item.InUse, level); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.GetByID(id)
}

// AdvanceInUse moves the item one step around the in-use ring, reading and
// writing inside one transaction. Consumable items come back unchanged with
// changed set to false. Returns a nil item if it does not exist.
func (s *ItemStore) AdvanceInUse(id int64) (item *model.Item, changed bool, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	item, err = getItemTx(tx, id)
	if err != nil || item == nil {
		return nil, false, err
	}

	inUse, amount, changed := stock.Advance(item.InUse, item.Amount, item.IsConsumable)
	if !changed {
		return item, false, nil
	}
	level := item.Level()
	level.Amount = amount
	if err := setAmountTx(tx, id, inUse, level); err != nil {
		return nil, false, err
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("commit: %w", err)
	}

	item, err = s.GetByID(id)
	return item, true, err
}

func setAmountTx(tx *sql.Tx, id int64, inUse int, level stock.Level) error {
	_, err := tx.Exec(
		`UPDATE items SET inuse = ?, amount = ?, status = ?, updated_at = ? WHERE id = ?`,
		inUse, level.Amount, level.Status(), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("update item amount: %w", err)
	}
	return nil
}

// Move reassigns the item to another location.
func (s *ItemStore) Move(id, toLocationID int64) (*model.Item, error) {
	_, err := s.db.Exec(
		`UPDATE items SET location_id = ?, updated_at = ? WHERE id = ?`,
		toLocationID, time.Now().UTC(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("move item: %w", err)
	}
	return s.GetByID(id)
}

func (s *ItemStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM items WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	return nil
}
