package model

import (
	"time"

	"github.com/dukerupert/zaikon/internal/stock"
)

type Item struct {
	ID           int64        `json:"id"`
	Name         string       `json:"item_name"`
	LocationID   int64        `json:"location_id"`
	Yellow       int          `json:"yellow"`
	Green        int          `json:"green"`
	Purple       int          `json:"purple"`
	Amount       int          `json:"amount"`
	Status       stock.Status `json:"status"`
	InUse        int          `json:"inuse"`
	IsConsumable bool         `json:"is_consumable"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (i *Item) Level() stock.Level {
	return stock.Level{Amount: i.Amount, Yellow: i.Yellow, Green: i.Green, Purple: i.Purple}
}

// LocatedItem is an item together with the name of the location holding it,
// used by the cross-location replenish and shopping lists.
type LocatedItem struct {
	Item
	LocationName string `json:"location_name"`
}
