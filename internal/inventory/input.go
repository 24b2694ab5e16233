package inventory

import (
	"bytes"
	"encoding/json"
	"math"
	"strings"

	"github.com/dukerupert/zaikon/internal/apperr"
	"github.com/dukerupert/zaikon/internal/stock"
)

// Number is a numeric request field that arrives either as a JSON number
// or as a string from a form. Coercion happens in the stock package.
type Number string

func (n *Number) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*n = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*n = Number(s)
		return nil
	}
	*n = Number(data)
	return nil
}

func (n Number) Blank() bool { return strings.TrimSpace(string(n)) == "" }

// Int coerces the field. Blank input yields fallback; anything that is not a
// whole number is a validation failure naming field.
func (n Number) Int(field string, fallback int) (int, error) {
	if n.Blank() {
		return fallback, nil
	}
	f := stock.Coerce(string(n))
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, apperr.Invalid(field, "%s must be a number", field)
	}
	if f != math.Trunc(f) {
		return 0, apperr.Invalid(field, "%s must be a whole number", field)
	}
	if f > math.MaxInt32 || f < math.MinInt32 {
		return 0, apperr.Invalid(field, "%s is out of range", field)
	}
	return int(f), nil
}

// ItemInput is the editable part of an item. On update blank fields keep
// their current value.
type ItemInput struct {
	Name         string `json:"item_name"`
	Yellow       Number `json:"yellow"`
	Green        Number `json:"green"`
	Purple       Number `json:"purple"`
	Amount       Number `json:"amount"`
	IsConsumable *bool  `json:"is_consumable"`
}

// level resolves the input against base, which is the default level on
// create and the stored level on update. Thresholds are not checked for
// ordering. A negative amount clamps to zero.
func (in ItemInput) level(base stock.Level) (stock.Level, error) {
	var (
		l   stock.Level
		err error
	)
	if l.Yellow, err = in.Yellow.Int("yellow", base.Yellow); err != nil {
		return l, err
	}
	if l.Green, err = in.Green.Int("green", base.Green); err != nil {
		return l, err
	}
	if l.Purple, err = in.Purple.Int("purple", base.Purple); err != nil {
		return l, err
	}
	if l.Amount, err = in.Amount.Int("amount", base.Amount); err != nil {
		return l, err
	}
	if l.Amount < 0 {
		l.Amount = 0
	}
	return l, nil
}

// MemberLookup names the user to add to a location. Email wins when both
// are given.
type MemberLookup struct {
	UserName string `json:"user_name"`
	Email    string `json:"email"`
}
