package store

import (
	"time"

	"shoplist/internal/sortkey"
)

// List status values. Anything else is rejected at the service layer.
const (
	StatusTodo       = "todo"
	StatusInProgress = "inprogress"
	StatusDone       = "done"
)

type List struct {
	ID     string    `json:"id"`
	Status string    `json:"status"`
	Date   time.Time `json:"date"`
}

// Item is a single list entry. Parent is nil for root items. Sort is the
// scalar value of SortKey and exists only so the database can ORDER BY
// it; SortKey is the authoritative position.
type Item struct {
	ID      string      `json:"id"`
	Text    string      `json:"text"`
	Checked bool        `json:"checked"`
	Parent  *string     `json:"parent"`
	List    string      `json:"list"`
	Sort    float64     `json:"sort"`
	SortKey sortkey.Key `json:"-"`
}

type User struct {
	ID           int    `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
}

// ItemMove describes an atomic position update. SetParent distinguishes
// "reparent to Parent (possibly root)" from "leave the parent alone".
type ItemMove struct {
	Parent    *string
	SetParent bool
	Key       *sortkey.Key
}

// rowScanner is the subset of *sql.Row and *sql.Rows the mappers need.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanItem maps an item row onto the entity, including the 8-byte
// sort-key decode. Queries must select the columns in this order:
// id, text, checked, parent, list, sort, sort_fractions.
func scanItem(row rowScanner) (Item, error) {
	var item Item
	var rawKey []byte
	if err := row.Scan(&item.ID, &item.Text, &item.Checked, &item.Parent, &item.List, &item.Sort, &rawKey); err != nil {
		return Item{}, err
	}
	if len(rawKey) > 0 {
		key, err := sortkey.FromBytes(rawKey)
		if err != nil {
			return Item{}, err
		}
		item.SortKey = key
	}
	return item, nil
}

func scanList(row rowScanner) (List, error) {
	var list List
	if err := row.Scan(&list.ID, &list.Status, &list.Date); err != nil {
		return List{}, err
	}
	return list, nil
}
