// Package store persists lists, items and users in PostgreSQL. Items
// carry their sort key twice: the raw fraction as an 8-byte blob and its
// scalar value in a separate column used purely for ORDER BY.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"shoplist/internal/sortkey"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const itemColumns = "id, text, checked, parent, list, sort, sort_fractions"

// --- lists ---

func (s *PostgresStore) CreateList(ctx context.Context) (List, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return List{}, fmt.Errorf("allocate list id: %w", err)
	}
	row := s.db.QueryRowContext(ctx, `
		INSERT INTO lists (id, status)
		VALUES ($1, $2)
		RETURNING id, status, date
	`, id.String(), StatusTodo)
	list, err := scanList(row)
	if err != nil {
		return List{}, fmt.Errorf("insert list: %w", err)
	}
	slog.InfoContext(ctx, "created list", "list", list.ID)
	return list, nil
}

func (s *PostgresStore) ListLists(ctx context.Context) ([]List, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, status, date FROM lists ORDER BY date DESC`)
	if err != nil {
		return nil, fmt.Errorf("query lists: %w", err)
	}
	defer rows.Close()

	lists := []List{}
	for rows.Next() {
		list, err := scanList(rows)
		if err != nil {
			return nil, fmt.Errorf("scan list: %w", err)
		}
		lists = append(lists, list)
	}
	return lists, rows.Err()
}

func (s *PostgresStore) GetList(ctx context.Context, listID string) (List, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id, status, date FROM lists WHERE id = $1`, listID)
	list, err := scanList(row)
	if errors.Is(err, sql.ErrNoRows) {
		return List{}, fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	if err != nil {
		return List{}, fmt.Errorf("get list %s: %w", listID, err)
	}
	return list, nil
}

func (s *PostgresStore) UpdateListStatus(ctx context.Context, listID, status string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE lists SET status = $1 WHERE id = $2`, status, listID)
	if err != nil {
		return fmt.Errorf("update list status: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("list %s: %w", listID, ErrNotFound)
	}
	slog.InfoContext(ctx, "updated list status", "list", listID, "status", status)
	return nil
}

// --- items ---

func (s *PostgresStore) CreateItem(ctx context.Context, listID, text string, key sortkey.Key) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("allocate item id: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO items (id, text, checked, parent, list, sort, sort_fractions)
		VALUES ($1, $2, FALSE, NULL, $3, $4, $5)
	`, id.String(), text, listID, key.Scalar(), key.Bytes())
	if err != nil {
		return "", fmt.Errorf("insert item: %w", err)
	}
	slog.InfoContext(ctx, "created item", "item", id.String(), "list", listID)
	return id.String(), nil
}

// ListItems returns every item of the list ordered by ascending scalar
// sort value. Ids are UUIDv7 and therefore time-ordered, so the
// secondary sort breaks scalar ties by insertion order.
func (s *PostgresStore) ListItems(ctx context.Context, listID string) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE list = $1 ORDER BY sort ASC, id ASC
	`, listID)
	if err != nil {
		return nil, fmt.Errorf("query items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func (s *PostgresStore) ListAllItems(ctx context.Context) ([]Item, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT ` + itemColumns + ` FROM items ORDER BY sort ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("query all items: %w", err)
	}
	defer rows.Close()
	return collectItems(rows)
}

func collectItems(rows *sql.Rows) ([]Item, error) {
	items := []Item{}
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// LastItem returns the item with the highest scalar sort value in the
// list, or nil when the list is empty.
func (s *PostgresStore) LastItem(ctx context.Context, listID string) (*Item, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT `+itemColumns+` FROM items WHERE list = $1 ORDER BY sort DESC, id DESC LIMIT 1
	`, listID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get last item: %w", err)
	}
	return &item, nil
}

func (s *PostgresStore) GetItem(ctx context.Context, itemID string) (Item, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM items WHERE id = $1`, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return item, nil
}

func (s *PostgresStore) UpdateItemChecked(ctx context.Context, itemID string, checked bool) (Item, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE items SET checked = $1 WHERE id = $2
		RETURNING `+itemColumns+`
	`, checked, itemID)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Item{}, fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	if err != nil {
		return Item{}, fmt.Errorf("update checked: %w", err)
	}
	slog.InfoContext(ctx, "updated item checked", "item", itemID, "checked", checked)
	return item, nil
}

func (s *PostgresStore) UpdateItemText(ctx context.Context, itemID, text string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE items SET text = $1 WHERE id = $2`, text, itemID)
	if err != nil {
		return fmt.Errorf("update text: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	slog.InfoContext(ctx, "updated item text", "item", itemID)
	return nil
}

// MoveItem applies mv as a single UPDATE statement, so a reparent and a
// key change are never observable half-applied.
func (s *PostgresStore) MoveItem(ctx context.Context, itemID string, mv ItemMove) error {
	var sets []string
	var args []any
	if mv.SetParent {
		args = append(args, mv.Parent)
		sets = append(sets, fmt.Sprintf("parent = $%d", len(args)))
	}
	if mv.Key != nil {
		args = append(args, mv.Key.Scalar())
		sets = append(sets, fmt.Sprintf("sort = $%d", len(args)))
		args = append(args, mv.Key.Bytes())
		sets = append(sets, fmt.Sprintf("sort_fractions = $%d", len(args)))
	}
	if len(sets) == 0 {
		return nil
	}
	args = append(args, itemID)
	query := fmt.Sprintf("UPDATE items SET %s WHERE id = $%d", strings.Join(sets, ", "), len(args))

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("move item: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	slog.InfoContext(ctx, "moved item", "item", itemID, "setParent", mv.SetParent)
	return nil
}

func (s *PostgresStore) DeleteItem(ctx context.Context, itemID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM items WHERE id = $1`, itemID)
	if err != nil {
		return fmt.Errorf("delete item: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return fmt.Errorf("item %s: %w", itemID, ErrNotFound)
	}
	slog.InfoContext(ctx, "deleted item", "item", itemID)
	return nil
}

// --- users ---

func (s *PostgresStore) FindUserByUsername(ctx context.Context, username string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		SELECT id, username, password_hash FROM users WHERE username = $1
	`, username).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, fmt.Errorf("user %s: %w", username, ErrNotFound)
	}
	if err != nil {
		return User{}, fmt.Errorf("find user: %w", err)
	}
	return user, nil
}

func (s *PostgresStore) CreateUser(ctx context.Context, username, passwordHash string) (User, error) {
	var user User
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, username, password_hash
	`, username, passwordHash).Scan(&user.ID, &user.Username, &user.PasswordHash)
	if err != nil {
		return User{}, fmt.Errorf("insert user: %w", err)
	}
	return user, nil
}
