// Package app orchestrates list and item operations over the store,
// computes item positions, and broadcasts change notifications.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"shoplist/internal/events"
	"shoplist/internal/search"
	"shoplist/internal/sortkey"
	"shoplist/internal/store"
	"shoplist/internal/tree"
)

// Store is the persistence surface the service needs.
type Store interface {
	CreateList(ctx context.Context) (store.List, error)
	ListLists(ctx context.Context) ([]store.List, error)
	GetList(ctx context.Context, listID string) (store.List, error)
	UpdateListStatus(ctx context.Context, listID, status string) error

	CreateItem(ctx context.Context, listID, text string, key sortkey.Key) (string, error)
	ListItems(ctx context.Context, listID string) ([]store.Item, error)
	ListAllItems(ctx context.Context) ([]store.Item, error)
	LastItem(ctx context.Context, listID string) (*store.Item, error)
	GetItem(ctx context.Context, itemID string) (store.Item, error)
	UpdateItemChecked(ctx context.Context, itemID string, checked bool) (store.Item, error)
	UpdateItemText(ctx context.Context, itemID, text string) error
	MoveItem(ctx context.Context, itemID string, mv store.ItemMove) error
	DeleteItem(ctx context.Context, itemID string) error
}

// Publisher broadcasts change events to connected clients.
type Publisher interface {
	Publish(event events.Event) error
}

type Service struct {
	store  Store
	hub    Publisher
	search *search.Service
}

func New(dataStore Store, hub Publisher, searchService *search.Service) *Service {
	return &Service{
		store:  dataStore,
		hub:    hub,
		search: searchService,
	}
}

// Bootstrap pushes the current item set into the search index. Failures
// are logged, not fatal; search is an optional collaborator.
func (s *Service) Bootstrap(ctx context.Context) error {
	items, err := s.store.ListAllItems(ctx)
	if err != nil {
		return fmt.Errorf("load items for reindex: %w", err)
	}
	records := make([]search.Record, 0, len(items))
	for _, item := range items {
		records = append(records, searchRecord(item))
	}
	s.search.ReindexAll(records)
	return nil
}

// --- lists ---

func (s *Service) Lists(ctx context.Context) ([]store.List, error) {
	lists, err := s.store.ListLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("get lists: %w", err)
	}
	return lists, nil
}

func (s *Service) CreateList(ctx context.Context) (store.List, error) {
	list, err := s.store.CreateList(ctx)
	if err != nil {
		return store.List{}, fmt.Errorf("create list: %w", err)
	}
	s.publish(events.ListCreated(list.ID))
	return list, nil
}

func (s *Service) GetList(ctx context.Context, listID string) (store.List, error) {
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return store.List{}, wrapStoreErr("get list", err)
	}
	return list, nil
}

// ActiveList returns the most recently created list that is not done,
// or nil when every list is done (or none exist). Callers handle
// absence explicitly; nothing is auto-created here.
func (s *Service) ActiveList(ctx context.Context) (*store.List, error) {
	lists, err := s.store.ListLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("get lists: %w", err)
	}
	// ListLists orders by date descending, so the first match wins.
	for i := range lists {
		if lists[i].Status != store.StatusDone {
			return &lists[i], nil
		}
	}
	return nil, nil
}

var validStatuses = []string{store.StatusTodo, store.StatusInProgress, store.StatusDone}

func (s *Service) UpdateListStatus(ctx context.Context, listID, status string) (store.List, error) {
	if !slices.Contains(validStatuses, status) {
		return store.List{}, invalidInput("INVALID_STATUS", fmt.Sprintf("invalid status %q", status))
	}
	if _, err := s.store.GetList(ctx, listID); err != nil {
		return store.List{}, wrapStoreErr("get list to update", err)
	}
	if err := s.store.UpdateListStatus(ctx, listID, status); err != nil {
		return store.List{}, wrapStoreErr("update list status", err)
	}
	list, err := s.store.GetList(ctx, listID)
	if err != nil {
		return store.List{}, wrapStoreErr("get list after update", err)
	}
	s.publish(events.ListUpdated(listID))
	return list, nil
}

// --- items ---

// Items returns the list's items as a forest of nested nodes.
func (s *Service) Items(ctx context.Context, listID string) ([]*tree.Node, error) {
	if _, err := s.store.GetList(ctx, listID); err != nil {
		return nil, wrapStoreErr("get list for items", err)
	}
	items, err := s.store.ListItems(ctx, listID)
	if err != nil {
		return nil, fmt.Errorf("get items: %w", err)
	}
	return tree.Build(items), nil
}

// CreateItem appends a new unchecked root item at the end of the list.
// With after set, the item is immediately moved behind that sibling.
func (s *Service) CreateItem(ctx context.Context, listID, text string, after *string) (string, error) {
	if _, err := s.store.GetList(ctx, listID); err != nil {
		return "", wrapStoreErr("get list for new item", err)
	}

	last, err := s.store.LastItem(ctx, listID)
	if err != nil {
		return "", fmt.Errorf("get last item: %w", err)
	}
	var lastKey *sortkey.Key
	if last != nil {
		lastKey = &last.SortKey
	}
	key, err := sortkey.Mediant(lastKey, nil)
	if err != nil {
		return "", fmt.Errorf("compute append key: %w", err)
	}

	itemID, err := s.store.CreateItem(ctx, listID, text, key)
	if err != nil {
		return "", fmt.Errorf("create item: %w", err)
	}

	if after != nil {
		if _, err := s.moveItem(ctx, itemID, MoveRequest{After: after}); err != nil {
			return "", err
		}
	}

	s.search.IndexItem(search.Record{ID: itemID, Text: text, List: listID})
	s.publish(events.ItemsInListChanged(listID))
	return itemID, nil
}

// UpdateItem applies a partial item update. Empty text means "no text
// change requested" and is dropped; when nothing remains to change the
// call is a silent no-op and no event is emitted.
func (s *Service) UpdateItem(ctx context.Context, itemID string, text *string, checked *bool) error {
	if text != nil && *text == "" {
		text = nil
	}
	if text == nil && checked == nil {
		return nil
	}

	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return wrapStoreErr("get item to update", err)
	}

	if checked != nil {
		if _, err := s.store.UpdateItemChecked(ctx, itemID, *checked); err != nil {
			return wrapStoreErr("update checked", err)
		}
	}
	if text != nil {
		if err := s.store.UpdateItemText(ctx, itemID, *text); err != nil {
			return wrapStoreErr("update text", err)
		}
		s.search.IndexItem(search.Record{ID: itemID, Text: *text, List: item.List})
	}

	s.publish(events.ItemsInListChanged(item.List))
	return nil
}

// SetChecked toggles the completion flag. It is idempotent, leaves the
// item's position untouched, and still notifies on a same-value write.
func (s *Service) SetChecked(ctx context.Context, itemID string, checked bool) error {
	return s.UpdateItem(ctx, itemID, nil, &checked)
}

func (s *Service) UpdateText(ctx context.Context, itemID, text string) error {
	return s.UpdateItem(ctx, itemID, &text, nil)
}

// DeleteItem removes the item after reparenting each direct child to
// become a sibling placed immediately after it. Children are processed
// in descending sort order because each lands directly behind the
// deleted item, which reverses the processing order back to the
// original one; children are never deleted transitively.
func (s *Service) DeleteItem(ctx context.Context, itemID string) error {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return wrapStoreErr("get item to delete", err)
	}

	items, err := s.store.ListItems(ctx, item.List)
	if err != nil {
		return fmt.Errorf("get items for delete: %w", err)
	}
	var children []store.Item
	for _, candidate := range items {
		if candidate.Parent != nil && *candidate.Parent == item.ID {
			children = append(children, candidate)
		}
	}
	slices.Reverse(children)

	for _, child := range children {
		if _, err := s.moveItem(ctx, child.ID, MoveRequest{After: &item.ID}); err != nil {
			return fmt.Errorf("reparent child %s: %w", child.ID, err)
		}
	}

	if err := s.store.DeleteItem(ctx, itemID); err != nil {
		return wrapStoreErr("delete item", err)
	}

	s.search.RemoveItem(itemID)
	s.publish(events.ItemsInListChanged(item.List))
	return nil
}

// MoveItem repositions an item per the request and notifies once.
func (s *Service) MoveItem(ctx context.Context, itemID string, req MoveRequest) error {
	item, err := s.moveItem(ctx, itemID, req)
	if err != nil {
		return err
	}
	s.publish(events.ItemsInListChanged(item.List))
	return nil
}

// --- search ---

func (s *Service) SearchItems(ctx context.Context, query search.Query) ([]search.Result, error) {
	return s.search.Search(ctx, query)
}

// Ping reports whether the backing store is reachable. Stores without a
// liveness check (the in-memory ones in tests) are always considered up.
func (s *Service) Ping(ctx context.Context) error {
	if pinger, ok := s.store.(interface{ Ping(context.Context) error }); ok {
		return pinger.Ping(ctx)
	}
	return nil
}

// --- helpers ---

func searchRecord(item store.Item) search.Record {
	return search.Record{ID: item.ID, Text: item.Text, List: item.List}
}

func (s *Service) publish(event events.Event) {
	if s.hub == nil {
		return
	}
	if err := s.hub.Publish(event); err != nil {
		slog.Error("failed to publish event", "type", event.Type, "err", err)
	}
}

func wrapStoreErr(op string, err error) error {
	if errors.Is(err, store.ErrNotFound) {
		return notFound(err.Error())
	}
	return fmt.Errorf("%s: %w", op, err)
}
