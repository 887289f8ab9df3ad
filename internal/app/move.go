package app

import (
	"context"
	"fmt"

	"shoplist/internal/sortkey"
	"shoplist/internal/store"
)

// MoveRequest names where the item should go: immediately after a
// sibling, or as the first child of a parent. When both are set, After
// drives the position and the explicit Parent wins the reparenting.
type MoveRequest struct {
	After  *string `json:"afterId"`
	Parent *string `json:"parentId"`
}

// movePlan is the resolved outcome of a move: the parent to assign
// (nil means root) and the new sort key. The parent is always written,
// even when unchanged.
type movePlan struct {
	Parent *string
	Key    sortkey.Key
}

// planMove resolves a move request against the full flat item set of the
// moved item's list.
//
// With After set, the named item becomes the lower neighbor and its next
// sibling (same parent, skipping the moved item itself) the upper one.
// With only Parent set, the moved item goes before the parent's first
// existing child. Missing neighbors fall back to the virtual bounds.
//
// The moved item may not become a descendant of itself; a request that
// would close a cycle is rejected before anything is persisted.
func planMove(item store.Item, items []store.Item, req MoveRequest) (movePlan, error) {
	var after, before *store.Item
	parent := item.Parent

	switch {
	case req.After != nil:
		after = findByID(items, *req.After)
		if after == nil {
			return movePlan{}, notFound(fmt.Sprintf("no item %s to move after", *req.After))
		}
		// The upper neighbor is the next item sharing after's parent.
		// When that is the moved item itself (already adjacent), keep
		// scanning: the item must not bound its own position.
		foundAfter := false
		for i := range items {
			candidate := &items[i]
			if !sameParent(candidate.Parent, after.Parent) {
				continue
			}
			if foundAfter && candidate.ID != item.ID {
				before = candidate
				break
			}
			if candidate.ID == after.ID {
				foundAfter = true
			}
		}
	case req.Parent != nil:
		parentItem := findByID(items, *req.Parent)
		if parentItem == nil {
			return movePlan{}, notFound(fmt.Sprintf("no item %s to move under", *req.Parent))
		}
		for i := range items {
			candidate := &items[i]
			if candidate.Parent != nil && *candidate.Parent == *req.Parent {
				before = candidate
				break
			}
		}
	}

	if req.Parent != nil && *req.Parent != item.ID {
		parent = req.Parent
	} else if after != nil && !sameParent(after.Parent, item.Parent) {
		// "Move after X" implicitly re-homes the item into X's group.
		parent = after.Parent
	}

	if parent != nil {
		if err := checkNoCycle(item, items, *parent); err != nil {
			return movePlan{}, err
		}
	}

	var afterKey, beforeKey *sortkey.Key
	if after != nil {
		afterKey = &after.SortKey
	}
	if before != nil {
		beforeKey = &before.SortKey
	}
	key, err := sortkey.Mediant(afterKey, beforeKey)
	if err != nil {
		return movePlan{}, fmt.Errorf("compute sort key: %w", err)
	}

	return movePlan{Parent: parent, Key: key}, nil
}

// checkNoCycle walks the ancestor chain of the prospective parent and
// rejects the move if the moved item appears in it.
func checkNoCycle(item store.Item, items []store.Item, parentID string) error {
	current := findByID(items, parentID)
	// Bounded by the item count in case the stored tree is already
	// corrupt and loops.
	for steps := 0; current != nil && steps <= len(items); steps++ {
		if current.ID == item.ID {
			return invalidInput("CYCLE", "item cannot be moved into its own subtree")
		}
		if current.Parent == nil {
			return nil
		}
		current = findByID(items, *current.Parent)
	}
	return nil
}

func findByID(items []store.Item, id string) *store.Item {
	for i := range items {
		if items[i].ID == id {
			return &items[i]
		}
	}
	return nil
}

func sameParent(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// moveItem resolves and persists a move without notifying; callers own
// the broadcast so that each public operation emits exactly one event.
func (s *Service) moveItem(ctx context.Context, itemID string, req MoveRequest) (store.Item, error) {
	item, err := s.store.GetItem(ctx, itemID)
	if err != nil {
		return store.Item{}, wrapStoreErr("get item to move", err)
	}
	items, err := s.store.ListItems(ctx, item.List)
	if err != nil {
		return store.Item{}, fmt.Errorf("load items for move: %w", err)
	}
	plan, err := planMove(item, items, req)
	if err != nil {
		return store.Item{}, err
	}
	err = s.store.MoveItem(ctx, itemID, store.ItemMove{
		Parent:    plan.Parent,
		SetParent: true,
		Key:       &plan.Key,
	})
	if err != nil {
		return store.Item{}, wrapStoreErr("persist move", err)
	}
	return item, nil
}
