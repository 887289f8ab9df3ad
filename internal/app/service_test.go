package app

import (
	"context"
	"fmt"
	"sort"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shoplist/internal/events"
	"shoplist/internal/sortkey"
	"shoplist/internal/store"
)

// memStore is an in-memory Store that mirrors the Postgres ordering
// semantics: items sort by scalar ascending, ties broken by id. IDs are
// generated in lexicographic creation order, matching UUIDv7 behavior.
type memStore struct {
	lists  map[string]store.List
	items  map[string]store.Item
	users  []store.User
	nextID int

	// errOn forces the named method to fail.
	errOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		lists: make(map[string]store.List),
		items: make(map[string]store.Item),
		errOn: make(map[string]error),
	}
}

func (m *memStore) fail(method string) error {
	return m.errOn[method]
}

func (m *memStore) newID(kind string) string {
	m.nextID++
	return fmt.Sprintf("%s-%04d", kind, m.nextID)
}

func (m *memStore) CreateList(ctx context.Context) (store.List, error) {
	if err := m.fail("CreateList"); err != nil {
		return store.List{}, err
	}
	// Strictly increasing dates keep ListLists ordering deterministic
	// even when lists are created within the same clock tick.
	list := store.List{
		ID:     m.newID("list"),
		Status: store.StatusTodo,
		Date:   time.Unix(0, 0).Add(time.Duration(m.nextID) * time.Second),
	}
	m.lists[list.ID] = list
	return list, nil
}

func (m *memStore) ListLists(ctx context.Context) ([]store.List, error) {
	lists := make([]store.List, 0, len(m.lists))
	for _, list := range m.lists {
		lists = append(lists, list)
	}
	sort.Slice(lists, func(i, j int) bool { return lists[i].Date.After(lists[j].Date) })
	return lists, nil
}

func (m *memStore) GetList(ctx context.Context, listID string) (store.List, error) {
	list, ok := m.lists[listID]
	if !ok {
		return store.List{}, store.ErrNotFound
	}
	return list, nil
}

func (m *memStore) UpdateListStatus(ctx context.Context, listID, status string) error {
	list, ok := m.lists[listID]
	if !ok {
		return store.ErrNotFound
	}
	list.Status = status
	m.lists[listID] = list
	return nil
}

func (m *memStore) CreateItem(ctx context.Context, listID, text string, k sortkey.Key) (string, error) {
	if err := m.fail("CreateItem"); err != nil {
		return "", err
	}
	id := m.newID("item")
	m.items[id] = store.Item{ID: id, Text: text, List: listID, SortKey: k, Sort: k.Scalar()}
	return id, nil
}

func (m *memStore) ListItems(ctx context.Context, listID string) ([]store.Item, error) {
	var items []store.Item
	for _, item := range m.items {
		if item.List == listID {
			items = append(items, item)
		}
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Sort != items[j].Sort {
			return items[i].Sort < items[j].Sort
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (m *memStore) ListAllItems(ctx context.Context) ([]store.Item, error) {
	var items []store.Item
	for _, item := range m.items {
		items = append(items, item)
	}
	return items, nil
}

func (m *memStore) LastItem(ctx context.Context, listID string) (*store.Item, error) {
	items, _ := m.ListItems(ctx, listID)
	if len(items) == 0 {
		return nil, nil
	}
	return &items[len(items)-1], nil
}

func (m *memStore) GetItem(ctx context.Context, itemID string) (store.Item, error) {
	item, ok := m.items[itemID]
	if !ok {
		return store.Item{}, store.ErrNotFound
	}
	return item, nil
}

func (m *memStore) UpdateItemChecked(ctx context.Context, itemID string, checked bool) (store.Item, error) {
	item, ok := m.items[itemID]
	if !ok {
		return store.Item{}, store.ErrNotFound
	}
	item.Checked = checked
	m.items[itemID] = item
	return item, nil
}

func (m *memStore) UpdateItemText(ctx context.Context, itemID, text string) error {
	item, ok := m.items[itemID]
	if !ok {
		return store.ErrNotFound
	}
	item.Text = text
	m.items[itemID] = item
	return nil
}

func (m *memStore) MoveItem(ctx context.Context, itemID string, mv store.ItemMove) error {
	if err := m.fail("MoveItem"); err != nil {
		return err
	}
	item, ok := m.items[itemID]
	if !ok {
		return store.ErrNotFound
	}
	if mv.SetParent {
		item.Parent = mv.Parent
	}
	if mv.Key != nil {
		item.SortKey = *mv.Key
		item.Sort = mv.Key.Scalar()
	}
	m.items[itemID] = item
	return nil
}

func (m *memStore) DeleteItem(ctx context.Context, itemID string) error {
	if err := m.fail("DeleteItem"); err != nil {
		return err
	}
	if _, ok := m.items[itemID]; !ok {
		return store.ErrNotFound
	}
	delete(m.items, itemID)
	return nil
}

type recordingHub struct {
	events []events.Event
}

func (h *recordingHub) Publish(event events.Event) error {
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHub) reset() { h.events = nil }

func newTestService(t *testing.T) (*Service, *memStore, *recordingHub) {
	t.Helper()
	mem := newMemStore()
	hub := &recordingHub{}
	return New(mem, hub, nil), mem, hub
}

func mustCreateList(t *testing.T, svc *Service) store.List {
	t.Helper()
	list, err := svc.CreateList(context.Background())
	require.NoError(t, err)
	return list
}

func mustCreateItem(t *testing.T, svc *Service, listID, text string) string {
	t.Helper()
	id, err := svc.CreateItem(context.Background(), listID, text, nil)
	require.NoError(t, err)
	return id
}

func itemOrder(t *testing.T, mem *memStore, listID string) []string {
	t.Helper()
	items, err := mem.ListItems(context.Background(), listID)
	require.NoError(t, err)
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	return ids
}

func TestCreateListBroadcastsOnce(t *testing.T) {
	svc, _, hub := newTestService(t)
	list := mustCreateList(t, svc)

	assert.Equal(t, store.StatusTodo, list.Status)
	require.Len(t, hub.events, 1)
	assert.Equal(t, events.Event{Type: events.TypeListCreated, ListID: list.ID}, hub.events[0])
}

func TestCreateItemAppendsAtEnd(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	hub.reset()

	milk := mustCreateItem(t, svc, list.ID, "milk")
	eggs := mustCreateItem(t, svc, list.ID, "eggs")

	milkItem, err := mem.GetItem(context.Background(), milk)
	require.NoError(t, err)
	assert.Equal(t, sortkey.Key{Num: 1, Den: 1}, milkItem.SortKey)
	assert.Equal(t, 1.0, milkItem.Sort)
	assert.False(t, milkItem.Checked)
	assert.Nil(t, milkItem.Parent)

	eggsItem, err := mem.GetItem(context.Background(), eggs)
	require.NoError(t, err)
	assert.Equal(t, sortkey.Key{Num: 2, Den: 1}, eggsItem.SortKey)
	assert.Equal(t, 2.0, eggsItem.Sort)

	require.Len(t, hub.events, 2)
	for _, event := range hub.events {
		assert.Equal(t, events.Event{Type: events.TypeItemsInListChanged, ListID: list.ID}, event)
	}
}

func TestCreateItemAfterSibling(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	hub.reset()

	c, err := svc.CreateItem(context.Background(), list.ID, "c", &a)
	require.NoError(t, err)

	assert.Equal(t, []string{a, c, b}, itemOrder(t, mem, list.ID))
	// Creation with a placement hint still notifies exactly once.
	require.Len(t, hub.events, 1)
	assert.Equal(t, events.TypeItemsInListChanged, hub.events[0].Type)
}

func TestMoveUnderEmptyParent(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	milk := mustCreateItem(t, svc, list.ID, "milk")
	eggs := mustCreateItem(t, svc, list.ID, "eggs")
	hub.reset()

	require.NoError(t, svc.MoveItem(context.Background(), eggs, MoveRequest{Parent: &milk}))

	eggsItem, err := mem.GetItem(context.Background(), eggs)
	require.NoError(t, err)
	require.NotNil(t, eggsItem.Parent)
	assert.Equal(t, milk, *eggsItem.Parent)
	assert.Equal(t, sortkey.Key{Num: 1, Den: 1}, eggsItem.SortKey)

	require.Len(t, hub.events, 1)
	assert.Equal(t, events.TypeItemsInListChanged, hub.events[0].Type)
}

func TestMoveAfterReordersSiblings(t *testing.T) {
	svc, mem, _ := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	c := mustCreateItem(t, svc, list.ID, "c")

	require.NoError(t, svc.MoveItem(context.Background(), c, MoveRequest{After: &a}))

	assert.Equal(t, []string{a, c, b}, itemOrder(t, mem, list.ID))
	cItem, err := mem.GetItem(context.Background(), c)
	require.NoError(t, err)
	assert.Equal(t, sortkey.Key{Num: 3, Den: 2}, cItem.SortKey)
}

func TestMoveAfterNestedSiblingAdoptsParent(t *testing.T) {
	svc, mem, _ := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	require.NoError(t, svc.MoveItem(context.Background(), b, MoveRequest{Parent: &a}))
	c := mustCreateItem(t, svc, list.ID, "c")

	require.NoError(t, svc.MoveItem(context.Background(), c, MoveRequest{After: &b}))

	cItem, err := mem.GetItem(context.Background(), c)
	require.NoError(t, err)
	require.NotNil(t, cItem.Parent)
	assert.Equal(t, a, *cItem.Parent)
}

func TestMoveIntoOwnSubtreeRejected(t *testing.T) {
	svc, _, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	require.NoError(t, svc.MoveItem(context.Background(), b, MoveRequest{Parent: &a}))
	hub.reset()

	err := svc.MoveItem(context.Background(), a, MoveRequest{Parent: &b})
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "CYCLE", domainErr.Code)
	assert.Empty(t, hub.events)
}

func TestMoveUnknownItem(t *testing.T) {
	svc, _, hub := newTestService(t)
	mustCreateList(t, svc)
	hub.reset()

	err := svc.MoveItem(context.Background(), "ghost", MoveRequest{})
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 404, domainErr.Status)
	assert.Empty(t, hub.events)
}

func TestMoveStoreFailureSuppressesBroadcast(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	hub.reset()

	mem.errOn["MoveItem"] = fmt.Errorf("connection reset")
	err := svc.MoveItem(context.Background(), b, MoveRequest{After: &a})
	require.Error(t, err)
	assert.Empty(t, hub.events)
}

func TestDeleteReparentsChildrenInOrder(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	c := mustCreateItem(t, svc, list.ID, "c")
	d := mustCreateItem(t, svc, list.ID, "d")
	require.NoError(t, svc.MoveItem(context.Background(), b, MoveRequest{Parent: &a}))
	require.NoError(t, svc.MoveItem(context.Background(), c, MoveRequest{After: &b}))
	hub.reset()

	require.NoError(t, svc.DeleteItem(context.Background(), a))

	// Children of the deleted item survive at its former level and keep
	// their relative order.
	assert.Equal(t, []string{b, c, d}, itemOrder(t, mem, list.ID))
	for _, id := range []string{b, c, d} {
		item, err := mem.GetItem(context.Background(), id)
		require.NoError(t, err)
		assert.Nil(t, item.Parent, "item %s should be root after reparenting", id)
	}
	_, err := mem.GetItem(context.Background(), a)
	assert.ErrorIs(t, err, store.ErrNotFound)

	require.Len(t, hub.events, 1)
	assert.Equal(t, events.Event{Type: events.TypeItemsInListChanged, ListID: list.ID}, hub.events[0])
}

func TestDeleteLeaf(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	hub.reset()

	require.NoError(t, svc.DeleteItem(context.Background(), a))
	assert.Empty(t, itemOrder(t, mem, list.ID))
	require.Len(t, hub.events, 1)
}

func TestDeleteUnknownItem(t *testing.T) {
	svc, _, hub := newTestService(t)
	hub.reset()

	err := svc.DeleteItem(context.Background(), "ghost")
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 404, domainErr.Status)
	assert.Empty(t, hub.events)
}

func TestSetCheckedIsIdempotentAndKeepsPosition(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	hub.reset()

	require.NoError(t, svc.SetChecked(context.Background(), a, true))
	require.NoError(t, svc.SetChecked(context.Background(), a, true))

	item, err := mem.GetItem(context.Background(), a)
	require.NoError(t, err)
	assert.True(t, item.Checked)
	assert.Equal(t, []string{a, b}, itemOrder(t, mem, list.ID))
	// Each call notifies, even when the value did not change.
	require.Len(t, hub.events, 2)
}

func TestUpdateItemNoChangesIsSilent(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	hub.reset()

	require.NoError(t, svc.UpdateItem(context.Background(), a, nil, nil))
	empty := ""
	require.NoError(t, svc.UpdateItem(context.Background(), a, &empty, nil))

	item, err := mem.GetItem(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "a", item.Text)
	assert.Empty(t, hub.events)
}

func TestUpdateText(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	hub.reset()

	require.NoError(t, svc.UpdateText(context.Background(), a, "oat milk"))

	item, err := mem.GetItem(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "oat milk", item.Text)
	require.Len(t, hub.events, 1)
}

func TestUpdateListStatus(t *testing.T) {
	svc, _, hub := newTestService(t)
	list := mustCreateList(t, svc)
	hub.reset()

	updated, err := svc.UpdateListStatus(context.Background(), list.ID, store.StatusDone)
	require.NoError(t, err)
	assert.Equal(t, store.StatusDone, updated.Status)
	require.Len(t, hub.events, 1)
	assert.Equal(t, events.Event{Type: events.TypeListUpdated, ListID: list.ID}, hub.events[0])
}

func TestUpdateListStatusRejectsUnknownValue(t *testing.T) {
	svc, _, hub := newTestService(t)
	list := mustCreateList(t, svc)
	hub.reset()

	_, err := svc.UpdateListStatus(context.Background(), list.ID, "archived")
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, "INVALID_STATUS", domainErr.Code)
	assert.Empty(t, hub.events)
}

func TestItemsBuildsTree(t *testing.T) {
	svc, _, _ := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	b := mustCreateItem(t, svc, list.ID, "b")
	require.NoError(t, svc.MoveItem(context.Background(), b, MoveRequest{Parent: &a}))

	nodes, err := svc.Items(context.Background(), list.ID)
	require.NoError(t, err)
	require.Len(t, nodes, 1)
	assert.Equal(t, a, nodes[0].ID)
	require.Len(t, nodes[0].Children, 1)
	assert.Equal(t, b, nodes[0].Children[0].ID)
}

func TestItemsUnknownList(t *testing.T) {
	svc, _, _ := newTestService(t)

	_, err := svc.Items(context.Background(), "ghost")
	var domainErr *DomainError
	require.ErrorAs(t, err, &domainErr)
	assert.Equal(t, 404, domainErr.Status)
}

// Writes carry no version check: two clients editing the same item get
// last-write-wins, serialized only by the single UPDATE statement each
// operation issues. That is the accepted behavior, not a gap this suite
// papers over; there is no optimistic locking to test.
func TestConcurrentEditsAreLastWriteWins(t *testing.T) {
	svc, mem, hub := newTestService(t)
	list := mustCreateList(t, svc)
	a := mustCreateItem(t, svc, list.ID, "a")
	hub.reset()

	require.NoError(t, svc.UpdateText(context.Background(), a, "two eggs"))
	require.NoError(t, svc.UpdateText(context.Background(), a, "six eggs"))

	item, err := mem.GetItem(context.Background(), a)
	require.NoError(t, err)
	assert.Equal(t, "six eggs", item.Text)
	// Both writers still broadcast; clients refetch and converge on the
	// surviving value.
	require.Len(t, hub.events, 2)
}

func TestActiveListSkipsDone(t *testing.T) {
	svc, _, _ := newTestService(t)
	ctx := context.Background()

	active, err := svc.ActiveList(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	first := mustCreateList(t, svc)
	_, err = svc.UpdateListStatus(ctx, first.ID, store.StatusDone)
	require.NoError(t, err)

	active, err = svc.ActiveList(ctx)
	require.NoError(t, err)
	assert.Nil(t, active)

	second := mustCreateList(t, svc)
	active, err = svc.ActiveList(ctx)
	require.NoError(t, err)
	require.NotNil(t, active)
	assert.Equal(t, second.ID, active.ID)
}
