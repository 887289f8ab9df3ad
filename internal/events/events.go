// Package events is the change-notification hub. Mutations publish a
// typed event and every connected client receives it as a JSON message;
// clients treat it purely as an invalidation signal and refetch state.
package events

// Type tags the wire event. The values are part of the protocol and
// must match what subscribers already parse.
type Type string

const (
	TypeListCreated        Type = "LIST_CREATED"
	TypeListUpdated        Type = "LIST_UPDATED"
	TypeItemsInListChanged Type = "ITEMS_IN_LIST_CHANGED"
)

// Event is the wire shape: {"type": ..., "listID": ...}.
type Event struct {
	Type   Type   `json:"type"`
	ListID string `json:"listID"`
}

func ListCreated(listID string) Event {
	return Event{Type: TypeListCreated, ListID: listID}
}

func ListUpdated(listID string) Event {
	return Event{Type: TypeListUpdated, ListID: listID}
}

func ItemsInListChanged(listID string) Event {
	return Event{Type: TypeItemsInListChanged, ListID: listID}
}
