package event

import (
	"cmp"
	"strconv"
)

// Key is the identity of an event: aggregate plus version. It is comparable
// and therefore usable as a map key or set element.
type Key struct {
	AggregateID string
	Version     uint64
}

// KeyOf returns the identity key of evt.
func KeyOf(evt Event) Key {
	return Key{AggregateID: evt.AggregateID(), Version: evt.Version()}
}

// Compare orders keys by aggregate, then by version.
func (k Key) Compare(other Key) int {
	if c := cmp.Compare(k.AggregateID, other.AggregateID); c != 0 {
		return c
	}
	return cmp.Compare(k.Version, other.Version)
}

// String formats the key as aggregate@version.
func (k Key) String() string {
	return k.AggregateID + "@" + strconv.FormatUint(k.Version, 10)
}

// Sortable pairs an Event with the identity and ordering contract of its
// Key, decoupled from whatever equality the event's own type defines.
type Sortable struct {
	key Key
	evt Event
}

// SortableOf wraps evt.
func SortableOf(evt Event) Sortable {
	return Sortable{key: KeyOf(evt), evt: evt}
}

// Event returns the wrapped event.
func (s Sortable) Event() Event { return s.evt }

// Key returns the identity key.
func (s Sortable) Key() Key { return s.key }

// Compare orders by aggregate, then version.
func (s Sortable) Compare(other Sortable) int {
	return s.key.Compare(other.key)
}

// Less reports whether s orders before other.
func (s Sortable) Less(other Sortable) bool {
	return s.Compare(other) < 0
}

// Equal reports whether both wrap the same aggregate version.
func (s Sortable) Equal(other Sortable) bool {
	return s.key == other.key
}

// LessSortable is a less function for ordered containers.
func LessSortable(a, b Sortable) bool {
	return a.Less(b)
}
