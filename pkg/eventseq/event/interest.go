package event

import (
	"slices"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
)

// Interest is the set of event types a consumer wants delivered.
//
// Filtering by interest happens only on delivery. Events outside the set
// still take part in ordering and duplicate book-keeping for their aggregate.
//
// The zero Interest matches every type, so an unset field means "no filter".
// NewInterest with no types matches nothing.
type Interest struct {
	types mapset.Set[string]
	all   bool
}

// NewInterest returns an interest in exactly the given types.
func NewInterest(types ...string) Interest {
	return Interest{types: mapset.NewThreadUnsafeSet(types...)}
}

// AllTypes returns an interest that matches every event.
func AllTypes() Interest {
	return Interest{all: true}
}

// InterestOf derives the interest declared by a consumer.
func InterestOf(c Consumer) Interest {
	return NewInterest(c.Interests()...)
}

// Matches reports whether evt's type is in the set.
func (i Interest) Matches(evt Event) bool {
	return i.MatchesType(evt.Type())
}

// MatchesType reports whether the type tag is in the set.
func (i Interest) MatchesType(eventType string) bool {
	if i.MatchesAll() {
		return true
	}
	return i.types.Contains(eventType)
}

// MatchesAll reports whether the interest has no type restriction.
func (i Interest) MatchesAll() bool {
	return i.all || i.types == nil
}

// Predicate returns Matches as a plain function.
func (i Interest) Predicate() func(Event) bool {
	return i.Matches
}

// Types returns the declared types in sorted order, or nil for AllTypes.
func (i Interest) Types() []string {
	if i.MatchesAll() {
		return nil
	}
	types := i.types.ToSlice()
	slices.Sort(types)
	return types
}

// Union returns an interest matching anything either side matches.
func (i Interest) Union(other Interest) Interest {
	if i.MatchesAll() || other.MatchesAll() {
		return AllTypes()
	}
	return Interest{types: i.types.Union(other.types)}
}

// String lists the types, or "*" for all.
func (i Interest) String() string {
	if i.MatchesAll() {
		return "*"
	}
	return "{" + strings.Join(i.Types(), ",") + "}"
}
