package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/randalmurphal/eventseq/pkg/eventseq/event"
)

func TestInterestMatches(t *testing.T) {
	interest := event.NewInterest("MsgB", "MsgC")

	assert.True(t, interest.Matches(event.NewAny("k", 1, "MsgB", nil)))
	assert.True(t, interest.MatchesType("MsgC"))
	assert.False(t, interest.Matches(event.NewAny("k", 1, "MsgA", nil)))
	assert.False(t, interest.MatchesAll())
	assert.Equal(t, []string{"MsgB", "MsgC"}, interest.Types())
	assert.Equal(t, "{MsgB,MsgC}", interest.String())
}

func TestInterestAll(t *testing.T) {
	for name, interest := range map[string]event.Interest{
		"AllTypes": event.AllTypes(),
		"zero":     {},
	} {
		t.Run(name, func(t *testing.T) {
			assert.True(t, interest.MatchesAll())
			assert.True(t, interest.MatchesType("anything"))
			assert.Nil(t, interest.Types())
			assert.Equal(t, "*", interest.String())
		})
	}
}

func TestInterestEmptyMatchesNothing(t *testing.T) {
	interest := event.NewInterest()

	assert.False(t, interest.MatchesAll())
	assert.False(t, interest.MatchesType("MsgA"))
}

func TestInterestOf(t *testing.T) {
	c := event.NewConsumer(nil, "MsgB")
	pred := event.InterestOf(c).Predicate()

	assert.True(t, pred(event.NewAny("k", 1, "MsgB", nil)))
	assert.False(t, pred(event.NewAny("k", 1, "MsgA", nil)))
}

func TestInterestUnion(t *testing.T) {
	u := event.NewInterest("MsgA").Union(event.NewInterest("MsgB"))
	assert.Equal(t, []string{"MsgA", "MsgB"}, u.Types())

	assert.True(t, event.NewInterest("MsgA").Union(event.AllTypes()).MatchesAll())
}
