package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIDSet_DedupsAndDropsEmpty(t *testing.T) {
	t.Parallel()
	s := NewIDSet("a", "b", "a", "", "c")
	assert.Equal(t, IDSet{"a", "b", "c"}, s)
}

func TestIDSetOperations(t *testing.T) {
	t.Parallel()

	req := IDSet{"a", "b", "b", "c"}
	have := IDSet{"b", "d"}

	assert.Equal(t, IDSet{"a", "b", "c"}, NewIDSet(req...))
	assert.Equal(t, IDSet{"b"}, req.Intersect(have))
	assert.Equal(t, IDSet{"a", "c"}, req.Minus(have))
	assert.True(t, req.Overlaps(have))
	assert.False(t, req.Overlaps(IDSet{"z"}))
	assert.True(t, have.Contains("d"))
	assert.False(t, have.Contains("a"))

	var empty IDSet
	assert.Empty(t, empty.Intersect(have))
	assert.Empty(t, empty.Minus(have))
	assert.Equal(t, IDSet{"b", "d"}, have.Minus(empty))
}

func TestFieldValuesTotalAndOverlay(t *testing.T) {
	t.Parallel()

	cur := FieldValues{Name: Ptr("Website"), Hours: Ptr(10.0), HourlyRate: Ptr(50.0)}
	total, ok := cur.Total()
	assert.True(t, ok)
	assert.InDelta(t, 500.0, total, 0.0001)

	next := cur.Overlay(FieldValues{Hours: Ptr(12.0), Notes: Ptr("rush")})
	assert.Equal(t, "Website", *next.Name)
	assert.InDelta(t, 12.0, *next.Hours, 0.0001)
	assert.Equal(t, "rush", *next.Notes)
	assert.InDelta(t, 10.0, *cur.Hours, 0.0001, "overlay must not mutate the receiver")

	_, ok = FieldValues{Hours: Ptr(1.0)}.Total()
	assert.False(t, ok)
}

func TestSupersedingRevisions(t *testing.T) {
	t.Parallel()

	p := Proposal{Revisions: []NegotiationRevision{{Number: 1}, {Number: 2}}}
	assert.Equal(t, 2, p.SupersedingRevisions())

	p.RevisionCount = 5
	assert.Equal(t, 5, p.SupersedingRevisions())

	assert.Equal(t, 0, (&Proposal{}).SupersedingRevisions())
}

func TestParseDecision(t *testing.T) {
	t.Parallel()

	d, err := ParseDecision("FOR")
	assert.NoError(t, err)
	assert.Equal(t, DecisionFor, d)

	d, err = ParseDecision("")
	assert.NoError(t, err)
	assert.Equal(t, DecisionNone, d)

	_, err = ParseDecision("abstain")
	assert.Error(t, err)
}
