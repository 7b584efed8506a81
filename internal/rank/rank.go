// Package rank merges reconciled items of every kind into one feed order.
package rank

import (
	"fmt"
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/consensus-cli/internal/config"
	"github.com/sells-group/consensus-cli/internal/model"
)

// Item is one entry of a merged feed.
type Item struct {
	Kind       model.Kind             `json:"kind"`
	ProposalID string                 `json:"proposal_id"`
	Title      string                 `json:"title,omitempty"`
	Priority   int                    `json:"priority"`
	Tally      *model.AggregateResult `json:"tally,omitempty"`
	Suggestion *model.SuggestionScore `json:"suggestion,omitempty"`
}

// Policy is the sort priority of one kind.
type Policy struct {
	Base        int
	VotedOffset int
}

// Table holds one Policy per kind.
type Table [model.NumKinds]Policy

// NewTable builds a Table from configured priorities keyed by kind name.
// Kinds missing from cfg fall back to config.DefaultPriorities.
func NewTable(cfg map[string]config.PriorityConfig) (Table, error) {
	var t Table
	defaults := config.DefaultPriorities()
	for _, k := range model.Kinds() {
		p, ok := cfg[k.String()]
		if !ok {
			p = defaults[k.String()]
		}
		t[k] = Policy{Base: p.Base, VotedOffset: p.VotedOffset}
	}
	for name := range cfg {
		if _, err := model.ParseKind(name); err != nil {
			return Table{}, eris.Wrapf(err, "rank: priorities.%s", name)
		}
	}
	return t, nil
}

// DefaultTable returns the built-in priorities.
func DefaultTable() Table {
	t, _ := NewTable(nil)
	return t
}

// Policy returns the policy of kind k. It panics on a kind outside the
// defined set.
func (t Table) Policy(k model.Kind) Policy {
	switch k {
	case model.KindMission, model.KindResource, model.KindDistribution, model.KindDecision, model.KindSuggestion:
		return t[k]
	default:
		panic(fmt.Sprintf("rank: unhandled kind %d", int(k)))
	}
}

// Priority returns the sort priority of an item of kind k. Items the viewer
// already voted on sink by the kind's voted offset.
func (t Table) Priority(k model.Kind, alreadyVoted bool) int {
	p := t.Policy(k)
	if alreadyVoted {
		return p.Base + p.VotedOffset
	}
	return p.Base
}

// ForTally builds the feed item of a reconciled proposal.
func (t Table) ForTally(p *model.Proposal, res model.AggregateResult) Item {
	return Item{
		Kind:       p.Kind,
		ProposalID: p.ID,
		Title:      title(p),
		Priority:   t.Priority(p.Kind, res.AlreadyVoted),
		Tally:      &res,
	}
}

// ForSuggestion builds the feed item of a scored suggestion. Suggestions
// share one priority, so a ranked list keeps its order through Merge.
func (t Table) ForSuggestion(p *model.Proposal, s model.SuggestionScore) Item {
	return Item{
		Kind:       model.KindSuggestion,
		ProposalID: s.ProposalID,
		Title:      title(p),
		Priority:   t.Priority(model.KindSuggestion, false),
		Suggestion: &s,
	}
}

func title(p *model.Proposal) string {
	if p == nil || p.Values.Name == nil {
		return ""
	}
	return *p.Values.Name
}

// Merge concatenates lists and sorts the result by ascending priority.
// Items with equal priority keep their input order.
func Merge(lists ...[]Item) []Item {
	var n int
	for _, l := range lists {
		n += len(l)
	}
	out := make([]Item, 0, n)
	for _, l := range lists {
		out = append(out, l...)
	}
	slices.SortStableFunc(out, func(a, b Item) int {
		return a.Priority - b.Priority
	})
	return out
}
