// Package model defines the records shared by the reconciliation core and
// the snapshot sources that feed it.
package model

import (
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// Decision is the choice recorded on a vote. The zero value means no
// decision was cast (a comment-only record).
type Decision string

const (
	DecisionNone    Decision = ""
	DecisionFor     Decision = "for"
	DecisionAgainst Decision = "against"
)

// ParseDecision accepts "for", "against" and the empty string.
func ParseDecision(s string) (Decision, error) {
	switch d := Decision(strings.ToLower(strings.TrimSpace(s))); d {
	case DecisionNone, DecisionFor, DecisionAgainst:
		return d, nil
	default:
		return DecisionNone, eris.Errorf("model: unknown decision %q", s)
	}
}

// VoteRecord is one vote cast by a voter against a specific revision.
type VoteRecord struct {
	VoterID  string    `json:"voter_id" yaml:"voter_id"`
	Revision int       `json:"revision" yaml:"revision"`
	Decision Decision  `json:"decision,omitempty" yaml:"decision,omitempty"`
	Reason   string    `json:"reason,omitempty" yaml:"reason,omitempty"`
	CastAt   time.Time `json:"cast_at" yaml:"cast_at"`
}

// FieldValues holds the negotiable fields of a proposal. Nil pointers mean
// the field is unset (or, on a revision, not proposed).
type FieldValues struct {
	Name          *string    `json:"name,omitempty" yaml:"name,omitempty"`
	Description   *string    `json:"description,omitempty" yaml:"description,omitempty"`
	Notes         *string    `json:"notes,omitempty" yaml:"notes,omitempty"`
	Category      *string    `json:"category,omitempty" yaml:"category,omitempty"`
	Hours         *float64   `json:"hours,omitempty" yaml:"hours,omitempty"`
	HourlyRate    *float64   `json:"hourly_rate,omitempty" yaml:"hourly_rate,omitempty"`
	Quantity      *float64   `json:"quantity,omitempty" yaml:"quantity,omitempty"`
	UnitPrice     *float64   `json:"unit_price,omitempty" yaml:"unit_price,omitempty"`
	ScheduleStart *time.Time `json:"schedule_start,omitempty" yaml:"schedule_start,omitempty"`
	ScheduleEnd   *time.Time `json:"schedule_end,omitempty" yaml:"schedule_end,omitempty"`
}

// Total returns hours × hourly rate when both are set.
func (f FieldValues) Total() (float64, bool) {
	if f.Hours == nil || f.HourlyRate == nil {
		return 0, false
	}
	return *f.Hours * *f.HourlyRate, true
}

// Overlay returns f with every non-nil field of o applied on top.
func (f FieldValues) Overlay(o FieldValues) FieldValues {
	out := f
	if o.Name != nil {
		out.Name = o.Name
	}
	if o.Description != nil {
		out.Description = o.Description
	}
	if o.Notes != nil {
		out.Notes = o.Notes
	}
	if o.Category != nil {
		out.Category = o.Category
	}
	if o.Hours != nil {
		out.Hours = o.Hours
	}
	if o.HourlyRate != nil {
		out.HourlyRate = o.HourlyRate
	}
	if o.Quantity != nil {
		out.Quantity = o.Quantity
	}
	if o.UnitPrice != nil {
		out.UnitPrice = o.UnitPrice
	}
	if o.ScheduleStart != nil {
		out.ScheduleStart = o.ScheduleStart
	}
	if o.ScheduleEnd != nil {
		out.ScheduleEnd = o.ScheduleEnd
	}
	return out
}

// NegotiationRevision is one renegotiation of a proposal. Number is the
// 1-based creation order.
type NegotiationRevision struct {
	Number    int         `json:"number" yaml:"number"`
	AuthorID  string      `json:"author_id" yaml:"author_id"`
	Values    FieldValues `json:"values" yaml:"values"`
	CreatedAt time.Time   `json:"created_at" yaml:"created_at"`
}

// Proposal is any votable unit: a mission, resource request, distribution or
// decision.
type Proposal struct {
	ID            string                `json:"id" yaml:"id"`
	GroupID       string                `json:"group_id" yaml:"group_id"`
	Kind          Kind                  `json:"kind" yaml:"kind"`
	AuthorID      string                `json:"author_id" yaml:"author_id"`
	Open          bool                  `json:"open" yaml:"open"`
	Values        FieldValues           `json:"values" yaml:"values"`
	Requirement   Requirement           `json:"requirement" yaml:"requirement"`
	RevisionCount int                   `json:"revision_count" yaml:"revision_count"`
	Revisions     []NegotiationRevision `json:"revisions,omitempty" yaml:"revisions,omitempty"`
	Votes         []VoteRecord          `json:"votes,omitempty" yaml:"votes,omitempty"`
	CreatedAt     time.Time             `json:"created_at" yaml:"created_at"`
}

// SupersedingRevisions returns the recorded revision count, falling back to
// the number of attached revisions when the count was not populated.
func (p *Proposal) SupersedingRevisions() int {
	if p.RevisionCount == 0 && len(p.Revisions) > 0 {
		return len(p.Revisions)
	}
	return p.RevisionCount
}

// Group is the set of members entitled to vote on a group's proposals.
type Group struct {
	ID      string   `json:"id" yaml:"id"`
	Name    string   `json:"name,omitempty" yaml:"name,omitempty"`
	Members []string `json:"members" yaml:"members"`
}

// IsMember reports whether userID belongs to the group.
func (g *Group) IsMember(userID string) bool {
	for _, m := range g.Members {
		if m == userID {
			return true
		}
	}
	return false
}

// Ptr returns a pointer to v. Handy for building FieldValues literals.
func Ptr[T any](v T) *T { return &v }
