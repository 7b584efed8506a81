// Package diff describes what a renegotiation changes on a proposal.
package diff

import (
	"math"
	"slices"
	"time"

	"github.com/sells-group/consensus-cli/internal/model"
)

// Field names a negotiable proposal field.
type Field string

const (
	FieldHours         Field = "hours"
	FieldHourlyRate    Field = "hourly_rate"
	FieldQuantity      Field = "quantity"
	FieldUnitPrice     Field = "unit_price"
	FieldTotal         Field = "total"
	FieldName          Field = "name"
	FieldDescription   Field = "description"
	FieldNotes         Field = "notes"
	FieldCategory      Field = "category"
	FieldScheduleStart Field = "schedule_start"
	FieldScheduleEnd   Field = "schedule_end"
)

// Value is the old or new value of a field. Exactly one member is set on a
// non-empty value.
type Value struct {
	Number *float64   `json:"number,omitempty"`
	Text   *string    `json:"text,omitempty"`
	Time   *time.Time `json:"time,omitempty"`
}

// IsZero reports whether the value is unset.
func (v Value) IsZero() bool {
	return v.Number == nil && v.Text == nil && v.Time == nil
}

// Line is one changed field.
type Line struct {
	Field Field `json:"field"`
	Old   Value `json:"old"`
	New   Value `json:"new"`
}

const epsilon = 1e-9

func numberChanged(cur, next *float64) bool {
	if next == nil {
		return false
	}
	return cur == nil || math.Abs(*cur-*next) > epsilon
}

func textChanged(cur, next *string) bool {
	if next == nil || *next == "" {
		return false
	}
	return cur == nil || *cur != *next
}

func timeChanged(cur, next *time.Time) bool {
	if next == nil || next.IsZero() {
		return false
	}
	return cur == nil || !cur.Equal(*next)
}

// Narrate lists the fields rev changes relative to current. Fields the
// revision leaves unset or empty, and fields it sets to their current value,
// produce no line. Lines come in a fixed order: hours, hourly rate,
// quantity, unit price, the derived total, then the text fields and the
// schedule.
func Narrate(current model.FieldValues, rev model.NegotiationRevision) []Line {
	next := rev.Values
	var lines []Line

	numbers := []struct {
		field     Field
		cur, next *float64
	}{
		{FieldHours, current.Hours, next.Hours},
		{FieldHourlyRate, current.HourlyRate, next.HourlyRate},
		{FieldQuantity, current.Quantity, next.Quantity},
		{FieldUnitPrice, current.UnitPrice, next.UnitPrice},
	}
	for _, n := range numbers {
		if numberChanged(n.cur, n.next) {
			lines = append(lines, Line{Field: n.field, Old: Value{Number: n.cur}, New: Value{Number: n.next}})
		}
	}

	if next.Hours != nil || next.HourlyRate != nil {
		if newTotal, ok := current.Overlay(model.FieldValues{Hours: next.Hours, HourlyRate: next.HourlyRate}).Total(); ok {
			var old *float64
			if oldTotal, ok := current.Total(); ok {
				old = &oldTotal
			}
			if numberChanged(old, &newTotal) {
				lines = append(lines, Line{Field: FieldTotal, Old: Value{Number: old}, New: Value{Number: &newTotal}})
			}
		}
	}

	texts := []struct {
		field     Field
		cur, next *string
	}{
		{FieldName, current.Name, next.Name},
		{FieldDescription, current.Description, next.Description},
		{FieldNotes, current.Notes, next.Notes},
		{FieldCategory, current.Category, next.Category},
	}
	for _, s := range texts {
		if textChanged(s.cur, s.next) {
			lines = append(lines, Line{Field: s.field, Old: Value{Text: s.cur}, New: Value{Text: s.next}})
		}
	}

	times := []struct {
		field     Field
		cur, next *time.Time
	}{
		{FieldScheduleStart, current.ScheduleStart, next.ScheduleStart},
		{FieldScheduleEnd, current.ScheduleEnd, next.ScheduleEnd},
	}
	for _, d := range times {
		if timeChanged(d.cur, d.next) {
			lines = append(lines, Line{Field: d.field, Old: Value{Time: d.cur}, New: Value{Time: d.next}})
		}
	}

	return lines
}

// Entry is the narration of one revision.
type Entry struct {
	Revision  int       `json:"revision"`
	AuthorID  string    `json:"author_id"`
	CreatedAt time.Time `json:"created_at"`
	Lines     []Line    `json:"lines"`
}

// History narrates every revision of p in creation order. Each revision is
// compared with p.Values, the proposal's current field values, so an entry
// lists what that revision would change today. A revision whose proposals
// already match the current values yields an entry with no lines.
func History(p *model.Proposal) []Entry {
	revs := slices.Clone(p.Revisions)
	slices.SortStableFunc(revs, func(a, b model.NegotiationRevision) int {
		return a.Number - b.Number
	})

	entries := make([]Entry, 0, len(revs))
	for _, rev := range revs {
		entries = append(entries, Entry{
			Revision:  rev.Number,
			AuthorID:  rev.AuthorID,
			CreatedAt: rev.CreatedAt,
			Lines:     Narrate(p.Values, rev),
		})
	}
	return entries
}
