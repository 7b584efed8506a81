package export

import (
	"strconv"
	"strings"
	"time"

	"github.com/sells-group/consensus-cli/internal/diff"
	"github.com/sells-group/consensus-cli/internal/feed"
	"github.com/sells-group/consensus-cli/internal/model"
)

// FeedTable lists one row per feed item in feed order.
func FeedTable(f *feed.Feed) Table {
	t := Table{
		Title:  "Feed for " + f.UserID,
		Header: []string{"Priority", "Kind", "Proposal", "Title", "For", "Against", "Waiting", "Voted", "Score", "Source"},
	}
	for _, it := range f.Items {
		row := []string{strconv.Itoa(it.Priority), it.Kind.String(), it.ProposalID, it.Title, "", "", "", "", "", ""}
		if r := it.Tally; r != nil {
			row[4] = strconv.Itoa(r.For)
			row[5] = strconv.Itoa(r.Against)
			row[6] = strconv.Itoa(r.Waiting)
			row[7] = decisionLabel(r)
		}
		if s := it.Suggestion; s != nil {
			row[8] = strconv.Itoa(s.Score)
			row[9] = string(s.Source)
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

// TallyTable is a single-row summary of one reconciliation.
func TallyTable(r *model.AggregateResult) Table {
	anomalies := make([]string, len(r.Anomalies))
	for i, a := range r.Anomalies {
		anomalies[i] = string(a.Code)
	}
	return Table{
		Title:  "Tally of " + r.ProposalID,
		Header: []string{"Proposal", "Version", "For", "Against", "Counted", "Waiting", "Voted", "Anomalies"},
		Rows: [][]string{{
			r.ProposalID,
			strconv.Itoa(r.Version),
			strconv.Itoa(r.For),
			strconv.Itoa(r.Against),
			strconv.Itoa(r.Counted),
			strconv.Itoa(r.Waiting),
			decisionLabel(r),
			strings.Join(anomalies, ","),
		}},
	}
}

// SuggestionTable lists scored suggestions in rank order.
func SuggestionTable(userID string, scores []model.SuggestionScore) Table {
	t := Table{
		Title:  "Suggestions for " + userID,
		Header: []string{"Rank", "Proposal", "Score", "Source"},
	}
	for i, s := range scores {
		t.Rows = append(t.Rows, []string{strconv.Itoa(i + 1), s.ProposalID, strconv.Itoa(s.Score), string(s.Source)})
	}
	return t
}

// DiffTable lists one row per changed field across every revision.
func DiffTable(proposalID string, entries []diff.Entry) Table {
	t := Table{
		Title:  "Revisions of " + proposalID,
		Header: []string{"Revision", "Author", "Created", "Change"},
	}
	for _, e := range entries {
		for _, l := range e.Lines {
			t.Rows = append(t.Rows, []string{
				strconv.Itoa(e.Revision),
				e.AuthorID,
				e.CreatedAt.UTC().Format(time.RFC3339),
				l.String(),
			})
		}
	}
	return t
}

func decisionLabel(r *model.AggregateResult) string {
	if !r.AlreadyVoted || r.ViewerDecision == nil {
		return "-"
	}
	return string(*r.ViewerDecision)
}
