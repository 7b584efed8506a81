package export

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tealeg/xlsx/v2"

	"github.com/sells-group/consensus-cli/internal/diff"
	"github.com/sells-group/consensus-cli/internal/feed"
	"github.com/sells-group/consensus-cli/internal/model"
	"github.com/sells-group/consensus-cli/internal/rank"
)

func sampleTable() Table {
	return Table{
		Title:  "Suggestions for ana",
		Header: []string{"Rank", "Proposal", "Score"},
		Rows: [][]string{
			{"1", "p-garden-beds", "2"},
			{"2", "p-laptop", "1"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want Format
		err  bool
	}{
		{"table", FormatTable, false},
		{"CSV", FormatCSV, false},
		{" json ", FormatJSON, false},
		{"xlsx", FormatXLSX, false},
		{"", FormatTable, false},
		{"yaml", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFormat(tt.in)
			if tt.err {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestWriteTable(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTable(&buf, sampleTable()))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Contains(t, lines[0], "Suggestions for ana")
	assert.Equal(t, "Rank   Proposal        Score", lines[1])
	assert.Equal(t, "1      p-garden-beds   2", lines[2])
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	tbl := sampleTable()
	tbl.Rows = append(tbl.Rows, []string{"3", "quoted, name", "0"})
	require.NoError(t, WriteCSV(&buf, tbl))

	assert.Equal(t, "Rank,Proposal,Score\n1,p-garden-beds,2\n2,p-laptop,1\n3,\"quoted, name\",0\n", buf.String())
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	scores := []model.SuggestionScore{{ProposalID: "p1", Score: 3, Source: model.SourceSkill}}
	require.NoError(t, Write(&buf, FormatJSON, Table{}, scores))

	var back []map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &back))
	require.Len(t, back, 1)
	assert.Equal(t, "skill", back[0]["source"])
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, Write(&buf, FormatXLSX, sampleTable(), nil))

	path := filepath.Join(t.TempDir(), "out.xlsx")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o600))

	f, err := xlsx.OpenFile(path)
	require.NoError(t, err)
	require.Len(t, f.Sheets, 1)
	sheet := f.Sheets[0]
	assert.Equal(t, "Suggestions for ana", sheet.Name)
	require.Len(t, sheet.Rows, 3)
	assert.Equal(t, "Proposal", sheet.Rows[0].Cells[1].String())
	assert.Equal(t, "p-laptop", sheet.Rows[2].Cells[1].String())
}

func TestWrite_UnknownFormat(t *testing.T) {
	err := Write(&bytes.Buffer{}, Format("pdf"), Table{}, nil)
	require.Error(t, err)
}

func TestFeedTable(t *testing.T) {
	d := model.DecisionFor
	f := &feed.Feed{
		UserID: "ana",
		Items: []rank.Item{
			{Kind: model.KindDecision, ProposalID: "p1", Title: "Beds", Priority: 5,
				Tally: &model.AggregateResult{For: 1, Against: 1, Waiting: 0}},
			{Kind: model.KindSuggestion, ProposalID: "p2", Priority: 40,
				Suggestion: &model.SuggestionScore{ProposalID: "p2", Score: 2, Source: model.SourceInquiry}},
			{Kind: model.KindMission, ProposalID: "p3", Priority: 110,
				Tally: &model.AggregateResult{For: 2, AlreadyVoted: true, ViewerDecision: &d}},
		},
	}

	tbl := FeedTable(f)
	require.Len(t, tbl.Rows, 3)
	assert.Equal(t, []string{"5", "decision", "p1", "Beds", "1", "1", "0", "-", "", ""}, tbl.Rows[0])
	assert.Equal(t, []string{"40", "suggestion", "p2", "", "", "", "", "", "2", "inquiry"}, tbl.Rows[1])
	assert.Equal(t, "for", tbl.Rows[2][7])
}

func TestTallyTable(t *testing.T) {
	tbl := TallyTable(&model.AggregateResult{
		ProposalID: "p1", Version: 2, For: 1, Against: 2, Counted: 3,
		Anomalies: []model.Anomaly{{Code: model.AnomalyFutureRevision}, {Code: model.AnomalyNoDecision}},
	})
	require.Len(t, tbl.Rows, 1)
	assert.Equal(t, []string{"p1", "2", "1", "2", "3", "0", "-", "future_revision,no_decision"}, tbl.Rows[0])
}

func TestSuggestionTable(t *testing.T) {
	tbl := SuggestionTable("ana", []model.SuggestionScore{
		{ProposalID: "a", Score: 4, Source: model.SourceRole},
		{ProposalID: "b", Score: -1, Source: model.SourceSkill},
	})
	assert.Equal(t, [][]string{{"1", "a", "4", "role"}, {"2", "b", "-1", "skill"}}, tbl.Rows)
}

func TestDiffTable(t *testing.T) {
	created := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	tbl := DiffTable("p1", []diff.Entry{{
		Revision:  1,
		AuthorID:  "cleo",
		CreatedAt: created,
		Lines: []diff.Line{
			{Field: diff.FieldHours, Old: diff.Value{Number: model.Ptr(10.0)}, New: diff.Value{Number: model.Ptr(12.0)}},
		},
	}})
	assert.Equal(t, [][]string{{"1", "cleo", "2026-03-02T10:00:00Z", "Hours: 10 → 12"}}, tbl.Rows)
}
