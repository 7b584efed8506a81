package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/consensus-cli/internal/model"
)

func loadTestFixture(t *testing.T) *Fixture {
	t.Helper()
	f, err := LoadFixture("testdata/fixture.yaml")
	require.NoError(t, err)
	return f
}

func TestLoadFixture(t *testing.T) {
	f := loadTestFixture(t)

	require.Len(t, f.Groups, 2)
	assert.Equal(t, []string{"ana", "ben", "cleo"}, f.Groups[0].Members)
	require.Len(t, f.Viewers, 2)
	assert.Equal(t, model.IDSet{"copywriting", "design"}, f.Viewers[0].Profile.Skills)
	require.Len(t, f.Proposals, 4)

	landing := f.Proposals[0]
	assert.Equal(t, model.KindMission, landing.Kind)
	assert.True(t, landing.Open)
	require.NotNil(t, landing.Values.Hours)
	assert.InDelta(t, 10.0, *landing.Values.Hours, 1e-9)
	require.Len(t, landing.Revisions, 1)
	assert.Equal(t, 1, landing.Revisions[0].Number)
	require.Len(t, landing.Votes, 2)
	assert.Equal(t, model.DecisionFor, landing.Votes[0].Decision)
	assert.Equal(t, 2, landing.Votes[0].Revision)

	assert.Equal(t, model.KindDistribution, f.Proposals[3].Kind)
	assert.False(t, f.Proposals[3].Open)
}

func TestParseFixture_Defaults(t *testing.T) {
	f, err := ParseFixture([]byte(`
groups:
  - id: g
    members: [a]
proposals:
  - group_id: g
    kind: decision
    revisions:
      - author_id: a
      - author_id: b
`))
	require.NoError(t, err)
	require.Len(t, f.Proposals, 1)

	_, err = uuid.Parse(f.Proposals[0].ID)
	assert.NoError(t, err, "missing id is filled with a uuid")
	assert.Equal(t, 1, f.Proposals[0].Revisions[0].Number)
	assert.Equal(t, 2, f.Proposals[0].Revisions[1].Number)
}

func TestParseFixture_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"bad yaml", "groups: [", "fixture: decode"},
		{"unknown kind", "groups: [{id: g}]\nproposals: [{id: p, group_id: g, kind: expense}]", "unknown kind"},
		{"suggestion kind", "groups: [{id: g}]\nproposals: [{id: p, group_id: g, kind: suggestion}]", "non-votable kind"},
		{"missing kind", "groups: [{id: g}]\nproposals: [{id: p, group_id: g}]", `proposal 0 ("p") has no kind`},
		{"empty kind", "groups: [{id: g}]\nproposals: [{group_id: g, kind: ''}]", "unknown kind"},
		{"unknown group", "groups: [{id: g}]\nproposals: [{id: p, group_id: h, kind: mission}]", "unknown group"},
		{"duplicate proposal", "groups: [{id: g}]\nproposals: [{id: p, group_id: g, kind: mission}, {id: p, group_id: g, kind: mission}]", "duplicate proposal"},
		{"duplicate group", "groups: [{id: g}, {id: g}]", "duplicate group"},
		{"group without id", "groups: [{name: x}]", "group without id"},
		{"viewer without user", "viewers: [{declined: [p]}]", "viewer without user_id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseFixture([]byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFixture_MissingFile(t *testing.T) {
	_, err := LoadFixture("testdata/nope.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fixture: read")
}

func newTestFixtureStore(t *testing.T) *FixtureStore {
	t.Helper()
	s := NewFixtureStore()
	require.NoError(t, s.Seed(context.Background(), loadTestFixture(t)))
	return s
}

func TestFixtureStore_GetProposal(t *testing.T) {
	s := newTestFixtureStore(t)
	ctx := context.Background()

	p, err := s.GetProposal(ctx, "p-landing")
	require.NoError(t, err)
	assert.Equal(t, "studio", p.GroupID)

	// Returned proposals are copies.
	p.Votes[0].VoterID = "mallory"
	again, err := s.GetProposal(ctx, "p-landing")
	require.NoError(t, err)
	assert.Equal(t, "ana", again.Votes[0].VoterID)

	_, err = s.GetProposal(ctx, "missing")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
}

func TestFixtureStore_ListProposals(t *testing.T) {
	s := newTestFixtureStore(t)
	ctx := context.Background()

	tests := []struct {
		name   string
		filter ProposalFilter
		want   []string
	}{
		{"all by creation", ProposalFilter{}, []string{"p-payout", "p-landing", "p-laptop", "p-garden-beds"}},
		{"open only", ProposalFilter{OpenOnly: true}, []string{"p-landing", "p-laptop", "p-garden-beds"}},
		{"group", ProposalFilter{GroupIDs: []string{"garden"}}, []string{"p-garden-beds"}},
		{"limit", ProposalFilter{OpenOnly: true, Limit: 2}, []string{"p-landing", "p-laptop"}},
		{"offset", ProposalFilter{OpenOnly: true, Limit: 2, Offset: 2}, []string{"p-garden-beds"}},
		{"offset past end", ProposalFilter{Offset: 9}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListProposals(ctx, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, proposalIDs(got))
		})
	}
}

func TestListAll_Pages(t *testing.T) {
	s := newTestFixtureStore(t)

	tests := []struct {
		name   string
		filter ProposalFilter
		want   []string
	}{
		{"page smaller than result", ProposalFilter{Limit: 1}, []string{"p-payout", "p-landing", "p-laptop", "p-garden-beds"}},
		{"exact multiple", ProposalFilter{OpenOnly: true, Limit: 3}, []string{"p-landing", "p-laptop", "p-garden-beds"}},
		{"offset ignored", ProposalFilter{OpenOnly: true, Limit: 2, Offset: 2}, []string{"p-landing", "p-laptop", "p-garden-beds"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ListAll(context.Background(), s, tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, proposalIDs(got))
		})
	}
}

func TestFixtureStore_GroupsAndViewers(t *testing.T) {
	s := newTestFixtureStore(t)
	ctx := context.Background()

	g, err := s.GetGroup(ctx, "garden")
	require.NoError(t, err)
	assert.Equal(t, []string{"ana", "dev"}, g.Members)

	v, err := s.GetViewer(ctx, "ben")
	require.NoError(t, err)
	assert.Equal(t, model.IDSet{"p-landing"}, v.Declined)

	_, err = s.GetGroup(ctx, "nope")
	assert.True(t, IsNotFound(err))
	_, err = s.GetViewer(ctx, "nope")
	assert.True(t, IsNotFound(err))
}

func TestOpenFixture(t *testing.T) {
	s, err := OpenFixture("testdata/fixture.yaml")
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	got, err := s.ListProposals(context.Background(), ProposalFilter{})
	require.NoError(t, err)
	assert.Len(t, got, 4)
}
