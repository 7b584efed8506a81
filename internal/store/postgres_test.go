package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/consensus-cli/internal/model"
)

// newMockPostgresStore creates a PostgresStore backed by pgxmock for unit testing.
func newMockPostgresStore(t *testing.T) (*PostgresStore, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := &PostgresStore{pool: mock}
	return s, mock
}

var (
	t0 = time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	proposalCols = splitColumns(proposalColumns)
	voteCols     = splitColumns(voteColumns)
	revisionCols = splitColumns(revisionColumns)
	viewerCols   = splitColumns(viewerColumns)
)

func TestPostgresStore_GetProposal(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT id, group_id, kind, .* FROM proposals WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows(proposalCols).
			AddRow("p1", "g1", "resource", "ana", true, []byte(`{"name":"Laptop","quantity":2}`), []byte(`{"roles":["editor"]}`), 1, t0))
	mock.ExpectQuery(`SELECT proposal_id, voter_id, .* FROM votes WHERE proposal_id = ANY\(\$1\)`).
		WithArgs([]string{"p1"}).
		WillReturnRows(pgxmock.NewRows(voteCols).
			AddRow("p1", "ben", 1, "for", "", t0.Add(time.Hour)).
			AddRow("p1", "cleo", 0, "against", "too much", t0.Add(2*time.Hour)))
	mock.ExpectQuery(`FROM negotiation_revisions WHERE proposal_id = ANY\(\$1\)`).
		WithArgs([]string{"p1"}).
		WillReturnRows(pgxmock.NewRows(revisionCols).
			AddRow("p1", 1, "ben", []byte(`{"quantity":3}`), t0.Add(30*time.Minute)))

	p, err := s.GetProposal(context.Background(), "p1")
	require.NoError(t, err)

	assert.Equal(t, model.KindResource, p.Kind)
	assert.Equal(t, "Laptop", *p.Values.Name)
	assert.Equal(t, model.IDSet{"editor"}, p.Requirement.Roles)
	require.Len(t, p.Votes, 2)
	assert.Equal(t, model.DecisionAgainst, p.Votes[1].Decision)
	assert.Equal(t, "too much", p.Votes[1].Reason)
	require.Len(t, p.Revisions, 1)
	assert.InDelta(t, 3.0, *p.Revisions[0].Values.Quantity, 1e-9)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProposal_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
		WithArgs("nonexistent").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetProposal(context.Background(), "nonexistent")
	require.Error(t, err)
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetProposal_BadKind(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM proposals WHERE id = \$1`).
		WithArgs("p1").
		WillReturnRows(pgxmock.NewRows(proposalCols).
			AddRow("p1", "g1", "expense", "ana", true, []byte(`{}`), []byte(`{}`), 0, t0))

	_, err := s.GetProposal(context.Background(), "p1")
	require.Error(t, err)
	assert.False(t, IsNotFound(err))
	assert.Contains(t, err.Error(), "postgres: get proposal p1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProposals(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM proposals\s+WHERE \(\$1::boolean = false OR open\)`).
		WithArgs(true, []string{"g1"}, 500, 0).
		WillReturnRows(pgxmock.NewRows(proposalCols).
			AddRow("p1", "g1", "mission", "ana", true, []byte(`{}`), []byte(`{}`), 0, t0).
			AddRow("p2", "g1", "decision", "ben", true, []byte(`{}`), []byte(`{}`), 0, t0.Add(time.Hour)))
	mock.ExpectQuery(`FROM votes WHERE proposal_id = ANY`).
		WithArgs([]string{"p1", "p2"}).
		WillReturnRows(pgxmock.NewRows(voteCols).
			AddRow("p2", "ana", 0, "for", "", t0))
	mock.ExpectQuery(`FROM negotiation_revisions WHERE proposal_id = ANY`).
		WithArgs([]string{"p1", "p2"}).
		WillReturnRows(pgxmock.NewRows(revisionCols))

	got, err := s.ListProposals(context.Background(), ProposalFilter{GroupIDs: []string{"g1"}, OpenOnly: true})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Empty(t, got[0].Votes)
	require.Len(t, got[1].Votes, 1)
	assert.Equal(t, "ana", got[1].Votes[0].VoterID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProposals_Empty(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM proposals`).
		WithArgs(false, []string{}, 5, 10).
		WillReturnRows(pgxmock.NewRows(proposalCols))

	got, err := s.ListProposals(context.Background(), ProposalFilter{Limit: 5, Offset: 10})
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_ListProposals_QueryError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM proposals`).
		WithArgs(false, []string{}, 500, 0).
		WillReturnError(errors.New("connection refused"))

	_, err := s.ListProposals(context.Background(), ProposalFilter{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: list proposals")
}

func TestPostgresStore_GetGroup(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM project_groups g\s+LEFT JOIN group_members m`).
		WithArgs("g1").
		WillReturnRows(pgxmock.NewRows([]string{"name", "members"}).
			AddRow("Studio", []string{"ana", "ben"}))

	g, err := s.GetGroup(context.Background(), "g1")
	require.NoError(t, err)
	assert.Equal(t, "Studio", g.Name)
	assert.Equal(t, []string{"ana", "ben"}, g.Members)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetGroup_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM project_groups`).
		WithArgs("g9").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetGroup(context.Background(), "g9")
	assert.True(t, IsNotFound(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetViewer(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`SELECT user_id, work_ways, .* FROM viewers WHERE user_id = \$1`).
		WithArgs("ana").
		WillReturnRows(pgxmock.NewRows(viewerCols).
			AddRow("ana", []byte(`["remote"]`), []byte(`["design"]`), []byte(`[]`), []byte(`["p3"]`), []byte(`["p4"]`), []byte(`["g1"]`)))

	v, err := s.GetViewer(context.Background(), "ana")
	require.NoError(t, err)
	assert.Equal(t, "ana", v.Profile.UserID)
	assert.Equal(t, model.IDSet{"design"}, v.Profile.Skills)
	assert.Empty(t, v.Profile.Roles)
	assert.Equal(t, model.IDSet{"p3"}, v.Inquired)
	assert.Equal(t, model.IDSet{"p4"}, v.Declined)
	assert.Equal(t, model.IDSet{"g1"}, v.Groups)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_GetViewer_NotFound(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectQuery(`FROM viewers`).
		WithArgs("zed").
		WillReturnError(pgx.ErrNoRows)

	_, err := s.GetViewer(context.Background(), "zed")
	assert.True(t, IsNotFound(err))
}

func TestPostgresStore_Migrate(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectExec(`CREATE TABLE IF NOT EXISTS project_groups`).
		WillReturnResult(pgxmock.NewResult("CREATE", 0))

	require.NoError(t, s.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Seed(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	f := &Fixture{
		Groups:  []model.Group{{ID: "g1", Name: "Studio", Members: []string{"ana", "ben", "ana"}}},
		Viewers: []model.Viewer{{Profile: model.CapabilityProfile{UserID: "ana", Skills: model.IDSet{"design"}}}},
		Proposals: []model.Proposal{{
			ID: "p1", GroupID: "g1", Kind: model.KindMission, AuthorID: "ana", Open: true, CreatedAt: t0,
			Revisions: []model.NegotiationRevision{{Number: 1, AuthorID: "ben", CreatedAt: t0}},
			Votes:     []model.VoteRecord{{VoterID: "ben", Revision: 1, Decision: model.DecisionFor, CastAt: t0}},
		}},
	}

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO project_groups`).
		WithArgs("g1", "Studio").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectExec(`DELETE FROM group_members WHERE group_id = ANY`).
		WithArgs([]string{"g1"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 3))
	mock.ExpectCopyFrom(pgx.Identifier{"group_members"}, []string{"group_id", "user_id", "position"}).
		WillReturnResult(2)
	mock.ExpectExec(`DELETE FROM viewers WHERE user_id = ANY`).
		WithArgs([]string{"ana"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"viewers"}, viewerCols).
		WillReturnResult(1)
	mock.ExpectExec(`DELETE FROM proposals WHERE id = ANY`).
		WithArgs([]string{"p1"}).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))
	mock.ExpectCopyFrom(pgx.Identifier{"proposals"}, proposalCols).
		WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"negotiation_revisions"}, revisionCols).
		WillReturnResult(1)
	mock.ExpectCopyFrom(pgx.Identifier{"votes"}, append(splitColumns(voteColumns), "seq")).
		WillReturnResult(1)
	mock.ExpectCommit()

	require.NoError(t, s.Seed(context.Background(), f))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_Seed_RollsBackOnError(t *testing.T) {
	s, mock := newMockPostgresStore(t)

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO project_groups`).
		WithArgs("g1", "").
		WillReturnError(errors.New("boom"))
	mock.ExpectRollback()

	err := s.Seed(context.Background(), &Fixture{Groups: []model.Group{{ID: "g1"}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "postgres: seed group g1")
	assert.NoError(t, mock.ExpectationsWereMet())
}
