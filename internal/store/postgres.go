package store

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/consensus-cli/internal/db"
	"github.com/sells-group/consensus-cli/internal/model"
)

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS project_groups (
	id   TEXT PRIMARY KEY,
	name TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS group_members (
	group_id TEXT NOT NULL REFERENCES project_groups(id) ON DELETE CASCADE,
	user_id  TEXT NOT NULL,
	position INTEGER NOT NULL,
	PRIMARY KEY (group_id, user_id)
);

CREATE TABLE IF NOT EXISTS proposals (
	id             TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	group_id       TEXT NOT NULL REFERENCES project_groups(id),
	kind           TEXT NOT NULL,
	author_id      TEXT NOT NULL DEFAULT '',
	open           BOOLEAN NOT NULL DEFAULT true,
	field_values   JSONB NOT NULL DEFAULT '{}',
	requirement    JSONB NOT NULL DEFAULT '{}',
	revision_count INTEGER NOT NULL DEFAULT 0,
	created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS negotiation_revisions (
	proposal_id  TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
	number       INTEGER NOT NULL,
	author_id    TEXT NOT NULL DEFAULT '',
	field_values JSONB NOT NULL DEFAULT '{}',
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (proposal_id, number)
);

CREATE TABLE IF NOT EXISTS votes (
	proposal_id TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	voter_id    TEXT NOT NULL DEFAULT '',
	revision    INTEGER NOT NULL DEFAULT 0,
	decision    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	cast_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (proposal_id, seq)
);

CREATE TABLE IF NOT EXISTS viewers (
	user_id   TEXT PRIMARY KEY,
	work_ways JSONB NOT NULL DEFAULT '[]',
	skills    JSONB NOT NULL DEFAULT '[]',
	roles     JSONB NOT NULL DEFAULT '[]',
	inquired  JSONB NOT NULL DEFAULT '[]',
	declined  JSONB NOT NULL DEFAULT '[]',
	group_ids JSONB NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_proposals_group_open ON proposals(group_id, open);
CREATE INDEX IF NOT EXISTS idx_proposals_created_at ON proposals(created_at, id);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Seed writes f in one transaction. Existing rows with the same keys are
// replaced; child rows are bulk-loaded with COPY.
func (s *PostgresStore) Seed(ctx context.Context, f *Fixture) (err error) {
	if f == nil {
		return nil
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin seed")
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx) //nolint:errcheck
		}
	}()

	if err = seedGroupsPostgres(ctx, tx, f.Groups); err != nil {
		return err
	}
	if err = seedViewersPostgres(ctx, tx, f.Viewers); err != nil {
		return err
	}
	if err = seedProposalsPostgres(ctx, tx, f.Proposals); err != nil {
		return err
	}
	return eris.Wrap(tx.Commit(ctx), "postgres: commit seed")
}

func seedGroupsPostgres(ctx context.Context, tx pgx.Tx, groups []model.Group) error {
	if len(groups) == 0 {
		return nil
	}
	ids := make([]string, 0, len(groups))
	var members [][]any
	for _, g := range groups {
		if _, err := tx.Exec(ctx,
			`INSERT INTO project_groups (id, name) VALUES ($1, $2)
			 ON CONFLICT (id) DO UPDATE SET name = EXCLUDED.name`, g.ID, g.Name); err != nil {
			return eris.Wrapf(err, "postgres: seed group %s", g.ID)
		}
		ids = append(ids, g.ID)
		for i, m := range model.NewIDSet(g.Members...) {
			members = append(members, []any{g.ID, m, i})
		}
	}
	if _, err := tx.Exec(ctx, `DELETE FROM group_members WHERE group_id = ANY($1)`, ids); err != nil {
		return eris.Wrap(err, "postgres: clear group members")
	}
	_, err := db.CopyFrom(ctx, tx, "group_members", []string{"group_id", "user_id", "position"}, members)
	return eris.Wrap(err, "postgres: seed group members")
}

func seedViewersPostgres(ctx context.Context, tx pgx.Tx, viewers []model.Viewer) error {
	if len(viewers) == 0 {
		return nil
	}
	ids := make([]string, 0, len(viewers))
	rows := make([][]any, 0, len(viewers))
	for _, v := range viewers {
		row, err := viewerRow(v)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed viewer %s", v.Profile.UserID)
		}
		ids = append(ids, v.Profile.UserID)
		rows = append(rows, row)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM viewers WHERE user_id = ANY($1)`, ids); err != nil {
		return eris.Wrap(err, "postgres: clear viewers")
	}
	_, err := db.CopyFrom(ctx, tx, "viewers", splitColumns(viewerColumns), rows)
	return eris.Wrap(err, "postgres: seed viewers")
}

func seedProposalsPostgres(ctx context.Context, tx pgx.Tx, proposals []model.Proposal) error {
	if len(proposals) == 0 {
		return nil
	}
	var props, revs, votes [][]any
	for _, p := range proposals {
		row, err := proposalRow(p)
		if err != nil {
			return eris.Wrapf(err, "postgres: seed proposal %s", p.ID)
		}
		props = append(props, row)
		for _, r := range p.Revisions {
			values, err := jsonText(r.Values)
			if err != nil {
				return eris.Wrapf(err, "postgres: seed revision %d of %s", r.Number, p.ID)
			}
			revs = append(revs, []any{p.ID, r.Number, r.AuthorID, values, r.CreatedAt})
		}
		for i, v := range p.Votes {
			votes = append(votes, []any{p.ID, v.VoterID, v.Revision, string(v.Decision), v.Reason, v.CastAt, i})
		}
	}

	// Cascades to revisions and votes.
	if _, err := tx.Exec(ctx, `DELETE FROM proposals WHERE id = ANY($1)`, proposalIDs(proposals)); err != nil {
		return eris.Wrap(err, "postgres: clear proposals")
	}
	if _, err := db.CopyFrom(ctx, tx, "proposals", splitColumns(proposalColumns), props); err != nil {
		return eris.Wrap(err, "postgres: seed proposals")
	}
	if _, err := db.CopyFrom(ctx, tx, "negotiation_revisions", splitColumns(revisionColumns), revs); err != nil {
		return eris.Wrap(err, "postgres: seed revisions")
	}
	_, err := db.CopyFrom(ctx, tx, "votes", append(splitColumns(voteColumns), "seq"), votes)
	return eris.Wrap(err, "postgres: seed votes")
}

func (s *PostgresStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = $1`, id)
	p, err := scanProposal(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: proposal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get proposal %s", id)
	}
	list := []model.Proposal{*p}
	if err := s.loadChildren(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *PostgresStore) ListProposals(ctx context.Context, filter ProposalFilter) ([]model.Proposal, error) {
	groupIDs := filter.GroupIDs
	if groupIDs == nil {
		groupIDs = []string{}
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+proposalColumns+` FROM proposals
		 WHERE ($1::boolean = false OR open)
		   AND (cardinality($2::text[]) = 0 OR group_id = ANY($2))
		 ORDER BY created_at, id
		 LIMIT $3 OFFSET $4`,
		filter.OpenOnly, groupIDs, filter.limit(), filter.offset(),
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list proposals")
	}
	defer rows.Close()

	var out []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan proposal")
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "postgres: list proposals iterate")
	}
	if err := s.loadChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// loadChildren fetches votes and revisions for every proposal in two
// queries.
func (s *PostgresStore) loadChildren(ctx context.Context, proposals []model.Proposal) error {
	if len(proposals) == 0 {
		return nil
	}
	ids := proposalIDs(proposals)

	votes := make(map[string][]model.VoteRecord)
	rows, err := s.pool.Query(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE proposal_id = ANY($1) ORDER BY proposal_id, seq`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: load votes")
	}
	for rows.Next() {
		pid, v, err := scanVote(rows)
		if err != nil {
			rows.Close()
			return eris.Wrap(err, "postgres: scan vote")
		}
		votes[pid] = append(votes[pid], v)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: load votes iterate")
	}

	revs := make(map[string][]model.NegotiationRevision)
	rows, err = s.pool.Query(ctx,
		`SELECT `+revisionColumns+` FROM negotiation_revisions WHERE proposal_id = ANY($1) ORDER BY proposal_id, number`, ids)
	if err != nil {
		return eris.Wrap(err, "postgres: load revisions")
	}
	defer rows.Close()
	for rows.Next() {
		pid, r, err := scanRevision(rows)
		if err != nil {
			return eris.Wrap(err, "postgres: scan revision")
		}
		revs[pid] = append(revs[pid], r)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "postgres: load revisions iterate")
	}

	attach(proposals, votes, revs)
	return nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	g := model.Group{ID: id}
	err := s.pool.QueryRow(ctx,
		`SELECT g.name,
		        COALESCE(array_agg(m.user_id ORDER BY m.position) FILTER (WHERE m.user_id IS NOT NULL), '{}')
		 FROM project_groups g
		 LEFT JOIN group_members m ON m.group_id = g.id
		 WHERE g.id = $1
		 GROUP BY g.name`, id,
	).Scan(&g.Name, &g.Members)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: group %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get group %s", id)
	}
	return &g, nil
}

func (s *PostgresStore) GetViewer(ctx context.Context, userID string) (*model.Viewer, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+viewerColumns+` FROM viewers WHERE user_id = $1`, userID)
	v, err := scanViewer(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "postgres: viewer %s", userID)
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get viewer %s", userID)
	}
	return v, nil
}
