package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/rotisserie/eris"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/sells-group/consensus-cli/internal/model"
	"github.com/sells-group/consensus-cli/internal/resilience"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
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
	id             TEXT PRIMARY KEY,
	group_id       TEXT NOT NULL REFERENCES project_groups(id),
	kind           TEXT NOT NULL,
	author_id      TEXT NOT NULL DEFAULT '',
	open           INTEGER NOT NULL DEFAULT 1,
	field_values   TEXT NOT NULL DEFAULT '{}',
	requirement    TEXT NOT NULL DEFAULT '{}',
	revision_count INTEGER NOT NULL DEFAULT 0,
	created_at     DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS negotiation_revisions (
	proposal_id  TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
	number       INTEGER NOT NULL,
	author_id    TEXT NOT NULL DEFAULT '',
	field_values TEXT NOT NULL DEFAULT '{}',
	created_at   DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (proposal_id, number)
);

CREATE TABLE IF NOT EXISTS votes (
	proposal_id TEXT NOT NULL REFERENCES proposals(id) ON DELETE CASCADE,
	seq         INTEGER NOT NULL,
	voter_id    TEXT NOT NULL DEFAULT '',
	revision    INTEGER NOT NULL DEFAULT 0,
	decision    TEXT NOT NULL DEFAULT '',
	reason      TEXT NOT NULL DEFAULT '',
	cast_at     DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (proposal_id, seq)
);

CREATE TABLE IF NOT EXISTS viewers (
	user_id   TEXT PRIMARY KEY,
	work_ways TEXT NOT NULL DEFAULT '[]',
	skills    TEXT NOT NULL DEFAULT '[]',
	roles     TEXT NOT NULL DEFAULT '[]',
	inquired  TEXT NOT NULL DEFAULT '[]',
	declined  TEXT NOT NULL DEFAULT '[]',
	group_ids TEXT NOT NULL DEFAULT '[]'
);

CREATE INDEX IF NOT EXISTS idx_proposals_group_id ON proposals(group_id);
CREATE INDEX IF NOT EXISTS idx_proposals_open ON proposals(open);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(transient(err), "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Seed writes f in one transaction, replacing records with the same ID.
func (s *SQLiteStore) Seed(ctx context.Context, f *Fixture) (err error) {
	if f == nil {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(transient(err), "sqlite: begin seed")
	}
	defer func() {
		if err != nil {
			tx.Rollback() //nolint:errcheck
		}
	}()

	for _, g := range f.Groups {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO project_groups (id, name) VALUES (?, ?)
			 ON CONFLICT(id) DO UPDATE SET name = excluded.name`, g.ID, g.Name); err != nil {
			return eris.Wrapf(err, "sqlite: seed group %s", g.ID)
		}
		if _, err = tx.ExecContext(ctx, `DELETE FROM group_members WHERE group_id = ?`, g.ID); err != nil {
			return eris.Wrapf(err, "sqlite: clear members of %s", g.ID)
		}
		for i, m := range model.NewIDSet(g.Members...) {
			if _, err = tx.ExecContext(ctx,
				`INSERT INTO group_members (group_id, user_id, position) VALUES (?, ?, ?)`, g.ID, m, i); err != nil {
				return eris.Wrapf(err, "sqlite: seed member %s of %s", m, g.ID)
			}
		}
	}

	for _, v := range f.Viewers {
		var row []any
		if row, err = viewerRow(v); err != nil {
			return eris.Wrapf(err, "sqlite: seed viewer %s", v.Profile.UserID)
		}
		if _, err = tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO viewers (`+viewerColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`, row...); err != nil {
			return eris.Wrapf(err, "sqlite: seed viewer %s", v.Profile.UserID)
		}
	}

	for _, p := range f.Proposals {
		if err = seedProposalSQLite(ctx, tx, p); err != nil {
			return err
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit seed")
}

func seedProposalSQLite(ctx context.Context, tx *sql.Tx, p model.Proposal) error {
	row, err := proposalRow(p)
	if err != nil {
		return eris.Wrapf(err, "sqlite: seed proposal %s", p.ID)
	}
	// Children go first so a replaced proposal does not keep stale votes.
	for _, table := range []string{"votes", "negotiation_revisions"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE proposal_id = ?`, p.ID); err != nil {
			return eris.Wrapf(err, "sqlite: clear %s of %s", table, p.ID)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO proposals (`+proposalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`, row...); err != nil {
		return eris.Wrapf(err, "sqlite: seed proposal %s", p.ID)
	}
	for _, r := range p.Revisions {
		values, err := jsonText(r.Values)
		if err != nil {
			return eris.Wrapf(err, "sqlite: seed revision %d of %s", r.Number, p.ID)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO negotiation_revisions (`+revisionColumns+`) VALUES (?, ?, ?, ?, ?)`,
			p.ID, r.Number, r.AuthorID, values, r.CreatedAt.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: seed revision %d of %s", r.Number, p.ID)
		}
	}
	for i, v := range p.Votes {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO votes (seq, `+voteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?)`,
			i, p.ID, v.VoterID, v.Revision, string(v.Decision), v.Reason, v.CastAt.UTC()); err != nil {
			return eris.Wrapf(err, "sqlite: seed vote %d of %s", i, p.ID)
		}
	}
	return nil
}

func (s *SQLiteStore) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+proposalColumns+` FROM proposals WHERE id = ?`, id)
	p, err := scanProposal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: proposal %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(transient(err), "sqlite: get proposal %s", id)
	}
	list := []model.Proposal{*p}
	if err := s.loadChildren(ctx, list); err != nil {
		return nil, err
	}
	return &list[0], nil
}

func (s *SQLiteStore) ListProposals(ctx context.Context, filter ProposalFilter) ([]model.Proposal, error) {
	query := `SELECT ` + proposalColumns + ` FROM proposals WHERE 1=1`
	var args []any
	if filter.OpenOnly {
		query += ` AND open = 1`
	}
	if len(filter.GroupIDs) > 0 {
		query += ` AND group_id IN (` + placeholders(len(filter.GroupIDs)) + `)`
		for _, g := range filter.GroupIDs {
			args = append(args, g)
		}
	}
	query += ` ORDER BY created_at, id LIMIT ? OFFSET ?`
	args = append(args, filter.limit(), filter.offset())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(transient(err), "sqlite: list proposals")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.Proposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan proposal")
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, eris.Wrap(err, "sqlite: list proposals iterate")
	}
	if err := s.loadChildren(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *SQLiteStore) loadChildren(ctx context.Context, proposals []model.Proposal) error {
	if len(proposals) == 0 {
		return nil
	}
	ids := proposalIDs(proposals)
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	in := placeholders(len(ids))

	votes := make(map[string][]model.VoteRecord)
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE proposal_id IN (`+in+`) ORDER BY proposal_id, seq`, args...)
	if err != nil {
		return eris.Wrap(transient(err), "sqlite: load votes")
	}
	for rows.Next() {
		pid, v, err := scanVote(rows)
		if err != nil {
			rows.Close() //nolint:errcheck
			return eris.Wrap(err, "sqlite: scan vote")
		}
		votes[pid] = append(votes[pid], v)
	}
	rows.Close() //nolint:errcheck
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: load votes iterate")
	}

	revs := make(map[string][]model.NegotiationRevision)
	rows, err = s.db.QueryContext(ctx,
		`SELECT `+revisionColumns+` FROM negotiation_revisions WHERE proposal_id IN (`+in+`) ORDER BY proposal_id, number`, args...)
	if err != nil {
		return eris.Wrap(transient(err), "sqlite: load revisions")
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		pid, r, err := scanRevision(rows)
		if err != nil {
			return eris.Wrap(err, "sqlite: scan revision")
		}
		revs[pid] = append(revs[pid], r)
	}
	if err := rows.Err(); err != nil {
		return eris.Wrap(err, "sqlite: load revisions iterate")
	}

	attach(proposals, votes, revs)
	return nil
}

func (s *SQLiteStore) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	g := model.Group{ID: id}
	err := s.db.QueryRowContext(ctx, `SELECT name FROM project_groups WHERE id = ?`, id).Scan(&g.Name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: group %s", id)
	}
	if err != nil {
		return nil, eris.Wrapf(transient(err), "sqlite: get group %s", id)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT user_id FROM group_members WHERE group_id = ? ORDER BY position`, id)
	if err != nil {
		return nil, eris.Wrapf(transient(err), "sqlite: members of %s", id)
	}
	defer rows.Close() //nolint:errcheck
	for rows.Next() {
		var m string
		if err := rows.Scan(&m); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan member")
		}
		g.Members = append(g.Members, m)
	}
	return &g, eris.Wrap(rows.Err(), "sqlite: members iterate")
}

func (s *SQLiteStore) GetViewer(ctx context.Context, userID string) (*model.Viewer, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+viewerColumns+` FROM viewers WHERE user_id = ?`, userID)
	v, err := scanViewer(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, eris.Wrapf(ErrNotFound, "sqlite: viewer %s", userID)
	}
	return v, eris.Wrapf(transient(err), "sqlite: get viewer %s", userID)
}

// transient marks lock contention that outlasted busy_timeout as retryable.
func transient(err error) error {
	var se *sqlite.Error
	if errors.As(err, &se) {
		switch se.Code() & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return resilience.NewTransientError(err)
		}
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
