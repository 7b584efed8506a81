// Package store loads proposal snapshots from Postgres, SQLite or a YAML
// fixture. Sources are read-only from the point of view of the feed; Seed
// and Migrate exist for operators and tests.
package store

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"

	"github.com/sells-group/consensus-cli/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = eris.New("store: not found")

// IsNotFound reports whether err wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// ProposalFilter narrows ListProposals. Results are ordered by creation
// time, then ID; Limit and Offset select one page of that order.
type ProposalFilter struct {
	GroupIDs []string
	OpenOnly bool
	Limit    int
	Offset   int
}

const defaultListLimit = 500

func (f ProposalFilter) limit() int {
	if f.Limit <= 0 {
		return defaultListLimit
	}
	return f.Limit
}

func (f ProposalFilter) offset() int {
	return max(f.Offset, 0)
}

// ListAll pages through src until every proposal matching filter has been
// read. filter.Limit sets the page size; filter.Offset is ignored.
func ListAll(ctx context.Context, src Source, filter ProposalFilter) ([]model.Proposal, error) {
	filter.Offset = 0
	size := filter.limit()
	var out []model.Proposal
	for {
		page, err := src.ListProposals(ctx, filter)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < size {
			return out, nil
		}
		filter.Offset += len(page)
	}
}

// Source reads proposal snapshots. Every returned value is a fresh copy the
// caller may keep.
type Source interface {
	GetProposal(ctx context.Context, id string) (*model.Proposal, error)
	ListProposals(ctx context.Context, filter ProposalFilter) ([]model.Proposal, error)
	GetGroup(ctx context.Context, id string) (*model.Group, error)
	GetViewer(ctx context.Context, userID string) (*model.Viewer, error)
}

// Store is a Source that can also be migrated and seeded.
type Store interface {
	Source

	Migrate(ctx context.Context) error
	Seed(ctx context.Context, f *Fixture) error
	Close() error
}

var (
	_ Store  = (*PostgresStore)(nil)
	_ Store  = (*SQLiteStore)(nil)
	_ Store  = (*FixtureStore)(nil)
	_ Source = (*RetrySource)(nil)
)
