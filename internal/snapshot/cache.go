// Package snapshot caches fetched proposal snapshots in memory. The cache
// belongs to the feed service; the reconciliation core never sees it.
package snapshot

import (
	"context"
	"slices"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/sells-group/consensus-cli/internal/metrics"
	"github.com/sells-group/consensus-cli/internal/model"
	"github.com/sells-group/consensus-cli/internal/store"
)

// Options sizes the cache. Size <= 0 means unbounded; TTL <= 0 means
// entries never expire.
type Options struct {
	Size int
	TTL  time.Duration
}

// Cache is a store.Source that serves repeat reads of proposals, groups and
// viewers from memory. It is safe for concurrent use.
type Cache struct {
	src       store.Source
	metrics   *metrics.Metrics
	proposals *expirable.LRU[string, model.Proposal]
	groups    *expirable.LRU[string, model.Group]
	viewers   *expirable.LRU[string, model.Viewer]
}

// New wraps src. m may be nil.
func New(src store.Source, opts Options, m *metrics.Metrics) *Cache {
	return &Cache{
		src:       src,
		metrics:   m,
		proposals: expirable.NewLRU[string, model.Proposal](opts.Size, nil, opts.TTL),
		groups:    expirable.NewLRU[string, model.Group](opts.Size, nil, opts.TTL),
		viewers:   expirable.NewLRU[string, model.Viewer](opts.Size, nil, opts.TTL),
	}
}

func (c *Cache) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	if p, ok := c.proposals.Get(id); ok {
		c.metrics.CacheLookup("proposal", true)
		out := cloneProposal(p)
		return &out, nil
	}
	c.metrics.CacheLookup("proposal", false)

	p, err := c.src.GetProposal(ctx, id)
	if err != nil {
		return nil, err
	}
	c.proposals.Add(id, cloneProposal(*p))
	return p, nil
}

// ListProposals always reads through to the source so new proposals show
// up, and refreshes the cached copy of every proposal it returns.
func (c *Cache) ListProposals(ctx context.Context, filter store.ProposalFilter) ([]model.Proposal, error) {
	list, err := c.src.ListProposals(ctx, filter)
	if err != nil {
		return nil, err
	}
	for _, p := range list {
		c.proposals.Add(p.ID, cloneProposal(p))
	}
	return list, nil
}

func (c *Cache) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	if g, ok := c.groups.Get(id); ok {
		c.metrics.CacheLookup("group", true)
		g.Members = slices.Clone(g.Members)
		return &g, nil
	}
	c.metrics.CacheLookup("group", false)

	g, err := c.src.GetGroup(ctx, id)
	if err != nil {
		return nil, err
	}
	cached := *g
	cached.Members = slices.Clone(g.Members)
	c.groups.Add(id, cached)
	return g, nil
}

func (c *Cache) GetViewer(ctx context.Context, userID string) (*model.Viewer, error) {
	if v, ok := c.viewers.Get(userID); ok {
		c.metrics.CacheLookup("viewer", true)
		return &v, nil
	}
	c.metrics.CacheLookup("viewer", false)

	v, err := c.src.GetViewer(ctx, userID)
	if err != nil {
		return nil, err
	}
	c.viewers.Add(userID, *v)
	return v, nil
}

// InvalidateProposal drops the cached copy of a proposal, e.g. after a vote
// was cast upstream.
func (c *Cache) InvalidateProposal(id string) {
	c.proposals.Remove(id)
}

// Purge empties the cache.
func (c *Cache) Purge() {
	c.proposals.Purge()
	c.groups.Purge()
	c.viewers.Purge()
}

// Len returns the number of cached proposals.
func (c *Cache) Len() int {
	return c.proposals.Len()
}

func cloneProposal(p model.Proposal) model.Proposal {
	p.Votes = slices.Clone(p.Votes)
	p.Revisions = slices.Clone(p.Revisions)
	return p
}

var _ store.Source = (*Cache)(nil)
