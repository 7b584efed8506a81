// Package feed assembles reconciled tallies, suggestions and revision
// histories for viewers. It owns the I/O around the pure core: loading
// snapshots, fanning reconciliation out, and recording metrics.
package feed

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/consensus-cli/internal/capability"
	"github.com/sells-group/consensus-cli/internal/config"
	"github.com/sells-group/consensus-cli/internal/diff"
	"github.com/sells-group/consensus-cli/internal/metrics"
	"github.com/sells-group/consensus-cli/internal/model"
	"github.com/sells-group/consensus-cli/internal/rank"
	"github.com/sells-group/consensus-cli/internal/reconcile"
	"github.com/sells-group/consensus-cli/internal/store"
)

const defaultConcurrency = 8

// Service answers tally, suggestion, diff and feed queries.
type Service struct {
	src         store.Source
	table       rank.Table
	weights     capability.Weights
	opts        reconcile.Options
	concurrency int
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewService builds a Service from cfg. m may be nil.
func NewService(src store.Source, cfg *config.Config, m *metrics.Metrics) (*Service, error) {
	table, err := rank.NewTable(cfg.Priorities)
	if err != nil {
		return nil, eris.Wrap(err, "feed: priorities")
	}
	policy, err := reconcile.ParseStalePolicy(cfg.Reconcile.StalePolicy)
	if err != nil {
		return nil, eris.Wrap(err, "feed: stale policy")
	}
	concurrency := cfg.Feed.Concurrency
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Service{
		src:         src,
		table:       table,
		weights:     capability.Weights{RoleBase: cfg.Scoring.RoleBase, SkillBase: cfg.Scoring.SkillBase},
		opts:        reconcile.Options{StalePolicy: policy},
		concurrency: concurrency,
		metrics:     m,
		now:         time.Now,
	}, nil
}

// Tally reconciles one proposal for viewerID.
func (s *Service) Tally(ctx context.Context, proposalID, viewerID string) (*model.AggregateResult, error) {
	p, err := s.src.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: load proposal %s", proposalID)
	}
	g, err := s.src.GetGroup(ctx, p.GroupID)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: load group %s", p.GroupID)
	}
	res, err := reconcile.Reconcile(reconcile.Input{Proposal: p, Group: g, ViewerID: viewerID}, s.opts)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: reconcile %s", proposalID)
	}
	s.metrics.ObserveTally(p.Kind, res)
	return &res, nil
}

// Suggestions ranks the open proposals of every group for userID.
func (s *Service) Suggestions(ctx context.Context, userID string) ([]model.SuggestionScore, error) {
	viewer, err := s.src.GetViewer(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: load viewer %s", userID)
	}
	open, err := store.ListAll(ctx, s.src, store.ProposalFilter{OpenOnly: true})
	if err != nil {
		return nil, eris.Wrap(err, "feed: list open proposals")
	}
	scores := capability.Suggest(*viewer, open, s.weights)
	s.metrics.ObserveSuggestions(len(scores))
	return scores, nil
}

// Diff narrates every revision of a proposal.
func (s *Service) Diff(ctx context.Context, proposalID string) ([]diff.Entry, error) {
	p, err := s.src.GetProposal(ctx, proposalID)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: load proposal %s", proposalID)
	}
	return diff.History(p), nil
}

// Feed is one viewer's merged, prioritized list of items.
type Feed struct {
	ID          string      `json:"id"`
	UserID      string      `json:"user_id"`
	GeneratedAt time.Time   `json:"generated_at"`
	Items       []rank.Item `json:"items"`
}

// Feed builds userID's feed: a tally of every open proposal in the
// viewer's groups plus the viewer's suggestions, merged by priority.
func (s *Service) Feed(ctx context.Context, userID string) (f *Feed, err error) {
	start := s.now()
	defer func() { s.metrics.ObserveFeed(s.now().Sub(start), err) }()

	viewer, err := s.src.GetViewer(ctx, userID)
	if err != nil {
		return nil, eris.Wrapf(err, "feed: load viewer %s", userID)
	}
	open, err := store.ListAll(ctx, s.src, store.ProposalFilter{OpenOnly: true})
	if err != nil {
		return nil, eris.Wrap(err, "feed: list open proposals")
	}

	var mine []model.Proposal
	for _, p := range open {
		if viewer.Groups.Contains(p.GroupID) {
			mine = append(mine, p)
		}
	}

	tallies, err := s.tallyAll(ctx, mine, userID)
	if err != nil {
		return nil, err
	}

	byID := make(map[string]*model.Proposal, len(open))
	for i := range open {
		byID[open[i].ID] = &open[i]
	}
	scores := capability.Suggest(*viewer, open, s.weights)
	s.metrics.ObserveSuggestions(len(scores))
	suggestions := make([]rank.Item, len(scores))
	for i, sc := range scores {
		suggestions[i] = s.table.ForSuggestion(byID[sc.ProposalID], sc)
	}

	f = &Feed{
		ID:          uuid.NewString(),
		UserID:      userID,
		GeneratedAt: start.UTC(),
		Items:       rank.Merge(tallies, suggestions),
	}
	zap.L().Debug("feed: built",
		zap.String("feed_id", f.ID),
		zap.String("user_id", userID),
		zap.Int("tallies", len(tallies)),
		zap.Int("suggestions", len(suggestions)),
	)
	return f, nil
}

// tallyAll reconciles proposals concurrently. Groups are loaded once each.
// The returned items keep the order of proposals.
func (s *Service) tallyAll(ctx context.Context, proposals []model.Proposal, viewerID string) ([]rank.Item, error) {
	groups, err := s.loadGroups(ctx, proposals)
	if err != nil {
		return nil, err
	}

	items := make([]rank.Item, len(proposals))
	g, _ := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i := range proposals {
		p := &proposals[i]
		g.Go(func() error {
			res, err := reconcile.Reconcile(reconcile.Input{Proposal: p, Group: groups[p.GroupID], ViewerID: viewerID}, s.opts)
			if err != nil {
				return eris.Wrapf(err, "feed: reconcile %s", p.ID)
			}
			s.metrics.ObserveTally(p.Kind, res)
			items[i] = s.table.ForTally(p, res)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Service) loadGroups(ctx context.Context, proposals []model.Proposal) (map[string]*model.Group, error) {
	var ids []string
	seen := make(map[string]bool)
	for _, p := range proposals {
		if !seen[p.GroupID] {
			seen[p.GroupID] = true
			ids = append(ids, p.GroupID)
		}
	}

	loaded := make([]*model.Group, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, id := range ids {
		g.Go(func() error {
			grp, err := s.src.GetGroup(gctx, id)
			if err != nil {
				return eris.Wrapf(err, "feed: load group %s", id)
			}
			loaded[i] = grp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[string]*model.Group, len(ids))
	for i, id := range ids {
		out[id] = loaded[i]
	}
	return out, nil
}
