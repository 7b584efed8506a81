package store

import (
	"context"

	"github.com/sells-group/consensus-cli/internal/model"
	"github.com/sells-group/consensus-cli/internal/resilience"
)

// RetrySource retries the reads of an inner Source on transient errors.
// ErrNotFound and other permanent errors are returned immediately.
type RetrySource struct {
	inner Source
	cfg   resilience.RetryConfig
}

// WithRetry wraps src so every read is retried per cfg.
func WithRetry(src Source, cfg resilience.RetryConfig) *RetrySource {
	return &RetrySource{inner: src, cfg: cfg}
}

func (r *RetrySource) withLogger(op string) resilience.RetryConfig {
	cfg := r.cfg
	if cfg.OnRetry == nil {
		cfg.OnRetry = resilience.RetryLogger(op)
	}
	return cfg
}

func (r *RetrySource) GetProposal(ctx context.Context, id string) (*model.Proposal, error) {
	return resilience.DoVal(ctx, r.withLogger("store.get_proposal"), func(ctx context.Context) (*model.Proposal, error) {
		return r.inner.GetProposal(ctx, id)
	})
}

func (r *RetrySource) ListProposals(ctx context.Context, filter ProposalFilter) ([]model.Proposal, error) {
	return resilience.DoVal(ctx, r.withLogger("store.list_proposals"), func(ctx context.Context) ([]model.Proposal, error) {
		return r.inner.ListProposals(ctx, filter)
	})
}

func (r *RetrySource) GetGroup(ctx context.Context, id string) (*model.Group, error) {
	return resilience.DoVal(ctx, r.withLogger("store.get_group"), func(ctx context.Context) (*model.Group, error) {
		return r.inner.GetGroup(ctx, id)
	})
}

func (r *RetrySource) GetViewer(ctx context.Context, userID string) (*model.Viewer, error) {
	return resilience.DoVal(ctx, r.withLogger("store.get_viewer"), func(ctx context.Context) (*model.Viewer, error) {
		return r.inner.GetViewer(ctx, userID)
	})
}
