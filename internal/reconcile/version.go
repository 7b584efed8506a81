package reconcile

import "github.com/sells-group/consensus-cli/internal/model"

// Resolve returns the current revision of a proposal: the larger of the
// recorded negotiation revision count and the highest revision any vote
// targets. Both default to zero. Records without a voter or a decision are
// not votes and never move the version.
func Resolve(revisionCount int, votes []model.VoteRecord) int {
	current := max(revisionCount, 0)
	for _, v := range votes {
		if v.VoterID == "" || v.Decision == model.DecisionNone {
			continue
		}
		current = max(current, v.Revision)
	}
	return current
}

// ResolveProposal applies Resolve to a proposal snapshot.
func ResolveProposal(p *model.Proposal) int {
	if p == nil {
		return 0
	}
	return Resolve(p.SupersedingRevisions(), p.Votes)
}
