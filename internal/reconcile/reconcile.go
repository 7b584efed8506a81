// Package reconcile turns a proposal's vote history into one authoritative
// tally for its current revision.
package reconcile

import (
	"fmt"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/consensus-cli/internal/model"
)

// ErrInvalidSnapshot is returned when the caller hands over a snapshot that
// is missing required pieces. Tallying such a snapshot would silently
// corrupt the result.
var ErrInvalidSnapshot = eris.New("reconcile: invalid snapshot")

// StalePolicy decides what happens to voters without a vote on the current
// revision.
type StalePolicy int

const (
	// StaleAsAgainst counts stale and silent voters as implicit Against.
	StaleAsAgainst StalePolicy = iota
	// StaleExcluded leaves stale and silent voters out of the tally; they
	// show up in the waiting count instead.
	StaleExcluded
)

// ParseStalePolicy maps the config values "against" and "excluded".
func ParseStalePolicy(s string) (StalePolicy, error) {
	switch s {
	case "", "against":
		return StaleAsAgainst, nil
	case "excluded":
		return StaleExcluded, nil
	default:
		return 0, eris.Errorf("reconcile: unknown stale policy %q", s)
	}
}

// Options tune a reconciliation.
type Options struct {
	StalePolicy StalePolicy
}

// Input is a consistent snapshot of one proposal and its group, plus the
// viewer asking for the tally.
type Input struct {
	Proposal *model.Proposal
	Group    *model.Group
	ViewerID string
}

func invalid(format string, args ...any) error {
	return eris.Wrap(ErrInvalidSnapshot, fmt.Sprintf(format, args...))
}

func validate(in Input) error {
	p := in.Proposal
	if p == nil {
		return invalid("proposal is nil")
	}
	if p.ID == "" {
		return invalid("proposal id is empty")
	}
	if in.Group == nil {
		return invalid("group missing for proposal %s", p.ID)
	}
	if in.Group.ID != p.GroupID {
		return invalid("proposal %s belongs to group %q, got group %q", p.ID, p.GroupID, in.Group.ID)
	}
	if p.RevisionCount < 0 {
		return invalid("proposal %s has negative revision count %d", p.ID, p.RevisionCount)
	}
	for i, v := range p.Votes {
		if v.Revision < 0 {
			return invalid("proposal %s vote %d has negative revision %d", p.ID, i, v.Revision)
		}
	}
	return nil
}

// Reconcile computes the tally of the proposal's current revision.
//
// Each voter contributes at most one vote: the latest one cast on the
// current revision. Voters (and group members) without such a vote are
// handled by opts.StalePolicy, except the proposal's author, who is counted
// as an implicit For. Malformed records are skipped and reported as
// anomalies on the result; they never fail the call.
func Reconcile(in Input, opts Options) (model.AggregateResult, error) {
	if err := validate(in); err != nil {
		return model.AggregateResult{}, err
	}

	p := in.Proposal
	version := ResolveProposal(p)
	res := model.AggregateResult{ProposalID: p.ID, Version: version}

	recorded := p.SupersedingRevisions()
	live := make(map[string]model.VoteRecord)
	var voters []string
	seen := make(map[string]bool)

	for i, v := range p.Votes {
		if v.VoterID == "" {
			res.Anomalies = append(res.Anomalies, model.Anomaly{
				Code:   model.AnomalyMissingVoter,
				Detail: fmt.Sprintf("vote %d has no voter", i),
			})
			continue
		}
		if v.Decision == model.DecisionNone {
			res.Anomalies = append(res.Anomalies, model.Anomaly{
				Code:    model.AnomalyNoDecision,
				VoterID: v.VoterID,
				Detail:  fmt.Sprintf("vote %d on revision %d has no decision", i, v.Revision),
			})
			continue
		}
		if v.Revision > recorded {
			res.Anomalies = append(res.Anomalies, model.Anomaly{
				Code:    model.AnomalyFutureRevision,
				VoterID: v.VoterID,
				Detail:  fmt.Sprintf("vote targets revision %d but only %d recorded", v.Revision, recorded),
			})
		}
		if !seen[v.VoterID] {
			seen[v.VoterID] = true
			voters = append(voters, v.VoterID)
			if !in.Group.IsMember(v.VoterID) {
				res.Anomalies = append(res.Anomalies, model.Anomaly{
					Code:    model.AnomalyNonMemberVote,
					VoterID: v.VoterID,
				})
			}
		}
		if v.Revision != version {
			continue
		}
		// Latest timestamp wins; on a tie the later record wins.
		if cur, ok := live[v.VoterID]; !ok || !v.CastAt.Before(cur.CastAt) {
			live[v.VoterID] = v
		}
	}

	for _, id := range universe(in.Group.Members, voters, p.AuthorID) {
		if v, ok := live[id]; ok {
			if v.Decision == model.DecisionFor {
				res.For++
			} else {
				res.Against++
			}
			continue
		}
		if id == p.AuthorID {
			res.For++
			continue
		}
		if opts.StalePolicy == StaleAsAgainst {
			res.Against++
		}
	}

	res.Counted = res.For + res.Against
	res.Waiting = len(in.Group.Members) - res.Counted
	if res.Waiting < 0 {
		res.Anomalies = append(res.Anomalies, model.Anomaly{
			Code:   model.AnomalyNegativeWaiting,
			Detail: fmt.Sprintf("%d counted voters for %d members", res.Counted, len(in.Group.Members)),
		})
	}

	if v, ok := live[in.ViewerID]; ok && in.ViewerID != "" {
		d := v.Decision
		res.AlreadyVoted = true
		res.ViewerDecision = &d
	}

	if len(res.Anomalies) > 0 {
		zap.L().Debug("reconcile: data anomalies",
			zap.String("proposal_id", p.ID),
			zap.Int("version", version),
			zap.Int("anomalies", len(res.Anomalies)),
		)
	}

	return res, nil
}

// universe lists everyone whose position is tallied: group members, then
// voters outside the group, then the author if not already present.
func universe(members, voters []string, author string) []string {
	seen := make(map[string]bool, len(members)+len(voters)+1)
	out := make([]string, 0, len(members)+len(voters)+1)
	add := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		out = append(out, id)
	}
	for _, m := range members {
		add(m)
	}
	for _, v := range voters {
		add(v)
	}
	add(author)
	return out
}
