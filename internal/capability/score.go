// Package capability ranks open proposals for a user by comparing the
// proposal's requirements with the user's declared capabilities.
package capability

import (
	"slices"

	"github.com/sells-group/consensus-cli/internal/model"
)

// Facet is the capability through which a proposal was found.
type Facet int

const (
	FacetRole Facet = iota
	FacetSkill
)

// Source returns the score source tag recorded for a facet.
func (f Facet) Source() model.ScoreSource {
	if f == FacetRole {
		return model.SourceRole
	}
	return model.SourceSkill
}

// Weights are the per-facet base values. A proposal found only because the
// user inquired about it gets SkillBase.
type Weights struct {
	RoleBase  int
	SkillBase int
}

// DefaultWeights returns role = 1, skill = 2.
func DefaultWeights() Weights {
	return Weights{RoleBase: 1, SkillBase: 2}
}

// Base returns the base value of a facet.
func (w Weights) Base(f Facet) int {
	if f == FacetRole {
		return w.RoleBase
	}
	return w.SkillBase
}

// CalculateScore scores how well capability fits requirement, starting from
// baseScore.
//
// Work ways only move the score when the user declared some: each match adds
// one, each mismatch subtracts one, and a requirement with no match at all
// costs two per mismatch. Every required skill the user lacks then costs two
// and every missing role costs one.
func CalculateScore(requirement model.Requirement, capability model.CapabilityProfile, baseScore int) int {
	score := baseScore

	if len(capability.WorkWays) > 0 {
		matches := len(requirement.WorkWays.Intersect(capability.WorkWays))
		mismatches := len(requirement.WorkWays.Minus(capability.WorkWays))

		switch {
		case matches > 0 && mismatches == 0:
			score = baseScore + matches
		case matches > 0:
			score = baseScore + matches - mismatches
		case mismatches > 0:
			score = baseScore - 2*mismatches
		}
	}

	score -= 2 * len(requirement.Skills.Minus(capability.Skills))
	score -= len(requirement.Roles.Minus(capability.Roles))
	return score
}

// Accumulator gathers scores for one scoring pass. It is not safe for
// concurrent use; build one per pass.
type Accumulator struct {
	weights Weights
	profile model.CapabilityProfile
	scores  map[string]*model.SuggestionScore
	order   []string
}

// NewAccumulator starts a scoring pass for profile.
func NewAccumulator(profile model.CapabilityProfile, weights Weights) *Accumulator {
	return &Accumulator{
		weights: weights,
		profile: profile,
		scores:  make(map[string]*model.SuggestionScore),
	}
}

// Discover records that proposalID was found through facet. The first
// discovery scores the proposal from scratch with the facet's base value;
// later discoveries add the facet's base value to the existing score.
func (a *Accumulator) Discover(proposalID string, facet Facet, requirement model.Requirement) {
	base := a.weights.Base(facet)
	if s, ok := a.scores[proposalID]; ok {
		s.Score += base
		return
	}
	a.add(model.SuggestionScore{
		ProposalID: proposalID,
		Score:      CalculateScore(requirement, a.profile, base),
		Source:     facet.Source(),
	})
}

// Inquired records a proposal the user asked about. It only takes effect if
// no facet discovered the proposal.
func (a *Accumulator) Inquired(proposalID string) {
	if _, ok := a.scores[proposalID]; ok {
		return
	}
	a.add(model.SuggestionScore{
		ProposalID: proposalID,
		Score:      a.weights.SkillBase,
		Source:     model.SourceInquiry,
	})
}

func (a *Accumulator) add(s model.SuggestionScore) {
	a.scores[s.ProposalID] = &s
	a.order = append(a.order, s.ProposalID)
}

// Len returns the number of proposals scored so far.
func (a *Accumulator) Len() int {
	return len(a.scores)
}

// Ranked drops declined proposals and returns the rest by descending score.
// Ties keep the order in which proposals were first seen.
func (a *Accumulator) Ranked(declined model.IDSet) []model.SuggestionScore {
	out := make([]model.SuggestionScore, 0, len(a.order))
	for _, id := range a.order {
		if declined.Contains(id) {
			continue
		}
		out = append(out, *a.scores[id])
	}
	slices.SortStableFunc(out, func(x, y model.SuggestionScore) int {
		return y.Score - x.Score
	})
	return out
}
