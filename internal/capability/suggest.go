package capability

import (
	"go.uber.org/zap"

	"github.com/sells-group/consensus-cli/internal/model"
)

// Suggest scores the open proposals for viewer. Proposals are discovered
// through the viewer's roles first, then through their skills, then through
// past inquiries. The viewer's own proposals are never suggested.
func Suggest(viewer model.Viewer, proposals []model.Proposal, weights Weights) []model.SuggestionScore {
	profile := viewer.Profile
	acc := NewAccumulator(profile, weights)

	open := make(map[string]bool, len(proposals))
	for _, p := range proposals {
		if p.Open && p.AuthorID != profile.UserID {
			open[p.ID] = true
		}
	}

	for _, p := range proposals {
		if open[p.ID] && p.Requirement.Roles.Overlaps(profile.Roles) {
			acc.Discover(p.ID, FacetRole, p.Requirement)
		}
	}
	for _, p := range proposals {
		if open[p.ID] && p.Requirement.Skills.Overlaps(profile.Skills) {
			acc.Discover(p.ID, FacetSkill, p.Requirement)
		}
	}
	for _, id := range viewer.Inquired {
		if open[id] {
			acc.Inquired(id)
		}
	}

	ranked := acc.Ranked(viewer.Declined)

	zap.L().Debug("capability: suggestions scored",
		zap.String("user_id", profile.UserID),
		zap.Int("candidates", len(proposals)),
		zap.Int("scored", acc.Len()),
		zap.Int("ranked", len(ranked)),
	)

	return ranked
}
