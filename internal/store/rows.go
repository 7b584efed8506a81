package store

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/consensus-cli/internal/model"
)

// Column lists shared by the SQL backends. Table and column names are the
// same in both schemas.
const (
	proposalColumns = `id, group_id, kind, author_id, open, field_values, requirement, revision_count, created_at`
	voteColumns     = `proposal_id, voter_id, revision, decision, reason, cast_at`
	revisionColumns = `proposal_id, number, author_id, field_values, created_at`
	viewerColumns   = `user_id, work_ways, skills, roles, inquired, declined, group_ids`
)

func splitColumns(cols string) []string {
	parts := strings.Split(cols, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

type scannable interface {
	Scan(dest ...any) error
}

func scanProposal(row scannable) (*model.Proposal, error) {
	var (
		p           model.Proposal
		kind        string
		values, req []byte
	)
	if err := row.Scan(&p.ID, &p.GroupID, &kind, &p.AuthorID, &p.Open, &values, &req, &p.RevisionCount, &p.CreatedAt); err != nil {
		return nil, err
	}
	k, err := model.ParseKind(kind)
	if err != nil {
		return nil, eris.Wrapf(err, "proposal %s", p.ID)
	}
	p.Kind = k
	if err := unmarshalJSON(values, &p.Values); err != nil {
		return nil, eris.Wrapf(err, "proposal %s values", p.ID)
	}
	if err := unmarshalJSON(req, &p.Requirement); err != nil {
		return nil, eris.Wrapf(err, "proposal %s requirement", p.ID)
	}
	return &p, nil
}

func scanVote(row scannable) (string, model.VoteRecord, error) {
	var (
		proposalID string
		v          model.VoteRecord
		decision   string
	)
	if err := row.Scan(&proposalID, &v.VoterID, &v.Revision, &decision, &v.Reason, &v.CastAt); err != nil {
		return "", v, err
	}
	d, err := model.ParseDecision(decision)
	if err != nil {
		return "", v, eris.Wrapf(err, "vote on %s", proposalID)
	}
	v.Decision = d
	return proposalID, v, nil
}

func scanRevision(row scannable) (string, model.NegotiationRevision, error) {
	var (
		proposalID string
		r          model.NegotiationRevision
		values     []byte
	)
	if err := row.Scan(&proposalID, &r.Number, &r.AuthorID, &values, &r.CreatedAt); err != nil {
		return "", r, err
	}
	if err := unmarshalJSON(values, &r.Values); err != nil {
		return "", r, eris.Wrapf(err, "revision %d of %s", r.Number, proposalID)
	}
	return proposalID, r, nil
}

func scanViewer(row scannable) (*model.Viewer, error) {
	var (
		v                                                model.Viewer
		workWays, skills, roles, inquired, declined, grp []byte
	)
	if err := row.Scan(&v.Profile.UserID, &workWays, &skills, &roles, &inquired, &declined, &grp); err != nil {
		return nil, err
	}
	for _, f := range []struct {
		raw []byte
		dst *model.IDSet
	}{
		{workWays, &v.Profile.WorkWays},
		{skills, &v.Profile.Skills},
		{roles, &v.Profile.Roles},
		{inquired, &v.Inquired},
		{declined, &v.Declined},
		{grp, &v.Groups},
	} {
		if err := unmarshalJSON(f.raw, f.dst); err != nil {
			return nil, eris.Wrapf(err, "viewer %s", v.Profile.UserID)
		}
	}
	return &v, nil
}

func unmarshalJSON(raw []byte, dst any) error {
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, dst)
}

// jsonText marshals v for a TEXT or JSONB column. Nil slices become [].
func jsonText(v any) (string, error) {
	if ids, ok := v.(model.IDSet); ok && ids == nil {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", eris.Wrap(err, "marshal json column")
	}
	return string(b), nil
}

// viewerRow returns the column values of v in viewerColumns order.
func viewerRow(v model.Viewer) ([]any, error) {
	row := []any{v.Profile.UserID}
	for _, ids := range []model.IDSet{v.Profile.WorkWays, v.Profile.Skills, v.Profile.Roles, v.Inquired, v.Declined, v.Groups} {
		s, err := jsonText(ids)
		if err != nil {
			return nil, err
		}
		row = append(row, s)
	}
	return row, nil
}

// proposalRow returns the column values of p in proposalColumns order.
func proposalRow(p model.Proposal) ([]any, error) {
	values, err := jsonText(p.Values)
	if err != nil {
		return nil, err
	}
	req, err := jsonText(p.Requirement)
	if err != nil {
		return nil, err
	}
	created := p.CreatedAt.UTC()
	if p.CreatedAt.IsZero() {
		created = time.Now().UTC()
	}
	return []any{p.ID, p.GroupID, p.Kind.String(), p.AuthorID, p.Open, values, req, p.RevisionCount, created}, nil
}

// attach distributes votes and revisions onto the proposals they belong to.
func attach(proposals []model.Proposal, votes map[string][]model.VoteRecord, revs map[string][]model.NegotiationRevision) {
	for i := range proposals {
		proposals[i].Votes = votes[proposals[i].ID]
		proposals[i].Revisions = revs[proposals[i].ID]
	}
}

func proposalIDs(proposals []model.Proposal) []string {
	ids := make([]string, len(proposals))
	for i, p := range proposals {
		ids[i] = p.ID
	}
	return ids
}
