package model

// AnomalyCode classifies a data-quality problem found while reconciling.
type AnomalyCode string

const (
	AnomalyMissingVoter    AnomalyCode = "missing_voter"
	AnomalyNoDecision      AnomalyCode = "no_decision"
	AnomalyFutureRevision  AnomalyCode = "future_revision"
	AnomalyNegativeWaiting AnomalyCode = "negative_waiting"
	AnomalyNonMemberVote   AnomalyCode = "non_member_vote"
)

// Anomaly is a non-fatal data-quality signal attached to a result.
type Anomaly struct {
	Code    AnomalyCode `json:"code"`
	VoterID string      `json:"voter_id,omitempty"`
	Detail  string      `json:"detail,omitempty"`
}

// AggregateResult is the authoritative tally of a proposal's current
// revision as seen by one viewer.
type AggregateResult struct {
	ProposalID     string    `json:"proposal_id"`
	Version        int       `json:"version"`
	For            int       `json:"for"`
	Against        int       `json:"against"`
	Counted        int       `json:"counted"`
	Waiting        int       `json:"waiting"`
	AlreadyVoted   bool      `json:"already_voted"`
	ViewerDecision *Decision `json:"viewer_decision"`
	Anomalies      []Anomaly `json:"anomalies,omitempty"`
}

// ScoreSource records which capability facet first surfaced a suggestion.
type ScoreSource string

const (
	SourceRole    ScoreSource = "role"
	SourceSkill   ScoreSource = "skill"
	SourceInquiry ScoreSource = "inquiry"
)

// SuggestionScore is a proposal's relevance to one user.
type SuggestionScore struct {
	ProposalID string      `json:"proposal_id"`
	Score      int         `json:"score"`
	Source     ScoreSource `json:"source"`
}
