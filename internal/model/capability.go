package model

// IDSet is a list of identifiers treated as a set. Duplicates are ignored by
// every set operation.
type IDSet []string

// NewIDSet builds an IDSet, dropping duplicates and empty identifiers while
// keeping first-seen order.
func NewIDSet(ids ...string) IDSet {
	seen := make(map[string]struct{}, len(ids))
	out := make(IDSet, 0, len(ids))
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func (s IDSet) index() map[string]struct{} {
	m := make(map[string]struct{}, len(s))
	for _, id := range s {
		m[id] = struct{}{}
	}
	return m
}

// Contains reports whether id is in the set.
func (s IDSet) Contains(id string) bool {
	for _, v := range s {
		if v == id {
			return true
		}
	}
	return false
}

// Intersect returns the identifiers of s that are also in o.
func (s IDSet) Intersect(o IDSet) IDSet {
	other := o.index()
	var out []string
	for _, id := range NewIDSet(s...) {
		if _, ok := other[id]; ok {
			out = append(out, id)
		}
	}
	return out
}

// Minus returns the identifiers of s that are not in o.
func (s IDSet) Minus(o IDSet) IDSet {
	other := o.index()
	var out []string
	for _, id := range NewIDSet(s...) {
		if _, ok := other[id]; !ok {
			out = append(out, id)
		}
	}
	return out
}

// Overlaps reports whether s and o share at least one identifier.
func (s IDSet) Overlaps(o IDSet) bool {
	other := o.index()
	for _, id := range s {
		if _, ok := other[id]; ok {
			return true
		}
	}
	return false
}

// Requirement is what a proposal asks of the people who take it on.
type Requirement struct {
	WorkWays IDSet `json:"work_ways,omitempty" yaml:"work_ways,omitempty"`
	Skills   IDSet `json:"skills,omitempty" yaml:"skills,omitempty"`
	Roles    IDSet `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// CapabilityProfile is what a user declares they can do and how they like
// to work.
type CapabilityProfile struct {
	UserID   string `json:"user_id" yaml:"user_id"`
	WorkWays IDSet  `json:"work_ways,omitempty" yaml:"work_ways,omitempty"`
	Skills   IDSet  `json:"skills,omitempty" yaml:"skills,omitempty"`
	Roles    IDSet  `json:"roles,omitempty" yaml:"roles,omitempty"`
}

// Viewer bundles a user's capability profile with their suggestion history.
type Viewer struct {
	Profile CapabilityProfile `json:"profile" yaml:"profile"`
	// Inquired lists proposals the user asked about.
	Inquired IDSet `json:"inquired,omitempty" yaml:"inquired,omitempty"`
	// Declined lists proposals the user turned down; they are never suggested.
	Declined IDSet `json:"declined,omitempty" yaml:"declined,omitempty"`
	// Groups lists the groups whose proposals appear in the user's feed.
	Groups IDSet `json:"groups,omitempty" yaml:"groups,omitempty"`
}
