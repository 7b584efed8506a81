package store

import (
	"context"
	"os"
	"slices"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/consensus-cli/internal/model"
)

// Fixture is a complete snapshot of groups, viewers and proposals. It is the
// YAML document read by FixtureStore and the payload accepted by Seed.
type Fixture struct {
	Groups    []model.Group    `yaml:"groups" json:"groups"`
	Viewers   []model.Viewer   `yaml:"viewers" json:"viewers"`
	Proposals []model.Proposal `yaml:"proposals" json:"proposals"`
}

// LoadFixture reads and normalizes a fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "fixture: read %s", path)
	}
	return ParseFixture(data)
}

// ParseFixture decodes a YAML fixture and fills in defaults: proposals
// without an ID get a random one, and revisions without a number are
// numbered by position. Every proposal must name its kind.
func ParseFixture(data []byte) (*Fixture, error) {
	var f Fixture
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrap(err, "fixture: decode")
	}
	if err := requireKinds(data); err != nil {
		return nil, err
	}
	f.normalize()
	if err := f.validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// requireKinds rejects proposals that omit kind, which would otherwise
// decode as the zero Kind.
func requireKinds(data []byte) error {
	var raw struct {
		Proposals []struct {
			ID   string  `yaml:"id"`
			Kind *string `yaml:"kind"`
		} `yaml:"proposals"`
	}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return eris.Wrap(err, "fixture: decode")
	}
	for i, p := range raw.Proposals {
		if p.Kind == nil {
			return eris.Errorf("fixture: proposal %d (%q) has no kind", i, p.ID)
		}
	}
	return nil
}

func (f *Fixture) normalize() {
	for i := range f.Proposals {
		p := &f.Proposals[i]
		if p.ID == "" {
			p.ID = uuid.NewString()
		}
		for j := range p.Revisions {
			if p.Revisions[j].Number == 0 {
				p.Revisions[j].Number = j + 1
			}
		}
	}
}

func (f *Fixture) validate() error {
	groups := make(map[string]struct{}, len(f.Groups))
	for _, g := range f.Groups {
		if g.ID == "" {
			return eris.New("fixture: group without id")
		}
		if _, dup := groups[g.ID]; dup {
			return eris.Errorf("fixture: duplicate group %s", g.ID)
		}
		groups[g.ID] = struct{}{}
	}

	seen := make(map[string]struct{}, len(f.Proposals))
	for _, p := range f.Proposals {
		if _, dup := seen[p.ID]; dup {
			return eris.Errorf("fixture: duplicate proposal %s", p.ID)
		}
		seen[p.ID] = struct{}{}
		if _, ok := groups[p.GroupID]; !ok {
			return eris.Errorf("fixture: proposal %s references unknown group %q", p.ID, p.GroupID)
		}
		if !p.Kind.Valid() || p.Kind == model.KindSuggestion {
			return eris.Errorf("fixture: proposal %s has non-votable kind %s", p.ID, p.Kind)
		}
	}

	for _, v := range f.Viewers {
		if v.Profile.UserID == "" {
			return eris.New("fixture: viewer without user_id")
		}
	}
	return nil
}

// FixtureStore serves a Fixture from memory.
type FixtureStore struct {
	mu        sync.RWMutex
	groups    map[string]model.Group
	viewers   map[string]model.Viewer
	proposals map[string]model.Proposal
}

// NewFixtureStore returns an empty store. Call Seed to load data.
func NewFixtureStore() *FixtureStore {
	return &FixtureStore{
		groups:    make(map[string]model.Group),
		viewers:   make(map[string]model.Viewer),
		proposals: make(map[string]model.Proposal),
	}
}

// OpenFixture loads the fixture file at path into a new FixtureStore.
func OpenFixture(path string) (*FixtureStore, error) {
	f, err := LoadFixture(path)
	if err != nil {
		return nil, err
	}
	s := NewFixtureStore()
	if err := s.Seed(context.Background(), f); err != nil {
		return nil, err
	}
	return s, nil
}

// Migrate is a no-op.
func (s *FixtureStore) Migrate(context.Context) error { return nil }

// Close is a no-op.
func (s *FixtureStore) Close() error { return nil }

// Seed merges f into the store, replacing records with the same ID.
func (s *FixtureStore) Seed(_ context.Context, f *Fixture) error {
	if f == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range f.Groups {
		s.groups[g.ID] = cloneGroup(g)
	}
	for _, v := range f.Viewers {
		s.viewers[v.Profile.UserID] = v
	}
	for _, p := range f.Proposals {
		s.proposals[p.ID] = cloneProposal(p)
	}
	return nil
}

func (s *FixtureStore) GetProposal(_ context.Context, id string) (*model.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.proposals[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "fixture: proposal %s", id)
	}
	out := cloneProposal(p)
	return &out, nil
}

// ListProposals returns matching proposals ordered by creation time, then ID.
func (s *FixtureStore) ListProposals(_ context.Context, filter ProposalFilter) ([]model.Proposal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []model.Proposal
	for _, p := range s.proposals {
		if filter.OpenOnly && !p.Open {
			continue
		}
		if len(filter.GroupIDs) > 0 && !slices.Contains(filter.GroupIDs, p.GroupID) {
			continue
		}
		out = append(out, cloneProposal(p))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	if off := filter.offset(); off >= len(out) {
		out = nil
	} else {
		out = out[off:]
	}
	if limit := filter.limit(); len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *FixtureStore) GetGroup(_ context.Context, id string) (*model.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "fixture: group %s", id)
	}
	out := cloneGroup(g)
	return &out, nil
}

func (s *FixtureStore) GetViewer(_ context.Context, userID string) (*model.Viewer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.viewers[userID]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "fixture: viewer %s", userID)
	}
	return &v, nil
}

func cloneGroup(g model.Group) model.Group {
	g.Members = slices.Clone(g.Members)
	return g
}

func cloneProposal(p model.Proposal) model.Proposal {
	p.Votes = slices.Clone(p.Votes)
	p.Revisions = slices.Clone(p.Revisions)
	return p
}
