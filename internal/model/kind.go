package model

import (
	"strings"

	"github.com/rotisserie/eris"
)

// Kind identifies what sort of votable (or suggested) item a proposal is.
type Kind int

const (
	KindMission Kind = iota
	KindResource
	KindDistribution
	KindDecision
	KindSuggestion

	// NumKinds is the number of defined kinds. Tables indexed by Kind use it
	// as their length.
	NumKinds
)

var kindNames = [...]string{
	KindMission:      "mission",
	KindResource:     "resource",
	KindDistribution: "distribution",
	KindDecision:     "decision",
	KindSuggestion:   "suggestion",
}

// Adding a Kind without a name fails to compile.
var (
	_ [len(kindNames) - int(NumKinds)]struct{}
	_ [int(NumKinds) - len(kindNames)]struct{}
)

// Kinds returns every defined kind in declaration order.
func Kinds() []Kind {
	out := make([]Kind, 0, NumKinds)
	for k := Kind(0); k < NumKinds; k++ {
		out = append(out, k)
	}
	return out
}

// Valid reports whether k is one of the defined kinds.
func (k Kind) Valid() bool {
	return k >= 0 && k < NumKinds
}

func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return kindNames[k]
}

// ParseKind converts a kind name (case-insensitive) into a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, name := range kindNames {
		if name == s {
			return Kind(k), nil
		}
	}
	return 0, eris.Errorf("model: unknown kind %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (k Kind) MarshalText() ([]byte, error) {
	if !k.Valid() {
		return nil, eris.Errorf("model: invalid kind %d", int(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *Kind) UnmarshalText(text []byte) error {
	parsed, err := ParseKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
