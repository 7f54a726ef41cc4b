// Package scope implements the tree of named scopes holding declared values
// with provenance, plus the evaluation context that tracks the current
// scope and working directory during script traversal.
package scope

import (
	"sort"
	"strings"

	"github.com/oxhq/archc/internal/value"
)

// ValueKind records where a scope value originated.
type ValueKind string

const (
	// KindUser marks a value supplied by the user (or a variation row).
	KindUser ValueKind = "user"

	// KindDefault marks a declared default.
	KindDefault ValueKind = "default"

	// KindPreset marks a value fixed by a preset block.
	KindPreset ValueKind = "preset"
)

// Qualifier marks a property of a scope value beyond its origin.
type Qualifier string

// AutoCreated marks defaults materialized implicitly during simulated
// execution rather than read from a declaration.
const AutoCreated Qualifier = "auto-created"

// ScopeValue is a declared value together with its provenance.
type ScopeValue struct {
	Scope      *Scope
	Kind       ValueKind
	Value      value.Value
	Qualifiers map[Qualifier]bool
}

// Is reports whether the value carries the qualifier.
func (sv *ScopeValue) Is(q Qualifier) bool {
	return sv.Qualifiers[q]
}

// Scope is a node in the scope tree. The root has an empty name. Lookups
// are case-insensitive over normalized keys.
type Scope struct {
	parent   *Scope
	name     string
	children map[string]*Scope
	order    []string
	values   map[string]*ScopeValue
}

// NewRoot returns an empty root scope.
func NewRoot() *Scope {
	return &Scope{
		children: map[string]*Scope{},
		values:   map[string]*ScopeValue{},
	}
}

// Normalize canonicalizes a key segment: alphanumerics plus "._-" are kept,
// everything compares lower-case.
func Normalize(key string) string {
	var b strings.Builder
	for _, r := range key {
		switch {
		case r >= 'A' && r <= 'Z':
			b.WriteRune(r + ('a' - 'A'))
		case r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '.' || r == '_' || r == '-':
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Name returns the scope's local name.
func (s *Scope) Name() string {
	return s.name
}

// Parent returns the parent scope, nil at the root.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// Root walks up to the scope tree root.
func (s *Scope) Root() *Scope {
	r := s
	for r.parent != nil {
		r = r.parent
	}
	return r
}

// Key returns the dotted path from the root, empty for the root itself.
func (s *Scope) Key() string {
	if s.parent == nil {
		return ""
	}
	parent := s.parent.Key()
	if parent == "" {
		return s.name
	}
	return parent + "." + s.name
}

// ResolveKey normalizes a reference against this scope: a "~" prefix
// anchors at the root, otherwise the reference is relative to this scope's
// key.
func (s *Scope) ResolveKey(ref string) string {
	if strings.HasPrefix(ref, "~") {
		return Normalize(ref[1:])
	}
	ref = Normalize(ref)
	base := s.Key()
	if base == "" {
		return ref
	}
	return base + "." + ref
}

// GetOrCreate returns the named child scope, creating it if absent.
func (s *Scope) GetOrCreate(name string) *Scope {
	key := Normalize(name)
	if child, ok := s.children[key]; ok {
		return child
	}
	child := &Scope{
		parent:   s,
		name:     key,
		children: map[string]*Scope{},
		values:   map[string]*ScopeValue{},
	}
	s.children[key] = child
	s.order = append(s.order, key)
	return child
}

// Child returns the named child scope or nil.
func (s *Scope) Child(name string) *Scope {
	return s.children[Normalize(name)]
}

// Children returns child scopes in creation order.
func (s *Scope) Children() []*Scope {
	out := make([]*Scope, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, s.children[name])
	}
	return out
}

// Lookup resolves a dotted key against this scope: a "~" prefix anchors at
// the root; otherwise resolution starts here. It returns the scope that
// holds the last segment together with that segment's local name, or nil
// when an intermediate scope is missing; the value itself need not be
// declared there.
func (s *Scope) Lookup(key string) (*Scope, string) {
	start := s
	if strings.HasPrefix(key, "~") {
		start = s.Root()
		key = key[1:]
	}
	key = Normalize(key)
	segments := strings.Split(key, ".")
	cur := start
	for _, seg := range segments[:len(segments)-1] {
		cur = cur.children[seg]
		if cur == nil {
			return nil, ""
		}
	}
	return cur, segments[len(segments)-1]
}

// Value returns the scope value declared at the dotted key, or nil.
func (s *Scope) Value(key string) *ScopeValue {
	holder, local := s.Lookup(key)
	if holder == nil {
		return nil
	}
	return holder.values[local]
}

// Declare records a value at the dotted key, creating intermediate scopes.
// A later declaration of the same key overwrites an earlier one.
func (s *Scope) Declare(key string, kind ValueKind, v value.Value, quals ...Qualifier) *ScopeValue {
	start := s
	if strings.HasPrefix(key, "~") {
		start = s.Root()
		key = key[1:]
	}
	key = Normalize(key)
	segments := strings.Split(key, ".")
	cur := start
	for _, seg := range segments[:len(segments)-1] {
		cur = cur.GetOrCreate(seg)
	}
	sv := &ScopeValue{Scope: cur, Kind: kind, Value: v, Qualifiers: map[Qualifier]bool{}}
	for _, q := range quals {
		sv.Qualifiers[q] = true
	}
	cur.values[segments[len(segments)-1]] = sv
	return sv
}

// Values returns the local names of the values declared in this scope,
// sorted.
func (s *Scope) Values() []string {
	keys := make([]string, 0, len(s.values))
	for k := range s.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// LocalValue returns the value declared directly in this scope, or nil.
func (s *Scope) LocalValue(name string) *ScopeValue {
	return s.values[Normalize(name)]
}
