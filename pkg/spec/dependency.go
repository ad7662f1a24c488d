package spec

import (
	"fmt"
	"math"
	"regexp"
	"sort"
	"strconv"
)

// Dependency expression shapes. A module type is a C identifier; a
// provider id is a non-negative decimal; a group member rank is a
// non-negative decimal addressing a rank within a named SSG group.
var (
	providerExprRe = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*):([0-9]+)$`)
	clientExprRe   = regexp.MustCompile(`^([a-zA-Z_][a-zA-Z0-9_]*):client$`)
	memberExprRe   = regexp.MustCompile(`^([^@:/]+)@ssg://([^/]+)/([0-9]+)$`)
)

// DependencyRef is the resolved form of a dependency expression. It is
// implemented only by ProviderRef, ClientRef and GroupMemberRef.
type DependencyRef interface {
	fmt.Stringer
	dependencyRef()
}

// ProviderRef designates a provider by module type and provider id,
// as in "module:42".
type ProviderRef struct {
	// Type is the provider's module type.
	Type string

	// ProviderID is the provider id within the module type.
	ProviderID uint16
}

func (ProviderRef) dependencyRef() {}

// String returns the expression in normalized form.
func (r ProviderRef) String() string {
	return fmt.Sprintf("%s:%d", r.Type, r.ProviderID)
}

// ClientRef designates the client interface of a module type, as in
// "module:client".
type ClientRef struct {
	// Type is the module type whose client interface is requested.
	Type string
}

func (ClientRef) dependencyRef() {}

// String returns the expression in normalized form.
func (r ClientRef) String() string {
	return r.Type + ":client"
}

// GroupMemberRef designates a named entry hosted by a specific rank of
// an SSG group, as in "entry@ssg://group/3".
type GroupMemberRef struct {
	// Name is the remote entry name.
	Name string

	// Group is the SSG group name.
	Group string

	// Rank is the member rank within the group.
	Rank uint64
}

func (GroupMemberRef) dependencyRef() {}

// String returns the expression in normalized form.
func (r GroupMemberRef) String() string {
	return fmt.Sprintf("%s@ssg://%s/%d", r.Name, r.Group, r.Rank)
}

// Dependency is a validated dependency expression. The original
// expression text is retained and re-emitted verbatim when the tree is
// serialized.
type Dependency struct {
	expr string
	ref  DependencyRef
}

// String returns the expression exactly as it was given.
func (d Dependency) String() string {
	return d.expr
}

// Ref returns the resolved form of the expression.
func (d Dependency) Ref() DependencyRef {
	return d.ref
}

// ParseDependency validates expr against the three recognized shapes
// and returns its resolved form. An expression matching none of them
// is rejected.
func ParseDependency(expr string) (Dependency, error) {
	if m := clientExprRe.FindStringSubmatch(expr); m != nil {
		return Dependency{expr: expr, ref: ClientRef{Type: m[1]}}, nil
	}
	if m := providerExprRe.FindStringSubmatch(expr); m != nil {
		id, err := strconv.ParseUint(m[2], 10, 64)
		if err != nil || id > math.MaxUint16 {
			return Dependency{}, newError(KindInvalidDependencyExpression, "dependencies", expr,
				"provider id out of range")
		}
		return Dependency{expr: expr, ref: ProviderRef{Type: m[1], ProviderID: uint16(id)}}, nil
	}
	if m := memberExprRe.FindStringSubmatch(expr); m != nil {
		rank, err := strconv.ParseUint(m[3], 10, 64)
		if err != nil {
			return Dependency{}, newError(KindInvalidDependencyExpression, "dependencies", expr,
				"group member rank out of range")
		}
		return Dependency{expr: expr, ref: GroupMemberRef{Name: m[1], Group: m[2], Rank: rank}}, nil
	}
	return Dependency{}, newError(KindInvalidDependencyExpression, "dependencies", expr,
		"expression matches no recognized shape")
}

// DependencyMap maps dependency names declared by a provider or client
// to the expressions that satisfy them. The zero value is an empty map
// ready for use.
type DependencyMap struct {
	deps map[string][]Dependency
}

// Add parses each expression and appends it to the list for name,
// creating the entry if absent. The whole call is rejected on the
// first malformed expression, leaving the map unchanged.
func (m *DependencyMap) Add(name string, exprs ...string) error {
	if name == "" {
		return newError(KindInvalidValue, "dependencies", "", "dependency name must not be empty")
	}
	if len(exprs) == 0 {
		return newError(KindInvalidValue, "dependencies", name, "at least one expression is required")
	}
	parsed := make([]Dependency, 0, len(exprs))
	for _, expr := range exprs {
		d, err := ParseDependency(expr)
		if err != nil {
			return err
		}
		parsed = append(parsed, d)
	}
	if m.deps == nil {
		m.deps = make(map[string][]Dependency)
	}
	m.deps[name] = append(m.deps[name], parsed...)
	return nil
}

// Has reports whether a dependency with the given name is declared.
func (m *DependencyMap) Has(name string) bool {
	_, ok := m.deps[name]
	return ok
}

// Get returns the expressions declared for name, in insertion order.
// The returned slice is a snapshot.
func (m *DependencyMap) Get(name string) []Dependency {
	ds, ok := m.deps[name]
	if !ok {
		return nil
	}
	out := make([]Dependency, len(ds))
	copy(out, ds)
	return out
}

// Names returns the declared dependency names in lexicographic order.
func (m *DependencyMap) Names() []string {
	names := make([]string, 0, len(m.deps))
	for name := range m.deps {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of declared dependency names.
func (m *DependencyMap) Len() int {
	return len(m.deps)
}

func (m *DependencyMap) clone() DependencyMap {
	if len(m.deps) == 0 {
		return DependencyMap{}
	}
	deps := make(map[string][]Dependency, len(m.deps))
	for name, ds := range m.deps {
		cp := make([]Dependency, len(ds))
		copy(cp, ds)
		deps[name] = cp
	}
	return DependencyMap{deps: deps}
}
