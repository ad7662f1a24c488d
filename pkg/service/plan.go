package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/mochi-hpc/go-bedrock/pkg/spec"
)

// StartEdge is one ordering constraint between two providers: From must be
// started before To.
type StartEdge struct {
	From string
	To   string
}

// StartPlan orders provider startup so that every provider starts after the
// providers it depends on within the same process. Dependencies on clients,
// on group members and on providers that do not exist in the descriptor
// impose no ordering.
type StartPlan struct {
	// Levels groups providers by start order. Providers within one level
	// have no ordering constraints between them.
	Levels [][]*spec.ProviderSpec

	// Edges lists the ordering constraints derived from dependencies.
	Edges []StartEdge
}

// Depth returns the number of start levels.
func (p *StartPlan) Depth() int {
	return len(p.Levels)
}

// planBuilder computes start levels with a topological sort over the
// provider dependency graph.
type planBuilder struct {
	providers map[string]*spec.ProviderSpec

	// adjacencyList maps a provider name to the providers that must start
	// after it
	adjacencyList map[string][]string

	// reverseAdjacencyList maps a provider name to the providers it
	// depends on
	reverseAdjacencyList map[string][]string

	// inDegree tracks the number of incoming edges for each node
	inDegree map[string]int

	levels [][]string
	edges  []StartEdge
}

// BuildStartPlan derives a start order for the providers of a descriptor.
// It returns an error when provider dependencies form a cycle.
func BuildStartPlan(tree *spec.ProcSpec) (*StartPlan, error) {
	b := &planBuilder{
		providers:            make(map[string]*spec.ProviderSpec),
		adjacencyList:        make(map[string][]string),
		reverseAdjacencyList: make(map[string][]string),
		inDegree:             make(map[string]int),
		levels:               make([][]string, 0),
		edges:                make([]StartEdge, 0),
	}

	b.initialize(tree)

	if err := b.detectCycles(); err != nil {
		return nil, err
	}

	if err := b.computeLevels(); err != nil {
		return nil, err
	}

	plan := &StartPlan{
		Levels: make([][]*spec.ProviderSpec, len(b.levels)),
		Edges:  b.edges,
	}
	for level, names := range b.levels {
		providers := make([]*spec.ProviderSpec, len(names))
		for i, name := range names {
			providers[i] = b.providers[name]
		}
		plan.Levels[level] = providers
	}
	return plan, nil
}

// initialize indexes the providers and derives edges from their
// dependencies. Only dependencies that resolve to another provider of the
// same descriptor become edges.
func (b *planBuilder) initialize(tree *spec.ProcSpec) {
	for _, pr := range tree.Providers().All() {
		name := pr.Name()
		b.providers[name] = pr
		b.adjacencyList[name] = make([]string, 0)
		b.reverseAdjacencyList[name] = make([]string, 0)
		b.inDegree[name] = 0
	}

	seen := make(map[StartEdge]bool)
	for _, pr := range tree.Providers().All() {
		deps := pr.Dependencies()
		for _, depName := range deps.Names() {
			for _, dep := range deps.Get(depName) {
				ref, ok := dep.Ref().(spec.ProviderRef)
				if !ok {
					continue
				}
				target, ok := tree.LookupProvider(ref.Type, ref.ProviderID)
				if !ok {
					continue
				}

				edge := StartEdge{From: target.Name(), To: pr.Name()}
				if seen[edge] {
					continue
				}
				seen[edge] = true

				b.adjacencyList[edge.From] = append(b.adjacencyList[edge.From], edge.To)
				b.reverseAdjacencyList[edge.To] = append(b.reverseAdjacencyList[edge.To], edge.From)
				b.inDegree[edge.To]++
				b.edges = append(b.edges, edge)
			}
		}
	}
}

// detectCycles uses depth-first search to detect circular dependencies.
func (b *planBuilder) detectCycles() error {
	visited := make(map[string]bool)
	recStack := make(map[string]bool)
	path := make([]string, 0)

	names := make([]string, 0, len(b.providers))
	for name := range b.providers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] {
			if cycle := b.detectCyclesUtil(name, visited, recStack, path); cycle != nil {
				return fmt.Errorf("circular provider dependency detected: %s", strings.Join(cycle, " -> "))
			}
		}
	}
	return nil
}

func (b *planBuilder) detectCyclesUtil(
	name string,
	visited map[string]bool,
	recStack map[string]bool,
	path []string,
) []string {
	visited[name] = true
	recStack[name] = true
	path = append(path, name)

	for _, dependent := range b.adjacencyList[name] {
		if !visited[dependent] {
			if cycle := b.detectCyclesUtil(dependent, visited, recStack, path); cycle != nil {
				return cycle
			}
		} else if recStack[dependent] {
			cycleStart := -1
			for i, id := range path {
				if id == dependent {
					cycleStart = i
					break
				}
			}
			if cycleStart >= 0 {
				return append(path[cycleStart:], dependent)
			}
		}
	}

	recStack[name] = false
	return nil
}

// computeLevels assigns start levels using Kahn's algorithm. Providers at
// the same level can be started in any order. Names within a level are
// sorted so the plan is deterministic.
func (b *planBuilder) computeLevels() error {
	inDegreeCopy := make(map[string]int)
	for name, degree := range b.inDegree {
		inDegreeCopy[name] = degree
	}

	currentLevel := make([]string, 0)
	for name, degree := range inDegreeCopy {
		if degree == 0 {
			currentLevel = append(currentLevel, name)
		}
	}
	sort.Strings(currentLevel)

	processedCount := 0
	for len(currentLevel) > 0 {
		b.levels = append(b.levels, currentLevel)
		processedCount += len(currentLevel)

		nextLevel := make([]string, 0)
		for _, name := range currentLevel {
			for _, dependent := range b.adjacencyList[name] {
				inDegreeCopy[dependent]--
				if inDegreeCopy[dependent] == 0 {
					nextLevel = append(nextLevel, dependent)
				}
			}
		}
		sort.Strings(nextLevel)

		currentLevel = nextLevel
	}

	// Should never trigger once cycle detection passed
	if processedCount != len(b.providers) {
		return fmt.Errorf("failed to order all providers, possible cycle")
	}
	return nil
}

// ToDOT generates a DOT representation of the start plan for visualization.
// The output can be rendered with Graphviz tools.
func (p *StartPlan) ToDOT() string {
	var sb strings.Builder

	sb.WriteString("digraph StartPlan {\n")
	sb.WriteString("  rankdir=TB;\n")
	sb.WriteString("  node [shape=box, style=rounded];\n\n")

	for level, providers := range p.Levels {
		sb.WriteString(fmt.Sprintf("  subgraph cluster_level_%d {\n", level))
		sb.WriteString(fmt.Sprintf("    label=\"Level %d\";\n", level))
		sb.WriteString("    style=dashed;\n")

		for _, pr := range providers {
			label := fmt.Sprintf("%s\\n%s:%d", pr.Name(), pr.Type(), pr.ProviderID())
			sb.WriteString(fmt.Sprintf("    \"%s\" [label=\"%s\"];\n", pr.Name(), label))
		}

		sb.WriteString("  }\n\n")
	}

	for _, edge := range p.Edges {
		sb.WriteString(fmt.Sprintf("  \"%s\" -> \"%s\";\n", edge.From, edge.To))
	}

	sb.WriteString("}\n")
	return sb.String()
}
