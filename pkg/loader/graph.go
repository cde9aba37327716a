package loader

import (
	"fmt"
	"sort"
	"strings"

	"github.com/starforge/starforge/pkg/label"
)

// RuleGraph is the dependency graph between the rules of one evaluated
// build file. Only edges within the file's package are materialized;
// references to other packages stay as leaf labels on each rule.
type RuleGraph struct {
	file *File

	// edges maps a rule name to the names of rules it depends on.
	edges map[string][]string

	// dependents is the reverse adjacency: rule name to the rules that
	// depend on it.
	dependents map[string][]string

	// levels groups rule names by dependency depth: rules in level 0
	// depend on nothing inside the package, rules in level n only on
	// rules in earlier levels.
	levels [][]string
}

// BuildRuleGraph constructs the intra-package dependency graph for a file
// and rejects dependency cycles.
func BuildRuleGraph(file *File) (*RuleGraph, error) {
	g := &RuleGraph{
		file:       file,
		edges:      make(map[string][]string),
		dependents: make(map[string][]string),
	}

	byName := make(map[string]*Rule, len(file.Rules))
	for _, r := range file.Rules {
		byName[r.Label.Name()] = r
		g.edges[r.Label.Name()] = nil
	}

	for _, r := range file.Rules {
		name := r.Label.Name()
		seen := make(map[string]bool)
		for _, dep := range r.Deps() {
			if dep.Repo() != "" || dep.Pkg() != file.Package {
				continue
			}
			target := dep.Name()
			if target == name {
				return nil, fmt.Errorf("rule '%s' depends on itself", r.Label)
			}
			if _, ok := byName[target]; !ok {
				// A label into this package that names no rule here may
				// still be a plain file; it is not a graph edge.
				continue
			}
			if !seen[target] {
				seen[target] = true
				g.edges[name] = append(g.edges[name], target)
				g.dependents[target] = append(g.dependents[target], name)
			}
		}
		sort.Strings(g.edges[name])
	}

	if cycle := g.findCycle(); cycle != nil {
		return nil, fmt.Errorf("dependency cycle in package '%s': %s",
			file.Package, strings.Join(cycle, " -> "))
	}

	g.computeLevels()
	return g, nil
}

// DependsOn returns the names of rules the named rule depends on within
// its package, in sorted order.
func (g *RuleGraph) DependsOn(name string) []string {
	return append([]string(nil), g.edges[name]...)
}

// Dependents returns the names of rules that depend on the named rule.
func (g *RuleGraph) Dependents(name string) []string {
	deps := append([]string(nil), g.dependents[name]...)
	sort.Strings(deps)
	return deps
}

// Levels returns rule names grouped by dependency depth. Every rule in a
// level depends only on rules in earlier levels, so each level could be
// processed in parallel.
func (g *RuleGraph) Levels() [][]string {
	out := make([][]string, len(g.levels))
	for i, level := range g.levels {
		out[i] = append([]string(nil), level...)
	}
	return out
}

// findCycle runs a depth-first search and returns one cycle as a name
// path, or nil if the graph is acyclic.
func (g *RuleGraph) findCycle() []string {
	const (
		white = 0 // unvisited
		grey  = 1 // on the current path
		black = 2 // fully explored
	)
	color := make(map[string]int, len(g.edges))

	names := make([]string, 0, len(g.edges))
	for name := range g.edges {
		names = append(names, name)
	}
	sort.Strings(names)

	var path []string
	var visit func(name string) []string
	visit = func(name string) []string {
		color[name] = grey
		path = append(path, name)
		for _, dep := range g.edges[name] {
			switch color[dep] {
			case grey:
				// Close the loop for readable reporting.
				start := 0
				for i, n := range path {
					if n == dep {
						start = i
						break
					}
				}
				return append(append([]string(nil), path[start:]...), dep)
			case white:
				if cycle := visit(dep); cycle != nil {
					return cycle
				}
			}
		}
		color[name] = black
		path = path[:len(path)-1]
		return nil
	}

	for _, name := range names {
		if color[name] == white {
			if cycle := visit(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}

// computeLevels assigns each rule its dependency depth via Kahn's
// algorithm. Called only on acyclic graphs.
func (g *RuleGraph) computeLevels() {
	inDegree := make(map[string]int, len(g.edges))
	for name := range g.edges {
		inDegree[name] = len(g.edges[name])
	}

	var current []string
	for name, deg := range inDegree {
		if deg == 0 {
			current = append(current, name)
		}
	}
	sort.Strings(current)

	for len(current) > 0 {
		g.levels = append(g.levels, current)
		var next []string
		for _, name := range current {
			for _, dependent := range g.dependents[name] {
				inDegree[dependent]--
				if inDegree[dependent] == 0 {
					next = append(next, dependent)
				}
			}
		}
		sort.Strings(next)
		current = next
	}
}

// ToDOT renders the graph in Graphviz DOT format. External dependencies
// are drawn as boxes so package-internal structure stands out.
func (g *RuleGraph) ToDOT() string {
	var b strings.Builder
	b.WriteString("digraph rules {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=ellipse];\n")

	for _, r := range g.file.Rules {
		name := r.Label.Name()
		fmt.Fprintf(&b, "  %q [label=%q];\n", name, r.Label.String())
		for _, dep := range g.edges[name] {
			fmt.Fprintf(&b, "  %q -> %q;\n", name, dep)
		}
		for _, dep := range r.Deps() {
			if external := dep.Repo() != "" || dep.Pkg() != g.file.Package; external {
				fmt.Fprintf(&b, "  %q [shape=box];\n", dep.String())
				fmt.Fprintf(&b, "  %q -> %q;\n", name, dep.String())
			}
		}
	}

	b.WriteString("}\n")
	return b.String()
}

// externalDeps returns every out-of-package label referenced by the file.
func externalDeps(file *File) []label.Label {
	seen := make(map[label.Label]bool)
	var out []label.Label
	for _, r := range file.Rules {
		for _, dep := range r.Deps() {
			if dep.Repo() == "" && dep.Pkg() == file.Package {
				continue
			}
			if !seen[dep] {
				seen[dep] = true
				out = append(out, dep)
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].String() < out[j].String() })
	return out
}

// ExternalDeps returns every label the file references outside its own
// package, sorted.
func (g *RuleGraph) ExternalDeps() []label.Label {
	return externalDeps(g.file)
}
