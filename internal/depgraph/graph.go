// Package depgraph resolves the evaluation order of calculated fields.
// Nodes are calculation names; an edge points from a calculation to
// every field it references. References that are not themselves
// calculations are data columns and terminate traversal as leaves.
package depgraph

import (
	"fmt"
	"sort"
	"strings"
)

// CycleError reports a circular dependency among calculations.
type CycleError struct {
	Cycle []string // calculation names forming the cycle
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency detected: %s", strings.Join(e.Cycle, " -> "))
}

// Node is one calculation in the graph.
type Node struct {
	Name     string
	Formula  string
	Deps     []string // referenced field names, calculation or column
	Children []*Node  // edges to referenced calculations only
}

// Graph holds the calculation dependency graph for one workbook.
type Graph struct {
	Nodes map[string]*Node
}

// Build constructs the graph from calculation name to formula, using
// extract to pull field references out of each formula. The extraction
// function must be the same one used by translation, otherwise the
// computed order diverges from the dependencies the translated
// expressions actually read.
func Build(calcs map[string]string, extract func(string) []string) *Graph {
	g := &Graph{Nodes: make(map[string]*Node, len(calcs))}
	for name, formula := range calcs {
		g.Nodes[name] = &Node{
			Name:    name,
			Formula: formula,
			Deps:    extract(formula),
		}
	}
	for _, node := range g.Nodes {
		for _, dep := range node.Deps {
			if child, ok := g.Nodes[dep]; ok {
				node.Children = append(node.Children, child)
			}
		}
	}
	return g
}

// Columns returns the referenced field names that are not calculations,
// deduplicated and sorted. These are the raw data columns the
// calculations need loaded.
func (g *Graph) Columns() []string {
	seen := make(map[string]bool)
	var cols []string
	for _, node := range g.Nodes {
		for _, dep := range node.Deps {
			if _, isCalc := g.Nodes[dep]; !isCalc && !seen[dep] {
				seen[dep] = true
				cols = append(cols, dep)
			}
		}
	}
	sort.Strings(cols)
	return cols
}

// EvaluationOrder returns the calculation names in an order where every
// calculation appears after the ones it depends on. Fails with a
// CycleError when a calculation is revisited while still in progress;
// diamond dependencies are fine since fully-visited nodes are skipped.
func (g *Graph) EvaluationOrder() ([]string, error) {
	// Visit state: 0 = unvisited, 1 = in progress, 2 = done.
	state := make(map[string]int, len(g.Nodes))
	path := make([]string, 0, len(g.Nodes))
	order := make([]string, 0, len(g.Nodes))

	var visit func(node *Node) error
	visit = func(node *Node) error {
		switch state[node.Name] {
		case 2:
			return nil
		case 1:
			cycleStart := 0
			for i, p := range path {
				if p == node.Name {
					cycleStart = i
					break
				}
			}
			cycle := append(append([]string(nil), path[cycleStart:]...), node.Name)
			return &CycleError{Cycle: cycle}
		}

		state[node.Name] = 1
		path = append(path, node.Name)

		for _, child := range node.Children {
			if err := visit(child); err != nil {
				return err
			}
		}

		state[node.Name] = 2
		path = path[:len(path)-1]
		order = append(order, node.Name)
		return nil
	}

	// Deterministic starting order keeps the result stable across runs.
	names := make([]string, 0, len(g.Nodes))
	for name := range g.Nodes {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if err := visit(g.Nodes[name]); err != nil {
			return nil, err
		}
	}
	return order, nil
}
