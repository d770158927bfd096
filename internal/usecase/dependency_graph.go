package usecase

import (
	"fmt"
	"sort"

	"github.com/samber/lo"

	"github.com/kikiverse/kiki-deploy/internal/domain"
)

// ValidatePlan checks a deployment plan for errors
func ValidatePlan(plan *domain.Plan) error {
	if len(plan.Steps) == 0 {
		return fmt.Errorf("at least one step is required")
	}

	// Check for self-dependencies and non-existent dependencies
	for name, step := range plan.Steps {
		if step.Proxy != nil && step.Kind != domain.StepKindContract {
			return fmt.Errorf("step '%s' of kind %s cannot be proxied", name, step.Kind)
		}
		if step.Proxy != nil && len(step.Args) > 0 {
			return fmt.Errorf("step '%s' is proxied and cannot take constructor args, use proxy.args", name)
		}

		for _, dep := range step.Deps {
			if dep == name {
				return fmt.Errorf("step '%s' cannot depend on itself", name)
			}

			if _, exists := plan.Steps[dep]; !exists {
				return fmt.Errorf("step '%s' depends on non-existent step '%s'", name, dep)
			}
		}
	}

	return nil
}

// DependencyGraph represents a directed acyclic graph of plan steps
type DependencyGraph struct {
	nodes map[string]*domain.Step
	edges map[string][]string // adjacency list: node -> list of dependents
}

// NewDependencyGraph creates a new dependency graph over the given steps.
// Dependencies outside the set are ignored; select the set with SelectSteps first.
func NewDependencyGraph(steps map[string]*domain.Step) *DependencyGraph {
	graph := &DependencyGraph{
		nodes: steps,
		edges: make(map[string][]string),
	}

	for name, step := range steps {
		for _, dep := range step.Deps {
			if _, exists := steps[dep]; !exists {
				continue
			}
			graph.edges[dep] = append(graph.edges[dep], name)
		}
	}

	return graph
}

// TopologicalSort returns the steps in execution order, or an error if there's a cycle.
// Ties are broken by name so the order is deterministic.
func (g *DependencyGraph) TopologicalSort() ([]*domain.Step, error) {
	inDegree := make(map[string]int)
	for name := range g.nodes {
		inDegree[name] = 0
	}

	for name, step := range g.nodes {
		for _, dep := range step.Deps {
			if _, exists := g.nodes[dep]; exists {
				inDegree[name]++
			}
		}
	}

	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []*domain.Step

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		result = append(result, g.nodes[current])

		dependents := g.edges[current]
		sort.Strings(dependents)

		for _, dependent := range dependents {
			inDegree[dependent]--
			if inDegree[dependent] == 0 {
				queue = append(queue, dependent)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(g.nodes) {
		cycleNodes := lo.Keys(lo.PickBy(inDegree, func(_ string, degree int) bool { return degree > 0 }))
		sort.Strings(cycleNodes)
		return nil, fmt.Errorf("%w detected involving steps: %v", domain.ErrCircularDependency, cycleNodes)
	}

	return result, nil
}

// SelectSteps returns the steps carrying any of the tags together with everything they
// depend on, transitively. No tags selects the whole plan.
func SelectSteps(plan *domain.Plan, tags []string) (map[string]*domain.Step, error) {
	for name, step := range plan.Steps {
		step.Name = name
	}
	if len(tags) == 0 {
		return plan.Steps, nil
	}

	selected := make(map[string]*domain.Step)
	var visit func(name string)
	visit = func(name string) {
		if _, done := selected[name]; done {
			return
		}
		step := plan.Steps[name]
		selected[name] = step
		for _, dep := range step.Deps {
			if _, exists := plan.Steps[dep]; exists {
				visit(dep)
			}
		}
	}

	tagged := lo.PickBy(plan.Steps, func(_ string, step *domain.Step) bool { return step.HasTag(tags...) })
	for name := range tagged {
		visit(name)
	}

	if len(selected) == 0 {
		return nil, fmt.Errorf("no step matches tags %v", tags)
	}
	return selected, nil
}
