package graph

import (
	"errors"
	"slices"
)

var ErrCycleDetected = errors.New("cycle detected in graph")

// ParallelGroup holds the nodes whose longest dependency chain has Level
// links. Nodes of one group never depend on each other.
type ParallelGroup struct {
	Level int
	Nodes []string
}

// depths measures the longest chain of dependencies below every node.
func (g *Graph) depths() (map[string]int, error) {
	depth := make(map[string]int, len(g.nodes))
	marks := make(map[string]mark, len(g.nodes))

	var measure func(id string) (int, error)
	measure = func(id string) (int, error) {
		switch marks[id] {
		case finished:
			return depth[id], nil
		case active:
			return 0, ErrCycleDetected
		}

		marks[id] = active
		d := 0
		for _, next := range g.successors(id) {
			nd, err := measure(next)
			if err != nil {
				return 0, err
			}
			d = max(d, nd+1)
		}
		marks[id] = finished
		depth[id] = d
		return d, nil
	}

	for _, id := range g.sortedNodes() {
		if _, err := measure(id); err != nil {
			return nil, err
		}
	}
	return depth, nil
}

func (g *Graph) levels() ([]ParallelGroup, error) {
	depth, err := g.depths()
	if err != nil {
		return nil, err
	}

	var groups []ParallelGroup
	for _, id := range g.sortedNodes() {
		d := depth[id]
		for len(groups) <= d {
			groups = append(groups, ParallelGroup{Level: len(groups)})
		}
		groups[d].Nodes = append(groups[d].Nodes, id)
	}
	return groups, nil
}

// ParallelStartupGroups orders nodes by depth. Every group can start once the
// groups before it are up.
func (g *Graph) ParallelStartupGroups() ([]ParallelGroup, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.levels()
}

func (g *Graph) ParallelShutdownGroups() ([]ParallelGroup, error) {
	groups, err := g.ParallelStartupGroups()
	if err != nil {
		return nil, err
	}

	slices.Reverse(groups)
	for i := range groups {
		groups[i].Level = i
	}
	return groups, nil
}

// TopologicalSort lists dependencies before their dependents. Ties are broken
// by depth, then by name, so the order is stable.
func (g *Graph) TopologicalSort() ([]string, error) {
	groups, err := g.ParallelStartupGroups()
	if err != nil {
		return nil, err
	}

	order := make([]string, 0, g.Size())
	for _, group := range groups {
		order = append(order, group.Nodes...)
	}
	return order, nil
}

func (g *Graph) ReverseTopologicalSort() ([]string, error) {
	order, err := g.TopologicalSort()
	if err != nil {
		return nil, err
	}
	slices.Reverse(order)
	return order, nil
}

func (g *Graph) StartupOrder() ([]string, error) {
	return g.TopologicalSort()
}

func (g *Graph) ShutdownOrder() ([]string, error) {
	return g.ReverseTopologicalSort()
}

// ResolutionOrder lists what must be built for target, target last. A target
// that is not a node resolves alone.
func (g *Graph) ResolutionOrder(target string) ([]string, error) {
	g.mu.RLock()
	defer g.mu.RUnlock()

	if _, ok := g.nodes[target]; !ok {
		return []string{target}, nil
	}

	marks := make(map[string]mark)
	var order []string

	var visit func(id string) error
	visit = func(id string) error {
		switch marks[id] {
		case active:
			return ErrCycleDetected
		case finished:
			return nil
		}

		marks[id] = active
		for _, next := range g.successors(id) {
			if err := visit(next); err != nil {
				return err
			}
		}
		marks[id] = finished
		order = append(order, id)
		return nil
	}

	if err := visit(target); err != nil {
		return nil, err
	}
	return order, nil
}
