package graph

import "slices"

// mark is the state of a node during a depth-first walk.
type mark uint8

const (
	unseen mark = iota
	active
	finished
)

// successors lists the dependencies of id that are nodes of g. Dangling edges
// are reported by Validate and ignored here.
func (g *Graph) successors(id string) []string {
	var out []string
	for _, dep := range g.edges[id] {
		if _, ok := g.nodes[dep]; ok {
			out = append(out, dep)
		}
	}
	return out
}

func (g *Graph) HasCycle() bool {
	g.mu.RLock()
	valid, has := g.cycleValid, g.hasCycle
	g.mu.RUnlock()
	if valid {
		return has
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.cycleValid {
		g.hasCycle = g.anyCycle()
		g.cycleValid = true
	}
	return g.hasCycle
}

func (g *Graph) anyCycle() bool {
	marks := make(map[string]mark, len(g.nodes))

	var visit func(id string) bool
	visit = func(id string) bool {
		marks[id] = active
		for _, next := range g.successors(id) {
			switch marks[next] {
			case active:
				return true
			case unseen:
				if visit(next) {
					return true
				}
			}
		}
		marks[id] = finished
		return false
	}

	for _, id := range g.sortedNodes() {
		if marks[id] == unseen && visit(id) {
			return true
		}
	}
	return false
}

// FindCyclePath returns the first cycle reachable from start as a closed path,
// the repeated node at both ends, or nil.
func (g *Graph) FindCyclePath(start string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.closedPath(start)
}

func (g *Graph) closedPath(start string) []string {
	marks := make(map[string]mark, len(g.nodes))
	var path []string

	var walk func(id string) []string
	walk = func(id string) []string {
		switch marks[id] {
		case active:
			i := slices.Index(path, id)
			return append(slices.Clone(path[i:]), id)
		case finished:
			return nil
		}

		marks[id] = active
		path = append(path, id)
		for _, next := range g.successors(id) {
			if cycle := walk(next); cycle != nil {
				return cycle
			}
		}
		path = path[:len(path)-1]
		marks[id] = finished
		return nil
	}

	return walk(start)
}

// DetectCycles returns the strongly connected groups that contain a cycle,
// including single nodes that depend on themselves. Each group is sorted.
func (g *Graph) DetectCycles() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	return g.cyclicGroups()
}

func (g *Graph) cyclicGroups() [][]string {
	ids := g.sortedNodes()
	seen := make(map[string]bool, len(ids))
	finish := make([]string, 0, len(ids))

	var forward func(id string)
	forward = func(id string) {
		seen[id] = true
		for _, next := range g.successors(id) {
			if !seen[next] {
				forward(next)
			}
		}
		finish = append(finish, id)
	}
	for _, id := range ids {
		if !seen[id] {
			forward(id)
		}
	}

	dependents := make(map[string][]string, len(ids))
	for _, id := range ids {
		for _, next := range g.successors(id) {
			dependents[next] = append(dependents[next], id)
		}
	}

	// Walking dependents in reverse finish order collects one strongly
	// connected group per root.
	assigned := make(map[string]bool, len(ids))
	var groups [][]string
	for i := len(finish) - 1; i >= 0; i-- {
		root := finish[i]
		if assigned[root] {
			continue
		}

		assigned[root] = true
		group := []string{}
		stack := []string{root}
		for len(stack) > 0 {
			id := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			group = append(group, id)
			for _, prev := range dependents[id] {
				if !assigned[prev] {
					assigned[prev] = true
					stack = append(stack, prev)
				}
			}
		}

		if len(group) > 1 || slices.Contains(g.successors(root), root) {
			slices.Sort(group)
			groups = append(groups, group)
		}
	}

	return groups
}

// CyclePaths returns one closed path per group reported by DetectCycles.
func (g *Graph) CyclePaths() [][]string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var paths [][]string
	for _, group := range g.cyclicGroups() {
		if path := g.closedPath(group[0]); path != nil {
			paths = append(paths, path)
		}
	}
	return paths
}
