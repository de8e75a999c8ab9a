package tether

import (
	"fmt"
	"io"
	"os"
	"strings"
)

type GraphInfo struct {
	Services     []ServiceInfo
	Declarations []Declaration
	Scopes       ScopeStats
}

type ServiceInfo struct {
	Key          string
	Dependencies []string
	Dependents   []string
	// Derived lists the keys declared as dependencies of this service's type.
	Derived      []string
	Instantiated bool
	Scope        string
}

func (c *Container) Graph() GraphInfo {
	keys := c.internal.Keys()
	graph := c.internal.Graph()
	declarations := c.Declarations()

	services := make([]ServiceInfo, 0, len(keys))
	for _, key := range keys {
		entry, _ := c.internal.Entry(key)

		scope := entry.Scope.String()
		if entry.ScopeName != "" {
			scope += ":" + entry.ScopeName
		}

		services = append(
			services, ServiceInfo{
				Key:          key,
				Dependencies: graph.GetDependencies(key),
				Dependents:   graph.GetDependents(key),
				Derived:      derivedKeys(key, declarations),
				Instantiated: entry.Instantiated,
				Scope:        scope,
			},
		)
	}

	return GraphInfo{
		Services:     services,
		Declarations: declarations,
		Scopes:       c.ScopeStats(),
	}
}

// derivedKeys matches declarations by exact parent type key. Polymorphic
// matches only show up once an instance is activated.
func derivedKeys(key string, declarations []Declaration) []string {
	var keys []string
	for _, d := range declarations {
		if d.Parent == key {
			keys = append(keys, d.Key)
		}
	}
	return keys
}

func (c *Container) PrintGraph() {
	c.FprintGraph(os.Stdout)
}

func (c *Container) FprintGraph(w io.Writer) {
	info := c.Graph()

	if len(info.Services) == 0 {
		_, _ = fmt.Fprintln(w, "(empty container)")
		return
	}

	for _, svc := range info.Services {
		status := "○"
		if svc.Instantiated {
			status = "●"
		}

		line := fmt.Sprintf("%s %s", status, svc.Key)
		if len(svc.Dependencies) > 0 {
			line += " ← " + strings.Join(svc.Dependencies, ", ")
		}
		if len(svc.Derived) > 0 {
			line += " ⇢ " + strings.Join(svc.Derived, ", ")
		}
		_, _ = fmt.Fprintln(w, line)
	}

	if len(info.Declarations) > 0 {
		_, _ = fmt.Fprintf(
			w, "scopes: %d live, %d entries, %d pruned\n",
			info.Scopes.Scopes, info.Scopes.Entries, info.Scopes.Pruned,
		)
	}
}

func (c *Container) SprintGraph() string {
	var sb strings.Builder
	c.FprintGraph(&sb)
	return sb.String()
}

func (c *Container) PrintGraphDOT() {
	c.FprintGraphDOT(os.Stdout)
}

// FprintGraphDOT writes Graphviz output. Declared dependencies are drawn
// dashed.
func (c *Container) FprintGraphDOT(w io.Writer) {
	info := c.Graph()

	_, _ = fmt.Fprintln(w, "digraph dependencies {")
	_, _ = fmt.Fprintln(w, "  rankdir=LR;")
	_, _ = fmt.Fprintln(w, "  node [shape=box];")

	for _, svc := range info.Services {
		label := escapeLabel(svc.Key)
		style := ""
		if svc.Instantiated {
			style = ", style=filled, fillcolor=lightblue"
		}
		_, _ = fmt.Fprintf(w, "  %q [label=%q%s];\n", svc.Key, label, style)
	}

	_, _ = fmt.Fprintln(w)

	for _, svc := range info.Services {
		for _, dep := range svc.Dependencies {
			_, _ = fmt.Fprintf(w, "  %q -> %q;\n", svc.Key, dep)
		}
	}

	for _, d := range info.Declarations {
		_, _ = fmt.Fprintf(w, "  %q -> %q [style=dashed];\n", d.Parent, d.Key)
	}

	_, _ = fmt.Fprintln(w, "}")
}

func (c *Container) SprintGraphDOT() string {
	var sb strings.Builder
	c.FprintGraphDOT(&sb)
	return sb.String()
}

func escapeLabel(s string) string {
	s = strings.ReplaceAll(s, "*", "")
	if idx := strings.LastIndex(s, "/"); idx != -1 {
		s = s[idx+1:]
	}
	return s
}
