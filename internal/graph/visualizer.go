package graph

import (
	"fmt"
	"sort"
	"strings"
)

// Info represents the graph structure for visualization
type Info struct {
	Name       string
	EntryPoint string
	Nodes      []string
	Edges      []EdgeInfo
}

// EdgeInfo describes one possible transition.
type EdgeInfo struct {
	From string
	To   string
	Type string // "direct" or "conditional"
}

// Info returns the structure of the compiled graph. Nodes keep declaration
// order; edges are sorted for stable output.
func (g *CompiledGraph) Info() *Info {
	info := &Info{
		Name:       g.name,
		EntryPoint: g.entryPoint,
		Nodes:      append([]string(nil), g.order...),
	}

	info.Edges = append(info.Edges, EdgeInfo{From: START, To: g.entryPoint, Type: "direct"})
	for from, to := range g.edges {
		info.Edges = append(info.Edges, EdgeInfo{From: from, To: to, Type: "direct"})
	}
	for from, b := range g.branches {
		if len(b.Targets) == 0 {
			info.Edges = append(info.Edges, EdgeInfo{From: from, To: "*", Type: "conditional"})
			continue
		}
		for _, to := range b.Targets {
			info.Edges = append(info.Edges, EdgeInfo{From: from, To: to, Type: "conditional"})
		}
	}

	sort.Slice(info.Edges, func(i, j int) bool {
		a, b := info.Edges[i], info.Edges[j]
		if a.From != b.From {
			return a.From < b.From
		}
		return a.To < b.To
	})
	return info
}

// Mermaid renders the graph as a Mermaid flowchart.
func (g *CompiledGraph) Mermaid() string {
	info := g.Info()

	var sb strings.Builder
	sb.WriteString("flowchart TD\n")
	fmt.Fprintf(&sb, "    %s([%s])\n", START, START)
	for _, n := range info.Nodes {
		fmt.Fprintf(&sb, "    %s[%s]\n", mermaidID(n), n)
	}
	fmt.Fprintf(&sb, "    %s([%s])\n", END, END)

	for _, e := range info.Edges {
		switch {
		case e.Type == "conditional" && e.To == "*":
			fmt.Fprintf(&sb, "    %s -. any .-> %s\n", mermaidID(e.From), mermaidID(e.From))
		case e.Type == "conditional":
			fmt.Fprintf(&sb, "    %s -.-> %s\n", mermaidID(e.From), mermaidID(e.To))
		default:
			fmt.Fprintf(&sb, "    %s --> %s\n", mermaidID(e.From), mermaidID(e.To))
		}
	}
	return sb.String()
}

func mermaidID(name string) string {
	return strings.NewReplacer(" ", "_", "-", "_", ".", "_").Replace(name)
}
