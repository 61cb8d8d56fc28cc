package yxmd

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Graph is the tool and connection graph of a workflow, grouped by
// container.
type Graph struct {
	Name   string       `json:"name,omitempty"`
	Nodes  []GraphNode  `json:"nodes"`
	Groups []GraphGroup `json:"groups,omitempty"`
	Edges  []GraphEdge  `json:"edges"`
}

// GraphNode is one non-container tool. Group is the innermost container's
// id, or nil at the top level.
type GraphNode struct {
	ID       int      `json:"id"`
	Label    string   `json:"label"`
	Plugin   string   `json:"plugin"`
	Position Position `json:"position"`
	Group    *int     `json:"group,omitempty"`
}

// GraphGroup is one container.
type GraphGroup struct {
	ID      int    `json:"id"`
	Caption string `json:"caption"`
	Parent  *int   `json:"parent,omitempty"`
}

// GraphEdge is one connection.
type GraphEdge struct {
	From     int    `json:"from"`
	To       int    `json:"to"`
	FromPort string `json:"from_port,omitempty"`
	ToPort   string `json:"to_port,omitempty"`
}

// Label describes non-default ports, or is empty.
func (e GraphEdge) Label() string {
	from, to := e.FromPort, e.ToPort
	if from == defaultOriginPort {
		from = ""
	}
	if to == defaultDestPort {
		to = ""
	}
	switch {
	case from != "" && to != "":
		return from + "→" + to
	case to != "":
		return "→" + to
	default:
		return from
	}
}

func innermost(path []int) *int {
	if len(path) == 0 {
		return nil
	}
	id := path[len(path)-1]
	return &id
}

// Graph builds the workflow graph from the current index.
func (d *Document) Graph() Graph {
	g := Graph{Name: d.Metadata().Name}
	for _, t := range d.index.Tools() {
		if t.Kind == KindContainer {
			g.Groups = append(g.Groups, GraphGroup{ID: t.ID, Caption: t.Caption, Parent: innermost(t.ContainerPath)})
			continue
		}
		g.Nodes = append(g.Nodes, GraphNode{
			ID:       t.ID,
			Label:    toolLabel(t),
			Plugin:   t.Plugin,
			Position: t.Position,
			Group:    innermost(t.ContainerPath),
		})
	}
	for _, c := range d.index.Connections() {
		g.Edges = append(g.Edges, GraphEdge{From: c.Origin, To: c.Destination, FromPort: c.OriginPort, ToPort: c.DestinationPort})
	}
	return g
}

// Renderer renders a Graph to a target representation.
type Renderer interface {
	Render(Graph) ([]byte, error)
}

// JSONRenderer emits the Graph as indented JSON.
type JSONRenderer struct{}

// Render marshals the graph to JSON.
func (r JSONRenderer) Render(g Graph) ([]byte, error) {
	return json.MarshalIndent(g, "", "  ")
}

// groupTree indexes a graph's nodes and groups by parent group, sorted by id.
type groupTree struct {
	nodes  map[int][]GraphNode
	groups map[int][]GraphGroup
	top    []GraphNode
	roots  []GraphGroup
}

func newGroupTree(g Graph) groupTree {
	t := groupTree{nodes: map[int][]GraphNode{}, groups: map[int][]GraphGroup{}}
	nodes := append([]GraphNode(nil), g.Nodes...)
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })
	for _, n := range nodes {
		if n.Group == nil {
			t.top = append(t.top, n)
		} else {
			t.nodes[*n.Group] = append(t.nodes[*n.Group], n)
		}
	}
	groups := append([]GraphGroup(nil), g.Groups...)
	sort.Slice(groups, func(i, j int) bool { return groups[i].ID < groups[j].ID })
	for _, gr := range groups {
		if gr.Parent == nil {
			t.roots = append(t.roots, gr)
		} else {
			t.groups[*gr.Parent] = append(t.groups[*gr.Parent], gr)
		}
	}
	return t
}

func sortedEdges(edges []GraphEdge) []GraphEdge {
	out := append([]GraphEdge(nil), edges...)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].From != out[j].From {
			return out[i].From < out[j].From
		}
		return out[i].To < out[j].To
	})
	return out
}

// GraphvizRenderer emits Graphviz DOT text. Containers become clusters.
type GraphvizRenderer struct {
	// Positions pins nodes at their canvas coordinates.
	Positions bool
}

// Render converts the graph into DOT. Nodes, clusters and edges are sorted
// for stable output.
func (r GraphvizRenderer) Render(g Graph) ([]byte, error) {
	var buf bytes.Buffer
	name := g.Name
	if name == "" {
		name = "workflow"
	}
	fmt.Fprintf(&buf, "digraph %q {\n", name)
	buf.WriteString("  rankdir=LR;\n")
	tree := newGroupTree(g)
	var writeGroup func(gr GraphGroup, indent string)
	writeGroup = func(gr GraphGroup, indent string) {
		fmt.Fprintf(&buf, "%ssubgraph cluster_%d {\n", indent, gr.ID)
		fmt.Fprintf(&buf, "%s  label=%q;\n", indent, gr.Caption)
		for _, n := range tree.nodes[gr.ID] {
			fmt.Fprintf(&buf, "%s  \"%d\"%s;\n", indent, n.ID, r.nodeAttrs(n))
		}
		for _, child := range tree.groups[gr.ID] {
			writeGroup(child, indent+"  ")
		}
		fmt.Fprintf(&buf, "%s}\n", indent)
	}
	for _, gr := range tree.roots {
		writeGroup(gr, "  ")
	}
	for _, n := range tree.top {
		fmt.Fprintf(&buf, "  \"%d\"%s;\n", n.ID, r.nodeAttrs(n))
	}
	for _, e := range sortedEdges(g.Edges) {
		fmt.Fprintf(&buf, "  \"%d\" -> \"%d\"%s;\n", e.From, e.To, buildDOTAttrs(map[string]string{"label": e.Label()}))
	}
	buf.WriteString("}\n")
	return buf.Bytes(), nil
}

func (r GraphvizRenderer) nodeAttrs(n GraphNode) string {
	attrs := map[string]string{
		"label": fmt.Sprintf("%d: %s", n.ID, n.Label),
		"shape": "box",
	}
	if r.Positions {
		attrs["pos"] = fmt.Sprintf("%s,%s!", formatCoord(n.Position.X), formatCoord(-n.Position.Y))
	}
	return buildDOTAttrs(attrs)
}

func buildDOTAttrs(m map[string]string) string {
	var parts []string
	for k, v := range m {
		if strings.TrimSpace(v) == "" {
			continue
		}
		parts = append(parts, fmt.Sprintf("%s=%q", k, v))
	}
	if len(parts) == 0 {
		return ""
	}
	sort.Strings(parts)
	return " [" + strings.Join(parts, ",") + "]"
}

// MermaidRenderer emits a Mermaid flowchart. Containers become subgraphs.
type MermaidRenderer struct {
	// Direction is the flowchart direction; LR when empty.
	Direction string
}

var mermaidEscaper = strings.NewReplacer(`"`, "#quot;", "|", "#124;")

// Render converts the graph into Mermaid flowchart text.
func (r MermaidRenderer) Render(g Graph) ([]byte, error) {
	var buf bytes.Buffer
	dir := r.Direction
	if dir == "" {
		dir = "LR"
	}
	fmt.Fprintf(&buf, "flowchart %s\n", dir)
	tree := newGroupTree(g)
	writeNode := func(n GraphNode, indent string) {
		fmt.Fprintf(&buf, "%st%s[\"%d: %s\"]\n", indent, mermaidID(n.ID), n.ID, mermaidEscaper.Replace(n.Label))
	}
	var writeGroup func(gr GraphGroup, indent string)
	writeGroup = func(gr GraphGroup, indent string) {
		fmt.Fprintf(&buf, "%ssubgraph c%s[\"%s\"]\n", indent, mermaidID(gr.ID), mermaidEscaper.Replace(gr.Caption))
		for _, n := range tree.nodes[gr.ID] {
			writeNode(n, indent+"  ")
		}
		for _, child := range tree.groups[gr.ID] {
			writeGroup(child, indent+"  ")
		}
		fmt.Fprintf(&buf, "%send\n", indent)
	}
	for _, gr := range tree.roots {
		writeGroup(gr, "  ")
	}
	for _, n := range tree.top {
		writeNode(n, "  ")
	}
	for _, e := range sortedEdges(g.Edges) {
		if l := e.Label(); l != "" {
			fmt.Fprintf(&buf, "  t%s -->|%s| t%s\n", mermaidID(e.From), mermaidEscaper.Replace(l), mermaidID(e.To))
		} else {
			fmt.Fprintf(&buf, "  t%s --> t%s\n", mermaidID(e.From), mermaidID(e.To))
		}
	}
	return buf.Bytes(), nil
}

// mermaidID keeps negative ids valid as identifiers.
func mermaidID(id int) string {
	if id < 0 {
		return fmt.Sprintf("m%d", -id)
	}
	return fmt.Sprint(id)
}
