package yxmd

import (
	"sort"
	"strings"
)

// ToolCount is the number of tools of one plugin.
type ToolCount struct {
	Plugin string `json:"plugin"`
	Count  int    `json:"count"`
}

// ContainerSummary describes one container and what it holds.
type ContainerSummary struct {
	ToolID     int                `json:"tool_id"`
	Caption    string             `json:"caption"`
	Annotation string             `json:"annotation,omitempty"`
	Tools      []int              `json:"tools,omitempty"`
	Containers []ContainerSummary `json:"containers,omitempty"`
}

// DatabaseInput describes a tool that reads through a SQL query.
type DatabaseInput struct {
	ToolID        int    `json:"tool_id"`
	Plugin        string `json:"plugin"`
	Connection    string `json:"connection,omitempty"`
	Query         string `json:"query,omitempty"`
	Annotation    string `json:"annotation,omitempty"`
	ContainerPath []int  `json:"container_path,omitempty"`
}

// OutputTarget describes where an output tool writes.
type OutputTarget struct {
	ToolID      int    `json:"tool_id"`
	Plugin      string `json:"plugin"`
	Destination string `json:"destination,omitempty"`
	Connection  string `json:"connection,omitempty"`
}

// Summary is a read-only digest of a workflow.
type Summary struct {
	Metadata    Metadata           `json:"metadata"`
	ToolCount   int                `json:"tool_count"`
	ToolCounts  []ToolCount        `json:"tool_counts"`
	Containers  []ContainerSummary `json:"containers,omitempty"`
	Databases   []DatabaseInput    `json:"database_inputs,omitempty"`
	Outputs     []OutputTarget     `json:"outputs,omitempty"`
	Connections []Connection       `json:"connections,omitempty"`
	Labels      map[int]string     `json:"-"`
}

// Summarize extracts tool statistics, the container hierarchy, database
// inputs with their queries, output targets and the connection list.
// Tool counts are ordered by count descending, then by name.
func (d *Document) Summarize() Summary {
	s := Summary{Metadata: d.Metadata(), Connections: d.index.Connections(), Labels: map[int]string{}}
	counts := map[string]int{}
	for _, t := range d.index.Tools() {
		s.Labels[t.ID] = toolLabel(t)
		if t.Kind == KindContainer {
			continue
		}
		s.ToolCount++
		counts[t.Name()]++
		spec, _ := d.registry.Lookup(t.Plugin)
		cfg := d.index.Configuration(t)
		conn, _ := d.ConnectionID(t.ID)
		if spec.SQL != nil {
			s.Databases = append(s.Databases, DatabaseInput{
				ToolID:        t.ID,
				Plugin:        t.Name(),
				Connection:    conn,
				Query:         strings.TrimSpace(d.textAt(cfg, spec.SQL.Path...)),
				Annotation:    strings.TrimSpace(t.Annotation),
				ContainerPath: t.ContainerPath,
			})
		}
		if spec.Output != nil {
			s.Outputs = append(s.Outputs, OutputTarget{
				ToolID:      t.ID,
				Plugin:      t.Name(),
				Destination: strings.TrimSpace(d.textAt(cfg, spec.Output.Path...)),
				Connection:  conn,
			})
		}
	}
	for name, n := range counts {
		s.ToolCounts = append(s.ToolCounts, ToolCount{Plugin: name, Count: n})
	}
	sort.Slice(s.ToolCounts, func(i, j int) bool {
		if s.ToolCounts[i].Count != s.ToolCounts[j].Count {
			return s.ToolCounts[i].Count > s.ToolCounts[j].Count
		}
		return s.ToolCounts[i].Plugin < s.ToolCounts[j].Plugin
	})
	for _, t := range d.index.Tools() {
		if t.Kind == KindContainer && len(t.ContainerPath) == 0 {
			s.Containers = append(s.Containers, d.containerSummary(t))
		}
	}
	return s
}

func (d *Document) containerSummary(t *Tool) ContainerSummary {
	c := ContainerSummary{ToolID: t.ID, Caption: t.Caption, Annotation: strings.TrimSpace(t.Annotation)}
	for _, id := range t.Children {
		child, ok := d.index.FindByID(id)
		if !ok {
			continue
		}
		if child.Kind == KindContainer {
			c.Containers = append(c.Containers, d.containerSummary(child))
		} else {
			c.Tools = append(c.Tools, id)
		}
	}
	return c
}

func toolLabel(t *Tool) string {
	if t.Kind == KindContainer {
		return t.Caption
	}
	if a := strings.TrimSpace(t.Annotation); a != "" {
		return t.Name() + ": " + firstLine(a)
	}
	return t.Name()
}

func firstLine(s string) string {
	if i := strings.IndexAny(s, "\r\n"); i >= 0 {
		return s[:i]
	}
	return s
}
