package yxmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	defaultVersion     = "2024.1"
	defaultPlugin      = "AlteryxSelect"
	defaultName        = "Workflow"
	defaultDescription = "Auto-generated workflow"
	defaultOriginPort  = "Output"
	defaultDestPort    = "Input"
)

// ToolSpec describes one tool to build. ID and Position are optional;
// Children is honoured for container plugins only.
type ToolSpec struct {
	ID            *int           `json:"id,omitempty"`
	Plugin        string         `json:"plugin_type"`
	Position      *Position      `json:"position,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
	Annotation    string         `json:"annotation,omitempty"`
	Children      []ToolSpec     `json:"children,omitempty"`
}

// ConnectionSpec describes one edge. Ports default to Output and Input.
type ConnectionSpec struct {
	Origin          int    `json:"origin"`
	Destination     int    `json:"destination"`
	OriginPort      string `json:"origin_port,omitempty"`
	DestinationPort string `json:"destination_port,omitempty"`
	Name            string `json:"name,omitempty"`
}

// BuildRequest is the declarative form of a Builder.
type BuildRequest struct {
	Tools       []ToolSpec        `json:"tools"`
	Connections []ConnectionSpec  `json:"connections,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
	Version     string            `json:"version,omitempty"`
}

// Builder provides a fluent API for assembling a new workflow.
type Builder struct {
	registry *Registry
	version  string
	meta     map[string]string
	tools    []ToolSpec
	conns    []ConnectionSpec
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{registry: DefaultRegistry, version: defaultVersion, meta: map[string]string{}}
}

// Build assembles a workflow from a request.
func Build(req BuildRequest) (*Document, error) {
	return NewBuilder().Request(req).Build()
}

// Request appends everything in req.
func (b *Builder) Request(req BuildRequest) *Builder {
	if req.Version != "" {
		b.version = req.Version
	}
	for k, v := range req.Metadata {
		b.meta[k] = v
	}
	b.tools = append(b.tools, req.Tools...)
	b.conns = append(b.conns, req.Connections...)
	return b
}

// Registry sets the registry used to resolve short plugin names.
func (b *Builder) Registry(r *Registry) *Builder {
	if r != nil {
		b.registry = r
	}
	return b
}

// Version sets the yxmdVer attribute.
func (b *Builder) Version(v string) *Builder {
	b.version = v
	return b
}

// Meta sets one MetaInfo property.
func (b *Builder) Meta(key, value string) *Builder {
	b.meta[key] = value
	return b
}

// Tool appends a tool.
func (b *Builder) Tool(spec ToolSpec) *Builder {
	b.tools = append(b.tools, spec)
	return b
}

// Container appends a container holding children.
func (b *Builder) Container(spec ToolSpec, children ...ToolSpec) *Builder {
	if spec.Plugin == "" {
		spec.Plugin = "ToolContainer"
	}
	spec.Children = append(spec.Children, children...)
	return b.Tool(spec)
}

// Connect appends an Output to Input edge.
func (b *Builder) Connect(origin, destination int) *Builder {
	return b.ConnectPorts(origin, defaultOriginPort, destination, defaultDestPort)
}

// ConnectPorts appends an edge between named ports.
func (b *Builder) ConnectPorts(origin int, originPort string, destination int, destinationPort string) *Builder {
	b.conns = append(b.conns, ConnectionSpec{Origin: origin, OriginPort: originPort, Destination: destination, DestinationPort: destinationPort})
	return b
}

// placedTool is a ToolSpec with its assigned id.
type placedTool struct {
	spec     ToolSpec
	order    int
	id       int
	children []*placedTool
}

// Bytes renders the workflow text without loading it.
func (b *Builder) Bytes() ([]byte, error) {
	var (
		all   []*placedTool
		order int
	)
	var place func(specs []ToolSpec) []*placedTool
	place = func(specs []ToolSpec) []*placedTool {
		out := make([]*placedTool, 0, len(specs))
		for _, s := range specs {
			order++
			p := &placedTool{spec: s, order: order}
			all = append(all, p)
			p.children = place(s.Children)
			out = append(out, p)
		}
		return out
	}
	top := place(b.tools)

	used := make(map[int]bool, len(all))
	for _, p := range all {
		if p.spec.ID == nil {
			continue
		}
		if used[*p.spec.ID] {
			return nil, newError(ErrDuplicateToolID, *p.spec.ID, "duplicate tool id %d", *p.spec.ID)
		}
		used[*p.spec.ID] = true
		p.id = *p.spec.ID
	}
	for _, p := range all {
		if p.spec.ID != nil {
			continue
		}
		id := p.order
		for used[id] {
			id++
		}
		used[id] = true
		p.id = id
	}

	var dangling []int
	seen := map[int]bool{}
	for _, c := range b.conns {
		for _, id := range []int{c.Origin, c.Destination} {
			if !used[id] && !seen[id] {
				seen[id] = true
				dangling = append(dangling, id)
			}
		}
	}
	if len(dangling) > 0 {
		sort.Ints(dangling)
		names := make([]string, len(dangling))
		for i, id := range dangling {
			names[i] = strconv.Itoa(id)
		}
		e := newError(ErrDanglingConnection, 0, "connections reference undeclared tools: %s", strings.Join(names, ", "))
		e.Names = names
		return nil, e
	}

	nodes := &markup{name: "Nodes"}
	for _, p := range top {
		m, err := b.nodeMarkup(p)
		if err != nil {
			return nil, err
		}
		nodes.children = append(nodes.children, m)
	}
	conns := &markup{name: "Connections"}
	for _, c := range b.conns {
		op, dp := c.OriginPort, c.DestinationPort
		if op == "" {
			op = defaultOriginPort
		}
		if dp == "" {
			dp = defaultDestPort
		}
		m := elem("Connection",
			emptyElem("Origin", attr{"ToolID", strconv.Itoa(c.Origin)}, attr{"Connection", op}),
			emptyElem("Destination", attr{"ToolID", strconv.Itoa(c.Destination)}, attr{"Connection", dp}),
		)
		if c.Name != "" {
			m.attrs = []attr{{"name", c.Name}}
		}
		conns.children = append(conns.children, m)
	}
	root := elem("AlteryxDocument", nodes, conns, elem("Properties", b.metaInfo()))
	root.attrs = []attr{{"yxmdVer", b.version}, {"RunE2", "T"}}
	out := `<?xml version="1.0" encoding="utf-8"?>` + "\n" + root.render("", defaultIndentUnit, "\n") + "\n"
	return []byte(out), nil
}

// Build renders the workflow and loads it back, so the result is an
// ordinary editable Document.
func (b *Builder) Build() (*Document, error) {
	out, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return LoadWithOptions(out, LoadOptions{Registry: b.registry})
}

func (b *Builder) metaInfo() *markup {
	name, desc := b.meta["Name"], b.meta["Description"]
	if name == "" {
		name = defaultName
	}
	if desc == "" {
		desc = defaultDescription
	}
	info := elem("MetaInfo", textElem("Name", name), textElem("Description", desc))
	for _, k := range sortedKeys(b.meta) {
		if k == "Name" || k == "Description" {
			continue
		}
		info.children = append(info.children, textElem(k, b.meta[k]))
	}
	return info
}

func formatCoord(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

func (b *Builder) nodeMarkup(p *placedTool) (*markup, error) {
	name := p.spec.Plugin
	if name == "" {
		name = defaultPlugin
	}
	plugin := b.registry.Resolve(name)
	container := b.registry.isContainerPlugin(plugin)
	if len(p.children) > 0 && !container {
		return nil, newError(ErrInvalidRequest, p.id, "tool %d (%s) is not a container but has children", p.id, simplePluginName(plugin))
	}
	pos := Position{X: float64(100 * p.order), Y: 100}
	if p.spec.Position != nil {
		pos = *p.spec.Position
	}
	posAttrs := []attr{{"x", formatCoord(pos.X)}, {"y", formatCoord(pos.Y)}}
	if pos.Width != 0 || pos.Height != 0 {
		posAttrs = append(posAttrs, attr{"width", formatCoord(pos.Width)}, attr{"height", formatCoord(pos.Height)})
	}
	gui := elem("GuiSettings", emptyElem("Position", posAttrs...))
	gui.attrs = []attr{{"Plugin", plugin}}

	cfgMap := p.spec.Configuration
	if container {
		if _, ok := cfgMap["Caption"]; !ok {
			withCaption := make(map[string]any, len(cfgMap)+1)
			for k, v := range cfgMap {
				withCaption[k] = v
			}
			withCaption["Caption"] = fmt.Sprintf("Container %d", p.id)
			cfgMap = withCaption
		}
	}
	cfg := &markup{name: "Configuration"}
	configMarkup(cfg, cfgMap)
	ann := elem("Annotation",
		emptyElem("Name"),
		textElem("DefaultAnnotationText", p.spec.Annotation),
		emptyElem("Left", attr{"value", "False"}),
	)
	ann.attrs = annotationAttrs["Annotation"]

	node := elem("Node", gui, elem("Properties", cfg, ann))
	node.attrs = []attr{{"ToolID", strconv.Itoa(p.id)}}
	if container {
		kids := &markup{name: "ChildNodes"}
		for _, c := range p.children {
			m, err := b.nodeMarkup(c)
			if err != nil {
				return nil, err
			}
			kids.children = append(kids.children, m)
		}
		node.children = append(node.children, kids)
	}
	return node, nil
}
