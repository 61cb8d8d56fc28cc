package yxmd

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// NodeKind distinguishes plain tools from containers.
type NodeKind string

const (
	KindTool      NodeKind = "tool"
	KindContainer NodeKind = "container"
)

// Position is a tool's canvas placement. Width and Height are set for
// containers only.
type Position struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width,omitempty"`
	Height float64 `json:"height,omitempty"`
}

// Tool is the indexed view of one Node element.
type Tool struct {
	ID            int
	Kind          NodeKind
	Plugin        string
	Position      Position
	Annotation    string
	Caption       string
	ContainerPath []int
	Captions      []string
	Children      []int

	elem int
}

// Name is the plugin's short name.
func (t *Tool) Name() string { return simplePluginName(t.Plugin) }

// Connection is one edge of the workflow graph.
type Connection struct {
	Name            string `json:"name,omitempty"`
	Origin          int    `json:"origin"`
	OriginPort      string `json:"origin_port"`
	Destination     int    `json:"destination"`
	DestinationPort string `json:"destination_port"`
}

// Metadata holds workflow-level properties.
type Metadata struct {
	Version     string            `json:"version,omitempty"`
	Name        string            `json:"name,omitempty"`
	Description string            `json:"description,omitempty"`
	Properties  map[string]string `json:"properties,omitempty"`
}

// Index maps tool ids to tools over a document's current arena. It is
// rebuilt after every applied edit.
type Index struct {
	doc   *Document
	tools []*Tool
	byID  map[int]*Tool
	conns []Connection
}

// parseToolID accepts an optional leading '-' followed by decimal digits.
func parseToolID(s string) (int, bool) {
	digits := strings.TrimPrefix(s, "-")
	if digits == "" {
		return 0, false
	}
	for i := 0; i < len(digits); i++ {
		if digits[i] < '0' || digits[i] > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(s)
	return n, err == nil
}

func buildIndex(d *Document) (*Index, error) {
	ix := &Index{doc: d, byID: make(map[int]*Tool)}
	type frame struct {
		elem     int
		path     []int
		captions []string
	}
	var stack []frame
	pushNodes := func(parent int, path []int, captions []string) {
		nodes := d.childrenNamed(parent, "Node")
		for i := len(nodes) - 1; i >= 0; i-- {
			stack = append(stack, frame{elem: nodes[i], path: path, captions: captions})
		}
	}
	lists := d.childrenNamed(d.root, "Nodes")
	for i := len(lists) - 1; i >= 0; i-- {
		pushNodes(lists[i], nil, nil)
	}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		t, err := d.toolAt(f.elem)
		if err != nil {
			return nil, err
		}
		if _, dup := ix.byID[t.ID]; dup {
			return nil, newError(ErrDuplicateToolID, t.ID, "duplicate ToolID %d", t.ID)
		}
		t.ContainerPath, t.Captions = f.path, f.captions
		ix.tools = append(ix.tools, t)
		ix.byID[t.ID] = t
		if t.Kind != KindContainer {
			continue
		}
		path := append(append([]int(nil), f.path...), t.ID)
		captions := append(append([]string(nil), f.captions...), t.Caption)
		lists := d.childrenNamed(f.elem, "ChildNodes")
		for i := len(lists) - 1; i >= 0; i-- {
			pushNodes(lists[i], path, captions)
		}
	}
	for _, c := range d.childrenNamed(d.child(d.root, "Connections"), "Connection") {
		o, dst := d.child(c, "Origin"), d.child(c, "Destination")
		if o < 0 || dst < 0 {
			continue
		}
		ov, _ := d.attr(o, "ToolID")
		dv, _ := d.attr(dst, "ToolID")
		oid, ok1 := parseToolID(ov)
		did, ok2 := parseToolID(dv)
		if !ok1 || !ok2 {
			continue
		}
		name, _ := d.attr(c, "name")
		op, _ := d.attr(o, "Connection")
		dp, _ := d.attr(dst, "Connection")
		ix.conns = append(ix.conns, Connection{Name: name, Origin: oid, OriginPort: op, Destination: did, DestinationPort: dp})
	}
	return ix, nil
}

// toolAt reads the core attributes of the Node element at el. The
// container path is left to the caller.
func (d *Document) toolAt(el int) (*Tool, error) {
	v, _ := d.attr(el, "ToolID")
	id, ok := parseToolID(v)
	if !ok {
		return nil, &Error{Type: ErrParse, Message: fmt.Sprintf("Node has invalid ToolID %q", v)}
	}
	gui := d.child(el, "GuiSettings")
	plugin, _ := d.attr(gui, "Plugin")
	t := &Tool{ID: id, Kind: KindTool, Plugin: plugin, elem: el}
	if pos := d.child(gui, "Position"); pos >= 0 {
		t.Position = Position{
			X:      d.floatAttr(pos, "x"),
			Y:      d.floatAttr(pos, "y"),
			Width:  d.floatAttr(pos, "width"),
			Height: d.floatAttr(pos, "height"),
		}
	}
	t.Annotation = d.textAt(el, "Properties", "Annotation", "DefaultAnnotationText")
	if d.registry.isContainerPlugin(plugin) || d.child(el, "ChildNodes") >= 0 {
		t.Kind = KindContainer
		t.Caption = strings.TrimSpace(d.textAt(el, "Properties", "Configuration", "Caption"))
		if t.Caption == "" {
			t.Caption = fmt.Sprintf("Container %d", id)
		}
		for _, list := range d.childrenNamed(el, "ChildNodes") {
			for _, n := range d.childrenNamed(list, "Node") {
				v, _ := d.attr(n, "ToolID")
				if cid, ok := parseToolID(v); ok {
					t.Children = append(t.Children, cid)
				}
			}
		}
	}
	return t, nil
}

func (d *Document) floatAttr(el int, name string) float64 {
	v, ok := d.attr(el, name)
	if !ok {
		return 0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f
}

// Tools returns every tool and container in document pre-order.
func (ix *Index) Tools() []*Tool { return ix.tools }

// Connections returns the workflow's edges in document order.
func (ix *Index) Connections() []Connection { return ix.conns }

// FindByID returns the tool with the given id.
func (ix *Index) FindByID(id int) (*Tool, bool) {
	t, ok := ix.byID[id]
	return t, ok
}

// FindByType returns tools whose plugin name contains fragment
// (case-sensitive), in document order.
func (ix *Index) FindByType(fragment string) []*Tool {
	var out []*Tool
	for _, t := range ix.tools {
		if strings.Contains(t.Plugin, fragment) {
			out = append(out, t)
		}
	}
	return out
}

// FindByAnnotation returns tools whose annotation contains pattern,
// ignoring case. Containers also match on their caption.
func (ix *Index) FindByAnnotation(pattern string) []*Tool {
	lower := strings.ToLower(pattern)
	var out []*Tool
	for _, t := range ix.tools {
		if annotationMatches(t, lower) {
			out = append(out, t)
		}
	}
	return out
}

func annotationMatches(t *Tool, lower string) bool {
	if strings.Contains(strings.ToLower(t.Annotation), lower) {
		return true
	}
	return t.Kind == KindContainer && strings.Contains(strings.ToLower(t.Caption), lower)
}

// Query combines lookup criteria; all set criteria must match.
type Query struct {
	ID         *int   `json:"tool_id,omitempty"`
	Plugin     string `json:"plugin_type,omitempty"`
	Annotation string `json:"annotation,omitempty"`
}

// Find returns tools matching every criterion of q in document order.
func (ix *Index) Find(q Query) []*Tool {
	if q.ID != nil {
		t, ok := ix.byID[*q.ID]
		if !ok || !queryMatches(t, q) {
			return nil
		}
		return []*Tool{t}
	}
	var out []*Tool
	for _, t := range ix.tools {
		if queryMatches(t, q) {
			out = append(out, t)
		}
	}
	return out
}

func queryMatches(t *Tool, q Query) bool {
	if q.Plugin != "" && !strings.Contains(t.Plugin, q.Plugin) {
		return false
	}
	if q.Annotation != "" && !annotationMatches(t, strings.ToLower(q.Annotation)) {
		return false
	}
	return true
}

// Match is the serializable lookup result for one tool.
type Match struct {
	ToolID        int            `json:"tool_id"`
	Kind          NodeKind       `json:"kind"`
	Plugin        string         `json:"plugin_type"`
	Position      Position       `json:"position"`
	Annotation    string         `json:"annotation"`
	Caption       string         `json:"caption,omitempty"`
	ContainerPath []int          `json:"container_path"`
	Captions      []string       `json:"container_captions,omitempty"`
	Configuration map[string]any `json:"configuration,omitempty"`
}

// Match renders t as a lookup result, including its configuration mapping.
func (ix *Index) Match(t *Tool) Match {
	m := Match{
		ToolID:        t.ID,
		Kind:          t.Kind,
		Plugin:        t.Plugin,
		Position:      t.Position,
		Annotation:    t.Annotation,
		Caption:       t.Caption,
		ContainerPath: append([]int{}, t.ContainerPath...),
		Captions:      t.Captions,
	}
	if cfg := ix.doc.path(t.elem, "Properties", "Configuration"); cfg >= 0 {
		m.Configuration = ix.doc.configMap(cfg)
	}
	return m
}

// Matches renders each tool with Match.
func (ix *Index) Matches(tools []*Tool) []Match {
	out := make([]Match, 0, len(tools))
	for _, t := range tools {
		out = append(out, ix.Match(t))
	}
	return out
}

// Span returns the byte span of the tool's Node element in the current text.
func (ix *Index) Span(t *Tool) Span { return ix.doc.elems[t.elem].Span }

// Markup returns the tool's Node element text.
func (ix *Index) Markup(t *Tool) string { return ix.doc.slice(ix.Span(t)) }

// Configuration returns the arena id of the tool's Properties/Configuration
// element, or -1.
func (ix *Index) Configuration(t *Tool) int {
	return ix.doc.path(t.elem, "Properties", "Configuration")
}

// IDs returns every tool id in ascending order.
func (ix *Index) IDs() []int {
	out := make([]int, 0, len(ix.byID))
	for id := range ix.byID {
		out = append(out, id)
	}
	sort.Ints(out)
	return out
}

// Metadata reads the workflow's version and MetaInfo properties.
func (d *Document) Metadata() Metadata {
	m := Metadata{Properties: map[string]string{}}
	m.Version, _ = d.attr(d.root, "yxmdVer")
	info := d.path(d.root, "Properties", "MetaInfo")
	if info < 0 {
		return m
	}
	for _, c := range d.elems[info].Children {
		e := &d.elems[c]
		if len(e.Children) > 0 {
			continue
		}
		val := strings.TrimSpace(e.Text)
		switch e.Name {
		case "Name":
			m.Name = val
		case "Description":
			m.Description = val
		default:
			if val == "" {
				if v, ok := e.Attr("value"); ok {
					val = v
				}
			}
			m.Properties[e.Name] = val
		}
	}
	return m
}
