package yxmd

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/pelletier/go-toml/v2"
)

// ConnectionRef names the connection identifier to write: either ID
// directly, or the identifier currently held by FromTool.
type ConnectionRef struct {
	ID       string `json:"connection_id,omitempty"`
	FromTool *int   `json:"source_tool_id,omitempty"`
}

// ValidateConnectionID checks that s is a canonical 36-character UUID.
func ValidateConnectionID(s string) error {
	if len(s) != 36 {
		return newError(ErrInvalidIdentifier, 0, "connection id %q is not a UUID", s)
	}
	if _, err := uuid.Parse(s); err != nil {
		e := newError(ErrInvalidIdentifier, 0, "connection id %q is not a UUID", s)
		e.Err = err
		return e
	}
	return nil
}

// ConnectionID returns the connection identifier a tool currently holds.
func (d *Document) ConnectionID(id int) (string, bool) {
	t, ok := d.index.FindByID(id)
	if !ok {
		return "", false
	}
	el := d.connectionElem(t)
	if el < 0 {
		return "", false
	}
	return strings.TrimSpace(d.elems[el].Text), true
}

func (d *Document) connectionElem(t *Tool) int {
	spec, _ := d.registry.Lookup(t.Plugin)
	if spec.Connection == nil {
		return -1
	}
	cfg := d.index.Configuration(t)
	for _, p := range spec.Connection.Paths {
		if el := d.path(cfg, p...); el >= 0 {
			return el
		}
	}
	return -1
}

// resolveConnection turns ref into a concrete identifier.
func (d *Document) resolveConnection(ref ConnectionRef) (string, *Error) {
	switch {
	case ref.ID != "":
		if err := ValidateConnectionID(ref.ID); err != nil {
			return "", err.(*Error)
		}
		return ref.ID, nil
	case ref.FromTool != nil:
		v, ok := d.ConnectionID(*ref.FromTool)
		if !ok || v == "" {
			return "", newError(ErrReferenceNotFound, *ref.FromTool, "reference tool %d has no connection id", *ref.FromTool)
		}
		return v, nil
	default:
		return "", newError(ErrInvalidRequest, 0, "no connection id or reference tool given")
	}
}

var connectionAttrs = []attr{{name: "DcmType", value: "ConnectionId"}}

// planConnection writes value into the tool's connection element, creating
// one under Configuration when the tool has none.
func (d *Document) planConnection(t *Tool, value string) plan {
	spec, _ := d.registry.Lookup(t.Plugin)
	if spec.Connection == nil {
		return rejectPlan(unsupported(t.ID, t.Plugin, "connection"))
	}
	cfg, rej := d.configuration(t)
	if rej != nil {
		return rejectPlan(rej)
	}
	if el := d.connectionElem(t); el >= 0 {
		old := strings.TrimSpace(d.elems[el].Text)
		pt, err := d.setText(el, value)
		if err != nil {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d: %v", t.ID, err))
		}
		return plan{patches: []patch{pt}, details: []string{fmt.Sprintf("connection: %q -> %q", old, value)}}
	}
	pt, err := d.insertChild(cfg, textElem("Connection", value, connectionAttrs...))
	if err != nil {
		return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d: %v", t.ID, err))
	}
	return plan{patches: []patch{pt}, details: []string{fmt.Sprintf("connection created: %q", value)}}
}

// UpdateConnection sets a tool's connection identifier.
func (d *Document) UpdateConnection(id int, ref ConnectionRef, opts EditOptions) Result {
	return d.edit(OpConnection, id, opts, func(t *Tool) plan {
		value, rej := d.resolveConnection(ref)
		if rej != nil {
			if rej.ToolID == 0 {
				rej.ToolID = t.ID
			}
			return rejectPlan(rej)
		}
		return d.planConnection(t, value)
	})
}

// BatchUpdateConnection sets the same connection identifier on every
// target. The reference is resolved once; if it fails no target is tried.
func (d *Document) BatchUpdateConnection(ids []int, ref ConnectionRef, opts EditOptions) BatchResult {
	value, rej := d.resolveConnection(ref)
	if rej != nil {
		return BatchResult{Op: OpBatchConnection, Preview: opts.Preview, Errors: []*Error{rej}}
	}
	return d.editBatch(OpBatchConnection, ids, opts, func(t *Tool) plan {
		return d.planConnection(t, value)
	})
}

// ConnectionRewrite replaces one connection identifier and optionally a
// label inside the annotation of every tool that used it.
type ConnectionRewrite struct {
	NewID    string `json:"new_id" toml:"new_id"`
	OldLabel string `json:"old_label,omitempty" toml:"old_label,omitempty"`
	NewLabel string `json:"new_label,omitempty" toml:"new_label,omitempty"`
}

// ConnectionMap maps old connection identifiers to their rewrites.
type ConnectionMap map[string]ConnectionRewrite

type connectionMapFile struct {
	Connections ConnectionMap `json:"connections" toml:"connections"`
}

// ParseConnectionMap decodes a mapping document. format is "json" or
// "toml"; both use a top-level "connections" table.
func ParseConnectionMap(data []byte, format string) (ConnectionMap, error) {
	var f connectionMapFile
	var err error
	switch strings.ToLower(format) {
	case "toml":
		err = toml.Unmarshal(data, &f)
	case "json", "":
		err = json.Unmarshal(data, &f)
	default:
		return nil, newError(ErrInvalidRequest, 0, "unknown connection map format %q", format)
	}
	if err != nil {
		return nil, &Error{Type: ErrInvalidRequest, Message: "decode connection map", Err: err}
	}
	if len(f.Connections) == 0 {
		return nil, newError(ErrInvalidRequest, 0, "no connections mapping found")
	}
	return f.Connections, nil
}

// LoadConnectionMap reads a mapping file, choosing the format by extension.
func LoadConnectionMap(path string) (ConnectionMap, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &Error{Type: ErrInvalidRequest, Message: fmt.Sprintf("read %s", path), Err: err}
	}
	format := "json"
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		format = "toml"
	}
	return ParseConnectionMap(data, format)
}

// RewriteConnections applies m to every tool whose connection identifier
// appears in it. Only affected tools are reported.
func (d *Document) RewriteConnections(m ConnectionMap, opts EditOptions) BatchResult {
	br := BatchResult{Op: OpRewriteConnections, Preview: opts.Preview}
	for _, old := range sortedKeys(m) {
		if err := ValidateConnectionID(m[old].NewID); err != nil {
			br.Errors = append(br.Errors, err.(*Error))
		}
	}
	if len(br.Errors) > 0 {
		return br
	}
	var ids []int
	for _, t := range d.index.Tools() {
		if v, ok := d.ConnectionID(t.ID); ok {
			if _, hit := m[v]; hit {
				ids = append(ids, t.ID)
			}
		}
	}
	return d.editBatch(OpRewriteConnections, ids, opts, func(t *Tool) plan {
		old, _ := d.ConnectionID(t.ID)
		rw := m[old]
		p := d.planConnection(t, rw.NewID)
		if p.reject || rw.NewLabel == "" || rw.OldLabel == "" || !strings.Contains(t.Annotation, rw.OldLabel) {
			return p
		}
		ann := d.path(t.elem, "Properties", "Annotation", "DefaultAnnotationText")
		next := strings.ReplaceAll(t.Annotation, rw.OldLabel, rw.NewLabel)
		pt, err := d.setText(ann, next)
		if err != nil {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d: %v", t.ID, err))
		}
		p.patches = append(p.patches, pt)
		p.details = append(p.details, fmt.Sprintf("annotation label %q -> %q", rw.OldLabel, rw.NewLabel))
		return p
	})
}
