package yxmd

import (
	"fmt"
	"strings"
)

// FieldUpdate changes one field of a select list. Nil members are left
// alone; an empty Rename clears the output name.
type FieldUpdate struct {
	Selected *bool   `json:"selected,omitempty" toml:"selected,omitempty"`
	Rename   *string `json:"rename,omitempty" toml:"rename,omitempty"`
}

func boolString(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// UpdateFields toggles and renames fields of a select-family tool. Fields
// that do not exist are reported together in one field_not_found error
// while the rest are still applied; the edit is rejected only when none
// resolve.
func (d *Document) UpdateFields(id int, updates map[string]FieldUpdate, opts EditOptions) Result {
	return d.edit(OpFields, id, opts, func(t *Tool) plan {
		spec, _ := d.registry.Lookup(t.Plugin)
		if spec.Fields == nil {
			return rejectPlan(unsupported(t.ID, t.Plugin, "field selection"))
		}
		if len(updates) == 0 {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "no field updates given"))
		}
		cfg, rej := d.configuration(t)
		if rej != nil {
			return rejectPlan(rej)
		}
		list := d.path(cfg, spec.Fields.Path...)
		if list < 0 {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d has no %s", t.ID, strings.Join(spec.Fields.Path, "/")))
		}
		byName := make(map[string]int)
		for _, f := range d.childrenNamed(list, "SelectField") {
			if name, ok := d.attr(f, "field"); ok {
				if _, seen := byName[name]; !seen {
					byName[name] = f
				}
			}
		}
		var (
			p       plan
			missing []string
		)
		for _, name := range sortedKeys(updates) {
			el, ok := byName[name]
			if !ok {
				missing = append(missing, name)
				continue
			}
			u := updates[name]
			var edits []attrEdit
			if u.Selected != nil {
				old, _ := d.attr(el, "selected")
				v := boolString(*u.Selected)
				edits = append(edits, attrEdit{name: "selected", value: v})
				p.details = append(p.details, fmt.Sprintf("%s: selected %s -> %s", name, old, v))
			}
			if u.Rename != nil {
				old, _ := d.attr(el, "rename")
				if *u.Rename == "" {
					edits = append(edits, attrEdit{name: "rename", remove: true})
					p.details = append(p.details, fmt.Sprintf("%s: rename %q cleared", name, old))
				} else {
					edits = append(edits, attrEdit{name: "rename", value: *u.Rename})
					p.details = append(p.details, fmt.Sprintf("%s: rename %q -> %q", name, old, *u.Rename))
				}
			}
			if len(edits) == 0 {
				p.details = append(p.details, fmt.Sprintf("%s: no changes requested", name))
				continue
			}
			p.patches = append(p.patches, d.editAttrs(el, edits)...)
		}
		if len(missing) > 0 {
			p.errs = append(p.errs, fieldsNotFound(t.ID, missing))
			p.reject = len(missing) == len(updates)
		}
		return p
	})
}

// Fields lists the select list of a select-family tool in document order.
func (d *Document) Fields(id int) ([]SelectField, error) {
	t, ok := d.index.FindByID(id)
	if !ok {
		return nil, notFound(id)
	}
	spec, _ := d.registry.Lookup(t.Plugin)
	if spec.Fields == nil {
		return nil, unsupported(t.ID, t.Plugin, "field selection")
	}
	list := d.path(d.index.Configuration(t), spec.Fields.Path...)
	var out []SelectField
	for _, f := range d.childrenNamed(list, "SelectField") {
		e := &d.elems[f]
		sf := SelectField{}
		sf.Field, _ = e.Attr("field")
		sel, _ := e.Attr("selected")
		sf.Selected = strings.EqualFold(sel, "true")
		sf.Rename, _ = e.Attr("rename")
		sf.Type, _ = e.Attr("type")
		out = append(out, sf)
	}
	return out, nil
}

// SelectField is one entry of a select list.
type SelectField struct {
	Field    string `json:"field"`
	Selected bool   `json:"selected"`
	Rename   string `json:"rename,omitempty"`
	Type     string `json:"type,omitempty"`
}
