package yxmd

import (
	"fmt"
	"strconv"
	"strings"
)

// RowLimit sets record limits. Nil members are left alone.
type RowLimit struct {
	First  *int `json:"first,omitempty" toml:"first,omitempty"`
	Last   *int `json:"last,omitempty" toml:"last,omitempty"`
	Sample *int `json:"sample,omitempty" toml:"sample,omitempty"`
}

// RowLimitState is the current row limit configuration of a tool.
type RowLimitState struct {
	ToolID  int    `json:"tool_id"`
	Plugin  string `json:"plugin_type"`
	First   *int   `json:"first,omitempty"`
	Last    *int   `json:"last,omitempty"`
	Sample  *int   `json:"sample,omitempty"`
	GroupBy string `json:"group_by,omitempty"`
}

// Selector picks batch targets by explicit ids or by plugin name fragment.
// IDs win when both are set.
type Selector struct {
	IDs    []int  `json:"tool_ids,omitempty"`
	Plugin string `json:"plugin_type,omitempty"`
}

var defaultRowLimitNames = RowLimitCapability{First: "First", Last: "Last", Sample: "N", GroupBy: "GroupByField"}

type limitSlot struct {
	label string
	elem  string
	value *int
}

func (l RowLimit) slots(c *RowLimitCapability) []limitSlot {
	return []limitSlot{
		{"First", c.First, l.First},
		{"Last", c.Last, l.Last},
		{"Sample", c.Sample, l.Sample},
	}
}

func (l RowLimit) validate() error {
	n := 0
	for _, v := range []*int{l.First, l.Last, l.Sample} {
		if v == nil {
			continue
		}
		if *v < 0 {
			return newError(ErrInvalidRequest, 0, "row limits must not be negative")
		}
		n++
	}
	if n == 0 {
		return newError(ErrInvalidRequest, 0, "no row limit given")
	}
	return nil
}

func (l RowLimit) count() int {
	n := 0
	for _, v := range []*int{l.First, l.Last, l.Sample} {
		if v != nil {
			n++
		}
	}
	return n
}

func (d *Document) planRowLimit(t *Tool, lim RowLimit) plan {
	spec, _ := d.registry.Lookup(t.Plugin)
	c := spec.RowLimit
	if c == nil {
		return rejectPlan(unsupported(t.ID, t.Plugin, "row limit"))
	}
	if err := lim.validate(); err != nil {
		e := err.(*Error)
		e.ToolID = t.ID
		return rejectPlan(e)
	}
	if c.Exclusive && lim.count() > 1 {
		return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d (%s) accepts only one of first, last or sample", t.ID, t.Name()))
	}
	cfg, rej := d.configuration(t)
	if rej != nil {
		return rejectPlan(rej)
	}
	var p plan
	for _, s := range lim.slots(c) {
		if s.elem == "" {
			continue
		}
		if s.value == nil {
			if !c.Exclusive {
				continue
			}
			if el := d.child(cfg, s.elem); el >= 0 {
				p.patches = append(p.patches, d.removeElement(el))
				p.cleared = append(p.cleared, s.label)
				p.details = append(p.details, fmt.Sprintf("%s: %s cleared", s.label, strings.TrimSpace(d.elems[el].Text)))
			}
			continue
		}
		old := d.textAt(cfg, s.elem)
		patches, err := d.ensureText(cfg, []string{s.elem}, strconv.Itoa(*s.value), nil)
		if err != nil {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d: %v", t.ID, err))
		}
		p.patches = append(p.patches, patches...)
		p.details = append(p.details, fmt.Sprintf("%s: %s -> %d", s.label, displayOld(old), *s.value))
	}
	return p
}

func displayOld(s string) string {
	if s = strings.TrimSpace(s); s == "" {
		return "None"
	}
	return s
}

// UpdateRowLimit sets the record limits of a row-limiting tool. For tools
// whose limits are mutually exclusive, setting one clears the others and
// the cleared names are reported.
func (d *Document) UpdateRowLimit(id int, lim RowLimit, opts EditOptions) Result {
	return d.edit(OpRowLimit, id, opts, func(t *Tool) plan { return d.planRowLimit(t, lim) })
}

// BatchUpdateRowLimit applies lim to every selected tool independently.
func (d *Document) BatchUpdateRowLimit(sel Selector, lim RowLimit, opts EditOptions) BatchResult {
	ids := sel.IDs
	if len(ids) == 0 {
		if sel.Plugin == "" {
			return BatchResult{Op: OpBatchRowLimit, Preview: opts.Preview, Errors: []*Error{newError(ErrInvalidRequest, 0, "no targets selected")}}
		}
		for _, t := range d.index.FindByType(sel.Plugin) {
			ids = append(ids, t.ID)
		}
	}
	return d.editBatch(OpBatchRowLimit, ids, opts, func(t *Tool) plan { return d.planRowLimit(t, lim) })
}

// RowLimits reads a tool's current First, Last, sample N and group-by
// settings.
func (d *Document) RowLimits(id int) (RowLimitState, error) {
	t, ok := d.index.FindByID(id)
	if !ok {
		return RowLimitState{}, notFound(id)
	}
	c := &defaultRowLimitNames
	if spec, _ := d.registry.Lookup(t.Plugin); spec.RowLimit != nil {
		c = spec.RowLimit
	}
	cfg := d.index.Configuration(t)
	st := RowLimitState{ToolID: t.ID, Plugin: t.Plugin}
	st.First = d.intAt(cfg, c.First)
	st.Last = d.intAt(cfg, c.Last)
	st.Sample = d.intAt(cfg, c.Sample)
	if c.GroupBy != "" {
		st.GroupBy = strings.TrimSpace(d.textAt(cfg, c.GroupBy))
	}
	return st, nil
}

func (d *Document) intAt(el int, name string) *int {
	if name == "" {
		return nil
	}
	v := strings.TrimSpace(d.textAt(el, name))
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil
	}
	return &n
}
