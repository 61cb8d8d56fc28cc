package yxmd

import (
	"fmt"
	"strings"
)

// QueryOptions controls UpdateQuery.
type QueryOptions struct {
	Preview bool
	// StripComments removes "--" line comments before writing the query.
	StripComments bool
}

// UpdateQuery replaces the SQL text of a database input tool. A missing
// query element is created, but only under an existing parent.
func (d *Document) UpdateQuery(id int, query string, opts QueryOptions) Result {
	return d.edit(OpQuery, id, EditOptions{Preview: opts.Preview}, func(t *Tool) plan {
		spec, _ := d.registry.Lookup(t.Plugin)
		if spec.SQL == nil {
			return rejectPlan(unsupported(t.ID, t.Plugin, "SQL query"))
		}
		cfg, rej := d.configuration(t)
		if rej != nil {
			return rejectPlan(rej)
		}
		if opts.StripComments {
			query = StripSQLComments(query)
		}
		path := spec.SQL.Path
		if q := d.path(cfg, path...); q >= 0 {
			pt, err := d.setText(q, query)
			if err != nil {
				return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d: %v", t.ID, err))
			}
			return plan{patches: []patch{pt}, details: []string{"query replaced"}}
		}
		parent := d.path(cfg, path[:len(path)-1]...)
		if parent < 0 {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d has no %s", t.ID, strings.Join(path[:len(path)-1], "/")))
		}
		pt, err := d.insertChild(parent, textElem(path[len(path)-1], query))
		if err != nil {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d: %v", t.ID, err))
		}
		return plan{patches: []patch{pt}, details: []string{fmt.Sprintf("%s created", path[len(path)-1])}}
	})
}

// Query returns the SQL text of a database input tool.
func (d *Document) Query(id int) (string, error) {
	t, ok := d.index.FindByID(id)
	if !ok {
		return "", notFound(id)
	}
	spec, _ := d.registry.Lookup(t.Plugin)
	if spec.SQL == nil {
		return "", unsupported(t.ID, t.Plugin, "SQL query")
	}
	return d.textAt(d.index.Configuration(t), spec.SQL.Path...), nil
}
