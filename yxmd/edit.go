package yxmd

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/multierr"
)

// Operation names reported in results and logs.
const (
	OpAnnotation         = "update_annotation"
	OpFields             = "update_fields"
	OpQuery              = "update_query"
	OpConnection         = "update_connection"
	OpBatchConnection    = "batch_update_connection"
	OpRowLimit           = "update_row_limit"
	OpBatchRowLimit      = "batch_update_row_limit"
	OpRewriteConnections = "rewrite_connections"
)

// Status tracks an edit through Located, Validated, Applied or Rejected,
// and finally Persisted or Previewed.
type Status string

const (
	StatusRejected  Status = "rejected"
	StatusPreviewed Status = "previewed"
	StatusApplied   Status = "applied"
	StatusPersisted Status = "persisted"
)

// EditOptions controls a single edit or batch.
type EditOptions struct {
	// Preview computes Before/After without touching the document.
	Preview bool
}

// Result is the outcome of one edit on one tool. Before and After hold the
// tool's Node element text, so any difference is scoped to that node.
type Result struct {
	Op      string   `json:"op"`
	ToolID  int      `json:"tool_id"`
	Status  Status   `json:"status"`
	Applied bool     `json:"applied"`
	Changed bool     `json:"changed"`
	Preview bool     `json:"preview"`
	Before  string   `json:"before,omitempty"`
	After   string   `json:"after,omitempty"`
	Details []string `json:"details,omitempty"`
	Cleared []string `json:"cleared,omitempty"`
	Errors  []*Error `json:"errors,omitempty"`

	patches []patch
}

// Err combines the result's errors, or returns nil.
func (r Result) Err() error {
	var err error
	for _, e := range r.Errors {
		err = multierr.Append(err, e)
	}
	return err
}

// BatchResult reports each target of a batch independently. Errors holds
// failures that apply to the whole batch.
type BatchResult struct {
	Op      string   `json:"op"`
	Preview bool     `json:"preview"`
	Results []Result `json:"results"`
	Errors  []*Error `json:"errors,omitempty"`
}

// Applied counts targets whose edit applied.
func (b BatchResult) Applied() int {
	n := 0
	for _, r := range b.Results {
		if r.Applied {
			n++
		}
	}
	return n
}

// Changed counts targets whose text changed.
func (b BatchResult) Changed() int {
	n := 0
	for _, r := range b.Results {
		if r.Changed {
			n++
		}
	}
	return n
}

// Err combines batch-level and per-target errors, or returns nil.
func (b BatchResult) Err() error {
	var err error
	for _, e := range b.Errors {
		err = multierr.Append(err, e)
	}
	for _, r := range b.Results {
		err = multierr.Append(err, r.Err())
	}
	return err
}

func (b *BatchResult) setStatus(from, to Status) {
	for i := range b.Results {
		if b.Results[i].Status == from {
			b.Results[i].Status = to
		}
	}
}

// plan is what an editor decided for one tool.
type plan struct {
	patches []patch
	details []string
	cleared []string
	errs    []*Error
	reject  bool
}

func rejectPlan(errs ...*Error) plan { return plan{errs: errs, reject: true} }

type planner func(t *Tool) plan

// planResult locates and validates an edit and renders its preview. The
// document is not modified.
func (d *Document) planResult(op string, id int, preview bool, fn planner) Result {
	res := Result{Op: op, ToolID: id, Preview: preview}
	t, ok := d.index.FindByID(id)
	if !ok {
		res.Status, res.Errors = StatusRejected, []*Error{notFound(id)}
		return res
	}
	p := fn(t)
	res.Details, res.Cleared, res.Errors = p.details, p.cleared, p.errs
	if p.reject {
		res.Status = StatusRejected
		return res
	}
	span := d.index.Span(t)
	for _, pt := range p.patches {
		if !span.Contains(pt.span) {
			res.Status = StatusRejected
			res.Errors = append(res.Errors, newError(ErrInvalidRequest, id, "edit escapes tool %d", id))
			return res
		}
	}
	after, err := applyPatches(d.text[span.Start:span.End], shift(p.patches, span.Start))
	if err != nil {
		res.Status = StatusRejected
		res.Errors = append(res.Errors, newError(ErrInvalidRequest, id, "tool %d: %v", id, err))
		return res
	}
	res.Before, res.After = d.slice(span), string(after)
	res.Changed = res.Before != res.After
	res.Applied = true
	res.patches = p.patches
	if preview {
		res.Status = StatusPreviewed
	} else {
		res.Status = StatusApplied
	}
	return res
}

// edit runs fn against one tool and applies the outcome unless previewing.
func (d *Document) edit(op string, id int, opts EditOptions, fn planner) Result {
	res := d.planResult(op, id, opts.Preview, fn)
	if !res.Applied || opts.Preview || !res.Changed {
		return res
	}
	if err := d.commit(res.patches); err != nil {
		res.Applied, res.Status = false, StatusRejected
		res.Errors = append(res.Errors, asError(err, id))
	}
	return res
}

// editBatch plans every target against the same document state and applies
// all accepted edits in one commit.
func (d *Document) editBatch(op string, ids []int, opts EditOptions, fn planner) BatchResult {
	br := BatchResult{Op: op, Preview: opts.Preview}
	var all []patch
	for _, id := range uniqueIDs(ids) {
		r := d.planResult(op, id, opts.Preview, fn)
		if r.Applied && r.Changed {
			all = append(all, r.patches...)
		}
		br.Results = append(br.Results, r)
	}
	if opts.Preview || len(all) == 0 {
		return br
	}
	if err := d.commit(all); err != nil {
		br.Errors = append(br.Errors, asError(err, 0))
		for i := range br.Results {
			if br.Results[i].Applied {
				br.Results[i].Applied, br.Results[i].Status = false, StatusRejected
			}
		}
	}
	return br
}

// uniqueIDs drops repeated ids, keeping first occurrence order.
func uniqueIDs(ids []int) []int {
	seen := make(map[int]bool, len(ids))
	out := make([]int, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}

func asError(err error, id int) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return &Error{Type: ErrInvalidRequest, ToolID: id, Message: err.Error(), Err: err}
}

// configuration returns the tool's Configuration element or a rejection.
func (d *Document) configuration(t *Tool) (int, *Error) {
	cfg := d.index.Configuration(t)
	if cfg < 0 {
		return -1, newError(ErrInvalidRequest, t.ID, "tool %d has no Configuration", t.ID)
	}
	return cfg, nil
}

var annotationAttrs = map[string][]attr{"Annotation": {{name: "DisplayMode", value: "0"}}}

// UpdateAnnotation replaces the annotation text of a tool or container.
func (d *Document) UpdateAnnotation(id int, text string, opts EditOptions) Result {
	return d.edit(OpAnnotation, id, opts, func(t *Tool) plan {
		patches, err := d.ensureText(t.elem, []string{"Properties", "Annotation", "DefaultAnnotationText"}, text, annotationAttrs)
		if err != nil {
			return rejectPlan(newError(ErrInvalidRequest, t.ID, "tool %d: %v", t.ID, err))
		}
		return plan{patches: patches, details: []string{fmt.Sprintf("annotation: %q -> %q", t.Annotation, text)}}
	})
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
