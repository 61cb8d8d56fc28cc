package yxmd

import (
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// Editor runs operations against workflow files. Each call loads the file,
// applies one operation and, unless previewing, saves it atomically when
// something changed.
type Editor struct {
	log      *zap.Logger
	registry *Registry
	fast     bool
}

// Option configures an Editor.
type Option func(*Editor)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(e *Editor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRegistry sets the plugin registry.
func WithRegistry(r *Registry) Option {
	return func(e *Editor) {
		if r != nil {
			e.registry = r
		}
	}
}

// WithFastLookup routes id-only lookups through the raw text scanner.
func WithFastLookup(on bool) Option {
	return func(e *Editor) { e.fast = on }
}

// NewEditor builds an Editor.
func NewEditor(opts ...Option) *Editor {
	e := &Editor{log: zap.NewNop(), registry: DefaultRegistry}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Load reads and parses a workflow file.
func (e *Editor) Load(path string) (*Document, error) {
	d, err := LoadFileWithOptions(path, LoadOptions{Registry: e.registry})
	if err != nil {
		e.log.Warn("load workflow", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	return d, nil
}

// Find returns tools matching q. With fast lookup enabled, a query by id
// alone skips building the index.
func (e *Editor) Find(path string, q Query) ([]Match, error) {
	if e.fast && q.ID != nil && q.Plugin == "" && q.Annotation == "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, &Error{Type: ErrParse, Message: "read " + path, Err: err}
		}
		m, ok, err := LookupFastWithOptions(raw, *q.ID, LoadOptions{Registry: e.registry})
		if err != nil {
			e.log.Warn("fast lookup", zap.String("path", path), zap.Error(err))
			return nil, err
		}
		e.log.Debug("find", zap.String("path", path), zap.Int("tool_id", *q.ID), zap.Bool("fast", true), zap.Bool("found", ok))
		if !ok {
			return nil, nil
		}
		return []Match{m}, nil
	}
	d, err := e.Load(path)
	if err != nil {
		return nil, err
	}
	ix := d.Index()
	out := ix.Matches(ix.Find(q))
	e.log.Debug("find", zap.String("path", path), zap.Int("matches", len(out)))
	return out, nil
}

// RowLimits reads a tool's row limit settings.
func (e *Editor) RowLimits(path string, id int) (RowLimitState, error) {
	d, err := e.Load(path)
	if err != nil {
		return RowLimitState{}, err
	}
	return d.RowLimits(id)
}

// Summarize loads path and summarizes it. The workflow name defaults to
// the file name.
func (e *Editor) Summarize(path string) (Summary, error) {
	d, err := e.Load(path)
	if err != nil {
		return Summary{}, err
	}
	s := d.Summarize()
	if s.Metadata.Name == "" {
		s.Metadata.Name = filepath.Base(path)
	}
	return s, nil
}

// Graph loads path and returns its tool graph.
func (e *Editor) Graph(path string) (Graph, error) {
	d, err := e.Load(path)
	if err != nil {
		return Graph{}, err
	}
	return d.Graph(), nil
}

// Create builds a workflow and writes it to path. MetaInfo Name defaults to
// the file stem.
func (e *Editor) Create(path string, req BuildRequest) (*Document, error) {
	meta := make(map[string]string, len(req.Metadata)+1)
	for k, v := range req.Metadata {
		meta[k] = v
	}
	if meta["Name"] == "" {
		meta["Name"] = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	req.Metadata = meta
	d, err := NewBuilder().Registry(e.registry).Request(req).Build()
	if err != nil {
		e.log.Warn("build workflow", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	if err := d.SaveFile(path); err != nil {
		e.log.Warn("write workflow", zap.String("path", path), zap.Error(err))
		return nil, err
	}
	e.log.Info("create", zap.String("path", path), zap.Int("tools", len(d.Index().Tools())))
	return d, nil
}

// mutate runs fn on the loaded document and persists an applied change.
func (e *Editor) mutate(path string, preview bool, fn func(d *Document) Result) (Result, error) {
	d, err := e.Load(path)
	if err != nil {
		return Result{}, err
	}
	res := fn(d)
	if res.Applied && res.Changed && !preview {
		if err := d.SaveFile(path); err != nil {
			e.log.Warn("write workflow", zap.String("path", path), zap.String("op", res.Op), zap.Error(err))
			return res, err
		}
		res.Status = StatusPersisted
	}
	e.log.Info(res.Op,
		zap.String("path", path),
		zap.Int("tool_id", res.ToolID),
		zap.Bool("preview", preview),
		zap.Bool("applied", res.Applied),
		zap.String("status", string(res.Status)),
		zap.Strings("details", res.Details),
	)
	return res, nil
}

// mutateBatch runs fn and persists once if any target changed.
func (e *Editor) mutateBatch(path string, preview bool, fn func(d *Document) BatchResult) (BatchResult, error) {
	d, err := e.Load(path)
	if err != nil {
		return BatchResult{}, err
	}
	br := fn(d)
	if br.Changed() > 0 && !preview && d.Modified() {
		if err := d.SaveFile(path); err != nil {
			e.log.Warn("write workflow", zap.String("path", path), zap.String("op", br.Op), zap.Error(err))
			return br, err
		}
		br.setStatus(StatusApplied, StatusPersisted)
	}
	e.log.Info(br.Op,
		zap.String("path", path),
		zap.Int("targets", len(br.Results)),
		zap.Int("applied", br.Applied()),
		zap.Bool("preview", preview),
		zap.Int("batch_errors", len(br.Errors)),
	)
	return br, nil
}

// UpdateAnnotation edits a tool's annotation in path.
func (e *Editor) UpdateAnnotation(path string, id int, text string, opts EditOptions) (Result, error) {
	return e.mutate(path, opts.Preview, func(d *Document) Result { return d.UpdateAnnotation(id, text, opts) })
}

// UpdateFields edits a select-family tool's fields in path.
func (e *Editor) UpdateFields(path string, id int, updates map[string]FieldUpdate, opts EditOptions) (Result, error) {
	return e.mutate(path, opts.Preview, func(d *Document) Result { return d.UpdateFields(id, updates, opts) })
}

// UpdateQuery edits a database input tool's SQL in path.
func (e *Editor) UpdateQuery(path string, id int, query string, opts QueryOptions) (Result, error) {
	return e.mutate(path, opts.Preview, func(d *Document) Result { return d.UpdateQuery(id, query, opts) })
}

// UpdateConnection edits a tool's connection identifier in path.
func (e *Editor) UpdateConnection(path string, id int, ref ConnectionRef, opts EditOptions) (Result, error) {
	return e.mutate(path, opts.Preview, func(d *Document) Result { return d.UpdateConnection(id, ref, opts) })
}

// BatchUpdateConnection edits several tools' connection identifiers in path.
func (e *Editor) BatchUpdateConnection(path string, ids []int, ref ConnectionRef, opts EditOptions) (BatchResult, error) {
	return e.mutateBatch(path, opts.Preview, func(d *Document) BatchResult { return d.BatchUpdateConnection(ids, ref, opts) })
}

// UpdateRowLimit edits a tool's row limits in path.
func (e *Editor) UpdateRowLimit(path string, id int, lim RowLimit, opts EditOptions) (Result, error) {
	return e.mutate(path, opts.Preview, func(d *Document) Result { return d.UpdateRowLimit(id, lim, opts) })
}

// BatchUpdateRowLimit edits the row limits of every selected tool in path.
func (e *Editor) BatchUpdateRowLimit(path string, sel Selector, lim RowLimit, opts EditOptions) (BatchResult, error) {
	return e.mutateBatch(path, opts.Preview, func(d *Document) BatchResult { return d.BatchUpdateRowLimit(sel, lim, opts) })
}

// RewriteConnections applies a connection map to every matching tool in path.
func (e *Editor) RewriteConnections(path string, m ConnectionMap, opts EditOptions) (BatchResult, error) {
	return e.mutateBatch(path, opts.Preview, func(d *Document) BatchResult { return d.RewriteConnections(m, opts) })
}
