package yxmd

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// FieldsCapability locates the SelectFields list, relative to the tool's
// Properties/Configuration element.
type FieldsCapability struct {
	Path []string
}

// SQLCapability locates the query text. The query element may be created,
// but only under an existing parent.
type SQLCapability struct {
	Path []string
}

// ConnectionCapability lists candidate locations of the connection
// identifier, tried in order.
type ConnectionCapability struct {
	Paths [][]string
}

// RowLimitCapability names the row limit elements a tool understands.
// Exclusive tools honour only one limit at a time.
type RowLimitCapability struct {
	First     string
	Last      string
	Sample    string
	GroupBy   string
	Exclusive bool
}

// OutputCapability locates an output tool's destination.
type OutputCapability struct {
	Path []string
}

// PluginSpec describes what the SDK knows about a plugin. Editors dispatch
// on which capabilities are present.
type PluginSpec struct {
	Name       string
	Plugin     string
	Container  bool
	Fields     *FieldsCapability
	SQL        *SQLCapability
	Connection *ConnectionCapability
	RowLimit   *RowLimitCapability
	Output     *OutputCapability
}

// Registry is a threadsafe plugin registry keyed by full and short name.
type Registry struct {
	mu       sync.RWMutex
	byName   map[string]PluginSpec
	byPlugin map[string]PluginSpec
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]PluginSpec), byPlugin: make(map[string]PluginSpec)}
}

// PluginExistsError indicates a duplicate registration attempt.
var PluginExistsError = errors.New("plugin already registered")

// Register adds spec. Name defaults to the plugin's trailing segment.
func (r *Registry) Register(spec PluginSpec) error {
	if spec.Plugin == "" {
		return errors.New("plugin name is empty")
	}
	if spec.Name == "" {
		spec.Name = simplePluginName(spec.Plugin)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.byName[spec.Name]; exists {
		return fmt.Errorf("%w: %s", PluginExistsError, spec.Name)
	}
	r.byName[spec.Name] = spec
	if _, exists := r.byPlugin[spec.Plugin]; !exists {
		r.byPlugin[spec.Plugin] = spec
	}
	return nil
}

// Lookup finds the PluginSpec for a full plugin name, falling back to its
// trailing segment and then to a registered short name.
func (r *Registry) Lookup(plugin string) (PluginSpec, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byPlugin[plugin]; ok {
		return s, true
	}
	s, ok := r.byName[simplePluginName(plugin)]
	return s, ok
}

// Resolve maps a short name to its full plugin name. Unknown names are
// returned unchanged.
func (r *Registry) Resolve(name string) string {
	if strings.Contains(name, ".") {
		return name
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if s, ok := r.byName[name]; ok {
		return s.Plugin
	}
	return name
}

// List returns registered specs sorted by short name.
func (r *Registry) List() []PluginSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]PluginSpec, 0, len(r.byName))
	for _, s := range r.byName {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Clone returns an independent copy, for callers that register extra
// aliases without touching DefaultRegistry.
func (r *Registry) Clone() *Registry {
	out := NewRegistry()
	r.mu.RLock()
	defer r.mu.RUnlock()
	for k, v := range r.byName {
		out.byName[k] = v
	}
	for k, v := range r.byPlugin {
		out.byPlugin[k] = v
	}
	return out
}

// DefaultRegistry is pre-populated with the built-in Alteryx plugins.
var DefaultRegistry = newDefaultRegistry()

func newDefaultRegistry() *Registry {
	reg := NewRegistry()
	registerDefaultPlugins(reg)
	return reg
}

var (
	dbConnection = &ConnectionCapability{Paths: [][]string{{"FormatSpecificOptions", "Connection"}, {"Connection"}}}
	joinFields   = &FieldsCapability{Path: []string{"SelectConfiguration", "Configuration", "SelectFields"}}
)

func registerDefaultPlugins(reg *Registry) {
	const base = "AlteryxBasePluginsGui."
	specs := []PluginSpec{
		{Plugin: base + "AlteryxSelect.AlteryxSelect", Fields: &FieldsCapability{Path: []string{"SelectFields"}}},
		{Plugin: base + "Join.Join", Fields: joinFields},
		{Plugin: base + "AppendFields.AppendFields", Fields: joinFields},
		{Plugin: base + "DbFileInput.DbFileInput", SQL: &SQLCapability{Path: []string{"FormatSpecificOptions", "Query"}}, Connection: dbConnection},
		{Plugin: base + "DbFileOutput.DbFileOutput", Connection: dbConnection, Output: &OutputCapability{Path: []string{"File"}}},
		{Plugin: base + "Sample.Sample", RowLimit: &RowLimitCapability{First: "First", Last: "Last", Sample: "N", GroupBy: "GroupByField", Exclusive: true}},
		{Plugin: base + "Filter.Filter"},
		{Plugin: base + "Sort.Sort"},
		{Plugin: base + "Formula.Formula"},
		{Plugin: base + "MultiRowFormula.MultiRowFormula"},
		{Plugin: base + "Union.Union"},
		{Plugin: base + "Summarize.Summarize"},
		{Plugin: base + "Unique.Unique"},
		{Plugin: base + "RecordID.RecordID"},
		{Plugin: base + "TextInput.TextInput"},
		{Plugin: base + "DateTimeInput.DateTimeInput"},
		{Plugin: base + "BrowseV2.BrowseV2"},
		{Name: "Browse", Plugin: base + "BrowseV2.BrowseV2"},
		{Plugin: "AlteryxGuiToolkit.TextBox.TextBox"},
		{Plugin: "AlteryxGuiToolkit.ToolContainer.ToolContainer", Container: true},
		{Plugin: "LockInGui.LockInInput.LockInInput", SQL: &SQLCapability{Path: []string{"Query"}}, Connection: dbConnection},
		{Plugin: "LockInGui.LockInStreamIn.LockInStreamIn", Connection: dbConnection},
		{Plugin: "LockInGui.LockInOutput.LockInOutput", Connection: dbConnection, Output: &OutputCapability{Path: []string{"Table"}}},
	}
	// ignore duplicate errors to allow idempotent init in tests
	for _, s := range specs {
		_ = reg.Register(s)
	}
}

// simplePluginName returns the trailing segment of a dotted plugin name.
func simplePluginName(plugin string) string {
	if plugin == "" {
		return "Unknown"
	}
	if i := strings.LastIndexByte(plugin, '.'); i >= 0 {
		return plugin[i+1:]
	}
	return plugin
}

// isContainerPlugin reports whether a plugin name denotes a container.
func (r *Registry) isContainerPlugin(plugin string) bool {
	if s, ok := r.Lookup(plugin); ok && s.Container {
		return true
	}
	return strings.Contains(plugin, "ToolContainer")
}
