package yxmd

import (
	"errors"
	"testing"
)

func TestRegistryLookup(t *testing.T) {
	spec, ok := DefaultRegistry.Lookup("AlteryxBasePluginsGui.DbFileInput.DbFileInput")
	if !ok || spec.SQL == nil || spec.Connection == nil {
		t.Fatalf("DbFileInput spec = %+v", spec)
	}
	// versioned or vendor-prefixed names fall back to the trailing segment
	if spec, ok := DefaultRegistry.Lookup("SomeVendor.Gui.Sample"); !ok || spec.RowLimit == nil || !spec.RowLimit.Exclusive {
		t.Fatalf("Sample fallback = %+v", spec)
	}
	if _, ok := DefaultRegistry.Lookup("Custom.Unknown.Thing"); ok {
		t.Fatalf("unknown plugin resolved")
	}
	if got := DefaultRegistry.Resolve("Browse"); got != "AlteryxBasePluginsGui.BrowseV2.BrowseV2" {
		t.Fatalf("alias resolved to %q", got)
	}
	if got := DefaultRegistry.Resolve("Made.Up"); got != "Made.Up" {
		t.Fatalf("full names pass through, got %q", got)
	}
}

func TestRegistryRegister(t *testing.T) {
	reg := DefaultRegistry.Clone()
	if err := reg.Register(PluginSpec{Plugin: "Custom.Reader.Reader", SQL: &SQLCapability{Path: []string{"Sql"}}}); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, ok := DefaultRegistry.Lookup("Custom.Reader.Reader"); ok {
		t.Fatalf("clone leaked into the default registry")
	}
	err := reg.Register(PluginSpec{Plugin: "Other.Reader"})
	if !errors.Is(err, PluginExistsError) {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if err := reg.Register(PluginSpec{}); err == nil {
		t.Fatalf("empty plugin name accepted")
	}
	names := map[string]bool{}
	for _, s := range reg.List() {
		names[s.Name] = true
	}
	if !names["Reader"] || !names["Browse"] || !names["ToolContainer"] {
		t.Fatalf("list missing entries: %v", names)
	}
}

func TestCustomRegistryDrivesEdits(t *testing.T) {
	reg := NewRegistry()
	_ = reg.Register(PluginSpec{Plugin: "AlteryxBasePluginsGui.Sample.Sample", RowLimit: &RowLimitCapability{First: "First", Last: "Last"}})
	d, err := LoadWithOptions([]byte(salesWorkflow), LoadOptions{Registry: reg})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	// without exclusivity setting Last leaves First in place
	res := d.UpdateRowLimit(3, RowLimit{Last: intp(4)}, EditOptions{})
	if res.Status != StatusApplied || len(res.Cleared) != 0 {
		t.Fatalf("row limit: %+v", res)
	}
	st, _ := d.RowLimits(3)
	if st.First == nil || *st.First != 10 || st.Last == nil || *st.Last != 4 {
		t.Fatalf("limits = %+v", st)
	}
	if res := d.UpdateQuery(1, "SELECT 1", QueryOptions{}); !IsType(res.Err(), ErrUnsupported) {
		t.Fatalf("unregistered plugin should not accept queries: %+v", res)
	}
	// containers are still recognised by plugin name
	if tool, _ := d.Index().FindByID(10); tool.Kind != KindContainer {
		t.Fatalf("container not detected without a registry entry")
	}
}

func TestSimplePluginName(t *testing.T) {
	cases := map[string]string{
		"AlteryxBasePluginsGui.Filter.Filter": "Filter",
		"Plain":                               "Plain",
		"":                                    "Unknown",
	}
	for in, want := range cases {
		if got := simplePluginName(in); got != want {
			t.Fatalf("%q: got %q, want %q", in, got, want)
		}
	}
}
