package yxmd

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"
)

func TestBuilderBasic(t *testing.T) {
	d, err := NewBuilder().
		Tool(ToolSpec{Plugin: "TextInput", Annotation: "Seed rows"}).
		Tool(ToolSpec{Plugin: "Filter", Configuration: map[string]any{"Expression": "[Amount] > 0", "Mode": "Custom"}}).
		Tool(ToolSpec{Plugin: "BrowseV2"}).
		Connect(1, 2).
		ConnectPorts(2, "True", 3, "Input").
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ix := d.Index()
	if got := toolIDs(ix.Tools()); !reflect.DeepEqual(got, []int{1, 2, 3}) {
		t.Fatalf("ids = %v", got)
	}
	first, _ := ix.FindByID(1)
	if first.Plugin != "AlteryxBasePluginsGui.TextInput.TextInput" || first.Annotation != "Seed rows" {
		t.Fatalf("tool 1 = %+v", first)
	}
	if first.Position != (Position{X: 100, Y: 100}) {
		t.Fatalf("default position = %+v", first.Position)
	}
	filter, _ := ix.FindByID(2)
	if cfg := ix.Match(filter).Configuration; cfg["Expression"] != "[Amount] > 0" || cfg["Mode"] != "Custom" {
		t.Fatalf("configuration = %#v", cfg)
	}
	conns := ix.Connections()
	if len(conns) != 2 || conns[1].OriginPort != "True" || conns[0].DestinationPort != "Input" {
		t.Fatalf("connections = %+v", conns)
	}
	m := d.Metadata()
	if m.Version != defaultVersion || m.Name != defaultName || m.Description != defaultDescription {
		t.Fatalf("metadata = %+v", m)
	}
}

func TestBuilderOutputIsStable(t *testing.T) {
	b := NewBuilder().
		Meta("Name", "Stable").
		Tool(ToolSpec{Plugin: "Formula", Configuration: map[string]any{"@enabled": true, "FormulaFields": map[string]any{"FormulaField": []any{
			map[string]any{"@field": "A", "@expression": "1"},
			map[string]any{"@field": "B", "@expression": "2"},
		}}}})
	first, err := b.Bytes()
	if err != nil {
		t.Fatalf("bytes: %v", err)
	}
	second, _ := b.Bytes()
	if !bytes.Equal(first, second) {
		t.Fatalf("builder output is not deterministic")
	}
	if !strings.Contains(string(first), `<Configuration enabled="True">`) {
		t.Fatalf("attribute keys not applied:\n%s", first)
	}
	if strings.Count(string(first), "<FormulaField ") != 2 {
		t.Fatalf("list values should repeat the element:\n%s", first)
	}
	d, err := Load(first)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	out, _ := d.Bytes()
	if !bytes.Equal(out, first) {
		t.Fatalf("loaded builder output does not round-trip")
	}
}

func TestBuilderDanglingConnection(t *testing.T) {
	_, err := NewBuilder().
		Tool(ToolSpec{Plugin: "TextInput"}).
		Tool(ToolSpec{Plugin: "BrowseV2"}).
		Connect(1, 3).
		Connect(7, 2).
		Connect(1, 3).
		Build()
	if !IsType(err, ErrDanglingConnection) {
		t.Fatalf("expected dangling connection error, got %v", err)
	}
	var e *Error
	errors.As(err, &e)
	if !reflect.DeepEqual(e.Names, []string{"3", "7"}) {
		t.Fatalf("dangling ids = %v", e.Names)
	}
	if !strings.Contains(e.Error(), "3") {
		t.Fatalf("message should name tool 3: %v", e)
	}
}

func TestBuilderExplicitIDs(t *testing.T) {
	d, err := Build(BuildRequest{
		Tools: []ToolSpec{
			{ID: intp(2), Plugin: "TextInput"},
			{Plugin: "Filter"},
			{Plugin: "BrowseV2"},
		},
		Connections: []ConnectionSpec{{Origin: 2, Destination: 3}, {Origin: 3, Destination: 4}},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	// the second tool's default id 2 is taken, so it moves to 3 and the
	// third tool to 4
	if got := toolIDs(d.Index().Tools()); !reflect.DeepEqual(got, []int{2, 3, 4}) {
		t.Fatalf("ids = %v", got)
	}

	_, err = Build(BuildRequest{Tools: []ToolSpec{{ID: intp(5)}, {ID: intp(5)}}})
	if !IsType(err, ErrDuplicateToolID) {
		t.Fatalf("expected duplicate id error, got %v", err)
	}
}

func TestBuilderNestedContainers(t *testing.T) {
	d, err := NewBuilder().
		Tool(ToolSpec{Plugin: "TextInput"}).
		Container(ToolSpec{Annotation: "Outer"},
			ToolSpec{Plugin: "Filter"},
			ToolSpec{Plugin: "ToolContainer", Configuration: map[string]any{"Caption": "Cleanup"}, Children: []ToolSpec{
				{Plugin: "Formula"},
			}},
		).
		Connect(1, 3).
		Connect(3, 5).
		Build()
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	ix := d.Index()
	if got := toolIDs(ix.Tools()); !reflect.DeepEqual(got, []int{1, 2, 3, 4, 5}) {
		t.Fatalf("ids = %v", got)
	}
	formula, _ := ix.FindByID(5)
	if !reflect.DeepEqual(formula.ContainerPath, []int{2, 4}) {
		t.Fatalf("formula path = %v", formula.ContainerPath)
	}
	if !reflect.DeepEqual(formula.Captions, []string{"Container 2", "Cleanup"}) {
		t.Fatalf("formula captions = %v", formula.Captions)
	}
	outer, _ := ix.FindByID(2)
	if outer.Kind != KindContainer || outer.Annotation != "Outer" {
		t.Fatalf("outer = %+v", outer)
	}
}

func TestBuilderChildrenRequireContainer(t *testing.T) {
	_, err := Build(BuildRequest{Tools: []ToolSpec{{Plugin: "Filter", Children: []ToolSpec{{Plugin: "Formula"}}}}})
	if !IsType(err, ErrInvalidRequest) {
		t.Fatalf("expected invalid request, got %v", err)
	}
}

func TestBuiltWorkflowIsEditable(t *testing.T) {
	d, err := Build(BuildRequest{
		Tools:    []ToolSpec{{Plugin: "DbFileInput", Configuration: map[string]any{"FormatSpecificOptions": map[string]any{"Query": "SELECT 1"}}}, {Plugin: "Sample"}},
		Metadata: map[string]string{"Name": "Editable", "Author": "builder"},
	})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if res := d.UpdateConnection(1, ConnectionRef{ID: newConnection}, EditOptions{}); res.Status != StatusApplied {
		t.Fatalf("connection: %+v", res)
	}
	if res := d.UpdateRowLimit(2, RowLimit{First: intp(3)}, EditOptions{}); res.Status != StatusApplied {
		t.Fatalf("row limit: %+v", res)
	}
	if q, _ := d.Query(1); q != "SELECT 1" {
		t.Fatalf("query = %q", q)
	}
	if m := d.Metadata(); m.Name != "Editable" || m.Properties["Author"] != "builder" {
		t.Fatalf("metadata = %+v", m)
	}
}
