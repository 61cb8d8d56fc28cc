package yxmd

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
)

func toolIDs(tools []*Tool) []int {
	out := make([]int, 0, len(tools))
	for _, t := range tools {
		out = append(out, t.ID)
	}
	return out
}

func TestIndexPreOrder(t *testing.T) {
	ix := loadSales(t).Index()
	got := toolIDs(ix.Tools())
	want := []int{1, 2, 3, 10, 4, 11, 12, 5, 6}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("pre-order ids = %v, want %v", got, want)
	}
	if ids := ix.IDs(); !reflect.DeepEqual(ids, []int{1, 2, 3, 4, 5, 6, 10, 11, 12}) {
		t.Fatalf("sorted ids = %v", ids)
	}
}

func TestIndexContainerPaths(t *testing.T) {
	ix := loadSales(t).Index()
	cases := []struct {
		id       int
		path     []int
		captions []string
	}{
		{1, nil, nil},
		{10, nil, nil},
		{4, []int{10}, []string{"Staging"}},
		{12, []int{10, 11}, []string{"Staging", "Inner"}},
		{5, []int{10, 11, 12}, []string{"Staging", "Inner", "Container 12"}},
		{6, nil, nil},
	}
	for _, tc := range cases {
		tool, ok := ix.FindByID(tc.id)
		if !ok {
			t.Fatalf("tool %d not found", tc.id)
		}
		if !reflect.DeepEqual(tool.ContainerPath, tc.path) {
			t.Fatalf("tool %d path = %v, want %v", tc.id, tool.ContainerPath, tc.path)
		}
		if !reflect.DeepEqual(tool.Captions, tc.captions) {
			t.Fatalf("tool %d captions = %v, want %v", tc.id, tool.Captions, tc.captions)
		}
	}
}

func TestIndexContainers(t *testing.T) {
	ix := loadSales(t).Index()
	outer, _ := ix.FindByID(10)
	if outer.Kind != KindContainer || outer.Caption != "Staging" {
		t.Fatalf("outer container = %+v", outer)
	}
	if !reflect.DeepEqual(outer.Children, []int{4, 11}) {
		t.Fatalf("outer children = %v", outer.Children)
	}
	if outer.Position.Width != 400 || outer.Position.Height != 300 {
		t.Fatalf("container size = %+v", outer.Position)
	}
	unnamed, _ := ix.FindByID(12)
	if unnamed.Caption != "Container 12" {
		t.Fatalf("default caption = %q", unnamed.Caption)
	}
	filter, _ := ix.FindByID(5)
	if filter.Kind != KindTool || filter.Name() != "Filter" {
		t.Fatalf("filter = %+v", filter)
	}
}

func TestFindByType(t *testing.T) {
	ix := loadSales(t).Index()
	if got := toolIDs(ix.FindByType("DbFileInput")); !reflect.DeepEqual(got, []int{1, 4}) {
		t.Fatalf("DbFileInput = %v", got)
	}
	if got := ix.FindByType("dbfileinput"); len(got) != 0 {
		t.Fatalf("type match should be case-sensitive, got %v", toolIDs(got))
	}
	if got := toolIDs(ix.FindByType("ToolContainer")); !reflect.DeepEqual(got, []int{10, 11, 12}) {
		t.Fatalf("containers = %v", got)
	}
}

func TestFindByAnnotation(t *testing.T) {
	ix := loadSales(t).Index()
	if got := toolIDs(ix.FindByAnnotation("SALES")); !reflect.DeepEqual(got, []int{1}) {
		t.Fatalf("SALES = %v", got)
	}
	if got := toolIDs(ix.FindByAnnotation("staging")); !reflect.DeepEqual(got, []int{10, 4}) {
		t.Fatalf("staging = %v", got)
	}
	if got := ix.FindByAnnotation("nothing like this"); len(got) != 0 {
		t.Fatalf("unexpected matches %v", toolIDs(got))
	}
}

func TestFindCombinedQuery(t *testing.T) {
	ix := loadSales(t).Index()
	got := toolIDs(ix.Find(Query{Plugin: "DbFileInput", Annotation: "staging"}))
	if !reflect.DeepEqual(got, []int{4}) {
		t.Fatalf("combined query = %v", got)
	}
	if got := ix.Find(Query{ID: intp(4), Plugin: "Select"}); len(got) != 0 {
		t.Fatalf("id with wrong type should not match: %v", toolIDs(got))
	}
	if got := ix.Find(Query{ID: intp(99)}); len(got) != 0 {
		t.Fatalf("unknown id matched")
	}
}

func TestMatchJSON(t *testing.T) {
	ix := loadSales(t).Index()
	tool, _ := ix.FindByID(1)
	b, err := json.Marshal(ix.Match(tool))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	s := string(b)
	for _, want := range []string{`"tool_id":1`, `"container_path":[]`, `"plugin_type":"AlteryxBasePluginsGui.DbFileInput.DbFileInput"`, `"annotation":"Sales input"`} {
		if !strings.Contains(s, want) {
			t.Fatalf("match json missing %s: %s", want, s)
		}
	}
	m := ix.Match(tool)
	fso, ok := m.Configuration["FormatSpecificOptions"].(map[string]any)
	if !ok {
		t.Fatalf("configuration = %#v", m.Configuration)
	}
	conn, ok := fso["Connection"].(map[string]any)
	if !ok || conn["_text"] != salesConnection || conn["@DcmType"] != "ConnectionId" {
		t.Fatalf("connection mapping = %#v", fso["Connection"])
	}
}

func TestConnections(t *testing.T) {
	conns := loadSales(t).Index().Connections()
	if len(conns) != 5 {
		t.Fatalf("expected 5 connections, got %d", len(conns))
	}
	last := conns[4]
	if last.Origin != 5 || last.OriginPort != "True" || last.Destination != 6 || last.Name != "#1" {
		t.Fatalf("last connection = %+v", last)
	}
}

func TestIndexSpanAndMarkup(t *testing.T) {
	d := loadSales(t)
	ix := d.Index()
	tool, _ := ix.FindByID(5)
	markup := ix.Markup(tool)
	if !strings.HasPrefix(markup, `<Node ToolID="5">`) || !strings.HasSuffix(markup, "</Node>") {
		t.Fatalf("markup = %q", markup)
	}
	outer, _ := ix.FindByID(10)
	if !ix.Span(outer).Contains(ix.Span(tool)) {
		t.Fatalf("container span should contain its descendants")
	}
}
