package yxmd

import (
	"reflect"
	"testing"
)

func TestLookupFastAgreesWithIndex(t *testing.T) {
	d := loadSales(t)
	ix := d.Index()
	for _, tool := range ix.Tools() {
		want := ix.Match(tool)
		got, ok, err := LookupFast([]byte(salesWorkflow), tool.ID)
		if err != nil {
			t.Fatalf("tool %d: %v", tool.ID, err)
		}
		if !ok {
			t.Fatalf("tool %d not found by scanner", tool.ID)
		}
		if got.ToolID != want.ToolID || got.Kind != want.Kind || got.Plugin != want.Plugin || got.Annotation != want.Annotation || got.Caption != want.Caption {
			t.Fatalf("tool %d: fast %+v, indexed %+v", tool.ID, got, want)
		}
		if got.Position != want.Position {
			t.Fatalf("tool %d position: %+v vs %+v", tool.ID, got.Position, want.Position)
		}
		if !reflect.DeepEqual(got.ContainerPath, want.ContainerPath) {
			t.Fatalf("tool %d path: %v vs %v", tool.ID, got.ContainerPath, want.ContainerPath)
		}
		if !reflect.DeepEqual(got.Configuration, want.Configuration) {
			t.Fatalf("tool %d configuration differs", tool.ID)
		}
		if got.Captions != nil {
			t.Fatalf("tool %d: fast lookup should not resolve captions", tool.ID)
		}
	}
}

func TestLookupFastMissing(t *testing.T) {
	_, ok, err := LookupFast([]byte(salesWorkflow), 404)
	if err != nil || ok {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
}

func TestFindNodeSpanMatchesIndex(t *testing.T) {
	d := loadSales(t)
	for _, tool := range d.Index().Tools() {
		span, path, ok := FindNodeSpan([]byte(salesWorkflow), tool.ID)
		if !ok {
			t.Fatalf("tool %d not found", tool.ID)
		}
		if span != d.Index().Span(tool) {
			t.Fatalf("tool %d span %+v, index %+v", tool.ID, span, d.Index().Span(tool))
		}
		want := tool.ContainerPath
		if want == nil {
			want = []int{}
		}
		if !reflect.DeepEqual(path, want) {
			t.Fatalf("tool %d path %v, want %v", tool.ID, path, want)
		}
	}
}

func TestFindNodeSpanSkipsNonMarkup(t *testing.T) {
	const src = `<?xml version="1.0"?>
<AlteryxDocument>
  <!-- <Nodes><Node ToolID="7"><GuiSettings Plugin="Fake" /></Node></Nodes> -->
  <Nodes>
    <Node ToolID="1">
      <GuiSettings Plugin="AlteryxBasePluginsGui.Formula.Formula" />
      <Properties>
        <Configuration>
          <Expression><![CDATA[<Node ToolID="7">]]></Expression>
        </Configuration>
      </Properties>
    </Node>
    <Node ToolID="7" Note="a > b">
      <GuiSettings Plugin="AlteryxBasePluginsGui.Sort.Sort" />
    </Node>
  </Nodes>
  <Connections />
</AlteryxDocument>`
	m, ok, err := LookupFast([]byte(src), 7)
	if err != nil || !ok {
		t.Fatalf("lookup: ok=%v err=%v", ok, err)
	}
	if m.Plugin != "AlteryxBasePluginsGui.Sort.Sort" {
		t.Fatalf("matched the wrong node: %+v", m)
	}
	d, err := Load([]byte(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	tool, _ := d.Index().FindByID(7)
	if tool.Plugin != m.Plugin {
		t.Fatalf("index and scanner disagree: %q vs %q", tool.Plugin, m.Plugin)
	}
}

func TestFindNodeSpanIgnoresNonToolNodes(t *testing.T) {
	const src = `<AlteryxDocument>
  <Nodes>
    <Node ToolID="1">
      <GuiSettings Plugin="AlteryxBasePluginsGui.Formula.Formula" />
      <Properties><Configuration><Node ToolID="2" /></Configuration></Properties>
    </Node>
  </Nodes>
</AlteryxDocument>`
	if _, _, ok := FindNodeSpan([]byte(src), 2); ok {
		t.Fatalf("a Node inside Configuration is not a tool")
	}
	d, err := Load([]byte(src))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, ok := d.Index().FindByID(2); ok {
		t.Fatalf("index should agree with the scanner")
	}
}
