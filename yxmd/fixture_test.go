package yxmd

import "testing"

const (
	salesConnection = "11111111-2222-3333-4444-555555555555"
	newConnection   = "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee"
)

// salesWorkflow has three top-level tools, a container nested three deep
// and a top-level output.
//
//	1 DbFileInput, 2 Select, 3 Sample
//	10 Staging
//	  4 DbFileInput
//	  11 Inner
//	    12 (no caption, no annotation)
//	      5 Filter
//	6 DbFileOutput
const salesWorkflow = `<?xml version="1.0"?>
<AlteryxDocument yxmdVer="2024.1">
  <Nodes>
    <Node ToolID="1">
      <GuiSettings Plugin="AlteryxBasePluginsGui.DbFileInput.DbFileInput">
        <Position x="54" y="90" />
      </GuiSettings>
      <Properties>
        <Configuration>
          <Passwords />
          <File OutputFileName="" FileFormat="23">aka:Warehouse</File>
          <FormatSpecificOptions>
            <PreSQL />
            <Query>SELECT id, amount -- pick columns
FROM sales</Query>
            <Connection DcmType="ConnectionId">11111111-2222-3333-4444-555555555555</Connection>
          </FormatSpecificOptions>
        </Configuration>
        <Annotation DisplayMode="0">
          <Name />
          <DefaultAnnotationText>Sales input</DefaultAnnotationText>
          <Left value="False" />
        </Annotation>
      </Properties>
      <EngineSettings EngineDll="AlteryxBasePluginsEngine.dll" EngineDllEntryPoint="AlteryxDbFileInput" />
    </Node>
    <Node ToolID="2">
      <GuiSettings Plugin="AlteryxBasePluginsGui.AlteryxSelect.AlteryxSelect">
        <Position x="150" y="90" />
      </GuiSettings>
      <Properties>
        <Configuration>
          <OrderChanged value="False" />
          <SelectFields>
            <SelectField field="Amount" selected="True" type="Double" size="8" />
            <SelectField field="Region" selected="True" rename="Area" />
            <SelectField field="*Unknown" selected="True" />
          </SelectFields>
        </Configuration>
        <Annotation DisplayMode="0">
          <Name />
          <DefaultAnnotationText>Pick columns</DefaultAnnotationText>
          <Left value="False" />
        </Annotation>
      </Properties>
    </Node>
    <Node ToolID="3">
      <GuiSettings Plugin="AlteryxBasePluginsGui.Sample.Sample">
        <Position x="246" y="90" />
      </GuiSettings>
      <Properties>
        <Configuration>
          <First>10</First>
          <GroupByField>Region</GroupByField>
        </Configuration>
        <Annotation DisplayMode="0">
          <Name />
          <DefaultAnnotationText />
          <Left value="False" />
        </Annotation>
      </Properties>
    </Node>
    <Node ToolID="10">
      <GuiSettings Plugin="AlteryxGuiToolkit.ToolContainer.ToolContainer">
        <Position x="300" y="200" width="400" height="300" />
      </GuiSettings>
      <Properties>
        <Configuration>
          <Caption>Staging</Caption>
          <Style TextColor="#314c4a" />
          <Disabled value="False" />
        </Configuration>
        <Annotation DisplayMode="0">
          <Name />
          <DefaultAnnotationText />
          <Left value="False" />
        </Annotation>
      </Properties>
      <ChildNodes>
        <Node ToolID="4">
          <GuiSettings Plugin="AlteryxBasePluginsGui.DbFileInput.DbFileInput">
            <Position x="320" y="240" />
          </GuiSettings>
          <Properties>
            <Configuration>
              <FormatSpecificOptions>
                <PreSQL />
              </FormatSpecificOptions>
            </Configuration>
            <Annotation DisplayMode="0">
              <Name />
              <DefaultAnnotationText>Staging read</DefaultAnnotationText>
              <Left value="False" />
            </Annotation>
          </Properties>
        </Node>
        <Node ToolID="11">
          <GuiSettings Plugin="AlteryxGuiToolkit.ToolContainer.ToolContainer">
            <Position x="400" y="300" width="200" height="150" />
          </GuiSettings>
          <Properties>
            <Configuration>
              <Caption>Inner</Caption>
            </Configuration>
          </Properties>
          <ChildNodes>
            <Node ToolID="12">
              <GuiSettings Plugin="AlteryxGuiToolkit.ToolContainer.ToolContainer">
                <Position x="420" y="320" width="120" height="80" />
              </GuiSettings>
              <Properties>
                <Configuration>
                  <Caption></Caption>
                </Configuration>
              </Properties>
              <ChildNodes>
                <Node ToolID="5">
                  <GuiSettings Plugin="AlteryxBasePluginsGui.Filter.Filter">
                    <Position x="440" y="340" />
                  </GuiSettings>
                  <Properties>
                    <Configuration>
                      <Expression>[amount] &gt; 0</Expression>
                    </Configuration>
                  </Properties>
                </Node>
              </ChildNodes>
            </Node>
          </ChildNodes>
        </Node>
      </ChildNodes>
    </Node>
    <Node ToolID="6">
      <GuiSettings Plugin="AlteryxBasePluginsGui.DbFileOutput.DbFileOutput">
        <Position x="800" y="90" />
      </GuiSettings>
      <Properties>
        <Configuration>
          <File FileFormat="0">out.csv</File>
        </Configuration>
        <Annotation DisplayMode="0">
          <Name />
          <DefaultAnnotationText>Write results</DefaultAnnotationText>
          <Left value="False" />
        </Annotation>
      </Properties>
    </Node>
  </Nodes>
  <Connections>
    <Connection>
      <Origin ToolID="1" Connection="Output" />
      <Destination ToolID="2" Connection="Input" />
    </Connection>
    <Connection>
      <Origin ToolID="2" Connection="Output" />
      <Destination ToolID="3" Connection="Input" />
    </Connection>
    <Connection>
      <Origin ToolID="3" Connection="Output" />
      <Destination ToolID="6" Connection="Input" />
    </Connection>
    <Connection>
      <Origin ToolID="4" Connection="Output" />
      <Destination ToolID="5" Connection="Input" />
    </Connection>
    <Connection name="#1">
      <Origin ToolID="5" Connection="True" />
      <Destination ToolID="6" Connection="Input" />
    </Connection>
  </Connections>
  <Properties>
    <Memory default="True" />
    <MetaInfo>
      <Name>Sales Pipeline</Name>
      <Description>Loads and filters sales</Description>
      <Author>analytics</Author>
    </MetaInfo>
  </Properties>
</AlteryxDocument>
`

func loadSales(t testing.TB) *Document {
	t.Helper()
	d, err := Load([]byte(salesWorkflow))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	return d
}

func intp(v int) *int { return &v }

func boolp(v bool) *bool { return &v }

func strp(v string) *string { return &v }
