package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/atlas-foundry/yxmd-go-sdk/yxmd"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const cliWorkflow = `<?xml version="1.0"?>
<AlteryxDocument yxmdVer="2024.1">
  <Nodes>
    <Node ToolID="1">
      <GuiSettings Plugin="AlteryxBasePluginsGui.DbFileInput.DbFileInput">
        <Position x="54" y="90" />
      </GuiSettings>
      <Properties>
        <Configuration>
          <FormatSpecificOptions>
            <Query>SELECT 1</Query>
            <Connection DcmType="ConnectionId">11111111-2222-3333-4444-555555555555</Connection>
          </FormatSpecificOptions>
        </Configuration>
        <Annotation DisplayMode="0">
          <Name />
          <DefaultAnnotationText>Orders</DefaultAnnotationText>
          <Left value="False" />
        </Annotation>
      </Properties>
    </Node>
    <Node ToolID="2">
      <GuiSettings Plugin="AlteryxGuiToolkit.ToolContainer.ToolContainer">
        <Position x="200" y="50" width="300" height="200" />
      </GuiSettings>
      <Properties>
        <Configuration>
          <Caption>Shaping</Caption>
        </Configuration>
      </Properties>
      <ChildNodes>
        <Node ToolID="3">
          <GuiSettings Plugin="AlteryxBasePluginsGui.Sample.Sample">
            <Position x="250" y="90" />
          </GuiSettings>
          <Properties>
            <Configuration>
              <First>10</First>
            </Configuration>
          </Properties>
        </Node>
      </ChildNodes>
    </Node>
  </Nodes>
  <Connections>
    <Connection>
      <Origin ToolID="1" Connection="Output" />
      <Destination ToolID="3" Connection="Input" />
    </Connection>
  </Connections>
  <Properties>
    <MetaInfo>
      <Name>Orders</Name>
    </MetaInfo>
  </Properties>
</AlteryxDocument>
`

func writeWorkflow(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "orders.yxmd")
	require.NoError(t, os.WriteFile(path, []byte(cliWorkflow), 0o644))
	return path
}

// runCmd executes the CLI with args and returns its standard output.
func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newCmdRootWithOptions(&generalOptions{logger: zaptest.NewLogger(t)})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestFindCommand(t *testing.T) {
	path := writeWorkflow(t)
	for _, fast := range []string{"--fast=false", "--fast=true"} {
		out, err := runCmd(t, "find", path, "--id", "3", fast)
		require.NoError(t, err)
		var matches []yxmd.Match
		require.NoError(t, json.Unmarshal([]byte(out), &matches))
		require.Len(t, matches, 1)
		require.Equal(t, []int{2}, matches[0].ContainerPath)
	}

	out, err := runCmd(t, "find", path, "--annotation", "nothing")
	require.NoError(t, err)
	require.Equal(t, "[]\n", out)
}

func TestAnnotateCommandPersists(t *testing.T) {
	path := writeWorkflow(t)
	out, err := runCmd(t, "annotate", path, "Orders feed", "--id", "1")
	require.NoError(t, err)

	var res yxmd.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, yxmd.StatusPersisted, res.Status)

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(raw), "<DefaultAnnotationText>Orders feed</DefaultAnnotationText>")
}

func TestDryRunLeavesFile(t *testing.T) {
	path := writeWorkflow(t)
	out, err := runCmd(t, "query", path, "--id", "1", "--sql", "SELECT 2 -- two", "--dry-run")
	require.NoError(t, err)

	var res yxmd.Result
	require.NoError(t, json.Unmarshal([]byte(out), &res))
	require.Equal(t, yxmd.StatusPreviewed, res.Status)
	require.Contains(t, res.After, "<Query>SELECT 2</Query>")

	raw, _ := os.ReadFile(path)
	require.Equal(t, cliWorkflow, string(raw))
}

func TestRowLimitCommand(t *testing.T) {
	path := writeWorkflow(t)
	_, err := runCmd(t, "row-limit", path, "--id", "3", "--first", "1", "--last", "2")
	require.ErrorIs(t, err, errRejected)

	out, err := runCmd(t, "row-limit", path, "--type", "Sample", "--sample", "4")
	require.NoError(t, err)
	var br yxmd.BatchResult
	require.NoError(t, json.Unmarshal([]byte(out), &br))
	require.Len(t, br.Results, 1)
	require.Equal(t, []string{"First"}, br.Results[0].Cleared)

	out, err = runCmd(t, "row-limits", path, "--id", "3")
	require.NoError(t, err)
	require.Contains(t, out, `"sample": 4`)
}

func TestConnectionCommand(t *testing.T) {
	path := writeWorkflow(t)
	_, err := runCmd(t, "connection", path, "--id", "1", "--connection-id", "nope")
	require.ErrorIs(t, err, errRejected)

	_, err = runCmd(t, "connection", path, "--ids", "1,3", "--connection-id", "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
	require.NoError(t, err)
	raw, _ := os.ReadFile(path)
	require.Contains(t, string(raw), "aaaaaaaa-bbbb-cccc-dddd-eeeeeeeeeeee")
}

func TestSummaryAndGraphCommands(t *testing.T) {
	path := writeWorkflow(t)
	out, err := runCmd(t, "summary", path)
	require.NoError(t, err)
	require.Contains(t, out, "# Workflow Summary: Orders")

	out, err = runCmd(t, "graph", path, "--format", "mermaid")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(out, "flowchart LR\n"))
	require.Contains(t, out, `subgraph c2["Shaping"]`)

	_, err = runCmd(t, "graph", path, "--format", "svg")
	require.ErrorIs(t, err, yxmd.ErrNotImplemented)
}

func TestCreateCommand(t *testing.T) {
	dir := t.TempDir()
	reqPath := filepath.Join(dir, "request.json")
	require.NoError(t, os.WriteFile(reqPath, []byte(`{
  "tools": [{"plugin_type": "TextInput"}, {"plugin_type": "BrowseV2", "annotation": "check"}],
  "connections": [{"origin": 1, "destination": 2}]
}`), 0o644))
	path := filepath.Join(dir, "new.yxmd")

	out, err := runCmd(t, "create", path, "--request", reqPath)
	require.NoError(t, err)
	require.Contains(t, out, `"tools": 2`)

	_, err = runCmd(t, "create", path, "--request", reqPath)
	require.ErrorContains(t, err, "already exists")

	_, err = runCmd(t, "create", path, "--request", reqPath, "--force")
	require.NoError(t, err)
}
