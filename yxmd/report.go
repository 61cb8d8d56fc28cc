package yxmd

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	goorg "github.com/niklasfasching/go-org/org"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
)

// TextFormat enumerates summary report targets.
type TextFormat string

const (
	FormatMarkdown TextFormat = "markdown"
	FormatHTML     TextFormat = "html"
	FormatOrg      TextFormat = "org"
)

// ErrNotImplemented is returned for report formats without a renderer.
var ErrNotImplemented = errors.New("format not implemented")

// ReportOptions tunes summary rendering.
type ReportOptions struct {
	// Title overrides the workflow name in the heading.
	Title string
	// Aliases maps connection identifiers to display labels.
	Aliases map[string]string
}

// RenderSummary renders s as Markdown, HTML or Org text.
func RenderSummary(s Summary, format TextFormat, opts ReportOptions) (string, error) {
	switch format {
	case FormatMarkdown, "md", "":
		return renderMarkdown(s, opts), nil
	case FormatHTML:
		return renderHTML(renderMarkdown(s, opts))
	case FormatOrg:
		return renderOrg(s, opts)
	default:
		return "", fmt.Errorf("%w: %s", ErrNotImplemented, format)
	}
}

func reportTitle(s Summary, opts ReportOptions) string {
	switch {
	case opts.Title != "":
		return opts.Title
	case s.Metadata.Name != "":
		return s.Metadata.Name
	default:
		return "workflow"
	}
}

func connectionLabel(id string, aliases map[string]string) string {
	if alias, ok := aliases[id]; ok && alias != "" {
		return fmt.Sprintf("%s (`%s`)", alias, id)
	}
	return "`" + id + "`"
}

func renderMarkdown(s Summary, opts ReportOptions) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Workflow Summary: %s\n\n", reportTitle(s, opts))
	if s.Metadata.Description != "" {
		b.WriteString(s.Metadata.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "## Tool Statistics\n\nTotal tools: %d\n\n", s.ToolCount)
	for _, c := range s.ToolCounts {
		fmt.Fprintf(&b, "- **%s**: %d\n", c.Plugin, c.Count)
	}
	b.WriteString("\n")
	if len(s.Containers) > 0 {
		b.WriteString("## Containers\n\n")
		for _, c := range s.Containers {
			writeContainerMarkdown(&b, c, 0)
		}
		b.WriteString("\n")
	}
	if len(s.Databases) > 0 {
		b.WriteString("## Database Inputs\n\n")
		for _, in := range s.Databases {
			fmt.Fprintf(&b, "### Tool %d\n\n", in.ToolID)
			if in.Annotation != "" {
				fmt.Fprintf(&b, "**Annotation**: %s\n\n", in.Annotation)
			}
			if in.Connection != "" {
				fmt.Fprintf(&b, "**Connection**: %s\n\n", connectionLabel(in.Connection, opts.Aliases))
			}
			if in.Query != "" {
				fmt.Fprintf(&b, "```sql\n%s\n```\n\n", in.Query)
			}
		}
	}
	if len(s.Outputs) > 0 {
		b.WriteString("## Outputs\n\n")
		for _, out := range s.Outputs {
			target := out.Destination
			if target == "" && out.Connection != "" {
				target = connectionLabel(out.Connection, opts.Aliases)
			}
			fmt.Fprintf(&b, "- **Tool %d**: %s\n", out.ToolID, target)
		}
		b.WriteString("\n")
	}
	if len(s.Connections) > 0 {
		b.WriteString("## Connections\n\n")
		for _, c := range s.Connections {
			fmt.Fprintf(&b, "- %d (%s) → %d (%s)\n", c.Origin, c.OriginPort, c.Destination, c.DestinationPort)
		}
	}
	return strings.TrimSpace(b.String()) + "\n"
}

func writeContainerMarkdown(b *strings.Builder, c ContainerSummary, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s- **%s** (tool %d)", indent, c.Caption, c.ToolID)
	if c.Annotation != "" {
		fmt.Fprintf(b, ": %s", firstLine(c.Annotation))
	}
	b.WriteString("\n")
	if len(c.Tools) > 0 {
		fmt.Fprintf(b, "%s  - tools: %s\n", indent, joinInts(c.Tools))
	}
	for _, child := range c.Containers {
		writeContainerMarkdown(b, child, depth+1)
	}
}

func joinInts(ids []int) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = fmt.Sprint(id)
	}
	return strings.Join(parts, ", ")
}

func renderHTML(markdown string) (string, error) {
	md := goldmark.New(
		goldmark.WithExtensions(extension.Table, extension.Strikethrough, extension.Linkify),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
	)
	var buf bytes.Buffer
	if err := md.Convert([]byte(markdown), &buf); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func renderOrg(s Summary, opts ReportOptions) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "#+TITLE: Workflow Summary: %s\n\n", reportTitle(s, opts))
	if s.Metadata.Description != "" {
		b.WriteString(s.Metadata.Description)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "* Tool Statistics\n\nTotal tools: %d\n\n", s.ToolCount)
	for _, c := range s.ToolCounts {
		fmt.Fprintf(&b, "- *%s*: %d\n", c.Plugin, c.Count)
	}
	b.WriteString("\n")
	if len(s.Containers) > 0 {
		b.WriteString("* Containers\n\n")
		for _, c := range s.Containers {
			writeContainerOrg(&b, c, 0)
		}
		b.WriteString("\n")
	}
	if len(s.Databases) > 0 {
		b.WriteString("* Database Inputs\n\n")
		for _, in := range s.Databases {
			fmt.Fprintf(&b, "** Tool %d\n\n", in.ToolID)
			if in.Annotation != "" {
				fmt.Fprintf(&b, "- Annotation :: %s\n", in.Annotation)
			}
			if in.Connection != "" {
				fmt.Fprintf(&b, "- Connection :: %s\n", strings.ReplaceAll(connectionLabel(in.Connection, opts.Aliases), "`", "~"))
			}
			b.WriteString("\n")
			if in.Query != "" {
				fmt.Fprintf(&b, "#+BEGIN_SRC sql\n%s\n#+END_SRC\n\n", in.Query)
			}
		}
	}
	if len(s.Outputs) > 0 {
		b.WriteString("* Outputs\n\n")
		for _, out := range s.Outputs {
			target := out.Destination
			if target == "" {
				target = out.Connection
			}
			fmt.Fprintf(&b, "- *Tool %d*: %s\n", out.ToolID, target)
		}
		b.WriteString("\n")
	}
	if len(s.Connections) > 0 {
		b.WriteString("* Connections\n\n")
		for _, c := range s.Connections {
			fmt.Fprintf(&b, "- %d (%s) → %d (%s)\n", c.Origin, c.OriginPort, c.Destination, c.DestinationPort)
		}
	}
	doc := goorg.New().Parse(strings.NewReader(b.String()), "")
	return doc.Write(goorg.NewOrgWriter())
}

func writeContainerOrg(b *strings.Builder, c ContainerSummary, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(b, "%s- *%s* (tool %d)", indent, c.Caption, c.ToolID)
	if c.Annotation != "" {
		fmt.Fprintf(b, ": %s", firstLine(c.Annotation))
	}
	b.WriteString("\n")
	if len(c.Tools) > 0 {
		fmt.Fprintf(b, "%s  - tools: %s\n", indent, joinInts(c.Tools))
	}
	for _, child := range c.Containers {
		writeContainerOrg(b, child, depth+1)
	}
}
