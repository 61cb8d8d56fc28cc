package main

import (
	"fmt"
	"strings"

	"github.com/atlas-foundry/yxmd-go-sdk/yxmd"
	"github.com/spf13/cobra"
)

// findOptions defines flags for `yxmd find`.
type findOptions struct {
	general *generalOptions

	toolID     int
	plugin     string
	annotation string
}

func (o *findOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.toolID, "id", 0, "tool id")
	cmd.Flags().StringVar(&o.plugin, "type", "", "plugin name fragment (case-sensitive)")
	cmd.Flags().StringVar(&o.annotation, "annotation", "", "annotation fragment (case-insensitive)")
}

func (o *findOptions) run(cmd *cobra.Command, path string) error {
	q := yxmd.Query{Plugin: o.plugin, Annotation: o.annotation}
	if cmd.Flags().Changed("id") {
		id := o.toolID
		q.ID = &id
	}
	matches, err := o.general.editor.Find(path, q)
	if err != nil {
		return err
	}
	if matches == nil {
		matches = []yxmd.Match{}
	}
	return printJSON(cmd, matches)
}

// newCmdFind creates the `yxmd find` command.
func newCmdFind(general *generalOptions) *cobra.Command {
	o := &findOptions{general: general}
	command := &cobra.Command{
		Use:   "find <workflow>",
		Short: "Find tools by id, plugin type or annotation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}

// summaryOptions defines flags for `yxmd summary`.
type summaryOptions struct {
	general *generalOptions

	format string
	title  string
}

func (o *summaryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "format", "markdown", "markdown, html, org or json")
	cmd.Flags().StringVar(&o.title, "title", "", "heading title; defaults to the workflow name")
}

func (o *summaryOptions) run(cmd *cobra.Command, path string) error {
	s, err := o.general.editor.Summarize(path)
	if err != nil {
		return err
	}
	if strings.EqualFold(o.format, "json") {
		return printJSON(cmd, s)
	}
	out, err := yxmd.RenderSummary(s, yxmd.TextFormat(strings.ToLower(o.format)), yxmd.ReportOptions{Title: o.title, Aliases: o.general.cfg.Aliases})
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(cmd.OutOrStdout(), out)
	return err
}

// newCmdSummary creates the `yxmd summary` command.
func newCmdSummary(general *generalOptions) *cobra.Command {
	o := &summaryOptions{general: general}
	command := &cobra.Command{
		Use:   "summary <workflow>",
		Short: "Summarize tools, containers, database inputs and outputs",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}

// graphOptions defines flags for `yxmd graph`.
type graphOptions struct {
	general *generalOptions

	format    string
	positions bool
}

func (o *graphOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.format, "format", "dot", "dot, mermaid or json")
	cmd.Flags().BoolVar(&o.positions, "positions", false, "pin DOT nodes at their canvas positions")
}

func (o *graphOptions) run(cmd *cobra.Command, path string) error {
	g, err := o.general.editor.Graph(path)
	if err != nil {
		return err
	}
	var r yxmd.Renderer
	switch strings.ToLower(o.format) {
	case "dot", "graphviz":
		r = yxmd.GraphvizRenderer{Positions: o.positions}
	case "mermaid":
		r = yxmd.MermaidRenderer{}
	case "json":
		r = yxmd.JSONRenderer{}
	default:
		return fmt.Errorf("%w: %s", yxmd.ErrNotImplemented, o.format)
	}
	out, err := r.Render(g)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// newCmdGraph creates the `yxmd graph` command.
func newCmdGraph(general *generalOptions) *cobra.Command {
	o := &graphOptions{general: general}
	command := &cobra.Command{
		Use:   "graph <workflow>",
		Short: "Render the tool graph as Graphviz DOT or Mermaid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}

// newCmdRowLimits creates the `yxmd row-limits` command.
func newCmdRowLimits(general *generalOptions) *cobra.Command {
	var toolID int
	command := &cobra.Command{
		Use:   "row-limits <workflow>",
		Short: "Show a tool's first, last and sample settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := general.editor.RowLimits(args[0], toolID)
			if err != nil {
				return err
			}
			return printJSON(cmd, st)
		},
	}
	command.Flags().IntVar(&toolID, "id", 0, "tool id")
	_ = command.MarkFlagRequired("id")
	return command
}
