package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/atlas-foundry/yxmd-go-sdk/yxmd"
	"github.com/spf13/cobra"
)

var errRejected = errors.New("edit rejected")

// printResult writes res and fails the command when the edit was rejected.
func printResult(cmd *cobra.Command, res yxmd.Result) error {
	if err := printJSON(cmd, res); err != nil {
		return err
	}
	if res.Status == yxmd.StatusRejected {
		return fmt.Errorf("%w: %s tool %d: %v", errRejected, res.Op, res.ToolID, res.Err())
	}
	return nil
}

// printBatch writes br and fails the command when nothing applied.
func printBatch(cmd *cobra.Command, br yxmd.BatchResult) error {
	if err := printJSON(cmd, br); err != nil {
		return err
	}
	if len(br.Errors) > 0 || (len(br.Results) > 0 && br.Applied() == 0) {
		return fmt.Errorf("%w: %s: %v", errRejected, br.Op, br.Err())
	}
	return nil
}

func parseIDs(s string) ([]int, error) {
	var ids []int
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid tool id %q", part)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// newCmdAnnotate creates the `yxmd annotate` command.
func newCmdAnnotate(general *generalOptions) *cobra.Command {
	var toolID int
	command := &cobra.Command{
		Use:   "annotate <workflow> <text>",
		Short: "Replace a tool's annotation",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := general.editor.UpdateAnnotation(args[0], toolID, args[1], general.editOptions())
			if err != nil {
				return err
			}
			return printResult(cmd, res)
		},
	}
	command.Flags().IntVar(&toolID, "id", 0, "tool id")
	_ = command.MarkFlagRequired("id")
	return command
}

// fieldsOptions defines flags for `yxmd fields`.
type fieldsOptions struct {
	general *generalOptions

	toolID   int
	updates  string
	selected []string
	dropped  []string
	renames  []string
}

func (o *fieldsOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.toolID, "id", 0, "tool id")
	cmd.Flags().StringVar(&o.updates, "updates", "", `JSON object of field updates, e.g. {"Amount":{"selected":false}}`)
	cmd.Flags().StringSliceVar(&o.selected, "select", nil, "fields to select")
	cmd.Flags().StringSliceVar(&o.dropped, "deselect", nil, "fields to deselect")
	cmd.Flags().StringSliceVar(&o.renames, "rename", nil, "renames as field=new_name")
	_ = cmd.MarkFlagRequired("id")
}

func (o *fieldsOptions) collect() (map[string]yxmd.FieldUpdate, error) {
	updates := map[string]yxmd.FieldUpdate{}
	if o.updates != "" {
		if err := json.Unmarshal([]byte(o.updates), &updates); err != nil {
			return nil, fmt.Errorf("parse --updates: %w", err)
		}
	}
	setSelected := func(names []string, v bool) {
		for _, name := range names {
			u := updates[name]
			sel := v
			u.Selected = &sel
			updates[name] = u
		}
	}
	setSelected(o.selected, true)
	setSelected(o.dropped, false)
	for _, r := range o.renames {
		name, to, ok := strings.Cut(r, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid rename %q, want field=new_name", r)
		}
		u := updates[name]
		u.Rename = &to
		updates[name] = u
	}
	return updates, nil
}

func (o *fieldsOptions) run(cmd *cobra.Command, path string) error {
	updates, err := o.collect()
	if err != nil {
		return err
	}
	res, err := o.general.editor.UpdateFields(path, o.toolID, updates, o.general.editOptions())
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

// newCmdFields creates the `yxmd fields` command.
func newCmdFields(general *generalOptions) *cobra.Command {
	o := &fieldsOptions{general: general}
	command := &cobra.Command{
		Use:   "fields <workflow>",
		Short: "Select, deselect or rename fields of a select-family tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}

// queryOptions defines flags for `yxmd query`.
type queryOptions struct {
	general *generalOptions

	toolID    int
	query     string
	queryFile string
	keep      bool
}

func (o *queryOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.toolID, "id", 0, "tool id")
	cmd.Flags().StringVar(&o.query, "sql", "", "new SQL text")
	cmd.Flags().StringVar(&o.queryFile, "file", "", "read the SQL text from a file")
	cmd.Flags().BoolVar(&o.keep, "keep-comments", false, "keep -- line comments")
	_ = cmd.MarkFlagRequired("id")
	cmd.MarkFlagsMutuallyExclusive("sql", "file")
}

func (o *queryOptions) run(cmd *cobra.Command, path string) error {
	query := o.query
	if o.queryFile != "" {
		data, err := os.ReadFile(o.queryFile)
		if err != nil {
			return fmt.Errorf("read query: %w", err)
		}
		query = string(data)
	}
	strip := o.general.cfg.StripSQLComments == nil || *o.general.cfg.StripSQLComments
	if o.keep {
		strip = false
	}
	opts := yxmd.QueryOptions{Preview: o.general.preview, StripComments: strip}
	res, err := o.general.editor.UpdateQuery(path, o.toolID, query, opts)
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

// newCmdQuery creates the `yxmd query` command.
func newCmdQuery(general *generalOptions) *cobra.Command {
	o := &queryOptions{general: general}
	command := &cobra.Command{
		Use:   "query <workflow>",
		Short: "Replace the SQL of a database input tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}

// connectionOptions defines flags for `yxmd connection`.
type connectionOptions struct {
	general *generalOptions

	toolID   int
	ids      string
	newID    string
	fromTool int
}

func (o *connectionOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.toolID, "id", 0, "tool id")
	cmd.Flags().StringVar(&o.ids, "ids", "", "comma-separated tool ids for a batch update")
	cmd.Flags().StringVar(&o.newID, "connection-id", "", "new connection identifier (UUID)")
	cmd.Flags().IntVar(&o.fromTool, "from-tool", 0, "copy the connection identifier of this tool")
	cmd.MarkFlagsMutuallyExclusive("id", "ids")
	cmd.MarkFlagsOneRequired("id", "ids")
	cmd.MarkFlagsMutuallyExclusive("connection-id", "from-tool")
	cmd.MarkFlagsOneRequired("connection-id", "from-tool")
}

func (o *connectionOptions) run(cmd *cobra.Command, path string) error {
	ref := yxmd.ConnectionRef{ID: o.newID}
	if cmd.Flags().Changed("from-tool") {
		from := o.fromTool
		ref.FromTool = &from
	}
	if cmd.Flags().Changed("ids") {
		ids, err := parseIDs(o.ids)
		if err != nil {
			return err
		}
		br, err := o.general.editor.BatchUpdateConnection(path, ids, ref, o.general.editOptions())
		if err != nil {
			return err
		}
		return printBatch(cmd, br)
	}
	res, err := o.general.editor.UpdateConnection(path, o.toolID, ref, o.general.editOptions())
	if err != nil {
		return err
	}
	return printResult(cmd, res)
}

// newCmdConnection creates the `yxmd connection` command.
func newCmdConnection(general *generalOptions) *cobra.Command {
	o := &connectionOptions{general: general}
	command := &cobra.Command{
		Use:   "connection <workflow>",
		Short: "Set the database connection identifier of one or more tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}

// rowLimitOptions defines flags for `yxmd row-limit`.
type rowLimitOptions struct {
	general *generalOptions

	toolID int
	ids    string
	plugin string
	first  int
	last   int
	sample int
}

func (o *rowLimitOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.toolID, "id", 0, "tool id")
	cmd.Flags().StringVar(&o.ids, "ids", "", "comma-separated tool ids for a batch update")
	cmd.Flags().StringVar(&o.plugin, "type", "", "update every tool of this plugin type")
	cmd.Flags().IntVar(&o.first, "first", 0, "keep the first N records")
	cmd.Flags().IntVar(&o.last, "last", 0, "keep the last N records")
	cmd.Flags().IntVar(&o.sample, "sample", 0, "keep 1 of every N records")
	cmd.MarkFlagsMutuallyExclusive("id", "ids", "type")
	cmd.MarkFlagsOneRequired("id", "ids", "type")
}

func (o *rowLimitOptions) limit(cmd *cobra.Command) yxmd.RowLimit {
	var lim yxmd.RowLimit
	set := func(name string, v int) *int {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	lim.First = set("first", o.first)
	lim.Last = set("last", o.last)
	lim.Sample = set("sample", o.sample)
	return lim
}

func (o *rowLimitOptions) run(cmd *cobra.Command, path string) error {
	lim := o.limit(cmd)
	if cmd.Flags().Changed("id") {
		res, err := o.general.editor.UpdateRowLimit(path, o.toolID, lim, o.general.editOptions())
		if err != nil {
			return err
		}
		return printResult(cmd, res)
	}
	sel := yxmd.Selector{Plugin: o.plugin}
	if o.ids != "" {
		ids, err := parseIDs(o.ids)
		if err != nil {
			return err
		}
		sel.IDs = ids
	}
	br, err := o.general.editor.BatchUpdateRowLimit(path, sel, lim, o.general.editOptions())
	if err != nil {
		return err
	}
	return printBatch(cmd, br)
}

// newCmdRowLimit creates the `yxmd row-limit` command.
func newCmdRowLimit(general *generalOptions) *cobra.Command {
	o := &rowLimitOptions{general: general}
	command := &cobra.Command{
		Use:   "row-limit <workflow>",
		Short: "Set first, last or sample limits on one or more tools",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}

// newCmdRewriteConnections creates the `yxmd rewrite-connections` command.
func newCmdRewriteConnections(general *generalOptions) *cobra.Command {
	command := &cobra.Command{
		Use:   "rewrite-connections <workflow> <map.toml|map.json>",
		Short: "Swap connection identifiers and labels using a mapping file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := yxmd.LoadConnectionMap(args[1])
			if err != nil {
				return err
			}
			br, err := general.editor.RewriteConnections(args[0], m, general.editOptions())
			if err != nil {
				return err
			}
			return printBatch(cmd, br)
		},
	}
	return command
}
