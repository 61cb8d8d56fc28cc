package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/atlas-foundry/yxmd-go-sdk/yxmd"
	"github.com/spf13/cobra"
)

// createOptions defines flags for `yxmd create`.
type createOptions struct {
	general *generalOptions

	request string
	force   bool
}

func (o *createOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.request, "request", "", "JSON build request with tools, connections and metadata")
	cmd.Flags().BoolVar(&o.force, "force", false, "overwrite an existing workflow")
	_ = cmd.MarkFlagRequired("request")
}

func (o *createOptions) run(cmd *cobra.Command, path string) error {
	data, err := os.ReadFile(o.request)
	if err != nil {
		return fmt.Errorf("read request: %w", err)
	}
	var req yxmd.BuildRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return fmt.Errorf("parse request %s: %w", o.request, err)
	}
	if !o.force {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists, use --force to overwrite", path)
		}
	}
	d, err := o.general.editor.Create(path, req)
	if err != nil {
		return err
	}
	ix := d.Index()
	return printJSON(cmd, map[string]any{
		"path":        path,
		"tools":       len(ix.Tools()),
		"connections": len(ix.Connections()),
	})
}

// newCmdCreate creates the `yxmd create` command.
func newCmdCreate(general *generalOptions) *cobra.Command {
	o := &createOptions{general: general}
	command := &cobra.Command{
		Use:   "create <workflow>",
		Short: "Build a new workflow from a JSON request",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.run(cmd, args[0])
		},
	}
	o.addFlags(command)
	return command
}
