package main

import (
	"encoding/json"
	"fmt"

	"github.com/atlas-foundry/yxmd-go-sdk/yxmd"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// generalOptions holds state shared by every subcommand.
type generalOptions struct {
	configPath string
	logLevel   string
	fastLookup bool
	preview    bool

	cfg    *config
	logger *zap.Logger
	editor *yxmd.Editor
}

func (o *generalOptions) addFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVar(&o.configPath, "config", "", "path to a TOML config file")
	cmd.PersistentFlags().StringVar(&o.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	cmd.PersistentFlags().BoolVar(&o.fastLookup, "fast", false, "use the raw text scanner for lookups by id")
	cmd.PersistentFlags().BoolVar(&o.preview, "dry-run", false, "preview edits without writing the workflow")
}

// complete loads the config and builds the logger and editor.
func (o *generalOptions) complete() error {
	cfg, err := loadConfig(o.configPath)
	if err != nil {
		return err
	}
	o.cfg = cfg
	if o.logLevel == "" {
		o.logLevel = cfg.LogLevel
	}
	if o.logger == nil {
		level, err := zap.ParseAtomicLevel(o.logLevel)
		if err != nil {
			return fmt.Errorf("log level: %w", err)
		}
		zc := zap.NewProductionConfig()
		zc.Level = level
		zc.OutputPaths = []string{"stderr"}
		if o.logger, err = zc.Build(); err != nil {
			return err
		}
	}
	reg, err := cfg.registry()
	if err != nil {
		return err
	}
	fast := o.fastLookup || cfg.FastLookup
	o.editor = yxmd.NewEditor(yxmd.WithLogger(o.logger), yxmd.WithRegistry(reg), yxmd.WithFastLookup(fast))
	return nil
}

func (o *generalOptions) editOptions() yxmd.EditOptions {
	return yxmd.EditOptions{Preview: o.preview}
}

// printJSON writes v as indented JSON to the command's output.
func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newCmdRoot creates the yxmd command tree.
func newCmdRoot() *cobra.Command {
	return newCmdRootWithOptions(&generalOptions{})
}

func newCmdRootWithOptions(o *generalOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "yxmd",
		Short:         "Inspect and edit Alteryx workflow files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.complete()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if o.logger != nil {
				_ = o.logger.Sync()
			}
		},
	}
	o.addFlags(cmd)
	cmd.AddCommand(
		newCmdFind(o),
		newCmdSummary(o),
		newCmdGraph(o),
		newCmdRowLimits(o),
		newCmdAnnotate(o),
		newCmdFields(o),
		newCmdQuery(o),
		newCmdConnection(o),
		newCmdRowLimit(o),
		newCmdRewriteConnections(o),
		newCmdCreate(o),
	)
	return cmd
}
