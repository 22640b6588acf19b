package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joshuachristie/biofunc-models/internal/config"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show or change persistent defaults",
		Long: `Show or change the defaults stored in ~/.wfsim/config.yaml.

WFSIM_* environment variables take precedence over the file for a single
invocation. "config set" edits the file only and never writes them back.

Examples:
  wfsim config list
  wfsim config get simulation.replicates
  wfsim config set simulation.replicates 100000
  wfsim config set output.formats sqlite,csv`,
	}
	cmd.AddCommand(newConfigListCmd(), newConfigGetCmd(), newConfigSetCmd())
	return cmd
}

// keyWidth pads keys in "config list" so values line up.
const keyWidth = 32

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Print every key with its effective value",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			if wantJSON(cmd) {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(cfg)
			}

			w := cmd.OutOrStdout()
			st := newStyles(w)
			fmt.Fprintln(w, st.title.Render("Effective configuration"))
			for _, key := range config.Keys {
				v, _ := cfg.Get(key)
				st.field(w, keyWidth, key+":", fmt.Sprint(displayValue(v)))
			}
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Print one effective value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			v, ok := cfg.Get(args[0])
			if !ok {
				return fmt.Errorf("unknown configuration key: %s", args[0])
			}
			return printSetting(cmd, "", args[0], v)
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Store a value in the configuration file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := config.DefaultPath()
			if err != nil {
				return err
			}
			cfg, err := loadFileOnly(path)
			if err != nil {
				return err
			}
			if err := cfg.Set(args[0], args[1]); err != nil {
				return err
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("saving configuration: %w", err)
			}
			v, _ := cfg.Get(args[0])
			return printSetting(cmd, "updated", args[0], v)
		},
	}
}

// loadFileOnly reads path without applying environment overrides, falling
// back to defaults when the file does not exist yet.
func loadFileOnly(path string) (*config.WfsimConfig, error) {
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return config.Default(), nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	return cfg, nil
}

// printSetting writes one key/value pair. A non-empty status marks a change.
func printSetting(cmd *cobra.Command, status, key string, v any) error {
	w := cmd.OutOrStdout()
	if wantJSON(cmd) {
		out := map[string]any{"key": key, "value": v}
		if status != "" {
			out["status"] = status
		}
		return json.NewEncoder(w).Encode(out)
	}
	if status != "" {
		fmt.Fprintf(w, "Set %s = %v\n", key, displayValue(v))
		return nil
	}
	fmt.Fprintf(w, "%s = %v\n", key, displayValue(v))
	return nil
}

func wantJSON(cmd *cobra.Command) bool {
	v, _ := cmd.Flags().GetBool("json")
	return v
}

// displayValue shows empty strings as "(not set)".
func displayValue(v any) any {
	if s, ok := v.(string); ok && s == "" {
		return "(not set)"
	}
	return v
}
