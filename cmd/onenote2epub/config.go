// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"io"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.yaml.in/yaml/v3"

	"github.com/pdiddy/onenote2epub/internal/discover"
	"github.com/pdiddy/onenote2epub/internal/logging"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

// setDefaults registers every configuration key so that environment
// variables are visible to Unmarshal.
func setDefaults(v *viper.Viper, d types.Config) {
	v.SetDefault("work_dir", d.WorkDir)
	v.SetDefault("intern_dir", d.InternDir)
	v.SetDefault("final_dir", d.FinalDir)
	v.SetDefault("log_dir", d.LogDir)

	v.SetDefault("libreoffice.path", d.LibreOffice.Path)
	v.SetDefault("libreoffice.timeout", d.LibreOffice.Timeout)
	v.SetDefault("libreoffice.retries", d.LibreOffice.Retries)
	v.SetDefault("libreoffice.delete_original", d.LibreOffice.DeleteOriginal)

	v.SetDefault("calibre.path", d.Calibre.Path)
	v.SetDefault("calibre.timeout", d.Calibre.Timeout)

	v.SetDefault("merge.author", d.Merge.Author)
	v.SetDefault("merge.sort", d.Merge.Sort)
	v.SetDefault("merge.description", d.Merge.Description)
	v.SetDefault("merge.tags", d.Merge.Tags)
	v.SetDefault("merge.cover_img", d.Merge.CoverImage)
	v.SetDefault("merge.titles_nav_points", d.Merge.TitlesNavPoints)
	v.SetDefault("merge.nav_points_insert", d.Merge.NavPointsInsert)
	v.SetDefault("merge.source_nav_rule", d.Merge.SourceNavRule)

	v.SetDefault("titles.class", d.Titles.Class)
	v.SetDefault("titles.before_merge", d.Titles.BeforeMerge)
	v.SetDefault("titles.after_merge", d.Titles.AfterMerge)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)

	v.SetDefault("journal.enabled", d.Journal.Enabled)
	v.SetDefault("journal.path", d.Journal.Path)
}

// loadConfig decodes v into a Config and checks the values that would
// otherwise fail deep inside a run.
func loadConfig(v *viper.Viper) (types.Config, error) {
	var c types.Config
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("decoding configuration: %w", err)
	}
	if c.WorkDir == "" {
		c.WorkDir = "."
	}
	if _, err := discover.ParseSortMode(c.Merge.Sort); err != nil {
		return c, fmt.Errorf("merge.sort: %w", err)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return c, fmt.Errorf("log.level: %w", err)
	}
	if c.Titles.Class == "" {
		return c, fmt.Errorf("titles.class must not be empty")
	}
	return c, nil
}

// writeConfig encodes c as yaml or toml.
func writeConfig(w io.Writer, c types.Config, format string) error {
	switch format {
	case "", "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return err
		}
		return enc.Close()
	case "toml":
		return toml.NewEncoder(w).Encode(c)
	default:
		return fmt.Errorf("unknown format %q (want yaml or toml)", format)
	}
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the effective configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the configuration after files, environment and flags are applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, _ := cmd.Flags().GetString("format")
		return writeConfig(cmd.OutOrStdout(), cfg, format)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the config file in use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintln(cmd.OutOrStdout(), f)
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), "(none, using defaults)")
	},
}

func init() {
	configShowCmd.Flags().String("format", "yaml", "output format: yaml or toml")

	configCmd.AddCommand(configShowCmd, configPathCmd)
	rootCmd.AddCommand(configCmd)
}
