// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the onenote2epub CLI.
//
// The run command converts a tree of OneNote .docx exports into one EPUB
// per section folder. The other commands expose each stage on its own.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/onenote2epub/internal/envfile"
	"github.com/pdiddy/onenote2epub/internal/logging"
	"github.com/pdiddy/onenote2epub/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

const (
	appName   = "onenote2epub"
	envPrefix = "ONENOTE2EPUB"

	// annotationLogFile marks commands whose logs also go to log_dir.
	annotationLogFile = "logfile"
)

var (
	// cfg is the effective configuration, decoded before each command runs.
	cfg types.Config

	// logger is the command logger; closed after the command returns.
	logger *logging.Logger
)

// rootCmd is the base command for the onenote2epub CLI.
var rootCmd = &cobra.Command{
	Use:   appName,
	Short: "Convert OneNote .docx exports into EPUB books",
	Long: `onenote2epub turns a folder tree of OneNote pages exported as .docx into
EPUB books. Each folder that holds .docx files becomes one book: every page
is converted with LibreOffice, the pages are merged with Calibre's EpubMerge
plugin, and the page titles are repaired from OneNote's title paragraph.

The run command performs the whole pipeline. convert, merge and fix-titles
expose the individual stages; inspect, history and config are read-only.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig(viper.GetViper())
		if err != nil {
			return err
		}
		cfg = c

		opts := logging.Options{
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
			Console: cmd.ErrOrStderr(),
		}
		if cmd.Annotations[annotationLogFile] == "true" {
			opts.Dir = cfg.Resolve(cfg.LogDir)
		}
		l, err := logging.New(opts)
		if err != nil {
			return err
		}
		logger = l
		if p := l.Path(); p != "" {
			l.Debug("logging to file", slog.String(logging.FieldFile, p))
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return closeLogger()
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default: ./onenote2epub.yaml or ~/.config/onenote2epub/config.yaml)")
	flags.String("env-file", ".env", "dotenv file loaded before the environment is read")
	flags.String("work-dir", "", "directory holding the scratch, final and log directories")
	flags.String("log-level", "", "log level: debug, info, warn or error")
	flags.String("log-format", "", "log format: console or json")

	for key, name := range map[string]string{
		"work_dir":   "work-dir",
		"log.level":  "log-level",
		"log.format": "log-format",
	} {
		_ = viper.BindPFlag(key, flags.Lookup(name))
	}
}

func initConfig() {
	envFile, _ := rootCmd.PersistentFlags().GetString("env-file")
	if envFile != "" {
		keys, err := envfile.Load(envFile)
		if err != nil {
			fmt.Fprintln(os.Stderr, "warning:", err)
		}
		if keys = envfile.Filter(keys, envPrefix+"_"); len(keys) > 0 {
			fmt.Fprintf(os.Stderr, "Loaded %s: %v\n", envFile, keys)
		}
	}

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName(appName)
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", appName))
		}
	}

	configureEnv(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	} else if cfgFile != "" {
		fmt.Fprintln(os.Stderr, "warning: reading config:", err)
	}
}

// configureEnv binds ONENOTE2EPUB_* variables and registers defaults.
func configureEnv(v *viper.Viper) {
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, types.DefaultConfig())
}

func closeLogger() error {
	if logger == nil {
		return nil
	}
	err := logger.Close()
	logger = nil
	return err
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if cerr := closeLogger(); cerr != nil {
		fmt.Fprintln(os.Stderr, "warning: closing log file:", cerr)
	}
	if err != nil {
		os.Exit(1)
	}
}
