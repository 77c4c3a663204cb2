package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ayusman/mudra/internal/config"
	"github.com/ayusman/mudra/internal/store"
)

// Version is the application version.
const Version = "0.1.0"

// options holds the persistent flags and the configuration they resolve to.
type options struct {
	configPath string
	dbPath     string
	addr       string
	logLevel   string

	cfg *config.Config
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "mudra",
		Short:         "Count hand open and close gestures from a webcam",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := setupLogging(opts.logLevel); err != nil {
				return err
			}
			return opts.load(cmd)
		},
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	flags := root.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "config file (default ~/.mudra/config.yaml if present)")
	flags.StringVar(&opts.dbPath, "db", "", "SQLite database path (overrides store.path)")
	flags.StringVar(&opts.addr, "addr", "", "HTTP listen address (overrides server.addr)")
	flags.StringVar(&opts.logLevel, "log-level", "info", "log level: debug, info, warn, error")

	root.AddCommand(
		newRunCmd(opts),
		newSessionsCmd(opts),
		newEventsCmd(opts),
		newClassifyCmd(opts),
	)
	return root
}

// load reads the configuration file and applies flag overrides. An explicit
// --config must exist; the default location is optional.
func (o *options) load(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if cmd.Flags().Changed("config") {
		cfg, err = config.Load(o.configPath)
	} else {
		cfg, err = config.LoadOptional(filepath.Join(config.DataDir(), "config.yaml"))
	}
	if err != nil {
		return err
	}

	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}

	o.cfg = cfg
	return nil
}

func (o *options) openStore() (*store.Store, error) {
	st, err := store.New(o.cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	return st, nil
}

func setupLogging(level string) error {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return nil
}
