package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/hazyhaar/pagekit/dbopen"
	"github.com/hazyhaar/pagekit/observability"
	"github.com/hazyhaar/pagekit/pdfsvc"
)

var (
	cfgFile  string
	envFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "pagekit",
	Short: "PDF toolkit: validate, merge, split, explode and extract images",
	Long: `pagekit validates uploaded PDFs and transforms them: merge several documents,
copy a page range, explode a document into per-page PDFs, or extract the
embedded images of a batch into nested zip archives. It runs as an HTTP
service, as an MCP stdio server, or directly on local files.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "YAML config file")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before PAGEKIT_* overrides")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override log_level (debug, info, warn, error)")
	rootCmd.Version = version
}

// app is what every command needs: the loaded config, the logger and a
// service with its optional journal.
type app struct {
	cfg     *pdfsvc.Config
	logger  *slog.Logger
	svc     *pdfsvc.Service
	journal *observability.Journal
	closers []func() error
}

// setup loads the configuration and builds the service. Logs go to logOut.
func setup(logOut io.Writer) (*app, error) {
	cfg, err := pdfsvc.LoadConfig(cfgFile, envFile)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	logger, err := observability.NewLogger(logOut, cfg.EffectiveLogLevel(), cfg.LogFormat, cfg.AppName)
	if err != nil {
		return nil, err
	}
	slog.SetDefault(logger)

	a := &app{cfg: cfg, logger: logger}
	opts := []pdfsvc.Option{pdfsvc.WithLogger(logger)}
	if cfg.JournalDB != "" {
		db, err := dbopen.Open(cfg.JournalDB, dbopen.WithMkdirAll())
		if err != nil {
			return nil, fmt.Errorf("open journal db: %w", err)
		}
		j, err := observability.NewJournal(db, 1000, observability.WithJournalLogger(logger))
		if err != nil {
			db.Close()
			return nil, err
		}
		a.journal = j
		// Closed in reverse: the journal flushes before its database closes.
		a.closers = append(a.closers, db.Close, j.Close)
		opts = append(opts, pdfsvc.WithJournal(j))
	}
	a.svc = pdfsvc.New(cfg, opts...)
	return a, nil
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("shutdown", "error", err)
		}
	}
}
