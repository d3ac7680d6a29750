package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	serveListen        string
	serveRetentionDays int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveListen, "listen", "", "listen address (overrides config)")
	serveCmd.Flags().IntVar(&serveRetentionDays, "journal-retention-days", 30, "delete journal rows older than this; 0 keeps everything")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	a, err := setup(os.Stdout)
	if err != nil {
		return err
	}
	defer a.Close()
	if serveListen != "" {
		a.cfg.Listen = serveListen
	}

	if a.journal != nil && serveRetentionDays > 0 {
		go pruneJournal(ctx, a, serveRetentionDays)
	}

	// No WriteTimeout: downloads of large archives stream for as long as the client reads.
	srv := &http.Server{
		Addr:              a.cfg.Listen,
		Handler:           a.svc.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", "listen", a.cfg.Listen,
			"max_file_mb", a.cfg.MaxFileMB, "max_upload_mb", a.cfg.MaxUploadMB, "journal", a.cfg.JournalDB != "")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}
	a.logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("shutdown", "error", err)
	}
	st := a.svc.Scratch().Stats()
	a.logger.Info("server stopped", "scratch_opened", st.Opened, "scratch_released", st.Released)
	return nil
}

func pruneJournal(ctx context.Context, a *app, days int) {
	ticker := time.NewTicker(6 * time.Hour)
	defer ticker.Stop()
	for {
		n, err := a.journal.Cleanup(ctx, days)
		if err != nil && ctx.Err() == nil {
			a.logger.Warn("journal cleanup", "error", err)
		} else if n > 0 {
			a.logger.Info("journal cleanup", "deleted", n)
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}
