package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/lectorapp/lector/internal/adapter"
	"github.com/lectorapp/lector/internal/cli"
	"github.com/lectorapp/lector/internal/epub"
	"github.com/lectorapp/lector/internal/service"
	"github.com/lectorapp/lector/internal/store"
)

var outputFormat string

var rootCmd = &cobra.Command{
	Use:   "lector",
	Short: "EPUB audiobook reader for the terminal",
	Long: `Lector imports EPUB books into a local library and reads them
aloud sentence by sentence, remembering where you left off.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml or json",
	)

	rootCmd.PersistentPreRun = func(cmd *cobra.Command, args []string) {
		cli.SetOutputFormat(outputFormat)
	}

	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(infoCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(rmCmd)
	rootCmd.AddCommand(bookmarksCmd)
	rootCmd.AddCommand(configCmd)
}

// app bundles the wired services every command needs.
type app struct {
	cfg     *adapter.Config
	logger  *slog.Logger
	store   *store.LibraryStore
	library *service.LibraryService
	search  *service.SearchService
}

// newApp loads the configuration and wires the store and services.
// Callers must Close the returned app.
func newApp() (*app, error) {
	cfg, err := adapter.LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := adapter.SetupLogger(&cfg.Logging)
	if err != nil {
		// Fall back to null logger if file logging fails
		logger = adapter.NullLogger()
	}
	slog.SetDefault(logger)

	st, err := store.Open(cfg.Library.DataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to open library store: %w", err)
	}

	ing := epub.NewIngestor(nil, nil, logger)

	return &app{
		cfg:     cfg,
		logger:  logger,
		store:   st,
		library: service.NewLibraryService(st, nil, ing, cfg.Library.DataDir, logger),
		search:  service.NewSearchService(st, logger),
	}, nil
}

func (a *app) Close() {
	if err := a.store.Close(); err != nil {
		a.logger.Warn("failed to close store", "error", err)
	}
}

// resolveBook accepts a book id or a fuzzy title query and returns the
// matching book's id.
func (a *app) resolveBook(ref string) (string, error) {
	if _, ok := a.store.GetBook(ref); ok {
		return ref, nil
	}
	matches, err := a.search.SearchBooks(ref)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no book matching %q", ref)
	}
	return matches[0].ID, nil
}
