package main

import (
	"context"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pixelcrate/pixelcrate/internal/config"
	"github.com/pixelcrate/pixelcrate/internal/metadata"
	"github.com/pixelcrate/pixelcrate/internal/scrape"
	"github.com/pixelcrate/pixelcrate/internal/server"
)

var debugFlag bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long:  `Starts the image-hosting HTTP server on the configured listen address.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().BoolVar(&debugFlag, "debug", false, "Enable request logging and debug output")
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	backend, err := buildBackend(context.Background(), cfg)
	if err != nil {
		return err
	}

	meta := metadata.NewStore(backend)
	scraper := scrape.New(scrape.NewRegistry(cfg.ExtraDomains))
	srv := server.New(backend, meta, scraper, server.Options{Debug: debugFlag})

	mode := "local disk"
	if cfg.CloudMode {
		mode = "blob store"
	}
	color.Green("✓ pixelcrate listening on %s (storage: %s)", cfg.ListenAddr, mode)

	return srv.Run(cfg.ListenAddr)
}
