package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/pixelcrate/pixelcrate/internal/config"
	"github.com/pixelcrate/pixelcrate/internal/imagename"
	"github.com/pixelcrate/pixelcrate/internal/metadata"
)

var importCmd = &cobra.Command{
	Use:   "import <directory>",
	Short: "Bulk-import a directory of images into storage",
	Long:  `Uploads every recognized image file in the directory through the configured storage backend, creating metadata records as it goes.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	dir := args[0]

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config error: %w", err)
	}

	ctx := context.Background()
	backend, err := buildBackend(ctx, cfg)
	if err != nil {
		return err
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("read directory %s: %w", dir, err)
	}

	var candidates []string
	for _, entry := range entries {
		if !entry.IsDir() && imagename.Allowed(entry.Name()) {
			candidates = append(candidates, entry.Name())
		}
	}
	if len(candidates) == 0 {
		color.Yellow("no image files found in %s", dir)
		return nil
	}

	bar := progressbar.NewOptions(len(candidates),
		progressbar.OptionSetDescription("importing"),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	meta := metadata.NewStore(backend)
	records := meta.Load(ctx)

	imported, failed := 0, 0
	for _, name := range candidates {
		_ = bar.Add(1)

		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			failed++
			continue
		}

		stored := imagename.Generate(name)
		contentType, _ := imagename.ContentType(stored)
		physical, err := backend.Put(ctx, stored, data, contentType)
		if err != nil {
			failed++
			continue
		}

		records[physical] = metadata.Record{UploadedAt: time.Now().UTC()}
		imported++
	}

	if imported > 0 {
		if err := meta.Save(ctx, records); err != nil {
			color.Yellow("⚠ imported files but saving metadata failed: %v", err)
		}
	}

	color.Green("✓ imported %d of %d files (%d failed)", imported, len(candidates), failed)
	return nil
}
