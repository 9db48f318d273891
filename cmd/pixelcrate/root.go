package main

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "pixelcrate",
	Short: "Image hosting with product metadata scraping",
	Long:  `A small web application for uploading, listing and serving images, stored locally or in an S3-compatible blob store, with product details scraped from recognized retail sites.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(setupCmd)
}
