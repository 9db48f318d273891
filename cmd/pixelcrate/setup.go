package main

import (
	"fmt"
	"strings"

	"github.com/AlecAivazis/survey/v2"
	"github.com/charmbracelet/lipgloss"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/pixelcrate/pixelcrate/internal/config"
)

var setupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Interactively write the config file",
	Long:  `Walks through the server and storage settings and writes them to the config file. Environment variables still override the file at runtime.`,
	RunE:  runSetup,
}

func runSetup(cmd *cobra.Command, args []string) error {
	if config.Exists() {
		overwrite := false
		prompt := &survey.Confirm{Message: "A config file already exists. Overwrite it?"}
		if err := survey.AskOne(prompt, &overwrite); err != nil {
			return err
		}
		if !overwrite {
			return nil
		}
	}

	cfg, err := askConfig()
	if err != nil {
		return err
	}

	if err := config.Save(cfg); err != nil {
		return err
	}

	color.Green("✓ Configuration saved")

	path, _ := config.File()
	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		BorderForeground(lipgloss.Color("63"))
	fmt.Println(boxStyle.Render(fmt.Sprintf("Config: %s\nListen: %s\nCloud mode: %v", path, cfg.ListenAddr, cfg.CloudMode)))

	return nil
}

func askConfig() (*config.Config, error) {
	cfg := &config.Config{}

	base := []*survey.Question{
		{
			Name:     "listenaddr",
			Prompt:   &survey.Input{Message: "Listen address:", Default: ":8080"},
			Validate: survey.Required,
		},
		{
			Name:   "cloudmode",
			Prompt: &survey.Confirm{Message: "Store images in an S3-compatible blob store?"},
		},
	}

	var baseAnswers struct {
		ListenAddr string
		CloudMode  bool
	}
	if err := survey.Ask(base, &baseAnswers); err != nil {
		return nil, err
	}
	cfg.ListenAddr = baseAnswers.ListenAddr
	cfg.CloudMode = baseAnswers.CloudMode

	if cfg.CloudMode {
		cloud := []*survey.Question{
			{
				Name:     "bucket",
				Prompt:   &survey.Input{Message: "Bucket name:"},
				Validate: survey.Required,
			},
			{
				Name: "region",
				Prompt: &survey.Input{
					Message: "Region:",
					Default: "us-east-1",
					Help:    "e.g. us-east-1, us-west-002, eu-central-003",
				},
				Validate: survey.Required,
			},
			{
				Name: "endpoint",
				Prompt: &survey.Input{
					Message: "Custom endpoint (blank for AWS):",
					Help:    "e.g. https://s3.us-west-002.backblazeb2.com",
				},
			},
			{
				Name:     "accesskey",
				Prompt:   &survey.Input{Message: "Access key ID:"},
				Validate: survey.Required,
			},
			{
				Name:     "secretkey",
				Prompt:   &survey.Password{Message: "Secret access key:"},
				Validate: survey.Required,
			},
		}

		var cloudAnswers struct {
			Bucket    string
			Region    string
			Endpoint  string
			AccessKey string
			SecretKey string
		}
		if err := survey.Ask(cloud, &cloudAnswers); err != nil {
			return nil, err
		}
		cfg.S3Bucket = cloudAnswers.Bucket
		cfg.S3Region = cloudAnswers.Region
		cfg.S3Endpoint = cloudAnswers.Endpoint
		cfg.S3AccessKey = cloudAnswers.AccessKey
		cfg.S3SecretKey = cloudAnswers.SecretKey
	} else {
		var dataDir string
		if err := survey.AskOne(&survey.Input{Message: "Data directory:", Default: ""}, &dataDir); err != nil {
			return nil, err
		}
		cfg.DataDir = strings.TrimSpace(dataDir)
	}

	var domains string
	domainPrompt := &survey.Input{
		Message: "Extra scrape domains (comma-separated, blank for none):",
		Help:    "The built-in allow-list covers the recognized retailers; add shop domains here.",
	}
	if err := survey.AskOne(domainPrompt, &domains); err != nil {
		return nil, err
	}
	for _, d := range strings.Split(domains, ",") {
		if d = strings.TrimSpace(d); d != "" {
			cfg.ExtraDomains = append(cfg.ExtraDomains, d)
		}
	}

	return cfg, nil
}
