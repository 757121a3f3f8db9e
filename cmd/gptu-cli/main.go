package main

import (
	"context"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/kolosmile/chatgpt-uapi-client/internal/build"
	"github.com/kolosmile/chatgpt-uapi-client/pkg/client"
	"github.com/kolosmile/chatgpt-uapi-client/pkg/client/schema"
)

func main() {
	var cfg client.Config
	cfg.Url = "http://localhost:8000"
	if os.Getenv("GPTU_URL") != "" {
		cfg.Url = os.Getenv("GPTU_URL")
	}
	cfg.ApiKey = os.Getenv("GPTU_API_KEY")

	var schemaFile string
	rootCmd := &cobra.Command{
		Use:     "gptu",
		Version: build.Version,
		Short:   "gptu is a client for the ChatGPT UI API",
		Long:    "Interactive chat against a ChatGPT UI automation server, with optional JSON schema validation of responses",
		RunE: func(cmd *cobra.Command, args []string) error {
			var responseSchema schema.Schema
			if schemaFile != "" {
				raw, err := os.ReadFile(schemaFile)
				if err != nil {
					return fmt.Errorf("failed to read schema file: %w", err)
				}
				compiled, err := schema.CompileString(string(raw))
				if err != nil {
					return err
				}
				responseSchema = compiled
			}
			return startGptuClient(cfg, responseSchema)
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfg.Url, "url", "u", cfg.Url, "ChatGPT UI API backend URL")
	rootCmd.PersistentFlags().StringVarP(&cfg.ApiKey, "key", "k", cfg.ApiKey, "API key")
	rootCmd.PersistentFlags().StringVarP(&cfg.Timeout, "timeout", "t", "10m", "Max time to wait for each response (duration, e.g. 10m)")
	rootCmd.PersistentFlags().StringVarP(&schemaFile, "schema", "s", "", "JSON schema file to validate responses against (enables JSON mode)")
	rootCmd.PersistentFlags().IntVarP(&cfg.MaxRetries, "max-retries", "r", client.DefaultMaxRetries, "Max retries when a response fails schema validation")
	rootCmd.PersistentFlags().BoolVarP(&cfg.NonStrict, "non-strict", "n", false, "Return an empty result instead of an error when validation never succeeds")
	rootCmd.PersistentFlags().StringVarP(&cfg.RetryCooldown, "cooldown", "c", "", "Pause between validation retries (duration, e.g. 500ms)")
	rootCmd.PersistentFlags().StringSliceVarP(&cfg.Headers, "header", "H", []string{}, "Extra headers to send with each request (k=v)")
	rootCmd.PersistentFlags().BoolVarP(&cfg.Verbose, "verbose", "v", false, "Log every request and response")

	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func startGptuClient(cfg client.Config, responseSchema schema.Schema) error {
	cli, err := client.BubbleClient(context.Background(), cfg, responseSchema)
	if err != nil {
		return err
	}
	p := tea.NewProgram(cli)

	if _, err := p.Run(); err != nil {
		return err
	}
	return nil
}
