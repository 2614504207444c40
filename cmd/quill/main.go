package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var version = "dev"

var (
	noColor    bool
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "quill",
	Short:         "Ask questions about your own documents",
	Long:          "quill indexes local documents (pdf, docx, xlsx, csv, txt, md) and answers questions about them with source citations, using local models via Ollama.",
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	// Optional .env for QUILL_* overrides; absence is fine.
	godotenv.Load()

	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./quill.yaml)")

	rootCmd.AddCommand(serveCmd, askCmd, chatCmd, ingestCmd, statsCmd, statusCmd, resetCmd)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
