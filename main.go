package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ebook_generator/config"
	"ebook_generator/logging"
)

var (
	rootCmd = &cobra.Command{
		Use:           "ebookgen",
		Short:         "Generate ebook PDFs from text and reference documents with Gemini or OpenAI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	configPath string
	verbose    bool
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to the YAML config file (optional)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logs")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(renderCmd)
}

// loadConfig reads the configuration and initialises the process logger from it.
func loadConfig() (config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return config.Config{}, err
	}
	level := cfg.Log.Level
	if verbose {
		level = "debug"
	}
	logging.Init(level, cfg.Log.Format)
	return cfg, nil
}
