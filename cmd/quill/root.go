package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/quill/internal/api"
	"github.com/jackzampolin/quill/internal/config"
	"github.com/jackzampolin/quill/internal/credits"
	"github.com/jackzampolin/quill/internal/home"
	"github.com/jackzampolin/quill/version"
)

var (
	cfgFile      string
	homeDir      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "quill",
	Short: "Turn a topic into a course or ebook with an LLM",
	Long: `Quill turns a topic into a multi-chapter course or ebook.

The pipeline:
  - discover: suggest marketable course titles for a topic
  - outline:  break a title into chapters with summary points
  - generate: write each chapter in markdown
  - crm:      write landing page copy, emails and social posts
  - export:   render the course as a DOCX file

Each model call is metered by a signed credit balance kept in a cookie.`,
	Version:       version.GitRelease,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		api.SetOutputFormat(outputFormat)

		h, err := home.New(homeDir)
		if err != nil {
			return err
		}
		api.SetTokenStore(h, cookieName())
		return nil
	},
}

// resolveConfigFile prefers --config, then ~/.quill/config.yaml, then the
// manager's own search path.
func resolveConfigFile() (string, error) {
	if cfgFile != "" {
		return cfgFile, nil
	}
	h, err := home.New(homeDir)
	if err != nil {
		return "", err
	}
	if h.ConfigExists() {
		return h.ConfigPath(), nil
	}
	return "", nil
}

func loadConfig() (*config.Manager, error) {
	path, err := resolveConfigFile()
	if err != nil {
		return nil, err
	}
	mgr, err := config.NewManager(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return mgr, nil
}

// cookieName is the credit cookie the server will set. API commands work
// without a config file, so failures fall back to the default.
func cookieName() string {
	mgr, err := loadConfig()
	if err != nil {
		return credits.DefaultCookieName
	}
	if name := mgr.Get().Credits.CookieName; name != "" {
		return name
	}
	return credits.DefaultCookieName
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./config.yaml or ~/.quill/config.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&homeDir, "home", "", "quill home directory (default: ~/.quill)",
	)
	rootCmd.PersistentFlags().StringVarP(
		&outputFormat, "output", "o", "yaml", "output format: yaml, json or text",
	)

	rootCmd.AddCommand(versionCmd)
}
