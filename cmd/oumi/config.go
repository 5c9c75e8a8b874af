package main

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v3"
	"gopkg.in/yaml.v3"

	"github.com/Spaarsh/oumi/internal/recipes"
	"github.com/Spaarsh/oumi/internal/version"
)

// Settings is the user settings file (~/.config/oumi/config.yaml).
// A setting applies only when the matching flag was not given.
type Settings struct {
	OutputDir      string `yaml:"output_dir"`
	RecipesBaseURL string `yaml:"recipes_base_url"`
	GitHubToken    string `yaml:"github_token"`

	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	ServerAddress string `yaml:"server_address"`
}

func settingsPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "oumi", "config.yaml")
}

// loadSettings reads the settings file. A missing or unreadable file yields zero Settings.
func loadSettings() Settings {
	path := settingsPath()
	if path == "" {
		return Settings{}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}
	}
	var s Settings
	if err := yaml.Unmarshal(data, &s); err != nil {
		return Settings{}
	}
	return s
}

func applyLoggingSettings(c *cli.Command, s Settings) {
	if s.LogLevel != "" && !c.IsSet("log-level") {
		logLevel = s.LogLevel
	}
	if s.LogFormat != "" && !c.IsSet("log-format") {
		logFormat = s.LogFormat
	}
}

// applyRecipeSettings fills recipe options from settings. The output_dir setting ranks below both
// --output-dir and $OUMI_DIR.
func applyRecipeSettings(c *cli.Command, s Settings, outputDir, token *string) {
	if s.OutputDir != "" && !c.IsSet("output-dir") && strings.TrimSpace(os.Getenv(recipes.EnvDir)) == "" {
		*outputDir = s.OutputDir
	}
	if s.GitHubToken != "" && !c.IsSet("token") {
		*token = s.GitHubToken
	}
}

func applyServeSettings(c *cli.Command, s Settings, addr *string) {
	if s.ServerAddress != "" && !c.IsSet("addr") {
		*addr = s.ServerAddress
	}
}

// newLocator builds the recipe locator used by infer, fetch and serve.
func newLocator(s Settings, token string) *recipes.Locator {
	fetcher := recipes.NewHTTPFetcher(
		recipes.WithAuthToken(token),
		recipes.WithUserAgent("oumi/"+version.Resolve().Version),
	)
	return recipes.NewLocator(
		recipes.WithFetcher(fetcher),
		recipes.WithBaseURL(s.RecipesBaseURL),
	)
}
