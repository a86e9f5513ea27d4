package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ppiankov/pubcredit/internal/model"
)

// configErr is a config file that exists but could not be read; it is
// reported by the first command that loads the configuration
var configErr error

// setDefaults registers every key so PUBCREDIT_* variables are seen by
// Unmarshal even when no config file sets them
func setDefaults(cfg *model.Config) {
	viper.SetDefault("registry.path", cfg.Registry.Path)
	viper.SetDefault("registry.theory_parent_areas", cfg.Registry.TheoryParentAreas)

	viper.SetDefault("filter.venue_substring", cfg.Filter.VenueSubstring)
	viper.SetDefault("filter.start_year", cfg.Filter.StartYear)
	viper.SetDefault("filter.end_year", cfg.Filter.EndYear)
	viper.SetDefault("filter.include_next_tier", cfg.Filter.IncludeNextTier)
	viper.SetDefault("filter.min_pages", cfg.Filter.MinPages)
	viper.SetDefault("filter.page_exempt_venues", cfg.Filter.PageExemptVenues)

	viper.SetDefault("engine.workers", cfg.Engine.Workers)
	viper.SetDefault("engine.progress_interval", cfg.Engine.ProgressInterval)

	viper.SetDefault("output.precision", cfg.Output.Precision)
	viper.SetDefault("output.digest", cfg.Output.Digest)

	viper.SetDefault("fetch.url", cfg.Fetch.URL)
	viper.SetDefault("fetch.user_agent", cfg.Fetch.UserAgent)
	viper.SetDefault("fetch.timeout", cfg.Fetch.Timeout)
	viper.SetDefault("fetch.requests_per_second", cfg.Fetch.RequestsPerSecond)
	viper.SetDefault("fetch.burst", cfg.Fetch.Burst)
	viper.SetDefault("fetch.cache_dir", cfg.Fetch.CacheDir)
	viper.SetDefault("fetch.http_proxy", cfg.Fetch.HTTPProxy)
	viper.SetDefault("fetch.https_proxy", cfg.Fetch.HTTPSProxy)
	viper.SetDefault("fetch.no_proxy", cfg.Fetch.NoProxy)
}

// loadConfig merges defaults, config file, environment and bound flags,
// then validates the result. It performs no I/O beyond what initConfig
// already did.
func loadConfig() (*model.Config, error) {
	if configErr != nil {
		return nil, configErr
	}

	cfg := model.DefaultConfig()
	setDefaults(cfg)
	if err := viper.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// bindFlags maps a command's flags onto config keys. Binding happens when
// the command runs so commands sharing a key do not shadow each other.
func bindFlags(cmd *cobra.Command, keys map[string]string) error {
	for flag, key := range keys {
		f := cmd.Flags().Lookup(flag)
		if f == nil {
			return fmt.Errorf("unknown flag %q", flag)
		}
		if err := viper.BindPFlag(key, f); err != nil {
			return err
		}
	}
	return nil
}

// configCmd represents the config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage pubcredit configuration",
	Long: `Manage pubcredit configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (PUBCREDIT_*, e.g. PUBCREDIT_FILTER_START_YEAR)
3. Config file (~/.pubcredit/config.yaml)
4. Defaults`,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		if f := viper.ConfigFileUsed(); f != "" {
			fmt.Fprintf(os.Stderr, "Configuration file: %s\n\n", f)
		} else {
			fmt.Fprintf(os.Stderr, "No configuration file found (using defaults)\n\n")
		}

		yamlData, err := yaml.Marshal(cfg)
		if err != nil {
			return fmt.Errorf("error marshaling config: %w", err)
		}
		_, err = os.Stdout.Write(yamlData)
		return err
	},
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize default configuration file",
	Long:  `Create a default configuration file at ~/.pubcredit/config.yaml.`,
	RunE: func(cmd *cobra.Command, args []string) (err error) {
		home, err := os.UserHomeDir()
		if err != nil {
			return fmt.Errorf("error finding home directory: %w", err)
		}

		configDir := home + "/.pubcredit"
		configPath := configDir + "/config.yaml"

		if _, err := os.Stat(configPath); err == nil {
			return fmt.Errorf("config file already exists: %s\nUse 'pubcredit config show' to view it, or delete it first to recreate", configPath)
		}

		if err := os.MkdirAll(configDir, 0755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}

		if err := writeDefaultConfig(configPath); err != nil {
			return err
		}

		fmt.Printf("✓ Created default configuration: %s\n", configPath)
		fmt.Printf("\nTo view the configuration:\n")
		fmt.Printf("  pubcredit config show\n")
		return nil
	},
}

func writeDefaultConfig(path string) (err error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return fmt.Errorf("error creating config file: %w", err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = fmt.Errorf("close config file: %w", closeErr)
		}
	}()

	yamlData, err := yaml.Marshal(model.DefaultConfig())
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	header := "# pubcredit configuration\n" +
		"#\n" +
		"# Configuration hierarchy (highest to lowest priority):\n" +
		"#   1. CLI flags\n" +
		"#   2. Environment variables (PUBCREDIT_*)\n" +
		"#   3. This config file\n" +
		"#   4. Built-in defaults\n\n"
	if _, err := f.WriteString(header); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	if _, err := f.Write(yamlData); err != nil {
		return fmt.Errorf("error writing config: %w", err)
	}
	return nil
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
}
