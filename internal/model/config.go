package model

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

// Config is the complete pubcredit configuration. Values come from
// defaults, then the config file, then PUBCREDIT_* env vars, then flags.
type Config struct {
	Registry RegistryConfig `yaml:"registry" mapstructure:"registry"`
	Filter   FilterConfig   `yaml:"filter" mapstructure:"filter"`
	Engine   EngineConfig   `yaml:"engine" mapstructure:"engine"`
	Output   OutputConfig   `yaml:"output" mapstructure:"output"`
	Fetch    FetchConfig    `yaml:"fetch" mapstructure:"fetch"`
}

// RegistryConfig selects the venue taxonomy
type RegistryConfig struct {
	Path              string   `yaml:"path" mapstructure:"path"`                                                  // YAML or CSV; empty uses the embedded taxonomy
	TheoryParentAreas []string `yaml:"theory_parent_areas" mapstructure:"theory_parent_areas" validate:"dive,required"` // parent areas with alphabetical author order
}

// FilterConfig restricts which records earn credit
type FilterConfig struct {
	VenueSubstring   string   `yaml:"venue_substring" mapstructure:"venue_substring"`
	StartYear        int      `yaml:"start_year" mapstructure:"start_year" validate:"gte=0"`
	EndYear          int      `yaml:"end_year" mapstructure:"end_year" validate:"gtefield=StartYear"`
	IncludeNextTier  bool     `yaml:"include_next_tier" mapstructure:"include_next_tier"`
	MinPages         int      `yaml:"min_pages" mapstructure:"min_pages" validate:"gte=0"` // 0 disables the page filter
	PageExemptVenues []string `yaml:"page_exempt_venues,omitempty" mapstructure:"page_exempt_venues"`
}

// EngineConfig controls execution
type EngineConfig struct {
	Workers          int           `yaml:"workers" mapstructure:"workers" validate:"gte=1,lte=256"`
	ProgressInterval time.Duration `yaml:"progress_interval" mapstructure:"progress_interval" validate:"gte=0"`
}

// OutputConfig controls emission
type OutputConfig struct {
	Precision int  `yaml:"precision" mapstructure:"precision" validate:"gte=0,lte=12"`
	Digest    bool `yaml:"digest" mapstructure:"digest"`
}

// FetchConfig controls dump downloads
type FetchConfig struct {
	URL               string        `yaml:"url" mapstructure:"url" validate:"omitempty,url"`
	UserAgent         string        `yaml:"user_agent" mapstructure:"user_agent" validate:"required"`
	Timeout           time.Duration `yaml:"timeout" mapstructure:"timeout" validate:"gt=0"`
	RequestsPerSecond float64       `yaml:"requests_per_second" mapstructure:"requests_per_second" validate:"gt=0"`
	Burst             int           `yaml:"burst" mapstructure:"burst" validate:"gte=1"`
	CacheDir          string        `yaml:"cache_dir" mapstructure:"cache_dir"`
	HTTPProxy         string        `yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy        string        `yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
	NoProxy           string        `yaml:"no_proxy,omitempty" mapstructure:"no_proxy"`
}

// DefaultConfig returns the built-in defaults
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			TheoryParentAreas: []string{"Theory"},
		},
		Filter: FilterConfig{
			StartYear: 1970,
			EndYear:   2269,
		},
		Engine: EngineConfig{
			Workers:          1,
			ProgressInterval: 15 * time.Second,
		},
		Output: OutputConfig{
			Precision: 5,
		},
		Fetch: FetchConfig{
			URL:               "https://dblp.org/xml/dblp.xml.gz",
			UserAgent:         "pubcredit/0.3 (+https://github.com/ppiankov/pubcredit)",
			Timeout:           30 * time.Minute,
			RequestsPerSecond: 1,
			Burst:             1,
			CacheDir:          "",
		},
	}
}

var configValidator = validator.New()

// Validate checks field constraints and returns one error listing every
// violation.
func (c *Config) Validate() error {
	err := configValidator.Struct(c)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}

	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
	}
	return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
}
