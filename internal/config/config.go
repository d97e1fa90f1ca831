// Package config loads extractor settings from defaults, an optional TOML
// file, environment variables and finally command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"github.com/ilexum-group/iosextract/internal/resolver"
	"github.com/ilexum-group/iosextract/internal/utils"
)

// Filter is one catalog pass: which entries to select and how to place them.
type Filter struct {
	Name      string            `toml:"name"`
	Domain    string            `toml:"domain"`
	Path      string            `toml:"path"`
	Category  resolver.Category `toml:"category"`
	OutputDir string            `toml:"output_dir"`
}

// Phases switches the export phases on or off.
type Phases struct {
	Media       bool `toml:"media"`
	Transcripts bool `toml:"transcripts"`
	Contacts    bool `toml:"contacts"`
	Notes       bool `toml:"notes"`
}

// Config holds the configuration for a run
type Config struct {
	BackupRoot     string   `toml:"backup_root"`
	OutputRoot     string   `toml:"output_root"`
	DryRun         bool     `toml:"dry_run"`
	PreserveNames  bool     `toml:"preserve_names"`
	LogLevel       string   `toml:"log_level"`
	NotesConverter string   `toml:"notes_converter"`
	Phases         Phases   `toml:"phases"`
	Filters        []Filter `toml:"filters"`
}

// WhatsappDomain is the shared container of the WhatsApp application.
const WhatsappDomain = "AppDomainGroup-group.net.whatsapp.WhatsApp.shared"

// DefaultFilters returns the built-in catalog passes in run order.
func DefaultFilters() []Filter {
	return []Filter{
		{Name: "camera", Domain: "CameraRollDomain", Path: "Media/DCIM/*", Category: resolver.CategoryNormal, OutputDir: "Camera"},
		{Name: "camera-sync", Domain: "CameraRollDomain", Path: "Media/PhotoData/Sync/*", Category: resolver.CategoryNormal, OutputDir: "Camera"},
		{Name: "whatsapp", Domain: WhatsappDomain, Path: "Message/Media/*", Category: resolver.CategoryWhatsapp, OutputDir: "Whatsapp"},
		{Name: "whatsapp-profile", Domain: WhatsappDomain, Path: "Media/Profile/*", Category: resolver.CategoryAppGroup, OutputDir: "AppGroups"},
		{Name: "app-documents", Domain: "AppDomain-*", Path: "Documents/*", Category: resolver.CategoryApp, OutputDir: "Apps"},
		{Name: "app-groups", Domain: "AppDomainGroup-*", Path: "File Provider Storage/*", Category: resolver.CategoryAppGroup, OutputDir: "AppGroups"},
	}
}

// Default returns the configuration used when nothing else is given.
func Default() Config {
	return Config{
		LogLevel: "info",
		Phases: Phases{
			Media:       true,
			Transcripts: true,
			Contacts:    true,
			Notes:       true,
		},
		Filters: DefaultFilters(),
	}
}

// Load builds the configuration from defaults, the TOML file at path (skipped
// when path is empty) and IOSEXTRACT_* environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		//nolint:gosec // G304: config path is supplied by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		// A file that lists filters replaces the built-in ones entirely.
		cfg.Filters = nil
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
		if len(cfg.Filters) == 0 {
			cfg.Filters = DefaultFilters()
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyEnv() error {
	c.BackupRoot = getEnv("IOSEXTRACT_BACKUP_ROOT", c.BackupRoot)
	c.OutputRoot = getEnv("IOSEXTRACT_OUTPUT_ROOT", c.OutputRoot)
	c.LogLevel = getEnv("IOSEXTRACT_LOG_LEVEL", c.LogLevel)
	c.NotesConverter = getEnv("IOSEXTRACT_NOTES_CONVERTER", c.NotesConverter)

	var err error
	if c.DryRun, err = getEnvBool("IOSEXTRACT_DRY_RUN", c.DryRun); err != nil {
		return err
	}
	if c.PreserveNames, err = getEnvBool("IOSEXTRACT_PRESERVE_NAMES", c.PreserveNames); err != nil {
		return err
	}
	return nil
}

// Validate checks the configuration is complete and consistent.
func (c *Config) Validate() error {
	var problems []error
	if strings.TrimSpace(c.BackupRoot) == "" {
		problems = append(problems, errors.New("backup root is required"))
	}
	if strings.TrimSpace(c.OutputRoot) == "" {
		problems = append(problems, errors.New("output root is required"))
	}
	if _, err := utils.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, err)
	}

	seen := make(map[string]bool)
	for i, f := range c.Filters {
		if f.Name == "" {
			problems = append(problems, fmt.Errorf("filter %d has no name", i))
		} else if seen[f.Name] {
			problems = append(problems, fmt.Errorf("duplicate filter name %q", f.Name))
		}
		seen[f.Name] = true
		if f.Domain == "" || f.Path == "" {
			problems = append(problems, fmt.Errorf("filter %q needs both domain and path", f.Name))
		}
		if f.OutputDir == "" {
			problems = append(problems, fmt.Errorf("filter %q has no output_dir", f.Name))
		}
		if _, err := f.Category.MarshalText(); err != nil {
			problems = append(problems, fmt.Errorf("filter %q: %w", f.Name, err))
		}
	}
	return errors.Join(problems...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("invalid %s: %w", key, err)
	}
	return parsed, nil
}
