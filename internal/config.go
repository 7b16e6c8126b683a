package internal

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"

	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/starford/notevault/internal/noteservice"
	pkgconfig "github.com/starford/notevault/pkg/config"
)

// Config represents the application configuration.
type Config struct {
	App     ApplicationConfig `yaml:"app"`
	Vaults  VaultsConfig      `yaml:"vaults"`
	Journal JournalConfig     `yaml:"journal"`
	Links   LinksConfig       `yaml:"links"`
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := c.Vaults.Validate(); err != nil {
		return err
	}
	if err := c.Journal.Validate(); err != nil {
		return err
	}
	return c.Links.Validate()
}

// ApplicationConfig holds application-level configuration.
type ApplicationConfig struct {
	LogLevel slog.Level `yaml:"log_level"`
}

// VaultsConfig lists the vaults served by the process.
type VaultsConfig struct {
	Default string                 `yaml:"default"`
	Entries map[string]VaultConfig `yaml:"entries"`
}

// Names returns the configured vault names in sorted order.
func (c *VaultsConfig) Names() []string {
	names := make([]string, 0, len(c.Entries))
	for name := range c.Entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks the vault list and expands "~" in every path. Each path
// must be an existing directory.
func (c *VaultsConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Default, validation.Required),
		validation.Field(&c.Entries, validation.Required),
	); err != nil {
		return err
	}
	if _, ok := c.Entries[c.Default]; !ok {
		return fmt.Errorf("vaults: default vault %q is not configured", c.Default)
	}
	for _, name := range c.Names() {
		entry := c.Entries[name]
		if err := entry.Validate(); err != nil {
			return fmt.Errorf("vaults: %s: %w", name, err)
		}
		c.Entries[name] = entry
	}
	return nil
}

// VaultConfig holds one vault directory.
type VaultConfig struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

// Validate validates the vault configuration.
func (c *VaultConfig) Validate() error {
	if err := validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.Required),
	); err != nil {
		return err
	}
	path, err := pkgconfig.ExpandHome(c.Path)
	if err != nil {
		return err
	}
	c.Path = path
	return validation.Validate(c.Path, validation.By(isDir))
}

func isDir(value any) error {
	info, err := os.Stat(value.(string))
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return errors.New("not a directory")
	}
	return nil
}

// JournalConfig controls the activity journal.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
	Watch   bool   `yaml:"watch"`
}

// Validate validates the journal configuration.
func (c *JournalConfig) Validate() error {
	return validation.ValidateStruct(c,
		validation.Field(&c.Path, validation.When(c.Enabled, validation.Required)),
	)
}

// LinksConfig controls link rewriting on move.
type LinksConfig struct {
	RewriteMode noteservice.LinkMode `yaml:"rewrite_mode"`
}

// Validate validates the links configuration.
func (c *LinksConfig) Validate() error {
	if c.RewriteMode == "" {
		c.RewriteMode = noteservice.LinkWikilinks
	}
	return validation.ValidateStruct(c,
		validation.Field(&c.RewriteMode, validation.In(noteservice.LinkWikilinks, noteservice.LinkLiteral)),
	)
}

// NewDefaultConfig returns a new Config with sensible default values.
func NewDefaultConfig() *Config {
	return &Config{
		App: ApplicationConfig{
			LogLevel: slog.LevelInfo,
		},
		Journal: JournalConfig{
			Enabled: true,
			Path:    "./notevault.db",
			Watch:   true,
		},
		Links: LinksConfig{
			RewriteMode: noteservice.LinkWikilinks,
		},
	}
}
