// Package config loads the postergrid configuration file.
//
// The file is YAML. Every field is optional: values missing from the file
// keep their defaults, and command line flags override both.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/h0rv/postergrid/internal/domain"
	"github.com/h0rv/postergrid/internal/grid"
	"github.com/h0rv/postergrid/internal/log"
)

// MaxPageSize is the largest page AniList serves.
const MaxPageSize = 50

// ErrInvalidConfig indicates a configuration that failed to parse or validate.
var ErrInvalidConfig = errors.New("invalid config")

// Config is the complete postergrid configuration.
type Config struct {
	// Type is the catalog type, ANIME or MANGA. Empty asks at startup.
	Type string `yaml:"type,omitempty"`
	// Genre filters the catalog. Empty asks at startup; "all" means no filter.
	Genre string `yaml:"genre,omitempty"`
	// Sort is an AniList MediaSort value. Empty asks at startup.
	Sort string `yaml:"sort,omitempty"`
	// PageSize is how many items each load requests.
	PageSize int `yaml:"pageSize"`
	// Priority is how many leading items render and preload first. Zero
	// turns priority off.
	Priority int `yaml:"priority"`
	// Endpoint overrides the AniList GraphQL endpoint.
	Endpoint string `yaml:"endpoint,omitempty"`

	Grid    GridConfig    `yaml:"grid"`
	Log     LogConfig     `yaml:"log"`
	Preload PreloadConfig `yaml:"preload"`
}

// GridConfig holds grid layout and load-more settings.
type GridConfig struct {
	MinCellWidth int `yaml:"minCellWidth"`
	MaxColumns   int `yaml:"maxColumns"`
	Gap          int `yaml:"gap"`
	TextLines    int `yaml:"textLines"`
	// Threshold is the distance in lines from the end of the page at which
	// more items are requested.
	Threshold int `yaml:"threshold"`
	// Debounce is a Go duration string, e.g. "100ms".
	Debounce string `yaml:"debounce"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	// File is the log file path. Empty uses the default under the cache
	// directory.
	File string `yaml:"file,omitempty"`
}

// PreloadConfig holds poster preloading settings.
type PreloadConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Concurrency int    `yaml:"concurrency"`
	Timeout     string `yaml:"timeout"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		PageSize: 24,
		Priority: grid.DefaultPriorityCount,
		Grid:     defaultGrid(),
		Log:      defaultLog(),
		Preload:  defaultPreload(),
	}
}

func defaultGrid() GridConfig {
	return GridConfig{
		MinCellWidth: grid.DefaultMinCellWidth,
		MaxColumns:   grid.DefaultMaxColumns,
		Gap:          grid.DefaultGap,
		TextLines:    grid.DefaultTextLines,
		Threshold:    grid.DefaultThreshold,
		Debounce:     grid.DefaultDebounce.String(),
	}
}

func defaultLog() LogConfig {
	return LogConfig{
		Level:  string(log.LevelInfo),
		Format: string(log.FormatLogfmt),
	}
}

func defaultPreload() PreloadConfig {
	return PreloadConfig{
		Enabled:     true,
		Concurrency: 4,
		Timeout:     "10s",
	}
}

// The section decoders start from the section defaults, so a file that sets
// one key of a section keeps the defaults of the others.

func (g *GridConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type plain GridConfig
	p := plain(defaultGrid())
	if err := unmarshal(&p); err != nil {
		return err
	}
	*g = GridConfig(p)
	return nil
}

func (l *LogConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type plain LogConfig
	p := plain(defaultLog())
	if err := unmarshal(&p); err != nil {
		return err
	}
	*l = LogConfig(p)
	return nil
}

func (p *PreloadConfig) UnmarshalYAML(unmarshal func(any) error) error {
	type plain PreloadConfig
	v := plain(defaultPreload())
	if err := unmarshal(&v); err != nil {
		return err
	}
	*p = PreloadConfig(v)
	return nil
}

// DefaultPath returns $XDG_CONFIG_HOME/postergrid/config.yaml, or an empty
// string when no config directory can be determined.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "postergrid", "config.yaml")
}

// Load reads the configuration at path. An empty path reads DefaultPath, and
// a missing default file yields the defaults. A missing explicit path is an
// error.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if !explicit {
		path = DefaultPath()
		if path == "" {
			return Default(), nil
		}
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) && !explicit {
		return Default(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML data on top of the defaults and validates the result.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data), yaml.DisallowUnknownField())
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s", ErrInvalidConfig, yaml.FormatError(err, false, true))
	}

	cfg.Normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Normalize canonicalizes enum-like fields.
func (c *Config) Normalize() {
	c.Type = strings.ToUpper(strings.TrimSpace(c.Type))
	c.Sort = strings.ToUpper(strings.TrimSpace(c.Sort))
	c.Genre = strings.TrimSpace(c.Genre)
}

// Validate reports every invalid field, wrapped with ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Type != "" && !slices.Contains(domain.MediaTypes, c.Type) {
		add("type: %q is not one of %s", c.Type, strings.Join(domain.MediaTypes, ", "))
	}
	if c.Sort != "" && !slices.Contains(domain.Sorts, c.Sort) {
		add("sort: %q is not one of %s", c.Sort, strings.Join(domain.Sorts, ", "))
	}
	if c.PageSize < 1 || c.PageSize > MaxPageSize {
		add("pageSize: %d is outside 1..%d", c.PageSize, MaxPageSize)
	}
	if c.Priority < 0 {
		add("priority: must not be negative")
	}

	if c.Grid.MinCellWidth < 8 {
		add("grid.minCellWidth: %d is below 8", c.Grid.MinCellWidth)
	}
	if c.Grid.MaxColumns < 1 {
		add("grid.maxColumns: must be at least 1")
	}
	if c.Grid.Gap < 0 {
		add("grid.gap: must not be negative")
	}
	if c.Grid.TextLines < 1 {
		add("grid.textLines: must be at least 1")
	}
	if c.Grid.Threshold < 0 {
		add("grid.threshold: must not be negative")
	}
	if d, err := time.ParseDuration(c.Grid.Debounce); err != nil || d <= 0 {
		add("grid.debounce: %q is not a positive duration", c.Grid.Debounce)
	}

	if _, err := log.GetLevel(c.Log.Level); err != nil {
		add("log.level: %w", err)
	}
	if _, err := log.GetFormat(c.Log.Format); err != nil {
		add("log.format: %w", err)
	}

	if c.Preload.Concurrency < 1 {
		add("preload.concurrency: must be at least 1")
	}
	if d, err := time.ParseDuration(c.Preload.Timeout); err != nil || d <= 0 {
		add("preload.timeout: %q is not a positive duration", c.Preload.Timeout)
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Debounce returns the parsed grid debounce, or the grid default when it does
// not parse.
func (c *Config) Debounce() time.Duration {
	d, err := time.ParseDuration(c.Grid.Debounce)
	if err != nil || d <= 0 {
		return grid.DefaultDebounce
	}
	return d
}

// PreloadTimeout returns the parsed per-poster timeout.
func (c *Config) PreloadTimeout() time.Duration {
	d, err := time.ParseDuration(c.Preload.Timeout)
	if err != nil || d <= 0 {
		return 10 * time.Second
	}
	return d
}

// GridPriority returns Priority as a grid.Config PriorityCount, where zero
// would mean the grid default.
func (c *Config) GridPriority() int {
	if c.Priority == 0 {
		return -1
	}
	return c.Priority
}

// Resolver returns the responsive grid layout described by the config.
func (c *Config) Resolver() grid.Responsive {
	return grid.Responsive{
		MinCellWidth: c.Grid.MinCellWidth,
		MaxColumns:   c.Grid.MaxColumns,
		Gap:          c.Grid.Gap,
		TextLines:    c.Grid.TextLines,
	}
}

// AllGenres is the Genre value that skips the genre picker and browses
// without a genre filter.
const AllGenres = "all"

// Marshal encodes the config as YAML.
func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("marshal config: %w", err)
	}
	return data, nil
}
