// Package config loads the prebuilt tool configuration.
//
// Configuration comes from a single YAML file, ".prebuilt.yaml" in the
// working directory unless --config names another. The file is optional:
// missing values keep the defaults from Default. Command-line flags are
// applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/albertocavalcante/go-prebuilt/manifest"
	"github.com/albertocavalcante/go-prebuilt/release"
	"github.com/albertocavalcante/go-prebuilt/versions"
)

// DefaultFile is the configuration file looked up when none is named.
const DefaultFile = ".prebuilt.yaml"

// Config is the tool configuration.
type Config struct {
	// Workspace is the source tree root. Relative paths below resolve
	// against it. Default: the working directory.
	Workspace string `yaml:"workspace"`

	// Registry is the versions.json document.
	// Default: versions.json
	Registry string `yaml:"registry"`

	// BaseURL is the release download location; "{version}" is replaced
	// by the release identifier.
	BaseURL string `yaml:"base_url"`

	// Concurrency bounds parallel checksum downloads.
	// Default: 4
	Concurrency int `yaml:"concurrency"`

	// Timeout is the per-request HTTP timeout, as a Go duration.
	// Default: 30s
	Timeout string `yaml:"timeout"`

	// BreakerThreshold trips a per-host circuit breaker after this many
	// consecutive failures. Default: 0 (disabled)
	BreakerThreshold int `yaml:"breaker_threshold"`

	// Release configures the release workflow.
	Release ReleaseConfig `yaml:"release"`
}

// ReleaseConfig configures the release workflow.
type ReleaseConfig struct {
	// ModuleFile is the module file whose version is set.
	// Default: MODULE.bazel
	ModuleFile string `yaml:"module_file"`

	// Readme holds the usage example updated on release.
	// Default: README.md
	Readme string `yaml:"readme"`

	// ArchiveTarget is the Bazel target that builds the source archive.
	// Default: //workflows:source_archive
	ArchiveTarget string `yaml:"archive_target"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Workspace:   ".",
		Registry:    versions.FileName,
		BaseURL:     manifest.DefaultBaseURL,
		Concurrency: manifest.DefaultConcurrency,
		Timeout:     "30s",
		Release: ReleaseConfig{
			ModuleFile:    release.DefaultModuleFile,
			Readme:        release.DefaultReadme,
			ArchiveTarget: release.DefaultArchiveTarget,
		},
	}
}

// Load loads configuration from path. An empty path looks up DefaultFile
// and falls back to Default if it does not exist; a named file must exist.
func Load(path string) (*Config, error) {
	if path != "" {
		return LoadFile(path)
	}
	cfg, err := LoadFile(DefaultFile)
	if errors.Is(err, os.ErrNotExist) {
		return Default(), nil
	}
	return cfg, err
}

// LoadFile loads configuration from a specific file path, on top of Default.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML configuration on top of Default, expands ${VAR}
// references in paths, and validates the result. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// TimeoutDuration returns Timeout parsed as a duration.
func (c *Config) TimeoutDuration() (time.Duration, error) {
	if c.Timeout == "" {
		return 0, nil
	}
	return time.ParseDuration(c.Timeout)
}

// Path resolves p against Workspace unless it is absolute.
func (c *Config) Path(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Workspace, p)
}

// RegistryPath returns the resolved registry document path.
func (c *Config) RegistryPath() string {
	return c.Path(c.Registry)
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Registry == "" {
		errs = append(errs, errors.New("registry is required"))
	}
	if c.BaseURL == "" {
		errs = append(errs, errors.New("base_url is required"))
	}
	if c.Concurrency < 1 {
		errs = append(errs, fmt.Errorf("concurrency must be at least 1, got %d", c.Concurrency))
	}
	if c.BreakerThreshold < 0 {
		errs = append(errs, fmt.Errorf("breaker_threshold must not be negative, got %d", c.BreakerThreshold))
	}
	if d, err := c.TimeoutDuration(); err != nil {
		errs = append(errs, fmt.Errorf("invalid timeout %q: %w", c.Timeout, err))
	} else if d < 0 {
		errs = append(errs, fmt.Errorf("timeout must not be negative, got %s", c.Timeout))
	}

	return errors.Join(errs...)
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	c.Workspace = expandVars(c.Workspace)
	c.Registry = expandVars(c.Registry)
	c.Release.ModuleFile = expandVars(c.Release.ModuleFile)
	c.Release.Readme = expandVars(c.Release.Readme)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}
