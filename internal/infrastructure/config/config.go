package config

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/intura-ai/intura-go/pkg/intura"
)

// DefaultReleaseFile is looked up in the working directory by LoadRelease.
const DefaultReleaseFile = ".intura-release.yaml"

// API holds dashboard client configuration.
type API struct {
	Key     string `envconfig:"INTURA_API_KEY"`
	BaseURL string `envconfig:"INTURA_API_BASE_URL"`
	Verbose bool   `envconfig:"INTURA_VERBOSE" default:"false"`
	// UploadUsage enables the remote CHAT_USAGE event.
	UploadUsage bool `envconfig:"INTURA_UPLOAD_USAGE" default:"false"`
}

// Database holds libsql configuration. An empty URL selects the local file
// in the XDG data directory.
type Database struct {
	URL       string `envconfig:"INTURA_DATABASE_URL"`
	AuthToken string `envconfig:"INTURA_AUTH_TOKEN"`
}

// OTel holds the usage metrics exporter configuration.
type OTel struct {
	Endpoint string `envconfig:"INTURA_OTEL_ENDPOINT"`
	Enabled  bool   `envconfig:"INTURA_OTEL_ENABLED" default:"false"`
	Insecure bool   `envconfig:"INTURA_OTEL_INSECURE" default:"false"`
}

// Prometheus points at the server scraping the exported usage metrics.
type Prometheus struct {
	URL     string `envconfig:"INTURA_PROMETHEUS_URL"`
	Enabled bool   `envconfig:"INTURA_PROMETHEUS_ENABLED" default:"false"`
}

// Release describes how a package is versioned, built and published.
type Release struct {
	VersionFile   string   `yaml:"version_file"`
	TagPrefix     string   `yaml:"tag_prefix"`
	Remote        string   `yaml:"remote"`
	Branch        string   `yaml:"branch"`
	BuildCommand  []string `yaml:"build_command"`
	UploadCommand []string `yaml:"upload_command"`
	// Journal disables the release journal when set to false.
	Journal *bool `yaml:"journal,omitempty"`
}

// DefaultRelease mirrors the layout of the published intura-ai package.
func DefaultRelease() Release {
	return Release{
		VersionFile:   "intura_ai/__version__.py",
		TagPrefix:     "v",
		Remote:        "origin",
		Branch:        "main",
		BuildCommand:  []string{"python", "-m", "build"},
		UploadCommand: []string{"python", "-m", "twine", "upload", "dist/*"},
	}
}

// JournalEnabled reports whether release runs should be recorded.
func (r Release) JournalEnabled() bool {
	return r.Journal == nil || *r.Journal
}

// LoadDotEnv loads a .env file from the working directory if one exists.
func LoadDotEnv() error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to load .env: %w", err)
	}
	return nil
}

// LoadAPI loads dashboard configuration from environment variables.
func LoadAPI() (*API, error) {
	var cfg API
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = intura.DefaultBaseURL
	}
	return &cfg, nil
}

// LoadDatabase loads libsql configuration from environment variables.
func LoadDatabase() (*Database, error) {
	var cfg Database
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOTel loads metrics exporter configuration from environment variables.
func LoadOTel() (*OTel, error) {
	var cfg OTel
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadPrometheus loads the live usage query configuration from environment
// variables.
func LoadPrometheus() (*Prometheus, error) {
	var cfg Prometheus
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadRelease reads path on top of DefaultRelease. A missing file is not an
// error and yields the defaults.
func LoadRelease(path string) (*Release, error) {
	cfg := DefaultRelease()
	if path == "" {
		path = DefaultReleaseFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var file Release
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	cfg.merge(file)

	if len(cfg.BuildCommand) == 0 || len(cfg.UploadCommand) == 0 {
		return nil, fmt.Errorf("invalid %s: build_command and upload_command must not be empty", path)
	}
	return &cfg, nil
}

func (r *Release) merge(o Release) {
	if o.VersionFile != "" {
		r.VersionFile = o.VersionFile
	}
	if o.TagPrefix != "" {
		r.TagPrefix = o.TagPrefix
	}
	if o.Remote != "" {
		r.Remote = o.Remote
	}
	if o.Branch != "" {
		r.Branch = o.Branch
	}
	if o.BuildCommand != nil {
		r.BuildCommand = o.BuildCommand
	}
	if o.UploadCommand != nil {
		r.UploadCommand = o.UploadCommand
	}
	if o.Journal != nil {
		r.Journal = o.Journal
	}
}
