// Package config loads maude settings from a YAML file, a .env file and the
// environment.
//
// Precedence, lowest first: built-in defaults, the YAML file, environment
// variables (a .env file only fills variables that are not already set),
// then command-line flags applied by the caller.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/roach88/maude/internal/classify"
	"github.com/roach88/maude/internal/ingest"
)

//go:embed schema.cue
var schemaCUE string

// Environment variables read by Load.
const (
	EnvDatabase     = "MAUDE_DB"
	EnvDataDir      = "MAUDE_DATA_DIR"
	EnvCacheDir     = "MAUDE_CACHE_DIR"
	EnvServeAddr    = "MAUDE_SERVE_ADDR"
	EnvConcurrency  = "MAUDE_FETCH_CONCURRENCY"
	EnvEncoding     = "MAUDE_ENCODING"
	EnvDelimiter    = "MAUDE_DELIMITER"
	DefaultFileName = "maude.yaml"
)

// Config holds all maude settings.
type Config struct {
	Database string         `yaml:"database" json:"database"`
	DataDir  string         `yaml:"data_dir" json:"data_dir"`
	CacheDir string         `yaml:"cache_dir" json:"cache_dir,omitempty"`
	Reader   ingest.Options `yaml:"reader" json:"reader"`
	Classify ClassifyConfig `yaml:"classify" json:"classify"`
	Fetch    FetchConfig    `yaml:"fetch" json:"fetch"`
	Serve    ServeConfig    `yaml:"serve" json:"serve"`
}

// ClassifyConfig replaces the default classification rules when non-empty.
type ClassifyConfig struct {
	FilenameRules []classify.Rule       `yaml:"filename_rules" json:"filename_rules,omitempty"`
	HeaderRules   []classify.HeaderRule `yaml:"header_rules" json:"header_rules,omitempty"`
}

// FetchConfig controls archive downloads. Empty URLs means the built-in
// FDA list.
type FetchConfig struct {
	URLs              []string `yaml:"urls" json:"urls,omitempty"`
	Concurrency       int      `yaml:"concurrency" json:"concurrency"`
	RequestsPerSecond float64  `yaml:"requests_per_second" json:"requests_per_second"`
}

// ServeConfig controls the HTTP search surface.
type ServeConfig struct {
	Addr string `yaml:"addr" json:"addr"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Database: "maude.db",
		DataDir:  "data",
		Reader:   ingest.DefaultOptions(),
		Fetch: FetchConfig{
			Concurrency:       4,
			RequestsPerSecond: 2,
		},
		Serve: ServeConfig{Addr: "127.0.0.1:8080"},
	}
}

// DownloadDir is where fetched archives are written: CacheDir if set,
// else DataDir.
func (c *Config) DownloadDir() string {
	if c.CacheDir != "" {
		return c.CacheDir
	}
	return c.DataDir
}

// Classifier builds a classifier from the configured rules, falling back to
// the defaults for any empty rule set.
func (c *Config) Classifier() *classify.RuleClassifier {
	cl := classify.New()
	if len(c.Classify.FilenameRules) > 0 {
		cl.Rules = c.Classify.FilenameRules
	}
	if len(c.Classify.HeaderRules) > 0 {
		cl.HeaderRules = c.Classify.HeaderRules
	}
	return cl
}

// Load builds the configuration.
//
// envFile is loaded with godotenv if it exists. path is the YAML file; an
// empty path means DefaultFileName in the working directory, which may be
// missing. An explicit path that does not exist is an error.
func Load(path, envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", envFile, err)
		}
	}

	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := cfg.merge(path, data); err != nil {
			return nil, err
		}
	case errors.Is(err, fs.ErrNotExist) && !explicit:
	default:
		return nil, fmt.Errorf("read config: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse validates YAML config data against the schema and decodes it over
// the defaults.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := cfg.merge("<config>", data); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) merge(name string, data []byte) error {
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parse %s: %w", name, err)
	}
	if raw == nil {
		return nil
	}
	if err := validate(raw); err != nil {
		return fmt.Errorf("invalid %s: %w", name, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

// validate unifies the decoded document with #Config.
func validate(raw map[string]any) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}

	v := schema.LookupPath(cue.ParsePath("#Config")).Unify(ctx.Encode(raw))
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return formatCUEError(err)
	}
	return nil
}

// formatCUEError keeps the first CUE error, which carries the offending path.
func formatCUEError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return err
	}
	return errors.New(errs[0].Error())
}

func (c *Config) applyEnv() error {
	c.Database = getEnv(EnvDatabase, c.Database)
	c.DataDir = getEnv(EnvDataDir, c.DataDir)
	c.CacheDir = getEnv(EnvCacheDir, c.CacheDir)
	c.Serve.Addr = getEnv(EnvServeAddr, c.Serve.Addr)
	c.Reader.Encoding = getEnv(EnvEncoding, c.Reader.Encoding)
	c.Reader.Delimiter = getEnv(EnvDelimiter, c.Reader.Delimiter)

	if v := os.Getenv(EnvConcurrency); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return fmt.Errorf("%s must be a positive integer, got %q", EnvConcurrency, v)
		}
		c.Fetch.Concurrency = n
	}
	return nil
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
