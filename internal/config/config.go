// Package config loads converter settings from positional arguments, THESIS_*
// environment variables and an optional YAML file.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/Lllllllleong/thesisconverter/internal/extractor"
	"github.com/Lllllllleong/thesisconverter/internal/segmenter"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to every environment variable name.
const EnvPrefix = "THESIS"

// ArgNames are the positional command-line arguments, in order.
var ArgNames = []string{"sourceBucket", "targetBucket", "projectId", "databaseId", "collectionId", "retries", "batchSize"}

// Config holds every setting of a conversion run.
type Config struct {
	SourceBucket string `mapstructure:"source_bucket"`
	TargetBucket string `mapstructure:"target_bucket"`
	ProjectID    string `mapstructure:"project_id"`
	DatabaseID   string `mapstructure:"database_id"`
	CollectionID string `mapstructure:"collection_id"`
	Retries      int    `mapstructure:"retries"`
	BatchSize    int    `mapstructure:"batch_size"`

	Workers     int    `mapstructure:"workers"`
	ScratchRoot string `mapstructure:"scratch_root"`

	Extractor   string  `mapstructure:"extractor"`
	PdfinfoPath string  `mapstructure:"pdfinfo_path"`
	HeaderBand  float64 `mapstructure:"header_band"`
	FooterBand  float64 `mapstructure:"footer_band"`

	ArchiveText      bool          `mapstructure:"archive_text"`
	CleanupOnFailure bool          `mapstructure:"cleanup_on_failure"`
	AttemptTimeout   time.Duration `mapstructure:"attempt_timeout"`

	KeepTrailingChapter      bool `mapstructure:"keep_trailing_chapter"`
	KeepTextWithoutEndAnchor bool `mapstructure:"keep_text_without_end_anchor"`
}

// Default returns the settings used when nothing overrides them.
func Default() Config {
	return Config{
		CollectionID: "documents",
		Retries:      3,
		BatchSize:    100,
		Workers:      4,
		ScratchRoot:  filepath.Join(os.TempDir(), "thesis-converter"),
		Extractor:    extractor.KindText,
		PdfinfoPath:  extractor.DefaultPdfinfoPath,
		HeaderBand:   extractor.DefaultHeaderBand,
		FooterBand:   extractor.DefaultFooterBand,
	}
}

// Load reads defaults, the config file (if any) and the environment.
// An empty cfgFile looks for config.yaml in the working directory and
// $HOME/.thesis-converter; a missing file is not an error.
func Load(cfgFile string) (*Config, error) {
	v := viper.New()
	d := Default()
	v.SetDefault("source_bucket", d.SourceBucket)
	v.SetDefault("target_bucket", d.TargetBucket)
	v.SetDefault("project_id", d.ProjectID)
	v.SetDefault("database_id", d.DatabaseID)
	v.SetDefault("collection_id", d.CollectionID)
	v.SetDefault("retries", d.Retries)
	v.SetDefault("batch_size", d.BatchSize)
	v.SetDefault("workers", d.Workers)
	v.SetDefault("scratch_root", d.ScratchRoot)
	v.SetDefault("extractor", d.Extractor)
	v.SetDefault("pdfinfo_path", d.PdfinfoPath)
	v.SetDefault("header_band", d.HeaderBand)
	v.SetDefault("footer_band", d.FooterBand)
	v.SetDefault("archive_text", d.ArchiveText)
	v.SetDefault("cleanup_on_failure", d.CleanupOnFailure)
	v.SetDefault("attempt_timeout", d.AttemptTimeout)
	v.SetDefault("keep_trailing_chapter", d.KeepTrailingChapter)
	v.SetDefault("keep_text_without_end_anchor", d.KeepTextWithoutEndAnchor)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.thesis-converter")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return &cfg, nil
}

// ApplyArgs overrides the run identity with the seven positional arguments.
func (c *Config) ApplyArgs(args []string) error {
	if len(args) != len(ArgNames) {
		return fmt.Errorf("expected %d arguments (%v), got %d", len(ArgNames), ArgNames, len(args))
	}
	retries, err := strconv.Atoi(args[5])
	if err != nil {
		return fmt.Errorf("retries must be an integer: %w", err)
	}
	batchSize, err := strconv.Atoi(args[6])
	if err != nil {
		return fmt.Errorf("batchSize must be an integer: %w", err)
	}

	c.SourceBucket = args[0]
	c.TargetBucket = args[1]
	c.ProjectID = args[2]
	c.DatabaseID = args[3]
	c.CollectionID = args[4]
	c.Retries = retries
	c.BatchSize = batchSize
	return nil
}

// Validate checks the settings a conversion run cannot work without.
func (c *Config) Validate() error {
	switch {
	case c.SourceBucket == "":
		return errors.New("source bucket must be set")
	case c.ProjectID == "":
		return errors.New("project id must be set")
	case c.CollectionID == "":
		return errors.New("collection id must be set")
	case c.Retries < 0:
		return fmt.Errorf("retries must not be negative, got %d", c.Retries)
	case c.BatchSize < 1:
		return fmt.Errorf("batch size must be positive, got %d", c.BatchSize)
	case c.Workers < 1:
		return fmt.Errorf("workers must be positive, got %d", c.Workers)
	case c.ScratchRoot == "":
		return errors.New("scratch root must be set")
	case c.ArchiveText && c.TargetBucket == "":
		return errors.New("archive_text requires a target bucket")
	}
	return nil
}

// ExtractorOptions returns the extractor settings.
func (c *Config) ExtractorOptions() extractor.Options {
	return extractor.Options{
		Kind:        c.Extractor,
		PdfinfoPath: c.PdfinfoPath,
		HeaderBand:  c.HeaderBand,
		FooterBand:  c.FooterBand,
	}
}

// SegmenterOptions returns the default heading patterns with the configured switches applied.
func (c *Config) SegmenterOptions() segmenter.Options {
	opts := segmenter.DefaultOptions()
	opts.KeepTrailingChapter = c.KeepTrailingChapter
	opts.KeepTextWithoutEndAnchor = c.KeepTextWithoutEndAnchor
	return opts
}
