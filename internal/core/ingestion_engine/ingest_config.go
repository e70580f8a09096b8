package ingestion_engine

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// PipelineConfig tunes the ingestion pipeline.
//
// MaxCharacters is the hard character budget per chunk. NewAfterNChars is
// the soft threshold; once a chunk reaches it the next element starts a
// new chunk. CombineTextUnderNChars controls title boundaries: a title
// only opens a new chunk when the current one has at least this many
// characters, and a trailing chunk below it is merged into its
// predecessor. IngestWorkers bounds concurrent document runs and
// EnrichWorkers concurrent summarization calls within one run.
// SummaryCacheSize is the LRU entry count for content-digest summary
// reuse, and MaxUploadMB the upper bound for direct multipart uploads.
type PipelineConfig struct {
	MaxCharacters          int `yaml:"max_characters"`
	NewAfterNChars         int `yaml:"new_after_n_chars"`
	CombineTextUnderNChars int `yaml:"combine_text_under_n_chars"`
	IngestWorkers          int `yaml:"ingest_workers"`
	EnrichWorkers          int `yaml:"enrich_workers"`
	EnrichTimeoutSecs      int `yaml:"enrich_timeout_secs"`
	RunTimeoutSecs         int `yaml:"run_timeout_secs"`
	SummaryCacheSize       int `yaml:"summary_cache_size"`
	MaxUploadMB            int `yaml:"max_upload_mb"`
}

// DefaultPipelineConfig returns the tuning used when no config file is set.
func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		MaxCharacters:          10000,
		NewAfterNChars:         6000,
		CombineTextUnderNChars: 2000,
		IngestWorkers:          4,
		EnrichWorkers:          4,
		EnrichTimeoutSecs:      45,
		RunTimeoutSecs:         600,
		SummaryCacheSize:       256,
		MaxUploadMB:            50,
	}
}

// LoadPipelineConfig reads and parses a YAML tuning file over the defaults.
// An empty path returns the defaults unchanged.
func LoadPipelineConfig(path string) (*PipelineConfig, error) {
	cfg := DefaultPipelineConfig()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse pipeline config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks that the thresholds are coherent.
func (c *PipelineConfig) Validate() error {
	if c.MaxCharacters <= 0 {
		return fmt.Errorf("max_characters must be > 0")
	}
	if c.NewAfterNChars <= 0 || c.NewAfterNChars > c.MaxCharacters {
		return fmt.Errorf("new_after_n_chars must be in (0, max_characters]")
	}
	if c.CombineTextUnderNChars < 0 || c.CombineTextUnderNChars > c.NewAfterNChars {
		return fmt.Errorf("combine_text_under_n_chars must be in [0, new_after_n_chars]")
	}
	if c.IngestWorkers <= 0 {
		return fmt.Errorf("ingest_workers must be > 0")
	}
	if c.EnrichWorkers <= 0 {
		return fmt.Errorf("enrich_workers must be > 0")
	}
	if c.EnrichTimeoutSecs <= 0 {
		return fmt.Errorf("enrich_timeout_secs must be > 0")
	}
	if c.RunTimeoutSecs <= 0 {
		return fmt.Errorf("run_timeout_secs must be > 0")
	}
	if c.SummaryCacheSize <= 0 {
		return fmt.Errorf("summary_cache_size must be > 0")
	}
	if c.MaxUploadMB <= 0 {
		return fmt.Errorf("max_upload_mb must be > 0")
	}
	return nil
}

// EnrichTimeout returns the per-call summarization timeout.
func (c *PipelineConfig) EnrichTimeout() time.Duration {
	return time.Duration(c.EnrichTimeoutSecs) * time.Second
}

// RunTimeout returns the end-to-end budget for one document run.
func (c *PipelineConfig) RunTimeout() time.Duration {
	return time.Duration(c.RunTimeoutSecs) * time.Second
}

// MaxUploadBytes returns the direct-upload size cap in bytes.
func (c *PipelineConfig) MaxUploadBytes() int64 {
	return int64(c.MaxUploadMB) * 1024 * 1024
}
