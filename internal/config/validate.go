package config

import (
	"fmt"
	"strings"
)

// Validate checks cross-field rules and normalizes values. Load calls it.
// The API key is checked separately by the server since the command line
// tool has no use for it.
func (c *Config) Validate() error {
	if err := c.Store.validate(); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	if err := c.Analysis.validate(); err != nil {
		return fmt.Errorf("analysis: %w", err)
	}
	if c.Pipeline.WorkerCount <= 0 {
		return fmt.Errorf("pipeline: worker_count must be > 0 (got %d)", c.Pipeline.WorkerCount)
	}
	if c.Pipeline.MaxQueueSize <= 0 {
		return fmt.Errorf("pipeline: max_queue_size must be > 0 (got %d)", c.Pipeline.MaxQueueSize)
	}
	if c.Pipeline.JobTTL <= 0 {
		return fmt.Errorf("pipeline: job_ttl must be > 0 (got %v)", c.Pipeline.JobTTL)
	}
	if c.Upload.MaxUploadBytes <= 0 {
		return fmt.Errorf("upload: max_upload_bytes must be > 0 (got %d)", c.Upload.MaxUploadBytes)
	}
	return nil
}

// RequireAPIKey fails when the server would run unauthenticated.
func (c *Config) RequireAPIKey() error {
	if c.Auth.APIKey == "" {
		return fmt.Errorf("DOCANNOT_API_KEY is required")
	}
	return nil
}

func (s *StoreConfig) validate() error {
	s.Driver = strings.ToLower(strings.TrimSpace(s.Driver))
	switch s.Driver {
	case "memory":
	case "sqlite":
		if s.Path == "" {
			return fmt.Errorf("path is required for the sqlite driver")
		}
	case "postgres":
		if s.DSN == "" {
			return fmt.Errorf("dsn is required for the postgres driver")
		}
		if s.MaxConns <= 0 || s.MinConns < 0 || s.MinConns > s.MaxConns {
			return fmt.Errorf("invalid pool bounds min=%d max=%d", s.MinConns, s.MaxConns)
		}
	default:
		return fmt.Errorf("unknown driver %q (want memory, sqlite or postgres)", s.Driver)
	}
	return nil
}

func (a *AnalysisConfig) validate() error {
	if a.DataDir == "" {
		return fmt.Errorf("data_dir is required")
	}
	if a.OutputSet == "" {
		return fmt.Errorf("output_set is required")
	}
	if a.SentenceWorkers <= 0 {
		return fmt.Errorf("sentence_workers must be > 0 (got %d)", a.SentenceWorkers)
	}
	if a.StatsWindow <= 0 {
		return fmt.Errorf("stats_window must be > 0 (got %v)", a.StatsWindow)
	}
	var preload []string
	for _, l := range a.Preload {
		if l = strings.TrimSpace(l); l != "" {
			preload = append(preload, l)
		}
	}
	a.Preload = preload
	return nil
}
