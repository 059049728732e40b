package config

import (
	"errors"
	"fmt"
	"strings"

	"reel-recipe-go/internal/generator"
	"reel-recipe-go/internal/transcription"
)

// Validate checks enumerations and required directories. A missing API key is
// not an error here; the pipeline aborts the generate stage instead.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.Paths.OutputDir) == "" {
		return errors.New("paths.output_dir must be set")
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		return errors.New("paths.work_dir must be set")
	}
	if _, err := generator.ParseModel(c.LLM.Model); err != nil {
		return fmt.Errorf("llm.model: %w", err)
	}
	if c.LLM.TimeoutSeconds < 0 {
		return errors.New("llm.timeout_seconds must be non-negative")
	}
	if c.Instagram.MaxRetrySeconds < 0 {
		return errors.New("instagram.max_retry_seconds must be non-negative")
	}
	switch c.Transcription.Backend {
	case BackendWhisper:
		if _, err := transcription.ParseModelSize(c.Transcription.Model); err != nil {
			return fmt.Errorf("transcription.model: %w", err)
		}
		if c.Transcription.BeamSize < 0 {
			return errors.New("transcription.beam_size must be non-negative")
		}
	case BackendService:
		if strings.TrimSpace(c.Transcription.ServiceURL) == "" {
			return errors.New("transcription.service_url is required for the service backend (or set TRANSCRIBE_URL)")
		}
	case BackendMock:
	default:
		return fmt.Errorf("transcription.backend %q must be one of %s, %s, %s",
			c.Transcription.Backend, BackendWhisper, BackendService, BackendMock)
	}
	return nil
}
