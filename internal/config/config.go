// Package config loads crtr settings. Precedence, lowest first: built-in
// defaults, TOML file, .env file and process environment, CLI flags (applied
// by the caller before Validate).
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

const DefaultConfigFile = "~/.config/crtr/config.toml"

// Paths holds output and scratch locations.
type Paths struct {
	OutputDir string `toml:"output_dir"`
	WorkDir   string `toml:"work_dir"`
	HistoryDB string `toml:"history_db"`
}

// LLM holds the generation backend settings.
type LLM struct {
	APIKey         string  `toml:"api_key"`
	Model          string  `toml:"model"`
	BaseURL        string  `toml:"base_url"`
	Temperature    float64 `toml:"temperature"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
	Mock           bool    `toml:"mock"`
}

// Instagram holds media lookup settings.
type Instagram struct {
	GraphQLURL      string `toml:"graphql_url"`
	DocID           string `toml:"doc_id"`
	AppID           string `toml:"app_id"`
	UserAgent       string `toml:"user_agent"`
	MaxRetrySeconds int    `toml:"max_retry_seconds"`
}

// Transcription backends.
const (
	BackendWhisper = "whisper"
	BackendService = "service"
	BackendMock    = "mock"
)

type Transcription struct {
	Backend       string `toml:"backend"`
	WhisperBinary string `toml:"whisper_binary"`
	ModelDir      string `toml:"model_dir"`
	Model         string `toml:"model"`
	BeamSize      int    `toml:"beam_size"`
	Language      string `toml:"language"`
	ServiceURL    string `toml:"service_url"`
}

type Media struct {
	FFmpeg    string `toml:"ffmpeg"`
	FFprobe   string `toml:"ffprobe"`
	KeepFiles bool   `toml:"keep_files"`
}

type Logging struct {
	Level       string `toml:"level"`
	Environment string `toml:"environment"`
	File        string `toml:"file"`
}

type Metrics struct {
	TextfilePath string `toml:"textfile_path"`
}

type Config struct {
	Paths         Paths         `toml:"paths"`
	LLM           LLM           `toml:"llm"`
	Instagram     Instagram     `toml:"instagram"`
	Transcription Transcription `toml:"transcription"`
	Media         Media         `toml:"media"`
	Logging       Logging       `toml:"logging"`
	Metrics       Metrics       `toml:"metrics"`
}

// Load reads the config file at path, or the default locations when path is
// empty, then applies .env and environment overrides. It reports the resolved
// file path and whether that file existed.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolved, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	if exists {
		data, err := os.ReadFile(resolved)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config %s: %w", resolved, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, "", false, fmt.Errorf("load .env: %w", err)
	}
	cfg.applyEnv()

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return &cfg, resolved, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := ExpandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := ExpandPath(DefaultConfigFile)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("crtr.toml")
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

func (c *Config) applyEnv() {
	setFromEnv(&c.LLM.APIKey, "CRTR_API_KEY", "GOOGLE_AI_API_KEY")
	setFromEnv(&c.LLM.Model, "CRTR_MODEL")
	setFromEnv(&c.LLM.BaseURL, "CRTR_LLM_BASE_URL")
	setFromEnv(&c.Paths.OutputDir, "CRTR_OUTPUT_DIR")
	setFromEnv(&c.Paths.WorkDir, "CRTR_WORK_DIR")
	setFromEnv(&c.Paths.HistoryDB, "CRTR_HISTORY_DB")
	setFromEnv(&c.Transcription.Backend, "CRTR_TRANSCRIBER")
	setFromEnv(&c.Transcription.ServiceURL, "TRANSCRIBE_URL")
	setFromEnv(&c.Transcription.ModelDir, "WHISPER_MODEL_DIR")
	setFromEnv(&c.Transcription.Model, "WHISPER_MODEL")
	setFromEnv(&c.Logging.Level, "LOG_LEVEL")
	setFromEnv(&c.Logging.Environment, "ENVIRONMENT")
	setFromEnv(&c.Logging.File, "CRTR_LOG_FILE")

	if os.Getenv("USE_MOCK_TRANSCRIBE") == "true" {
		c.Transcription.Backend = BackendMock
	}
	if os.Getenv("USE_MOCK_LLM") == "true" {
		c.LLM.Mock = true
	}
}

// setFromEnv copies the first non-empty variable into dst.
func setFromEnv(dst *string, keys ...string) {
	for _, k := range keys {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			*dst = v
			return
		}
	}
}

func (c *Config) normalize() error {
	var err error
	if c.Paths.OutputDir, err = ExpandPath(c.Paths.OutputDir); err != nil {
		return fmt.Errorf("paths.output_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.WorkDir) == "" {
		c.Paths.WorkDir = defaultWorkDir()
	}
	if c.Paths.WorkDir, err = ExpandPath(c.Paths.WorkDir); err != nil {
		return fmt.Errorf("paths.work_dir: %w", err)
	}
	if c.Paths.HistoryDB, err = ExpandPath(c.Paths.HistoryDB); err != nil {
		return fmt.Errorf("paths.history_db: %w", err)
	}
	if c.Transcription.ModelDir, err = ExpandPath(c.Transcription.ModelDir); err != nil {
		return fmt.Errorf("transcription.model_dir: %w", err)
	}
	c.LLM.APIKey = strings.TrimSpace(c.LLM.APIKey)
	c.LLM.Model = strings.TrimSpace(c.LLM.Model)
	c.Transcription.Backend = strings.ToLower(strings.TrimSpace(c.Transcription.Backend))
	if c.Transcription.Backend == "" {
		c.Transcription.Backend = BackendWhisper
	}
	return nil
}

// EnsureDirectories creates the output and work directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.OutputDir, c.Paths.WorkDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	if c.Paths.HistoryDB != "" {
		if err := os.MkdirAll(filepath.Dir(c.Paths.HistoryDB), 0o755); err != nil {
			return fmt.Errorf("create history directory: %w", err)
		}
	}
	return nil
}

// ExpandPath resolves a leading ~ and makes the path absolute. Empty stays empty.
func ExpandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	absolute, err := filepath.Abs(filepath.Clean(pathValue))
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", pathValue, err)
	}
	return absolute, nil
}
