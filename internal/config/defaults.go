package config

import (
	"os"
	"path/filepath"
	"strings"

	"reel-recipe-go/internal/fetcher"
	"reel-recipe-go/internal/generator"
	"reel-recipe-go/internal/transcription"
)

func Default() Config {
	return Config{
		Paths: Paths{
			OutputDir: ".",
			HistoryDB: defaultHistoryDB(),
		},
		LLM: LLM{
			Model:          string(generator.DefaultModel),
			BaseURL:        generator.DefaultBaseURL,
			TimeoutSeconds: 120,
		},
		Instagram: Instagram{
			GraphQLURL:      fetcher.DefaultGraphQLURL,
			DocID:           fetcher.DefaultDocID,
			AppID:           fetcher.DefaultAppID,
			UserAgent:       fetcher.DefaultUserAgent,
			MaxRetrySeconds: 10,
		},
		Transcription: Transcription{
			Backend:       BackendWhisper,
			WhisperBinary: "whisper-cli",
			ModelDir:      "~/.cache/whisper.cpp",
			Model:         string(transcription.DefaultModelSize),
			BeamSize:      transcription.DefaultBeamSize,
		},
		Media: Media{
			FFmpeg:  "ffmpeg",
			FFprobe: "ffprobe",
		},
		Logging: Logging{
			Level: "info",
		},
	}
}

func defaultWorkDir() string {
	return filepath.Join(os.TempDir(), "crtr")
}

func defaultHistoryDB() string {
	if base, ok := os.LookupEnv("XDG_DATA_HOME"); ok && strings.TrimSpace(base) != "" {
		return filepath.Join(base, "crtr", "history.db")
	}
	return "~/.local/share/crtr/history.db"
}
