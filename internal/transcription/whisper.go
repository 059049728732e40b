package transcription

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/command"
	"reel-recipe-go/internal/logger"
)

type WhisperConfig struct {
	// Binary is the whisper.cpp CLI, "whisper-cli" by default.
	Binary string
	FFmpeg string
	// ModelDir holds ggml-<size>.bin files.
	ModelDir string
	Model    ModelSize
	BeamSize int
	// Language is passed as -l unless empty or "auto".
	Language string
}

// Whisper transcribes with the whisper.cpp CLI. The audio is first resampled
// to 16 kHz mono PCM in a temp dir.
type Whisper struct {
	cfg    WhisperConfig
	runner command.Runner
	log    *logrus.Entry

	mkdirTemp func(dir, pattern string) (string, error)
	removeAll func(path string) error
	readFile  func(name string) ([]byte, error)
}

type WhisperOption func(*Whisper)

func WithRunner(r command.Runner) WhisperOption {
	return func(w *Whisper) {
		if r != nil {
			w.runner = r
		}
	}
}

func WithWhisperLogger(log *logrus.Entry) WhisperOption {
	return func(w *Whisper) {
		if log != nil {
			w.log = log
		}
	}
}

func NewWhisper(cfg WhisperConfig, opts ...WhisperOption) *Whisper {
	if cfg.Binary == "" {
		cfg.Binary = "whisper-cli"
	}
	if cfg.FFmpeg == "" {
		cfg.FFmpeg = "ffmpeg"
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModelSize
	}
	if cfg.BeamSize <= 0 {
		cfg.BeamSize = DefaultBeamSize
	}
	w := &Whisper{
		cfg:       cfg,
		runner:    command.Exec{},
		log:       logger.New().WithField("module", "transcription"),
		mkdirTemp: os.MkdirTemp,
		removeAll: os.RemoveAll,
		readFile:  os.ReadFile,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// ModelPath is the ggml model file for the configured size.
func (w *Whisper) ModelPath() string {
	return filepath.Join(w.cfg.ModelDir, "ggml-"+string(w.cfg.Model)+".bin")
}

func (w *Whisper) Transcribe(ctx context.Context, audioPath string) (string, error) {
	tmp, err := w.mkdirTemp("", "crtr-whisper-*")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer func() { _ = w.removeAll(tmp) }()

	wav := filepath.Join(tmp, "audio-16k-mono.wav")
	if _, err := w.runner.Run(ctx, w.cfg.FFmpeg,
		"-hide_banner",
		"-nostdin",
		"-y",
		"-i", audioPath,
		"-vn",
		"-ac", "1",
		"-ar", "16000",
		"-c:a", "pcm_s16le",
		wav,
	); err != nil {
		return "", fmt.Errorf("resample audio: %w", err)
	}

	textBase := filepath.Join(tmp, "transcript")
	log := w.log.WithFields(logrus.Fields{"audio": audioPath, "model": w.cfg.Model})
	log.Info("transcribing audio")
	if _, err := w.runner.Run(ctx, w.cfg.Binary, whisperArgs(w.ModelPath(), wav, textBase, w.cfg)...); err != nil {
		return "", fmt.Errorf("whisper: %w", err)
	}

	data, err := w.readFile(textBase + ".txt")
	if err != nil {
		return "", fmt.Errorf("read transcript: %w", err)
	}
	text := joinLines(string(data))
	log.WithField("chars", len(text)).Info("transcription done")
	return text, nil
}

func whisperArgs(model, wav, textBase string, cfg WhisperConfig) []string {
	args := []string{
		"-m", model,
		"-f", wav,
		"-of", textBase,
		"-otxt",
		"-np",
		"-bs", strconv.Itoa(cfg.BeamSize),
	}
	if lang := strings.TrimSpace(cfg.Language); lang != "" && !strings.EqualFold(lang, "auto") {
		args = append(args, "-l", lang)
	}
	return args
}

// joinLines flattens whisper's one-segment-per-line output into a single
// space separated transcript.
func joinLines(s string) string {
	var parts []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			parts = append(parts, line)
		}
	}
	return strings.Join(parts, " ")
}
