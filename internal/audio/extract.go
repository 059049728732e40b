package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/command"
	"reel-recipe-go/internal/logger"
)

var (
	ErrSourceMissing = errors.New("source video not found")
	ErrNoAudioTrack  = errors.New("no audio track found in video")
)

// Extractor pulls the audio track out of a video with ffmpeg.
type Extractor struct {
	ffmpegPath  string
	ffprobePath string
	keepSource  bool
	runner      command.Runner
	log         *logrus.Entry

	stat   func(name string) (os.FileInfo, error)
	remove func(name string) error
}

type Option func(*Extractor)

func WithBinaries(ffmpeg, ffprobe string) Option {
	return func(e *Extractor) {
		if ffmpeg != "" {
			e.ffmpegPath = ffmpeg
		}
		if ffprobe != "" {
			e.ffprobePath = ffprobe
		}
	}
}

// WithKeepSource leaves the video in place after extraction.
func WithKeepSource(keep bool) Option {
	return func(e *Extractor) { e.keepSource = keep }
}

func WithRunner(r command.Runner) Option {
	return func(e *Extractor) {
		if r != nil {
			e.runner = r
		}
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(e *Extractor) {
		if log != nil {
			e.log = log
		}
	}
}

func New(opts ...Option) *Extractor {
	e := &Extractor{
		ffmpegPath:  "ffmpeg",
		ffprobePath: "ffprobe",
		runner:      command.Exec{},
		log:         logger.New().WithField("module", "audio"),
		stat:        os.Stat,
		remove:      os.Remove,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// OutputPath is the mp3 written next to the video.
func OutputPath(videoPath string) string {
	return strings.TrimSuffix(videoPath, filepath.Ext(videoPath)) + ".mp3"
}

// Extract writes <video-stem>.mp3 and returns its path. The source video is
// removed on success unless WithKeepSource(true) was given.
func (e *Extractor) Extract(ctx context.Context, videoPath string) (string, error) {
	if strings.TrimSpace(videoPath) == "" {
		return "", ErrSourceMissing
	}
	if _, err := e.stat(videoPath); err != nil {
		return "", fmt.Errorf("%s: %w", videoPath, ErrSourceMissing)
	}
	log := e.log.WithField("video", videoPath)

	probe, err := e.runner.Run(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "a",
		"-show_entries", "stream=index",
		"-of", "csv=p=0",
		videoPath,
	)
	if err != nil {
		return "", fmt.Errorf("probe audio streams: %w", err)
	}
	if strings.TrimSpace(probe.Stdout) == "" {
		return "", fmt.Errorf("%s: %w", videoPath, ErrNoAudioTrack)
	}

	out := OutputPath(videoPath)
	log.WithField("audio", out).Info("extracting audio")
	if _, err := e.runner.Run(ctx, e.ffmpegPath,
		"-y",
		"-v", "error",
		"-i", videoPath,
		"-vn",
		"-codec:a", "libmp3lame",
		"-q:a", "2",
		out,
	); err != nil {
		_ = e.remove(out)
		return "", fmt.Errorf("extract audio: %w", err)
	}

	if !e.keepSource {
		if err := e.remove(videoPath); err != nil && !errors.Is(err, os.ErrNotExist) {
			log.WithError(err).Warn("failed to remove source video")
		}
	}
	return out, nil
}
