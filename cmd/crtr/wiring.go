package main

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/audio"
	"reel-recipe-go/internal/config"
	"reel-recipe-go/internal/fetcher"
	"reel-recipe-go/internal/generator"
	"reel-recipe-go/internal/history"
	"reel-recipe-go/internal/metrics"
	"reel-recipe-go/internal/pipeline"
	"reel-recipe-go/internal/transcription"
)

// stack is a converter plus the resources it owns.
type stack struct {
	converter *pipeline.Converter
	history   *history.Store
}

func (s *stack) Close() {
	if s.history != nil {
		_ = s.history.Close()
	}
}

func buildStack(cfg *config.Config, m *metrics.Metrics, log *logrus.Entry) (*stack, error) {
	f := fetcher.New(fetcher.Config{
		GraphQLURL:   cfg.Instagram.GraphQLURL,
		DocID:        cfg.Instagram.DocID,
		AppID:        cfg.Instagram.AppID,
		UserAgent:    cfg.Instagram.UserAgent,
		DownloadDir:  cfg.Paths.WorkDir,
		MaxRetryTime: time.Duration(cfg.Instagram.MaxRetrySeconds) * time.Second,
	}, fetcher.WithLogger(log.WithField("module", "fetcher")))

	e := audio.New(
		audio.WithBinaries(cfg.Media.FFmpeg, cfg.Media.FFprobe),
		audio.WithKeepSource(cfg.Media.KeepFiles),
		audio.WithLogger(log.WithField("module", "audio")),
	)

	t, err := buildTranscriber(cfg, log.WithField("module", "transcription"))
	if err != nil {
		return nil, err
	}

	var g pipeline.Generator
	if cfg.LLM.Mock {
		g = generator.Mock{Text: generator.MockRecipe}
	} else {
		g = generator.New(generator.Config{
			BaseURL:     cfg.LLM.BaseURL,
			Temperature: cfg.LLM.Temperature,
			Timeout:     time.Duration(cfg.LLM.TimeoutSeconds) * time.Second,
		}, generator.WithLogger(log.WithField("module", "generator")))
	}

	opts := []pipeline.Option{
		pipeline.WithOutputDir(cfg.Paths.OutputDir),
		pipeline.WithMetrics(m),
		pipeline.WithKeepFiles(cfg.Media.KeepFiles),
		pipeline.WithLogger(log.WithField("module", "pipeline")),
	}

	s := &stack{}
	if cfg.Paths.HistoryDB != "" {
		store, err := history.Open(cfg.Paths.HistoryDB)
		if err != nil {
			log.WithError(err).Warn("run history disabled")
		} else {
			s.history = store
			opts = append(opts, pipeline.WithRecorder(store))
		}
	}

	s.converter = pipeline.New(f, e, t, g, opts...)
	return s, nil
}

func buildTranscriber(cfg *config.Config, log *logrus.Entry) (pipeline.Transcriber, error) {
	tc := cfg.Transcription
	switch tc.Backend {
	case config.BackendMock:
		return transcription.Mock{Text: transcription.MockTranscript}, nil
	case config.BackendService:
		return transcription.NewService(transcription.ServiceConfig{
			URL:      tc.ServiceURL,
			Language: tc.Language,
		}, transcription.WithServiceLogger(log)), nil
	case config.BackendWhisper, "":
		size, err := transcription.ParseModelSize(tc.Model)
		if err != nil {
			return nil, err
		}
		return transcription.NewWhisper(transcription.WhisperConfig{
			Binary:   tc.WhisperBinary,
			FFmpeg:   cfg.Media.FFmpeg,
			ModelDir: tc.ModelDir,
			Model:    size,
			BeamSize: tc.BeamSize,
			Language: tc.Language,
		}, transcription.WithWhisperLogger(log)), nil
	default:
		return nil, fmt.Errorf("unknown transcription backend %q", tc.Backend)
	}
}
