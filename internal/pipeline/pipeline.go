// Package pipeline turns a reel reference into a persisted recipe artifact:
// resolve, fetch, extract audio, transcribe, build prompt, generate, persist.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"reel-recipe-go/internal/artifact"
	"reel-recipe-go/internal/fetcher"
	"reel-recipe-go/internal/history"
	"reel-recipe-go/internal/logger"
	"reel-recipe-go/internal/metrics"
	"reel-recipe-go/internal/prompt"
	"reel-recipe-go/internal/shortcode"
)

type Fetcher interface {
	Fetch(ctx context.Context, identifier string) (fetcher.Video, error)
}

type Extractor interface {
	Extract(ctx context.Context, videoPath string) (string, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt, model, apiKey string) (string, error)
}

type Persister interface {
	Persist(raw, identifier string) (artifact.Artifact, error)
}

// Recorder stores the final outcome of each run.
type Recorder interface {
	Record(ctx context.Context, run history.Run) error
}

// Options are per-run settings.
type Options struct {
	Model  string
	APIKey string
	// OutputPath overrides <identifier>.json in the output directory.
	OutputPath string
	// OnStage is called with every state the run enters.
	OnStage func(State)
}

// RunState is the working record of one conversion. Fields fill in stage order.
type RunState struct {
	RunID         string
	Input         string
	Identifier    string
	Description   string
	Transcript    string
	Prompt        string
	GeneratedText string
	VideoPath     string
	AudioPath     string
	State         State
	AbortStage    Stage
	AbortReason   string
	StartedAt     time.Time
}

// Outcome is what Convert reports back.
type Outcome struct {
	RunID       string
	State       State
	Identifier  string
	// Text is the raw generated text, set only when the run persisted.
	Text        string
	Prompt      string
	Artifact    artifact.Artifact
	AbortStage  Stage
	AbortReason string
	Durations   map[Stage]time.Duration
}

// OK reports whether an artifact was persisted.
func (o Outcome) OK() bool { return o.State == StatePersisted }

// Converter runs conversions. It holds no per-run state and may be shared by
// concurrent callers.
type Converter struct {
	fetcher     Fetcher
	extractor   Extractor
	transcriber Transcriber
	generator   Generator

	template     string
	outputDir    string
	newPersister func(outputPath string, log *logrus.Entry) Persister
	metrics      *metrics.Metrics
	recorder     Recorder
	log          *logger.Logger
	keepFiles    bool
	removeFile   func(name string) error
	now          func() time.Time
}

type Option func(*Converter)

// WithOutputDir sets where <identifier>.json artifacts are written.
func WithOutputDir(dir string) Option {
	return func(c *Converter) { c.outputDir = dir }
}

// WithPersister replaces the file persister for every run.
func WithPersister(p Persister) Option {
	return func(c *Converter) {
		if p != nil {
			c.newPersister = func(string, *logrus.Entry) Persister { return p }
		}
	}
}

// WithTemplate replaces the recipe prompt template.
func WithTemplate(t string) Option {
	return func(c *Converter) {
		if t != "" {
			c.template = t
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Converter) { c.metrics = m }
}

func WithRecorder(r Recorder) Option {
	return func(c *Converter) { c.recorder = r }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Converter) {
		if log != nil {
			c.log = &logger.Logger{Entry: log}
		}
	}
}

// WithKeepFiles leaves the downloaded video and extracted audio on disk.
func WithKeepFiles(keep bool) Option {
	return func(c *Converter) { c.keepFiles = keep }
}

func New(f Fetcher, e Extractor, t Transcriber, g Generator, opts ...Option) *Converter {
	c := &Converter{
		fetcher:     f,
		extractor:   e,
		transcriber: t,
		generator:   g,
		template:    prompt.Recipe,
		log:         logger.New(),
		removeFile:  os.Remove,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.newPersister == nil {
		dir := c.outputDir
		c.newPersister = func(outputPath string, log *logrus.Entry) Persister {
			return artifact.NewPersister(dir, artifact.WithOutputPath(outputPath), artifact.WithLogger(log))
		}
	}
	return c
}

// Convert runs one conversion of input. A soft stage failure returns an
// aborted Outcome and a nil error; a hard failure returns a *StageError.
func (c *Converter) Convert(ctx context.Context, input string, opts Options) (Outcome, error) {
	rs := &RunState{
		RunID:     uuid.NewString(),
		Input:     input,
		State:     StateStart,
		StartedAt: c.now(),
	}
	r := &run{
		c:         c,
		rs:        rs,
		opts:      opts,
		log:       c.log.WithRun(rs.RunID, input),
		durations: make(map[Stage]time.Duration, len(Stages())),
	}
	r.log.Info("conversion started")

	out, err := r.execute(ctx)
	c.finish(ctx, r, out, err)
	return out, err
}

func (c *Converter) finish(ctx context.Context, r *run, out Outcome, err error) {
	label := out.State.String()
	if err != nil {
		label = "failed"
	}
	c.metrics.RecordRun(label)
	if out.OK() {
		c.metrics.RecordArtifact(string(out.Artifact.Kind))
	}

	fields := logrus.Fields{
		"state":       label,
		"identifier":  out.Identifier,
		"duration_ms": c.now().Sub(r.rs.StartedAt).Milliseconds(),
	}
	switch {
	case err != nil:
		r.log.WithFields(fields).WithError(err).Error("conversion failed")
	case !out.OK():
		r.log.WithFields(fields).WithField("abort_stage", out.AbortStage).
			WithField("reason", out.AbortReason).Warn("conversion aborted")
	default:
		r.log.WithFields(fields).WithField("artifact", out.Artifact.Path).Info("conversion finished")
	}

	if c.recorder == nil {
		return
	}
	rec := history.Run{
		RunID:        out.RunID,
		Identifier:   out.Identifier,
		Input:        r.rs.Input,
		State:        label,
		AbortStage:   string(out.AbortStage),
		AbortReason:  out.AbortReason,
		ArtifactKind: string(out.Artifact.Kind),
		ArtifactPath: out.Artifact.Path,
		Model:        r.opts.Model,
		StartedAt:    r.rs.StartedAt,
		FinishedAt:   c.now(),
	}
	if recErr := c.recorder.Record(context.WithoutCancel(ctx), rec); recErr != nil {
		r.log.WithError(recErr).Warn("failed to record run history")
	}
}

// run carries one conversion through the stages.
type run struct {
	c         *Converter
	rs        *RunState
	opts      Options
	log       *logrus.Entry
	durations map[Stage]time.Duration
}

func (r *run) execute(ctx context.Context) (Outcome, error) {
	c, rs := r.c, r.rs

	rs.Identifier = shortcode.Resolve(rs.Input)
	if rs.Identifier != "" && !shortcode.IsCanonical(rs.Input) {
		r.log.WithField("identifier", rs.Identifier).Warn("input is not a recognised reel url, using it unchanged")
	}
	r.log = r.log.WithField("identifier", rs.Identifier)
	r.advance(StateResolved)

	res := r.step(ctx, StageFetch, func() error {
		if rs.Identifier == "" {
			return ErrEmptyIdentifier
		}
		if !shortcode.IsFileSafe(rs.Identifier) {
			return fmt.Errorf("%w: %q", ErrUnsafeIdentifier, rs.Identifier)
		}
		video, err := c.fetcher.Fetch(ctx, rs.Identifier)
		if err != nil {
			return err
		}
		rs.VideoPath, rs.Description = video.Path, video.Caption
		return nil
	})
	if res.Kind != ResultSuccess {
		return r.fail(res)
	}
	r.advance(StateFetched)

	res = r.step(ctx, StageExtract, func() error {
		audio, err := c.extractor.Extract(ctx, rs.VideoPath)
		rs.AudioPath = audio
		return err
	})
	if res.Kind != ResultSuccess {
		r.cleanup(rs.VideoPath)
		return r.fail(res)
	}
	r.advance(StateAudioExtracted)

	res = r.step(ctx, StageTranscribe, func() error {
		text, err := c.transcriber.Transcribe(ctx, rs.AudioPath)
		rs.Transcript = text
		return err
	})
	r.cleanup(rs.AudioPath)
	if res.Kind != ResultSuccess {
		return r.fail(res)
	}
	r.advance(StateTranscribed)

	res = r.step(ctx, StagePrompt, func() error {
		rs.Prompt = prompt.Compose(c.template, rs.Description, rs.Transcript)
		return nil
	})
	if res.Kind != ResultSuccess {
		return r.fail(res)
	}
	r.advance(StatePromptBuilt)

	res = r.step(ctx, StageGenerate, func() error {
		switch {
		case strings.TrimSpace(r.opts.Model) == "":
			return ErrMissingModel
		case strings.TrimSpace(r.opts.APIKey) == "":
			return ErrMissingAPIKey
		}
		text, err := c.generator.Generate(ctx, rs.Prompt, r.opts.Model, r.opts.APIKey)
		if err != nil {
			return err
		}
		if strings.TrimSpace(text) == "" {
			return ErrEmptyGeneration
		}
		rs.GeneratedText = text
		return nil
	})
	if res.Kind != ResultSuccess {
		return r.fail(res)
	}
	r.advance(StateGenerated)

	var art artifact.Artifact
	res = r.step(ctx, StagePersist, func() error {
		var err error
		art, err = c.newPersister(r.opts.OutputPath, r.log).Persist(rs.GeneratedText, rs.Identifier)
		return err
	})
	if res.Kind != ResultSuccess {
		return r.fail(res)
	}
	r.advance(StatePersisted)

	out := r.outcome()
	out.Text = rs.GeneratedText
	out.Artifact = art
	return out, nil
}

// step times fn and normalises its error through the stage policy.
func (r *run) step(ctx context.Context, stage Stage, fn func() error) StageResult {
	start := time.Now()
	err := fn()
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	res := classify(ctx, stage, err, time.Since(start))
	r.durations[stage] = res.Duration

	result := metrics.ResultSuccess
	switch res.Kind {
	case ResultSoft:
		result = metrics.ResultAborted
	case ResultHard:
		result = metrics.ResultFailed
	}
	r.c.metrics.RecordStage(string(stage), result, res.Duration)

	log := r.log.WithFields(logrus.Fields{
		"stage":       stage,
		"duration_ms": res.Duration.Milliseconds(),
	})
	if err != nil {
		log.WithError(err).WithField("result", res.Kind.String()).Warn("stage failed")
	} else {
		log.Debug("stage done")
	}
	return res
}

func (r *run) advance(s State) {
	r.rs.State = s
	if r.opts.OnStage != nil {
		r.opts.OnStage(s)
	}
}

func (r *run) fail(res StageResult) (Outcome, error) {
	r.rs.AbortStage = res.Stage
	if res.Err != nil {
		r.rs.AbortReason = res.Err.Error()
	}
	r.advance(StateAborted)
	out := r.outcome()
	if res.Kind == ResultHard {
		return out, &StageError{Stage: res.Stage, Err: res.Err}
	}
	return out, nil
}

func (r *run) outcome() Outcome {
	return Outcome{
		RunID:       r.rs.RunID,
		State:       r.rs.State,
		Identifier:  r.rs.Identifier,
		Prompt:      r.rs.Prompt,
		AbortStage:  r.rs.AbortStage,
		AbortReason: r.rs.AbortReason,
		Durations:   r.durations,
	}
}

// cleanup removes an intermediate media file unless files are kept.
func (r *run) cleanup(path string) {
	if r.c.keepFiles || path == "" {
		return
	}
	if err := r.c.removeFile(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		r.log.WithError(err).WithField("path", path).Warn("failed to remove temp file")
	}
}
