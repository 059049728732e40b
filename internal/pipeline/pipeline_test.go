package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"reel-recipe-go/internal/artifact"
	"reel-recipe-go/internal/audio"
	"reel-recipe-go/internal/fetcher"
	"reel-recipe-go/internal/history"
	"reel-recipe-go/internal/metrics"
)

// FakeFetcher writes <dir>/<id>.mp4 and returns caption.
type FakeFetcher struct {
	dir     string
	caption string
	err     error
	mu      sync.Mutex
	calls   []string
}

func (f *FakeFetcher) Fetch(ctx context.Context, id string) (fetcher.Video, error) {
	f.mu.Lock()
	f.calls = append(f.calls, id)
	f.mu.Unlock()
	if f.err != nil {
		return fetcher.Video{}, f.err
	}
	path := filepath.Join(f.dir, id+".mp4")
	if err := os.WriteFile(path, []byte("video"), 0o644); err != nil {
		return fetcher.Video{}, err
	}
	return fetcher.Video{Shortcode: id, Path: path, Caption: f.caption}, nil
}

// FakeExtractor replaces the video with an mp3 next to it.
type FakeExtractor struct {
	err   error
	calls int
	mu    sync.Mutex
}

func (f *FakeExtractor) Extract(_ context.Context, videoPath string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.err != nil {
		return "", f.err
	}
	out := audio.OutputPath(videoPath)
	if err := os.WriteFile(out, []byte("audio"), 0o644); err != nil {
		return "", err
	}
	return out, os.Remove(videoPath)
}

type FakeTranscriber struct {
	text     string
	err      error
	mu       sync.Mutex
	sawAudio []string
}

func (f *FakeTranscriber) Transcribe(_ context.Context, audioPath string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, err := os.Stat(audioPath); err == nil {
		f.sawAudio = append(f.sawAudio, audioPath)
	}
	return f.text, f.err
}

type FakeGenerator struct {
	text    string
	err     error
	mu      sync.Mutex
	prompts []string
	keys    []string
}

func (f *FakeGenerator) Generate(_ context.Context, prompt, _, apiKey string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	f.keys = append(f.keys, apiKey)
	return f.text, f.err
}

type FakeRecorder struct {
	mu   sync.Mutex
	runs []history.Run
}

func (f *FakeRecorder) Record(_ context.Context, run history.Run) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, run)
	return nil
}

type failingPersister struct{}

func (failingPersister) Persist(string, string) (artifact.Artifact, error) {
	return artifact.Artifact{}, errors.New("disk full")
}

const recipeJSON = `{"title":"Pasta","portions":2,"ingredients":[{"name":"Pasta","quantity":200,"unit":"g"}]}`

type harness struct {
	outDir      string
	workDir     string
	fetcher     *FakeFetcher
	extractor   *FakeExtractor
	transcriber *FakeTranscriber
	generator   *FakeGenerator
	recorder    *FakeRecorder
	metrics     *metrics.Metrics
	hook        *logtest.Hook
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	work := t.TempDir()
	return &harness{
		outDir:      t.TempDir(),
		workDir:     work,
		fetcher:     &FakeFetcher{dir: work, caption: "Pasta dish"},
		extractor:   &FakeExtractor{},
		transcriber: &FakeTranscriber{text: "boil water, add pasta"},
		generator:   &FakeGenerator{text: recipeJSON},
		recorder:    &FakeRecorder{},
		metrics:     metrics.New(),
	}
}

func (h *harness) converter(opts ...Option) *Converter {
	l, hook := logtest.NewNullLogger()
	l.SetLevel(logrus.DebugLevel)
	h.hook = hook
	base := []Option{
		WithOutputDir(h.outDir),
		WithMetrics(h.metrics),
		WithRecorder(h.recorder),
		WithLogger(logrus.NewEntry(l)),
	}
	return New(h.fetcher, h.extractor, h.transcriber, h.generator, append(base, opts...)...)
}

func defaultOptions() Options {
	return Options{Model: "gemini-2.0-flash", APIKey: "test-key"}
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestConvertEndToEnd(t *testing.T) {
	h := newHarness(t)
	var states []State
	opts := defaultOptions()
	opts.OnStage = func(s State) { states = append(states, s) }

	out, err := h.converter().Convert(context.Background(), "https://www.instagram.com/reel/ABC123xyz/?igsh=abc", opts)
	require.NoError(t, err)

	assert.True(t, out.OK())
	assert.Equal(t, StatePersisted, out.State)
	assert.Equal(t, "ABC123xyz", out.Identifier)
	assert.Equal(t, recipeJSON, out.Text)
	assert.NotEmpty(t, out.RunID)
	assert.Equal(t, []string{"ABC123xyz"}, h.fetcher.calls)

	require.Len(t, h.generator.prompts, 1)
	assert.Equal(t, out.Prompt, h.generator.prompts[0])
	assert.Contains(t, out.Prompt, "Pasta dish")
	assert.Contains(t, out.Prompt, "boil water, add pasta")
	assert.NotContains(t, out.Prompt, "{transcript}")
	assert.Equal(t, []string{"test-key"}, h.generator.keys)

	path := filepath.Join(h.outDir, "ABC123xyz.json")
	assert.Equal(t, artifact.KindDocument, out.Artifact.Kind)
	assert.Equal(t, path, out.Artifact.Path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"title\": \"Pasta\",\n  \"portions\": 2,\n  \"ingredients\": [\n    {\n      \"name\": \"Pasta\",\n      \"quantity\": 200,\n      \"unit\": \"g\"\n    }\n  ]\n}\n", string(data))
	assert.Equal(t, []string{"ABC123xyz.json"}, listDir(t, h.outDir))

	assert.Len(t, h.transcriber.sawAudio, 1)
	assert.Empty(t, listDir(t, h.workDir), "video and audio are removed")

	assert.Equal(t, []State{
		StateResolved, StateFetched, StateAudioExtracted, StateTranscribed,
		StatePromptBuilt, StateGenerated, StatePersisted,
	}, states)
	for _, s := range Stages() {
		assert.Contains(t, out.Durations, s)
	}

	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("persisted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ArtifactsTotal.WithLabelValues("document")))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StageTotal.WithLabelValues("generate", metrics.ResultSuccess)))

	require.Len(t, h.recorder.runs, 1)
	rec := h.recorder.runs[0]
	assert.Equal(t, out.RunID, rec.RunID)
	assert.Equal(t, "persisted", rec.State)
	assert.Equal(t, "document", rec.ArtifactKind)
	assert.Equal(t, "gemini-2.0-flash", rec.Model)
}

func TestConvertBareShortcode(t *testing.T) {
	h := newHarness(t)
	out, err := h.converter().Convert(context.Background(), "  ABC123xyz ", defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, "ABC123xyz", out.Identifier)
	assert.FileExists(t, filepath.Join(h.outDir, "ABC123xyz.json"))
}

func TestConvertFetchFailureIsSoft(t *testing.T) {
	h := newHarness(t)
	h.fetcher.err = fmt.Errorf("ABC: %w", fetcher.ErrNotVideo)

	out, err := h.converter().Convert(context.Background(), "https://www.instagram.com/p/ABC/", defaultOptions())
	require.NoError(t, err)

	assert.False(t, out.OK())
	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, StageFetch, out.AbortStage)
	assert.Contains(t, out.AbortReason, "not a video")
	assert.Empty(t, out.Text)
	assert.Empty(t, listDir(t, h.outDir))
	assert.Zero(t, h.extractor.calls)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.StageTotal.WithLabelValues("fetch", metrics.ResultAborted)))

	require.Len(t, h.recorder.runs, 1)
	assert.Equal(t, "aborted", h.recorder.runs[0].State)
	assert.Equal(t, "fetch", h.recorder.runs[0].AbortStage)
}

func TestConvertEmptyInputAbortsAtFetch(t *testing.T) {
	h := newHarness(t)
	out, err := h.converter().Convert(context.Background(), "   ", defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StateAborted, out.State)
	assert.Equal(t, StageFetch, out.AbortStage)
	assert.Equal(t, ErrEmptyIdentifier.Error(), out.AbortReason)
	assert.Empty(t, h.fetcher.calls)
}

func TestConvertExtractFailureIsHard(t *testing.T) {
	h := newHarness(t)
	h.extractor.err = fmt.Errorf("x.mp4: %w", audio.ErrNoAudioTrack)

	out, err := h.converter().Convert(context.Background(), "ABC123xyz", defaultOptions())
	require.Error(t, err)

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageExtract, stageErr.Stage)
	assert.ErrorIs(t, err, audio.ErrNoAudioTrack)
	assert.Equal(t, StateAborted, out.State)
	assert.Empty(t, listDir(t, h.outDir))
	assert.Empty(t, listDir(t, h.workDir), "downloaded video is removed")
	assert.Equal(t, "failed", h.recorder.runs[0].State)
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("failed")))
}

func TestConvertTranscribeFailureDeletesAudio(t *testing.T) {
	h := newHarness(t)
	h.transcriber.err = errors.New("whisper crashed")

	_, err := h.converter().Convert(context.Background(), "ABC123xyz", defaultOptions())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageTranscribe, stageErr.Stage)
	assert.Len(t, h.transcriber.sawAudio, 1)
	assert.Empty(t, listDir(t, h.workDir))
	assert.Empty(t, h.generator.prompts)
}

func TestConvertEmptyTranscriptIsValid(t *testing.T) {
	h := newHarness(t)
	h.transcriber.text = ""

	out, err := h.converter().Convert(context.Background(), "ABC123xyz", defaultOptions())
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Contains(t, out.Prompt, "Pasta dish")
}

func TestConvertGeneratePreconditions(t *testing.T) {
	tests := []struct {
		name   string
		opts   Options
		reason error
	}{
		{name: "missing model", opts: Options{APIKey: "k"}, reason: ErrMissingModel},
		{name: "missing key", opts: Options{Model: "gemini-2.0-flash", APIKey: "  "}, reason: ErrMissingAPIKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			out, err := h.converter().Convert(context.Background(), "ABC123xyz", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, StateAborted, out.State)
			assert.Equal(t, StageGenerate, out.AbortStage)
			assert.Equal(t, tt.reason.Error(), out.AbortReason)
			assert.NotEmpty(t, out.Prompt)
			assert.Empty(t, h.generator.prompts, "generator is not called")
			assert.Empty(t, listDir(t, h.outDir))
		})
	}
}

func TestConvertGenerateFailureIsSoft(t *testing.T) {
	tests := []struct {
		name string
		text string
		err  error
	}{
		{name: "error", err: errors.New("quota exceeded")},
		{name: "empty text", text: "  \n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.generator.text, h.generator.err = tt.text, tt.err

			out, err := h.converter().Convert(context.Background(), "ABC123xyz", defaultOptions())
			require.NoError(t, err)
			assert.Equal(t, StateAborted, out.State)
			assert.Equal(t, StageGenerate, out.AbortStage)
			assert.Empty(t, out.Text)
			assert.Empty(t, listDir(t, h.outDir))
		})
	}
}

func TestConvertRawFallback(t *testing.T) {
	h := newHarness(t)
	h.generator.text = "Here is your recipe: pasta!"

	out, err := h.converter().Convert(context.Background(), "ABC123xyz", defaultOptions())
	require.NoError(t, err)
	assert.True(t, out.OK())
	assert.Equal(t, artifact.KindRaw, out.Artifact.Kind)
	assert.Equal(t, "Here is your recipe: pasta!", out.Text)

	assert.Equal(t, []string{"ABC123xyz_raw.txt"}, listDir(t, h.outDir))
	data, err := os.ReadFile(filepath.Join(h.outDir, "ABC123xyz_raw.txt"))
	require.NoError(t, err)
	assert.Equal(t, "Here is your recipe: pasta!", string(data))
	assert.Equal(t, 1.0, testutil.ToFloat64(h.metrics.ArtifactsTotal.WithLabelValues("raw")))
}

func TestConvertOutputOverride(t *testing.T) {
	h := newHarness(t)
	opts := defaultOptions()
	opts.OutputPath = filepath.Join(h.outDir, "sub", "dinner.json")

	out, err := h.converter().Convert(context.Background(), "ABC123xyz", opts)
	require.NoError(t, err)
	assert.Equal(t, opts.OutputPath, out.Artifact.Path)
	assert.FileExists(t, opts.OutputPath)
	assert.NoFileExists(t, filepath.Join(h.outDir, "ABC123xyz.json"))
}

func TestConvertPersistFailureIsHard(t *testing.T) {
	h := newHarness(t)
	_, err := h.converter(WithPersister(failingPersister{})).Convert(context.Background(), "ABC123xyz", defaultOptions())

	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StagePersist, stageErr.Stage)
	assert.EqualError(t, err, "persist stage: disk full")
}

func TestConvertCancellationIsHardEvenForSoftStage(t *testing.T) {
	h := newHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	h.fetcher.err = ctx.Err()

	_, err := h.converter().Convert(ctx, "ABC123xyz", defaultOptions())
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	assert.Equal(t, StageFetch, stageErr.Stage)
	assert.ErrorIs(t, err, context.Canceled)
	require.Len(t, h.recorder.runs, 1, "interrupted runs are still recorded")
}

func TestConvertKeepFiles(t *testing.T) {
	h := newHarness(t)
	_, err := h.converter(WithKeepFiles(true)).Convert(context.Background(), "ABC123xyz", defaultOptions())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(h.workDir, "ABC123xyz.mp3"))
}

func TestConvertWarnsOnNonCanonicalInput(t *testing.T) {
	h := newHarness(t)
	c := h.converter()
	out, err := c.Convert(context.Background(), "https://example.com/some/path", defaultOptions())
	require.NoError(t, err)
	assert.Equal(t, StageFetch, out.AbortStage)

	var warned bool
	for _, e := range h.hook.AllEntries() {
		if e.Level == logrus.WarnLevel && e.Message == "input is not a recognised reel url, using it unchanged" {
			warned = true
		}
	}
	assert.True(t, warned)
}

func TestConvertPathLikeIdentifierAbortsAtFetch(t *testing.T) {
	h := newHarness(t)
	for _, input := range []string{"../../escaped", "https://instagram.com/../x", "https://example.com/a/b"} {
		out, err := h.converter().Convert(context.Background(), input, defaultOptions())
		require.NoError(t, err, input)
		assert.Equal(t, StateAborted, out.State, input)
		assert.Equal(t, StageFetch, out.AbortStage, input)
		assert.Contains(t, out.AbortReason, ErrUnsafeIdentifier.Error(), input)
	}
	assert.Empty(t, h.fetcher.calls)
	assert.Empty(t, listDir(t, h.outDir))
	assert.NoFileExists(t, filepath.Join(filepath.Dir(h.outDir), "escaped.json"))
}

func TestConverterIsSafeForConcurrentRuns(t *testing.T) {
	h := newHarness(t)
	c := h.converter()

	const n = 8
	var wg sync.WaitGroup
	outcomes := make([]Outcome, n)
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			outcomes[i], errs[i] = c.Convert(context.Background(), fmt.Sprintf("https://www.instagram.com/reel/R%d/", i), defaultOptions())
		}(i)
	}
	wg.Wait()

	seen := map[string]bool{}
	for i := 0; i < n; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, fmt.Sprintf("R%d", i), outcomes[i].Identifier)
		assert.False(t, seen[outcomes[i].RunID], "run ids are unique")
		seen[outcomes[i].RunID] = true
		assert.FileExists(t, filepath.Join(h.outDir, fmt.Sprintf("R%d.json", i)))
	}
	assert.Len(t, h.recorder.runs, n)
	assert.Equal(t, float64(n), testutil.ToFloat64(h.metrics.RunsTotal.WithLabelValues("persisted")))
}
