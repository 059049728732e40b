package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"reel-recipe-go/internal/artifact"
	"reel-recipe-go/internal/config"
	"reel-recipe-go/internal/export"
	"reel-recipe-go/internal/generator"
	"reel-recipe-go/internal/logger"
	"reel-recipe-go/internal/metrics"
	"reel-recipe-go/internal/pipeline"
	"reel-recipe-go/internal/recipe"
)

// errAborted makes a soft abort exit non-zero.
var errAborted = errors.New("conversion aborted")

var errNoAPIKey = errors.New("an API key is required: pass --api-key or set GOOGLE_AI_API_KEY")

// mockAPIKey satisfies the key precondition when the mock generator is used.
const mockAPIKey = "mock"

type convertFlags struct {
	apiKey      string
	model       string
	output      string
	xlsx        bool
	workDir     string
	keepFiles   bool
	metricsFile string
}

func (f *convertFlags) register(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringVar(&f.apiKey, "api-key", "", "Google AI API key (default from GOOGLE_AI_API_KEY, CRTR_API_KEY or config)")
	flags.StringVarP(&f.model, "model", "m", "", fmt.Sprintf("Gemini model: %s (default %s)", modelNames(), generator.DefaultModel))
	flags.StringVarP(&f.output, "output", "o", "", "Output path for the recipe JSON (default <identifier>.json in the output dir)")
	flags.BoolVar(&f.xlsx, "xlsx", false, "Also export the recipe as <name>.xlsx")
	flags.StringVar(&f.workDir, "work-dir", "", "Directory for downloaded video and audio")
	flags.BoolVar(&f.keepFiles, "keep-files", false, "Keep downloaded video and extracted audio")
	flags.StringVar(&f.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file after the run")
}

// apply overlays explicitly set flags on cfg.
func (f *convertFlags) apply(cmd *cobra.Command, cfg *config.Config) error {
	if f.apiKey != "" {
		cfg.LLM.APIKey = strings.TrimSpace(f.apiKey)
	}
	if f.model != "" {
		cfg.LLM.Model = strings.TrimSpace(f.model)
	}
	if f.workDir != "" {
		dir, err := config.ExpandPath(f.workDir)
		if err != nil {
			return fmt.Errorf("--work-dir: %w", err)
		}
		cfg.Paths.WorkDir = dir
	}
	if cmd.Flags().Changed("keep-files") {
		cfg.Media.KeepFiles = f.keepFiles
	}
	if f.metricsFile != "" {
		cfg.Metrics.TextfilePath = f.metricsFile
	}
	return cfg.Validate()
}

// apiKey returns the credential for the run. The mock generator runs offline
// without one.
func apiKey(cfg *config.Config) (string, error) {
	if cfg.LLM.APIKey != "" {
		return cfg.LLM.APIKey, nil
	}
	if cfg.LLM.Mock {
		return mockAPIKey, nil
	}
	return "", errNoAPIKey
}

func newConvertCommand(ctx *commandContext) *cobra.Command {
	var flags convertFlags
	cmd := &cobra.Command{
		Use:   "convert <reel-url-or-shortcode>",
		Short: "Convert a reel into a recipe JSON file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConvert(cmd, ctx, &flags, args[0])
		},
	}
	flags.register(cmd)
	return cmd
}

func runConvert(cmd *cobra.Command, ctx *commandContext, flags *convertFlags, input string) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := flags.apply(cmd, cfg); err != nil {
		return err
	}
	key, err := apiKey(cfg)
	if err != nil {
		return err
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	log := logger.New()
	m := metrics.New()
	st, err := buildStack(cfg, m, log.Entry)
	if err != nil {
		return err
	}
	defer st.Close()

	out := cmd.OutOrStdout()
	progress := newProgress(cmd.ErrOrStderr())
	outcome, convErr := st.converter.Convert(cmd.Context(), input, pipeline.Options{
		Model:      cfg.LLM.Model,
		APIKey:     key,
		OutputPath: flags.output,
		OnStage:    progress.stage,
	})
	progress.done()

	if cfg.Metrics.TextfilePath != "" {
		if err := m.WriteTextfile(cfg.Metrics.TextfilePath); err != nil {
			log.WithError(err).Warn("failed to write metrics file")
		}
	}

	if convErr != nil {
		return convErr
	}
	if !outcome.OK() {
		fmt.Fprintf(cmd.ErrOrStderr(), "Aborted at %s: %s\n", outcome.AbortStage, outcome.AbortReason)
		return errAborted
	}

	printOutcome(out, outcome)
	if flags.xlsx && outcome.Artifact.IsDocument() {
		writeSpreadsheet(out, cmd.ErrOrStderr(), log.Entry, outcome.Artifact.Path)
	}
	return nil
}

// writeSpreadsheet exports the saved document as a workbook next to it. A
// failed export is reported as a warning.
func writeSpreadsheet(out, errOut io.Writer, log *logrus.Entry, documentPath string) {
	xlsxPath := export.PathFor(documentPath)
	if err := export.FromDocument(documentPath, xlsxPath); err != nil {
		log.WithError(err).WithField("path", xlsxPath).Warn("xlsx export failed")
		fmt.Fprintf(errOut, "Spreadsheet not written: %v\n", err)
		return
	}
	fmt.Fprintf(out, "Spreadsheet: %s\n", xlsxPath)
}

func printOutcome(w io.Writer, o pipeline.Outcome) {
	if o.Artifact.Kind == artifact.KindRaw {
		fmt.Fprintf(w, "Model output was not valid JSON; saved raw text to %s\n", o.Artifact.Path)
		return
	}
	fmt.Fprintf(w, "Recipe saved to %s\n", o.Artifact.Path)

	data, err := os.ReadFile(o.Artifact.Path)
	if err != nil {
		return
	}
	r, err := recipe.Decode(data)
	if err != nil {
		fmt.Fprintf(w, "Summary unavailable: %v\n", err)
		return
	}
	s := recipe.Summarize(r)
	fmt.Fprintln(w, renderKeyValues([][2]string{
		{"Title", s.Title},
		{"Meal type", s.MealType},
		{"Portions", fmt.Sprint(s.Portions)},
		{"Ingredients", fmt.Sprintf("%d (%d Danish substitutions)", s.IngredientCount, s.SubstitutionCount)},
		{"Steps", fmt.Sprint(s.StepCount)},
		{"Kcal per portion", fmt.Sprintf("%.0f", s.KcalPerPortion)},
	}))
}

// progress prints stage transitions on a terminal and stays quiet otherwise.
type progress struct {
	w       io.Writer
	enabled bool
	start   time.Time
}

func newProgress(w io.Writer) *progress {
	enabled := false
	if f, ok := w.(*os.File); ok {
		fd := f.Fd()
		enabled = isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	}
	return &progress{w: w, enabled: enabled, start: time.Now()}
}

func (p *progress) stage(s pipeline.State) {
	if !p.enabled {
		return
	}
	fmt.Fprintf(p.w, "  %-16s %6.1fs\n", s, time.Since(p.start).Seconds())
}

func (p *progress) done() {
	if p.enabled {
		fmt.Fprintln(p.w)
	}
}

func modelNames() string {
	names := make([]string, 0, len(generator.Models()))
	for _, m := range generator.Models() {
		names = append(names, string(m))
	}
	return strings.Join(names, ", ")
}

