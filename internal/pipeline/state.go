package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// State is the position of one conversion in the pipeline.
type State int

const (
	StateStart State = iota
	StateResolved
	StateFetched
	StateAudioExtracted
	StateTranscribed
	StatePromptBuilt
	StateGenerated
	StatePersisted
	StateAborted
)

var stateNames = [...]string{
	StateStart:          "start",
	StateResolved:       "resolved",
	StateFetched:        "fetched",
	StateAudioExtracted: "audio_extracted",
	StateTranscribed:    "transcribed",
	StatePromptBuilt:    "prompt_built",
	StateGenerated:      "generated",
	StatePersisted:      "persisted",
	StateAborted:        "aborted",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("state(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether no further transition is possible.
func (s State) Terminal() bool {
	return s == StatePersisted || s == StateAborted
}

// Stage names a collaborator step.
type Stage string

const (
	StageFetch      Stage = "fetch"
	StageExtract    Stage = "extract"
	StageTranscribe Stage = "transcribe"
	StagePrompt     Stage = "prompt"
	StageGenerate   Stage = "generate"
	StagePersist    Stage = "persist"
)

// Stages lists the timed stages in execution order.
func Stages() []Stage {
	return []Stage{StageFetch, StageExtract, StageTranscribe, StagePrompt, StageGenerate, StagePersist}
}

// Policy decides what a stage failure does to the run.
type Policy int

const (
	// PolicySoft aborts the run quietly: no result, no error.
	PolicySoft Policy = iota
	// PolicyHard aborts the run and returns a *StageError.
	PolicyHard
)

// StagePolicy is the failure policy per stage. Stages not listed are hard.
var StagePolicy = map[Stage]Policy{
	StageFetch:      PolicySoft,
	StageExtract:    PolicyHard,
	StageTranscribe: PolicyHard,
	StageGenerate:   PolicySoft,
	StagePersist:    PolicyHard,
}

func policyFor(stage Stage) Policy {
	if p, ok := StagePolicy[stage]; ok {
		return p
	}
	return PolicyHard
}

// ResultKind classifies a finished stage.
type ResultKind int

const (
	ResultSuccess ResultKind = iota
	ResultSoft
	ResultHard
)

func (k ResultKind) String() string {
	switch k {
	case ResultSuccess:
		return "success"
	case ResultSoft:
		return "soft"
	case ResultHard:
		return "hard"
	}
	return "unknown"
}

// StageResult is the normalised outcome of one stage.
type StageResult struct {
	Stage    Stage
	Kind     ResultKind
	Err      error
	Duration time.Duration
}

// classify maps a stage error onto the stage policy. Cancellation of ctx is
// always hard.
func classify(ctx context.Context, stage Stage, err error, d time.Duration) StageResult {
	res := StageResult{Stage: stage, Err: err, Duration: d}
	switch {
	case err == nil:
		res.Kind = ResultSuccess
	case ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		res.Kind = ResultHard
	case policyFor(stage) == PolicySoft:
		res.Kind = ResultSoft
	default:
		res.Kind = ResultHard
	}
	return res
}

var (
	ErrEmptyIdentifier  = errors.New("no identifier could be resolved from input")
	ErrUnsafeIdentifier = errors.New("identifier is not a valid file name")
	ErrMissingModel     = errors.New("model name is empty")
	ErrMissingAPIKey    = errors.New("api key is empty")
	ErrEmptyGeneration  = errors.New("model returned empty text")
)

// StageError is a fatal failure of one stage.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
