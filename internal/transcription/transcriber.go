// Package transcription turns an audio file into plain text.
package transcription

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// Transcriber converts an audio file into a transcript. An empty transcript
// is a valid result.
type Transcriber interface {
	Transcribe(ctx context.Context, audioPath string) (string, error)
}

// ModelSize is a whisper model size.
type ModelSize string

const (
	ModelTiny    ModelSize = "tiny"
	ModelBase    ModelSize = "base"
	ModelSmall   ModelSize = "small"
	ModelMedium  ModelSize = "medium"
	ModelLargeV3 ModelSize = "large-v3"

	DefaultModelSize = ModelMedium
	DefaultBeamSize  = 5
)

// ModelSizes lists the accepted sizes, smallest first.
func ModelSizes() []ModelSize {
	return []ModelSize{ModelTiny, ModelBase, ModelSmall, ModelMedium, ModelLargeV3}
}

func ParseModelSize(s string) (ModelSize, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultModelSize, nil
	}
	for _, m := range ModelSizes() {
		if string(m) == s {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown whisper model size %q", s)
}

// Mock returns a fixed transcript without touching the audio.
type Mock struct {
	Text string
}

func (m Mock) Transcribe(ctx context.Context, _ string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return m.Text, nil
}

// MockEnabled reports whether USE_MOCK_TRANSCRIBE=true.
func MockEnabled() bool {
	return os.Getenv("USE_MOCK_TRANSCRIBE") == "true"
}

// MockTranscript is what the mock transcriber says in offline demos.
const MockTranscript = "MOCK TRANSCRIPT: boil water, add pasta, cook for ten minutes and finish with butter and parmesan."
