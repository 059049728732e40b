package generator

import (
	"fmt"
	"strings"
)

// Model is a Gemini model identifier.
type Model string

const (
	ModelGemini20Flash     Model = "gemini-2.0-flash"
	ModelGemini25FlashLite Model = "gemini-2.5-flash-lite"

	DefaultModel = ModelGemini20Flash
)

func Models() []Model {
	return []Model{ModelGemini20Flash, ModelGemini25FlashLite}
}

// ParseModel accepts a known model name; empty selects DefaultModel.
func ParseModel(s string) (Model, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultModel, nil
	}
	for _, m := range Models() {
		if string(m) == s {
			return m, nil
		}
	}
	names := make([]string, 0, len(Models()))
	for _, m := range Models() {
		names = append(names, string(m))
	}
	return "", fmt.Errorf("unknown model %q (want one of %s)", s, strings.Join(names, ", "))
}
