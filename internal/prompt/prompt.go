package prompt

import "strings"

// Placeholders substituted by Compose.
const (
	DescriptionPlaceholder = "{description}"
	TranscriptPlaceholder  = "{transcript}"
)

// Compose renders template with the trimmed description and transcript.
// Internal whitespace is preserved. template must contain both placeholders;
// a missing placeholder silently drops that input.
func Compose(template, description, transcript string) string {
	r := strings.NewReplacer(
		DescriptionPlaceholder, strings.TrimSpace(description),
		TranscriptPlaceholder, strings.TrimSpace(transcript),
	)
	return r.Replace(template)
}

// BuildRecipe composes the default recipe prompt.
func BuildRecipe(description, transcript string) string {
	return Compose(Recipe, description, transcript)
}
