package ai

import "context"

// TextGenerator generates text from a system (persona) instruction and a
// user prompt. Implementations enforce their own output-length cap.
type TextGenerator interface {
	GenerateText(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}
