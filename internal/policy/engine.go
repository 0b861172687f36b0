package policy

import "context"

// Engine is the interface for moderation backends. Engines run only for
// posts the content classifier has already allowed.
type Engine interface {
	// Evaluate checks a post against loaded policies and returns a verdict.
	Evaluate(ctx context.Context, input *EvalInput) (*EvalResult, error)

	// Reload reloads policies from the source file.
	Reload(ctx context.Context) error
}
