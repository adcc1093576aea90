package generation

import (
	"context"
)

// Input carries the parameters for one plan generation call.
type Input struct {
	Topic         string
	SkillLevel    string
	WeeklyHours   int
	LearningStyle string
	// Overrides carries regeneration instructions (e.g. "more practical
	// exercises"); empty for first-time generation.
	Overrides string
}

// ChunkKind discriminates the structured chunks a provider stream yields.
type ChunkKind string

// Chunk kinds, in the order a well-formed stream produces them:
// module headers, each followed by its tasks, then exactly one terminal
// summary chunk.
const (
	ChunkModule   ChunkKind = "module"
	ChunkTask     ChunkKind = "task"
	ChunkTerminal ChunkKind = "terminal"
)

// Chunk is one structured unit of provider output.
type Chunk struct {
	Kind ChunkKind

	// Module fields, set when Kind == ChunkModule.
	ModuleTitle       string
	ModuleDescription string
	Week              int

	// Task fields, set when Kind == ChunkTask. A task belongs to the most
	// recently emitted module.
	TaskTitle        string
	TaskDescription  string
	EstimatedMinutes int

	// Terminal fields, set when Kind == ChunkTerminal.
	ModulesTotal int
	TasksTotal   int
}

// Metadata describes how the provider prepared the request input.
type Metadata struct {
	// InputTruncated records that the input was clipped to the provider's
	// limit before the call. Inputs are never silently re-sent in altered
	// form on retry; the flag makes the clipping auditable.
	InputTruncated bool
	// InputNormalized records that whitespace/casing normalization changed
	// the input before the call.
	InputNormalized bool
	// PromptFingerprint is a stable digest of the final prompt.
	PromptFingerprint string
}

// Stream is a cancellable, finite, non-restartable sequence of structured
// chunks produced by one generation call.
//
// Chunks yields the provider output; the channel is closed after the
// terminal chunk or on failure. After the channel closes, Err reports how
// the stream ended: nil for a complete stream, or one of this package's
// sentinel errors. Close abandons the stream and releases the underlying
// connection; it is safe to call at any time and more than once.
type Stream interface {
	Chunks() <-chan Chunk
	Err() error
	Close()
}

// PlanGenerator is the contract the orchestrator requires of a generation
// provider. Implementations surface failures as this package's typed
// errors so the orchestrator can classify them without provider-specific
// knowledge.
type PlanGenerator interface {
	// Generate starts one generation call and returns its output stream
	// along with metadata about input preparation. The stream honors ctx:
	// cancelling the context abandons the call. Admission-level failures
	// (bad config, unreachable provider) are returned immediately.
	Generate(ctx context.Context, input Input) (Stream, Metadata, error)
}
