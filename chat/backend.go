package chat

import "context"

// RequestContext carries the request-scoped fields every backend call
// needs: which compliance operation the question is about, which model
// should answer, and which standard documents to ground the answer on.
type RequestContext struct {
	OperationType string
	ModelID       string
	DocumentIDs   []int64
}

// Backend is the remote boundary the controller consumes. Implementations
// talk to the compliance API over HTTP; tests substitute scripted fakes.
type Backend interface {
	// StreamReply opens a reply stream for message and invokes onChunk for
	// each text fragment, in arrival order, until the stream completes or
	// fails. It blocks until one of the two; cancelling ctx aborts the
	// stream. onChunk is never called after StreamReply returns.
	StreamReply(ctx context.Context, message string, rc RequestContext, onChunk func(fragment string)) error

	// GetReply resolves the full reply text in a single response.
	GetReply(ctx context.Context, message string, rc RequestContext) (string, error)

	// LogExchange records a completed exchange in the backend history log.
	// Best effort: callers swallow the error after logging it.
	LogExchange(ctx context.Context, userMessage, assistantReply string, rc RequestContext) error
}
