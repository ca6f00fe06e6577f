package api

import "context"

// CompletionRequest is one role-structured completion call.
type CompletionRequest struct {
	System      string
	User        string
	MaxTokens   int
	Temperature float64
}

// Completion is the text of a provider reply with its token usage.
type Completion struct {
	Text string
	// Tokens is the total token count reported by the provider, 0 if unknown.
	Tokens int64
}

// Completer performs single completion calls against a model provider.
type Completer interface {
	// Complete sends req and returns the reply text.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
	// Probe checks that the provider accepts the configured credential.
	Probe(ctx context.Context) error
	// Name identifies the provider in logs.
	Name() string
}
