package statsig

import "context"

// evaluator is the part of [Client] the provider depends on.
// It lets tests substitute the remote client.
type evaluator interface {
	// CheckGates evaluates the given gates for the given user.
	CheckGates(ctx context.Context, names []string, user User) (map[string]bool, error)
	// GetConfigEvaluations evaluates the given dynamic configs for the given user.
	GetConfigEvaluations(ctx context.Context, names []string, user User) (map[string]ConfigEvaluation, error)
	// Close stops the client.
	Close() error
}

var _ evaluator = (*Client)(nil)
