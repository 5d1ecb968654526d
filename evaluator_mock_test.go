package statsig

import (
	"context"
	"errors"
)

// mockEvaluator is a mock implementation of evaluator for testing.
type mockEvaluator struct {
	// CheckGatesFunc is called when CheckGates is called.
	// If nil, CheckGates returns an empty map and nil error.
	CheckGatesFunc func(ctx context.Context, names []string, user User) (map[string]bool, error)
	// GetConfigEvaluationsFunc is called when GetConfigEvaluations is called.
	// If nil, GetConfigEvaluations returns an empty map and nil error.
	GetConfigEvaluationsFunc func(ctx context.Context, names []string, user User) (map[string]ConfigEvaluation, error)
	// CloseFunc is called when Close is called. If nil, Close returns nil.
	CloseFunc func() error

	// closeCalled tracks if Close was called.
	closeCalled bool
	// checkGatesCalls tracks all calls to CheckGates.
	checkGatesCalls []mockEvaluateCall
	// getConfigCalls tracks all calls to GetConfigEvaluations.
	getConfigCalls []mockEvaluateCall
}

// mockEvaluateCall records the arguments to an evaluation call.
type mockEvaluateCall struct {
	Names []string
	User  User
}

// CheckGates implements evaluator.
func (m *mockEvaluator) CheckGates(ctx context.Context, names []string, user User) (map[string]bool, error) {
	m.checkGatesCalls = append(m.checkGatesCalls, mockEvaluateCall{Names: names, User: user})
	if m.CheckGatesFunc != nil {
		return m.CheckGatesFunc(ctx, names, user)
	}
	return map[string]bool{}, nil
}

// GetConfigEvaluations implements evaluator.
func (m *mockEvaluator) GetConfigEvaluations(ctx context.Context, names []string, user User) (map[string]ConfigEvaluation, error) {
	m.getConfigCalls = append(m.getConfigCalls, mockEvaluateCall{Names: names, User: user})
	if m.GetConfigEvaluationsFunc != nil {
		return m.GetConfigEvaluationsFunc(ctx, names, user)
	}
	return map[string]ConfigEvaluation{}, nil
}

// Close implements evaluator.
func (m *mockEvaluator) Close() error {
	m.closeCalled = true
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// Verify mockEvaluator implements evaluator.
var _ evaluator = (*mockEvaluator)(nil)

// Common error for testing.
var errMockEvaluate = errors.New("mock evaluate error")

// configResult returns a GetConfigEvaluationsFunc answering with evaluations keyed by name.
func configResult(evaluations ...ConfigEvaluation) func(context.Context, []string, User) (map[string]ConfigEvaluation, error) {
	return func(_ context.Context, _ []string, _ User) (map[string]ConfigEvaluation, error) {
		results := make(map[string]ConfigEvaluation, len(evaluations))
		for _, evaluation := range evaluations {
			results[evaluation.Name] = evaluation
		}
		return results, nil
	}
}
