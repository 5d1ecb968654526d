package statsig

import (
	"context"
	"testing"

	"github.com/goccy/go-json"
	of "github.com/open-feature/go-sdk/openfeature"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// withMockEvaluator makes the provider use mock instead of a remote client.
func withMockEvaluator(mock *mockEvaluator) Option {
	return func(c *Config) {
		c.testEvaluator = mock
	}
}

// newTestProvider creates a provider with a mock evaluator for testing.
func newTestProvider(t *testing.T, mock *mockEvaluator) *Provider {
	t.Helper()

	provider, err := NewProvider(context.Background(), "secret-test-key", withMockEvaluator(mock))
	require.NoError(t, err)
	require.NoError(t, provider.Init(of.EvaluationContext{}))
	return provider
}

// assertResolution checks the error and reason of a resolution detail.
func assertResolution(t *testing.T, detail of.ProviderResolutionDetail, expectedCode of.ErrorCode, reason of.Reason) {
	t.Helper()

	if expectedCode != "" {
		assert.NotEqual(t, of.ResolutionError{}, detail.ResolutionError, "expected a resolution error")
		assert.Contains(t, detail.ResolutionError.Error(), string(expectedCode))
	} else {
		assert.Equal(t, of.ResolutionError{}, detail.ResolutionError, "expected no resolution error")
	}
	if reason != "" {
		assert.Equal(t, reason, detail.Reason)
	}
}

func TestNewProvider(t *testing.T) {
	tests := []struct {
		name          string
		apiKey        string
		options       []Option
		expectError   bool
		errorContains string
	}{
		{
			name:   "valid api key",
			apiKey: "secret-key",
		},
		{
			name:          "empty api key",
			apiKey:        "",
			expectError:   true,
			errorContains: "API key cannot be empty",
		},
		{
			name:          "zero batch size",
			apiKey:        "secret-key",
			options:       []Option{WithBatchSize(0)},
			expectError:   true,
			errorContains: "Batch size must be greater than 0",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			options := append([]Option{withMockEvaluator(&mockEvaluator{})}, tt.options...)

			provider, err := NewProvider(context.Background(), tt.apiKey, options...)
			if tt.expectError {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrConfiguration)
				assert.Contains(t, err.Error(), tt.errorContains)
				assert.Nil(t, provider)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, provider)
				assert.Equal(t, of.NotReadyState, provider.state)
			}
		})
	}
}

func TestProvider_Init(t *testing.T) {
	t.Run("uses injected evaluator", func(t *testing.T) {
		mock := &mockEvaluator{}
		provider := newTestProvider(t, mock)

		assert.Equal(t, of.ReadyState, provider.state)
		assert.Same(t, mock, provider.client)
	})

	t.Run("creates remote client", func(t *testing.T) {
		provider, err := NewProvider(context.Background(), "secret-key", WithLogger(zaptest.NewLogger(t)))
		require.NoError(t, err)

		require.NoError(t, provider.Init(of.EvaluationContext{}))
		assert.Equal(t, of.ReadyState, provider.state)
		_, isClient := provider.client.(*Client)
		assert.True(t, isClient)

		provider.Shutdown()
		assert.Nil(t, provider.client)
	})
}

func TestProvider_Shutdown(t *testing.T) {
	mock := &mockEvaluator{
		CloseFunc: func() error { return errMockEvaluate },
	}
	provider := newTestProvider(t, mock)

	assert.Equal(t, of.ReadyState, provider.state)
	provider.Shutdown()
	assert.Equal(t, of.NotReadyState, provider.state)
	assert.True(t, mock.closeCalled)

	result := provider.BooleanEvaluation(context.Background(), "test_gate", true, of.FlattenedContext{of.TargetingKey: "user-1"})
	assert.True(t, result.Value)
	assertResolution(t, result.ProviderResolutionDetail, of.ProviderNotReadyCode, of.ErrorReason)
}

func TestProvider_Hooks(t *testing.T) {
	provider := newTestProvider(t, &mockEvaluator{})

	assert.Empty(t, provider.Hooks())
}

func TestProvider_Metadata(t *testing.T) {
	provider := newTestProvider(t, &mockEvaluator{})

	assert.Equal(t, "Statsig", provider.Metadata().Name)
}

func TestProvider_BooleanEvaluation(t *testing.T) {
	tests := []struct {
		name          string
		flagName      string
		defaultValue  bool
		evalCtx       of.FlattenedContext
		gates         map[string]bool
		evaluateErr   error
		expectedValue bool
		expectedCode  of.ErrorCode
		reason        of.Reason
	}{
		{
			name:          "returns true when gate passes",
			flagName:      "test_gate",
			defaultValue:  false,
			evalCtx:       of.FlattenedContext{of.TargetingKey: "user-1"},
			gates:         map[string]bool{"test_gate": true},
			expectedValue: true,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns false when gate fails",
			flagName:      "test_gate",
			defaultValue:  true,
			evalCtx:       of.FlattenedContext{of.TargetingKey: "user-1"},
			gates:         map[string]bool{"test_gate": false},
			expectedValue: false,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns default when gate not found",
			flagName:      "missing_gate",
			defaultValue:  true,
			evalCtx:       of.FlattenedContext{of.TargetingKey: "user-1"},
			gates:         map[string]bool{},
			expectedValue: true,
			expectedCode:  of.FlagNotFoundCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns default when evaluate fails",
			flagName:      "test_gate",
			defaultValue:  true,
			evalCtx:       of.FlattenedContext{of.TargetingKey: "user-1"},
			evaluateErr:   errMockEvaluate,
			expectedValue: true,
			expectedCode:  of.GeneralCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "maps user validation failure to invalid context",
			flagName:      "test_gate",
			defaultValue:  false,
			evalCtx:       of.FlattenedContext{of.TargetingKey: "user-1"},
			evaluateErr:   newError(KindUserValidation, "Invalid email format"),
			expectedValue: false,
			expectedCode:  of.InvalidContextCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns default when user cannot be identified",
			flagName:      "test_gate",
			defaultValue:  false,
			evalCtx:       of.FlattenedContext{"plan": "pro"},
			expectedValue: false,
			expectedCode:  of.InvalidContextCode,
			reason:        of.ErrorReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockEvaluator{
				CheckGatesFunc: func(_ context.Context, _ []string, _ User) (map[string]bool, error) {
					if tt.evaluateErr != nil {
						return nil, tt.evaluateErr
					}
					return tt.gates, nil
				},
			}
			provider := newTestProvider(t, mock)

			result := provider.BooleanEvaluation(context.Background(), tt.flagName, tt.defaultValue, tt.evalCtx)

			assert.Equal(t, tt.expectedValue, result.Value)
			assertResolution(t, result.ProviderResolutionDetail, tt.expectedCode, tt.reason)
		})
	}
}

func TestProvider_BooleanEvaluation_NotReady(t *testing.T) {
	mock := &mockEvaluator{}

	provider, err := NewProvider(context.Background(), "secret-test-key", withMockEvaluator(mock))
	require.NoError(t, err)
	// Don't call Init - provider is not ready

	result := provider.BooleanEvaluation(context.Background(), "test_gate", false, of.FlattenedContext{of.TargetingKey: "user-1"})

	assert.False(t, result.Value)
	assertResolution(t, result.ProviderResolutionDetail, of.ProviderNotReadyCode, of.ErrorReason)
	assert.Empty(t, mock.checkGatesCalls)
}

func TestProvider_BooleanEvaluation_User(t *testing.T) {
	mock := &mockEvaluator{
		CheckGatesFunc: func(_ context.Context, names []string, _ User) (map[string]bool, error) {
			return map[string]bool{names[0]: true}, nil
		},
	}
	provider := newTestProvider(t, mock)

	provider.BooleanEvaluation(context.Background(), "test_gate", false, of.FlattenedContext{
		of.TargetingKey: "user-1",
		"email":         "user@example.com",
		"plan":          "pro",
	})

	require.Len(t, mock.checkGatesCalls, 1)
	call := mock.checkGatesCalls[0]
	assert.Equal(t, []string{"test_gate"}, call.Names)
	assert.Equal(t, "user-1", call.User.UserID)
	assert.Equal(t, "user@example.com", call.User.Email)
	assert.Equal(t, map[string]any{"plan": "pro"}, call.User.Custom)
}

// theme is the dynamic config served to the typed evaluation tests.
var theme = ConfigEvaluation{
	Name: "theme",
	Value: map[string]any{
		"color":     "blue",
		"size":      float64(3),
		"ratio":     0.75,
		"big":       "9007199254740993",
		"precise":   json.Number("12"),
		"enabled":   true,
		"empty":     nil,
		"dimension": map[string]any{"width": float64(1024)},
	},
	RuleID:    "rule_1",
	GroupName: "Blue Group",
}

func TestProvider_StringEvaluation(t *testing.T) {
	tests := []struct {
		name          string
		flagName      string
		defaultValue  string
		evaluations   []ConfigEvaluation
		evaluateErr   error
		expectedValue string
		expectedCode  of.ErrorCode
		reason        of.Reason
	}{
		{
			name:          "returns string field",
			flagName:      "theme.color",
			defaultValue:  "default",
			evaluations:   []ConfigEvaluation{theme},
			expectedValue: "blue",
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns string config value",
			flagName:      "banner",
			defaultValue:  "default",
			evaluations:   []ConfigEvaluation{{Name: "banner", Value: "Spring sale"}},
			expectedValue: "Spring sale",
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns error when field is not string",
			flagName:      "theme.size",
			defaultValue:  "default",
			evaluations:   []ConfigEvaluation{theme},
			expectedValue: "default",
			expectedCode:  of.TypeMismatchCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns default when field is null",
			flagName:      "theme.empty",
			defaultValue:  "default",
			evaluations:   []ConfigEvaluation{theme},
			expectedValue: "default",
			reason:        of.DefaultReason,
		},
		{
			name:          "returns default when field not found",
			flagName:      "theme.missing",
			defaultValue:  "default",
			evaluations:   []ConfigEvaluation{theme},
			expectedValue: "default",
			expectedCode:  of.FlagNotFoundCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns default when config not found",
			flagName:      "missing_config",
			defaultValue:  "default",
			expectedValue: "default",
			expectedCode:  of.FlagNotFoundCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns default when evaluate fails",
			flagName:      "theme.color",
			defaultValue:  "default",
			evaluateErr:   errMockEvaluate,
			expectedValue: "default",
			expectedCode:  of.GeneralCode,
			reason:        of.ErrorReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := &mockEvaluator{GetConfigEvaluationsFunc: configResult(tt.evaluations...)}
			if tt.evaluateErr != nil {
				mock.GetConfigEvaluationsFunc = func(context.Context, []string, User) (map[string]ConfigEvaluation, error) {
					return nil, tt.evaluateErr
				}
			}
			provider := newTestProvider(t, mock)

			result := provider.StringEvaluation(context.Background(), tt.flagName, tt.defaultValue, of.FlattenedContext{of.TargetingKey: "user-1"})

			assert.Equal(t, tt.expectedValue, result.Value)
			assertResolution(t, result.ProviderResolutionDetail, tt.expectedCode, tt.reason)
		})
	}
}

func TestProvider_StringEvaluation_RequestsConfigName(t *testing.T) {
	mock := &mockEvaluator{GetConfigEvaluationsFunc: configResult(theme)}
	provider := newTestProvider(t, mock)

	result := provider.StringEvaluation(context.Background(), "theme.color", "", of.FlattenedContext{of.TargetingKey: "user-1"})

	require.Len(t, mock.getConfigCalls, 1)
	assert.Equal(t, []string{"theme"}, mock.getConfigCalls[0].Names)
	assert.Equal(t, "Blue Group", result.Variant)
	assert.Equal(t, "rule_1", result.FlagMetadata["ruleID"])
	assert.Equal(t, "theme", result.FlagMetadata["name"])
}

func TestProvider_FloatEvaluation(t *testing.T) {
	tests := []struct {
		name          string
		flagName      string
		defaultValue  float64
		expectedValue float64
		expectedCode  of.ErrorCode
		reason        of.Reason
	}{
		{
			name:          "returns float field",
			flagName:      "theme.ratio",
			expectedValue: 0.75,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns nested float field",
			flagName:      "theme.dimension.width",
			expectedValue: 1024,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns float from json.Number",
			flagName:      "theme.precise",
			expectedValue: 12,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns error when field is not a number",
			flagName:      "theme.color",
			defaultValue:  1.5,
			expectedValue: 1.5,
			expectedCode:  of.TypeMismatchCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns error when path descends into a scalar",
			flagName:      "theme.ratio.value",
			defaultValue:  1.5,
			expectedValue: 1.5,
			expectedCode:  of.FlagNotFoundCode,
			reason:        of.ErrorReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, &mockEvaluator{GetConfigEvaluationsFunc: configResult(theme)})

			result := provider.FloatEvaluation(context.Background(), tt.flagName, tt.defaultValue, of.FlattenedContext{of.TargetingKey: "user-1"})

			assert.InDelta(t, tt.expectedValue, result.Value, 1e-9)
			assertResolution(t, result.ProviderResolutionDetail, tt.expectedCode, tt.reason)
		})
	}
}

func TestProvider_IntEvaluation(t *testing.T) {
	tests := []struct {
		name          string
		flagName      string
		defaultValue  int64
		expectedValue int64
		expectedCode  of.ErrorCode
		reason        of.Reason
	}{
		{
			name:          "returns int from float64",
			flagName:      "theme.size",
			expectedValue: 3,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns int from json.Number",
			flagName:      "theme.precise",
			expectedValue: 12,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns int from numeric string",
			flagName:      "theme.big",
			expectedValue: 9007199254740993,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns error when string is not numeric",
			flagName:      "theme.color",
			defaultValue:  7,
			expectedValue: 7,
			expectedCode:  of.TypeMismatchCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns error when field is bool",
			flagName:      "theme.enabled",
			defaultValue:  7,
			expectedValue: 7,
			expectedCode:  of.TypeMismatchCode,
			reason:        of.ErrorReason,
		},
		{
			name:          "returns default when field is null",
			flagName:      "theme.empty",
			defaultValue:  7,
			expectedValue: 7,
			reason:        of.DefaultReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, &mockEvaluator{GetConfigEvaluationsFunc: configResult(theme)})

			result := provider.IntEvaluation(context.Background(), tt.flagName, tt.defaultValue, of.FlattenedContext{of.TargetingKey: "user-1"})

			assert.Equal(t, tt.expectedValue, result.Value)
			assertResolution(t, result.ProviderResolutionDetail, tt.expectedCode, tt.reason)
		})
	}
}

func TestProvider_ObjectEvaluation(t *testing.T) {
	tests := []struct {
		name          string
		flagName      string
		defaultValue  any
		expectedValue any
		expectedCode  of.ErrorCode
		reason        of.Reason
	}{
		{
			name:          "returns whole config value",
			flagName:      "theme",
			expectedValue: theme.Value,
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns nested object field",
			flagName:      "theme.dimension",
			expectedValue: map[string]any{"width": float64(1024)},
			reason:        of.TargetingMatchReason,
		},
		{
			name:          "returns default when config not found",
			flagName:      "other",
			defaultValue:  map[string]any{"fallback": true},
			expectedValue: map[string]any{"fallback": true},
			expectedCode:  of.FlagNotFoundCode,
			reason:        of.ErrorReason,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider := newTestProvider(t, &mockEvaluator{GetConfigEvaluationsFunc: configResult(theme)})

			result := provider.ObjectEvaluation(context.Background(), tt.flagName, tt.defaultValue, of.FlattenedContext{of.TargetingKey: "user-1"})

			assert.Equal(t, tt.expectedValue, result.Value)
			assertResolution(t, result.ProviderResolutionDetail, tt.expectedCode, tt.reason)
		})
	}
}
