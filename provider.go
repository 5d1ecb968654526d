package statsig

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/goccy/go-json"
	of "github.com/open-feature/go-sdk/openfeature"
	"go.uber.org/zap"
)

// Provider is an OpenFeature provider implementation for Statsig.
type Provider struct {
	config Config
	keyMap map[string]Key
	logger *zap.Logger

	mu     sync.RWMutex
	state  of.State
	client evaluator
}

const (
	providerNotReady = "Statsig provider not ready"
	generalError     = "Statsig general error"

	// configFieldSeparator separates a config name from a field path in a flag key.
	configFieldSeparator = "."
)

// NewProvider creates a new [Provider] from an API key and options.
func NewProvider(ctx context.Context, apiKey string, options ...Option) (*Provider, error) {
	config := DefaultConfig(apiKey)
	for _, option := range options {
		option(&config)
	}
	return NewProviderFromConfig(ctx, config)
}

// NewProviderFromConfig creates a new [Provider] from a [Config].
// The underlying [Client] is created by [Provider.Init].
func NewProviderFromConfig(_ context.Context, config Config) (*Provider, error) {
	if configErr := config.validate(); configErr != nil {
		return nil, configErr
	}
	return &Provider{
		state:  of.NotReadyState,
		config: config,
		keyMap: config.getKeyMap(),
		logger: config.getLogger(),
	}, nil
}

// Init creates the Statsig client and marks the provider ready.
func (p *Provider) Init(_ of.EvaluationContext) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client == nil {
		client, clientErr := p.newEvaluator()
		if clientErr != nil {
			p.state = of.ErrorState
			return clientErr
		}
		p.client = client
	}
	p.state = of.ReadyState
	return nil
}

func (p *Provider) newEvaluator() (evaluator, error) {
	// Allow injecting a test evaluator for testing
	if p.config.testEvaluator != nil {
		return p.config.testEvaluator, nil
	}
	client, clientErr := NewFromConfig(context.Background(), p.config)
	if clientErr != nil {
		return nil, clientErr
	}
	return client, nil
}

// Shutdown stops the Statsig client.
func (p *Provider) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.client != nil {
		if closeErr := p.client.Close(); closeErr != nil {
			p.logger.Warn("failed to close statsig client", zap.Error(closeErr))
		}
		p.client = nil
	}
	p.state = of.NotReadyState
}

// Hooks returns empty slice as provider does not have any hooks.
func (p *Provider) Hooks() []of.Hook {
	return []of.Hook{}
}

// Metadata returns value of Metadata (name of current service, exposed to openfeature sdk).
func (p *Provider) Metadata() of.Metadata {
	return of.Metadata{
		Name: "Statsig",
	}
}

// BooleanEvaluation evaluates a feature gate.
func (p *Provider) BooleanEvaluation(ctx context.Context, flag string, defaultValue bool, evalCtx of.FlattenedContext) of.BoolResolutionDetail {
	client, user, resErr := p.prepare(evalCtx)
	if resErr != nil {
		return of.BoolResolutionDetail{
			Value:                    defaultValue,
			ProviderResolutionDetail: errorDetail(*resErr),
		}
	}

	gates, evalErr := client.CheckGates(ctx, []string{flag}, user)
	if evalErr != nil {
		return of.BoolResolutionDetail{
			Value:                    defaultValue,
			ProviderResolutionDetail: errorDetail(resolutionError(evalErr)),
		}
	}

	value, ok := gates[flag]
	if !ok {
		return of.BoolResolutionDetail{
			Value:                    defaultValue,
			ProviderResolutionDetail: errorDetail(of.NewFlagNotFoundResolutionError(fmt.Sprintf("gate %s not found", flag))),
		}
	}

	return of.BoolResolutionDetail{
		Value: value,
		ProviderResolutionDetail: of.ProviderResolutionDetail{
			Reason: of.TargetingMatchReason,
		},
	}
}

// StringEvaluation evaluates a dynamic config, or a field of one, as a string.
func (p *Provider) StringEvaluation(ctx context.Context, flag string, defaultValue string, evalCtx of.FlattenedContext) of.StringResolutionDetail {
	value, detail := p.evaluateConfig(ctx, flag, evalCtx)
	if detail.ResolutionError != (of.ResolutionError{}) || value == nil {
		return of.StringResolutionDetail{Value: defaultValue, ProviderResolutionDetail: detail}
	}

	if castType, ok := value.(string); ok {
		return of.StringResolutionDetail{Value: castType, ProviderResolutionDetail: detail}
	}

	return of.StringResolutionDetail{
		Value: defaultValue,
		ProviderResolutionDetail: errorDetail(of.NewTypeMismatchResolutionError(
			fmt.Sprintf("StringEvaluation type error for %s, value is %T", flag, value))),
	}
}

// FloatEvaluation evaluates a dynamic config, or a field of one, as a float.
func (p *Provider) FloatEvaluation(ctx context.Context, flag string, defaultValue float64, evalCtx of.FlattenedContext) of.FloatResolutionDetail {
	value, detail := p.evaluateConfig(ctx, flag, evalCtx)
	if detail.ResolutionError != (of.ResolutionError{}) || value == nil {
		return of.FloatResolutionDetail{Value: defaultValue, ProviderResolutionDetail: detail}
	}

	switch castType := value.(type) {
	case float64:
		return of.FloatResolutionDetail{Value: castType, ProviderResolutionDetail: detail}
	case int64:
		return of.FloatResolutionDetail{Value: float64(castType), ProviderResolutionDetail: detail}
	case json.Number:
		parsed, err := castType.Float64()
		if err != nil {
			return of.FloatResolutionDetail{
				Value:                    defaultValue,
				ProviderResolutionDetail: errorDetail(of.NewTypeMismatchResolutionError(err.Error())),
			}
		}
		return of.FloatResolutionDetail{Value: parsed, ProviderResolutionDetail: detail}
	}

	return of.FloatResolutionDetail{
		Value: defaultValue,
		ProviderResolutionDetail: errorDetail(of.NewTypeMismatchResolutionError(
			fmt.Sprintf("FloatEvaluation type error for %s, value is %T", flag, value))),
	}
}

// IntEvaluation evaluates a dynamic config, or a field of one, as an integer.
func (p *Provider) IntEvaluation(ctx context.Context, flag string, defaultValue int64, evalCtx of.FlattenedContext) of.IntResolutionDetail {
	value, detail := p.evaluateConfig(ctx, flag, evalCtx)
	if detail.ResolutionError != (of.ResolutionError{}) || value == nil {
		return of.IntResolutionDetail{Value: defaultValue, ProviderResolutionDetail: detail}
	}

	var (
		parsed   int64
		parseErr error
	)
	switch castType := value.(type) {
	// JSON numbers are decoded as float64.
	case float64:
		parsed = int64(castType)
	case int64:
		parsed = castType
	case json.Number:
		parsed, parseErr = castType.Int64()
	// Large numbers are sometimes sent as strings to keep their precision.
	case string:
		parsed, parseErr = strconv.ParseInt(castType, 10, 64)
	default:
		parseErr = fmt.Errorf("IntEvaluation type error for %s, value is %T", flag, value)
	}
	if parseErr != nil {
		return of.IntResolutionDetail{
			Value:                    defaultValue,
			ProviderResolutionDetail: errorDetail(of.NewTypeMismatchResolutionError(parseErr.Error())),
		}
	}
	return of.IntResolutionDetail{Value: parsed, ProviderResolutionDetail: detail}
}

// ObjectEvaluation evaluates a dynamic config and returns its whole value,
// or a field of it.
func (p *Provider) ObjectEvaluation(ctx context.Context, flag string, defaultValue any, evalCtx of.FlattenedContext) of.InterfaceResolutionDetail {
	value, detail := p.evaluateConfig(ctx, flag, evalCtx)
	if detail.ResolutionError != (of.ResolutionError{}) || value == nil {
		return of.InterfaceResolutionDetail{Value: defaultValue, ProviderResolutionDetail: detail}
	}
	return of.InterfaceResolutionDetail{Value: value, ProviderResolutionDetail: detail}
}

// evaluateConfig resolves a flag key of the form "config" or "config.field.path".
// A nil value with no resolution error means the caller should use its default.
func (p *Provider) evaluateConfig(ctx context.Context, flag string, evalCtx of.FlattenedContext) (any, of.ProviderResolutionDetail) {
	client, user, resErr := p.prepare(evalCtx)
	if resErr != nil {
		return nil, errorDetail(*resErr)
	}

	configName, fieldPath, _ := strings.Cut(flag, configFieldSeparator)
	evaluations, evalErr := client.GetConfigEvaluations(ctx, []string{configName}, user)
	if evalErr != nil {
		return nil, errorDetail(resolutionError(evalErr))
	}

	evaluation, ok := evaluations[configName]
	if !ok {
		return nil, errorDetail(of.NewFlagNotFoundResolutionError(fmt.Sprintf("config %s not found", configName)))
	}

	value := evaluation.Value
	if fieldPath != "" {
		var found bool
		value, found = lookupField(value, fieldPath)
		if !found {
			return nil, errorDetail(of.NewFlagNotFoundResolutionError(
				fmt.Sprintf("field %s not found in config %s", fieldPath, configName)))
		}
	}

	if value == nil {
		return nil, of.ProviderResolutionDetail{Reason: of.DefaultReason}
	}
	return value, of.ProviderResolutionDetail{
		Reason:       of.TargetingMatchReason,
		Variant:      evaluation.GroupName,
		FlagMetadata: evaluationMetadata(evaluation),
	}
}

// lookupField walks a dotted path through nested JSON objects.
func lookupField(value any, path string) (any, bool) {
	for _, segment := range strings.Split(path, configFieldSeparator) {
		object, ok := value.(map[string]any)
		if !ok {
			return nil, false
		}
		value, ok = object[segment]
		if !ok {
			return nil, false
		}
	}
	return value, true
}

// prepare checks the provider state and builds the user from the evaluation context.
func (p *Provider) prepare(evalCtx of.FlattenedContext) (evaluator, User, *of.ResolutionError) {
	p.mu.RLock()
	state, client := p.state, p.client
	p.mu.RUnlock()
	if state != of.ReadyState || client == nil {
		resErr := p.stateError(state)
		return nil, User{}, &resErr
	}

	user, userErr := p.toStatsigUser(evalCtx)
	if userErr != nil {
		resErr := of.NewInvalidContextResolutionError(userErr.Error())
		return nil, User{}, &resErr
	}
	return client, user, nil
}

// stateError returns the appropriate resolution error based on provider state.
func (p *Provider) stateError(state of.State) of.ResolutionError {
	if state == of.NotReadyState {
		return of.NewProviderNotReadyResolutionError(providerNotReady)
	}
	return of.NewGeneralResolutionError(generalError)
}

// resolutionError maps a client error to an OpenFeature resolution error.
func resolutionError(err error) of.ResolutionError {
	if errors.Is(err, ErrUserValidation) {
		return of.NewInvalidContextResolutionError(err.Error())
	}
	return of.NewGeneralResolutionError(err.Error())
}

func errorDetail(resErr of.ResolutionError) of.ProviderResolutionDetail {
	return of.ProviderResolutionDetail{
		ResolutionError: resErr,
		Reason:          of.ErrorReason,
	}
}

// evaluationMetadata returns the rule and group of a config evaluation.
func evaluationMetadata(evaluation ConfigEvaluation) map[string]any {
	metadata := map[string]any{
		"name": evaluation.Name,
	}
	if evaluation.RuleID != "" {
		metadata["ruleID"] = evaluation.RuleID
	}
	if evaluation.GroupName != "" {
		metadata["groupName"] = evaluation.GroupName
	}
	if evaluation.Group != "" {
		metadata["group"] = evaluation.Group
	}
	return metadata
}

// toStatsigUser converts an OpenFeature evaluation context to a Statsig User.
func (p *Provider) toStatsigUser(evalCtx of.FlattenedContext) (User, error) {
	userMap := make(map[Key]any)
	unmapped := make(map[string]any)
	for key, val := range evalCtx {
		resolvedKey, ok := p.keyMap[key]
		if ok {
			userMap[resolvedKey] = val
		} else {
			unmapped[key] = val
		}
	}
	if len(unmapped) > 0 {
		custom, ok := userMap[KeyCustom].(map[string]any)
		if !ok {
			custom = make(map[string]any, len(unmapped))
		}
		for key, val := range unmapped {
			if _, exists := custom[key]; !exists {
				custom[key] = val
			}
		}
		userMap[KeyCustom] = custom
	}

	userMapJSON, err := json.Marshal(userMap)
	if err != nil {
		return User{}, fmt.Errorf("failed to marshal user map: %w", err)
	}

	var user User
	err = json.Unmarshal(userMapJSON, &user)
	if err != nil {
		return User{}, fmt.Errorf("failed to unmarshal user map: %w", err)
	}

	if user.UserID == "" && user.Email == "" && len(user.CustomIDs) == 0 {
		return User{}, fmt.Errorf("context must contain a %s, %s, %s, or %s", of.TargetingKey, KeyUserID, KeyEmail, KeyCustomIDs)
	}

	return user, nil
}
