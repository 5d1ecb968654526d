package statsig

import (
	"context"
	"errors"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	minEntityNameLength = 2
	maxEntityNameLength = 100
)

// Client evaluates gates and dynamic configs against the remote API,
// answering from a TTL-bounded LRU cache when it can and batching the rest.
// A Client is safe for concurrent use. Call [Client.Close] to stop its
// background batcher.
type Client struct {
	config    Config
	transport *transport
	cache     *evaluationCache
	metrics   *CacheMetrics
	batcher   *batcher
	logger    *zap.Logger
	closeOnce sync.Once
	closeErr  error
}

// New creates a new [Client] from an API key and options.
func New(ctx context.Context, apiKey string, options ...Option) (*Client, error) {
	config := DefaultConfig(apiKey)
	for _, option := range options {
		option(&config)
	}
	return NewFromConfig(ctx, config)
}

// NewFromConfig creates a new [Client] from a [Config] and starts its batcher.
// The batcher runs until [Client.Close]; ctx only supplies values to
// outbound requests.
func NewFromConfig(ctx context.Context, config Config) (*Client, error) {
	if configErr := config.validate(); configErr != nil {
		return nil, configErr
	}
	metrics := &CacheMetrics{}
	cache, cacheErr := newEvaluationCache(config.CacheMaxCapacity, config.CacheTTL, config.getNow(), metrics)
	if cacheErr != nil {
		return nil, cacheErr
	}
	logger := config.getLogger()
	evalTransport := newTransport(&config, uuid.NewString())
	client := &Client{
		config:    config,
		transport: evalTransport,
		cache:     cache,
		metrics:   metrics,
		batcher:   newBatcher(evalTransport, config.BatchSize, config.BatchFlushInterval, logger),
		logger:    logger,
	}
	go client.batcher.run(ctx)
	return client, nil
}

// CheckGate reports whether the gate passes for user.
// A gate missing from the server's answer is reported as false.
func (c *Client) CheckGate(ctx context.Context, name string, user User) (bool, error) {
	results, err := c.CheckGates(ctx, []string{name}, user)
	if err != nil {
		return false, err
	}
	return results[name], nil
}

// CheckGates evaluates several gates for user. Cached answers are served
// directly; the rest are fetched in a single batched call.
func (c *Client) CheckGates(ctx context.Context, names []string, user User) (map[string]bool, error) {
	evaluations, err := c.gateEvaluations(ctx, names, user)
	if err != nil {
		return nil, err
	}
	results := make(map[string]bool, len(evaluations))
	for name, evaluation := range evaluations {
		results[name] = evaluation.Value
	}
	return results, nil
}

// GetConfig returns the value of a dynamic config for user, or nil when the
// server did not return it.
func (c *Client) GetConfig(ctx context.Context, name string, user User) (any, error) {
	results, err := c.GetConfigs(ctx, []string{name}, user)
	if err != nil {
		return nil, err
	}
	return results[name], nil
}

// GetConfigs returns the values of several dynamic configs for user.
func (c *Client) GetConfigs(ctx context.Context, names []string, user User) (map[string]any, error) {
	evaluations, err := c.GetConfigEvaluations(ctx, names, user)
	if err != nil {
		return nil, err
	}
	results := make(map[string]any, len(evaluations))
	for name, evaluation := range evaluations {
		results[name] = evaluation.Value
	}
	return results, nil
}

// GetConfigEvaluation returns the full evaluation of a dynamic config, including
// its rule and group.
func (c *Client) GetConfigEvaluation(ctx context.Context, name string, user User) (ConfigEvaluation, error) {
	results, err := c.GetConfigEvaluations(ctx, []string{name}, user)
	if err != nil {
		return ConfigEvaluation{}, err
	}
	evaluation, ok := results[name]
	if !ok {
		return ConfigEvaluation{}, newError(KindInternal, "Missing config evaluation in response")
	}
	return evaluation, nil
}

// GetConfigEvaluations returns the full evaluations of several dynamic configs.
func (c *Client) GetConfigEvaluations(ctx context.Context, names []string, user User) (map[string]ConfigEvaluation, error) {
	if len(names) == 0 {
		return map[string]ConfigEvaluation{}, nil
	}
	if err := validateNames(EntityConfig, names); err != nil {
		return nil, err
	}
	if err := validateUser(user); err != nil {
		return nil, err
	}

	userHash := user.Hash()
	results := make(map[string]ConfigEvaluation, len(names))
	var missing []string
	for _, name := range names {
		if evaluation, ok := c.cachedConfig(newCacheKey(EntityConfig, name, userHash)); ok {
			results[name] = evaluation
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return results, nil
	}

	fetched, fetchErr := c.batcher.getConfigs(ctx, missing, user)
	if fetchErr != nil {
		return nil, fetchErr
	}
	for _, evaluation := range fetched {
		c.cache.insert(newCacheKey(EntityConfig, evaluation.Name, userHash), evaluation)
		results[evaluation.Name] = evaluation
	}
	return results, nil
}

func (c *Client) gateEvaluations(ctx context.Context, names []string, user User) (map[string]GateEvaluation, error) {
	if len(names) == 0 {
		return map[string]GateEvaluation{}, nil
	}
	if err := validateNames(EntityGate, names); err != nil {
		return nil, err
	}
	if err := validateUser(user); err != nil {
		return nil, err
	}

	userHash := user.Hash()
	results := make(map[string]GateEvaluation, len(names))
	var missing []string
	for _, name := range names {
		if evaluation, ok := c.cachedGate(newCacheKey(EntityGate, name, userHash)); ok {
			results[name] = evaluation
			continue
		}
		missing = append(missing, name)
	}
	if len(missing) == 0 {
		return results, nil
	}

	fetched, fetchErr := c.batcher.checkGates(ctx, missing, user)
	if fetchErr != nil {
		return nil, fetchErr
	}
	for _, evaluation := range fetched {
		c.cache.insert(newCacheKey(EntityGate, evaluation.Name, userHash), evaluation)
		results[evaluation.Name] = evaluation
	}
	return results, nil
}

func (c *Client) cachedGate(key cacheKey) (GateEvaluation, bool) {
	cached, ok := c.cache.lookup(key)
	if !ok {
		return GateEvaluation{}, false
	}
	switch result := cached.result.(type) {
	case GateEvaluation:
		return result, true
	case ConfigEvaluation:
		c.logger.Error("config evaluation cached under gate key", zap.String("name", key.name))
	}
	return GateEvaluation{}, false
}

func (c *Client) cachedConfig(key cacheKey) (ConfigEvaluation, bool) {
	cached, ok := c.cache.lookup(key)
	if !ok {
		return ConfigEvaluation{}, false
	}
	switch result := cached.result.(type) {
	case ConfigEvaluation:
		return result, true
	case GateEvaluation:
		c.logger.Error("gate evaluation cached under config key", zap.String("name", key.name))
	}
	return ConfigEvaluation{}, false
}

// LogEvent sends a single event named eventName, stamped with the current time.
func (c *Client) LogEvent(ctx context.Context, eventName string, user User) (bool, error) {
	event := Event{
		EventName: eventName,
		Time:      UnixMillis(c.config.getNow()().UnixMilli()),
	}
	resp, err := c.LogEvents(ctx, []Event{event}, user)
	if err != nil {
		return false, err
	}
	return resp.Success, nil
}

// LogEvents sends events to the events endpoint. Events are not batched.
func (c *Client) LogEvents(ctx context.Context, events []Event, user User) (LogEventResponse, error) {
	if len(events) == 0 {
		return LogEventResponse{}, newError(KindValidation, "events must contain at least 1 item")
	}
	if err := validateUser(user); err != nil {
		return LogEventResponse{}, err
	}
	return c.transport.logEvents(ctx, user, events)
}

// CacheMetrics returns a snapshot of the cache counters.
func (c *Client) CacheMetrics() CacheMetricsSummary {
	return c.metrics.Summary()
}

// ResetCacheMetrics sets every cache counter to zero.
func (c *Client) ResetCacheMetrics() {
	c.metrics.Reset()
}

// Close stops the batcher and releases the HTTP client. Lookups still
// waiting on the batcher fail with a KindBatchProcessor error.
// Close is idempotent.
func (c *Client) Close() error {
	c.closeOnce.Do(func() {
		c.batcher.close()
		c.closeErr = c.transport.close()
	})
	return c.closeErr
}

func validateNames(kind EntityKind, names []string) error {
	for _, name := range names {
		length := utf8.RuneCountInString(name)
		if length < minEntityNameLength || length > maxEntityNameLength {
			return newError(KindValidation, "%s name must be between %d and %d characters",
				kind, minEntityNameLength, maxEntityNameLength)
		}
	}
	return nil
}

func validateUser(user User) error {
	userErr := user.Validate()
	if userErr == nil {
		return nil
	}
	var statsigErr *Error
	if errors.As(userErr, &statsigErr) {
		return statsigErr.WithContext("User validation failed")
	}
	return userErr
}
