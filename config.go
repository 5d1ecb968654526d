package statsig

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
)

const (
	DefaultBaseURL            = "https://api.statsig.com"
	DefaultEventsBaseURL      = "https://events.statsigapi.net"
	DefaultTimeout            = 30 * time.Second
	DefaultRetryAttempts uint = 3
	DefaultRetryDelay         = time.Second
	DefaultCacheTTL           = 300 * time.Second
	DefaultCacheMaxCapacity   = 10000
	DefaultBatchSize          = 10
	DefaultBatchFlushInterval = 100 * time.Millisecond
	DefaultSDKType            = "go-client"
	DefaultSDKVersion         = "0.1.0"
)

// Config contains the configuration for the Statsig client and provider.
// Start from [DefaultConfig] or use [New] with options; the zero value is not valid.
type Config struct {
	// APIKey is the server secret key from the Statsig console.
	APIKey string `validate:"required"`
	// BaseURL is the evaluation endpoint root, e.g. https://api.statsig.com.
	BaseURL string `validate:"required"`
	// EventsBaseURL is the event logging endpoint root.
	EventsBaseURL string `validate:"required"`
	// Timeout bounds every HTTP attempt.
	Timeout time.Duration `validate:"gte=1s"`
	// RetryAttempts is the maximum number of re-issues for transient failures,
	// and separately for rate-limited responses.
	RetryAttempts uint `validate:"gt=0"`
	// RetryDelay is the initial backoff interval, and the fallback delay
	// for rate-limited responses without a usable Retry-After header.
	RetryDelay time.Duration
	// CacheTTL is how long an evaluation is served from cache, measured from insertion.
	CacheTTL time.Duration `validate:"gte=1s"`
	// CacheMaxCapacity is the maximum number of cached evaluations.
	CacheMaxCapacity int `validate:"gt=0"`
	// BatchSize is the number of pending lookups of one kind that triggers a flush.
	BatchSize int `validate:"gt=0"`
	// BatchFlushInterval is the period of the batcher's flush timer.
	BatchFlushInterval time.Duration `validate:"gt=0"`
	// ExposureLoggingDisabled is forwarded to the server in request metadata.
	ExposureLoggingDisabled bool
	SDKType                 string
	SDKVersion              string
	// Logger receives debug logs for every HTTP exchange and batcher lifecycle logs.
	// If nil, logging is disabled.
	Logger *zap.Logger `validate:"-"`
	// HTTPTransport replaces the default round tripper of the HTTP client.
	HTTPTransport http.RoundTripper `validate:"-"`
	// KeyMap is a map of string keys that might be in the evaluation context
	// to the canonical key used in the Statsig [User].
	// If multiple keys found in the evaluation context
	// map to the same canonical key, no error will be raised,
	// one will simply override the other.
	// Any keys that are not mapped will be added to the User.Custom map.
	// If unset, [DefaultKeyMap] will be used.
	KeyMap map[string]Key `validate:"-"`

	// testEvaluator is an optional evaluator for testing the provider.
	// When set, NewProviderFromConfig will use this instead of creating a real client.
	testEvaluator evaluator
	// now and sleep replace the wall clock in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// Option is a function that configures the Config.
type Option func(*Config)

// DefaultConfig returns a Config with every field at its default value.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:             apiKey,
		BaseURL:            DefaultBaseURL,
		EventsBaseURL:      DefaultEventsBaseURL,
		Timeout:            DefaultTimeout,
		RetryAttempts:      DefaultRetryAttempts,
		RetryDelay:         DefaultRetryDelay,
		CacheTTL:           DefaultCacheTTL,
		CacheMaxCapacity:   DefaultCacheMaxCapacity,
		BatchSize:          DefaultBatchSize,
		BatchFlushInterval: DefaultBatchFlushInterval,
		SDKType:            DefaultSDKType,
		SDKVersion:         DefaultSDKVersion,
	}
}

// WithBaseURL sets the evaluation endpoint root.
func WithBaseURL(baseURL string) Option {
	return func(c *Config) {
		c.BaseURL = baseURL
	}
}

// WithEventsBaseURL sets the event logging endpoint root.
func WithEventsBaseURL(eventsBaseURL string) Option {
	return func(c *Config) {
		c.EventsBaseURL = eventsBaseURL
	}
}

// WithTimeout sets the per-attempt HTTP timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithRetryAttempts sets the maximum number of retries.
func WithRetryAttempts(attempts uint) Option {
	return func(c *Config) {
		c.RetryAttempts = attempts
	}
}

// WithRetryDelay sets the initial backoff interval.
func WithRetryDelay(delay time.Duration) Option {
	return func(c *Config) {
		c.RetryDelay = delay
	}
}

// WithCacheTTL sets how long evaluations are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Config) {
		c.CacheTTL = ttl
	}
}

// WithCacheMaxCapacity sets the maximum number of cached evaluations.
func WithCacheMaxCapacity(capacity int) Option {
	return func(c *Config) {
		c.CacheMaxCapacity = capacity
	}
}

// WithBatchSize sets the flush threshold of the batcher.
func WithBatchSize(size int) Option {
	return func(c *Config) {
		c.BatchSize = size
	}
}

// WithBatchFlushInterval sets the period of the batcher's flush timer.
func WithBatchFlushInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.BatchFlushInterval = interval
	}
}

// WithExposureLoggingDisabled disables exposure logging on the server side.
func WithExposureLoggingDisabled(disabled bool) Option {
	return func(c *Config) {
		c.ExposureLoggingDisabled = disabled
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithHTTPTransport sets the round tripper used for every request.
func WithHTTPTransport(transport http.RoundTripper) Option {
	return func(c *Config) {
		c.HTTPTransport = transport
	}
}

// WithSDKInfo overrides the SDK type and version reported to the server.
func WithSDKInfo(sdkType, sdkVersion string) Option {
	return func(c *Config) {
		c.SDKType = sdkType
		c.SDKVersion = sdkVersion
	}
}

// WithKeyMap sets the key map for the provider.
// If unset, [DefaultKeyMap] will be used.
func WithKeyMap(keyMap map[string]Key) Option {
	return func(c *Config) {
		c.KeyMap = keyMap
	}
}

var configMessages = map[string]string{
	"APIKey":             "API key cannot be empty",
	"BaseURL":            "Base URL cannot be empty",
	"EventsBaseURL":      "Events base URL cannot be empty",
	"Timeout":            "Timeout must be greater than 0",
	"RetryAttempts":      "Retry attempts must be greater than 0",
	"CacheTTL":           "Cache TTL must be greater than 0",
	"CacheMaxCapacity":   "Cache max capacity must be greater than 0",
	"BatchSize":          "Batch size must be greater than 0",
	"BatchFlushInterval": "Batch flush interval must be greater than 0",
}

// validate returns a KindConfiguration error for the first invalid field.
func (c *Config) validate() error {
	validateErr := structValidator.Struct(c)
	if validateErr == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(validateErr, &fieldErrs) && len(fieldErrs) > 0 {
		if msg, ok := configMessages[fieldErrs[0].StructField()]; ok {
			return newError(KindConfiguration, "%s", msg)
		}
	}
	return wrapError(KindConfiguration, validateErr)
}

// getKeyMap returns the key map for the provider.
// If unset, [DefaultKeyMap] will be used.
func (c *Config) getKeyMap() map[string]Key {
	if c.KeyMap == nil {
		return DefaultKeyMap()
	}
	return c.KeyMap
}

func (c *Config) getLogger() *zap.Logger {
	if c.Logger == nil {
		return zap.NewNop()
	}
	return c.Logger
}

func (c *Config) getNow() func() time.Time {
	if c.now == nil {
		return time.Now
	}
	return c.now
}

func (c *Config) getSleep() func(ctx context.Context, d time.Duration) error {
	if c.sleep == nil {
		return sleepContext
	}
	return c.sleep
}

func (c *Config) metadata(sessionID string) Metadata {
	return Metadata{
		SDKType:                 c.SDKType,
		SDKVersion:              c.SDKVersion,
		ExposureLoggingDisabled: c.ExposureLoggingDisabled,
		SessionID:               sessionID,
	}
}
