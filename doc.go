// Package statsig provides a Statsig client with a local evaluation cache and
// request batching, and an OpenFeature provider built on top of it.
//
// The [Client] evaluates feature gates and dynamic configs against the Statsig
// HTTP API (https://docs.statsig.com/http-api). Answers are cached per user in a
// capacity-bounded LRU with a time-to-live, and concurrent lookups are coalesced
// by a background batcher so that many callers asking about the same user share
// a single upstream request.
//
// # Installation
//
//	go get github.com/open-feature/go-sdk-contrib/providers/statsig
//
// # Client Quick Start
//
//	client, err := statsig.New(ctx, "secret-key",
//	    statsig.WithCacheTTL(time.Minute),
//	    statsig.WithLogger(logger),
//	)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	user := statsig.User{UserID: "user-123"}
//	enabled, err := client.CheckGate(ctx, "new_checkout", user)
//
// # Provider Quick Start
//
//	provider, err := statsig.NewProvider(ctx, "secret-key")
//	if err != nil {
//	    panic(err)
//	}
//	if err := provider.Init(openfeature.EvaluationContext{}); err != nil {
//	    panic(err)
//	}
//	defer provider.Shutdown()
//
//	evalCtx := openfeature.FlattenedContext{
//	    openfeature.TargetingKey: "user-123",
//	}
//	result := provider.BooleanEvaluation(ctx, "new_checkout", false, evalCtx)
//
// # Configuration
//
// [New] and [NewProvider] accept an API key and options; [NewFromConfig] and
// [NewProviderFromConfig] accept a [Config], usually obtained from
// [DefaultConfig]. The configuration is validated once at construction and an
// invalid one is reported as a [KindConfiguration] error.
//
//   - [WithBaseURL], [WithEventsBaseURL]: endpoint roots
//   - [WithTimeout]: per-attempt HTTP timeout
//   - [WithRetryAttempts], [WithRetryDelay]: retry budget and initial backoff
//   - [WithCacheTTL], [WithCacheMaxCapacity]: evaluation cache bounds
//   - [WithBatchSize], [WithBatchFlushInterval]: batcher flush triggers
//   - [WithLogger]: a *zap.Logger; logging is disabled by default
//   - [WithKeyMap]: evaluation context key mapping for the provider
//
// # Retries and Rate Limits
//
// Connection failures, timeouts, 408 and 5xx responses are retried with
// exponential backoff and jitter. A 429 response is handled separately: the
// request is re-issued after the delay given by the Retry-After header, up to
// the same retry budget, after which the caller receives a [KindRateLimited]
// error carrying the advertised delay.
//
// # Flag Mapping
//
// The provider maps OpenFeature evaluations to Statsig entities:
//
//   - [Provider.BooleanEvaluation]: a feature gate
//   - [Provider.StringEvaluation], [Provider.IntEvaluation], [Provider.FloatEvaluation]:
//     a dynamic config whose value has the requested type
//   - [Provider.ObjectEvaluation]: the whole value of a dynamic config
//
// A flag key of the form "config.field" reads the field "field" of the config
// "config"; further dots descend into nested objects. A config whose value is
// null resolves to the caller's default with the DEFAULT reason.
//
// # Evaluation Context Mapping
//
// The [openfeature.TargetingKey] is mapped to the Statsig userID. Other
// [User] fields are recognized under several spellings, for example
// "userAgent", "user_agent" and "user-agent". See [DefaultKeyMap].
// Keys that match no field are added to [User.Custom].
// The context must identify the user by a targeting key, an email or custom IDs.
package statsig
