package statsig

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"
	"resty.dev/v3"
)

const (
	checkGatePath = "/v1/check_gate"
	getConfigPath = "/v1/get_config"
	logEventPath  = "/v1/log_event"

	headerAPIKey     = "statsig-api-key"
	headerClientTime = "STATSIG-CLIENT-TIME"
)

// rawResponse is one HTTP exchange as seen by the retry layers.
type rawResponse struct {
	status int
	header http.Header
	body   string
}

// sendFunc performs one logical request. Each invocation issues a fresh HTTP request.
type sendFunc func(ctx context.Context) (*rawResponse, error)

// evaluationTransport is the part of the transport the batcher depends on.
type evaluationTransport interface {
	checkGates(ctx context.Context, names []string, user User) ([]GateEvaluation, error)
	getConfig(ctx context.Context, name string, user User) (ConfigEvaluation, error)
}

type transport struct {
	http          *resty.Client
	baseURL       string
	eventsBaseURL string
	apiKey        string
	metadata      Metadata
	guard         *rateLimitGuard
	retrier       *retrier
	now           func() time.Time
	logger        *zap.Logger
}

func newTransport(config *Config, sessionID string) *transport {
	logger := config.getLogger()
	now := config.getNow()
	sleep := config.getSleep()
	return &transport{
		http:          newHTTPClient(config, "statsig", now, logger),
		baseURL:       config.BaseURL,
		eventsBaseURL: config.EventsBaseURL,
		apiKey:        config.APIKey,
		metadata:      config.metadata(sessionID),
		guard: &rateLimitGuard{
			maxRetries:    config.RetryAttempts,
			fallbackDelay: config.RetryDelay,
			sleep:         sleep,
			now:           now,
			logger:        logger,
		},
		retrier: &retrier{
			policy: backoffPolicy{maxRetries: config.RetryAttempts, initialInterval: config.RetryDelay},
			sleep:  sleep,
			now:    now,
			logger: logger,
		},
		now:    now,
		logger: logger,
	}
}

type startedAtKey struct{}

// newHTTPClient returns a resty client that logs every exchange at debug level.
func newHTTPClient(config *Config, clientName string, now func() time.Time, logger *zap.Logger) *resty.Client {
	client := resty.New().
		SetTimeout(config.Timeout).
		SetHeader("User-Agent", config.SDKType+"/"+config.SDKVersion)
	if config.HTTPTransport != nil {
		client.SetTransport(config.HTTPTransport)
	}
	client.AddRequestMiddleware(func(_ *resty.Client, r *resty.Request) error {
		r.SetContext(context.WithValue(r.Context(), startedAtKey{}, now()))
		return nil
	})
	client.AddResponseMiddleware(func(_ *resty.Client, r *resty.Response) error {
		startedAt, _ := r.Request.Context().Value(startedAtKey{}).(time.Time)
		fields := []zap.Field{
			zap.String("client", clientName),
			zap.Int("status", r.StatusCode()),
			zap.Duration("latency", now().Sub(startedAt)),
		}
		if raw := r.Request.RawRequest; raw != nil {
			fields = append(fields, zap.String("method", raw.Method), zap.String("path", raw.URL.Path))
		}
		logger.Debug("http exchange", fields...)
		return nil
	})
	return client
}

func (t *transport) close() error {
	return t.http.Close()
}

// post sends payload to url through the rate-limit guard and the retry policy.
func (t *transport) post(ctx context.Context, url string, body any, headers map[string]string) (*rawResponse, error) {
	payload, marshalErr := json.Marshal(body)
	if marshalErr != nil {
		return nil, wrapError(KindSerialization, marshalErr)
	}
	send := func(ctx context.Context) (*rawResponse, error) {
		req := t.http.R().
			SetContext(ctx).
			SetHeader(headerAPIKey, t.apiKey).
			SetHeader("Content-Type", "application/json").
			SetBody(payload)
		for key, value := range headers {
			req.SetHeader(key, value)
		}
		resp, postErr := req.Post(url)
		if postErr != nil {
			return nil, postErr
		}
		return &rawResponse{status: resp.StatusCode(), header: resp.Header(), body: resp.String()}, nil
	}
	resp, sendErr := t.guard.wrap(t.retrier.wrap(send))(ctx)
	if sendErr != nil {
		t.logger.Debug("request failed", zap.String("url", url), zap.Error(sendErr))
		return nil, wrapError(KindNetwork, sendErr)
	}
	return resp, nil
}

type checkGateRequest struct {
	GateNames       []string `json:"gateNames"`
	User            User     `json:"user"`
	StatsigMetadata Metadata `json:"statsigMetadata"`
}

type getConfigRequest struct {
	ConfigName      string   `json:"configName"`
	User            User     `json:"user"`
	StatsigMetadata Metadata `json:"statsigMetadata"`
}

type logEventRequest struct {
	Events          []Event  `json:"events"`
	User            User     `json:"user"`
	StatsigMetadata Metadata `json:"statsigMetadata"`
}

func (t *transport) checkGates(ctx context.Context, names []string, user User) ([]GateEvaluation, error) {
	resp, err := t.post(ctx, t.baseURL+checkGatePath, checkGateRequest{
		GateNames:       names,
		User:            user,
		StatsigMetadata: t.metadata,
	}, nil)
	if err != nil {
		return nil, err
	}
	return decodeGateResponse(resp, t.now())
}

func (t *transport) getConfig(ctx context.Context, name string, user User) (ConfigEvaluation, error) {
	resp, err := t.post(ctx, t.baseURL+getConfigPath, getConfigRequest{
		ConfigName:      name,
		User:            user,
		StatsigMetadata: t.metadata,
	}, nil)
	if err != nil {
		return ConfigEvaluation{}, err
	}
	return decodeConfigResponse(resp, name, t.now())
}

func (t *transport) logEvents(ctx context.Context, user User, events []Event) (LogEventResponse, error) {
	headers := map[string]string{
		headerClientTime: strconv.FormatInt(t.now().UnixMilli(), 10),
	}
	resp, err := t.post(ctx, t.eventsBaseURL+logEventPath, logEventRequest{
		Events:          events,
		User:            user,
		StatsigMetadata: t.metadata,
	}, headers)
	if err != nil {
		return LogEventResponse{}, err
	}
	return decodeResponse[LogEventResponse](resp, t.now())
}
