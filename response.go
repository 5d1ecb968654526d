package statsig

import (
	"math"
	"net/http"
	"slices"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/goccy/go-json"
)

const (
	defaultRetryAfterSeconds uint64 = 60
	maxBodyExcerpt                  = 2000
	truncationMarker                = "...(truncated)"
)

// truncateBody bounds a response body to maxBodyExcerpt characters for use in error messages.
func truncateBody(body string) string {
	if utf8.RuneCountInString(body) <= maxBodyExcerpt {
		return body
	}
	runes := []rune(body)
	return string(runes[:maxBodyExcerpt]) + truncationMarker
}

func isSuccess(status int) bool {
	return status >= 200 && status <= 299
}

// errorFromResponse maps a non-2xx response to a typed error.
func errorFromResponse(resp *rawResponse, now time.Time) *Error {
	switch resp.status {
	case http.StatusUnauthorized:
		return &Error{Kind: KindUnauthorized}
	case http.StatusTooManyRequests:
		return rateLimitedError(retryAfterSeconds(resp.header.Get("Retry-After"), now))
	}
	return apiError(resp.status, truncateBody(resp.body))
}

// retryAfterSeconds rounds an HTTP-date up to whole seconds so that a caller
// waiting the reported time does not come back early.
func retryAfterSeconds(value string, now time.Time) uint64 {
	delay, ok := parseRetryAfter(value, now)
	if !ok {
		return defaultRetryAfterSeconds
	}
	return uint64(math.Ceil(delay.Seconds()))
}

func decodeResponse[T any](resp *rawResponse, now time.Time) (T, error) {
	var out T
	if !isSuccess(resp.status) {
		return out, errorFromResponse(resp, now)
	}
	if decodeErr := json.Unmarshal([]byte(resp.body), &out); decodeErr != nil {
		parseErr := &Error{Kind: KindSerialization, Message: "Failed to parse response JSON: " + decodeErr.Error(), Err: decodeErr}
		return out, parseErr.WithContext("Response body: " + truncateBody(resp.body))
	}
	return out, nil
}

// malformedResponse reports a 2xx body that parsed but lacks a required field.
func malformedResponse(resp *rawResponse, message string) *Error {
	parseErr := &Error{Kind: KindSerialization, Message: "Failed to parse response JSON: " + message}
	return parseErr.WithContext("Response body: " + truncateBody(resp.body))
}

type gateEvaluationWire struct {
	Name      *string `json:"name"`
	Value     *bool   `json:"value"`
	RuleID    string  `json:"rule_id"`
	GroupName string  `json:"group_name"`
}

// decodeGateResponse parses a check_gate response, a JSON object keyed by gate name.
// Results are sorted by name.
func decodeGateResponse(resp *rawResponse, now time.Time) ([]GateEvaluation, error) {
	wire, err := decodeResponse[map[string]gateEvaluationWire](resp, now)
	if err != nil {
		return nil, err
	}
	if wire == nil {
		return nil, malformedResponse(resp, "expected an object keyed by gate name")
	}
	results := make([]GateEvaluation, 0, len(wire))
	for key, gate := range wire {
		if gate.Value == nil {
			return nil, malformedResponse(resp, "missing field `value` for gate "+key)
		}
		name := key
		if gate.Name != nil {
			name = *gate.Name
		}
		results = append(results, GateEvaluation{
			Name:      name,
			Value:     *gate.Value,
			RuleID:    gate.RuleID,
			GroupName: gate.GroupName,
		})
	}
	slices.SortFunc(results, func(a, b GateEvaluation) int {
		return strings.Compare(a.Name, b.Name)
	})
	return results, nil
}

// decodeConfigResponse parses a get_config response. The value may be null
// but must be present. A missing name falls back to requested.
func decodeConfigResponse(resp *rawResponse, requested string, now time.Time) (ConfigEvaluation, error) {
	fields, err := decodeResponse[map[string]json.RawMessage](resp, now)
	if err != nil {
		return ConfigEvaluation{}, err
	}
	if fields == nil {
		return ConfigEvaluation{}, malformedResponse(resp, "expected a config evaluation object")
	}
	if _, ok := fields["value"]; !ok {
		return ConfigEvaluation{}, malformedResponse(resp, "missing field `value`")
	}
	evaluation, err := decodeResponse[ConfigEvaluation](resp, now)
	if err != nil {
		return ConfigEvaluation{}, err
	}
	if evaluation.Name == "" {
		evaluation.Name = requested
	}
	return evaluation, nil
}
