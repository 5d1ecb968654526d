package statsig

import (
	"errors"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// Event is a custom analytics event sent to the events endpoint.
type Event struct {
	EventName          string                  `json:"eventName"`
	Value              *EventValue             `json:"value,omitempty"`
	Time               *EventTime              `json:"time,omitempty"`
	User               *User                   `json:"user,omitempty"`
	Metadata           map[string]string       `json:"metadata,omitempty"`
	SecondaryExposures []ExposureEventMetadata `json:"secondaryExposures,omitempty"`
	StatsigMetadata    *Metadata               `json:"statsigMetadata,omitempty"`
}

// ExposureEventMetadata records a gate exposure attached to an event.
type ExposureEventMetadata struct {
	Gate      string `json:"gate"`
	GateValue string `json:"gateValue"`
	RuleID    string `json:"ruleID"`
}

// EventValue is either a string or a number. It is encoded as a bare JSON value.
type EventValue struct {
	str      string
	num      float64
	isNumber bool
}

// StringValue returns an EventValue holding s.
func StringValue(s string) *EventValue {
	return &EventValue{str: s}
}

// NumberValue returns an EventValue holding n.
func NumberValue(n float64) *EventValue {
	return &EventValue{num: n, isNumber: true}
}

// String returns the value formatted as a string.
func (v EventValue) String() string {
	if v.isNumber {
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	}
	return v.str
}

// Number returns the numeric value and whether the value is a number.
func (v EventValue) Number() (float64, bool) {
	return v.num, v.isNumber
}

func (v EventValue) MarshalJSON() ([]byte, error) {
	if v.isNumber {
		return json.Marshal(v.num)
	}
	return json.Marshal(v.str)
}

func (v *EventValue) UnmarshalJSON(data []byte) error {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		*v = EventValue{str: str}
		return nil
	}
	var num float64
	if err := json.Unmarshal(data, &num); err != nil {
		return errors.New("event value must be a string or a number")
	}
	*v = EventValue{num: num, isNumber: true}
	return nil
}

// EventTime is either unix milliseconds or an ISO-8601 timestamp string.
type EventTime struct {
	millis int64
	iso    string
}

// UnixMillis returns an EventTime encoded as milliseconds since the epoch.
func UnixMillis(ms int64) *EventTime {
	return &EventTime{millis: ms}
}

// ISOTime returns an EventTime encoded as an RFC 3339 string.
func ISOTime(t time.Time) *EventTime {
	return &EventTime{iso: t.UTC().Format(time.RFC3339Nano)}
}

func (t EventTime) MarshalJSON() ([]byte, error) {
	if t.iso != "" {
		return json.Marshal(t.iso)
	}
	return json.Marshal(t.millis)
}

func (t *EventTime) UnmarshalJSON(data []byte) error {
	var millis int64
	if err := json.Unmarshal(data, &millis); err == nil {
		*t = EventTime{millis: millis}
		return nil
	}
	var iso string
	if err := json.Unmarshal(data, &iso); err != nil {
		return errors.New("event time must be unix milliseconds or an ISO timestamp")
	}
	*t = EventTime{iso: iso}
	return nil
}
