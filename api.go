package statsig

// EntityKind distinguishes feature gates from dynamic configs.
type EntityKind int

const (
	// EntityGate is a boolean feature gate.
	EntityGate EntityKind = iota
	// EntityConfig is a dynamic config or experiment.
	EntityConfig
)

// String returns the name of the entity kind, as used in validation messages.
func (k EntityKind) String() string {
	if k == EntityConfig {
		return "config"
	}
	return "gate"
}

// Evaluation is the result of evaluating a single entity for a user.
// It is either a [GateEvaluation] or a [ConfigEvaluation].
type Evaluation interface {
	// EvaluationName returns the gate or config name.
	EvaluationName() string
	entityKind() EntityKind
}

// GateEvaluation is the server's answer for one feature gate.
type GateEvaluation struct {
	Name      string `json:"name"`
	Value     bool   `json:"value"`
	RuleID    string `json:"rule_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
}

// EvaluationName implements Evaluation.
func (g GateEvaluation) EvaluationName() string { return g.Name }

func (GateEvaluation) entityKind() EntityKind { return EntityGate }

// ConfigEvaluation is the server's answer for one dynamic config or experiment.
// Value holds the decoded JSON value of the config.
type ConfigEvaluation struct {
	Name      string `json:"name"`
	Value     any    `json:"value"`
	RuleID    string `json:"rule_id,omitempty"`
	GroupName string `json:"group_name,omitempty"`
	Group     string `json:"group,omitempty"`
}

// EvaluationName implements Evaluation.
func (c ConfigEvaluation) EvaluationName() string { return c.Name }

func (ConfigEvaluation) entityKind() EntityKind { return EntityConfig }

// Metadata identifies the SDK on every request.
type Metadata struct {
	SDKType                 string `json:"sdkType"`
	SDKVersion              string `json:"sdkVersion"`
	ExposureLoggingDisabled bool   `json:"exposureLoggingDisabled"`
	SessionID               string `json:"sessionID,omitempty"`
}

// LogEventResponse is returned by the event logging endpoint.
type LogEventResponse struct {
	Success bool `json:"success"`
}
