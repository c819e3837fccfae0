package model

import (
	"encoding/json"

	"dario.cat/mergo"
)

// Config flattens the node data bag into a single map. Authoring tools
// write overlapping copies of node settings under data, data.meta and
// data.config; later sources win on key conflicts and nested maps are
// merged deep. Callers rely on meta/config shadowing top-level fields.
func (n *Node) Config() map[string]any {
	merged := make(map[string]any)
	base := make(map[string]any)
	for k, v := range n.Data {
		if k == "meta" || k == "config" {
			continue
		}
		base[k] = v
	}
	mergo.Merge(&merged, base)
	if meta, ok := n.Data["meta"].(map[string]any); ok {
		mergo.Merge(&merged, meta, mergo.WithOverride)
	}
	if conf, ok := n.Data["config"].(map[string]any); ok {
		mergo.Merge(&merged, conf, mergo.WithOverride)
	}
	return merged
}

// DecodeConfig maps the merged node configuration onto a typed struct so
// the executor never reads the raw bag.
func DecodeConfig[T any](n *Node) (*T, error) {
	data, err := json.Marshal(n.Config())
	if err != nil {
		return nil, err
	}
	var cfg T
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Condition struct {
	Source   string `json:"source"`
	Field    string `json:"field"`
	Operator string `json:"operator"`
	Value    any    `json:"value"`
}

type TriggerConfig struct {
	Event              string      `json:"event"`
	SegmentId          string      `json:"segmentId"`
	AbandonmentHours   int         `json:"abandonmentHours"`
	OrderValueOperator string      `json:"orderValueOperator"`
	OrderValueAmount   float64     `json:"orderValueAmount"`
	ProductCategories  []string    `json:"productCategories"`
	CustomerTags       []string    `json:"customerTags"`
	LocationField      string      `json:"locationField"`
	LocationValue      string      `json:"locationValue"`
	Conditions         []Condition `json:"conditions"`
	ConditionLogic     string      `json:"conditionLogic"`
}

type ActionConfig struct {
	TemplateName      string            `json:"templateName"`
	Language          string            `json:"language"`
	Variables         map[string]string `json:"variables"`
	Tag               string            `json:"tag"`
	PropertyKey       string            `json:"propertyKey"`
	PropertyValue     string            `json:"propertyValue"`
	RetryMaxAttempts  int               `json:"retryMaxAttempts"`
	RetryStrategy     string            `json:"retryStrategy"`
	RetryDelayMs      int64             `json:"retryDelayMs"`
	RetryDelayMinutes int               `json:"retryDelayMinutes"`
	RetryMaxDelayMs   int64             `json:"retryMaxDelayMs"`
}

type DelayConfig struct {
	DelayMode       string  `json:"delayMode"`
	Duration        float64 `json:"duration"`
	Unit            string  `json:"unit"`
	Event           string  `json:"event"`
	TimeoutDuration float64 `json:"timeoutDuration"`
	TimeoutUnit     string  `json:"timeoutUnit"`
	Until           string  `json:"until"`
}

type ConditionConfig struct {
	Conditions []Condition `json:"conditions"`
	Logic      string      `json:"logic"`
	TrueLabel  string      `json:"trueLabel"`
	FalseLabel string      `json:"falseLabel"`
}

type Variant struct {
	Id     string  `json:"id"`
	Label  string  `json:"label"`
	Weight float64 `json:"weight"`
}

type ExperimentConfig struct {
	Variants         []Variant `json:"variants"`
	EvaluationMetric string    `json:"evaluationMetric"`
	GuardrailMetric  string    `json:"guardrailMetric"`
	SampleSize       int       `json:"sampleSize"`
}

type GoalConfig struct {
	GoalType    string  `json:"goalType"`
	Threshold   float64 `json:"threshold"`
	ProductId   string  `json:"productId"`
	Tag         string  `json:"tag"`
	TrackingId  string  `json:"trackingId"`
	Description string  `json:"description"`
}
