package models

import (
	"strings"
	"time"
)

// IncidentEvent is the canonical, immutable description of an incident handed to the engine.
type IncidentEvent struct {
	IncidentID       string            `json:"incident_id"`
	Service          string            `json:"service"`
	ServiceTier      string            `json:"service_tier,omitempty"`
	AlertName        string            `json:"alert_name,omitempty"`
	AlertDescription string            `json:"alert_description,omitempty"`
	Metric           string            `json:"metric,omitempty"`
	Value            float64           `json:"value"`
	Threshold        float64           `json:"threshold"`
	LogGroup         string            `json:"log_group,omitempty"`
	Timestamp        time.Time         `json:"timestamp"`
	Tags             map[string]string `json:"tags,omitempty"`
	RawEvent         map[string]any    `json:"raw_event,omitempty"`
}

// Origin sources that mark an incident as raised by a human operator.
const (
	OriginChat     = "chat"
	OriginOperator = "operator"
	OriginQuery    = "query"
)

// Origin reports where the event came from, as recorded by the ingestion adapter.
func (e IncidentEvent) Origin() string {
	if e.RawEvent == nil {
		return ""
	}
	if v, ok := e.RawEvent["source"].(string); ok {
		return strings.ToLower(strings.TrimSpace(v))
	}
	return ""
}

// OperatorQuery returns the free-text question when the incident was opened by a human.
func (e IncidentEvent) OperatorQuery() string {
	if e.RawEvent == nil {
		return ""
	}
	for _, key := range []string{"user_query", "query"} {
		if v, ok := e.RawEvent[key].(string); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}

// IsOperatorInitiated reports whether the origin context marks an explicit human request.
func (e IncidentEvent) IsOperatorInitiated() bool {
	if v, ok := e.RawEvent["explicit_investigation"].(bool); ok && v {
		return true
	}
	switch e.Origin() {
	case OriginChat, OriginOperator, OriginQuery:
		return true
	}
	return false
}

// Region returns the region tag, if any.
func (e IncidentEvent) Region() string {
	if e.Tags == nil {
		return ""
	}
	for _, key := range []string{"region", "aws_region", "Region"} {
		if v := strings.TrimSpace(e.Tags[key]); v != "" {
			return v
		}
	}
	return ""
}
