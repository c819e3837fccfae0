package model

import "time"

// TriggerEvent is one inbound business event as handed over by the
// webhook ingestion layer.
type TriggerEvent struct {
	Shop       string         `json:"shop,omitempty"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt time.Time      `json:"receivedAt"`
}

type EventRequest struct {
	EventType  string         `json:"eventType"`
	Shop       string         `json:"shop,omitempty"`
	Payload    map[string]any `json:"payload"`
	ReceivedAt *time.Time     `json:"receivedAt,omitempty"`
}
