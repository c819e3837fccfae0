package model

import "time"

const ACTIVITY_JOURNEY_STARTED string = "journey_started"
const ACTIVITY_NODE_ENTERED string = "node_entered"
const ACTIVITY_MESSAGE_SENT string = "message_sent"
const ACTIVITY_TAG_ADDED string = "tag_added"
const ACTIVITY_PROPERTY_UPDATED string = "property_updated"
const ACTIVITY_NODE_FAILED string = "node_failed"
const ACTIVITY_RETRY_SCHEDULED string = "retry_scheduled"
const ACTIVITY_DELAY_SCHEDULED string = "delay_scheduled"
const ACTIVITY_GOAL_ACHIEVED string = "goal_achieved"
const ACTIVITY_GOAL_PENDING string = "goal_pending"
const ACTIVITY_JOURNEY_COMPLETED string = "journey_completed"
const ACTIVITY_JOURNEY_EXITED string = "journey_exited"
const ACTIVITY_JOURNEY_FAILED string = "journey_failed"
const ACTIVITY_LINK_CLICKED string = "link_clicked"

// ActivityLogRecord is a write-once audit entry. The store keeps only
// the 500 most recent entries per collection.
type ActivityLogRecord struct {
	Id           string         `json:"id"`
	EnrollmentId string         `json:"enrollmentId"`
	Timestamp    time.Time      `json:"timestamp"`
	EventType    string         `json:"eventType"`
	Data         map[string]any `json:"data,omitempty"`
}
