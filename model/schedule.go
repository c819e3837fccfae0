package model

import "time"

type ScheduleStatus string

const SCHEDULE_STATUS_PENDING ScheduleStatus = "pending"
const SCHEDULE_STATUS_PROCESSED ScheduleStatus = "processed"
const SCHEDULE_STATUS_FAILED ScheduleStatus = "failed"
const SCHEDULE_STATUS_CANCELLED ScheduleStatus = "cancelled"

const SCHEDULE_KIND_RETRY string = "retry"

// ScheduledExecutionRecord is a durable future resumption point for an
// enrollment. Each record leaves pending exactly once.
type ScheduledExecutionRecord struct {
	Id           string            `json:"id"`
	JourneyId    string            `json:"journeyId"`
	EnrollmentId string            `json:"enrollmentId"`
	NodeId       string            `json:"nodeId"`
	ResumeAt     time.Time         `json:"resumeAt"`
	Status       ScheduleStatus    `json:"status"`
	CreatedAt    time.Time         `json:"createdAt"`
	ProcessedAt  *time.Time        `json:"processedAt,omitempty"`
	Error        string            `json:"error,omitempty"`
	Metadata     *ScheduleMetadata `json:"metadata,omitempty"`
}

type ScheduleMetadata struct {
	Kind    string `json:"kind"`
	Attempt int    `json:"attempt,omitempty"`
	Reason  string `json:"reason,omitempty"`
}

func (r *ScheduledExecutionRecord) IsRetry() bool {
	return r.Metadata != nil && r.Metadata.Kind == SCHEDULE_KIND_RETRY
}
