package model

import "time"

type EnrollmentStatus string

const ENROLLMENT_STATUS_ACTIVE EnrollmentStatus = "active"
const ENROLLMENT_STATUS_WAITING EnrollmentStatus = "waiting"
const ENROLLMENT_STATUS_COMPLETED EnrollmentStatus = "completed"
const ENROLLMENT_STATUS_EXITED EnrollmentStatus = "exited"
const ENROLLMENT_STATUS_FAILED EnrollmentStatus = "failed"

func (s EnrollmentStatus) Terminal() bool {
	return s == ENROLLMENT_STATUS_COMPLETED || s == ENROLLMENT_STATUS_EXITED || s == ENROLLMENT_STATUS_FAILED
}

const EXIT_REASON_COMPLETED string = "completed"
const EXIT_REASON_NO_PATH string = "no_path"
const EXIT_REASON_NODE_FAILURE string = "node_failure"

// Enrollment is one customer's live execution instance against one
// journey. It is append-only journey history: enrollments are never
// deleted, and once a terminal status is reached no field changes again.
type Enrollment struct {
	Id                     string             `json:"id"`
	JourneyId              string             `json:"journeyId"`
	CustomerId             string             `json:"customerId"`
	CustomerEmail          string             `json:"customerEmail,omitempty"`
	CustomerPhone          string             `json:"customerPhone,omitempty"`
	Status                 EnrollmentStatus   `json:"status"`
	CurrentNodeId          string             `json:"currentNodeId,omitempty"`
	CompletedNodes         []string           `json:"completedNodes"`
	EnteredAt              time.Time          `json:"enteredAt"`
	LastActivityAt         time.Time          `json:"lastActivityAt"`
	CompletedAt            *time.Time         `json:"completedAt,omitempty"`
	GoalAchieved           bool               `json:"goalAchieved,omitempty"`
	ConversionValue        float64            `json:"conversionValue,omitempty"`
	Context                EnrollmentContext  `json:"context"`
	WaitingForEvent        string             `json:"waitingForEvent,omitempty"`
	WaitingForEventTimeout *time.Time         `json:"waitingForEventTimeout,omitempty"`
	WaitingForGoal         bool               `json:"waitingForGoal,omitempty"`
	GoalNodeId             string             `json:"goalNodeId,omitempty"`
	ExitReason             string             `json:"exitReason,omitempty"`
	Metadata               EnrollmentMetadata `json:"metadata"`
	Version                int64              `json:"version"`
}

type EnrollmentContext struct {
	TriggerEvent map[string]any `json:"triggerEvent,omitempty"`
	Variables    map[string]any `json:"variables,omitempty"`
}

type EnrollmentMetadata struct {
	Failures    map[string]*FailureState         `json:"failures,omitempty"`
	Experiments map[string]*ExperimentAssignment `json:"experiments,omitempty"`
}

// FailureState tracks attempts for one node within one enrollment. It is
// cleared on any successful execution of that node.
type FailureState struct {
	Attempts      int       `json:"attempts"`
	FirstFailedAt time.Time `json:"firstFailedAt"`
	LastFailedAt  time.Time `json:"lastFailedAt"`
	LastError     string    `json:"lastError,omitempty"`
}

// ExperimentAssignment is written once per (enrollment, node) and never
// overwritten; only EdgeId is backfilled after the routed edge resolves.
type ExperimentAssignment struct {
	VariantId        string    `json:"variantId,omitempty"`
	VariantLabel     string    `json:"variantLabel"`
	Weight           float64   `json:"weight,omitempty"`
	AssignedAt       time.Time `json:"assignedAt"`
	EvaluationMetric string    `json:"evaluationMetric,omitempty"`
	GuardrailMetric  string    `json:"guardrailMetric,omitempty"`
	SampleSize       int       `json:"sampleSize,omitempty"`
	EdgeId           string    `json:"edgeId,omitempty"`
}

func (e *Enrollment) FailureStateFor(nodeId string) *FailureState {
	if e.Metadata.Failures == nil {
		return nil
	}
	return e.Metadata.Failures[nodeId]
}

func (e *Enrollment) RecordFailure(nodeId string, errMsg string, now time.Time) *FailureState {
	if e.Metadata.Failures == nil {
		e.Metadata.Failures = make(map[string]*FailureState)
	}
	fs := e.Metadata.Failures[nodeId]
	if fs == nil {
		fs = &FailureState{FirstFailedAt: now}
		e.Metadata.Failures[nodeId] = fs
	}
	fs.Attempts++
	fs.LastFailedAt = now
	fs.LastError = errMsg
	return fs
}

func (e *Enrollment) ClearFailure(nodeId string) {
	if e.Metadata.Failures != nil {
		delete(e.Metadata.Failures, nodeId)
	}
}

func (e *Enrollment) AssignmentFor(nodeId string) *ExperimentAssignment {
	if e.Metadata.Experiments == nil {
		return nil
	}
	return e.Metadata.Experiments[nodeId]
}

func (e *Enrollment) SetAssignment(nodeId string, assignment *ExperimentAssignment) {
	if e.Metadata.Experiments == nil {
		e.Metadata.Experiments = make(map[string]*ExperimentAssignment)
	}
	e.Metadata.Experiments[nodeId] = assignment
}
