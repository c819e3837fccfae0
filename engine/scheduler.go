package engine

import (
	"time"

	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"go.uber.org/zap"
)

type DrainResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// ProcessScheduledExecutions drains every pending record due at or
// before now. Records are marked processed before the enrollment is
// advanced, so a crash mid-drain never replays a node.
func (e *Engine) ProcessScheduledExecutions(now time.Time) DrainResult {
	var result DrainResult
	due, err := e.storage.Schedules().GetDue(now)
	if err != nil {
		logger.Error("error loading due schedules", zap.Error(err))
		return result
	}
	for i := range due {
		if e.processRecord(&due[i], now) {
			result.Processed++
		} else {
			result.Failed++
		}
	}
	if result.Processed > 0 || result.Failed > 0 {
		logger.Info("scheduler pass done", zap.Int("processed", result.Processed), zap.Int("failed", result.Failed))
	}
	return result
}

func (e *Engine) processRecord(record *model.ScheduledExecutionRecord, now time.Time) bool {
	enrollment, err := e.storage.Enrollments().Get(record.EnrollmentId)
	if err != nil {
		e.finishRecord(record, model.SCHEDULE_STATUS_FAILED, err.Error(), now)
		return false
	}
	if enrollment == nil {
		e.finishRecord(record, model.SCHEDULE_STATUS_FAILED, "enrollment no longer exists", now)
		return false
	}
	journey, err := e.storage.Journeys().Get(enrollment.JourneyId)
	if err != nil || journey == nil {
		e.finishRecord(record, model.SCHEDULE_STATUS_FAILED, "journey no longer exists", now)
		return false
	}
	if journey.NodeById(record.NodeId) == nil {
		e.finishRecord(record, model.SCHEDULE_STATUS_FAILED, "node no longer exists", now)
		return false
	}

	e.finishRecord(record, model.SCHEDULE_STATUS_PROCESSED, "", now)

	// the enrollment may have moved on or terminated since this record
	// was written; a stale record is a successful no-op
	if enrollment.Status != model.ENROLLMENT_STATUS_WAITING || enrollment.CurrentNodeId != record.NodeId {
		return true
	}

	enrollment.Status = model.ENROLLMENT_STATUS_ACTIVE
	if record.IsRetry() {
		if err := e.ExecuteNode(journey, enrollment, record.NodeId); err != nil {
			logger.Error("error re-executing node", zap.String("enrollmentId", enrollment.Id), zap.String("nodeId", record.NodeId), zap.Error(err))
		}
		return true
	}

	enrollment.WaitingForEvent = ""
	enrollment.WaitingForEventTimeout = nil
	e.completeNode(enrollment, record.NodeId)
	if err := e.saveEnrollment(enrollment); err != nil {
		logger.Error("error resuming enrollment", zap.String("enrollmentId", enrollment.Id), zap.Error(err))
		return true
	}
	if err := e.moveToNext(journey, enrollment, record.NodeId); err != nil {
		logger.Error("error advancing enrollment", zap.String("enrollmentId", enrollment.Id), zap.Error(err))
	}
	return true
}

func (e *Engine) finishRecord(record *model.ScheduledExecutionRecord, status model.ScheduleStatus, reason string, now time.Time) {
	record.Status = status
	record.ProcessedAt = &now
	record.Error = reason
	if err := e.storage.Schedules().Update(*record); err != nil {
		logger.Error("error updating schedule", zap.String("scheduleId", record.Id), zap.Error(err))
	}
}
