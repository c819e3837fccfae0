package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"go.uber.org/zap"
)

const SUBTYPE_SEND_WHATSAPP string = "send_whatsapp"
const SUBTYPE_ADD_TAG string = "add_tag"
const SUBTYPE_UPDATE_PROPERTY string = "update_property"
const SUBTYPE_AB_TEST string = "ab_test"

const DELAY_MODE_EVENT string = "event"
const DELAY_MODE_UNTIL string = "until"

const defaultTrueLabel string = "Yes"
const defaultFalseLabel string = "No"

// ExecuteNode drives the enrollment from the given node until it parks
// (waiting) or terminates. The enrollment is persisted on node entry and
// after every mutation, so a crash resumes from the last stable state.
func (e *Engine) ExecuteNode(journey *model.JourneyDefinition, enrollment *model.Enrollment, nodeId string) error {
	if enrollment.Status.Terminal() {
		return nil
	}
	node := journey.NodeById(nodeId)
	if node == nil {
		return e.exitJourney(enrollment, model.EXIT_REASON_NO_PATH)
	}
	enrollment.Status = model.ENROLLMENT_STATUS_ACTIVE
	enrollment.CurrentNodeId = node.Id
	enrollment.LastActivityAt = e.now()
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.logActivity(enrollment.Id, model.ACTIVITY_NODE_ENTERED, map[string]any{"nodeId": node.Id, "nodeType": string(node.Type)})

	switch node.Type {
	case model.NODE_TYPE_ACTION:
		return e.executeAction(journey, enrollment, node)
	case model.NODE_TYPE_DELAY:
		return e.executeDelay(journey, enrollment, node)
	case model.NODE_TYPE_CONDITION:
		if isExperiment(node.Subtype) {
			return e.executeExperiment(journey, enrollment, node)
		}
		return e.executeCondition(journey, enrollment, node)
	case model.NODE_TYPE_GOAL:
		return e.executeGoal(journey, enrollment, node)
	default:
		// triggers and unknown node types pass straight through
		e.completeNode(enrollment, node.Id)
		return e.moveToNext(journey, enrollment, node.Id)
	}
}

func isExperiment(subtype string) bool {
	return strings.EqualFold(subtype, SUBTYPE_AB_TEST) || strings.EqualFold(subtype, "experiment")
}

func (e *Engine) completeNode(enrollment *model.Enrollment, nodeId string) {
	enrollment.CompletedNodes = append(enrollment.CompletedNodes, nodeId)
	enrollment.ClearFailure(nodeId)
}

func (e *Engine) moveToNext(journey *model.JourneyDefinition, enrollment *model.Enrollment, nodeId string) error {
	edge := journey.DefaultEdge(nodeId)
	if edge == nil {
		return e.completeJourney(enrollment)
	}
	return e.followEdge(journey, enrollment, edge)
}

func (e *Engine) followEdge(journey *model.JourneyDefinition, enrollment *model.Enrollment, edge *model.Edge) error {
	if journey.NodeById(edge.Target) == nil {
		return e.exitJourney(enrollment, model.EXIT_REASON_NO_PATH)
	}
	return e.ExecuteNode(journey, enrollment, edge.Target)
}

func (e *Engine) executeAction(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node) error {
	cfg, err := model.DecodeConfig[model.ActionConfig](node)
	if err != nil {
		// unreadable config is a structural defect, not a transient fault
		e.logActivity(enrollment.Id, model.ACTIVITY_NODE_FAILED, map[string]any{"nodeId": node.Id, "error": err.Error()})
		return e.failJourney(enrollment)
	}
	if err := e.runAction(enrollment, node, cfg); err != nil {
		return e.handleActionFailure(journey, enrollment, node, cfg, err)
	}
	e.completeNode(enrollment, node.Id)
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	return e.moveToNext(journey, enrollment, node.Id)
}

func (e *Engine) runAction(enrollment *model.Enrollment, node *model.Node, cfg *model.ActionConfig) error {
	switch node.Subtype {
	case SUBTYPE_SEND_WHATSAPP:
		phone := enrollment.CustomerPhone
		if len(phone) == 0 {
			customer, err := e.directory.GetCustomer(enrollment.CustomerId)
			if err != nil {
				return err
			}
			if customer != nil {
				phone = customer.Phone
			}
		}
		if len(phone) == 0 {
			return fmt.Errorf("customer %s has no phone number", enrollment.CustomerId)
		}
		language := cfg.Language
		if len(language) == 0 {
			language = "en"
		}
		result, err := e.sender.SendTemplatedMessage(phone, cfg.TemplateName, language, cfg.Variables)
		if err != nil {
			return err
		}
		if !result.Success {
			return fmt.Errorf("dispatch failed: %s", result.Error)
		}
		e.logActivity(enrollment.Id, model.ACTIVITY_MESSAGE_SENT, map[string]any{
			"nodeId":    node.Id,
			"template":  cfg.TemplateName,
			"messageId": result.MessageId,
		})
		return nil
	case SUBTYPE_ADD_TAG:
		if err := e.mutator.AddTag(enrollment.CustomerId, cfg.Tag); err != nil {
			return err
		}
		e.logActivity(enrollment.Id, model.ACTIVITY_TAG_ADDED, map[string]any{"nodeId": node.Id, "tag": cfg.Tag})
		return nil
	case SUBTYPE_UPDATE_PROPERTY:
		if err := e.mutator.UpdateMetafield(enrollment.CustomerId, cfg.PropertyKey, cfg.PropertyValue); err != nil {
			return err
		}
		e.logActivity(enrollment.Id, model.ACTIVITY_PROPERTY_UPDATED, map[string]any{"nodeId": node.Id, "key": cfg.PropertyKey})
		return nil
	default:
		return nil
	}
}

func (e *Engine) handleActionFailure(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node, cfg *model.ActionConfig, actionErr error) error {
	now := e.now()
	failure := enrollment.RecordFailure(node.Id, actionErr.Error(), now)
	e.logActivity(enrollment.Id, model.ACTIVITY_NODE_FAILED, map[string]any{
		"nodeId":   node.Id,
		"error":    actionErr.Error(),
		"attempts": failure.Attempts,
	})
	policy := PolicyForNode(cfg)
	if failure.Attempts >= policy.MaxAttempts {
		logger.Error("action retries exhausted, failing enrollment",
			zap.String("enrollmentId", enrollment.Id), zap.String("nodeId", node.Id), zap.Int("attempts", failure.Attempts))
		return e.failJourney(enrollment)
	}
	delay := policy.NextDelay(failure.Attempts)
	record := model.ScheduledExecutionRecord{
		Id:           uuid.New().String(),
		JourneyId:    journey.Id,
		EnrollmentId: enrollment.Id,
		NodeId:       node.Id,
		ResumeAt:     now.Add(delay),
		Status:       model.SCHEDULE_STATUS_PENDING,
		CreatedAt:    now,
		Metadata:     &model.ScheduleMetadata{Kind: model.SCHEDULE_KIND_RETRY, Attempt: failure.Attempts, Reason: actionErr.Error()},
	}
	if err := e.storage.Schedules().Save(record); err != nil {
		return err
	}
	enrollment.Status = model.ENROLLMENT_STATUS_WAITING
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.logActivity(enrollment.Id, model.ACTIVITY_RETRY_SCHEDULED, map[string]any{
		"nodeId":   node.Id,
		"attempt":  failure.Attempts,
		"resumeAt": record.ResumeAt,
	})
	return nil
}

func (e *Engine) executeDelay(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node) error {
	cfg, err := model.DecodeConfig[model.DelayConfig](node)
	if err != nil {
		cfg = &model.DelayConfig{}
	}
	now := e.now()
	switch {
	case cfg.DelayMode == DELAY_MODE_EVENT && len(cfg.Event) > 0:
		enrollment.WaitingForEvent = cfg.Event
		if cfg.TimeoutDuration > 0 {
			timeout := now.Add(durationIn(cfg.TimeoutDuration, cfg.TimeoutUnit))
			enrollment.WaitingForEventTimeout = &timeout
			if err := e.scheduleResume(journey, enrollment, node, timeout, now); err != nil {
				return err
			}
		}
		enrollment.Status = model.ENROLLMENT_STATUS_WAITING
		if err := e.saveEnrollment(enrollment); err != nil {
			return err
		}
		e.logActivity(enrollment.Id, model.ACTIVITY_DELAY_SCHEDULED, map[string]any{"nodeId": node.Id, "mode": DELAY_MODE_EVENT, "event": cfg.Event})
		return nil
	case cfg.DelayMode == DELAY_MODE_UNTIL && len(cfg.Until) > 0:
		until, perr := time.Parse(time.RFC3339, cfg.Until)
		if perr == nil {
			return e.parkUntil(journey, enrollment, node, until, now)
		}
	case cfg.Duration > 0:
		return e.parkUntil(journey, enrollment, node, now.Add(durationIn(cfg.Duration, cfg.Unit)), now)
	}
	// no delay parameters resolvable: fall through immediately
	e.completeNode(enrollment, node.Id)
	return e.moveToNext(journey, enrollment, node.Id)
}

func (e *Engine) parkUntil(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node, resumeAt time.Time, now time.Time) error {
	if err := e.scheduleResume(journey, enrollment, node, resumeAt, now); err != nil {
		return err
	}
	enrollment.Status = model.ENROLLMENT_STATUS_WAITING
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.logActivity(enrollment.Id, model.ACTIVITY_DELAY_SCHEDULED, map[string]any{"nodeId": node.Id, "resumeAt": resumeAt})
	return nil
}

func (e *Engine) scheduleResume(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node, resumeAt time.Time, now time.Time) error {
	record := model.ScheduledExecutionRecord{
		Id:           uuid.New().String(),
		JourneyId:    journey.Id,
		EnrollmentId: enrollment.Id,
		NodeId:       node.Id,
		ResumeAt:     resumeAt,
		Status:       model.SCHEDULE_STATUS_PENDING,
		CreatedAt:    now,
	}
	return e.storage.Schedules().Save(record)
}

func durationIn(amount float64, unit string) time.Duration {
	switch strings.ToLower(unit) {
	case "seconds":
		return time.Duration(amount * float64(time.Second))
	case "minutes":
		return time.Duration(amount * float64(time.Minute))
	case "hours":
		return time.Duration(amount * float64(time.Hour))
	case "weeks":
		return time.Duration(amount * float64(7*24*time.Hour))
	default:
		return time.Duration(amount * float64(24*time.Hour))
	}
}

func (e *Engine) executeCondition(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node) error {
	cfg, err := model.DecodeConfig[model.ConditionConfig](node)
	if err != nil {
		cfg = &model.ConditionConfig{}
	}
	ctx := &Context{
		CustomerId:   enrollment.CustomerId,
		Order:        enrollment.Context.TriggerEvent,
		TriggerEvent: enrollment.Context.TriggerEvent,
	}
	result := e.evaluator.Evaluate(cfg.Conditions, ctx, cfg.Logic)
	label := cfg.TrueLabel
	if len(label) == 0 {
		label = defaultTrueLabel
	}
	if !result {
		label = cfg.FalseLabel
		if len(label) == 0 {
			label = defaultFalseLabel
		}
	}
	edge := journey.LabeledEdge(node.Id, label)
	if edge == nil {
		return e.exitJourney(enrollment, model.EXIT_REASON_NO_PATH)
	}
	e.completeNode(enrollment, node.Id)
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	return e.followEdge(journey, enrollment, edge)
}

func (e *Engine) executeExperiment(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node) error {
	cfg, err := model.DecodeConfig[model.ExperimentConfig](node)
	if err != nil || len(cfg.Variants) == 0 {
		e.logActivity(enrollment.Id, model.ACTIVITY_NODE_FAILED, map[string]any{"nodeId": node.Id, "error": "experiment has no variants"})
		return e.failJourney(enrollment)
	}
	assignment := enrollment.AssignmentFor(node.Id)
	if assignment == nil {
		variant := pickVariant(enrollment.Id, node.Id, cfg.Variants)
		assignment = &model.ExperimentAssignment{
			VariantId:        variant.Id,
			VariantLabel:     variant.Label,
			Weight:           variant.Weight,
			AssignedAt:       e.now(),
			EvaluationMetric: cfg.EvaluationMetric,
			GuardrailMetric:  cfg.GuardrailMetric,
			SampleSize:       cfg.SampleSize,
		}
		enrollment.SetAssignment(node.Id, assignment)
	}
	edge := journey.LabeledEdge(node.Id, assignment.VariantLabel)
	if edge == nil && len(assignment.VariantId) > 0 {
		edge = journey.LabeledEdge(node.Id, assignment.VariantId)
	}
	if edge == nil {
		// an experiment with no routable path is a configuration defect
		e.saveEnrollment(enrollment)
		e.logActivity(enrollment.Id, model.ACTIVITY_NODE_FAILED, map[string]any{"nodeId": node.Id, "error": "no edge matches assigned variant"})
		return e.failJourney(enrollment)
	}
	assignment.EdgeId = edge.Id
	e.completeNode(enrollment, node.Id)
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	return e.followEdge(journey, enrollment, edge)
}

func (e *Engine) executeGoal(journey *model.JourneyDefinition, enrollment *model.Enrollment, node *model.Node) error {
	cfg, err := model.DecodeConfig[model.GoalConfig](node)
	if err != nil {
		cfg = &model.GoalConfig{}
	}
	achieved, value := e.checkGoal(enrollment, cfg)
	if achieved {
		e.completeNode(enrollment, node.Id)
		enrollment.GoalAchieved = true
		enrollment.ConversionValue = value
		e.logActivity(enrollment.Id, model.ACTIVITY_GOAL_ACHIEVED, map[string]any{"nodeId": node.Id, "goalType": cfg.GoalType, "value": value})
		return e.completeJourney(enrollment)
	}
	enrollment.WaitingForGoal = true
	enrollment.GoalNodeId = node.Id
	enrollment.Status = model.ENROLLMENT_STATUS_WAITING
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.logActivity(enrollment.Id, model.ACTIVITY_GOAL_PENDING, map[string]any{"nodeId": node.Id, "goalType": cfg.GoalType})
	return nil
}

func (e *Engine) completeJourney(enrollment *model.Enrollment) error {
	now := e.now()
	enrollment.Status = model.ENROLLMENT_STATUS_COMPLETED
	enrollment.CompletedAt = &now
	enrollment.LastActivityAt = now
	enrollment.WaitingForGoal = false
	enrollment.WaitingForEvent = ""
	enrollment.WaitingForEventTimeout = nil
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.cancelPendingSchedules(enrollment.Id)
	e.logActivity(enrollment.Id, model.ACTIVITY_JOURNEY_COMPLETED, map[string]any{"goalAchieved": enrollment.GoalAchieved})
	logger.Info("journey completed", zap.String("journeyId", enrollment.JourneyId), zap.String("enrollmentId", enrollment.Id))
	return nil
}

func (e *Engine) exitJourney(enrollment *model.Enrollment, reason string) error {
	enrollment.Status = model.ENROLLMENT_STATUS_EXITED
	enrollment.ExitReason = reason
	enrollment.LastActivityAt = e.now()
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.cancelPendingSchedules(enrollment.Id)
	e.logActivity(enrollment.Id, model.ACTIVITY_JOURNEY_EXITED, map[string]any{"reason": reason})
	logger.Info("journey exited", zap.String("journeyId", enrollment.JourneyId), zap.String("enrollmentId", enrollment.Id), zap.String("reason", reason))
	return nil
}

func (e *Engine) failJourney(enrollment *model.Enrollment) error {
	enrollment.Status = model.ENROLLMENT_STATUS_FAILED
	enrollment.ExitReason = model.EXIT_REASON_NODE_FAILURE
	enrollment.LastActivityAt = e.now()
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.cancelPendingSchedules(enrollment.Id)
	e.logActivity(enrollment.Id, model.ACTIVITY_JOURNEY_FAILED, map[string]any{"reason": model.EXIT_REASON_NODE_FAILURE})
	logger.Info("journey failed", zap.String("journeyId", enrollment.JourneyId), zap.String("enrollmentId", enrollment.Id))
	return nil
}

func (e *Engine) cancelPendingSchedules(enrollmentId string) {
	pending, err := e.storage.Schedules().GetPendingByEnrollment(enrollmentId)
	if err != nil {
		logger.Error("error loading pending schedules", zap.String("enrollmentId", enrollmentId), zap.Error(err))
		return
	}
	now := e.now()
	for _, record := range pending {
		record.Status = model.SCHEDULE_STATUS_CANCELLED
		record.ProcessedAt = &now
		if err := e.storage.Schedules().Update(record); err != nil {
			logger.Error("error cancelling schedule", zap.String("scheduleId", record.Id), zap.Error(err))
		}
	}
}

// ExitJourney removes an enrollment from its journey explicitly, for
// example on unsubscribe. Terminal enrollments are left untouched.
func (e *Engine) ExitJourney(enrollmentId string, reason string) error {
	enrollment, err := e.storage.Enrollments().Get(enrollmentId)
	if err != nil {
		return err
	}
	if enrollment == nil {
		return fmt.Errorf("enrollment %s not found", enrollmentId)
	}
	if enrollment.Status.Terminal() {
		return nil
	}
	if len(reason) == 0 {
		reason = "manual"
	}
	return e.exitJourney(enrollment, reason)
}
