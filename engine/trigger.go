package engine

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sendloop/journey/logger"
	"github.com/sendloop/journey/model"
	"go.uber.org/zap"
)

// MatchAndExecute routes one inbound event: it enrolls the customer in
// every active journey whose trigger matches, resumes enrollments
// waiting on this event and re-checks pending goals for the customer.
// It returns the number of new enrollments created.
func (e *Engine) MatchAndExecute(eventType string, event model.TriggerEvent) (int, error) {
	if event.ReceivedAt.IsZero() {
		event.ReceivedAt = e.now()
	}
	customerId := customerIdFromPayload(event.Payload)
	matched := 0
	for _, journey := range e.activeJourneys() {
		j := journey
		for _, trigger := range j.TriggerNodes() {
			t := trigger
			cfg, err := model.DecodeConfig[model.TriggerConfig](&t)
			if err != nil {
				logger.Warn("unreadable trigger config", zap.String("journeyId", j.Id), zap.String("nodeId", t.Id), zap.Error(err))
				continue
			}
			if !e.triggerMatches(cfg, eventType, event, customerId) {
				continue
			}
			if len(customerId) == 0 {
				logger.Warn("matched event carries no customer id", zap.String("journeyId", j.Id), zap.String("eventType", eventType))
				continue
			}
			if !e.canEnterJourney(&j, customerId) {
				continue
			}
			if err := e.enroll(&j, &t, customerId, eventType, event); err != nil {
				logger.Error("enrollment failed", zap.String("journeyId", j.Id), zap.String("customerId", customerId), zap.Error(err))
				continue
			}
			matched++
			break
		}
	}
	if len(customerId) > 0 {
		e.resumeEventWaits(eventType, customerId)
		e.recheckGoals(customerId)
	}
	return matched, nil
}

func customerIdFromPayload(payload map[string]any) string {
	for _, key := range []string{"customer_id", "customerId"} {
		if id := idString(payload[key]); len(id) > 0 {
			return id
		}
	}
	if customer, ok := payload["customer"].(map[string]any); ok {
		return idString(customer["id"])
	}
	return ""
}

func idString(v any) string {
	switch id := v.(type) {
	case string:
		return id
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	default:
		return ""
	}
}

func (e *Engine) triggerMatches(cfg *model.TriggerConfig, eventType string, event model.TriggerEvent, customerId string) bool {
	if !strings.EqualFold(cfg.Event, eventType) {
		return false
	}
	payload := event.Payload

	if len(cfg.OrderValueOperator) > 0 {
		total, ok := toFloat(payload["total_price"])
		if !ok {
			return false
		}
		switch cfg.OrderValueOperator {
		case "gt":
			if !(total > cfg.OrderValueAmount) {
				return false
			}
		case "lt":
			if !(total < cfg.OrderValueAmount) {
				return false
			}
		case "eq":
			if total != cfg.OrderValueAmount {
				return false
			}
		default:
			return false
		}
	}

	if len(cfg.ProductCategories) > 0 && !lineItemsMatchCategory(payload, cfg.ProductCategories) {
		return false
	}

	if len(cfg.CustomerTags) > 0 {
		customer, err := e.directory.GetCustomer(customerId)
		if err != nil || customer == nil {
			return false
		}
		for _, tag := range cfg.CustomerTags {
			if !customer.HasTag(tag) {
				return false
			}
		}
	}

	if len(cfg.LocationField) > 0 && len(cfg.LocationValue) > 0 {
		customer, err := e.directory.GetCustomer(customerId)
		if err != nil || customer == nil {
			return false
		}
		if !strings.EqualFold(customer.DefaultAddress[cfg.LocationField], cfg.LocationValue) {
			return false
		}
	}

	if len(cfg.Conditions) > 0 {
		ctx := &Context{CustomerId: customerId, Order: payload, TriggerEvent: payload}
		if !e.evaluator.Evaluate(cfg.Conditions, ctx, cfg.ConditionLogic) {
			return false
		}
	}
	return true
}

func lineItemsMatchCategory(payload map[string]any, categories []string) bool {
	items, ok := payload["line_items"].([]any)
	if !ok {
		return false
	}
	for _, raw := range items {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		productType, _ := item["product_type"].(string)
		for _, category := range categories {
			if strings.EqualFold(productType, category) {
				return true
			}
		}
	}
	return false
}

// canEnterJourney enforces one live path per customer per journey, the
// journey's re-entry flag and the re-entry cooldown window.
func (e *Engine) canEnterJourney(journey *model.JourneyDefinition, customerId string) bool {
	prior, err := e.storage.Enrollments().GetByCustomer(customerId)
	if err != nil {
		logger.Error("error loading enrollments", zap.String("customerId", customerId), zap.Error(err))
		return false
	}
	var lastEntered *model.Enrollment
	for i := range prior {
		en := prior[i]
		if en.JourneyId != journey.Id {
			continue
		}
		if !en.Status.Terminal() {
			return false
		}
		if lastEntered == nil || en.EnteredAt.After(lastEntered.EnteredAt) {
			lastEntered = &en
		}
	}
	if lastEntered == nil {
		return true
	}
	if !journey.Settings.AllowReentry {
		return false
	}
	if journey.Settings.ReentryCooldownDays > 0 {
		cooldown := time.Duration(journey.Settings.ReentryCooldownDays) * 24 * time.Hour
		if e.now().Before(lastEntered.EnteredAt.Add(cooldown)) {
			return false
		}
	}
	return true
}

func (e *Engine) enroll(journey *model.JourneyDefinition, trigger *model.Node, customerId string, eventType string, event model.TriggerEvent) error {
	now := e.now()
	enrollment := &model.Enrollment{
		Id:             uuid.New().String(),
		JourneyId:      journey.Id,
		CustomerId:     customerId,
		Status:         model.ENROLLMENT_STATUS_ACTIVE,
		CurrentNodeId:  trigger.Id,
		CompletedNodes: []string{trigger.Id},
		EnteredAt:      now,
		LastActivityAt: now,
		Context: model.EnrollmentContext{
			TriggerEvent: event.Payload,
			Variables:    map[string]any{"eventType": eventType},
		},
	}
	if customer, err := e.directory.GetCustomer(customerId); err == nil && customer != nil {
		enrollment.CustomerEmail = customer.Email
		enrollment.CustomerPhone = customer.Phone
	}
	if err := e.saveEnrollment(enrollment); err != nil {
		return err
	}
	e.logActivity(enrollment.Id, model.ACTIVITY_JOURNEY_STARTED, map[string]any{
		"journeyId": journey.Id,
		"eventType": eventType,
		"triggerId": trigger.Id,
	})
	logger.Info("customer enrolled", zap.String("journeyId", journey.Id), zap.String("customerId", customerId), zap.String("enrollmentId", enrollment.Id))
	edge := journey.DefaultEdge(trigger.Id)
	if edge == nil {
		logger.Warn("trigger has no outgoing edge", zap.String("journeyId", journey.Id), zap.String("nodeId", trigger.Id))
		return nil
	}
	return e.followEdge(journey, enrollment, edge)
}

// resumeEventWaits advances enrollments parked on an event-mode delay
// matching eventType. The pending timeout record, if any, is cancelled
// so only one side of the wait/timeout race ever advances the path.
func (e *Engine) resumeEventWaits(eventType string, customerId string) {
	enrollments, err := e.storage.Enrollments().GetByCustomer(customerId)
	if err != nil {
		logger.Error("error loading enrollments for event resume", zap.String("customerId", customerId), zap.Error(err))
		return
	}
	for i := range enrollments {
		en := enrollments[i]
		if en.Status != model.ENROLLMENT_STATUS_WAITING || !strings.EqualFold(en.WaitingForEvent, eventType) {
			continue
		}
		journey, err := e.storage.Journeys().Get(en.JourneyId)
		if err != nil || journey == nil {
			continue
		}
		nodeId := en.CurrentNodeId
		en.WaitingForEvent = ""
		en.WaitingForEventTimeout = nil
		en.Status = model.ENROLLMENT_STATUS_ACTIVE
		e.completeNode(&en, nodeId)
		if err := e.saveEnrollment(&en); err != nil {
			logger.Error("error resuming event wait", zap.String("enrollmentId", en.Id), zap.Error(err))
			continue
		}
		e.cancelPendingSchedules(en.Id)
		if err := e.moveToNext(journey, &en, nodeId); err != nil {
			logger.Error("error advancing after event wait", zap.String("enrollmentId", en.Id), zap.Error(err))
		}
	}
}

// recheckGoals re-evaluates pending goal nodes for a customer. Called on
// every inbound event for that customer so conversions register without
// waiting for a scheduler pass.
func (e *Engine) recheckGoals(customerId string) {
	enrollments, err := e.storage.Enrollments().GetByCustomer(customerId)
	if err != nil {
		logger.Error("error loading enrollments for goal recheck", zap.String("customerId", customerId), zap.Error(err))
		return
	}
	for i := range enrollments {
		en := enrollments[i]
		if en.Status != model.ENROLLMENT_STATUS_WAITING || !en.WaitingForGoal {
			continue
		}
		e.recheckGoal(&en)
	}
}

func (e *Engine) recheckGoal(enrollment *model.Enrollment) {
	journey, err := e.storage.Journeys().Get(enrollment.JourneyId)
	if err != nil || journey == nil {
		return
	}
	node := journey.NodeById(enrollment.GoalNodeId)
	if node == nil {
		return
	}
	cfg, err := model.DecodeConfig[model.GoalConfig](node)
	if err != nil {
		return
	}
	achieved, value := e.checkGoal(enrollment, cfg)
	if !achieved {
		return
	}
	e.completeNode(enrollment, node.Id)
	enrollment.GoalAchieved = true
	enrollment.ConversionValue = value
	enrollment.WaitingForGoal = false
	e.logActivity(enrollment.Id, model.ACTIVITY_GOAL_ACHIEVED, map[string]any{"nodeId": node.Id, "goalType": cfg.GoalType, "value": value})
	if err := e.completeJourney(enrollment); err != nil {
		logger.Error("error completing journey on goal", zap.String("enrollmentId", enrollment.Id), zap.Error(err))
	}
}

// RecordLinkClick stores a click event against an enrollment and
// re-checks its goal when one is pending.
func (e *Engine) RecordLinkClick(enrollmentId string, trackingId string) error {
	enrollment, err := e.storage.Enrollments().Get(enrollmentId)
	if err != nil {
		return err
	}
	if enrollment == nil {
		return &model.NotFoundError{Kind: "enrollment", Id: enrollmentId}
	}
	e.logActivity(enrollmentId, model.ACTIVITY_LINK_CLICKED, map[string]any{"trackingId": trackingId})
	if enrollment.Status == model.ENROLLMENT_STATUS_WAITING && enrollment.WaitingForGoal {
		e.recheckGoal(enrollment)
	}
	return nil
}
