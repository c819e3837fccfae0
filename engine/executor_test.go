package engine

import (
	"testing"
	"time"

	"github.com/sendloop/journey/directory"
	"github.com/sendloop/journey/model"
	"github.com/stretchr/testify/require"
)

var testEntry = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func newEnrollment(journeyId string, customerId string) *model.Enrollment {
	return &model.Enrollment{
		Id:             "en-1",
		JourneyId:      journeyId,
		CustomerId:     customerId,
		CustomerPhone:  "+15550001111",
		Status:         model.ENROLLMENT_STATUS_ACTIVE,
		CompletedNodes: []string{"t1"},
		EnteredAt:      testEntry,
		LastActivityAt: testEntry,
	}
}

func TestExecutor(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, h *testHarness,
	){
		"test duration delay parks enrollment": testDurationDelay,
		"test retries exhaust to failure":      testRetriesExhaust,
		"test retry succeeds after transient":  testRetryRecovers,
		"test condition branching":             testConditionBranching,
		"test goal pending then achieved":      testGoalPendingAchieved,
		"test event wait beats timeout":        testEventWaitBeatsTimeout,
		"test terminal enrollment is inert":    testTerminalInert,
		"test missing edge target exits":       testMissingEdgeTarget,
	} {
		t.Run(scenario, func(t *testing.T) {
			h := newTestHarness(testEntry)
			h.directory.customers["cust-1"] = &directory.Customer{Id: "cust-1", Phone: "+15550001111"}
			fn(t, h)
		})
	}
}

func testDurationDelay(t *testing.T, h *testHarness) {
	journey := model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "signup"}},
			{Id: "d1", Type: model.NODE_TYPE_DELAY, Data: map[string]any{"duration": float64(2), "unit": "days"}},
			{Id: "a1", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_ADD_TAG, Data: map[string]any{"tag": "reminded"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "t1", Target: "d1"},
			{Id: "e2", Source: "d1", Target: "a1"},
		},
	}
	require.NoError(t, h.store.Journeys().Save(journey))
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "d1"))
	require.Equal(t, model.ENROLLMENT_STATUS_WAITING, enrollment.Status)

	pending, err := h.store.Schedules().GetPendingByEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), pending[0].ResumeAt)

	// not due yet
	result := h.engine.ProcessScheduledExecutions(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC))
	require.Equal(t, 0, result.Processed)

	result = h.engine.ProcessScheduledExecutions(time.Date(2024, 1, 3, 0, 0, 1, 0, time.UTC))
	require.Equal(t, 1, result.Processed)
	require.Equal(t, 0, result.Failed)

	stored, err := h.store.Enrollments().Get(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_STATUS_COMPLETED, stored.Status)
	require.Contains(t, stored.CompletedNodes, "d1")
	require.Contains(t, stored.CompletedNodes, "a1")
	require.Equal(t, []string{"reminded"}, h.mutator.tags["cust-1"])
}

func sendJourney() model.JourneyDefinition {
	return model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "signup"}},
			{Id: "a1", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_SEND_WHATSAPP, Data: map[string]any{"templateName": "welcome"}},
		},
		Edges: []model.Edge{{Id: "e1", Source: "t1", Target: "a1"}},
	}
}

func testRetriesExhaust(t *testing.T, h *testHarness) {
	journey := sendJourney()
	require.NoError(t, h.store.Journeys().Save(journey))
	h.sender.failBefore = 100
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "a1"))
	require.Equal(t, model.ENROLLMENT_STATUS_WAITING, enrollment.Status)
	require.Equal(t, 1, enrollment.FailureStateFor("a1").Attempts)

	// each drain re-executes and fails again; the third attempt is final
	drainAt := testEntry.Add(time.Hour)
	result := h.engine.ProcessScheduledExecutions(drainAt)
	require.Equal(t, 1, result.Processed)
	result = h.engine.ProcessScheduledExecutions(drainAt.Add(time.Hour))
	require.Equal(t, 1, result.Processed)

	stored, err := h.store.Enrollments().Get(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_STATUS_FAILED, stored.Status)
	require.Equal(t, model.EXIT_REASON_NODE_FAILURE, stored.ExitReason)
	require.Equal(t, 3, stored.FailureStateFor("a1").Attempts)

	pending, err := h.store.Schedules().GetPendingByEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Empty(t, pending)

	// terminal means terminal: a late drain changes nothing
	result = h.engine.ProcessScheduledExecutions(drainAt.Add(24 * time.Hour))
	require.Equal(t, 0, result.Processed)
}

func testRetryRecovers(t *testing.T, h *testHarness) {
	journey := sendJourney()
	require.NoError(t, h.store.Journeys().Save(journey))
	h.sender.failBefore = 1
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "a1"))
	require.Equal(t, model.ENROLLMENT_STATUS_WAITING, enrollment.Status)

	result := h.engine.ProcessScheduledExecutions(testEntry.Add(time.Hour))
	require.Equal(t, 1, result.Processed)

	stored, err := h.store.Enrollments().Get(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_STATUS_COMPLETED, stored.Status)
	require.Nil(t, stored.FailureStateFor("a1"))
	require.Equal(t, []string{"welcome"}, h.sender.sent)
}

func testConditionBranching(t *testing.T, h *testHarness) {
	journey := model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "order_created"}},
			{Id: "c1", Type: model.NODE_TYPE_CONDITION, Data: map[string]any{
				"conditions": []any{
					map[string]any{"source": "order", "field": "total_price", "operator": "greater_than", "value": float64(100)},
				},
			}},
			{Id: "a1", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_ADD_TAG, Data: map[string]any{"tag": "big-spender"}},
			{Id: "a2", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_ADD_TAG, Data: map[string]any{"tag": "regular"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "t1", Target: "c1"},
			{Id: "e2", Source: "c1", Target: "a1", Label: "Yes"},
			{Id: "e3", Source: "c1", Target: "a2", Label: "No"},
		},
	}
	require.NoError(t, h.store.Journeys().Save(journey))

	enrollment := newEnrollment("j1", "cust-1")
	enrollment.Context.TriggerEvent = map[string]any{"total_price": float64(250)}
	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "c1"))
	require.Equal(t, []string{"big-spender"}, h.mutator.tags["cust-1"])

	h.mutator.tags = map[string][]string{}
	enrollment = newEnrollment("j1", "cust-1")
	enrollment.Id = "en-2"
	enrollment.Context.TriggerEvent = map[string]any{"total_price": float64(50)}
	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "c1"))
	require.Equal(t, []string{"regular"}, h.mutator.tags["cust-1"])
}

func testGoalPendingAchieved(t *testing.T, h *testHarness) {
	journey := model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "signup"}},
			{Id: "g1", Type: model.NODE_TYPE_GOAL, Data: map[string]any{"goalType": "order_value", "threshold": float64(100)}},
		},
		Edges: []model.Edge{{Id: "e1", Source: "t1", Target: "g1"}},
	}
	require.NoError(t, h.store.Journeys().Save(journey))
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "g1"))
	require.Equal(t, model.ENROLLMENT_STATUS_WAITING, enrollment.Status)
	require.True(t, enrollment.WaitingForGoal)
	require.Equal(t, "g1", enrollment.GoalNodeId)

	// an order before entry does not count
	h.directory.orders["cust-1"] = []directory.Order{
		{Id: "o0", TotalPrice: 500, CreatedAt: testEntry.Add(-24 * time.Hour)},
	}
	h.engine.recheckGoals("cust-1")
	stored, err := h.store.Enrollments().Get(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_STATUS_WAITING, stored.Status)

	h.directory.orders["cust-1"] = append(h.directory.orders["cust-1"],
		directory.Order{Id: "o1", TotalPrice: 80, CreatedAt: testEntry.Add(time.Hour)},
		directory.Order{Id: "o2", TotalPrice: 40, CreatedAt: testEntry.Add(2 * time.Hour)},
	)
	h.engine.recheckGoals("cust-1")

	stored, err = h.store.Enrollments().Get(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_STATUS_COMPLETED, stored.Status)
	require.True(t, stored.GoalAchieved)
	require.Equal(t, float64(120), stored.ConversionValue)
	require.NotNil(t, stored.CompletedAt)
}

func testEventWaitBeatsTimeout(t *testing.T, h *testHarness) {
	journey := model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "checkout_started"}},
			{Id: "d1", Type: model.NODE_TYPE_DELAY, Data: map[string]any{
				"delayMode":       "event",
				"event":           "order_created",
				"timeoutDuration": float64(1),
				"timeoutUnit":     "days",
			}},
			{Id: "a1", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_ADD_TAG, Data: map[string]any{"tag": "converted"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "t1", Target: "d1"},
			{Id: "e2", Source: "d1", Target: "a1"},
		},
	}
	require.NoError(t, h.store.Journeys().Save(journey))
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "d1"))
	require.Equal(t, model.ENROLLMENT_STATUS_WAITING, enrollment.Status)
	require.Equal(t, "order_created", enrollment.WaitingForEvent)
	require.NotNil(t, enrollment.WaitingForEventTimeout)

	// the awaited event arrives before the timeout
	_, err := h.engine.MatchAndExecute("order_created", orderEvent("cust-1", 50))
	require.NoError(t, err)

	stored, err := h.store.Enrollments().Get(enrollment.Id)
	require.NoError(t, err)
	require.Equal(t, model.ENROLLMENT_STATUS_COMPLETED, stored.Status)
	require.Empty(t, stored.WaitingForEvent)

	pending, err := h.store.Schedules().GetPendingByEnrollment(enrollment.Id)
	require.NoError(t, err)
	require.Empty(t, pending)

	// the timeout record was cancelled, a late drain is a no-op
	result := h.engine.ProcessScheduledExecutions(testEntry.Add(48 * time.Hour))
	require.Equal(t, 0, result.Processed)
	require.Equal(t, 0, result.Failed)
}

func testTerminalInert(t *testing.T, h *testHarness) {
	journey := sendJourney()
	require.NoError(t, h.store.Journeys().Save(journey))
	enrollment := newEnrollment("j1", "cust-1")
	enrollment.Status = model.ENROLLMENT_STATUS_EXITED
	enrollment.ExitReason = "manual"
	require.NoError(t, h.store.Enrollments().Save(enrollment))

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "a1"))
	require.Equal(t, model.ENROLLMENT_STATUS_EXITED, enrollment.Status)
	require.Equal(t, "manual", enrollment.ExitReason)
	require.Empty(t, h.sender.sent)
}

func testMissingEdgeTarget(t *testing.T, h *testHarness) {
	journey := model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "signup"}},
			{Id: "a1", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_ADD_TAG, Data: map[string]any{"tag": "x"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "t1", Target: "a1"},
			{Id: "e2", Source: "a1", Target: "ghost"},
		},
	}
	require.NoError(t, h.store.Journeys().Save(journey))
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "a1"))
	require.Equal(t, model.ENROLLMENT_STATUS_EXITED, enrollment.Status)
	require.Equal(t, model.EXIT_REASON_NO_PATH, enrollment.ExitReason)
}
