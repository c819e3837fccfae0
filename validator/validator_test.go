package validator

import (
	"testing"

	"github.com/sendloop/journey/dispatch"
	"github.com/sendloop/journey/model"
	"github.com/stretchr/testify/require"
)

type stubSender struct{ configured bool }

func (s *stubSender) SendTemplatedMessage(to string, template string, language string, components map[string]string) (*dispatch.SendResult, error) {
	return &dispatch.SendResult{Success: true}, nil
}

func (s *stubSender) Configured() bool { return s.configured }

func validJourney() *model.JourneyDefinition {
	return &model.JourneyDefinition{
		Id:     "j1",
		Name:   "welcome",
		Status: model.JOURNEY_STATUS_DRAFT,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "signup"}},
			{Id: "a1", Type: model.NODE_TYPE_ACTION, Subtype: "send_whatsapp", Data: map[string]any{"templateName": "welcome"}},
			{Id: "g1", Type: model.NODE_TYPE_GOAL, Data: map[string]any{
				"goalType":    "order_any",
				"description": "first purchase",
			}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "t1", Target: "a1"},
			{Id: "e2", Source: "a1", Target: "g1"},
		},
	}
}

func TestValidator(t *testing.T) {
	for scenario, fn := range map[string]func(
		t *testing.T, v *Validator,
	){
		"test valid journey passes":          testValidJourneyPasses,
		"test isolated node needs attention": testIsolatedNode,
		"test missing trigger fails":         testMissingTrigger,
		"test missing goal fails":            testMissingGoal,
		"test unreachable goal fails":        testUnreachableGoal,
		"test dangling edge fails":           testDanglingEdge,
		"test node config checks":            testNodeConfigChecks,
		"test unconfigured sender warns":     testUnconfiguredSender,
	} {
		t.Run(scenario, func(t *testing.T) {
			fn(t, New(&stubSender{configured: true}))
		})
	}
}

func testValidJourneyPasses(t *testing.T, v *Validator) {
	report := v.Validate(validJourney())
	require.Equal(t, REPORT_STATUS_PASS, report.Status)
	require.Empty(t, report.Errors)
	require.Empty(t, report.Warnings)
}

func testIsolatedNode(t *testing.T, v *Validator) {
	journey := validJourney()
	journey.Nodes = append(journey.Nodes, model.Node{
		Id: "a2", Type: model.NODE_TYPE_ACTION, Subtype: "add_tag", Data: map[string]any{"tag": "orphan"},
	})
	report := v.Validate(journey)
	require.Equal(t, REPORT_STATUS_NEEDS_ATTENTION, report.Status)
	require.Empty(t, report.Errors)
	require.NotEmpty(t, report.Warnings)
	found := false
	for _, w := range report.Warnings {
		if w.NodeId == "a2" {
			found = true
		}
	}
	require.True(t, found)
}

func testMissingTrigger(t *testing.T, v *Validator) {
	journey := validJourney()
	journey.Nodes = journey.Nodes[1:]
	journey.Edges = journey.Edges[1:]
	report := v.Validate(journey)
	require.Equal(t, REPORT_STATUS_FAIL, report.Status)
}

func testMissingGoal(t *testing.T, v *Validator) {
	journey := validJourney()
	journey.Nodes = journey.Nodes[:2]
	journey.Edges = journey.Edges[:1]
	report := v.Validate(journey)
	require.Equal(t, REPORT_STATUS_FAIL, report.Status)
}

func testUnreachableGoal(t *testing.T, v *Validator) {
	journey := validJourney()
	journey.Edges = journey.Edges[:1]
	report := v.Validate(journey)
	require.Equal(t, REPORT_STATUS_FAIL, report.Status)
	found := false
	for _, e := range report.Errors {
		if e.NodeId == "g1" {
			found = true
		}
	}
	require.True(t, found)
}

func testDanglingEdge(t *testing.T, v *Validator) {
	journey := validJourney()
	journey.Edges = append(journey.Edges, model.Edge{Id: "e3", Source: "g1", Target: "nowhere"})
	report := v.Validate(journey)
	require.Equal(t, REPORT_STATUS_FAIL, report.Status)
}

func testNodeConfigChecks(t *testing.T, v *Validator) {
	journey := validJourney()
	journey.Nodes[1].Data = map[string]any{} // send action without a template
	report := v.Validate(journey)
	require.Equal(t, REPORT_STATUS_FAIL, report.Status)

	journey = validJourney()
	journey.Nodes = append(journey.Nodes, model.Node{
		Id: "d1", Type: model.NODE_TYPE_DELAY, Data: map[string]any{"duration": float64(-1)},
	})
	journey.Edges = append(journey.Edges, model.Edge{Id: "e3", Source: "t1", Target: "d1"}, model.Edge{Id: "e4", Source: "d1", Target: "g1"})
	report = v.Validate(journey)
	require.Equal(t, REPORT_STATUS_FAIL, report.Status)

	journey = validJourney()
	journey.Nodes = append(journey.Nodes, model.Node{
		Id: "x1", Type: model.NODE_TYPE_CONDITION, Subtype: "ab_test", Data: map[string]any{
			"variants": []any{map[string]any{"id": "v1", "label": "A", "weight": float64(100)}},
		},
	})
	journey.Edges = append(journey.Edges, model.Edge{Id: "e3", Source: "t1", Target: "x1"}, model.Edge{Id: "e4", Source: "x1", Target: "g1", Label: "A"})
	report = v.Validate(journey)
	require.Equal(t, REPORT_STATUS_FAIL, report.Status)
}

func testUnconfiguredSender(t *testing.T, v *Validator) {
	unconfigured := New(&stubSender{configured: false})
	report := unconfigured.Validate(validJourney())
	require.Equal(t, REPORT_STATUS_NEEDS_ATTENTION, report.Status)
	require.Empty(t, report.Errors)
	require.NotEmpty(t, report.Warnings)
}
