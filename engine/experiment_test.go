package engine

import (
	"fmt"
	"testing"
	"time"

	"github.com/sendloop/journey/model"
	"github.com/stretchr/testify/require"
)

func TestPickVariantDistribution(t *testing.T) {
	variants := []model.Variant{
		{Id: "v1", Label: "A", Weight: 70},
		{Id: "v2", Label: "B", Weight: 30},
	}
	counts := map[string]int{}
	draws := 10000
	for i := 0; i < draws; i++ {
		v := pickVariant(fmt.Sprintf("en-%d", i), "node-1", variants)
		counts[v.Id]++
	}
	shareA := float64(counts["v1"]) / float64(draws)
	require.InDelta(t, 0.70, shareA, 0.05)
	require.Equal(t, draws, counts["v1"]+counts["v2"])
}

func TestPickVariantSticky(t *testing.T) {
	variants := []model.Variant{
		{Id: "v1", Label: "A", Weight: 50},
		{Id: "v2", Label: "B", Weight: 50},
	}
	first := pickVariant("en-1", "node-1", variants)
	for i := 0; i < 20; i++ {
		require.Equal(t, first.Id, pickVariant("en-1", "node-1", variants).Id)
	}
}

func TestPickVariantZeroWeights(t *testing.T) {
	variants := []model.Variant{
		{Id: "v1", Label: "A"},
		{Id: "v2", Label: "B"},
	}
	counts := map[string]int{}
	for i := 0; i < 1000; i++ {
		v := pickVariant(fmt.Sprintf("en-%d", i), "node-1", variants)
		counts[v.Id]++
	}
	require.Greater(t, counts["v1"], 0)
	require.Greater(t, counts["v2"], 0)
}

func TestExperimentRouting(t *testing.T) {
	journey := model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "signup"}},
			{Id: "x1", Type: model.NODE_TYPE_CONDITION, Subtype: SUBTYPE_AB_TEST, Data: map[string]any{
				"variants": []any{
					map[string]any{"id": "v1", "label": "A", "weight": float64(50)},
					map[string]any{"id": "v2", "label": "B", "weight": float64(50)},
				},
			}},
			{Id: "a1", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_ADD_TAG, Data: map[string]any{"tag": "variant-a"}},
			{Id: "a2", Type: model.NODE_TYPE_ACTION, Subtype: SUBTYPE_ADD_TAG, Data: map[string]any{"tag": "variant-b"}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "t1", Target: "x1"},
			{Id: "e2", Source: "x1", Target: "a1", Label: "A"},
			{Id: "e3", Source: "x1", Target: "a2", Label: "B"},
		},
	}

	h := newTestHarness(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, h.store.Journeys().Save(journey))
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "x1"))
	require.Equal(t, model.ENROLLMENT_STATUS_COMPLETED, enrollment.Status)

	assignment := enrollment.AssignmentFor("x1")
	require.NotNil(t, assignment)
	require.NotEmpty(t, assignment.VariantLabel)
	require.NotEmpty(t, assignment.EdgeId)

	wantTag := "variant-a"
	if assignment.VariantLabel == "B" {
		wantTag = "variant-b"
	}
	require.Equal(t, []string{wantTag}, h.mutator.tags["cust-1"])
}

func TestExperimentNoMatchingEdgeFails(t *testing.T) {
	journey := model.JourneyDefinition{
		Id:     "j1",
		Status: model.JOURNEY_STATUS_ACTIVE,
		Nodes: []model.Node{
			{Id: "t1", Type: model.NODE_TYPE_TRIGGER, Data: map[string]any{"event": "signup"}},
			{Id: "x1", Type: model.NODE_TYPE_CONDITION, Subtype: SUBTYPE_AB_TEST, Data: map[string]any{
				"variants": []any{
					map[string]any{"id": "v1", "label": "A", "weight": float64(100)},
				},
			}},
		},
		Edges: []model.Edge{
			{Id: "e1", Source: "t1", Target: "x1"},
			{Id: "e2", Source: "x1", Target: "t1", Label: "Unrelated"},
		},
	}

	h := newTestHarness(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	require.NoError(t, h.store.Journeys().Save(journey))
	enrollment := newEnrollment("j1", "cust-1")

	require.NoError(t, h.engine.ExecuteNode(&journey, enrollment, "x1"))
	require.Equal(t, model.ENROLLMENT_STATUS_FAILED, enrollment.Status)
	require.Equal(t, model.EXIT_REASON_NODE_FAILURE, enrollment.ExitReason)
}
