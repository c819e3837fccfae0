package validator

import (
	"fmt"
	"strings"

	"github.com/sendloop/journey/dispatch"
	"github.com/sendloop/journey/model"
)

type ReportStatus string

const REPORT_STATUS_PASS ReportStatus = "pass"
const REPORT_STATUS_NEEDS_ATTENTION ReportStatus = "needs_attention"
const REPORT_STATUS_FAIL ReportStatus = "fail"

type Issue struct {
	NodeId  string `json:"nodeId,omitempty"`
	Message string `json:"message"`
}

type Report struct {
	Status   ReportStatus `json:"status"`
	Errors   []Issue      `json:"errors"`
	Warnings []Issue      `json:"warnings"`
}

func (r *Report) addError(nodeId string, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{NodeId: nodeId, Message: fmt.Sprintf(format, args...)})
}

func (r *Report) addWarning(nodeId string, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{NodeId: nodeId, Message: fmt.Sprintf(format, args...)})
}

type Validator struct {
	sender dispatch.Sender
}

func New(sender dispatch.Sender) *Validator {
	return &Validator{sender: sender}
}

// Validate inspects a journey graph before activation. Errors block
// activation, warnings do not.
func (v *Validator) Validate(journey *model.JourneyDefinition) *Report {
	report := &Report{Errors: []Issue{}, Warnings: []Issue{}}

	nodesById := map[string]*model.Node{}
	for i := range journey.Nodes {
		nodesById[journey.Nodes[i].Id] = &journey.Nodes[i]
	}

	triggers := journey.TriggerNodes()
	if len(triggers) == 0 {
		report.addError("", "journey has no trigger node")
	}

	for _, edge := range journey.Edges {
		if _, ok := nodesById[edge.Source]; !ok {
			report.addError("", "edge %s references missing source node %s", edge.Id, edge.Source)
		}
		if _, ok := nodesById[edge.Target]; !ok {
			report.addError("", "edge %s references missing target node %s", edge.Id, edge.Target)
		}
	}

	reachable := v.reach(journey, triggers)

	goalCount := 0
	reachableGoals := 0
	actionCount := 0
	for i := range journey.Nodes {
		node := &journey.Nodes[i]
		if node.Type == model.NODE_TYPE_GOAL {
			goalCount++
			if reachable[node.Id] {
				reachableGoals++
			}
		}
		if node.Type == model.NODE_TYPE_ACTION {
			actionCount++
		}
		if !reachable[node.Id] && node.Type != model.NODE_TYPE_TRIGGER {
			if node.Type == model.NODE_TYPE_GOAL {
				report.addError(node.Id, "goal node is not reachable from any trigger")
			} else {
				report.addWarning(node.Id, "node is not reachable from any trigger")
			}
		}
		v.checkNode(journey, node, report)
	}
	if goalCount == 0 {
		report.addError("", "journey has no goal node")
	} else if reachableGoals == 0 && len(triggers) > 0 {
		report.addError("", "no goal node is reachable from a trigger")
	}

	if actionCount > 0 && v.sender != nil && !v.sender.Configured() {
		report.addWarning("", "message dispatch is not configured; send actions will fail at run time")
	}

	switch {
	case len(report.Errors) > 0:
		report.Status = REPORT_STATUS_FAIL
	case len(report.Warnings) > 0:
		report.Status = REPORT_STATUS_NEEDS_ATTENTION
	default:
		report.Status = REPORT_STATUS_PASS
	}
	return report
}

func (v *Validator) reach(journey *model.JourneyDefinition, triggers []model.Node) map[string]bool {
	reachable := map[string]bool{}
	var queue []string
	for _, t := range triggers {
		reachable[t.Id] = true
		queue = append(queue, t.Id)
	}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, edge := range journey.OutgoingEdges(current) {
			if reachable[edge.Target] {
				continue
			}
			if journey.NodeById(edge.Target) == nil {
				continue
			}
			reachable[edge.Target] = true
			queue = append(queue, edge.Target)
		}
	}
	return reachable
}

func (v *Validator) checkNode(journey *model.JourneyDefinition, node *model.Node, report *Report) {
	switch node.Type {
	case model.NODE_TYPE_TRIGGER:
		v.checkTrigger(node, report)
	case model.NODE_TYPE_ACTION:
		v.checkAction(node, report)
	case model.NODE_TYPE_DELAY:
		v.checkDelay(node, report)
	case model.NODE_TYPE_CONDITION:
		v.checkCondition(node, report)
	case model.NODE_TYPE_GOAL:
		v.checkGoal(node, report)
	}
	if node.Type != model.NODE_TYPE_GOAL && len(journey.OutgoingEdges(node.Id)) == 0 {
		report.addWarning(node.Id, "node has no outgoing edge; enrollments end here")
	}
}

func (v *Validator) checkTrigger(node *model.Node, report *Report) {
	cfg, err := model.DecodeConfig[model.TriggerConfig](node)
	if err != nil {
		report.addError(node.Id, "unreadable trigger config: %v", err)
		return
	}
	switch strings.ToLower(node.Subtype) {
	case "segment_entered":
		if len(cfg.SegmentId) == 0 {
			report.addError(node.Id, "segment trigger requires a segmentId")
		}
	case "webhook":
		if len(cfg.Event) == 0 {
			report.addError(node.Id, "webhook trigger requires an event name")
		}
	case "cart_abandoned":
		if cfg.AbandonmentHours <= 0 {
			report.addError(node.Id, "abandonment trigger requires positive abandonmentHours")
		}
	default:
		if len(cfg.Event) == 0 {
			report.addError(node.Id, "trigger requires an event name")
		}
	}
}

func (v *Validator) checkAction(node *model.Node, report *Report) {
	cfg, err := model.DecodeConfig[model.ActionConfig](node)
	if err != nil {
		report.addError(node.Id, "unreadable action config: %v", err)
		return
	}
	switch node.Subtype {
	case "send_whatsapp":
		if len(cfg.TemplateName) == 0 {
			report.addError(node.Id, "send action requires a templateName")
		}
		for key, value := range cfg.Variables {
			if len(strings.TrimSpace(value)) == 0 {
				report.addWarning(node.Id, "template variable %s is blank", key)
			}
		}
	case "add_tag":
		if len(cfg.Tag) == 0 {
			report.addError(node.Id, "tag action requires a tag")
		}
	case "update_property":
		if len(cfg.PropertyKey) == 0 {
			report.addError(node.Id, "property action requires a propertyKey")
		}
	}
}

func (v *Validator) checkDelay(node *model.Node, report *Report) {
	cfg, err := model.DecodeConfig[model.DelayConfig](node)
	if err != nil {
		report.addError(node.Id, "unreadable delay config: %v", err)
		return
	}
	switch cfg.DelayMode {
	case "event":
		if len(cfg.Event) == 0 {
			report.addError(node.Id, "event delay requires an event name")
		}
	case "until":
		if len(cfg.Until) == 0 {
			report.addError(node.Id, "until delay requires a timestamp")
		}
	default:
		if cfg.Duration <= 0 {
			report.addError(node.Id, "delay requires a positive duration")
		}
	}
}

func (v *Validator) checkCondition(node *model.Node, report *Report) {
	if strings.EqualFold(node.Subtype, "ab_test") || strings.EqualFold(node.Subtype, "experiment") {
		cfg, err := model.DecodeConfig[model.ExperimentConfig](node)
		if err != nil {
			report.addError(node.Id, "unreadable experiment config: %v", err)
			return
		}
		if len(cfg.Variants) < 2 {
			report.addError(node.Id, "experiment requires at least two variants")
			return
		}
		var total float64
		for _, variant := range cfg.Variants {
			if variant.Weight > 0 {
				total += variant.Weight
			}
		}
		if total <= 0 {
			report.addError(node.Id, "experiment variant weights must sum to a positive value")
		}
		return
	}
	cfg, err := model.DecodeConfig[model.ConditionConfig](node)
	if err != nil {
		report.addError(node.Id, "unreadable condition config: %v", err)
		return
	}
	if len(cfg.Conditions) == 0 {
		report.addError(node.Id, "condition node requires at least one rule")
	}
}

func (v *Validator) checkGoal(node *model.Node, report *Report) {
	cfg, err := model.DecodeConfig[model.GoalConfig](node)
	if err != nil {
		report.addError(node.Id, "unreadable goal config: %v", err)
		return
	}
	if len(cfg.Description) == 0 {
		report.addWarning(node.Id, "goal has no description")
	}
	switch cfg.GoalType {
	case "order_value":
		if cfg.Threshold <= 0 {
			report.addError(node.Id, "order_value goal requires a positive threshold")
		}
	case "product_purchased":
		if len(cfg.ProductId) == 0 {
			report.addError(node.Id, "product_purchased goal requires a productId")
		}
	case "tag_added":
		if len(cfg.Tag) == 0 {
			report.addError(node.Id, "tag_added goal requires a tag")
		}
	case "link_clicked":
		if len(cfg.TrackingId) == 0 {
			report.addError(node.Id, "link_clicked goal requires a trackingId")
		}
	}
}
