package model

import "strings"

type JourneyStatus string

const JOURNEY_STATUS_DRAFT JourneyStatus = "DRAFT"
const JOURNEY_STATUS_ACTIVE JourneyStatus = "ACTIVE"
const JOURNEY_STATUS_PAUSED JourneyStatus = "PAUSED"
const JOURNEY_STATUS_ARCHIVED JourneyStatus = "ARCHIVED"

type NodeType string

const NODE_TYPE_TRIGGER NodeType = "trigger"
const NODE_TYPE_ACTION NodeType = "action"
const NODE_TYPE_DELAY NodeType = "delay"
const NODE_TYPE_CONDITION NodeType = "condition"
const NODE_TYPE_GOAL NodeType = "goal"

type JourneyDefinition struct {
	Id       string          `json:"id"`
	Name     string          `json:"name"`
	Status   JourneyStatus   `json:"status"`
	Nodes    []Node          `json:"nodes"`
	Edges    []Edge          `json:"edges"`
	Settings JourneySettings `json:"settings"`
}

type JourneySettings struct {
	AllowReentry        bool `json:"allowReentry"`
	ReentryCooldownDays int  `json:"reentryCooldownDays"`
}

type Node struct {
	Id      string         `json:"id"`
	Type    NodeType       `json:"type"`
	Subtype string         `json:"subtype"`
	Data    map[string]any `json:"data"`
}

type Edge struct {
	Id     string `json:"id"`
	Source string `json:"source"`
	Target string `json:"target"`
	Label  string `json:"label,omitempty"`
}

func (j *JourneyDefinition) NodeById(id string) *Node {
	for i := range j.Nodes {
		if j.Nodes[i].Id == id {
			return &j.Nodes[i]
		}
	}
	return nil
}

func (j *JourneyDefinition) TriggerNodes() []Node {
	var triggers []Node
	for _, n := range j.Nodes {
		if n.Type == NODE_TYPE_TRIGGER {
			triggers = append(triggers, n)
		}
	}
	return triggers
}

func (j *JourneyDefinition) OutgoingEdges(nodeId string) []Edge {
	var edges []Edge
	for _, e := range j.Edges {
		if e.Source == nodeId {
			edges = append(edges, e)
		}
	}
	return edges
}

// DefaultEdge returns the first outgoing edge of a node regardless of
// label. It is the "next" path for linear traversal.
func (j *JourneyDefinition) DefaultEdge(nodeId string) *Edge {
	for i := range j.Edges {
		if j.Edges[i].Source == nodeId {
			return &j.Edges[i]
		}
	}
	return nil
}

// LabeledEdge returns the first outgoing edge carrying the given label,
// matched case-insensitively. Used for condition and experiment routing.
func (j *JourneyDefinition) LabeledEdge(nodeId string, label string) *Edge {
	for i := range j.Edges {
		if j.Edges[i].Source == nodeId && strings.EqualFold(j.Edges[i].Label, label) {
			return &j.Edges[i]
		}
	}
	return nil
}
