package trace

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type NodeType string

const (
	NodePort        NodeType = "port"
	NodeDistributor NodeType = "distributor"
	NodeFacility    NodeType = "facility"
	NodeUnknown     NodeType = "unknown"
)

type FlowNode struct {
	ID   int      `json:"id"`
	Name string   `json:"name"`
	Type NodeType `json:"type"`
}

type FlowLink struct {
	Source    int             `json:"source"`
	Target    int             `json:"target"`
	Value     decimal.Decimal `json:"value"`
	EventTime time.Time       `json:"event_time"`
	BizStep   string          `json:"biz_step"`
}

type FlowSummary struct {
	TotalEvents      int `json:"total_events"`
	PortCount        int `json:"port_count"`
	DistributorCount int `json:"distributor_count"`
	FacilityCount    int `json:"facility_count"`
}

// FlowGraph is the node/edge view of how a consignment's quantity moved
// between organizations.
type FlowGraph struct {
	ConsignmentID string      `json:"consignment_id"`
	Nodes         []FlowNode  `json:"nodes"`
	Links         []FlowLink  `json:"links"`
	Summary       FlowSummary `json:"summary"`
}

// BuildFlow pairs every receiving event with the nearest earlier shipping
// event from a different organization carrying the same total quantity.
// Matching is approximate: the first quantity match in scan order wins and a
// shipping event may be matched more than once. events must be ordered by
// event time.
func BuildFlow(consignmentID string, events []Event) FlowGraph {
	graph := FlowGraph{
		ConsignmentID: consignmentID,
		Nodes:         []FlowNode{},
		Links:         []FlowLink{},
	}

	nodeIndex := make(map[string]int)
	addNode := func(name string) int {
		if idx, ok := nodeIndex[name]; ok {
			return idx
		}
		idx := len(graph.Nodes)
		nodeIndex[name] = idx
		graph.Nodes = append(graph.Nodes, FlowNode{ID: idx, Name: name, Type: NodeUnknown})
		return idx
	}

	for i, event := range events {
		org := event.Actor.OrgKey()
		addNode(org)
		if !IsReceivingLike(event) {
			continue
		}
		qty := event.TotalQuantity()
		for j := i - 1; j >= 0; j-- {
			ship := events[j]
			if !IsShippingLike(ship) {
				continue
			}
			shipOrg := ship.Actor.OrgKey()
			if shipOrg == org {
				continue
			}
			if !ship.TotalQuantity().Equal(qty) {
				continue
			}
			graph.Links = append(graph.Links, FlowLink{
				Source:    addNode(shipOrg),
				Target:    nodeIndex[org],
				Value:     qty,
				EventTime: event.EventTime,
				BizStep:   event.BizStep,
			})
			break
		}
	}

	for _, event := range events {
		idx := nodeIndex[event.Actor.OrgKey()]
		if graph.Nodes[idx].Type != NodeUnknown {
			continue
		}
		graph.Nodes[idx].Type = nodeTypeFor(event.Actor)
	}

	graph.Summary.TotalEvents = len(events)
	for _, node := range graph.Nodes {
		switch node.Type {
		case NodePort:
			graph.Summary.PortCount++
		case NodeDistributor:
			graph.Summary.DistributorCount++
		case NodeFacility:
			graph.Summary.FacilityCount++
		}
	}
	return graph
}

func nodeTypeFor(actor Actor) NodeType {
	switch {
	case actor.Type == ActorManufacturer || strings.Contains(strings.ToLower(actor.OrgKey()), "port"):
		return NodePort
	case actor.Type == ActorSupplier || actor.Type == ActorCPA:
		return NodeDistributor
	case actor.Type == ActorFacility || actor.Type == ActorUserFacility:
		return NodeFacility
	default:
		return NodeUnknown
	}
}
