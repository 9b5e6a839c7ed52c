package consignment

import (
	"time"

	"github.com/shopspring/decimal"

	"pharmatrace/internal/domain/trace"
)

// BatchNode is one case-batch allocation in the persisted tree.
type BatchNode struct {
	EPC      string
	GTIN     string
	BatchNo  string
	Quantity decimal.Decimal
}

func (b BatchNode) line() trace.Quantity {
	return trace.Quantity{EPCClass: trace.BatchClass(b.GTIN, b.BatchNo), Quantity: b.Quantity}
}

type CaseNode struct {
	ID      uint64
	EPC     string
	Batches []BatchNode
}

type PackageNode struct {
	ID    uint64
	EPC   string
	Cases []*CaseNode
}

type ShipmentNode struct {
	ID       uint64
	EPC      string
	Packages []*PackageNode
}

// DerivedEvent is a trace event together with the container it describes.
// ContainerID is zero for the arrival object event.
type DerivedEvent struct {
	Level       ItemType
	ContainerID uint64
	Event       trace.Event
}

// DeriveEvents builds the aggregation events of an import bottom-up, one per
// container that received children, followed by one object event over every
// batch EPC. Quantity lists hold the per (GTIN, batch) sum of the case-batch
// allocations beneath each container.
func DeriveEvents(imp Import, shipments []*ShipmentNode, at time.Time, newID func() string) []DerivedEvent {
	shipper := trace.Actor{
		Type:         trace.ActorManufacturer,
		Organization: imp.ManufacturerName(),
		GLN:          imp.Manufacturer.GLN,
	}
	base := trace.Event{
		Kind:            trace.KindAggregation,
		Action:          trace.ActionAdd,
		EventTime:       at,
		ReadPoint:       trace.SGLN(imp.ManufacturingSite.SGLN),
		Actor:           shipper,
		BizTransactions: []trace.BizTransaction{{Type: trace.BizTransactionConsignment, ID: imp.ConsignmentID}},
		SourceEntity:    &trace.EntityRef{Type: "consignment", ID: imp.ConsignmentID},
		Sources:         parties("owning_party", imp.Manufacturer.PPBID),
		Destinations:    parties("owning_party", firstNonEmpty(imp.Importer.PPBID, imp.Destination.PPBID)),
	}

	var caseEvents, packageEvents, shipmentEvents []DerivedEvent
	var allBatches []BatchNode

	for _, s := range shipments {
		var shipmentLines []trace.Quantity
		var packageEPCs []string
		for _, p := range s.Packages {
			var packageLines []trace.Quantity
			var caseEPCs []string
			for _, c := range p.Cases {
				var caseLines []trace.Quantity
				var batchEPCs []string
				for _, b := range c.Batches {
					caseLines = append(caseLines, b.line())
					batchEPCs = appendUnique(batchEPCs, b.EPC)
					allBatches = append(allBatches, b)
				}
				if len(c.Batches) > 0 {
					caseEvents = append(caseEvents, aggregation(base, newID(), ItemCase, c.ID, c.EPC, batchEPCs,
						trace.BizStepPacking, trace.DispositionInProgress, caseLines))
				}
				packageLines = append(packageLines, caseLines...)
				caseEPCs = append(caseEPCs, c.EPC)
			}
			if len(p.Cases) > 0 {
				packageEvents = append(packageEvents, aggregation(base, newID(), ItemPackage, p.ID, p.EPC, caseEPCs,
					trace.BizStepPacking, trace.DispositionInProgress, packageLines))
			}
			shipmentLines = append(shipmentLines, packageLines...)
			packageEPCs = append(packageEPCs, p.EPC)
		}
		if len(s.Packages) > 0 {
			shipmentEvents = append(shipmentEvents, aggregation(base, newID(), ItemShipment, s.ID, s.EPC, packageEPCs,
				trace.BizStepShipping, trace.DispositionInTransit, shipmentLines))
		}
	}

	out := make([]DerivedEvent, 0, len(caseEvents)+len(packageEvents)+len(shipmentEvents)+1)
	out = append(out, caseEvents...)
	out = append(out, packageEvents...)
	out = append(out, shipmentEvents...)

	if len(allBatches) > 0 {
		arrival := base
		arrival.EventID = newID()
		arrival.Kind = trace.KindObject
		arrival.Action = trace.ActionObserve
		arrival.BizStep = trace.BizStepReceiving
		arrival.Disposition = trace.DispositionAtDestination
		arrival.ReadPoint = ""
		arrival.BizLocation = trace.SGLN(imp.DestinationSGLN())
		arrival.Actor = trace.Actor{
			Type:         trace.ActorSupplier,
			Organization: imp.ReceiverName(),
			GLN:          firstNonEmpty(imp.Importer.GLN, imp.Destination.GLN),
		}
		var lines []trace.Quantity
		var epcs []string
		for _, b := range allBatches {
			lines = append(lines, b.line())
			epcs = appendUnique(epcs, b.EPC)
		}
		arrival.ChildEPCs = epcs
		arrival.Quantities = trace.SumQuantities(lines)
		out = append(out, DerivedEvent{Level: ItemBatch, Event: arrival})
	}
	return out
}

func aggregation(base trace.Event, id string, level ItemType, containerID uint64, parent string, children []string, bizStep, disposition string, lines []trace.Quantity) DerivedEvent {
	e := base
	e.EventID = id
	e.ParentID = parent
	e.ChildEPCs = children
	e.BizStep = bizStep
	e.Disposition = disposition
	e.Quantities = trace.SumQuantities(lines)
	return DerivedEvent{Level: level, ContainerID: containerID, Event: e}
}

func parties(kind, id string) []trace.Party {
	if id == "" {
		return nil
	}
	return []trace.Party{{Type: kind, ID: id}}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}
