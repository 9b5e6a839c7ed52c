// Package journey reads the trace event log back as the history of one
// container or one consignment.
package journey

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"pharmatrace/internal/bootstrap/logging"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/identifier"
)

// Buckets groups events by the type of actor that recorded them.
type Buckets struct {
	Manufacturer []trace.Event `json:"manufacturer"`
	Supplier     []trace.Event `json:"supplier"`
	Facility     []trace.Event `json:"facility"`
}

func (b *Buckets) add(e trace.Event) {
	switch trace.BucketFor(e.Actor.Type) {
	case trace.BucketManufacturer:
		b.Manufacturer = append(b.Manufacturer, e)
	case trace.BucketSupplier:
		b.Supplier = append(b.Supplier, e)
	case trace.BucketFacility:
		b.Facility = append(b.Facility, e)
	}
}

// View is the journey of one SSCC.
type View struct {
	SSCC       string        `json:"sscc"`
	Candidates []string      `json:"candidates"`
	Legacy     bool          `json:"legacy"`
	Events     []trace.Event `json:"events"`
	Shipping   Buckets       `json:"shipping"`
	Receiving  Buckets       `json:"receiving"`
	Returns    Buckets       `json:"returns"`
}

type Service struct {
	events     ports.TraceEventRepository
	containers ports.ContainerReader
	ids        *identifier.Service
	logger     *slog.Logger
}

func NewService(events ports.TraceEventRepository, containers ports.ContainerReader, ids *identifier.Service, logger *slog.Logger) *Service {
	return &Service{events: events, containers: containers, ids: ids, logger: logger}
}

// Journey finds every event naming the SSCC as a child or as the parent.
// Only direct matches count; the containment tree is not walked. When the log
// has nothing, a shipment row is used to build a minimal view instead.
func (s *Service) Journey(ctx context.Context, input string) (View, error) {
	ctx, err := s.begin(ctx, "journey")
	if err != nil {
		return View{}, err
	}
	input = strings.TrimSpace(input)
	if input == "" {
		return View{}, errs.Kind(errs.ErrValidation, errors.New("sscc is required"))
	}

	code, candidates := s.ids.Candidates(input)
	ctx = logging.WithAttrs(ctx, slog.String("sscc", code))

	events, err := s.events.FindEventsBySubject(ctx, candidates)
	if err != nil {
		return View{}, errs.Wrap(err, "find journey events")
	}

	view := View{SSCC: code, Candidates: candidates}
	if len(events) == 0 {
		events, view.Legacy, err = s.fallback(ctx, code)
		if err != nil {
			return View{}, err
		}
	}
	view.Events = events
	if view.Events == nil {
		view.Events = []trace.Event{}
	}

	for _, e := range view.Events {
		switch trace.Classify(e) {
		case trace.StatusReturns:
			view.Returns.add(e)
		case trace.StatusShipping:
			view.Shipping.add(e)
		default:
			view.Receiving.add(e)
		}
	}

	logging.Info(ctx, "journey built",
		slog.Int("events", len(view.Events)),
		slog.Bool("legacy", view.Legacy),
	)
	return view, nil
}

// fallback answers for shipments recorded before they were traced. A
// dispatched shipment counts as one shipping event.
func (s *Service) fallback(ctx context.Context, code string) ([]trace.Event, bool, error) {
	if s.containers == nil {
		return nil, false, nil
	}
	shipment, err := s.containers.FindShipmentBySSCC(ctx, code)
	if err != nil {
		if errors.Is(err, ports.ErrShipmentNotFound) {
			return nil, false, nil
		}
		return nil, false, errs.Wrap(err, "find shipment for journey")
	}
	if !shipment.IsDispatched {
		return nil, true, nil
	}

	owner := shipment.OwnerID
	return []trace.Event{{
		EventID:     "legacy-shipment-" + shipment.SSCC,
		Kind:        trace.KindObject,
		ChildEPCs:   []string{s.ids.ContainerEPC(ports.ContainerShipment, shipment.ID, shipment.SSCC)},
		BizStep:     trace.BizStepShipping,
		Disposition: trace.DispositionInTransit,
		Action:      trace.ActionObserve,
		EventTime:   shipment.CreatedAt,
		Actor:       trace.Actor{Type: trace.ActorManufacturer, UserID: &owner, Organization: shipment.Customer},
	}}, true, nil
}

// ConsignmentFlow links the consignment's shipping and receiving events into
// an organization graph.
func (s *Service) ConsignmentFlow(ctx context.Context, consignmentID string) (trace.FlowGraph, error) {
	ctx, err := s.begin(ctx, "consignment_flow")
	if err != nil {
		return trace.FlowGraph{}, err
	}
	consignmentID = strings.TrimSpace(consignmentID)
	if consignmentID == "" {
		return trace.FlowGraph{}, errs.Kind(errs.ErrValidation, errors.New("consignment id is required"))
	}

	events, err := s.events.FindEventsByConsignment(ctx, consignmentID)
	if err != nil {
		return trace.FlowGraph{}, errs.Wrapf(err, "find events of consignment %s", consignmentID)
	}
	graph := trace.BuildFlow(consignmentID, events)
	logging.Info(ctx, "consignment flow built",
		slog.String("consignment_id", consignmentID),
		slog.Int("nodes", len(graph.Nodes)),
		slog.Int("links", len(graph.Links)),
	)
	return graph, nil
}

func (s *Service) begin(ctx context.Context, op string) (context.Context, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if s.events == nil {
		return nil, errors.New("trace event repository is required")
	}
	if s.ids == nil {
		return nil, errors.New("identifier service is required")
	}
	ctx = logging.WithLogger(ctx, s.logger)
	return logging.WithAttrs(ctx, slog.String("component", "usecase.journey"), slog.String("op", op)), nil
}
