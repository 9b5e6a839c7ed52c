package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/domain/sscc"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/tracelog"
)

const DefaultHistoryLimit = 50

type CreateShipmentInput struct {
	Actor              Actor
	Label              string
	Customer           string
	Carrier            string
	PickupLocation     string
	DestinationAddress string
	// SSCC is used as given when set; otherwise one is generated.
	SSCC     string
	Metadata map[string]any
}

type CreateCaseInput struct {
	Actor        Actor
	Label        string
	SSCC         string
	GenerateSSCC bool
}

type PackageView struct {
	Package ports.Package `json:"package"`
	Cases   []ports.Case  `json:"cases"`
}

type CaseView struct {
	Case  ports.Case            `json:"case"`
	Links []ports.CaseBatchLink `json:"batches"`
}

// History lists audit records newest first, 50 by default.
func (s *Service) History(ctx context.Context, filter ports.HistoryFilter) ([]ports.HierarchyChange, error) {
	ctx, err := s.begin(ctx, "history")
	if err != nil {
		return nil, err
	}
	if filter.Limit <= 0 {
		filter.Limit = DefaultHistoryLimit
	}
	items, err := s.changes.ListChanges(ctx, filter)
	if err != nil {
		return nil, errs.Wrap(err, "list hierarchy history")
	}
	return items, nil
}

// HistoryBySSCC lists audit records naming code as parent, new or old SSCC.
func (s *Service) HistoryBySSCC(ctx context.Context, code string, limit int) ([]ports.HierarchyChange, error) {
	ctx, err := s.begin(ctx, "history_by_sscc")
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if parsed, ok := sscc.FromURI(code); ok {
		code = parsed
	}
	if code == "" {
		return nil, errs.Kind(errs.ErrValidation, errors.New("sscc is required"))
	}
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	items, err := s.changes.ListChangesBySSCC(ctx, code, limit)
	if err != nil {
		return nil, errs.Wrap(err, "list hierarchy history by sscc")
	}
	return items, nil
}

func (s *Service) CreateShipment(ctx context.Context, in CreateShipmentInput) (ports.Shipment, error) {
	ctx, err := s.begin(ctx, "create_shipment")
	if err != nil {
		return ports.Shipment{}, err
	}
	if ctx, err = withActor(ctx, in.Actor); err != nil {
		return ports.Shipment{}, err
	}

	build := func(code string) ports.Shipment {
		label := strings.TrimSpace(in.Label)
		if label == "" {
			label = "SHP-" + code
		}
		return ports.Shipment{
			OwnerID:            in.Actor.ID,
			SSCC:               code,
			Label:              label,
			Customer:           strings.TrimSpace(in.Customer),
			Carrier:            strings.TrimSpace(in.Carrier),
			PickupLocation:     strings.TrimSpace(in.PickupLocation),
			DestinationAddress: strings.TrimSpace(in.DestinationAddress),
			Metadata:           in.Metadata,
		}
	}

	var created ports.Shipment
	if code := strings.TrimSpace(in.SSCC); code != "" {
		if !sscc.Validate(code) {
			return ports.Shipment{}, fmt.Errorf("%w: %q", sscc.ErrInvalidCode, code)
		}
		created, err = s.containers.CreateShipment(ctx, build(code))
	} else {
		err = s.withSSCCRetry(ctx, func(code string) error {
			var err error
			created, err = s.containers.CreateShipment(ctx, build(code))
			return err
		})
	}
	if err != nil {
		return ports.Shipment{}, errs.Wrap(err, "create shipment")
	}

	logging.Info(ctx, "shipment created", slog.Uint64("shipment_id", created.ID), slog.String("sscc", created.SSCC))
	return created, nil
}

func (s *Service) CreateCase(ctx context.Context, in CreateCaseInput) (ports.Case, error) {
	ctx, err := s.begin(ctx, "create_case")
	if err != nil {
		return ports.Case{}, err
	}
	if ctx, err = withActor(ctx, in.Actor); err != nil {
		return ports.Case{}, err
	}
	label := strings.TrimSpace(in.Label)
	if label == "" {
		return ports.Case{}, errs.Kind(errs.ErrValidation, errors.New("case label is required"))
	}

	build := func(code string) ports.Case {
		return ports.Case{OwnerID: in.Actor.ID, SSCC: code, Label: label}
	}

	var created ports.Case
	switch code := strings.TrimSpace(in.SSCC); {
	case code != "":
		if !sscc.Validate(code) {
			return ports.Case{}, fmt.Errorf("%w: %q", sscc.ErrInvalidCode, code)
		}
		created, err = s.containers.CreateCase(ctx, build(code))
	case in.GenerateSSCC:
		err = s.withSSCCRetry(ctx, func(code string) error {
			var err error
			created, err = s.containers.CreateCase(ctx, build(code))
			return err
		})
	default:
		created, err = s.containers.CreateCase(ctx, build(""))
	}
	if err != nil {
		return ports.Case{}, errs.Wrap(err, "create case")
	}
	return created, nil
}

// DispatchShipment freezes a shipment and everything packed beneath it, then
// records the departure as a shipping observation.
func (s *Service) DispatchShipment(ctx context.Context, actor Actor, shipmentID uint64) (ports.Shipment, error) {
	ctx, err := s.begin(ctx, "dispatch_shipment")
	if err != nil {
		return ports.Shipment{}, err
	}
	if ctx, err = withActor(ctx, actor); err != nil {
		return ports.Shipment{}, err
	}

	var shipment ports.Shipment
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		shipment, err = s.containers.GetShipment(txCtx, shipmentID)
		if err != nil {
			return err
		}
		if shipment.OwnerID != actor.ID {
			return fmt.Errorf("%w: %d", domain.ErrShipmentNotFound, shipmentID)
		}
		if shipment.IsDispatched {
			return fmt.Errorf("%w: shipment %d already dispatched", domain.ErrContainerFrozen, shipmentID)
		}
		if err := s.containers.DispatchShipment(txCtx, shipmentID); err != nil {
			return err
		}
		shipment.IsDispatched = true
		return nil
	}); err != nil {
		return ports.Shipment{}, errs.Wrap(err, "dispatch shipment")
	}

	logging.Info(ctx, "shipment dispatched", slog.Uint64("shipment_id", shipment.ID), slog.String("sscc", shipment.SSCC))

	actorID := actor.ID
	s.emitter.Emit(ctx, tracelog.Emission{
		Event: trace.Event{
			EventID:     s.newID(),
			Kind:        trace.KindObject,
			ChildEPCs:   []string{s.ids.ContainerEPC(ports.ContainerShipment, shipment.ID, shipment.SSCC)},
			BizStep:     trace.BizStepShipping,
			Disposition: trace.DispositionInTransit,
			Action:      trace.ActionObserve,
			EventTime:   s.now(),
			Actor:       trace.Actor{Type: actor.Type, UserID: &actorID},
		},
		Container:   ports.ContainerShipment,
		ContainerID: shipment.ID,
	})
	return shipment, nil
}

func (s *Service) GetPackage(ctx context.Context, id uint64) (PackageView, error) {
	ctx, err := s.begin(ctx, "get_package")
	if err != nil {
		return PackageView{}, err
	}
	pkg, err := s.containers.GetPackage(ctx, id)
	if err != nil {
		return PackageView{}, errs.Wrap(err, "get package")
	}
	cases, err := s.containers.ListCasesByPackage(ctx, id)
	if err != nil {
		return PackageView{}, errs.Wrap(err, "list package cases")
	}
	return PackageView{Package: pkg, Cases: cases}, nil
}

func (s *Service) GetCase(ctx context.Context, id uint64) (CaseView, error) {
	ctx, err := s.begin(ctx, "get_case")
	if err != nil {
		return CaseView{}, err
	}
	cases, err := s.containers.GetCasesByIDs(ctx, []uint64{id})
	if err != nil {
		return CaseView{}, errs.Wrap(err, "get case")
	}
	if len(cases) == 0 {
		return CaseView{}, fmt.Errorf("%w: %d", domain.ErrCaseNotFound, id)
	}
	links, err := s.containers.ListCaseBatchLinks(ctx, id)
	if err != nil {
		return CaseView{}, errs.Wrap(err, "list case batches")
	}
	return CaseView{Case: cases[0], Links: links}, nil
}
