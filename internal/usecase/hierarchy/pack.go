package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/tracelog"
)

// Pack moves unassigned cases into a new package under a shipment. Every case
// must exist, belong to the actor and be unassigned, otherwise nothing is
// written.
func (s *Service) Pack(ctx context.Context, in PackInput) (PackResult, error) {
	ctx, err := s.begin(ctx, "pack")
	if err != nil {
		return PackResult{}, err
	}
	if ctx, err = withActor(ctx, in.Actor); err != nil {
		return PackResult{}, err
	}
	caseIDs := domain.DedupeIDs(in.CaseIDs)
	if len(caseIDs) == 0 {
		return PackResult{}, domain.ErrNoCases
	}
	kind := domain.PackKindForSize(in.Size)

	shipment, err := s.targetShipment(ctx, in.ShipmentID)
	if err != nil {
		return PackResult{}, err
	}

	var result PackResult
	err = s.withSSCCRetry(ctx, func(code string) error {
		return s.uow.WithTx(ctx, func(txCtx context.Context) error {
			label := strings.TrimSpace(in.Label)
			if label == "" {
				label = "PKG-" + code
			}
			res, err := s.packTx(txCtx, in.Actor, caseIDs, shipment, code, label, normalizeNotes(in.Notes), kind)
			if err != nil {
				return err
			}
			result = res
			return nil
		})
	})
	if err != nil {
		return PackResult{}, errs.Wrap(err, "pack cases")
	}

	logging.Info(ctx, "cases packed",
		slog.Uint64("package_id", result.Package.ID),
		slog.String("sscc", result.Package.SSCC),
		slog.Uint64("shipment_id", shipment.ID),
		slog.Int("cases", len(result.Cases)),
		slog.String("kind", string(kind)),
	)
	s.emitter.Emit(ctx, s.aggregationEmission(ctx, in.Actor, result.Package, result.Cases, trace.ActionAdd))
	return result, nil
}

// Repack releases a package's cases and packs them into a new package under
// another shipment in one transaction. The old package row keeps its SSCC as
// previous_sscc so lineage can be followed.
func (s *Service) Repack(ctx context.Context, in RepackInput) (PackResult, error) {
	ctx, err := s.begin(ctx, "repack")
	if err != nil {
		return PackResult{}, err
	}
	if ctx, err = withActor(ctx, in.Actor); err != nil {
		return PackResult{}, err
	}

	shipment, err := s.targetShipment(ctx, in.ShipmentID)
	if err != nil {
		return PackResult{}, err
	}

	var (
		old    ports.Package
		freed  []ports.Case
		result PackResult
	)
	notes := normalizeNotes(in.Notes)
	err = s.withSSCCRetry(ctx, func(code string) error {
		return s.uow.WithTx(ctx, func(txCtx context.Context) error {
			pkg, released, err := s.unpackTx(txCtx, in.Actor, in.PackageID, domain.OpUnpack, notes)
			if err != nil {
				return err
			}
			ids := make([]uint64, 0, len(released))
			for _, c := range released {
				ids = append(ids, c.ID)
			}
			res, err := s.packTx(txCtx, in.Actor, ids, shipment, code, domain.RepackLabel(pkg.Label), notes, domain.OpPack)
			if err != nil {
				return err
			}
			if err := s.containers.MarkPackageReassigned(txCtx, pkg.ID, pkg.SSCC, s.now()); err != nil {
				return errs.Wrap(err, "mark package reassigned")
			}
			old, freed, result = pkg, released, res
			return nil
		})
	})
	if err != nil {
		return PackResult{}, errs.Wrap(err, "repack package")
	}

	logging.Info(ctx, "package repacked",
		slog.Uint64("old_package_id", old.ID),
		slog.String("old_sscc", old.SSCC),
		slog.Uint64("package_id", result.Package.ID),
		slog.String("sscc", result.Package.SSCC),
		slog.Uint64("shipment_id", shipment.ID),
	)
	s.emitter.Emit(ctx,
		s.aggregationEmission(ctx, in.Actor, old, freed, trace.ActionDelete),
		s.aggregationEmission(ctx, in.Actor, result.Package, result.Cases, trace.ActionAdd),
	)
	return result, nil
}

func (s *Service) targetShipment(ctx context.Context, id uint64) (ports.Shipment, error) {
	shipment, err := s.containers.GetShipment(ctx, id)
	if err != nil {
		if errors.Is(err, ports.ErrShipmentNotFound) {
			return ports.Shipment{}, fmt.Errorf("%w: %d", domain.ErrShipmentNotFound, id)
		}
		return ports.Shipment{}, errs.Wrap(err, "load shipment")
	}
	if shipment.IsDispatched {
		return ports.Shipment{}, fmt.Errorf("%w: shipment %d", domain.ErrContainerFrozen, id)
	}
	return shipment, nil
}

// withSSCCRetry generates a fresh SSCC for each attempt of fn. Only a unique
// index rejection leads to another attempt.
func (s *Service) withSSCCRetry(ctx context.Context, fn func(code string) error) error {
	for attempt := 1; attempt <= s.packRetries; attempt++ {
		generated, err := s.ids.Generate(ctx)
		if err != nil {
			return err
		}
		err = fn(generated.SSCC)
		if err == nil {
			return nil
		}
		if !errors.Is(err, ports.ErrDuplicateKey) {
			return err
		}
		logging.Warn(ctx, "sscc taken at insert, regenerating",
			slog.String("sscc", generated.SSCC),
			slog.Int("attempt", attempt),
		)
	}
	return fmt.Errorf("%w: %d attempts", domain.ErrPackRetriesReached, s.packRetries)
}

func (s *Service) packTx(
	ctx context.Context,
	actor Actor,
	caseIDs []uint64,
	shipment ports.Shipment,
	code string,
	label string,
	notes string,
	kind domain.OperationKind,
) (PackResult, error) {
	found, err := s.containers.GetCasesByIDs(ctx, caseIDs)
	if err != nil {
		return PackResult{}, errs.Wrap(err, "load cases")
	}
	snapshots := make([]domain.CaseSnapshot, 0, len(found))
	for _, c := range found {
		snapshots = append(snapshots, domain.CaseSnapshot{
			ID:         c.ID,
			OwnerID:    c.OwnerID,
			PackageID:  c.PackageID,
			Dispatched: c.IsDispatched,
		})
	}
	if err := domain.EvaluatePack(actor.ID, caseIDs, snapshots); err != nil {
		return PackResult{}, err
	}

	shipmentID := shipment.ID
	pkg, err := s.containers.CreatePackage(ctx, ports.Package{
		OwnerID:    actor.ID,
		SSCC:       code,
		Label:      label,
		ShipmentID: &shipmentID,
		Notes:      notes,
	})
	if err != nil {
		return PackResult{}, err
	}

	if err := s.containers.AssignCasesToPackage(ctx, caseIDs, pkg.ID); err != nil {
		if errors.Is(err, ports.ErrStaleAssignment) {
			return PackResult{}, fmt.Errorf("%w: %v", domain.ErrCaseAlreadyPacked, err)
		}
		return PackResult{}, errs.Wrap(err, "assign cases")
	}

	change, err := s.changes.RecordChange(ctx, ports.HierarchyChange{
		Kind:        domain.OpPack,
		ParentSSCC:  shipment.SSCC,
		NewSSCC:     code,
		ActorUserID: actor.ID,
		ActorType:   actor.Type,
		ChangedAt:   s.now(),
		Notes:       notes,
	})
	if err != nil {
		return PackResult{}, errs.Wrap(err, "record pack")
	}
	if kind != domain.OpPack {
		if err := s.changes.RetagChange(ctx, change.ID, kind); err != nil {
			return PackResult{}, errs.Wrap(err, "retag pack")
		}
	}

	cases, err := s.containers.ListCasesByPackage(ctx, pkg.ID)
	if err != nil {
		return PackResult{}, errs.Wrap(err, "load packed cases")
	}
	return PackResult{Package: pkg, Cases: cases, ChangeID: change.ID}, nil
}

// aggregationEmission describes a package gaining (ADD) or losing (DELETE)
// its cases. The quantity list sums the batch allocations of those cases.
func (s *Service) aggregationEmission(ctx context.Context, actor Actor, pkg ports.Package, cases []ports.Case, action trace.Action) tracelog.Emission {
	children := make([]string, 0, len(cases))
	for _, c := range cases {
		children = append(children, s.ids.ContainerEPC(ports.ContainerCase, c.ID, c.SSCC))
	}

	bizStep, disposition := trace.BizStepPacking, trace.DispositionInProgress
	if action == trace.ActionDelete {
		bizStep = trace.BizStepUnpacking
	}

	actorID := actor.ID
	event := trace.Event{
		EventID:     s.newID(),
		Kind:        trace.KindAggregation,
		ParentID:    s.ids.ContainerEPC(ports.ContainerPackage, pkg.ID, pkg.SSCC),
		ChildEPCs:   children,
		BizStep:     bizStep,
		Disposition: disposition,
		Action:      action,
		EventTime:   s.now(),
		Actor:       trace.Actor{Type: actor.Type, UserID: &actorID},
		Quantities:  s.caseQuantities(ctx, cases),
	}

	em := tracelog.Emission{Event: event}
	if action == trace.ActionAdd {
		em.Container = ports.ContainerPackage
		em.ContainerID = pkg.ID
	}
	return em
}

func (s *Service) caseQuantities(ctx context.Context, cases []ports.Case) []trace.Quantity {
	batches := make(map[uint64]ports.Batch)
	var lines []trace.Quantity
	for _, c := range cases {
		links, err := s.containers.ListCaseBatchLinks(ctx, c.ID)
		if err != nil {
			logging.Warn(ctx, "load case batch links failed", slog.Uint64("case_id", c.ID), slog.Any("err", errs.Loggable(err)))
			return nil
		}
		for _, link := range links {
			batch, ok := batches[link.BatchID]
			if !ok {
				if batch, err = s.containers.GetBatch(ctx, link.BatchID); err != nil {
					logging.Warn(ctx, "load batch failed", slog.Uint64("batch_id", link.BatchID), slog.Any("err", errs.Loggable(err)))
					return nil
				}
				batches[link.BatchID] = batch
			}
			lines = append(lines, trace.Quantity{EPCClass: trace.BatchClass(batch.GTIN, batch.BatchNo), Quantity: link.Qty})
		}
	}
	return trace.SumQuantities(lines)
}
