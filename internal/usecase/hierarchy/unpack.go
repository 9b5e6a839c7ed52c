package hierarchy

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/tracelog"
)

// Unpack releases every case of a package. Dispatched or empty packages are
// rejected.
func (s *Service) Unpack(ctx context.Context, in UnpackInput) ([]ports.Case, error) {
	ctx, err := s.begin(ctx, "unpack")
	if err != nil {
		return nil, err
	}
	if ctx, err = withActor(ctx, in.Actor); err != nil {
		return nil, err
	}

	var (
		pkg      ports.Package
		released []ports.Case
	)
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		pkg, released, err = s.unpackTx(txCtx, in.Actor, in.PackageID, domain.OpUnpack, normalizeNotes(in.Notes))
		return err
	}); err != nil {
		return nil, errs.Wrap(err, "unpack package")
	}

	logging.Info(ctx, "package unpacked",
		slog.Uint64("package_id", pkg.ID),
		slog.String("sscc", pkg.SSCC),
		slog.Int("cases", len(released)),
	)
	s.emitter.Emit(ctx, s.aggregationEmission(ctx, in.Actor, pkg, released, trace.ActionDelete))
	return released, nil
}

// UnpackAll unpacks each package independently. A package that cannot be
// unpacked is logged and listed in Skipped; the others still commit.
func (s *Service) UnpackAll(ctx context.Context, in UnpackAllInput) (UnpackAllResult, error) {
	ctx, err := s.begin(ctx, "unpack_all")
	if err != nil {
		return UnpackAllResult{}, err
	}
	if ctx, err = withActor(ctx, in.Actor); err != nil {
		return UnpackAllResult{}, err
	}

	result := UnpackAllResult{Released: []ports.Case{}}
	var emissions []tracelog.Emission
	for _, id := range domain.DedupeIDs(in.PackageIDs) {
		var (
			pkg      ports.Package
			released []ports.Case
		)
		err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
			var err error
			pkg, released, err = s.unpackTx(txCtx, in.Actor, id, domain.OpUnpackAll, "")
			return err
		})
		if err != nil {
			logging.Warn(ctx, "skip package in unpack_all",
				slog.Uint64("package_id", id),
				slog.Any("err", errs.Loggable(err)),
			)
			result.Skipped = append(result.Skipped, id)
			continue
		}
		result.Released = append(result.Released, released...)
		emissions = append(emissions, s.aggregationEmission(ctx, in.Actor, pkg, released, trace.ActionDelete))
	}

	logging.Info(ctx, "unpack_all finished",
		slog.Int("released", len(result.Released)),
		slog.Int("skipped", len(result.Skipped)),
	)
	s.emitter.Emit(ctx, emissions...)
	return result, nil
}

func (s *Service) unpackTx(ctx context.Context, actor Actor, packageID uint64, kind domain.OperationKind, notes string) (ports.Package, []ports.Case, error) {
	pkg, err := s.containers.GetPackage(ctx, packageID)
	if err != nil {
		if errors.Is(err, ports.ErrPackageNotFound) {
			return ports.Package{}, nil, fmt.Errorf("%w: %d", domain.ErrPackageNotFound, packageID)
		}
		return ports.Package{}, nil, errs.Wrap(err, "load package")
	}

	count, err := s.containers.CountCasesInPackage(ctx, pkg.ID)
	if err != nil {
		return ports.Package{}, nil, errs.Wrap(err, "count package cases")
	}
	if err := domain.EvaluateUnpack(actor.ID, domain.PackageSnapshot{
		ID:         pkg.ID,
		OwnerID:    pkg.OwnerID,
		ShipmentID: pkg.ShipmentID,
		Dispatched: pkg.IsDispatched,
		CaseCount:  count,
	}); err != nil {
		return ports.Package{}, nil, err
	}

	released, err := s.containers.ReleaseCases(ctx, pkg.ID)
	if err != nil {
		if errors.Is(err, ports.ErrStaleAssignment) {
			return ports.Package{}, nil, fmt.Errorf("%w: %v", domain.ErrContainerFrozen, err)
		}
		return ports.Package{}, nil, errs.Wrap(err, "release cases")
	}
	for i := range released {
		released[i].PackageID = nil
	}

	var parentSSCC string
	if pkg.ShipmentID != nil {
		shipment, err := s.containers.GetShipment(ctx, *pkg.ShipmentID)
		if err != nil && !errors.Is(err, ports.ErrShipmentNotFound) {
			return ports.Package{}, nil, errs.Wrap(err, "load package shipment")
		}
		parentSSCC = shipment.SSCC
	}

	if _, err := s.changes.RecordChange(ctx, ports.HierarchyChange{
		Kind:        kind,
		ParentSSCC:  parentSSCC,
		OldSSCC:     pkg.SSCC,
		ActorUserID: actor.ID,
		ActorType:   actor.Type,
		ChangedAt:   s.now(),
		Notes:       notes,
	}); err != nil {
		return ports.Package{}, nil, errs.Wrap(err, "record unpack")
	}
	return pkg, released, nil
}
