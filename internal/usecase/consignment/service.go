// Package consignment imports bulk consignment payloads into the container
// store as one atomic write and derives their trace events afterwards.
package consignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/consignment"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/identifier"
	"pharmatrace/internal/usecase/tracelog"
)

type Config struct {
	// LabelAttempts bounds the suffixes tried for a derived case label that
	// already exists from an earlier import.
	LabelAttempts int
}

type Service struct {
	containers    ports.ContainerRepository
	consignments  ports.ConsignmentRepository
	catalog       ports.ProductCatalog
	uow           ports.UnitOfWork
	ids           *identifier.Service
	emitter       *tracelog.Emitter
	logger        *slog.Logger
	labelAttempts int

	now   func() time.Time
	newID func() string
}

func NewService(
	containers ports.ContainerRepository,
	consignments ports.ConsignmentRepository,
	catalog ports.ProductCatalog,
	uow ports.UnitOfWork,
	ids *identifier.Service,
	emitter *tracelog.Emitter,
	cfg Config,
	logger *slog.Logger,
) *Service {
	attempts := cfg.LabelAttempts
	if attempts <= 0 {
		attempts = domain.DefaultLabelAttempts
	}
	return &Service{
		containers:    containers,
		consignments:  consignments,
		catalog:       catalog,
		uow:           uow,
		ids:           ids,
		emitter:       emitter,
		logger:        logger,
		labelAttempts: attempts,
		now:           func() time.Time { return time.Now().UTC() },
		newID:         func() string { return uuid.NewString() },
	}
}

type ImportInput struct {
	// OwnerID owns every container and batch the import creates.
	OwnerID uint64
	Payload domain.Payload
}

// Import validates the payload, writes the whole containment tree in one
// transaction and then emits the derived events. A reused event id is a
// conflict and leaves the store untouched.
func (s *Service) Import(ctx context.Context, in ImportInput) (ports.Consignment, error) {
	ctx, err := s.begin(ctx, "import")
	if err != nil {
		return ports.Consignment{}, err
	}
	if in.OwnerID == 0 {
		return ports.Consignment{}, errs.Kind(errs.ErrValidation, errors.New("owner id is required"))
	}

	imp, err := domain.Parse(in.Payload)
	if err != nil {
		return ports.Consignment{}, errs.Wrap(err, "parse consignment")
	}
	ctx = logging.WithAttrs(ctx,
		slog.String("event_id", imp.EventID),
		slog.String("consignment_id", imp.ConsignmentID),
	)

	plan, err := domain.BuildPlan(imp)
	if err != nil {
		return ports.Consignment{}, errs.Wrap(err, "resolve consignment hierarchy")
	}
	products, err := s.resolveProducts(ctx, plan.Batches)
	if err != nil {
		return ports.Consignment{}, err
	}

	var tree []*domain.ShipmentNode
	if err := s.uow.WithTx(ctx, func(txCtx context.Context) error {
		var err error
		tree, err = s.importTx(txCtx, in.OwnerID, imp, plan, products)
		return err
	}); err != nil {
		logging.Warn(ctx, "consignment import rejected", slog.Any("err", errs.Loggable(err)))
		return ports.Consignment{}, errs.Wrap(err, "import consignment")
	}

	at := imp.EventTime
	if at.IsZero() {
		at = s.now()
	}
	derived := domain.DeriveEvents(imp, tree, at, s.newID)
	emissions := make([]tracelog.Emission, 0, len(derived))
	for _, d := range derived {
		emissions = append(emissions, tracelog.Emission{
			Event:       d.Event,
			Container:   containerKind(d.Level),
			ContainerID: d.ContainerID,
		})
	}
	emitted := s.emitter.Emit(ctx, emissions...)

	logging.Info(ctx, "consignment imported",
		slog.Int("shipments", len(plan.Shipments)),
		slog.Int("packages", len(plan.Packages)),
		slog.Int("cases", len(plan.Cases)),
		slog.Int("batches", len(plan.Batches)),
		slog.Int("events", emitted),
	)

	out, err := s.consignments.GetConsignment(ctx, imp.ConsignmentID)
	if err != nil {
		return ports.Consignment{}, errs.Wrap(err, "load imported consignment")
	}
	return out, nil
}

// Get returns the latest import of consignmentID with its batches.
func (s *Service) Get(ctx context.Context, consignmentID string) (ports.Consignment, error) {
	ctx, err := s.begin(ctx, "get")
	if err != nil {
		return ports.Consignment{}, err
	}
	consignmentID = strings.TrimSpace(consignmentID)
	if consignmentID == "" {
		return ports.Consignment{}, domain.ErrConsignmentIDRequired
	}
	out, err := s.consignments.GetConsignment(ctx, consignmentID)
	if err != nil {
		return ports.Consignment{}, errs.Wrapf(err, "get consignment %s", consignmentID)
	}
	return out, nil
}

func (s *Service) begin(ctx context.Context, op string) (context.Context, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if s.containers == nil || s.consignments == nil {
		return nil, errors.New("consignment repositories are required")
	}
	if s.catalog == nil {
		return nil, errors.New("product catalog is required")
	}
	if s.uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if s.ids == nil {
		return nil, errors.New("identifier service is required")
	}
	ctx = logging.WithLogger(ctx, s.logger)
	return logging.WithAttrs(ctx, slog.String("component", "usecase.consignment"), slog.String("op", op)), nil
}

// resolveProducts looks every batch GTIN up in the catalog before any write.
func (s *Service) resolveProducts(ctx context.Context, batches []domain.PlannedBatch) (map[string]ports.ProductRef, error) {
	out := make(map[string]ports.ProductRef)
	for _, b := range batches {
		if _, ok := out[b.GTIN]; ok {
			continue
		}
		product, found, err := s.catalog.ResolveProduct(ctx, b.GTIN)
		if err != nil {
			return nil, errs.Wrapf(err, "resolve product %s", b.GTIN)
		}
		if !found {
			return nil, fmt.Errorf("%w: %s (batch %s)", domain.ErrUnknownProduct, b.GTIN, b.BatchNo)
		}
		out[b.GTIN] = product
	}
	return out, nil
}

func (s *Service) importTx(
	ctx context.Context,
	ownerID uint64,
	imp domain.Import,
	plan domain.Plan,
	products map[string]ports.ProductRef,
) ([]*domain.ShipmentNode, error) {
	exists, err := s.consignments.ConsignmentEventExists(ctx, imp.EventID)
	if err != nil {
		return nil, errs.Wrap(err, "check consignment event")
	}
	if exists {
		return nil, fmt.Errorf("%w: %s", domain.ErrDuplicateEvent, imp.EventID)
	}

	record, err := s.consignments.CreateConsignment(ctx, consignmentRecord(ownerID, imp))
	if err != nil {
		return nil, err
	}

	shipments := make(map[int]*domain.ShipmentNode, len(plan.Shipments))
	tree := make([]*domain.ShipmentNode, 0, len(plan.Shipments))
	for _, item := range plan.Shipments {
		created, err := s.containers.CreateShipment(ctx, ports.Shipment{
			OwnerID:            ownerID,
			SSCC:               item.SSCC,
			Label:              defaultLabel(item.ItemRef, "SHP", imp.ConsignmentID),
			Customer:           imp.ReceiverName(),
			Carrier:            imp.Logistics.Carrier,
			PickupLocation:     imp.Logistics.Origin,
			DestinationAddress: imp.Logistics.FinalDestinationAddress,
			Metadata:           item.Metadata,
		})
		if err != nil {
			return nil, errs.Wrapf(err, "create shipment %q", item.Label)
		}
		node := &domain.ShipmentNode{ID: created.ID, EPC: s.ids.ContainerEPC(ports.ContainerShipment, created.ID, created.SSCC)}
		shipments[item.Index] = node
		tree = append(tree, node)
	}

	packages := make(map[int]*domain.PackageNode, len(plan.Packages))
	for _, item := range plan.Packages {
		parent := shipments[item.Shipment]
		shipmentID := parent.ID
		created, err := s.containers.CreatePackage(ctx, ports.Package{
			OwnerID:    ownerID,
			SSCC:       item.SSCC,
			Label:      defaultLabel(item.ItemRef, "PKG", imp.ConsignmentID),
			ShipmentID: &shipmentID,
		})
		if err != nil {
			return nil, errs.Wrapf(err, "create package %q", item.Label)
		}
		node := &domain.PackageNode{ID: created.ID, EPC: s.ids.ContainerEPC(ports.ContainerPackage, created.ID, created.SSCC)}
		packages[item.Index] = node
		parent.Packages = append(parent.Packages, node)
	}

	labels := domain.NewLabelAllocator(imp.ConsignmentID, s.labelAttempts, func(ctx context.Context, label string) (bool, error) {
		return s.containers.CaseLabelExists(ctx, ownerID, label)
	})
	cases := make(map[int]*domain.CaseNode, len(plan.Cases))
	members := make(map[uint64][]uint64, len(plan.Packages))
	var packageOrder []uint64
	for _, item := range plan.Cases {
		label, err := labels.Allocate(ctx, item.Label)
		if err != nil {
			return nil, err
		}
		created, err := s.containers.CreateCase(ctx, ports.Case{
			OwnerID: ownerID,
			SSCC:    item.SSCC,
			Label:   label,
		})
		if err != nil {
			return nil, errs.Wrapf(err, "create case %q", item.Label)
		}
		node := &domain.CaseNode{ID: created.ID, EPC: s.ids.ContainerEPC(ports.ContainerCase, created.ID, created.SSCC)}
		cases[item.Index] = node

		parent := packages[item.Package]
		parent.Cases = append(parent.Cases, node)
		if _, seen := members[parent.ID]; !seen {
			packageOrder = append(packageOrder, parent.ID)
		}
		members[parent.ID] = append(members[parent.ID], created.ID)
	}
	for _, packageID := range packageOrder {
		if err := s.containers.AssignCasesToPackage(ctx, members[packageID], packageID); err != nil {
			return nil, errs.Wrapf(err, "assign cases to package %d", packageID)
		}
	}

	for _, item := range plan.Batches {
		product := products[item.GTIN]
		batch, err := s.containers.UpsertBatch(ctx, ports.Batch{
			OwnerID:         ownerID,
			ProductID:       product.ID,
			GTIN:            item.GTIN,
			ProductName:     firstNonEmpty(product.Name, item.ProductName),
			BatchNo:         item.BatchNo,
			Status:          item.BatchStatus,
			ManufactureDate: item.ManufactureDate,
			ExpiryDate:      item.ExpiryDate,
			TotalQty:        item.Quantity,
		})
		if err != nil {
			return nil, errs.Wrapf(err, "upsert batch %s", item.BatchNo)
		}

		parent := cases[item.Case]
		if _, err := s.containers.CreateCaseBatchLink(ctx, ports.CaseBatchLink{
			CaseID:      parent.ID,
			BatchID:     batch.ID,
			Qty:         item.Quantity,
			SerialCount: len(item.Serials),
		}); err != nil {
			return nil, errs.Wrapf(err, "link batch %s to case %d", item.BatchNo, parent.ID)
		}
		added, err := s.containers.AddSerialNumbers(ctx, batch.ID, item.Serials)
		if err != nil {
			return nil, errs.Wrapf(err, "store serials of batch %s", item.BatchNo)
		}
		if err := s.consignments.LinkConsignmentBatch(ctx, record.ID, ports.ConsignmentBatch{
			BatchID:     batch.ID,
			GTIN:        batch.GTIN,
			BatchNo:     batch.BatchNo,
			Quantity:    item.Quantity,
			SerialCount: added,
			Approval:    item.Approval(),
		}); err != nil {
			return nil, err
		}

		parent.Batches = append(parent.Batches, domain.BatchNode{
			EPC:      trace.BatchClass(batch.GTIN, batch.BatchNo),
			GTIN:     batch.GTIN,
			BatchNo:  batch.BatchNo,
			Quantity: item.Quantity,
		})
	}
	return tree, nil
}

func consignmentRecord(ownerID uint64, imp domain.Import) ports.Consignment {
	var eventAt *time.Time
	if !imp.EventTime.IsZero() {
		t := imp.EventTime
		eventAt = &t
	}
	return ports.Consignment{
		EventID:            imp.EventID,
		EventType:          imp.EventType,
		EventTimestamp:     eventAt,
		SourceSystem:       imp.SourceSystem,
		DestinationSystem:  imp.DestinationSystem,
		ConsignmentID:      imp.ConsignmentID,
		RefNumber:          imp.RefNumber,
		ShipmentDate:       imp.ShipmentDate,
		CountryOfOrigin:    imp.CountryOfOrigin,
		DestinationCountry: imp.DestinationCountry,
		RegistrationNo:     imp.RegistrationNo,
		TotalQuantity:      imp.TotalQuantity,
		ManufacturerName:   imp.ManufacturerName(),
		ManufacturerPPBID:  imp.Manufacturer.PPBID,
		ManufacturerGLN:    imp.Manufacturer.GLN,
		MAHName:            imp.MAH.Name,
		MAHPPBID:           imp.MAH.PPBID,
		ImporterName:       imp.Importer.Name,
		DestinationName:    imp.Destination.Name,
		OwnerID:            ownerID,
		Parties:            partiesMap(imp),
		Logistics:          logisticsMap(imp.Logistics),
	}
}

func partiesMap(imp domain.Import) map[string]any {
	out := make(map[string]any)
	put := func(key string, p domain.Party) {
		if p != (domain.Party{}) {
			out[key] = p
		}
	}
	putLocation := func(key string, l domain.Location) {
		if l != (domain.Location{}) {
			out[key] = l
		}
	}
	put("manufacturer_party", imp.Manufacturer)
	put("mah_party", imp.MAH)
	put("importer_party", imp.Importer)
	put("destination_party", imp.Destination)
	putLocation("manufacturing_site", imp.ManufacturingSite)
	putLocation("importer_location", imp.ImporterLocation)
	putLocation("destination_location", imp.DestinationLocation)
	if len(out) == 0 {
		return nil
	}
	return out
}

func logisticsMap(l domain.Logistics) map[string]any {
	if l == (domain.Logistics{}) {
		return nil
	}
	return map[string]any{
		"carrier":                   l.Carrier,
		"origin":                    l.Origin,
		"port_of_entry":             l.PortOfEntry,
		"final_destination_sgln":    l.FinalDestinationSGLN,
		"final_destination_address": l.FinalDestinationAddress,
	}
}

func containerKind(level domain.ItemType) ports.ContainerKind {
	switch level {
	case domain.ItemShipment:
		return ports.ContainerShipment
	case domain.ItemPackage:
		return ports.ContainerPackage
	case domain.ItemCase:
		return ports.ContainerCase
	default:
		return ports.ContainerBatch
	}
}

// defaultLabel names an unlabelled container after its SSCC, or after the
// consignment and item position when it has none.
func defaultLabel(ref domain.ItemRef, prefix, consignmentID string) string {
	if ref.Label != "" {
		return ref.Label
	}
	if ref.SSCC != "" {
		return prefix + "-" + ref.SSCC
	}
	return fmt.Sprintf("%s-%s-%d", prefix, consignmentID, ref.Index)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
