package consignment

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	domain "pharmatrace/internal/domain/consignment"
	"pharmatrace/internal/domain/sscc"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
	gormrepo "pharmatrace/internal/infrastructure/persistence/gormdb/repository"
	gormuow "pharmatrace/internal/infrastructure/persistence/gormdb/uow"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/identifier"
	"pharmatrace/internal/usecase/tracelog"
)

const (
	shipmentSSCC = "106141410000000019"
	packageSSCC  = "106141410000000026"
	caseSSCC     = "106141410000000033"
	gtin         = "61640056789012"
	ownerID      = uint64(7)
)

func examplePayload(eventID, consignmentID string) string {
	return `{
  "header": {"event_id": "` + eventID + `", "event_type": "consignment", "event_timestamp": "2026-03-01T10:00:00Z"},
  "consignment": {
    "consignment_id": "` + consignmentID + `",
    "parties": {
      "manufacturer_party": {"name": "Acme Pharma", "ppb_id": "M-1", "gln": "8901234000001"},
      "importer_party": {"name": "Nairobi Importers", "ppb_id": "I-1"}
    },
    "logistics": {"carrier": "KQ Cargo", "final_destination_address": "Nairobi"},
    "items": [
      {"type": "shipment", "label": "SHIP", "sscc": "` + shipmentSSCC + `"},
      {"type": "package", "label": "PKG", "sscc": "` + packageSSCC + `", "parent_sscc": "` + shipmentSSCC + `"},
      {"type": "case", "label": "CASE", "sscc": "` + caseSSCC + `", "parent_sscc": "` + packageSSCC + `"},
      {"type": "batch", "label": "BATCH", "parent_sscc": "` + caseSSCC + `", "gtin": "` + gtin + `", "batch_no": "B1",
       "quantity_approved": 500,
       "serialization": {"ranges": [{"start": "KE0010001", "end": "KE0010003"}], "explicit": ["KE0010002"]}}
    ]
  }
}`
}

type fixture struct {
	db         *gorm.DB
	svc        *Service
	containers *gormrepo.ContainerRepository
	events     *gormrepo.TraceEventRepository
	ids        *identifier.Service
}

func setupServiceWithDB(t *testing.T) fixture {
	t.Helper()

	db, err := gorm.Open(gormsqlite.Open(filepath.Join(t.TempDir(), "trace.sqlite")), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(model.All()...); err != nil {
		t.Fatalf("auto migrate: %v", err)
	}

	products := gormrepo.NewProductRepository(db)
	if _, err := products.UpsertProducts(context.Background(), []ports.ProductRef{{GTIN: gtin, Name: "Amoxicillin 500mg"}}); err != nil {
		t.Fatalf("UpsertProducts() error = %v", err)
	}

	codec, err := sscc.NewCodec("0614141", 1)
	if err != nil {
		t.Fatalf("NewCodec() error = %v", err)
	}
	containers := gormrepo.NewContainerRepository(db)
	events := gormrepo.NewTraceEventRepository(db)
	ids := identifier.NewService(codec, containers)
	emitter := tracelog.NewEmitter(events, containers, tracelog.RetryPolicy{MaxTries: 2, InitialInterval: time.Millisecond}, nil)

	svc := NewService(containers, gormrepo.NewConsignmentRepository(db), products, gormuow.NewUnitOfWork(db), ids, emitter, Config{}, nil)
	return fixture{db: db, svc: svc, containers: containers, events: events, ids: ids}
}

func decode(t *testing.T, raw string) domain.Payload {
	t.Helper()
	p, err := DecodePayload(strings.NewReader(raw))
	if err != nil {
		t.Fatalf("DecodePayload() error = %v", err)
	}
	return p
}

func countRows(t *testing.T, db *gorm.DB, value any) int64 {
	t.Helper()
	var n int64
	if err := db.Model(value).Count(&n).Error; err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}

func TestImportBuildsTreeAndEvents(t *testing.T) {
	f := setupServiceWithDB(t)
	ctx := context.Background()

	got, err := f.svc.Import(ctx, ImportInput{OwnerID: ownerID, Payload: decode(t, examplePayload("EVT-1", "CNS-1"))})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	if got.EventID != "EVT-1" || got.ConsignmentID != "CNS-1" || got.ManufacturerName != "Acme Pharma" {
		t.Fatalf("Import() consignment = %+v", got)
	}
	if len(got.Batches) != 1 || !got.Batches[0].Quantity.Equal(decimal.NewFromInt(500)) || got.Batches[0].SerialCount != 3 {
		t.Fatalf("Import() batches = %+v", got.Batches)
	}

	shipment, err := f.containers.FindShipmentBySSCC(ctx, shipmentSSCC)
	if err != nil {
		t.Fatalf("FindShipmentBySSCC() error = %v", err)
	}
	if shipment.Carrier != "KQ Cargo" || shipment.EventID == "" {
		t.Fatalf("shipment = %+v", shipment)
	}

	var pkg model.Package
	if err := f.db.Where("sscc = ?", packageSSCC).Take(&pkg).Error; err != nil {
		t.Fatalf("load package: %v", err)
	}
	if pkg.ShipmentID == nil || *pkg.ShipmentID != shipment.ID {
		t.Fatalf("package shipment = %v, want %d", pkg.ShipmentID, shipment.ID)
	}
	cases, err := f.containers.ListCasesByPackage(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("ListCasesByPackage() error = %v", err)
	}
	if len(cases) != 1 || cases[0].Label != "CASE-CNS-1-1" {
		t.Fatalf("package cases = %+v", cases)
	}
	if n := countRows(t, f.db, &model.SerialNumber{}); n != 3 {
		t.Fatalf("serial rows = %d, want 3", n)
	}

	shipmentEPC := f.ids.ContainerEPC(ports.ContainerShipment, shipment.ID, shipmentSSCC)
	events, err := f.events.FindEventsBySubject(ctx, []string{shipmentEPC})
	if err != nil {
		t.Fatalf("FindEventsBySubject() error = %v", err)
	}
	if len(events) != 1 || events[0].BizStep != trace.BizStepShipping {
		t.Fatalf("shipment events = %+v", events)
	}
	if !events[0].TotalQuantity().Equal(decimal.NewFromInt(500)) {
		t.Fatalf("shipment event quantity = %s", events[0].TotalQuantity())
	}

	all, err := f.events.FindEventsByConsignment(ctx, "CNS-1")
	if err != nil {
		t.Fatalf("FindEventsByConsignment() error = %v", err)
	}
	if len(all) != 4 {
		t.Fatalf("consignment events = %d, want 4", len(all))
	}
}

func TestImportRejectsReusedEventID(t *testing.T) {
	f := setupServiceWithDB(t)
	ctx := context.Background()

	if _, err := f.svc.Import(ctx, ImportInput{OwnerID: ownerID, Payload: decode(t, examplePayload("EVT-1", "CNS-1"))}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	before := map[string]int64{
		"shipments":    countRows(t, f.db, &model.Shipment{}),
		"packages":     countRows(t, f.db, &model.Package{}),
		"cases":        countRows(t, f.db, &model.Case{}),
		"batches":      countRows(t, f.db, &model.Batch{}),
		"consignments": countRows(t, f.db, &model.Consignment{}),
	}

	// Same event id with fresh containers: rejected before any write.
	raw := strings.NewReplacer(shipmentSSCC, "106141410000000040", packageSSCC, "106141410000000057").
		Replace(examplePayload("EVT-1", "CNS-2"))
	_, err := f.svc.Import(ctx, ImportInput{OwnerID: ownerID, Payload: decode(t, raw)})
	if !errors.Is(err, errs.ErrConflict) || !errors.Is(err, domain.ErrDuplicateEvent) {
		t.Fatalf("Import(reused) error = %v", err)
	}

	after := map[string]int64{
		"shipments":    countRows(t, f.db, &model.Shipment{}),
		"packages":     countRows(t, f.db, &model.Package{}),
		"cases":        countRows(t, f.db, &model.Case{}),
		"batches":      countRows(t, f.db, &model.Batch{}),
		"consignments": countRows(t, f.db, &model.Consignment{}),
	}
	for table, n := range before {
		if after[table] != n {
			t.Fatalf("%s rows = %d after rejected import, want %d", table, after[table], n)
		}
	}
}

func TestImportFailuresRollBack(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		kind    error
	}{
		{
			name: "batch under package",
			payload: strings.Replace(examplePayload("EVT-9", "CNS-9"),
				`"parent_sscc": "`+caseSSCC+`", "gtin"`, `"parent_sscc": "`+packageSSCC+`", "gtin"`, 1),
			kind: errs.ErrBadHierarchy,
		},
		{
			name:    "unknown product",
			payload: strings.Replace(examplePayload("EVT-9", "CNS-9"), gtin, "00000000000000", 1),
			kind:    errs.ErrNotFound,
		},
		{
			name:    "missing batch number",
			payload: strings.Replace(examplePayload("EVT-9", "CNS-9"), `"batch_no": "B1",`, "", 1),
			kind:    errs.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupServiceWithDB(t)
			_, err := f.svc.Import(context.Background(), ImportInput{OwnerID: ownerID, Payload: decode(t, tt.payload)})
			if !errors.Is(err, tt.kind) {
				t.Fatalf("Import() error = %v, want kind %v", err, tt.kind)
			}
			if n := countRows(t, f.db, &model.Shipment{}); n != 0 {
				t.Fatalf("shipments = %d after failed import", n)
			}
			if n := countRows(t, f.db, &model.Consignment{}); n != 0 {
				t.Fatalf("consignments = %d after failed import", n)
			}
		})
	}
}

func TestImportDuplicateContainerRollsBack(t *testing.T) {
	f := setupServiceWithDB(t)
	ctx := context.Background()

	if _, err := f.svc.Import(ctx, ImportInput{OwnerID: ownerID, Payload: decode(t, examplePayload("EVT-1", "CNS-1"))}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	_, err := f.svc.Import(ctx, ImportInput{OwnerID: ownerID, Payload: decode(t, examplePayload("EVT-2", "CNS-2"))})
	if !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("Import(same sscc) error = %v", err)
	}
	if n := countRows(t, f.db, &model.Consignment{}); n != 1 {
		t.Fatalf("consignments = %d, want 1", n)
	}
}

func TestImportKeepsBatchIdentityPerGTIN(t *testing.T) {
	f := setupServiceWithDB(t)
	ctx := context.Background()

	const otherGTIN = "61640056789026"
	if _, err := gormrepo.NewProductRepository(f.db).UpsertProducts(ctx, []ports.ProductRef{{GTIN: otherGTIN, Name: "Paracetamol 500mg"}}); err != nil {
		t.Fatalf("UpsertProducts() error = %v", err)
	}

	first, err := f.svc.Import(ctx, ImportInput{OwnerID: ownerID, Payload: decode(t, examplePayload("EVT-1", "CNS-1"))})
	if err != nil {
		t.Fatalf("Import(first) error = %v", err)
	}

	// Another owner ships a different product under the same batch number.
	raw := strings.NewReplacer(
		shipmentSSCC, "106141410000000040",
		packageSSCC, "106141410000000057",
		caseSSCC, "106141410000000064",
		gtin, otherGTIN,
	).Replace(examplePayload("EVT-2", "CNS-2"))
	second, err := f.svc.Import(ctx, ImportInput{OwnerID: 99, Payload: decode(t, raw)})
	if err != nil {
		t.Fatalf("Import(second) error = %v", err)
	}
	if second.Batches[0].BatchID == first.Batches[0].BatchID {
		t.Fatalf("second import reused batch %d", first.Batches[0].BatchID)
	}

	batch, err := f.containers.GetBatch(ctx, first.Batches[0].BatchID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if batch.GTIN != gtin || batch.OwnerID != ownerID || !batch.TotalQty.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("first batch = gtin %s owner %d total %s", batch.GTIN, batch.OwnerID, batch.TotalQty)
	}

	var c model.Case
	if err := f.db.Where("sscc = ?", caseSSCC).Take(&c).Error; err != nil {
		t.Fatalf("load case: %v", err)
	}
	links, err := f.containers.ListCaseBatchLinks(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListCaseBatchLinks() error = %v", err)
	}
	if len(links) != 1 || links[0].BatchID != batch.ID {
		t.Fatalf("case links = %+v, want batch %d", links, batch.ID)
	}

	// The same GTIN and batch number under a foreign owner is refused.
	raw = strings.NewReplacer(
		shipmentSSCC, "106141410000000071",
		packageSSCC, "106141410000000088",
		caseSSCC, "106141410000000095",
	).Replace(examplePayload("EVT-3", "CNS-3"))
	_, err = f.svc.Import(ctx, ImportInput{OwnerID: 99, Payload: decode(t, raw)})
	if !errors.Is(err, ports.ErrBatchOwnedElsewhere) {
		t.Fatalf("Import(foreign owner) error = %v, want ErrBatchOwnedElsewhere", err)
	}
	if n := countRows(t, f.db, &model.Consignment{}); n != 2 {
		t.Fatalf("consignments = %d, want 2", n)
	}
}

func TestImportStoresBatchApproval(t *testing.T) {
	f := setupServiceWithDB(t)

	raw := strings.Replace(examplePayload("EVT-1", "CNS-1"), `"batch_no": "B1",`, `"batch_no": "B1",
       "product_code": "AMX-500", "permit_id": "PPB-IMP-1",
       "approval": {"approval_status": true, "quantities": {"declared_total": 1000, "declared_sent": 500}},`, 1)
	got, err := f.svc.Import(context.Background(), ImportInput{OwnerID: ownerID, Payload: decode(t, raw)})
	if err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	approval := got.Batches[0].Approval
	if approval["product_code"] != "AMX-500" || approval["permit_id"] != "PPB-IMP-1" {
		t.Fatalf("approval = %v", approval)
	}
	if approval["approval_status"] != true || approval["declared_total"] != "1000" || approval["declared_sent"] != "500" {
		t.Fatalf("approval = %v", approval)
	}
}

func TestGetConsignment(t *testing.T) {
	f := setupServiceWithDB(t)
	ctx := context.Background()

	if _, err := f.svc.Get(ctx, "CNS-404"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}
	if _, err := f.svc.Import(ctx, ImportInput{OwnerID: ownerID, Payload: decode(t, examplePayload("EVT-1", "CNS-1"))}); err != nil {
		t.Fatalf("Import() error = %v", err)
	}
	got, err := f.svc.Get(ctx, "CNS-1")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Logistics["carrier"] != "KQ Cargo" {
		t.Fatalf("Get() logistics = %v", got.Logistics)
	}
	if _, ok := got.Parties["manufacturer_party"]; !ok {
		t.Fatalf("Get() parties = %v", got.Parties)
	}
}

func TestDecodePayloadAndSchema(t *testing.T) {
	if _, err := DecodePayload(strings.NewReader(`{"header": `)); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("DecodePayload(truncated) error = %v", err)
	}

	schema, err := PayloadSchema()
	if err != nil {
		t.Fatalf("PayloadSchema() error = %v", err)
	}
	for _, want := range []string{`"consignment_id"`, `"parent_sscc"`, `"event_id"`} {
		if !strings.Contains(string(schema), want) {
			t.Fatalf("PayloadSchema() missing %s", want)
		}
	}
}
