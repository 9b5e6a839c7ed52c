package repository

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"pharmatrace/internal/domain/consignment"
	"pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
	"pharmatrace/internal/ports"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := filepath.Join(t.TempDir(), "trace.sqlite")
	db, err := gorm.Open(gormsqlite.Open(dsn), &gorm.Config{})
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
	return db
}

func u64(v uint64) *uint64 { return &v }

func TestContainerRepositoryPackAndRelease(t *testing.T) {
	repo := NewContainerRepository(setupTestDB(t))
	ctx := context.Background()

	pkg, err := repo.CreatePackage(ctx, ports.Package{OwnerID: 1, SSCC: "106141411234567897", Label: "P1"})
	if err != nil {
		t.Fatalf("CreatePackage() error = %v", err)
	}
	var ids []uint64
	for _, label := range []string{"C1", "C2"} {
		c, err := repo.CreateCase(ctx, ports.Case{OwnerID: 1, Label: label})
		if err != nil {
			t.Fatalf("CreateCase(%s) error = %v", label, err)
		}
		ids = append(ids, c.ID)
	}

	exists, err := repo.SSCCExists(ctx, "106141411234567897")
	if err != nil || !exists {
		t.Fatalf("SSCCExists() = %v, %v", exists, err)
	}

	if err := repo.AssignCasesToPackage(ctx, ids, pkg.ID); err != nil {
		t.Fatalf("AssignCasesToPackage() error = %v", err)
	}
	if err := repo.AssignCasesToPackage(ctx, ids, pkg.ID); !errors.Is(err, ports.ErrStaleAssignment) {
		t.Fatalf("AssignCasesToPackage(again) error = %v", err)
	}

	count, err := repo.CountCasesInPackage(ctx, pkg.ID)
	if err != nil || count != 2 {
		t.Fatalf("CountCasesInPackage() = %d, %v", count, err)
	}

	released, err := repo.ReleaseCases(ctx, pkg.ID)
	if err != nil {
		t.Fatalf("ReleaseCases() error = %v", err)
	}
	if len(released) != 2 {
		t.Fatalf("ReleaseCases() returned %d cases", len(released))
	}
	cases, err := repo.GetCasesByIDs(ctx, ids)
	if err != nil {
		t.Fatalf("GetCasesByIDs() error = %v", err)
	}
	for _, c := range cases {
		if c.PackageID != nil {
			t.Fatalf("case %d still has package %d", c.ID, *c.PackageID)
		}
	}
}

func TestContainerRepositoryDuplicateSSCC(t *testing.T) {
	repo := NewContainerRepository(setupTestDB(t))
	ctx := context.Background()

	if _, err := repo.CreateShipment(ctx, ports.Shipment{OwnerID: 1, SSCC: "106141411234567897", Label: "S1"}); err != nil {
		t.Fatalf("CreateShipment() error = %v", err)
	}
	_, err := repo.CreateShipment(ctx, ports.Shipment{OwnerID: 1, SSCC: "106141411234567897", Label: "S2"})
	if !errors.Is(err, ports.ErrDuplicateKey) || !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("CreateShipment(duplicate) error = %v", err)
	}

	// Containers without an SSCC never collide.
	for _, label := range []string{"A", "B"} {
		if _, err := repo.CreateShipment(ctx, ports.Shipment{OwnerID: 1, Label: label}); err != nil {
			t.Fatalf("CreateShipment(%s) error = %v", label, err)
		}
	}
}

func TestContainerRepositoryDispatchFreezesTree(t *testing.T) {
	repo := NewContainerRepository(setupTestDB(t))
	ctx := context.Background()

	s, err := repo.CreateShipment(ctx, ports.Shipment{OwnerID: 1, Label: "S"})
	if err != nil {
		t.Fatalf("CreateShipment() error = %v", err)
	}
	p, err := repo.CreatePackage(ctx, ports.Package{OwnerID: 1, Label: "P", ShipmentID: u64(s.ID)})
	if err != nil {
		t.Fatalf("CreatePackage() error = %v", err)
	}
	c, err := repo.CreateCase(ctx, ports.Case{OwnerID: 1, Label: "C", PackageID: u64(p.ID)})
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}

	if err := repo.DispatchShipment(ctx, s.ID); err != nil {
		t.Fatalf("DispatchShipment() error = %v", err)
	}
	got, err := repo.GetPackage(ctx, p.ID)
	if err != nil || !got.IsDispatched {
		t.Fatalf("GetPackage() dispatched = %v, %v", got.IsDispatched, err)
	}
	cases, err := repo.GetCasesByIDs(ctx, []uint64{c.ID})
	if err != nil || len(cases) != 1 || !cases[0].IsDispatched {
		t.Fatalf("GetCasesByIDs() = %+v, %v", cases, err)
	}
	if _, err := repo.ReleaseCases(ctx, p.ID); !errors.Is(err, ports.ErrStaleAssignment) {
		t.Fatalf("ReleaseCases(dispatched) error = %v", err)
	}
	if err := repo.DispatchShipment(ctx, 999); !errors.Is(err, ports.ErrShipmentNotFound) {
		t.Fatalf("DispatchShipment(missing) error = %v", err)
	}
}

func TestContainerRepositoryBatchConservation(t *testing.T) {
	repo := NewContainerRepository(setupTestDB(t))
	ctx := context.Background()

	batch, err := repo.UpsertBatch(ctx, ports.Batch{OwnerID: 1, GTIN: "61640056789012", BatchNo: "BATCH-1", TotalQty: decimal.NewFromInt(300)})
	if err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
	again, err := repo.UpsertBatch(ctx, ports.Batch{OwnerID: 1, GTIN: "61640056789012", BatchNo: "BATCH-1", TotalQty: decimal.NewFromInt(200)})
	if err != nil {
		t.Fatalf("UpsertBatch(again) error = %v", err)
	}
	if again.ID != batch.ID || !again.TotalQty.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("UpsertBatch(again) = id %d total %s", again.ID, again.TotalQty)
	}

	c, err := repo.CreateCase(ctx, ports.Case{OwnerID: 1, Label: "C"})
	if err != nil {
		t.Fatalf("CreateCase() error = %v", err)
	}
	if _, err := repo.CreateCaseBatchLink(ctx, ports.CaseBatchLink{CaseID: c.ID, BatchID: batch.ID, Qty: decimal.NewFromInt(450)}); err != nil {
		t.Fatalf("CreateCaseBatchLink() error = %v", err)
	}
	_, err = repo.CreateCaseBatchLink(ctx, ports.CaseBatchLink{CaseID: c.ID, BatchID: batch.ID, Qty: decimal.NewFromInt(51)})
	if !errors.Is(err, consignment.ErrQuantityExceeded) {
		t.Fatalf("CreateCaseBatchLink(over) error = %v", err)
	}

	got, err := repo.GetBatch(ctx, batch.ID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if !got.SentQty.Equal(decimal.NewFromInt(450)) {
		t.Fatalf("SentQty = %s, want 450", got.SentQty)
	}

	added, err := repo.AddSerialNumbers(ctx, batch.ID, []string{"SN1", "SN2"})
	if err != nil || added != 2 {
		t.Fatalf("AddSerialNumbers() = %d, %v", added, err)
	}
	added, err = repo.AddSerialNumbers(ctx, batch.ID, []string{"SN2", "SN3"})
	if err != nil || added != 1 {
		t.Fatalf("AddSerialNumbers(overlap) = %d, %v", added, err)
	}
}

func TestContainerRepositoryBatchIdentity(t *testing.T) {
	repo := NewContainerRepository(setupTestDB(t))
	ctx := context.Background()

	first, err := repo.UpsertBatch(ctx, ports.Batch{OwnerID: 7, ProductID: 1, GTIN: "61640056789012", BatchNo: "B1", TotalQty: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("UpsertBatch(first) error = %v", err)
	}
	other, err := repo.UpsertBatch(ctx, ports.Batch{OwnerID: 99, ProductID: 2, GTIN: "61640056789026", BatchNo: "B1", TotalQty: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("UpsertBatch(other gtin) error = %v", err)
	}
	if other.ID == first.ID {
		t.Fatalf("batch B1 of a second GTIN reused batch %d", first.ID)
	}

	_, err = repo.UpsertBatch(ctx, ports.Batch{OwnerID: 99, ProductID: 1, GTIN: "61640056789012", BatchNo: "B1", TotalQty: decimal.NewFromInt(10)})
	if !errors.Is(err, ports.ErrBatchOwnedElsewhere) || !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("UpsertBatch(foreign owner) error = %v, want ErrBatchOwnedElsewhere", err)
	}

	got, err := repo.GetBatch(ctx, first.ID)
	if err != nil {
		t.Fatalf("GetBatch() error = %v", err)
	}
	if got.GTIN != "61640056789012" || got.OwnerID != 7 || got.ProductID != 1 || !got.TotalQty.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("first batch = gtin %s owner %d product %d total %s", got.GTIN, got.OwnerID, got.ProductID, got.TotalQty)
	}
}

func TestHierarchyChangeRepositoryHistory(t *testing.T) {
	repo := NewHierarchyChangeRepository(setupTestDB(t))
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	first, err := repo.RecordChange(ctx, ports.HierarchyChange{Kind: hierarchy.OpPack, NewSSCC: "106141411234567897", ActorUserID: 7, ChangedAt: base})
	if err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}
	if _, err := repo.RecordChange(ctx, ports.HierarchyChange{Kind: hierarchy.OpUnpack, OldSSCC: "106141411234567897", ActorUserID: 7, ChangedAt: base.Add(time.Hour)}); err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}
	if _, err := repo.RecordChange(ctx, ports.HierarchyChange{Kind: hierarchy.OpPack, NewSSCC: "000000000000000000", ActorUserID: 8, ChangedAt: base.Add(2 * time.Hour)}); err != nil {
		t.Fatalf("RecordChange() error = %v", err)
	}

	items, err := repo.ListChanges(ctx, ports.HistoryFilter{ActorID: u64(7)})
	if err != nil {
		t.Fatalf("ListChanges() error = %v", err)
	}
	if len(items) != 2 || items[0].Kind != hierarchy.OpUnpack {
		t.Fatalf("ListChanges() = %+v", items)
	}

	if err := repo.RetagChange(ctx, first.ID, hierarchy.OpUnpack); err != nil {
		t.Fatalf("RetagChange() error = %v", err)
	}
	bySSCC, err := repo.ListChangesBySSCC(ctx, "106141411234567897", 0)
	if err != nil {
		t.Fatalf("ListChangesBySSCC() error = %v", err)
	}
	if len(bySSCC) != 2 || bySSCC[1].Kind != hierarchy.OpUnpack {
		t.Fatalf("ListChangesBySSCC() = %+v", bySSCC)
	}
}

func TestTraceEventRepositoryAppendAndFind(t *testing.T) {
	repo := NewTraceEventRepository(setupTestDB(t))
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)

	packing := trace.Event{
		EventID:         "ev-1",
		Kind:            trace.KindAggregation,
		ParentID:        "urn:epc:id:sscc:0614141.1234567897",
		ChildEPCs:       []string{"urn:epc:class:lgtin:61640056789012.B1"},
		BizStep:         trace.BizStepPacking,
		Action:          trace.ActionAdd,
		EventTime:       at,
		Actor:           trace.Actor{Type: trace.ActorManufacturer, Organization: "Acme"},
		Quantities:      []trace.Quantity{{EPCClass: "urn:epc:class:lgtin:61640056789012.B1", Quantity: decimal.NewFromInt(500)}},
		BizTransactions: []trace.BizTransaction{{Type: trace.BizTransactionConsignment, ID: "CONS-1"}},
		Sources:         []trace.Party{{Type: "owning_party", ID: "PPB-1"}},
	}
	if err := repo.AppendEvent(ctx, packing); err != nil {
		t.Fatalf("AppendEvent() error = %v", err)
	}
	if err := repo.AppendEvent(ctx, packing); !errors.Is(err, trace.ErrDuplicateEvent) {
		t.Fatalf("AppendEvent(duplicate) error = %v", err)
	}
	if err := repo.AppendEvent(ctx, trace.Event{EventID: "bad", Kind: trace.KindAggregation, Action: trace.ActionAdd, EventTime: at}); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("AppendEvent(no parent) error = %v", err)
	}

	arrival := trace.Event{
		EventID:      "ev-2",
		Kind:         trace.KindObject,
		ChildEPCs:    []string{"urn:epc:class:lgtin:61640056789012.B1"},
		Action:       trace.ActionObserve,
		BizStep:      trace.BizStepReceiving,
		EventTime:    at.Add(time.Hour),
		SourceEntity: &trace.EntityRef{Type: "consignment", ID: "CONS-1"},
	}
	if err := repo.AppendEvent(ctx, arrival); err != nil {
		t.Fatalf("AppendEvent(arrival) error = %v", err)
	}

	byParent, err := repo.FindEventsBySubject(ctx, []string{"urn:epc:id:sscc:0614141.1234567897"})
	if err != nil {
		t.Fatalf("FindEventsBySubject() error = %v", err)
	}
	if len(byParent) != 1 || byParent[0].EventID != "ev-1" {
		t.Fatalf("FindEventsBySubject(parent) = %+v", byParent)
	}
	got := byParent[0]
	if len(got.Quantities) != 1 || !got.Quantities[0].Quantity.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("quantities = %+v", got.Quantities)
	}
	if len(got.Sources) != 1 || got.Sources[0].ID != "PPB-1" || !got.HasBizTransaction(trace.BizTransactionConsignment, "CONS-1") {
		t.Fatalf("hydrated event = %+v", got)
	}

	byChild, err := repo.FindEventsBySubject(ctx, []string{"urn:epc:class:lgtin:61640056789012.B1"})
	if err != nil {
		t.Fatalf("FindEventsBySubject(child) error = %v", err)
	}
	if len(byChild) != 2 || byChild[0].EventID != "ev-1" || byChild[1].EventID != "ev-2" {
		t.Fatalf("FindEventsBySubject(child) = %+v", byChild)
	}

	byConsignment, err := repo.FindEventsByConsignment(ctx, "CONS-1")
	if err != nil {
		t.Fatalf("FindEventsByConsignment() error = %v", err)
	}
	if len(byConsignment) != 2 {
		t.Fatalf("FindEventsByConsignment() returned %d events", len(byConsignment))
	}
}

func TestConsignmentRepositoryCreateAndGet(t *testing.T) {
	db := setupTestDB(t)
	repo := NewConsignmentRepository(db)
	containers := NewContainerRepository(db)
	ctx := context.Background()

	created, err := repo.CreateConsignment(ctx, ports.Consignment{
		EventID:       "evt-1",
		ConsignmentID: "CONS-1",
		TotalQuantity: decimal.NewFromInt(500),
		Parties:       map[string]any{"manufacturer": map[string]any{"name": "Acme"}},
	})
	if err != nil {
		t.Fatalf("CreateConsignment() error = %v", err)
	}
	if _, err := repo.CreateConsignment(ctx, ports.Consignment{EventID: "evt-1", ConsignmentID: "CONS-1"}); !errors.Is(err, consignment.ErrDuplicateEvent) {
		t.Fatalf("CreateConsignment(duplicate) error = %v", err)
	}
	exists, err := repo.ConsignmentEventExists(ctx, "evt-1")
	if err != nil || !exists {
		t.Fatalf("ConsignmentEventExists() = %v, %v", exists, err)
	}

	batch, err := containers.UpsertBatch(ctx, ports.Batch{GTIN: "61640056789012", BatchNo: "B1", TotalQty: decimal.NewFromInt(500)})
	if err != nil {
		t.Fatalf("UpsertBatch() error = %v", err)
	}
	if err := repo.LinkConsignmentBatch(ctx, created.ID, ports.ConsignmentBatch{BatchID: batch.ID, Quantity: decimal.NewFromInt(500), SerialCount: 3}); err != nil {
		t.Fatalf("LinkConsignmentBatch() error = %v", err)
	}

	got, err := repo.GetConsignment(ctx, "CONS-1")
	if err != nil {
		t.Fatalf("GetConsignment() error = %v", err)
	}
	if len(got.Batches) != 1 || got.Batches[0].BatchNo != "B1" || got.Batches[0].SerialCount != 3 {
		t.Fatalf("GetConsignment() batches = %+v", got.Batches)
	}
	if _, ok := got.Parties["manufacturer"]; !ok {
		t.Fatalf("GetConsignment() parties = %+v", got.Parties)
	}
	if _, err := repo.GetConsignment(ctx, "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("GetConsignment(missing) error = %v", err)
	}
}

func TestProductRepositoryUpsertAndResolve(t *testing.T) {
	repo := NewProductRepository(setupTestDB(t))
	ctx := context.Background()

	n, err := repo.UpsertProducts(ctx, []ports.ProductRef{{GTIN: "61640056789012", Name: "Amoxicillin 500mg"}})
	if err != nil || n != 1 {
		t.Fatalf("UpsertProducts() = %d, %v", n, err)
	}
	if _, err := repo.UpsertProducts(ctx, []ports.ProductRef{{GTIN: "61640056789012", Name: "Amoxicillin 500mg caps", Code: "AMX"}}); err != nil {
		t.Fatalf("UpsertProducts(update) error = %v", err)
	}

	ref, found, err := repo.ResolveProduct(ctx, "61640056789012")
	if err != nil || !found {
		t.Fatalf("ResolveProduct() found=%v err=%v", found, err)
	}
	if ref.Name != "Amoxicillin 500mg caps" || ref.Code != "AMX" {
		t.Fatalf("ResolveProduct() = %+v", ref)
	}
	if _, found, err := repo.ResolveProduct(ctx, "00000000000000"); err != nil || found {
		t.Fatalf("ResolveProduct(missing) found=%v err=%v", found, err)
	}
}
