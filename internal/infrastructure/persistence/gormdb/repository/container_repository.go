package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pharmatrace/internal/domain/consignment"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
	"pharmatrace/internal/ports"
)

const serialInsertBatch = 500

type ContainerRepository struct {
	db *gorm.DB
}

var _ ports.ContainerRepository = (*ContainerRepository)(nil)

func NewContainerRepository(db *gorm.DB) *ContainerRepository {
	return &ContainerRepository{db: db}
}

func (r *ContainerRepository) SSCCExists(ctx context.Context, code string) (bool, error) {
	code = strings.TrimSpace(code)
	if code == "" {
		return false, nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return false, err
	}

	for _, m := range []any{&model.Shipment{}, &model.Package{}, &model.Case{}} {
		var count int64
		if err := db.Model(m).Where("sscc = ?", code).Count(&count).Error; err != nil {
			return false, errs.Wrap(err, "count sscc")
		}
		if count > 0 {
			return true, nil
		}
	}

	var reassigned int64
	if err := db.Model(&model.Package{}).Where("previous_sscc = ?", code).Count(&reassigned).Error; err != nil {
		return false, errs.Wrap(err, "count previous sscc")
	}
	return reassigned > 0, nil
}

func (r *ContainerRepository) GetShipment(ctx context.Context, id uint64) (ports.Shipment, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Shipment{}, err
	}
	return takeShipment(db.Where("id = ?", id))
}

func (r *ContainerRepository) FindShipmentBySSCC(ctx context.Context, code string) (ports.Shipment, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Shipment{}, err
	}
	return takeShipment(db.Where("sscc = ?", strings.TrimSpace(code)))
}

func takeShipment(query *gorm.DB) (ports.Shipment, error) {
	var row model.Shipment
	if err := query.Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Shipment{}, ports.ErrShipmentNotFound
		}
		return ports.Shipment{}, errs.Wrap(err, "query shipment")
	}
	return mapShipment(row), nil
}

func (r *ContainerRepository) GetPackage(ctx context.Context, id uint64) (ports.Package, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Package{}, err
	}

	var row model.Package
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Package{}, ports.ErrPackageNotFound
		}
		return ports.Package{}, errs.Wrap(err, "query package")
	}
	return mapPackage(row), nil
}

func (r *ContainerRepository) CountCasesInPackage(ctx context.Context, packageID uint64) (int, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return 0, err
	}

	var count int64
	if err := db.Model(&model.Case{}).Where("package_id = ?", packageID).Count(&count).Error; err != nil {
		return 0, errs.Wrap(err, "count package cases")
	}
	return int(count), nil
}

func (r *ContainerRepository) ListCasesByPackage(ctx context.Context, packageID uint64) ([]ports.Case, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Case
	if err := db.Where("package_id = ?", packageID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query package cases")
	}
	return mapCases(rows), nil
}

func (r *ContainerRepository) GetCasesByIDs(ctx context.Context, ids []uint64) ([]ports.Case, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.Case
	if err := db.Where("id IN ?", ids).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query cases")
	}
	return mapCases(rows), nil
}

func (r *ContainerRepository) CaseLabelExists(ctx context.Context, ownerID uint64, label string) (bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.Case{}).
		Where("owner_id = ? AND label = ?", ownerID, label).
		Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count case label")
	}
	return count > 0, nil
}

func (r *ContainerRepository) GetBatch(ctx context.Context, id uint64) (ports.Batch, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Batch{}, err
	}

	var row model.Batch
	if err := db.Where("id = ?", id).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Batch{}, ports.ErrBatchNotFound
		}
		return ports.Batch{}, errs.Wrap(err, "query batch")
	}
	return mapBatch(row), nil
}

func (r *ContainerRepository) ListCaseBatchLinks(ctx context.Context, caseID uint64) ([]ports.CaseBatchLink, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	var rows []model.CaseBatchLink
	if err := db.Where("case_id = ?", caseID).Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query case batch links")
	}

	out := make([]ports.CaseBatchLink, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapLink(row))
	}
	return out, nil
}

func (r *ContainerRepository) CreateShipment(ctx context.Context, s ports.Shipment) (ports.Shipment, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Shipment{}, err
	}

	meta, err := encodeJSON(s.Metadata)
	if err != nil {
		return ports.Shipment{}, errs.Wrap(err, "encode shipment metadata")
	}
	row := model.Shipment{
		OwnerID:            s.OwnerID,
		SSCC:               nullableString(s.SSCC),
		Label:              s.Label,
		Customer:           s.Customer,
		Carrier:            s.Carrier,
		PickupLocation:     s.PickupLocation,
		DestinationAddress: s.DestinationAddress,
		IsDispatched:       s.IsDispatched,
		EventID:            nullableString(s.EventID),
		Metadata:           meta,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Shipment{}, insertError(err, "insert shipment")
	}
	return mapShipment(row), nil
}

// DispatchShipment freezes a shipment together with every package and case
// beneath it.
func (r *ContainerRepository) DispatchShipment(ctx context.Context, id uint64) error {
	return inTx(r.db, ctx, func(_ context.Context, db *gorm.DB) error {
		res := db.Model(&model.Shipment{}).Where("id = ?", id).Update("is_dispatched", true)
		if res.Error != nil {
			return errs.Wrap(res.Error, "dispatch shipment")
		}
		if res.RowsAffected == 0 {
			return ports.ErrShipmentNotFound
		}

		packages := db.Model(&model.Package{}).Select("id").Where("shipment_id = ?", id)
		if err := db.Model(&model.Case{}).
			Where("package_id IN (?)", packages).
			Update("is_dispatched", true).Error; err != nil {
			return errs.Wrap(err, "dispatch shipment cases")
		}
		if err := db.Model(&model.Package{}).
			Where("shipment_id = ?", id).
			Update("is_dispatched", true).Error; err != nil {
			return errs.Wrap(err, "dispatch shipment packages")
		}
		return nil
	})
}

func (r *ContainerRepository) CreatePackage(ctx context.Context, p ports.Package) (ports.Package, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Package{}, err
	}

	row := model.Package{
		OwnerID:      p.OwnerID,
		SSCC:         nullableString(p.SSCC),
		Label:        p.Label,
		ShipmentID:   p.ShipmentID,
		IsDispatched: p.IsDispatched,
		PreviousSSCC: nullableString(p.PreviousSSCC),
		ReassignedAt: p.ReassignedAt,
		Notes:        p.Notes,
		EventID:      nullableString(p.EventID),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Package{}, insertError(err, "insert package")
	}
	return mapPackage(row), nil
}

func (r *ContainerRepository) MarkPackageReassigned(ctx context.Context, id uint64, previousSSCC string, at time.Time) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	res := db.Model(&model.Package{}).Where("id = ?", id).Updates(map[string]any{
		"previous_sscc": nullableString(previousSSCC),
		"reassigned_at": at.UTC(),
	})
	if res.Error != nil {
		return errs.Wrap(res.Error, "mark package reassigned")
	}
	if res.RowsAffected == 0 {
		return ports.ErrPackageNotFound
	}
	return nil
}

func (r *ContainerRepository) CreateCase(ctx context.Context, c ports.Case) (ports.Case, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Case{}, err
	}

	row := model.Case{
		OwnerID:      c.OwnerID,
		SSCC:         nullableString(c.SSCC),
		Label:        c.Label,
		PackageID:    c.PackageID,
		IsDispatched: c.IsDispatched,
		EventID:      nullableString(c.EventID),
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.Case{}, insertError(err, "insert case")
	}
	return mapCase(row), nil
}

// AssignCasesToPackage sets the parent of every case in one guarded update.
// Only unassigned, undispatched cases match; a short count is reported as
// ports.ErrStaleAssignment and the caller's transaction is expected to roll
// back.
func (r *ContainerRepository) AssignCasesToPackage(ctx context.Context, caseIDs []uint64, packageID uint64) error {
	if len(caseIDs) == 0 {
		return nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	res := db.Model(&model.Case{}).
		Where("id IN ? AND package_id IS NULL AND is_dispatched = ?", caseIDs, false).
		Update("package_id", packageID)
	if res.Error != nil {
		return errs.Wrap(res.Error, "assign cases to package")
	}
	if int(res.RowsAffected) != len(caseIDs) {
		return fmt.Errorf("%w: assigned %d of %d cases", ports.ErrStaleAssignment, res.RowsAffected, len(caseIDs))
	}
	return nil
}

// ReleaseCases clears the parent of every case in a package and returns the
// cases as they were before the release.
func (r *ContainerRepository) ReleaseCases(ctx context.Context, packageID uint64) ([]ports.Case, error) {
	var released []ports.Case
	err := inTx(r.db, ctx, func(_ context.Context, db *gorm.DB) error {
		var rows []model.Case
		if err := db.Where("package_id = ?", packageID).Order("id asc").Find(&rows).Error; err != nil {
			return errs.Wrap(err, "query package cases")
		}
		if len(rows) == 0 {
			return nil
		}
		ids := make([]uint64, 0, len(rows))
		for _, row := range rows {
			ids = append(ids, row.ID)
		}
		res := db.Model(&model.Case{}).
			Where("id IN ? AND package_id = ? AND is_dispatched = ?", ids, packageID, false).
			Update("package_id", nil)
		if res.Error != nil {
			return errs.Wrap(res.Error, "release package cases")
		}
		if int(res.RowsAffected) != len(ids) {
			return fmt.Errorf("%w: released %d of %d cases", ports.ErrStaleAssignment, res.RowsAffected, len(ids))
		}
		released = mapCases(rows)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return released, nil
}

// UpsertBatch creates the batch identified by GTIN and batch number or, when
// the owner already holds it, adds the incoming quantity to its total.
// Identity fields of an existing batch are never rewritten.
func (r *ContainerRepository) UpsertBatch(ctx context.Context, b ports.Batch) (ports.Batch, error) {
	var out ports.Batch
	err := inTx(r.db, ctx, func(_ context.Context, db *gorm.DB) error {
		var row model.Batch
		err := forUpdate(db).
			Where("gtin = ? AND batch_no = ?", b.GTIN, b.BatchNo).Take(&row).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = model.Batch{
				OwnerID:         b.OwnerID,
				ProductID:       b.ProductID,
				GTIN:            b.GTIN,
				ProductName:     b.ProductName,
				BatchNo:         b.BatchNo,
				Status:          b.Status,
				ManufactureDate: b.ManufactureDate,
				ExpiryDate:      b.ExpiryDate,
				TotalQty:        b.TotalQty,
				SentQty:         decimal.Zero,
				Enabled:         true,
				EventID:         nullableString(b.EventID),
			}
			if err := db.Create(&row).Error; err != nil {
				return insertError(err, "insert batch")
			}
		case err != nil:
			return errs.Wrap(err, "query batch by gtin and number")
		case row.OwnerID != b.OwnerID:
			return fmt.Errorf("%w: gtin %s batch %s", ports.ErrBatchOwnedElsewhere, b.GTIN, b.BatchNo)
		default:
			if row.ProductName == "" {
				row.ProductName = b.ProductName
			}
			if b.Status != "" {
				row.Status = b.Status
			}
			if b.ManufactureDate != nil {
				row.ManufactureDate = b.ManufactureDate
			}
			if b.ExpiryDate != nil {
				row.ExpiryDate = b.ExpiryDate
			}
			row.TotalQty = row.TotalQty.Add(b.TotalQty)
			if err := db.Save(&row).Error; err != nil {
				return errs.Wrap(err, "update batch")
			}
		}
		out = mapBatch(row)
		return nil
	})
	if err != nil {
		return ports.Batch{}, err
	}
	return out, nil
}

// CreateCaseBatchLink allocates part of a batch to a case. The sum of all
// allocations of a batch never exceeds its total quantity.
func (r *ContainerRepository) CreateCaseBatchLink(ctx context.Context, link ports.CaseBatchLink) (ports.CaseBatchLink, error) {
	var out ports.CaseBatchLink
	err := inTx(r.db, ctx, func(_ context.Context, db *gorm.DB) error {
		var batch model.Batch
		if err := forUpdate(db).
			Where("id = ?", link.BatchID).Take(&batch).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ports.ErrBatchNotFound
			}
			return errs.Wrap(err, "query batch")
		}

		var allocated []model.CaseBatchLink
		if err := db.Where("batch_id = ?", link.BatchID).Find(&allocated).Error; err != nil {
			return errs.Wrap(err, "query batch allocations")
		}
		sent := link.Qty
		for _, a := range allocated {
			sent = sent.Add(a.Qty)
		}
		if sent.GreaterThan(batch.TotalQty) {
			return fmt.Errorf("%w: batch %s allocated %s of %s", consignment.ErrQuantityExceeded, batch.BatchNo, sent, batch.TotalQty)
		}

		row := model.CaseBatchLink{
			CaseID:      link.CaseID,
			BatchID:     link.BatchID,
			Qty:         link.Qty,
			SerialCount: link.SerialCount,
		}
		if err := db.Create(&row).Error; err != nil {
			return insertError(err, "insert case batch link")
		}
		if err := db.Model(&model.Batch{}).Where("id = ?", batch.ID).Update("sent_qty", sent).Error; err != nil {
			return errs.Wrap(err, "update batch sent quantity")
		}
		out = mapLink(row)
		return nil
	})
	if err != nil {
		return ports.CaseBatchLink{}, err
	}
	return out, nil
}

// AddSerialNumbers stores serials for a batch, skipping ones already present,
// and returns how many were new.
func (r *ContainerRepository) AddSerialNumbers(ctx context.Context, batchID uint64, serials []string) (int, error) {
	if len(serials) == 0 {
		return 0, nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return 0, err
	}

	rows := make([]model.SerialNumber, 0, len(serials))
	for _, s := range serials {
		rows = append(rows, model.SerialNumber{BatchID: batchID, SerialNumber: s})
	}
	res := db.Clauses(clause.OnConflict{DoNothing: true}).CreateInBatches(&rows, serialInsertBatch)
	if res.Error != nil {
		return 0, errs.Wrap(res.Error, "insert serial numbers")
	}
	return int(res.RowsAffected), nil
}

func (r *ContainerRepository) SetEventID(ctx context.Context, kind ports.ContainerKind, id uint64, eventID string) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	var target any
	switch kind {
	case ports.ContainerShipment:
		target = &model.Shipment{}
	case ports.ContainerPackage:
		target = &model.Package{}
	case ports.ContainerCase:
		target = &model.Case{}
	case ports.ContainerBatch:
		target = &model.Batch{}
	default:
		return fmt.Errorf("unknown container kind %q", kind)
	}

	if err := db.Model(target).Where("id = ?", id).Update("event_id", eventID).Error; err != nil {
		return errs.Wrapf(err, "set %s event id", kind)
	}
	return nil
}

func insertError(err error, msg string) error {
	if isUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", msg, ports.ErrDuplicateKey, err)
	}
	return errs.Wrap(err, msg)
}

func encodeJSON(v map[string]any) (datatypes.JSON, error) {
	if len(v) == 0 {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}

func decodeJSON(raw datatypes.JSON) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil
	}
	return out
}

func mapShipment(row model.Shipment) ports.Shipment {
	return ports.Shipment{
		ID:                 row.ID,
		OwnerID:            row.OwnerID,
		SSCC:               derefString(row.SSCC),
		Label:              row.Label,
		Customer:           row.Customer,
		Carrier:            row.Carrier,
		PickupLocation:     row.PickupLocation,
		DestinationAddress: row.DestinationAddress,
		IsDispatched:       row.IsDispatched,
		EventID:            derefString(row.EventID),
		Metadata:           decodeJSON(row.Metadata),
		CreatedAt:          row.CreatedAt,
	}
}

func mapPackage(row model.Package) ports.Package {
	return ports.Package{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		SSCC:         derefString(row.SSCC),
		Label:        row.Label,
		ShipmentID:   row.ShipmentID,
		IsDispatched: row.IsDispatched,
		PreviousSSCC: derefString(row.PreviousSSCC),
		ReassignedAt: row.ReassignedAt,
		Notes:        row.Notes,
		EventID:      derefString(row.EventID),
		CreatedAt:    row.CreatedAt,
	}
}

func mapCase(row model.Case) ports.Case {
	return ports.Case{
		ID:           row.ID,
		OwnerID:      row.OwnerID,
		SSCC:         derefString(row.SSCC),
		Label:        row.Label,
		PackageID:    row.PackageID,
		IsDispatched: row.IsDispatched,
		EventID:      derefString(row.EventID),
		CreatedAt:    row.CreatedAt,
	}
}

func mapCases(rows []model.Case) []ports.Case {
	out := make([]ports.Case, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapCase(row))
	}
	return out
}

func mapBatch(row model.Batch) ports.Batch {
	return ports.Batch{
		ID:              row.ID,
		OwnerID:         row.OwnerID,
		ProductID:       row.ProductID,
		GTIN:            row.GTIN,
		ProductName:     row.ProductName,
		BatchNo:         row.BatchNo,
		Status:          row.Status,
		ManufactureDate: row.ManufactureDate,
		ExpiryDate:      row.ExpiryDate,
		TotalQty:        row.TotalQty,
		SentQty:         row.SentQty,
		Enabled:         row.Enabled,
		EventID:         derefString(row.EventID),
		CreatedAt:       row.CreatedAt,
	}
}

func mapLink(row model.CaseBatchLink) ports.CaseBatchLink {
	return ports.CaseBatchLink{
		ID:          row.ID,
		CaseID:      row.CaseID,
		BatchID:     row.BatchID,
		Qty:         row.Qty,
		SerialCount: row.SerialCount,
	}
}
