package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pharmatrace/internal/domain/consignment"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
	"pharmatrace/internal/ports"
)

type ConsignmentRepository struct {
	db *gorm.DB
}

var _ ports.ConsignmentRepository = (*ConsignmentRepository)(nil)

func NewConsignmentRepository(db *gorm.DB) *ConsignmentRepository {
	return &ConsignmentRepository{db: db}
}

func (r *ConsignmentRepository) ConsignmentEventExists(ctx context.Context, eventID string) (bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.Consignment{}).Where("event_id = ?", strings.TrimSpace(eventID)).Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count consignment event")
	}
	return count > 0, nil
}

// CreateConsignment stores the consignment header. A reused event id is
// reported as consignment.ErrDuplicateEvent.
func (r *ConsignmentRepository) CreateConsignment(ctx context.Context, c ports.Consignment) (ports.Consignment, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Consignment{}, err
	}

	parties, err := encodeJSON(c.Parties)
	if err != nil {
		return ports.Consignment{}, errs.Wrap(err, "encode consignment parties")
	}
	logistics, err := encodeJSON(c.Logistics)
	if err != nil {
		return ports.Consignment{}, errs.Wrap(err, "encode consignment logistics")
	}

	row := model.Consignment{
		EventID:            c.EventID,
		EventType:          c.EventType,
		EventTimestamp:     c.EventTimestamp,
		SourceSystem:       c.SourceSystem,
		DestinationSystem:  c.DestinationSystem,
		ConsignmentID:      c.ConsignmentID,
		RefNumber:          c.RefNumber,
		ShipmentDate:       c.ShipmentDate,
		CountryOfOrigin:    c.CountryOfOrigin,
		DestinationCountry: c.DestinationCountry,
		RegistrationNo:     c.RegistrationNo,
		TotalQuantity:      c.TotalQuantity,
		ManufacturerName:   c.ManufacturerName,
		ManufacturerPPBID:  c.ManufacturerPPBID,
		ManufacturerGLN:    c.ManufacturerGLN,
		MAHName:            c.MAHName,
		MAHPPBID:           c.MAHPPBID,
		ImporterName:       c.ImporterName,
		DestinationName:    c.DestinationName,
		OwnerID:            c.OwnerID,
		Parties:            parties,
		Logistics:          logistics,
	}
	if err := db.Create(&row).Error; err != nil {
		if isUniqueViolation(err) {
			return ports.Consignment{}, fmt.Errorf("%w: %s", consignment.ErrDuplicateEvent, c.EventID)
		}
		return ports.Consignment{}, errs.Wrap(err, "insert consignment")
	}
	return mapConsignment(row), nil
}

func (r *ConsignmentRepository) LinkConsignmentBatch(ctx context.Context, consignmentRowID uint64, batch ports.ConsignmentBatch) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	approval, err := encodeJSON(batch.Approval)
	if err != nil {
		return errs.Wrap(err, "encode batch approval")
	}
	row := model.ConsignmentBatch{
		ConsignmentFK: consignmentRowID,
		BatchID:       batch.BatchID,
		Quantity:      batch.Quantity,
		SerialCount:   batch.SerialCount,
		Approval:      approval,
	}
	updates := map[string]any{
		"quantity":     gorm.Expr("consignment_batches.quantity + ?", batch.Quantity),
		"serial_count": gorm.Expr("consignment_batches.serial_count + ?", batch.SerialCount),
	}
	if approval != nil {
		updates["approval"] = approval
	}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "consignment_row_id"}, {Name: "batch_id"}},
		DoUpdates: clause.Assignments(updates),
	}).Create(&row).Error; err != nil {
		return errs.Wrap(err, "link consignment batch")
	}
	return nil
}

// GetConsignment returns the most recent import of consignmentID with its
// batches.
func (r *ConsignmentRepository) GetConsignment(ctx context.Context, consignmentID string) (ports.Consignment, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.Consignment{}, err
	}

	var row model.Consignment
	if err := db.Where("consignment_id = ?", strings.TrimSpace(consignmentID)).
		Order("id desc").
		Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.Consignment{}, ports.ErrConsignmentNotFound
		}
		return ports.Consignment{}, errs.Wrap(err, "query consignment")
	}

	var links []model.ConsignmentBatch
	if err := db.Where("consignment_row_id = ?", row.ID).Order("id asc").Find(&links).Error; err != nil {
		return ports.Consignment{}, errs.Wrap(err, "query consignment batches")
	}

	out := mapConsignment(row)
	if len(links) == 0 {
		return out, nil
	}
	batchIDs := make([]uint64, 0, len(links))
	for _, l := range links {
		batchIDs = append(batchIDs, l.BatchID)
	}
	var batches []model.Batch
	if err := db.Where("id IN ?", batchIDs).Find(&batches).Error; err != nil {
		return ports.Consignment{}, errs.Wrap(err, "query consignment batch rows")
	}
	byID := make(map[uint64]model.Batch, len(batches))
	for _, b := range batches {
		byID[b.ID] = b
	}
	for _, l := range links {
		b := byID[l.BatchID]
		out.Batches = append(out.Batches, ports.ConsignmentBatch{
			BatchID:     l.BatchID,
			GTIN:        b.GTIN,
			BatchNo:     b.BatchNo,
			Quantity:    l.Quantity,
			SerialCount: l.SerialCount,
			Approval:    decodeJSON(l.Approval),
		})
	}
	return out, nil
}

func mapConsignment(row model.Consignment) ports.Consignment {
	return ports.Consignment{
		ID:                 row.ID,
		EventID:            row.EventID,
		EventType:          row.EventType,
		EventTimestamp:     row.EventTimestamp,
		SourceSystem:       row.SourceSystem,
		DestinationSystem:  row.DestinationSystem,
		ConsignmentID:      row.ConsignmentID,
		RefNumber:          row.RefNumber,
		ShipmentDate:       row.ShipmentDate,
		CountryOfOrigin:    row.CountryOfOrigin,
		DestinationCountry: row.DestinationCountry,
		RegistrationNo:     row.RegistrationNo,
		TotalQuantity:      row.TotalQuantity,
		ManufacturerName:   row.ManufacturerName,
		ManufacturerPPBID:  row.ManufacturerPPBID,
		ManufacturerGLN:    row.ManufacturerGLN,
		MAHName:            row.MAHName,
		MAHPPBID:           row.MAHPPBID,
		ImporterName:       row.ImporterName,
		DestinationName:    row.DestinationName,
		OwnerID:            row.OwnerID,
		Parties:            decodeJSON(row.Parties),
		Logistics:          decodeJSON(row.Logistics),
		CreatedAt:          row.CreatedAt,
	}
}
