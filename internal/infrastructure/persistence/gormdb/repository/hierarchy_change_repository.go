package repository

import (
	"context"
	"strings"

	"gorm.io/gorm"

	"pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
	"pharmatrace/internal/ports"
)

const defaultHistoryLimit = 50

type HierarchyChangeRepository struct {
	db *gorm.DB
}

var _ ports.HierarchyChangeRepository = (*HierarchyChangeRepository)(nil)

func NewHierarchyChangeRepository(db *gorm.DB) *HierarchyChangeRepository {
	return &HierarchyChangeRepository{db: db}
}

func (r *HierarchyChangeRepository) RecordChange(ctx context.Context, change ports.HierarchyChange) (ports.HierarchyChange, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.HierarchyChange{}, err
	}

	row := model.HierarchyChange{
		OperationType: string(change.Kind),
		ParentSSCC:    nullableString(change.ParentSSCC),
		NewSSCC:       nullableString(change.NewSSCC),
		OldSSCC:       nullableString(change.OldSSCC),
		ActorUserID:   change.ActorUserID,
		ActorType:     change.ActorType,
		ChangeDate:    change.ChangedAt.UTC(),
		Notes:         change.Notes,
	}
	if err := db.Create(&row).Error; err != nil {
		return ports.HierarchyChange{}, errs.Wrap(err, "insert hierarchy change")
	}
	return mapChange(row), nil
}

// RetagChange rewrites the operation kind of an existing record. Repack uses
// it to mark its pack record as an UNPACK.
func (r *HierarchyChangeRepository) RetagChange(ctx context.Context, id uint64, kind hierarchy.OperationKind) error {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return err
	}

	if err := db.Model(&model.HierarchyChange{}).
		Where("id = ?", id).
		Update("operation_type", string(kind)).Error; err != nil {
		return errs.Wrap(err, "retag hierarchy change")
	}
	return nil
}

func (r *HierarchyChangeRepository) ListChanges(ctx context.Context, filter ports.HistoryFilter) ([]ports.HierarchyChange, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	query := db.Model(&model.HierarchyChange{})
	if filter.ActorID != nil {
		query = query.Where("actor_user_id = ?", *filter.ActorID)
	}
	if filter.Kind != "" {
		query = query.Where("operation_type = ?", string(filter.Kind))
	}
	return listChanges(query, filter.Limit)
}

func (r *HierarchyChangeRepository) ListChangesBySSCC(ctx context.Context, code string, limit int) ([]ports.HierarchyChange, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	code = strings.TrimSpace(code)
	query := db.Model(&model.HierarchyChange{}).
		Where("parent_sscc = ? OR new_sscc = ? OR old_sscc = ?", code, code, code)
	return listChanges(query, limit)
}

func listChanges(query *gorm.DB, limit int) ([]ports.HierarchyChange, error) {
	if limit <= 0 {
		limit = defaultHistoryLimit
	}

	var rows []model.HierarchyChange
	if err := query.Order("change_date desc").Order("id desc").Limit(limit).Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query hierarchy changes")
	}

	out := make([]ports.HierarchyChange, 0, len(rows))
	for _, row := range rows {
		out = append(out, mapChange(row))
	}
	return out, nil
}

func mapChange(row model.HierarchyChange) ports.HierarchyChange {
	return ports.HierarchyChange{
		ID:          row.ID,
		Kind:        hierarchy.OperationKind(row.OperationType),
		ParentSSCC:  derefString(row.ParentSSCC),
		NewSSCC:     derefString(row.NewSSCC),
		OldSSCC:     derefString(row.OldSSCC),
		ActorUserID: row.ActorUserID,
		ActorType:   row.ActorType,
		ChangedAt:   row.ChangeDate,
		Notes:       row.Notes,
	}
}
