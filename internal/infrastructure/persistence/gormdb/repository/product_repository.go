package repository

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
	"pharmatrace/internal/ports"
)

type ProductRepository struct {
	db *gorm.DB
}

var _ ports.ProductStore = (*ProductRepository)(nil)

func NewProductRepository(db *gorm.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) ResolveProduct(ctx context.Context, gtin string) (ports.ProductRef, bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return ports.ProductRef{}, false, err
	}

	var row model.Product
	if err := db.Where("gtin = ?", strings.TrimSpace(gtin)).Take(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ports.ProductRef{}, false, nil
		}
		return ports.ProductRef{}, false, errs.Wrap(err, "query product")
	}
	return ports.ProductRef{ID: row.ID, GTIN: row.GTIN, Name: row.Name, Code: row.Code}, true, nil
}

func (r *ProductRepository) UpsertProducts(ctx context.Context, products []ports.ProductRef) (int, error) {
	if len(products) == 0 {
		return 0, nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return 0, err
	}

	rows := make([]model.Product, 0, len(products))
	for _, p := range products {
		gtin := strings.TrimSpace(p.GTIN)
		if gtin == "" {
			return 0, errs.Kind(errs.ErrValidation, errors.New("product gtin is required"))
		}
		rows = append(rows, model.Product{GTIN: gtin, Name: strings.TrimSpace(p.Name), Code: strings.TrimSpace(p.Code)})
	}

	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "gtin"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "code", "updated_at"}),
	}).Create(&rows).Error; err != nil {
		return 0, errs.Wrap(err, "upsert products")
	}
	return len(rows), nil
}
