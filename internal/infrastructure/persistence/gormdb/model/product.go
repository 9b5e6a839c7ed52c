package model

import "time"

type Product struct {
	ID        uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	GTIN      string    `gorm:"column:gtin;type:varchar(14);not null;uniqueIndex"`
	Name      string    `gorm:"column:name;type:text;not null"`
	Code      string    `gorm:"column:code;type:text;not null;default:''"`
	CreatedAt time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Product) TableName() string {
	return "products"
}
