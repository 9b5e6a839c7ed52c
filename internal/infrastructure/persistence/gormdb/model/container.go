package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Shipment struct {
	ID                 uint64         `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerID            uint64         `gorm:"column:owner_id;not null;index"`
	SSCC               *string        `gorm:"column:sscc;type:varchar(18);uniqueIndex"`
	Label              string         `gorm:"column:label;type:text;not null"`
	Customer           string         `gorm:"column:customer;type:text;not null;default:''"`
	Carrier            string         `gorm:"column:carrier;type:text;not null;default:''"`
	PickupLocation     string         `gorm:"column:pickup_location;type:text;not null;default:''"`
	DestinationAddress string         `gorm:"column:destination_address;type:text;not null;default:''"`
	IsDispatched       bool           `gorm:"column:is_dispatched;not null;default:false"`
	EventID            *string        `gorm:"column:event_id;type:text"`
	Metadata           datatypes.JSON `gorm:"column:metadata"`
	CreatedAt          time.Time      `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt          time.Time      `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Shipment) TableName() string {
	return "shipments"
}

type Package struct {
	ID           uint64     `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerID      uint64     `gorm:"column:owner_id;not null;index"`
	SSCC         *string    `gorm:"column:sscc;type:varchar(18);uniqueIndex"`
	Label        string     `gorm:"column:label;type:text;not null"`
	ShipmentID   *uint64    `gorm:"column:shipment_id;index"`
	IsDispatched bool       `gorm:"column:is_dispatched;not null;default:false"`
	PreviousSSCC *string    `gorm:"column:previous_sscc;type:varchar(18);index"`
	ReassignedAt *time.Time `gorm:"column:reassigned_at"`
	Notes        string     `gorm:"column:notes;type:text;not null;default:''"`
	EventID      *string    `gorm:"column:event_id;type:text"`
	CreatedAt    time.Time  `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt    time.Time  `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Package) TableName() string {
	return "packages"
}

type Case struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerID      uint64    `gorm:"column:owner_id;not null;uniqueIndex:idx_cases_owner_label,priority:1"`
	SSCC         *string   `gorm:"column:sscc;type:varchar(18);uniqueIndex"`
	Label        string    `gorm:"column:label;type:text;not null;uniqueIndex:idx_cases_owner_label,priority:2"`
	PackageID    *uint64   `gorm:"column:package_id;index"`
	IsDispatched bool      `gorm:"column:is_dispatched;not null;default:false"`
	EventID      *string   `gorm:"column:event_id;type:text"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Case) TableName() string {
	return "cases"
}

type Batch struct {
	ID              uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	OwnerID         uint64          `gorm:"column:owner_id;not null;index"`
	ProductID       uint64          `gorm:"column:product_id;not null;index"`
	GTIN            string          `gorm:"column:gtin;type:varchar(14);not null;uniqueIndex:idx_batches_gtin_batch_no,priority:1"`
	ProductName     string          `gorm:"column:product_name;type:text;not null;default:''"`
	BatchNo         string          `gorm:"column:batch_no;type:text;not null;uniqueIndex:idx_batches_gtin_batch_no,priority:2"`
	Status          string          `gorm:"column:status;type:text;not null;default:''"`
	ManufactureDate *time.Time      `gorm:"column:manufacture_date"`
	ExpiryDate      *time.Time      `gorm:"column:expiry_date"`
	TotalQty        decimal.Decimal `gorm:"column:total_qty;type:decimal(15,2);not null"`
	SentQty         decimal.Decimal `gorm:"column:sent_qty;type:decimal(15,2);not null"`
	Enabled         bool            `gorm:"column:enabled;not null;default:true"`
	EventID         *string         `gorm:"column:event_id;type:text"`
	CreatedAt       time.Time       `gorm:"column:created_at;not null;autoCreateTime"`
	UpdatedAt       time.Time       `gorm:"column:updated_at;not null;autoUpdateTime"`
}

func (Batch) TableName() string {
	return "batches"
}

type CaseBatchLink struct {
	ID          uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	CaseID      uint64          `gorm:"column:case_id;not null;index"`
	BatchID     uint64          `gorm:"column:batch_id;not null;index"`
	Qty         decimal.Decimal `gorm:"column:qty;type:decimal(15,2);not null"`
	SerialCount int             `gorm:"column:serial_count;not null;default:0"`
	CreatedAt   time.Time       `gorm:"column:created_at;not null;autoCreateTime"`
}

func (CaseBatchLink) TableName() string {
	return "cases_products"
}

type SerialNumber struct {
	ID           uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	BatchID      uint64    `gorm:"column:batch_id;not null;uniqueIndex:idx_serial_numbers_batch_serial,priority:1"`
	SerialNumber string    `gorm:"column:serial_number;type:text;not null;uniqueIndex:idx_serial_numbers_batch_serial,priority:2"`
	CreatedAt    time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (SerialNumber) TableName() string {
	return "serial_numbers"
}
