package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

type Consignment struct {
	ID                 uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	EventID            string          `gorm:"column:event_id;type:varchar(128);not null;uniqueIndex"`
	EventType          string          `gorm:"column:event_type;type:text;not null;default:''"`
	EventTimestamp     *time.Time      `gorm:"column:event_timestamp"`
	SourceSystem       string          `gorm:"column:source_system;type:text;not null;default:''"`
	DestinationSystem  string          `gorm:"column:destination_system;type:text;not null;default:''"`
	ConsignmentID      string          `gorm:"column:consignment_id;type:varchar(128);not null;index"`
	RefNumber          string          `gorm:"column:consignment_ref_number;type:text;not null;default:''"`
	ShipmentDate       *time.Time      `gorm:"column:shipment_date"`
	CountryOfOrigin    string          `gorm:"column:country_of_origin;type:text;not null;default:''"`
	DestinationCountry string          `gorm:"column:destination_country;type:text;not null;default:''"`
	RegistrationNo     string          `gorm:"column:registration_no;type:text;not null;default:''"`
	TotalQuantity      decimal.Decimal `gorm:"column:total_quantity;type:decimal(15,2);not null"`
	ManufacturerName   string          `gorm:"column:manufacturer_name;type:text;not null;default:''"`
	ManufacturerPPBID  string          `gorm:"column:manufacturer_ppb_id;type:text;not null;default:''"`
	ManufacturerGLN    string          `gorm:"column:manufacturer_gln;type:text;not null;default:''"`
	MAHName            string          `gorm:"column:mah_name;type:text;not null;default:''"`
	MAHPPBID           string          `gorm:"column:mah_ppb_id;type:text;not null;default:''"`
	ImporterName       string          `gorm:"column:importer_name;type:text;not null;default:''"`
	DestinationName    string          `gorm:"column:destination_name;type:text;not null;default:''"`
	OwnerID            uint64          `gorm:"column:owner_id;not null;index"`
	Parties            datatypes.JSON  `gorm:"column:parties"`
	Logistics          datatypes.JSON  `gorm:"column:logistics"`
	CreatedAt          time.Time       `gorm:"column:created_at;not null;autoCreateTime"`
}

func (Consignment) TableName() string {
	return "consignments"
}

type ConsignmentBatch struct {
	ID            uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	ConsignmentFK uint64          `gorm:"column:consignment_row_id;not null;uniqueIndex:idx_consignment_batches_pair,priority:1"`
	BatchID       uint64          `gorm:"column:batch_id;not null;uniqueIndex:idx_consignment_batches_pair,priority:2"`
	Quantity      decimal.Decimal `gorm:"column:quantity;type:decimal(15,2);not null"`
	SerialCount   int             `gorm:"column:serial_count;not null;default:0"`
	Approval      datatypes.JSON  `gorm:"column:approval"`
	CreatedAt     time.Time       `gorm:"column:created_at;not null;autoCreateTime"`
}

func (ConsignmentBatch) TableName() string {
	return "consignment_batches"
}
