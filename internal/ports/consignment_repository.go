package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type ConsignmentBatch struct {
	BatchID     uint64          `json:"batch_id"`
	GTIN        string          `json:"gtin"`
	BatchNo     string          `json:"batch_no"`
	Quantity    decimal.Decimal `json:"quantity"`
	SerialCount int             `json:"serial_count"`
	// Approval holds the regulator approval details declared for the batch
	// line: product_code, permit_id, partial_approval, approval_status,
	// declared_total and declared_sent.
	Approval map[string]any `json:"approval,omitempty"`
}

type Consignment struct {
	ID                 uint64             `json:"id"`
	EventID            string             `json:"event_id,omitempty"`
	EventType          string             `json:"event_type"`
	EventTimestamp     *time.Time         `json:"event_timestamp,omitempty"`
	SourceSystem       string             `json:"source_system"`
	DestinationSystem  string             `json:"destination_system"`
	ConsignmentID      string             `json:"consignment_id"`
	RefNumber          string             `json:"ref_number"`
	ShipmentDate       *time.Time         `json:"shipment_date,omitempty"`
	CountryOfOrigin    string             `json:"country_of_origin"`
	DestinationCountry string             `json:"destination_country"`
	RegistrationNo     string             `json:"registration_no"`
	TotalQuantity      decimal.Decimal    `json:"total_quantity"`
	ManufacturerName   string             `json:"manufacturer_name"`
	ManufacturerPPBID  string             `json:"manufacturer_ppb_id"`
	ManufacturerGLN    string             `json:"manufacturer_gln"`
	MAHName            string             `json:"mah_name"`
	MAHPPBID           string             `json:"mah_ppb_id"`
	ImporterName       string             `json:"importer_name"`
	DestinationName    string             `json:"destination_name"`
	OwnerID            uint64             `json:"owner_id"`
	Parties            map[string]any     `json:"parties,omitempty"`
	Logistics          map[string]any     `json:"logistics,omitempty"`
	CreatedAt          time.Time          `json:"created_at"`
	Batches            []ConsignmentBatch `json:"batches,omitempty"`
}

type ConsignmentRepository interface {
	ConsignmentEventExists(ctx context.Context, eventID string) (bool, error)
	CreateConsignment(ctx context.Context, c Consignment) (Consignment, error)
	LinkConsignmentBatch(ctx context.Context, consignmentRowID uint64, batch ConsignmentBatch) error
	GetConsignment(ctx context.Context, consignmentID string) (Consignment, error)
}
