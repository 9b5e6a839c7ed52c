package ports

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// ContainerKind names the persisted container tables.
type ContainerKind string

const (
	ContainerShipment ContainerKind = "shipment"
	ContainerPackage  ContainerKind = "package"
	ContainerCase     ContainerKind = "case"
	ContainerBatch    ContainerKind = "batch"
)

type Shipment struct {
	ID                 uint64         `json:"id"`
	OwnerID            uint64         `json:"owner_id"`
	SSCC               string         `json:"sscc"`
	Label              string         `json:"label"`
	Customer           string         `json:"customer"`
	Carrier            string         `json:"carrier"`
	PickupLocation     string         `json:"pickup_location"`
	DestinationAddress string         `json:"destination_address"`
	IsDispatched       bool           `json:"is_dispatched"`
	EventID            string         `json:"event_id,omitempty"`
	Metadata           map[string]any `json:"metadata,omitempty"`
	CreatedAt          time.Time      `json:"created_at"`
}

type Package struct {
	ID           uint64     `json:"id"`
	OwnerID      uint64     `json:"owner_id"`
	SSCC         string     `json:"sscc"`
	Label        string     `json:"label"`
	ShipmentID   *uint64    `json:"shipment_id"`
	IsDispatched bool       `json:"is_dispatched"`
	PreviousSSCC string     `json:"previous_sscc,omitempty"`
	ReassignedAt *time.Time `json:"reassigned_at,omitempty"`
	Notes        string     `json:"notes,omitempty"`
	EventID      string     `json:"event_id,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type Case struct {
	ID           uint64    `json:"id"`
	OwnerID      uint64    `json:"owner_id"`
	SSCC         string    `json:"sscc"`
	Label        string    `json:"label"`
	PackageID    *uint64   `json:"package_id"`
	IsDispatched bool      `json:"is_dispatched"`
	EventID      string    `json:"event_id,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type Batch struct {
	ID              uint64          `json:"id"`
	OwnerID         uint64          `json:"owner_id"`
	ProductID       uint64          `json:"product_id"`
	GTIN            string          `json:"gtin"`
	ProductName     string          `json:"product_name"`
	BatchNo         string          `json:"batch_no"`
	Status          string          `json:"status"`
	ManufactureDate *time.Time      `json:"manufacture_date,omitempty"`
	ExpiryDate      *time.Time      `json:"expiry_date,omitempty"`
	TotalQty        decimal.Decimal `json:"total_qty"`
	SentQty         decimal.Decimal `json:"sent_qty"`
	Enabled         bool            `json:"enabled"`
	EventID         string          `json:"event_id,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

// CaseBatchLink allocates part of a batch to a case.
type CaseBatchLink struct {
	ID          uint64          `json:"id"`
	CaseID      uint64          `json:"case_id"`
	BatchID     uint64          `json:"batch_id"`
	Qty         decimal.Decimal `json:"quantity"`
	SerialCount int             `json:"serial_count"`
}

// ContainerReader answers lookups over the containment tree.
type ContainerReader interface {
	SSCCExists(ctx context.Context, code string) (bool, error)
	GetShipment(ctx context.Context, id uint64) (Shipment, error)
	FindShipmentBySSCC(ctx context.Context, code string) (Shipment, error)
	GetPackage(ctx context.Context, id uint64) (Package, error)
	CountCasesInPackage(ctx context.Context, packageID uint64) (int, error)
	ListCasesByPackage(ctx context.Context, packageID uint64) ([]Case, error)
	GetCasesByIDs(ctx context.Context, ids []uint64) ([]Case, error)
	CaseLabelExists(ctx context.Context, ownerID uint64, label string) (bool, error)
	GetBatch(ctx context.Context, id uint64) (Batch, error)
	ListCaseBatchLinks(ctx context.Context, caseID uint64) ([]CaseBatchLink, error)
}

// ContainerWriter mutates the containment tree. Parent pointers are only set
// through AssignCasesToPackage and cleared through ReleaseCases.
type ContainerWriter interface {
	CreateShipment(ctx context.Context, s Shipment) (Shipment, error)
	DispatchShipment(ctx context.Context, id uint64) error
	CreatePackage(ctx context.Context, p Package) (Package, error)
	MarkPackageReassigned(ctx context.Context, id uint64, previousSSCC string, at time.Time) error
	CreateCase(ctx context.Context, c Case) (Case, error)
	AssignCasesToPackage(ctx context.Context, caseIDs []uint64, packageID uint64) error
	ReleaseCases(ctx context.Context, packageID uint64) ([]Case, error)
	UpsertBatch(ctx context.Context, b Batch) (Batch, error)
	CreateCaseBatchLink(ctx context.Context, link CaseBatchLink) (CaseBatchLink, error)
	AddSerialNumbers(ctx context.Context, batchID uint64, serials []string) (int, error)
	SetEventID(ctx context.Context, kind ContainerKind, id uint64, eventID string) error
}

type ContainerRepository interface {
	ContainerReader
	ContainerWriter
}
