package consignment

import (
	"github.com/shopspring/decimal"
)

// Payload is the wire shape of a consignment import message.
type Payload struct {
	Header      Header          `json:"header"`
	Consignment ConsignmentBody `json:"consignment"`
}

type Header struct {
	EventID           string `json:"event_id" jsonschema:"required"`
	EventType         string `json:"event_type,omitempty"`
	EventTimestamp    string `json:"event_timestamp,omitempty"`
	SourceSystem      string `json:"source_system,omitempty"`
	DestinationSystem string `json:"destination_system,omitempty"`
	Version           string `json:"version,omitempty"`
}

type ConsignmentBody struct {
	ConsignmentID        string           `json:"consignment_id" jsonschema:"required"`
	ConsignmentRefNumber string           `json:"consignment_ref_number,omitempty"`
	ShipmentDate         string           `json:"shipment_date,omitempty"`
	CountryOfOrigin      string           `json:"country_of_origin,omitempty"`
	DestinationCountry   string           `json:"destination_country,omitempty"`
	RegistrationNo       string           `json:"registration_no,omitempty"`
	TotalQuantity        *decimal.Decimal `json:"total_quantity,omitempty"`
	Parties              *Parties         `json:"parties,omitempty"`
	Logistics            *Logistics       `json:"logistics,omitempty"`
	Items                []RawItem        `json:"items" jsonschema:"required"`

	// Older senders put manufacturer and MAH identity at the top level.
	Manufacturer      *LegacyParty `json:"manufacturer,omitempty"`
	MAH               *LegacyParty `json:"mah,omitempty"`
	ManufacturerPPBID string       `json:"manufacturer_ppb_id,omitempty"`
	MAHPPBID          string       `json:"mah_ppb_id,omitempty"`
	ManufacturerGLN   string       `json:"manufacturer_gln,omitempty"`
	MAHGLN            string       `json:"mah_gln,omitempty"`
}

type Party struct {
	Name    string `json:"name,omitempty"`
	PPBID   string `json:"ppb_id,omitempty"`
	GLN     string `json:"gln,omitempty"`
	Country string `json:"country,omitempty"`
}

type LegacyParty struct {
	PPBID string `json:"ppb_id"`
	GLN   string `json:"gln,omitempty"`
}

type Location struct {
	SGLN  string `json:"sgln,omitempty"`
	Label string `json:"label,omitempty"`
}

type Parties struct {
	Manufacturer        *Party    `json:"manufacturer_party,omitempty"`
	MAH                 *Party    `json:"mah_party,omitempty"`
	ManufacturingSite   *Location `json:"manufacturing_site,omitempty"`
	Importer            *Party    `json:"importer_party,omitempty"`
	ImporterLocation    *Location `json:"importer_location,omitempty"`
	Destination         *Party    `json:"destination_party,omitempty"`
	DestinationLocation *Location `json:"destination_location,omitempty"`
}

type Logistics struct {
	Carrier                 string `json:"carrier,omitempty"`
	Origin                  string `json:"origin,omitempty"`
	PortOfEntry             string `json:"port_of_entry,omitempty"`
	FinalDestinationSGLN    string `json:"final_destination_sgln,omitempty"`
	FinalDestinationAddress string `json:"final_destination_address,omitempty"`
}

type SerialRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
	Count *int   `json:"count,omitempty"`
}

type Serialization struct {
	IsPartialApproval bool          `json:"is_partial_approval,omitempty"`
	Ranges            []SerialRange `json:"ranges,omitempty"`
	Explicit          []string      `json:"explicit,omitempty"`
}

type ApprovalQuantities struct {
	DeclaredTotal *decimal.Decimal `json:"declared_total,omitempty"`
	DeclaredSent  *decimal.Decimal `json:"declared_sent,omitempty"`
}

type Approval struct {
	ApprovalStatus    *bool               `json:"approval_status,omitempty"`
	ApprovalDatestamp string              `json:"approval_datestamp,omitempty"`
	Quantities        *ApprovalQuantities `json:"quantities,omitempty"`
}

// RawItem is one entry of the flat item list as received. Parse turns it
// into a typed Item.
type RawItem struct {
	Type             string           `json:"type" jsonschema:"required,enum=shipment,enum=package,enum=case,enum=batch"`
	Label            string           `json:"label"`
	SSCC             string           `json:"sscc,omitempty"`
	ParentSSCC       string           `json:"parent_sscc,omitempty"`
	GTIN             string           `json:"gtin,omitempty"`
	ProductName      string           `json:"product_name,omitempty"`
	BatchNo          string           `json:"batch_no,omitempty"`
	BatchStatus      string           `json:"batch_status,omitempty"`
	ManufactureDate  string           `json:"manufacture_date,omitempty"`
	ExpiryDate       string           `json:"expiry_date,omitempty"`
	QuantityApproved *decimal.Decimal `json:"quantity_approved,omitempty"`
	Quantity         *decimal.Decimal `json:"quantity,omitempty"`
	SerialNumbers    []string         `json:"serial_numbers,omitempty"`
	ProductCode      string           `json:"product_code,omitempty"`
	PermitID         string           `json:"permit_id,omitempty"`
	Serialization    *Serialization   `json:"serialization,omitempty"`
	Approval         *Approval        `json:"approval,omitempty"`
	Metadata         map[string]any   `json:"metadata,omitempty"`
}
