package consignment

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type ItemType string

const (
	ItemShipment ItemType = "shipment"
	ItemPackage  ItemType = "package"
	ItemCase     ItemType = "case"
	ItemBatch    ItemType = "batch"
)

// Item is one validated entry of the flat list. The concrete type is one of
// ShipmentItem, PackageItem, CaseItem or BatchItem.
type Item interface {
	Type() ItemType
	Ref() ItemRef
}

// ItemRef carries the fields every item variant shares.
type ItemRef struct {
	Index      int
	Label      string
	SSCC       string
	ParentSSCC string
	Metadata   map[string]any
}

func (r ItemRef) Ref() ItemRef { return r }

// IsRoot reports whether the item names no parent.
func (r ItemRef) IsRoot() bool { return r.ParentSSCC == "" }

type ShipmentItem struct{ ItemRef }

func (ShipmentItem) Type() ItemType { return ItemShipment }

type PackageItem struct{ ItemRef }

func (PackageItem) Type() ItemType { return ItemPackage }

type CaseItem struct{ ItemRef }

func (CaseItem) Type() ItemType { return ItemCase }

type BatchItem struct {
	ItemRef
	GTIN            string
	ProductName     string
	ProductCode     string
	BatchNo         string
	BatchStatus     string
	PermitID        string
	ManufactureDate *time.Time
	ExpiryDate      *time.Time
	Quantity        decimal.Decimal
	Serials         []string
	PartialApproval bool
	ApprovalStatus  *bool
	DeclaredTotal   *decimal.Decimal
	DeclaredSent    *decimal.Decimal
}

func (BatchItem) Type() ItemType { return ItemBatch }

// Approval collects the declared approval details of the batch line, leaving
// out fields the payload did not set. Decimals are kept as strings.
func (b BatchItem) Approval() map[string]any {
	out := make(map[string]any)
	if b.ProductCode != "" {
		out["product_code"] = b.ProductCode
	}
	if b.PermitID != "" {
		out["permit_id"] = b.PermitID
	}
	if b.PartialApproval {
		out["partial_approval"] = true
	}
	if b.ApprovalStatus != nil {
		out["approval_status"] = *b.ApprovalStatus
	}
	if b.DeclaredTotal != nil {
		out["declared_total"] = b.DeclaredTotal.String()
	}
	if b.DeclaredSent != nil {
		out["declared_sent"] = b.DeclaredSent.String()
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// Import is a payload validated once at the boundary.
type Import struct {
	EventID           string
	EventType         string
	EventTime         time.Time
	SourceSystem      string
	DestinationSystem string

	ConsignmentID      string
	RefNumber          string
	RegistrationNo     string
	CountryOfOrigin    string
	DestinationCountry string
	ShipmentDate       *time.Time
	TotalQuantity      decimal.Decimal

	Manufacturer        Party
	MAH                 Party
	Importer            Party
	Destination         Party
	ManufacturingSite   Location
	ImporterLocation    Location
	DestinationLocation Location
	Logistics           Logistics

	Items []Item
}

// Parse validates a payload and converts every raw item into its variant.
func Parse(p Payload) (Import, error) {
	out := Import{
		EventID:            strings.TrimSpace(p.Header.EventID),
		EventType:          strings.TrimSpace(p.Header.EventType),
		SourceSystem:       strings.TrimSpace(p.Header.SourceSystem),
		DestinationSystem:  strings.TrimSpace(p.Header.DestinationSystem),
		ConsignmentID:      strings.TrimSpace(p.Consignment.ConsignmentID),
		RefNumber:          strings.TrimSpace(p.Consignment.ConsignmentRefNumber),
		RegistrationNo:     strings.TrimSpace(p.Consignment.RegistrationNo),
		CountryOfOrigin:    strings.TrimSpace(p.Consignment.CountryOfOrigin),
		DestinationCountry: strings.TrimSpace(p.Consignment.DestinationCountry),
	}
	if out.EventID == "" {
		return Import{}, ErrEventIDRequired
	}
	if out.ConsignmentID == "" {
		return Import{}, ErrConsignmentIDRequired
	}
	if len(p.Consignment.Items) == 0 {
		return Import{}, ErrNoItems
	}

	ts, err := parseTime("header.event_timestamp", p.Header.EventTimestamp)
	if err != nil {
		return Import{}, err
	}
	if ts != nil {
		out.EventTime = *ts
	}
	if out.ShipmentDate, err = parseTime("consignment.shipment_date", p.Consignment.ShipmentDate); err != nil {
		return Import{}, err
	}

	out.resolveParties(p.Consignment)
	if p.Consignment.Logistics != nil {
		out.Logistics = *p.Consignment.Logistics
	}

	seenSSCC := make(map[string]int, len(p.Consignment.Items))
	declared := decimal.Zero
	for i, raw := range p.Consignment.Items {
		item, err := parseItem(i, raw)
		if err != nil {
			return Import{}, err
		}
		if code := item.Ref().SSCC; code != "" {
			if prev, ok := seenSSCC[code]; ok {
				return Import{}, fmt.Errorf("%w: %s on items %d and %d", ErrDuplicateSSCC, code, prev, i)
			}
			seenSSCC[code] = i
		}
		if b, ok := item.(BatchItem); ok {
			declared = declared.Add(b.Quantity)
		}
		out.Items = append(out.Items, item)
	}

	out.TotalQuantity = declared
	if p.Consignment.TotalQuantity != nil {
		out.TotalQuantity = *p.Consignment.TotalQuantity
	}
	return out, nil
}

func parseItem(index int, raw RawItem) (Item, error) {
	ref := ItemRef{
		Index:      index,
		Label:      strings.TrimSpace(raw.Label),
		SSCC:       strings.TrimSpace(raw.SSCC),
		ParentSSCC: strings.TrimSpace(raw.ParentSSCC),
		Metadata:   raw.Metadata,
	}

	switch ItemType(strings.ToLower(strings.TrimSpace(raw.Type))) {
	case ItemShipment:
		return ShipmentItem{ref}, nil
	case ItemPackage:
		return PackageItem{ref}, nil
	case ItemCase:
		return CaseItem{ref}, nil
	case ItemBatch:
		return parseBatch(ref, raw)
	default:
		return nil, fmt.Errorf("%w: item %d type %q", ErrUnknownItemType, index, raw.Type)
	}
}

func parseBatch(ref ItemRef, raw RawItem) (Item, error) {
	qty := raw.QuantityApproved
	if qty == nil {
		qty = raw.Quantity
	}
	b := BatchItem{
		ItemRef:     ref,
		GTIN:        strings.TrimSpace(raw.GTIN),
		ProductName: strings.TrimSpace(raw.ProductName),
		ProductCode: strings.TrimSpace(raw.ProductCode),
		BatchNo:     strings.TrimSpace(raw.BatchNo),
		BatchStatus: strings.TrimSpace(raw.BatchStatus),
		PermitID:    strings.TrimSpace(raw.PermitID),
	}
	if b.GTIN == "" || b.BatchNo == "" || qty == nil {
		return nil, fmt.Errorf("%w: item %d (%s)", ErrBatchFieldMissing, ref.Index, ref.Label)
	}
	if qty.IsNegative() {
		return nil, fmt.Errorf("%w: item %d quantity %s", ErrNegativeQuantity, ref.Index, qty)
	}
	b.Quantity = *qty

	var err error
	if b.ManufactureDate, err = parseTime("manufacture_date", raw.ManufactureDate); err != nil {
		return nil, err
	}
	if b.ExpiryDate, err = parseTime("expiry_date", raw.ExpiryDate); err != nil {
		return nil, err
	}

	var ser Serialization
	if raw.Serialization != nil {
		ser = *raw.Serialization
	}
	explicit := append(append([]string{}, ser.Explicit...), raw.SerialNumbers...)
	if b.Serials, err = ExpandSerials(explicit, ser.Ranges); err != nil {
		return nil, fmt.Errorf("item %d: %w", ref.Index, err)
	}
	b.PartialApproval = ser.IsPartialApproval

	if raw.Approval != nil {
		b.ApprovalStatus = raw.Approval.ApprovalStatus
		if raw.Approval.Quantities != nil {
			b.DeclaredTotal = raw.Approval.Quantities.DeclaredTotal
			b.DeclaredSent = raw.Approval.Quantities.DeclaredSent
		}
	}
	return b, nil
}

func (imp *Import) resolveParties(body ConsignmentBody) {
	if p := body.Parties; p != nil {
		imp.Manufacturer = deref(p.Manufacturer)
		imp.MAH = deref(p.MAH)
		imp.Importer = deref(p.Importer)
		imp.Destination = deref(p.Destination)
		imp.ManufacturingSite = derefLocation(p.ManufacturingSite)
		imp.ImporterLocation = derefLocation(p.ImporterLocation)
		imp.DestinationLocation = derefLocation(p.DestinationLocation)
	}

	if imp.Manufacturer.PPBID == "" {
		imp.Manufacturer.PPBID = firstNonEmpty(legacyPPBID(body.Manufacturer), body.ManufacturerPPBID)
	}
	if imp.Manufacturer.GLN == "" {
		imp.Manufacturer.GLN = firstNonEmpty(legacyGLN(body.Manufacturer), body.ManufacturerGLN)
	}
	if imp.MAH.PPBID == "" {
		imp.MAH.PPBID = firstNonEmpty(legacyPPBID(body.MAH), body.MAHPPBID)
	}
	if imp.MAH.GLN == "" {
		imp.MAH.GLN = firstNonEmpty(legacyGLN(body.MAH), body.MAHGLN)
	}
}

// DestinationSGLN is the location the arrival event is recorded at.
func (imp Import) DestinationSGLN() string {
	return firstNonEmpty(
		imp.Logistics.FinalDestinationSGLN,
		imp.DestinationLocation.SGLN,
		imp.ImporterLocation.SGLN,
		imp.Destination.GLN,
		imp.Importer.GLN,
	)
}

// ManufacturerName identifies the manufacturer in actor context.
func (imp Import) ManufacturerName() string {
	return firstNonEmpty(imp.Manufacturer.Name, imp.Manufacturer.PPBID, imp.MAH.Name, imp.MAH.PPBID)
}

// ReceiverName identifies the receiving party in actor context.
func (imp Import) ReceiverName() string {
	return firstNonEmpty(imp.Importer.Name, imp.Destination.Name, imp.Importer.PPBID, imp.Destination.PPBID, imp.DestinationSystem)
}

var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseTime(field, value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("%w: %s=%q", ErrInvalidDate, field, value)
}

func deref(p *Party) Party {
	if p == nil {
		return Party{}
	}
	return *p
}

func derefLocation(l *Location) Location {
	if l == nil {
		return Location{}
	}
	return *l
}

func legacyPPBID(p *LegacyParty) string {
	if p == nil {
		return ""
	}
	return p.PPBID
}

func legacyGLN(p *LegacyParty) string {
	if p == nil {
		return ""
	}
	return p.GLN
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
