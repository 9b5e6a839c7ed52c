// Package trace models the append-only supply chain event log: aggregation
// and object events, their EPC subjects and quantity lists.
package trace

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"pharmatrace/internal/errs"
)

type EventKind string

const (
	KindAggregation EventKind = "AggregationEvent"
	KindObject      EventKind = "ObjectEvent"
)

type Action string

const (
	ActionAdd     Action = "ADD"
	ActionDelete  Action = "DELETE"
	ActionObserve Action = "OBSERVE"
)

const (
	BizStepPacking    = "packing"
	BizStepUnpacking  = "unpacking"
	BizStepShipping   = "shipping"
	BizStepReceiving  = "receiving"
	BizStepDispensing = "dispensing"

	DispositionInProgress    = "in_progress"
	DispositionInTransit     = "in_transit"
	DispositionAtDestination = "at_destination"
	DispositionReturned      = "returned"

	BizTransactionConsignment = "CONSIGNMENT"

	ActorManufacturer = "manufacturer"
	ActorSupplier     = "supplier"
	ActorCPA          = "cpa"
	ActorFacility     = "facility"
	ActorUserFacility = "user_facility"
)

var (
	ErrEventIDRequired = errs.Kind(errs.ErrValidation, errors.New("event id is required"))
	ErrInvalidEvent    = errs.Kind(errs.ErrValidation, errors.New("invalid trace event"))
	ErrDuplicateEvent  = errs.Kind(errs.ErrConflict, errors.New("event id already recorded"))
)

type GeoLocation struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type Actor struct {
	Type         string  `json:"type,omitempty"`
	UserID       *uint64 `json:"user_id,omitempty"`
	GLN          string  `json:"gln,omitempty"`
	Organization string  `json:"organization,omitempty"`
}

// OrgKey is the name used to tell trading partners apart.
func (a Actor) OrgKey() string {
	if a.Organization != "" {
		return a.Organization
	}
	if a.GLN != "" {
		return a.GLN
	}
	return "Unknown"
}

type Quantity struct {
	EPCClass string          `json:"epc_class"`
	Quantity decimal.Decimal `json:"quantity"`
	UOM      string          `json:"uom,omitempty"`
}

type BizTransaction struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type Party struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// Event is one immutable trace record.
type Event struct {
	EventID         string           `json:"event_id"`
	Kind            EventKind        `json:"event_type"`
	ParentID        string           `json:"parent_id,omitempty"`
	ChildEPCs       []string         `json:"epcs"`
	BizStep         string           `json:"biz_step"`
	Disposition     string           `json:"disposition"`
	Action          Action           `json:"action"`
	EventTime       time.Time        `json:"event_time"`
	ReadPoint       string           `json:"read_point,omitempty"`
	BizLocation     string           `json:"biz_location,omitempty"`
	Geo             *GeoLocation     `json:"geo,omitempty"`
	Actor           Actor            `json:"actor"`
	Quantities      []Quantity       `json:"quantities,omitempty"`
	BizTransactions []BizTransaction `json:"biz_transactions,omitempty"`
	Sources         []Party          `json:"sources,omitempty"`
	Destinations    []Party          `json:"destinations,omitempty"`
	SourceEntity    *EntityRef       `json:"source_entity,omitempty"`
}

// Validate checks the structural rules the log enforces on append.
func (e Event) Validate() error {
	if strings.TrimSpace(e.EventID) == "" {
		return ErrEventIDRequired
	}
	switch e.Kind {
	case KindAggregation:
		if strings.TrimSpace(e.ParentID) == "" {
			return fmt.Errorf("%w: aggregation event %s has no parent", ErrInvalidEvent, e.EventID)
		}
	case KindObject:
	default:
		return fmt.Errorf("%w: kind %q", ErrInvalidEvent, e.Kind)
	}
	switch e.Action {
	case ActionAdd, ActionDelete, ActionObserve:
	default:
		return fmt.Errorf("%w: action %q", ErrInvalidEvent, e.Action)
	}
	if e.EventTime.IsZero() {
		return fmt.Errorf("%w: event %s has no time", ErrInvalidEvent, e.EventID)
	}
	return nil
}

// TotalQuantity sums the quantity list, falling back to the EPC count and
// finally to one.
func (e Event) TotalQuantity() decimal.Decimal {
	if len(e.Quantities) > 0 {
		total := decimal.Zero
		for _, q := range e.Quantities {
			total = total.Add(q.Quantity)
		}
		return total
	}
	if len(e.ChildEPCs) > 0 {
		return decimal.NewFromInt(int64(len(e.ChildEPCs)))
	}
	return decimal.NewFromInt(1)
}

// HasBizTransaction reports whether the event carries a transaction of kind/id.
func (e Event) HasBizTransaction(kind, id string) bool {
	for _, bt := range e.BizTransactions {
		if bt.Type == kind && bt.ID == id {
			return true
		}
	}
	return false
}

// SumQuantities merges lines per EPC class keeping first-seen order.
func SumQuantities(lines []Quantity) []Quantity {
	if len(lines) == 0 {
		return nil
	}
	index := make(map[string]int, len(lines))
	out := make([]Quantity, 0, len(lines))
	for _, line := range lines {
		if i, ok := index[line.EPCClass]; ok {
			out[i].Quantity = out[i].Quantity.Add(line.Quantity)
			continue
		}
		index[line.EPCClass] = len(out)
		out = append(out, line)
	}
	return out
}
