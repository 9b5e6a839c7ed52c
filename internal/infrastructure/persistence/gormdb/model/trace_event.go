package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type TraceEvent struct {
	ID                uint64    `gorm:"column:id;primaryKey;autoIncrement"`
	EventID           string    `gorm:"column:event_id;type:varchar(64);not null;uniqueIndex"`
	EventType         string    `gorm:"column:event_type;type:varchar(32);not null"`
	ParentID          *string   `gorm:"column:parent_id;type:text;index"`
	BizStep           string    `gorm:"column:biz_step;type:text;not null;default:''"`
	Disposition       string    `gorm:"column:disposition;type:text;not null;default:''"`
	Action            string    `gorm:"column:action;type:varchar(8);not null"`
	EventTime         time.Time `gorm:"column:event_time;not null;index"`
	ReadPointID       string    `gorm:"column:read_point_id;type:text;not null;default:''"`
	BizLocationID     string    `gorm:"column:biz_location_id;type:text;not null;default:''"`
	Latitude          *float64  `gorm:"column:latitude"`
	Longitude         *float64  `gorm:"column:longitude"`
	ActorType         string    `gorm:"column:actor_type;type:text;not null;default:''"`
	ActorUserID       *uint64   `gorm:"column:actor_user_id"`
	ActorGLN          string    `gorm:"column:actor_gln;type:text;not null;default:''"`
	ActorOrganization string    `gorm:"column:actor_organization;type:text;not null;default:''"`
	SourceEntityType  string    `gorm:"column:source_entity_type;type:text;not null;default:'';index:idx_trace_events_source,priority:1"`
	SourceEntityID    string    `gorm:"column:source_entity_id;type:text;not null;default:'';index:idx_trace_events_source,priority:2"`
	CreatedAt         time.Time `gorm:"column:created_at;not null;autoCreateTime"`
}

func (TraceEvent) TableName() string {
	return "trace_events"
}

type TraceEventEPC struct {
	ID       uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	EventID  string `gorm:"column:event_id;type:varchar(64);not null;index"`
	EPC      string `gorm:"column:epc;type:text;not null;index"`
	Position int    `gorm:"column:position;not null"`
}

func (TraceEventEPC) TableName() string {
	return "trace_event_epcs"
}

type TraceEventQuantity struct {
	ID       uint64          `gorm:"column:id;primaryKey;autoIncrement"`
	EventID  string          `gorm:"column:event_id;type:varchar(64);not null;index"`
	EPCClass string          `gorm:"column:epc_class;type:text;not null"`
	Quantity decimal.Decimal `gorm:"column:quantity;type:decimal(20,4);not null"`
	UOM      string          `gorm:"column:uom;type:text;not null;default:''"`
	Position int             `gorm:"column:position;not null"`
}

func (TraceEventQuantity) TableName() string {
	return "trace_event_quantities"
}

type TraceEventBizTransaction struct {
	ID              uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	EventID         string `gorm:"column:event_id;type:varchar(64);not null;index"`
	TransactionType string `gorm:"column:transaction_type;type:text;not null;index:idx_trace_event_biz_tx,priority:1"`
	TransactionID   string `gorm:"column:transaction_id;type:text;not null;index:idx_trace_event_biz_tx,priority:2"`
}

func (TraceEventBizTransaction) TableName() string {
	return "trace_event_biz_transactions"
}

type TraceEventParty struct {
	ID        uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	EventID   string `gorm:"column:event_id;type:varchar(64);not null;index"`
	Role      string `gorm:"column:role;type:varchar(16);not null"`
	PartyType string `gorm:"column:party_type;type:text;not null"`
	PartyID   string `gorm:"column:party_id;type:text;not null"`
}

func (TraceEventParty) TableName() string {
	return "trace_event_parties"
}
