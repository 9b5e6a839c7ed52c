package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/infrastructure/persistence/gormdb/model"
	"pharmatrace/internal/ports"
)

const (
	partyRoleSource      = "source"
	partyRoleDestination = "destination"
)

type TraceEventRepository struct {
	db *gorm.DB
}

var _ ports.TraceEventRepository = (*TraceEventRepository)(nil)

func NewTraceEventRepository(db *gorm.DB) *TraceEventRepository {
	return &TraceEventRepository{db: db}
}

// AppendEvent writes an event with its EPC, quantity, transaction and party
// rows. Events are never updated once written.
func (r *TraceEventRepository) AppendEvent(ctx context.Context, event trace.Event) error {
	if err := event.Validate(); err != nil {
		return err
	}

	return inTx(r.db, ctx, func(_ context.Context, db *gorm.DB) error {
		row := model.TraceEvent{
			EventID:           event.EventID,
			EventType:         string(event.Kind),
			ParentID:          nullableString(event.ParentID),
			BizStep:           event.BizStep,
			Disposition:       event.Disposition,
			Action:            string(event.Action),
			EventTime:         event.EventTime.UTC(),
			ReadPointID:       event.ReadPoint,
			BizLocationID:     event.BizLocation,
			ActorType:         event.Actor.Type,
			ActorUserID:       event.Actor.UserID,
			ActorGLN:          event.Actor.GLN,
			ActorOrganization: event.Actor.Organization,
		}
		if event.Geo != nil {
			row.Latitude = &event.Geo.Latitude
			row.Longitude = &event.Geo.Longitude
		}
		if event.SourceEntity != nil {
			row.SourceEntityType = event.SourceEntity.Type
			row.SourceEntityID = event.SourceEntity.ID
		}
		if err := db.Create(&row).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("%w: %s", trace.ErrDuplicateEvent, event.EventID)
			}
			return errs.Wrap(err, "insert trace event")
		}

		if len(event.ChildEPCs) > 0 {
			epcs := make([]model.TraceEventEPC, 0, len(event.ChildEPCs))
			for i, epc := range event.ChildEPCs {
				epcs = append(epcs, model.TraceEventEPC{EventID: event.EventID, EPC: epc, Position: i})
			}
			if err := db.Create(&epcs).Error; err != nil {
				return errs.Wrap(err, "insert trace event epcs")
			}
		}

		if len(event.Quantities) > 0 {
			lines := make([]model.TraceEventQuantity, 0, len(event.Quantities))
			for i, q := range event.Quantities {
				lines = append(lines, model.TraceEventQuantity{
					EventID:  event.EventID,
					EPCClass: q.EPCClass,
					Quantity: q.Quantity,
					UOM:      q.UOM,
					Position: i,
				})
			}
			if err := db.Create(&lines).Error; err != nil {
				return errs.Wrap(err, "insert trace event quantities")
			}
		}

		if len(event.BizTransactions) > 0 {
			txs := make([]model.TraceEventBizTransaction, 0, len(event.BizTransactions))
			for _, bt := range event.BizTransactions {
				txs = append(txs, model.TraceEventBizTransaction{
					EventID:         event.EventID,
					TransactionType: bt.Type,
					TransactionID:   bt.ID,
				})
			}
			if err := db.Create(&txs).Error; err != nil {
				return errs.Wrap(err, "insert trace event business transactions")
			}
		}

		var parties []model.TraceEventParty
		for _, p := range event.Sources {
			parties = append(parties, model.TraceEventParty{EventID: event.EventID, Role: partyRoleSource, PartyType: p.Type, PartyID: p.ID})
		}
		for _, p := range event.Destinations {
			parties = append(parties, model.TraceEventParty{EventID: event.EventID, Role: partyRoleDestination, PartyType: p.Type, PartyID: p.ID})
		}
		if len(parties) > 0 {
			if err := db.Create(&parties).Error; err != nil {
				return errs.Wrap(err, "insert trace event parties")
			}
		}
		return nil
	})
}

func (r *TraceEventRepository) EventExists(ctx context.Context, eventID string) (bool, error) {
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return false, err
	}

	var count int64
	if err := db.Model(&model.TraceEvent{}).Where("event_id = ?", strings.TrimSpace(eventID)).Count(&count).Error; err != nil {
		return false, errs.Wrap(err, "count trace event")
	}
	return count > 0, nil
}

func (r *TraceEventRepository) FindEventsBySubject(ctx context.Context, candidates []string) ([]trace.Event, error) {
	if len(candidates) == 0 {
		return nil, nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	children := db.Model(&model.TraceEventEPC{}).Select("event_id").Where("epc IN ?", candidates)
	query := db.Model(&model.TraceEvent{}).
		Where("parent_id IN ?", candidates).
		Or("event_id IN (?)", children)
	return loadEvents(db, query)
}

func (r *TraceEventRepository) FindEventsByConsignment(ctx context.Context, consignmentID string) ([]trace.Event, error) {
	consignmentID = strings.TrimSpace(consignmentID)
	if consignmentID == "" {
		return nil, nil
	}
	db, err := dbFromContext(r.db, ctx)
	if err != nil {
		return nil, err
	}

	tagged := db.Model(&model.TraceEventBizTransaction{}).
		Select("event_id").
		Where("transaction_type = ? AND transaction_id = ?", trace.BizTransactionConsignment, consignmentID)
	query := db.Model(&model.TraceEvent{}).
		Where("source_entity_type = ? AND source_entity_id = ?", "consignment", consignmentID).
		Or("event_id IN (?)", tagged)
	return loadEvents(db, query)
}

func loadEvents(db *gorm.DB, query *gorm.DB) ([]trace.Event, error) {
	var rows []model.TraceEvent
	if err := query.Order("event_time asc").Order("id asc").Find(&rows).Error; err != nil {
		return nil, errs.Wrap(err, "query trace events")
	}
	if len(rows) == 0 {
		return nil, nil
	}

	ids := make([]string, 0, len(rows))
	events := make([]trace.Event, 0, len(rows))
	index := make(map[string]int, len(rows))
	for _, row := range rows {
		ids = append(ids, row.EventID)
		index[row.EventID] = len(events)
		events = append(events, mapEvent(row))
	}

	var epcs []model.TraceEventEPC
	if err := db.Where("event_id IN ?", ids).Order("event_id asc").Order("position asc").Find(&epcs).Error; err != nil {
		return nil, errs.Wrap(err, "query trace event epcs")
	}
	for _, e := range epcs {
		i := index[e.EventID]
		events[i].ChildEPCs = append(events[i].ChildEPCs, e.EPC)
	}

	var lines []model.TraceEventQuantity
	if err := db.Where("event_id IN ?", ids).Order("event_id asc").Order("position asc").Find(&lines).Error; err != nil {
		return nil, errs.Wrap(err, "query trace event quantities")
	}
	for _, l := range lines {
		i := index[l.EventID]
		events[i].Quantities = append(events[i].Quantities, trace.Quantity{EPCClass: l.EPCClass, Quantity: l.Quantity, UOM: l.UOM})
	}

	var txs []model.TraceEventBizTransaction
	if err := db.Where("event_id IN ?", ids).Order("id asc").Find(&txs).Error; err != nil {
		return nil, errs.Wrap(err, "query trace event business transactions")
	}
	for _, bt := range txs {
		i := index[bt.EventID]
		events[i].BizTransactions = append(events[i].BizTransactions, trace.BizTransaction{Type: bt.TransactionType, ID: bt.TransactionID})
	}

	var parties []model.TraceEventParty
	if err := db.Where("event_id IN ?", ids).Order("id asc").Find(&parties).Error; err != nil {
		return nil, errs.Wrap(err, "query trace event parties")
	}
	for _, p := range parties {
		i := index[p.EventID]
		party := trace.Party{Type: p.PartyType, ID: p.PartyID}
		switch p.Role {
		case partyRoleSource:
			events[i].Sources = append(events[i].Sources, party)
		case partyRoleDestination:
			events[i].Destinations = append(events[i].Destinations, party)
		default:
			return nil, errors.New("unknown trace event party role " + p.Role)
		}
	}
	return events, nil
}

func mapEvent(row model.TraceEvent) trace.Event {
	e := trace.Event{
		EventID:     row.EventID,
		Kind:        trace.EventKind(row.EventType),
		ParentID:    derefString(row.ParentID),
		BizStep:     row.BizStep,
		Disposition: row.Disposition,
		Action:      trace.Action(row.Action),
		EventTime:   row.EventTime.UTC(),
		ReadPoint:   row.ReadPointID,
		BizLocation: row.BizLocationID,
		Actor: trace.Actor{
			Type:         row.ActorType,
			UserID:       row.ActorUserID,
			GLN:          row.ActorGLN,
			Organization: row.ActorOrganization,
		},
	}
	if row.Latitude != nil && row.Longitude != nil {
		e.Geo = &trace.GeoLocation{Latitude: *row.Latitude, Longitude: *row.Longitude}
	}
	if row.SourceEntityType != "" || row.SourceEntityID != "" {
		e.SourceEntity = &trace.EntityRef{Type: row.SourceEntityType, ID: row.SourceEntityID}
	}
	return e
}
