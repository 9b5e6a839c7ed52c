package ports

import (
	"context"

	"pharmatrace/internal/domain/trace"
)

// TraceEventRepository is the append-only event log. AppendEvent rejects a
// reused event id with trace.ErrDuplicateEvent.
type TraceEventRepository interface {
	AppendEvent(ctx context.Context, event trace.Event) error
	EventExists(ctx context.Context, eventID string) (bool, error)
	// FindEventsBySubject returns events whose child EPCs contain one of
	// candidates or whose parent is one of candidates, oldest first.
	FindEventsBySubject(ctx context.Context, candidates []string) ([]trace.Event, error)
	// FindEventsByConsignment returns events sourced from a consignment or
	// tagged with its CONSIGNMENT business transaction, oldest first.
	FindEventsByConsignment(ctx context.Context, consignmentID string) ([]trace.Event, error)
}
