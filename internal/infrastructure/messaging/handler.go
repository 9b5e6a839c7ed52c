// Package messaging feeds consignment messages from NATS and AMQP into the
// importer.
package messaging

import (
	"context"
	"errors"
	"log/slog"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/consignment"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/consignment"
)

type Importer interface {
	Import(ctx context.Context, in consignment.ImportInput) (ports.Consignment, error)
}

// Outcome says what a transport should do with a message after import.
type Outcome int

const (
	// OutcomeAck removes the message: imported, or a replay of an event
	// already imported.
	OutcomeAck Outcome = iota
	// OutcomeReject drops the message without redelivery. The payload can
	// never import as sent.
	OutcomeReject
	// OutcomeRetry asks for redelivery.
	OutcomeRetry
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAck:
		return "ack"
	case OutcomeReject:
		return "reject"
	default:
		return "retry"
	}
}

// Classify maps an import error to a delivery outcome.
func Classify(err error) Outcome {
	switch {
	case err == nil:
		return OutcomeAck
	case errors.Is(err, domain.ErrDuplicateEvent):
		return OutcomeAck
	case errors.Is(err, errs.ErrConflict),
		errors.Is(err, errs.ErrValidation),
		errors.Is(err, errs.ErrBadHierarchy),
		errors.Is(err, errs.ErrNotFound):
		return OutcomeReject
	default:
		return OutcomeRetry
	}
}

// ImportHandler decodes one message body and imports it for a fixed owner.
type ImportHandler struct {
	importer Importer
	ownerID  uint64
}

func NewImportHandler(importer Importer, ownerID uint64) *ImportHandler {
	return &ImportHandler{importer: importer, ownerID: ownerID}
}

// Handle imports body and reports the outcome. The returned error is the
// import failure, if any, for logging.
func (h *ImportHandler) Handle(ctx context.Context, source string, body []byte) (Outcome, error) {
	if h == nil || h.importer == nil {
		return OutcomeRetry, errors.New("importer is required")
	}
	ctx = logging.WithAttrs(ctx, slog.String("source", source))

	payload, err := consignment.DecodePayloadBytes(body)
	if err != nil {
		logging.Warn(ctx, "consignment message rejected", slog.String("err", err.Error()))
		return OutcomeReject, err
	}

	record, err := h.importer.Import(ctx, consignment.ImportInput{OwnerID: h.ownerID, Payload: payload})
	outcome := Classify(err)
	switch {
	case err == nil:
		logging.Info(ctx, "consignment imported",
			slog.String("consignment_id", record.ConsignmentID),
			slog.String("event_id", record.EventID),
		)
	case outcome == OutcomeAck:
		logging.Warn(ctx, "consignment already imported",
			slog.String("event_id", payload.Header.EventID),
			slog.String("err", err.Error()),
		)
	case outcome == OutcomeReject:
		logging.Warn(ctx, "consignment import rejected",
			slog.String("event_id", payload.Header.EventID),
			slog.String("err", err.Error()),
		)
	default:
		logging.Error(ctx, "consignment import failed",
			slog.String("event_id", payload.Header.EventID),
			slog.Any("err", errs.Loggable(err)),
		)
	}
	return outcome, err
}
