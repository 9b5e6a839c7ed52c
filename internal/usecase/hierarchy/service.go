// Package hierarchy runs pack, unpack and repack over the container store,
// writing the audit trail and the aggregation events each transition implies.
package hierarchy

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/identifier"
	"pharmatrace/internal/usecase/tracelog"
)

const DefaultPackRetries = 3

type Config struct {
	// PackRetries bounds how often a pack regenerates its SSCC after the
	// unique index rejects the insert.
	PackRetries int
}

type Service struct {
	containers ports.ContainerRepository
	changes    ports.HierarchyChangeRepository
	uow        ports.UnitOfWork
	ids        *identifier.Service
	emitter    *tracelog.Emitter
	logger     *slog.Logger

	packRetries int
	now         func() time.Time
	newID       func() string
}

// NewService wires the operator with its stores and the event emitter.
func NewService(
	containers ports.ContainerRepository,
	changes ports.HierarchyChangeRepository,
	uow ports.UnitOfWork,
	ids *identifier.Service,
	emitter *tracelog.Emitter,
	cfg Config,
	logger *slog.Logger,
) *Service {
	retries := cfg.PackRetries
	if retries <= 0 {
		retries = DefaultPackRetries
	}
	return &Service{
		containers:  containers,
		changes:     changes,
		uow:         uow,
		ids:         ids,
		emitter:     emitter,
		logger:      logger,
		packRetries: retries,
		now:         func() time.Time { return time.Now().UTC() },
		newID:       func() string { return uuid.NewString() },
	}
}

// Actor is the caller on whose behalf an operation runs.
type Actor struct {
	ID   uint64
	Type string
}

type PackInput struct {
	Actor      Actor
	CaseIDs    []uint64
	ShipmentID uint64
	Label      string
	Notes      string
	// Size picks the audit kind: "lite" or "large", anything else is PACK.
	Size string
}

type UnpackInput struct {
	Actor     Actor
	PackageID uint64
	Notes     string
}

type UnpackAllInput struct {
	Actor      Actor
	PackageIDs []uint64
}

type RepackInput struct {
	Actor      Actor
	PackageID  uint64
	ShipmentID uint64
	Notes      string
}

// PackResult is the package a pack or repack created. It encodes as the
// package record itself with its cases and the audit change id alongside.
type PackResult struct {
	Package  ports.Package
	Cases    []ports.Case
	ChangeID uint64
}

type packResultJSON struct {
	ports.Package
	Cases    []ports.Case `json:"cases"`
	ChangeID uint64       `json:"change_id"`
}

func (r PackResult) MarshalJSON() ([]byte, error) {
	cases := r.Cases
	if cases == nil {
		cases = []ports.Case{}
	}
	return json.Marshal(packResultJSON{Package: r.Package, Cases: cases, ChangeID: r.ChangeID})
}

func (r *PackResult) UnmarshalJSON(data []byte) error {
	var raw packResultJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*r = PackResult{Package: raw.Package, Cases: raw.Cases, ChangeID: raw.ChangeID}
	return nil
}

type UnpackAllResult struct {
	Released []ports.Case `json:"released"`
	Skipped  []uint64     `json:"skipped,omitempty"`
}

func (s *Service) begin(ctx context.Context, op string) (context.Context, error) {
	if ctx == nil {
		return nil, errors.New("context is required")
	}
	if s.containers == nil || s.changes == nil {
		return nil, errors.New("hierarchy repositories are required")
	}
	if s.uow == nil {
		return nil, errors.New("unit of work is required")
	}
	if s.ids == nil {
		return nil, errors.New("identifier service is required")
	}
	ctx = logging.WithLogger(ctx, s.logger)
	return logging.WithAttrs(ctx, slog.String("component", "usecase.hierarchy"), slog.String("op", op)), nil
}

// withActor rejects a missing actor and tags ctx's log lines with it.
func withActor(ctx context.Context, actor Actor) (context.Context, error) {
	if actor.ID == 0 {
		return ctx, domain.ErrActorRequired
	}
	return logging.WithActor(ctx, actor.ID, actor.Type), nil
}

func normalizeNotes(notes string) string {
	return strings.TrimSpace(notes)
}
