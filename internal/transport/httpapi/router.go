// Package httpapi exposes the hierarchy, consignment and journey operations
// over HTTP. Callers identify themselves with the X-Actor-ID and
// X-Actor-Type headers.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"pharmatrace/internal/bootstrap/logging"
	domain "pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/consignment"
	"pharmatrace/internal/usecase/hierarchy"
	"pharmatrace/internal/usecase/identifier"
	"pharmatrace/internal/usecase/journey"
)

const (
	HeaderActorID   = "X-Actor-ID"
	HeaderActorType = "X-Actor-Type"

	maxBodyBytes = 8 << 20
)

type HierarchyService interface {
	Pack(ctx context.Context, in hierarchy.PackInput) (hierarchy.PackResult, error)
	Unpack(ctx context.Context, in hierarchy.UnpackInput) ([]ports.Case, error)
	UnpackAll(ctx context.Context, in hierarchy.UnpackAllInput) (hierarchy.UnpackAllResult, error)
	Repack(ctx context.Context, in hierarchy.RepackInput) (hierarchy.PackResult, error)
	History(ctx context.Context, filter ports.HistoryFilter) ([]ports.HierarchyChange, error)
	HistoryBySSCC(ctx context.Context, code string, limit int) ([]ports.HierarchyChange, error)
	CreateShipment(ctx context.Context, in hierarchy.CreateShipmentInput) (ports.Shipment, error)
	CreateCase(ctx context.Context, in hierarchy.CreateCaseInput) (ports.Case, error)
	DispatchShipment(ctx context.Context, actor hierarchy.Actor, shipmentID uint64) (ports.Shipment, error)
	GetPackage(ctx context.Context, id uint64) (hierarchy.PackageView, error)
	GetCase(ctx context.Context, id uint64) (hierarchy.CaseView, error)
}

type ConsignmentService interface {
	Import(ctx context.Context, in consignment.ImportInput) (ports.Consignment, error)
	Get(ctx context.Context, consignmentID string) (ports.Consignment, error)
}

type JourneyService interface {
	Journey(ctx context.Context, input string) (journey.View, error)
	ConsignmentFlow(ctx context.Context, consignmentID string) (trace.FlowGraph, error)
}

type IdentifierService interface {
	Generate(ctx context.Context) (identifier.Generated, error)
	Validate(code string) bool
	EPCURI(code string) (string, error)
}

type Services struct {
	Hierarchy    HierarchyService
	Consignments ConsignmentService
	Journey      JourneyService
	Identifiers  IdentifierService
	// Ping backs /healthz when set.
	Ping func(ctx context.Context) error
}

type handler struct {
	svc    Services
	logger *slog.Logger
}

func (h *handler) healthz(w http.ResponseWriter, r *http.Request) {
	if h.svc.Ping != nil {
		if err := h.svc.Ping(r.Context()); err != nil {
			logging.Warn(r.Context(), "health check failed", slog.String("err", err.Error()))
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// NewRouter mounts every route on a chi mux.
func NewRouter(svc Services, logger *slog.Logger) http.Handler {
	h := &handler{svc: svc, logger: logger}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(h.withRequestLogger)

	r.Get("/healthz", h.healthz)

	r.Route("/hierarchy", func(r chi.Router) {
		r.Post("/pack", h.pack)
		r.Post("/unpack/{packageID}", h.unpack)
		r.Post("/unpack-all", h.unpackAll)
		r.Post("/repack/{packageID}", h.repack)
		r.Get("/history", h.history)
		r.Get("/history/{sscc}", h.historyBySSCC)
	})
	r.Post("/shipments", h.createShipment)
	r.Post("/shipments/{shipmentID}/dispatch", h.dispatchShipment)
	r.Get("/packages/{packageID}", h.getPackage)
	r.Post("/cases", h.createCase)
	r.Get("/cases/{caseID}", h.getCase)

	r.Route("/consignments", func(r chi.Router) {
		r.Post("/import", h.importConsignment)
		r.Get("/{consignmentID}", h.getConsignment)
	})

	r.Route("/journey", func(r chi.Router) {
		r.Get("/{sscc}", h.journey)
		r.Get("/consignments/{consignmentID}/flow", h.consignmentFlow)
	})

	r.Get("/sscc/generate", h.generateSSCC)
	r.Get("/sscc/{code}/validate", h.validateSSCC)
	r.Get("/schema/consignment", h.consignmentSchema)

	return r
}

func (h *handler) withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithLogger(r.Context(), h.logger)
		ctx = logging.WithAttrs(ctx,
			slog.String("component", "transport.http"),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

type packRequest struct {
	CaseIDs    []uint64 `json:"case_ids"`
	ShipmentID uint64   `json:"shipment_id"`
	Label      string   `json:"label"`
	Notes      string   `json:"notes"`
}

func (h *handler) pack(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req packRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Hierarchy.Pack(r.Context(), hierarchy.PackInput{
		Actor:      actor,
		CaseIDs:    req.CaseIDs,
		ShipmentID: req.ShipmentID,
		Label:      req.Label,
		Notes:      req.Notes,
		Size:       r.URL.Query().Get("size"),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

type notesRequest struct {
	Notes string `json:"notes"`
}

func (h *handler) unpack(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	packageID, err := pathID(r, "packageID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req notesRequest
	if err := decodeOptionalBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	cases, err := h.svc.Hierarchy.Unpack(r.Context(), hierarchy.UnpackInput{
		Actor:     actor,
		PackageID: packageID,
		Notes:     req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"package_id": packageID, "released": cases})
}

type unpackAllRequest struct {
	PackageIDs []uint64 `json:"package_ids"`
}

func (h *handler) unpackAll(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req unpackAllRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Hierarchy.UnpackAll(r.Context(), hierarchy.UnpackAllInput{
		Actor:      actor,
		PackageIDs: req.PackageIDs,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type repackRequest struct {
	ShipmentID uint64 `json:"shipment_id"`
	Notes      string `json:"notes"`
}

func (h *handler) repack(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	packageID, err := pathID(r, "packageID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req repackRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	result, err := h.svc.Hierarchy.Repack(r.Context(), hierarchy.RepackInput{
		Actor:      actor,
		PackageID:  packageID,
		ShipmentID: req.ShipmentID,
		Notes:      req.Notes,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *handler) history(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	filter := ports.HistoryFilter{}

	if raw := strings.TrimSpace(query.Get("actor_id")); raw != "" {
		id, err := strconv.ParseUint(raw, 10, 64)
		if err != nil {
			h.writeError(w, r, errs.Kind(errs.ErrValidation, fmt.Errorf("invalid actor_id %q", raw)))
			return
		}
		filter.ActorID = &id
	}
	if raw := strings.TrimSpace(query.Get("operation_type")); raw != "" {
		kind, err := domain.NormalizeOperationKind(raw)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		filter.Kind = kind
	}
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	filter.Limit = limit

	items, err := h.svc.Hierarchy.History(r.Context(), filter)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *handler) historyBySSCC(w http.ResponseWriter, r *http.Request) {
	limit, err := queryLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	items, err := h.svc.Hierarchy.HistoryBySSCC(r.Context(), chi.URLParam(r, "sscc"), limit)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

type shipmentRequest struct {
	Label              string         `json:"label"`
	Customer           string         `json:"customer"`
	Carrier            string         `json:"carrier"`
	PickupLocation     string         `json:"pickup_location"`
	DestinationAddress string         `json:"destination_address"`
	SSCC               string         `json:"sscc"`
	Metadata           map[string]any `json:"metadata"`
}

func (h *handler) createShipment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req shipmentRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	shipment, err := h.svc.Hierarchy.CreateShipment(r.Context(), hierarchy.CreateShipmentInput{
		Actor:              actor,
		Label:              req.Label,
		Customer:           req.Customer,
		Carrier:            req.Carrier,
		PickupLocation:     req.PickupLocation,
		DestinationAddress: req.DestinationAddress,
		SSCC:               req.SSCC,
		Metadata:           req.Metadata,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, shipment)
}

func (h *handler) dispatchShipment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shipmentID, err := pathID(r, "shipmentID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	shipment, err := h.svc.Hierarchy.DispatchShipment(r.Context(), actor, shipmentID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, shipment)
}

func (h *handler) getPackage(w http.ResponseWriter, r *http.Request) {
	packageID, err := pathID(r, "packageID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.svc.Hierarchy.GetPackage(r.Context(), packageID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

type caseRequest struct {
	Label        string `json:"label"`
	SSCC         string `json:"sscc"`
	GenerateSSCC bool   `json:"generate_sscc"`
}

func (h *handler) createCase(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req caseRequest
	if err := decodeBody(r, &req); err != nil {
		h.writeError(w, r, err)
		return
	}
	c, err := h.svc.Hierarchy.CreateCase(r.Context(), hierarchy.CreateCaseInput{
		Actor:        actor,
		Label:        req.Label,
		SSCC:         req.SSCC,
		GenerateSSCC: req.GenerateSSCC,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *handler) getCase(w http.ResponseWriter, r *http.Request) {
	caseID, err := pathID(r, "caseID")
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	view, err := h.svc.Hierarchy.GetCase(r.Context(), caseID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) importConsignment(w http.ResponseWriter, r *http.Request) {
	actor, err := actorFromRequest(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	payload, err := consignment.DecodePayload(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	record, err := h.svc.Consignments.Import(r.Context(), consignment.ImportInput{
		OwnerID: actor.ID,
		Payload: payload,
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, record)
}

func (h *handler) getConsignment(w http.ResponseWriter, r *http.Request) {
	record, err := h.svc.Consignments.Get(r.Context(), chi.URLParam(r, "consignmentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (h *handler) journey(w http.ResponseWriter, r *http.Request) {
	view, err := h.svc.Journey.Journey(r.Context(), chi.URLParam(r, "sscc"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (h *handler) consignmentFlow(w http.ResponseWriter, r *http.Request) {
	graph, err := h.svc.Journey.ConsignmentFlow(r.Context(), chi.URLParam(r, "consignmentID"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, graph)
}

func (h *handler) generateSSCC(w http.ResponseWriter, r *http.Request) {
	generated, err := h.svc.Identifiers.Generate(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, generated)
}

type validateResponse struct {
	SSCC  string `json:"sscc"`
	Valid bool   `json:"valid"`
	EPC   string `json:"epc,omitempty"`
}

func (h *handler) validateSSCC(w http.ResponseWriter, r *http.Request) {
	code := chi.URLParam(r, "code")
	resp := validateResponse{SSCC: code, Valid: h.svc.Identifiers.Validate(code)}
	if resp.Valid {
		if epc, err := h.svc.Identifiers.EPCURI(code); err == nil {
			resp.EPC = epc
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) consignmentSchema(w http.ResponseWriter, r *http.Request) {
	schema, err := consignment.PayloadSchema()
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/schema+json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(schema)
}

type errorResponse struct {
	StatusCode int    `json:"status_code"`
	Message    string `json:"message"`
}

func (h *handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := errs.StatusCode(err)
	if status >= http.StatusInternalServerError {
		logging.Error(r.Context(), "request failed", slog.Any("err", errs.Loggable(err)))
	} else {
		logging.Warn(r.Context(), "request rejected", slog.Int("status", status), slog.String("err", err.Error()))
	}
	writeJSON(w, status, errorResponse{StatusCode: status, Message: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

func actorFromRequest(r *http.Request) (hierarchy.Actor, error) {
	raw := strings.TrimSpace(r.Header.Get(HeaderActorID))
	if raw == "" {
		return hierarchy.Actor{}, errs.Kind(errs.ErrValidation, errors.New("missing "+HeaderActorID+" header"))
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return hierarchy.Actor{}, errs.Kind(errs.ErrValidation, fmt.Errorf("invalid %s header %q", HeaderActorID, raw))
	}
	return hierarchy.Actor{ID: id, Type: strings.TrimSpace(r.Header.Get(HeaderActorType))}, nil
}

func pathID(r *http.Request, name string) (uint64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || id == 0 {
		return 0, errs.Kind(errs.ErrValidation, fmt.Errorf("invalid %s %q", name, raw))
	}
	return id, nil
}

func queryLimit(r *http.Request) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("limit"))
	if raw == "" {
		return 0, nil
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		return 0, errs.Kind(errs.ErrValidation, fmt.Errorf("invalid limit %q", raw))
	}
	return limit, nil
}

func decodeBody(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errs.Kind(errs.ErrValidation, errs.Wrap(err, "decode request body"))
	}
	return nil
}

func decodeOptionalBody(r *http.Request, dst any) error {
	if r.Body == nil || r.ContentLength == 0 {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return errs.Kind(errs.ErrValidation, errs.Wrap(err, "decode request body"))
	}
	return nil
}
