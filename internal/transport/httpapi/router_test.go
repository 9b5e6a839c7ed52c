package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	domain "pharmatrace/internal/domain/hierarchy"
	"pharmatrace/internal/domain/trace"
	"pharmatrace/internal/errs"
	"pharmatrace/internal/ports"
	"pharmatrace/internal/usecase/consignment"
	"pharmatrace/internal/usecase/hierarchy"
	"pharmatrace/internal/usecase/identifier"
	"pharmatrace/internal/usecase/journey"
)

type stubHierarchy struct {
	HierarchyService

	packCalled bool
	packInput  hierarchy.PackInput
	packErr    error

	unpackInput hierarchy.UnpackInput
	filter      ports.HistoryFilter
}

func (s *stubHierarchy) Pack(_ context.Context, in hierarchy.PackInput) (hierarchy.PackResult, error) {
	s.packCalled = true
	s.packInput = in
	if s.packErr != nil {
		return hierarchy.PackResult{}, s.packErr
	}
	shipmentID := in.ShipmentID
	res := hierarchy.PackResult{
		Package:  ports.Package{ID: 11, SSCC: "106141410000000019", ShipmentID: &shipmentID},
		ChangeID: 3,
	}
	for _, id := range in.CaseIDs {
		res.Cases = append(res.Cases, ports.Case{ID: id, PackageID: &res.Package.ID})
	}
	return res, nil
}

func (s *stubHierarchy) Unpack(_ context.Context, in hierarchy.UnpackInput) ([]ports.Case, error) {
	s.unpackInput = in
	return []ports.Case{{ID: 1}, {ID: 2}}, nil
}

func (s *stubHierarchy) History(_ context.Context, filter ports.HistoryFilter) ([]ports.HierarchyChange, error) {
	s.filter = filter
	return []ports.HierarchyChange{{ID: 1, Kind: domain.OpPack}}, nil
}

type stubConsignments struct {
	ConsignmentService

	called bool
	input  consignment.ImportInput
}

func (s *stubConsignments) Import(_ context.Context, in consignment.ImportInput) (ports.Consignment, error) {
	s.called = true
	s.input = in
	return ports.Consignment{ID: 1, ConsignmentID: in.Payload.Consignment.ConsignmentID}, nil
}

type stubJourney struct {
	JourneyService
	input string
}

func (s *stubJourney) Journey(_ context.Context, input string) (journey.View, error) {
	s.input = input
	return journey.View{SSCC: input, Legacy: true}, nil
}

func (s *stubJourney) ConsignmentFlow(_ context.Context, consignmentID string) (trace.FlowGraph, error) {
	return trace.FlowGraph{}, errs.Kind(errs.ErrNotFound, errors.New("no events for "+consignmentID))
}

type stubIdentifiers struct{}

func (stubIdentifiers) Generate(context.Context) (identifier.Generated, error) {
	return identifier.Generated{SSCC: "106141410000000019", Compliant: true}, nil
}

func (stubIdentifiers) Validate(code string) bool { return code == "106141410000000019" }

func (stubIdentifiers) EPCURI(string) (string, error) {
	return "urn:epc:id:sscc:0614141.0000000001", nil
}

func newTestRouter() (http.Handler, *stubHierarchy, *stubConsignments, *stubJourney) {
	h := &stubHierarchy{}
	c := &stubConsignments{}
	j := &stubJourney{}
	return NewRouter(Services{
		Hierarchy:    h,
		Consignments: c,
		Journey:      j,
		Identifiers:  stubIdentifiers{},
	}, nil), h, c, j
}

func serve(router http.Handler, method, target, body string, actorID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if actorID != "" {
		req.Header.Set(HeaderActorID, actorID)
		req.Header.Set(HeaderActorType, "manufacturer")
	}
	resp := httptest.NewRecorder()
	router.ServeHTTP(resp, req)
	return resp
}

func decodeError(t *testing.T, resp *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var out errorResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode error body: %v; body=%s", err, resp.Body.String())
	}
	return out
}

func TestPackPassesActorAndSize(t *testing.T) {
	t.Parallel()

	router, h, _, _ := newTestRouter()
	resp := serve(router, http.MethodPost, "/hierarchy/pack?size=large",
		`{"case_ids":[1,2],"shipment_id":5,"label":"Pallet 1"}`, "7")

	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", resp.Code, http.StatusCreated, resp.Body.String())
	}
	if got := resp.Header().Get("Content-Type"); got != "application/json" {
		t.Fatalf("content-type = %q, want application/json", got)
	}
	in := h.packInput
	if in.Actor.ID != 7 || in.Actor.Type != "manufacturer" {
		t.Fatalf("actor = %+v", in.Actor)
	}
	if len(in.CaseIDs) != 2 || in.ShipmentID != 5 || in.Label != "Pallet 1" || in.Size != "large" {
		t.Fatalf("pack input = %+v", in)
	}

	var flat map[string]any
	if err := json.Unmarshal(resp.Body.Bytes(), &flat); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if flat["id"] != float64(11) || flat["sscc"] != "106141410000000019" || flat["shipment_id"] != float64(5) {
		t.Fatalf("package fields = %v", flat)
	}
	if cases, ok := flat["cases"].([]any); !ok || len(cases) != 2 {
		t.Fatalf("cases = %v", flat["cases"])
	}
	if _, nested := flat["package"]; nested {
		t.Fatalf("package is nested: %v", flat)
	}

	var out hierarchy.PackResult
	if err := json.Unmarshal(resp.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode result: %v", err)
	}
	if out.Package.ID != 11 || out.ChangeID != 3 || len(out.Cases) != 2 {
		t.Fatalf("result = %+v", out)
	}
}

func TestMutationsRequireActorHeader(t *testing.T) {
	t.Parallel()

	router, h, _, _ := newTestRouter()
	resp := serve(router, http.MethodPost, "/hierarchy/pack", `{"case_ids":[1]}`, "")

	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusBadRequest)
	}
	if h.packCalled {
		t.Fatal("service called = true, want false")
	}
	body := decodeError(t, resp)
	if body.StatusCode != http.StatusBadRequest || !strings.Contains(body.Message, HeaderActorID) {
		t.Fatalf("error body = %+v", body)
	}

	resp = serve(router, http.MethodPost, "/hierarchy/pack", `{"case_ids":[1]}`, "abc")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for non-numeric actor", resp.Code, http.StatusBadRequest)
	}
}

func TestErrorKindsMapToStatus(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		err  error
		want int
	}{
		{name: "already packed", err: domain.ErrCaseAlreadyPacked, want: http.StatusConflict},
		{name: "missing shipment", err: domain.ErrShipmentNotFound, want: http.StatusNotFound},
		{name: "bad hierarchy", err: errs.Kind(errs.ErrBadHierarchy, errors.New("shipment has a parent")), want: http.StatusUnprocessableEntity},
		{name: "retries", err: domain.ErrPackRetriesReached, want: http.StatusServiceUnavailable},
		{name: "internal", err: errors.New("disk on fire"), want: http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			router, h, _, _ := newTestRouter()
			h.packErr = tc.err
			resp := serve(router, http.MethodPost, "/hierarchy/pack", `{"case_ids":[1]}`, "7")
			if resp.Code != tc.want {
				t.Fatalf("status = %d, want %d", resp.Code, tc.want)
			}
			if body := decodeError(t, resp); body.StatusCode != tc.want || body.Message != tc.err.Error() {
				t.Fatalf("error body = %+v", body)
			}
		})
	}
}

func TestUnpackAcceptsEmptyBody(t *testing.T) {
	t.Parallel()

	router, h, _, _ := newTestRouter()
	resp := serve(router, http.MethodPost, "/hierarchy/unpack/42", "", "7")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", resp.Code, http.StatusOK, resp.Body.String())
	}
	if h.unpackInput.PackageID != 42 || h.unpackInput.Actor.ID != 7 {
		t.Fatalf("unpack input = %+v", h.unpackInput)
	}

	resp = serve(router, http.MethodPost, "/hierarchy/unpack/zero", "", "7")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for bad package id", resp.Code, http.StatusBadRequest)
	}
}

func TestHistoryParsesFilters(t *testing.T) {
	t.Parallel()

	router, h, _, _ := newTestRouter()
	resp := serve(router, http.MethodGet, "/hierarchy/history?actor_id=7&operation_type=pack_large&limit=5", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body=%s", resp.Code, http.StatusOK, resp.Body.String())
	}
	if h.filter.ActorID == nil || *h.filter.ActorID != 7 {
		t.Fatalf("actor filter = %v", h.filter.ActorID)
	}
	if h.filter.Kind != domain.OpPackLarge || h.filter.Limit != 5 {
		t.Fatalf("filter = %+v", h.filter)
	}

	resp = serve(router, http.MethodGet, "/hierarchy/history?operation_type=shred", "", "")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for unknown operation", resp.Code, http.StatusBadRequest)
	}
}

func TestImportConsignmentUsesActorAsOwner(t *testing.T) {
	t.Parallel()

	router, _, c, _ := newTestRouter()
	payload := `{"header":{"event_id":"EVT-1"},"consignment":{"consignment_id":"CNS-1","items":[]}}`
	resp := serve(router, http.MethodPost, "/consignments/import", payload, "9")
	if resp.Code != http.StatusCreated {
		t.Fatalf("status = %d, want %d; body=%s", resp.Code, http.StatusCreated, resp.Body.String())
	}
	if c.input.OwnerID != 9 || c.input.Payload.Header.EventID != "EVT-1" {
		t.Fatalf("import input = %+v", c.input)
	}

	router, _, c, _ = newTestRouter()
	resp = serve(router, http.MethodPost, "/consignments/import", `{"header":`, "9")
	if resp.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d for malformed payload", resp.Code, http.StatusBadRequest)
	}
	if c.called {
		t.Fatal("service called = true, want false")
	}
}

func TestJourneyRoutes(t *testing.T) {
	t.Parallel()

	router, _, _, j := newTestRouter()
	resp := serve(router, http.MethodGet, "/journey/106141410000000019", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusOK)
	}
	if j.input != "106141410000000019" {
		t.Fatalf("journey input = %q", j.input)
	}

	resp = serve(router, http.MethodGet, "/journey/consignments/CNS-9/flow", "", "")
	if resp.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", resp.Code, http.StatusNotFound)
	}
}

func TestSSCCRoutes(t *testing.T) {
	t.Parallel()

	router, _, _, _ := newTestRouter()

	resp := serve(router, http.MethodGet, "/sscc/106141410000000019/validate", "", "")
	var valid validateResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &valid); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if !valid.Valid || valid.EPC == "" {
		t.Fatalf("validate = %+v", valid)
	}

	resp = serve(router, http.MethodGet, "/sscc/123/validate", "", "")
	var invalid validateResponse
	if err := json.Unmarshal(resp.Body.Bytes(), &invalid); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if invalid.Valid || invalid.EPC != "" {
		t.Fatalf("validate = %+v", invalid)
	}

	resp = serve(router, http.MethodGet, "/sscc/generate", "", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "106141410000000019") {
		t.Fatalf("generate status = %d body=%s", resp.Code, resp.Body.String())
	}
}

func TestSchemaAndHealth(t *testing.T) {
	t.Parallel()

	router, _, _, _ := newTestRouter()

	resp := serve(router, http.MethodGet, "/schema/consignment", "", "")
	if resp.Code != http.StatusOK || !strings.Contains(resp.Body.String(), "Consignment import") {
		t.Fatalf("schema status = %d body=%s", resp.Code, resp.Body.String())
	}

	resp = serve(router, http.MethodGet, "/healthz", "", "")
	if resp.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", resp.Code)
	}
}

func TestHealthzReportsDatabase(t *testing.T) {
	t.Parallel()

	down := NewRouter(Services{Ping: func(context.Context) error { return errors.New("connection refused") }}, nil)
	if resp := serve(down, http.MethodGet, "/healthz", "", ""); resp.Code != http.StatusServiceUnavailable {
		t.Fatalf("healthz status = %d, want 503", resp.Code)
	}

	up := NewRouter(Services{Ping: func(context.Context) error { return nil }}, nil)
	if resp := serve(up, http.MethodGet, "/healthz", "", ""); resp.Code != http.StatusOK {
		t.Fatalf("healthz status = %d, want 200", resp.Code)
	}
}
