package trace

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"pharmatrace/internal/errs"
)

func qty(class string, n int64) Quantity {
	return Quantity{EPCClass: class, Quantity: decimal.NewFromInt(n)}
}

func TestEventValidate(t *testing.T) {
	now := time.Now().UTC()
	valid := Event{EventID: "e1", Kind: KindAggregation, ParentID: "p", Action: ActionAdd, EventTime: now}
	if err := valid.Validate(); err != nil {
		t.Fatalf("Validate() error = %v", err)
	}

	cases := []Event{
		{Kind: KindObject, Action: ActionObserve, EventTime: now},
		{EventID: "e2", Kind: KindAggregation, Action: ActionAdd, EventTime: now},
		{EventID: "e3", Kind: "Transformation", Action: ActionAdd, EventTime: now},
		{EventID: "e4", Kind: KindObject, Action: "MOVE", EventTime: now},
		{EventID: "e5", Kind: KindObject, Action: ActionObserve},
	}
	for _, e := range cases {
		if err := e.Validate(); !errors.Is(err, errs.ErrValidation) {
			t.Fatalf("Validate(%+v) error = %v", e, err)
		}
	}
}

func TestSumQuantities(t *testing.T) {
	got := SumQuantities([]Quantity{qty("a", 2), qty("b", 5), qty("a", 3)})
	if len(got) != 2 {
		t.Fatalf("SumQuantities() len = %d", len(got))
	}
	if got[0].EPCClass != "a" || !got[0].Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("SumQuantities()[0] = %+v", got[0])
	}
	if got[1].EPCClass != "b" || !got[1].Quantity.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("SumQuantities()[1] = %+v", got[1])
	}
}

func TestTotalQuantityFallbacks(t *testing.T) {
	if got := (Event{Quantities: []Quantity{qty("a", 2), qty("b", 3)}}).TotalQuantity(); !got.Equal(decimal.NewFromInt(5)) {
		t.Fatalf("TotalQuantity(list) = %s", got)
	}
	if got := (Event{ChildEPCs: []string{"x", "y"}}).TotalQuantity(); !got.Equal(decimal.NewFromInt(2)) {
		t.Fatalf("TotalQuantity(epcs) = %s", got)
	}
	if got := (Event{}).TotalQuantity(); !got.Equal(decimal.NewFromInt(1)) {
		t.Fatalf("TotalQuantity(empty) = %s", got)
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		event Event
		want  Status
	}{
		{Event{Disposition: "returned", BizStep: BizStepShipping}, StatusReturns},
		{Event{BizStep: BizStepShipping}, StatusShipping},
		{Event{BizStep: BizStepDispensing}, StatusShipping},
		{Event{BizStep: BizStepPacking, Action: ActionAdd}, StatusShipping},
		{Event{BizStep: BizStepReceiving, Action: ActionObserve}, StatusReceiving},
		{Event{BizStep: BizStepUnpacking, Action: ActionDelete}, StatusReceiving},
	}
	for _, tc := range cases {
		if got := Classify(tc.event); got != tc.want {
			t.Fatalf("Classify(%+v) = %q, want %q", tc.event, got, tc.want)
		}
	}
}

func TestBucketFor(t *testing.T) {
	cases := map[string]Bucket{
		"":              BucketManufacturer,
		"manufacturer":  BucketManufacturer,
		"supplier":      BucketSupplier,
		"cpa":           BucketSupplier,
		"facility":      BucketFacility,
		"user_facility": BucketFacility,
		"regulator":     BucketNone,
	}
	for in, want := range cases {
		if got := BucketFor(in); got != want {
			t.Fatalf("BucketFor(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestBatchClassRoundTrip(t *testing.T) {
	uri := BatchClass("06164004000013", "B-42")
	if uri != "urn:epc:class:lgtin:06164004000013.B-42" {
		t.Fatalf("BatchClass() = %q", uri)
	}
	gtin, batch, ok := SplitBatchClass(uri)
	if !ok || gtin != "06164004000013" || batch != "B-42" {
		t.Fatalf("SplitBatchClass() = %q %q %v", gtin, batch, ok)
	}
	if SGLN("6164001000001") != "urn:epc:id:sgln:6164001000001.0.0" {
		t.Fatalf("SGLN() = %q", SGLN("6164001000001"))
	}
	if SGLN("") != "" {
		t.Fatalf("SGLN(empty) should be empty")
	}
}

func TestBuildFlowPairsByQuantityAndOrganization(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	events := []Event{
		{EventID: "1", BizStep: BizStepShipping, Action: ActionAdd, EventTime: base,
			Actor: Actor{Type: ActorManufacturer, Organization: "Acme Pharma"}, Quantities: []Quantity{qty("g", 500)}},
		{EventID: "2", BizStep: BizStepShipping, Action: ActionAdd, EventTime: base.Add(time.Hour),
			Actor: Actor{Type: ActorSupplier, Organization: "Mombasa Distributors"}, Quantities: []Quantity{qty("g", 200)}},
		{EventID: "3", BizStep: BizStepReceiving, Action: ActionObserve, EventTime: base.Add(2 * time.Hour),
			Actor: Actor{Type: ActorSupplier, Organization: "Mombasa Distributors"}, Quantities: []Quantity{qty("g", 500)}},
		{EventID: "4", BizStep: BizStepReceiving, Action: ActionObserve, EventTime: base.Add(3 * time.Hour),
			Actor: Actor{Type: ActorFacility, Organization: "Kenyatta Hospital"}, Quantities: []Quantity{qty("g", 200)}},
		{EventID: "5", BizStep: BizStepReceiving, Action: ActionObserve, EventTime: base.Add(4 * time.Hour),
			Actor: Actor{Type: ActorFacility, Organization: "Rural Clinic"}, Quantities: []Quantity{qty("g", 7)}},
	}

	graph := BuildFlow("CNS-1", events)

	if len(graph.Nodes) != 4 {
		t.Fatalf("nodes = %+v", graph.Nodes)
	}
	if len(graph.Links) != 2 {
		t.Fatalf("links = %+v", graph.Links)
	}
	first := graph.Links[0]
	if graph.Nodes[first.Source].Name != "Acme Pharma" || graph.Nodes[first.Target].Name != "Mombasa Distributors" {
		t.Fatalf("first link = %+v", first)
	}
	if !first.Value.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("first link value = %s", first.Value)
	}
	second := graph.Links[1]
	if graph.Nodes[second.Source].Name != "Mombasa Distributors" || graph.Nodes[second.Target].Name != "Kenyatta Hospital" {
		t.Fatalf("second link = %+v", second)
	}
	if graph.Summary.PortCount != 1 || graph.Summary.DistributorCount != 1 || graph.Summary.FacilityCount != 2 {
		t.Fatalf("summary = %+v", graph.Summary)
	}
	if graph.Summary.TotalEvents != 5 {
		t.Fatalf("total events = %d", graph.Summary.TotalEvents)
	}
}
