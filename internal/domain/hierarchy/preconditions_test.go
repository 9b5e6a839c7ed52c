package hierarchy

import (
	"errors"
	"testing"

	"pharmatrace/internal/errs"
)

func ptr(v uint64) *uint64 { return &v }

func TestEvaluatePack(t *testing.T) {
	found := []CaseSnapshot{
		{ID: 1, OwnerID: 9},
		{ID: 2, OwnerID: 9},
		{ID: 3, OwnerID: 9, PackageID: ptr(40)},
		{ID: 4, OwnerID: 8},
		{ID: 5, OwnerID: 9, Dispatched: true},
	}

	cases := []struct {
		name      string
		requested []uint64
		want      error
	}{
		{name: "ok", requested: []uint64{1, 2}},
		{name: "empty", requested: nil, want: errs.ErrValidation},
		{name: "missing", requested: []uint64{1, 99}, want: errs.ErrNotFound},
		{name: "foreign owner", requested: []uint64{1, 4}, want: errs.ErrNotFound},
		{name: "already packed", requested: []uint64{1, 3}, want: errs.ErrConflict},
		{name: "dispatched", requested: []uint64{5}, want: errs.ErrConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := EvaluatePack(9, tc.requested, found)
			if tc.want == nil {
				if err != nil {
					t.Fatalf("EvaluatePack() error = %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("EvaluatePack() error = %v, want %v", err, tc.want)
			}
		})
	}
}

func TestEvaluateUnpack(t *testing.T) {
	if err := EvaluateUnpack(9, PackageSnapshot{ID: 1, OwnerID: 9, ShipmentID: ptr(2), CaseCount: 3}); err != nil {
		t.Fatalf("EvaluateUnpack(assigned) error = %v", err)
	}
	if err := EvaluateUnpack(9, PackageSnapshot{ID: 1, OwnerID: 9, CaseCount: 1}); err != nil {
		t.Fatalf("EvaluateUnpack(unassigned) error = %v", err)
	}
	if err := EvaluateUnpack(9, PackageSnapshot{ID: 1, OwnerID: 9, Dispatched: true, CaseCount: 3}); !errors.Is(err, ErrContainerFrozen) {
		t.Fatalf("EvaluateUnpack(dispatched) error = %v", err)
	}
	if err := EvaluateUnpack(9, PackageSnapshot{ID: 1, OwnerID: 9}); !errors.Is(err, errs.ErrConflict) {
		t.Fatalf("EvaluateUnpack(empty) error = %v", err)
	}
	if err := EvaluateUnpack(9, PackageSnapshot{ID: 1, OwnerID: 7, CaseCount: 1}); !errors.Is(err, errs.ErrNotFound) {
		t.Fatalf("EvaluateUnpack(foreign) error = %v", err)
	}
}

func TestPackKindForSize(t *testing.T) {
	if PackKindForSize("lite") != OpPackLite || PackKindForSize("LARGE") != OpPackLarge || PackKindForSize("") != OpPack {
		t.Fatalf("PackKindForSize() mapping mismatch")
	}
	if !OpPackLarge.IsPack() || OpUnpack.IsPack() {
		t.Fatalf("IsPack() mismatch")
	}
}

func TestNormalizeOperationKind(t *testing.T) {
	got, err := NormalizeOperationKind(" unpack_all ")
	if err != nil || got != OpUnpackAll {
		t.Fatalf("NormalizeOperationKind() = %q, %v", got, err)
	}
	if _, err := NormalizeOperationKind("MOVE"); !errors.Is(err, errs.ErrValidation) {
		t.Fatalf("NormalizeOperationKind(MOVE) error = %v", err)
	}
}

func TestDedupeIDs(t *testing.T) {
	got := DedupeIDs([]uint64{3, 1, 3, 2, 1})
	if len(got) != 3 || got[0] != 3 || got[1] != 1 || got[2] != 2 {
		t.Fatalf("DedupeIDs() = %v", got)
	}
}
