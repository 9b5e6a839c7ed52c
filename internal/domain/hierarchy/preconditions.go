package hierarchy

import (
	"fmt"
	"slices"
)

// CaseSnapshot is what a pack needs to know about one case.
type CaseSnapshot struct {
	ID         uint64
	OwnerID    uint64
	PackageID  *uint64
	Dispatched bool
}

// PackageSnapshot is what an unpack needs to know about one package.
type PackageSnapshot struct {
	ID         uint64
	OwnerID    uint64
	ShipmentID *uint64
	Dispatched bool
	CaseCount  int
}

// EvaluatePack checks every requested case exists, belongs to owner and is
// unassigned. Any failure rejects the whole request.
func EvaluatePack(ownerID uint64, requested []uint64, found []CaseSnapshot) error {
	if len(requested) == 0 {
		return ErrNoCases
	}

	byID := make(map[uint64]CaseSnapshot, len(found))
	for _, c := range found {
		byID[c.ID] = c
	}

	var missing []uint64
	for _, id := range requested {
		c, ok := byID[id]
		if !ok || c.OwnerID != ownerID {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		slices.Sort(missing)
		return fmt.Errorf("%w: %v", ErrCaseNotFound, missing)
	}

	var packed []uint64
	for _, id := range requested {
		c := byID[id]
		if !StateOf(c.PackageID != nil, c.Dispatched).CanReceiveParent() {
			packed = append(packed, id)
		}
	}
	if len(packed) > 0 {
		slices.Sort(packed)
		return fmt.Errorf("%w: %v", ErrCaseAlreadyPacked, packed)
	}
	return nil
}

// EvaluateUnpack checks pkg may release its cases for owner.
func EvaluateUnpack(ownerID uint64, pkg PackageSnapshot) error {
	if pkg.OwnerID != ownerID {
		return fmt.Errorf("%w: %d", ErrPackageNotFound, pkg.ID)
	}
	if !StateOf(pkg.ShipmentID != nil, pkg.Dispatched).CanRelease() {
		return fmt.Errorf("%w: package %d", ErrContainerFrozen, pkg.ID)
	}
	if pkg.CaseCount == 0 {
		return fmt.Errorf("%w: %d", ErrPackageEmpty, pkg.ID)
	}
	return nil
}

// DedupeIDs drops repeats while keeping first-seen order.
func DedupeIDs(ids []uint64) []uint64 {
	seen := make(map[uint64]struct{}, len(ids))
	out := make([]uint64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
