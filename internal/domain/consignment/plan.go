package consignment

import (
	"fmt"

	"pharmatrace/internal/errs"
)

// PlannedPackage is a package item with its resolved shipment item index.
type PlannedPackage struct {
	PackageItem
	Shipment int
}

// PlannedCase is a case item with its resolved package item index.
type PlannedCase struct {
	CaseItem
	Package int
}

// PlannedBatch is a batch item with its parent case item index.
type PlannedBatch struct {
	BatchItem
	Case int
}

// Plan is the containment tree of an import resolved from parent references.
// Indices refer to ItemRef.Index.
type Plan struct {
	Shipments []ShipmentItem
	Packages  []PlannedPackage
	Cases     []PlannedCase
	Batches   []PlannedBatch
}

// BuildPlan resolves every parent reference of imp. References are looked up
// by SSCC first and by label second. Packages fall back to the only shipment
// of the import; cases resolve through other cases to a package; batches need
// a case parent and never imply missing intermediate levels.
func BuildPlan(imp Import) (Plan, error) {
	r := newResolver(imp)

	var plan Plan
	for _, item := range imp.Items {
		switch v := item.(type) {
		case ShipmentItem:
			if !v.IsRoot() {
				return Plan{}, fmt.Errorf("%w: shipment %q names parent %q", errs.ErrBadHierarchy, v.Label, v.ParentSSCC)
			}
			plan.Shipments = append(plan.Shipments, v)
		case PackageItem, CaseItem, BatchItem:
		default:
			return Plan{}, fmt.Errorf("%w: item %d", ErrUnknownItemType, item.Ref().Index)
		}
	}
	r.shipments = plan.Shipments

	for _, item := range imp.Items {
		switch v := item.(type) {
		case PackageItem:
			idx, err := r.packageShipment(v, 0)
			if err != nil {
				return Plan{}, err
			}
			plan.Packages = append(plan.Packages, PlannedPackage{PackageItem: v, Shipment: idx})
		case CaseItem:
			idx, err := r.casePackage(v, 0)
			if err != nil {
				return Plan{}, err
			}
			plan.Cases = append(plan.Cases, PlannedCase{CaseItem: v, Package: idx})
		case BatchItem:
			idx, err := r.batchCase(v)
			if err != nil {
				return Plan{}, err
			}
			plan.Batches = append(plan.Batches, PlannedBatch{BatchItem: v, Case: idx})
		}
	}
	return plan, nil
}

type resolver struct {
	bySSCC    map[string]Item
	byLabel   map[string]Item
	shipments []ShipmentItem
	limit     int
}

func newResolver(imp Import) *resolver {
	r := &resolver{
		bySSCC:  make(map[string]Item, len(imp.Items)),
		byLabel: make(map[string]Item, len(imp.Items)),
		limit:   len(imp.Items),
	}
	for _, item := range imp.Items {
		ref := item.Ref()
		if ref.SSCC != "" {
			r.bySSCC[ref.SSCC] = item
		}
		if ref.Label != "" {
			if _, ok := r.byLabel[ref.Label]; !ok {
				r.byLabel[ref.Label] = item
			}
		}
	}
	return r
}

func (r *resolver) lookup(ref string) (Item, bool) {
	if ref == "" {
		return nil, false
	}
	if item, ok := r.bySSCC[ref]; ok {
		return item, true
	}
	item, ok := r.byLabel[ref]
	return item, ok
}

func (r *resolver) packageShipment(p PackageItem, depth int) (int, error) {
	if depth > r.limit {
		return 0, fmt.Errorf("%w: package %q has a parent cycle", ErrOrphanPackage, p.Label)
	}
	parent, ok := r.lookup(p.ParentSSCC)
	if !ok {
		if len(r.shipments) == 1 {
			return r.shipments[0].Index, nil
		}
		return 0, fmt.Errorf("%w: package %q parent %q with %d shipments in import", ErrOrphanPackage, p.Label, p.ParentSSCC, len(r.shipments))
	}
	switch v := parent.(type) {
	case ShipmentItem:
		return v.Index, nil
	case PackageItem:
		return r.packageShipment(v, depth+1)
	default:
		return 0, fmt.Errorf("%w: package %q parent %q is a %s", ErrOrphanPackage, p.Label, p.ParentSSCC, parent.Type())
	}
}

func (r *resolver) casePackage(c CaseItem, depth int) (int, error) {
	if depth > r.limit {
		return 0, fmt.Errorf("%w: case %q has a parent cycle", ErrOrphanCase, c.Label)
	}
	parent, ok := r.lookup(c.ParentSSCC)
	if !ok {
		return 0, fmt.Errorf("%w: case %q parent %q not in import", ErrOrphanCase, c.Label, c.ParentSSCC)
	}
	switch v := parent.(type) {
	case PackageItem:
		return v.Index, nil
	case CaseItem:
		return r.casePackage(v, depth+1)
	case ShipmentItem:
		return 0, fmt.Errorf("%w: case %q parent %q is a shipment, package level missing", ErrOrphanCase, c.Label, c.ParentSSCC)
	default:
		return 0, fmt.Errorf("%w: case %q parent %q is a %s", ErrOrphanCase, c.Label, c.ParentSSCC, parent.Type())
	}
}

func (r *resolver) batchCase(b BatchItem) (int, error) {
	parent, ok := r.lookup(b.ParentSSCC)
	if !ok {
		return 0, fmt.Errorf("%w: batch %s parent %q not in import", ErrBatchNeedsCase, b.BatchNo, b.ParentSSCC)
	}
	switch v := parent.(type) {
	case CaseItem:
		return v.Index, nil
	case PackageItem:
		return 0, fmt.Errorf("%w: batch %s parent %q is a package, case level missing", ErrBatchNeedsCase, b.BatchNo, b.ParentSSCC)
	case ShipmentItem:
		return 0, fmt.Errorf("%w: batch %s parent %q is a shipment, package and case levels missing", ErrBatchNeedsCase, b.BatchNo, b.ParentSSCC)
	default:
		return 0, fmt.Errorf("%w: batch %s parent %q is a %s", ErrBatchNeedsCase, b.BatchNo, b.ParentSSCC, parent.Type())
	}
}
