package model

// All lists every persisted model in migration order.
func All() []any {
	return []any{
		&Shipment{},
		&Package{},
		&Case{},
		&Batch{},
		&CaseBatchLink{},
		&SerialNumber{},
		&HierarchyChange{},
		&TraceEvent{},
		&TraceEventEPC{},
		&TraceEventQuantity{},
		&TraceEventBizTransaction{},
		&TraceEventParty{},
		&Consignment{},
		&ConsignmentBatch{},
		&Product{},
		&CacheEntry{},
	}
}
