package ports

import (
	"context"
	"time"

	"pharmatrace/internal/domain/hierarchy"
)

// HierarchyChange is one audit record of a pack or unpack.
type HierarchyChange struct {
	ID          uint64                  `json:"id"`
	Kind        hierarchy.OperationKind `json:"operation_type"`
	ParentSSCC  string                  `json:"parent_sscc,omitempty"`
	NewSSCC     string                  `json:"new_sscc,omitempty"`
	OldSSCC     string                  `json:"old_sscc,omitempty"`
	ActorUserID uint64                  `json:"actor_user_id"`
	ActorType   string                  `json:"actor_type"`
	ChangedAt   time.Time               `json:"change_date"`
	Notes       string                  `json:"notes,omitempty"`
}

type HistoryFilter struct {
	ActorID *uint64
	Kind    hierarchy.OperationKind
	Limit   int
}

type HierarchyChangeRepository interface {
	RecordChange(ctx context.Context, change HierarchyChange) (HierarchyChange, error)
	RetagChange(ctx context.Context, id uint64, kind hierarchy.OperationKind) error
	ListChanges(ctx context.Context, filter HistoryFilter) ([]HierarchyChange, error)
	ListChangesBySSCC(ctx context.Context, code string, limit int) ([]HierarchyChange, error)
}
