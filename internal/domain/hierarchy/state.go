package hierarchy

import (
	"fmt"
	"strings"
)

// State is the lifecycle position of a container in the containment tree.
type State string

const (
	StateUnassigned State = "unassigned"
	StateAssigned   State = "assigned"
	StateDispatched State = "dispatched"
)

// StateOf derives the state from the persisted parent pointer and dispatch flag.
// Dispatch wins: a dispatched container is frozen whether or not it has a parent.
func StateOf(hasParent bool, dispatched bool) State {
	switch {
	case dispatched:
		return StateDispatched
	case hasParent:
		return StateAssigned
	default:
		return StateUnassigned
	}
}

// CanReceiveParent reports whether a container may be packed into a parent.
func (s State) CanReceiveParent() bool {
	return s == StateUnassigned
}

// CanRelease reports whether a container's children may be unpacked.
func (s State) CanRelease() bool {
	return s == StateUnassigned || s == StateAssigned
}

// OperationKind tags a HierarchyChange audit record.
type OperationKind string

const (
	OpPack      OperationKind = "PACK"
	OpPackLite  OperationKind = "PACK_LITE"
	OpPackLarge OperationKind = "PACK_LARGE"
	OpUnpack    OperationKind = "UNPACK"
	OpUnpackAll OperationKind = "UNPACK_ALL"
)

var allowedOperations = map[OperationKind]struct{}{
	OpPack:      {},
	OpPackLite:  {},
	OpPackLarge: {},
	OpUnpack:    {},
	OpUnpackAll: {},
}

func NormalizeOperationKind(kind string) (OperationKind, error) {
	trimmed := OperationKind(strings.ToUpper(strings.TrimSpace(kind)))
	if trimmed == "" {
		return "", nil
	}
	if _, ok := allowedOperations[trimmed]; !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownOperation, kind)
	}
	return trimmed, nil
}

// PackKindForSize maps a size classification (lite, large) to the audit kind
// written for a pack. Unknown or empty sizes are a plain PACK.
func PackKindForSize(size string) OperationKind {
	switch strings.ToLower(strings.TrimSpace(size)) {
	case "lite", "small":
		return OpPackLite
	case "large":
		return OpPackLarge
	default:
		return OpPack
	}
}

// IsPack reports whether kind is one of the pack variants.
func (k OperationKind) IsPack() bool {
	return k == OpPack || k == OpPackLite || k == OpPackLarge
}

// RepackLabel is the label given to the package created by a repack.
func RepackLabel(previous string) string {
	previous = strings.TrimSpace(previous)
	if previous == "" {
		return "Repacked"
	}
	return previous + " (Repacked)"
}
