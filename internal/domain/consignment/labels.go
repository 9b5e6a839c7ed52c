package consignment

import (
	"context"
	"fmt"
	"strings"
)

// DefaultLabelAttempts bounds suffixing when a derived label already exists
// in the store.
const DefaultLabelAttempts = 10

// LabelTaken reports whether a case label is already used by owner.
type LabelTaken func(ctx context.Context, label string) (bool, error)

// LabelAllocator derives case labels of the form
// <label>-<consignment_id>-<index>. The index is monotonic within one import
// so derived labels never collide with each other; the store is consulted once
// per label for collisions with earlier imports.
type LabelAllocator struct {
	consignmentID string
	attempts      int
	next          int
	used          map[string]struct{}
	taken         LabelTaken
}

func NewLabelAllocator(consignmentID string, attempts int, taken LabelTaken) *LabelAllocator {
	if attempts <= 0 {
		attempts = DefaultLabelAttempts
	}
	return &LabelAllocator{
		consignmentID: consignmentID,
		attempts:      attempts,
		used:          make(map[string]struct{}),
		taken:         taken,
	}
}

// Allocate returns the next free label for a case whose payload label is label.
func (a *LabelAllocator) Allocate(ctx context.Context, label string) (string, error) {
	a.next++
	base := strings.TrimSpace(label)
	if base == "" {
		base = "case"
	}
	base = fmt.Sprintf("%s-%s-%d", base, a.consignmentID, a.next)

	candidate := base
	for attempt := 1; attempt <= a.attempts; attempt++ {
		if _, dup := a.used[candidate]; !dup {
			taken := false
			if a.taken != nil {
				var err error
				if taken, err = a.taken(ctx, candidate); err != nil {
					return "", err
				}
			}
			if !taken {
				a.used[candidate] = struct{}{}
				return candidate, nil
			}
		}
		candidate = fmt.Sprintf("%s-%d", base, attempt)
	}
	return "", fmt.Errorf("%w: %s", ErrLabelsExhausted, base)
}
