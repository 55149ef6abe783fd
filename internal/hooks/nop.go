// Package hooks provides default movement callbacks.
package hooks

import "github.com/arloliu/leadflow/types"

// NewNop creates movement hooks whose callbacks do nothing.
//
// Returns:
//   - types.MovementHooks: Hooks with no-op implementations
func NewNop() types.MovementHooks {
	return types.MovementHooks{
		OnOptimisticUpdate: func(string, string) {},
		OnRevertUpdate:     func(string, string) {},
	}
}

// WithDefaults returns h with every nil callback replaced by a no-op, so callers
// can invoke callbacks without nil checks.
func WithDefaults(h types.MovementHooks) types.MovementHooks {
	nop := NewNop()
	if h.OnOptimisticUpdate == nil {
		h.OnOptimisticUpdate = nop.OnOptimisticUpdate
	}
	if h.OnRevertUpdate == nil {
		h.OnRevertUpdate = nop.OnRevertUpdate
	}

	return h
}
