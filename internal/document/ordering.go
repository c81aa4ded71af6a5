package document

import (
	"fmt"
	"sort"

	apperrors "github.com/mantavyam/pitch-note-pilot/internal/errors"
)

// sibling is implemented by Node and SubNode so that one set of ordering
// routines serves both levels of the tree.
type sibling[T any] interface {
	siblingID() string
	siblingOrder() int
	withOrder(order int) T
}

func (n Node) siblingID() string        { return n.ID }
func (n Node) siblingOrder() int        { return n.Order }
func (n Node) withOrder(order int) Node { n.Order = order; return n }

func (s SubNode) siblingID() string           { return s.ID }
func (s SubNode) siblingOrder() int           { return s.Order }
func (s SubNode) withOrder(order int) SubNode { s.Order = order; return s }

// sorted returns a copy of items sorted by their current order.
func sorted[T sibling[T]](items []T) []T {
	out := append([]T(nil), items...)
	sort.SliceStable(out, func(i, j int) bool { return out[i].siblingOrder() < out[j].siblingOrder() })
	return out
}

// renumber assigns 0..n-1 following the current relative order.
func renumber[T sibling[T]](items []T) []T {
	out := sorted(items)
	for i := range out {
		out[i] = out[i].withOrder(i)
	}
	if out == nil {
		out = []T{}
	}
	return out
}

func indexOf[T sibling[T]](items []T, id string) int {
	for i, item := range items {
		if item.siblingID() == id {
			return i
		}
	}
	return -1
}

// appendSibling places item last.
func appendSibling[T sibling[T]](items []T, item T) []T {
	out := renumber(items)
	return append(out, item.withOrder(len(out)))
}

// insertAfter places item immediately after anchorID. An empty or unknown
// anchor appends.
func insertAfter[T sibling[T]](items []T, item T, anchorID string) []T {
	out := renumber(items)
	pos := len(out)
	if anchorID != "" {
		if i := indexOf(out, anchorID); i >= 0 {
			pos = i + 1
		}
	}
	out = append(out, item)
	copy(out[pos+1:], out[pos:len(out)-1])
	out[pos] = item
	return withPositions(out)
}

// withPositions stamps each item's slice index as its order.
func withPositions[T sibling[T]](items []T) []T {
	for i := range items {
		items[i] = items[i].withOrder(i)
	}
	return items
}

// removeSibling drops id and closes the gap. The second result is false when
// id is not present.
func removeSibling[T sibling[T]](items []T, id string) ([]T, bool) {
	out := renumber(items)
	i := indexOf(out, id)
	if i < 0 {
		return out, false
	}
	return withPositions(removeAt(out, i)), true
}

// reorderTo rearranges items to follow ids, which must be a permutation of
// the current ids.
func reorderTo[T sibling[T]](items []T, ids []string) ([]T, error) {
	if err := checkPermutation(items, ids); err != nil {
		return nil, err
	}
	byID := make(map[string]T, len(items))
	for _, item := range items {
		byID[item.siblingID()] = item
	}
	out := make([]T, len(ids))
	for i, id := range ids {
		out[i] = byID[id].withOrder(i)
	}
	return out, nil
}

func checkPermutation[T sibling[T]](items []T, ids []string) error {
	if len(ids) != len(items) {
		return apperrors.InvalidArgument(
			fmt.Sprintf("reorder lists %d ids, expected %d", len(ids), len(items)),
			nil,
		)
	}
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if indexOf(items, id) < 0 {
			return apperrors.InvalidArgument(fmt.Sprintf("reorder lists unknown id %q", id), nil)
		}
		if _, dup := seen[id]; dup {
			return apperrors.InvalidArgument(fmt.Sprintf("reorder lists %q twice", id), nil)
		}
		seen[id] = struct{}{}
	}
	return nil
}

// moveSequence returns the id sequence obtained by taking id out and putting
// it back at index to, the way a drag and drop gesture does. An out of range
// target is clamped.
func moveSequence[T sibling[T]](items []T, id string, to int) ([]string, bool) {
	ordered := sorted(items)
	from := indexOf(ordered, id)
	if from < 0 {
		return nil, false
	}
	ids := make([]string, len(ordered))
	for i, item := range ordered {
		ids[i] = item.siblingID()
	}
	if to < 0 {
		to = 0
	}
	if to > len(ids)-1 {
		to = len(ids) - 1
	}
	if from == to {
		return ids, true
	}
	return moveAt(ids, from, to), true
}
