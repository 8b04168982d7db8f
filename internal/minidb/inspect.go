package minidb

import (
	"context"
	"fmt"
	"io"
	"math"
	"slices"
)

// Inspect writes a breadth first dump of the tree to w, one block per level.
func (t *BTree) Inspect(ctx context.Context, w io.Writer) error {
	p := func(format string, args ...any) { fmt.Fprintf(w, format, args...) }

	p("root page: %d\n", t.rootPageIdx)

	queue := []PageIndex{t.rootPageIdx}
	level := 0
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		size := len(queue)
		p("level %d:\n", level)
		for _, pageIdx := range queue[:size] {
			aPage, err := t.pager.ReadPage(ctx, pageIdx)
			if err != nil {
				return fmt.Errorf("inspect: %w", err)
			}

			if aPage.IsLeaf() {
				p("  [page %d] LEAF records=%d next=%d keys=%v\n", pageIdx, len(aPage.LeafNode.Records), aPage.LeafNode.NextLeaf, aPage.LeafNode.Keys())
				continue
			}

			p("  [page %d] INTERNAL keys=%v children=%v\n", pageIdx, aPage.InternalNode.Keys, aPage.InternalNode.Children)
			queue = append(queue, aPage.InternalNode.Children...)
		}
		queue = queue[size:]
		level++
	}

	return nil
}

type Stats struct {
	TotalPages    uint32
	FileSize      int64
	Height        int
	LeafPages     int
	InternalPages int
	Records       int
}

// Stats walks every page reachable from the root.
func (t *BTree) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{TotalPages: t.pager.TotalPages()}

	queue := []PageIndex{t.rootPageIdx}
	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return Stats{}, err
		}

		size := len(queue)
		stats.Height++
		for _, pageIdx := range queue[:size] {
			aPage, err := t.pager.ReadPage(ctx, pageIdx)
			if err != nil {
				return Stats{}, fmt.Errorf("stats: %w", err)
			}
			if aPage.IsLeaf() {
				stats.LeafPages++
				stats.Records += len(aPage.LeafNode.Records)
				continue
			}
			stats.InternalPages++
			queue = append(queue, aPage.InternalNode.Children...)
		}
		queue = queue[size:]
	}

	return stats, nil
}

// keyRange bounds keys of a subtree. Upper bound is exclusive unless
// duplicates are allowed, then a run of equal keys may end in the child left
// of an equal separator.
type keyRange struct {
	min int64
	max int64
}

type verifier struct {
	tree      *BTree
	strict    bool
	visited   map[PageIndex]struct{}
	leaves    []PageIndex
	leafDepth int
}

// Verify checks structural invariants of the whole tree: sorted leaves and
// separators, separator bounds of every subtree, equal depth of all leaves,
// and that the sibling chain visits leaves in the same order as the tree.
func (t *BTree) Verify(ctx context.Context) error {
	v := &verifier{
		tree:      t,
		strict:    t.config.Duplicates == DuplicatesReject,
		visited:   make(map[PageIndex]struct{}),
		leafDepth: -1,
	}

	if err := v.walk(ctx, t.rootPageIdx, 0, keyRange{min: math.MinInt32, max: math.MaxInt32 + 1}); err != nil {
		return err
	}

	return v.checkLeafChain(ctx)
}

func (v *verifier) walk(ctx context.Context, pageIdx PageIndex, depth int, bounds keyRange) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, ok := v.visited[pageIdx]; ok {
		return fmt.Errorf("%w: page %d reachable twice", ErrCorruptTree, pageIdx)
	}
	v.visited[pageIdx] = struct{}{}

	aPage, err := v.tree.pager.ReadPage(ctx, pageIdx)
	if err != nil {
		return fmt.Errorf("verify: %w", err)
	}

	if aPage.IsLeaf() {
		return v.checkLeaf(pageIdx, depth, aPage.LeafNode, bounds)
	}

	node := aPage.InternalNode
	if len(node.Keys) == 0 {
		return fmt.Errorf("%w: internal page %d has no keys", ErrCorruptTree, pageIdx)
	}
	if len(node.Children) != len(node.Keys)+1 {
		return fmt.Errorf("%w: internal page %d has %d keys and %d children", ErrCorruptTree, pageIdx, len(node.Keys), len(node.Children))
	}
	if len(node.Keys) > v.tree.config.MaxInternalKeys {
		return fmt.Errorf("%w: internal page %d holds %d keys, max %d", ErrCorruptTree, pageIdx, len(node.Keys), v.tree.config.MaxInternalKeys)
	}
	if err := v.checkOrder(pageIdx, node.Keys); err != nil {
		return err
	}

	for idx, childIdx := range node.Children {
		childBounds := bounds
		if idx > 0 {
			childBounds.min = int64(node.Keys[idx-1])
		}
		if idx < len(node.Keys) {
			childBounds.max = int64(node.Keys[idx])
			if !v.strict {
				childBounds.max += 1
			}
		}
		if childBounds.min < bounds.min || childBounds.max > bounds.max {
			return fmt.Errorf("%w: separators of page %d escape the range of its parent", ErrCorruptTree, pageIdx)
		}
		if err := v.walk(ctx, childIdx, depth+1, childBounds); err != nil {
			return err
		}
	}

	return nil
}

func (v *verifier) checkLeaf(pageIdx PageIndex, depth int, leaf *LeafNode, bounds keyRange) error {
	if v.leafDepth < 0 {
		v.leafDepth = depth
	} else if v.leafDepth != depth {
		return fmt.Errorf("%w: leaf page %d at depth %d, expected %d", ErrCorruptTree, pageIdx, depth, v.leafDepth)
	}
	if len(leaf.Records) > v.tree.config.MaxLeafRecords {
		return fmt.Errorf("%w: leaf page %d holds %d records, max %d", ErrCorruptTree, pageIdx, len(leaf.Records), v.tree.config.MaxLeafRecords)
	}

	keys := leaf.Keys()
	if err := v.checkOrder(pageIdx, keys); err != nil {
		return err
	}
	for _, key := range keys {
		if int64(key) < bounds.min || int64(key) >= bounds.max {
			return fmt.Errorf("%w: key %d of leaf page %d outside of [%d, %d)", ErrCorruptTree, key, pageIdx, bounds.min, bounds.max)
		}
	}

	v.leaves = append(v.leaves, pageIdx)
	return nil
}

func (v *verifier) checkOrder(pageIdx PageIndex, keys []int32) error {
	for idx := 1; idx < len(keys); idx++ {
		if keys[idx-1] > keys[idx] || (v.strict && keys[idx-1] == keys[idx]) {
			return fmt.Errorf("%w: keys of page %d out of order: %v", ErrCorruptTree, pageIdx, keys)
		}
	}
	return nil
}

func (v *verifier) checkLeafChain(ctx context.Context) error {
	chain := make([]PageIndex, 0, len(v.leaves))
	pageIdx := v.leaves[0]
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if len(chain) > len(v.leaves) {
			return fmt.Errorf("%w: sibling chain is longer than %d leaves", ErrCorruptTree, len(v.leaves))
		}
		chain = append(chain, pageIdx)

		aPage, err := v.tree.pager.ReadPage(ctx, pageIdx)
		if err != nil {
			return fmt.Errorf("verify: %w", err)
		}
		leaf, err := aPage.Leaf()
		if err != nil {
			return fmt.Errorf("%w: sibling chain reaches %w", ErrCorruptTree, err)
		}
		if !leaf.HasNextLeaf() {
			break
		}
		pageIdx = leaf.NextLeaf
	}

	if !slices.Equal(chain, v.leaves) {
		return fmt.Errorf("%w: sibling chain %v does not match tree order %v", ErrCorruptTree, chain, v.leaves)
	}

	return nil
}
