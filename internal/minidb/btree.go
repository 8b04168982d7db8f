package minidb

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"go.uber.org/zap"
)

// BTree is a B+Tree of pages addressed by page index. Records live in leaf
// pages linked into a sibling chain, internal pages only route keys.
type BTree struct {
	rootPageIdx PageIndex
	pager       Pager
	config      Config
	logger      *zap.Logger
}

func NewBTree(logger *zap.Logger, aPager Pager, config Config, rootPageIdx PageIndex) *BTree {
	return &BTree{
		rootPageIdx: rootPageIdx,
		pager:       aPager,
		config:      config,
		logger:      logger,
	}
}

func (t *BTree) GetRootPageIdx() PageIndex {
	return t.rootPageIdx
}

// FindLeafPath returns indexes of all pages visited from the root down to
// the leaf which should hold the key, both ends included.
func (t *BTree) FindLeafPath(ctx context.Context, key int32) ([]PageIndex, error) {
	path, _, err := t.findLeaf(ctx, key, false)
	return path, err
}

// findLeaf descends from the root. Internal nodes route with bisect right,
// or with bisect left when lowerBound is set which lands on the leftmost
// leaf that can hold keys >= key.
func (t *BTree) findLeaf(ctx context.Context, key int32, lowerBound bool) ([]PageIndex, *Page, error) {
	pageIdx := t.rootPageIdx
	aPage, err := t.pager.ReadPage(ctx, pageIdx)
	if err != nil {
		return nil, nil, fmt.Errorf("find leaf: %w", err)
	}
	path := []PageIndex{pageIdx}

	for !aPage.IsLeaf() {
		var childIdx int
		if lowerBound {
			childIdx = aPage.InternalNode.lowerChildIndex(key)
		} else {
			childIdx = aPage.InternalNode.ChildIndex(key)
		}
		pageIdx = aPage.InternalNode.Children[childIdx]

		if slices.Contains(path, pageIdx) {
			return nil, nil, fmt.Errorf("%w: page %d visited twice on path %v", ErrCorruptTree, pageIdx, path)
		}
		path = append(path, pageIdx)

		aPage, err = t.pager.ReadPage(ctx, pageIdx)
		if err != nil {
			return nil, nil, fmt.Errorf("find leaf: %w", err)
		}
	}

	return path, aPage, nil
}

// Find returns the first record stored under the key.
func (t *BTree) Find(ctx context.Context, key int32) (Record, bool, error) {
	aRecord, err := t.Scan(ctx, key, key).Next(ctx)
	if errors.Is(err, ErrNoMoreRows) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}
	return aRecord, true, nil
}

// Insert places the record into its leaf keeping records sorted. A leaf is
// allowed to hold one record over capacity in memory, it is then split and
// the split propagates up the path as far as needed.
func (t *BTree) Insert(ctx context.Context, aRecord Record) error {
	if err := t.config.Schema.Validate(aRecord); err != nil {
		return err
	}

	path, leafPage, err := t.findLeaf(ctx, aRecord.Key, false)
	if err != nil {
		return err
	}
	leaf := leafPage.LeafNode

	// Equal keys are kept in insertion order
	idx := leaf.upperBound(aRecord.Key)
	if t.config.Duplicates == DuplicatesReject && idx > 0 && leaf.Records[idx-1].Key == aRecord.Key {
		return fmt.Errorf("%w %d", ErrDuplicateKey, aRecord.Key)
	}

	t.logger.Sugar().With(
		"page_index", int(leafPage.Index),
		"cell_index", idx,
		"key", int(aRecord.Key),
	).Debug("inserting record")

	leaf.InsertAt(idx, aRecord)

	if len(leaf.Records) <= t.config.MaxLeafRecords {
		return t.pager.WritePage(ctx, leafPage.Index, leafPage)
	}

	rightPageIdx, promoteKey, err := t.splitLeaf(ctx, leafPage)
	if err != nil {
		return err
	}

	return t.insertIntoParent(ctx, leafPage.Index, promoteKey, rightPageIdx, path[:len(path)-1])
}

// splitLeaf moves the upper half of an overflowing leaf into a new leaf
// spliced into the sibling chain right after it. The first key of the new
// leaf is copied up to the parent.
func (t *BTree) splitLeaf(ctx context.Context, aSplitPage *Page) (PageIndex, int32, error) {
	leaf, err := aSplitPage.Leaf()
	if err != nil {
		return 0, 0, fmt.Errorf("split leaf: %w", err)
	}
	if len(leaf.Records) < 2 {
		return 0, 0, fmt.Errorf("split leaf: page %d holds %d records", aSplitPage.Index, len(leaf.Records))
	}

	mid := splitPoint(leaf.Records)

	aNewPage := NewLeafPage(t.pager.AllocatePageID())
	aNewPage.LeafNode.Records = append(aNewPage.LeafNode.Records, leaf.Records[mid:]...)
	aNewPage.LeafNode.NextLeaf = leaf.NextLeaf

	leaf.Records = slices.Clone(leaf.Records[:mid])
	leaf.NextLeaf = aNewPage.Index

	promoteKey := aNewPage.LeafNode.Records[0].Key

	t.logger.Sugar().With(
		"page_index", int(aSplitPage.Index),
		"new_page_index", int(aNewPage.Index),
		"left_records", len(leaf.Records),
		"right_records", len(aNewPage.LeafNode.Records),
		"promote_key", int(promoteKey),
	).Debug("leaf node split")

	// Right page goes first so the old leaf never points to a missing sibling
	if err := t.pager.WritePage(ctx, aNewPage.Index, aNewPage); err != nil {
		return 0, 0, fmt.Errorf("split leaf: %w", err)
	}
	if err := t.pager.WritePage(ctx, aSplitPage.Index, aSplitPage); err != nil {
		return 0, 0, fmt.Errorf("split leaf: %w", err)
	}

	return aNewPage.Index, promoteKey, nil
}

// splitPoint is count / 2 unless equal keys straddle the middle, in which
// case the nearest key boundary is used so the promoted separator is never
// present in the left half. A run of one key filling the whole leaf
// has no boundary and falls back to the middle.
func splitPoint(records []Record) int {
	mid := len(records) / 2
	if records[mid-1].Key != records[mid].Key {
		return mid
	}

	right := -1
	for j := mid + 1; j < len(records); j++ {
		if records[j-1].Key != records[j].Key {
			right = j
			break
		}
	}
	left := -1
	for i := mid - 1; i > 0; i-- {
		if records[i-1].Key != records[i].Key {
			left = i
			break
		}
	}

	switch {
	case left < 0 && right < 0:
		return mid
	case left < 0:
		return right
	case right < 0:
		return left
	case right-mid <= mid-left:
		return right
	default:
		return left
	}
}

// splitInternal moves keys after the middle one into a new internal node.
// Unlike a leaf split, the middle key is removed and promoted.
func (t *BTree) splitInternal(ctx context.Context, aSplitPage *Page) (PageIndex, int32, error) {
	node, err := aSplitPage.Internal()
	if err != nil {
		return 0, 0, fmt.Errorf("split internal: %w", err)
	}
	if len(node.Keys) < 2 {
		return 0, 0, fmt.Errorf("split internal: page %d holds %d keys", aSplitPage.Index, len(node.Keys))
	}

	var (
		mid        = len(node.Keys) / 2
		promoteKey = node.Keys[mid]
	)

	aNewPage := NewInternalPage(
		t.pager.AllocatePageID(),
		slices.Clone(node.Keys[mid+1:]),
		slices.Clone(node.Children[mid+1:]),
	)
	node.Keys = slices.Clone(node.Keys[:mid])
	node.Children = slices.Clone(node.Children[:mid+1])

	t.logger.Sugar().With(
		"page_index", int(aSplitPage.Index),
		"new_page_index", int(aNewPage.Index),
		"promote_key", int(promoteKey),
	).Debug("internal node split")

	if err := t.pager.WritePage(ctx, aNewPage.Index, aNewPage); err != nil {
		return 0, 0, fmt.Errorf("split internal: %w", err)
	}
	if err := t.pager.WritePage(ctx, aSplitPage.Index, aSplitPage); err != nil {
		return 0, 0, fmt.Errorf("split internal: %w", err)
	}

	return aNewPage.Index, promoteKey, nil
}

// insertIntoParent adds a separator and right child next to the left child
// in its parent. The parent is popped from the saved root to leaf path, an
// overflowing parent is split and the loop continues one level up. Running
// out of path means the root itself was split and a new root is created.
func (t *BTree) insertIntoParent(ctx context.Context, leftPageIdx PageIndex, key int32, rightPageIdx PageIndex, path []PageIndex) error {
	for {
		if len(path) == 0 {
			return t.createNewRoot(ctx, leftPageIdx, key, rightPageIdx)
		}

		parentPageIdx := path[len(path)-1]
		path = path[:len(path)-1]

		aParentPage, err := t.pager.ReadPage(ctx, parentPageIdx)
		if err != nil {
			return fmt.Errorf("insert into parent: %w", err)
		}
		parent, err := aParentPage.Internal()
		if err != nil {
			return fmt.Errorf("insert into parent: %w", err)
		}

		// For distinct keys this is the bisect right position of the key
		childIdx, ok := parent.IndexOfChild(leftPageIdx)
		if !ok {
			return fmt.Errorf("%w: page %d is not a child of page %d", ErrCorruptTree, leftPageIdx, parentPageIdx)
		}
		parent.InsertAfterChild(childIdx, key, rightPageIdx)

		if len(parent.Keys) <= t.config.MaxInternalKeys {
			return t.pager.WritePage(ctx, parentPageIdx, aParentPage)
		}

		newPageIdx, promoteKey, err := t.splitInternal(ctx, aParentPage)
		if err != nil {
			return err
		}

		leftPageIdx, key, rightPageIdx = parentPageIdx, promoteKey, newPageIdx
	}
}

func (t *BTree) createNewRoot(ctx context.Context, leftPageIdx PageIndex, key int32, rightPageIdx PageIndex) error {
	aRootPage := NewInternalPage(
		t.pager.AllocatePageID(),
		[]int32{key},
		[]PageIndex{leftPageIdx, rightPageIdx},
	)

	t.logger.Sugar().With(
		"old_root_index", int(t.rootPageIdx),
		"new_root_index", int(aRootPage.Index),
		"left_child_index", int(leftPageIdx),
		"right_child_index", int(rightPageIdx),
		"key", int(key),
	).Debug("create new root")

	if err := t.pager.WritePage(ctx, aRootPage.Index, aRootPage); err != nil {
		return fmt.Errorf("create new root: %w", err)
	}
	t.rootPageIdx = aRootPage.Index

	return nil
}
