package minidb

import (
	"context"
	"errors"
	"fmt"
	"math"
)

// Cursor walks records with start <= key <= end in key order. It positions
// itself on the first call to Next and reads one leaf page at a time.
type Cursor struct {
	tree       *BTree
	start      int32
	end        int32
	PageIdx    PageIndex
	CellIdx    int
	EndOfTable bool

	positioned bool
	page       *Page
}

// Scan returns a lazy cursor, no page is read until Next is called.
func (t *BTree) Scan(ctx context.Context, start, end int32) *Cursor {
	return &Cursor{
		tree:       t,
		start:      start,
		end:        end,
		EndOfTable: start > end,
	}
}

// SelectAll returns a cursor over every record in the tree.
func (t *BTree) SelectAll(ctx context.Context) *Cursor {
	return t.Scan(ctx, math.MinInt32, math.MaxInt32)
}

func (c *Cursor) Next(ctx context.Context) (Record, error) {
	if c.EndOfTable {
		return Record{}, ErrNoMoreRows
	}

	if !c.positioned {
		if err := c.seek(ctx); err != nil {
			return Record{}, err
		}
	}

	for c.CellIdx >= len(c.page.LeafNode.Records) {
		if !c.page.LeafNode.HasNextLeaf() {
			c.EndOfTable = true
			return Record{}, ErrNoMoreRows
		}
		if err := c.loadPage(ctx, c.page.LeafNode.NextLeaf); err != nil {
			return Record{}, err
		}
		c.CellIdx = 0
	}

	aRecord := c.page.LeafNode.Records[c.CellIdx]
	if aRecord.Key > c.end {
		c.EndOfTable = true
		return Record{}, ErrNoMoreRows
	}
	c.CellIdx += 1

	return aRecord, nil
}

// Collect drains the cursor.
func (c *Cursor) Collect(ctx context.Context) ([]Record, error) {
	records := make([]Record, 0)
	for {
		aRecord, err := c.Next(ctx)
		if errors.Is(err, ErrNoMoreRows) {
			return records, nil
		}
		if err != nil {
			return nil, err
		}
		records = append(records, aRecord)
	}
}

func (c *Cursor) seek(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	// Equal keys may straddle a separator when duplicates are allowed so
	// the descent has to land on the leftmost candidate leaf.
	lowerBound := c.tree.config.Duplicates == DuplicatesAllow
	path, leafPage, err := c.tree.findLeaf(ctx, c.start, lowerBound)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}

	c.PageIdx = path[len(path)-1]
	c.page = leafPage
	c.CellIdx = leafPage.LeafNode.lowerBound(c.start)
	c.positioned = true

	return nil
}

func (c *Cursor) loadPage(ctx context.Context, pageIdx PageIndex) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	aPage, err := c.tree.pager.ReadPage(ctx, pageIdx)
	if err != nil {
		return fmt.Errorf("scan: %w", err)
	}
	if _, err := aPage.Leaf(); err != nil {
		return fmt.Errorf("%w: sibling chain reaches %w", ErrCorruptTree, err)
	}

	c.PageIdx = pageIdx
	c.page = aPage

	return nil
}
