package minidb

import (
	"context"
	"fmt"
	"io"

	"go.uber.org/multierr"
	"go.uber.org/zap"
)

type TableOption func(*tableOptions)

type tableOptions struct {
	config    Config
	pagerOpts []PagerOption
}

func WithConfig(config Config) TableOption {
	return func(o *tableOptions) {
		o.config = config
	}
}

func WithPagerOptions(opts ...PagerOption) TableOption {
	return func(o *tableOptions) {
		o.pagerOpts = append(o.pagerOpts, opts...)
	}
}

// Table owns the pager for its whole lifetime and keeps the root page index
// and row count. It is not safe for concurrent use.
type Table struct {
	tree    *BTree
	pager   Pager
	config  Config
	numRows int
	logger  *zap.Logger
}

// OpenTable opens or creates the database file at path. The file is closed
// again when the table cannot be loaded from it.
func OpenTable(ctx context.Context, logger *zap.Logger, path string, opts ...TableOption) (*Table, error) {
	options := tableOptions{config: DefaultConfig()}
	for _, opt := range opts {
		opt(&options)
	}
	if err := options.config.Validate(); err != nil {
		return nil, err
	}

	pagerOpts := append([]PagerOption{WithPagerLogger(logger)}, options.pagerOpts...)
	aPager, err := OpenPager(path, options.config.Schema, pagerOpts...)
	if err != nil {
		return nil, err
	}

	aTable, err := NewTable(ctx, logger, aPager, options.config)
	if err != nil {
		return nil, multierr.Append(err, aPager.Close())
	}

	return aTable, nil
}

// NewTable bootstraps an empty pager with a root leaf at page 0, otherwise
// it recovers the root page and the row count from existing pages.
func NewTable(ctx context.Context, logger *zap.Logger, aPager Pager, config Config) (*Table, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	aTable := &Table{
		pager:  aPager,
		config: config,
		logger: logger,
	}

	if aPager.TotalPages() == 0 {
		aRootPage := NewLeafPage(aPager.AllocatePageID())
		if err := aPager.WritePage(ctx, aRootPage.Index, aRootPage); err != nil {
			return nil, fmt.Errorf("bootstrap root page: %w", err)
		}
		aTable.tree = NewBTree(logger, aPager, config, aRootPage.Index)
		logger.Debug("created empty database")
		return aTable, nil
	}

	rootPageIdx, err := findRootPageIdx(ctx, aPager)
	if err != nil {
		return nil, err
	}
	aTable.tree = NewBTree(logger, aPager, config, rootPageIdx)

	numRows, err := aTable.countRows(ctx)
	if err != nil {
		return nil, err
	}
	aTable.numRows = numRows

	logger.Sugar().With(
		"root_page_index", int(rootPageIdx),
		"total_pages", int(aPager.TotalPages()),
		"num_rows", numRows,
	).Debug("loaded existing database")

	return aTable, nil
}

// findRootPageIdx recovers the root as there is no file header storing it.
// Every new root is allocated after all of its descendants so the root is
// the highest internal page no other internal page points to. Without any
// internal page the tree is just the leaf at page 0.
func findRootPageIdx(ctx context.Context, aPager Pager) (PageIndex, error) {
	var (
		internalPages []PageIndex
		children      = make(map[PageIndex]struct{})
	)
	for pageIdx := PageIndex(0); uint32(pageIdx) < aPager.TotalPages(); pageIdx++ {
		aPage, err := aPager.ReadPage(ctx, pageIdx)
		if err != nil {
			return 0, fmt.Errorf("find root page: %w", err)
		}
		if aPage.IsLeaf() {
			continue
		}
		internalPages = append(internalPages, pageIdx)
		for _, childIdx := range aPage.InternalNode.Children {
			children[childIdx] = struct{}{}
		}
	}

	for i := len(internalPages) - 1; i >= 0; i-- {
		if _, ok := children[internalPages[i]]; !ok {
			return internalPages[i], nil
		}
	}
	if len(internalPages) > 0 {
		return 0, fmt.Errorf("%w: every internal page is referenced by another one", ErrCorruptTree)
	}

	return 0, nil
}

// countRows walks the leaf chain from the leftmost leaf.
func (t *Table) countRows(ctx context.Context) (int, error) {
	aPage, err := t.pager.ReadPage(ctx, t.tree.GetRootPageIdx())
	if err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	for depth := 0; !aPage.IsLeaf(); depth++ {
		if uint32(depth) > t.pager.TotalPages() {
			return 0, fmt.Errorf("%w: leftmost path does not reach a leaf", ErrCorruptTree)
		}
		aPage, err = t.pager.ReadPage(ctx, aPage.InternalNode.Children[0])
		if err != nil {
			return 0, fmt.Errorf("count rows: %w", err)
		}
	}

	numRows := 0
	for visited := uint32(0); ; visited++ {
		if visited > t.pager.TotalPages() {
			return 0, fmt.Errorf("%w: sibling chain does not terminate", ErrCorruptTree)
		}
		numRows += len(aPage.LeafNode.Records)
		if !aPage.LeafNode.HasNextLeaf() {
			return numRows, nil
		}
		aPage, err = t.pager.ReadPage(ctx, aPage.LeafNode.NextLeaf)
		if err != nil {
			return 0, fmt.Errorf("count rows: %w", err)
		}
		if _, err := aPage.Leaf(); err != nil {
			return 0, fmt.Errorf("%w: sibling chain reaches %w", ErrCorruptTree, err)
		}
	}
}

// Insert validates the key width before handing the record to the tree.
func (t *Table) Insert(ctx context.Context, key int64, username, email string) error {
	aRecord, err := NewRecord(key, username, email)
	if err != nil {
		return err
	}
	return t.InsertRecord(ctx, aRecord)
}

func (t *Table) InsertRecord(ctx context.Context, aRecord Record) error {
	if err := t.tree.Insert(ctx, aRecord); err != nil {
		return err
	}
	t.numRows += 1
	return nil
}

func (t *Table) Find(ctx context.Context, key int32) (Record, bool, error) {
	return t.tree.Find(ctx, key)
}

func (t *Table) Scan(ctx context.Context, start, end int32) *Cursor {
	return t.tree.Scan(ctx, start, end)
}

func (t *Table) SelectAll(ctx context.Context) *Cursor {
	return t.tree.SelectAll(ctx)
}

func (t *Table) NumRows() int {
	return t.numRows
}

func (t *Table) RootPageIdx() PageIndex {
	return t.tree.GetRootPageIdx()
}

func (t *Table) Config() Config {
	return t.config
}

func (t *Table) Stats(ctx context.Context) (Stats, error) {
	stats, err := t.tree.Stats(ctx)
	if err != nil {
		return Stats{}, err
	}
	if sized, ok := t.pager.(interface{ FileSize() int64 }); ok {
		stats.FileSize = sized.FileSize()
	}
	return stats, nil
}

func (t *Table) Inspect(ctx context.Context, w io.Writer) error {
	return t.tree.Inspect(ctx, w)
}

func (t *Table) Verify(ctx context.Context) error {
	return t.tree.Verify(ctx)
}

// Close releases the database file when the table owns one.
func (t *Table) Close() error {
	t.logger.Sugar().With("num_rows", t.numRows).Debug("closing database")
	if closer, ok := t.pager.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}
