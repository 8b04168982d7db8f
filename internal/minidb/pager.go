package minidb

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

type DBFile interface {
	io.ReadSeeker
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
}

type PagerOption func(*pagerImpl)

func WithPagerLogger(logger *zap.Logger) PagerOption {
	return func(p *pagerImpl) {
		p.logger = logger
	}
}

// WithTolerateTrailingBytes makes the pager ignore a partially written page
// at the end of the file instead of refusing to open it.
func WithTolerateTrailingBytes(tolerate bool) PagerOption {
	return func(p *pagerImpl) {
		p.tolerateTrailingBytes = tolerate
	}
}

// pagerImpl does not cache pages, every read decodes a fresh copy from the
// file and every write flushes a full page to stable storage.
type pagerImpl struct {
	schema     Schema
	totalPages uint32 // total number of allocated pages

	file     DBFile
	fileSize int64

	tolerateTrailingBytes bool
	logger                *zap.Logger
}

// OpenPager opens the database file, creating it when it does not exist.
func OpenPager(filePath string, schema Schema, opts ...PagerOption) (*pagerImpl, error) {
	dbFile, err := os.OpenFile(filePath, os.O_RDWR|os.O_CREATE, 0600)
	if err != nil {
		return nil, fmt.Errorf("open database file: %w", err)
	}
	aPager, err := NewPager(dbFile, schema, opts...)
	if err != nil {
		dbFile.Close()
		return nil, err
	}
	return aPager, nil
}

// NewPager computes number of pages from the size of the file
func NewPager(file DBFile, schema Schema, opts ...PagerOption) (*pagerImpl, error) {
	aPager := &pagerImpl{
		schema: schema,
		file:   file,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(aPager)
	}

	fileSize, err := aPager.file.Seek(0, io.SeekEnd)
	if err != nil {
		return nil, fmt.Errorf("seek end of database file: %w", err)
	}
	aPager.fileSize = fileSize

	// Basic check to verify file size is a multiple of page size (4096B)
	if fileSize%PageSize != 0 {
		if !aPager.tolerateTrailingBytes {
			return nil, fmt.Errorf("%w: file size is not divisible by page size: %d", ErrCorruptFile, fileSize)
		}
		aPager.logger.Sugar().With(
			"file_size", fileSize,
			"trailing_bytes", fileSize%PageSize,
		).Warn("ignoring partially written page at the end of database file")
	}

	aPager.totalPages = uint32(fileSize / PageSize)

	return aPager, nil
}

func (p *pagerImpl) Close() error {
	return p.file.Close()
}

func (p *pagerImpl) TotalPages() uint32 {
	return p.totalPages
}

func (p *pagerImpl) FileSize() int64 {
	return p.fileSize
}

// AllocatePageID hands out the next page index. The file only grows once
// the page is written.
func (p *pagerImpl) AllocatePageID() PageIndex {
	pageIdx := PageIndex(p.totalPages)
	p.totalPages += 1

	p.logger.Sugar().With("page_index", int(pageIdx)).Debug("allocated page")

	return pageIdx
}

func (p *pagerImpl) ReadPage(ctx context.Context, pageIdx PageIndex) (*Page, error) {
	if uint32(pageIdx) >= p.totalPages {
		return nil, fmt.Errorf("%w: index: %d, number of pages: %d", ErrPageOutOfRange, pageIdx, p.totalPages)
	}

	buf := make([]byte, PageSize)
	n, err := p.file.ReadAt(buf, int64(pageIdx)*PageSize)
	if n < PageSize {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: page %d, read %d of %d bytes", ErrShortRead, pageIdx, n, PageSize)
		}
		return nil, fmt.Errorf("read page %d: %w", pageIdx, err)
	}

	return UnmarshalPage(pageIdx, p.schema, buf)
}

func (p *pagerImpl) WritePage(ctx context.Context, pageIdx PageIndex, aPage *Page) error {
	buf := make([]byte, PageSize)
	if _, err := aPage.Marshal(p.schema, buf); err != nil {
		return fmt.Errorf("error flushing page %d: %w", pageIdx, err)
	}

	offset := int64(pageIdx) * PageSize
	if _, err := p.file.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("write page %d: %w", pageIdx, err)
	}
	if err := p.file.Sync(); err != nil {
		return fmt.Errorf("sync page %d: %w", pageIdx, err)
	}

	if uint32(pageIdx) >= p.totalPages {
		p.totalPages = uint32(pageIdx) + 1
	}
	if offset+PageSize > p.fileSize {
		p.fileSize = offset + PageSize
	}

	return nil
}
