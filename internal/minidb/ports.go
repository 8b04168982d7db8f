package minidb

import (
	"context"
)

// Pager is what the b+tree needs from the block store.
type Pager interface {
	ReadPage(context.Context, PageIndex) (*Page, error)
	WritePage(context.Context, PageIndex, *Page) error
	AllocatePageID() PageIndex
	TotalPages() uint32
}
