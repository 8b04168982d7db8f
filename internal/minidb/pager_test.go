package minidb

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPager_Empty(t *testing.T) {
	t.Parallel()

	aPager, tempFile := newTestPager(t)

	assert.Equal(t, uint32(0), aPager.TotalPages())
	assert.Equal(t, int64(0), aPager.FileSize())

	_, err := aPager.ReadPage(context.Background(), 0)
	assert.ErrorIs(t, err, ErrPageOutOfRange)

	info, err := tempFile.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestPager_AllocateIsLazy(t *testing.T) {
	t.Parallel()

	var (
		ctx           = context.Background()
		aPager, tFile = newTestPager(t)
	)

	assert.Equal(t, PageIndex(0), aPager.AllocatePageID())
	assert.Equal(t, PageIndex(1), aPager.AllocatePageID())
	assert.Equal(t, uint32(2), aPager.TotalPages())

	// Nothing has been written yet
	info, err := tFile.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())

	aPage := NewLeafPage(1)
	aPage.LeafNode.Records = gen.SequentialRecords(1, 2)
	require.NoError(t, aPager.WritePage(ctx, 1, aPage))

	info, err = tFile.Stat()
	require.NoError(t, err)
	assert.Equal(t, int64(2*PageSize), info.Size())
	assert.Equal(t, int64(2*PageSize), aPager.FileSize())

	actual, err := aPager.ReadPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, aPage, actual)
}

func TestPager_ReadReturnsFreshCopy(t *testing.T) {
	t.Parallel()

	var (
		ctx       = context.Background()
		aPager, _ = newTestPager(t)
	)

	aPage := NewLeafPage(aPager.AllocatePageID())
	aPage.LeafNode.Records = gen.SequentialRecords(1, 3)
	require.NoError(t, aPager.WritePage(ctx, aPage.Index, aPage))

	first, err := aPager.ReadPage(ctx, 0)
	require.NoError(t, err)
	first.LeafNode.Records[0].Key = 100

	second, err := aPager.ReadPage(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, int32(1), second.LeafNode.Records[0].Key)
}

func TestPager_Reopen(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	tempFile, err := os.CreateTemp("", "testdb")
	require.NoError(t, err)
	defer os.Remove(tempFile.Name())

	aPager, err := NewPager(tempFile, DefaultSchema)
	require.NoError(t, err)

	pages := make([]*Page, 0, 3)
	for i := 0; i < 3; i++ {
		aPage := NewLeafPage(aPager.AllocatePageID())
		aPage.LeafNode.Records = gen.SequentialRecords(int32(i*10), i+1)
		require.NoError(t, aPager.WritePage(ctx, aPage.Index, aPage))
		pages = append(pages, aPage)
	}
	require.NoError(t, aPager.Close())

	aPager, err = OpenPager(tempFile.Name(), DefaultSchema)
	require.NoError(t, err)
	defer aPager.Close()

	assert.Equal(t, uint32(3), aPager.TotalPages())
	for _, aPage := range pages {
		actual, err := aPager.ReadPage(ctx, aPage.Index)
		require.NoError(t, err)
		assert.Equal(t, aPage, actual)
	}
}

func TestPager_TrailingBytes(t *testing.T) {
	t.Parallel()

	data := make([]byte, 2*PageSize+100)
	(&Header{Type: PageTypeLeaf}).Marshal(data)
	(&Header{Type: PageTypeLeaf}).Marshal(data[PageSize:])

	_, err := NewPager(newMemFile(data), DefaultSchema)
	assert.ErrorIs(t, err, ErrCorruptFile)

	aPager, err := NewPager(newMemFile(data), DefaultSchema, WithPagerLogger(testLogger), WithTolerateTrailingBytes(true))
	require.NoError(t, err)
	assert.Equal(t, uint32(2), aPager.TotalPages())
	assert.Equal(t, int64(2*PageSize+100), aPager.FileSize())

	// The next page overwrites the partial one
	aPage := NewLeafPage(aPager.AllocatePageID())
	require.NoError(t, aPager.WritePage(context.Background(), aPage.Index, aPage))
	assert.Equal(t, int64(3*PageSize), aPager.FileSize())
}

func TestPager_ShortRead(t *testing.T) {
	t.Parallel()

	aFile := newMemFile(make([]byte, PageSize))
	aPager, err := NewPager(aFile, DefaultSchema)
	require.NoError(t, err)

	// File got truncated behind the pager's back
	aFile.data = aFile.data[:PageSize/2]

	_, err = aPager.ReadPage(context.Background(), 0)
	assert.ErrorIs(t, err, ErrShortRead)
}

func TestPager_WriteErrors(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	aFile := newMemFile(nil)
	aPager, err := NewPager(aFile, DefaultSchema)
	require.NoError(t, err)

	aFile.failWrite = true
	err = aPager.WritePage(ctx, aPager.AllocatePageID(), NewLeafPage(0))
	assert.ErrorIs(t, err, errInjected)

	aFile.failWrite = false
	aFile.failSync = true
	err = aPager.WritePage(ctx, 0, NewLeafPage(0))
	assert.ErrorIs(t, err, errInjected)

	aFile.failSync = false
	require.NoError(t, aPager.WritePage(ctx, 0, NewLeafPage(0)))
	assert.Equal(t, 1, aFile.syncs)

	oversized := NewLeafPage(0)
	oversized.LeafNode.Records = gen.SequentialRecords(0, DefaultSchema.MaxLeafRecords()+1)
	err = aPager.WritePage(ctx, 0, oversized)
	assert.ErrorIs(t, err, ErrPageFull)
}

func TestPager_CorruptPage(t *testing.T) {
	t.Parallel()

	// All zero page has page type 0
	aPager, err := NewPager(newMemFile(make([]byte, PageSize)), DefaultSchema)
	require.NoError(t, err)

	_, err = aPager.ReadPage(context.Background(), 0)
	assert.ErrorIs(t, err, ErrCorruptPage)
}
