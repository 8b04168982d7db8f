package minidb

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RichardKnop/minidb/internal/pkg/logging"
)

var (
	gen = newDataGen(time.Now().Unix())

	testLogger *zap.Logger
)

func init() {
	logConf := logging.DefaultConfig()

	level := os.Getenv("LOG_LEVEL")
	if level == "" {
		level = "debug"
	}

	l, err := logging.ParseLevel(level)
	if err != nil {
		panic(err)
	}
	logConf.Level = zap.NewAtomicLevelAt(l)

	testLogger, err = logConf.Build()
	if err != nil {
		panic(err)
	}
}

type dataGen struct {
	*gofakeit.Faker
}

func newDataGen(seed int64) *dataGen {
	g := dataGen{
		Faker: gofakeit.New(seed),
	}

	return &g
}

func (g *dataGen) Record(key int32) Record {
	return Record{
		Key:      key,
		Username: truncateString(g.Username(), DefaultSchema.UsernameSize),
		Email:    truncateString(g.Email(), DefaultSchema.EmailSize),
	}
}

func (g *dataGen) SequentialRecords(from int32, number int) []Record {
	records := make([]Record, 0, number)
	for i := 0; i < number; i++ {
		records = append(records, g.Record(from+int32(i)))
	}
	return records
}

// UniqueRecords returns records with unique random keys in random order.
func (g *dataGen) UniqueRecords(number int) []Record {
	var (
		records = make([]Record, 0, number)
		keyMap  = map[int32]struct{}{}
	)
	for len(records) < number {
		key := int32(g.IntRange(-100000, 100000))
		if _, ok := keyMap[key]; ok {
			continue
		}
		keyMap[key] = struct{}{}
		records = append(records, g.Record(key))
	}
	return records
}

func truncateString(value string, size int) string {
	if len(value) <= size {
		return value
	}
	return value[:size]
}

// testConfig shrinks node capacities so a handful of records forces splits.
func testConfig(maxLeafRecords, maxInternalKeys int, duplicates DuplicatePolicy) Config {
	config := DefaultConfig()
	config.MaxLeafRecords = maxLeafRecords
	config.MaxInternalKeys = maxInternalKeys
	config.Duplicates = duplicates
	return config
}

func newTestPager(t *testing.T) (*pagerImpl, *os.File) {
	tempFile, err := os.CreateTemp("", "testdb")
	require.NoError(t, err)
	t.Cleanup(func() {
		tempFile.Close()
		os.Remove(tempFile.Name())
	})

	aPager, err := NewPager(tempFile, DefaultSchema, WithPagerLogger(testLogger))
	require.NoError(t, err)

	return aPager, tempFile
}

// newTestTree bootstraps an empty tree with a root leaf at page 0.
func newTestTree(t *testing.T, config Config) (*BTree, *pagerImpl) {
	aPager, _ := newTestPager(t)

	aRootPage := NewLeafPage(aPager.AllocatePageID())
	require.NoError(t, aPager.WritePage(context.Background(), aRootPage.Index, aRootPage))

	return NewBTree(testLogger, aPager, config, aRootPage.Index), aPager
}

func mustInsert(t *testing.T, ctx context.Context, aTree *BTree, records ...Record) {
	for _, aRecord := range records {
		require.NoError(t, aTree.Insert(ctx, aRecord))
	}
}

func mustCollect(t *testing.T, ctx context.Context, aCursor *Cursor) []Record {
	records, err := aCursor.Collect(ctx)
	require.NoError(t, err)
	return records
}

func recordKeys(records []Record) []int32 {
	keys := make([]int32, 0, len(records))
	for _, aRecord := range records {
		keys = append(keys, aRecord.Key)
	}
	return keys
}
