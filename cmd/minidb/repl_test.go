package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/RichardKnop/minidb/internal/minidb"
)

func newTestRepl(t *testing.T) (*repl, *bytes.Buffer) {
	tempFile, err := os.CreateTemp("", "testdb")
	require.NoError(t, err)
	require.NoError(t, tempFile.Close())
	t.Cleanup(func() { os.Remove(tempFile.Name()) })

	aTable, err := minidb.OpenTable(context.Background(), zap.NewNop(), tempFile.Name())
	require.NoError(t, err)
	t.Cleanup(func() { aTable.Close() })

	out := new(bytes.Buffer)
	return &repl{table: aTable, out: out}, out
}

func TestRepl_InsertSelect(t *testing.T) {
	t.Parallel()

	aRepl, out := newTestRepl(t)

	input := strings.Join([]string{
		"insert 2 Bob bob@example.com",
		"INSERT 1 alice Alice@Example.com",
		"select",
		".exit",
		"select",
	}, "\n")
	aRepl.run(context.Background(), strings.NewReader(input))

	output := out.String()
	assert.Equal(t, 2, strings.Count(output, "Executed."))
	assert.Contains(t, output, "| 1           | alice")
	assert.Contains(t, output, "Alice@Example.com")
	assert.Less(t, strings.Index(output, "alice"), strings.Index(output, "Bob"))
	// Nothing runs after .exit
	assert.Equal(t, 1, strings.Count(output, "2 row(s)"))
}

func TestRepl_FindScan(t *testing.T) {
	t.Parallel()

	aRepl, out := newTestRepl(t)

	input := strings.Join([]string{
		"insert 10 a a@example.com",
		"insert 20 b b@example.com",
		"insert 30 c c@example.com",
		"find 20",
		"scan 15 35",
		"scan 40 10",
	}, "\n")
	aRepl.run(context.Background(), strings.NewReader(input))

	output := out.String()
	assert.Equal(t, 1, strings.Count(output, "1 row(s)"))
	assert.Equal(t, 1, strings.Count(output, "2 row(s)"))
	assert.Equal(t, 1, strings.Count(output, "0 row(s)"))
}

func TestRepl_Errors(t *testing.T) {
	t.Parallel()

	aRepl, out := newTestRepl(t)

	input := strings.Join([]string{
		"insert x a a@example.com",
		"insert 1 a",
		"insert 99999999999 a a@example.com",
		"insert 1 " + strings.Repeat("u", 33) + " a@example.com",
		"find abc",
		"delete 1",
		".tables",
	}, "\n")
	aRepl.run(context.Background(), strings.NewReader(input))

	output := out.String()
	assert.Equal(t, 3, strings.Count(output, "Error: syntax error"))
	assert.Contains(t, output, "Error: key out of range")
	assert.Contains(t, output, "Error: field too long")
	assert.Contains(t, output, "Error: unrecognized command: delete")
	assert.Contains(t, output, "Unrecognized meta command: .tables")
	assert.Equal(t, 0, aRepl.table.NumRows())
}

func TestRepl_MetaCommands(t *testing.T) {
	t.Parallel()

	aRepl, out := newTestRepl(t)

	input := strings.Join([]string{
		"insert 1 a a@example.com",
		".help",
		".btree",
		".stats",
		".verify",
	}, "\n")
	aRepl.run(context.Background(), strings.NewReader(input))

	output := out.String()
	assert.Contains(t, output, "insert <id> <username> <email>  - Insert a record")
	assert.Contains(t, output, "[page 0] LEAF records=1 next=0 keys=[1]")
	assert.Contains(t, output, "file size:      4.1 kB")
	assert.Contains(t, output, "rows:           1")
	assert.Contains(t, output, "OK")
}
