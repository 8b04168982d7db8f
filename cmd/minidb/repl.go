package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/RichardKnop/minidb/internal/minidb"
	"github.com/RichardKnop/minidb/internal/pkg/util"
)

const (
	cliName string = "minidb"
)

var recordColumns = []util.Column{
	{Name: "id", Width: 11},
	{Name: "username", Width: 32},
	{Name: "email", Width: 40},
}

var helpLines = [][2]string{
	{".help", "Show available commands"},
	{".exit", "Closes program"},
	{".btree", "Print pages of the b+tree level by level"},
	{".stats", "Show page and row counts"},
	{".verify", "Check structural invariants of the b+tree"},
	{"insert <id> <username> <email>", "Insert a record"},
	{"select", "Print all records"},
	{"find <id>", "Print records with the id"},
	{"scan <from> <to>", "Print records with ids in the inclusive range"},
}

type metaCommand int

const (
	Unknown metaCommand = iota + 1
	Help
	Exit
	BTree
	Stats
	Verify
)

func isMetaCommand(inputBuffer string) bool {
	return len(inputBuffer) > 0 && inputBuffer[:1] == "."
}

func doMetaCommand(inputBuffer string) metaCommand {
	switch strings.ToLower(inputBuffer) {
	case "help":
		return Help
	case "exit":
		return Exit
	case "btree":
		return BTree
	case "stats":
		return Stats
	case "verify":
		return Verify
	default:
		return Unknown
	}
}

// repl reads one command per line. Only the command keyword is case
// insensitive, usernames and emails are stored exactly as typed.
type repl struct {
	table *minidb.Table
	out   io.Writer
}

func (r *repl) printPrompt() {
	fmt.Fprint(r.out, cliName, "> ")
}

// run returns when input is exhausted or on .exit.
func (r *repl) run(ctx context.Context, in io.Reader) {
	reader := bufio.NewScanner(in)
	r.printPrompt()

	for reader.Scan() {
		if ctx.Err() != nil {
			break
		}

		inputBuffer := strings.TrimSpace(reader.Text())
		if isMetaCommand(inputBuffer) {
			if doMetaCommand(inputBuffer[1:]) == Exit {
				return
			}
			r.doMeta(ctx, inputBuffer)
		} else if inputBuffer != "" {
			if err := r.execute(ctx, inputBuffer); err != nil {
				fmt.Fprintf(r.out, "Error: %s\n", err)
			}
		}
		r.printPrompt()
	}
	// Print an additional line if we encountered an EOF character
	fmt.Fprintln(r.out)
}

func (r *repl) doMeta(ctx context.Context, inputBuffer string) {
	switch doMetaCommand(inputBuffer[1:]) {
	case Help:
		for _, line := range helpLines {
			fmt.Fprintf(r.out, "%-31s - %s\n", line[0], line[1])
		}
	case BTree:
		if err := r.table.Inspect(ctx, r.out); err != nil {
			fmt.Fprintf(r.out, "Error: %s\n", err)
		}
	case Stats:
		stats, err := r.table.Stats(ctx)
		if err != nil {
			fmt.Fprintf(r.out, "Error: %s\n", err)
			return
		}
		fmt.Fprintf(r.out, "file size:      %s\n", humanize.Bytes(uint64(stats.FileSize)))
		fmt.Fprintf(r.out, "pages:          %s\n", humanize.Comma(int64(stats.TotalPages)))
		fmt.Fprintf(r.out, "internal pages: %s\n", humanize.Comma(int64(stats.InternalPages)))
		fmt.Fprintf(r.out, "leaf pages:     %s\n", humanize.Comma(int64(stats.LeafPages)))
		fmt.Fprintf(r.out, "height:         %d\n", stats.Height)
		fmt.Fprintf(r.out, "rows:           %s\n", humanize.Comma(int64(r.table.NumRows())))
	case Verify:
		if err := r.table.Verify(ctx); err != nil {
			fmt.Fprintf(r.out, "Error: %s\n", err)
			return
		}
		fmt.Fprintln(r.out, "OK")
	default:
		fmt.Fprintf(r.out, "Unrecognized meta command: %s\n", inputBuffer)
	}
}

var errSyntax = errors.New("syntax error")

func (r *repl) execute(ctx context.Context, inputBuffer string) error {
	fields := strings.Fields(inputBuffer)

	switch strings.ToLower(fields[0]) {
	case "insert":
		if len(fields) != 4 {
			return fmt.Errorf("%w: insert <id> <username> <email>", errSyntax)
		}
		key, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: id must be an integer", errSyntax)
		}
		if err := r.table.Insert(ctx, key, fields[2], fields[3]); err != nil {
			return err
		}
		fmt.Fprintln(r.out, "Executed.")
		return nil
	case "select":
		if len(fields) != 1 {
			return fmt.Errorf("%w: select", errSyntax)
		}
		return r.printRecords(ctx, r.table.SelectAll(ctx))
	case "find":
		if len(fields) != 2 {
			return fmt.Errorf("%w: find <id>", errSyntax)
		}
		key, err := parseKey(fields[1])
		if err != nil {
			return err
		}
		return r.printRecords(ctx, r.table.Scan(ctx, key, key))
	case "scan":
		if len(fields) != 3 {
			return fmt.Errorf("%w: scan <from> <to>", errSyntax)
		}
		from, err := parseKey(fields[1])
		if err != nil {
			return err
		}
		to, err := parseKey(fields[2])
		if err != nil {
			return err
		}
		return r.printRecords(ctx, r.table.Scan(ctx, from, to))
	default:
		return fmt.Errorf("unrecognized command: %s", fields[0])
	}
}

func parseKey(value string) (int32, error) {
	key, err := strconv.ParseInt(value, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("%w: %s is not a 32 bit integer", errSyntax, value)
	}
	return int32(key), nil
}

func (r *repl) printRecords(ctx context.Context, aCursor *minidb.Cursor) error {
	records, err := aCursor.Collect(ctx)
	if err != nil {
		return err
	}

	util.PrintTableHeader(r.out, recordColumns)
	for _, aRecord := range records {
		util.PrintTableRow(r.out, recordColumns, []any{aRecord.Key, aRecord.Username, aRecord.Email})
	}
	util.PrintTableEnd(r.out, recordColumns)
	fmt.Fprintf(r.out, "%s row(s)\n", humanize.Comma(int64(len(records))))

	return nil
}
