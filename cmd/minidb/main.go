package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/RichardKnop/minidb/internal/minidb"
	"github.com/RichardKnop/minidb/internal/pkg/logging"
)

var dbPath = flag.String("db", "minidb.db", "Path to the database file")

func main() {
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	logger, err := logging.NewLogger(os.Getenv("LOG_LEVEL"), "info")
	if err != nil {
		panic(err)
	}
	defer logger.Sync() // flushes buffer, if any

	aTable, err := minidb.OpenTable(ctx, logger, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error opening database: %s\n", err)
		os.Exit(1)
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		(&repl{table: aTable, out: os.Stdout}).run(ctx, os.Stdin)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case <-done:
	case <-sigChan:
		exitCode = 1
	}

	cancel()

	if err := aTable.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "error closing database: %s\n", err)
		exitCode = 1
	}

	if exitCode != 0 {
		os.Exit(exitCode)
	}
}
