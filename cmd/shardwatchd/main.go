// Command shardwatchd runs the shard-request metrics snapshot engine as a
// standalone process: it ingests half-events (from a real producer wired in
// by an embedder, or from the built-in -demo generator) and logs each
// closed window's aggregation views.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/avoss/shardwatch/internal/metrics"
)

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "serve":
		runServe(os.Args[2:])
	case "dump":
		runDump(os.Args[2:])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, "usage: shardwatchd serve [-config path] [-demo]\n")
	fmt.Fprintf(os.Stderr, "       shardwatchd dump [-config path]\n")
}

// runDump opens the configured store and prints the current window's raw
// half-events, without starting the rollover loop. A debug aid for
// inspecting an engine's Event Buffer from outside the process.
func runDump(args []string) {
	cfg, _ := parseServeFlags(args)

	eng, err := metrics.New(cfg)
	if err != nil {
		slog.Error("failed to open engine", "error", err)
		os.Exit(1)
	}
	events, err := eng.FetchAll(context.Background())
	if err != nil {
		slog.Error("fetch_all failed", "error", err)
		os.Exit(1)
	}
	for _, e := range events {
		fmt.Printf("rid=%s tid=%s op=%s start=%d has_start=%t end=%d has_end=%t\n",
			e.RequestID, e.ThreadID, e.Operation, e.Start, e.HasStart, e.End, e.HasEnd)
	}
}

func runServe(args []string) {
	cfg, demo := parseServeFlags(args)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	eng, err := metrics.New(cfg)
	if err != nil {
		slog.Error("failed to create engine", "error", err)
		os.Exit(1)
	}

	sub, ch := eng.Hub().Subscribe(metrics.TopicWindowClosed)
	go logSnapshots(ch)

	if demo {
		go runDemoProducer(ctx, eng, cfg)
	}

	if err := eng.Run(ctx); err != nil {
		slog.Error("engine stopped with error", "error", err)
		eng.Hub().Unsubscribe(metrics.TopicWindowClosed, sub)
		os.Exit(1)
	}
	eng.Hub().Unsubscribe(metrics.TopicWindowClosed, sub)
}

func logSnapshots(ch <-chan any) {
	for msg := range ch {
		snap, ok := msg.(*metrics.WindowSnapshot)
		if !ok {
			continue
		}
		slog.Info("window closed",
			"window", snap.Window,
			"requests", len(snap.Latency),
			"op_groups", len(snap.LatencyByOp),
			"threads", len(snap.ThreadUtil),
		)
	}
}
