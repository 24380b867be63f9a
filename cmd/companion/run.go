package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/spf13/cobra"

	"github.com/opensheets/companion/internal/capture"
	"github.com/opensheets/companion/internal/engine"
)

func runCmd() *cobra.Command {
	var inputPath string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the capture and sync daemon",
		Long: `Run consumes notification events as JSON lines (one object per line,
with sourceId, title, text, and postedAt fields), captures qualifying
ones, and keeps syncing them to the server in the background.

By default events are read from stdin; --input reads from a file or
named pipe instead.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), inputPath)
		},
	}

	cmd.Flags().StringVar(&inputPath, "input", "", "event source file or FIFO (default: stdin)")

	return cmd
}

func runDaemon(ctx context.Context, inputPath string) error {
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := capture.SeedDefaultApps(ctx, store); err != nil {
		return err
	}

	credStore, err := openCredentials()
	if err != nil {
		return err
	}

	creds, err := credStore.Get()
	if err != nil {
		return err
	}

	// Without credentials the daemon still captures; syncing starts on the
	// next run after 'companion connect'.
	var syncEngine *engine.SyncEngine
	var trigger capture.Triggerer = noopTrigger{}
	if creds.Configured() {
		client, clientErr := newCollector(creds)
		if clientErr != nil {
			return clientErr
		}
		syncEngine = engine.NewWithConfig(store, client, credStore, engineConfig())
		trigger = syncEngine
	} else {
		slog.Warn("Not connected to a server; capturing only. Run 'companion connect' and restart to sync.")
	}

	captureService := capture.NewService(store, credStore, trigger, 0)

	input := os.Stdin
	if inputPath != "" {
		f, openErr := os.Open(inputPath)
		if openErr != nil {
			return fmt.Errorf("failed to open event input: %w", openErr)
		}
		defer func() { _ = f.Close() }()
		input = f
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup

	if syncEngine != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = syncEngine.Run(runCtx)
		}()

		// Catch-up sweep for anything left pending from a previous session.
		syncEngine.Trigger()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		_ = captureService.Run(runCtx)
	}()

	readEvents(runCtx, input, captureService.Events())

	// Input exhausted or context canceled: keep sweeping until shutdown
	// so already-captured records still get delivered.
	<-runCtx.Done()
	cancel()
	wg.Wait()

	return nil
}

// noopTrigger satisfies the capture service when no server is connected.
type noopTrigger struct{}

func (noopTrigger) Trigger() {}

// readEvents feeds NDJSON events into the capture queue until EOF or
// cancellation. Malformed lines are logged and skipped.
func readEvents(ctx context.Context, r io.Reader, events chan<- capture.Event) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var event capture.Event
		if err := json.Unmarshal(line, &event); err != nil {
			slog.Warn("Skipping malformed event line", "error", err)
			continue
		}
		if event.SourceID == "" {
			slog.Warn("Skipping event without sourceId")
			continue
		}

		select {
		case events <- event:
		case <-ctx.Done():
			return
		}
	}

	if err := scanner.Err(); err != nil && !errors.Is(err, os.ErrClosed) {
		slog.Error("Event input failed", "error", err)
	}
	slog.Info("Event input closed")
}
