package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/opensheets/companion/internal/cli"
	"github.com/opensheets/companion/internal/common"
	"github.com/opensheets/companion/internal/engine"
	"github.com/opensheets/companion/internal/model"
)

func syncCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Sync pending notifications to the server now",
		Long: `Sync submits every pending and previously failed notification to the
connected server, in batches, and reports the outcome.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSync(cmd.Context())
		},
	}
}

func runSync(ctx context.Context) error {
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	credStore, err := openCredentials()
	if err != nil {
		return err
	}

	creds, err := credStore.Get()
	if err != nil {
		return err
	}
	if !creds.Configured() {
		return common.NewUserError(
			"Not connected to a server. Run 'companion connect' first.",
			common.ErrNotConfigured)
	}

	client, err := newCollector(creds)
	if err != nil {
		return err
	}

	pendingCount, err := store.CountByStatus(ctx, model.SyncStatusPending)
	if err != nil {
		return err
	}
	failedCount, err := store.CountByStatus(ctx, model.SyncStatusFailed)
	if err != nil {
		return err
	}

	total := pendingCount + failedCount
	if total == 0 {
		fmt.Println(cli.SuccessStyle.Render("✓ Nothing to sync"))
		return nil
	}

	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(os.Stdout),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(40),
		progressbar.OptionSetDescription("Syncing notifications..."),
		progressbar.OptionOnCompletion(func() {
			fmt.Println()
		}),
	)

	syncEngine := engine.NewWithConfig(store, client, credStore, engineConfig())

	var synced, failed int
	for {
		result, runErr := syncEngine.RunOnce(ctx)
		synced += result.Synced
		failed += result.Failed
		_ = bar.Add(result.Synced + result.Failed)

		if runErr != nil {
			_ = bar.Finish()
			if errors.Is(runErr, common.ErrRefreshFailed) {
				return common.NewUserError(
					"Authentication expired and could not be renewed. Run 'companion connect' to re-authenticate.",
					runErr)
			}
			return runErr
		}

		// Stop once the queue is drained or a batch made no progress;
		// failed records stay queued for a later retry.
		if result.Submitted == 0 || result.Synced == 0 {
			break
		}
	}
	_ = bar.Finish()

	if failed > 0 {
		fmt.Println(cli.WarningStyle.Render(
			fmt.Sprintf("Synced %d notification(s), %d failed. Failed records will be retried.", synced, failed)))
		return nil
	}

	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Synced %d notification(s)", synced)))
	return nil
}
