package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensheets/companion/internal/cli"
	"github.com/opensheets/companion/internal/model"
)

func statusCmd() *cobra.Command {
	var showLogs bool
	var recent int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show capture and sync status",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStatus(cmd.Context(), recent, showLogs)
		},
	}

	cmd.Flags().IntVar(&recent, "recent", 5, "number of recent captures to show")
	cmd.Flags().BoolVar(&showLogs, "logs", false, "show recent sync log entries")

	return cmd
}

func runStatus(ctx context.Context, recent int, showLogs bool) error {
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

	fmt.Println(cli.TitleStyle.Render("Companion Status"))

	if creds.Configured() {
		server := creds.ServerURL
		if creds.TokenName != "" {
			server = fmt.Sprintf("%s (%s)", server, creds.TokenName)
		}
		fmt.Printf("Server:       %s\n", cli.SuccessStyle.Render(server))
	} else {
		fmt.Printf("Server:       %s\n", cli.WarningStyle.Render("not connected"))
	}

	pending, err := store.CountByStatus(ctx, model.SyncStatusPending)
	if err != nil {
		return err
	}
	failed, err := store.CountByStatus(ctx, model.SyncStatusFailed)
	if err != nil {
		return err
	}
	synced, err := store.CountByStatus(ctx, model.SyncStatusSynced)
	if err != nil {
		return err
	}
	syncedToday, err := store.CountSince(ctx, startOfToday())
	if err != nil {
		return err
	}

	apps, err := store.ListEnabledAppConfigs(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Monitoring:   %s\n", cli.BoldStyle.Render(fmt.Sprintf("%d app(s)", len(apps))))

	fmt.Printf("Pending:      %s\n", cli.WarningStyle.Render(fmt.Sprintf("%d", pending)))
	fmt.Printf("Failed:       %s\n", cli.ErrorStyle.Render(fmt.Sprintf("%d", failed)))
	fmt.Printf("Synced:       %s\n", cli.SuccessStyle.Render(fmt.Sprintf("%d", synced)))
	fmt.Printf("Synced today: %s\n", cli.SuccessStyle.Render(fmt.Sprintf("%d", syncedToday)))

	if recent > 0 {
		records, listErr := store.ListRecent(ctx, recent)
		if listErr != nil {
			return listErr
		}
		if len(records) > 0 {
			fmt.Println()
			fmt.Println(cli.BoldStyle.Render("Recent captures:"))
			for _, record := range records {
				fmt.Println(formatRecord(record))
			}
		}
	}

	if showLogs {
		entries, logErr := store.ListSyncLogs(ctx, 10)
		if logErr != nil {
			return logErr
		}
		if len(entries) > 0 {
			fmt.Println()
			fmt.Println(cli.BoldStyle.Render("Sync log:"))
			for _, entry := range entries {
				fmt.Printf("  %s  %-7s  %s\n",
					cli.SubtleStyle.Render(entry.Timestamp.Format("2006-01-02 15:04:05")),
					entry.Type, entry.Message)
			}
		}
	}

	return nil
}

func formatRecord(record model.NotificationRecord) string {
	amount := "-"
	if record.Parsed.Amount != nil {
		amount = fmt.Sprintf("R$ %.2f", *record.Parsed.Amount)
	}

	merchant := record.SourceDisplayName
	if record.Parsed.MerchantName != nil {
		merchant = *record.Parsed.MerchantName
	}

	status := cli.StatusStyle(record.SyncStatus).Render(string(record.SyncStatus))

	return fmt.Sprintf("  %s  %-12s %-30s %s",
		cli.SubtleStyle.Render(record.CaptureTimestamp.Format("01-02 15:04")),
		amount, merchant, status)
}
