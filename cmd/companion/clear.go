package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensheets/companion/internal/cli"
)

func clearCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete all captured notifications and sync logs",
		Long: `Clear removes every captured notification and sync log entry from the
local database. App configuration and server credentials are kept.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !force && !confirm("Delete ALL captured notifications? This cannot be undone.") {
				fmt.Println("Aborted.")
				return nil
			}

			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := store.DeleteAllNotifications(ctx); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render("✓ All captured notifications deleted"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "skip the confirmation prompt")

	return cmd
}

func confirm(prompt string) bool {
	fmt.Printf("%s [y/N]: ", prompt)
	reader := bufio.NewReader(os.Stdin)
	answer, err := reader.ReadString('\n')
	if err != nil {
		return false
	}
	answer = strings.ToLower(strings.TrimSpace(answer))
	return answer == "y" || answer == "yes"
}
