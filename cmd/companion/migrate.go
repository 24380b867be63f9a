package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensheets/companion/internal/cli"
	"github.com/opensheets/companion/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Bring the local database schema up to date",
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := openStorage(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			fmt.Println(cli.SuccessStyle.Render(
				fmt.Sprintf("✓ Database schema at version %d", storage.ExpectedSchemaVersion)))
			return nil
		},
	}
}
