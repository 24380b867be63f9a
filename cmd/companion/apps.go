package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/opensheets/companion/internal/capture"
	"github.com/opensheets/companion/internal/cli"
	"github.com/opensheets/companion/internal/model"
)

func appsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "apps",
		Short: "Manage monitored notification sources",
	}

	cmd.AddCommand(appsListCmd())
	cmd.AddCommand(appsEnableCmd())
	cmd.AddCommand(appsDisableCmd())
	cmd.AddCommand(appsKeywordsCmd())
	cmd.AddCommand(appsSeedCmd())

	return cmd
}

func appsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List monitored apps",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			configs, err := store.ListAppConfigs(ctx)
			if err != nil {
				return err
			}
			if len(configs) == 0 {
				fmt.Println(cli.SubtleStyle.Render("No apps configured. Run 'companion apps seed' to install the defaults."))
				return nil
			}

			fmt.Println(cli.TitleStyle.Render("Monitored apps"))
			for _, config := range configs {
				state := cli.SuccessStyle.Render("enabled")
				if !config.Enabled {
					state = cli.SubtleStyle.Render("disabled")
				}
				fmt.Printf("  %-20s %-28s %s\n", config.DisplayName,
					cli.SubtleStyle.Render(config.SourceID), state)
			}
			return nil
		},
	}
}

func appsEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <source-id>",
		Short: "Enable capture for an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setAppEnabled(cmd.Context(), args[0], true)
		},
	}
}

func appsDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <source-id>",
		Short: "Disable capture for an app",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return setAppEnabled(cmd.Context(), args[0], false)
		},
	}
}

func appsKeywordsCmd() *cobra.Command {
	var useDefaults bool

	cmd := &cobra.Command{
		Use:   "keywords <source-id> [keyword...]",
		Short: "Set the trigger keywords for an app",
		Long: `Keywords replaces an app's trigger keyword list. With no keywords the
app captures every notification; --defaults applies the built-in
banking trigger list.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			keywords := args[1:]
			if useDefaults {
				keywords = strings.Split(model.DefaultTriggerKeywords, ",")
			}

			encoded, err := json.Marshal(keywords)
			if err != nil {
				return fmt.Errorf("failed to encode keywords: %w", err)
			}

			config, err := store.GetAppConfig(ctx, args[0])
			if err != nil {
				return err
			}
			config.Keywords = string(encoded)
			if err := store.SaveAppConfig(ctx, config); err != nil {
				return err
			}

			if len(keywords) == 0 {
				fmt.Println(cli.SuccessStyle.Render(
					fmt.Sprintf("✓ %s now captures every notification", args[0])))
				return nil
			}
			fmt.Println(cli.SuccessStyle.Render(
				fmt.Sprintf("✓ %s triggers on %d keyword(s)", args[0], len(keywords))))
			return nil
		},
	}

	cmd.Flags().BoolVar(&useDefaults, "defaults", false, "apply the built-in banking trigger keywords")

	return cmd
}

func appsSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Install the default banking app list",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			store, err := openStorage(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = store.Close() }()

			if err := capture.SeedDefaultApps(ctx, store); err != nil {
				return err
			}
			fmt.Println(cli.SuccessStyle.Render("✓ Default apps installed"))
			return nil
		},
	}
}

func setAppEnabled(ctx context.Context, sourceID string, enabled bool) error {
	store, err := openStorage(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	if err := store.SetAppEnabled(ctx, sourceID, enabled); err != nil {
		return err
	}

	verb := "enabled"
	if !enabled {
		verb = "disabled"
	}
	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ %s %s", sourceID, verb)))
	return nil
}
