package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/opensheets/companion/internal/cli"
	"github.com/opensheets/companion/internal/collector"
	"github.com/opensheets/companion/internal/service"
)

func connectCmd() *cobra.Command {
	var serverURL string
	var accessToken string
	var refreshToken string

	cmd := &cobra.Command{
		Use:   "connect",
		Short: "Connect to an OpenSheets server",
		Long: `Connect probes the server's health endpoint, verifies the device token,
and stores the credentials for the sync engine to use.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConnect(cmd.Context(), serverURL, accessToken, refreshToken)
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "server base URL")
	cmd.Flags().StringVar(&accessToken, "token", "", "device access token")
	cmd.Flags().StringVar(&refreshToken, "refresh-token", "", "device refresh token")
	_ = cmd.MarkFlagRequired("server")
	_ = cmd.MarkFlagRequired("token")

	return cmd
}

func runConnect(ctx context.Context, serverURL, accessToken, refreshToken string) error {
	client, err := collector.NewClient(serverURL)
	if err != nil {
		return err
	}

	health, err := client.Health(ctx)
	if err != nil {
		return fmt.Errorf("server health check failed: %w", err)
	}
	fmt.Printf("Server: %s", health.Name)
	if health.Version != "" {
		fmt.Printf(" (version %s)", health.Version)
	}
	fmt.Println()

	info, err := client.VerifyToken(ctx, accessToken)
	if err != nil {
		return fmt.Errorf("token verification failed: %w", err)
	}

	credStore, err := openCredentials()
	if err != nil {
		return err
	}

	creds := service.Credentials{
		ServerURL:    serverURL,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenName:    info.TokenName,
	}
	if err := credStore.Set(creds); err != nil {
		return fmt.Errorf("failed to save credentials: %w", err)
	}

	name := info.TokenName
	if name == "" {
		name = info.TokenID
	}
	fmt.Println(cli.SuccessStyle.Render(fmt.Sprintf("✓ Connected as %q", name)))
	return nil
}

func disconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect",
		Short: "Forget the stored server credentials",
		RunE: func(_ *cobra.Command, _ []string) error {
			credStore, err := openCredentials()
			if err != nil {
				return err
			}
			if err := credStore.Clear(); err != nil {
				return fmt.Errorf("failed to clear credentials: %w", err)
			}
			fmt.Println(cli.SuccessStyle.Render("✓ Disconnected. Captured notifications stay local until you reconnect."))
			return nil
		},
	}
}
