package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/spf13/cobra"
)

// githubRepoSlug identifies the GitHub repository that publishes release
// artifacts for this binary.
const githubRepoSlug = "mcpgateway/gateway"

// newSelfUpdateCmd creates the Cobra command that replaces the running
// binary with the latest GitHub release.
func newSelfUpdateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "self-update",
		Short: "Update mcpgateway to the latest version",
		Long: `self-update checks GitHub for the latest mcpgateway release and, if a
newer version is available, downloads it and replaces the currently running
binary in place.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSelfUpdate(cmd.Context(), rootCmd.Version, cmd)
		},
	}
}

func runSelfUpdate(ctx context.Context, version string, cmd *cobra.Command) error {
	if version == "" || version == "dev" {
		return fmt.Errorf("cannot self-update a development version (got %q)", version)
	}

	updater, err := selfupdate.NewUpdater(selfupdate.Config{})
	if err != nil {
		return fmt.Errorf("creating self-update client: %w", err)
	}

	latest, found, err := updater.DetectLatest(ctx, selfupdate.ParseSlug(githubRepoSlug))
	if err != nil {
		return fmt.Errorf("detecting latest release: %w", err)
	}
	if !found {
		return fmt.Errorf("no releases found for %s", githubRepoSlug)
	}

	if !latest.GreaterThan(version) {
		fmt.Fprintf(cmd.OutOrStdout(), "current version %s is already the latest\n", version)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("locating running executable: %w", err)
	}

	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("applying update: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "updated to version %s\n", latest.Version())
	return nil
}
