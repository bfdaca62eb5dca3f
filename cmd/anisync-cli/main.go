package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := newRootCommand()
	if err := cmd.ExecuteContext(ctx); err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, err)
		}
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "anisync-cli",
		Short:         "Maintenance commands for anisync",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.AddCommand(newMigrateCommand())
	rootCmd.AddCommand(newPassCommand())
	rootCmd.AddCommand(newEpisodeCommand())
	rootCmd.AddCommand(newSyncCommand())
	rootCmd.AddCommand(newReconcileFilesCommand())
	rootCmd.AddCommand(newBroadcastCommand())
	return rootCmd
}
