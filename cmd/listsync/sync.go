package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

func newSyncCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Replay queued changes",
		Long: `Replay every queued change, oldest first, across all lists of this
machine. Changes that still fail stay queued for the next sync.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				if flags.offline {
					return fmt.Errorf("cannot sync with --offline")
				}
				if !s.app.Monitor.Check(ctx) {
					return fmt.Errorf("list service at %s is unreachable", s.app.Config.Remote.BaseURL)
				}
				report, err := s.app.Engine.OnReconnect(ctx)
				if err != nil {
					return err
				}
				s.renderer.Synced(report.Acked(), report.Remaining())
				return nil
			})
		},
	}
}

func newPendingCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Show queued changes for a list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				ops, err := s.app.Engine.Pending(ctx, s.scope)
				if err != nil {
					return err
				}
				s.renderer.Pending(ops)
				return nil
			})
		},
	}
}
