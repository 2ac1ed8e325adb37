// Package main implements the listsync CLI: an offline-tolerant todo list
// client that queues changes locally and replays them when the list service
// is reachable again.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/listsync/internal/app"
	"github.com/fyrsmithlabs/listsync/internal/config"
	"github.com/fyrsmithlabs/listsync/internal/engine"
	"github.com/fyrsmithlabs/listsync/internal/item"
)

// Version information (set via ldflags during build)
var (
	version   = "dev"
	gitCommit = "unknown"
	buildDate = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// globalFlags are the persistent flags shared by every command.
type globalFlags struct {
	configPath string
	userID     string
	listID     string
	offline    bool
	noColor    bool
}

func (f *globalFlags) scope() item.Scope {
	return item.Scope{UserID: f.userID, ListID: f.listID}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	root := &cobra.Command{
		Use:   "listsync",
		Short: "Offline-tolerant todo lists",
		Long: `listsync manages todo lists against a remote list service.

Changes made while the service is unreachable are applied locally, queued
on disk and replayed in order once connectivity returns.

Examples:
  # Show the groceries list
  listsync --user alice --list groceries list

  # Add an item without touching the network
  listsync --user alice --list groceries --offline add oat milk

  # Replay everything queued while offline
  listsync sync`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&flags.configPath, "config", "", "config file (default ~/.config/listsync/config.yaml)")
	pf.StringVar(&flags.userID, "user", envOr("LISTSYNC_USER", os.Getenv("USER")), "user id")
	pf.StringVar(&flags.listID, "list", envOr("LISTSYNC_LIST", "default"), "list id")
	pf.BoolVar(&flags.offline, "offline", false, "do not contact the list service")
	pf.BoolVar(&flags.noColor, "no-color", false, "disable styled output")

	root.AddCommand(
		newListCmd(flags),
		newAddCmd(flags),
		newToggleCmd(flags),
		newEditCmd(flags),
		newDeleteCmd(flags),
		newSyncCmd(flags),
		newPendingCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "listsync by Fyrsmith Labs\n")
			fmt.Fprintf(out, "Version:    %s\n", version)
			fmt.Fprintf(out, "Commit:     %s\n", gitCommit)
			fmt.Fprintf(out, "Build Date: %s\n", buildDate)
		},
	}
}

// session is one CLI invocation's view of the engine.
type session struct {
	app      *app.App
	scope    item.Scope
	renderer *renderer
}

// withSession loads config, wires the app and runs fn. Engine notices are
// written to stderr as they happen; command output goes to stdout.
func withSession(cmd *cobra.Command, flags *globalFlags, fn func(ctx context.Context, s *session) error) error {
	scope := flags.scope()
	if err := scope.Validate(); err != nil {
		return reportError(cmd.ErrOrStderr(), fmt.Errorf("--user and --list: %w", err))
	}

	cfg, err := config.LoadWithFile(flags.configPath)
	if err != nil {
		return reportError(cmd.ErrOrStderr(), err)
	}

	r := newRenderer(cmd.OutOrStdout(), flags.noColor)
	errR := newRenderer(cmd.ErrOrStderr(), flags.noColor)

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	a, err := app.New(ctx, cfg, app.Options{
		Offline:  flags.offline,
		Notifier: engine.NotifierFunc(func(n engine.Notice) { errR.Notice(n) }),
	})
	if err != nil {
		return reportError(cmd.ErrOrStderr(), err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = a.Close(closeCtx)
	}()

	if err := fn(ctx, &session{app: a, scope: scope, renderer: r}); err != nil {
		return reportError(cmd.ErrOrStderr(), err)
	}
	return nil
}

// reportError prints err in user terms and returns it for the exit code.
func reportError(w io.Writer, err error) error {
	var mErr *engine.MutationError
	if errors.As(err, &mErr) {
		fmt.Fprintf(w, "Error: %s: %s\n", mErr.Classification.Title, mErr.Classification.Message)
		if mErr.RestoreText != "" {
			fmt.Fprintf(w, "Text not saved: %q\n", mErr.RestoreText)
		}
		return err
	}
	fmt.Fprintf(w, "Error: %v\n", err)
	return err
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
