package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fyrsmithlabs/listsync/internal/item"
)

func newListCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "Show the items of a list",
		Long: `Show the items of a list.

Online, the list is fetched from the service and cached. Offline, or when
the fetch fails, the cached copy is shown together with a notice.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				res, err := s.app.Engine.Load(ctx, s.scope)
				if err != nil {
					return err
				}
				s.renderer.Items(s.scope, res.Items)
				return nil
			})
		},
	}
}

func newAddCmd(flags *globalFlags) *cobra.Command {
	var priority string

	cmd := &cobra.Command{
		Use:   "add <text...>",
		Short: "Add an item",
		Long: `Add an item to a list.

Examples:
  listsync add buy oat milk
  listsync add --priority high renew passport`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p := item.Priority(strings.ToLower(priority))
			if !p.Valid() {
				return reportError(cmd.ErrOrStderr(), fmt.Errorf("--priority must be low, medium or high, got %q", priority))
			}
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				if _, err := s.app.Engine.Load(ctx, s.scope); err != nil {
					return err
				}
				it, err := s.app.Engine.AddItemWithPriority(ctx, s.scope, strings.Join(args, " "), p)
				if err != nil {
					return err
				}
				s.renderer.Changed("added", it)
				return nil
			})
		},
	}
	cmd.Flags().StringVarP(&priority, "priority", "p", string(item.PriorityMedium), "low, medium or high")
	return cmd
}

func newToggleCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "toggle <id>",
		Short: "Flip an item between open and done",
		Long: `Flip an item between open and done.

The id may be abbreviated to any unique prefix shown by "listsync list".`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				id, err := s.resolve(ctx, args[0])
				if err != nil {
					return err
				}
				it, err := s.app.Engine.ToggleItem(ctx, id)
				if err != nil {
					return err
				}
				s.renderer.Changed("toggled", it)
				return nil
			})
		},
	}
}

func newEditCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <text...>",
		Short: "Replace the text of an item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				id, err := s.resolve(ctx, args[0])
				if err != nil {
					return err
				}
				it, err := s.app.Engine.EditItem(ctx, id, strings.Join(args[1:], " "))
				if err != nil {
					return err
				}
				s.renderer.Changed("edited", it)
				return nil
			})
		},
	}
}

func newDeleteCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		Aliases: []string{"rm"},
		Short:   "Remove an item",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withSession(cmd, flags, func(ctx context.Context, s *session) error {
				id, err := s.resolve(ctx, args[0])
				if err != nil {
					return err
				}
				it, _ := s.app.Engine.Item(id)
				if err := s.app.Engine.DeleteItem(ctx, id); err != nil {
					return err
				}
				s.renderer.Changed("deleted", it)
				return nil
			})
		},
	}
}

// resolve loads the session scope and expands ref to a full item id.
func (s *session) resolve(ctx context.Context, ref string) (string, error) {
	res, err := s.app.Engine.Load(ctx, s.scope)
	if err != nil {
		return "", err
	}
	return resolveID(res.Items, ref)
}

// resolveID matches ref exactly or as a unique id prefix.
func resolveID(items []item.Item, ref string) (string, error) {
	var matches []string
	for _, it := range items {
		if it.ID == ref {
			return it.ID, nil
		}
		if strings.HasPrefix(it.ID, ref) {
			matches = append(matches, it.ID)
		}
	}
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("no item matches %q", ref)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("%q is ambiguous: matches %s", ref, strings.Join(matches, ", "))
	}
}
