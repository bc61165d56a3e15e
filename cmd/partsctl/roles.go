package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/spec-kit/parts-support/internal/domain"
	"github.com/spec-kit/parts-support/internal/events"
	"github.com/spec-kit/parts-support/internal/notify"
	"github.com/spec-kit/parts-support/internal/persistence"
	"github.com/spec-kit/parts-support/internal/service"
)

func newRolesCmd(verbose *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roles",
		Short: "Review and decide role requests",
	}
	cmd.AddCommand(newRolesPendingCmd(verbose))
	cmd.AddCommand(newRolesDecideCmd(verbose))
	return cmd
}

func newRolesPendingCmd(verbose *bool) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "pending",
		Short: "List users waiting for a role decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := openEnv(cmd.Context(), *verbose, nil)
			if err != nil {
				return err
			}
			defer rt.close()

			users, err := rt.store.Repositories().Users.ListPendingRequests(cmd.Context(), limit, 0)
			if err != nil {
				return fmt.Errorf("list pending requests: %w", err)
			}
			out := cmd.OutOrStdout()
			if len(users) == 0 {
				fmt.Fprintln(out, "No pending role requests.")
				return nil
			}
			w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "USER ID\tEMAIL\tROLES\tREQUESTED\tSINCE")
			for _, u := range users {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", u.ID, u.Email, u.Roles, *u.RoleRequest, u.UpdatedAt.Format("2006-01-02 15:04"))
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum rows to show")
	return cmd
}

func newRolesDecideCmd(verbose *bool) *cobra.Command {
	var adminID string
	cmd := &cobra.Command{
		Use:   "decide <user-id> <approve|reject>",
		Short: "Approve or reject a pending role request",
		Long:  "Records the decision as the given admin, writes the notification and audit entry, then delivers the notification to the configured sinks.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			decision, err := service.ParseRoleDecision(args[1])
			if err != nil {
				return err
			}

			rt, err := openEnv(cmd.Context(), *verbose, nil)
			if err != nil {
				return err
			}
			defer rt.close()
			ctx := cmd.Context()

			admin, err := rt.store.Repositories().Users.GetByID(ctx, adminID)
			if err != nil {
				return fmt.Errorf("load admin %s: %w", adminID, err)
			}

			// deliveries run inline so the process does not exit before they finish
			dispatcher := events.NewInMemoryDispatcher()
			var sinks []service.NotificationSink
			redis := persistence.NewRedis(rt.cfg.Redis, rt.logger)
			defer redis.Close()
			if redis.Enabled() {
				sinks = append(sinks, redis)
			}
			if slack := notify.NewSlackWebhook(rt.cfg.Notification.SlackWebhookURL); slack != nil {
				sinks = append(sinks, slack)
			}
			service.NewNotificationService(service.NotificationDependencies{
				Dispatcher: dispatcher,
				Logger:     rt.logger,
				Sinks:      sinks,
			}).RegisterHandlers()

			roles := service.NewRoleService(service.RoleDependencies{
				Store:      rt.store,
				Dispatcher: dispatcher,
				Logger:     rt.logger,
			})
			res, err := roles.DecideRoleRequest(ctx, domain.NewActor(admin, domain.RoleAdmin), args[0], decision)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s for %s; roles now %s\n",
				res.Decision, res.Role, res.User.Email, res.User.Roles)
			return nil
		},
	}
	cmd.Flags().StringVar(&adminID, "admin", "", "id of the admin recording the decision")
	_ = cmd.MarkFlagRequired("admin")
	return cmd
}
