package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"agency_portal_echo/internal/bootstrap"
	"agency_portal_echo/internal/models"
	"agency_portal_echo/internal/services"
	"agency_portal_echo/internal/tasks"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.database()
			if err != nil {
				return err
			}
			return services.AutoMigrate(db)
		},
	}
}

func newSweepCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Expire pending payments that are past their expiry now",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := e.database()
			if err != nil {
				return err
			}
			events, closeEvents := bootstrap.Events(e.cfg)
			defer closeEvents()

			res, err := services.NewExpirationSweeper(db, events).Sweep(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scanned=%d expired=%d skipped=%d failed=%d\n", res.Scanned, res.Expired, res.Skipped, res.Failed)
			return nil
		},
	}
}

type scheduleOptions struct {
	taskName   string
	arguments  string
	due        string
	taskType   string
	recurring  string
	maxAttempt int
}

// build turns the flags into a task row. due accepts RFC3339 or
// "2006-01-02 15:04" in local time; empty means now.
func (o scheduleOptions) build(now time.Time) (*models.ScheduledTask, error) {
	if o.taskName == "" {
		return nil, fmt.Errorf("--task-name is required")
	}

	args := map[string]interface{}{}
	if o.arguments != "" {
		if err := json.Unmarshal([]byte(o.arguments), &args); err != nil {
			return nil, fmt.Errorf("invalid --arguments JSON: %w", err)
		}
	}

	due := now
	if o.due != "" {
		var err error
		due, err = time.Parse(time.RFC3339, o.due)
		if err != nil {
			due, err = time.ParseInLocation("2006-01-02 15:04", o.due, time.Local)
			if err != nil {
				return nil, fmt.Errorf("invalid --due, use RFC3339 or '2006-01-02 15:04': %w", err)
			}
		}
	}

	taskType := models.ScheduledTaskType(o.taskType)
	var rule *string
	switch taskType {
	case models.ScheduledTaskTypeOneTime:
		if o.recurring != "" {
			return nil, fmt.Errorf("--recurring needs --type %s", models.ScheduledTaskTypeRecurring)
		}
	case models.ScheduledTaskTypeRecurring:
		if o.recurring == "" {
			return nil, fmt.Errorf("--recurring is required for recurring tasks")
		}
		rule = &o.recurring
	default:
		return nil, fmt.Errorf("unknown --type %q", o.taskType)
	}

	task, err := tasks.BuildScheduledTask(o.taskName, args, due, rule, taskType, o.maxAttempt)
	if err != nil {
		return nil, err
	}
	if taskType == models.ScheduledTaskTypeRecurring && !task.NextDue(due).After(due) {
		return nil, fmt.Errorf("invalid --recurring rule %q", o.recurring)
	}
	return task, nil
}

func newScheduleCmd(e *env) *cobra.Command {
	var o scheduleOptions
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Queue a task for the worker",
		Example: `  agencyctl schedule --task-name log_info --arguments '{"message":"hello"}'
  agencyctl schedule --task-name expire_payments --type recurring --recurring 'FREQ=MINUTELY;INTERVAL=5'`,
		RunE: func(cmd *cobra.Command, args []string) error {
			task, err := o.build(time.Now())
			if err != nil {
				return err
			}
			db, err := e.database()
			if err != nil {
				return err
			}
			if err := db.WithContext(cmd.Context()).Create(task).Error; err != nil {
				return fmt.Errorf("create task: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created task %d: %s due %s (%s)\n", task.ID, task.TaskName, task.Due.Format(time.RFC3339), task.TaskType)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.taskName, "task-name", "", "registered task name")
	f.StringVar(&o.arguments, "arguments", "", "task arguments as a JSON object")
	f.StringVar(&o.due, "due", "", "due time, RFC3339 or '2006-01-02 15:04' (default now)")
	f.StringVar(&o.taskType, "type", string(models.ScheduledTaskTypeOneTime), "onetime or recurring")
	f.StringVar(&o.recurring, "recurring", "", "RFC 5545 RRULE for recurring tasks")
	f.IntVar(&o.maxAttempt, "max-attempt", 3, "attempts per run")
	_ = cmd.MarkFlagRequired("task-name")
	return cmd
}

func newWASendCmd(e *env) *cobra.Command {
	var phone, message, token string
	cmd := &cobra.Command{
		Use:   "wa-send",
		Short: "Send a WhatsApp text through the gateway",
		RunE: func(cmd *cobra.Command, args []string) error {
			if token == "" {
				token = e.cfg.WANotifySessionToken
			}
			if token == "" {
				return fmt.Errorf("no session token: pass --token or set WA_NOTIFY_SESSION_TOKEN")
			}
			gw := bootstrap.WhatsAppGateway(e.cfg)
			if err := gw.SendMessage(cmd.Context(), token, phone, message); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "sent to %s\n", services.NormalizePhone(phone))
			return nil
		},
	}
	cmd.Flags().StringVar(&phone, "phone", "", "recipient phone, e.g. 08123456789 or 628123456789")
	cmd.Flags().StringVar(&message, "msg", "Test message from agencyctl", "message body")
	cmd.Flags().StringVar(&token, "token", "", "gateway session token (default WA_NOTIFY_SESSION_TOKEN)")
	_ = cmd.MarkFlagRequired("phone")
	return cmd
}
