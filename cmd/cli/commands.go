package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/adwatch/internal/alert"
	"github.com/adwatch/internal/config"
	"github.com/adwatch/internal/database"
	"github.com/adwatch/internal/insights"
	"github.com/adwatch/internal/models"
	"github.com/adwatch/internal/notify"
	"github.com/adwatch/internal/obs"
	"github.com/adwatch/internal/report"
	"github.com/adwatch/internal/schedule"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func openDB() (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	db, err := database.Open(cfg.Database.Path)
	if err != nil {
		return nil, nil, err
	}
	return cfg, db, nil
}

func newRuleCommand() *cobra.Command {
	ruleCmd := &cobra.Command{
		Use:   "rule",
		Short: "Manage alert rules",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List alert rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			var rules []models.AlertRule
			if err := db.Find(&rules).Error; err != nil {
				return fmt.Errorf("failed to fetch rules: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tNAME\tMETRIC\tCOMPARISON\tTHRESHOLD\tACTIVE\t")
			for _, r := range rules {
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t\n",
					r.ID, r.Name, r.Metric, r.Comparison,
					alert.FormatMetricValue(r.Metric, r.Threshold), r.IsActive)
			}
			return w.Flush()
		},
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add an alert rule",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			metric, _ := cmd.Flags().GetString("metric")
			comparison, _ := cmd.Flags().GetString("comparison")
			threshold, _ := cmd.Flags().GetFloat64("threshold")
			userID, _ := cmd.Flags().GetUint("user")

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			rule := models.AlertRule{
				UserID:       userID,
				Name:         name,
				Metric:       models.Metric(metric),
				Comparison:   models.Comparison(comparison),
				Threshold:    threshold,
				IsActive:     true,
				EmailEnabled: true,
				InAppEnabled: true,
			}
			if err := db.Create(&rule).Error; err != nil {
				return fmt.Errorf("failed to create rule: %w", err)
			}
			fmt.Printf("Created rule %d\n", rule.ID)
			return nil
		},
	}
	addCmd.Flags().String("name", "", "rule name")
	addCmd.Flags().String("metric", "", "metric (cpa, roas, ctr, cpc, cpm, spend, impressions, clicks)")
	addCmd.Flags().String("comparison", "", "comparison (gt, lt, eq, ne, gte, lte)")
	addCmd.Flags().Float64("threshold", 0, "threshold value")
	addCmd.Flags().Uint("user", 1, "owner user id")
	addCmd.MarkFlagRequired("name")
	addCmd.MarkFlagRequired("metric")
	addCmd.MarkFlagRequired("comparison")
	addCmd.MarkFlagRequired("threshold")

	ruleCmd.AddCommand(listCmd, addCmd, setRuleActiveCommand("enable", true), setRuleActiveCommand("disable", false))
	return ruleCmd
}

func setRuleActiveCommand(use string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [id]",
		Short: use + " an alert rule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("invalid rule id %q", args[0])
			}
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			return db.Model(&models.AlertRule{}).Where("id = ?", id).
				Update("is_active", active).Error
		},
	}
}

func newScheduleCommand() *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage report and export schedules",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			var defs []models.ScheduleDefinition
			if err := db.Find(&defs).Error; err != nil {
				return fmt.Errorf("failed to fetch schedules: %w", err)
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.TabIndent)
			fmt.Fprintln(w, "ID\tNAME\tTYPE\tFREQUENCY\tNEXT RUN\tACTIVE\t")
			for _, d := range defs {
				next := "-"
				if d.NextRun != nil {
					next = d.NextRun.Format(time.RFC3339)
				}
				fmt.Fprintf(w, "%d\t%s\t%s\t%s\t%s\t%t\t\n",
					d.ID, d.Name, d.JobType, d.Frequency, next, d.IsActive)
			}
			return w.Flush()
		},
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a schedule",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			jobType, _ := cmd.Flags().GetString("type")
			frequency, _ := cmd.Flags().GetString("frequency")
			hour, _ := cmd.Flags().GetInt("hour")
			minute, _ := cmd.Flags().GetInt("minute")
			dayOfWeek, _ := cmd.Flags().GetInt("day-of-week")
			dayOfMonth, _ := cmd.Flags().GetInt("day-of-month")
			recipients, _ := cmd.Flags().GetStringSlice("recipients")

			def := models.ScheduleDefinition{
				Name:       name,
				JobType:    models.JobType(jobType),
				Frequency:  models.Frequency(frequency),
				Hour:       hour,
				Minute:     minute,
				DayOfWeek:  dayOfWeek,
				DayOfMonth: dayOfMonth,
				Recipients: recipients,
				IsActive:   true,
				Status:     models.ScheduleStatusIdle,
			}

			now := time.Now()
			next, err := schedule.NextRunFor(&def, now)
			if err != nil {
				return err
			}
			def.NextRun = next
			if def.Frequency == models.FrequencyOnce {
				due := now.UTC()
				def.NextRun = &due
			}

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			if err := db.Create(&def).Error; err != nil {
				return fmt.Errorf("failed to create schedule: %w", err)
			}
			fmt.Printf("Created schedule %d", def.ID)
			if def.NextRun != nil {
				fmt.Printf(", next run %s", def.NextRun.Format(time.RFC3339))
			}
			fmt.Println()
			return nil
		},
	}
	addCmd.Flags().String("name", "", "schedule name")
	addCmd.Flags().String("type", "report", "job type (report or export)")
	addCmd.Flags().String("frequency", "daily", "frequency (once, daily, weekly, monthly)")
	addCmd.Flags().Int("hour", 9, "hour of day (0-23, UTC)")
	addCmd.Flags().Int("minute", 0, "minute of hour (0-59)")
	addCmd.Flags().Int("day-of-week", 1, "ISO day of week for weekly schedules (1=Monday..7=Sunday)")
	addCmd.Flags().Int("day-of-month", 1, "day of month for monthly schedules (1-31)")
	addCmd.Flags().StringSlice("recipients", nil, "delivery email addresses")
	addCmd.MarkFlagRequired("name")

	scheduleCmd.AddCommand(listCmd, addCmd)
	return scheduleCmd
}

func newRunCommand() *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run the engine once",
	}

	buildEngine := func() (*config.Config, *gorm.DB, *schedule.Pipeline, *alert.Runner, error) {
		cfg, db, err := openDB()
		if err != nil {
			return nil, nil, nil, nil, err
		}
		logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		emailer := notify.NewEmailNotifier(notify.EmailConfig{
			SMTPHost: cfg.Email.SMTPHost,
			SMTPPort: cfg.Email.SMTPPort,
			From:     cfg.Email.From,
			Password: cfg.Email.Password,
		})
		pipeline := schedule.NewPipeline(db, report.NewBuilder(db), emailer, obs.NopSink{},
			cfg.Engine.CollaboratorTimeout, logger)
		runner := alert.NewRunner(db, insights.NewSource(db, 7), emailer, nil, obs.NopSink{},
			cfg.Engine.CollaboratorTimeout, logger)
		return cfg, db, pipeline, runner, nil
	}

	runCmd.AddCommand(&cobra.Command{
		Use:   "schedules",
		Short: "Process all due report and export schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, pipeline, _, err := buildEngine()
			if err != nil {
				return err
			}
			defer database.Close(db)
			return pipeline.RunDueSchedules(context.Background(), time.Now())
		},
	})

	runCmd.AddCommand(&cobra.Command{
		Use:   "alerts",
		Short: "Evaluate all active alert rules",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, db, _, runner, err := buildEngine()
			if err != nil {
				return err
			}
			defer database.Close(db)
			return runner.RunActiveRules(context.Background(), time.Now())
		},
	})

	return runCmd
}

func newUserCommand() *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage dashboard users",
	}

	addCmd := &cobra.Command{
		Use:   "add",
		Short: "Add a dashboard user",
		RunE: func(cmd *cobra.Command, args []string) error {
			username, _ := cmd.Flags().GetString("username")
			password, _ := cmd.Flags().GetString("password")
			email, _ := cmd.Flags().GetString("email")
			role, _ := cmd.Flags().GetString("role")

			_, db, err := openDB()
			if err != nil {
				return err
			}
			defer database.Close(db)

			user := models.User{
				Username: username,
				Email:    email,
				Role:     models.Role(role),
				IsActive: true,
			}
			if err := user.SetPassword(password); err != nil {
				return err
			}
			if err := db.Create(&user).Error; err != nil {
				return fmt.Errorf("failed to create user: %w", err)
			}
			fmt.Printf("Created user %d\n", user.ID)
			return nil
		},
	}
	addCmd.Flags().String("username", "", "username")
	addCmd.Flags().String("password", "", "password")
	addCmd.Flags().String("email", "", "email address")
	addCmd.Flags().String("role", "admin", "role (admin or viewer)")
	addCmd.MarkFlagRequired("username")
	addCmd.MarkFlagRequired("password")

	userCmd.AddCommand(addCmd)
	return userCmd
}
