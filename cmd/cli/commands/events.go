package commands

import (
	"fmt"
	"io"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/Majulish/cookie/pkg/core/services"
)

func bindEventFlags(cmd *cobra.Command) {
	cmd.Flags().String("name", "", "Event name")
	cmd.Flags().String("description", "", "Event description")
	cmd.Flags().String("location", "", "Event location")
	cmd.Flags().String("start", "", "Start time (RFC 3339)")
	cmd.Flags().String("end", "", "End time (RFC 3339)")
	cmd.Flags().String("org", "", "Organization ID")
	cmd.Flags().String("recruiter", "", "Recruiter user ID")
	cmd.Flags().StringArray("job", nil, "Job slot as Title=Slots (repeatable)")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("start")
	cmd.MarkFlagRequired("org")
}

func eventInputFromFlags(cmd *cobra.Command) (services.EventInput, error) {
	name, _ := cmd.Flags().GetString("name")
	description, _ := cmd.Flags().GetString("description")
	location, _ := cmd.Flags().GetString("location")
	org, _ := cmd.Flags().GetString("org")
	recruiter, _ := cmd.Flags().GetString("recruiter")
	startFlag, _ := cmd.Flags().GetString("start")
	endFlag, _ := cmd.Flags().GetString("end")
	jobFlags, _ := cmd.Flags().GetStringArray("job")

	start, err := parseTime("start", startFlag)
	if err != nil {
		return services.EventInput{}, err
	}
	end, err := parseTime("end", endFlag)
	if err != nil {
		return services.EventInput{}, err
	}
	jobs, err := parseJobs(jobFlags)
	if err != nil {
		return services.EventInput{}, err
	}

	return services.EventInput{
		Name:           name,
		Description:    description,
		Location:       location,
		Start:          start,
		End:            end,
		OrganizationID: org,
		RecruiterID:    recruiter,
		Jobs:           jobs,
	}, nil
}

const displayTime = "2006-01-02 15:04 MST"

func printEvent(w io.Writer, res *services.EventResult) {
	fmt.Fprintf(w, "Event ID: %s\n", res.Event.ID)
	fmt.Fprintf(w, "Name:     %s\n", res.Event.Name)
	fmt.Fprintf(w, "Start:    %s\n", res.Event.Start.Format(displayTime))
	for _, j := range res.Jobs {
		fmt.Fprintf(w, "  Job %s: %s (%d slots)\n", j.ID, j.Title, j.Slots)
	}
}

// CreateEventCmd creates the create-event command
func CreateEventCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-event",
		Short: "Create an event with its job slots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := eventInputFromFlags(cmd)
			if err != nil {
				return err
			}
			res, err := app.Staffing.CreateEvent(app.Ctx, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Event created!\n\n")
			printEvent(cmd.OutOrStdout(), res)
			return nil
		},
	}
	bindEventFlags(cmd)
	return cmd
}

// DefineSeriesCmd creates the define-series command
func DefineSeriesCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "define-series",
		Short: "Create one event per occurrence of a recurrence rule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := eventInputFromFlags(cmd)
			if err != nil {
				return err
			}
			rule, _ := cmd.Flags().GetString("rrule")
			if rule == "" {
				rule = app.Cfg.SeriesRRule
			}
			if rule == "" {
				return fmt.Errorf("--rrule is required when no seriesRRule is configured")
			}
			count, _ := cmd.Flags().GetInt("count")

			results, err := app.Staffing.DefineEventSeries(app.Ctx, in, rule, count)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "\n✓ Created %d events\n\n", len(results))
			for _, res := range results {
				printEvent(cmd.OutOrStdout(), res)
			}
			return nil
		},
	}
	bindEventFlags(cmd)
	cmd.Flags().String("rrule", "", "Recurrence rule, e.g. FREQ=WEEKLY;BYDAY=SA")
	cmd.Flags().Int("count", 0, "Maximum number of occurrences")
	return cmd
}

// AddJobCmd creates the add-job command
func AddJobCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "add-job <event_id> <title> <slots>",
		Short: "Add a job slot to an event",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			slots, err := strconv.Atoi(args[2])
			if err != nil {
				return fmt.Errorf("slots must be a number: %w", err)
			}
			job, err := app.Staffing.AddJobSlot(app.Ctx, args[0], args[1], slots)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Job %s added: %s (%d slots)\n", job.ID, job.Title, job.Slots)
			return nil
		},
	}
}

// SetEventStatusCmd creates the set-event-status command
func SetEventStatusCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-event-status <event_id> <planned|started|finished>",
		Short: "Move an event through its lifecycle",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := parseEventStatus(args[1])
			if err != nil {
				return err
			}
			if err := app.Staffing.SetEventStatus(app.Ctx, args[0], status); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Event %s is now %s\n", args[0], status)
			return nil
		},
	}
}

// DeleteEventCmd creates the delete-event command
func DeleteEventCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete-event <event_id>",
		Short: "Delete an event with its jobs, assignments and pending reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Staffing.DeleteEvent(app.Ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Event %s deleted\n", args[0])
			return nil
		},
	}
}

// GetEventCmd creates the event command
func GetEventCmd(app *AppContext) *cobra.Command {
	return &cobra.Command{
		Use:   "event <event_id>",
		Short: "Show an event with its job slots and openings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := app.Staffing.GetEvent(app.Ctx, args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			e := res.Event
			fmt.Fprintf(out, "Event ID: %s\n", e.ID)
			fmt.Fprintf(out, "Name:     %s\n", e.Name)
			if e.Location != "" {
				fmt.Fprintf(out, "Location: %s\n", e.Location)
			}
			fmt.Fprintf(out, "Start:    %s\n", e.Start.Format(displayTime))
			if !e.End.IsZero() {
				fmt.Fprintf(out, "End:      %s\n", e.End.Format(displayTime))
			}
			fmt.Fprintf(out, "Status:   %s\n", e.Status)
			for _, j := range res.Jobs {
				fmt.Fprintf(out, "  Job %s: %s (%d/%d open)\n", j.ID, j.Title, j.Openings, j.Slots)
			}
			return nil
		},
	}
}

// ListEventsCmd creates the events command
func ListEventsCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "List events by start time",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			org, _ := cmd.Flags().GetString("org")
			list, err := app.Staffing.ListEvents(app.Ctx, org)
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No events.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "EVENT\tNAME\tSTART\tSTATUS")
			for _, e := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.ID, e.Name, e.Start.Format(displayTime), e.Status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().String("org", "", "Only list events of this organization")
	return cmd
}

// UpdateEventCmd creates the update-event command
func UpdateEventCmd(app *AppContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "update-event <event_id>",
		Short: "Change an event; moving the start reschedules reminders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			upd, err := eventUpdateFromFlags(cmd)
			if err != nil {
				return err
			}
			event, err := app.Staffing.UpdateEvent(app.Ctx, args[0], upd)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Event %s updated, starts %s\n", event.ID, event.Start.Format(displayTime))
			return nil
		},
	}
	cmd.Flags().String("name", "", "Event name")
	cmd.Flags().String("description", "", "Event description")
	cmd.Flags().String("location", "", "Event location")
	cmd.Flags().String("start", "", "Start time (RFC 3339)")
	cmd.Flags().String("end", "", "End time (RFC 3339, empty clears it)")
	return cmd
}

// eventUpdateFromFlags only sets the fields whose flags were given
func eventUpdateFromFlags(cmd *cobra.Command) (services.EventUpdate, error) {
	var upd services.EventUpdate
	flags := cmd.Flags()
	str := func(name string) *string {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetString(name)
		return &v
	}
	upd.Name = str("name")
	upd.Description = str("description")
	upd.Location = str("location")

	for name, dst := range map[string]**time.Time{"start": &upd.Start, "end": &upd.End} {
		raw := str(name)
		if raw == nil {
			continue
		}
		t, err := parseTime(name, *raw)
		if err != nil {
			return services.EventUpdate{}, err
		}
		*dst = &t
	}
	if upd.Start != nil && upd.Start.IsZero() {
		return services.EventUpdate{}, fmt.Errorf("--start cannot be empty")
	}
	if upd == (services.EventUpdate{}) {
		return services.EventUpdate{}, fmt.Errorf("nothing to update")
	}
	return upd, nil
}
