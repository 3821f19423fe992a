package cmd

import (
	"time"

	"chatify-realtime/internal/domain"
	"chatify-realtime/internal/domain/schedule"
	"chatify-realtime/internal/services"

	"github.com/spf13/cobra"
)

func init() {
	scheduleCreateCmd.Flags().String("room", "", "target room id")
	scheduleCreateCmd.Flags().String("owner", "", "owning user id")
	scheduleCreateCmd.Flags().String("message", "", "message body")
	scheduleCreateCmd.Flags().String("type", "text", "message type")
	scheduleCreateCmd.Flags().String("at", "", "RFC3339 send time")
	scheduleCreateCmd.Flags().String("repeat", "none", "none, daily, weekly or monthly")
	scheduleCreateCmd.Flags().String("timezone", "UTC", "IANA timezone for monthly recurrence")
	for _, name := range []string{"room", "owner", "message", "at"} {
		_ = scheduleCreateCmd.MarkFlagRequired(name)
	}

	scheduleListCmd.Flags().String("owner", "", "list the pending records of this user")
	scheduleListCmd.Flags().String("room", "", "list the pending records of this room")

	scheduleCmd.AddCommand(scheduleCreateCmd, scheduleListCmd)
	rootCmd.AddCommand(scheduleCmd)
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Create and list scheduled messages",
}

var scheduleCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Schedule a message on behalf of a room member",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
		flags := cmd.Flags()
		roomID, _ := flags.GetString("room")
		owner, _ := flags.GetString("owner")
		body, _ := flags.GetString("message")
		typ, _ := flags.GetString("type")
		at, _ := flags.GetString("at")
		repeat, _ := flags.GetString("repeat")
		tz, _ := flags.GetString("timezone")

		kind, err := domain.ParseMessageKind(typ)
		if err != nil {
			return err
		}
		recurrence, err := schedule.ParseRecurrence(repeat)
		if err != nil {
			return err
		}
		when, err := time.Parse(time.RFC3339, at)
		if err != nil {
			return err
		}

		svc := services.NewScheduledService(e.scheduled, e.rooms)
		rec, err := svc.Create(cmd.Context(), owner, services.ScheduleInput{
			RoomID:      roomID,
			Payload:     schedule.Payload{Kind: kind, Body: body},
			ScheduledAt: when,
			Recurrence:  recurrence,
			Timezone:    tz,
		})
		if err != nil {
			return err
		}
		return printJSON(cmd, rec)
	}),
}

var scheduleListCmd = &cobra.Command{
	Use:   "list",
	Short: "List pending scheduled messages by owner or room",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
		owner, _ := cmd.Flags().GetString("owner")
		roomID, _ := cmd.Flags().GetString("room")

		var (
			items []schedule.ScheduledMessage
			err   error
		)
		switch {
		case roomID != "":
			items, err = e.scheduled.ListPendingByRoom(cmd.Context(), roomID)
		case owner != "":
			items, err = e.scheduled.ListByOwner(cmd.Context(), owner)
		default:
			items, err = e.scheduled.ListDue(cmd.Context(), time.Now().AddDate(100, 0, 0))
		}
		if err != nil {
			return err
		}
		return printJSON(cmd, items)
	}),
}
