package cmd

import (
	"chatify-realtime/internal/domain/room"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	roomCreateCmd.Flags().String("id", "", "room id (random when empty)")
	roomCreateCmd.Flags().StringSlice("member", nil, "member user id, repeatable")
	roomCreateCmd.Flags().String("name", "", "display name")
	roomCreateCmd.Flags().Bool("group", false, "mark the room as a group")
	_ = roomCreateCmd.MarkFlagRequired("member")

	roomCmd.AddCommand(roomCreateCmd, roomShowCmd)
	rootCmd.AddCommand(roomCmd)
}

var roomCmd = &cobra.Command{
	Use:   "room",
	Short: "Create and inspect rooms",
}

var roomCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an empty room",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
		id, _ := cmd.Flags().GetString("id")
		members, _ := cmd.Flags().GetStringSlice("member")
		name, _ := cmd.Flags().GetString("name")
		group, _ := cmd.Flags().GetBool("group")
		if id == "" {
			id = uuid.NewString()
		}

		rm := room.Room{ID: id, IsGroup: group, Members: members, DisplayName: name}
		if err := e.rooms.Create(cmd.Context(), rm); err != nil {
			return err
		}
		return printJSON(cmd, rm)
	}),
}

var roomShowCmd = &cobra.Command{
	Use:   "show [room-id]",
	Short: "Print a room record",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		rm, err := e.rooms.GetRoom(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return printJSON(cmd, rm)
	}),
}
