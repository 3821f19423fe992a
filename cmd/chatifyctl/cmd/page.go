package cmd

import (
	"chatify-realtime/internal/services"

	"github.com/spf13/cobra"
)

func init() {
	pageCmd.Flags().String("before", "", "load the page preceding this page id")
	rootCmd.AddCommand(pageCmd)
}

var pageCmd = &cobra.Command{
	Use:   "page [room-id]",
	Short: "Print the latest page of a room, or the one before --before",
	Args:  cobra.ExactArgs(1),
	RunE: withEnv(func(cmd *cobra.Command, e *env, args []string) error {
		before, _ := cmd.Flags().GetString("before")
		ctx := cmd.Context()
		return e.registry.Do(ctx, args[0], func(s *services.RoomSession) error {
			page, err := s.LoadOlderPage(ctx, before)
			if err != nil {
				return err
			}
			return printJSON(cmd, page)
		})
	}),
}
