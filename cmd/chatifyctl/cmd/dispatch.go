package cmd

import (
	"chatify-realtime/internal/scheduler"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(dispatchCmd)
}

var dispatchCmd = &cobra.Command{
	Use:   "dispatch",
	Short: "Run one scheduled message dispatch cycle and print its outcome",
	Args:  cobra.NoArgs,
	RunE: withEnv(func(cmd *cobra.Command, e *env, _ []string) error {
		res, err := scheduler.NewProcessor(e.scheduled, e.registry, e.log).RunOnce(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(cmd, res)
	}),
}
