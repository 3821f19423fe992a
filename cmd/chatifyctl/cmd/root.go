package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"chatify-realtime/config"
	"chatify-realtime/internal/app"
	"chatify-realtime/internal/events"
	chatify_redis "chatify-realtime/internal/redis"
	"chatify-realtime/internal/repository"
	"chatify-realtime/internal/services"
	"chatify-realtime/internal/websocket"
	"chatify-realtime/pkg/logger"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "chatifyctl",
	Short: "Operator tool for chatify rooms and scheduled messages",
	Long: `chatifyctl talks to the same document store as the API server. It can
seed rooms, inspect pages and run the scheduled message dispatcher by hand.`,
	SilenceUsage: true,
}

// Execute runs the root command. It only needs to happen once.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")
}

// env is everything a command needs to reach the store.
type env struct {
	cfg       *config.Config
	log       *logger.Logger
	backends  *app.Backends
	rooms     repository.RoomRepository
	scheduled repository.ScheduledMessageRepository
	registry  *services.RoomRegistry
}

func openEnv(cmd *cobra.Command) (*env, error) {
	cfg := config.LoadConfig()
	mode := logger.NopMode
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		mode = cfg.LogMode
	}
	l := logger.New(mode)

	backends, err := app.OpenBackends(cmd.Context(), cfg, l)
	if err != nil {
		return nil, err
	}

	// Nobody is connected to this process; events only reach clients when
	// they go through Redis.
	hub := websocket.NewHub()
	var broadcaster events.Broadcaster = events.NewHubBroadcaster(hub)
	if cfg.BroadcastRedis {
		broadcaster = events.NewRedisBroadcaster(chatify_redis.NewPublisher(backends.Redis), hub)
	}

	rooms := repository.NewRoomRepository(backends.Store)
	return &env{
		cfg:       cfg,
		log:       l,
		backends:  backends,
		rooms:     rooms,
		scheduled: repository.NewScheduledMessageRepository(backends.Store),
		registry: services.NewRoomRegistry(backends.Store, rooms, broadcaster, services.SessionOptions{
			PageSize:       cfg.PageSize,
			StoreTimeout:   cfg.StoreTimeout,
			PublishTimeout: cfg.PublishTimeout,
			Logger:         l,
		}),
	}, nil
}

func (e *env) Close() {
	_ = e.log.Sync()
	e.backends.Close()
}

// withEnv wraps a RunE body with env setup and teardown.
func withEnv(fn func(cmd *cobra.Command, e *env, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		e, err := openEnv(cmd)
		if err != nil {
			return err
		}
		defer e.Close()
		return fn(cmd, e, args)
	}
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
