// Command eventarrd runs the eventarr daemon in the foreground. It is
// equivalent to "eventarr daemon run" and suits service managers that expect
// a dedicated binary.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"eventarr/internal/config"
	"eventarr/internal/daemonrun"
)

func main() {
	_ = godotenv.Load()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := newCommand().ExecuteContext(ctx); err != nil {
		log.Fatalf("eventarrd: %v", err)
	}
}

func newCommand() *cobra.Command {
	var (
		configPath string
		logLevel   string
		probe      bool
	)
	cmd := &cobra.Command{
		Use:           "eventarrd",
		Short:         "Run the eventarr daemon",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, _, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return daemonrun.Run(cmd.Context(), cfg, daemonrun.Options{
				LogLevel:     logLevel,
				ProbeSources: probe,
			})
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Configuration file path")
	cmd.Flags().StringVar(&logLevel, "log-level", "", "Override logging.level")
	cmd.Flags().BoolVar(&probe, "probe-sources", false, "Query every enabled source during startup checks")
	return cmd
}
