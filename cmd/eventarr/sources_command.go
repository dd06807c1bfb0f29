package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"eventarr/internal/api"
)

func newSourcesCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Show release source health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				sources, err := client.Sources(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.SourcesResponse{Sources: sources})
				}
				out := cmd.OutOrStdout()
				if len(sources) == 0 {
					fmt.Fprintln(out, "No sources configured")
					return nil
				}
				rows := make([][]string, 0, len(sources))
				for _, s := range sources {
					rows = append(rows, []string{
						s.Name,
						orDash(s.Protocol),
						availability(s.QueryAvailable, s.Health.QueryDisabledUntil),
						availability(s.GrabAvailable, s.Health.GrabDisabledUntil),
						strconv.Itoa(s.Health.ConsecutiveQueryFailures),
						strconv.Itoa(s.Health.ConsecutiveGrabFailures),
						truncate(orDash(s.Health.LastFailureReason), 40),
					})
				}
				fmt.Fprintln(out, renderTable(
					[]string{"Source", "Protocol", "Query", "Grab", "Query Fails", "Grab Fails", "Last Failure"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignRight, alignLeft},
				))
				return nil
			})
		},
	}
}

func availability(ok bool, until *time.Time) string {
	if ok {
		return "ok"
	}
	if until != nil {
		return "disabled until " + until.Local().Format("15:04:05")
	}
	return "disabled"
}
