package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"eventarr/internal/api"
)

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "download",
		Short: "Report download client outcomes for grabbed releases",
	}
	cmd.AddCommand(newDownloadFailedCommand(ctx))
	cmd.AddCommand(newDownloadImportFailedCommand(ctx))
	return cmd
}

func newDownloadFailedCommand(ctx *commandContext) *cobra.Command {
	var search bool
	cmd := &cobra.Command{
		Use:   "failed <download-id>",
		Short: "Mark a download as failed and block its release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.MarkFailed(cmd.Context(), id, search)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.FailedResponse{Result: result})
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Blocked %s\n", result.Entry.Title)
				if result.SearchItemID != "" {
					fmt.Fprintf(out, "Queued replacement search %s\n", result.SearchItemID)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&search, "search", false, "Queue a replacement search")
	return cmd
}

func newDownloadImportFailedCommand(ctx *commandContext) *cobra.Command {
	var message string
	cmd := &cobra.Command{
		Use:   "import-failed <download-id>",
		Short: "Record a failed import attempt",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.Client) error {
				grab, err := client.ImportFailed(cmd.Context(), id, message)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.GrabResponse{Grab: grab})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s: %s after %d import attempts\n", grab.DownloadID, grab.Status, grab.ImportAttempts)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&message, "message", "", "Import error reported by the media manager")
	return cmd
}
