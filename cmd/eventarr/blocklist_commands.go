package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"eventarr/internal/api"
	"eventarr/internal/blocklist"
	"eventarr/internal/release"
)

func newBlocklistCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "blocklist",
		Short: "Inspect and edit blocked releases",
	}
	cmd.AddCommand(newBlocklistListCommand(ctx))
	cmd.AddCommand(newBlocklistAddCommand(ctx))
	cmd.AddCommand(newBlocklistRemoveCommand(ctx))
	return cmd
}

func newBlocklistListCommand(ctx *commandContext) *cobra.Command {
	var eventID int64
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blocked releases",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				entries, err := client.Blocklist(cmd.Context(), eventID)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.BlocklistResponse{Entries: entries})
				}
				printBlocklist(cmd.OutOrStdout(), entries)
				return nil
			})
		},
	}
	cmd.Flags().Int64Var(&eventID, "event", 0, "Only show entries for this event id")
	return cmd
}

func newBlocklistAddCommand(ctx *commandContext) *cobra.Command {
	var (
		infoHash string
		eventID  int64
		message  string
		reason   string
		protocol string
	)
	cmd := &cobra.Command{
		Use:   "add <release-title>",
		Short: "Block a release so searches never select it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := api.BlockRequest{
				Release: release.Release{
					Title:    strings.TrimSpace(args[0]),
					InfoHash: strings.TrimSpace(infoHash),
					Protocol: release.ParseProtocol(protocol),
				},
				EventID: eventID,
				Reason:  blocklist.Reason(strings.TrimSpace(reason)),
				Message: message,
			}
			return ctx.withClient(func(client *api.Client) error {
				entry, err := client.Block(cmd.Context(), req)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.BlockResponse{Entry: entry})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Blocked %s (%s)\n", entry.Title, entry.ContentHash)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&infoHash, "info-hash", "", "Torrent info hash of the release")
	cmd.Flags().StringVar(&protocol, "protocol", "torrent", "Release protocol (torrent or usenet)")
	cmd.Flags().Int64Var(&eventID, "event", 0, "Event the block applies to")
	cmd.Flags().StringVar(&message, "message", "", "Why the release is blocked")
	cmd.Flags().StringVar(&reason, "reason", string(blocklist.ReasonManual), "Block reason")
	return cmd
}

func newBlocklistRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <content-hash>",
		Short: "Unblock a release",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.Client) error {
				if err := client.Unblock(cmd.Context(), hash); err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.UnblockResponse{Removed: true})
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Unblocked %s\n", hash)
				return nil
			})
		},
	}
}

func printBlocklist(w io.Writer, entries []blocklist.Entry) {
	if len(entries) == 0 {
		fmt.Fprintln(w, "Blocklist is empty")
		return
	}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		event := "-"
		if e.EventID > 0 {
			event = strconv.FormatInt(e.EventID, 10)
		}
		rows = append(rows, []string{
			e.ContentHash,
			truncate(e.Title, 48),
			event,
			string(e.Reason),
			formatAge(e.BlockedAt),
			truncate(orDash(e.Message), 32),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Hash", "Title", "Event", "Reason", "Blocked", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignLeft, alignLeft},
	))
}
