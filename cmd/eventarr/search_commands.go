package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"eventarr/internal/api"
	"eventarr/internal/searchqueue"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var part string
	var wait bool
	var timeout time.Duration

	cmd := &cobra.Command{
		Use:   "search <event-id>",
		Short: "Queue a release search for a catalog event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			eventID, err := parseEventID(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				id, err := client.Search(cmd.Context(), eventID, part)
				if err != nil {
					return err
				}
				if !wait {
					if ctx.jsonOutput() {
						return writeJSON(cmd, api.SearchResponse{ItemID: id})
					}
					fmt.Fprintf(cmd.OutOrStdout(), "Queued search %s for event %d\n", id, eventID)
					return nil
				}
				item, err := waitForItem(cmd.Context(), client, id, timeout)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, item)
				}
				printItem(cmd.OutOrStdout(), item)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&part, "part", "", "Only accept releases for this part (e.g. \"Main Card\")")
	cmd.Flags().BoolVar(&wait, "wait", false, "Wait for the search to finish and print the outcome")
	cmd.Flags().DurationVar(&timeout, "timeout", 2*time.Minute, "How long --wait waits")
	return cmd
}

func newQueueCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "queue",
		Short: "Show pending, active and recently completed searches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				snap, err := client.Queue(cmd.Context())
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, snap)
				}
				printSnapshot(cmd.OutOrStdout(), snap)
				return nil
			})
		},
	}
}

func newShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <item-id>",
		Short: "Show one search item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(func(client *api.Client) error {
				item, err := client.Item(cmd.Context(), strings.TrimSpace(args[0]))
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, item)
				}
				printItem(cmd.OutOrStdout(), item)
				return nil
			})
		},
	}
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <item-id>",
		Short: "Cancel a queued or running search",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.TrimSpace(args[0])
			return ctx.withClient(func(client *api.Client) error {
				cancelled, err := client.Cancel(cmd.Context(), id)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, api.CancelResponse{Cancelled: cancelled})
				}
				if cancelled {
					fmt.Fprintf(cmd.OutOrStdout(), "Cancelled %s\n", id)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "%s already finished\n", id)
				}
				return nil
			})
		},
	}
}

func parseEventID(raw string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid event id %q", raw)
	}
	return id, nil
}

func waitForItem(ctx context.Context, client *api.Client, id string, timeout time.Duration) (searchqueue.Item, error) {
	waitCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		item, err := client.Item(waitCtx, id)
		if err != nil {
			return searchqueue.Item{}, err
		}
		if item.Status.Terminal() {
			return item, nil
		}
		select {
		case <-waitCtx.Done():
			return item, fmt.Errorf("search %s still %s after %s", id, item.Status, timeout)
		case <-ticker.C:
		}
	}
}

func printSnapshot(w io.Writer, snap searchqueue.Snapshot) {
	fmt.Fprintf(w, "Pending: %d  Active: %d/%d\n", snap.PendingCount, snap.ActiveCount, snap.MaxConcurrent)
	items := make([]searchqueue.Item, 0, len(snap.Active)+len(snap.Pending)+len(snap.RecentlyCompleted))
	items = append(items, snap.Active...)
	items = append(items, snap.Pending...)
	items = append(items, snap.RecentlyCompleted...)
	if len(items) == 0 {
		fmt.Fprintln(w, "Queue is empty")
		return
	}
	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, []string{
			item.ID,
			truncate(item.EventTitle, 32),
			orDash(item.Part),
			statusLabel(w, item.Status),
			strconv.Itoa(item.ReleasesFound),
			formatAge(item.QueuedAt),
			truncate(item.Message, 48),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"ID", "Event", "Part", "Status", "Found", "Queued", "Message"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignRight, alignLeft, alignLeft},
	))
}

func printItem(w io.Writer, item searchqueue.Item) {
	fmt.Fprintf(w, "Item:     %s\n", item.ID)
	fmt.Fprintf(w, "Event:    %s (%d)\n", item.EventTitle, item.EventID)
	if item.Part != "" {
		fmt.Fprintf(w, "Part:     %s\n", item.Part)
	}
	fmt.Fprintf(w, "Status:   %s\n", statusLabel(w, item.Status))
	fmt.Fprintf(w, "Queued:   %s\n", formatAge(item.QueuedAt))
	if item.CompletedAt != nil {
		fmt.Fprintf(w, "Finished: %s\n", formatAge(*item.CompletedAt))
	}
	fmt.Fprintf(w, "Found:    %d releases (%d unmatched, %d rejected)\n",
		item.ReleasesFound, item.Detail.UnmatchedReleases, item.Detail.RejectedReleases)
	fmt.Fprintf(w, "Sources:  %d queried, %d failed, %d skipped\n",
		item.Detail.SourcesQueried, item.Detail.SourcesFailed, item.Detail.SourcesSkipped)
	if sel := item.SelectedRelease; sel != nil {
		fmt.Fprintf(w, "Selected: %s\n", sel.Release.Title)
		fmt.Fprintf(w, "          %s, %s, score %d, pack %s\n",
			orDash(sel.Evaluation.QualityName), formatBytes(sel.Release.SizeBytes), sel.Evaluation.TotalScore, yesNo(sel.IsPack))
		if sel.Grabbed {
			fmt.Fprintf(w, "          grabbed as %s\n", sel.DownloadID)
		}
	}
	if item.Message != "" {
		fmt.Fprintf(w, "Message:  %s\n", item.Message)
	}
}
