package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"eventarr/internal/api"
	"eventarr/internal/packmatch"
	"eventarr/internal/release"
)

type releaseFlags struct {
	size     string
	protocol string
	seeders  int
	flags    []string
	runtime  time.Duration
}

func (f *releaseFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.size, "size", "", "Release size (e.g. 6GiB or 6442450944)")
	cmd.Flags().StringVar(&f.protocol, "protocol", "torrent", "Release protocol (torrent or usenet)")
	cmd.Flags().IntVar(&f.seeders, "seeders", -1, "Seeder count for torrent releases")
	cmd.Flags().StringSliceVar(&f.flags, "flag", nil, "Indexer flag carried by the release (repeatable)")
	cmd.Flags().DurationVar(&f.runtime, "runtime", 0, "Expected runtime of the covered event")
}

func (f *releaseFlags) build(title string) (release.Release, error) {
	rel := release.Release{
		Title:        strings.TrimSpace(title),
		Protocol:     release.ParseProtocol(f.protocol),
		IndexerFlags: f.flags,
		Runtime:      f.runtime,
	}
	if rel.Title == "" {
		return release.Release{}, fmt.Errorf("release title is required")
	}
	if raw := strings.TrimSpace(f.size); raw != "" {
		size, err := humanize.ParseBytes(raw)
		if err != nil {
			return release.Release{}, fmt.Errorf("invalid --size %q: %w", raw, err)
		}
		rel.SizeBytes = int64(size)
	}
	if f.seeders >= 0 {
		seeders := f.seeders
		rel.Seeders = &seeders
	}
	return rel, nil
}

func newEvaluateCommand(ctx *commandContext) *cobra.Command {
	var rf releaseFlags
	var profileID int64
	var override bool

	cmd := &cobra.Command{
		Use:   "evaluate <release-title>",
		Short: "Score a release title against a quality profile",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := rf.build(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				resp, err := client.Evaluate(cmd.Context(), api.EvaluateRequest{
					Release:           rel,
					ProfileID:         profileID,
					OverrideBlocklist: override,
				})
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, resp)
				}
				printEvaluation(cmd.OutOrStdout(), resp)
				return nil
			})
		},
	}
	rf.register(cmd)
	cmd.Flags().Int64Var(&profileID, "profile", 0, "Quality profile id (defaults to the catalog default)")
	cmd.Flags().BoolVar(&override, "override", false, "Ignore the blocklist")
	return cmd
}

func newMatchCommand(ctx *commandContext) *cobra.Command {
	var rf releaseFlags
	var eventIDs []int64

	cmd := &cobra.Command{
		Use:   "match <release-title>",
		Short: "Map a release title onto catalog events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rel, err := rf.build(args[0])
			if err != nil {
				return err
			}
			return ctx.withClient(func(client *api.Client) error {
				result, err := client.Match(cmd.Context(), rel, eventIDs...)
				if err != nil {
					return err
				}
				if ctx.jsonOutput() {
					return writeJSON(cmd, result)
				}
				printMatch(cmd.OutOrStdout(), result)
				return nil
			})
		},
	}
	rf.register(cmd)
	cmd.Flags().Int64SliceVar(&eventIDs, "event", nil, "Restrict matching to these event ids")
	return cmd
}

func printEvaluation(w io.Writer, resp api.EvaluateResponse) {
	rel := resp.Release
	eval := resp.Evaluation
	fmt.Fprintf(w, "Release:  %s\n", rel.Title)
	fmt.Fprintf(w, "Parsed:   quality %s, source %s, group %s, kind %s\n",
		orDash(rel.Quality), orDash(rel.Source), orDash(rel.Group), orDash(string(rel.Kind)))
	fmt.Fprintf(w, "Approved: %s\n", yesNo(eval.Approved))
	fmt.Fprintf(w, "Score:    %d (quality %d, formats %d)\n", eval.TotalScore, eval.QualityScore, eval.CustomFormatScore)
	fmt.Fprintf(w, "Cutoff:   %s\n", yesNo(eval.MeetsCutoff))
	if len(eval.MatchedFormats) > 0 {
		rows := make([][]string, 0, len(eval.MatchedFormats))
		for _, m := range eval.MatchedFormats {
			rows = append(rows, []string{strconv.FormatInt(m.FormatID, 10), m.Name, strconv.Itoa(m.Score)})
		}
		fmt.Fprintln(w, renderTable([]string{"ID", "Format", "Score"}, rows, []columnAlignment{alignRight, alignLeft, alignRight}))
	}
	for _, reason := range eval.Rejections {
		fmt.Fprintf(w, "Rejected: %s\n", reason)
	}
}

func printMatch(w io.Writer, result packmatch.Result) {
	if len(result.Matches) == 0 {
		fmt.Fprintln(w, "No events matched")
		if result.NearestMiss > 0 {
			fmt.Fprintf(w, "Nearest miss confidence: %d\n", result.NearestMiss)
		}
		return
	}
	fmt.Fprintf(w, "Pack: %s  Events: %d  Best: %d\n", yesNo(result.IsPack), result.MatchedEventCount, result.BestConfidence)
	rows := make([][]string, 0, len(result.Matches))
	for _, m := range result.Matches {
		rows = append(rows, []string{
			strconv.FormatInt(m.EventID, 10),
			strconv.Itoa(m.Confidence),
			orDash(m.DetectedPart),
			truncate(strings.Join(m.Reasons, "; "), 60),
		})
	}
	fmt.Fprintln(w, renderTable(
		[]string{"Event", "Confidence", "Part", "Reasons"},
		rows,
		[]columnAlignment{alignRight, alignRight, alignLeft, alignLeft},
	))
}
