package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"eventarr/internal/catalog"
	"eventarr/internal/config"
	"eventarr/internal/fileutil"
)

func newCatalogCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Manage the event and quality profile catalog",
	}
	cmd.AddCommand(newCatalogInitCommand(ctx))
	cmd.AddCommand(newCatalogShowCommand(ctx))
	return cmd
}

func newCatalogInitCommand(ctx *commandContext) *cobra.Command {
	var path string
	var overwrite bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the sample catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(path)
			if target == "" {
				cfg, err := ctx.ensureConfig()
				if err != nil {
					return err
				}
				target = cfg.Paths.CatalogFile
			}
			target, err := config.ExpandPath(target)
			if err != nil {
				return err
			}
			if _, err := os.Stat(target); err == nil && !overwrite {
				return fmt.Errorf("catalog already exists at %s (use --overwrite to replace it)", target)
			} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("stat catalog: %w", err)
			}
			if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
				return fmt.Errorf("create catalog directory: %w", err)
			}
			if err := fileutil.WriteAtomic(target, []byte(catalog.SampleYAML()), 0o644); err != nil {
				return fmt.Errorf("write catalog: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample catalog to %s\n", target)
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "Destination (defaults to paths.catalog_file)")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing catalog")
	return cmd
}

func newCatalogShowCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Validate the catalog file and list its profiles and events",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			static, err := catalog.LoadStatic(cfg.Paths.CatalogFile)
			if err != nil {
				return err
			}
			profiles := static.Profiles()
			events := static.List(cmd.Context())
			if ctx.jsonOutput() {
				return writeJSON(cmd, map[string]any{"profiles": profiles, "events": events})
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Catalog: %s\n", cfg.Paths.CatalogFile)
			profileRows := make([][]string, 0, len(profiles))
			for _, p := range profiles {
				profileRows = append(profileRows, []string{
					strconv.FormatInt(p.ID, 10),
					p.Name,
					strconv.Itoa(len(p.AllowedQualityIDs)),
					strconv.FormatInt(p.CutoffQualityID, 10),
					strconv.Itoa(p.MinFormatScore),
					strconv.Itoa(len(p.FormatItems)),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Profile", "Qualities", "Cutoff", "Min Score", "Formats"},
				profileRows,
				[]columnAlignment{alignRight, alignLeft, alignRight, alignRight, alignRight, alignRight},
			))

			eventRows := make([][]string, 0, len(events))
			for _, ev := range events {
				eventRows = append(eventRows, []string{
					strconv.FormatInt(ev.ID, 10),
					truncate(ev.Title, 40),
					orDash(ev.League),
					ev.Date.Format("2006-01-02"),
					yesNo(ev.Monitored),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Event", "League", "Date", "Monitored"},
				eventRows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft},
			))
			return nil
		},
	}
}
