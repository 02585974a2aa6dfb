package main

import (
	"errors"
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/termfx/astmorph/models"
	"github.com/termfx/astmorph/staging"
)

func newStagesCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stages",
		Short: "Review and apply staged rewrites",
	}
	cmd.AddCommand(
		newStagesListCommand(a),
		newStagesShowCommand(a),
		newStagesApplyCommand(a),
		newStagesDropCommand(a),
		newStagesCleanupCommand(a),
	)
	return cmd
}

func newStagesListCommand(a *app) *cobra.Command {
	var (
		filter staging.Filter
		all    bool
	)
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stages, pending ones by default",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, closeStore, err := a.staging()
			if err != nil {
				return err
			}
			defer closeStore()

			if !all && filter.Status == "" {
				filter.Status = models.StatusPending
			}
			stages, err := mgr.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, stages)
			}
			printStages(a, stages)
			return nil
		},
	}
	f := cmd.Flags()
	f.StringVar(&filter.SessionID, "session", "", "only stages of this session")
	f.StringVar(&filter.Status, "status", "", "only stages with this status (pending, applied, expired)")
	f.StringVar(&filter.FilePath, "file", "", "only stages of this file")
	f.BoolVarP(&all, "all", "a", false, "include applied and expired stages")
	return cmd
}

func printStages(a *app, stages []models.Stage) {
	if len(stages) == 0 {
		fmt.Fprintf(a.out, "%s no stages\n", yellow("→"))
		return
	}

	tbl := table.NewWriter()
	tbl.SetOutputMirror(a.out)
	tbl.SetStyle(table.StyleLight)
	tbl.Style().Options.DrawBorder = false
	tbl.Style().Options.SeparateColumns = false
	tbl.AppendHeader(table.Row{"ID", "Session", "File", "Matches", "Status", "Created", "Expires"})
	for _, s := range stages {
		tbl.AppendRow(table.Row{
			shortID(s.ID),
			shortID(s.SessionID),
			relPath(s.FilePath),
			s.MatchCount,
			statusText(s.Status),
			humanize.Time(s.CreatedAt),
			humanize.Time(s.ExpiresAt),
		})
	}
	tbl.AppendFooter(table.Row{fmt.Sprintf("Total: %d", len(stages))})
	tbl.Render()
}

func statusText(status string) string {
	switch status {
	case models.StatusPending:
		return yellow(status)
	case models.StatusApplied:
		return green(status)
	default:
		return dim(status)
	}
}

func newStagesShowCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "show ID",
		Short: "Show a stage and its diff",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeStore, err := a.staging()
			if err != nil {
				return err
			}
			defer closeStore()

			stage, err := mgr.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, stage)
			}
			fmt.Fprintf(a.out, "%s %s\n", bold("Stage"), stage.ID)
			fmt.Fprintf(a.out, "  file:        %s\n", stage.FilePath)
			fmt.Fprintf(a.out, "  pattern:     %s\n", stage.Pattern)
			fmt.Fprintf(a.out, "  replacement: %s\n", stage.Replacement)
			fmt.Fprintf(a.out, "  status:      %s\n", statusText(stage.Status))
			fmt.Fprintf(a.out, "  expires:     %s\n\n", humanize.Time(stage.ExpiresAt))
			printDiff(a, stage.Diff)
			return nil
		},
	}
}

func newStagesApplyCommand(a *app) *cobra.Command {
	var (
		all       bool
		sessionID string
		appliedBy string
	)
	cmd := &cobra.Command{
		Use:   "apply [ID...]",
		Short: "Write staged rewrites to their files",
		Long: `Write staged rewrites to their files. A stage is only applied while its
file still has the content it was computed from; edited files are refused.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !all && sessionID == "" {
				return errors.New("give stage IDs, --session or --all")
			}
			mgr, closeStore, err := a.staging()
			if err != nil {
				return err
			}
			defer closeStore()

			var (
				applies []models.Apply
				errs    []error
			)
			if len(args) == 0 {
				applies, err = mgr.ApplyAll(cmd.Context(), sessionID, appliedBy)
				if err != nil {
					errs = append(errs, err)
				}
			}
			for _, id := range args {
				apply, err := mgr.Apply(cmd.Context(), id, appliedBy)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				applies = append(applies, *apply)
			}

			if a.jsonOut {
				if err := writeJSON(a.out, applies); err != nil {
					return err
				}
			} else {
				for _, ap := range applies {
					fmt.Fprintf(a.out, "%s applied %s\n", green("✓"), shortID(ap.StageID))
				}
				fmt.Fprintf(a.out, "\n%s %s\n", bold("Applied"), plural(len(applies), "stage", "stages"))
			}
			return errors.Join(errs...)
		},
	}
	f := cmd.Flags()
	f.BoolVarP(&all, "all", "a", false, "apply every pending stage")
	f.StringVar(&sessionID, "session", "", "apply the pending stages of this session")
	f.StringVar(&appliedBy, "by", "cli", "name recorded on the apply")
	return cmd
}

func newStagesDropCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "drop ID...",
		Short: "Delete stages that were not applied",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, closeStore, err := a.staging()
			if err != nil {
				return err
			}
			defer closeStore()

			var errs []error
			for _, id := range args {
				if err := mgr.Drop(cmd.Context(), id); err != nil {
					errs = append(errs, err)
					continue
				}
				fmt.Fprintf(a.out, "%s dropped %s\n", green("✓"), id)
			}
			return errors.Join(errs...)
		},
	}
}

func newStagesCleanupCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup",
		Short: "Mark pending stages past their expiry as expired",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			mgr, closeStore, err := a.staging()
			if err != nil {
				return err
			}
			defer closeStore()

			n, err := mgr.Cleanup(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s %s expired\n", bold("Cleanup:"), plural(int(n), "stage", "stages"))
			return nil
		},
	}
}
