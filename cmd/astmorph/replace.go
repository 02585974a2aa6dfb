package main

import (
	"fmt"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/termfx/astmorph/core"
)

func newReplaceCommand(a *app) *cobra.Command {
	var (
		sf       scopeFlags
		dryRun   bool
		stage    bool
		backup   bool
		showDiff bool
		unsafe   bool
	)
	cmd := &cobra.Command{
		Use:   "replace PATTERN REPLACEMENT [PATH]",
		Short: "Rewrite every match of a pattern",
		Long: `Rewrite every match of PATTERN with REPLACEMENT, substituting captures.

Files are written atomically. Unless --unsafe is given the whole run is one
transaction: if any file fails, every file already written is restored.
With --stage nothing is written; the rewrites are stored for review and
applied later with "astmorph stages apply".`,
		Args: cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := parseWhere(sf.where)
			if err != nil {
				return err
			}
			patterns, err := a.compile(args[0], sf.language)
			if err != nil {
				return err
			}
			if err := compileTemplate(args[1], patterns); err != nil {
				return err
			}

			root := pathArg(args, 2)
			op := core.FileTransformOp{
				TransformOp: core.TransformOp{Pattern: args[0], Replacement: args[1], Where: where},
				Scope:       sf.scope(a, root),
				DryRun:      dryRun || stage,
				Backup:      backup,
			}
			result, err := a.processor(a.cfg.Files.Safe && !unsafe).TransformFiles(cmd.Context(), op)
			if err != nil {
				return err
			}

			if stage {
				return stageResult(cmd, a, root, op, result)
			}
			if a.jsonOut {
				return writeJSON(a.out, result)
			}
			printTransform(a, result, op.DryRun, showDiff || op.DryRun)
			if failed := failedFiles(result); failed > 0 {
				return fmt.Errorf("%s failed", plural(failed, "file", "files"))
			}
			return nil
		},
	}
	sf.bind(cmd)
	f := cmd.Flags()
	f.BoolVarP(&dryRun, "dry-run", "n", false, "show the diff without writing")
	f.BoolVar(&stage, "stage", false, "store the rewrites for review instead of writing")
	f.BoolVar(&backup, "backup", false, "keep a .bak copy of every modified file")
	f.BoolVarP(&showDiff, "diff", "d", false, "print the diff of every modified file")
	f.BoolVar(&unsafe, "unsafe", false, "write files without a transaction")
	cmd.MarkFlagsMutuallyExclusive("dry-run", "stage")
	return cmd
}

func stageResult(cmd *cobra.Command, a *app, root string, op core.FileTransformOp, result *core.FileTransformResult) error {
	mgr, closeStore, err := a.staging()
	if err != nil {
		return err
	}
	defer closeStore()

	if abs, err := filepath.Abs(root); err == nil {
		root = abs
	}
	session, stages, err := mgr.StageResult(cmd.Context(), root, op.TransformOp, result)
	if err != nil {
		return err
	}
	if a.jsonOut {
		return writeJSON(a.out, stages)
	}
	for _, s := range stages {
		fmt.Fprintf(a.out, "%s %s %s\n", green("staged"), shortID(s.ID), relPath(s.FilePath))
	}
	fmt.Fprintf(a.out, "\n%s %s in session %s\n", bold("Staged"), plural(len(stages), "file", "files"), session.ID)
	if len(stages) > 0 {
		fmt.Fprintf(a.out, "Apply with: astmorph stages apply --session %s\n", session.ID)
	}
	return nil
}

func printTransform(a *app, result *core.FileTransformResult, dryRun, showDiff bool) {
	for _, d := range result.Files {
		switch {
		case d.Error != "":
			fmt.Fprintf(a.out, "%s %s: %s\n", red("✗"), relPath(d.FilePath), d.Error)
		case d.Modified:
			verb := "rewrote"
			if dryRun {
				verb = "would rewrite"
			}
			fmt.Fprintf(a.out, "%s %s %s %s (%s)\n", green("✓"), verb, relPath(d.FilePath),
				plural(d.MatchCount, "match", "matches"), sizeChange(d.OriginalSize, d.ModifiedSize))
			if showDiff && d.Diff != "" {
				printDiff(a, d.Diff)
			}
		}
	}

	summary := fmt.Sprintf("%s in %s of %s scanned",
		plural(result.TotalMatches, "match", "matches"),
		plural(result.FilesModified, "file", "files"),
		humanize.Comma(int64(result.FilesScanned)))
	if dryRun {
		summary += " (dry run)"
	}
	fmt.Fprintf(a.out, "\n%s %s\n", bold("Replaced"), summary)
	if result.TransactionID != "" {
		fmt.Fprintf(a.out, "Transaction %s\n", result.TransactionID)
	}
}

func failedFiles(result *core.FileTransformResult) int {
	var n int
	for _, d := range result.Files {
		if d.Error != "" {
			n++
		}
	}
	return n
}

func sizeChange(before, after int64) string {
	if before == after {
		return humanize.Bytes(uint64(after))
	}
	return humanize.Bytes(uint64(before)) + " → " + humanize.Bytes(uint64(after))
}
