package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/termfx/astmorph/core"
)

func newLanguagesCommand(a *app) *cobra.Command {
	var scan string
	cmd := &cobra.Command{
		Use:   "languages",
		Short: "List supported languages, or count them under a directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var counts map[string]int
			if scan != "" {
				var err error
				counts, err = core.NewFileWalker().LanguageStats(cmd.Context(), core.FileScope{
					Path:    scan,
					Exclude: a.cfg.Files.Exclude,
				})
				if err != nil {
					return err
				}
			}

			type row struct {
				Language   string   `json:"language"`
				Extensions []string `json:"extensions"`
				Files      int      `json:"files,omitempty"`
			}
			var rows []row
			for _, lang := range a.registry.Languages() {
				p, _ := a.registry.Get(lang)
				rows = append(rows, row{Language: lang, Extensions: p.Extensions(), Files: counts[lang]})
			}
			if a.jsonOut {
				return writeJSON(a.out, rows)
			}

			tbl := table.NewWriter()
			tbl.SetOutputMirror(a.out)
			tbl.SetStyle(table.StyleLight)
			tbl.Style().Options.DrawBorder = false
			header := table.Row{"Language", "Extensions"}
			if counts != nil {
				header = append(header, "Files")
			}
			tbl.AppendHeader(header)
			for _, r := range rows {
				line := table.Row{r.Language, strings.Join(r.Extensions, " ")}
				if counts != nil {
					line = append(line, humanize.Comma(int64(r.Files)))
				}
				tbl.AppendRow(line)
			}
			tbl.Render()

			if other := unsupported(counts, a.registry.Languages()); other > 0 {
				fmt.Fprintf(a.out, "\n%s other files skipped\n", humanize.Comma(int64(other)))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&scan, "scan", "", "count files per language under this directory")
	return cmd
}

func unsupported(counts map[string]int, supported []string) int {
	var n int
	for lang, c := range counts {
		i := sort.SearchStrings(supported, lang)
		if i == len(supported) || supported[i] != lang {
			n += c
		}
	}
	return n
}
