package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/termfx/astmorph/core"
)

func newFindCommand(a *app) *cobra.Command {
	var (
		sf      scopeFlags
		explain bool
	)
	cmd := &cobra.Command{
		Use:   "find PATTERN [PATH]",
		Short: "List the matches of a pattern",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			where, err := parseWhere(sf.where)
			if err != nil {
				return err
			}
			patterns, err := a.compile(args[0], sf.language)
			if err != nil {
				return err
			}
			if explain && !a.jsonOut {
				printExplain(a, patterns)
			}

			matches, err := a.processor(false).QueryFiles(cmd.Context(), sf.scope(a, pathArg(args, 1)), core.FindQuery{
				Pattern: args[0],
				Where:   where,
			})
			if err != nil {
				return err
			}
			if a.jsonOut {
				return writeJSON(a.out, matches)
			}
			printMatches(a, matches)
			return nil
		},
	}
	sf.bind(cmd)
	cmd.Flags().BoolVar(&explain, "explain", false, "show the pattern shape, the kinds it accepts and its captures")
	return cmd
}

func printExplain(a *app, patterns []compiled) {
	for _, c := range patterns {
		fmt.Fprintf(a.out, "%s %s pattern\n", bold(c.language+":"), c.pattern.Shape)
		fmt.Fprintf(a.out, "  kinds:    %s\n", strings.Join(c.pattern.Kinds(), ", "))
		if captures := c.pattern.Captures(); len(captures) > 0 {
			fmt.Fprintf(a.out, "  captures: %s\n", strings.Join(captures, ", "))
		}
	}
	fmt.Fprintln(a.out)
}

func printMatches(a *app, matches []core.FileMatch) {
	if len(matches) == 0 {
		fmt.Fprintf(a.out, "%s no matches\n", yellow("→"))
		return
	}
	files := make(map[string]bool)
	for _, m := range matches {
		files[m.FilePath] = true
		loc := fmt.Sprintf("%s:%d:%d", relPath(m.FilePath), m.Location.Line, m.Location.Column)
		fmt.Fprintf(a.out, "%s %s %s\n", cyan(loc), dim(m.Kind), firstLine(m.Content))
		for _, name := range captureNames(m.Match) {
			fmt.Fprintf(a.out, "    %s = %s\n", green(name), captureText(m.Match, name))
		}
	}
	fmt.Fprintf(a.out, "\n%s %s in %s\n", bold("Found"), plural(len(matches), "match", "matches"), plural(len(files), "file", "files"))
}

func captureNames(m core.Match) []string {
	names := make([]string, 0, len(m.Captures)+len(m.Lists))
	for name := range m.Captures {
		names = append(names, name)
	}
	for name := range m.Lists {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func captureText(m core.Match, name string) string {
	if text, ok := m.Captures[name]; ok {
		return firstLine(text)
	}
	return "[" + strings.Join(m.Lists[name], ", ") + "]"
}
