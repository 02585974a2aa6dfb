// Command astmorph searches and rewrites JavaScript and TypeScript sources
// with patterns written in the language itself.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCommand(newApp(os.Stdout)).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", red("Error:"), err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "astmorph",
		Short: "Structural search and replace for JavaScript and TypeScript",
		Long: `astmorph matches code against patterns written in the target language.

  $name     captures one node (or the text of a literal)
  $_name    captures a run of list elements, possibly empty
  $name;    in statement position captures a whole statement

Examples:
  astmorph find 'console.log($_args)' src
  astmorph replace 'foo($a, $b)' 'bar($b, $a)' --where '$a=^\d+$' src
  astmorph replace 'var $x = $v;' 'let $x = $v;' --stage src`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error { return a.init() },
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default astmorph.yaml in . or $HOME)")
	flags.StringVar(&a.dsn, "db", "", "staging database DSN or libsql:// URL")
	flags.BoolVarP(&a.verbose, "verbose", "v", false, "debug logging")
	flags.BoolVar(&a.jsonOut, "json", false, "print results as JSON")
	flags.BoolVar(&a.noColor, "no-color", false, "disable colored output")

	root.AddCommand(
		newFindCommand(a),
		newReplaceCommand(a),
		newStagesCommand(a),
		newTransactionsCommand(a),
		newLanguagesCommand(a),
	)
	return root
}
