package main

import (
	"github.com/spf13/cobra"

	"github.com/termfx/astmorph/core"
)

// scopeFlags are the file selection flags shared by find and replace.
type scopeFlags struct {
	include        []string
	exclude        []string
	language       string
	maxDepth       int
	maxFiles       int
	followSymlinks bool
	where          []string
}

func (s *scopeFlags) bind(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringSliceVarP(&s.include, "include", "i", nil, "only files matching these globs (doublestar syntax)")
	f.StringSliceVarP(&s.exclude, "exclude", "x", nil, "skip files matching these globs")
	f.StringVarP(&s.language, "lang", "l", "", "only this language (javascript, typescript)")
	f.IntVar(&s.maxDepth, "max-depth", 0, "maximum directory depth, 0 for unlimited")
	f.IntVar(&s.maxFiles, "max-files", 0, "maximum number of files, 0 for unlimited")
	f.BoolVar(&s.followSymlinks, "follow-symlinks", false, "follow symbolic links")
	f.StringArrayVarP(&s.where, "where", "w", nil, "capture constraint $name=regexp (repeatable)")
}

func (s *scopeFlags) scope(a *app, path string) core.FileScope {
	exclude := append(append([]string(nil), a.cfg.Files.Exclude...), s.exclude...)
	return core.FileScope{
		Path:           path,
		Include:        s.include,
		Exclude:        exclude,
		MaxDepth:       s.maxDepth,
		MaxFiles:       s.maxFiles,
		FollowSymlinks: s.followSymlinks,
		Language:       s.language,
	}
}

func pathArg(args []string, i int) string {
	if len(args) > i {
		return args[i]
	}
	return "."
}
