package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/fatih/color"
	"gorm.io/gorm"

	"github.com/termfx/astmorph/config"
	"github.com/termfx/astmorph/core"
	"github.com/termfx/astmorph/db"
	"github.com/termfx/astmorph/match"
	"github.com/termfx/astmorph/providers"
	"github.com/termfx/astmorph/providers/base"
	"github.com/termfx/astmorph/providers/javascript"
	"github.com/termfx/astmorph/providers/typescript"
	"github.com/termfx/astmorph/staging"
)

// app carries what every command needs once flags are parsed.
type app struct {
	out    io.Writer
	logOut io.Writer

	configPath string
	dsn        string
	verbose    bool
	jsonOut    bool
	noColor    bool

	cfg      *config.Config
	log      *slog.Logger
	registry *providers.Registry
	engines  []*base.Provider
}

func newApp(out io.Writer) *app {
	return &app{out: out, logOut: os.Stderr}
}

func (a *app) init() error {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return err
	}
	if a.dsn != "" {
		cfg.DB.DSN = a.dsn
	}
	if a.verbose {
		cfg.Log.Level = "debug"
	}
	if a.noColor {
		color.NoColor = true
	}

	log, err := config.NewLogger(cfg.Log, a.logOut)
	if err != nil {
		return err
	}
	a.cfg, a.log = cfg, log

	a.registry = providers.NewRegistry()
	a.engines = []*base.Provider{
		javascript.New(base.WithLogger(log)),
		typescript.New(base.WithLogger(log)),
	}
	for _, p := range a.engines {
		a.registry.Register(p)
	}
	return nil
}

func (a *app) processor(safe bool) *core.FileProcessor {
	opts := []core.ProcessorOption{
		core.WithLogger(a.log),
		core.WithWorkers(a.cfg.Files.Workers),
		core.WithTransactionDir(a.cfg.Files.TransactionDir),
	}
	fp := core.NewFileProcessor(a.registry.Files(), opts...)
	fp.EnableSafety(safe)
	return fp
}

// staging opens the stage store. The returned func closes it.
func (a *app) staging() (*staging.Manager, func(), error) {
	store, err := db.Connect(db.Config{
		DSN:       a.cfg.DB.DSN,
		AuthToken: a.cfg.DB.AuthToken,
		Debug:     a.cfg.DB.Debug,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("open staging database: %w", err)
	}

	writeCfg := core.DefaultAtomicConfig()
	writeCfg.BackupOriginal = false // stages keep the original
	writer := core.NewAtomicWriter(writeCfg)
	writer.SetLogger(a.log)

	mgr := staging.New(store, writer,
		staging.WithTTL(a.cfg.Staging.TTL),
		staging.WithLogger(a.log),
	)
	return mgr, func() { closeDB(a.log, store, writer) }, nil
}

func closeDB(log *slog.Logger, store *gorm.DB, writer *core.AtomicWriter) {
	writer.Cleanup()
	if err := db.Close(store); err != nil {
		log.Warn("close staging database", "error", err)
	}
}

// compiled is a pattern compiled for one language.
type compiled struct {
	language string
	pattern  *match.Pattern
	engine   *base.Provider
}

// compile compiles pattern for lang, or for every language when lang is
// empty. A pattern only one language can parse is fine; it fails when no
// language accepts it.
func (a *app) compile(pattern, lang string) ([]compiled, error) {
	var (
		out  []compiled
		errs []error
	)
	for _, p := range a.engines {
		if lang != "" && !strings.EqualFold(lang, p.Language()) {
			continue
		}
		pat, err := p.CompilePattern(pattern)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", p.Language(), err))
			continue
		}
		out = append(out, compiled{language: p.Language(), pattern: pat, engine: p})
	}
	if len(out) == 0 {
		if len(errs) == 0 {
			return nil, fmt.Errorf("unsupported language %q", lang)
		}
		return nil, errors.Join(errs...)
	}
	return out, nil
}

// compileTemplate compiles replacement for every language the pattern
// compiled for, so a broken replacement fails once instead of per file.
func compileTemplate(replacement string, patterns []compiled) error {
	for _, c := range patterns {
		if _, err := c.engine.CompileTemplate(replacement); err != nil {
			return fmt.Errorf("%s: %w", c.language, err)
		}
	}
	return nil
}

// parseWhere turns "$name=regexp" clauses into the predicate map. The
// leading $ may be omitted.
func parseWhere(clauses []string) (map[string]string, error) {
	if len(clauses) == 0 {
		return nil, nil
	}
	where := make(map[string]string, len(clauses))
	for _, c := range clauses {
		name, expr, ok := strings.Cut(c, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" || name == "$" {
			return nil, fmt.Errorf("invalid --where %q: want $name=regexp", c)
		}
		if !strings.HasPrefix(name, "$") {
			name = "$" + name
		}
		if _, err := regexp.Compile(expr); err != nil {
			return nil, fmt.Errorf("invalid --where %q: %w", c, err)
		}
		where[name] = expr
	}
	return where, nil
}
