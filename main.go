// duoreadme generates a project's README in several languages at once: it
// reads the project, asks a text-generation backend for one document per
// language, and writes the primary language to README.md and the rest to
// docs/.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/config"
	"github.com/duoreadme/duoreadme/i18n"
	"github.com/duoreadme/duoreadme/langmeta"
	"github.com/duoreadme/duoreadme/logging"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ---------------------------------------------------------------------------
// Global flags
// ---------------------------------------------------------------------------

type globalOptions struct {
	root     string
	config   string
	debug    bool
	logLevel string
	logFile  string
}

var globals globalOptions

// app is what every command needs once flags are parsed.
type app struct {
	root string
	cfg  *config.File
	reg  *langmeta.Registry
	log  *zap.Logger
	done func()
}

func loadApp(g globalOptions) (*app, error) {
	root := g.root
	if root == "" {
		root = "."
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, fmt.Errorf("project root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("project root %s is not a directory", abs)
	}

	cfg, err := config.Load(abs, g.config)
	if err != nil {
		return nil, err
	}
	if g.logLevel != "" {
		cfg.Log.Level = g.logLevel
	}
	if g.logFile != "" {
		cfg.Log.File = g.logFile
	}

	log, done, err := logging.New(logging.Options{
		Level:   cfg.Log.Level,
		Debug:   g.debug,
		File:    cfg.Log.File,
		Version: version,
	})
	if err != nil {
		return nil, err
	}
	if cfg.Path() != "" {
		log.Debug("loaded config", zap.String("path", cfg.Path()))
	}
	log.Debug("message locale", zap.String("lang", i18n.Lang()))

	return &app{root: abs, cfg: cfg, reg: langmeta.Default(), log: log, done: done}, nil
}

func (a *app) close() {
	if a.done != nil {
		a.done()
	}
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "duoreadme",
		Short: i18n.T("Generate a project README in several languages"),
		Long: `duoreadme reads a project (README.md plus its most important source files),
asks a text-generation backend for a README in every requested language and
writes them out: the primary language to README.md, every other language to
docs/README.<lang>.md.

Commands:
  gen       Generate README files (alias: translate)
  parse     Write README files from a saved raw response
  langs     List supported languages
  preview   Render a generated README in the terminal
  config    Show or create the configuration file
  auth      Manage stored provider credentials

Providers:
  lke       Tencent LKE bot (streamed, default)
  openai    OpenAI-compatible chat completions
  gemini    Google Gemini API
  ollama    Local Ollama server`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&globals.root, "root", ".", i18n.T("Project root directory"))
	pf.StringVar(&globals.config, "config", "", i18n.T("Config file (default: config.yaml, config.yml, .config.yaml or .duoreadme.yaml in the root)"))
	pf.BoolVar(&globals.debug, "debug", false, i18n.T("Verbose diagnostic logging"))
	pf.StringVar(&globals.logLevel, "log-level", "", i18n.T("Log level: debug, info, warn, error"))
	pf.StringVar(&globals.logFile, "log-file", "", i18n.T("Also write JSON logs to this file"))

	root.AddCommand(
		newGenCmd(),
		newParseCmd(),
		newLangsCmd(),
		newPreviewCmd(),
		newConfigCmd(),
		newAuthCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, errNothingSaved) {
			logError("%v", err)
		}
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version (display version information)
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: i18n.T("Show version information"),
		Long:  `Display version, commit hash, and build date.`,
		Run: func(cmd *cobra.Command, args []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "duoreadme version %s\n", version)
			fmt.Fprintf(out, "  commit:    %s\n", commit)
			fmt.Fprintf(out, "  built:     %s\n", date)
		},
	}
}
