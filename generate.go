package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/chunker"
	"github.com/duoreadme/duoreadme/config"
	"github.com/duoreadme/duoreadme/extract"
	"github.com/duoreadme/duoreadme/i18n"
	"github.com/duoreadme/duoreadme/lockfile"
	"github.com/duoreadme/duoreadme/normalize"
	"github.com/duoreadme/duoreadme/project"
	"github.com/duoreadme/duoreadme/provider"
	"github.com/duoreadme/duoreadme/router"
	"github.com/duoreadme/duoreadme/settings"
	"github.com/duoreadme/duoreadme/translate"
)

// RawResponseFile is written to the docs directory by --save-raw.
const RawResponseFile = "README_translation_response.txt"

// errNothingSaved makes the process exit 1 after the summary has already
// explained why.
var errNothingSaved = errors.New("no README files were saved")

// newSubmitter is replaced in tests.
var newSubmitter = provider.New

// ---------------------------------------------------------------------------
// gen
// ---------------------------------------------------------------------------

type genArgs struct {
	languages []string
	primary   string
	reduce    string

	provider     string
	model        string
	apiKey       string
	baseURL      string
	botAppKey    string
	visitorBizID string

	strict  bool
	saveRaw bool
	prune   bool
	dryRun  bool
	force   bool
}

func newGenCmd() *cobra.Command {
	var a genArgs

	cmd := &cobra.Command{
		Use:     "gen",
		Aliases: []string{"translate"},
		Short:   i18n.T("Generate README files in every requested language"),
		Long: `Read the project, submit it to the configured backend and write one README
per language.

Project text larger than translation.single_shot_limit is split into batches
of at most translation.batch_limit bytes at file boundaries and submitted one
after another. The first failing batch aborts the run.

Examples:
  duoreadme gen
  duoreadme gen -l en,zh-Hans,ja,German --primary en
  duoreadme gen --provider openai --model gpt-4.1-mini
  duoreadme gen --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(globals)
			if err != nil {
				return err
			}
			defer app.close()
			return runGenCommand(cmd.Context(), app, a)
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&a.languages, "languages", "l", nil, i18n.T("Languages to generate, as codes or names (default: translation.default_languages)"))
	f.StringVar(&a.primary, "primary", "", i18n.T("Language promoted to the root README (default: translation.primary_language)"))
	f.StringVar(&a.reduce, "reduce", "", i18n.T("How batch replies are combined: merge or last"))
	f.StringVar(&a.provider, "provider", "", i18n.T("Backend: lke, openai, gemini, ollama"))
	f.StringVar(&a.model, "model", "", i18n.T("Model name"))
	f.StringVar(&a.apiKey, "api-key", "", i18n.T("API key (openai, gemini)"))
	f.StringVar(&a.baseURL, "base-url", "", i18n.T("Endpoint URL"))
	f.StringVar(&a.botAppKey, "bot-app-key", "", i18n.T("LKE bot app key"))
	f.StringVar(&a.visitorBizID, "visitor-biz-id", "", i18n.T("LKE visitor id"))
	f.BoolVar(&a.strict, "strict", false, i18n.T("Keep only the requested languages from the reply"))
	f.BoolVar(&a.saveRaw, "save-raw", false, i18n.T("Also save the raw reply to docs/README_translation_response.txt"))
	f.BoolVar(&a.prune, "prune", false, i18n.T("Remove docs/README.*.md files for languages not in this run"))
	f.BoolVar(&a.dryRun, "dry-run", false, i18n.T("Show how the project would be submitted, then stop"))
	f.BoolVar(&a.force, "force", false, i18n.T("Regenerate even if nothing changed since the last run"))

	return cmd
}

func runGenCommand(ctx context.Context, app *app, a genArgs) error {
	res, err := runGenerate(ctx, app, a)
	if err != nil {
		if errors.Is(err, extract.ErrNoStructuredContent) {
			printSummary(os.Stderr, &router.Report{}, nil, "")
		}
		var be *translate.BatchError
		if errors.As(err, &be) {
			return fmt.Errorf(i18n.T("submission failed at batch %d of %d: %w"), be.Index, be.Total, be.Err)
		}
		return err
	}
	if res.outcome == nil {
		return nil
	}
	printSummary(os.Stderr, res.outcome.report, res.outcome.pruned, res.rawPath)
	return res.outcome.err()
}

// genResult describes what runGenerate did.
type genResult struct {
	skipped bool
	plan    []chunker.Batch
	rawPath string
	outcome *outcome
}

func runGenerate(ctx context.Context, app *app, a genArgs) (*genResult, error) {
	applyGenFlags(app.cfg, a)
	langs := app.languages(a.languages)
	primary := app.cfg.Primary(app.reg)

	snap, err := project.Read(ctx, app.root, app.projectOptions())
	if err != nil {
		return nil, err
	}
	text := snap.Text()
	if text == "" {
		return nil, translate.ErrNothingToSubmit
	}
	logInfo(i18n.N("Read %d file (%s of project text)", "Read %d files (%s of project text)", len(snap.Files)),
		len(snap.Files), humanBytes(len(text)))

	reduce, err := translate.ParseReduce(app.cfg.Translation.Reduce)
	if err != nil {
		return nil, err
	}
	opts := translate.Options{
		Languages:       langs,
		Registry:        app.reg,
		SingleShotLimit: app.cfg.Translation.SingleShotLimit,
		BatchLimit:      app.cfg.Translation.BatchLimit,
		Reduce:          reduce,
		Logger:          app.log,
	}

	if a.dryRun {
		plan := translate.New(nil, opts).Plan(text)
		limit := opts.SingleShotLimit
		if len(plan) > 1 {
			limit = opts.BatchLimit
		}
		printPlan(os.Stderr, plan, limit)
		return &genResult{plan: plan}, nil
	}

	lock, err := lockfile.Load(app.root)
	if err != nil {
		return nil, err
	}
	if !a.force && lock.UpToDate(app.root, fingerprint(snap, lock.Paths(), langs, primary)) {
		logSuccess(i18n.T("README files are up to date (use --force to regenerate)"))
		return &genResult{skipped: true}, nil
	}

	applyStoredCredentials(app.cfg)
	if err := app.cfg.Validate(); err != nil {
		return nil, err
	}
	pcfg := app.cfg.ProviderConfig()
	sub, err := newSubmitter(ctx, pcfg, app.log)
	if err != nil {
		return nil, err
	}

	logInfo(i18n.T("Generating %s with %s"), strings.Join(langs, ", "), pcfg.Name)
	opts.OnProgress = batchProgress
	result, err := translate.New(sub, opts).Run(ctx, text)
	if err != nil {
		return nil, err
	}

	res := &genResult{}
	if app.cfg.Output.SaveRaw || a.saveRaw {
		rel := path.Join(app.cfg.Output.DocsDir, RawResponseFile)
		if err := (router.FilePersister{Root: app.root}).Persist(rel, result.Raw); err != nil {
			logWarning(i18n.T("Could not save raw response: %v"), err)
		} else {
			res.rawPath = rel
		}
	}

	out, err := app.publish(ctx, result.Raw, publishOptions{
		languages: langs,
		primary:   primary,
		strict:    a.strict,
		prune:     a.prune,
	})
	if err != nil {
		return nil, err
	}
	res.outcome = out

	if len(out.report.Failed) == 0 && out.report.OK() {
		if err := app.recordRun(ctx, lock, out.report, langs, primary); err != nil {
			logWarning(i18n.T("Could not update %s: %v"), lockfile.LockFileName, err)
		}
	}
	return res, nil
}

// applyGenFlags lets command-line flags override the config file.
func applyGenFlags(cfg *config.File, a genArgs) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Translation.PrimaryLanguage, a.primary)
	set(&cfg.Translation.Reduce, a.reduce)
	set(&cfg.Provider.ID, a.provider)
	set(&cfg.Provider.Model, a.model)
	set(&cfg.Provider.APIKey, a.apiKey)
	set(&cfg.Provider.BaseURL, a.baseURL)
	set(&cfg.App.BotAppKey, a.botAppKey)
	set(&cfg.App.VisitorBizID, a.visitorBizID)
}

// applyStoredCredentials fills credentials still missing after flags, the
// environment and the config file from the credential store.
func applyStoredCredentials(cfg *config.File) {
	info := settings.Get(cfg.Provider.ID)
	if info == nil {
		return
	}
	switch {
	case info.IsBot():
		if cfg.App.BotAppKey == "" {
			cfg.App.BotAppKey = info.BotAppKey
		}
		if cfg.App.VisitorBizID == "" {
			cfg.App.VisitorBizID = info.VisitorBizID
		}
	case info.IsAPI():
		if cfg.Provider.APIKey == "" {
			cfg.Provider.APIKey = info.Key
		}
		if cfg.Provider.BaseURL == "" {
			cfg.Provider.BaseURL = info.BaseURL
		}
	}
}

// languages resolves the requested languages, warning about unknown ones.
func (a *app) languages(requested []string) []string {
	var codes, unknown []string
	if len(requested) > 0 {
		codes, unknown = config.CanonicalLanguages(a.reg, requested)
	} else {
		codes, unknown = a.cfg.Languages(a.reg)
	}
	for _, u := range unknown {
		logWarning(i18n.T("Unknown language %q ignored"), u)
	}
	return codes
}

func (a *app) projectOptions() project.Options {
	return project.Options{
		MaxFiles:    a.cfg.Project.MaxFiles,
		ReadmeLimit: a.cfg.Project.ReadmeLimit,
		FileLimit:   a.cfg.Project.FileLimit,
		Workers:     a.cfg.Project.Workers,
		Exclude:     []string{"/" + a.cfg.Output.DocsDir + "/", "/" + lockfile.LockFileName},
		Logger:      a.log,
	}
}

// fingerprint hashes the project text minus the files a previous run wrote,
// so a promoted README does not count as a source change.
func fingerprint(snap *project.Snapshot, outputs, langs []string, primary string) string {
	skip := make(map[string]bool, len(outputs))
	for _, p := range outputs {
		skip[p] = true
	}
	var b strings.Builder
	for _, f := range snap.Files {
		if skip[f.Path] {
			continue
		}
		b.WriteString(chunker.Marker(f.Path))
		b.WriteString(f.Content)
	}
	return lockfile.Fingerprint(b.String(), langs, primary)
}

// recordRun re-reads the project after a successful publish and stores the
// fingerprint the next run will compare against.
func (a *app) recordRun(ctx context.Context, lock *lockfile.LockFile, report *router.Report, langs []string, primary string) error {
	written := make(map[string]string, len(report.Saved))
	outputs := make([]string, 0, len(report.Saved))
	for _, s := range report.Saved {
		written[s.Path] = s.Content
		outputs = append(outputs, s.Path)
	}
	snap, err := project.Read(ctx, a.root, a.projectOptions())
	if err != nil {
		return err
	}
	lock.Record(fingerprint(snap, outputs, langs, primary), written)
	a.log.Debug("recorded run", zap.String("lock", lock.Summary()))
	return lock.Save()
}

// ---------------------------------------------------------------------------
// Extraction to persistence, shared by gen and parse
// ---------------------------------------------------------------------------

type publishOptions struct {
	languages []string
	primary   string
	strict    bool
	prune     bool
}

type outcome struct {
	content *normalize.Content
	report  *router.Report
	pruned  []string
}

// err reports zero saved files as a failure; partial success is not one.
func (o *outcome) err() error {
	if o.report.OK() {
		for _, f := range o.report.Failed {
			logWarning(i18n.T("%s (%s) was not saved: %s"), f.Path, f.Code, f.Err)
		}
		return nil
	}
	return errNothingSaved
}

func (a *app) publish(ctx context.Context, raw string, p publishOptions) (*outcome, error) {
	obj, err := extract.DefaultChain(a.log).Extract(raw)
	if err != nil {
		return nil, err
	}

	nopts := normalize.Options{Registry: a.reg, Logger: a.log}
	if p.strict {
		nopts.Allowed = p.languages
	}
	content := normalize.Normalize(obj, nopts)
	if n := len(content.Unroutable()); n > 0 {
		a.log.Debug("dropped unroutable languages", zap.Strings("keys", content.Unroutable()))
	}
	if _, ok := content.Get(p.primary); !ok && content.Len() > 0 {
		logWarning(i18n.T("The reply has no %s document; %s is left unchanged"), p.primary, a.cfg.Output.RootFilename)
	}

	assignments := router.Route(content, router.Options{
		Registry:     a.reg,
		Primary:      p.primary,
		DocsDir:      a.cfg.Output.DocsDir,
		RootFilename: a.cfg.Output.RootFilename,
	})
	report := router.Publish(ctx, assignments, router.FilePersister{Root: a.root}, a.log)

	out := &outcome{content: content, report: report}
	if p.prune && content.Len() > 0 {
		removed, err := router.Prune(a.root, a.cfg.Output.DocsDir, a.reg, content.Codes(), a.log)
		if err != nil {
			logWarning(i18n.T("Pruning stopped: %v"), err)
		}
		out.pruned = removed
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// parse
// ---------------------------------------------------------------------------

type parseArgs struct {
	languages []string
	primary   string
	strict    bool
	prune     bool
}

func newParseCmd() *cobra.Command {
	var a parseArgs

	cmd := &cobra.Command{
		Use:   "parse <raw-file>",
		Short: i18n.T("Write README files from a saved raw response"),
		Long: `Run extraction, language normalization and routing on a raw reply saved
earlier with --save-raw (or captured by hand), without contacting a backend.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(globals)
			if err != nil {
				return err
			}
			defer app.close()

			out, err := runParse(cmd.Context(), app, args[0], a)
			if err != nil {
				if errors.Is(err, extract.ErrNoStructuredContent) {
					printSummary(os.Stderr, &router.Report{}, nil, "")
				}
				return err
			}
			printSummary(os.Stderr, out.report, out.pruned, "")
			return out.err()
		},
	}

	f := cmd.Flags()
	f.StringSliceVarP(&a.languages, "languages", "l", nil, i18n.T("Languages kept with --strict"))
	f.StringVar(&a.primary, "primary", "", i18n.T("Language promoted to the root README"))
	f.BoolVar(&a.strict, "strict", false, i18n.T("Keep only the requested languages from the reply"))
	f.BoolVar(&a.prune, "prune", false, i18n.T("Remove docs/README.*.md files for languages not in the reply"))

	return cmd
}

func runParse(ctx context.Context, app *app, rawFile string, a parseArgs) (*outcome, error) {
	if !filepath.IsAbs(rawFile) {
		if _, err := os.Stat(rawFile); err != nil {
			rawFile = filepath.Join(app.root, rawFile)
		}
	}
	data, err := os.ReadFile(rawFile)
	if err != nil {
		return nil, err
	}
	if a.primary != "" {
		app.cfg.Translation.PrimaryLanguage = a.primary
	}
	return app.publish(ctx, string(data), publishOptions{
		languages: app.languages(a.languages),
		primary:   app.cfg.Primary(app.reg),
		strict:    a.strict,
		prune:     a.prune,
	})
}
