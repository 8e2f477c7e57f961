// Package config loads the duoreadme YAML configuration file and applies
// defaults and environment overrides to it.
//
// The file is looked up in the project root as config.yaml, config.yml,
// .config.yaml and .duoreadme.yaml (first match wins) unless a path is
// given explicitly. Environment variables override file values:
//
//	DUOREADME_BOT_APP_KEY     app.bot_app_key
//	DUOREADME_VISITOR_BIZ_ID  app.visitor_biz_id
//	DUOREADME_PROVIDER        provider.id
//	DUOREADME_MODEL           provider.model
//	DUOREADME_API_KEY         provider.api_key
//	DUOREADME_BASE_URL        provider.base_url
//	DUOREADME_LOG_LEVEL       log.level
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/duoreadme/duoreadme/langmeta"
	"github.com/duoreadme/duoreadme/project"
	"github.com/duoreadme/duoreadme/provider"
	"github.com/duoreadme/duoreadme/router"
	"github.com/duoreadme/duoreadme/settings"
	"github.com/duoreadme/duoreadme/translate"
)

// ErrMissingCredentials is returned by Validate when the selected provider
// has no credentials configured.
var ErrMissingCredentials = errors.New("missing credentials")

// FileName is the name written by WriteDefault.
const FileName = ".duoreadme.yaml"

// DefaultMaxRetries applies when provider.max_retries is not set.
const DefaultMaxRetries = 3

// SearchNames are tried in order in the project root.
var SearchNames = []string{"config.yaml", "config.yml", ".config.yaml", FileName}

// ---------------------------------------------------------------------------
// YAML schema
// ---------------------------------------------------------------------------

// File is the top-level configuration.
type File struct {
	App         App         `yaml:"app"`
	Provider    Provider    `yaml:"provider"`
	SSE         SSE         `yaml:"sse"`
	Translation Translation `yaml:"translation"`
	Project     Project     `yaml:"project"`
	Output      Output      `yaml:"output"`
	Log         Log         `yaml:"log"`

	path string
}

// App holds the LKE bot credentials.
type App struct {
	BotAppKey    string `yaml:"bot_app_key,omitempty"`
	VisitorBizID string `yaml:"visitor_biz_id,omitempty"`
}

// Provider selects the generation backend.
type Provider struct {
	// ID is lke, openai, gemini or ollama (default lke).
	ID         string        `yaml:"id,omitempty"`
	BaseURL    string        `yaml:"base_url,omitempty"`
	Model      string        `yaml:"model,omitempty"`
	APIKey     string        `yaml:"api_key,omitempty"`
	Proxy      string        `yaml:"proxy,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
	// MaxRetries is how often a failed request is retried; 0 disables
	// retries, unset means DefaultMaxRetries.
	MaxRetries *int `yaml:"max_retries,omitempty"`
}

// Retries returns the configured retry count.
func (p Provider) Retries() int {
	if p.MaxRetries == nil {
		return DefaultMaxRetries
	}
	return *p.MaxRetries
}

// SSE tunes the LKE event stream.
type SSE struct {
	StreamingThrottle int           `yaml:"streaming_throttle,omitempty"`
	Timeout           time.Duration `yaml:"timeout,omitempty"`
}

// Translation controls what is requested and how batches are combined.
type Translation struct {
	// DefaultLanguages may mix codes and names ("ja", "German", "中文").
	DefaultLanguages []string `yaml:"default_languages,omitempty"`
	// PrimaryLanguage is promoted to the root README (default "en").
	PrimaryLanguage string `yaml:"primary_language,omitempty"`
	SingleShotLimit int    `yaml:"single_shot_limit,omitempty"`
	BatchLimit      int    `yaml:"batch_limit,omitempty"`
	// Reduce is merge or last.
	Reduce string `yaml:"reduce,omitempty"`
}

// Project controls how much of the source tree is sent.
type Project struct {
	MaxFiles    int `yaml:"max_files,omitempty"`
	ReadmeLimit int `yaml:"readme_limit,omitempty"`
	FileLimit   int `yaml:"file_limit,omitempty"`
	Workers     int `yaml:"workers,omitempty"`
}

// Output controls where documents are written.
type Output struct {
	DocsDir      string `yaml:"docs_dir,omitempty"`
	RootFilename string `yaml:"root_filename,omitempty"`
	SaveRaw      bool   `yaml:"save_raw,omitempty"`
}

// Log controls diagnostic logging.
type Log struct {
	Level string `yaml:"level,omitempty"`
	File  string `yaml:"file,omitempty"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Default returns a configuration with every default applied.
func Default() *File {
	f := &File{}
	f.applyDefaults()
	return f
}

// Load reads the configuration for the project in root. When explicit is
// set it must exist; otherwise the search names are tried and a missing
// file yields the defaults.
func Load(root, explicit string) (*File, error) {
	return load(root, explicit, os.LookupEnv)
}

func load(root, explicit string, lookupEnv func(string) (string, bool)) (*File, error) {
	path, err := find(root, explicit)
	if err != nil {
		return nil, err
	}

	f := &File{}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, f); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
		f.path = path
	}
	f.applyDefaults()
	f.applyEnv(lookupEnv)
	return f, nil
}

func find(root, explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file %s: %w", explicit, err)
		}
		return explicit, nil
	}
	for _, name := range SearchNames {
		p := filepath.Join(root, name)
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", nil
}

// Path returns the file the configuration was read from, or "".
func (f *File) Path() string {
	return f.path
}

func (f *File) applyDefaults() {
	if f.Provider.ID == "" {
		f.Provider.ID = provider.ProviderLKE
	}
	if f.Provider.MaxRetries == nil {
		n := DefaultMaxRetries
		f.Provider.MaxRetries = &n
	}
	if f.SSE.StreamingThrottle <= 0 {
		f.SSE.StreamingThrottle = 1
	}
	if f.SSE.Timeout <= 0 {
		f.SSE.Timeout = 60 * time.Second
	}
	if len(f.Translation.DefaultLanguages) == 0 {
		f.Translation.DefaultLanguages = append([]string(nil), translate.DefaultLanguages...)
	}
	if f.Translation.PrimaryLanguage == "" {
		f.Translation.PrimaryLanguage = router.DefaultPrimary
	}
	if f.Translation.SingleShotLimit <= 0 {
		f.Translation.SingleShotLimit = translate.DefaultSingleShotLimit
	}
	if f.Translation.BatchLimit <= 0 {
		f.Translation.BatchLimit = translate.DefaultBatchLimit
	}
	if f.Translation.Reduce == "" {
		f.Translation.Reduce = string(translate.ReduceMerge)
	}
	if f.Project.MaxFiles <= 0 {
		f.Project.MaxFiles = project.DefaultMaxFiles
	}
	if f.Project.ReadmeLimit <= 0 {
		f.Project.ReadmeLimit = project.DefaultReadmeLimit
	}
	if f.Project.FileLimit <= 0 {
		f.Project.FileLimit = project.DefaultFileLimit
	}
	if f.Project.Workers <= 0 {
		f.Project.Workers = project.DefaultWorkers
	}
	if f.Output.DocsDir == "" {
		f.Output.DocsDir = router.DefaultDocsDir
	}
	if f.Output.RootFilename == "" {
		f.Output.RootFilename = router.DefaultRootFilename
	}
	if f.Log.Level == "" {
		f.Log.Level = "warn"
	}
}

func (f *File) applyEnv(lookupEnv func(string) (string, bool)) {
	overrides := []struct {
		name string
		dst  *string
	}{
		{"DUOREADME_BOT_APP_KEY", &f.App.BotAppKey},
		{"DUOREADME_VISITOR_BIZ_ID", &f.App.VisitorBizID},
		{"DUOREADME_PROVIDER", &f.Provider.ID},
		{"DUOREADME_MODEL", &f.Provider.Model},
		{"DUOREADME_API_KEY", &f.Provider.APIKey},
		{"DUOREADME_BASE_URL", &f.Provider.BaseURL},
		{"DUOREADME_LOG_LEVEL", &f.Log.Level},
	}
	for _, o := range overrides {
		if v, ok := lookupEnv(o.name); ok && strings.TrimSpace(v) != "" {
			*o.dst = strings.TrimSpace(v)
		}
	}
}

// ---------------------------------------------------------------------------
// Validation
// ---------------------------------------------------------------------------

// Validate checks the values a run depends on.
func (f *File) Validate() error {
	if _, err := translate.ParseReduce(f.Translation.Reduce); err != nil {
		return err
	}
	if f.Translation.SingleShotLimit > f.Translation.BatchLimit {
		return fmt.Errorf("translation.single_shot_limit (%d) exceeds translation.batch_limit (%d)",
			f.Translation.SingleShotLimit, f.Translation.BatchLimit)
	}
	if strings.ContainsAny(f.Output.RootFilename, `/\`) {
		return fmt.Errorf("output.root_filename %q must be a plain file name", f.Output.RootFilename)
	}

	if f.Provider.Retries() < 0 {
		return fmt.Errorf("provider.max_retries must not be negative, got %d", f.Provider.Retries())
	}

	switch f.Provider.ID {
	case provider.ProviderLKE:
		if f.App.BotAppKey == "" {
			return fmt.Errorf("%w: provider lke needs app.bot_app_key (or DUOREADME_BOT_APP_KEY)", ErrMissingCredentials)
		}
	case provider.ProviderGemini:
		if f.Provider.APIKey == "" {
			return fmt.Errorf("%w: provider gemini needs provider.api_key (or DUOREADME_API_KEY)", ErrMissingCredentials)
		}
	case provider.ProviderOpenAI:
		// Self-hosted OpenAI-compatible servers often run without a key.
		if f.Provider.APIKey == "" && (f.Provider.BaseURL == "" || f.Provider.BaseURL == provider.Defaults()[provider.ProviderOpenAI].BaseURL) {
			return fmt.Errorf("%w: provider openai needs provider.api_key (or DUOREADME_API_KEY)", ErrMissingCredentials)
		}
	case provider.ProviderOllama:
	default:
		return fmt.Errorf("unknown provider %q (known: %s)", f.Provider.ID, strings.Join(provider.IDs(), ", "))
	}
	return nil
}

// ---------------------------------------------------------------------------
// Derived values
// ---------------------------------------------------------------------------

// Languages canonicalizes the configured languages through reg. Entries the
// registry does not know are returned separately; if none are left the
// built-in defaults are used.
func (f *File) Languages(reg *langmeta.Registry) (codes, unknown []string) {
	return CanonicalLanguages(reg, f.Translation.DefaultLanguages)
}

// CanonicalLanguages resolves names or codes to canonical codes, dropping
// duplicates and keeping order.
func CanonicalLanguages(reg *langmeta.Registry, names []string) (codes, unknown []string) {
	if reg == nil {
		reg = langmeta.Default()
	}
	seen := make(map[string]bool, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		code, ok := reg.Canonical(n)
		if !ok {
			if l := reg.Resolve(n); l.Code != n {
				code, ok = l.Code, true
			}
		}
		if !ok {
			unknown = append(unknown, n)
			continue
		}
		if !seen[code] {
			seen[code] = true
			codes = append(codes, code)
		}
	}
	if len(codes) == 0 {
		codes = append(codes, translate.DefaultLanguages...)
	}
	return codes, unknown
}

// Primary returns the canonical primary language code.
func (f *File) Primary(reg *langmeta.Registry) string {
	if reg == nil {
		reg = langmeta.Default()
	}
	if code, ok := reg.Canonical(f.Translation.PrimaryLanguage); ok {
		return code
	}
	return reg.Resolve(f.Translation.PrimaryLanguage).Code
}

// ProviderConfig builds the backend configuration.
func (f *File) ProviderConfig() provider.Config {
	timeout := f.Provider.Timeout
	if timeout <= 0 && f.Provider.ID == provider.ProviderLKE {
		timeout = f.SSE.Timeout
	}
	return provider.Resolve(provider.Config{
		ID:                f.Provider.ID,
		BaseURL:           f.Provider.BaseURL,
		APIKey:            f.Provider.APIKey,
		Model:             f.Provider.Model,
		Proxy:             f.Provider.Proxy,
		Timeout:           timeout,
		MaxRetries:        f.Provider.Retries(),
		BotAppKey:         f.App.BotAppKey,
		VisitorBizID:      f.App.VisitorBizID,
		StreamingThrottle: f.SSE.StreamingThrottle,
	})
}

// ---------------------------------------------------------------------------
// Display and writing
// ---------------------------------------------------------------------------

// Masked returns a copy with secrets masked for display.
func (f *File) Masked() File {
	m := *f
	m.App.BotAppKey = settings.MaskKey(f.App.BotAppKey)
	m.Provider.APIKey = settings.MaskKey(f.Provider.APIKey)
	return m
}

// Marshal renders the configuration as YAML.
func (f *File) Marshal() ([]byte, error) {
	return yaml.Marshal(f)
}

// WriteDefault writes a default configuration to dir/.duoreadme.yaml. It
// refuses to overwrite an existing file.
func WriteDefault(dir string) (string, error) {
	path := filepath.Join(dir, FileName)
	if _, err := os.Stat(path); err == nil {
		return "", fmt.Errorf("%s already exists", path)
	}
	data, err := Default().Marshal()
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}
