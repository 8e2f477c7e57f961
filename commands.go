package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/duoreadme/duoreadme/config"
	"github.com/duoreadme/duoreadme/i18n"
	"github.com/duoreadme/duoreadme/langmeta"
	"github.com/duoreadme/duoreadme/provider"
	"github.com/duoreadme/duoreadme/settings"
)

// ---------------------------------------------------------------------------
// langs
// ---------------------------------------------------------------------------

func newLangsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "langs [query]",
		Short: i18n.T("List supported languages"),
		Long: `Without arguments, list every language README files can be generated for.
With a query (a code or a name in any script), show what it resolves to and
every form the generator may use as its key.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			reg := langmeta.Default()
			out := cmd.OutOrStdout()
			if len(args) == 1 {
				return showLanguage(out, reg, args[0])
			}
			listLanguages(out, reg)
			return nil
		},
	}
}

func listLanguages(w io.Writer, reg *langmeta.Registry) {
	fmt.Fprintf(w, "%-9s %-24s %-22s %s\n", "CODE", "LANGUAGE", "NATIVE", "FILE")
	for _, code := range reg.Codes() {
		l, _ := reg.Language(code)
		fmt.Fprintf(w, "%-9s %-24s %-22s %s\n", l.Code, l.English, l.Native, l.Filename)
	}
}

func showLanguage(w io.Writer, reg *langmeta.Registry, query string) error {
	l := reg.Resolve(query)
	if _, ok := reg.Language(l.Code); !ok {
		return fmt.Errorf(i18n.T("unknown language %q"), query)
	}
	fmt.Fprintf(w, "%s: %s (%s)\n", l.Code, l.English, l.Native)
	fmt.Fprintf(w, "  %s\n", l.Filename)
	fmt.Fprintf(w, "  %s: %s\n", i18n.T("key"), l.ReadmeKey())
	fmt.Fprintf(w, "  %s: %s\n", i18n.T("accepted forms"), strings.Join(reg.Forms(l.Code), ", "))
	return nil
}

// ---------------------------------------------------------------------------
// preview
// ---------------------------------------------------------------------------

func newPreviewCmd() *cobra.Command {
	var raw bool

	cmd := &cobra.Command{
		Use:   "preview [lang]",
		Short: i18n.T("Render a generated README in the terminal"),
		Long: `Render the README generated for a language. Without an argument the root
README is shown; otherwise the file routed for that language.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(globals)
			if err != nil {
				return err
			}
			defer app.close()

			rel := app.cfg.Output.RootFilename
			if len(args) == 1 {
				code := app.reg.Resolve(args[0]).Code
				if code != app.cfg.Primary(app.reg) {
					rel = path.Join(app.cfg.Output.DocsDir, app.reg.Filename(code))
				}
			}
			data, err := os.ReadFile(filepath.Join(app.root, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if raw {
				_, err = out.Write(data)
				return err
			}
			rendered, err := renderMarkdown(string(data), terminalWidth())
			if err != nil {
				return err
			}
			_, err = io.WriteString(out, rendered)
			return err
		},
	}
	cmd.Flags().BoolVar(&raw, "raw", false, i18n.T("Print the Markdown source instead of rendering it"))
	return cmd
}

func renderMarkdown(doc string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", err
	}
	return r.Render(doc)
}

func terminalWidth() int {
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		return w - 2
	}
	return 80
}

// ---------------------------------------------------------------------------
// config
// ---------------------------------------------------------------------------

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: i18n.T("Show or create the configuration file"),
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: i18n.T("Print the effective configuration with secrets masked"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(globals)
			if err != nil {
				return err
			}
			defer app.close()

			m := app.cfg.Masked()
			data, err := m.Marshal()
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "init",
		Short: i18n.T("Write a default .duoreadme.yaml to the project root"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			root, err := filepath.Abs(globals.root)
			if err != nil {
				return err
			}
			p, err := config.WriteDefault(root)
			if err != nil {
				return err
			}
			logSuccess(i18n.T("Wrote %s"), p)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: i18n.T("Print the configuration file in use"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(globals)
			if err != nil {
				return err
			}
			defer app.close()

			if app.cfg.Path() == "" {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("(none, using defaults)"))
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), app.cfg.Path())
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: i18n.T("Check the configuration, including stored credentials"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := loadApp(globals)
			if err != nil {
				return err
			}
			defer app.close()

			_, unknown := app.cfg.Languages(app.reg)
			for _, u := range unknown {
				logWarning(i18n.T("Unknown language %q ignored"), u)
			}
			applyStoredCredentials(app.cfg)
			if err := app.cfg.Validate(); err != nil {
				return err
			}
			logSuccess(i18n.T("Configuration is valid (provider %s)"), app.cfg.Provider.ID)
			return nil
		},
	})

	return cmd
}

// ---------------------------------------------------------------------------
// auth
// ---------------------------------------------------------------------------

func newAuthCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: i18n.T("Manage stored provider credentials"),
		Long: `Credentials are stored in $XDG_DATA_HOME/duoreadme/auth.json with
mode 0600 and used when neither flags, environment nor the config file
provide them.`,
	}
	cmd.AddCommand(newAuthSetCmd(), newAuthRemoveCmd(), newAuthListCmd())
	return cmd
}

type authArgs struct {
	key          string
	baseURL      string
	botAppKey    string
	visitorBizID string
}

func newAuthSetCmd() *cobra.Command {
	var a authArgs

	cmd := &cobra.Command{
		Use:       "set <provider>",
		Short:     i18n.T("Store credentials for a provider"),
		Args:      cobra.ExactArgs(1),
		ValidArgs: provider.IDs(),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.ToLower(args[0])
			if _, ok := provider.Defaults()[id]; !ok {
				return fmt.Errorf(i18n.T("unknown provider %q (available: %s)"), id, strings.Join(provider.IDs(), ", "))
			}
			in := bufio.NewReader(cmd.InOrStdin())

			if id == provider.ProviderLKE {
				if a.botAppKey == "" {
					v, err := prompt(in, i18n.T("Bot app key: "), true)
					if err != nil {
						return err
					}
					a.botAppKey = v
				}
				if a.visitorBizID == "" {
					v, err := prompt(in, i18n.T("Visitor id: "), false)
					if err != nil {
						return err
					}
					a.visitorBizID = v
				}
				if a.botAppKey == "" {
					return errors.New(i18n.T("a bot app key is required"))
				}
				if err := settings.SetBot(id, a.botAppKey, a.visitorBizID); err != nil {
					return err
				}
			} else {
				if a.key == "" && id != provider.ProviderOllama {
					v, err := prompt(in, i18n.T("API key: "), true)
					if err != nil {
						return err
					}
					a.key = v
				}
				if a.key == "" && a.baseURL == "" {
					return errors.New(i18n.T("an API key or a base URL is required"))
				}
				if err := settings.SetAPIKey(id, a.key, a.baseURL); err != nil {
					return err
				}
			}
			logSuccess(i18n.T("Saved credentials for %s to %s"), id, settings.FilePath())
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVar(&a.key, "key", "", i18n.T("API key"))
	f.StringVar(&a.baseURL, "base-url", "", i18n.T("Endpoint URL"))
	f.StringVar(&a.botAppKey, "bot-app-key", "", i18n.T("LKE bot app key"))
	f.StringVar(&a.visitorBizID, "visitor-biz-id", "", i18n.T("LKE visitor id"))
	return cmd
}

// prompt reads one line, without echo for secrets when stdin is a terminal.
func prompt(in *bufio.Reader, label string, secret bool) (string, error) {
	fmt.Fprint(os.Stderr, label)
	fd := int(os.Stdin.Fd())
	if secret && term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			return "", err
		}
		return strings.TrimSpace(string(b)), nil
	}
	line, err := in.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

func newAuthRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <provider>",
		Short: i18n.T("Delete stored credentials for a provider"),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id := strings.ToLower(args[0])
			removed, err := settings.Remove(id)
			if err != nil {
				return err
			}
			if !removed {
				logWarning(i18n.T("No stored credentials for %s"), id)
				return nil
			}
			logSuccess(i18n.T("Removed credentials for %s"), id)
			return nil
		},
	}
}

func newAuthListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: i18n.T("List stored credentials with secrets masked"),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store := settings.Load()
			out := cmd.OutOrStdout()
			if len(store) == 0 {
				fmt.Fprintln(out, i18n.T("No stored credentials."))
				return nil
			}
			for _, id := range store.IDs() {
				info := store[id]
				detail := settings.MaskKey(info.Secret())
				if info.IsBot() && info.VisitorBizID != "" {
					detail += "  visitor=" + info.VisitorBizID
				}
				if info.BaseURL != "" {
					detail += "  " + info.BaseURL
				}
				fmt.Fprintf(out, "%-8s %-5s %s\n", id, info.Type, detail)
			}
			return nil
		},
	}
}
