// Package i18n translates the CLI's own messages: command help, the plan and
// summary tables and warnings. Generated READMEs are never passed through it.
//
// Catalogs are gettext .po files embedded under locales/<lang>/LC_MESSAGES.
// Init picks one once at startup; before that, and for any message missing
// from the catalog, T and N return the English text.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const domain = "duoreadme"

// EnvLang overrides the locale detected from the environment.
const EnvLang = "DUOREADME_LANG"

// localeEnv is consulted in order, as GNU gettext does.
var localeEnv = []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"}

var (
	po   *gotext.Locale
	lang = "en"
)

// noArgs keeps gotext from treating msgids as format strings to expand.
var noArgs []any

// Init loads the catalog for tag, or for the detected locale when tag is
// empty. A locale without a catalog leaves messages in English.
func Init(tag string) {
	if tag == "" {
		tag = detectLanguage()
	}
	lang = tag
	po = gotext.NewLocaleFSWithPath(tag, locales, "locales")
	po.AddDomain(domain)
	po.SetDomain(domain)
}

// Lang returns the locale chosen by the last Init.
func Lang() string { return lang }

// T returns the translation of msgid.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid, noArgs...)
}

// N returns the translation of singular or plural for count n.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n, noArgs...)
}

func detectLanguage() string {
	if v := normalizeLocale(os.Getenv(EnvLang)); v != "" {
		return v
	}
	for _, env := range localeEnv {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if v := normalizeLocale(val); v != "" {
			return v
		}
	}
	return "en"
}

// normalizeLocale strips the codeset and modifier ("ru_RU.UTF-8@euro" is
// "ru_RU"). C and POSIX mean untranslated and yield "".
func normalizeLocale(val string) string {
	val = strings.TrimSpace(val)
	val, _, _ = strings.Cut(val, "@")
	val, _, _ = strings.Cut(val, ".")
	if val == "C" || val == "POSIX" {
		return ""
	}
	return val
}
