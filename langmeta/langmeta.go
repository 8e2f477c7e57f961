// Package langmeta provides the language registry shared by the normalizer,
// the output router and the CLI: one table, indexed both ways
// (surface form to canonical code, canonical code to filename and back).
package langmeta

import (
	"fmt"
	"sort"
	"strings"
)

// ReadmeSuffix is appended to language names to form the keys the upstream
// generator is asked to use ("English readme", "日本語 readme").
const ReadmeSuffix = " readme"

// Language describes one routable language.
type Language struct {
	Code     string
	English  string
	Native   string
	Filename string
	// Aliases are extra surface forms that resolve to Code.
	Aliases []string
}

// ReadmeKey is the structured-output key the generator is asked to emit for
// this language.
func (l Language) ReadmeKey() string {
	return l.English + ReadmeSuffix
}

// table is the single source of truth. Every entry gets README.<code>.md
// unless Filename is set explicitly.
var table = []Language{
	{Code: "zh-Hans", English: "Chinese", Native: "中文", Filename: "README.zh.md", Aliases: []string{"zh", "zh-CN", "Simplified Chinese", "简体中文"}},
	{Code: "zh-Hant", English: "Traditional Chinese", Native: "繁體中文", Aliases: []string{"zh-TW"}},
	{Code: "en", English: "English", Native: "English"},
	{Code: "ja", English: "Japanese", Native: "日本語"},
	{Code: "ko", English: "Korean", Native: "한국어"},
	{Code: "fr", English: "French", Native: "Français"},
	{Code: "de", English: "German", Native: "Deutsch"},
	{Code: "es", English: "Spanish", Native: "Español"},
	{Code: "it", English: "Italian", Native: "Italiano"},
	{Code: "pt", English: "Portuguese", Native: "Português"},
	{Code: "pt-PT", English: "Portuguese (Portugal)", Native: "Português (Portugal)"},
	{Code: "ru", English: "Russian", Native: "Русский"},
	{Code: "th", English: "Thai", Native: "ไทย"},
	{Code: "vi", English: "Vietnamese", Native: "Tiếng Việt"},
	{Code: "hi", English: "Hindi", Native: "हिन्दी"},
	{Code: "ar", English: "Arabic", Native: "العربية"},
	{Code: "tr", English: "Turkish", Native: "Türkçe"},
	{Code: "pl", English: "Polish", Native: "Polski"},
	{Code: "nl", English: "Dutch", Native: "Nederlands"},
	{Code: "sv", English: "Swedish", Native: "Svenska"},
	{Code: "da", English: "Danish", Native: "Dansk"},
	{Code: "no", English: "Norwegian", Native: "Norsk"},
	{Code: "nb", English: "Norwegian Bokmål", Native: "Norsk Bokmål"},
	{Code: "fi", English: "Finnish", Native: "Suomi"},
	{Code: "cs", English: "Czech", Native: "Čeština"},
	{Code: "sk", English: "Slovak", Native: "Slovenčina"},
	{Code: "hu", English: "Hungarian", Native: "Magyar"},
	{Code: "ro", English: "Romanian", Native: "Română"},
	{Code: "bg", English: "Bulgarian", Native: "български"},
	{Code: "hr", English: "Croatian", Native: "Hrvatski"},
	{Code: "sl", English: "Slovenian", Native: "Slovenščina"},
	{Code: "et", English: "Estonian", Native: "Eesti"},
	{Code: "lv", English: "Latvian", Native: "Latviešu"},
	{Code: "lt", English: "Lithuanian", Native: "Lietuvių"},
	{Code: "mt", English: "Maltese", Native: "Malti"},
	{Code: "el", English: "Greek", Native: "Ελληνικά"},
	{Code: "ca", English: "Catalan", Native: "Català"},
	{Code: "eu", English: "Basque", Native: "Euskara"},
	{Code: "gl", English: "Galician", Native: "Galego"},
	{Code: "af", English: "Afrikaans", Native: "Afrikaans"},
	{Code: "zu", English: "Zulu", Native: "IsiZulu"},
	{Code: "xh", English: "Xhosa", Native: "isiXhosa"},
	{Code: "st", English: "Sotho", Native: "Sesotho"},
	{Code: "sw", English: "Swahili", Native: "Kiswahili"},
	{Code: "yo", English: "Yoruba", Native: "Èdè Yorùbá"},
	{Code: "ig", English: "Igbo", Native: "Asụsụ Igbo"},
	{Code: "ha", English: "Hausa", Native: "Hausa"},
	{Code: "am", English: "Amharic", Native: "አማርኛ"},
	{Code: "or", English: "Odia", Native: "ଓଡ଼ିଆ"},
	{Code: "bn", English: "Bengali", Native: "বাংলা"},
	{Code: "gu", English: "Gujarati", Native: "ગુજરાતી"},
	{Code: "pa", English: "Punjabi", Native: "ਪੰਜਾਬੀ"},
	{Code: "te", English: "Telugu", Native: "తెలుగు"},
	{Code: "kn", English: "Kannada", Native: "ಕನ್ನಡ"},
	{Code: "ml", English: "Malayalam", Native: "മലയാളം"},
	{Code: "ta", English: "Tamil", Native: "தமிழ்"},
	{Code: "si", English: "Sinhala", Native: "සිංහල"},
	{Code: "my", English: "Burmese", Native: "မြန်မာဘာသာ"},
	{Code: "km", English: "Khmer", Native: "ភាសាខ្មែរ"},
	{Code: "lo", English: "Lao", Native: "ລາວ"},
	{Code: "ne", English: "Nepali", Native: "नेपाली"},
	{Code: "ur", English: "Urdu", Native: "اردو"},
	{Code: "fa", English: "Persian", Native: "فارسی"},
	{Code: "ps", English: "Pashto", Native: "پښتو"},
	{Code: "sd", English: "Sindhi", Native: "سنڌي"},
	{Code: "he", English: "Hebrew", Native: "עברית"},
	{Code: "yue", English: "Cantonese", Native: "粵語"},
}

// Registry is an immutable bidirectional index over a language table.
type Registry struct {
	langs      map[string]Language
	order      []string
	exact      map[string]string
	folded     map[string]string
	byFilename map[string]string
}

var defaultRegistry = MustNew(table)

// Default returns the built-in registry. It is safe for concurrent use.
func Default() *Registry {
	return defaultRegistry
}

// New builds a registry from langs. Two languages claiming the same surface
// form (compared case-insensitively) or the same filename is an error.
func New(langs []Language) (*Registry, error) {
	r := &Registry{
		langs:      make(map[string]Language, len(langs)),
		exact:      make(map[string]string),
		folded:     make(map[string]string),
		byFilename: make(map[string]string),
	}
	for _, l := range langs {
		if l.Code == "" {
			return nil, fmt.Errorf("language %q has no code", l.English)
		}
		if _, dup := r.langs[l.Code]; dup {
			return nil, fmt.Errorf("duplicate language code %q", l.Code)
		}
		if l.Filename == "" {
			l.Filename = "README." + l.Code + ".md"
		}
		r.langs[l.Code] = l
		r.order = append(r.order, l.Code)

		for _, form := range surfaceForms(l) {
			if err := r.index(form, l.Code); err != nil {
				return nil, err
			}
		}
		if other, ok := r.byFilename[l.Filename]; ok {
			return nil, fmt.Errorf("filename %q claimed by %q and %q", l.Filename, other, l.Code)
		}
		r.byFilename[l.Filename] = l.Code
	}
	return r, nil
}

// MustNew is like New but panics on a malformed table.
func MustNew(langs []Language) *Registry {
	r, err := New(langs)
	if err != nil {
		panic("langmeta: " + err.Error())
	}
	return r
}

func surfaceForms(l Language) []string {
	names := []string{l.Code, l.English, l.Native}
	names = append(names, l.Aliases...)
	forms := make([]string, 0, len(names)*2)
	for _, n := range names {
		if n == "" {
			continue
		}
		forms = append(forms, n, n+ReadmeSuffix)
	}
	return forms
}

func (r *Registry) index(form, code string) error {
	if prev, ok := r.exact[form]; ok && prev != code {
		return fmt.Errorf("surface form %q maps to both %q and %q", form, prev, code)
	}
	r.exact[form] = code
	key := fold(form)
	if prev, ok := r.folded[key]; ok && prev != code {
		return fmt.Errorf("surface form %q maps to both %q and %q (case-insensitive)", form, prev, code)
	}
	r.folded[key] = code
	return nil
}

func fold(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Lookup resolves a surface form by exact match.
func (r *Registry) Lookup(form string) (string, bool) {
	code, ok := r.exact[form]
	return code, ok
}

// LookupFold resolves a surface form after trimming and case folding.
func (r *Registry) LookupFold(form string) (string, bool) {
	code, ok := r.folded[fold(form)]
	return code, ok
}

// Canonical tries an exact match first, then a folded one.
func (r *Registry) Canonical(form string) (string, bool) {
	if code, ok := r.Lookup(form); ok {
		return code, true
	}
	return r.LookupFold(form)
}

// Language returns the entry for a canonical code.
func (r *Registry) Language(code string) (Language, bool) {
	l, ok := r.langs[code]
	return l, ok
}

// Codes returns every canonical code in table order.
func (r *Registry) Codes() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Filename returns the secondary-location filename for code. Codes outside
// the table get a synthesized README.<lowercased code>.md.
func (r *Registry) Filename(code string) string {
	if l, ok := r.langs[code]; ok {
		return l.Filename
	}
	return "README." + strings.ToLower(code) + ".md"
}

// CodeForFilename maps a filename produced by Filename back to its code.
func (r *Registry) CodeForFilename(name string) (string, bool) {
	code, ok := r.byFilename[name]
	return code, ok
}

// Forms lists every surface form that resolves to code, sorted.
func (r *Registry) Forms(code string) []string {
	var out []string
	for form, c := range r.exact {
		if c == code {
			out = append(out, form)
		}
	}
	sort.Strings(out)
	return out
}

// Resolve returns display metadata for a user-supplied language, accepting
// names and codes with underscores or odd casing ("pt_pt", "ZH-hans").
// Unknown languages come back with the input as their name.
func (r *Registry) Resolve(lang string) Language {
	if code, ok := r.Canonical(lang); ok {
		return r.langs[code]
	}
	normalized := canonicalize(lang)
	if code, ok := r.Canonical(normalized); ok {
		return r.langs[code]
	}
	if base, _, found := strings.Cut(normalized, "-"); found {
		if code, ok := r.Canonical(base); ok {
			return r.langs[code]
		}
	}
	return Language{Code: lang, English: lang, Native: lang, Filename: r.Filename(lang)}
}

func canonicalize(lang string) string {
	normalized := strings.ReplaceAll(strings.TrimSpace(lang), "_", "-")
	if normalized == "" {
		return ""
	}
	parts := strings.Split(normalized, "-")
	parts[0] = strings.ToLower(parts[0])
	if len(parts) >= 2 {
		if len(parts[1]) == 4 {
			parts[1] = strings.ToUpper(parts[1][:1]) + strings.ToLower(parts[1][1:])
		} else {
			parts[1] = strings.ToUpper(parts[1])
		}
	}
	return strings.Join(parts, "-")
}
