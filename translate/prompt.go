package translate

import (
	"fmt"
	"strings"

	"github.com/duoreadme/duoreadme/langmeta"
)

// SystemPrompt is sent to providers that accept a separate system message.
const SystemPrompt = `You are a senior technical writer. You write clear, complete README documents for software projects in several languages at once.
Rules:
- Reply with one JSON object and nothing else. No commentary before or after it.
- Use exactly the keys you are given, in the order given, each exactly once.
- Each value is a complete Markdown README in that language: introduction, features, installation, usage.
- Escape quotes, backslashes and newlines as JSON requires.
- Keep code blocks, commands, file names and identifiers unchanged.`

const singleTemplate = `Write a README for the project below in these languages: {{languages}}.

Return a JSON object with these keys:
{{keys}}

Project content:
{{content}}`

const batchTemplate = `This is part {{part}} of {{total}} of the project content. Write a README for the project in these languages: {{languages}}.
Cover what this part shows; earlier or later parts are sent separately.

Return a JSON object with these keys:
{{keys}}

Project content (part {{part}} of {{total}}):
{{content}}`

// orderedLanguages puts English first so truncated replies still carry the
// key truncation repair anchors on.
func orderedLanguages(reg *langmeta.Registry, codes []string) []langmeta.Language {
	langs := make([]langmeta.Language, 0, len(codes))
	var english *langmeta.Language
	for _, code := range codes {
		l := reg.Resolve(code)
		if l.Code == "en" {
			english = &l
			continue
		}
		langs = append(langs, l)
	}
	if english != nil {
		langs = append([]langmeta.Language{*english}, langs...)
	}
	return langs
}

// LanguageList renders languages for prompts and workflow variables,
// e.g. "English, 日本語 (Japanese)".
func LanguageList(reg *langmeta.Registry, codes []string) string {
	langs := orderedLanguages(reg, codes)
	names := make([]string, len(langs))
	for i, l := range langs {
		if l.Native == l.English || l.Native == "" {
			names[i] = l.English
		} else {
			names[i] = fmt.Sprintf("%s (%s)", l.Native, l.English)
		}
	}
	return strings.Join(names, ", ")
}

func keyList(langs []langmeta.Language) string {
	var b strings.Builder
	for _, l := range langs {
		fmt.Fprintf(&b, "- %q: the %s README\n", l.ReadmeKey(), l.English)
	}
	return strings.TrimRight(b.String(), "\n")
}

// BuildPrompt frames content for a single-shot request.
func BuildPrompt(reg *langmeta.Registry, codes []string, content string) string {
	return render(singleTemplate, reg, codes, content, 1, 1)
}

// BuildBatchPrompt frames batch part of total.
func BuildBatchPrompt(reg *langmeta.Registry, codes []string, content string, part, total int) string {
	return render(batchTemplate, reg, codes, content, part, total)
}

func render(tmpl string, reg *langmeta.Registry, codes []string, content string, part, total int) string {
	r := strings.NewReplacer(
		"{{languages}}", LanguageList(reg, codes),
		"{{keys}}", keyList(orderedLanguages(reg, codes)),
		"{{part}}", fmt.Sprint(part),
		"{{total}}", fmt.Sprint(total),
		"{{content}}", content,
	)
	return r.Replace(tmpl)
}
