package project

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

// ignoreRule is one compiled .gitignore line.
type ignoreRule struct {
	re      *regexp.Regexp
	negate  bool
	dirOnly bool
}

// Ignore matches slash-separated relative paths against .gitignore rules.
// The last matching rule decides, so "!keep.log" can re-include a file.
type Ignore struct {
	rules []ignoreRule
}

// LoadIgnore compiles root/.gitignore. A missing file yields an empty matcher.
func LoadIgnore(root string) (*Ignore, bool, error) {
	data, err := os.ReadFile(filepath.Join(root, ".gitignore"))
	if os.IsNotExist(err) {
		return &Ignore{}, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return ParseIgnore(strings.Split(string(data), "\n")...), true, nil
}

// ParseIgnore compiles ignore lines; blank lines and comments are skipped.
func ParseIgnore(lines ...string) *Ignore {
	ig := &Ignore{}
	for _, line := range lines {
		if r, ok := compileRule(line); ok {
			ig.rules = append(ig.rules, r)
		}
	}
	return ig
}

// Match reports whether rel (relative, slash-separated) is ignored.
func (ig *Ignore) Match(rel string, isDir bool) bool {
	rel = filepath.ToSlash(rel)
	ignored := false
	for _, r := range ig.rules {
		if r.dirOnly && !isDir {
			continue
		}
		if r.re.MatchString(rel) {
			ignored = !r.negate
		}
	}
	return ignored
}

func compileRule(line string) (ignoreRule, bool) {
	p := strings.TrimSpace(strings.TrimSuffix(line, "\r"))
	if p == "" || strings.HasPrefix(p, "#") {
		return ignoreRule{}, false
	}
	var r ignoreRule
	if strings.HasPrefix(p, "!") {
		r.negate = true
		p = p[1:]
	}
	if strings.HasPrefix(p, `\#`) || strings.HasPrefix(p, `\!`) {
		p = p[1:]
	}
	if strings.HasSuffix(p, "/") {
		r.dirOnly = true
		p = strings.TrimSuffix(p, "/")
	}
	// A slash anywhere but the end anchors the pattern to the root.
	anchored := strings.Contains(p, "/")
	p = strings.TrimPrefix(p, "/")
	if p == "" {
		return ignoreRule{}, false
	}

	expr := globToRegexp(p)
	if anchored {
		expr = "^" + expr + "$"
	} else {
		expr = "^(?:.*/)?" + expr + "$"
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return ignoreRule{}, false
	}
	r.re = re
	return r, true
}

func globToRegexp(glob string) string {
	var b strings.Builder
	for i := 0; i < len(glob); i++ {
		c := glob[i]
		switch {
		case strings.HasPrefix(glob[i:], "**/"):
			b.WriteString("(?:.*/)?")
			i += 2
		case strings.HasPrefix(glob[i:], "/**") && i+3 == len(glob):
			b.WriteString("/.*")
			i += 2
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i++
		case c == '*':
			b.WriteString("[^/]*")
		case c == '?':
			b.WriteString("[^/]")
		default:
			b.WriteString(regexp.QuoteMeta(string(c)))
		}
	}
	return b.String()
}
