// Package project reads a source tree into marker-delimited project text:
// the README first, then the few files most likely to describe the project.
package project

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/duoreadme/duoreadme/chunker"
)

const (
	DefaultMaxFiles    = 2
	DefaultReadmeLimit = 3000
	DefaultFileLimit   = 1500
	DefaultWorkers     = 4
)

// skipDirs are never descended into.
var skipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	".idea":        true,
	".vscode":      true,
	"node_modules": true,
	"__pycache__":  true,
	".tox":         true,
	".venv":        true,
	"venv":         true,
	"vendor":       true,
	"dist":         true,
	"build":        true,
	".eggs":        true,
}

var textExtensions = map[string]bool{
	".txt": true, ".md": true, ".rst": true, ".py": true, ".go": true,
	".js": true, ".ts": true, ".jsx": true, ".tsx": true, ".java": true,
	".kt": true, ".rs": true, ".c": true, ".h": true, ".cc": true,
	".cpp": true, ".hpp": true, ".cs": true, ".rb": true, ".php": true,
	".sh": true, ".html": true, ".css": true, ".json": true, ".xml": true,
	".yaml": true, ".yml": true, ".toml": true, ".ini": true, ".cfg": true,
	".conf": true, ".mod": true, ".swift": true, ".lua": true, ".sql": true,
}

// importance weights file names by keyword, highest first.
var importance = []struct {
	keywords []string
	score    int
}{
	{[]string{"main", "core", "translator", "generator", "parser"}, 100},
	{[]string{"config", "settings", "setup"}, 80},
	{[]string{"utils", "helpers", "tools"}, 60},
	{[]string{"models", "types", "schema"}, 50},
	{[]string{"services", "api", "client"}, 40},
	{[]string{"cli", "commands"}, 30},
	{[]string{"test", "spec"}, 10},
}

// Options control how much of the tree is read.
type Options struct {
	// MaxFiles is the number of non-README files to include.
	MaxFiles    int
	ReadmeLimit int
	FileLimit   int
	// Workers bounds concurrent file reads.
	Workers int
	// Exclude lists extra slash-separated paths or directories to skip,
	// such as the output directory.
	Exclude []string
	Logger  *zap.Logger
}

func (o *Options) withDefaults() Options {
	out := *o
	if out.MaxFiles <= 0 {
		out.MaxFiles = DefaultMaxFiles
	}
	if out.ReadmeLimit <= 0 {
		out.ReadmeLimit = DefaultReadmeLimit
	}
	if out.FileLimit <= 0 {
		out.FileLimit = DefaultFileLimit
	}
	if out.Workers <= 0 {
		out.Workers = DefaultWorkers
	}
	if out.Logger == nil {
		out.Logger = zap.NewNop()
	}
	return out
}

// File is one included file.
type File struct {
	// Path is relative to the root, slash-separated.
	Path       string
	Content    string
	Size       int
	Compressed bool
}

// Snapshot is the result of reading a project.
type Snapshot struct {
	Root string
	// Files are in output order: README first.
	Files []File
	// Candidates is how many text files were considered.
	Candidates int
	HasIgnore  bool
}

// Text renders the snapshot as project text.
func (s *Snapshot) Text() string {
	var b strings.Builder
	for _, f := range s.Files {
		b.WriteString(chunker.Marker(f.Path))
		b.WriteString(f.Content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// Read walks root and returns the README plus the most important files.
func Read(ctx context.Context, root string, opts Options) (*Snapshot, error) {
	o := opts.withDefaults()
	log := o.Logger

	info, err := os.Stat(root)
	if err != nil {
		return nil, err
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", root)
	}

	ig, hasIgnore, err := LoadIgnore(root)
	if err != nil {
		return nil, fmt.Errorf("reading .gitignore: %w", err)
	}
	if !hasIgnore {
		log.Warn("no .gitignore found, reading every text file", zap.String("root", root))
	}
	exclude := ParseIgnore(o.Exclude...)

	readme, others, err := scan(root, ig, exclude)
	if err != nil {
		return nil, err
	}
	if readme == "" {
		log.Warn("no README.md found", zap.String("root", root))
	}

	picked := selectImportant(others, o.MaxFiles)
	log.Debug("selected files", zap.Int("candidates", len(others)), zap.Strings("picked", picked))

	type job struct {
		path  string
		limit int
	}
	var jobs []job
	if readme != "" {
		jobs = append(jobs, job{readme, o.ReadmeLimit})
	}
	for _, p := range picked {
		jobs = append(jobs, job{p, o.FileLimit})
	}

	files := make([]File, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.Workers)
	for i, j := range jobs {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(j.path)))
			if err != nil {
				return fmt.Errorf("reading %s: %w", j.path, err)
			}
			content := Compress(string(data), j.limit)
			files[i] = File{
				Path:       j.path,
				Content:    content,
				Size:       len(data),
				Compressed: content != string(data),
			}
			log.Debug("read file", zap.String("path", j.path), zap.Int("bytes", len(data)), zap.Int("kept", len(content)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &Snapshot{Root: root, Files: files, Candidates: len(others), HasIgnore: hasIgnore}, nil
}

// scan returns the root README (if any) and every other readable text file.
func scan(root string, ig, exclude *Ignore) (string, []string, error) {
	var readme string
	var others []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil // skip unreadable entries
		}
		rel, err := filepath.Rel(root, path)
		if err != nil || rel == "." {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if skipDirs[d.Name()] || ig.Match(rel, true) || exclude.Match(rel, true) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || ig.Match(rel, false) || exclude.Match(rel, false) {
			return nil
		}
		name := strings.ToLower(d.Name())
		if name == "readme.md" {
			if !strings.Contains(rel, "/") {
				readme = rel
			}
			return nil
		}
		if isTranslatedReadme(name) || !isText(path) {
			return nil
		}
		others = append(others, rel)
		return nil
	})
	if err != nil {
		return "", nil, fmt.Errorf("scanning %s: %w", root, err)
	}
	return readme, others, nil
}

// isTranslatedReadme matches generated README.<lang>.md files.
func isTranslatedReadme(lowerName string) bool {
	return strings.HasPrefix(lowerName, "readme.") && strings.HasSuffix(lowerName, ".md") && strings.Count(lowerName, ".") >= 2
}

func isText(path string) bool {
	if textExtensions[strings.ToLower(filepath.Ext(path))] {
		return true
	}
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()
	buf := make([]byte, 1024)
	n, _ := f.Read(buf)
	if n == 0 {
		return false
	}
	head := buf[:n]
	if bytes.IndexByte(head, 0) >= 0 {
		return false
	}
	// A multi-byte rune may be cut at the buffer edge.
	for i := 0; i < utf8.UTFMax && len(head) > 0 && !utf8.Valid(head); i++ {
		head = head[:len(head)-1]
	}
	return utf8.Valid(head)
}

// Score rates how likely a file is to describe the project.
func Score(rel string) int {
	name := strings.ToLower(filepath.Base(rel))
	score := 0
	for _, tier := range importance {
		for _, kw := range tier.keywords {
			if strings.Contains(name, kw) {
				score += tier.score
				break
			}
		}
	}
	depth := strings.Count(rel, "/") + 1
	return score - depth*5
}

func selectImportant(files []string, n int) []string {
	sorted := append([]string(nil), files...)
	sort.SliceStable(sorted, func(i, j int) bool {
		si, sj := Score(sorted[i]), Score(sorted[j])
		if si != sj {
			return si > sj
		}
		return sorted[i] < sorted[j]
	})
	if len(sorted) > n {
		sorted = sorted[:n]
	}
	return sorted
}

const elision = "\n\n... (content compressed) ...\n\n"

// Compress shortens content to roughly limit characters: blank-line runs are
// collapsed first, then the first 60% and last 20% are kept around an
// elision marker, snapped to nearby line breaks.
func Compress(content string, limit int) string {
	if utf8.RuneCountInString(content) <= limit {
		return content
	}

	lines := strings.Split(content, "\n")
	kept := lines[:0:0]
	prevEmpty := false
	for _, line := range lines {
		empty := strings.TrimSpace(line) == ""
		if empty && prevEmpty {
			continue
		}
		kept = append(kept, line)
		prevEmpty = empty
	}
	content = strings.Join(kept, "\n")

	runes := []rune(content)
	if len(runes) <= limit {
		return content
	}

	headLen := limit * 6 / 10
	tailLen := limit * 2 / 10
	head := string(runes[:headLen])
	tail := string(runes[len(runes)-tailLen:])

	if !strings.HasSuffix(head, "\n") {
		if nl := strings.LastIndexByte(head, '\n'); nl >= 0 && utf8.RuneCountInString(head[:nl]) > headLen*8/10 {
			head = head[:nl]
		}
	}
	if !strings.HasPrefix(tail, "\n") {
		if nl := strings.IndexByte(tail, '\n'); nl >= 0 && utf8.RuneCountInString(tail[:nl]) < tailLen*2/10 {
			tail = tail[nl:]
		}
	}
	return head + elision + tail
}
