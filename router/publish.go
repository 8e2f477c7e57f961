package router

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/duoreadme/duoreadme/langmeta"
)

// Persister writes one document.
type Persister interface {
	Persist(path, content string) error
}

// PersistFunc adapts a function to Persister.
type PersistFunc func(path, content string) error

func (f PersistFunc) Persist(path, content string) error { return f(path, content) }

// FilePersister writes documents below Root, creating parent directories.
type FilePersister struct {
	Root string
}

func (p FilePersister) Persist(rel, content string) error {
	full := filepath.Join(p.Root, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(full), 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(full), ".duoreadme-*")
	if err != nil {
		return err
	}
	if _, err := tmp.WriteString(content); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), full); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}

// Failure is an assignment that could not be persisted.
type Failure struct {
	Assignment
	// Err is the persister's error text, verbatim.
	Err string
}

// Report is the outcome of Publish.
type Report struct {
	Saved  []Assignment
	Failed []Failure
}

// OK reports whether at least one document was saved.
func (r *Report) OK() bool { return len(r.Saved) > 0 }

// Publish persists every assignment. A failed write is recorded and does not
// stop the others; only cancellation does.
func Publish(ctx context.Context, assignments []Assignment, p Persister, log *zap.Logger) *Report {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Report{}
	for _, a := range assignments {
		if err := ctx.Err(); err != nil {
			r.Failed = append(r.Failed, Failure{Assignment: a, Err: err.Error()})
			continue
		}
		if err := p.Persist(a.Path, a.Content); err != nil {
			log.Warn("persist failed", zap.String("lang", a.Code), zap.String("path", a.Path), zap.Error(err))
			r.Failed = append(r.Failed, Failure{Assignment: a, Err: err.Error()})
			continue
		}
		log.Debug("persisted", zap.String("lang", a.Code), zap.String("path", a.Path), zap.Int("bytes", a.Size))
		r.Saved = append(r.Saved, a)
	}
	return r
}

// Stale lists docs-directory files written for languages not in keep.
// Files whose name does not map to a registered language are left alone.
func Stale(root, docsDir string, reg *langmeta.Registry, keep []string) ([]string, error) {
	if reg == nil {
		reg = langmeta.Default()
	}
	if docsDir == "" {
		docsDir = DefaultDocsDir
	}
	entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(docsDir)))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("listing %s: %w", docsDir, err)
	}
	kept := make(map[string]bool, len(keep))
	for _, c := range keep {
		kept[c] = true
	}
	var stale []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "README.") || !strings.HasSuffix(name, ".md") {
			continue
		}
		code, ok := reg.CodeForFilename(name)
		if !ok || kept[code] {
			continue
		}
		stale = append(stale, docsDir+"/"+name)
	}
	return stale, nil
}

// Prune removes the files Stale reports and returns the ones it removed.
func Prune(root, docsDir string, reg *langmeta.Registry, keep []string, log *zap.Logger) ([]string, error) {
	if log == nil {
		log = zap.NewNop()
	}
	stale, err := Stale(root, docsDir, reg, keep)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, rel := range stale {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(rel))); err != nil {
			return removed, fmt.Errorf("removing %s: %w", rel, err)
		}
		log.Info("removed stale translation", zap.String("path", rel))
		removed = append(removed, rel)
	}
	return removed, nil
}
