// Package lockfile implements duoreadme.lock, which records what the last
// successful run was generated from and what it wrote. When the project
// text and requested languages are unchanged and every recorded output is
// still on disk untouched, a run can be skipped without calling the
// generator.
//
// The lock file lives in the project root next to the README.
package lockfile

import (
	"crypto/md5"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// LockFileName is the default lock file name.
const LockFileName = "duoreadme.lock"

// Version is the lock file format version.
const Version = 1

// ---------------------------------------------------------------------------
// Types
// ---------------------------------------------------------------------------

// LockFile is the duoreadme.lock structure.
type LockFile struct {
	Version int `yaml:"version"`
	// Source is the fingerprint of the last generation input.
	Source string `yaml:"source,omitempty"`
	// Outputs maps each written path to the checksum of its content.
	Outputs map[string]string `yaml:"outputs"`

	mu   sync.Mutex `yaml:"-"`
	path string     `yaml:"-"`
}

// ---------------------------------------------------------------------------
// Loading and saving
// ---------------------------------------------------------------------------

// Load reads the lock file from dir. A missing file yields an empty lock.
func Load(dir string) (*LockFile, error) {
	path := filepath.Join(dir, LockFileName)
	lf := &LockFile{
		Version: Version,
		Outputs: make(map[string]string),
		path:    path,
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return lf, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, lf); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	lf.path = path
	if lf.Outputs == nil {
		lf.Outputs = make(map[string]string)
	}
	if lf.Version != Version {
		// Unknown layout; start over rather than trust it.
		lf.Version = Version
		lf.Source = ""
		lf.Outputs = make(map[string]string)
	}
	return lf, nil
}

// Save writes the lock file to disk.
func (lf *LockFile) Save() error {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.path == "" {
		return fmt.Errorf("lock file path not set")
	}

	data, err := yaml.Marshal(lf)
	if err != nil {
		return fmt.Errorf("marshaling lock file: %w", err)
	}

	if err := os.WriteFile(lf.path, data, 0644); err != nil {
		return fmt.Errorf("writing %s: %w", lf.path, err)
	}
	return nil
}

// Path returns the lock file path.
func (lf *LockFile) Path() string {
	return lf.path
}

// ---------------------------------------------------------------------------
// Fingerprints
// ---------------------------------------------------------------------------

// Hash computes the MD5 hex digest of a string.
func Hash(s string) string {
	return fmt.Sprintf("%x", md5.Sum([]byte(s)))
}

// Fingerprint identifies one generation input: the project text plus the
// requested languages and the primary language, in any order.
func Fingerprint(projectText string, languages []string, primary string) string {
	langs := append([]string(nil), languages...)
	sort.Strings(langs)
	return Hash(projectText + "\x00" + strings.Join(langs, ",") + "\x00" + primary)
}

// ---------------------------------------------------------------------------
// Run bookkeeping
// ---------------------------------------------------------------------------

// UpToDate reports whether source matches the last recorded run and every
// recorded output under root still has the content that was written.
func (lf *LockFile) UpToDate(root, source string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	if lf.Source == "" || lf.Source != source || len(lf.Outputs) == 0 {
		return false
	}
	for rel, sum := range lf.Outputs {
		data, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil || Hash(string(data)) != sum {
			return false
		}
	}
	return true
}

// Record stores source and the checksum of each written output, dropping
// outputs from earlier runs that are not in written.
func (lf *LockFile) Record(source string, written map[string]string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	lf.Source = source
	lf.Outputs = make(map[string]string, len(written))
	for rel, content := range written {
		lf.Outputs[filepath.ToSlash(rel)] = Hash(content)
	}
}

// Forget drops the recorded outputs at the given paths, so the next run
// cannot be considered up to date.
func (lf *LockFile) Forget(paths ...string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	for _, p := range paths {
		delete(lf.Outputs, filepath.ToSlash(p))
	}
	if len(lf.Outputs) == 0 {
		lf.Source = ""
	}
}

// Paths returns the recorded output paths, sorted.
func (lf *LockFile) Paths() []string {
	lf.mu.Lock()
	defer lf.mu.Unlock()

	paths := make([]string, 0, len(lf.Outputs))
	for p := range lf.Outputs {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Summary returns a human-readable summary string.
func (lf *LockFile) Summary() string {
	paths := lf.Paths()
	if len(paths) == 0 {
		return "empty"
	}
	return fmt.Sprintf("%d outputs (%s)", len(paths), strings.Join(paths, ", "))
}
