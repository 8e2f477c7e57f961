package lockfile

import (
	"os"
	"path/filepath"
	"testing"
)

func TestHashDeterministic(t *testing.T) {
	h1 := Hash("hello world")
	h2 := Hash("hello world")
	if h1 != h2 {
		t.Errorf("Hash not deterministic: %s != %s", h1, h2)
	}
	if h1 == Hash("different") {
		t.Errorf("Hash collision for %q", "different")
	}
}

func TestFingerprintIgnoresLanguageOrder(t *testing.T) {
	a := Fingerprint("text", []string{"en", "zh-Hans", "ja"}, "en")
	b := Fingerprint("text", []string{"ja", "en", "zh-Hans"}, "en")
	if a != b {
		t.Errorf("fingerprint depends on order: %s != %s", a, b)
	}
	if a == Fingerprint("text", []string{"en", "ja"}, "en") {
		t.Error("fingerprint ignores language set")
	}
	if a == Fingerprint("text", []string{"en", "zh-Hans", "ja"}, "ja") {
		t.Error("fingerprint ignores primary language")
	}
	if a == Fingerprint("other", []string{"en", "zh-Hans", "ja"}, "en") {
		t.Error("fingerprint ignores project text")
	}
}

func TestLoadNonExistent(t *testing.T) {
	lf, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load returned error for non-existent file: %v", err)
	}
	if lf.Version != Version {
		t.Errorf("Version = %d, want %d", lf.Version, Version)
	}
	if len(lf.Outputs) != 0 || lf.Source != "" {
		t.Errorf("lock not empty: %+v", lf)
	}
	if lf.Summary() != "empty" {
		t.Errorf("Summary() = %q", lf.Summary())
	}
}

func TestLoadInvalid(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte("outputs: [unclosed"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOtherVersion(t *testing.T) {
	dir := t.TempDir()
	data := "version: 99\nsource: abc\noutputs:\n  README.md: def\n"
	if err := os.WriteFile(filepath.Join(dir, LockFileName), []byte(data), 0644); err != nil {
		t.Fatal(err)
	}
	lf, err := Load(dir)
	if err != nil {
		t.Fatal(err)
	}
	if lf.Source != "" || len(lf.Outputs) != 0 {
		t.Errorf("foreign lock was trusted: %+v", lf)
	}
}

func writeOutputs(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0644); err != nil {
			t.Fatal(err)
		}
	}
}

func TestRecordSaveAndUpToDate(t *testing.T) {
	root := t.TempDir()
	outputs := map[string]string{
		"README.md":         "# Hi",
		"docs/README.fr.md": "# Salut",
	}
	writeOutputs(t, root, outputs)

	lf, err := Load(root)
	if err != nil {
		t.Fatal(err)
	}
	if lf.UpToDate(root, "fp") {
		t.Fatal("empty lock should never be up to date")
	}

	lf.Record("fp", outputs)
	if err := lf.Save(); err != nil {
		t.Fatalf("Save: %v", err)
	}

	lf2, err := Load(root)
	if err != nil {
		t.Fatalf("Load after save: %v", err)
	}
	if !lf2.UpToDate(root, "fp") {
		t.Fatal("expected up to date after reload")
	}
	if lf2.UpToDate(root, "other") {
		t.Error("different fingerprint reported up to date")
	}

	writeOutputs(t, root, map[string]string{"docs/README.fr.md": "# edited"})
	if lf2.UpToDate(root, "fp") {
		t.Error("edited output reported up to date")
	}

	if err := os.Remove(filepath.Join(root, "README.md")); err != nil {
		t.Fatal(err)
	}
	writeOutputs(t, root, map[string]string{"docs/README.fr.md": "# Salut"})
	if lf2.UpToDate(root, "fp") {
		t.Error("missing output reported up to date")
	}
}

func TestRecordReplacesOldOutputs(t *testing.T) {
	lf := &LockFile{Version: Version, Outputs: map[string]string{"docs/README.de.md": "x"}}
	lf.Record("fp", map[string]string{"README.md": "# Hi"})

	paths := lf.Paths()
	if len(paths) != 1 || paths[0] != "README.md" {
		t.Errorf("Paths() = %v, want [README.md]", paths)
	}
}

func TestForget(t *testing.T) {
	lf := &LockFile{Version: Version, Outputs: map[string]string{}}
	lf.Record("fp", map[string]string{"README.md": "a", "docs/README.ja.md": "b"})

	lf.Forget("docs/README.ja.md")
	if got := lf.Summary(); got != "1 outputs (README.md)" {
		t.Errorf("Summary() = %q", got)
	}
	lf.Forget("README.md")
	if lf.Source != "" {
		t.Error("source kept after every output was forgotten")
	}
}
