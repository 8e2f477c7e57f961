package i18n

import "testing"

func clearLocaleEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LANGUAGE", "")
	t.Setenv("LC_ALL", "")
	t.Setenv("LC_MESSAGES", "")
	t.Setenv("LANG", "")
	t.Setenv(EnvLang, "")
}

func TestDetectLanguagePriorityAndNormalization(t *testing.T) {
	t.Run("LANGUAGE has highest priority", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU.UTF-8:en_US")
		t.Setenv("LC_ALL", "de_DE.UTF-8")

		if got := detectLanguage(); got != "ru_RU" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "ru_RU")
		}
	})

	t.Run("C and POSIX are skipped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "C")
		t.Setenv("LC_ALL", "POSIX")
		t.Setenv("LC_MESSAGES", "fr_FR.UTF-8")

		if got := detectLanguage(); got != "fr_FR" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "fr_FR")
		}
	})

	t.Run("override wins", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANGUAGE", "ru_RU")
		t.Setenv(EnvLang, "zh_CN.UTF-8")

		if got := detectLanguage(); got != "zh_CN" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "zh_CN")
		}
	})

	t.Run("modifier is stripped", func(t *testing.T) {
		clearLocaleEnv(t)
		t.Setenv("LANG", "de_DE@euro")

		if got := detectLanguage(); got != "de_DE" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "de_DE")
		}
	})

	t.Run("falls back to en", func(t *testing.T) {
		clearLocaleEnv(t)
		if got := detectLanguage(); got != "en" {
			t.Fatalf("detectLanguage() = %q, want %q", got, "en")
		}
	})
}

func TestTAndNFallbackWhenUninitialized(t *testing.T) {
	old := po
	po = nil
	t.Cleanup(func() { po = old })

	if got := T("Hello"); got != "Hello" {
		t.Fatalf("T fallback = %q, want %q", got, "Hello")
	}

	if got := N("file", "files", 1); got != "file" {
		t.Fatalf("N singular fallback = %q, want %q", got, "file")
	}

	if got := N("file", "files", 2); got != "files" {
		t.Fatalf("N plural fallback = %q, want %q", got, "files")
	}
}

func TestEmbeddedCatalog(t *testing.T) {
	old, oldLang := po, lang
	t.Cleanup(func() { po, lang = old, oldLang })

	Init("zh_CN")
	if Lang() != "zh_CN" {
		t.Fatalf("Lang() = %q", Lang())
	}
	if got := T("batch %d of %d"); got != "第 %d 批，共 %d 批" {
		t.Fatalf("T kept verbs = %q", got)
	}
	if got := T("Generation summary"); got != "生成摘要" {
		t.Fatalf("T = %q, want %q", got, "生成摘要")
	}
	if got := N("%d file saved:", "%d files saved:", 3); got != "已保存 %d 个文件：" {
		t.Fatalf("N = %q", got)
	}
	if got := T("not in the catalog"); got != "not in the catalog" {
		t.Fatalf("untranslated T = %q", got)
	}

	Init("de_DE")
	if got := T("Generation summary"); got != "Generation summary" {
		t.Fatalf("missing locale T = %q", got)
	}
}
