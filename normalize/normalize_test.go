package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/duoreadme/duoreadme/extract"
)

func TestNormalizeScenarioA(t *testing.T) {
	obj, err := extract.Extract(`{"English readme": "# Hi", "Chinese readme": "# 你好"}`)
	require.NoError(t, err)

	c := Normalize(obj, Options{})
	assert.Equal(t, []string{"en", "zh-Hans"}, c.Codes())
	en, _ := c.Get("en")
	zh, _ := c.Get("zh-Hans")
	assert.Equal(t, "# Hi", en)
	assert.Equal(t, "# 你好", zh)
}

func TestNormalizeDropsUnknownLanguages(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	obj, err := extract.Extract(`{"English readme": "a", "中文 readme": "b", "Klingon readme": "c"}`)
	require.NoError(t, err)

	c := Normalize(obj, Options{Logger: zap.New(core)})
	assert.Equal(t, 2, c.Len())
	assert.Equal(t, []string{"Klingon readme"}, c.Unroutable())
	assert.Equal(t, 1, logs.FilterMessage("unroutable language key").Len())
}

func TestNormalizeMatching(t *testing.T) {
	tests := []struct {
		name string
		obj  extract.Object
		want map[string]string
	}{
		{
			name: "case-insensitive trimmed key",
			obj:  extract.Object{{Key: "  japanese README ", Value: "ja"}},
			want: map[string]string{"ja": "ja"},
		},
		{
			name: "code key",
			obj:  extract.Object{{Key: "pt-PT", Value: "olá"}},
			want: map[string]string{"pt-PT": "olá"},
		},
		{
			name: "empty values dropped",
			obj:  extract.Object{{Key: "English", Value: "  \n "}, {Key: "French", Value: "fr"}},
			want: map[string]string{"fr": "fr"},
		},
		{
			name: "last match wins",
			obj:  extract.Object{{Key: "English readme", Value: "first"}, {Key: "en", Value: "second"}},
			want: map[string]string{"en": "second"},
		},
		{
			name: "values trimmed",
			obj:  extract.Object{{Key: "German readme", Value: "\n# Hallo\n\n"}},
			want: map[string]string{"de": "# Hallo"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			c := Normalize(tc.obj, Options{})
			got := make(map[string]string)
			for _, code := range c.Codes() {
				got[code], _ = c.Get(code)
			}
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestNormalizeAllowed(t *testing.T) {
	obj := extract.Object{
		{Key: "English readme", Value: "en"},
		{Key: "Japanese readme", Value: "ja"},
		{Key: "Korean readme", Value: "ko"},
	}
	c := Normalize(obj, Options{Allowed: []string{"en", "ko"}})
	assert.Equal(t, []string{"en", "ko"}, c.Codes())
	assert.Empty(t, c.Unroutable())
}

func TestContentIsACopy(t *testing.T) {
	c := NewContent(Document{Code: "en", Text: "a"}, Document{Code: "fr", Text: "b"})
	codes := c.Codes()
	codes[0] = "xx"
	assert.Equal(t, []string{"en", "fr"}, c.Codes())
}

func TestContentMerge(t *testing.T) {
	first := Normalize(extract.Object{
		{Key: "English readme", Value: "# Full"},
		{Key: "French readme", Value: "# fr"},
		{Key: "Klingon readme", Value: "x"},
	}, Options{})
	second := Normalize(extract.Object{
		{Key: "en", Value: ""},
		{Key: "German", Value: "# de"},
		{Key: "French readme", Value: "# fr2"},
	}, Options{})

	merged := first.Merge(second)
	assert.Equal(t, []string{"en", "fr", "de"}, merged.Codes())
	en, _ := merged.Get("en")
	fr, _ := merged.Get("fr")
	assert.Equal(t, "# Full", en)
	assert.Equal(t, "# fr2", fr)
	assert.Equal(t, []string{"Klingon readme"}, merged.Unroutable())

	assert.Equal(t, []string{"en", "fr"}, first.Codes(), "receiver is unchanged")
	assert.Equal(t, 3, merged.Merge(nil).Len())
}
