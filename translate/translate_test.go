package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/duoreadme/duoreadme/chunker"
	"github.com/duoreadme/duoreadme/extract"
	"github.com/duoreadme/duoreadme/langmeta"
)

type recorder struct {
	reqs    []Request
	replies []string
	failAt  int
}

func (r *recorder) Submit(_ context.Context, req Request) (string, error) {
	r.reqs = append(r.reqs, req)
	n := len(r.reqs)
	if n == r.failAt {
		return "", errors.New("connection reset")
	}
	if n <= len(r.replies) {
		return r.replies[n-1], nil
	}
	return fmt.Sprintf(`{"English readme": "reply %d"}`, n), nil
}

func projectText(files, size int) string {
	var b strings.Builder
	for i := 0; i < files; i++ {
		b.WriteString(chunker.Marker(fmt.Sprintf("f%d.txt", i)))
		b.WriteString(strings.Repeat("y", size))
		b.WriteString("\n\n")
	}
	return b.String()
}

func TestRunEmpty(t *testing.T) {
	rec := &recorder{}
	_, err := New(rec, Options{}).Run(context.Background(), "")
	if !errors.Is(err, ErrNothingToSubmit) {
		t.Fatalf("got %v, want ErrNothingToSubmit", err)
	}
	if len(rec.reqs) != 0 {
		t.Errorf("submitted %d requests for empty text", len(rec.reqs))
	}
}

func TestRunSingleShot(t *testing.T) {
	rec := &recorder{replies: []string{"```json\n{\"English readme\": \"# Hi\"}\n```"}}
	text := projectText(3, 100)

	res, err := New(rec, Options{Languages: []string{"ja", "en"}}).Run(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if len(rec.reqs) != 1 || res.Batches != 1 {
		t.Fatalf("got %d requests, want 1", len(rec.reqs))
	}
	if res.Raw != rec.replies[0] {
		t.Errorf("single-shot reply should pass through unchanged, got %q", res.Raw)
	}
	req := rec.reqs[0]
	if strings.Contains(req.Prompt, "part 1 of") {
		t.Error("single-shot prompt should not carry part framing")
	}
	if !strings.Contains(req.Prompt, text) {
		t.Error("prompt does not contain the project text")
	}
	if req.Variables["code_text"] != text {
		t.Error("code_text variable should hold the batch text")
	}
	en := strings.Index(req.Prompt, `"English readme"`)
	ja := strings.Index(req.Prompt, `"Japanese readme"`)
	if en < 0 || ja < 0 || en > ja {
		t.Errorf("English key should be listed first (en=%d ja=%d)", en, ja)
	}
}

func TestRunBatched(t *testing.T) {
	rec := &recorder{}
	text := projectText(6, 400)
	opts := Options{SingleShotLimit: 1000, BatchLimit: 1000}

	var progress []string
	opts.OnProgress = func(done, total int) { progress = append(progress, fmt.Sprintf("%d/%d", done, total)) }

	res, err := New(rec, opts).Run(context.Background(), text)
	if err != nil {
		t.Fatal(err)
	}
	if res.Batches != 3 || len(rec.reqs) != 3 {
		t.Fatalf("got %d batches, %d requests; want 3", res.Batches, len(rec.reqs))
	}
	for i, req := range rec.reqs {
		want := fmt.Sprintf("part %d of 3", i+1)
		if !strings.Contains(req.Prompt, want) {
			t.Errorf("request %d prompt missing %q", i+1, want)
		}
		if req.Part != i+1 || req.Total != 3 {
			t.Errorf("request %d numbered %d/%d", i+1, req.Part, req.Total)
		}
	}
	if got := strings.Join(progress, ","); got != "1/3,2/3,3/3" {
		t.Errorf("progress = %s", got)
	}
}

func TestRunFailFast(t *testing.T) {
	rec := &recorder{failAt: 2}
	text := projectText(6, 400)

	_, err := New(rec, Options{SingleShotLimit: 1000, BatchLimit: 1000}).Run(context.Background(), text)
	var be *BatchError
	if !errors.As(err, &be) {
		t.Fatalf("got %v, want *BatchError", err)
	}
	if be.Index != 2 || be.Total != 3 {
		t.Errorf("failed batch = %d/%d, want 2/3", be.Index, be.Total)
	}
	if len(rec.reqs) != 2 {
		t.Errorf("submitted %d requests after failure, want 2", len(rec.reqs))
	}
	if !strings.Contains(err.Error(), "connection reset") {
		t.Errorf("error lost its cause: %v", err)
	}
}

func TestRunCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := &recorder{}
	_, err := New(rec, Options{}).Run(ctx, projectText(1, 10))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
	if len(rec.reqs) != 0 {
		t.Error("no request should be sent after cancellation")
	}
}

// ----------------------------------------------------------------------------
// Reduction
// ----------------------------------------------------------------------------

func TestReduceMerge(t *testing.T) {
	rec := &recorder{replies: []string{
		`{"English readme": "first en", "French readme": "fr only in first"}`,
		"no json at all",
		"```json\n{\"English readme\": \"last en\", \"German readme\": \"de\"}\n```",
	}}
	res, err := New(rec, Options{SingleShotLimit: 1000, BatchLimit: 1000}).Run(context.Background(), projectText(6, 400))
	if err != nil {
		t.Fatal(err)
	}
	obj, err := extract.Extract(res.Raw)
	if err != nil {
		t.Fatal(err)
	}
	want := map[string]string{
		"English readme": "last en",
		"French readme":  "fr only in first",
		"German readme":  "de",
	}
	got := obj.Map()
	for k, v := range want {
		if got[k] != v {
			t.Errorf("%s = %q, want %q", k, got[k], v)
		}
	}
	if len(res.Responses) != 3 {
		t.Errorf("got %d responses, want 3", len(res.Responses))
	}
}

func TestReduceMergeKeepsEarlierTextOverEmpty(t *testing.T) {
	rec := &recorder{replies: []string{
		`{"English readme": "# Full", "Chinese readme": "# 中"}`,
		`{"English readme": "", "Chinese readme": "# 中2"}`,
		`{"English readme": "   "}`,
	}}
	res, err := New(rec, Options{SingleShotLimit: 1000, BatchLimit: 1000}).Run(context.Background(), projectText(6, 400))
	if err != nil {
		t.Fatal(err)
	}
	obj, err := extract.Extract(res.Raw)
	if err != nil {
		t.Fatal(err)
	}
	got := obj.Map()
	if got["English readme"] != "# Full" {
		t.Errorf("English readme = %q, want %q", got["English readme"], "# Full")
	}
	if got["Chinese readme"] != "# 中2" {
		t.Errorf("Chinese readme = %q, want %q", got["Chinese readme"], "# 中2")
	}
}

func TestReduceMergeAcrossAliases(t *testing.T) {
	rec := &recorder{replies: []string{
		`{"English readme": "# A", "en": "# B", "日本語 readme": "# ja1"}`,
		`{"English readme": "# C", "Japanese": "# ja2"}`,
	}}
	res, err := New(rec, Options{SingleShotLimit: 1000, BatchLimit: 1000}).Run(context.Background(), projectText(4, 400))
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Responses) != 2 {
		t.Fatalf("got %d responses, want 2", len(res.Responses))
	}
	obj, err := extract.Extract(res.Raw)
	if err != nil {
		t.Fatal(err)
	}
	want := extract.Object{
		{Key: "English readme", Value: "# C"},
		{Key: "Japanese readme", Value: "# ja2"},
	}
	if diff := cmp.Diff(want, obj); diff != "" {
		t.Errorf("merged reply (-want +got):\n%s", diff)
	}
}

func TestReduceMergeSkipsUnroutableReplies(t *testing.T) {
	rec := &recorder{replies: []string{
		`{"English readme": "# en"}`,
		`{"Klingon readme": "# tlh"}`,
	}}
	res, err := New(rec, Options{SingleShotLimit: 1000, BatchLimit: 1000}).Run(context.Background(), projectText(4, 400))
	if err != nil {
		t.Fatal(err)
	}
	if res.Raw != `{"English readme":"# en"}` {
		t.Errorf("got %q", res.Raw)
	}
}

func TestReduceLast(t *testing.T) {
	rec := &recorder{replies: []string{`{"French readme": "fr"}`, `{"English readme": "en"}`, `{"German readme": "de"}`}}
	res, err := New(rec, Options{SingleShotLimit: 1000, BatchLimit: 1000, Reduce: ReduceLast}).Run(context.Background(), projectText(6, 400))
	if err != nil {
		t.Fatal(err)
	}
	if res.Raw != `{"German readme": "de"}` {
		t.Errorf("got %q, want last reply", res.Raw)
	}
}

func TestReduceMergeNothingUsable(t *testing.T) {
	rec := &recorder{replies: []string{"nope", "still nope", "last nope"}}
	res, err := New(rec, Options{SingleShotLimit: 1000, BatchLimit: 1000}).Run(context.Background(), projectText(6, 400))
	if err != nil {
		t.Fatal(err)
	}
	if res.Raw != "last nope" {
		t.Errorf("got %q, want last reply when nothing merges", res.Raw)
	}
}

func TestParseReduce(t *testing.T) {
	for in, want := range map[string]Reduce{"": ReduceMerge, "merge": ReduceMerge, " LAST ": ReduceLast} {
		got, err := ParseReduce(in)
		if err != nil || got != want {
			t.Errorf("ParseReduce(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	if _, err := ParseReduce("first"); err == nil {
		t.Error("expected error for unknown policy")
	}
}

// ----------------------------------------------------------------------------
// Prompts
// ----------------------------------------------------------------------------

func TestLanguageList(t *testing.T) {
	got := LanguageList(langmeta.Default(), []string{"zh-Hans", "en", "ja"})
	want := "English, 中文 (Chinese), 日本語 (Japanese)"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
}

func TestBuildBatchPromptKeepsContentVerbatim(t *testing.T) {
	content := "=== a.go ===\nfmt.Println(\"{{part}}\")\n"
	p := BuildBatchPrompt(langmeta.Default(), []string{"en"}, content, 2, 5)
	if !strings.Contains(p, content) {
		t.Error("content placeholders must not be expanded")
	}
	if !strings.Contains(p, "part 2 of 5") {
		t.Error("missing part framing")
	}
}
